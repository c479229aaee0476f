package queue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/config"
	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/entity"
	core "github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/queue"
	service "github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/service/queue"
	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/storefront"
)

type idleFetcher struct{}

func (idleFetcher) ListOrders(context.Context, string) ([]entity.Order, error) {
	return nil, nil
}

func newTestHandler(t *testing.T, upstream http.Handler) (*echo.Echo, *service.Service) {
	t.Helper()

	baseURL := "http://127.0.0.1:0"
	if upstream != nil {
		server := httptest.NewServer(upstream)
		t.Cleanup(server.Close)
		baseURL = server.URL
	}

	cfg := config.Config{}
	cfg.Storefront.BaseURL = baseURL
	cfg.Storefront.Store = "store-1"
	cfg.Storefront.Timeout = 2 * time.Second

	svc := service.NewService(service.Params{
		Client:   storefront.NewClient(cfg, zap.NewNop()),
		Ordering: core.NewOrderingIndex(),
		Syncer:   core.NewSync(idleFetcher{}, "store-1", time.Hour, zap.NewNop()),
		Gate:     core.NewAlertGate(nil, true, zap.NewNop()),
		Config:   cfg,
		Logger:   zap.NewNop(),
	})

	broadcaster := NewBroadcaster(zap.NewNop(), nil)
	svc.SetEvents(broadcaster)

	e := echo.New()
	Register(e, NewHandler(svc, broadcaster))
	return e, svc
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return envelope
}

func TestListOrdersEndpoint(t *testing.T) {
	e, svc := newTestHandler(t, nil)
	svc.OrdersUpdated([]entity.Order{
		{ID: "o1", Status: entity.StatusPending, Items: []entity.OrderItem{
			{ProductID: "picanha", Quantity: 1, UnitPrice: 30},
		}},
	})

	req := httptest.NewRequest(http.MethodGet, "/queue/orders", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	envelope := decodeEnvelope(t, rec)
	if envelope["success"] != true {
		t.Fatalf("envelope = %v, want success", envelope)
	}
	meta, _ := envelope["meta"].(map[string]any)
	if meta["count"] != float64(1) {
		t.Fatalf("meta.count = %v, want 1", meta["count"])
	}
}

func TestStateEndpoint(t *testing.T) {
	e, _ := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/queue/state", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	envelope := decodeEnvelope(t, rec)
	data, _ := envelope["data"].(map[string]any)
	if data["soundEnabled"] != true || data["gateState"] != "locked" {
		t.Fatalf("state = %v, want sound on and gate locked", data)
	}
}

func TestGestureEndpointUnlocksGate(t *testing.T) {
	e, _ := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/queue/gesture", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	envelope := decodeEnvelope(t, rec)
	data, _ := envelope["data"].(map[string]any)
	if data["gateState"] != "unlocked" {
		t.Fatalf("gate state = %v, want unlocked after gesture", data["gateState"])
	}
}

func TestSetSoundEndpoint(t *testing.T) {
	e, _ := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodPut, "/queue/sound", strings.NewReader(`{"enabled":false}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	envelope := decodeEnvelope(t, rec)
	data, _ := envelope["data"].(map[string]any)
	if data["soundEnabled"] != false {
		t.Fatalf("soundEnabled = %v, want false", data["soundEnabled"])
	}
}

func TestSetStatusEndpointRequiresStatus(t *testing.T) {
	e, _ := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodPatch, "/queue/orders/o1/status", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	envelope := decodeEnvelope(t, rec)
	if envelope["success"] != false {
		t.Fatalf("envelope = %v, want failure", envelope)
	}
}

func TestSetStatusEndpoint(t *testing.T) {
	e, svc := newTestHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(entity.Order{ID: "o1", Status: entity.StatusPreparing})
	}))
	svc.OrdersUpdated([]entity.Order{{ID: "o1", Status: entity.StatusPending}})

	req := httptest.NewRequest(http.MethodPatch, "/queue/orders/o1/status", strings.NewReader(`{"status":"preparing"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	envelope := decodeEnvelope(t, rec)
	data, _ := envelope["data"].(map[string]any)
	if data["status"] != entity.StatusPreparing {
		t.Fatalf("order status = %v, want preparing", data["status"])
	}
}

func TestMutateItemsEndpointNotFound(t *testing.T) {
	e, _ := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodPatch, "/queue/orders/ghost/items",
		strings.NewReader(`{"items":[{"productId":"picanha","quantity":1,"unitPrice":30}]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestVisibilityEndpoint(t *testing.T) {
	e, _ := newTestHandler(t, nil)

	for _, body := range []string{`{"visible":false}`, `{"visible":true}`} {
		req := httptest.NewRequest(http.MethodPost, "/queue/visibility", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		if rec.Code != http.StatusAccepted {
			t.Fatalf("status = %d for %s, want 202", rec.Code, body)
		}
	}
}

func TestRefreshEndpoint(t *testing.T) {
	e, _ := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/queue/refresh", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
}
