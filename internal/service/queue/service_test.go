package queue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/cache"
	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/config"
	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/dto"
	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/entity"
	core "github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/queue"
	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/storefront"
	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/pkg/errorbank"
)

// recEvents records emitted client events for assertions.
type recEvents struct {
	mu        sync.Mutex
	updates   [][]dto.QueueOrder
	newOrders []bool
	errors    []string
	authFlags []bool
}

func (e *recEvents) OrdersUpdated(orders []dto.QueueOrder) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.updates = append(e.updates, orders)
}

func (e *recEvents) NewOrder(sound bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.newOrders = append(e.newOrders, sound)
}

func (e *recEvents) SyncError(message string, auth bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errors = append(e.errors, message)
	e.authFlags = append(e.authFlags, auth)
}

func (e *recEvents) lastUpdate() []dto.QueueOrder {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.updates) == 0 {
		return nil
	}
	return e.updates[len(e.updates)-1]
}

// memStore is an in-memory cache.Store for snapshot tests.
type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.data[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return value, nil
}

func (m *memStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type stubFetcher struct{}

func (stubFetcher) ListOrders(context.Context, string) ([]entity.Order, error) {
	return nil, nil
}

func newTestService(t *testing.T, handler http.Handler) (*Service, *recEvents, *memStore) {
	t.Helper()

	var baseURL string
	if handler != nil {
		server := httptest.NewServer(handler)
		t.Cleanup(server.Close)
		baseURL = server.URL
	} else {
		baseURL = "http://127.0.0.1:0"
	}

	cfg := config.Config{}
	cfg.Storefront.BaseURL = baseURL
	cfg.Storefront.Store = "store-1"
	cfg.Storefront.Timeout = 2 * time.Second
	cfg.Queue.SnapshotTTL = time.Minute
	cfg.Queue.ElapsedWarn = time.Minute

	store := newMemStore()
	svc := NewService(Params{
		Client:   storefront.NewClient(cfg, zap.NewNop()),
		Ordering: core.NewOrderingIndex(),
		Syncer:   core.NewSync(stubFetcher{}, "store-1", time.Hour, zap.NewNop()),
		Gate:     core.NewAlertGate(store, true, zap.NewNop()),
		Cache:    store,
		Config:   cfg,
		Logger:   zap.NewNop(),
	})

	events := &recEvents{}
	svc.SetEvents(events)
	return svc, events, store
}

func pendingOrder(id string, items ...entity.OrderItem) entity.Order {
	return entity.Order{
		ID:           id,
		CustomerName: "Maria",
		Status:       entity.StatusPending,
		CreatedAt:    time.Now().Add(-90 * time.Second).UnixMilli(),
		Items:        items,
		Total:        entity.ItemsTotal(items),
	}
}

func line(product string, qty int, price float64) entity.OrderItem {
	return entity.OrderItem{ProductID: product, Name: product, Quantity: qty, UnitPrice: price}
}

func TestOrdersUpdatedBuildsStableViews(t *testing.T) {
	svc, events, _ := newTestService(t, nil)

	first := pendingOrder("o1", line("picanha", 1, 30), line("frango", 2, 12))
	svc.OrdersUpdated([]entity.Order{first})

	// Same order with shuffled items keeps the established sequence.
	shuffled := first
	shuffled.Items = []entity.OrderItem{line("frango", 2, 12), line("picanha", 1, 30)}
	svc.OrdersUpdated([]entity.Order{shuffled})

	view := events.lastUpdate()
	if len(view) != 1 {
		t.Fatalf("views = %d, want 1", len(view))
	}
	items := view[0].Items
	if len(items) != 2 || items[0].ProductID != "picanha" || items[1].ProductID != "frango" {
		t.Fatalf("item sequence = %v, want picanha first", items)
	}
	if items[0].Key == "" || items[0].Key == items[1].Key {
		t.Fatalf("row keys not distinct: %q vs %q", items[0].Key, items[1].Key)
	}
	if items[1].LineTotal != 24 {
		t.Fatalf("line total = %v, want 24", items[1].LineTotal)
	}
	if view[0].ElapsedSeconds < 89 {
		t.Fatalf("elapsed = %d, want at least 89", view[0].ElapsedSeconds)
	}
}

func TestBuildViewFlagsDelayedOrders(t *testing.T) {
	svc, events, _ := newTestService(t, nil)

	fresh := pendingOrder("fresh", line("picanha", 1, 30))
	fresh.CreatedAt = time.Now().UnixMilli()
	stale := pendingOrder("stale", line("frango", 1, 12))
	stale.CreatedAt = time.Now().Add(-5 * time.Minute).UnixMilli()

	svc.OrdersUpdated([]entity.Order{fresh, stale})

	view := events.lastUpdate()
	if len(view) != 2 {
		t.Fatalf("views = %d, want 2", len(view))
	}
	if view[0].Delayed {
		t.Error("fresh order flagged as delayed")
	}
	if !view[1].Delayed {
		t.Error("order past the warning threshold not flagged")
	}
}

func TestNewOrderCarriesGateDecision(t *testing.T) {
	svc, events, _ := newTestService(t, nil)

	// Gate starts locked: the cue is swallowed, not queued.
	svc.NewOrder()
	svc.NotifyGesture()
	svc.NewOrder()

	events.mu.Lock()
	defer events.mu.Unlock()
	if len(events.newOrders) != 2 {
		t.Fatalf("NewOrder events = %d, want 2", len(events.newOrders))
	}
	if events.newOrders[0] {
		t.Fatal("locked gate let the first signal carry sound")
	}
	if !events.newOrders[1] {
		t.Fatal("unlocked gate suppressed the second signal")
	}
}

func TestSyncErrorFlagsAuthFailures(t *testing.T) {
	svc, events, _ := newTestService(t, nil)

	svc.SyncError(errorbank.Unavailable("storefront unreachable"))
	svc.SyncError(errorbank.Unauthorized("storefront session invalid"))

	events.mu.Lock()
	defer events.mu.Unlock()
	if len(events.authFlags) != 2 {
		t.Fatalf("SyncError events = %d, want 2", len(events.authFlags))
	}
	if events.authFlags[0] {
		t.Fatal("transient failure flagged as auth")
	}
	if !events.authFlags[1] {
		t.Fatal("401 not flagged as auth")
	}
}

func TestSetStatusRejectsUnknownStatus(t *testing.T) {
	called := false
	svc, _, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	_, err := svc.SetStatus(context.Background(), "o1", "vaporized")
	appErr := errorbank.From(err)
	if appErr == nil || appErr.Kind() != errorbank.KindBadRequest {
		t.Fatalf("error = %v, want bad_request", err)
	}
	if called {
		t.Fatal("invalid status reached the storefront")
	}
}

func TestSetStatusDropsFinishedOrderFromView(t *testing.T) {
	svc, events, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/orders/o1/status" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		done := pendingOrder("o1", line("picanha", 1, 30))
		done.Status = entity.StatusDone
		_ = json.NewEncoder(w).Encode(done)
	}))

	svc.OrdersUpdated([]entity.Order{
		pendingOrder("o1", line("picanha", 1, 30)),
		pendingOrder("o2", line("frango", 1, 12)),
	})

	view, err := svc.SetStatus(context.Background(), "o1", entity.StatusDone)
	if err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	if view.Status != entity.StatusDone {
		t.Fatalf("returned status = %s, want done", view.Status)
	}

	active := events.lastUpdate()
	if len(active) != 1 || active[0].ID != "o2" {
		t.Fatalf("active view = %v, want only o2", active)
	}
}

func TestMutateItemsRejectsNegativeQuantity(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	svc.OrdersUpdated([]entity.Order{pendingOrder("o1", line("picanha", 1, 30))})

	_, err := svc.MutateItems(context.Background(), "o1", []entity.OrderItem{line("picanha", -1, 30)})
	appErr := errorbank.From(err)
	if appErr == nil || appErr.Kind() != errorbank.KindUnprocessableEntity {
		t.Fatalf("error = %v, want unprocessable_entity", err)
	}
}

func TestMutateItemsUnknownOrder(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	_, err := svc.MutateItems(context.Background(), "ghost", []entity.OrderItem{line("picanha", 1, 30)})
	appErr := errorbank.From(err)
	if appErr == nil || appErr.Kind() != errorbank.KindNotFound {
		t.Fatalf("error = %v, want not_found", err)
	}
}

func TestMutateItemsDropsZeroQuantityAndRecomputesTotal(t *testing.T) {
	var committed struct {
		Items []entity.OrderItem `json:"items"`
		Total float64            `json:"total"`
	}
	svc, _, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/orders/o1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&committed); err != nil {
			t.Errorf("decode commit payload: %v", err)
		}
		updated := pendingOrder("o1", committed.Items...)
		_ = json.NewEncoder(w).Encode(updated)
	}))

	svc.OrdersUpdated([]entity.Order{
		pendingOrder("o1", line("picanha", 2, 30), line("frango", 1, 12)),
	})

	view, err := svc.MutateItems(context.Background(), "o1", []entity.OrderItem{
		line("picanha", 3, 30),
		line("frango", 0, 12),
	})
	if err != nil {
		t.Fatalf("MutateItems() error = %v", err)
	}

	if len(committed.Items) != 1 || committed.Items[0].ProductID != "picanha" {
		t.Fatalf("committed items = %v, want only picanha", committed.Items)
	}
	if committed.Total != 90 {
		t.Fatalf("committed total = %v, want 90", committed.Total)
	}
	if len(view.Items) != 1 || view.Items[0].Quantity != 3 {
		t.Fatalf("view items = %v, want picanha x3", view.Items)
	}
}

func TestMutateItemsEmptyOrderAutoCancels(t *testing.T) {
	var statusPath string
	svc, events, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		statusPath = r.URL.Path
		cancelled := pendingOrder("o1", line("picanha", 1, 30))
		cancelled.Status = entity.StatusCancelled
		_ = json.NewEncoder(w).Encode(cancelled)
	}))

	svc.OrdersUpdated([]entity.Order{pendingOrder("o1", line("picanha", 1, 30))})

	view, err := svc.MutateItems(context.Background(), "o1", []entity.OrderItem{line("picanha", 0, 30)})
	if err != nil {
		t.Fatalf("MutateItems() error = %v", err)
	}
	if statusPath != "/orders/o1/status" {
		t.Fatalf("emptied order hit %s, want the status endpoint", statusPath)
	}
	if view.Status != entity.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", view.Status)
	}
	if got := events.lastUpdate(); len(got) != 0 {
		t.Fatalf("cancelled order still in view: %v", got)
	}
}

func TestMutateItemsRollsBackOnUpstreamFailure(t *testing.T) {
	svc, events, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	svc.OrdersUpdated([]entity.Order{pendingOrder("o1", line("picanha", 2, 30))})

	_, err := svc.MutateItems(context.Background(), "o1", []entity.OrderItem{line("picanha", 5, 30)})
	if !errorbank.IsTransient(err) {
		t.Fatalf("error = %v, want transient", err)
	}

	active := events.lastUpdate()
	if len(active) != 1 {
		t.Fatalf("active view = %d orders, want 1", len(active))
	}
	if got := active[0].Items[0].Quantity; got != 2 {
		t.Fatalf("quantity after rollback = %d, want 2", got)
	}
}

func TestWarmStartRestoresSnapshot(t *testing.T) {
	svc, _, store := newTestService(t, nil)

	orders := []entity.Order{pendingOrder("o1", line("picanha", 1, 30))}
	encoded, _ := json.Marshal(orders)
	store.data["queue:snapshot:store-1"] = encoded

	svc.WarmStart(context.Background())

	active := svc.Active()
	if len(active) != 1 || active[0].ID != "o1" {
		t.Fatalf("warm view = %v, want snapshot order o1", active)
	}
}

func TestWarmStartIgnoresCorruptSnapshot(t *testing.T) {
	svc, _, store := newTestService(t, nil)
	store.data["queue:snapshot:store-1"] = []byte("{not json")

	svc.WarmStart(context.Background())

	if got := svc.Active(); len(got) != 0 {
		t.Fatalf("warm view = %v, want empty", got)
	}
}

func TestOrdersUpdatedWritesSnapshot(t *testing.T) {
	svc, _, store := newTestService(t, nil)

	svc.OrdersUpdated([]entity.Order{pendingOrder("o1", line("picanha", 1, 30))})

	store.mu.Lock()
	raw, ok := store.data["queue:snapshot:store-1"]
	store.mu.Unlock()
	if !ok {
		t.Fatal("snapshot not written after refresh")
	}
	var snap []entity.Order
	if err := json.Unmarshal(raw, &snap); err != nil || len(snap) != 1 {
		t.Fatalf("snapshot payload = %s (err %v), want one order", raw, err)
	}
}

func TestStateReportsGateAndPreference(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	state := svc.State()
	if !state.SoundEnabled || state.GateState != "locked" || state.Store != "store-1" {
		t.Fatalf("state = %+v, want enabled, locked, store-1", state)
	}

	svc.NotifyGesture()
	if got := svc.State().GateState; got != "unlocked" {
		t.Fatalf("gate state after gesture = %s, want unlocked", got)
	}

	if err := svc.SetSound(context.Background(), false); err != nil {
		t.Fatalf("SetSound() error = %v", err)
	}
	state = svc.State()
	if state.SoundEnabled || state.GateState != "locked" {
		t.Fatalf("state after disable = %+v, want disabled and locked", state)
	}
}
