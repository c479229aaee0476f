package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/config"
	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/entity"
	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/queue"
	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/pkg/errorbank"
)

var clientTracer = otel.Tracer("github.com/EdmilsonFernandes/EdEspetoHub-sub001/storefront")

// Client talks to the storefront REST API that owns orders. The queue never
// touches storage directly; everything goes through these endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *zap.Logger
}

// Module wires the storefront client into the Fx graph, also binding it as
// the fetcher the sync engine polls.
var Module = fx.Options(
	fx.Provide(NewClient),
	fx.Provide(func(c *Client) queue.OrderFetcher { return c }),
)

// NewClient builds a Client from configuration.
func NewClient(cfg config.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Storefront.Timeout},
		baseURL:    cfg.Storefront.BaseURL,
		token:      cfg.Storefront.Token,
		logger:     logger,
	}
}

// ListOrders fetches the full order list for a store (id or slug).
func (c *Client) ListOrders(ctx context.Context, store string) ([]entity.Order, error) {
	if store == "" {
		return nil, errorbank.BadRequest("store identifier is required")
	}

	ctx, span := clientTracer.Start(ctx, "Storefront.ListOrders", trace.WithAttributes(
		attribute.String("store", store),
	))
	defer span.End()

	var orders []entity.Order
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/stores/%s/orders", store), nil, &orders); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list orders failed")
		return nil, err
	}
	return orders, nil
}

// UpdateStatus transitions an order's status upstream.
func (c *Client) UpdateStatus(ctx context.Context, orderID, status string) (*entity.Order, error) {
	if orderID == "" {
		return nil, errorbank.BadRequest("order id is required")
	}

	ctx, span := clientTracer.Start(ctx, "Storefront.UpdateStatus", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.status", status),
	))
	defer span.End()

	payload := map[string]string{"status": status}
	var order entity.Order
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/orders/%s/status", orderID), payload, &order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update status failed")
		return nil, err
	}
	return &order, nil
}

// UpdateItems commits an item mutation with the recomputed total.
func (c *Client) UpdateItems(ctx context.Context, orderID string, items []entity.OrderItem, total float64) (*entity.Order, error) {
	if orderID == "" {
		return nil, errorbank.BadRequest("order id is required")
	}

	ctx, span := clientTracer.Start(ctx, "Storefront.UpdateItems", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.Int("items", len(items)),
	))
	defer span.End()

	payload := struct {
		Items []entity.OrderItem `json:"items"`
		Total float64            `json:"total"`
	}{Items: items, Total: total}

	var order entity.Order
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/orders/%s", orderID), payload, &order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update items failed")
		return nil, err
	}
	return &order, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errorbank.Internal("encode request", errorbank.WithCause(err))
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errorbank.Internal("build request", errorbank.WithCause(err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network-level failures are transient; the next poll tick retries.
		return errorbank.Unavailable("storefront unreachable", errorbank.WithCause(err))
	}
	defer resp.Body.Close()

	if err := statusError(resp, path); err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errorbank.Internal("decode response", errorbank.WithCause(err))
	}
	return nil
}

func statusError(resp *http.Response, path string) error {
	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return errorbank.Unauthorized("storefront session invalid", errorbank.WithDetail("path", path))
	case resp.StatusCode == http.StatusNotFound:
		return errorbank.NotFound("storefront resource not found", errorbank.WithDetail("path", path))
	case resp.StatusCode >= 500:
		return errorbank.Unavailable("storefront error", errorbank.WithDetail("status", resp.StatusCode))
	default:
		return errorbank.BadRequest("storefront rejected request", errorbank.WithDetail("status", resp.StatusCode))
	}
}
