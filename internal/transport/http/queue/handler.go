package queue

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/entity"
	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/presentation/http/response"
	service "github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/service/queue"
	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/EdmilsonFernandes/EdEspetoHub-sub001/transport/http/queue")

// Handler exposes the production queue over HTTP.
type Handler struct {
	svc         *service.Service
	broadcaster *Broadcaster
}

// NewHandler constructs a queue Handler.
func NewHandler(svc *service.Service, broadcaster *Broadcaster) *Handler {
	return &Handler{svc: svc, broadcaster: broadcaster}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/queue")
	g.GET("/orders", h.listOrders)
	g.PATCH("/orders/:id/status", h.setStatus)
	g.PATCH("/orders/:id/items", h.mutateItems)
	g.GET("/stream", h.broadcaster.stream)
	g.GET("/state", h.state)
	g.PUT("/sound", h.setSound)
	g.POST("/gesture", h.gesture)
	g.POST("/refresh", h.refresh)
	g.POST("/visibility", h.visibility)
}

func (h *Handler) listOrders(c echo.Context) error {
	b := response.New(c)
	orders := h.svc.Active()
	return b.WithData(orders).WithMeta("count", len(orders)).Build()
}

func (h *Handler) setStatus(c echo.Context) error {
	b := response.New(c)

	id := c.Param("id")
	var payload struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.Status == "" {
		return b.WithError(errorbank.BadRequest("status is required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "queue.setStatus", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.status", payload.Status),
	))
	defer span.End()

	order, err := h.svc.SetStatus(ctx, id, payload.Status)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(order).Build()
}

func (h *Handler) mutateItems(c echo.Context) error {
	b := response.New(c)

	id := c.Param("id")
	var payload struct {
		Items []entity.OrderItem `json:"items"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "queue.mutateItems", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.Int("items", len(payload.Items)),
	))
	defer span.End()

	order, err := h.svc.MutateItems(ctx, id, payload.Items)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(order).Build()
}

func (h *Handler) state(c echo.Context) error {
	return response.New(c).WithData(h.svc.State()).Build()
}

func (h *Handler) setSound(c echo.Context) error {
	b := response.New(c)

	var payload struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	if err := h.svc.SetSound(c.Request().Context(), payload.Enabled); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(h.svc.State()).Build()
}

func (h *Handler) gesture(c echo.Context) error {
	h.svc.NotifyGesture()
	return response.New(c).WithData(h.svc.State()).Build()
}

func (h *Handler) refresh(c echo.Context) error {
	h.svc.Refresh(c.Request().Context())
	return response.New(c).WithStatus(http.StatusAccepted).Build()
}

// visibility lets clients report tab visibility: hidden suspends polling,
// visible resumes it with an immediate refresh.
func (h *Handler) visibility(c echo.Context) error {
	b := response.New(c)

	var payload struct {
		Visible bool `json:"visible"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	if payload.Visible {
		h.svc.Resume(c.Request().Context())
	} else {
		h.svc.Suspend()
	}
	return b.WithStatus(http.StatusAccepted).Build()
}
