package queue

import (
	"go.uber.org/fx"

	"github.com/labstack/echo/v4"

	service "github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/service/queue"
)

// Module wires HTTP queue handlers and attaches the SSE broadcaster as the
// service's event sink.
var Module = fx.Options(
	fx.Provide(NewBroadcaster),
	fx.Provide(NewHandler),
	fx.Invoke(func(e *echo.Echo, h *Handler, svc *service.Service, b *Broadcaster) {
		svc.SetEvents(b)
		Register(e, h)
	}),
)
