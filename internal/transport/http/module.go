package http

import (
	"go.uber.org/fx"

	queuetransport "github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/transport/http/queue"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	queuetransport.Module,
)
