package app

import (
	"go.uber.org/fx"

	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/cache"
	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/config"
	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/logger"
	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/messaging"
	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/observability"
	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/queue"
	servicequeue "github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/service/queue"
	httpserver "github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/server/http"
	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/storefront"
	transporthttp "github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/transport/http"
	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/worker"
	workerqueue "github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/worker/queue"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	storefront.Module,
	queue.Module,
	servicequeue.Module,
)

// HTTP wires the HTTP transport on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerqueue.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
