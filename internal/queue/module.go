package queue

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/cache"
	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/config"
)

// Module provides the queue engine pieces to Fx. Lifecycle wiring lives in
// the service layer, which owns the listener.
var Module = fx.Options(
	fx.Provide(NewOrderingIndex),
	fx.Provide(func(store cache.Store, cfg config.Config, logger *zap.Logger) *AlertGate {
		return NewAlertGate(store, cfg.Queue.SoundDefault, logger)
	}),
	fx.Provide(func(fetcher OrderFetcher, cfg config.Config, logger *zap.Logger) *Sync {
		return NewSync(fetcher, cfg.Storefront.Store, cfg.Queue.PollInterval, logger)
	}),
)
