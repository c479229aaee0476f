package queue

import (
	"context"

	"go.uber.org/fx"

	core "github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/queue"
)

// Module provides the queue service and ties the sync engine to the Fx
// lifecycle. The listener is attached before the loop starts.
var Module = fx.Options(
	fx.Provide(NewService),
	fx.Invoke(func(lc fx.Lifecycle, svc *Service, syncer *core.Sync, gate *core.AlertGate) {
		syncer.SetListener(svc)
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				gate.Load(ctx)
				svc.WarmStart(ctx)
				return syncer.Start(ctx)
			},
			OnStop: func(ctx context.Context) error {
				syncer.Stop()
				return nil
			},
		})
	}),
)
