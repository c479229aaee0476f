package queue

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/config"
	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/messaging"
	queuesvc "github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/service/queue"
	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/worker"
)

var workerTracer = otel.Tracer("github.com/EdmilsonFernandes/EdEspetoHub-sub001/worker/queue")

// Module registers queue-related worker handlers.
var Module = fx.Module("worker_queue",
	fx.Provide(
		fx.Annotate(
			NewOrderArrivedHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewOrderArrivedHandler sets up a worker handler that logs new-order
// arrivals for downstream notification fanout.
func NewOrderArrivedHandler(logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.queue.process", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		var event queuesvc.OrderArrivedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("failed to decode order arrived", zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}
		logger.Info("order arrived event processed",
			zap.String("store", event.Store),
			zap.Time("occurred_at", event.OccurredAt),
		)

		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handler,
	}
}
