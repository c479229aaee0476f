package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
)

// QueueMetrics carries the production-queue instrument set, registered on the
// default registry the Manager's Prometheus handler serves.
type QueueMetrics struct {
	Refreshes         prometheus.Counter
	RefreshFailures   prometheus.Counter
	NewOrders         prometheus.Counter
	ActiveOrders      prometheus.Gauge
	StreamSubscribers prometheus.Gauge
}

// MetricsModule provides the queue instrument set to Fx.
var MetricsModule = fx.Provide(NewQueueMetrics)

// NewQueueMetrics registers the queue instruments.
func NewQueueMetrics() *QueueMetrics {
	factory := promauto.With(prometheus.DefaultRegisterer)
	return &QueueMetrics{
		Refreshes: factory.NewCounter(prometheus.CounterOpts{
			Name: "queue_refreshes_total",
			Help: "Successful queue refresh cycles.",
		}),
		RefreshFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "queue_refresh_failures_total",
			Help: "Queue refresh cycles that failed to fetch.",
		}),
		NewOrders: factory.NewCounter(prometheus.CounterOpts{
			Name: "queue_new_orders_total",
			Help: "New-order arrival signals emitted.",
		}),
		ActiveOrders: factory.NewGauge(prometheus.GaugeOpts{
			Name: "queue_active_orders",
			Help: "Orders currently in the active production queue.",
		}),
		StreamSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "queue_stream_subscribers",
			Help: "Connected queue event-stream subscribers.",
		}),
	}
}
