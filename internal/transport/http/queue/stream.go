package queue

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/dto"
	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/observability"
)

// Event is a single server-sent event pushed to queue clients.
type Event struct {
	Type string
	Data any
}

// Broadcaster fans queue signals out to connected SSE subscribers. Slow
// subscribers drop events rather than blocking the producers.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
	nextID      int
	logger      *zap.Logger
	metrics     *observability.QueueMetrics
}

// NewBroadcaster constructs an empty broadcaster.
func NewBroadcaster(logger *zap.Logger, metrics *observability.QueueMetrics) *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[string]chan Event),
		logger:      logger,
		metrics:     metrics,
	}
}

// OrdersUpdated implements the service event sink.
func (b *Broadcaster) OrdersUpdated(orders []dto.QueueOrder) {
	b.broadcast(Event{Type: "orders", Data: orders})
}

// NewOrder implements the service event sink; sound reflects the alert
// gate's decision for this cycle.
func (b *Broadcaster) NewOrder(sound bool) {
	b.broadcast(Event{Type: "new_order", Data: map[string]bool{"sound": sound}})
}

// SyncError implements the service event sink. Auth errors let clients
// redirect to login; everything else is display-only.
func (b *Broadcaster) SyncError(message string, auth bool) {
	b.broadcast(Event{Type: "sync_error", Data: map[string]any{"message": message, "auth": auth}})
}

func (b *Broadcaster) broadcast(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
			if b.logger != nil {
				b.logger.Info("subscriber channel full, dropping event", zap.String("subscriber", id))
			}
		}
	}
}

func (b *Broadcaster) subscribe() (string, <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := fmt.Sprintf("sub-%d", b.nextID)
	ch := make(chan Event, 64)
	b.subscribers[id] = ch
	if b.metrics != nil {
		b.metrics.StreamSubscribers.Set(float64(len(b.subscribers)))
	}
	return id, ch
}

func (b *Broadcaster) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(ch)
	}
	if b.metrics != nil {
		b.metrics.StreamSubscribers.Set(float64(len(b.subscribers)))
	}
}

// Subscribers reports the live subscriber count.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// stream serves the SSE endpoint carrying orders, new_order and sync_error
// events, with periodic keepalive comments.
func (b *Broadcaster) stream(c echo.Context) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)

	id, events := b.subscribe()
	defer b.unsubscribe(id)

	if b.logger != nil {
		b.logger.Info("queue stream connected", zap.String("subscriber", id))
	}

	fmt.Fprintf(res, ": connected\n\n")
	fmt.Fprintf(res, "retry: 2000\n\n")
	res.Flush()

	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-c.Request().Context().Done():
			if b.logger != nil {
				b.logger.Info("queue stream disconnected", zap.String("subscriber", id))
			}
			return nil

		case <-keepalive.C:
			fmt.Fprintf(res, ": keepalive\n\n")
			res.Flush()

		case evt, ok := <-events:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(evt.Data)
			if err != nil {
				if b.logger != nil {
					b.logger.Error("encode stream event failed", zap.Error(err))
				}
				continue
			}
			fmt.Fprintf(res, "event: %s\ndata: %s\n\n", evt.Type, payload)
			res.Flush()
		}
	}
}
