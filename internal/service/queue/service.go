package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/cache"
	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/config"
	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/dto"
	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/entity"
	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/messaging"
	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/observability"
	core "github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/queue"
	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/storefront"
	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/EdmilsonFernandes/EdEspetoHub-sub001/service/queue")

// Events is the sink for queue signals pushed to connected clients. The SSE
// broadcaster implements it; attached after construction during wiring.
type Events interface {
	OrdersUpdated(orders []dto.QueueOrder)
	NewOrder(sound bool)
	SyncError(message string, auth bool)
}

// Service orchestrates the production queue: it consumes sync refreshes,
// resolves stable item ordering for display, and applies operator mutations
// optimistically before committing them upstream.
type Service struct {
	client      *storefront.Client
	ordering    *core.OrderingIndex
	syncer      *core.Sync
	gate        *core.AlertGate
	cache       cache.Store
	snapshotTTL time.Duration
	elapsedWarn time.Duration
	store       string
	logger      *zap.Logger
	publisher   messaging.Client
	messaging   messagingConfig
	metrics     *observability.QueueMetrics

	mu     sync.Mutex
	events Events
	orders []entity.Order
}

// messagingConfig contains messaging specific knobs we care about.
type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Client    *storefront.Client
	Ordering  *core.OrderingIndex
	Syncer    *core.Sync
	Gate      *core.AlertGate
	Cache     cache.Store
	Config    config.Config
	Logger    *zap.Logger
	Publisher messaging.Client
	Metrics   *observability.QueueMetrics `optional:"true"`
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		client:      p.Client,
		ordering:    p.Ordering,
		syncer:      p.Syncer,
		gate:        p.Gate,
		cache:       p.Cache,
		snapshotTTL: p.Config.Queue.SnapshotTTL,
		elapsedWarn: p.Config.Queue.ElapsedWarn,
		store:       p.Config.Storefront.Store,
		logger:      p.Logger,
		publisher:   p.Publisher,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.Topic,
		},
		metrics: p.Metrics,
	}
}

// SetEvents attaches the client-facing event sink.
func (s *Service) SetEvents(events Events) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = events
}

// OrdersUpdated implements core.Listener: a refresh succeeded and this is
// the authoritative active list.
func (s *Service) OrdersUpdated(orders []entity.Order) {
	s.mu.Lock()
	s.orders = orders
	events := s.events
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.Refreshes.Inc()
		s.metrics.ActiveOrders.Set(float64(len(orders)))
	}

	views := s.buildViews(orders)
	s.storeSnapshot(orders)
	if events != nil {
		events.OrdersUpdated(views)
	}
}

// NewOrder implements core.Listener: at least one genuinely new order
// arrived in the last refresh. The alert gate decides whether the signal may
// carry the audio cue; a locked gate swallows it.
func (s *Service) NewOrder() {
	sound := s.gate.ShouldAnnounce()

	s.mu.Lock()
	events := s.events
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.NewOrders.Inc()
	}
	s.publishArrival()
	if events != nil {
		events.NewOrder(sound)
	}
}

// SyncError implements core.Listener: a refresh failed. Auth failures are
// flagged so clients can redirect to login; polling continues either way.
func (s *Service) SyncError(err error) {
	s.mu.Lock()
	events := s.events
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RefreshFailures.Inc()
	}

	if events != nil {
		events.SyncError(err.Error(), errorbank.IsAuth(err))
	}
}

// Active returns the current queue view, items in stable display order.
func (s *Service) Active() []dto.QueueOrder {
	s.mu.Lock()
	orders := s.orders
	s.mu.Unlock()
	return s.buildViews(orders)
}

// State reports the sound preference and gate state.
func (s *Service) State() dto.QueueState {
	return dto.QueueState{
		SoundEnabled: s.gate.Enabled(),
		GateState:    s.gate.State().String(),
		Store:        s.store,
	}
}

// Refresh triggers an immediate sync cycle.
func (s *Service) Refresh(ctx context.Context) {
	s.syncer.RefreshNow(ctx)
}

// Suspend pauses polling while every client reports itself hidden.
func (s *Service) Suspend() {
	s.syncer.Suspend()
}

// Resume lifts a suspension; an immediate refresh replaces the stale view.
func (s *Service) Resume(ctx context.Context) {
	s.syncer.Resume(ctx)
}

// SetSound toggles and persists the operator's sound preference.
func (s *Service) SetSound(ctx context.Context, enabled bool) error {
	if err := s.gate.SetEnabled(ctx, enabled); err != nil {
		if s.logger != nil {
			s.logger.Warn("sound preference write failed", zap.Error(err))
		}
	}
	return nil
}

// NotifyGesture records a qualifying user input event from a client.
func (s *Service) NotifyGesture() {
	s.gate.NotifyUserGesture()
}

// SetStatus transitions an order upstream and updates the local view. Orders
// leaving {pending, preparing} drop out of the queue.
func (s *Service) SetStatus(ctx context.Context, orderID, status string) (*dto.QueueOrder, error) {
	switch status {
	case entity.StatusPending, entity.StatusPreparing, entity.StatusDone, entity.StatusCancelled:
	default:
		return nil, errorbank.BadRequest("unknown status", errorbank.WithDetail("status", status))
	}

	ctx, span := serviceTracer.Start(ctx, "QueueService.SetStatus", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.status", status),
	))
	defer span.End()

	updated, err := s.client.UpdateStatus(ctx, orderID, status)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "storefront error")
		return nil, err
	}

	s.applyLocal(*updated)
	view := s.buildView(*updated)
	return &view, nil
}

// MutateItems applies an item edit optimistically, commits it upstream with
// the recomputed total, and reconciles with the server's answer. Items with
// quantity zero are dropped; an emptied order is auto-cancelled.
func (s *Service) MutateItems(ctx context.Context, orderID string, items []entity.OrderItem) (*dto.QueueOrder, error) {
	ctx, span := serviceTracer.Start(ctx, "QueueService.MutateItems", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.Int("items", len(items)),
	))
	defer span.End()

	s.mu.Lock()
	previous, found := s.findLocked(orderID)
	s.mu.Unlock()
	if !found {
		return nil, errorbank.NotFound("order not in active queue")
	}

	kept := make([]entity.OrderItem, 0, len(items))
	for _, item := range items {
		if item.Quantity < 0 {
			return nil, errorbank.Unprocessable("negative quantity", errorbank.WithDetail("product", item.ProductID))
		}
		if item.Quantity > 0 {
			kept = append(kept, item)
		}
	}

	if len(kept) == 0 {
		// Every line driven to zero: the order cannot be produced.
		return s.SetStatus(ctx, orderID, entity.StatusCancelled)
	}

	// Optimistic local apply; the ordering index picks up the new list on
	// the next resolve.
	optimistic := previous
	optimistic.Items = kept
	optimistic.Total = entity.ItemsTotal(kept)
	s.applyLocal(optimistic)

	updated, err := s.client.UpdateItems(ctx, orderID, kept, optimistic.Total)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "storefront error")
		// Roll the local view back; the next poll would fix it anyway, but
		// don't leave a lie on screen for a whole interval.
		s.applyLocal(previous)
		return nil, err
	}

	s.applyLocal(*updated)
	view := s.buildView(*updated)
	return &view, nil
}

// WarmStart restores the last published snapshot so a restarted edge serves
// a plausible view before the first poll completes. Best effort.
func (s *Service) WarmStart(ctx context.Context) {
	if s.cache == nil || s.store == "" {
		return
	}
	raw, err := s.cache.Get(ctx, s.snapshotKey())
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) && s.logger != nil {
			s.logger.Warn("queue snapshot read failed", zap.Error(err))
		}
		return
	}
	var orders []entity.Order
	if err := json.Unmarshal(raw, &orders); err != nil {
		if s.logger != nil {
			s.logger.Warn("queue snapshot corrupt; ignoring", zap.Error(err))
		}
		return
	}

	s.mu.Lock()
	if len(s.orders) == 0 {
		s.orders = orders
	}
	s.mu.Unlock()
}

func (s *Service) applyLocal(order entity.Order) {
	s.mu.Lock()
	next := make([]entity.Order, 0, len(s.orders)+1)
	replaced := false
	for _, existing := range s.orders {
		if existing.ID == order.ID {
			replaced = true
			if order.Active() {
				next = append(next, order)
			}
			continue
		}
		next = append(next, existing)
	}
	if !replaced && order.Active() {
		next = append(next, order)
	}
	s.orders = next
	events := s.events
	s.mu.Unlock()

	if events != nil {
		events.OrdersUpdated(s.buildViews(next))
	}
}

func (s *Service) findLocked(orderID string) (entity.Order, bool) {
	for _, order := range s.orders {
		if order.ID == orderID {
			return order, true
		}
	}
	return entity.Order{}, false
}

func (s *Service) buildViews(orders []entity.Order) []dto.QueueOrder {
	views := make([]dto.QueueOrder, len(orders))
	for i, order := range orders {
		views[i] = s.buildView(order)
	}
	return views
}

func (s *Service) buildView(order entity.Order) dto.QueueOrder {
	resolved := s.ordering.ResolveKeyed(order.ID, order.Items)
	items := make([]dto.QueueItem, len(resolved))
	for i, keyed := range resolved {
		items[i] = dto.QueueItem{
			Key:          keyed.Key.String(),
			ProductID:    keyed.Item.ProductID,
			Name:         keyed.Item.Name,
			Quantity:     keyed.Item.Quantity,
			UnitPrice:    keyed.Item.UnitPrice,
			CookingPoint: keyed.Item.CookingPoint,
			PassSkewer:   keyed.Item.PassSkewer,
			LineTotal:    keyed.Item.LineTotal(),
		}
	}

	waiting := time.Since(order.CreatedTime())
	elapsed := int64(waiting.Seconds())
	if elapsed < 0 {
		elapsed = 0
	}

	return dto.QueueOrder{
		ID:             order.ID,
		CustomerName:   order.CustomerName,
		CustomerPhone:  order.CustomerPhone,
		DeliveryType:   order.DeliveryType,
		TableNumber:    order.TableNumber,
		PaymentMethod:  order.PaymentMethod,
		Status:         order.Status,
		CreatedAt:      order.CreatedAt,
		ElapsedSeconds: elapsed,
		Delayed:        s.elapsedWarn > 0 && waiting >= s.elapsedWarn,
		Total:          order.Total,
		Items:          items,
	}
}

func (s *Service) snapshotKey() string {
	return fmt.Sprintf("queue:snapshot:%s", s.store)
}

func (s *Service) storeSnapshot(orders []entity.Order) {
	if s.cache == nil || s.store == "" {
		return
	}
	encoded, err := json.Marshal(orders)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.cache.Set(ctx, s.snapshotKey(), encoded, s.snapshotTTL); err != nil {
		if s.logger != nil {
			s.logger.Warn("queue snapshot write failed", zap.Error(err))
		}
	}
}

func (s *Service) publishArrival() {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	event := OrderArrivedEvent{
		Store:      s.store,
		OccurredAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("marshal order arrived", zap.Error(err))
		}
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.publisher.Publish(ctx, []byte("queue-"+s.store), payload); err != nil {
		if s.logger != nil {
			s.logger.Error("publish order arrived", zap.Error(err))
		}
	}
}

// OrderArrivedEvent is emitted when the sync loop detects a new order.
type OrderArrivedEvent struct {
	Store      string    `json:"store"`
	OccurredAt time.Time `json:"occurred_at"`
}
