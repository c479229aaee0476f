package queue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/entity"
)

// OrderFetcher retrieves the authoritative order list for a store.
type OrderFetcher interface {
	ListOrders(ctx context.Context, store string) ([]entity.Order, error)
}

// Listener receives the outcome of every refresh. OrdersUpdated fires after
// each successful fetch, NewOrder at most once per refresh cycle, SyncError
// on failed fetches (display state only; polling continues).
type Listener interface {
	OrdersUpdated(orders []entity.Order)
	NewOrder()
	SyncError(err error)
}

// Sync maintains an eventually-consistent local view of a store's active
// orders by polling the storefront API, and signals the arrival of genuinely
// new orders exactly once per arrival.
type Sync struct {
	fetcher  OrderFetcher
	store    string
	interval time.Duration
	logger   *zap.Logger

	mu        sync.Mutex
	listener  Listener
	prev      map[string]struct{}
	suspended bool
	stopped   bool
	started   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewSync constructs a synchronizer for the given store. Intervals of zero
// or below fall back to five seconds.
func NewSync(fetcher OrderFetcher, store string, interval time.Duration, logger *zap.Logger) *Sync {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Sync{
		fetcher:  fetcher,
		store:    store,
		interval: interval,
		logger:   logger,
		prev:     make(map[string]struct{}),
	}
}

// SetListener attaches the consumer of refresh outcomes. Called once during
// wiring, after both sides exist.
func (s *Sync) SetListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = l
}

// Start launches the poll loop. A missing store identifier means the session
// is not yet bound to a store; Start logs and stays idle rather than failing.
func (s *Sync) Start(ctx context.Context) error {
	if s.store == "" {
		if s.logger != nil {
			s.logger.Info("queue sync idle: no store identifier configured")
		}
		return nil
	}

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.stopped = false
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.pollLoop(runCtx)
	}()

	if s.logger != nil {
		s.logger.Info("queue sync started",
			zap.String("store", s.store),
			zap.Duration("interval", s.interval),
		)
	}
	return nil
}

// Stop halts the poll loop. Idempotent; a fetch already in flight has its
// result discarded rather than cancelled.
func (s *Sync) Stop() {
	s.mu.Lock()
	if s.stopped || !s.started {
		s.stopped = true
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.started = false
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	if s.logger != nil {
		s.logger.Info("queue sync stopped")
	}
}

// Suspend pauses refreshes while the client reports itself hidden. The loop
// keeps ticking; ticks are skipped.
func (s *Sync) Suspend() {
	s.mu.Lock()
	s.suspended = true
	s.mu.Unlock()
}

// Resume lifts a suspension and refreshes immediately, so a returning client
// never stares at a stale queue for a full interval.
func (s *Sync) Resume(ctx context.Context) {
	s.mu.Lock()
	wasSuspended := s.suspended
	s.suspended = false
	s.mu.Unlock()

	if wasSuspended {
		s.RefreshNow(ctx)
	}
}

func (s *Sync) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Prime the view right away rather than waiting out the first interval.
	s.RefreshNow(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			skip := s.suspended
			s.mu.Unlock()
			if skip {
				continue
			}
			s.RefreshNow(ctx)
		}
	}
}

// RefreshNow performs a single fetch-diff-publish cycle. Refreshes may
// overlap when the round trip outlasts the interval; no mutual exclusion is
// applied and the last response to resolve wins.
func (s *Sync) RefreshNow(ctx context.Context) {
	orders, err := s.fetcher.ListOrders(ctx, s.store)

	s.mu.Lock()
	if s.stopped {
		// Response landed after Stop; drop it.
		s.mu.Unlock()
		return
	}
	listener := s.listener
	if err != nil {
		// The previous-ID snapshot must survive transient failures so the
		// next successful fetch does not re-announce known orders.
		s.mu.Unlock()
		if s.logger != nil {
			s.logger.Warn("queue refresh failed", zap.String("store", s.store), zap.Error(err))
		}
		if listener != nil {
			listener.SyncError(err)
		}
		return
	}

	active := make([]entity.Order, 0, len(orders))
	ids := make(map[string]struct{}, len(orders))
	arrived := false
	for _, order := range orders {
		if !order.Active() {
			continue
		}
		active = append(active, order)
		ids[order.ID] = struct{}{}
		if _, seen := s.prev[order.ID]; !seen {
			arrived = true
		}
	}
	s.prev = ids
	s.mu.Unlock()

	if listener == nil {
		return
	}
	if arrived {
		listener.NewOrder()
	}
	listener.OrdersUpdated(active)
}
