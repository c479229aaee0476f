package queue

import (
	"context"
	"sync"
	"time"

	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/cache"
	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/entity"
)

// fakeFetcher serves a scripted sequence of responses; the last entry repeats
// once the script runs out.
type fakeFetcher struct {
	mu        sync.Mutex
	script    []fetchResult
	callCount int
}

type fetchResult struct {
	orders []entity.Order
	err    error
}

func newFakeFetcher(script ...fetchResult) *fakeFetcher {
	return &fakeFetcher{script: script}
}

func (f *fakeFetcher) ListOrders(ctx context.Context, store string) ([]entity.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.script) == 0 {
		return nil, nil
	}
	i := f.callCount
	if i >= len(f.script) {
		i = len(f.script) - 1
	}
	f.callCount++
	res := f.script[i]
	return res.orders, res.err
}

func (f *fakeFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callCount
}

// recListener records every callback for later assertions.
type recListener struct {
	mu        sync.Mutex
	updates   [][]entity.Order
	newOrders int
	errors    []error
}

func (l *recListener) OrdersUpdated(orders []entity.Order) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.updates = append(l.updates, orders)
}

func (l *recListener) NewOrder() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.newOrders++
}

func (l *recListener) SyncError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, err)
}

func (l *recListener) newOrderCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.newOrders
}

func (l *recListener) updateCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.updates)
}

func (l *recListener) lastUpdate() []entity.Order {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.updates) == 0 {
		return nil
	}
	return l.updates[len(l.updates)-1]
}

func (l *recListener) errorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors)
}

// memStore is an in-memory cache.Store for preference and snapshot tests.
type memStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	setErr error
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	value, ok := m.data[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return value, nil
}

func (m *memStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
