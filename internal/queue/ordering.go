package queue

import (
	"fmt"
	"sort"
	"sync"

	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/entity"
)

// SlotKey is the display identity of an item slot: two items belong to the
// same slot when product, cooking point and pass-skewer flag all match. It is
// a composite value type rather than a delimited string so that field values
// containing the delimiter cannot collide.
type SlotKey struct {
	Product      string
	CookingPoint string
	PassSkewer   bool
}

// StableKey pairs a slot with an occurrence number so that repeated identical
// slots (two separately added "medium, no skewer" lines) stay distinct.
type StableKey struct {
	Slot       SlotKey
	Occurrence int
}

// String renders the key in its base::occurrence wire form. Used for row
// keying in API payloads only; identity comparisons use the struct value.
func (k StableKey) String() string {
	skewer := "0"
	if k.Slot.PassSkewer {
		skewer = "1"
	}
	return fmt.Sprintf("%s|%s|%s::%d", k.Slot.Product, k.Slot.CookingPoint, skewer, k.Occurrence)
}

func slotKeyFor(item entity.OrderItem, inputPos int) SlotKey {
	product := item.ProductID
	if product == "" {
		product = item.Name
	}
	if product == "" {
		// No identity fields at all: the item becomes its own slot, keyed by
		// its position in the input so repeated calls with the same payload
		// stay deterministic.
		product = fmt.Sprintf("\x00anon:%d", inputPos)
	}
	return SlotKey{
		Product:      product,
		CookingPoint: item.CookingPoint,
		PassSkewer:   item.PassSkewer,
	}
}

// positionIndex holds the display position assigned to every stable key of a
// single order. Positions grow monotonically and are never renumbered or
// reused while the process lives.
type positionIndex struct {
	positions map[StableKey]int
}

func newPositionIndex() *positionIndex {
	return &positionIndex{positions: make(map[StableKey]int)}
}

// OrderingIndex derives a deterministic per-order item sequence that survives
// quantity edits, additions and removals between refreshes. State is
// session-scoped and in-memory only; an order leaving the active set simply
// leaves its index orphaned.
type OrderingIndex struct {
	mu     sync.Mutex
	orders map[string]*positionIndex
}

// NewOrderingIndex constructs an empty session-scoped ordering index.
func NewOrderingIndex() *OrderingIndex {
	return &OrderingIndex{orders: make(map[string]*positionIndex)}
}

// Resolve returns the order's items sorted into their established display
// sequence, assigning fresh stable keys for slots seen for the first time.
// Item attributes are returned unchanged; only the slice order differs.
//
// A removed slot keeps its position, so re-adding an identical item restores
// it to where it was instead of appending it at the end. An empty input
// leaves the order's index intact.
func (x *OrderingIndex) Resolve(orderID string, items []entity.OrderItem) []entity.OrderItem {
	resolved := x.ResolveKeyed(orderID, items)
	out := make([]entity.OrderItem, len(resolved))
	for i, r := range resolved {
		out[i] = r.Item
	}
	return out
}

// KeyedItem carries an item together with its resolved stable key, for
// callers that need row identity (the SSE payloads and queue views).
type KeyedItem struct {
	Key  StableKey
	Item entity.OrderItem
}

// ResolveKeyed is Resolve with the assigned stable keys exposed.
func (x *OrderingIndex) ResolveKeyed(orderID string, items []entity.OrderItem) []KeyedItem {
	x.mu.Lock()
	defer x.mu.Unlock()

	idx := x.orders[orderID]
	if idx == nil {
		idx = newPositionIndex()
		x.orders[orderID] = idx
	}

	// Occurrences are numbered densely per slot, so the per-call consumption
	// count doubles as the occurrence to claim: it reuses an existing key
	// while any remain, and is exactly one past the highest known occurrence
	// when they are exhausted.
	consumed := make(map[SlotKey]int)

	type placed struct {
		key  StableKey
		item entity.OrderItem
		pos  int
	}
	ordered := make([]placed, 0, len(items))
	for i, item := range items {
		slot := slotKeyFor(item, i)
		key := StableKey{Slot: slot, Occurrence: consumed[slot]}
		consumed[slot]++

		pos, ok := idx.positions[key]
		if !ok {
			pos = len(idx.positions)
			idx.positions[key] = pos
		}
		ordered = append(ordered, placed{key: key, item: item, pos: pos})
	}

	sort.SliceStable(ordered, func(a, b int) bool {
		return ordered[a].pos < ordered[b].pos
	})

	out := make([]KeyedItem, len(ordered))
	for i, p := range ordered {
		out[i] = KeyedItem{Key: p.key, Item: p.item}
	}
	return out
}

// TrackedOrders reports how many orders currently hold index entries.
func (x *OrderingIndex) TrackedOrders() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.orders)
}
