package event

import (
	"sync"

	"github.com/veloure/storefront/internal/core/domain"
)

// ItemAdded fires only when a reservation actually granted units. Source
// tells observers where the add came from ("product-detail" shows its own
// confirmation, everything else gets the global toast), so the same action
// never produces two confirmations.
type ItemAdded struct {
	ProductID string
	Name      string
	Quantity  int
	Source    string
}

// Bus carries the cart's two notification kinds to subscribed observers.
// CartChanged fires after every persist; ItemAdded only on successful
// reservation. Delivery is synchronous, in subscription order.
type Bus struct {
	mu      sync.Mutex
	nextID  int
	changed map[int]func([]domain.CartLine)
	added   map[int]func(ItemAdded)
}

func NewBus() *Bus {
	return &Bus{
		changed: make(map[int]func([]domain.CartLine)),
		added:   make(map[int]func(ItemAdded)),
	}
}

// SubscribeCartChanged registers fn for cart-contents notifications and
// returns an unsubscribe func.
func (b *Bus) SubscribeCartChanged(fn func([]domain.CartLine)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.changed[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.changed, id)
	}
}

// SubscribeItemAdded registers fn for item-added notifications and returns an
// unsubscribe func.
func (b *Bus) SubscribeItemAdded(fn func(ItemAdded)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.added[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.added, id)
	}
}

func (b *Bus) PublishCartChanged(lines []domain.CartLine) {
	for _, fn := range b.changedSubscribers() {
		fn(lines)
	}
}

func (b *Bus) PublishItemAdded(ev ItemAdded) {
	for _, fn := range b.addedSubscribers() {
		fn(ev)
	}
}

// Subscriber slices are snapshotted under the lock so callbacks can
// unsubscribe without deadlocking.
func (b *Bus) changedSubscribers() []func([]domain.CartLine) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := make([]func([]domain.CartLine), 0, len(b.changed))
	for id := 0; id < b.nextID; id++ {
		if fn, ok := b.changed[id]; ok {
			subs = append(subs, fn)
		}
	}
	return subs
}

func (b *Bus) addedSubscribers() []func(ItemAdded) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := make([]func(ItemAdded), 0, len(b.added))
	for id := 0; id < b.nextID; id++ {
		if fn, ok := b.added[id]; ok {
			subs = append(subs, fn)
		}
	}
	return subs
}
