// internal/adapters/eventbus/eventbus.go
package eventbus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ammerola/clothify-cart/internal/core/ports"
)

// Bus is an in-process publish/subscribe store of "cart changed" signals,
// scoped per customer. Each subscriber owns a channel with room for one
// pending signal; publishes coalesce and never block.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]chan struct{}
	nextID uint64
	closed bool
	logger *slog.Logger
}

var _ ports.CartEvents = (*Bus)(nil)

// New creates an empty bus.
func New(logger *slog.Logger) *Bus {
	return &Bus{
		subs:   make(map[string]map[uint64]chan struct{}),
		logger: logger.With(slog.String("component", "eventbus")),
	}
}

// Subscribe registers for signals about customerID. The returned func
// unsubscribes and closes the channel; calling it again is a no-op.
func (b *Bus) Subscribe(customerID string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.nextID++
	id := b.nextID
	if b.subs[customerID] == nil {
		b.subs[customerID] = make(map[uint64]chan struct{})
	}
	b.subs[customerID][id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() { b.unsubscribe(customerID, id) })
	}
}

func (b *Bus) unsubscribe(customerID string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subs[customerID]
	if !ok {
		return
	}
	if ch, ok := subs[id]; ok {
		delete(subs, id)
		close(ch)
	}
	if len(subs) == 0 {
		delete(b.subs, customerID)
	}
}

// Publish signals every subscriber of customerID.
func (b *Bus) Publish(ctx context.Context, customerID string) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for _, ch := range b.subs[customerID] {
		select {
		case ch <- struct{}{}:
			delivered++
		default:
			// a signal is already pending
		}
	}
	b.logger.DebugContext(ctx, "published cart change",
		slog.String("customer_id", customerID),
		slog.Int("delivered", delivered))
}

// SubscriberCount returns the number of live subscriptions for customerID.
func (b *Bus) SubscriberCount(customerID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[customerID])
}

// Close closes every subscription channel. Later subscriptions receive an
// already-closed channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for customerID, subs := range b.subs {
		for id, ch := range subs {
			close(ch)
			delete(subs, id)
		}
		delete(b.subs, customerID)
	}
}
