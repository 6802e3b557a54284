// internal/adapters/redis_adapter/relay.go
package redis_a

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/ammerola/clothify-cart/internal/core/ports"
)

// DefaultEventsChannel carries cart-changed signals between API and worker
// processes. Messages are bare customer ids.
const DefaultEventsChannel = "cart:events"

// EventRelay publishes cart-changed signals through Redis pub/sub and feeds
// received signals into a process-local bus.
type EventRelay struct {
	client  *redis.Client
	channel string
	local   ports.CartEvents
	logger  *slog.Logger
}

var _ ports.CartEvents = (*EventRelay)(nil)

// NewEventRelay creates a relay over the given channel. An empty channel
// uses DefaultEventsChannel.
func NewEventRelay(client *redis.Client, channel string, local ports.CartEvents, logger *slog.Logger) *EventRelay {
	if channel == "" {
		channel = DefaultEventsChannel
	}
	return &EventRelay{
		client:  client,
		channel: channel,
		local:   local,
		logger:  logger.With(slog.String("component", "event_relay")),
	}
}

// Publish sends the signal to every process. When Redis is unreachable the
// signal is still delivered to local subscribers.
func (r *EventRelay) Publish(ctx context.Context, customerID string) {
	if err := r.client.Publish(ctx, r.channel, customerID).Err(); err != nil {
		r.logger.WarnContext(ctx, "failed to relay cart event, delivering locally",
			slog.String("customer_id", customerID),
			slog.String("error", err.Error()))
		r.local.Publish(ctx, customerID)
	}
}

// Subscribe registers with the local bus.
func (r *EventRelay) Subscribe(customerID string) (<-chan struct{}, func()) {
	return r.local.Subscribe(customerID)
}

// Run forwards relayed signals to the local bus until ctx is done.
func (r *EventRelay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	// Wait for the subscription to be confirmed before reading messages.
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	r.logger.InfoContext(ctx, "event relay started", slog.String("channel", r.channel))

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			r.local.Publish(ctx, msg.Payload)
		}
	}
}
