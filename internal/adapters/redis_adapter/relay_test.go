package redis_a_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/clothify-cart/internal/adapters/eventbus"
	redis_a "github.com/ammerola/clothify-cart/internal/adapters/redis_adapter"
	"github.com/ammerola/clothify-cart/test/helpers"
)

func TestEventRelay_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	logger := helpers.TestLogger()
	local := eventbus.New(logger)
	defer local.Close()

	relay := redis_a.NewEventRelay(client, "", local, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	ch, unsubscribe := relay.Subscribe("c1")
	defer unsubscribe()

	// Publish until the relay's subscription is live.
	require.Eventually(t, func() bool {
		relay.Publish(ctx, "c1")
		select {
		case <-ch:
			return true
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestEventRelay_FallsBackToLocal(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	logger := helpers.TestLogger()
	local := eventbus.New(logger)
	defer local.Close()

	relay := redis_a.NewEventRelay(client, "custom", local, logger)
	ch, unsubscribe := relay.Subscribe("c1")
	defer unsubscribe()

	relay.Publish(context.Background(), "c1")

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected local delivery")
	}
}
