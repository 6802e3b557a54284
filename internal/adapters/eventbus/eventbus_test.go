package eventbus_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ammerola/clothify-cart/internal/adapters/eventbus"
	"github.com/ammerola/clothify-cart/test/helpers"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func receive(t *testing.T, ch <-chan struct{}) bool {
	t.Helper()
	select {
	case _, ok := <-ch:
		return ok
	case <-time.After(100 * time.Millisecond):
		return false
	}
}

func TestBus_PublishReachesOnlyThatCustomer(t *testing.T) {
	bus := eventbus.New(helpers.TestLogger())
	defer bus.Close()

	a, unsubA := bus.Subscribe("a")
	defer unsubA()
	b, unsubB := bus.Subscribe("b")
	defer unsubB()

	bus.Publish(context.Background(), "a")

	assert.True(t, receive(t, a))
	assert.False(t, receive(t, b))
}

func TestBus_Coalesces(t *testing.T) {
	bus := eventbus.New(helpers.TestLogger())
	defer bus.Close()

	ch, unsub := bus.Subscribe("a")
	defer unsub()

	for i := 0; i < 10; i++ {
		bus.Publish(context.Background(), "a")
	}
	assert.True(t, receive(t, ch))
	assert.False(t, receive(t, ch), "pending signals collapse into one")
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := eventbus.New(helpers.TestLogger())
	defer bus.Close()

	ch, unsub := bus.Subscribe("a")
	require.Equal(t, 1, bus.SubscriberCount("a"))

	unsub()
	unsub()
	assert.Equal(t, 0, bus.SubscriberCount("a"))

	_, ok := <-ch
	assert.False(t, ok, "channel is closed on unsubscribe")

	assert.NotPanics(t, func() { bus.Publish(context.Background(), "a") })
}

func TestBus_Close(t *testing.T) {
	bus := eventbus.New(helpers.TestLogger())
	ch, unsub := bus.Subscribe("a")
	bus.Close()

	_, ok := <-ch
	assert.False(t, ok)
	assert.NotPanics(t, unsub)

	late, _ := bus.Subscribe("a")
	_, ok = <-late
	assert.False(t, ok)
}

func TestBus_ConcurrentUse(t *testing.T) {
	bus := eventbus.New(helpers.TestLogger())
	defer bus.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			ch, unsub := bus.Subscribe("a")
			defer unsub()
			bus.Publish(context.Background(), "a")
			<-ch
		}()
		go func() {
			defer wg.Done()
			bus.Publish(context.Background(), "a")
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, bus.SubscriberCount("a"))
}
