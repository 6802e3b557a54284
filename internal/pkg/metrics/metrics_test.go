package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCartMetrics(reg)
	require.NotNil(t, m)

	m.Mutation("increase", nil)
	m.Mutation("increase", errors.New("boom"))
	m.Mutation("increase", nil)
	m.Fetch(nil)
	m.Adjusted(2)
	m.Adjusted(0)
	m.Enqueued()
	m.ObserveBackend("PUT", "update_quantity", 200, 10*time.Millisecond)
	m.ObserveBackend("GET", "get_cart", 0, time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.mutations.WithLabelValues("increase", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.mutations.WithLabelValues("increase", "error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.fetches.WithLabelValues("ok")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.adjustments))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.enqueued))

	count, err := testutil.GatherAndCount(reg, "clothify_cart_backend_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCartMetrics_NilSafe(t *testing.T) {
	m := NewCartMetrics(nil)
	assert.Nil(t, m)

	assert.NotPanics(t, func() {
		m.Mutation("clear", nil)
		m.Fetch(errors.New("x"))
		m.Adjusted(1)
		m.Enqueued()
		m.ObserveBackend("GET", "get_cart", 500, time.Second)
	})
}

func TestHTTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	m.Start()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.inFlight))
	m.Observe("GET", "/api/v1/cart", 200, 5*time.Millisecond)

	assert.Equal(t, float64(0), testutil.ToFloat64(m.inFlight))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/v1/cart", "200")))

	var nilMetrics *HTTPMetrics
	assert.NotPanics(t, func() {
		nilMetrics.Start()
		nilMetrics.Observe("GET", "/", 200, time.Millisecond)
	})
}
