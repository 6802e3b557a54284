// internal/pkg/metrics/metrics.go
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "clothify_cart"

// CartMetrics records cart reconciliation and backend traffic.
// A nil *CartMetrics is valid and records nothing.
type CartMetrics struct {
	mutations   *prometheus.CounterVec
	fetches     *prometheus.CounterVec
	adjustments prometheus.Counter
	enqueued    prometheus.Counter
	backend     *prometheus.HistogramVec
}

// NewCartMetrics registers the cart metrics on reg.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return nil
	}
	m := &CartMetrics{
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Cart mutations by operation and result.",
		}, []string{"op", "result"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_total",
			Help:      "Authoritative cart fetches by result.",
		}, []string{"result"}),
		adjustments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_adjustments_total",
			Help:      "Cart lines clamped to available stock.",
		}),
		enqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "corrections_enqueued_total",
			Help:      "Stock corrections deferred to the worker.",
		}),
		backend: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Latency of CLOTHIFY backend requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(m.mutations, m.fetches, m.adjustments, m.enqueued, m.backend)
	return m
}

// Mutation counts one mutation outcome.
func (m *CartMetrics) Mutation(op string, err error) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(op, result(err)).Inc()
}

// Fetch counts one cart fetch outcome.
func (m *CartMetrics) Fetch(err error) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(result(err)).Inc()
}

// Adjusted adds n clamped lines.
func (m *CartMetrics) Adjusted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.adjustments.Add(float64(n))
}

// Enqueued counts one deferred correction.
func (m *CartMetrics) Enqueued() {
	if m == nil {
		return
	}
	m.enqueued.Inc()
}

// ObserveBackend records one backend round trip. status 0 means transport failure.
func (m *CartMetrics) ObserveBackend(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.backend.WithLabelValues(method, route, code).Observe(d.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
