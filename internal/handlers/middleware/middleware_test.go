package middleware_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/clothify-cart/internal/handlers/middleware"
	"github.com/ammerola/clothify-cart/internal/pkg/auth"
	"github.com/ammerola/clothify-cart/internal/pkg/logger"
	"github.com/ammerola/clothify-cart/internal/pkg/metrics"
)

func TestRequestID(t *testing.T) {
	var seen string
	wrapped := middleware.RequestID("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.RequestIDFromContext(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		wrapped.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/cart", nil))

		id := w.Header().Get(middleware.DefaultRequestIDHeader)
		assert.Len(t, id, 36)
		assert.Equal(t, id, seen)
	})

	t.Run("propagated_from_proxy", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/cart", nil)
		req.Header.Set(middleware.DefaultRequestIDHeader, "edge-7f3a")
		w := httptest.NewRecorder()
		wrapped.ServeHTTP(w, req)

		assert.Equal(t, "edge-7f3a", w.Header().Get(middleware.DefaultRequestIDHeader))
		assert.Equal(t, "edge-7f3a", seen)
	})

	t.Run("custom_header", func(t *testing.T) {
		custom := middleware.RequestID("X-Correlation-ID")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		req := httptest.NewRequest("GET", "/api/v1/cart", nil)
		req.Header.Set("X-Correlation-ID", "corr-1")
		w := httptest.NewRecorder()
		custom.ServeHTTP(w, req)

		assert.Equal(t, "corr-1", w.Header().Get("X-Correlation-ID"))
		assert.Empty(t, w.Header().Get(middleware.DefaultRequestIDHeader))
	})
}

func TestSession(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := auth.SessionFromContext(r.Context())
		w.Write([]byte(s.CustomerID + "|" + s.Token))
	})
	wrapped := middleware.Session(auth.NewResolver(""))(handler)

	req := httptest.NewRequest("GET", "/api/v1/cart", nil)
	req.Header.Set("Authorization", "Bearer opaque-token")
	req.Header.Set(auth.CustomerIDHeader, "42")
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)
	assert.Equal(t, "42|opaque-token", w.Body.String())

	w = httptest.NewRecorder()
	wrapped.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/cart", nil))
	assert.Equal(t, "|", w.Body.String())
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewLoggerWithWriter(&logger.LogConfig{Level: "debug", Format: "json"}, &buf)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("missing"))
	})

	wrapped := middleware.Chain(handler, middleware.RequestID(""), middleware.Logger(l))

	req := httptest.NewRequest("GET", "/api/v1/cart", nil)
	req.Header.Set("X-Request-ID", "test-123")
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "missing", w.Body.String())
	out := buf.String()
	assert.Contains(t, out, "request_completed")
	assert.Contains(t, out, `"status":404`)
	assert.Contains(t, out, `"request_id":"test-123"`)
	assert.Contains(t, out, `"severity":"WARN"`)
}

func TestRecovery(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := logger.WithRequestID(context.Background(), "req-9")

	t.Run("panic_becomes_500", func(t *testing.T) {
		wrapped := middleware.Recovery(log)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("ledger is nil")
		}))
		w := httptest.NewRecorder()
		wrapped.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/cart/items", nil).WithContext(ctx))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"error":"Internal Server Error","request_id":"req-9"}`, w.Body.String())
	})

	t.Run("abort_is_reraised", func(t *testing.T) {
		wrapped := middleware.Recovery(log)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic(http.ErrAbortHandler)
		}))
		assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
			wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/cart/events", nil))
		})
	})

	t.Run("no_panic_untouched", func(t *testing.T) {
		wrapped := middleware.Recovery(log)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("ok"))
		}))
		w := httptest.NewRecorder()
		wrapped.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/cart", nil))
		assert.Equal(t, "ok", w.Body.String())
	})
}

func TestRateLimit(t *testing.T) {
	wrapped := middleware.RateLimit(2, time.Second)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	steps := []struct {
		remote string
		xff    string
		want   int
	}{
		{remote: "10.0.0.1:1000", want: http.StatusOK},
		{remote: "10.0.0.1:1001", want: http.StatusOK},
		{remote: "10.0.0.1:1002", want: http.StatusTooManyRequests},
		{remote: "10.0.0.2:1000", want: http.StatusOK},
		// The first forwarded address is the client.
		{remote: "10.0.0.3:1000", xff: "10.0.0.1, 10.0.0.3", want: http.StatusTooManyRequests},
	}
	for i, step := range steps {
		req := httptest.NewRequest("GET", "/api/v1/cart", nil)
		req.RemoteAddr = step.remote
		if step.xff != "" {
			req.Header.Set("X-Forwarded-For", step.xff)
		}
		w := httptest.NewRecorder()
		wrapped.ServeHTTP(w, req)

		require.Equal(t, step.want, w.Code, "step %d", i)
		if step.want == http.StatusTooManyRequests {
			assert.Equal(t, "1", w.Header().Get("Retry-After"))
		}
	}
}

func TestCORS(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name           string
		allowedOrigins []string
		requestOrigin  string
		requestMethod  string
		expectedStatus int
		checkHeaders   func(*testing.T, http.Header)
	}{
		{
			name:           "allows_wildcard_origin",
			allowedOrigins: []string{"*"},
			requestOrigin:  "https://shop.clothify.test",
			requestMethod:  "GET",
			expectedStatus: http.StatusOK,
			checkHeaders: func(t *testing.T, headers http.Header) {
				assert.Equal(t, "https://shop.clothify.test", headers.Get("Access-Control-Allow-Origin"))
			},
		},
		{
			name:           "handles_preflight_request",
			allowedOrigins: []string{"https://shop.clothify.test"},
			requestOrigin:  "https://shop.clothify.test",
			requestMethod:  "OPTIONS",
			expectedStatus: http.StatusNoContent,
			checkHeaders: func(t *testing.T, headers http.Header) {
				assert.Contains(t, headers.Get("Access-Control-Allow-Headers"), auth.CustomerIDHeader)
				assert.NotEmpty(t, headers.Get("Access-Control-Allow-Methods"))
			},
		},
		{
			name:           "blocks_unallowed_origin",
			allowedOrigins: []string{"https://allowed.test"},
			requestOrigin:  "https://notallowed.test",
			requestMethod:  "GET",
			expectedStatus: http.StatusOK,
			checkHeaders: func(t *testing.T, headers http.Header) {
				assert.Empty(t, headers.Get("Access-Control-Allow-Origin"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := middleware.CORS(tt.allowedOrigins)(handler)

			req := httptest.NewRequest(tt.requestMethod, "/test", nil)
			req.Header.Set("Origin", tt.requestOrigin)
			w := httptest.NewRecorder()

			wrapped.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			tt.checkHeaders(t, w.Header())
		})
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewHTTPMetrics(reg)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	wrapped := middleware.Metrics(m)(handler)

	for _, path := range []string{"/api/v1/cart/items/11/increase", "/api/v1/cart/items/12/increase"} {
		wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", path, nil))
	}

	count, err := testutil.GatherAndCount(reg, "clothify_cart_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "line ids collapse into one series")
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "/api/v1/cart/items/:id", middleware.RouteLabel("/api/v1/cart/items/99"))
	assert.Equal(t, "/api/v1/cart/items/:id/decrease",
		middleware.RouteLabel("/api/v1/cart/items/7f9c0c5e-8e4b-4f63-9d35-2f7d3b0f0a11/decrease"))
	assert.Equal(t, "/api/v1/cart/quantity", middleware.RouteLabel("/api/v1/cart/quantity"))
}

func TestResponseWriterFlushes(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		require.NoError(t, http.NewResponseController(w).Flush())
	})

	logBuf := &bytes.Buffer{}
	l := logger.NewLoggerWithWriter(&logger.LogConfig{Level: "info"}, logBuf)
	wrapped := middleware.Chain(handler, middleware.Logger(l), middleware.Metrics(nil))

	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/cart/events", nil))
	assert.True(t, w.Flushed)
}

func TestLogger_HealthProbesAtDebug(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewLoggerWithWriter(&logger.LogConfig{Level: "info", Format: "json"}, &buf)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	wrapped := middleware.Logger(l)(ok)

	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health/live", nil))
	assert.Empty(t, buf.String())

	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/cart", nil))
	assert.Contains(t, buf.String(), `"path":"/api/v1/cart"`)
}
