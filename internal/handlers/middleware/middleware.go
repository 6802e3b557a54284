// internal/handlers/middleware/middleware.go
package middleware

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/ammerola/clothify-cart/internal/pkg/auth"
	"github.com/ammerola/clothify-cart/internal/pkg/logger"
	"github.com/ammerola/clothify-cart/internal/pkg/metrics"
)

// DefaultRequestIDHeader carries the request id in and out of the BFF.
const DefaultRequestIDHeader = "X-Request-ID"

// Chain applies middlewares so that the first one listed runs outermost.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// RequestID adds a unique request ID to each request, reusing one set by a
// proxy when present.
func RequestID(header string) func(http.Handler) http.Handler {
	if header == "" {
		header = DefaultRequestIDHeader
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(header)
			if requestID == "" {
				requestID = uuid.New().String()
			}

			w.Header().Set(header, requestID)
			next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), requestID)))
		})
	}
}

// Session resolves the customer session from the Authorization header and
// stores it on the request context.
func Session(resolver *auth.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := resolver.FromRequest(r)
			ctx := auth.WithSession(r.Context(), session)
			if session.CustomerID != "" {
				ctx = logger.WithCustomerID(ctx, session.CustomerID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// slowRequest marks a non-streaming request worth a warning.
const slowRequest = 5 * time.Second

// Logger logs one line per request. Health probes log at debug so they do
// not drown cart traffic.
func Logger(l *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)
			elapsed := time.Since(start)

			l.LogAttrs(r.Context(), requestLevel(r, rw, elapsed), "request_completed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("client_ip", getClientIP(r)),
				slog.Int("status", rw.statusCode),
				slog.Int("bytes", rw.bytesWritten),
				slog.Duration("duration_ms", elapsed),
			)
		})
	}
}

func requestLevel(r *http.Request, rw *responseWriter, elapsed time.Duration) slog.Level {
	switch {
	case rw.statusCode >= http.StatusInternalServerError:
		return slog.LevelError
	case rw.statusCode >= http.StatusBadRequest:
		return slog.LevelWarn
	case elapsed > slowRequest && !isEventStream(rw):
		return slog.LevelWarn
	case strings.HasPrefix(r.URL.Path, "/health"):
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// Recovery turns a handler panic into a 500 carrying the request id.
// http.ErrAbortHandler is re-raised so the server aborts the response.
func Recovery(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if p == http.ErrAbortHandler {
					panic(p)
				}
				requestID := logger.RequestIDFromContext(r.Context())
				l.ErrorContext(r.Context(), "panic recovered",
					slog.Any("panic", p),
					slog.String("stack", string(debug.Stack())))

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprintf(w, `{"error":"Internal Server Error","request_id":%q}`, requestID)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Metrics records request counts and latency per route.
func Metrics(m *metrics.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := newResponseWriter(w)
			m.Start()

			next.ServeHTTP(wrapped, r)

			m.Observe(r.Method, RouteLabel(r.URL.Path), wrapped.statusCode, time.Since(start))
		})
	}
}

// RouteLabel collapses id-like path segments so metric cardinality stays
// bounded.
func RouteLabel(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if looksLikeID(p) {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}

func looksLikeID(segment string) bool {
	if segment == "" {
		return false
	}
	if _, err := uuid.Parse(segment); err == nil {
		return true
	}
	for _, c := range segment {
		if !unicode.IsDigit(c) {
			return false
		}
	}
	return true
}

// RateLimit limits requests per client IP. Idle limiters are pruned as
// requests arrive.
func RateLimit(requests int, per time.Duration) func(http.Handler) http.Handler {
	rl := newIPLimiter(requests, per)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.allow(getClientIP(r), time.Now()) {
				w.Header().Set("Retry-After", "1")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"Rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type rateLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type ipLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*rateLimiter
	every     rate.Limit
	burst     int
	idle      time.Duration
	lastPrune time.Time
}

func newIPLimiter(requests int, per time.Duration) *ipLimiter {
	if requests <= 0 {
		requests = 1
	}
	if per <= 0 {
		per = time.Minute
	}
	return &ipLimiter{
		limiters: make(map[string]*rateLimiter),
		every:    rate.Every(per / time.Duration(requests)),
		burst:    requests,
		idle:     10 * time.Minute,
	}
}

func (l *ipLimiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastPrune) > l.idle {
		for key, rl := range l.limiters {
			if now.Sub(rl.lastSeen) > l.idle {
				delete(l.limiters, key)
			}
		}
		l.lastPrune = now
	}

	rl, ok := l.limiters[ip]
	if !ok {
		rl = &rateLimiter{limiter: rate.NewLimiter(l.every, l.burst)}
		l.limiters[ip] = rl
	}
	rl.lastSeen = now
	return rl.limiter.AllowN(now, 1)
}

var corsAllowHeaders = strings.Join([]string{
	"Accept", "Content-Type", "Authorization", DefaultRequestIDHeader, auth.CustomerIDHeader,
}, ", ")

// CORS lets the storefront origins call the cart API with credentials.
// Preflights are answered here and never reach the mux.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAll := false
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		origins[o] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			_, listed := origins[origin]
			if origin != "" && (allowAll || listed) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
				h.Set("Access-Control-Max-Age", "86400")
				h.Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SecureHeaders sets the headers a JSON API needs. HSTS only goes out over TLS.
func SecureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		if r.TLS != nil {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

// responseWriter captures status and size. It forwards Flush so event
// streams keep working behind it.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
	written      bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.ResponseWriter.WriteHeader(code)
		rw.written = true
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// Flush implements http.Flusher
func (rw *responseWriter) Flush() {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack implements http.Hijacker
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("ResponseWriter does not implement Hijacker")
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func isEventStream(rw *responseWriter) bool {
	return strings.HasPrefix(rw.Header().Get("Content-Type"), "text/event-stream")
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
