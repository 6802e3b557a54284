// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ContextKey represents keys for context values
type ContextKey string

const (
	ContextKeyRequestID  ContextKey = "request_id"
	ContextKeyCustomerID ContextKey = "customer_id"
)

// contextKeys are copied onto every record logged with a context.
var contextKeys = []ContextKey{ContextKeyRequestID, ContextKeyCustomerID}

// LogConfig holds logger configuration
type LogConfig struct {
	Level     string `json:"level"`
	Format    string `json:"format"` // json, text
	Output    string `json:"output"` // stdout, stderr, file:<path>
	AddSource bool   `json:"add_source"`
	// SampleRate keeps this share of debug and info records when in (0,1).
	SampleRate     float64 `json:"sample_rate"`
	Environment    string  `json:"environment"`
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	// AuditFile, when set, receives a JSON copy of every warn-or-worse record.
	AuditFile string `json:"audit_file"`
}

// Logger wraps slog.Logger; the embedded logger is what services receive.
type Logger struct {
	*slog.Logger
	config *LogConfig
}

// SetupLogger builds the process logger from level, format and the
// LOG_* / SERVICE_* environment, and installs it as the slog default.
func SetupLogger(level string, format string) *Logger {
	rate, _ := strconv.ParseFloat(os.Getenv("LOG_SAMPLE_RATE"), 64)
	l := NewLogger(&LogConfig{
		Level:          level,
		Format:         format,
		Output:         envOr("LOG_OUTPUT", "stdout"),
		AddSource:      level == "debug",
		SampleRate:     rate,
		ServiceName:    envOr("SERVICE_NAME", "clothify-cart"),
		ServiceVersion: os.Getenv("SERVICE_VERSION"),
		Environment:    os.Getenv("APP_ENV"),
		AuditFile:      os.Getenv("LOG_AUDIT_FILE"),
	})
	slog.SetDefault(l.Logger)
	return l
}

// NewLogger writes to config.Output
func NewLogger(config *LogConfig) *Logger {
	if config == nil {
		config = &LogConfig{Level: "info", Format: "json"}
	}
	return NewLoggerWithWriter(config, writerFor(config.Output))
}

// NewLoggerWithWriter builds the handler chain over w: format, optional
// audit copy, context enrichment, sampling, then sanitization outermost.
func NewLoggerWithWriter(config *LogConfig, w io.Writer) *Logger {
	if config == nil {
		config = &LogConfig{Level: "info", Format: "json"}
	}
	opts := &slog.HandlerOptions{
		Level:     parseLevel(config.Level),
		AddSource: config.AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			return replaceAttr(config.Format, a)
		},
	}

	var handler slog.Handler
	if config.Format == "text" {
		handler = NewPrettyTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	if config.AuditFile != "" {
		if f, err := os.OpenFile(config.AuditFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640); err == nil {
			handler = NewMultiHandler(handler, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelWarn}))
		}
	}
	handler = NewContextHandler(handler)
	if config.SampleRate > 0 && config.SampleRate < 1 {
		handler = NewSamplingHandler(handler, config.SampleRate)
	}
	handler = NewSanitizationHandler(handler)

	var attrs []slog.Attr
	if config.ServiceName != "" {
		attrs = append(attrs, slog.String("service_name", config.ServiceName))
	}
	if config.ServiceVersion != "" {
		attrs = append(attrs, slog.String("version", config.ServiceVersion))
	}
	if config.Environment != "" {
		attrs = append(attrs, slog.String("env", config.Environment))
	}
	if len(attrs) > 0 {
		handler = handler.WithAttrs(attrs)
	}

	return &Logger{Logger: slog.New(handler), config: config}
}

// WithContext returns a logger with the context's request attributes
// bound, for handing to code that logs without a context.
func (l *Logger) WithContext(ctx context.Context) *slog.Logger {
	if attrs := contextAttrs(ctx); len(attrs) > 0 {
		args := make([]any, len(attrs))
		for i, a := range attrs {
			args[i] = a
		}
		return l.Logger.With(args...)
	}
	return l.Logger
}

// WithRequestID stores a request id in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, id)
}

// RequestIDFromContext returns the request id stored in ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ContextKeyRequestID).(string)
	return id
}

// WithCustomerID stores the customer id in ctx for log enrichment.
func WithCustomerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ContextKeyCustomerID, id)
}

func contextAttrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var attrs []slog.Attr
	for _, key := range contextKeys {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			attrs = append(attrs, slog.String(string(key), v))
		}
	}
	return attrs
}

func parseLevel(level string) slog.Leveler {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func writerFor(output string) io.Writer {
	switch {
	case output == "stderr":
		return os.Stderr
	case strings.HasPrefix(output, "file:"):
		f, err := os.OpenFile(strings.TrimPrefix(output, "file:"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return os.Stdout
		}
		return f
	default:
		return os.Stdout
	}
}

// replaceAttr formats time as RFC3339Nano, renders *_ms durations as
// milliseconds and renames level to severity in JSON output.
func replaceAttr(format string, a slog.Attr) slog.Attr {
	switch {
	case a.Key == slog.TimeKey:
		if t, ok := a.Value.Any().(time.Time); ok {
			a.Value = slog.StringValue(t.Format(time.RFC3339Nano))
		}
	case a.Key == slog.LevelKey && format != "text":
		a.Key = "severity"
	case strings.HasSuffix(a.Key, "_ms"):
		if d, ok := a.Value.Any().(time.Duration); ok {
			a.Value = slog.Float64Value(float64(d.Milliseconds()))
		}
	}
	return a
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
