// internal/adapters/notify/notify.go
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ammerola/clothify-cart/internal/core/domain"
	"github.com/ammerola/clothify-cart/internal/core/ports"
)

// DefaultCapacity bounds the notices buffered per customer.
const DefaultCapacity = 20

// Recorder buffers notices per customer until a handler drains them into a
// response. Oldest notices are dropped once the buffer is full.
type Recorder struct {
	mu       sync.Mutex
	capacity int
	pending  map[string][]domain.Notice
}

var _ ports.Notifier = (*Recorder)(nil)

// NewRecorder creates a recorder holding up to capacity notices per customer.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recorder{capacity: capacity, pending: make(map[string][]domain.Notice)}
}

func (r *Recorder) Notify(_ context.Context, customerID string, notice domain.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := append(r.pending[customerID], notice)
	if over := len(list) - r.capacity; over > 0 {
		list = append([]domain.Notice(nil), list[over:]...)
	}
	r.pending[customerID] = list
}

// Drain returns and forgets the customer's pending notices, oldest first.
func (r *Recorder) Drain(customerID string) []domain.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.pending[customerID]
	delete(r.pending, customerID)
	if list == nil {
		return []domain.Notice{}
	}
	return list
}

// Peek returns the pending notices without draining them.
func (r *Recorder) Peek(customerID string) []domain.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Notice(nil), r.pending[customerID]...)
}

// LogNotifier writes notices to a logger.
type LogNotifier struct {
	logger *slog.Logger
}

var _ ports.Notifier = (*LogNotifier)(nil)

// NewLogNotifier creates a notifier that logs every notice.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With(slog.String("component", "notifier"))}
}

func (n *LogNotifier) Notify(ctx context.Context, customerID string, notice domain.Notice) {
	level := slog.LevelInfo
	switch notice.Level {
	case domain.NoticeWarning:
		level = slog.LevelWarn
	case domain.NoticeError:
		level = slog.LevelError
	}
	n.logger.Log(ctx, level, notice.Message,
		slog.String("customer_id", customerID),
		slog.String("code", notice.Code))
}

// Fanout delivers each notice to several notifiers.
type Fanout []ports.Notifier

func (f Fanout) Notify(ctx context.Context, customerID string, notice domain.Notice) {
	for _, n := range f {
		n.Notify(ctx, customerID, notice)
	}
}
