// internal/adapters/queue/asynq.go
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ammerola/clothify-cart/internal/core/domain"
	"github.com/ammerola/clothify-cart/internal/core/ports"
	"github.com/ammerola/clothify-cart/internal/workers"
)

// Enqueuer is the slice of *asynq.Client the queue needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Options tune how corrections are enqueued.
type Options struct {
	Queue     string
	MaxRetry  int
	UniqueTTL time.Duration
	Timeout   time.Duration
}

// AsynqCorrectionQueue defers failed stock corrections to the worker.
type AsynqCorrectionQueue struct {
	client Enqueuer
	opts   Options
	logger *slog.Logger
}

var _ ports.CorrectionQueue = (*AsynqCorrectionQueue)(nil)

// NewAsynqCorrectionQueue creates a queue over an asynq client.
func NewAsynqCorrectionQueue(client Enqueuer, opts Options, logger *slog.Logger) *AsynqCorrectionQueue {
	if opts.Queue == "" {
		opts.Queue = "default"
	}
	if opts.MaxRetry <= 0 {
		opts.MaxRetry = 5
	}
	if opts.UniqueTTL <= 0 {
		opts.UniqueTTL = 5 * time.Minute
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &AsynqCorrectionQueue{
		client: client,
		opts:   opts,
		logger: logger.With(slog.String("component", "correction_queue")),
	}
}

// EnqueueCorrection schedules the write. A correction already pending for
// the same line is not enqueued twice.
func (q *AsynqCorrectionQueue) EnqueueCorrection(ctx context.Context, c domain.StockCorrection) error {
	task, err := workers.NewStockCorrectionTask(c)
	if err != nil {
		return err
	}

	info, err := q.client.EnqueueContext(ctx, task,
		asynq.Queue(q.opts.Queue),
		asynq.MaxRetry(q.opts.MaxRetry),
		asynq.Unique(q.opts.UniqueTTL),
		asynq.Timeout(q.opts.Timeout),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			q.logger.DebugContext(ctx, "stock correction already pending",
				slog.String("customer_id", c.CustomerID),
				slog.String("line_id", c.LineID))
			return nil
		}
		return fmt.Errorf("failed to enqueue stock correction: %w", err)
	}

	q.logger.InfoContext(ctx, "stock correction queued",
		slog.String("task_id", info.ID),
		slog.String("customer_id", c.CustomerID),
		slog.String("line_id", c.LineID),
		slog.Int("quantity", c.Quantity))
	return nil
}
