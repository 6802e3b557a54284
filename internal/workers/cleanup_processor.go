// internal/workers/cleanup_processor.go
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// StalePurger removes ledgers untouched since a cutoff.
type StalePurger interface {
	PurgeStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupProcessor purges abandoned ledgers from the database store.
type CleanupProcessor struct {
	store  StalePurger
	maxAge time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewCleanupProcessor creates a new cleanup processor
func NewCleanupProcessor(store StalePurger, maxAge time.Duration, logger *slog.Logger) *CleanupProcessor {
	return &CleanupProcessor{
		store:  store,
		maxAge: maxAge,
		now:    time.Now,
		logger: logger.With(slog.String("processor", "ledger_cleanup")),
	}
}

// CleanupStaleLedgers deletes ledger rows older than maxAge
func (p *CleanupProcessor) CleanupStaleLedgers(ctx context.Context, _ *asynq.Task) error {
	cutoff := p.now().Add(-p.maxAge)
	p.logger.InfoContext(ctx, "cleaning up stale ledgers", slog.Time("cutoff", cutoff))

	n, err := p.store.PurgeStale(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to cleanup stale ledgers: %w", err)
	}

	p.logger.InfoContext(ctx, "stale ledgers cleaned up", slog.Int64("rows_deleted", n))
	return nil
}
