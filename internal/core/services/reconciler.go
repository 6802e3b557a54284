// internal/core/services/reconciler.go
package services

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/ammerola/clothify-cart/internal/core/domain"
	"github.com/ammerola/clothify-cart/internal/core/ports"
	"github.com/ammerola/clothify-cart/internal/pkg/logger"
	"github.com/ammerola/clothify-cart/internal/pkg/metrics"
)

// ReconcileResult is the stock-corrected cart.
type ReconcileResult struct {
	Lines []domain.CartLine
	// Adjusted counts lines whose quantity was clamped or that were dropped for zero stock.
	Adjusted int
	// Failed lists line ids whose correction could not be persisted.
	Failed []string
	// Removed lists line ids dropped because their stock is zero.
	Removed []string
}

// StockReconciler clamps cart lines to available stock and persists the
// corrections against the backend.
type StockReconciler struct {
	backend     ports.CartBackend
	queue       ports.CorrectionQueue
	concurrency int
	metrics     *metrics.CartMetrics
	logger      *slog.Logger
}

// NewStockReconciler creates a reconciler. queue may be nil, in which case
// failed corrections are only corrected locally until the next load.
func NewStockReconciler(backend ports.CartBackend, queue ports.CorrectionQueue, concurrency int, m *metrics.CartMetrics, logger *slog.Logger) *StockReconciler {
	return &StockReconciler{
		backend:     backend,
		queue:       queue,
		concurrency: concurrency,
		metrics:     m,
		logger:      logger.With(slog.String("service", "stock_reconciler")),
	}
}

type correction struct {
	lineID   string
	quantity int
	err      error
}

// Reconcile resolves stock for every line and clamps over-limit lines. All
// corrections are sent concurrently and awaited together; each line falls
// back independently, so a failed write still leaves the clamped quantity
// in the result.
func (r *StockReconciler) Reconcile(ctx context.Context, session domain.Session, lines []domain.CartLine) ReconcileResult {
	resolved := make([]domain.CartLine, len(lines))
	var corrections []*correction
	for i, line := range lines {
		line = line.Clone()
		line.AvailableStock = domain.ResolveStock(line)
		if line.OverStock() {
			corrections = append(corrections, &correction{
				lineID:   line.LineID,
				quantity: *line.AvailableStock,
			})
			line.Quantity = *line.AvailableStock
		}
		resolved[i] = line
	}

	result := ReconcileResult{Adjusted: len(corrections)}
	if len(corrections) > 0 {
		r.persist(ctx, session, corrections)
		r.metrics.Adjusted(len(corrections))
	}

	result.Lines = make([]domain.CartLine, 0, len(resolved))
	for _, line := range resolved {
		if line.Quantity < 1 {
			result.Removed = append(result.Removed, line.LineID)
			continue
		}
		result.Lines = append(result.Lines, line)
	}
	for _, c := range corrections {
		if c.err != nil {
			result.Failed = append(result.Failed, c.lineID)
		}
	}

	if result.Adjusted > 0 {
		r.logger.InfoContext(ctx, "reconciled cart against stock",
			slog.String("customer_id", session.CustomerID),
			slog.Int("adjusted", result.Adjusted),
			slog.Int("failed", len(result.Failed)),
			slog.Int("removed", len(result.Removed)))
	}
	return result
}

func (r *StockReconciler) persist(ctx context.Context, session domain.Session, corrections []*correction) {
	var g errgroup.Group
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}
	for _, c := range corrections {
		g.Go(func() error {
			c.err = r.write(ctx, session, c)
			return nil
		})
	}
	_ = g.Wait()

	for _, c := range corrections {
		if c.err == nil {
			continue
		}
		r.logger.WarnContext(ctx, "stock correction not persisted",
			slog.String("customer_id", session.CustomerID),
			slog.String("line_id", c.lineID),
			slog.Int("quantity", c.quantity),
			slog.String("error", c.err.Error()))
		r.enqueue(ctx, session, c)
	}
}

func (r *StockReconciler) write(ctx context.Context, session domain.Session, c *correction) error {
	if c.lineID == "" {
		return domain.NewError(domain.KindValidation, "correct stock", "", nil)
	}
	if c.quantity == 0 {
		return r.backend.RemoveLine(ctx, session, c.lineID)
	}
	return r.backend.UpdateQuantity(ctx, session, c.lineID, c.quantity)
}

func (r *StockReconciler) enqueue(ctx context.Context, session domain.Session, c *correction) {
	if r.queue == nil || c.lineID == "" || session.Anonymous() {
		return
	}
	err := r.queue.EnqueueCorrection(ctx, domain.StockCorrection{
		CustomerID: session.CustomerID,
		LineID:     c.lineID,
		Quantity:   c.quantity,
		RequestID:  logger.RequestIDFromContext(ctx),
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to enqueue stock correction",
			slog.String("line_id", c.lineID),
			slog.String("error", err.Error()))
		return
	}
	r.metrics.Enqueued()
}
