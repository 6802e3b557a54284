// internal/workers/correction_processor.go
package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/ammerola/clothify-cart/internal/core/domain"
	"github.com/ammerola/clothify-cart/internal/core/ports"
	"github.com/ammerola/clothify-cart/internal/pkg/logger"
)

// TokenSource supplies the service token the worker authenticates with.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// CorrectionProcessor retries stock corrections that failed during
// reconciliation.
type CorrectionProcessor struct {
	backend ports.CartBackend
	events  ports.CartEvents
	tokens  TokenSource
	logger  *slog.Logger
}

// NewCorrectionProcessor creates a new correction processor. events may be nil.
func NewCorrectionProcessor(backend ports.CartBackend, events ports.CartEvents, tokens TokenSource, logger *slog.Logger) *CorrectionProcessor {
	return &CorrectionProcessor{
		backend: backend,
		events:  events,
		tokens:  tokens,
		logger:  logger.With(slog.String("processor", "stock_correction")),
	}
}

// ProcessStockCorrection writes the clamped quantity, or removes the line
// when stock ran out. Rejections are final.
func (p *CorrectionProcessor) ProcessStockCorrection(ctx context.Context, t *asynq.Task) error {
	var c domain.StockCorrection
	if err := json.Unmarshal(t.Payload(), &c); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if c.CustomerID == "" || c.LineID == "" || c.Quantity < 0 {
		return fmt.Errorf("invalid stock correction %+v: %w", c, asynq.SkipRetry)
	}

	if c.RequestID != "" {
		ctx = logger.WithRequestID(ctx, c.RequestID)
	}
	ctx = logger.WithCustomerID(ctx, c.CustomerID)
	log := p.logger.With(
		slog.String("line_id", c.LineID),
		slog.Int("quantity", c.Quantity))

	token, err := p.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve service token: %w", err)
	}
	session := domain.Session{CustomerID: c.CustomerID, Token: token}

	if c.Quantity == 0 {
		err = p.backend.RemoveLine(ctx, session, c.LineID)
	} else {
		err = p.backend.UpdateQuantity(ctx, session, c.LineID, c.Quantity)
	}

	switch {
	case err == nil:
		log.InfoContext(ctx, "stock correction applied")
	case errors.Is(err, domain.ErrNotFound):
		log.InfoContext(ctx, "cart line gone, dropping correction")
		return nil
	case errors.Is(err, domain.ErrRejected):
		log.WarnContext(ctx, "stock correction rejected", slog.String("error", err.Error()))
		return fmt.Errorf("stock correction rejected: %v: %w", err, asynq.SkipRetry)
	case errors.Is(err, domain.ErrUnauthenticated):
		log.ErrorContext(ctx, "service token refused", slog.String("error", err.Error()))
		return fmt.Errorf("service token refused: %v: %w", err, asynq.SkipRetry)
	default:
		return fmt.Errorf("failed to apply stock correction: %w", err)
	}

	if p.events != nil {
		p.events.Publish(ctx, c.CustomerID)
	}
	return nil
}
