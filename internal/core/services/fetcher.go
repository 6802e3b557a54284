// internal/core/services/fetcher.go
package services

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/ammerola/clothify-cart/internal/core/domain"
	"github.com/ammerola/clothify-cart/internal/core/ports"
	"github.com/ammerola/clothify-cart/internal/pkg/metrics"
)

const fetchFailedMessage = "We couldn't load your cart. Please try again."

// CartFetcher loads the authoritative cart and normalizes its payload.
type CartFetcher struct {
	backend ports.CartBackend
	metrics *metrics.CartMetrics
	logger  *slog.Logger
	group   singleflight.Group
}

// NewCartFetcher creates a new cart fetcher
func NewCartFetcher(backend ports.CartBackend, m *metrics.CartMetrics, logger *slog.Logger) *CartFetcher {
	return &CartFetcher{
		backend: backend,
		metrics: m,
		logger:  logger.With(slog.String("service", "cart_fetcher")),
	}
}

// Fetch returns the customer's cart lines in backend order. Anonymous
// sessions get an empty cart without touching the backend, and a customer
// without a cart yet is an empty cart rather than an error. Concurrent
// fetches for one customer share a single backend call, which outlives any
// one caller's cancellation.
func (f *CartFetcher) Fetch(ctx context.Context, session domain.Session) ([]domain.CartLine, error) {
	if session.Anonymous() {
		return []domain.CartLine{}, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := f.group.DoChan(session.CustomerID, func() (interface{}, error) {
		payload, err := f.backend.GetCart(shared, session)
		if err != nil {
			return nil, err
		}
		lines, err := domain.UnpackCart(payload)
		if err != nil {
			return nil, domain.NewError(domain.KindNetwork, "decode cart", "", err)
		}
		return lines, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, domain.NewError(domain.KindNetwork, "fetch cart", fetchFailedMessage, ctx.Err())
	}
	v, err := res.Val, res.Err
	f.metrics.Fetch(err)

	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			f.logger.DebugContext(ctx, "customer has no cart yet",
				slog.String("customer_id", session.CustomerID))
			return []domain.CartLine{}, nil
		case errors.Is(err, domain.ErrUnauthenticated):
			f.logger.WarnContext(ctx, "cart fetch rejected session",
				slog.String("customer_id", session.CustomerID))
			return nil, domain.NewError(domain.KindUnauthenticated, "fetch cart", domain.ErrUnauthenticated.Message, err)
		}
		f.logger.ErrorContext(ctx, "failed to fetch cart",
			slog.String("customer_id", session.CustomerID),
			slog.String("error", err.Error()))
		return nil, domain.NewError(domain.KindNetwork, "fetch cart", fetchFailedMessage, err)
	}

	lines := v.([]domain.CartLine)
	f.logger.DebugContext(ctx, "fetched cart",
		slog.String("customer_id", session.CustomerID),
		slog.Int("lines", len(lines)))
	return domain.CloneLines(lines), nil
}
