// internal/core/ports/events.go
package ports

import (
	"context"

	"github.com/ammerola/clothify-cart/internal/core/domain"
)

// CartEvents broadcasts payload-free "cart changed" signals per customer.
// Subscribers re-query state themselves.
type CartEvents interface {
	Publish(ctx context.Context, customerID string)
	// Subscribe returns a signal channel and an idempotent unsubscribe func.
	Subscribe(customerID string) (<-chan struct{}, func())
}

// Notifier delivers dismissible customer notifications.
type Notifier interface {
	Notify(ctx context.Context, customerID string, notice domain.Notice)
}

// CorrectionQueue defers stock-correction writes that failed during reconciliation.
type CorrectionQueue interface {
	EnqueueCorrection(ctx context.Context, correction domain.StockCorrection) error
}
