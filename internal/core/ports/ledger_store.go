// internal/core/ports/ledger_store.go
package ports

import (
	"context"

	"github.com/ammerola/clothify-cart/internal/core/domain"
)

// LedgerStore persists each customer's optimistic quantity ledger and its
// key to line id map between requests.
type LedgerStore interface {
	// Load returns the stored ledger, or an empty one when nothing is stored.
	Load(ctx context.Context, customerID string) (*domain.Ledger, error)
	Save(ctx context.Context, customerID string, ledger *domain.Ledger) error
	Delete(ctx context.Context, customerID string) error
}
