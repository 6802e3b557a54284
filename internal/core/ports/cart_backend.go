// internal/core/ports/cart_backend.go
package ports

import (
	"context"
	"encoding/json"

	"github.com/ammerola/clothify-cart/internal/core/domain"
)

// CartBackend is the CLOTHIFY REST backend as seen by the cart core.
// Failures are returned as *domain.Error.
type CartBackend interface {
	// GetCart returns the raw cart payload for the session's customer.
	GetCart(ctx context.Context, session domain.Session) (json.RawMessage, error)
	UpdateQuantity(ctx context.Context, session domain.Session, lineID string, quantity int) error
	RemoveLine(ctx context.Context, session domain.Session, lineID string) error
	ClearCart(ctx context.Context, session domain.Session) error
	AddToCart(ctx context.Context, session domain.Session, item domain.AddItem) error

	// GetProduct is a read-only catalog lookup used to resolve variant stock.
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
	Ping(ctx context.Context) error
}
