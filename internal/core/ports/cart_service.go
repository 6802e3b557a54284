// internal/core/ports/cart_service.go
package ports

import (
	"context"

	"github.com/ammerola/clothify-cart/internal/core/domain"
)

// CartService is the cart state container used by handlers and the CLI.
type CartService interface {
	Load(ctx context.Context, session domain.Session) (*domain.CartView, error)
	Increase(ctx context.Context, session domain.Session, lineID string) (*domain.CartView, error)
	Decrease(ctx context.Context, session domain.Session, lineID string) (*domain.CartView, error)
	Remove(ctx context.Context, session domain.Session, lineID string) (*domain.CartView, error)
	SetQuantity(ctx context.Context, session domain.Session, item domain.AddItem) (*domain.CartView, error)
	Clear(ctx context.Context, session domain.Session) (*domain.CartView, error)

	// QuantityInCart counts units of a product, or of one variant when color
	// and size are given. It never blocks on the network.
	QuantityInCart(customerID, productID, color, size string) int
	View(customerID string) *domain.CartView
	// Prime loads the persisted ledger for a customer with no in-memory state.
	Prime(ctx context.Context, customerID string) error
	Subscribe(customerID string) (<-chan struct{}, func())
}
