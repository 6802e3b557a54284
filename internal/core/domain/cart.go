// internal/core/domain/cart.go
package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// LowStockThreshold is the stock level at or below which a line is flagged as running low.
const LowStockThreshold = 5

// Variant selects a color/size specific, stock-tracked unit of a product.
type Variant struct {
	Color string `json:"color,omitempty"`
	Size  string `json:"size,omitempty"`
}

// NewVariant normalizes color and size and returns nil when neither is present.
func NewVariant(color, size string) *Variant {
	color, size = NormalizeVariantValue(color), NormalizeVariantValue(size)
	if color == "" && size == "" {
		return nil
	}
	return &Variant{Color: color, Size: size}
}

// NormalizeVariantValue trims and uppercases a color or size.
func NormalizeVariantValue(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// CartLine is one reconciled row of a customer's cart.
type CartLine struct {
	LineID         string          `json:"line_id"`
	ProductID      string          `json:"product_id"`
	ProductName    string          `json:"product_name,omitempty"`
	ImageURL       string          `json:"image_url,omitempty"`
	Variant        *Variant        `json:"variant,omitempty"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	OriginalPrice  decimal.Decimal `json:"original_price"`
	AvailableStock *int            `json:"available_stock"`

	// Source is the backend record the line was normalized from.
	Source Record `json:"-"`
}

// Color returns the normalized variant color or "".
func (l CartLine) Color() string {
	if l.Variant == nil {
		return ""
	}
	return l.Variant.Color
}

// Size returns the normalized variant size or "".
func (l CartLine) Size() string {
	if l.Variant == nil {
		return ""
	}
	return l.Variant.Size
}

// Key returns the ledger key for the line's product and variant.
func (l CartLine) Key() string {
	return LedgerKey(l.ProductID, l.Color(), l.Size())
}

// LineTotal returns unit price times quantity.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// OriginalTotal returns original price times quantity.
func (l CartLine) OriginalTotal() decimal.Decimal {
	return l.OriginalPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// HasDiscount reports whether the unit price is below the original price.
func (l CartLine) HasDiscount() bool {
	return l.UnitPrice.LessThan(l.OriginalPrice)
}

// StockKnown reports whether available stock could be resolved.
func (l CartLine) StockKnown() bool {
	return l.AvailableStock != nil
}

// AtStockLimit reports whether quantity has reached known stock.
func (l CartLine) AtStockLimit() bool {
	return l.AvailableStock != nil && l.Quantity >= *l.AvailableStock
}

// OverStock reports whether quantity exceeds known stock.
func (l CartLine) OverStock() bool {
	return l.AvailableStock != nil && l.Quantity > *l.AvailableStock
}

// LowStock reports whether known stock is positive and at or below LowStockThreshold.
func (l CartLine) LowStock() bool {
	return l.AvailableStock != nil && *l.AvailableStock > 0 && *l.AvailableStock <= LowStockThreshold
}

// Clone returns a copy that shares no pointers with l, except Source.
func (l CartLine) Clone() CartLine {
	c := l
	if l.Variant != nil {
		v := *l.Variant
		c.Variant = &v
	}
	c.AvailableStock = cloneInt(l.AvailableStock)
	return c
}

// CloneLines copies a slice of lines.
func CloneLines(lines []CartLine) []CartLine {
	out := make([]CartLine, len(lines))
	for i, l := range lines {
		out[i] = l.Clone()
	}
	return out
}

// LedgerKey builds the composite key used by the ledger and the line id map.
func LedgerKey(productID, color, size string) string {
	color, size = NormalizeVariantValue(color), NormalizeVariantValue(size)
	if color == "" && size == "" {
		return productID
	}
	return productID + "-" + color + "-" + size
}

// AddItem is an add-to-cart request.
type AddItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Color     string `json:"color,omitempty"`
	Size      string `json:"size,omitempty"`
}

// Key returns the ledger key the item will land under.
func (a AddItem) Key() string {
	return LedgerKey(a.ProductID, a.Color, a.Size)
}

// StockCorrection is a pending quantity write produced by reconciliation.
type StockCorrection struct {
	CustomerID string `json:"customer_id"`
	LineID     string `json:"line_id"`
	Quantity   int    `json:"quantity"`
	RequestID  string `json:"request_id,omitempty"`
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
