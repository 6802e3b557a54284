// internal/core/domain/view.go
package domain

import "github.com/shopspring/decimal"

// CartView is a snapshot of a customer's cart as rendered by the storefront.
type CartView struct {
	CustomerID    string          `json:"customer_id"`
	Lines         []CartLine      `json:"lines"`
	Removing      []string        `json:"removing,omitempty"`
	ItemCount     int             `json:"item_count"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	OriginalTotal decimal.Decimal `json:"original_total"`
	Savings       decimal.Decimal `json:"savings"`
}

// NewCartView copies lines and computes totals.
func NewCartView(customerID string, lines []CartLine, removing []string) *CartView {
	v := &CartView{
		CustomerID:    customerID,
		Lines:         CloneLines(lines),
		Subtotal:      decimal.Zero,
		OriginalTotal: decimal.Zero,
	}
	if len(removing) > 0 {
		v.Removing = append([]string(nil), removing...)
	}
	for _, l := range lines {
		v.ItemCount += l.Quantity
		v.Subtotal = v.Subtotal.Add(l.LineTotal())
		v.OriginalTotal = v.OriginalTotal.Add(l.OriginalTotal())
	}
	v.Savings = v.OriginalTotal.Sub(v.Subtotal)
	return v
}

// Line returns the line with lineID.
func (v *CartView) Line(lineID string) (CartLine, bool) {
	for _, l := range v.Lines {
		if l.LineID == lineID {
			return l, true
		}
	}
	return CartLine{}, false
}

// Empty reports whether the cart has no lines.
func (v *CartView) Empty() bool {
	return len(v.Lines) == 0
}
