// internal/core/domain/stock.go
package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	variantListFields = []string{"variants", "product.variants"}
	flatStockFields   = []string{"stockQuantity", "availableStock", "stock", "quantityInStock", "inventory.quantityInStock"}
	productEnvelopes  = []string{"product", "data"}
)

// ResolveStock determines available stock for a line. A matching color/size
// variant wins, then flat stock fields on the line, then on its product.
// Lines built without a source record keep whatever stock they carry.
func ResolveStock(line CartLine) *int {
	rec := line.Source
	if rec == nil {
		return cloneInt(line.AvailableStock)
	}

	color, size := line.Color(), line.Size()
	if color != "" && size != "" {
		if q, ok := matchVariant(rec.Records(variantListFields...), color, size); ok {
			return IntPtr(max(q, 0))
		}
	}

	if q, ok := rec.Int(flatStockFields...); ok {
		return IntPtr(max(q, 0))
	}
	if product := rec.Sub("product"); product != nil {
		if q, ok := product.Int(flatStockFields...); ok {
			return IntPtr(max(q, 0))
		}
	}
	return nil
}

// ClampQuantity caps quantity at known stock.
func ClampQuantity(quantity int, stock *int) int {
	if stock == nil || quantity <= *stock {
		return quantity
	}
	return *stock
}

func matchVariant(variants []Record, color, size string) (int, bool) {
	for _, v := range variants {
		if !strings.EqualFold(v.String("color"), color) || !strings.EqualFold(v.String("size"), size) {
			continue
		}
		q, ok := v.Int("quantity", "stockQuantity", "stock")
		return q, ok
	}
	return 0, false
}

// VariantStock is the stock record of one product variant.
type VariantStock struct {
	VariantID string `json:"variant_id,omitempty"`
	SKU       string `json:"sku,omitempty"`
	Color     string `json:"color"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

// Product is the catalog read model used to resolve add-to-cart headroom.
type Product struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity *int            `json:"stock_quantity"`
	Variants      []VariantStock  `json:"variants,omitempty"`
}

// HasVariants reports whether stock is tracked per color/size.
func (p Product) HasVariants() bool {
	return len(p.Variants) > 0
}

// StockFor returns the stock for a color/size selection. Products with
// variants report 0 for an unmatched selection and nil when none is made.
func (p Product) StockFor(color, size string) *int {
	if !p.HasVariants() {
		return cloneInt(p.StockQuantity)
	}
	color, size = NormalizeVariantValue(color), NormalizeVariantValue(size)
	if color == "" || size == "" {
		return nil
	}
	for _, v := range p.Variants {
		if strings.EqualFold(v.Color, color) && strings.EqualFold(v.Size, size) {
			return IntPtr(max(v.Quantity, 0))
		}
	}
	return IntPtr(0)
}

// UnpackProduct decodes a product detail payload, bare or wrapped in
// {product: ...} or {data: ...}.
func UnpackProduct(payload []byte) (Product, error) {
	root, err := decodeJSON(payload)
	if err != nil {
		return Product{}, fmt.Errorf("failed to decode product payload: %w", err)
	}
	rec, ok := asMap(root)
	if !ok {
		return Product{}, fmt.Errorf("unexpected product payload")
	}
	for _, key := range productEnvelopes {
		if inner := Record(rec).Sub(key); inner != nil && inner.String("productId", "id") != "" {
			rec = inner
			break
		}
	}

	r := Record(rec)
	p := Product{
		ID:   r.String("productId", "id"),
		Name: r.String("productName", "name"),
	}
	if price, ok := r.Decimal("discountPrice", "price", "sellingPrice"); ok {
		p.Price = price
	}
	if q, ok := r.Int(flatStockFields...); ok {
		p.StockQuantity = IntPtr(max(q, 0))
	}
	for _, v := range r.Records("variants") {
		q, _ := v.Int("quantity", "stockQuantity", "stock")
		p.Variants = append(p.Variants, VariantStock{
			VariantID: v.String("variantId", "id"),
			SKU:       v.String("sku"),
			Color:     NormalizeVariantValue(v.String("color")),
			Size:      NormalizeVariantValue(v.String("size")),
			Quantity:  q,
		})
	}
	if p.ID == "" {
		return Product{}, fmt.Errorf("product payload has no id")
	}
	return p, nil
}
