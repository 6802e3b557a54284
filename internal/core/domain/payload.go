// internal/core/domain/payload.go
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Candidate field names per logical attribute, probed in order.
var (
	envelopeKeys = []string{"items", "cartItems", "cart"}

	lineIDFields        = []string{"cartItemId", "id", "itemId", "lineId"}
	productIDFields     = []string{"productId", "product.productId", "product.id"}
	productNameFields   = []string{"productName", "product.productName", "name", "product.name"}
	colorFields         = []string{"color", "selectedColor", "variant.color"}
	sizeFields          = []string{"size", "selectedSize", "variant.size"}
	quantityFields      = []string{"quantity", "qty"}
	imageFields         = []string{"imageUrl", "product.imageUrl"}
	unitPriceFields     = []string{"unitPrice", "discountPrice", "price", "product.discountPrice", "product.price", "sellingPrice", "product.sellingPrice"}
	originalPriceFields = []string{"originalPrice", "sellingPrice", "product.sellingPrice", "price", "product.price"}
)

// Record is a decoded JSON object from the backend.
type Record map[string]any

// Lookup resolves a dotted path. Null values count as absent.
func (r Record) Lookup(path string) (any, bool) {
	var cur any = map[string]any(r)
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// String returns the first path holding a string or number.
func (r Record) String(paths ...string) string {
	for _, p := range paths {
		v, ok := r.Lookup(p)
		if !ok {
			continue
		}
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return s
			}
		case json.Number:
			return t.String()
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		case int:
			return strconv.Itoa(t)
		case int64:
			return strconv.FormatInt(t, 10)
		}
	}
	return ""
}

// Int returns the first path holding a value convertible to an integer.
func (r Record) Int(paths ...string) (int, bool) {
	for _, p := range paths {
		v, ok := r.Lookup(p)
		if !ok {
			continue
		}
		if n, ok := toInt(v); ok {
			return n, true
		}
	}
	return 0, false
}

// Decimal returns the first path holding a value convertible to a decimal.
func (r Record) Decimal(paths ...string) (decimal.Decimal, bool) {
	for _, p := range paths {
		v, ok := r.Lookup(p)
		if !ok {
			continue
		}
		switch t := v.(type) {
		case json.Number:
			if d, err := decimal.NewFromString(t.String()); err == nil {
				return d, true
			}
		case string:
			if d, err := decimal.NewFromString(strings.TrimSpace(t)); err == nil {
				return d, true
			}
		case float64:
			return decimal.NewFromFloat(t), true
		case int:
			return decimal.NewFromInt(int64(t)), true
		case int64:
			return decimal.NewFromInt(t), true
		}
	}
	return decimal.Zero, false
}

// Sub returns the nested object at path, or nil.
func (r Record) Sub(path string) Record {
	v, ok := r.Lookup(path)
	if !ok {
		return nil
	}
	m, ok := asMap(v)
	if !ok {
		return nil
	}
	return m
}

// Records returns the objects of the first path holding a non-empty list.
func (r Record) Records(paths ...string) []Record {
	for _, p := range paths {
		v, ok := r.Lookup(p)
		if !ok {
			continue
		}
		list, ok := v.([]any)
		if !ok || len(list) == 0 {
			continue
		}
		out := make([]Record, 0, len(list))
		for _, item := range list {
			if m, ok := asMap(item); ok {
				out = append(out, m)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// UnpackCart decodes any of the cart payload envelopes the backend produces
// into an ordered sequence of lines. Unrecognized envelopes yield an empty cart.
func UnpackCart(payload []byte) ([]CartLine, error) {
	root, err := decodeJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode cart payload: %w", err)
	}

	items := envelopeItems(root)
	lines := make([]CartLine, 0, len(items))
	for _, item := range items {
		rec, ok := asMap(item)
		if !ok {
			continue
		}
		if line, ok := NormalizeLine(rec); ok {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// NormalizeLine maps one backend record onto a CartLine. It reports false for
// records with no product reference or a non-positive quantity.
func NormalizeLine(rec Record) (CartLine, bool) {
	productID := rec.String(productIDFields...)
	if productID == "" {
		return CartLine{}, false
	}

	quantity, ok := rec.Int(quantityFields...)
	if !ok {
		quantity = 1
	}
	if quantity < 1 {
		return CartLine{}, false
	}

	unit, _ := rec.Decimal(unitPriceFields...)
	original, ok := rec.Decimal(originalPriceFields...)
	if !ok || original.LessThan(unit) {
		original = unit
	}

	return CartLine{
		LineID:        rec.String(lineIDFields...),
		ProductID:     productID,
		ProductName:   rec.String(productNameFields...),
		ImageURL:      rec.String(imageFields...),
		Variant:       NewVariant(rec.String(colorFields...), rec.String(sizeFields...)),
		Quantity:      quantity,
		UnitPrice:     unit,
		OriginalPrice: original,
		Source:        rec,
	}, true
}

func envelopeItems(root any) []any {
	switch v := root.(type) {
	case []any:
		return v
	case map[string]any:
		for _, key := range envelopeKeys {
			switch inner := v[key].(type) {
			case []any:
				return inner
			case map[string]any:
				// {cart: {items: [...]}}
				if items := envelopeItems(inner); items != nil {
					return items
				}
			}
		}
	}
	return nil
}

func decodeJSON(payload []byte) (any, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, err
	}
	return root, nil
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Record:
		return m, true
	}
	return nil, false
}

// floatToInt truncates f. Values an int cannot hold are unresolvable, so a
// huge stock reads as unknown rather than wrapping to a negative count.
func floatToInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt || f < math.MinInt {
		return 0, false
	}
	return int(f), true
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n), true
		}
		if f, err := t.Float64(); err == nil {
			return floatToInt(f)
		}
	case float64:
		return floatToInt(t)
	case int:
		return t, true
	case int64:
		return int(t), true
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n, true
		}
	}
	return 0, false
}
