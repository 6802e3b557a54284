// internal/core/domain/notice.go
package domain

import (
	"fmt"
	"time"
)

// NoticeLevel is the severity of a customer notification.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice codes.
const (
	NoticeMaxReached      = "max_reached"
	NoticeMinQuantity     = "min_quantity"
	NoticeStockAdjusted   = "stock_adjusted"
	NoticeOutOfStock      = "out_of_stock"
	NoticeQuantityClamped = "quantity_clamped"
	NoticeVariantRequired = "variant_required"
	NoticeMutationFailed  = "mutation_failed"
	NoticeFetchFailed     = "fetch_failed"
	NoticeAdded           = "added"
	NoticeRemoved         = "removed"
	NoticeCleared         = "cleared"
)

// Notice is a dismissible, non-blocking message for the customer.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	At      time.Time   `json:"at"`
}

// NewNotice stamps a notice with the current time.
func NewNotice(level NoticeLevel, code, message string) Notice {
	return Notice{Level: level, Code: code, Message: message, At: time.Now().UTC()}
}

// StockAdjustedNotice reports how many lines reconciliation clamped.
func StockAdjustedNotice(n int) Notice {
	msg := "1 item in your cart was adjusted to available stock"
	if n != 1 {
		msg = fmt.Sprintf("%d items in your cart were adjusted to available stock", n)
	}
	return NewNotice(NoticeWarning, NoticeStockAdjusted, msg)
}

// ClampedNotice reports an add-to-cart request reduced to the remaining headroom.
func ClampedNotice(added int) Notice {
	return NewNotice(NoticeWarning, NoticeQuantityClamped,
		fmt.Sprintf("Only %d available; added %d to your cart", added, added))
}

// AddedNotice confirms an add-to-cart.
func AddedNotice(name string, item AddItem) Notice {
	label := name
	if label == "" {
		label = "Item"
	}
	if v := NewVariant(item.Color, item.Size); v != nil {
		label = fmt.Sprintf("%s (%s / %s)", label, v.Color, v.Size)
	}
	return NewNotice(NoticeSuccess, NoticeAdded, fmt.Sprintf("%s added to cart", label))
}
