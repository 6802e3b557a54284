// internal/core/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies cart failures.
type ErrorKind string

const (
	// KindUnauthenticated means no usable customer session.
	KindUnauthenticated ErrorKind = "unauthenticated"
	// KindNetwork is a transient transport or backend failure.
	KindNetwork ErrorKind = "network"
	// KindRejected is a business-rule rejection such as insufficient stock.
	KindRejected ErrorKind = "rejected"
	// KindNotFound means the cart line or product does not exist.
	KindNotFound ErrorKind = "not_found"
	// KindValidation is a malformed request caught before any backend call.
	KindValidation ErrorKind = "validation"
)

// Error codes for rejections detected locally.
const (
	CodeMaxStock        = "max_stock"
	CodeMinQuantity     = "min_quantity"
	CodeOutOfStock      = "out_of_stock"
	CodeVariantRequired = "variant_required"
	CodeInvalidQuantity = "invalid_quantity"
	CodeLineNotFound    = "line_not_found"
)

// Error is the cart failure type. Message is safe to show to the customer.
type Error struct {
	Kind    ErrorKind
	Code    string
	Op      string
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error on Kind, and on Code when the target sets one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

var (
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated, Message: "Please log in to manage your cart"}
	ErrNetwork         = &Error{Kind: KindNetwork}
	ErrRejected        = &Error{Kind: KindRejected}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrValidation      = &Error{Kind: KindValidation}

	ErrMaxStockReached = &Error{Kind: KindRejected, Code: CodeMaxStock, Message: "Maximum available quantity reached"}
	ErrMinQuantity     = &Error{Kind: KindRejected, Code: CodeMinQuantity, Message: "Minimum quantity is 1. Use remove to delete the item"}
	ErrOutOfStock      = &Error{Kind: KindRejected, Code: CodeOutOfStock, Message: "Product is out of stock"}
	ErrVariantRequired = &Error{Kind: KindValidation, Code: CodeVariantRequired, Message: "Please select color and size"}
	ErrInvalidQuantity = &Error{Kind: KindValidation, Code: CodeInvalidQuantity, Message: "Quantity must be at least 1"}
	ErrLineNotFound    = &Error{Kind: KindNotFound, Code: CodeLineNotFound, Message: "Cart item not found"}
)

// NewError builds an *Error for op.
func NewError(kind ErrorKind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// WithCode returns a copy of a sentinel bound to op and an optional message override.
func WithCode(sentinel *Error, op, message string) *Error {
	e := *sentinel
	e.Op = op
	if message != "" {
		e.Message = message
	}
	return &e
}

// KindOf returns the kind of err, or "" when err is not a cart error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// UserMessage returns the customer-facing message carried by err, or fallback.
func UserMessage(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}
