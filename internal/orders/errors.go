package orders

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidOrder  = errors.New("invalid order")
	ErrOrderNotFound = errors.New("order not found")

	// Rejection kinds.
	ErrProductUnavailable = errors.New("product unavailable")
	ErrInsufficientStock  = errors.New("insufficient stock")

	// Stock verifier outcomes.
	ErrUnknownProduct     = errors.New("product does not exist")
	ErrServiceUnavailable = errors.New("inventory service unavailable")
)

// RejectedError explains why an order was refused before anything was persisted.
// errors.Is matches both the kind (ErrProductUnavailable, ErrInsufficientStock) and the cause.
type RejectedError struct {
	Kind        error
	Line        int // 1-based
	ProductID   int64
	ProductName string
	Requested   int
	Available   int
	Cause       error
}

func (e *RejectedError) Error() string {
	if errors.Is(e.Kind, ErrInsufficientStock) {
		return fmt.Sprintf("insufficient stock for product %q (id %d): requested %d, available %d",
			e.ProductName, e.ProductID, e.Requested, e.Available)
	}
	if e.Cause != nil {
		return fmt.Sprintf("product %d is unavailable: %v", e.ProductID, e.Cause)
	}
	return fmt.Sprintf("product %d is unavailable", e.ProductID)
}

func (e *RejectedError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// reason is the metrics label for a rejection.
func (e *RejectedError) reason() string {
	switch {
	case errors.Is(e.Kind, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(e.Cause, ErrServiceUnavailable):
		return "service_unavailable"
	default:
		return "product_unavailable"
	}
}
