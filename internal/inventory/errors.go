package inventory

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound = errors.New("product not found or inactive")
	ErrBatchNotFound   = errors.New("inventory batch not found")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrBatchMismatch   = errors.New("batch belongs to a different product")
	ErrLockNotAcquired = errors.New("inventory busy, please retry")
)

// InsufficientStockError reports a requested quantity that exceeds what is
// available across all active batches (or quantity on hand for non-batch
// products).
type InsufficientStockError struct {
	ProductID string
	SKU       string
	Name      string
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (%s): requested %s, available %s",
		e.Name, e.SKU, e.Requested.String(), e.Available.String())
}

// ConflictError marks a persistence-level conflict (a race-induced negative
// quantity guard, a serialization failure). The transaction rolled back with
// no partial effects; callers may retry.
type ConflictError struct {
	Op  string
	Err error
}

func (e *ConflictError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("conflict during %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("conflict during %s", e.Op)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// IsRetryable reports whether the error is a transient persistence conflict.
// Validation errors are never retryable.
func IsRetryable(err error) bool {
	var c *ConflictError
	return errors.As(err, &c) || errors.Is(err, ErrLockNotAcquired)
}
