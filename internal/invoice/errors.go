package invoice

import "errors"

var (
	ErrInvoiceNotFound  = errors.New("invoice not found")
	ErrInvoiceClosed    = errors.New("invoice is paid or cancelled")
	ErrPaymentExceeds   = errors.New("payment exceeds amount due")
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrCustomerNotFound = errors.New("customer not found")
)
