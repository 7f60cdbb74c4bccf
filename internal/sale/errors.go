package sale

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrSaleNotFound     = errors.New("sale not found")
	ErrCustomerNotFound = errors.New("customer not found or inactive")
	// ErrInvalidLineItem covers a PRODUCT line without a product id, a
	// SERVICE/CUSTOM line without a description, and non-positive
	// quantities. Wrapped with the offending detail.
	ErrInvalidLineItem = errors.New("invalid line item")
	ErrInvalidDiscount = errors.New("discount cannot be negative or exceed the subtotal")
	// ErrFullPaymentRequired rejects walk-in underpayment: with no customer
	// attached there is nobody to carry the balance.
	ErrFullPaymentRequired = errors.New("full payment required for walk-in sales")
	// ErrInsufficientPermission rejects a credit sale when credit is not
	// authorized for this customer or disabled globally.
	ErrInsufficientPermission = errors.New("credit sales not permitted for this customer")
	ErrAlreadyVoided          = errors.New("sale is already voided")
	ErrSaleVoided             = errors.New("sale is voided")
	// ErrSaleRefunded rejects voiding a sale that already has refunds
	// applied; status moves forward only.
	ErrSaleRefunded = errors.New("sale has refunds applied and cannot be voided")
)

// RefundQuantityExceedsSoldError reports a refund line asking for more than
// was sold, net of earlier refunds against the same item.
type RefundQuantityExceedsSoldError struct {
	SaleItemID      string
	Description     string
	Sold            decimal.Decimal
	AlreadyRefunded decimal.Decimal
	Requested       decimal.Decimal
}

func (e *RefundQuantityExceedsSoldError) Error() string {
	return fmt.Sprintf("refund quantity exceeds sold for %q: sold %s, already refunded %s, requested %s",
		e.Description, e.Sold.String(), e.AlreadyRefunded.String(), e.Requested.String())
}
