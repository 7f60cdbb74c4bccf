package invoice

import (
	"time"

	"github.com/google/uuid"
	"github.com/retailpos/sales-service/internal/model"
	"github.com/shopspring/decimal"
)

// BuildForShortfall constructs the single receivable owed for an underpaid
// credit sale. The caller persists it in the same transaction as the sale;
// a sale must never exist without its receivable when one is owed.
func BuildForShortfall(sale *model.Sale, customerID string, shortfall decimal.Decimal, dueDate time.Time) *model.Invoice {
	now := time.Now()
	return &model.Invoice{
		ID:          uuid.New().String(),
		SaleID:      sale.ID,
		CustomerID:  customerID,
		TotalAmount: sale.TotalAmount,
		AmountPaid:  sale.AmountPaid,
		AmountDue:   shortfall,
		Status:      model.InvoiceStatusSent,
		DueDate:     dueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Settle recomputes amount due and status after a payment or credit. Amount
// due never goes negative; the invariant amountDue = totalAmount -
// amountPaid holds after every call.
func Settle(inv *model.Invoice) {
	inv.AmountDue = inv.TotalAmount.Sub(inv.AmountPaid)
	if inv.AmountDue.IsNegative() {
		inv.AmountDue = decimal.Zero
	}

	switch {
	case inv.TotalAmount.IsZero() && inv.AmountPaid.IsZero():
		// The whole receivable was credited away before any payment.
		inv.Status = model.InvoiceStatusCancelled
	case inv.AmountDue.IsZero():
		inv.Status = model.InvoiceStatusPaid
	case inv.AmountPaid.IsPositive():
		inv.Status = model.InvoiceStatusPartiallyPaid
	}
	// Unpaid invoices with a balance keep their SENT/OVERDUE status.
	inv.UpdatedAt = time.Now()
}
