package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "DRAFT"
	InvoiceStatusSent          InvoiceStatus = "SENT"
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoiceStatusPaid          InvoiceStatus = "PAID"
	InvoiceStatusOverdue       InvoiceStatus = "OVERDUE"
	InvoiceStatusCancelled     InvoiceStatus = "CANCELLED"
)

// Invoice is the receivable created when a credit sale is underpaid.
// Invariant: AmountDue = TotalAmount - AmountPaid, never negative. The
// customer's aggregate balance is derived exclusively from open invoices.
type Invoice struct {
	ID            string          `db:"id"`
	InvoiceNumber string          `db:"invoice_number"`
	SaleID        string          `db:"sale_id"`
	CustomerID    string          `db:"customer_id"`
	TotalAmount   decimal.Decimal `db:"total_amount"`
	AmountPaid    decimal.Decimal `db:"amount_paid"`
	AmountDue     decimal.Decimal `db:"amount_due"`
	Status        InvoiceStatus   `db:"status"`
	DueDate       time.Time       `db:"due_date"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

// Open reports whether the invoice still counts toward the customer balance.
func (i *Invoice) Open() bool {
	switch i.Status {
	case InvoiceStatusPaid, InvoiceStatusCancelled:
		return false
	default:
		return true
	}
}
