package invoice

import (
	"context"
	"time"

	"github.com/retailpos/sales-service/internal/model"
	"github.com/shopspring/decimal"
)

type UseCase interface {
	GetInvoice(ctx context.Context, id string) (*model.Invoice, error)
	// ApplyPayment reduces the amount due. Payments above the amount due
	// (beyond rounding tolerance) are rejected.
	ApplyPayment(ctx context.Context, invoiceID string, amount decimal.Decimal) (*model.Invoice, error)
	// ApplyRefundCredit settles part of the receivable when goods from the
	// underlying sale are refunded: the customer owes that much less.
	ApplyRefundCredit(ctx context.Context, invoiceID string, amount decimal.Decimal) (*model.Invoice, error)
	// CustomerBalance sums amount due across the customer's open invoices.
	CustomerBalance(ctx context.Context, customerID string) (decimal.Decimal, error)
	MarkOverdue(ctx context.Context, now time.Time) (int, error)
}
