package sale

import (
	"context"

	"github.com/retailpos/sales-service/internal/model"
	"github.com/shopspring/decimal"
)

// StockEffect is one inventory consequence of a sale, void or refund:
// a signed delta against a product and optionally a specific batch. The
// repository applies every effect, its quantity-on-hand sync and its
// movement row inside the workflow's transaction.
type StockEffect struct {
	ProductID string
	BatchID   *string
	Delta     decimal.Decimal
	Type      model.MovementType
	Notes     string
}

type Repository interface {
	GetSale(ctx context.Context, id string) (*model.Sale, error)
	GetSaleByNumber(ctx context.Context, number string) (*model.Sale, error)

	// CreateSale persists the sale, its items, every stock effect and the
	// shortfall invoice (when owed) as one atomic unit. Sale and invoice
	// numbers are allocated inside the same transaction.
	CreateSale(ctx context.Context, sale *model.Sale, effects []StockEffect, inv *model.Invoice) error

	// VoidSale flips the status, restores stock and cancels the linked
	// open invoice in one transaction.
	VoidSale(ctx context.Context, sale *model.Sale, effects []StockEffect, cancelInvoice *model.Invoice) error

	// CreateRefund persists the refund with its items, applies stock
	// restores, marks the sale REFUNDED and settles the linked invoice in
	// one transaction.
	CreateRefund(ctx context.Context, refund *model.Refund, sale *model.Sale, effects []StockEffect, inv *model.Invoice) error

	// RefundedQuantities sums previously refunded quantity per sale item.
	RefundedQuantities(ctx context.Context, saleID string) (map[string]decimal.Decimal, error)
}

// CustomerLookup resolves the optional customer attached to a sale.
type CustomerLookup interface {
	FindCustomer(ctx context.Context, id string) (*model.Customer, error)
}
