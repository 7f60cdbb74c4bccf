package invoice

import (
	"context"
	"time"

	"github.com/retailpos/sales-service/internal/model"
	"github.com/shopspring/decimal"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*model.Invoice, error)
	// GetOpenBySale returns the non-terminal invoice linked to a sale, or
	// nil when the sale carries no open receivable.
	GetOpenBySale(ctx context.Context, saleID string) (*model.Invoice, error)
	UpdateAmounts(ctx context.Context, inv *model.Invoice) error
	// SumOpenAmountDue is the single source of truth for a customer's
	// outstanding balance.
	SumOpenAmountDue(ctx context.Context, customerID string) (decimal.Decimal, error)
	MarkOverdue(ctx context.Context, now time.Time) (int, error)
}
