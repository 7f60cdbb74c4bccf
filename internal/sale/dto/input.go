package dto

import (
	"time"

	"github.com/retailpos/sales-service/internal/model"
	"github.com/shopspring/decimal"
)

type SaleLineInput struct {
	ItemType    model.SaleItemType
	ProductID   string // Required for PRODUCT lines
	Description string // Required for SERVICE/CUSTOM lines
	Quantity    decimal.Decimal
	// UnitPrice overrides the catalog selling price when set, preserving a
	// price quoted to the customer. Nil means price from the catalog.
	UnitPrice *decimal.Decimal
	// UnitCost and TaxRate overrides; the catalog stays the source of
	// truth when nil.
	UnitCost *decimal.Decimal
	TaxRate  *decimal.Decimal
	Discount decimal.Decimal
	// BatchID is a client hint only. Allocation is always resolved
	// server-side via FEFO so the preview and the actual debit cannot
	// diverge.
	BatchID *string
}

type CreateSaleInput struct {
	CustomerID    *string
	CashierID     string
	PaymentMethod string
	AmountPaid    decimal.Decimal
	// CartDiscount is the explicitly declared cart-level discount. It is
	// never inferred from client-supplied totals.
	CartDiscount decimal.Decimal
	Notes        string
	SaleDate     *time.Time // Optional backdated sale date
	Lines        []SaleLineInput
}

type RefundLineInput struct {
	SaleItemID string
	Quantity   decimal.Decimal
}

type RefundSaleInput struct {
	SaleID            string
	Reason            string
	ReturnToInventory bool
	ActorID           string
	Lines             []RefundLineInput
}
