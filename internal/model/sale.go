package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type SaleStatus string

const (
	SaleStatusCompleted SaleStatus = "COMPLETED"
	SaleStatusVoid      SaleStatus = "VOID"
	SaleStatusRefunded  SaleStatus = "REFUNDED"
)

type SaleItemType string

const (
	SaleItemProduct SaleItemType = "PRODUCT"
	SaleItemService SaleItemType = "SERVICE"
	SaleItemCustom  SaleItemType = "CUSTOM"
)

// Sale is one completed (or voided/refunded) transaction.
//
// Invariants: ChangeAmount >= 0; TotalAmount = Subtotal - DiscountAmount +
// TaxAmount; Profit = (Subtotal - DiscountAmount) - TotalCost. Status only
// moves forward: COMPLETED -> VOID or COMPLETED -> REFUNDED.
type Sale struct {
	ID             string          `db:"id"`
	SaleNumber     string          `db:"sale_number"`
	CustomerID     *string         `db:"customer_id"`
	SaleDate       time.Time       `db:"sale_date"`
	Subtotal       decimal.Decimal `db:"subtotal"`
	TaxAmount      decimal.Decimal `db:"tax_amount"`
	DiscountAmount decimal.Decimal `db:"discount_amount"`
	TotalAmount    decimal.Decimal `db:"total_amount"`
	TotalCost      decimal.Decimal `db:"total_cost"`
	Profit         decimal.Decimal `db:"profit"`
	PaymentMethod  string          `db:"payment_method"`
	AmountPaid     decimal.Decimal `db:"amount_paid"`
	ChangeAmount   decimal.Decimal `db:"change_amount"`
	Status         SaleStatus      `db:"status"`
	CashierID      string          `db:"cashier_id"`
	Notes          string          `db:"notes"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`

	Items []SaleItem `db:"-"`
}

// SaleItem is one persisted line of a sale, immutable once written. A
// requested line may be split into several rows when FEFO allocation spans
// more than one batch; each row then references its own batch.
type SaleItem struct {
	ID             string          `db:"id"`
	SaleID         string          `db:"sale_id"`
	ProductID      *string         `db:"product_id"` // Nil for SERVICE/CUSTOM lines
	BatchID        *string         `db:"batch_id"`
	ItemType       SaleItemType    `db:"item_type"`
	Description    string          `db:"description"`
	Quantity       decimal.Decimal `db:"quantity"`
	UnitPrice      decimal.Decimal `db:"unit_price"`
	UnitCost       decimal.Decimal `db:"unit_cost"`
	DiscountAmount decimal.Decimal `db:"discount_amount"`
	TotalAmount    decimal.Decimal `db:"total_amount"`
	Profit         decimal.Decimal `db:"profit"`
	CreatedAt      time.Time       `db:"created_at"`
}

type RefundType string

const (
	RefundTypeFull    RefundType = "FULL"
	RefundTypePartial RefundType = "PARTIAL"
)

type Refund struct {
	ID                string          `db:"id"`
	RefundNumber      string          `db:"refund_number"`
	SaleID            string          `db:"sale_id"`
	RefundType        RefundType      `db:"refund_type"`
	Reason            string          `db:"reason"`
	Amount            decimal.Decimal `db:"amount"`
	ReturnToInventory bool            `db:"return_to_inventory"`
	CreatedBy         string          `db:"created_by"`
	CreatedAt         time.Time       `db:"created_at"`

	Items []RefundItem `db:"-"`
}

type RefundItem struct {
	ID         string          `db:"id"`
	RefundID   string          `db:"refund_id"`
	SaleItemID string          `db:"sale_item_id"`
	Quantity   decimal.Decimal `db:"quantity"`
	Amount     decimal.Decimal `db:"amount"`
	BatchID    *string         `db:"batch_id"`
	CreatedAt  time.Time       `db:"created_at"`
}
