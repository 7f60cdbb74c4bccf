package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type BatchStatus string

const (
	BatchStatusActive      BatchStatus = "ACTIVE"
	BatchStatusDepleted    BatchStatus = "DEPLETED"
	BatchStatusExpired     BatchStatus = "EXPIRED"
	BatchStatusQuarantined BatchStatus = "QUARANTINED"
)

// InventoryBatch is a receipt lot of a product. Immutable once created
// except for RemainingQuantity and Status.
type InventoryBatch struct {
	ID                string          `db:"id"`
	ProductID         string          `db:"product_id"`
	BatchNumber       string          `db:"batch_number"`
	QuantityReceived  decimal.Decimal `db:"quantity_received"`
	RemainingQuantity decimal.Decimal `db:"remaining_quantity"`
	UnitCost          decimal.Decimal `db:"unit_cost"`
	ExpiryDate        *time.Time      `db:"expiry_date"` // Nullable; no-expiry lots deplete last
	Status            BatchStatus     `db:"status"`
	ReceivedAt        time.Time       `db:"received_at"`
	CreatedAt         time.Time       `db:"created_at"`
}

type MovementType string

const (
	MovementGoodsReceipt  MovementType = "GOODS_RECEIPT"
	MovementSale          MovementType = "SALE"
	MovementAdjustmentIn  MovementType = "ADJUSTMENT_IN"
	MovementAdjustmentOut MovementType = "ADJUSTMENT_OUT"
	MovementReturn        MovementType = "RETURN"
	MovementDamage        MovementType = "DAMAGE"
	MovementExpiry        MovementType = "EXPIRY"
	MovementTransferIn    MovementType = "TRANSFER_IN"
	MovementTransferOut   MovementType = "TRANSFER_OUT"
)

// StockMovement is an append-only ledger row. Never updated or deleted;
// both product and batch quantities reconcile against it.
type StockMovement struct {
	ID             string          `db:"id"`
	ProductID      string          `db:"product_id"`
	BatchID        *string         `db:"batch_id"`
	MovementType   MovementType    `db:"movement_type"`
	QuantityChange decimal.Decimal `db:"quantity_change"` // Signed delta
	QuantityBefore decimal.Decimal `db:"quantity_before"`
	QuantityAfter  decimal.Decimal `db:"quantity_after"`
	ReferenceType  *string         `db:"reference_type"`
	ReferenceID    *string         `db:"reference_id"`
	Notes          string          `db:"notes"`
	CreatedBy      *string         `db:"created_by"`
	CreatedAt      time.Time       `db:"created_at"`
}
