package dto

import (
	"time"

	"github.com/retailpos/sales-service/internal/model"
	"github.com/shopspring/decimal"
)

type AdjustStockInput struct {
	ProductID    string
	BatchID      *string
	MovementType model.MovementType // ADJUSTMENT_IN/OUT, RETURN, DAMAGE, EXPIRY
	Quantity     decimal.Decimal    // Always positive; direction comes from the movement type
	Reason       string
	ReferenceID  string
	ActorID      string
}

type ReceiveGoodsInput struct {
	ProductID   string
	BatchNumber string
	Quantity    decimal.Decimal
	UnitCost    decimal.Decimal
	ExpiryDate  *time.Time
	ReferenceID string
	Notes       string
	ActorID     string
}
