package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// BatchAllocation is one slice of a FEFO pick: how much of the demand a
// single batch covers.
type BatchAllocation struct {
	BatchID     string
	BatchNumber string
	Quantity    decimal.Decimal
	UnitCost    decimal.Decimal
	ExpiryDate  *time.Time
}

type MovementFilters struct {
	ProductID    string
	BatchID      string
	MovementType string
	StartDate    *time.Time
	EndDate      *time.Time
	Page         int
	PageSize     int
}
