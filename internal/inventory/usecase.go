package inventory

import (
	"context"
	"time"

	"github.com/retailpos/sales-service/internal/inventory/dto"
	"github.com/retailpos/sales-service/internal/model"
	"github.com/shopspring/decimal"
)

type UseCase interface {
	// SelectForQuantity walks active batches in FEFO order and returns the
	// allocation plan for the required quantity. Read-only; nothing is
	// reserved.
	SelectForQuantity(ctx context.Context, productID string, required decimal.Decimal) ([]dto.BatchAllocation, error)
	// Availability returns sellable quantity per product: the active-batch
	// sum when the product has batches, quantity on hand otherwise.
	Availability(ctx context.Context, productIDs []string) (map[string]decimal.Decimal, error)
	PerformStockAdjustment(ctx context.Context, input *dto.AdjustStockInput) error
	ReceiveGoods(ctx context.Context, input *dto.ReceiveGoodsInput) (*model.InventoryBatch, error)
	MarkExpiredBatches(ctx context.Context, now time.Time) (int, error)
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error)
}
