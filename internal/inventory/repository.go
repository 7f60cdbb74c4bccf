package inventory

import (
	"context"
	"time"

	"github.com/retailpos/sales-service/internal/inventory/dto"
	"github.com/retailpos/sales-service/internal/model"
	"github.com/shopspring/decimal"
)

type Repository interface {
	// Batches
	GetBatch(ctx context.Context, id string) (*model.InventoryBatch, error)
	// ActiveBatches returns batches with remaining quantity in FEFO order:
	// expiry ascending, undated batches last, then received date ascending.
	ActiveBatches(ctx context.Context, productID string) ([]model.InventoryBatch, error)
	// AvailableByProducts returns the summed remaining quantity of active
	// batches per product. Products with no active batches are absent from
	// the map so callers can fall back to quantity on hand.
	AvailableByProducts(ctx context.Context, productIDs []string) (map[string]decimal.Decimal, error)

	// Transactional stock effects. Each call is one atomic unit: quantity
	// guards, product quantity-on-hand sync and the movement row commit or
	// roll back together.
	CreateBatchWithMovement(ctx context.Context, batch *model.InventoryBatch, movement *model.StockMovement) error
	AdjustStockWithMovement(ctx context.Context, productID string, batchID *string, delta decimal.Decimal, movement *model.StockMovement) error
	ExpireBatchesWithMovements(ctx context.Context, now time.Time, actorID string) (int, error)

	// Movements / audit
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error)
}
