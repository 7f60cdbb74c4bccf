package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/retailpos/sales-service/internal/inventory"
	"github.com/retailpos/sales-service/internal/inventory/dto"
	"github.com/retailpos/sales-service/internal/model"
	"github.com/retailpos/sales-service/internal/money"
	"github.com/retailpos/sales-service/internal/pkg/cache"
	"github.com/retailpos/sales-service/internal/pkg/logger"
	"github.com/retailpos/sales-service/internal/product"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type inventoryUseCase struct {
	repo     inventory.Repository
	products product.Repository
	cache    *cache.RedisClient
	logger   logger.ZapLogger
}

func NewInventoryUseCase(repo inventory.Repository, products product.Repository, cache *cache.RedisClient, log logger.ZapLogger) inventory.UseCase {
	return &inventoryUseCase{
		repo:     repo,
		products: products,
		cache:    cache,
		logger:   log,
	}
}

func (uc *inventoryUseCase) SelectForQuantity(ctx context.Context, productID string, required decimal.Decimal) ([]dto.BatchAllocation, error) {
	if !required.IsPositive() {
		return nil, inventory.ErrInvalidQuantity
	}

	products, err := uc.products.FindActiveByIDs(ctx, []string{productID})
	if err != nil {
		return nil, err
	}
	p, ok := products[productID]
	if !ok {
		return nil, inventory.ErrProductNotFound
	}

	batches, err := uc.repo.ActiveBatches(ctx, productID)
	if err != nil {
		return nil, err
	}

	// No batches at all means the product is not batch-tracked; quantity
	// on hand is its availability source and no allocation is needed.
	if len(batches) == 0 {
		if p.QuantityOnHand.LessThan(required) {
			return nil, &inventory.InsufficientStockError{
				ProductID: p.ID,
				SKU:       p.SKU,
				Name:      p.Name,
				Requested: required,
				Available: p.QuantityOnHand,
			}
		}
		return nil, nil
	}

	return allocateFEFO(p, batches, required)
}

// allocateFEFO walks batches already sorted soonest-expiry-first and takes
// min(demand, batch remaining) from each until the demand is covered.
func allocateFEFO(p *model.Product, batches []model.InventoryBatch, required decimal.Decimal) ([]dto.BatchAllocation, error) {
	available := decimal.Zero
	for _, b := range batches {
		available = available.Add(b.RemainingQuantity)
	}
	if available.LessThan(required) {
		return nil, &inventory.InsufficientStockError{
			ProductID: p.ID,
			SKU:       p.SKU,
			Name:      p.Name,
			Requested: required,
			Available: available,
		}
	}

	var allocations []dto.BatchAllocation
	remaining := required
	for _, b := range batches {
		if remaining.IsZero() {
			break
		}
		take := money.Min(remaining, b.RemainingQuantity)
		allocations = append(allocations, dto.BatchAllocation{
			BatchID:     b.ID,
			BatchNumber: b.BatchNumber,
			Quantity:    take,
			UnitCost:    b.UnitCost,
			ExpiryDate:  b.ExpiryDate,
		})
		remaining = remaining.Sub(take)
	}
	return allocations, nil
}

func (uc *inventoryUseCase) Availability(ctx context.Context, productIDs []string) (map[string]decimal.Decimal, error) {
	products, err := uc.products.FindActiveByIDs(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range productIDs {
		if _, ok := products[id]; !ok {
			return nil, fmt.Errorf("%w: %s", inventory.ErrProductNotFound, id)
		}
	}

	batched, err := uc.repo.AvailableByProducts(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	// Products with no active batches are not automatically out of stock:
	// quantity on hand is their availability source.
	result := make(map[string]decimal.Decimal, len(productIDs))
	for _, id := range productIDs {
		if qty, ok := batched[id]; ok {
			result[id] = qty
		} else {
			result[id] = products[id].QuantityOnHand
		}
	}
	return result, nil
}

func (uc *inventoryUseCase) PerformStockAdjustment(ctx context.Context, input *dto.AdjustStockInput) error {
	if !input.Quantity.IsPositive() {
		return inventory.ErrInvalidQuantity
	}

	delta := input.Quantity
	switch input.MovementType {
	case model.MovementAdjustmentIn, model.MovementReturn:
		// Positive delta.
	case model.MovementAdjustmentOut, model.MovementDamage, model.MovementExpiry:
		delta = delta.Neg()
	default:
		return fmt.Errorf("movement type %s is not a manual adjustment", input.MovementType)
	}

	unlock, err := uc.lockProducts(ctx, []string{input.ProductID})
	if err != nil {
		return err
	}
	defer unlock()

	products, err := uc.products.FindActiveByIDs(ctx, []string{input.ProductID})
	if err != nil {
		return err
	}
	if _, ok := products[input.ProductID]; !ok {
		return inventory.ErrProductNotFound
	}

	if input.BatchID != nil {
		batch, err := uc.repo.GetBatch(ctx, *input.BatchID)
		if err != nil {
			return err
		}
		if batch.ProductID != input.ProductID {
			return inventory.ErrBatchMismatch
		}
	}

	actor := input.ActorID
	refType := "adjustment"
	var refID *string
	if input.ReferenceID != "" {
		refID = &input.ReferenceID
	}

	movement := &model.StockMovement{
		ID:             uuid.New().String(),
		ProductID:      input.ProductID,
		BatchID:        input.BatchID,
		MovementType:   input.MovementType,
		QuantityChange: delta,
		ReferenceType:  &refType,
		ReferenceID:    refID,
		Notes:          input.Reason,
		CreatedBy:      &actor,
		CreatedAt:      time.Now(),
	}

	return uc.repo.AdjustStockWithMovement(ctx, input.ProductID, input.BatchID, delta, movement)
}

func (uc *inventoryUseCase) ReceiveGoods(ctx context.Context, input *dto.ReceiveGoodsInput) (*model.InventoryBatch, error) {
	if !input.Quantity.IsPositive() {
		return nil, inventory.ErrInvalidQuantity
	}

	products, err := uc.products.FindActiveByIDs(ctx, []string{input.ProductID})
	if err != nil {
		return nil, err
	}
	if _, ok := products[input.ProductID]; !ok {
		return nil, inventory.ErrProductNotFound
	}

	now := time.Now()
	batch := &model.InventoryBatch{
		ID:                uuid.New().String(),
		ProductID:         input.ProductID,
		BatchNumber:       input.BatchNumber,
		QuantityReceived:  input.Quantity,
		RemainingQuantity: input.Quantity,
		UnitCost:          input.UnitCost,
		ExpiryDate:        input.ExpiryDate,
		Status:            model.BatchStatusActive,
		ReceivedAt:        now,
		CreatedAt:         now,
	}
	if batch.BatchNumber == "" {
		batch.BatchNumber = "GRN-" + batch.ID[:8]
	}

	actor := input.ActorID
	refType := "goods_receipt"
	var refID *string
	if input.ReferenceID != "" {
		refID = &input.ReferenceID
	}
	batchID := batch.ID

	movement := &model.StockMovement{
		ID:             uuid.New().String(),
		ProductID:      input.ProductID,
		BatchID:        &batchID,
		MovementType:   model.MovementGoodsReceipt,
		QuantityChange: input.Quantity,
		ReferenceType:  &refType,
		ReferenceID:    refID,
		Notes:          input.Notes,
		CreatedBy:      &actor,
		CreatedAt:      now,
	}

	if err := uc.repo.CreateBatchWithMovement(ctx, batch, movement); err != nil {
		return nil, err
	}

	uc.logger.Info("goods received",
		zap.String("product_id", input.ProductID),
		zap.String("batch_number", batch.BatchNumber),
		zap.String("quantity", input.Quantity.String()),
	)
	return batch, nil
}

func (uc *inventoryUseCase) MarkExpiredBatches(ctx context.Context, now time.Time) (int, error) {
	expired, err := uc.repo.ExpireBatchesWithMovements(ctx, now, "system")
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		uc.logger.Info("expired batches written off", zap.Int("count", expired))
	}
	return expired, nil
}

func (uc *inventoryUseCase) ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error) {
	return uc.repo.ListMovements(ctx, filters)
}

// lockProducts takes per-product redis locks in sorted order so two
// operations over overlapping product sets cannot deadlock.
func (uc *inventoryUseCase) lockProducts(ctx context.Context, productIDs []string) (func(), error) {
	if uc.cache == nil {
		return func() {}, nil
	}

	sorted := append([]string(nil), productIDs...)
	sort.Strings(sorted)

	token := uuid.New().String()
	var held []string
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			_ = uc.cache.ReleaseLock(context.Background(), held[i], token)
		}
	}

	for _, id := range sorted {
		key := "lock:stock:" + id
		acquired := false
		for attempt := 0; attempt < 3; attempt++ {
			ok, err := uc.cache.AcquireLock(ctx, key, token, 5*time.Second)
			if err != nil {
				uc.logger.Error("failed to acquire stock lock", zap.String("key", key), zap.Error(err))
			}
			if ok {
				acquired = true
				break
			}
			time.Sleep(100 * time.Millisecond)
		}
		if !acquired {
			release()
			return nil, inventory.ErrLockNotAcquired
		}
		held = append(held, key)
	}

	return release, nil
}
