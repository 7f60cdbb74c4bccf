package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/retailpos/sales-service/internal/inventory"
	"github.com/retailpos/sales-service/internal/inventory/dto"
	"github.com/retailpos/sales-service/internal/model"
	"github.com/shopspring/decimal"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) GetBatch(ctx context.Context, id string) (*model.InventoryBatch, error) {
	var batch model.InventoryBatch
	query := `SELECT * FROM inventory_batches WHERE id = $1 LIMIT 1`
	err := r.DB.GetContext(ctx, &batch, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, inventory.ErrBatchNotFound
		}
		return nil, err
	}
	return &batch, nil
}

// ActiveBatches orders by expiry date ascending with undated batches last,
// then by received date, which is exactly the FEFO consumption order.
func (r *PGRepository) ActiveBatches(ctx context.Context, productID string) ([]model.InventoryBatch, error) {
	var batches []model.InventoryBatch
	query := `
        SELECT * FROM inventory_batches
        WHERE product_id = $1 AND status = 'ACTIVE' AND remaining_quantity > 0
        ORDER BY expiry_date ASC NULLS LAST, received_at ASC
    `
	err := r.DB.SelectContext(ctx, &batches, query, productID)
	return batches, err
}

func (r *PGRepository) AvailableByProducts(ctx context.Context, productIDs []string) (map[string]decimal.Decimal, error) {
	result := map[string]decimal.Decimal{}
	if len(productIDs) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(`
        SELECT product_id, SUM(remaining_quantity) AS available
        FROM inventory_batches
        WHERE status = 'ACTIVE' AND remaining_quantity > 0 AND product_id IN (?)
        GROUP BY product_id
    `, productIDs)
	if err != nil {
		return nil, err
	}
	query = r.DB.Rebind(query)

	rows, err := r.DB.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var productID string
		var available decimal.Decimal
		if err := rows.Scan(&productID, &available); err != nil {
			return nil, err
		}
		result[productID] = available
	}
	return result, rows.Err()
}

func (r *PGRepository) CreateBatchWithMovement(ctx context.Context, batch *model.InventoryBatch, movement *model.StockMovement) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	insertBatch := `
        INSERT INTO inventory_batches (
            id, product_id, batch_number, quantity_received, remaining_quantity,
            unit_cost, expiry_date, status, received_at, created_at
        )
        VALUES (
            :id, :product_id, :batch_number, :quantity_received, :remaining_quantity,
            :unit_cost, :expiry_date, :status, :received_at, :created_at
        )
    `
	if _, err := tx.NamedExecContext(ctx, insertBatch, batch); err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}

	before, after, err := ApplyProductDelta(ctx, tx, batch.ProductID, batch.QuantityReceived)
	if err != nil {
		return err
	}
	movement.QuantityBefore = before
	movement.QuantityAfter = after

	if err := InsertMovement(ctx, tx, movement); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *PGRepository) AdjustStockWithMovement(ctx context.Context, productID string, batchID *string, delta decimal.Decimal, movement *model.StockMovement) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if batchID != nil {
		if err := ApplyBatchDelta(ctx, tx, *batchID, delta); err != nil {
			return err
		}
	}

	before, after, err := ApplyProductDelta(ctx, tx, productID, delta)
	if err != nil {
		return err
	}
	movement.QuantityBefore = before
	movement.QuantityAfter = after

	if err := InsertMovement(ctx, tx, movement); err != nil {
		return err
	}

	return tx.Commit()
}

// ExpireBatchesWithMovements flips every ACTIVE batch past its expiry date
// to EXPIRED and writes off the remainder with an EXPIRY movement.
func (r *PGRepository) ExpireBatchesWithMovements(ctx context.Context, now time.Time, actorID string) (int, error) {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var expired []model.InventoryBatch
	query := `
        SELECT * FROM inventory_batches
        WHERE status = 'ACTIVE' AND expiry_date IS NOT NULL AND expiry_date < $1
        FOR UPDATE
    `
	if err := tx.SelectContext(ctx, &expired, query, now); err != nil {
		return 0, err
	}

	for i := range expired {
		batch := &expired[i]

		if _, err := tx.ExecContext(ctx, `
            UPDATE inventory_batches
            SET status = 'EXPIRED', remaining_quantity = 0
            WHERE id = $1
        `, batch.ID); err != nil {
			return 0, fmt.Errorf("failed to expire batch %s: %w", batch.BatchNumber, err)
		}

		if batch.RemainingQuantity.IsZero() {
			continue
		}

		before, after, err := ApplyProductDelta(ctx, tx, batch.ProductID, batch.RemainingQuantity.Neg())
		if err != nil {
			return 0, err
		}

		batchRef := batch.ID
		actor := actorID
		refType := "batch"
		movement := &model.StockMovement{
			ID:             uuid.New().String(),
			ProductID:      batch.ProductID,
			BatchID:        &batchRef,
			MovementType:   model.MovementExpiry,
			QuantityChange: batch.RemainingQuantity.Neg(),
			QuantityBefore: before,
			QuantityAfter:  after,
			ReferenceType:  &refType,
			ReferenceID:    &batchRef,
			Notes:          fmt.Sprintf("batch %s expired", batch.BatchNumber),
			CreatedBy:      &actor,
			CreatedAt:      now,
		}
		if err := InsertMovement(ctx, tx, movement); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(expired), nil
}

func (r *PGRepository) ListMovements(ctx context.Context, f *dto.MovementFilters) ([]model.StockMovement, int, error) {
	var items []model.StockMovement
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if f.ProductID != "" {
		conditions = append(conditions, "product_id = :product_id")
		args["product_id"] = f.ProductID
	}
	if f.BatchID != "" {
		conditions = append(conditions, "batch_id = :batch_id")
		args["batch_id"] = f.BatchID
	}
	if f.MovementType != "" {
		conditions = append(conditions, "movement_type = :movement_type")
		args["movement_type"] = f.MovementType
	}
	if f.StartDate != nil {
		conditions = append(conditions, "created_at >= :start_date")
		args["start_date"] = *f.StartDate
	}
	if f.EndDate != nil {
		conditions = append(conditions, "created_at <= :end_date")
		args["end_date"] = *f.EndDate
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT count(*) FROM stock_movements" + whereClause
	rows, err := r.DB.NamedQueryContext(ctx, countQuery, args)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	if rows.Next() {
		rows.Scan(&count)
	}

	query := "SELECT * FROM stock_movements" + whereClause + " ORDER BY created_at DESC"
	if f.PageSize > 0 {
		offset := (f.Page - 1) * f.PageSize
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, offset)
	}

	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer nstmt.Close()

	err = nstmt.SelectContext(ctx, &items, args)
	return items, count, err
}

// ApplyBatchDelta mutates a batch's remaining quantity inside the caller's
// transaction. The WHERE guard keeps the quantity non-negative; losing the
// race surfaces as a retryable conflict, never as negative stock. Status
// recomputes to DEPLETED at zero and back to ACTIVE on a positive delta.
func ApplyBatchDelta(ctx context.Context, ext sqlx.ExtContext, batchID string, delta decimal.Decimal) error {
	res, err := ext.ExecContext(ctx, `
        UPDATE inventory_batches
        SET remaining_quantity = remaining_quantity + $2,
            status = CASE
                WHEN remaining_quantity + $2 <= 0 THEN 'DEPLETED'
                WHEN status IN ('ACTIVE', 'DEPLETED') THEN 'ACTIVE'
                ELSE status
            END
        WHERE id = $1 AND remaining_quantity + $2 >= 0
    `, batchID, delta)
	if err != nil {
		return fmt.Errorf("failed to adjust batch %s: %w", batchID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &inventory.ConflictError{Op: "batch adjustment", Err: fmt.Errorf("batch %s missing or would go negative", batchID)}
	}
	return nil
}

// ApplyProductDelta syncs the denormalized quantity on hand under the same
// guard, returning the before/after quantities for the movement row.
func ApplyProductDelta(ctx context.Context, ext sqlx.ExtContext, productID string, delta decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	var after decimal.Decimal
	err := sqlx.GetContext(ctx, ext, &after, `
        UPDATE products
        SET quantity_on_hand = quantity_on_hand + $2, updated_at = now()
        WHERE id = $1 AND quantity_on_hand + $2 >= 0
        RETURNING quantity_on_hand
    `, productID, delta)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, decimal.Zero, &inventory.ConflictError{Op: "product quantity sync", Err: fmt.Errorf("product %s missing or would go negative", productID)}
		}
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to adjust product %s: %w", productID, err)
	}
	return after.Sub(delta), after, nil
}

// InsertMovement appends one row to the stock movement ledger inside the
// caller's transaction.
func InsertMovement(ctx context.Context, ext sqlx.ExtContext, m *model.StockMovement) error {
	_, err := sqlx.NamedExecContext(ctx, ext, `
        INSERT INTO stock_movements (
            id, product_id, batch_id, movement_type, quantity_change,
            quantity_before, quantity_after, reference_type, reference_id,
            notes, created_by, created_at
        )
        VALUES (
            :id, :product_id, :batch_id, :movement_type, :quantity_change,
            :quantity_before, :quantity_after, :reference_type, :reference_id,
            :notes, :created_by, :created_at
        )
    `, m)
	if err != nil {
		return fmt.Errorf("failed to log movement: %w", err)
	}
	return nil
}
