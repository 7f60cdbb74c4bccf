package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	invrepo "github.com/retailpos/sales-service/internal/inventory/repository"
	invoicerepo "github.com/retailpos/sales-service/internal/invoice/repository"
	"github.com/retailpos/sales-service/internal/model"
	"github.com/retailpos/sales-service/internal/sale"
	"github.com/retailpos/sales-service/internal/sequence"
	"github.com/shopspring/decimal"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) GetSale(ctx context.Context, id string) (*model.Sale, error) {
	var s model.Sale
	err := r.DB.GetContext(ctx, &s, `SELECT * FROM sales WHERE id = $1 LIMIT 1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sale.ErrSaleNotFound
		}
		return nil, err
	}

	if err := r.DB.SelectContext(ctx, &s.Items, `
        SELECT * FROM sale_items WHERE sale_id = $1 ORDER BY created_at ASC, id ASC
    `, id); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PGRepository) GetSaleByNumber(ctx context.Context, number string) (*model.Sale, error) {
	var s model.Sale
	err := r.DB.GetContext(ctx, &s, `SELECT * FROM sales WHERE sale_number = $1 LIMIT 1`, number)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sale.ErrSaleNotFound
		}
		return nil, err
	}
	return r.GetSale(ctx, s.ID)
}

func (r *PGRepository) FindCustomer(ctx context.Context, id string) (*model.Customer, error) {
	var c model.Customer
	err := r.DB.GetContext(ctx, &c, `
        SELECT * FROM customers WHERE id = $1 AND is_active = true LIMIT 1
    `, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sale.ErrCustomerNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *PGRepository) CreateSale(ctx context.Context, s *model.Sale, effects []sale.StockEffect, inv *model.Invoice) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	number, err := sequence.Next(ctx, tx, "sale", "SL")
	if err != nil {
		return err
	}
	s.SaleNumber = number

	if _, err := tx.NamedExecContext(ctx, `
        INSERT INTO sales (
            id, sale_number, customer_id, sale_date, subtotal, tax_amount,
            discount_amount, total_amount, total_cost, profit, payment_method,
            amount_paid, change_amount, status, cashier_id, notes,
            created_at, updated_at
        )
        VALUES (
            :id, :sale_number, :customer_id, :sale_date, :subtotal, :tax_amount,
            :discount_amount, :total_amount, :total_cost, :profit, :payment_method,
            :amount_paid, :change_amount, :status, :cashier_id, :notes,
            :created_at, :updated_at
        )
    `, s); err != nil {
		return fmt.Errorf("failed to insert sale: %w", err)
	}

	for i := range s.Items {
		s.Items[i].SaleID = s.ID
		if _, err := tx.NamedExecContext(ctx, `
            INSERT INTO sale_items (
                id, sale_id, product_id, batch_id, item_type, description,
                quantity, unit_price, unit_cost, discount_amount, total_amount,
                profit, created_at
            )
            VALUES (
                :id, :sale_id, :product_id, :batch_id, :item_type, :description,
                :quantity, :unit_price, :unit_cost, :discount_amount, :total_amount,
                :profit, :created_at
            )
        `, s.Items[i]); err != nil {
			return fmt.Errorf("failed to insert sale item: %w", err)
		}
	}

	if err := applyEffects(ctx, tx, effects, "sale", s.ID, s.CashierID, s.SaleDate); err != nil {
		return err
	}

	// A sale must never exist without its receivable when one is owed: the
	// invoice rides the same transaction.
	if inv != nil {
		invNumber, err := sequence.Next(ctx, tx, "invoice", "INV")
		if err != nil {
			return err
		}
		inv.InvoiceNumber = invNumber
		if err := invoicerepo.InsertInvoice(ctx, tx, inv); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *PGRepository) VoidSale(ctx context.Context, s *model.Sale, effects []sale.StockEffect, cancelInvoice *model.Invoice) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Guarding on the previous status makes a concurrent double void lose
	// the race instead of reversing twice.
	res, err := tx.ExecContext(ctx, `
        UPDATE sales SET status = 'VOID', notes = $2, updated_at = $3
        WHERE id = $1 AND status = 'COMPLETED'
    `, s.ID, s.Notes, time.Now())
	if err != nil {
		return fmt.Errorf("failed to void sale %s: %w", s.SaleNumber, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sale.ErrAlreadyVoided
	}

	if err := applyEffects(ctx, tx, effects, "void", s.ID, s.CashierID, time.Now()); err != nil {
		return err
	}

	if cancelInvoice != nil {
		cancelInvoice.Status = model.InvoiceStatusCancelled
		cancelInvoice.UpdatedAt = time.Now()
		if err := invoicerepo.UpdateInvoiceTx(ctx, tx, cancelInvoice); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *PGRepository) CreateRefund(ctx context.Context, refund *model.Refund, s *model.Sale, effects []sale.StockEffect, inv *model.Invoice) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	number, err := sequence.Next(ctx, tx, "refund", "RF")
	if err != nil {
		return err
	}
	refund.RefundNumber = number

	if _, err := tx.NamedExecContext(ctx, `
        INSERT INTO refunds (
            id, refund_number, sale_id, refund_type, reason, amount,
            return_to_inventory, created_by, created_at
        )
        VALUES (
            :id, :refund_number, :sale_id, :refund_type, :reason, :amount,
            :return_to_inventory, :created_by, :created_at
        )
    `, refund); err != nil {
		return fmt.Errorf("failed to insert refund: %w", err)
	}

	for i := range refund.Items {
		refund.Items[i].RefundID = refund.ID
		if _, err := tx.NamedExecContext(ctx, `
            INSERT INTO refund_items (
                id, refund_id, sale_item_id, quantity, amount, batch_id, created_at
            )
            VALUES (
                :id, :refund_id, :sale_item_id, :quantity, :amount, :batch_id, :created_at
            )
        `, refund.Items[i]); err != nil {
			return fmt.Errorf("failed to insert refund item: %w", err)
		}
	}

	if err := applyEffects(ctx, tx, effects, "refund", refund.ID, refund.CreatedBy, refund.CreatedAt); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
        UPDATE sales SET status = 'REFUNDED', updated_at = $2
        WHERE id = $1 AND status IN ('COMPLETED', 'REFUNDED')
    `, s.ID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark sale refunded: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sale.ErrSaleVoided
	}

	if inv != nil {
		if err := invoicerepo.UpdateInvoiceTx(ctx, tx, inv); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *PGRepository) RefundedQuantities(ctx context.Context, saleID string) (map[string]decimal.Decimal, error) {
	rows, err := r.DB.QueryxContext(ctx, `
        SELECT ri.sale_item_id, SUM(ri.quantity)
        FROM refund_items ri
        JOIN refunds rf ON rf.id = ri.refund_id
        WHERE rf.sale_id = $1
        GROUP BY ri.sale_item_id
    `, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := map[string]decimal.Decimal{}
	for rows.Next() {
		var itemID string
		var qty decimal.Decimal
		if err := rows.Scan(&itemID, &qty); err != nil {
			return nil, err
		}
		result[itemID] = qty
	}
	return result, rows.Err()
}

// applyEffects debits or restores stock and appends one ledger row per
// effect, all on the workflow's transaction. Quantity guards inside the
// delta helpers turn lost races into retryable conflicts.
func applyEffects(ctx context.Context, tx *sqlx.Tx, effects []sale.StockEffect, refType, refID, actorID string, at time.Time) error {
	for _, e := range effects {
		if e.BatchID != nil {
			if err := invrepo.ApplyBatchDelta(ctx, tx, *e.BatchID, e.Delta); err != nil {
				return err
			}
		}

		before, after, err := invrepo.ApplyProductDelta(ctx, tx, e.ProductID, e.Delta)
		if err != nil {
			return err
		}

		rt := refType
		ri := refID
		actor := actorID
		movement := &model.StockMovement{
			ID:             uuid.New().String(),
			ProductID:      e.ProductID,
			BatchID:        e.BatchID,
			MovementType:   e.Type,
			QuantityChange: e.Delta,
			QuantityBefore: before,
			QuantityAfter:  after,
			ReferenceType:  &rt,
			ReferenceID:    &ri,
			Notes:          e.Notes,
			CreatedBy:      &actor,
			CreatedAt:      at,
		}
		if err := invrepo.InsertMovement(ctx, tx, movement); err != nil {
			return err
		}
	}
	return nil
}
