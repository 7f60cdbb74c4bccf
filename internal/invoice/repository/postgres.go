package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/retailpos/sales-service/internal/invoice"
	"github.com/retailpos/sales-service/internal/model"
	"github.com/shopspring/decimal"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (*model.Invoice, error) {
	var inv model.Invoice
	err := r.DB.GetContext(ctx, &inv, `SELECT * FROM invoices WHERE id = $1 LIMIT 1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, invoice.ErrInvoiceNotFound
		}
		return nil, err
	}
	return &inv, nil
}

func (r *PGRepository) GetOpenBySale(ctx context.Context, saleID string) (*model.Invoice, error) {
	var inv model.Invoice
	err := r.DB.GetContext(ctx, &inv, `
        SELECT * FROM invoices
        WHERE sale_id = $1 AND status NOT IN ('PAID', 'CANCELLED')
        LIMIT 1
    `, saleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &inv, nil
}

func (r *PGRepository) UpdateAmounts(ctx context.Context, inv *model.Invoice) error {
	res, err := r.DB.NamedExecContext(ctx, `
        UPDATE invoices
        SET total_amount = :total_amount, amount_paid = :amount_paid,
            amount_due = :amount_due, status = :status, updated_at = :updated_at
        WHERE id = :id
    `, inv)
	if err != nil {
		return fmt.Errorf("failed to update invoice %s: %w", inv.InvoiceNumber, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return invoice.ErrInvoiceNotFound
	}
	return nil
}

func (r *PGRepository) SumOpenAmountDue(ctx context.Context, customerID string) (decimal.Decimal, error) {
	var due decimal.Decimal
	err := r.DB.GetContext(ctx, &due, `
        SELECT COALESCE(SUM(amount_due), 0) FROM invoices
        WHERE customer_id = $1 AND status NOT IN ('PAID', 'CANCELLED')
    `, customerID)
	return due, err
}

func (r *PGRepository) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	res, err := r.DB.ExecContext(ctx, `
        UPDATE invoices
        SET status = 'OVERDUE', updated_at = $1
        WHERE status IN ('SENT', 'PARTIALLY_PAID') AND due_date < $1
    `, now)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	return int(affected), err
}

// InsertInvoice writes an invoice row on the caller's transaction handle so
// a shortfall invoice commits or rolls back with its sale.
func InsertInvoice(ctx context.Context, ext sqlx.ExtContext, inv *model.Invoice) error {
	_, err := sqlx.NamedExecContext(ctx, ext, `
        INSERT INTO invoices (
            id, invoice_number, sale_id, customer_id, total_amount,
            amount_paid, amount_due, status, due_date, created_at, updated_at
        )
        VALUES (
            :id, :invoice_number, :sale_id, :customer_id, :total_amount,
            :amount_paid, :amount_due, :status, :due_date, :created_at, :updated_at
        )
    `, inv)
	if err != nil {
		return fmt.Errorf("failed to insert invoice: %w", err)
	}
	return nil
}

// UpdateInvoiceTx is UpdateAmounts on an explicit transaction handle, used
// by the refund path to settle the receivable atomically with the refund.
func UpdateInvoiceTx(ctx context.Context, ext sqlx.ExtContext, inv *model.Invoice) error {
	_, err := sqlx.NamedExecContext(ctx, ext, `
        UPDATE invoices
        SET total_amount = :total_amount, amount_paid = :amount_paid,
            amount_due = :amount_due, status = :status, updated_at = :updated_at
        WHERE id = :id
    `, inv)
	if err != nil {
		return fmt.Errorf("failed to update invoice %s: %w", inv.InvoiceNumber, err)
	}
	return nil
}
