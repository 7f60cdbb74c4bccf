package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/retailpos/sales-service/internal/model"
	"github.com/retailpos/sales-service/internal/product/dto"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) Create(ctx context.Context, p *model.Product) error {
	query := `
        INSERT INTO products (
            id, sku, barcode, name, description, cost_price, sell_price,
            tax_rate, taxable, quantity_on_hand, reorder_level, is_active,
            created_at, updated_at
        )
        VALUES (
            :id, :sku, :barcode, :name, :description, :cost_price, :sell_price,
            :tax_rate, :taxable, :quantity_on_hand, :reorder_level, :is_active,
            :created_at, :updated_at
        )
    `
	_, err := r.DB.NamedExecContext(ctx, query, p)
	return err
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.Product, error) {
	var product model.Product
	query := `SELECT * FROM products WHERE id = $1 LIMIT 1`
	err := r.DB.GetContext(ctx, &product, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

func (r *PGRepository) FindActiveByIDs(ctx context.Context, ids []string) (map[string]*model.Product, error) {
	result := map[string]*model.Product{}
	if len(ids) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(`
        SELECT * FROM products
        WHERE is_active = true AND id IN (?)
    `, ids)
	if err != nil {
		return nil, err
	}
	query = r.DB.Rebind(query)

	var products []model.Product
	if err := r.DB.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, err
	}

	for i := range products {
		result[products[i].ID] = &products[i]
	}
	return result, nil
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.ProductFilters) ([]model.Product, int, error) {
	var products []model.Product
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if f.IsActive != nil {
		conditions = append(conditions, "is_active = :is_active")
		args["is_active"] = *f.IsActive
	}
	if f.LowStock {
		conditions = append(conditions, "quantity_on_hand <= reorder_level AND reorder_level > 0")
	}
	if f.SearchQuery != "" {
		conditions = append(conditions, "(name ILIKE :search OR sku ILIKE :search OR barcode ILIKE :search)")
		args["search"] = "%" + f.SearchQuery + "%"
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT count(*) FROM products" + whereClause
	rows, err := r.DB.NamedQueryContext(ctx, countQuery, args)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	if rows.Next() {
		rows.Scan(&count)
	}

	orderBy := "created_at DESC"
	if f.SortBy != "" {
		// Whitelist sortable fields.
		switch f.SortBy {
		case "name":
			orderBy = "name"
		case "price":
			orderBy = "sell_price"
		case "created_at":
			orderBy = "created_at"
		}
		if strings.ToLower(f.SortOrder) == "asc" {
			orderBy += " ASC"
		} else {
			orderBy += " DESC"
		}
	}

	query := fmt.Sprintf("SELECT * FROM products%s ORDER BY %s", whereClause, orderBy)
	if f.PageSize > 0 {
		offset := (f.Page - 1) * f.PageSize
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, offset)
	}

	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer nstmt.Close()

	err = nstmt.SelectContext(ctx, &products, args)
	return products, count, err
}

func (r *PGRepository) Update(ctx context.Context, p *model.Product) error {
	query := `
        UPDATE products
        SET sku = :sku, barcode = :barcode, name = :name, description = :description,
            cost_price = :cost_price, sell_price = :sell_price, tax_rate = :tax_rate,
            taxable = :taxable, reorder_level = :reorder_level, is_active = :is_active,
            updated_at = :updated_at
        WHERE id = :id
    `
	_, err := r.DB.NamedExecContext(ctx, query, p)
	return err
}

func (r *PGRepository) Deactivate(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, `
        UPDATE products SET is_active = false, updated_at = now() WHERE id = $1
    `, id)
	return err
}

func (r *PGRepository) IsSKUUnique(ctx context.Context, sku, excludeID string) (bool, error) {
	var count int
	err := r.DB.GetContext(ctx, &count, `
        SELECT count(*) FROM products WHERE sku = $1 AND id <> $2
    `, sku, excludeID)
	return count == 0, err
}

func (r *PGRepository) IsBarcodeUnique(ctx context.Context, barcode, excludeID string) (bool, error) {
	var count int
	err := r.DB.GetContext(ctx, &count, `
        SELECT count(*) FROM products WHERE barcode = $1 AND id <> $2
    `, barcode, excludeID)
	return count == 0, err
}
