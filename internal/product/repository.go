package product

import (
	"context"

	"github.com/retailpos/sales-service/internal/model"
	"github.com/retailpos/sales-service/internal/product/dto"
)

type Repository interface {
	Create(ctx context.Context, p *model.Product) error
	FindByID(ctx context.Context, id string) (*model.Product, error)
	// FindActiveByIDs returns only active products; a requested id missing
	// from the map does not exist or is deactivated.
	FindActiveByIDs(ctx context.Context, ids []string) (map[string]*model.Product, error)
	FindAll(ctx context.Context, filters *dto.ProductFilters) ([]model.Product, int, error)
	Update(ctx context.Context, p *model.Product) error
	Deactivate(ctx context.Context, id string) error
	IsSKUUnique(ctx context.Context, sku, excludeID string) (bool, error)
	IsBarcodeUnique(ctx context.Context, barcode, excludeID string) (bool, error)
}
