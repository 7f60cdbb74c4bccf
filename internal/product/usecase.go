package product

import (
	"context"

	"github.com/retailpos/sales-service/internal/model"
	"github.com/retailpos/sales-service/internal/product/dto"
)

type UseCase interface {
	CreateProduct(ctx context.Context, input *dto.CreateProductInput) (*model.Product, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	ListProducts(ctx context.Context, filters *dto.ProductFilters) ([]model.Product, int, error)
	UpdateProduct(ctx context.Context, input *dto.UpdateProductInput) (*model.Product, error)
	// DeactivateProduct soft-deletes: the catalog row stays for historic
	// sales but stops matching lookups.
	DeactivateProduct(ctx context.Context, id string) error
}
