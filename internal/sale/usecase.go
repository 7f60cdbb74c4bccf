package sale

import (
	"context"

	"github.com/retailpos/sales-service/internal/model"
	"github.com/retailpos/sales-service/internal/sale/dto"
)

type UseCase interface {
	// CreateSale validates stock, enriches lines from the catalog,
	// computes totals, resolves FEFO allocations server-side and persists
	// the whole transaction atomically.
	CreateSale(ctx context.Context, input *dto.CreateSaleInput) (*model.Sale, error)
	// PreviewTotals runs the same enrichment and calculator without
	// persisting anything.
	PreviewTotals(ctx context.Context, input *dto.CreateSaleInput) (*Totals, error)
	// VoidSale fully reverses a sale's financial and inventory effects.
	// There is no partial void.
	VoidSale(ctx context.Context, saleID, reason, actorID string) error
	RefundSale(ctx context.Context, input *dto.RefundSaleInput) (*model.Refund, error)
	GetSale(ctx context.Context, id string) (*model.Sale, error)
}
