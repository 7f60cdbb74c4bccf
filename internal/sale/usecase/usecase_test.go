package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/retailpos/sales-service/internal/inventory"
	invdto "github.com/retailpos/sales-service/internal/inventory/dto"
	"github.com/retailpos/sales-service/internal/model"
	"github.com/retailpos/sales-service/internal/money"
	"github.com/retailpos/sales-service/internal/pkg/logger"
	productdto "github.com/retailpos/sales-service/internal/product/dto"
	"github.com/retailpos/sales-service/internal/sale"
	"github.com/retailpos/sales-service/internal/sale/dto"
	"github.com/retailpos/sales-service/internal/sale/usecase"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

// fakeSaleRepo records what the usecase asked it to persist.
type fakeSaleRepo struct {
	sales     map[string]*model.Sale
	customers map[string]*model.Customer
	refunded  map[string]decimal.Decimal

	createdSale    *model.Sale
	createdEffects []sale.StockEffect
	createdInvoice *model.Invoice

	voided        *model.Sale
	voidEffects   []sale.StockEffect
	voidInvoice   *model.Invoice
	createdRefund *model.Refund
	refundEffects []sale.StockEffect
	refundInvoice *model.Invoice
}

func (f *fakeSaleRepo) GetSale(_ context.Context, id string) (*model.Sale, error) {
	s, ok := f.sales[id]
	if !ok {
		return nil, sale.ErrSaleNotFound
	}
	return s, nil
}

func (f *fakeSaleRepo) GetSaleByNumber(_ context.Context, number string) (*model.Sale, error) {
	for _, s := range f.sales {
		if s.SaleNumber == number {
			return s, nil
		}
	}
	return nil, sale.ErrSaleNotFound
}

func (f *fakeSaleRepo) CreateSale(_ context.Context, s *model.Sale, effects []sale.StockEffect, inv *model.Invoice) error {
	s.SaleNumber = "SL-000001"
	if inv != nil {
		inv.InvoiceNumber = "INV-000001"
	}
	f.createdSale = s
	f.createdEffects = effects
	f.createdInvoice = inv
	return nil
}

func (f *fakeSaleRepo) VoidSale(_ context.Context, s *model.Sale, effects []sale.StockEffect, cancelInvoice *model.Invoice) error {
	f.voided = s
	f.voidEffects = effects
	f.voidInvoice = cancelInvoice
	return nil
}

func (f *fakeSaleRepo) CreateRefund(_ context.Context, refund *model.Refund, s *model.Sale, effects []sale.StockEffect, inv *model.Invoice) error {
	refund.RefundNumber = "RF-000001"
	f.createdRefund = refund
	f.refundEffects = effects
	f.refundInvoice = inv
	return nil
}

func (f *fakeSaleRepo) RefundedQuantities(_ context.Context, _ string) (map[string]decimal.Decimal, error) {
	if f.refunded == nil {
		return map[string]decimal.Decimal{}, nil
	}
	return f.refunded, nil
}

func (f *fakeSaleRepo) FindCustomer(_ context.Context, id string) (*model.Customer, error) {
	c, ok := f.customers[id]
	if !ok {
		return nil, sale.ErrCustomerNotFound
	}
	return c, nil
}

type fakeProductRepo struct {
	products map[string]*model.Product
}

func (f *fakeProductRepo) Create(_ context.Context, _ *model.Product) error { return nil }

func (f *fakeProductRepo) FindByID(_ context.Context, id string) (*model.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, inventory.ErrProductNotFound
	}
	return p, nil
}

func (f *fakeProductRepo) FindActiveByIDs(_ context.Context, ids []string) (map[string]*model.Product, error) {
	result := map[string]*model.Product{}
	for _, id := range ids {
		if p, ok := f.products[id]; ok && p.IsActive {
			result[id] = p
		}
	}
	return result, nil
}

func (f *fakeProductRepo) FindAll(_ context.Context, _ *productdto.ProductFilters) ([]model.Product, int, error) {
	return nil, 0, nil
}

func (f *fakeProductRepo) Update(_ context.Context, _ *model.Product) error { return nil }
func (f *fakeProductRepo) Deactivate(_ context.Context, _ string) error     { return nil }
func (f *fakeProductRepo) IsSKUUnique(_ context.Context, _, _ string) (bool, error) {
	return true, nil
}
func (f *fakeProductRepo) IsBarcodeUnique(_ context.Context, _, _ string) (bool, error) {
	return true, nil
}

// fakeInventoryUC hands out canned availability and FEFO plans, and records
// every plan request.
type fakeInventoryUC struct {
	available   map[string]decimal.Decimal
	allocations map[string][]invdto.BatchAllocation
	selections  []selectionCall
}

type selectionCall struct {
	productID string
	required  decimal.Decimal
}

func (f *fakeInventoryUC) SelectForQuantity(_ context.Context, productID string, required decimal.Decimal) ([]invdto.BatchAllocation, error) {
	f.selections = append(f.selections, selectionCall{productID: productID, required: required})
	return f.allocations[productID], nil
}

func (f *fakeInventoryUC) Availability(_ context.Context, productIDs []string) (map[string]decimal.Decimal, error) {
	result := map[string]decimal.Decimal{}
	for _, id := range productIDs {
		result[id] = f.available[id]
	}
	return result, nil
}

func (f *fakeInventoryUC) PerformStockAdjustment(_ context.Context, _ *invdto.AdjustStockInput) error {
	return nil
}

func (f *fakeInventoryUC) ReceiveGoods(_ context.Context, _ *invdto.ReceiveGoodsInput) (*model.InventoryBatch, error) {
	return nil, nil
}

func (f *fakeInventoryUC) MarkExpiredBatches(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}

func (f *fakeInventoryUC) ListMovements(_ context.Context, _ *invdto.MovementFilters) ([]model.StockMovement, int, error) {
	return nil, 0, nil
}

type fakeInvoiceRepo struct {
	bySale map[string]*model.Invoice
}

func (f *fakeInvoiceRepo) GetByID(_ context.Context, _ string) (*model.Invoice, error) {
	return nil, nil
}

func (f *fakeInvoiceRepo) GetOpenBySale(_ context.Context, saleID string) (*model.Invoice, error) {
	return f.bySale[saleID], nil
}

func (f *fakeInvoiceRepo) UpdateAmounts(_ context.Context, _ *model.Invoice) error { return nil }

func (f *fakeInvoiceRepo) SumOpenAmountDue(_ context.Context, _ string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (f *fakeInvoiceRepo) MarkOverdue(_ context.Context, _ time.Time) (int, error) { return 0, nil }

func fixedProduct(id, sell, cost, taxRate string) *model.Product {
	return &model.Product{
		BaseModel: model.BaseModel{ID: id},
		SKU:       "SKU-" + id,
		Name:      "Product " + id,
		CostPrice: d(cost),
		SellPrice: d(sell),
		TaxRate:   d(taxRate),
		Taxable:   !d(taxRate).IsZero(),
		IsActive:  true,
	}
}

type fixture struct {
	repo     *fakeSaleRepo
	invoices *fakeInvoiceRepo
	uc       sale.UseCase
}

func newFixture(products map[string]*model.Product, inv *fakeInventoryUC, policy usecase.Policy) *fixture {
	repo := &fakeSaleRepo{
		sales:     map[string]*model.Sale{},
		customers: map[string]*model.Customer{},
	}
	invoices := &fakeInvoiceRepo{bySale: map[string]*model.Invoice{}}
	uc := usecase.NewSaleUseCase(
		repo,
		repo,
		&fakeProductRepo{products: products},
		inv,
		invoices,
		nil,
		money.NewRounder(2),
		policy,
		logger.NewNop(),
	)
	return &fixture{repo: repo, invoices: invoices, uc: uc}
}

func defaultPolicy() usecase.Policy {
	return usecase.Policy{AllowCreditSales: true, InvoiceDueDays: 30}
}

func TestCreateSale_WalkInFullPayment(t *testing.T) {
	products := map[string]*model.Product{
		"p1": fixedProduct("p1", "50.00", "30.00", "0.10"),
	}
	inv := &fakeInventoryUC{
		available: map[string]decimal.Decimal{"p1": d("10")},
		allocations: map[string][]invdto.BatchAllocation{
			"p1": {{BatchID: "b1", BatchNumber: "B-1", Quantity: d("2"), UnitCost: d("28")}},
		},
	}
	fx := newFixture(products, inv, defaultPolicy())

	s, err := fx.uc.CreateSale(context.Background(), &dto.CreateSaleInput{
		CashierID:     "cashier-1",
		PaymentMethod: "CASH",
		AmountPaid:    d("120.00"),
		Lines: []dto.SaleLineInput{
			{ItemType: model.SaleItemProduct, ProductID: "p1", Quantity: d("2")},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "SL-000001", s.SaleNumber)
	assert.Equal(t, model.SaleStatusCompleted, s.Status)
	assert.True(t, s.TotalAmount.Equal(d("110.00")), "total %s", s.TotalAmount)
	assert.True(t, s.ChangeAmount.Equal(d("10.00")), "change %s", s.ChangeAmount)
	assert.Nil(t, fx.repo.createdInvoice)

	require.Len(t, fx.repo.createdEffects, 1)
	effect := fx.repo.createdEffects[0]
	assert.Equal(t, "p1", effect.ProductID)
	require.NotNil(t, effect.BatchID)
	assert.Equal(t, "b1", *effect.BatchID)
	assert.True(t, effect.Delta.Equal(d("-2")))
	assert.Equal(t, model.MovementSale, effect.Type)
}

func TestCreateSale_WalkInUnderpaymentRejected(t *testing.T) {
	products := map[string]*model.Product{
		"p1": fixedProduct("p1", "50.00", "30.00", "0"),
	}
	inv := &fakeInventoryUC{available: map[string]decimal.Decimal{"p1": d("10")}}
	fx := newFixture(products, inv, defaultPolicy())

	_, err := fx.uc.CreateSale(context.Background(), &dto.CreateSaleInput{
		CashierID:     "cashier-1",
		PaymentMethod: "CASH",
		AmountPaid:    d("40.00"),
		Lines: []dto.SaleLineInput{
			{ItemType: model.SaleItemProduct, ProductID: "p1", Quantity: d("1")},
		},
	})
	require.ErrorIs(t, err, sale.ErrFullPaymentRequired)
	assert.Nil(t, fx.repo.createdSale)
}

func TestCreateSale_CreditShortfallCreatesInvoice(t *testing.T) {
	products := map[string]*model.Product{
		"p1": fixedProduct("p1", "100.00", "60.00", "0"),
	}
	inv := &fakeInventoryUC{
		available: map[string]decimal.Decimal{"p1": d("10")},
		allocations: map[string][]invdto.BatchAllocation{
			"p1": {{BatchID: "b1", Quantity: d("1")}},
		},
	}
	fx := newFixture(products, inv, defaultPolicy())
	custID := "cust-1"
	fx.repo.customers[custID] = &model.Customer{
		BaseModel:     model.BaseModel{ID: custID},
		Name:          "Acme",
		CreditAllowed: true,
		IsActive:      true,
	}

	s, err := fx.uc.CreateSale(context.Background(), &dto.CreateSaleInput{
		CustomerID:    &custID,
		CashierID:     "cashier-1",
		PaymentMethod: "CREDIT",
		AmountPaid:    d("30.00"),
		Lines: []dto.SaleLineInput{
			{ItemType: model.SaleItemProduct, ProductID: "p1", Quantity: d("1")},
		},
	})
	require.NoError(t, err)

	require.NotNil(t, fx.repo.createdInvoice)
	created := fx.repo.createdInvoice
	assert.Equal(t, s.ID, created.SaleID)
	assert.Equal(t, custID, created.CustomerID)
	assert.True(t, created.AmountDue.Equal(d("70.00")), "due %s", created.AmountDue)
	assert.Equal(t, model.InvoiceStatusSent, created.Status)
	assert.True(t, s.ChangeAmount.IsZero())
}

func TestCreateSale_CreditPolicy(t *testing.T) {
	custNoCredit := "cust-cash"
	custCredit := "cust-credit"

	tests := []struct {
		name       string
		policy     usecase.Policy
		customerID string
		wantErr    error
	}{
		{
			name:       "CustomerWithoutCreditFlag",
			policy:     defaultPolicy(),
			customerID: custNoCredit,
			wantErr:    sale.ErrInsufficientPermission,
		},
		{
			name:       "CreditDisabledGlobally",
			policy:     usecase.Policy{AllowCreditSales: false, InvoiceDueDays: 30},
			customerID: custCredit,
			wantErr:    sale.ErrInsufficientPermission,
		},
		{
			name:       "UnknownCustomer",
			policy:     defaultPolicy(),
			customerID: "cust-missing",
			wantErr:    sale.ErrCustomerNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			products := map[string]*model.Product{
				"p1": fixedProduct("p1", "100.00", "60.00", "0"),
			}
			inv := &fakeInventoryUC{available: map[string]decimal.Decimal{"p1": d("10")}}
			fx := newFixture(products, inv, tt.policy)
			fx.repo.customers[custNoCredit] = &model.Customer{
				BaseModel: model.BaseModel{ID: custNoCredit},
				IsActive:  true,
			}
			fx.repo.customers[custCredit] = &model.Customer{
				BaseModel:     model.BaseModel{ID: custCredit},
				CreditAllowed: true,
				IsActive:      true,
			}

			customerID := tt.customerID
			_, err := fx.uc.CreateSale(context.Background(), &dto.CreateSaleInput{
				CustomerID:    &customerID,
				CashierID:     "cashier-1",
				PaymentMethod: "CREDIT",
				AmountPaid:    d("10.00"),
				Lines: []dto.SaleLineInput{
					{ItemType: model.SaleItemProduct, ProductID: "p1", Quantity: d("1")},
				},
			})
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, fx.repo.createdSale)
		})
	}
}

func TestCreateSale_FEFOSplitsLineAcrossBatches(t *testing.T) {
	products := map[string]*model.Product{
		"p1": fixedProduct("p1", "10.00", "6.00", "0"),
	}
	inv := &fakeInventoryUC{
		available: map[string]decimal.Decimal{"p1": d("8")},
		allocations: map[string][]invdto.BatchAllocation{
			"p1": {
				{BatchID: "b1", Quantity: d("5")},
				{BatchID: "b2", Quantity: d("3")},
			},
		},
	}
	fx := newFixture(products, inv, defaultPolicy())

	s, err := fx.uc.CreateSale(context.Background(), &dto.CreateSaleInput{
		CashierID:     "cashier-1",
		PaymentMethod: "CASH",
		AmountPaid:    d("80.00"),
		Lines: []dto.SaleLineInput{
			{ItemType: model.SaleItemProduct, ProductID: "p1", Quantity: d("8")},
		},
	})
	require.NoError(t, err)

	require.Len(t, s.Items, 2)
	assert.Equal(t, "b1", *s.Items[0].BatchID)
	assert.True(t, s.Items[0].Quantity.Equal(d("5")))
	assert.Equal(t, "b2", *s.Items[1].BatchID)
	assert.True(t, s.Items[1].Quantity.Equal(d("3")))

	// Split totals recombine to the line's figures.
	sum := s.Items[0].TotalAmount.Add(s.Items[1].TotalAmount)
	assert.True(t, sum.Equal(d("80.00")), "sum %s", sum)

	require.Len(t, fx.repo.createdEffects, 2)
	assert.True(t, fx.repo.createdEffects[0].Delta.Equal(d("-5")))
	assert.True(t, fx.repo.createdEffects[1].Delta.Equal(d("-3")))
}

func TestCreateSale_SplitDiscountApportionedByQuantity(t *testing.T) {
	products := map[string]*model.Product{
		"p1": fixedProduct("p1", "10.00", "6.00", "0"),
	}
	inv := &fakeInventoryUC{
		available: map[string]decimal.Decimal{"p1": d("8")},
		allocations: map[string][]invdto.BatchAllocation{
			"p1": {
				{BatchID: "b1", Quantity: d("5")},
				{BatchID: "b2", Quantity: d("3")},
			},
		},
	}
	fx := newFixture(products, inv, defaultPolicy())

	s, err := fx.uc.CreateSale(context.Background(), &dto.CreateSaleInput{
		CashierID:     "cashier-1",
		PaymentMethod: "CASH",
		AmountPaid:    d("79.00"),
		Lines: []dto.SaleLineInput{
			{ItemType: model.SaleItemProduct, ProductID: "p1", Quantity: d("8"), Discount: d("1.00")},
		},
	})
	require.NoError(t, err)

	require.Len(t, s.Items, 2)
	discountSum := s.Items[0].DiscountAmount.Add(s.Items[1].DiscountAmount)
	assert.True(t, discountSum.Equal(d("1.00")), "discount sum %s", discountSum)
	totalSum := s.Items[0].TotalAmount.Add(s.Items[1].TotalAmount)
	assert.True(t, totalSum.Equal(d("79.00")), "total sum %s", totalSum)
}

func TestCreateSale_AggregatesDemandAcrossLines(t *testing.T) {
	// Two lines of the same product must be checked jointly, not one by
	// one: each fits alone but together they oversell.
	products := map[string]*model.Product{
		"p1": fixedProduct("p1", "10.00", "6.00", "0"),
	}
	inv := &fakeInventoryUC{available: map[string]decimal.Decimal{"p1": d("5")}}
	fx := newFixture(products, inv, defaultPolicy())

	_, err := fx.uc.CreateSale(context.Background(), &dto.CreateSaleInput{
		CashierID:     "cashier-1",
		PaymentMethod: "CASH",
		AmountPaid:    d("60.00"),
		Lines: []dto.SaleLineInput{
			{ItemType: model.SaleItemProduct, ProductID: "p1", Quantity: d("3")},
			{ItemType: model.SaleItemProduct, ProductID: "p1", Quantity: d("3")},
		},
	})

	var stockErr *inventory.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.True(t, stockErr.Requested.Equal(d("6")))
	assert.True(t, stockErr.Available.Equal(d("5")))
	assert.Nil(t, fx.repo.createdSale)
}

func TestCreateSale_MultiLineSameProductSharesBatchPlan(t *testing.T) {
	// Two lines of the same product must draw from one batch plan resolved
	// over their combined quantity. Resolving per line would point both at
	// the soonest-expiring batch and overdraw it.
	products := map[string]*model.Product{
		"p1": fixedProduct("p1", "10.00", "6.00", "0"),
	}
	inv := &fakeInventoryUC{
		available: map[string]decimal.Decimal{"p1": d("10")},
		allocations: map[string][]invdto.BatchAllocation{
			"p1": {
				{BatchID: "b1", Quantity: d("5")},
				{BatchID: "b2", Quantity: d("1")},
			},
		},
	}
	fx := newFixture(products, inv, defaultPolicy())

	s, err := fx.uc.CreateSale(context.Background(), &dto.CreateSaleInput{
		CashierID:     "cashier-1",
		PaymentMethod: "CASH",
		AmountPaid:    d("60.00"),
		Lines: []dto.SaleLineInput{
			{ItemType: model.SaleItemProduct, ProductID: "p1", Quantity: d("3")},
			{ItemType: model.SaleItemProduct, ProductID: "p1", Quantity: d("3")},
		},
	})
	require.NoError(t, err)

	// One plan request for the aggregated six units.
	require.Len(t, inv.selections, 1)
	assert.Equal(t, "p1", inv.selections[0].productID)
	assert.True(t, inv.selections[0].required.Equal(d("6")))

	// First line takes 3 of b1; the second takes b1's remaining 2 and
	// spills 1 into b2.
	require.Len(t, s.Items, 3)
	assert.Equal(t, "b1", *s.Items[0].BatchID)
	assert.True(t, s.Items[0].Quantity.Equal(d("3")))
	assert.Equal(t, "b1", *s.Items[1].BatchID)
	assert.True(t, s.Items[1].Quantity.Equal(d("2")))
	assert.Equal(t, "b2", *s.Items[2].BatchID)
	assert.True(t, s.Items[2].Quantity.Equal(d("1")))

	// Debits never exceed a batch's planned quantity.
	perBatch := map[string]decimal.Decimal{}
	for _, effect := range fx.repo.createdEffects {
		require.NotNil(t, effect.BatchID)
		perBatch[*effect.BatchID] = perBatch[*effect.BatchID].Add(effect.Delta)
	}
	assert.True(t, perBatch["b1"].Equal(d("-5")), "b1 %s", perBatch["b1"])
	assert.True(t, perBatch["b2"].Equal(d("-1")), "b2 %s", perBatch["b2"])
}

func TestCreateSale_SplitTotalsAbsorbTaxRoundingRemainder(t *testing.T) {
	// Rounding each split's taxed total on its own can drift a cent off the
	// line's single-rounded figure; the last split takes the remainder.
	products := map[string]*model.Product{
		"p1": fixedProduct("p1", "0.05", "0.02", "0.07"),
	}
	inv := &fakeInventoryUC{
		available: map[string]decimal.Decimal{"p1": d("2")},
		allocations: map[string][]invdto.BatchAllocation{
			"p1": {
				{BatchID: "b1", Quantity: d("1")},
				{BatchID: "b2", Quantity: d("1")},
			},
		},
	}
	fx := newFixture(products, inv, defaultPolicy())

	s, err := fx.uc.CreateSale(context.Background(), &dto.CreateSaleInput{
		CashierID:     "cashier-1",
		PaymentMethod: "CASH",
		AmountPaid:    d("0.11"),
		Lines: []dto.SaleLineInput{
			{ItemType: model.SaleItemProduct, ProductID: "p1", Quantity: d("2")},
		},
	})
	require.NoError(t, err)

	require.Len(t, s.Items, 2)
	assert.True(t, s.Items[0].TotalAmount.Equal(d("0.05")), "first split %s", s.Items[0].TotalAmount)
	assert.True(t, s.Items[1].TotalAmount.Equal(d("0.06")), "second split %s", s.Items[1].TotalAmount)

	sum := s.Items[0].TotalAmount.Add(s.Items[1].TotalAmount)
	assert.True(t, sum.Equal(s.TotalAmount), "items %s vs sale %s", sum, s.TotalAmount)

	profitSum := s.Items[0].Profit.Add(s.Items[1].Profit)
	assert.True(t, profitSum.Equal(s.Profit), "profits %s vs sale %s", profitSum, s.Profit)
}

func TestCreateSale_ServiceLineNeedsNoStock(t *testing.T) {
	fx := newFixture(map[string]*model.Product{}, &fakeInventoryUC{}, defaultPolicy())

	s, err := fx.uc.CreateSale(context.Background(), &dto.CreateSaleInput{
		CashierID:     "cashier-1",
		PaymentMethod: "CASH",
		AmountPaid:    d("25.00"),
		Lines: []dto.SaleLineInput{
			{ItemType: model.SaleItemService, Description: "Delivery", Quantity: d("1"), UnitPrice: dp("25.00")},
		},
	})
	require.NoError(t, err)
	require.Len(t, s.Items, 1)
	assert.Nil(t, s.Items[0].ProductID)
	assert.Empty(t, fx.repo.createdEffects)
	assert.True(t, s.TotalAmount.Equal(d("25.00")))
}

func TestCreateSale_Validation(t *testing.T) {
	products := map[string]*model.Product{
		"p1": fixedProduct("p1", "10.00", "6.00", "0"),
	}

	tests := []struct {
		name    string
		input   *dto.CreateSaleInput
		wantErr error
	}{
		{
			name: "NoLines",
			input: &dto.CreateSaleInput{
				CashierID: "c", PaymentMethod: "CASH",
				AmountPaid: decimal.Zero,
			},
			wantErr: sale.ErrInvalidLineItem,
		},
		{
			name: "ProductLineWithoutProductID",
			input: &dto.CreateSaleInput{
				CashierID: "c", PaymentMethod: "CASH", AmountPaid: d("10"),
				Lines: []dto.SaleLineInput{
					{ItemType: model.SaleItemProduct, Quantity: d("1")},
				},
			},
			wantErr: sale.ErrInvalidLineItem,
		},
		{
			name: "ServiceLineWithoutDescription",
			input: &dto.CreateSaleInput{
				CashierID: "c", PaymentMethod: "CASH", AmountPaid: d("10"),
				Lines: []dto.SaleLineInput{
					{ItemType: model.SaleItemService, Quantity: d("1"), UnitPrice: dp("10")},
				},
			},
			wantErr: sale.ErrInvalidLineItem,
		},
		{
			name: "ZeroQuantity",
			input: &dto.CreateSaleInput{
				CashierID: "c", PaymentMethod: "CASH", AmountPaid: d("10"),
				Lines: []dto.SaleLineInput{
					{ItemType: model.SaleItemProduct, ProductID: "p1", Quantity: d("0")},
				},
			},
			wantErr: sale.ErrInvalidLineItem,
		},
		{
			name: "NegativeCartDiscount",
			input: &dto.CreateSaleInput{
				CashierID: "c", PaymentMethod: "CASH", AmountPaid: d("10"),
				CartDiscount: d("-5"),
				Lines: []dto.SaleLineInput{
					{ItemType: model.SaleItemProduct, ProductID: "p1", Quantity: d("1")},
				},
			},
			wantErr: sale.ErrInvalidDiscount,
		},
		{
			name: "DiscountAboveLineSubtotal",
			input: &dto.CreateSaleInput{
				CashierID: "c", PaymentMethod: "CASH", AmountPaid: d("10"),
				Lines: []dto.SaleLineInput{
					{ItemType: model.SaleItemProduct, ProductID: "p1", Quantity: d("1"), Discount: d("11.00")},
				},
			},
			wantErr: sale.ErrInvalidDiscount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &fakeInventoryUC{available: map[string]decimal.Decimal{"p1": d("10")}}
			fx := newFixture(products, inv, defaultPolicy())

			_, err := fx.uc.CreateSale(context.Background(), tt.input)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, fx.repo.createdSale)
		})
	}
}

func TestCreateSale_LineOverridesBeatCatalog(t *testing.T) {
	products := map[string]*model.Product{
		"p1": fixedProduct("p1", "50.00", "30.00", "0.10"),
	}
	inv := &fakeInventoryUC{
		available: map[string]decimal.Decimal{"p1": d("10")},
		allocations: map[string][]invdto.BatchAllocation{
			"p1": {{BatchID: "b1", Quantity: d("1")}},
		},
	}
	fx := newFixture(products, inv, defaultPolicy())

	// Quoted price, negotiated cost and a zero tax override all win over
	// the catalog values.
	s, err := fx.uc.CreateSale(context.Background(), &dto.CreateSaleInput{
		CashierID:     "cashier-1",
		PaymentMethod: "CASH",
		AmountPaid:    d("45.00"),
		Lines: []dto.SaleLineInput{
			{
				ItemType:  model.SaleItemProduct,
				ProductID: "p1",
				Quantity:  d("1"),
				UnitPrice: dp("45.00"),
				UnitCost:  dp("25.00"),
				TaxRate:   dp("0"),
			},
		},
	})
	require.NoError(t, err)

	assert.True(t, s.TotalAmount.Equal(d("45.00")), "total %s", s.TotalAmount)
	assert.True(t, s.TaxAmount.IsZero())
	assert.True(t, s.Profit.Equal(d("20.00")), "profit %s", s.Profit)
	require.Len(t, s.Items, 1)
	assert.True(t, s.Items[0].UnitPrice.Equal(d("45.00")))
	assert.True(t, s.Items[0].UnitCost.Equal(d("25.00")))
}

func TestPreviewTotals_MatchesCreateSaleFigures(t *testing.T) {
	products := map[string]*model.Product{
		"p1": fixedProduct("p1", "3.33", "2.00", "0.07"),
	}
	inv := &fakeInventoryUC{
		available: map[string]decimal.Decimal{"p1": d("10")},
		allocations: map[string][]invdto.BatchAllocation{
			"p1": {{BatchID: "b1", Quantity: d("3")}},
		},
	}
	fx := newFixture(products, inv, defaultPolicy())

	input := &dto.CreateSaleInput{
		CashierID:     "cashier-1",
		PaymentMethod: "CASH",
		AmountPaid:    d("10.69"),
		Lines: []dto.SaleLineInput{
			{ItemType: model.SaleItemProduct, ProductID: "p1", Quantity: d("3")},
		},
	}

	preview, err := fx.uc.PreviewTotals(context.Background(), input)
	require.NoError(t, err)

	s, err := fx.uc.CreateSale(context.Background(), input)
	require.NoError(t, err)

	assert.True(t, preview.TotalAmount.Equal(s.TotalAmount))
	assert.True(t, preview.TaxAmount.Equal(s.TaxAmount))
	assert.True(t, preview.Profit.Equal(s.Profit))
}

func soldSale(items ...model.SaleItem) *model.Sale {
	s := &model.Sale{
		ID:         uuid.New().String(),
		SaleNumber: "SL-000042",
		SaleDate:   time.Now(),
		Status:     model.SaleStatusCompleted,
		CashierID:  "cashier-1",
		Items:      items,
	}
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.TotalAmount)
	}
	s.TotalAmount = total
	s.AmountPaid = total
	return s
}

func soldItem(productID, batchID string, qty, total string) model.SaleItem {
	pid := productID
	item := model.SaleItem{
		ID:          uuid.New().String(),
		ProductID:   &pid,
		ItemType:    model.SaleItemProduct,
		Description: "Product " + productID,
		Quantity:    d(qty),
		TotalAmount: d(total),
	}
	if batchID != "" {
		b := batchID
		item.BatchID = &b
	}
	return item
}

func TestVoidSale_RestoresEveryBatch(t *testing.T) {
	s := soldSale(
		soldItem("p1", "b1", "5", "50.00"),
		soldItem("p1", "b2", "3", "30.00"),
	)
	fx := newFixture(map[string]*model.Product{}, &fakeInventoryUC{}, defaultPolicy())
	fx.repo.sales[s.ID] = s

	err := fx.uc.VoidSale(context.Background(), s.ID, "cashier error", "manager-1")
	require.NoError(t, err)

	require.Len(t, fx.repo.voidEffects, 2)
	assert.True(t, fx.repo.voidEffects[0].Delta.Equal(d("5")))
	assert.Equal(t, "b1", *fx.repo.voidEffects[0].BatchID)
	assert.True(t, fx.repo.voidEffects[1].Delta.Equal(d("3")))
	assert.Equal(t, "b2", *fx.repo.voidEffects[1].BatchID)
	assert.Equal(t, model.MovementReturn, fx.repo.voidEffects[0].Type)
}

func TestVoidSale_CancelsOpenInvoice(t *testing.T) {
	s := soldSale(soldItem("p1", "b1", "1", "100.00"))
	fx := newFixture(map[string]*model.Product{}, &fakeInventoryUC{}, defaultPolicy())
	fx.repo.sales[s.ID] = s
	fx.invoices.bySale[s.ID] = &model.Invoice{
		ID:          "inv-1",
		SaleID:      s.ID,
		TotalAmount: d("100.00"),
		AmountDue:   d("100.00"),
		Status:      model.InvoiceStatusSent,
	}

	err := fx.uc.VoidSale(context.Background(), s.ID, "", "manager-1")
	require.NoError(t, err)
	require.NotNil(t, fx.repo.voidInvoice)
	assert.Equal(t, "inv-1", fx.repo.voidInvoice.ID)
}

func TestVoidSale_StatusGuards(t *testing.T) {
	tests := []struct {
		name    string
		status  model.SaleStatus
		wantErr error
	}{
		{name: "AlreadyVoided", status: model.SaleStatusVoid, wantErr: sale.ErrAlreadyVoided},
		{name: "AlreadyRefunded", status: model.SaleStatusRefunded, wantErr: sale.ErrSaleRefunded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := soldSale(soldItem("p1", "b1", "1", "10.00"))
			s.Status = tt.status
			fx := newFixture(map[string]*model.Product{}, &fakeInventoryUC{}, defaultPolicy())
			fx.repo.sales[s.ID] = s

			err := fx.uc.VoidSale(context.Background(), s.ID, "", "manager-1")
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, fx.repo.voided)
		})
	}
}

func TestRefundSale_PartialWithRestock(t *testing.T) {
	item := soldItem("p1", "b1", "4", "40.00")
	s := soldSale(item)
	fx := newFixture(map[string]*model.Product{}, &fakeInventoryUC{}, defaultPolicy())
	fx.repo.sales[s.ID] = s

	refund, err := fx.uc.RefundSale(context.Background(), &dto.RefundSaleInput{
		SaleID:            s.ID,
		Reason:            "damaged on delivery",
		ReturnToInventory: true,
		ActorID:           "manager-1",
		Lines: []dto.RefundLineInput{
			{SaleItemID: item.ID, Quantity: d("1")},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, model.RefundTypePartial, refund.RefundType)
	assert.True(t, refund.Amount.Equal(d("10.00")), "amount %s", refund.Amount)
	require.Len(t, refund.Items, 1)
	assert.Equal(t, "b1", *refund.Items[0].BatchID)

	require.Len(t, fx.repo.refundEffects, 1)
	assert.True(t, fx.repo.refundEffects[0].Delta.Equal(d("1")))
	assert.Equal(t, model.MovementReturn, fx.repo.refundEffects[0].Type)
}

func TestRefundSale_NoRestockWhenGoodsUnsellable(t *testing.T) {
	item := soldItem("p1", "b1", "2", "20.00")
	s := soldSale(item)
	fx := newFixture(map[string]*model.Product{}, &fakeInventoryUC{}, defaultPolicy())
	fx.repo.sales[s.ID] = s

	refund, err := fx.uc.RefundSale(context.Background(), &dto.RefundSaleInput{
		SaleID:            s.ID,
		Reason:            "expired",
		ReturnToInventory: false,
		ActorID:           "manager-1",
		Lines: []dto.RefundLineInput{
			{SaleItemID: item.ID, Quantity: d("2")},
		},
	})
	require.NoError(t, err)
	assert.Empty(t, fx.repo.refundEffects)
	assert.Equal(t, model.RefundTypeFull, refund.RefundType)
}

func TestRefundSale_QuantityBounds(t *testing.T) {
	item := soldItem("p1", "b1", "4", "40.00")

	t.Run("MoreThanSold", func(t *testing.T) {
		s := soldSale(item)
		fx := newFixture(map[string]*model.Product{}, &fakeInventoryUC{}, defaultPolicy())
		fx.repo.sales[s.ID] = s

		_, err := fx.uc.RefundSale(context.Background(), &dto.RefundSaleInput{
			SaleID:  s.ID,
			ActorID: "manager-1",
			Lines: []dto.RefundLineInput{
				{SaleItemID: item.ID, Quantity: d("5")},
			},
		})
		var boundsErr *sale.RefundQuantityExceedsSoldError
		require.ErrorAs(t, err, &boundsErr)
		assert.True(t, boundsErr.Sold.Equal(d("4")))
	})

	t.Run("NetOfEarlierRefunds", func(t *testing.T) {
		s := soldSale(item)
		fx := newFixture(map[string]*model.Product{}, &fakeInventoryUC{}, defaultPolicy())
		fx.repo.sales[s.ID] = s
		fx.repo.refunded = map[string]decimal.Decimal{item.ID: d("3")}

		_, err := fx.uc.RefundSale(context.Background(), &dto.RefundSaleInput{
			SaleID:  s.ID,
			ActorID: "manager-1",
			Lines: []dto.RefundLineInput{
				{SaleItemID: item.ID, Quantity: d("2")},
			},
		})
		var boundsErr *sale.RefundQuantityExceedsSoldError
		require.ErrorAs(t, err, &boundsErr)
		assert.True(t, boundsErr.AlreadyRefunded.Equal(d("3")))
	})

	t.Run("UnknownSaleItem", func(t *testing.T) {
		s := soldSale(item)
		fx := newFixture(map[string]*model.Product{}, &fakeInventoryUC{}, defaultPolicy())
		fx.repo.sales[s.ID] = s

		_, err := fx.uc.RefundSale(context.Background(), &dto.RefundSaleInput{
			SaleID:  s.ID,
			ActorID: "manager-1",
			Lines: []dto.RefundLineInput{
				{SaleItemID: "not-there", Quantity: d("1")},
			},
		})
		require.ErrorIs(t, err, sale.ErrInvalidLineItem)
	})
}

func TestRefundSale_VoidedSaleRejected(t *testing.T) {
	item := soldItem("p1", "b1", "1", "10.00")
	s := soldSale(item)
	s.Status = model.SaleStatusVoid
	fx := newFixture(map[string]*model.Product{}, &fakeInventoryUC{}, defaultPolicy())
	fx.repo.sales[s.ID] = s

	_, err := fx.uc.RefundSale(context.Background(), &dto.RefundSaleInput{
		SaleID:  s.ID,
		ActorID: "manager-1",
		Lines: []dto.RefundLineInput{
			{SaleItemID: item.ID, Quantity: d("1")},
		},
	})
	require.ErrorIs(t, err, sale.ErrSaleVoided)
}

func TestRefundSale_CreditsOpenInvoice(t *testing.T) {
	item := soldItem("p1", "b1", "2", "100.00")
	s := soldSale(item)
	s.AmountPaid = d("20.00")
	fx := newFixture(map[string]*model.Product{}, &fakeInventoryUC{}, defaultPolicy())
	fx.repo.sales[s.ID] = s
	fx.invoices.bySale[s.ID] = &model.Invoice{
		ID:          "inv-1",
		SaleID:      s.ID,
		TotalAmount: d("100.00"),
		AmountPaid:  d("20.00"),
		AmountDue:   d("80.00"),
		Status:      model.InvoiceStatusSent,
	}

	_, err := fx.uc.RefundSale(context.Background(), &dto.RefundSaleInput{
		SaleID:  s.ID,
		ActorID: "manager-1",
		Lines: []dto.RefundLineInput{
			{SaleItemID: item.ID, Quantity: d("1")},
		},
	})
	require.NoError(t, err)

	require.NotNil(t, fx.repo.refundInvoice)
	assert.True(t, fx.repo.refundInvoice.TotalAmount.Equal(d("50.00")))
	assert.True(t, fx.repo.refundInvoice.AmountDue.Equal(d("30.00")))
}
