package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/retailpos/sales-service/internal/invoice"
	"github.com/retailpos/sales-service/internal/invoice/usecase"
	"github.com/retailpos/sales-service/internal/model"
	"github.com/retailpos/sales-service/internal/money"
	"github.com/retailpos/sales-service/internal/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeRepo struct {
	invoices map[string]*model.Invoice
	updated  *model.Invoice
}

func (f *fakeRepo) GetByID(_ context.Context, id string) (*model.Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return nil, invoice.ErrInvoiceNotFound
	}
	cp := *inv
	return &cp, nil
}

func (f *fakeRepo) GetOpenBySale(_ context.Context, saleID string) (*model.Invoice, error) {
	for _, inv := range f.invoices {
		if inv.SaleID == saleID && inv.Open() {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) UpdateAmounts(_ context.Context, inv *model.Invoice) error {
	f.updated = inv
	f.invoices[inv.ID] = inv
	return nil
}

func (f *fakeRepo) SumOpenAmountDue(_ context.Context, customerID string) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, inv := range f.invoices {
		if inv.CustomerID == customerID && inv.Open() {
			sum = sum.Add(inv.AmountDue)
		}
	}
	return sum, nil
}

func (f *fakeRepo) MarkOverdue(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}

func openInvoice(id string, total, paid string) *model.Invoice {
	t := d(total)
	p := d(paid)
	status := model.InvoiceStatusSent
	if p.IsPositive() {
		status = model.InvoiceStatusPartiallyPaid
	}
	return &model.Invoice{
		ID:            id,
		InvoiceNumber: "INV-000001",
		SaleID:        "sale-1",
		CustomerID:    "cust-1",
		TotalAmount:   t,
		AmountPaid:    p,
		AmountDue:     t.Sub(p),
		Status:        status,
		DueDate:       time.Now().AddDate(0, 0, 30),
	}
}

func TestApplyPayment(t *testing.T) {
	rounder := money.NewRounder(2)

	tests := []struct {
		name       string
		invoice    *model.Invoice
		amount     string
		wantErr    error
		wantStatus model.InvoiceStatus
		wantDue    string
	}{
		{
			name:       "PartialPayment",
			invoice:    openInvoice("inv-1", "100.00", "0"),
			amount:     "40.00",
			wantStatus: model.InvoiceStatusPartiallyPaid,
			wantDue:    "60.00",
		},
		{
			name:       "FullPayment",
			invoice:    openInvoice("inv-1", "100.00", "40.00"),
			amount:     "60.00",
			wantStatus: model.InvoiceStatusPaid,
			wantDue:    "0",
		},
		{
			name:       "OverpayWithinToleranceSettles",
			invoice:    openInvoice("inv-1", "100.00", "0"),
			amount:     "100.004",
			wantStatus: model.InvoiceStatusPaid,
			wantDue:    "0",
		},
		{
			name:    "OverpayRejected",
			invoice: openInvoice("inv-1", "100.00", "0"),
			amount:  "100.01",
			wantErr: invoice.ErrPaymentExceeds,
		},
		{
			name:    "NonPositiveRejected",
			invoice: openInvoice("inv-1", "100.00", "0"),
			amount:  "0",
			wantErr: invoice.ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRepo{invoices: map[string]*model.Invoice{tt.invoice.ID: tt.invoice}}
			uc := usecase.NewInvoiceUseCase(repo, rounder, logger.NewNop())

			got, err := uc.ApplyPayment(context.Background(), tt.invoice.ID, d(tt.amount))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, repo.updated)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.True(t, got.AmountDue.Equal(d(tt.wantDue)), "due %s", got.AmountDue)
			assert.True(t, got.AmountDue.Equal(got.TotalAmount.Sub(got.AmountPaid)), "invariant broken")
			require.NotNil(t, repo.updated)
		})
	}
}

func TestApplyPayment_ClosedInvoice(t *testing.T) {
	inv := openInvoice("inv-1", "100.00", "100.00")
	inv.Status = model.InvoiceStatusPaid
	repo := &fakeRepo{invoices: map[string]*model.Invoice{"inv-1": inv}}
	uc := usecase.NewInvoiceUseCase(repo, money.NewRounder(2), logger.NewNop())

	_, err := uc.ApplyPayment(context.Background(), "inv-1", d("1.00"))
	require.ErrorIs(t, err, invoice.ErrInvoiceClosed)
}

func TestApplyRefundCredit(t *testing.T) {
	rounder := money.NewRounder(2)

	t.Run("CreditReducesTheReceivable", func(t *testing.T) {
		repo := &fakeRepo{invoices: map[string]*model.Invoice{
			"inv-1": openInvoice("inv-1", "100.00", "30.00"),
		}}
		uc := usecase.NewInvoiceUseCase(repo, rounder, logger.NewNop())

		got, err := uc.ApplyRefundCredit(context.Background(), "inv-1", d("20.00"))
		require.NoError(t, err)
		assert.True(t, got.TotalAmount.Equal(d("80.00")))
		assert.True(t, got.AmountDue.Equal(d("50.00")))
		assert.Equal(t, model.InvoiceStatusPartiallyPaid, got.Status)
	})

	t.Run("CreditNeverDropsTotalBelowPaid", func(t *testing.T) {
		repo := &fakeRepo{invoices: map[string]*model.Invoice{
			"inv-1": openInvoice("inv-1", "100.00", "90.00"),
		}}
		uc := usecase.NewInvoiceUseCase(repo, rounder, logger.NewNop())

		got, err := uc.ApplyRefundCredit(context.Background(), "inv-1", d("50.00"))
		require.NoError(t, err)
		assert.True(t, got.TotalAmount.Equal(d("90.00")))
		assert.True(t, got.AmountDue.Equal(d("0")))
		assert.Equal(t, model.InvoiceStatusPaid, got.Status)
	})

	t.Run("FullCreditOnUnpaidInvoiceCancels", func(t *testing.T) {
		repo := &fakeRepo{invoices: map[string]*model.Invoice{
			"inv-1": openInvoice("inv-1", "100.00", "0"),
		}}
		uc := usecase.NewInvoiceUseCase(repo, rounder, logger.NewNop())

		got, err := uc.ApplyRefundCredit(context.Background(), "inv-1", d("100.00"))
		require.NoError(t, err)
		assert.Equal(t, model.InvoiceStatusCancelled, got.Status)
		assert.True(t, got.AmountDue.Equal(decimal.Zero))
	})
}

func TestCustomerBalance(t *testing.T) {
	repo := &fakeRepo{invoices: map[string]*model.Invoice{
		"inv-1": openInvoice("inv-1", "100.00", "40.00"),
		"inv-2": openInvoice("inv-2", "55.00", "0"),
	}}
	paid := openInvoice("inv-3", "70.00", "70.00")
	paid.Status = model.InvoiceStatusPaid
	repo.invoices["inv-3"] = paid

	uc := usecase.NewInvoiceUseCase(repo, money.NewRounder(2), logger.NewNop())

	balance, err := uc.CustomerBalance(context.Background(), "cust-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(d("115.00")), "balance %s", balance)
}
