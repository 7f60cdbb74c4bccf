package usecase

import (
	"context"
	"time"

	"github.com/retailpos/sales-service/internal/invoice"
	"github.com/retailpos/sales-service/internal/model"
	"github.com/retailpos/sales-service/internal/money"
	"github.com/retailpos/sales-service/internal/pkg/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type invoiceUseCase struct {
	repo    invoice.Repository
	rounder money.Rounder
	logger  logger.ZapLogger
}

func NewInvoiceUseCase(repo invoice.Repository, rounder money.Rounder, log logger.ZapLogger) invoice.UseCase {
	return &invoiceUseCase{
		repo:    repo,
		rounder: rounder,
		logger:  log,
	}
}

func (uc *invoiceUseCase) GetInvoice(ctx context.Context, id string) (*model.Invoice, error) {
	return uc.repo.GetByID(ctx, id)
}

func (uc *invoiceUseCase) ApplyPayment(ctx context.Context, invoiceID string, amount decimal.Decimal) (*model.Invoice, error) {
	if !amount.IsPositive() {
		return nil, invoice.ErrInvalidAmount
	}

	inv, err := uc.repo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if !inv.Open() {
		return nil, invoice.ErrInvoiceClosed
	}
	if amount.GreaterThan(inv.AmountDue.Add(uc.rounder.Tolerance())) {
		return nil, invoice.ErrPaymentExceeds
	}

	inv.AmountPaid = uc.rounder.Round(inv.AmountPaid.Add(amount))
	invoice.Settle(inv)

	if err := uc.repo.UpdateAmounts(ctx, inv); err != nil {
		return nil, err
	}

	uc.logger.Info("payment applied",
		zap.String("invoice", inv.InvoiceNumber),
		zap.String("amount", amount.String()),
		zap.String("amount_due", inv.AmountDue.String()),
	)
	return inv, nil
}

func (uc *invoiceUseCase) ApplyRefundCredit(ctx context.Context, invoiceID string, amount decimal.Decimal) (*model.Invoice, error) {
	if !amount.IsPositive() {
		return nil, invoice.ErrInvalidAmount
	}

	inv, err := uc.repo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if !inv.Open() {
		return nil, invoice.ErrInvoiceClosed
	}

	ApplyCredit(inv, amount, uc.rounder)

	if err := uc.repo.UpdateAmounts(ctx, inv); err != nil {
		return nil, err
	}

	uc.logger.Info("refund credit applied",
		zap.String("invoice", inv.InvoiceNumber),
		zap.String("amount", amount.String()),
		zap.String("amount_due", inv.AmountDue.String()),
	)
	return inv, nil
}

// ApplyCredit shrinks the receivable by a goods credit. The invoice total
// never drops below what was already paid, so amount due stays non-negative
// and the amountDue = totalAmount - amountPaid invariant holds.
func ApplyCredit(inv *model.Invoice, amount decimal.Decimal, rounder money.Rounder) {
	credited := inv.TotalAmount.Sub(amount)
	if credited.LessThan(inv.AmountPaid) {
		credited = inv.AmountPaid
	}
	inv.TotalAmount = rounder.Round(credited)
	invoice.Settle(inv)
}

func (uc *invoiceUseCase) CustomerBalance(ctx context.Context, customerID string) (decimal.Decimal, error) {
	return uc.repo.SumOpenAmountDue(ctx, customerID)
}

func (uc *invoiceUseCase) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	marked, err := uc.repo.MarkOverdue(ctx, now)
	if err != nil {
		return 0, err
	}
	if marked > 0 {
		uc.logger.Info("invoices marked overdue", zap.Int("count", marked))
	}
	return marked, nil
}
