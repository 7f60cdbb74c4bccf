package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/retailpos/sales-service/internal/inventory"
	invdto "github.com/retailpos/sales-service/internal/inventory/dto"
	"github.com/retailpos/sales-service/internal/invoice"
	invoiceuc "github.com/retailpos/sales-service/internal/invoice/usecase"
	"github.com/retailpos/sales-service/internal/model"
	"github.com/retailpos/sales-service/internal/money"
	"github.com/retailpos/sales-service/internal/pkg/cache"
	"github.com/retailpos/sales-service/internal/pkg/logger"
	"github.com/retailpos/sales-service/internal/product"
	"github.com/retailpos/sales-service/internal/sale"
	"github.com/retailpos/sales-service/internal/sale/dto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Policy carries the tenant-level sale rules the orchestrator enforces.
type Policy struct {
	AllowCreditSales bool
	InvoiceDueDays   int
}

type saleUseCase struct {
	repo        sale.Repository
	customers   sale.CustomerLookup
	products    product.Repository
	inventoryUC inventory.UseCase
	invoiceRepo invoice.Repository
	cache       *cache.RedisClient
	rounder     money.Rounder
	policy      Policy
	logger      logger.ZapLogger
}

func NewSaleUseCase(
	repo sale.Repository,
	customers sale.CustomerLookup,
	products product.Repository,
	inventoryUC inventory.UseCase,
	invoiceRepo invoice.Repository,
	cacheClient *cache.RedisClient,
	rounder money.Rounder,
	policy Policy,
	log logger.ZapLogger,
) sale.UseCase {
	return &saleUseCase{
		repo:        repo,
		customers:   customers,
		products:    products,
		inventoryUC: inventoryUC,
		invoiceRepo: invoiceRepo,
		cache:       cacheClient,
		rounder:     rounder,
		policy:      policy,
		logger:      log,
	}
}

// enrichedLine is one requested line with catalog data resolved and its
// totals carried at full precision until persistence.
type enrichedLine struct {
	input  dto.SaleLineInput
	prod   *model.Product // Nil for SERVICE/CUSTOM lines
	totals sale.TotalLine
}

func (uc *saleUseCase) CreateSale(ctx context.Context, input *dto.CreateSaleInput) (*model.Sale, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	// Locks are held across the availability check, FEFO resolution and
	// the persist so the plan cannot go stale under it.
	productIDs := collectProductIDs(input.Lines)
	unlock, err := uc.lockProducts(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	defer unlock()

	lines, err := uc.enrichLines(ctx, input.Lines)
	if err != nil {
		return nil, err
	}

	if err := uc.checkAvailability(ctx, lines); err != nil {
		return nil, err
	}

	totals := calculate(lines, input.CartDiscount, uc.rounder)
	if totals.TotalDiscount.IsNegative() || totals.TotalDiscount.GreaterThan(totals.Subtotal) {
		return nil, sale.ErrInvalidDiscount
	}

	customer, err := uc.resolveCustomer(ctx, input.CustomerID)
	if err != nil {
		return nil, err
	}

	amountPaid := uc.rounder.Round(input.AmountPaid)
	shortfall := totals.TotalAmount.Sub(amountPaid)
	change := decimal.Zero

	switch {
	case shortfall.GreaterThan(uc.rounder.Tolerance()):
		// Underpaid: only a credit-approved customer may carry the balance.
		if customer == nil {
			return nil, sale.ErrFullPaymentRequired
		}
		if !uc.policy.AllowCreditSales || !customer.CreditAllowed {
			return nil, sale.ErrInsufficientPermission
		}
	case shortfall.IsNegative():
		change = shortfall.Neg()
		shortfall = decimal.Zero
	default:
		// Within tolerance of exact payment.
		shortfall = decimal.Zero
	}

	saleDate := time.Now()
	if input.SaleDate != nil {
		saleDate = *input.SaleDate
	}

	now := time.Now()
	s := &model.Sale{
		ID:             uuid.New().String(),
		CustomerID:     input.CustomerID,
		SaleDate:       saleDate,
		Subtotal:       totals.Subtotal,
		TaxAmount:      totals.TaxAmount,
		DiscountAmount: totals.TotalDiscount,
		TotalAmount:    totals.TotalAmount,
		TotalCost:      totals.TotalCost,
		Profit:         totals.Profit,
		PaymentMethod:  input.PaymentMethod,
		AmountPaid:     amountPaid,
		ChangeAmount:   change,
		Status:         model.SaleStatusCompleted,
		CashierID:      input.CashierID,
		Notes:          input.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	effects, err := uc.buildItemsAndEffects(ctx, s, lines)
	if err != nil {
		return nil, err
	}

	var inv *model.Invoice
	if shortfall.IsPositive() {
		due := saleDate.AddDate(0, 0, uc.policy.InvoiceDueDays)
		inv = invoice.BuildForShortfall(s, *input.CustomerID, shortfall, due)
	}

	if err := uc.repo.CreateSale(ctx, s, effects, inv); err != nil {
		return nil, err
	}

	uc.logger.Info("sale completed",
		zap.String("sale", s.SaleNumber),
		zap.String("total", s.TotalAmount.String()),
		zap.Int("items", len(s.Items)),
		zap.Bool("invoiced", inv != nil),
	)
	return s, nil
}

func (uc *saleUseCase) PreviewTotals(ctx context.Context, input *dto.CreateSaleInput) (*sale.Totals, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	lines, err := uc.enrichLines(ctx, input.Lines)
	if err != nil {
		return nil, err
	}

	totals := calculate(lines, input.CartDiscount, uc.rounder)
	if totals.TotalDiscount.IsNegative() || totals.TotalDiscount.GreaterThan(totals.Subtotal) {
		return nil, sale.ErrInvalidDiscount
	}
	return &totals, nil
}

func (uc *saleUseCase) GetSale(ctx context.Context, id string) (*model.Sale, error) {
	return uc.repo.GetSale(ctx, id)
}

func (uc *saleUseCase) VoidSale(ctx context.Context, saleID, reason, actorID string) error {
	s, err := uc.repo.GetSale(ctx, saleID)
	if err != nil {
		return err
	}
	switch s.Status {
	case model.SaleStatusVoid:
		return sale.ErrAlreadyVoided
	case model.SaleStatusRefunded:
		return sale.ErrSaleRefunded
	}

	productIDs := saleProductIDs(s)
	unlock, err := uc.lockProducts(ctx, productIDs)
	if err != nil {
		return err
	}
	defer unlock()

	// Every product line goes back to the exact batch it came from, even
	// batches that have since been marked depleted.
	var effects []sale.StockEffect
	for _, item := range s.Items {
		if item.ProductID == nil {
			continue
		}
		effects = append(effects, sale.StockEffect{
			ProductID: *item.ProductID,
			BatchID:   item.BatchID,
			Delta:     item.Quantity,
			Type:      model.MovementReturn,
			Notes:     "void " + s.SaleNumber,
		})
	}

	cancelInvoice, err := uc.invoiceRepo.GetOpenBySale(ctx, s.ID)
	if err != nil {
		return err
	}

	if reason != "" {
		if s.Notes != "" {
			s.Notes += "; "
		}
		s.Notes += "voided by " + actorID + ": " + reason
	}

	if err := uc.repo.VoidSale(ctx, s, effects, cancelInvoice); err != nil {
		return err
	}

	uc.logger.Info("sale voided",
		zap.String("sale", s.SaleNumber),
		zap.String("actor", actorID),
		zap.String("reason", reason),
	)
	return nil
}

func (uc *saleUseCase) RefundSale(ctx context.Context, input *dto.RefundSaleInput) (*model.Refund, error) {
	if len(input.Lines) == 0 {
		return nil, fmt.Errorf("%w: refund requires at least one line", sale.ErrInvalidLineItem)
	}

	s, err := uc.repo.GetSale(ctx, input.SaleID)
	if err != nil {
		return nil, err
	}
	if s.Status == model.SaleStatusVoid {
		return nil, sale.ErrSaleVoided
	}

	productIDs := saleProductIDs(s)
	unlock, err := uc.lockProducts(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	defer unlock()

	refunded, err := uc.repo.RefundedQuantities(ctx, s.ID)
	if err != nil {
		return nil, err
	}

	itemsByID := make(map[string]*model.SaleItem, len(s.Items))
	for i := range s.Items {
		itemsByID[s.Items[i].ID] = &s.Items[i]
	}

	now := time.Now()
	refund := &model.Refund{
		ID:                uuid.New().String(),
		SaleID:            s.ID,
		Reason:            input.Reason,
		ReturnToInventory: input.ReturnToInventory,
		CreatedBy:         input.ActorID,
		CreatedAt:         now,
	}

	var effects []sale.StockEffect
	amount := decimal.Zero
	refundedNow := map[string]decimal.Decimal{}

	for _, line := range input.Lines {
		if !line.Quantity.IsPositive() {
			return nil, fmt.Errorf("%w: refund quantity must be positive", sale.ErrInvalidLineItem)
		}
		item, ok := itemsByID[line.SaleItemID]
		if !ok {
			return nil, fmt.Errorf("%w: sale item %s not on sale %s", sale.ErrInvalidLineItem, line.SaleItemID, s.SaleNumber)
		}

		prior := refunded[item.ID].Add(refundedNow[item.ID])
		if line.Quantity.GreaterThan(item.Quantity.Sub(prior)) {
			return nil, &sale.RefundQuantityExceedsSoldError{
				SaleItemID:      item.ID,
				Description:     item.Description,
				Sold:            item.Quantity,
				AlreadyRefunded: prior,
				Requested:       line.Quantity,
			}
		}
		refundedNow[item.ID] = refundedNow[item.ID].Add(line.Quantity)

		// Pro-rata share of what the customer was actually charged for the
		// item, tax included.
		lineAmount := uc.rounder.Round(item.TotalAmount.Mul(line.Quantity).Div(item.Quantity))
		amount = amount.Add(lineAmount)

		refund.Items = append(refund.Items, model.RefundItem{
			ID:         uuid.New().String(),
			SaleItemID: item.ID,
			Quantity:   line.Quantity,
			Amount:     lineAmount,
			BatchID:    item.BatchID,
			CreatedAt:  now,
		})

		if input.ReturnToInventory && item.ProductID != nil {
			effects = append(effects, sale.StockEffect{
				ProductID: *item.ProductID,
				BatchID:   item.BatchID,
				Delta:     line.Quantity,
				Type:      model.MovementReturn,
				Notes:     "refund " + s.SaleNumber,
			})
		}
	}

	refund.Amount = amount
	refund.RefundType = refundType(s, refunded, refundedNow)

	inv, err := uc.invoiceRepo.GetOpenBySale(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	if inv != nil {
		// The customer owes that much less for the returned goods.
		invoiceuc.ApplyCredit(inv, amount, uc.rounder)
	}

	if err := uc.repo.CreateRefund(ctx, refund, s, effects, inv); err != nil {
		return nil, err
	}

	uc.logger.Info("refund processed",
		zap.String("refund", refund.RefundNumber),
		zap.String("sale", s.SaleNumber),
		zap.String("amount", refund.Amount.String()),
		zap.Bool("restocked", input.ReturnToInventory),
	)
	return refund, nil
}

// refundType is FULL only when every sale item is fully refunded after this
// refund is applied.
func refundType(s *model.Sale, prior, current map[string]decimal.Decimal) model.RefundType {
	for _, item := range s.Items {
		total := prior[item.ID].Add(current[item.ID])
		if total.LessThan(item.Quantity) {
			return model.RefundTypePartial
		}
	}
	return model.RefundTypeFull
}

func validateInput(input *dto.CreateSaleInput) error {
	if len(input.Lines) == 0 {
		return fmt.Errorf("%w: sale requires at least one line", sale.ErrInvalidLineItem)
	}
	if input.CartDiscount.IsNegative() {
		return sale.ErrInvalidDiscount
	}
	if input.AmountPaid.IsNegative() {
		return fmt.Errorf("%w: amount paid cannot be negative", sale.ErrInvalidLineItem)
	}

	for i, l := range input.Lines {
		if !l.Quantity.IsPositive() {
			return fmt.Errorf("%w: line %d quantity must be positive", sale.ErrInvalidLineItem, i)
		}
		if l.Discount.IsNegative() {
			return sale.ErrInvalidDiscount
		}
		switch l.ItemType {
		case model.SaleItemProduct:
			if l.ProductID == "" {
				return fmt.Errorf("%w: line %d is missing a product id", sale.ErrInvalidLineItem, i)
			}
		case model.SaleItemService, model.SaleItemCustom:
			if l.Description == "" {
				return fmt.Errorf("%w: line %d is missing a description", sale.ErrInvalidLineItem, i)
			}
			if l.UnitPrice == nil {
				return fmt.Errorf("%w: line %d is missing a unit price", sale.ErrInvalidLineItem, i)
			}
		default:
			return fmt.Errorf("%w: line %d has unknown item type %q", sale.ErrInvalidLineItem, i, l.ItemType)
		}
	}
	return nil
}

// enrichLines resolves every PRODUCT line against the catalog. Explicit
// overrides on the line win over catalog values.
func (uc *saleUseCase) enrichLines(ctx context.Context, inputs []dto.SaleLineInput) ([]enrichedLine, error) {
	ids := collectProductIDs(inputs)
	var catalog map[string]*model.Product
	if len(ids) > 0 {
		var err error
		catalog, err = uc.products.FindActiveByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
	}

	lines := make([]enrichedLine, len(inputs))
	for i, in := range inputs {
		line := enrichedLine{input: in}

		switch in.ItemType {
		case model.SaleItemProduct:
			p, ok := catalog[in.ProductID]
			if !ok {
				return nil, fmt.Errorf("%w: %s", inventory.ErrProductNotFound, in.ProductID)
			}
			line.prod = p
			line.totals = sale.TotalLine{
				Quantity:  in.Quantity,
				UnitPrice: p.SellPrice,
				UnitCost:  p.CostPrice,
				TaxRate:   p.EffectiveTaxRate(),
				Discount:  in.Discount,
			}
		default:
			line.totals = sale.TotalLine{
				Quantity:  in.Quantity,
				UnitPrice: *in.UnitPrice,
				UnitCost:  decimal.Zero,
				TaxRate:   decimal.Zero,
				Discount:  in.Discount,
			}
		}

		if in.UnitPrice != nil {
			line.totals.UnitPrice = *in.UnitPrice
		}
		if in.UnitCost != nil {
			line.totals.UnitCost = *in.UnitCost
		}
		if in.TaxRate != nil {
			line.totals.TaxRate = *in.TaxRate
		}

		if line.totals.Discount.GreaterThan(line.totals.Quantity.Mul(line.totals.UnitPrice)) {
			return nil, sale.ErrInvalidDiscount
		}

		lines[i] = line
	}
	return lines, nil
}

// checkAvailability aggregates demand per product across lines and compares
// against sellable stock, so three lines of the same product cannot each
// pass individually while jointly overselling.
func (uc *saleUseCase) checkAvailability(ctx context.Context, lines []enrichedLine) error {
	demand := map[string]decimal.Decimal{}
	prods := map[string]*model.Product{}
	for _, l := range lines {
		if l.prod == nil {
			continue
		}
		demand[l.prod.ID] = demand[l.prod.ID].Add(l.input.Quantity)
		prods[l.prod.ID] = l.prod
	}
	if len(demand) == 0 {
		return nil
	}

	ids := make([]string, 0, len(demand))
	for id := range demand {
		ids = append(ids, id)
	}
	available, err := uc.inventoryUC.Availability(ctx, ids)
	if err != nil {
		return err
	}

	for id, required := range demand {
		if required.GreaterThan(available[id]) {
			p := prods[id]
			return &inventory.InsufficientStockError{
				ProductID: id,
				SKU:       p.SKU,
				Name:      p.Name,
				Requested: required,
				Available: available[id],
			}
		}
	}
	return nil
}

// batchQueue walks a product's batch plan as successive lines consume it.
// take slices allocations at line boundaries, so a batch spanning two lines
// contributes a partial quantity to each.
type batchQueue struct {
	allocs []invdto.BatchAllocation
	idx    int
	used   decimal.Decimal
}

func (q *batchQueue) take(qty decimal.Decimal) []invdto.BatchAllocation {
	var taken []invdto.BatchAllocation
	remaining := qty
	for remaining.IsPositive() && q.idx < len(q.allocs) {
		cur := q.allocs[q.idx]
		part := cur
		part.Quantity = money.Min(remaining, cur.Quantity.Sub(q.used))
		taken = append(taken, part)

		q.used = q.used.Add(part.Quantity)
		if !q.used.LessThan(cur.Quantity) {
			q.idx++
			q.used = decimal.Zero
		}
		remaining = remaining.Sub(part.Quantity)
	}
	return taken
}

// buildItemsAndEffects turns enriched lines into persisted sale items and
// stock effects. Demand is aggregated per product and resolved into a single
// batch plan, so several lines of one product share it instead of each
// claiming the soonest-expiring batch. A line spanning several batches splits
// into one item row per batch; the line discount, total and profit are
// apportioned by quantity with the last split absorbing the rounding
// remainder, so splits sum exactly to the line's own rounded figures.
func (uc *saleUseCase) buildItemsAndEffects(ctx context.Context, s *model.Sale, lines []enrichedLine) ([]sale.StockEffect, error) {
	demand := map[string]decimal.Decimal{}
	for _, l := range lines {
		if l.prod != nil {
			demand[l.prod.ID] = demand[l.prod.ID].Add(l.input.Quantity)
		}
	}

	queues := map[string]*batchQueue{}
	for _, l := range lines {
		if l.prod == nil {
			continue
		}
		if _, ok := queues[l.prod.ID]; ok {
			continue
		}
		allocations, err := uc.inventoryUC.SelectForQuantity(ctx, l.prod.ID, demand[l.prod.ID])
		if err != nil {
			return nil, err
		}
		queues[l.prod.ID] = &batchQueue{allocs: allocations}
	}

	var effects []sale.StockEffect
	now := time.Now()
	one := decimal.NewFromInt(1)

	for _, l := range lines {
		if l.prod == nil {
			s.Items = append(s.Items, uc.buildSplit(s.ID, l, l.input.Description, nil, l.totals.Quantity, l.totals.Discount, now))
			continue
		}

		desc := l.prod.Name
		if l.input.Description != "" {
			desc = l.input.Description
		}

		takes := queues[l.prod.ID].take(l.input.Quantity)
		if len(takes) == 0 {
			// Non-batch product, debited from quantity on hand alone.
			s.Items = append(s.Items, uc.buildSplit(s.ID, l, desc, nil, l.input.Quantity, l.totals.Discount, now))
			effects = append(effects, sale.StockEffect{
				ProductID: l.prod.ID,
				Delta:     l.input.Quantity.Neg(),
				Type:      model.MovementSale,
				Notes:     "sale",
			})
			continue
		}

		afterDiscount := l.input.Quantity.Mul(l.totals.UnitPrice).Sub(l.totals.Discount)
		remainingTotal := uc.rounder.Round(afterDiscount.Mul(one.Add(l.totals.TaxRate)))
		remainingProfit := uc.rounder.Round(afterDiscount.Sub(l.input.Quantity.Mul(l.totals.UnitCost)))
		remainingDiscount := l.totals.Discount

		for i, alloc := range takes {
			last := i == len(takes)-1

			share := remainingDiscount
			if !last {
				share = uc.rounder.Round(l.totals.Discount.Mul(alloc.Quantity).Div(l.input.Quantity))
				remainingDiscount = remainingDiscount.Sub(share)
			}

			batchID := alloc.BatchID
			item := uc.buildSplit(s.ID, l, desc, &batchID, alloc.Quantity, share, now)
			if last {
				item.TotalAmount = remainingTotal
				item.Profit = remainingProfit
			} else {
				remainingTotal = remainingTotal.Sub(item.TotalAmount)
				remainingProfit = remainingProfit.Sub(item.Profit)
			}

			s.Items = append(s.Items, item)
			effects = append(effects, sale.StockEffect{
				ProductID: l.prod.ID,
				BatchID:   &batchID,
				Delta:     alloc.Quantity.Neg(),
				Type:      model.MovementSale,
				Notes:     "sale",
			})
		}
	}

	return effects, nil
}

func (uc *saleUseCase) buildSplit(saleID string, l enrichedLine, desc string, batchID *string, qty, discount decimal.Decimal, now time.Time) model.SaleItem {
	afterDiscount := qty.Mul(l.totals.UnitPrice).Sub(discount)
	total := uc.rounder.Round(afterDiscount.Mul(decimal.NewFromInt(1).Add(l.totals.TaxRate)))
	profit := uc.rounder.Round(afterDiscount.Sub(qty.Mul(l.totals.UnitCost)))

	var productID *string
	if l.prod != nil {
		id := l.prod.ID
		productID = &id
	}

	return model.SaleItem{
		ID:             uuid.New().String(),
		SaleID:         saleID,
		ProductID:      productID,
		BatchID:        batchID,
		ItemType:       l.input.ItemType,
		Description:    desc,
		Quantity:       qty,
		UnitPrice:      l.totals.UnitPrice,
		UnitCost:       l.totals.UnitCost,
		DiscountAmount: uc.rounder.Round(discount),
		TotalAmount:    total,
		Profit:         profit,
		CreatedAt:      now,
	}
}

func (uc *saleUseCase) resolveCustomer(ctx context.Context, customerID *string) (*model.Customer, error) {
	if customerID == nil {
		return nil, nil
	}
	return uc.customers.FindCustomer(ctx, *customerID)
}

func calculate(lines []enrichedLine, cartDiscount decimal.Decimal, rounder money.Rounder) sale.Totals {
	totalLines := make([]sale.TotalLine, len(lines))
	for i, l := range lines {
		totalLines[i] = l.totals
	}
	return sale.CalculateTotals(totalLines, cartDiscount, rounder)
}

func collectProductIDs(lines []dto.SaleLineInput) []string {
	seen := map[string]struct{}{}
	var ids []string
	for _, l := range lines {
		if l.ItemType != model.SaleItemProduct || l.ProductID == "" {
			continue
		}
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		ids = append(ids, l.ProductID)
	}
	return ids
}

func saleProductIDs(s *model.Sale) []string {
	seen := map[string]struct{}{}
	var ids []string
	for _, item := range s.Items {
		if item.ProductID == nil {
			continue
		}
		if _, ok := seen[*item.ProductID]; ok {
			continue
		}
		seen[*item.ProductID] = struct{}{}
		ids = append(ids, *item.ProductID)
	}
	return ids
}

// lockProducts takes per-product redis locks in sorted order so overlapping
// sales cannot deadlock against each other or against stock adjustments.
func (uc *saleUseCase) lockProducts(ctx context.Context, productIDs []string) (func(), error) {
	if uc.cache == nil || len(productIDs) == 0 {
		return func() {}, nil
	}

	sorted := append([]string(nil), productIDs...)
	sort.Strings(sorted)

	token := uuid.New().String()
	var held []string
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			_ = uc.cache.ReleaseLock(context.Background(), held[i], token)
		}
	}

	for _, id := range sorted {
		key := "lock:stock:" + id
		acquired := false
		for attempt := 0; attempt < 3; attempt++ {
			ok, err := uc.cache.AcquireLock(ctx, key, token, 5*time.Second)
			if err != nil {
				uc.logger.Error("failed to acquire stock lock", zap.String("key", key), zap.Error(err))
			}
			if ok {
				acquired = true
				break
			}
			time.Sleep(100 * time.Millisecond)
		}
		if !acquired {
			release()
			return nil, inventory.ErrLockNotAcquired
		}
		held = append(held, key)
	}

	return release, nil
}
