package sale

import (
	"github.com/retailpos/sales-service/internal/money"
	"github.com/shopspring/decimal"
)

// TotalLine is one enriched line fed to the totals calculator: quantities
// and rates are already resolved against the catalog.
type TotalLine struct {
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	UnitCost  decimal.Decimal
	TaxRate   decimal.Decimal
	Discount  decimal.Decimal
}

// LineTotals carries the full-precision money figures of one line.
type LineTotals struct {
	Subtotal      decimal.Decimal // qty * unitPrice
	AfterDiscount decimal.Decimal
	Tax           decimal.Decimal // on the discounted base
	Total         decimal.Decimal // afterDiscount + tax
	Cost          decimal.Decimal // qty * unitCost
	Profit        decimal.Decimal // afterDiscount - cost; tax is a pass-through
}

// Totals is the aggregate over a cart. Persisted figures are rounded to
// currency precision; the aggregate identities hold exactly at that
// precision because the total and profit derive from the rounded parts.
type Totals struct {
	Subtotal      decimal.Decimal
	ItemDiscount  decimal.Decimal
	CartDiscount  decimal.Decimal
	TotalDiscount decimal.Decimal
	TaxAmount     decimal.Decimal
	TotalCost     decimal.Decimal
	TotalAmount   decimal.Decimal // subtotal - totalDiscount + tax
	Profit        decimal.Decimal // (subtotal - totalDiscount) - cost
	ProfitMargin  decimal.Decimal // profit / (subtotal - totalDiscount), zero when undefined
	Lines         []LineTotals
}

// CalculateTotals is pure and deterministic: identical input yields
// identical output, whether called for a preview or for persistence.
// Intermediates keep full decimal precision; only the aggregate figures
// round. The cart discount is not distributed across lines; it affects
// only the aggregate revenue and profit.
func CalculateTotals(lines []TotalLine, cartDiscount decimal.Decimal, rounder money.Rounder) Totals {
	subtotal := decimal.Zero
	itemDiscount := decimal.Zero
	tax := decimal.Zero
	cost := decimal.Zero

	lineTotals := make([]LineTotals, len(lines))
	for i, l := range lines {
		lineSubtotal := l.Quantity.Mul(l.UnitPrice)
		afterDiscount := lineSubtotal.Sub(l.Discount)
		lineTax := afterDiscount.Mul(l.TaxRate)
		lineCost := l.Quantity.Mul(l.UnitCost)

		lineTotals[i] = LineTotals{
			Subtotal:      lineSubtotal,
			AfterDiscount: afterDiscount,
			Tax:           lineTax,
			Total:         afterDiscount.Add(lineTax),
			Cost:          lineCost,
			Profit:        afterDiscount.Sub(lineCost),
		}

		subtotal = subtotal.Add(lineSubtotal)
		itemDiscount = itemDiscount.Add(l.Discount)
		tax = tax.Add(lineTax)
		cost = cost.Add(lineCost)
	}

	t := Totals{
		Subtotal:     rounder.Round(subtotal),
		ItemDiscount: rounder.Round(itemDiscount),
		CartDiscount: rounder.Round(cartDiscount),
		TaxAmount:    rounder.Round(tax),
		TotalCost:    rounder.Round(cost),
		Lines:        lineTotals,
	}
	t.TotalDiscount = t.ItemDiscount.Add(t.CartDiscount)

	// Derive the aggregates from the rounded parts so the money-balance
	// identities hold exactly at currency precision.
	t.TotalAmount = t.Subtotal.Sub(t.TotalDiscount).Add(t.TaxAmount)
	t.Profit = t.Subtotal.Sub(t.TotalDiscount).Sub(t.TotalCost)

	revenue := t.Subtotal.Sub(t.TotalDiscount)
	if revenue.IsZero() {
		t.ProfitMargin = decimal.Zero
	} else {
		t.ProfitMargin = t.Profit.Div(revenue).Round(4)
	}

	return t
}
