package model

import "github.com/shopspring/decimal"

type Product struct {
	BaseModel
	SKU         string          `db:"sku" json:"sku"`
	Barcode     *string         `db:"barcode" json:"barcode"` // Nullable
	Name        string          `db:"name" json:"name"`
	Description *string         `db:"description" json:"description"`
	CostPrice   decimal.Decimal `db:"cost_price" json:"cost_price"`
	SellPrice   decimal.Decimal `db:"sell_price" json:"sell_price"`
	TaxRate     decimal.Decimal `db:"tax_rate" json:"tax_rate"`
	Taxable     bool            `db:"taxable" json:"taxable"`
	// QuantityOnHand is authoritative only for products without active
	// batches; batch-tracked availability is summed from inventory_batches.
	QuantityOnHand decimal.Decimal `db:"quantity_on_hand" json:"quantity_on_hand"`
	ReorderLevel   decimal.Decimal `db:"reorder_level" json:"reorder_level"`
	IsActive       bool            `db:"is_active" json:"is_active"`
}

// EffectiveTaxRate returns zero for non-taxable products regardless of the
// configured rate.
func (p *Product) EffectiveTaxRate() decimal.Decimal {
	if !p.Taxable {
		return decimal.Zero
	}
	return p.TaxRate
}

type Customer struct {
	BaseModel
	Name          string  `db:"name" json:"name"`
	Phone         *string `db:"phone" json:"phone"`
	Email         *string `db:"email" json:"email"`
	CreditAllowed bool    `db:"credit_allowed" json:"credit_allowed"`
	IsActive      bool    `db:"is_active" json:"is_active"`
}
