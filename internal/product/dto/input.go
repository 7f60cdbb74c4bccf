package dto

import "github.com/shopspring/decimal"

type CreateProductInput struct {
	SKU          string
	Barcode      string
	Name         string
	Description  string
	CostPrice    decimal.Decimal
	SellPrice    decimal.Decimal
	TaxRate      decimal.Decimal
	Taxable      bool
	ReorderLevel decimal.Decimal
	InitialStock decimal.Decimal
}

type UpdateProductInput struct {
	ID           string
	SKU          string
	Barcode      string
	Name         string
	Description  string
	CostPrice    decimal.Decimal
	SellPrice    decimal.Decimal
	TaxRate      decimal.Decimal
	Taxable      bool
	ReorderLevel decimal.Decimal
	IsActive     bool
}
