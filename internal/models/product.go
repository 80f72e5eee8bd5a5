package models

import "github.com/shopspring/decimal"

// ProductKind selects how a catalog entry is priced.
type ProductKind string

const (
	ProductKindUnit   ProductKind = "unit"
	ProductKindArea   ProductKind = "area"   // priced per rug size tier
	ProductKindBundle ProductKind = "bundle" // two services sold together at a fixed price
)

// Product is a catalog entry. The catalog is seeded by migrations.
type Product struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Kind   ProductKind     `json:"kind"`
	Price  decimal.Decimal `json:"price"`
	Active bool            `json:"active"`
}
