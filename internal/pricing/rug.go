package pricing

import (
	"fmt"

	"laundry-pickup/internal/models"

	"github.com/shopspring/decimal"
)

type rugTier struct {
	maxArea decimal.Decimal // m², inclusive
	price   decimal.Decimal
}

var (
	rugTiers = []rugTier{
		{decimal.RequireFromString("0.54"), decimal.RequireFromString("29.90")},
		{decimal.RequireFromString("1.2"), decimal.RequireFromString("39.90")},
		{decimal.RequireFromString("2.16"), decimal.RequireFromString("49.90")},
	}
	rugTopPrice = decimal.RequireFromString("59.90")

	cm2PerM2 = decimal.NewFromInt(10000)
)

// RugArea converts centimetre dimensions into square metres.
func RugArea(lengthCm, widthCm int) decimal.Decimal {
	return decimal.NewFromInt(int64(lengthCm)).
		Mul(decimal.NewFromInt(int64(widthCm))).
		Div(cm2PerM2)
}

// RugPrice returns the tier price for a rug of the given size.
func RugPrice(lengthCm, widthCm int) (decimal.Decimal, error) {
	if lengthCm <= 0 || widthCm <= 0 {
		return decimal.Zero, fmt.Errorf("%w: rug dimensions must be positive", models.ErrValidation)
	}
	area := RugArea(lengthCm, widthCm)
	for _, t := range rugTiers {
		if area.LessThanOrEqual(t.maxArea) {
			return t.price, nil
		}
	}
	return rugTopPrice, nil
}
