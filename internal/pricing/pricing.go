// Package pricing computes authoritative order prices from catalog data.
// Client-side totals are never an input here.
package pricing

import (
	"fmt"
	"time"

	"laundry-pickup/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Line is one priced cart line.
type Line struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Total is unit price times quantity.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Quote is the result of pricing a cart.
type Quote struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Discount   decimal.Decimal `json:"discount"`
	FinalPrice decimal.Decimal `json:"final_price"`
}

// Compute prices the lines and applies the coupon, if any. The coupon is not
// checked for validity; callers do that with CouponUsable.
func Compute(lines []Line, coupon *models.Coupon) Quote {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Total())
	}
	discount := Discount(subtotal, coupon)
	return Quote{
		Subtotal:   subtotal,
		Discount:   discount,
		FinalPrice: decimal.Max(decimal.Zero, subtotal.Sub(discount)),
	}
}

// Discount returns the amount a coupon takes off subtotal. Percentage discounts
// are rounded to cents. The result never exceeds subtotal.
func Discount(subtotal decimal.Decimal, coupon *models.Coupon) decimal.Decimal {
	if coupon == nil || !subtotal.IsPositive() || !coupon.DiscountValue.IsPositive() {
		return decimal.Zero
	}

	var d decimal.Decimal
	switch coupon.DiscountType {
	case models.DiscountPercentage:
		d = subtotal.Mul(coupon.DiscountValue).Div(hundred).Round(2)
	case models.DiscountFixed:
		d = coupon.DiscountValue
	default:
		return decimal.Zero
	}
	return decimal.Min(d, subtotal)
}

// CouponUsable reports whether c can be applied at now: inside its validity
// window and below its usage limit, if one is set.
func CouponUsable(c *models.Coupon, now time.Time) bool {
	if c == nil {
		return false
	}
	if now.Before(c.ValidFrom) {
		return false
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return false
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return false
	}
	return true
}

// UnitPrice returns the price of one unit of p for the given cart line.
// Area-priced products need both dimensions.
func UnitPrice(p models.Product, line models.CartLineRequest) (decimal.Decimal, error) {
	if p.Kind != models.ProductKindArea {
		return p.Price, nil
	}
	if line.LengthCm == nil || line.WidthCm == nil {
		return decimal.Zero, fmt.Errorf("%w: %s needs length_cm and width_cm", models.ErrValidation, p.ID)
	}
	return RugPrice(*line.LengthCm, *line.WidthCm)
}
