package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Coupon is a discount code managed by admins.
type Coupon struct {
	ID            string          `json:"id"`
	Code          string          `json:"code"`
	DiscountType  DiscountType    `json:"discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	UsageCount    int             `json:"usage_count"`
	UsageLimit    *int            `json:"usage_limit,omitempty"`
	ValidFrom     time.Time       `json:"valid_from"`
	ValidUntil    *time.Time      `json:"valid_until,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// CouponRequest is used to create or replace a coupon.
type CouponRequest struct {
	Code          string          `json:"code" validate:"required,min=3,max=40,alphanumunicode"`
	DiscountType  DiscountType    `json:"discount_type" validate:"required,oneof=percentage fixed"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	UsageLimit    *int            `json:"usage_limit,omitempty" validate:"omitempty,gt=0"`
	ValidFrom     *time.Time      `json:"valid_from,omitempty"`
	ValidUntil    *time.Time      `json:"valid_until,omitempty"`
}

// ValidateCouponRequest is the lenient checkout-side coupon check.
type ValidateCouponRequest struct {
	Code       string          `json:"code" validate:"required"`
	OrderTotal decimal.Decimal `json:"order_total"`
}

// CouponValidation is the answer of the lenient check. An unusable code is
// reported as Valid=false, never as an error.
type CouponValidation struct {
	Valid      bool            `json:"valid"`
	Coupon     *Coupon         `json:"coupon,omitempty"`
	Discount   decimal.Decimal `json:"discount"`
	FinalPrice decimal.Decimal `json:"final_price"`
}
