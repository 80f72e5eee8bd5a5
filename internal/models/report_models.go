package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SummaryReport aggregates order activity over a time window.
type SummaryReport struct {
	From              time.Time           `json:"from"`
	To                time.Time           `json:"to"`
	OrdersByStatus    map[OrderStatus]int `json:"orders_by_status"`
	DeliveredRevenue  decimal.Decimal     `json:"delivered_revenue"`
	CouponRedemptions int                 `json:"coupon_redemptions"`
}
