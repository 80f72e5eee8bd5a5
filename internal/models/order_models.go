package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusAccepted  OrderStatus = "accepted"
	StatusPickingUp OrderStatus = "picking_up"
	StatusWashing   OrderStatus = "washing"
	StatusReturning OrderStatus = "returning"
	StatusDelivered OrderStatus = "delivered"
	StatusRejected  OrderStatus = "rejected"
	StatusCancelled OrderStatus = "cancelled"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []OrderStatus{
	StatusPending, StatusAccepted, StatusPickingUp, StatusWashing,
	StatusReturning, StatusDelivered, StatusRejected, StatusCancelled,
}

func (s OrderStatus) String() string {
	return string(s)
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// PickupMode tells whether the customer picked a slot or asked for the earliest one.
type PickupMode string

const (
	PickupASAP       PickupMode = "asap"
	PickupChooseTime PickupMode = "choose_time"
)

type PaymentMethod string

const (
	PaymentCard PaymentMethod = "card"
	PaymentCash PaymentMethod = "cash"
)

type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// Order represents a laundry pickup order.
type Order struct {
	ID               string          `json:"id"`
	CustomerID       string          `json:"customer_id"`
	DriverID         *string         `json:"driver_id"`
	Status           OrderStatus     `json:"status"`
	PickupMode       PickupMode      `json:"pickup_mode"`
	PickupSlot       TimeSlot        `json:"pickup_slot"`
	ReturnSlot       TimeSlot        `json:"return_slot"`
	Address          string          `json:"address"`
	Phone            string          `json:"phone"`
	Notes            string          `json:"notes,omitempty"`
	Price            decimal.Decimal `json:"price"`
	FinalPrice       decimal.Decimal `json:"final_price"`
	CouponID         *string         `json:"coupon_id,omitempty"`
	PaymentMethod    PaymentMethod   `json:"payment_method"`
	PaymentStatus    PaymentStatus   `json:"payment_status"`
	PaymentSessionID *string         `json:"payment_session_id,omitempty"`
	AcceptedAt       *time.Time      `json:"accepted_at,omitempty"`
	RejectedAt       *time.Time      `json:"rejected_at,omitempty"`
	RejectedBy       *string         `json:"rejected_by,omitempty"`
	ActualPickupTime *time.Time      `json:"actual_pickup_time,omitempty"`
	ActualReturnTime *time.Time      `json:"actual_return_time,omitempty"`
	Items            []OrderItem     `json:"items"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// OrderItem is one cart line, written together with its order and never updated.
type OrderItem struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
	LengthCm  *int            `json:"length_cm,omitempty"`
	WidthCm   *int            `json:"width_cm,omitempty"`
}

// CreateOrderRequest is the customer checkout payload. Prices are never read
// from it except ExpectedTotal, which is only compared against the server price.
// ASAP orders leave the pickup slot empty and get the earliest free one.
type CreateOrderRequest struct {
	Items         []CartLineRequest `json:"items" validate:"required,min=1,max=50,dive"`
	PickupMode    PickupMode        `json:"pickup_mode" validate:"required,oneof=asap choose_time"`
	PickupDate    string            `json:"pickup_date,omitempty" validate:"required_if=PickupMode choose_time,omitempty,isodate"`
	PickupStart   string            `json:"pickup_start,omitempty" validate:"required_if=PickupMode choose_time,omitempty,hhmm"`
	ReturnDate    string            `json:"return_date,omitempty" validate:"required_with=ReturnStart,omitempty,isodate"`
	ReturnStart   string            `json:"return_start,omitempty" validate:"required_with=ReturnDate,omitempty,hhmm"`
	Address       string            `json:"address" validate:"required,min=5,max=300"`
	Phone         string            `json:"phone" validate:"required,phone"`
	Notes         string            `json:"notes,omitempty" validate:"max=1000"`
	CouponCode    string            `json:"coupon_code,omitempty" validate:"omitempty,max=40"`
	PaymentMethod PaymentMethod     `json:"payment_method" validate:"required,oneof=card cash"`
	ExpectedTotal *decimal.Decimal  `json:"expected_total,omitempty"`
}

// CartLineRequest is one line of the checkout payload.
type CartLineRequest struct {
	ProductID string `json:"product_id" validate:"required,max=64"`
	Quantity  int    `json:"quantity" validate:"required,gt=0,lte=100"`
	LengthCm  *int   `json:"length_cm,omitempty" validate:"omitempty,gt=0,lte=1000"`
	WidthCm   *int   `json:"width_cm,omitempty" validate:"omitempty,gt=0,lte=1000"`
}

// RescheduleRequest lets a driver propose a different pickup (and optionally return) slot.
type RescheduleRequest struct {
	PickupDate  string `json:"pickup_date" validate:"required,isodate"`
	PickupStart string `json:"pickup_start" validate:"required,hhmm"`
	ReturnDate  string `json:"return_date,omitempty" validate:"required_with=ReturnStart,omitempty,isodate"`
	ReturnStart string `json:"return_start,omitempty" validate:"required_with=ReturnDate,omitempty,hhmm"`
}

// TransitionRequest asks for a status change.
type TransitionRequest struct {
	Status OrderStatus `json:"status" validate:"required,oneof=pending accepted picking_up washing returning delivered rejected cancelled"`
}

// OverrideRequest is the admin-only arbitrary status write.
type OverrideRequest struct {
	Status OrderStatus `json:"status" validate:"required,oneof=pending accepted picking_up washing returning delivered rejected cancelled"`
	Reason string      `json:"reason" validate:"required,min=3,max=500"`
}

// AssignDriverRequest is the admin request to set or clear the assigned driver.
type AssignDriverRequest struct {
	DriverID *string `json:"driver_id" validate:"omitempty,uuid"`
}

// OrderEvent is a change-feed notification. It is only a hint to re-read the order.
type OrderEvent struct {
	OrderID    string      `json:"order_id"`
	Status     OrderStatus `json:"status"`
	CustomerID string      `json:"-"`
	DriverID   *string     `json:"-"`
	At         time.Time   `json:"at"`

	// PoolChanged is set when the order entered or left the unassigned pool.
	PoolChanged bool `json:"-"`
}

// StatusChange is one row of an order's audit trail.
type StatusChange struct {
	ID        int64       `json:"id"`
	OrderID   string      `json:"order_id"`
	From      OrderStatus `json:"from_status"`
	To        OrderStatus `json:"to_status"`
	ActorID   *string     `json:"actor_id"`
	Reason    string      `json:"reason,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// OrderQuote is the server-side price and schedule of a cart, returned before
// the customer commits the order.
type OrderQuote struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Discount   decimal.Decimal `json:"discount"`
	FinalPrice decimal.Decimal `json:"final_price"`
	PickupSlot TimeSlot        `json:"pickup_slot"`
	ReturnSlot TimeSlot        `json:"return_slot"`
	Items      []OrderItem     `json:"items"`
}
