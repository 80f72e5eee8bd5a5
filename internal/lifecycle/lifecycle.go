// Package lifecycle is the order state machine. It decides whether a status
// change is allowed for a caller and which side effects go with it; storage
// applies the result with a conditional update.
package lifecycle

import (
	"fmt"
	"time"

	"laundry-pickup/internal/auth"
	"laundry-pickup/internal/models"

	"github.com/shopspring/decimal"
)

// PointsValidity is how long awarded loyalty points stay spendable.
const PointsValidity = 365 * 24 * time.Hour

// Request is a status change attempt.
type Request struct {
	Order   *models.Order
	Session auth.Session
	To      models.OrderStatus
	Reason  string
	Now     time.Time

	// RejectedBefore is set when the calling driver has already rejected this order.
	RejectedBefore bool
}

// Transition is a planned status change together with everything that has to
// be written with it. Storage applies it only while the order is still in From.
type Transition struct {
	OrderID string
	From    models.OrderStatus
	To      models.OrderStatus
	ActorID string
	Reason  string
	At      time.Time

	// ClaimFor makes the write conditional on the order being unassigned or
	// already assigned to this driver.
	ClaimFor     string
	AssignDriver *string
	ClearDriver  bool

	StampAccepted bool
	StampPickup   bool
	StampReturn   bool
	RejectedBy    *string

	// RecordRejection keeps the order out of RejectedBy's pool.
	RecordRejection bool

	CalendarFor *string

	Points         int
	PointsExpireAt time.Time
}

type guard func(r Request) error

var allowedTransitions = map[models.OrderStatus]map[models.OrderStatus]guard{
	models.StatusPending: {
		models.StatusAccepted:  claimable,
		models.StatusRejected:  declinable,
		models.StatusCancelled: ownerOrAdmin,
	},
	models.StatusRejected: {
		models.StatusAccepted:  claimable,
		models.StatusCancelled: ownerOrAdmin,
	},
	models.StatusAccepted: {
		models.StatusPickingUp: assignedDriverOrAdmin,
		models.StatusCancelled: ownerOrAdmin,
	},
	models.StatusPickingUp: {
		models.StatusWashing:   assignedDriverOrAdmin,
		models.StatusCancelled: adminOnly,
	},
	models.StatusWashing: {
		models.StatusReturning: assignedDriverOrAdmin,
		models.StatusCancelled: adminOnly,
	},
	models.StatusReturning: {
		models.StatusDelivered: assignedDriverOrAdmin,
		models.StatusCancelled: adminOnly,
	},
}

var happyPath = map[models.OrderStatus]models.OrderStatus{
	models.StatusPending:   models.StatusAccepted,
	models.StatusRejected:  models.StatusAccepted,
	models.StatusAccepted:  models.StatusPickingUp,
	models.StatusPickingUp: models.StatusWashing,
	models.StatusWashing:   models.StatusReturning,
	models.StatusReturning: models.StatusDelivered,
}

// CanTransition reports whether from -> to is an edge of the state machine,
// regardless of who asks.
func CanTransition(from, to models.OrderStatus) bool {
	_, ok := allowedTransitions[from][to]
	return ok
}

// Next returns the happy-path successor of s.
func Next(s models.OrderStatus) (models.OrderStatus, bool) {
	n, ok := happyPath[s]
	return n, ok
}

// Terminal reports whether no regular transition leaves s.
func Terminal(s models.OrderStatus) bool {
	return len(allowedTransitions[s]) == 0
}

// Plan checks r against the transition matrix and returns what to persist.
func Plan(r Request) (Transition, error) {
	if r.Order == nil {
		return Transition{}, fmt.Errorf("lifecycle.Plan: %w", models.ErrNotFound)
	}
	check, ok := allowedTransitions[r.Order.Status][r.To]
	if !ok {
		return Transition{}, fmt.Errorf("lifecycle.Plan: %s -> %s: %w", r.Order.Status, r.To, models.ErrInvalidTransition)
	}
	if err := check(r); err != nil {
		return Transition{}, err
	}
	return effects(r), nil
}

// PlanOverride is the admin escape hatch: any status may be written as long as
// a reason is given. Stamps and points follow the target status.
func PlanOverride(r Request) (Transition, error) {
	if err := auth.Require(r.Session, auth.RoleAdmin); err != nil {
		return Transition{}, err
	}
	if r.Order == nil {
		return Transition{}, fmt.Errorf("lifecycle.PlanOverride: %w", models.ErrNotFound)
	}
	if !r.To.Valid() {
		return Transition{}, fmt.Errorf("lifecycle.PlanOverride: unknown status %q: %w", r.To, models.ErrValidation)
	}
	if r.Reason == "" {
		return Transition{}, fmt.Errorf("lifecycle.PlanOverride: reason is required: %w", models.ErrValidation)
	}
	if r.To == r.Order.Status {
		return Transition{}, fmt.Errorf("lifecycle.PlanOverride: already %s: %w", r.To, models.ErrInvalidTransition)
	}
	if driverBound[r.To] && r.Order.DriverID == nil {
		return Transition{}, fmt.Errorf("lifecycle.PlanOverride: %w", errNoDriver)
	}
	return effects(r), nil
}

// driverBound are the statuses in which some driver must own the order.
var driverBound = map[models.OrderStatus]bool{
	models.StatusAccepted:  true,
	models.StatusPickingUp: true,
	models.StatusWashing:   true,
	models.StatusReturning: true,
}

var errNoDriver = fmt.Errorf("%w: assign a driver first", models.ErrValidation)

// Points returns the loyalty points earned for a delivered order.
func Points(finalPrice decimal.Decimal) int {
	if !finalPrice.IsPositive() {
		return 0
	}
	return int(finalPrice.Floor().IntPart())
}

func effects(r Request) Transition {
	o := r.Order
	t := Transition{
		OrderID: o.ID,
		From:    o.Status,
		To:      r.To,
		ActorID: r.Session.UserID,
		Reason:  r.Reason,
		At:      r.Now,
	}
	isDriver := r.Session.Role == auth.RoleDriver

	switch r.To {
	case models.StatusAccepted:
		t.StampAccepted = o.AcceptedAt == nil
		driver := o.DriverID
		if isDriver {
			id := r.Session.UserID
			t.ClaimFor = id
			t.AssignDriver = &id
			driver = &id
		}
		t.CalendarFor = driver
	case models.StatusPickingUp:
		t.StampPickup = o.ActualPickupTime == nil
	case models.StatusDelivered:
		t.StampReturn = o.ActualReturnTime == nil
		t.Points = Points(o.FinalPrice)
		t.PointsExpireAt = r.Now.Add(PointsValidity)
	case models.StatusRejected:
		id := r.Session.UserID
		t.RejectedBy = &id
		t.ClearDriver = true
		t.RecordRejection = isDriver
	}
	return t
}

func claimable(r Request) error {
	switch {
	case r.Session.Is(auth.RoleAdmin):
		// Admins accept on behalf of the driver already assigned.
		if r.Order.DriverID == nil {
			return errNoDriver
		}
		return auth.Require(r.Session, auth.RoleAdmin)
	case r.Session.Is(auth.RoleDriver):
		if r.RejectedBefore {
			return models.ErrForbidden
		}
		if d := r.Order.DriverID; d != nil && *d != r.Session.UserID {
			return models.ErrOrderUnavailable
		}
		return auth.Require(r.Session, auth.RoleDriver)
	}
	return models.ErrForbidden
}

func declinable(r Request) error {
	if r.Session.Is(auth.RoleDriver) {
		if d := r.Order.DriverID; d != nil && *d != r.Session.UserID {
			return models.ErrForbidden
		}
	}
	return auth.Require(r.Session, auth.RoleDriver, auth.RoleAdmin)
}

func ownerOrAdmin(r Request) error {
	if r.Session.Is(auth.RoleCustomer) {
		return auth.RequireSelfOr(r.Session, r.Order.CustomerID)
	}
	return auth.Require(r.Session, auth.RoleAdmin)
}

func assignedDriverOrAdmin(r Request) error {
	if r.Session.Is(auth.RoleDriver) {
		if d := r.Order.DriverID; d == nil || *d != r.Session.UserID {
			return models.ErrForbidden
		}
	}
	return auth.Require(r.Session, auth.RoleDriver, auth.RoleAdmin)
}

func adminOnly(r Request) error {
	return auth.Require(r.Session, auth.RoleAdmin)
}

// Apply writes t onto an in-memory copy of an order, the same way storage does.
func (t Transition) Apply(o *models.Order) {
	o.Status = t.To
	o.UpdatedAt = t.At
	if t.AssignDriver != nil {
		id := *t.AssignDriver
		o.DriverID = &id
	}
	if t.ClearDriver {
		o.DriverID = nil
	}
	if t.StampAccepted {
		at := t.At
		o.AcceptedAt = &at
	}
	if t.StampPickup {
		at := t.At
		o.ActualPickupTime = &at
	}
	if t.StampReturn {
		at := t.At
		o.ActualReturnTime = &at
	}
	if t.RejectedBy != nil {
		at, by := t.At, *t.RejectedBy
		o.RejectedAt = &at
		o.RejectedBy = &by
	}
}
