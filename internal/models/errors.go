package models

import "errors"

var (
	// ErrNotFound is returned when a requested resource is not found.
	ErrNotFound = errors.New("resource not found")

	// ErrConflict is returned when a unique field (email, coupon code) is already taken.
	ErrConflict = errors.New("resource already exists")

	// ErrInvalidCredentials is returned on a failed login.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrForbidden is returned by the authorization check. Handlers render it as a
	// generic "not authorized" so callers cannot probe which resources exist.
	ErrForbidden = errors.New("not authorized")

	// ErrValidation wraps malformed input rejected before anything is written.
	ErrValidation = errors.New("validation failed")

	// ErrUnknownProduct is returned when a cart line references a product that is
	// unknown or no longer active.
	ErrUnknownProduct = errors.New("unknown or inactive product")

	// ErrPriceMismatch is returned when the client-side total differs from the
	// authoritative server-side price.
	ErrPriceMismatch = errors.New("submitted price does not match current price")

	// ErrInvalidSlot is returned for a date/time that is not on the pickup grid.
	ErrInvalidSlot = errors.New("invalid time slot")

	// ErrPickupInPast is returned when the requested pickup time is not in the future.
	ErrPickupInPast = errors.New("pickup time must be in the future")

	// ErrCouponInvalid is returned when a coupon is unknown, expired, not yet valid
	// or exhausted at order-commit time.
	ErrCouponInvalid = errors.New("coupon is invalid or expired")

	// ErrOrderUnavailable is returned when a conditional status update matched no
	// row: another actor changed the order first (e.g. two drivers accepting).
	ErrOrderUnavailable = errors.New("order no longer available")

	// ErrInvalidTransition is returned when the requested status is not a legal
	// successor of the current one.
	ErrInvalidTransition = errors.New("invalid order status transition")

	// ErrOrderCannotBeRescheduled is returned once fulfilment has started.
	ErrOrderCannotBeRescheduled = errors.New("order can no longer be rescheduled")

	// ErrOrderCannotBePaid is returned when an order is already paid, cancelled or rejected.
	ErrOrderCannotBePaid = errors.New("order is not in a state that can be paid for")

	// ErrShiftAlreadyActive is returned when a driver starts a second shift.
	ErrShiftAlreadyActive = errors.New("driver already has an active shift")

	// ErrNoActiveShift is returned when a driver ends a shift that is not open.
	ErrNoActiveShift = errors.New("driver has no active shift")

	// ErrAddressNotFound is returned by the geocoder when the provider has no match.
	ErrAddressNotFound = errors.New("address not found")

	// ErrUpstreamUnavailable is returned when a third-party provider (geocoding,
	// payments) cannot be reached. Nothing has been changed when it is returned.
	ErrUpstreamUnavailable = errors.New("upstream provider unavailable")
)

// ErrorResponse is the JSON body for every error answer.
type ErrorResponse struct {
	Message string `json:"message"`
}
