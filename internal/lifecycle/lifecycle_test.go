package lifecycle

import (
	"testing"
	"time"

	"laundry-pickup/internal/auth"
	"laundry-pickup/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	now      = time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
	customer = auth.Session{UserID: "cust-1", Role: auth.RoleCustomer}
	stranger = auth.Session{UserID: "cust-2", Role: auth.RoleCustomer}
	driverA  = auth.Session{UserID: "drv-a", Role: auth.RoleDriver}
	driverB  = auth.Session{UserID: "drv-b", Role: auth.RoleDriver}
	admin    = auth.Session{UserID: "adm-1", Role: auth.RoleAdmin}
)

func strPtr(s string) *string { return &s }

func order(status models.OrderStatus, driver *string) *models.Order {
	return &models.Order{
		ID:         "ord-1",
		CustomerID: customer.UserID,
		DriverID:   driver,
		Status:     status,
		Price:      decimal.RequireFromString("49.90"),
		FinalPrice: decimal.RequireFromString("44.91"),
	}
}

func TestPlan_Matrix(t *testing.T) {
	assigned := strPtr(driverA.UserID)

	tests := []struct {
		name    string
		order   *models.Order
		session auth.Session
		to      models.OrderStatus
		wantErr error
	}{
		{"driver accepts pending", order(models.StatusPending, nil), driverA, models.StatusAccepted, nil},
		{"admin accepts pending for assigned driver", order(models.StatusPending, assigned), admin, models.StatusAccepted, nil},
		{"admin cannot accept unassigned", order(models.StatusPending, nil), admin, models.StatusAccepted, models.ErrValidation},
		{"customer cannot accept", order(models.StatusPending, nil), customer, models.StatusAccepted, models.ErrForbidden},
		{"driver accepts rejected order", order(models.StatusRejected, nil), driverB, models.StatusAccepted, nil},
		{"accept of order taken by another driver", order(models.StatusPending, assigned), driverB, models.StatusAccepted, models.ErrOrderUnavailable},
		{"driver rejects pending", order(models.StatusPending, nil), driverA, models.StatusRejected, nil},
		{"customer cannot reject", order(models.StatusPending, nil), customer, models.StatusRejected, models.ErrForbidden},
		{"cannot reject accepted", order(models.StatusAccepted, assigned), driverA, models.StatusRejected, models.ErrInvalidTransition},
		{"assigned driver picks up", order(models.StatusAccepted, assigned), driverA, models.StatusPickingUp, nil},
		{"other driver cannot pick up", order(models.StatusAccepted, assigned), driverB, models.StatusPickingUp, models.ErrForbidden},
		{"admin advances", order(models.StatusWashing, assigned), admin, models.StatusReturning, nil},
		{"customer cannot advance", order(models.StatusWashing, assigned), customer, models.StatusReturning, models.ErrForbidden},
		{"assigned driver delivers", order(models.StatusReturning, assigned), driverA, models.StatusDelivered, nil},
		{"owner cancels pending", order(models.StatusPending, nil), customer, models.StatusCancelled, nil},
		{"owner cancels accepted", order(models.StatusAccepted, assigned), customer, models.StatusCancelled, nil},
		{"owner cancels rejected", order(models.StatusRejected, nil), customer, models.StatusCancelled, nil},
		{"stranger cannot cancel", order(models.StatusPending, nil), stranger, models.StatusCancelled, models.ErrForbidden},
		{"driver cannot cancel", order(models.StatusAccepted, assigned), driverA, models.StatusCancelled, models.ErrForbidden},
		{"owner cannot cancel once picked up", order(models.StatusPickingUp, assigned), customer, models.StatusCancelled, models.ErrForbidden},
		{"admin cancels in progress", order(models.StatusWashing, assigned), admin, models.StatusCancelled, nil},
		{"skipping is invalid", order(models.StatusAccepted, assigned), admin, models.StatusDelivered, models.ErrInvalidTransition},
		{"backward is invalid", order(models.StatusWashing, assigned), admin, models.StatusPickingUp, models.ErrInvalidTransition},
		{"delivered is terminal", order(models.StatusDelivered, assigned), admin, models.StatusCancelled, models.ErrInvalidTransition},
		{"cancelled is terminal", order(models.StatusCancelled, nil), admin, models.StatusPending, models.ErrInvalidTransition},
		{"anonymous", order(models.StatusPending, nil), auth.Session{Role: auth.RoleDriver}, models.StatusAccepted, models.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := Plan(Request{Order: tt.order, Session: tt.session, To: tt.to, Now: now})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.order.Status, tr.From)
			assert.Equal(t, tt.to, tr.To)
			assert.Equal(t, tt.session.UserID, tr.ActorID)
		})
	}
}

func TestPlan_DriverWhoRejectedCannotAccept(t *testing.T) {
	o := order(models.StatusRejected, nil)

	_, err := Plan(Request{Order: o, Session: driverA, To: models.StatusAccepted, RejectedBefore: true, Now: now})
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = Plan(Request{Order: o, Session: driverB, To: models.StatusAccepted, Now: now})
	assert.NoError(t, err)
}

func TestPlan_AcceptClaimsOrder(t *testing.T) {
	o := order(models.StatusPending, nil)

	tr, err := Plan(Request{Order: o, Session: driverA, To: models.StatusAccepted, Now: now})
	require.NoError(t, err)

	assert.Equal(t, driverA.UserID, tr.ClaimFor)
	require.NotNil(t, tr.AssignDriver)
	assert.Equal(t, driverA.UserID, *tr.AssignDriver)
	require.NotNil(t, tr.CalendarFor)
	assert.Equal(t, driverA.UserID, *tr.CalendarFor)
	assert.True(t, tr.StampAccepted)

	tr.Apply(o)
	assert.Equal(t, models.StatusAccepted, o.Status)
	require.NotNil(t, o.AcceptedAt)
	assert.True(t, now.Equal(*o.AcceptedAt))
}

func TestPlan_AdminAccept(t *testing.T) {
	_, err := Plan(Request{Order: order(models.StatusPending, nil), Session: admin, To: models.StatusAccepted, Now: now})
	assert.ErrorIs(t, err, models.ErrValidation)

	o := order(models.StatusPending, strPtr(driverA.UserID))
	tr, err := Plan(Request{Order: o, Session: admin, To: models.StatusAccepted, Now: now})
	require.NoError(t, err)
	assert.Empty(t, tr.ClaimFor)
	assert.Nil(t, tr.AssignDriver)
	require.NotNil(t, tr.CalendarFor)
	assert.Equal(t, driverA.UserID, *tr.CalendarFor)

	tr.Apply(o)
	require.NotNil(t, o.DriverID)
	assert.Equal(t, driverA.UserID, *o.DriverID)
}

func TestPlan_AcceptedAtSetOnce(t *testing.T) {
	first := now.Add(-2 * time.Hour)
	o := order(models.StatusWashing, strPtr(driverA.UserID))
	o.AcceptedAt = &first

	tr, err := PlanOverride(Request{Order: o, Session: admin, To: models.StatusAccepted, Reason: "pickup failed", Now: now})
	require.NoError(t, err)
	assert.False(t, tr.StampAccepted)

	tr.Apply(o)
	assert.True(t, first.Equal(*o.AcceptedAt))
}

func TestPlan_RejectReturnsOrderToPool(t *testing.T) {
	o := order(models.StatusPending, strPtr(driverA.UserID))

	tr, err := Plan(Request{Order: o, Session: driverA, To: models.StatusRejected, Now: now})
	require.NoError(t, err)
	assert.True(t, tr.ClearDriver)
	assert.True(t, tr.RecordRejection)

	tr.Apply(o)
	assert.Equal(t, models.StatusRejected, o.Status)
	assert.Nil(t, o.DriverID)
	require.NotNil(t, o.RejectedAt)
	require.NotNil(t, o.RejectedBy)
	assert.Equal(t, driverA.UserID, *o.RejectedBy)
	assert.False(t, Terminal(o.Status))
}

func TestPlan_DeliveredAwardsPoints(t *testing.T) {
	o := order(models.StatusReturning, strPtr(driverA.UserID))

	tr, err := Plan(Request{Order: o, Session: driverA, To: models.StatusDelivered, Now: now})
	require.NoError(t, err)

	assert.Equal(t, 44, tr.Points)
	assert.True(t, now.Add(PointsValidity).Equal(tr.PointsExpireAt))
	assert.True(t, tr.StampReturn)
}

func TestPlanOverride(t *testing.T) {
	o := order(models.StatusDelivered, strPtr(driverA.UserID))

	_, err := PlanOverride(Request{Order: o, Session: driverA, To: models.StatusWashing, Reason: "mistake", Now: now})
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = PlanOverride(Request{Order: o, Session: admin, To: models.StatusWashing, Now: now})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = PlanOverride(Request{Order: o, Session: admin, To: "lost", Reason: "x", Now: now})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = PlanOverride(Request{Order: o, Session: admin, To: models.StatusDelivered, Reason: "noop", Now: now})
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	unassigned := order(models.StatusCancelled, nil)
	_, err = PlanOverride(Request{Order: unassigned, Session: admin, To: models.StatusPickingUp, Reason: "x", Now: now})
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = PlanOverride(Request{Order: unassigned, Session: admin, To: models.StatusPending, Reason: "reopen", Now: now})
	assert.NoError(t, err)

	tr, err := PlanOverride(Request{Order: o, Session: admin, To: models.StatusWashing, Reason: "clicked too early", Now: now})
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, tr.From)
	assert.Equal(t, models.StatusWashing, tr.To)
	assert.Equal(t, "clicked too early", tr.Reason)
	assert.Zero(t, tr.Points)
}

func TestNext(t *testing.T) {
	path := []models.OrderStatus{
		models.StatusPending, models.StatusAccepted, models.StatusPickingUp,
		models.StatusWashing, models.StatusReturning, models.StatusDelivered,
	}
	for i := 0; i < len(path)-1; i++ {
		next, ok := Next(path[i])
		require.True(t, ok)
		assert.Equal(t, path[i+1], next)
		assert.True(t, CanTransition(path[i], next))
	}

	for _, s := range []models.OrderStatus{models.StatusDelivered, models.StatusCancelled} {
		_, ok := Next(s)
		assert.False(t, ok)
		assert.True(t, Terminal(s))
	}
}

func TestPoints(t *testing.T) {
	tests := map[string]int{
		"0":     0,
		"-3":    0,
		"0.99":  0,
		"23.31": 23,
		"49.90": 49,
		"100":   100,
	}
	for price, want := range tests {
		assert.Equal(t, want, Points(decimal.RequireFromString(price)), price)
	}
}
