package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"laundry-pickup/internal/auth"
	"laundry-pickup/internal/models"
	"laundry-pickup/internal/scheduling"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	berlin = time.FixedZone("CET", 60*60)
	// Monday morning.
	now = time.Date(2026, 3, 2, 9, 15, 0, 0, berlin)

	alice  = auth.Session{UserID: "cus-alice", Role: auth.RoleCustomer}
	bob    = auth.Session{UserID: "cus-bob", Role: auth.RoleCustomer}
	dave   = auth.Session{UserID: "drv-dave", Role: auth.RoleDriver}
	erin   = auth.Session{UserID: "drv-erin", Role: auth.RoleDriver}
	admin  = auth.Session{UserID: "adm-root", Role: auth.RoleAdmin}
	nobody = auth.Session{}
)

type fixture struct {
	svc  *Service
	repo *memRepo
	rec  *recorder
}

func newFixture() *fixture {
	repo := newMemRepo()
	rec := &recorder{}
	catalog := products{
		"wash_dry": {ID: "wash_dry", Name: "Wash & Dry", Kind: models.ProductKindUnit, Price: decimal.RequireFromString("25.90"), Active: true},
		"ironing":  {ID: "ironing", Name: "Ironing", Kind: models.ProductKindUnit, Price: decimal.RequireFromString("3.50"), Active: true},
		"rug_wash": {ID: "rug_wash", Name: "Rug wash", Kind: models.ProductKindArea, Price: decimal.RequireFromString("29.90"), Active: true},
		"retired":  {ID: "retired", Name: "Old service", Kind: models.ProductKindUnit, Price: decimal.RequireFromString("9.90"), Active: false},
	}
	coupons := couponBook{
		"SPRING10": {ID: "cp-1", Code: "SPRING10", DiscountType: models.DiscountPercentage, DiscountValue: decimal.NewFromInt(10)},
	}
	roles := roleBook{dave.UserID: auth.RoleDriver, erin.UserID: auth.RoleDriver, alice.UserID: auth.RoleCustomer}
	sched := scheduling.New(berlin, func() time.Time { return now })
	return &fixture{
		svc:  NewService(repo, catalog, coupons, roles, sched, rec, rec),
		repo: repo,
		rec:  rec,
	}
}

func validRequest() models.CreateOrderRequest {
	return models.CreateOrderRequest{
		Items:         []models.CartLineRequest{{ProductID: "wash_dry", Quantity: 1}},
		PickupMode:    models.PickupChooseTime,
		PickupDate:    "2026-03-03",
		PickupStart:   "10:00",
		Address:       "Torstrasse 1, 10119 Berlin",
		Phone:         "+49 30 1234567",
		PaymentMethod: models.PaymentCard,
	}
}

func (f *fixture) placeOrder(t *testing.T) *models.Order {
	t.Helper()
	order, err := f.svc.CreateOrder(context.Background(), alice, validRequest())
	require.NoError(t, err)
	return order
}

func TestCreateOrder_PricesOnServer(t *testing.T) {
	f := newFixture()
	req := validRequest()
	req.CouponCode = "SPRING10"

	order, err := f.svc.CreateOrder(context.Background(), alice, req)
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, order.Status)
	assert.Equal(t, alice.UserID, order.CustomerID)
	assert.Nil(t, order.DriverID)
	assert.Equal(t, "25.90", order.Price.StringFixed(2))
	assert.Equal(t, "23.31", order.FinalPrice.StringFixed(2))
	require.NotNil(t, order.CouponID)
	assert.Equal(t, "cp-1", *order.CouponID)
	assert.Equal(t, models.PaymentUnpaid, order.PaymentStatus)

	assert.Equal(t, time.Date(2026, 3, 3, 10, 0, 0, 0, berlin), order.PickupSlot.Start)
	assert.Equal(t, time.Date(2026, 3, 3, 15, 0, 0, 0, berlin), order.ReturnSlot.Start)

	require.Len(t, order.Items, 1)
	assert.Equal(t, order.ID, order.Items[0].OrderID)
	assert.Equal(t, "25.90", order.Items[0].Total.StringFixed(2))

	ev := f.rec.lastEvent()
	assert.Equal(t, order.ID, ev.OrderID)
	assert.True(t, ev.PoolChanged)
	assert.Equal(t, []models.OrderStatus{models.StatusPending}, f.rec.mailed)
}

func TestCreateOrder_ASAPTakesEarliestSlot(t *testing.T) {
	f := newFixture()
	req := validRequest()
	req.PickupMode = models.PickupASAP
	req.PickupDate, req.PickupStart = "", ""

	order, err := f.svc.CreateOrder(context.Background(), alice, req)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 10, 0, 0, 0, berlin), order.PickupSlot.Start)
	assert.Equal(t, time.Date(2026, 3, 2, 17, 0, 0, 0, berlin), order.ReturnSlot.Start)
}

func TestCreateOrder_ExplicitReturnAndRug(t *testing.T) {
	f := newFixture()
	req := validRequest()
	l, w := 120, 180
	req.Items = append(req.Items, models.CartLineRequest{ProductID: "rug_wash", Quantity: 1, LengthCm: &l, WidthCm: &w})
	req.ReturnDate, req.ReturnStart = "2026-03-04", "08:00"
	expected := decimal.RequireFromString("75.80")
	req.ExpectedTotal = &expected

	order, err := f.svc.CreateOrder(context.Background(), alice, req)
	require.NoError(t, err)
	assert.Equal(t, "75.80", order.FinalPrice.StringFixed(2))
	assert.Equal(t, "2026-03-04", order.ReturnSlot.Date)
	assert.Equal(t, "49.90", order.Items[1].UnitPrice.StringFixed(2))
}

func TestCreateOrder_GatewayRejects(t *testing.T) {
	tests := []struct {
		name    string
		sess    auth.Session
		mutate  func(r *models.CreateOrderRequest)
		wantErr error
	}{
		{"anonymous", nobody, func(r *models.CreateOrderRequest) {}, models.ErrForbidden},
		{"driver", dave, func(r *models.CreateOrderRequest) {}, models.ErrForbidden},
		{"no items", alice, func(r *models.CreateOrderRequest) { r.Items = nil }, models.ErrValidation},
		{"bad phone", alice, func(r *models.CreateOrderRequest) { r.Phone = "call me" }, models.ErrValidation},
		{"short address", alice, func(r *models.CreateOrderRequest) { r.Address = "x" }, models.ErrValidation},
		{"chosen time without date", alice, func(r *models.CreateOrderRequest) { r.PickupDate = "" }, models.ErrValidation},
		{"unknown product", alice, func(r *models.CreateOrderRequest) { r.Items[0].ProductID = "dry_clean" }, models.ErrUnknownProduct},
		{"inactive product", alice, func(r *models.CreateOrderRequest) { r.Items[0].ProductID = "retired" }, models.ErrUnknownProduct},
		{"rug without size", alice, func(r *models.CreateOrderRequest) { r.Items[0].ProductID = "rug_wash" }, models.ErrValidation},
		{"pickup already started", alice, func(r *models.CreateOrderRequest) { r.PickupDate, r.PickupStart = "2026-03-02", "08:00" }, models.ErrPickupInPast},
		{"off grid", alice, func(r *models.CreateOrderRequest) { r.PickupStart = "09:00" }, models.ErrInvalidSlot},
		{"too far ahead", alice, func(r *models.CreateOrderRequest) { r.PickupDate = "2026-04-20" }, models.ErrInvalidSlot},
		{"return before pickup ends", alice, func(r *models.CreateOrderRequest) { r.ReturnDate, r.ReturnStart = "2026-03-03", "10:00" }, models.ErrInvalidSlot},
		{"invalid coupon", alice, func(r *models.CreateOrderRequest) { r.CouponCode = "EXPIRED" }, models.ErrCouponInvalid},
		{"stale client total", alice, func(r *models.CreateOrderRequest) {
			stale := decimal.RequireFromString("19.90")
			r.ExpectedTotal = &stale
		}, models.ErrPriceMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			req := validRequest()
			tt.mutate(&req)

			order, err := f.svc.CreateOrder(context.Background(), tt.sess, req)
			assert.Nil(t, order)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, f.repo.created, "nothing may be written for a rejected order")
			assert.Empty(t, f.rec.events)
		})
	}
}

func TestQuote_WritesNothing(t *testing.T) {
	f := newFixture()
	req := validRequest()
	req.Items[0].Quantity = 2
	req.CouponCode = "SPRING10"

	q, err := f.svc.Quote(context.Background(), alice, req)
	require.NoError(t, err)
	assert.Equal(t, "51.80", q.Subtotal.StringFixed(2))
	assert.Equal(t, "5.18", q.Discount.StringFixed(2))
	assert.Equal(t, "46.62", q.FinalPrice.StringFixed(2))
	assert.Zero(t, f.repo.created)
}

func TestGetOrder_Visibility(t *testing.T) {
	f := newFixture()
	order := f.placeOrder(t)
	ctx := context.Background()

	_, err := f.svc.GetOrder(ctx, alice, order.ID)
	assert.NoError(t, err)
	_, err = f.svc.GetOrder(ctx, admin, order.ID)
	assert.NoError(t, err)
	_, err = f.svc.GetOrder(ctx, dave, order.ID)
	assert.NoError(t, err, "pool orders are visible to drivers")

	_, err = f.svc.GetOrder(ctx, bob, order.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = f.svc.GetOrder(ctx, alice, "not-a-uuid")
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = f.svc.GetOrder(ctx, alice, uuid.NewString())
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.svc.Accept(ctx, dave, order.ID)
	require.NoError(t, err)
	_, err = f.svc.GetOrder(ctx, erin, order.ID)
	assert.ErrorIs(t, err, models.ErrOrderUnavailable)
}

func TestAccept_ConcurrentDriversExactlyOneWins(t *testing.T) {
	f := newFixture()
	order := f.placeOrder(t)

	// Both drivers read the pending order before either writes.
	var arrived sync.WaitGroup
	arrived.Add(2)
	f.repo.beforeApply = func() {
		arrived.Done()
		arrived.Wait()
	}

	drivers := []auth.Session{dave, erin}
	errs := make([]error, len(drivers))
	var wg sync.WaitGroup
	for i, d := range drivers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.Accept(context.Background(), d, order.ID)
		}()
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, models.ErrOrderUnavailable):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, lost)

	stored, err := f.repo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, stored.Status)
	require.NotNil(t, stored.DriverID)
	assert.NotNil(t, stored.AcceptedAt)
}

func TestAccept_ManyDriversRace(t *testing.T) {
	f := newFixture()
	order := f.placeOrder(t)

	const n = 12
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d := auth.Session{UserID: uuid.NewString(), Role: auth.RoleDriver}
			_, err := f.svc.Accept(context.Background(), d, order.ID)
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, models.ErrOrderUnavailable, "driver %d", i)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestReject_ReturnsOrderToPool(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	order := f.placeOrder(t)

	rejected, err := f.svc.Reject(ctx, dave, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, rejected.Status)
	assert.Nil(t, rejected.DriverID)
	require.NotNil(t, rejected.RejectedAt)
	require.NotNil(t, rejected.RejectedBy)
	assert.Equal(t, dave.UserID, *rejected.RejectedBy)
	assert.Equal(t, []models.OrderStatus{models.StatusPending, models.StatusRejected}, f.rec.mailed)

	pool, _, err := f.svc.ListPool(ctx, erin, 1, 20)
	require.NoError(t, err)
	require.Len(t, pool, 1)
	assert.Equal(t, order.ID, pool[0].ID)

	pool, _, err = f.svc.ListPool(ctx, dave, 1, 20)
	require.NoError(t, err)
	assert.Empty(t, pool, "the rejecting driver no longer sees the order")

	_, err = f.svc.Accept(ctx, dave, order.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)

	accepted, err := f.svc.Accept(ctx, erin, order.ID)
	require.NoError(t, err)
	assert.Equal(t, erin.UserID, *accepted.DriverID)
}

func TestAdvance_HappyPathAwardsPointsOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	req := validRequest()
	req.CouponCode = "SPRING10"
	order, err := f.svc.CreateOrder(ctx, alice, req)
	require.NoError(t, err)

	_, err = f.svc.Accept(ctx, dave, order.ID)
	require.NoError(t, err)

	_, err = f.svc.Advance(ctx, erin, order.ID)
	assert.ErrorIs(t, err, models.ErrOrderUnavailable, "only the assigned driver may advance")

	want := []models.OrderStatus{models.StatusPickingUp, models.StatusWashing, models.StatusReturning, models.StatusDelivered}
	for _, status := range want {
		o, err := f.svc.Advance(ctx, dave, order.ID)
		require.NoError(t, err)
		assert.Equal(t, status, o.Status)
	}

	delivered, err := f.svc.GetOrder(ctx, alice, order.ID)
	require.NoError(t, err)
	assert.NotNil(t, delivered.ActualPickupTime)
	assert.NotNil(t, delivered.ActualReturnTime)
	assert.Equal(t, 23, f.repo.points[order.ID])

	_, err = f.svc.Advance(ctx, dave, order.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	history, err := f.svc.History(ctx, alice, order.ID)
	require.NoError(t, err)
	assert.Len(t, history, 5)
}

func TestCancel_Matrix(t *testing.T) {
	ctx := context.Background()

	t.Run("owner cancels pending", func(t *testing.T) {
		f := newFixture()
		order := f.placeOrder(t)
		o, err := f.svc.Cancel(ctx, alice, order.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, o.Status)
		assert.True(t, f.rec.lastEvent().PoolChanged)
	})

	t.Run("other customer cannot see it", func(t *testing.T) {
		f := newFixture()
		order := f.placeOrder(t)
		_, err := f.svc.Cancel(ctx, bob, order.ID)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("owner cannot cancel once picked up", func(t *testing.T) {
		f := newFixture()
		order := f.placeOrder(t)
		_, err := f.svc.Accept(ctx, dave, order.ID)
		require.NoError(t, err)
		_, err = f.svc.Advance(ctx, dave, order.ID)
		require.NoError(t, err)

		_, err = f.svc.Cancel(ctx, alice, order.ID)
		assert.ErrorIs(t, err, models.ErrForbidden)

		o, err := f.svc.Cancel(ctx, admin, order.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, o.Status)
	})

	t.Run("driver cannot cancel", func(t *testing.T) {
		f := newFixture()
		order := f.placeOrder(t)
		_, err := f.svc.Cancel(ctx, dave, order.ID)
		assert.ErrorIs(t, err, models.ErrForbidden)
	})
}

func TestOverride(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	order := f.placeOrder(t)
	_, err := f.svc.Cancel(ctx, alice, order.ID)
	require.NoError(t, err)

	_, err = f.svc.Override(ctx, dave, order.ID, models.OverrideRequest{Status: models.StatusPending, Reason: "customer called"})
	assert.ErrorIs(t, err, models.ErrForbidden)

	o, err := f.svc.Override(ctx, admin, order.ID, models.OverrideRequest{Status: models.StatusPending, Reason: "customer called"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, o.Status)

	history, err := f.svc.History(ctx, admin, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "customer called", history[len(history)-1].Reason)
}

func TestReschedule(t *testing.T) {
	ctx := context.Background()

	t.Run("assigned driver gets a new estimate", func(t *testing.T) {
		f := newFixture()
		order := f.placeOrder(t)
		_, err := f.svc.Accept(ctx, dave, order.ID)
		require.NoError(t, err)
		o, err := f.svc.Reschedule(ctx, dave, order.ID, models.RescheduleRequest{PickupDate: "2026-03-04", PickupStart: "12:00"})
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 3, 4, 12, 0, 0, 0, berlin), o.PickupSlot.Start)
		assert.Equal(t, time.Date(2026, 3, 4, 17, 0, 0, 0, berlin), o.ReturnSlot.Start)
	})

	t.Run("only the assigned driver", func(t *testing.T) {
		f := newFixture()
		order := f.placeOrder(t)
		req := models.RescheduleRequest{PickupDate: "2026-03-04", PickupStart: "12:00"}
		_, err := f.svc.Reschedule(ctx, dave, order.ID, req)
		assert.ErrorIs(t, err, models.ErrForbidden, "pool order")

		_, err = f.svc.Accept(ctx, dave, order.ID)
		require.NoError(t, err)
		_, err = f.svc.Reschedule(ctx, erin, order.ID, req)
		assert.ErrorIs(t, err, models.ErrOrderUnavailable)
	})

	t.Run("customers cannot reschedule", func(t *testing.T) {
		f := newFixture()
		order := f.placeOrder(t)
		_, err := f.svc.Reschedule(ctx, alice, order.ID, models.RescheduleRequest{PickupDate: "2026-03-04", PickupStart: "12:00"})
		assert.ErrorIs(t, err, models.ErrForbidden)
	})

	t.Run("not after pickup", func(t *testing.T) {
		f := newFixture()
		order := f.placeOrder(t)
		_, err := f.svc.Accept(ctx, dave, order.ID)
		require.NoError(t, err)
		_, err = f.svc.Advance(ctx, dave, order.ID)
		require.NoError(t, err)

		_, err = f.svc.Reschedule(ctx, dave, order.ID, models.RescheduleRequest{PickupDate: "2026-03-04", PickupStart: "12:00"})
		assert.ErrorIs(t, err, models.ErrOrderCannotBeRescheduled)
	})

	t.Run("slot in the past", func(t *testing.T) {
		f := newFixture()
		order := f.placeOrder(t)
		_, err := f.svc.Reschedule(ctx, admin, order.ID, models.RescheduleRequest{PickupDate: "2026-03-01", PickupStart: "12:00"})
		assert.ErrorIs(t, err, models.ErrPickupInPast)
	})
}

func TestAssignDriver(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	order := f.placeOrder(t)

	_, err := f.svc.AssignDriver(ctx, admin, order.ID, &alice.UserID)
	assert.ErrorIs(t, err, models.ErrValidation)

	o, err := f.svc.AssignDriver(ctx, admin, order.ID, &erin.UserID)
	require.NoError(t, err)
	assert.Equal(t, erin.UserID, *o.DriverID)
	assert.True(t, f.rec.lastEvent().PoolChanged)

	// The assigned driver can still accept.
	o, err = f.svc.Accept(ctx, erin, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, o.Status)

	_, err = f.svc.AssignDriver(ctx, dave, order.ID, &dave.UserID)
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestAdminAcceptNeedsDriver(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	order := f.placeOrder(t)

	_, err := f.svc.Transition(ctx, admin, order.ID, models.StatusAccepted)
	assert.ErrorIs(t, err, models.ErrValidation)
	stored, err := f.repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)

	_, err = f.svc.AssignDriver(ctx, admin, order.ID, &dave.UserID)
	require.NoError(t, err)
	o, err := f.svc.Transition(ctx, admin, order.ID, models.StatusAccepted)
	require.NoError(t, err)
	require.NotNil(t, o.DriverID)
	assert.Equal(t, dave.UserID, *o.DriverID)

	o, err = f.svc.Advance(ctx, dave, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPickingUp, o.Status)
}

func TestNotificationFailureDoesNotFailTransition(t *testing.T) {
	f := newFixture()
	f.rec.mailErr = errors.New("ses throttled")

	order, err := f.svc.CreateOrder(context.Background(), alice, validRequest())
	require.NoError(t, err)
	_, err = f.svc.Accept(context.Background(), dave, order.ID)
	assert.NoError(t, err)
}

func TestListAll_AdminOnly(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.placeOrder(t)

	_, _, err := f.svc.ListAll(ctx, alice, nil, 1, 20)
	assert.ErrorIs(t, err, models.ErrForbidden)

	bogus := models.OrderStatus("lost")
	_, _, err = f.svc.ListAll(ctx, admin, &bogus, 1, 20)
	assert.ErrorIs(t, err, models.ErrValidation)

	pending := models.StatusPending
	orders, total, err := f.svc.ListAll(ctx, admin, &pending, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, orders, 1)
}
