package orders

import (
	"context"
	"slices"
	"sync"

	"laundry-pickup/internal/auth"
	"laundry-pickup/internal/lifecycle"
	"laundry-pickup/internal/models"
)

// memRepo is an in-memory RepositoryInterface with the same compare-and-swap
// behavior as the Postgres one.
type memRepo struct {
	mu         sync.Mutex
	orders     map[string]*models.Order
	rejections map[string]map[string]bool
	history    []models.StatusChange
	points     map[string]int
	created    int

	// beforeApply, when set, runs at the start of ApplyTransition outside the lock.
	beforeApply func()
}

func newMemRepo() *memRepo {
	return &memRepo{
		orders:     map[string]*models.Order{},
		rejections: map[string]map[string]bool{},
		points:     map[string]int{},
	}
}

func clone(o *models.Order) *models.Order {
	c := *o
	c.Items = slices.Clone(o.Items)
	return &c
}

func (r *memRepo) Create(_ context.Context, o *models.Order) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = clone(o)
	r.created++
	return clone(o), nil
}

func (r *memRepo) FindByID(_ context.Context, id string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return clone(o), nil
}

func (r *memRepo) filter(keep func(o *models.Order) bool) ([]*models.Order, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Order
	for _, o := range r.orders {
		if keep(o) {
			out = append(out, clone(o))
		}
	}
	return out, len(out), nil
}

func (r *memRepo) ListByCustomer(_ context.Context, customerID string, _, _ int) ([]*models.Order, int, error) {
	return r.filter(func(o *models.Order) bool { return o.CustomerID == customerID })
}

func (r *memRepo) ListPool(_ context.Context, driverID string, _, _ int) ([]*models.Order, int, error) {
	return r.filter(func(o *models.Order) bool {
		return inPool(o) && !r.rejections[o.ID][driverID]
	})
}

func (r *memRepo) ListByDriver(_ context.Context, driverID string, _, _ int) ([]*models.Order, int, error) {
	return r.filter(func(o *models.Order) bool { return o.DriverID != nil && *o.DriverID == driverID })
}

func (r *memRepo) ListAll(_ context.Context, status *models.OrderStatus, _, _ int) ([]*models.Order, int, error) {
	return r.filter(func(o *models.Order) bool { return status == nil || o.Status == *status })
}

func (r *memRepo) HasRejected(_ context.Context, orderID, driverID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rejections[orderID][driverID], nil
}

func (r *memRepo) History(_ context.Context, orderID string) ([]models.StatusChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.StatusChange
	for _, h := range r.history {
		if h.OrderID == orderID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (r *memRepo) ApplyTransition(_ context.Context, t lifecycle.Transition) (*models.Order, error) {
	if r.beforeApply != nil {
		r.beforeApply()
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[t.OrderID]
	if !ok || o.Status != t.From {
		return nil, models.ErrOrderUnavailable
	}
	if t.ClaimFor != "" && o.DriverID != nil && *o.DriverID != t.ClaimFor {
		return nil, models.ErrOrderUnavailable
	}

	t.Apply(o)
	actor := t.ActorID
	r.history = append(r.history, models.StatusChange{
		ID: int64(len(r.history) + 1), OrderID: o.ID, From: t.From, To: t.To, ActorID: &actor, Reason: t.Reason, CreatedAt: t.At,
	})
	if t.RecordRejection && t.RejectedBy != nil {
		if r.rejections[o.ID] == nil {
			r.rejections[o.ID] = map[string]bool{}
		}
		r.rejections[o.ID][*t.RejectedBy] = true
	}
	if _, awarded := r.points[o.ID]; t.Points > 0 && !awarded {
		r.points[o.ID] = t.Points
	}
	return clone(o), nil
}

func (r *memRepo) UpdateSchedule(_ context.Context, orderID string, pickup, ret models.TimeSlot) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok || (o.Status != models.StatusPending && o.Status != models.StatusAccepted) {
		return nil, models.ErrOrderCannotBeRescheduled
	}
	o.PickupSlot, o.ReturnSlot = pickup, ret
	return clone(o), nil
}

func (r *memRepo) AssignDriver(_ context.Context, orderID string, driverID *string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok || lifecycle.Terminal(o.Status) {
		return nil, models.ErrOrderUnavailable
	}
	o.DriverID = driverID
	return clone(o), nil
}

func (r *memRepo) SetPaymentSession(_ context.Context, orderID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.orders[orderID]
	o.PaymentSessionID = &sessionID
	o.PaymentStatus = models.PaymentPending
	return nil
}

func (r *memRepo) MarkPaymentStatus(_ context.Context, orderID string, status models.PaymentStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.orders[orderID]
	if o.PaymentStatus == models.PaymentPaid || o.PaymentStatus == status {
		return false, nil
	}
	o.PaymentStatus = status
	return true, nil
}

type products map[string]*models.Product

func (p products) GetProduct(_ context.Context, id string) (*models.Product, error) {
	if prod, ok := p[id]; ok {
		return prod, nil
	}
	return nil, models.ErrNotFound
}

type couponBook map[string]*models.Coupon

func (c couponBook) FindUsable(_ context.Context, code string) (*models.Coupon, error) {
	if coupon, ok := c[code]; ok {
		return coupon, nil
	}
	return nil, models.ErrCouponInvalid
}

type roleBook map[string]auth.Role

func (r roleBook) GetRole(_ context.Context, userID string) (auth.Role, error) {
	if role, ok := r[userID]; ok {
		return role, nil
	}
	return "", models.ErrNotFound
}

type recorder struct {
	mu      sync.Mutex
	events  []models.OrderEvent
	mailed  []models.OrderStatus
	mailErr error
}

func (r *recorder) Publish(ev models.OrderEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) OrderChanged(_ context.Context, o *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mailed = append(r.mailed, o.Status)
	return r.mailErr
}

func (r *recorder) lastEvent() models.OrderEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}
