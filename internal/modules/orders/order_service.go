package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"laundry-pickup/internal/auth"
	"laundry-pickup/internal/lifecycle"
	"laundry-pickup/internal/models"
	"laundry-pickup/internal/scheduling"
	"laundry-pickup/pkg/utils"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ServiceInterface defines the contract for the order service.
type ServiceInterface interface {
	Quote(ctx context.Context, sess auth.Session, req models.CreateOrderRequest) (*models.OrderQuote, error)
	CreateOrder(ctx context.Context, sess auth.Session, req models.CreateOrderRequest) (*models.Order, error)
	GetOrder(ctx context.Context, sess auth.Session, orderID string) (*models.Order, error)
	History(ctx context.Context, sess auth.Session, orderID string) ([]models.StatusChange, error)

	ListMyOrders(ctx context.Context, sess auth.Session, page, limit int) ([]*models.Order, int, error)
	ListPool(ctx context.Context, sess auth.Session, page, limit int) ([]*models.Order, int, error)
	ListAssignments(ctx context.Context, sess auth.Session, page, limit int) ([]*models.Order, int, error)
	ListAll(ctx context.Context, sess auth.Session, status *models.OrderStatus, page, limit int) ([]*models.Order, int, error)

	Transition(ctx context.Context, sess auth.Session, orderID string, to models.OrderStatus) (*models.Order, error)
	Accept(ctx context.Context, sess auth.Session, orderID string) (*models.Order, error)
	Reject(ctx context.Context, sess auth.Session, orderID string) (*models.Order, error)
	Cancel(ctx context.Context, sess auth.Session, orderID string) (*models.Order, error)
	Advance(ctx context.Context, sess auth.Session, orderID string) (*models.Order, error)
	Override(ctx context.Context, sess auth.Session, orderID string, req models.OverrideRequest) (*models.Order, error)
	Reschedule(ctx context.Context, sess auth.Session, orderID string, req models.RescheduleRequest) (*models.Order, error)
	AssignDriver(ctx context.Context, sess auth.Session, orderID string, driverID *string) (*models.Order, error)
}

// RoleLookup returns the current role of a user.
type RoleLookup interface {
	GetRole(ctx context.Context, userID string) (auth.Role, error)
}

// Notifier tells the customer about a change of their order.
type Notifier interface {
	OrderChanged(ctx context.Context, order *models.Order) error
}

// Publisher fans order events out to connected clients.
type Publisher interface {
	Publish(ev models.OrderEvent)
}

// Service implements the order use cases on top of the lifecycle rules.
type Service struct {
	repo      RepositoryInterface
	products  ProductLookup
	coupons   CouponLookup
	roles     RoleLookup
	sched     *scheduling.Scheduler
	notifier  Notifier
	publisher Publisher
}

// NewService creates a new order service.
func NewService(repo RepositoryInterface, products ProductLookup, coupons CouponLookup, roles RoleLookup,
	sched *scheduling.Scheduler, notifier Notifier, publisher Publisher) *Service {
	return &Service{
		repo:      repo,
		products:  products,
		coupons:   coupons,
		roles:     roles,
		sched:     sched,
		notifier:  notifier,
		publisher: publisher,
	}
}

// Quote prices a cart and resolves its slots without writing anything.
func (s *Service) Quote(ctx context.Context, sess auth.Session, req models.CreateOrderRequest) (*models.OrderQuote, error) {
	co, err := s.validateCreate(ctx, sess, req)
	if err != nil {
		return nil, fmt.Errorf("service.Quote: %w", err)
	}
	return co.quote, nil
}

// CreateOrder validates the request, prices it on the server and stores it as pending.
func (s *Service) CreateOrder(ctx context.Context, sess auth.Session, req models.CreateOrderRequest) (*models.Order, error) {
	co, err := s.validateCreate(ctx, sess, req)
	if err != nil {
		return nil, fmt.Errorf("service.CreateOrder: %w", err)
	}

	now := s.sched.Now()
	order := &models.Order{
		ID:            uuid.NewString(),
		CustomerID:    sess.UserID,
		Status:        models.StatusPending,
		PickupMode:    req.PickupMode,
		PickupSlot:    co.quote.PickupSlot,
		ReturnSlot:    co.quote.ReturnSlot,
		Address:       strings.TrimSpace(req.Address),
		Phone:         strings.TrimSpace(req.Phone),
		Notes:         strings.TrimSpace(req.Notes),
		Price:         co.quote.Subtotal,
		FinalPrice:    co.quote.FinalPrice,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: models.PaymentUnpaid,
		Items:         co.quote.Items,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if co.coupon != nil {
		order.CouponID = &co.coupon.ID
	}
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
	}

	created, err := s.repo.Create(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("service.CreateOrder: %w", err)
	}

	log.Info().Str("order_id", created.ID).Str("customer_id", created.CustomerID).
		Str("final_price", created.FinalPrice.StringFixed(2)).Msg("order created")
	s.changed(ctx, created, true)
	return created, nil
}

// GetOrder returns an order the caller may see. Orders outside the caller's
// view answer not found.
func (s *Service) GetOrder(ctx context.Context, sess auth.Session, orderID string) (*models.Order, error) {
	order, err := s.visibleOrder(ctx, sess, orderID)
	if err != nil {
		return nil, fmt.Errorf("service.GetOrder: %w", err)
	}
	return order, nil
}

func (s *Service) History(ctx context.Context, sess auth.Session, orderID string) ([]models.StatusChange, error) {
	if _, err := s.visibleOrder(ctx, sess, orderID); err != nil {
		return nil, fmt.Errorf("service.History: %w", err)
	}
	changes, err := s.repo.History(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("service.History: %w", err)
	}
	return changes, nil
}

func (s *Service) visibleOrder(ctx context.Context, sess auth.Session, orderID string) (*models.Order, error) {
	if err := auth.Require(sess, auth.RoleCustomer, auth.RoleDriver, auth.RoleAdmin); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, models.ErrNotFound
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !visible(sess, order) {
		// Another driver got it first.
		if sess.Is(auth.RoleDriver) && order.DriverID != nil {
			return nil, models.ErrOrderUnavailable
		}
		return nil, models.ErrNotFound
	}
	return order, nil
}

// visible reports whether sess may read o: admins see everything, customers
// their own orders, drivers their assignments and the unassigned pool.
func visible(sess auth.Session, o *models.Order) bool {
	switch sess.Role {
	case auth.RoleAdmin:
		return true
	case auth.RoleCustomer:
		return o.CustomerID == sess.UserID
	case auth.RoleDriver:
		if o.DriverID != nil {
			return *o.DriverID == sess.UserID
		}
		return inPool(o)
	}
	return false
}

func inPool(o *models.Order) bool {
	return o.DriverID == nil && (o.Status == models.StatusPending || o.Status == models.StatusRejected)
}

func (s *Service) ListMyOrders(ctx context.Context, sess auth.Session, page, limit int) ([]*models.Order, int, error) {
	if err := auth.Require(sess, auth.RoleCustomer); err != nil {
		return nil, 0, err
	}
	orders, total, err := s.repo.ListByCustomer(ctx, sess.UserID, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("service.ListMyOrders: %w", err)
	}
	return orders, total, nil
}

// ListPool returns the unassigned orders the calling driver may still accept.
func (s *Service) ListPool(ctx context.Context, sess auth.Session, page, limit int) ([]*models.Order, int, error) {
	if err := auth.Require(sess, auth.RoleDriver); err != nil {
		return nil, 0, err
	}
	orders, total, err := s.repo.ListPool(ctx, sess.UserID, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("service.ListPool: %w", err)
	}
	return orders, total, nil
}

func (s *Service) ListAssignments(ctx context.Context, sess auth.Session, page, limit int) ([]*models.Order, int, error) {
	if err := auth.Require(sess, auth.RoleDriver); err != nil {
		return nil, 0, err
	}
	orders, total, err := s.repo.ListByDriver(ctx, sess.UserID, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("service.ListAssignments: %w", err)
	}
	return orders, total, nil
}

func (s *Service) ListAll(ctx context.Context, sess auth.Session, status *models.OrderStatus, page, limit int) ([]*models.Order, int, error) {
	if err := auth.Require(sess, auth.RoleAdmin); err != nil {
		return nil, 0, err
	}
	if status != nil && !status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", models.ErrValidation, *status)
	}
	orders, total, err := s.repo.ListAll(ctx, status, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("service.ListAll: %w", err)
	}
	return orders, total, nil
}

// Transition moves an order to status to if the caller is allowed to.
func (s *Service) Transition(ctx context.Context, sess auth.Session, orderID string, to models.OrderStatus) (*models.Order, error) {
	order, err := s.visibleOrder(ctx, sess, orderID)
	if err != nil {
		return nil, fmt.Errorf("service.Transition: %w", err)
	}

	req := lifecycle.Request{Order: order, Session: sess, To: to, Now: s.sched.Now()}
	if to == models.StatusAccepted && sess.Is(auth.RoleDriver) {
		req.RejectedBefore, err = s.repo.HasRejected(ctx, order.ID, sess.UserID)
		if err != nil {
			return nil, fmt.Errorf("service.Transition: %w", err)
		}
	}

	t, err := lifecycle.Plan(req)
	if err != nil {
		return nil, fmt.Errorf("service.Transition: %w", err)
	}
	return s.apply(ctx, order, t)
}

func (s *Service) Accept(ctx context.Context, sess auth.Session, orderID string) (*models.Order, error) {
	return s.Transition(ctx, sess, orderID, models.StatusAccepted)
}

// Reject hands a pending order back to the pool without the calling driver.
func (s *Service) Reject(ctx context.Context, sess auth.Session, orderID string) (*models.Order, error) {
	return s.Transition(ctx, sess, orderID, models.StatusRejected)
}

func (s *Service) Cancel(ctx context.Context, sess auth.Session, orderID string) (*models.Order, error) {
	return s.Transition(ctx, sess, orderID, models.StatusCancelled)
}

// Advance moves an order one step along the happy path.
func (s *Service) Advance(ctx context.Context, sess auth.Session, orderID string) (*models.Order, error) {
	order, err := s.visibleOrder(ctx, sess, orderID)
	if err != nil {
		return nil, fmt.Errorf("service.Advance: %w", err)
	}
	next, ok := lifecycle.Next(order.Status)
	if !ok {
		return nil, fmt.Errorf("service.Advance: %s is final: %w", order.Status, models.ErrInvalidTransition)
	}
	return s.Transition(ctx, sess, orderID, next)
}

// Override writes any status on behalf of an admin, bypassing the transition matrix.
func (s *Service) Override(ctx context.Context, sess auth.Session, orderID string, req models.OverrideRequest) (*models.Order, error) {
	if err := auth.Require(sess, auth.RoleAdmin); err != nil {
		return nil, err
	}
	order, err := s.visibleOrder(ctx, sess, orderID)
	if err != nil {
		return nil, fmt.Errorf("service.Override: %w", err)
	}
	t, err := lifecycle.PlanOverride(lifecycle.Request{
		Order:   order,
		Session: sess,
		To:      req.Status,
		Reason:  strings.TrimSpace(req.Reason),
		Now:     s.sched.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("service.Override: %w", err)
	}

	log.Warn().Str("order_id", order.ID).Str("admin_id", sess.UserID).
		Str("from", string(t.From)).Str("to", string(t.To)).Str("reason", t.Reason).Msg("order status overridden")
	return s.apply(ctx, order, t)
}

func (s *Service) apply(ctx context.Context, before *models.Order, t lifecycle.Transition) (*models.Order, error) {
	updated, err := s.repo.ApplyTransition(ctx, t)
	if err != nil {
		if errors.Is(err, models.ErrOrderUnavailable) {
			log.Info().Str("order_id", t.OrderID).Str("actor_id", t.ActorID).
				Str("to", string(t.To)).Msg("lost race for order")
		}
		return nil, fmt.Errorf("service.apply: %w", err)
	}

	log.Info().Str("order_id", updated.ID).Str("actor_id", t.ActorID).
		Str("from", string(t.From)).Str("to", string(t.To)).Msg("order status changed")
	s.changed(ctx, updated, inPool(before) != inPool(updated))
	return updated, nil
}

// Reschedule moves the pickup window (and the return window with it) while
// fulfilment has not started. Without an explicit return window the estimate
// is recomputed from the new pickup.
func (s *Service) Reschedule(ctx context.Context, sess auth.Session, orderID string, req models.RescheduleRequest) (*models.Order, error) {
	if err := auth.Require(sess, auth.RoleDriver, auth.RoleAdmin); err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	order, err := s.visibleOrder(ctx, sess, orderID)
	if err != nil {
		return nil, fmt.Errorf("service.Reschedule: %w", err)
	}
	if sess.Is(auth.RoleDriver) && (order.DriverID == nil || *order.DriverID != sess.UserID) {
		return nil, models.ErrForbidden
	}
	if order.Status != models.StatusPending && order.Status != models.StatusAccepted {
		return nil, fmt.Errorf("service.Reschedule: order is %s: %w", order.Status, models.ErrOrderCannotBeRescheduled)
	}

	pickup, err := s.futureSlot(req.PickupDate, req.PickupStart, s.sched.Now())
	if err != nil {
		return nil, fmt.Errorf("service.Reschedule: %w", err)
	}
	ret, err := s.returnSlot(pickup, req.ReturnDate, req.ReturnStart, order.PickupMode == models.PickupASAP)
	if err != nil {
		return nil, fmt.Errorf("service.Reschedule: %w", err)
	}

	updated, err := s.repo.UpdateSchedule(ctx, order.ID, pickup, ret)
	if err != nil {
		return nil, fmt.Errorf("service.Reschedule: %w", err)
	}
	log.Info().Str("order_id", updated.ID).Str("actor_id", sess.UserID).
		Str("pickup", pickup.Display).Str("return", ret.Display).Msg("order rescheduled")
	s.changed(ctx, updated, false)
	return updated, nil
}

// AssignDriver sets or clears the driver of an order (admin only). The new
// driver must hold the driver role.
func (s *Service) AssignDriver(ctx context.Context, sess auth.Session, orderID string, driverID *string) (*models.Order, error) {
	if err := auth.Require(sess, auth.RoleAdmin); err != nil {
		return nil, err
	}
	before, err := s.visibleOrder(ctx, sess, orderID)
	if err != nil {
		return nil, fmt.Errorf("service.AssignDriver: %w", err)
	}
	if driverID != nil {
		role, err := s.roles.GetRole(ctx, *driverID)
		if errors.Is(err, models.ErrNotFound) || (err == nil && role != auth.RoleDriver) {
			return nil, fmt.Errorf("%w: %s is not a driver", models.ErrValidation, *driverID)
		}
		if err != nil {
			return nil, fmt.Errorf("service.AssignDriver: %w", err)
		}
	}

	updated, err := s.repo.AssignDriver(ctx, orderID, driverID)
	if err != nil {
		return nil, fmt.Errorf("service.AssignDriver: %w", err)
	}
	log.Info().Str("order_id", updated.ID).Str("admin_id", sess.UserID).Msg("order driver reassigned")
	s.changed(ctx, updated, inPool(before) != inPool(updated))
	return updated, nil
}

// changed publishes the invalidation event and mails the customer. Neither
// may fail the request that caused the change.
func (s *Service) changed(ctx context.Context, o *models.Order, poolChanged bool) {
	s.publisher.Publish(models.OrderEvent{
		OrderID:     o.ID,
		Status:      o.Status,
		CustomerID:  o.CustomerID,
		DriverID:    o.DriverID,
		At:          o.UpdatedAt,
		PoolChanged: poolChanged,
	})
	if err := s.notifier.OrderChanged(ctx, o); err != nil {
		log.Error().Err(err).Str("order_id", o.ID).Msg("failed to notify customer")
	}
}
