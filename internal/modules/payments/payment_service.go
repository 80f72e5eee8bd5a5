package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"laundry-pickup/internal/auth"
	"laundry-pickup/internal/models"
	gateway "laundry-pickup/pkg/payments"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// OrderStore is the part of the order repository payments need.
type OrderStore interface {
	FindByID(ctx context.Context, orderID string) (*models.Order, error)
	SetPaymentSession(ctx context.Context, orderID, sessionID string) error
	MarkPaymentStatus(ctx context.Context, orderID string, status models.PaymentStatus) (bool, error)
}

// Publisher receives payment status changes for the live feed.
type Publisher interface {
	Publish(ev models.OrderEvent)
}

type ServiceInterface interface {
	CreateSession(ctx context.Context, sess auth.Session, orderID string) (*models.PaymentSession, error)
	HandleNotification(ctx context.Context, n models.PaymentNotification) error
}

type Service struct {
	orders    OrderStore
	gateway   gateway.Gateway
	publisher Publisher
	currency  string
	now       func() time.Time
}

func NewService(orders OrderStore, gw gateway.Gateway, publisher Publisher, currency string, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{orders: orders, gateway: gw, publisher: publisher, currency: currency, now: now}
}

func payable(o *models.Order) bool {
	return o.PaymentStatus != models.PaymentPaid &&
		o.Status != models.StatusCancelled &&
		o.Status != models.StatusRejected
}

// CreateSession opens a hosted checkout for the caller's own order. A provider
// failure leaves the order untouched and can be retried.
func (s *Service) CreateSession(ctx context.Context, sess auth.Session, orderID string) (*models.PaymentSession, error) {
	if err := auth.Require(sess, auth.RoleCustomer); err != nil {
		return nil, err
	}
	if uuid.Validate(orderID) != nil {
		return nil, models.ErrNotFound
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("service.CreatePaymentSession: %w", err)
	}
	if order.CustomerID != sess.UserID {
		return nil, models.ErrNotFound
	}
	if !payable(order) {
		return nil, models.ErrOrderCannotBePaid
	}

	session, err := s.gateway.CreateSession(ctx, gateway.SessionRequest{
		OrderID:  order.ID,
		Title:    "Laundry order " + order.ID[:8],
		Amount:   order.FinalPrice,
		Currency: s.currency,
	})
	if err != nil {
		log.Warn().Err(err).Str("order_id", order.ID).Msg("Payment provider failed to create session")
		return nil, fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err)
	}

	if err := s.orders.SetPaymentSession(ctx, order.ID, session.ID); err != nil {
		return nil, fmt.Errorf("service.CreatePaymentSession: %w", err)
	}
	return &models.PaymentSession{OrderID: order.ID, SessionID: session.ID, CheckoutURL: session.CheckoutURL}, nil
}

// HandleNotification confirms a webhook by asking the provider for the
// payment. The notification body itself is never trusted.
func (s *Service) HandleNotification(ctx context.Context, n models.PaymentNotification) error {
	if n.Type != "payment" || n.Data.ID == "" {
		log.Debug().Str("type", n.Type).Str("action", n.Action).Msg("Ignoring payment notification")
		return nil
	}

	p, err := s.gateway.GetPayment(ctx, n.Data.ID)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err)
	}

	var status models.PaymentStatus
	switch p.Status {
	case gateway.StatusApproved:
		status = models.PaymentPaid
	case gateway.StatusRejected, gateway.StatusCancelled:
		status = models.PaymentFailed
	default:
		log.Debug().Str("payment_id", p.ID).Str("status", p.Status).Msg("Payment still in progress")
		return nil
	}
	if uuid.Validate(p.OrderID) != nil {
		log.Warn().Str("payment_id", p.ID).Str("external_reference", p.OrderID).Msg("Payment does not reference an order")
		return nil
	}

	changed, err := s.orders.MarkPaymentStatus(ctx, p.OrderID, status)
	if err != nil {
		return fmt.Errorf("service.HandleNotification: %w", err)
	}
	if !changed {
		return nil
	}
	log.Info().Str("order_id", p.OrderID).Str("payment_status", string(status)).Msg("Payment status updated")

	order, err := s.orders.FindByID(ctx, p.OrderID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			log.Warn().Err(err).Str("order_id", p.OrderID).Msg("Could not reload paid order")
		}
		return nil
	}
	s.publisher.Publish(models.OrderEvent{
		OrderID:    order.ID,
		Status:     order.Status,
		CustomerID: order.CustomerID,
		DriverID:   order.DriverID,
		At:         s.now(),
	})
	return nil
}
