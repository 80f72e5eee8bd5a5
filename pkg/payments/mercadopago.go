// Package payments creates hosted checkout sessions and reads payment results
// from Mercado Pago.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/preference"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var ErrMissingAccessToken = errors.New("missing MERCADOPAGO_ACCESS_TOKEN")

// Provider payment states we act on.
const (
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
)

// SessionRequest describes what the customer is asked to pay.
type SessionRequest struct {
	OrderID  string
	Title    string
	Amount   decimal.Decimal
	Currency string
}

// Session is a created hosted checkout.
type Session struct {
	ID          string
	CheckoutURL string
}

// Payment is the provider's view of a payment.
type Payment struct {
	ID      string
	Status  string
	OrderID string
}

// Gateway is implemented by MercadoPagoGateway and MockGateway.
type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	GetPayment(ctx context.Context, paymentID string) (*Payment, error)
}

// MercadoPagoGateway uses Checkout Preferences for sessions and the payments
// API to confirm webhook notifications.
type MercadoPagoGateway struct {
	preferences     preference.Client
	payments        payment.Client
	notificationURL string
	returnURL       string
}

func NewMercadoPagoGateway(accessToken, notificationURL, returnURL string) (*MercadoPagoGateway, error) {
	if accessToken == "" {
		return nil, ErrMissingAccessToken
	}
	cfg, err := config.New(accessToken)
	if err != nil {
		return nil, fmt.Errorf("mercadopago config: %w", err)
	}
	log.Info().Msg("Mercado Pago client initialized")
	return &MercadoPagoGateway{
		preferences:     preference.NewClient(cfg),
		payments:        payment.NewClient(cfg),
		notificationURL: notificationURL,
		returnURL:       returnURL,
	}, nil
}

func (g *MercadoPagoGateway) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	resp, err := g.preferences.Create(ctx, preference.Request{
		Items: []preference.ItemRequest{{
			ID:         req.OrderID,
			Title:      req.Title,
			Quantity:   1,
			UnitPrice:  req.Amount.InexactFloat64(),
			CurrencyID: req.Currency,
		}},
		ExternalReference: req.OrderID,
		NotificationURL:   g.notificationURL,
		BackURLs: &preference.BackURLsRequest{
			Success: g.returnURL + "?result=success&order_id=" + req.OrderID,
			Pending: g.returnURL + "?result=pending&order_id=" + req.OrderID,
			Failure: g.returnURL + "?result=failure&order_id=" + req.OrderID,
		},
		AutoReturn: StatusApproved,
	})
	if err != nil {
		return nil, fmt.Errorf("mercadopago create preference: %w", err)
	}
	log.Info().Str("order_id", req.OrderID).Str("preference_id", resp.ID).Msg("Payment session created")
	return &Session{ID: resp.ID, CheckoutURL: resp.InitPoint}, nil
}

func (g *MercadoPagoGateway) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	id, err := strconv.Atoi(paymentID)
	if err != nil {
		return nil, fmt.Errorf("mercadopago payment id %q: %w", paymentID, err)
	}
	resp, err := g.payments.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("mercadopago get payment: %w", err)
	}
	return &Payment{ID: paymentID, Status: resp.Status, OrderID: resp.ExternalReference}, nil
}

// MockGateway stands in for Mercado Pago in local development. Its payment ids
// have the form "<orderID>:<status>", so a webhook can be replayed by hand.
type MockGateway struct {
	returnURL string
}

func NewMockGateway(returnURL string) *MockGateway {
	log.Warn().Msg("Payment gateway mock mode enabled")
	return &MockGateway{returnURL: returnURL}
}

func (g *MockGateway) CreateSession(_ context.Context, req SessionRequest) (*Session, error) {
	id := "mock-" + uuid.NewString()
	return &Session{ID: id, CheckoutURL: g.returnURL + "?result=success&order_id=" + req.OrderID + "&session_id=" + id}, nil
}

func (g *MockGateway) GetPayment(_ context.Context, paymentID string) (*Payment, error) {
	orderID, status, ok := strings.Cut(paymentID, ":")
	if !ok {
		status = StatusApproved
	}
	return &Payment{ID: paymentID, Status: status, OrderID: orderID}, nil
}
