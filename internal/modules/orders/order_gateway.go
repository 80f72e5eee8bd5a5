package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"laundry-pickup/internal/auth"
	"laundry-pickup/internal/models"
	"laundry-pickup/internal/pricing"
	"laundry-pickup/internal/scheduling"
	"laundry-pickup/pkg/utils"

	"github.com/google/uuid"
)

// ProductLookup resolves catalog entries for cart lines.
type ProductLookup interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
}

// CouponLookup returns a coupon only when it can be redeemed right now.
type CouponLookup interface {
	FindUsable(ctx context.Context, code string) (*models.Coupon, error)
}

// checkout is a validated cart: the quote shown to the customer plus the
// coupon to redeem when the order is written.
type checkout struct {
	quote  *models.OrderQuote
	coupon *models.Coupon
}

// validateCreate is the order mutation gateway. It either accepts the whole
// request with a server-computed price or rejects it; nothing is written here.
func (s *Service) validateCreate(ctx context.Context, sess auth.Session, req models.CreateOrderRequest) (*checkout, error) {
	if err := auth.Require(sess, auth.RoleCustomer); err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	lines, items, err := s.priceLines(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	now := s.sched.Now()
	pickup, err := s.pickupSlot(req, now)
	if err != nil {
		return nil, err
	}
	ret, err := s.returnSlot(pickup, req.ReturnDate, req.ReturnStart, req.PickupMode == models.PickupASAP)
	if err != nil {
		return nil, err
	}

	var coupon *models.Coupon
	if req.CouponCode != "" {
		coupon, err = s.coupons.FindUsable(ctx, req.CouponCode)
		if err != nil {
			return nil, err
		}
	}

	q := pricing.Compute(lines, coupon)
	if req.ExpectedTotal != nil && !req.ExpectedTotal.Equal(q.FinalPrice) {
		return nil, fmt.Errorf("%w: expected %s, current price is %s",
			models.ErrPriceMismatch, req.ExpectedTotal.StringFixed(2), q.FinalPrice.StringFixed(2))
	}

	return &checkout{
		quote: &models.OrderQuote{
			Subtotal:   q.Subtotal,
			Discount:   q.Discount,
			FinalPrice: q.FinalPrice,
			PickupSlot: pickup,
			ReturnSlot: ret,
			Items:      items,
		},
		coupon: coupon,
	}, nil
}

func (s *Service) priceLines(ctx context.Context, cart []models.CartLineRequest) ([]pricing.Line, []models.OrderItem, error) {
	lines := make([]pricing.Line, 0, len(cart))
	items := make([]models.OrderItem, 0, len(cart))
	for _, cl := range cart {
		p, err := s.products.GetProduct(ctx, cl.ProductID)
		if errors.Is(err, models.ErrNotFound) || (err == nil && !p.Active) {
			return nil, nil, fmt.Errorf("%w: %s", models.ErrUnknownProduct, cl.ProductID)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("service.priceLines: %w", err)
		}

		unit, err := pricing.UnitPrice(*p, cl)
		if err != nil {
			return nil, nil, err
		}
		line := pricing.Line{ProductID: p.ID, Name: p.Name, UnitPrice: unit, Quantity: cl.Quantity}
		lines = append(lines, line)
		items = append(items, models.OrderItem{
			ID:        uuid.NewString(),
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  cl.Quantity,
			UnitPrice: unit,
			Total:     line.Total(),
			LengthCm:  cl.LengthCm,
			WidthCm:   cl.WidthCm,
		})
	}
	return lines, items, nil
}

// pickupSlot resolves the requested window. ASAP orders get the earliest
// window still open today or later.
func (s *Service) pickupSlot(req models.CreateOrderRequest, now time.Time) (models.TimeSlot, error) {
	if req.PickupMode == models.PickupASAP {
		slot, ok := s.sched.Earliest()
		if !ok {
			return models.TimeSlot{}, fmt.Errorf("%w: no pickup window available", models.ErrInvalidSlot)
		}
		return slot, nil
	}
	return s.futureSlot(req.PickupDate, req.PickupStart, now)
}

func (s *Service) futureSlot(date, start string, now time.Time) (models.TimeSlot, error) {
	slot, err := s.sched.ParseSlot(date, start)
	if err != nil {
		return models.TimeSlot{}, err
	}
	if !slot.Start.After(now) {
		return models.TimeSlot{}, fmt.Errorf("%w: %s", models.ErrPickupInPast, slot.Display)
	}
	if slot.Start.After(now.AddDate(0, 0, scheduling.MaxHorizonDays)) {
		return models.TimeSlot{}, fmt.Errorf("%w: more than %d days ahead", models.ErrInvalidSlot, scheduling.MaxHorizonDays)
	}
	return slot, nil
}

// returnSlot uses the requested return window when one is given and the
// estimate otherwise. A return window may not start before pickup ends.
func (s *Service) returnSlot(pickup models.TimeSlot, date, start string, asap bool) (models.TimeSlot, error) {
	if date == "" {
		return scheduling.EstimateReturn(pickup, asap), nil
	}
	ret, err := s.sched.ParseSlot(date, start)
	if err != nil {
		return models.TimeSlot{}, err
	}
	if ret.Start.Before(pickup.End) {
		return models.TimeSlot{}, fmt.Errorf("%w: return must not start before pickup ends", models.ErrInvalidSlot)
	}
	return ret, nil
}
