package coupons

import (
	"context"
	"errors"
	"fmt"
	"time"

	"laundry-pickup/internal/auth"
	"laundry-pickup/internal/models"
	"laundry-pickup/internal/pricing"

	"github.com/shopspring/decimal"
)

// ServiceInterface defines the coupon use cases.
type ServiceInterface interface {
	Create(ctx context.Context, s auth.Session, req models.CouponRequest) (*models.Coupon, error)
	Update(ctx context.Context, s auth.Session, id string, req models.CouponRequest) (*models.Coupon, error)
	Delete(ctx context.Context, s auth.Session, id string) error
	Get(ctx context.Context, s auth.Session, id string) (*models.Coupon, error)
	List(ctx context.Context, s auth.Session, page, limit int) ([]*models.Coupon, int, error)
	ValidateCoupon(ctx context.Context, code string, orderTotal decimal.Decimal) (*models.CouponValidation, error)
}

type Service struct {
	repo RepositoryInterface
	now  func() time.Time
}

func NewService(repo RepositoryInterface, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, now: now}
}

var maxPercentage = decimal.NewFromInt(100)

func (s *Service) toCoupon(req models.CouponRequest) (*models.Coupon, error) {
	if !req.DiscountValue.IsPositive() {
		return nil, fmt.Errorf("%w: discount_value must be positive", models.ErrValidation)
	}
	if req.DiscountType == models.DiscountPercentage && req.DiscountValue.GreaterThan(maxPercentage) {
		return nil, fmt.Errorf("%w: percentage discount cannot exceed 100", models.ErrValidation)
	}

	c := &models.Coupon{
		Code:          NormalizeCode(req.Code),
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue.Round(2),
		UsageLimit:    req.UsageLimit,
		ValidFrom:     s.now(),
		ValidUntil:    req.ValidUntil,
	}
	if req.ValidFrom != nil {
		c.ValidFrom = *req.ValidFrom
	}
	if c.ValidUntil != nil && !c.ValidUntil.After(c.ValidFrom) {
		return nil, fmt.Errorf("%w: valid_until must be after valid_from", models.ErrValidation)
	}
	return c, nil
}

func (s *Service) Create(ctx context.Context, sess auth.Session, req models.CouponRequest) (*models.Coupon, error) {
	if err := auth.Require(sess, auth.RoleAdmin); err != nil {
		return nil, err
	}
	c, err := s.toCoupon(req)
	if err != nil {
		return nil, err
	}
	created, err := s.repo.Create(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("service.CreateCoupon: %w", err)
	}
	return created, nil
}

func (s *Service) Update(ctx context.Context, sess auth.Session, id string, req models.CouponRequest) (*models.Coupon, error) {
	if err := auth.Require(sess, auth.RoleAdmin); err != nil {
		return nil, err
	}
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service.UpdateCoupon: %w", err)
	}
	if req.ValidFrom == nil {
		req.ValidFrom = &existing.ValidFrom
	}
	c, err := s.toCoupon(req)
	if err != nil {
		return nil, err
	}
	c.ID = id
	updated, err := s.repo.Update(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("service.UpdateCoupon: %w", err)
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, sess auth.Session, id string) error {
	if err := auth.Require(sess, auth.RoleAdmin); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("service.DeleteCoupon: %w", err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, sess auth.Session, id string) (*models.Coupon, error) {
	if err := auth.Require(sess, auth.RoleAdmin); err != nil {
		return nil, err
	}
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service.GetCoupon: %w", err)
	}
	return c, nil
}

func (s *Service) List(ctx context.Context, sess auth.Session, page, limit int) ([]*models.Coupon, int, error) {
	if err := auth.Require(sess, auth.RoleAdmin); err != nil {
		return nil, 0, err
	}
	coupons, total, err := s.repo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("service.ListCoupons: %w", err)
	}
	return coupons, total, nil
}

// ValidateCoupon is the lenient checkout check: an unknown, expired or
// exhausted code yields Valid=false and the undiscounted total.
func (s *Service) ValidateCoupon(ctx context.Context, code string, orderTotal decimal.Decimal) (*models.CouponValidation, error) {
	result := &models.CouponValidation{Discount: decimal.Zero, FinalPrice: orderTotal}

	c, err := s.repo.FindByCode(ctx, code)
	if errors.Is(err, models.ErrNotFound) {
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("service.ValidateCoupon: %w", err)
	}
	if !pricing.CouponUsable(c, s.now()) {
		return result, nil
	}

	discount := pricing.Discount(orderTotal, c)
	result.Valid = true
	result.Coupon = c
	result.Discount = discount
	result.FinalPrice = decimal.Max(decimal.Zero, orderTotal.Sub(discount))
	return result, nil
}

// FindUsable returns the coupon for code if it can be applied right now, and
// models.ErrCouponInvalid otherwise. This is the strict order-commit check.
func (s *Service) FindUsable(ctx context.Context, code string) (*models.Coupon, error) {
	c, err := s.repo.FindByCode(ctx, code)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", models.ErrCouponInvalid, NormalizeCode(code))
	}
	if err != nil {
		return nil, fmt.Errorf("service.FindUsable: %w", err)
	}
	if !pricing.CouponUsable(c, s.now()) {
		return nil, fmt.Errorf("%w: %s", models.ErrCouponInvalid, c.Code)
	}
	return c, nil
}
