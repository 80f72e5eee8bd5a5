package coupons

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"laundry-pickup/internal/db"
	"laundry-pickup/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryInterface defines the contract for coupon storage.
type RepositoryInterface interface {
	Create(ctx context.Context, c *models.Coupon) (*models.Coupon, error)
	FindByID(ctx context.Context, id string) (*models.Coupon, error)
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	List(ctx context.Context, page, limit int) ([]*models.Coupon, int, error)
	Update(ctx context.Context, c *models.Coupon) (*models.Coupon, error)
	Delete(ctx context.Context, id string) error
}

// Repository implements RepositoryInterface on Postgres.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const couponColumns = `id, code, discount_type, discount_value, usage_count, usage_limit, valid_from, valid_until, created_at`

func scanCoupon(row pgx.Row) (*models.Coupon, error) {
	var c models.Coupon
	err := row.Scan(&c.ID, &c.Code, &c.DiscountType, &c.DiscountValue, &c.UsageCount, &c.UsageLimit, &c.ValidFrom, &c.ValidUntil, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan coupon: %w", err)
	}
	return &c, nil
}

// NormalizeCode is the stored form of a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (r *Repository) Create(ctx context.Context, c *models.Coupon) (*models.Coupon, error) {
	query := `
		INSERT INTO coupons (code, discount_type, discount_value, usage_limit, valid_from, valid_until)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + couponColumns

	created, err := scanCoupon(r.db.QueryRow(ctx, query,
		NormalizeCode(c.Code), c.DiscountType, c.DiscountValue, c.UsageLimit, c.ValidFrom, c.ValidUntil))
	if err != nil {
		if db.IsUniqueViolation(err, "coupons_code_key") {
			return nil, fmt.Errorf("repository.CreateCoupon: code %s: %w", c.Code, models.ErrConflict)
		}
		return nil, fmt.Errorf("repository.CreateCoupon: %w", err)
	}
	return created, nil
}

func (r *Repository) FindByID(ctx context.Context, id string) (*models.Coupon, error) {
	c, err := scanCoupon(r.db.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("repository.FindCouponByID: %w", err)
	}
	return c, nil
}

func (r *Repository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	c, err := scanCoupon(r.db.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1`, NormalizeCode(code)))
	if err != nil {
		return nil, fmt.Errorf("repository.FindCouponByCode: %w", err)
	}
	return c, nil
}

func (r *Repository) List(ctx context.Context, page, limit int) ([]*models.Coupon, int, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+couponColumns+` FROM coupons ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListCoupons.Query: %w", err)
	}
	defer rows.Close()

	var coupons []*models.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repository.ListCoupons.Scan: %w", err)
		}
		coupons = append(coupons, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repository.ListCoupons.Rows: %w", err)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM coupons`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repository.ListCoupons.Count: %w", err)
	}
	return coupons, total, nil
}

// Update replaces the editable fields. usage_count is never written here.
func (r *Repository) Update(ctx context.Context, c *models.Coupon) (*models.Coupon, error) {
	query := `
		UPDATE coupons
		SET code = $2, discount_type = $3, discount_value = $4, usage_limit = $5, valid_from = $6, valid_until = $7
		WHERE id = $1
		RETURNING ` + couponColumns

	updated, err := scanCoupon(r.db.QueryRow(ctx, query,
		c.ID, NormalizeCode(c.Code), c.DiscountType, c.DiscountValue, c.UsageLimit, c.ValidFrom, c.ValidUntil))
	if err != nil {
		if db.IsUniqueViolation(err, "coupons_code_key") {
			return nil, fmt.Errorf("repository.UpdateCoupon: code %s: %w", c.Code, models.ErrConflict)
		}
		return nil, fmt.Errorf("repository.UpdateCoupon: %w", err)
	}
	return updated, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM coupons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("repository.DeleteCoupon: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Redeem counts one use of a coupon. It runs inside the order transaction and
// fails with models.ErrCouponInvalid when the coupon expired or ran out in the
// meantime, which rolls the order back.
func Redeem(ctx context.Context, q db.Querier, couponID string, at time.Time) error {
	query := `
		UPDATE coupons
		SET usage_count = usage_count + 1
		WHERE id = $1
		  AND (usage_limit IS NULL OR usage_count < usage_limit)
		  AND valid_from <= $2
		  AND (valid_until IS NULL OR valid_until >= $2)`

	cmdTag, err := q.Exec(ctx, query, couponID, at)
	if err != nil {
		return fmt.Errorf("coupons.Redeem: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("coupons.Redeem: %w", models.ErrCouponInvalid)
	}
	return nil
}
