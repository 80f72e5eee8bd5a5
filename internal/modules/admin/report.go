// Package admin serves the back-office reports.
package admin

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"laundry-pickup/internal/auth"
	"laundry-pickup/internal/models"
	"laundry-pickup/pkg/utils"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

const (
	defaultWindowDays = 30
	maxWindowDays     = 366
)

// ReportRepositoryInterface aggregates orders over [from, to).
type ReportRepositoryInterface interface {
	Summary(ctx context.Context, from, to time.Time) (*models.SummaryReport, error)
}

type ReportRepository struct {
	db *pgxpool.Pool
}

func NewReportRepository(db *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{db: db}
}

// Summary sends the three aggregates in one round trip. Orders are counted by
// creation time; revenue by the time the laundry came back.
func (r *ReportRepository) Summary(ctx context.Context, from, to time.Time) (*models.SummaryReport, error) {
	batch := &pgx.Batch{}
	batch.Queue(`SELECT status, COUNT(*) FROM orders WHERE created_at >= $1 AND created_at < $2 GROUP BY status`, from, to)
	batch.Queue(`
		SELECT COALESCE(SUM(final_price), 0) FROM orders
		WHERE status = 'delivered' AND actual_return_time >= $1 AND actual_return_time < $2`, from, to)
	batch.Queue(`SELECT COUNT(*) FROM orders WHERE coupon_id IS NOT NULL AND created_at >= $1 AND created_at < $2`, from, to)

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	report := &models.SummaryReport{From: from, To: to, OrdersByStatus: map[models.OrderStatus]int{}}

	rows, err := results.Query()
	if err != nil {
		return nil, fmt.Errorf("repository.Summary.Statuses: %w", err)
	}
	type statusCount struct {
		Status models.OrderStatus
		Count  int
	}
	counts, err := pgx.CollectRows(rows, pgx.RowToStructByPos[statusCount])
	if err != nil {
		return nil, fmt.Errorf("repository.Summary.Statuses: %w", err)
	}
	for _, c := range counts {
		report.OrdersByStatus[c.Status] = c.Count
	}

	if err := results.QueryRow().Scan(&report.DeliveredRevenue); err != nil {
		return nil, fmt.Errorf("repository.Summary.Revenue: %w", err)
	}
	if err := results.QueryRow().Scan(&report.CouponRedemptions); err != nil {
		return nil, fmt.Errorf("repository.Summary.Coupons: %w", err)
	}
	return report, nil
}

type ReportServiceInterface interface {
	Summary(ctx context.Context, sess auth.Session, fromDate, toDate string) (*models.SummaryReport, error)
}

type ReportService struct {
	repo ReportRepositoryInterface
	loc  *time.Location
	now  func() time.Time
}

func NewReportService(repo ReportRepositoryInterface, loc *time.Location, now func() time.Time) *ReportService {
	if now == nil {
		now = time.Now
	}
	return &ReportService{repo: repo, loc: loc, now: now}
}

// Window turns the inclusive YYYY-MM-DD dates of a report request into a
// half-open interval in business time. Empty dates default to the last 30 days
// up to today.
func (s *ReportService) Window(fromDate, toDate string) (time.Time, time.Time, error) {
	today := s.now().In(s.loc)
	to := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, s.loc).AddDate(0, 0, 1)
	if toDate != "" {
		d, err := time.ParseInLocation(models.DateLayout, toDate, s.loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: to must be YYYY-MM-DD", models.ErrValidation)
		}
		to = d.AddDate(0, 0, 1)
	}

	from := to.AddDate(0, 0, -defaultWindowDays)
	if fromDate != "" {
		d, err := time.ParseInLocation(models.DateLayout, fromDate, s.loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: from must be YYYY-MM-DD", models.ErrValidation)
		}
		from = d
	}

	if !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: from must not be after to", models.ErrValidation)
	}
	if to.Sub(from) > maxWindowDays*24*time.Hour+time.Hour {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: window is limited to %d days", models.ErrValidation, maxWindowDays)
	}
	return from, to, nil
}

func (s *ReportService) Summary(ctx context.Context, sess auth.Session, fromDate, toDate string) (*models.SummaryReport, error) {
	if err := auth.Require(sess, auth.RoleAdmin); err != nil {
		return nil, err
	}
	from, to, err := s.Window(fromDate, toDate)
	if err != nil {
		return nil, err
	}
	report, err := s.repo.Summary(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("service.Summary: %w", err)
	}
	report.DeliveredRevenue = report.DeliveredRevenue.Round(2)
	return report, nil
}

type Handler struct {
	svc ReportServiceInterface
}

func NewHandler(svc ReportServiceInterface) *Handler {
	return &Handler{svc: svc}
}

// Summary handles GET /admin/reports/summary?from=&to=.
func (h *Handler) Summary(c echo.Context) error {
	sess, err := utils.ExtractSession(c)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	report, err := h.svc.Summary(c.Request().Context(), sess, c.QueryParam("from"), c.QueryParam("to"))
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	return utils.RespondWithJSON(c, http.StatusOK, report)
}
