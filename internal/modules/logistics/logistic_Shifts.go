// Package logistics provides driver shift tracking and the address lookup
// used at checkout.
package logistics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"laundry-pickup/internal/auth"
	"laundry-pickup/internal/db"
	"laundry-pickup/internal/models"
	"laundry-pickup/pkg/utils"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// ShiftRepositoryInterface declares database operations for driver shifts.
type ShiftRepositoryInterface interface {
	// StartShift opens a shift. At most one shift per driver is active.
	StartShift(ctx context.Context, driverID string, at time.Time) (*models.DriverShift, error)
	// EndShift closes the active shift of the driver.
	EndShift(ctx context.Context, driverID string, at time.Time) (*models.DriverShift, error)
	// ActiveShift returns the open shift or models.ErrNotFound.
	ActiveShift(ctx context.Context, driverID string) (*models.DriverShift, error)
	// ListShifts returns the driver's shifts, newest first.
	ListShifts(ctx context.Context, driverID string, page, limit int) ([]*models.DriverShift, int, error)
}

// ShiftRepository implements ShiftRepositoryInterface using PostgreSQL.
type ShiftRepository struct {
	db *pgxpool.Pool
}

func NewShiftRepository(db *pgxpool.Pool) *ShiftRepository {
	return &ShiftRepository{db: db}
}

const shiftColumns = `id, driver_id, is_active, started_at, ended_at`

func scanShift(row pgx.Row) (*models.DriverShift, error) {
	s := &models.DriverShift{}
	if err := row.Scan(&s.ID, &s.DriverID, &s.IsActive, &s.StartedAt, &s.EndedAt); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *ShiftRepository) StartShift(ctx context.Context, driverID string, at time.Time) (*models.DriverShift, error) {
	query := `
        INSERT INTO driver_shifts (driver_id, started_at)
        VALUES ($1, $2)
        RETURNING ` + shiftColumns
	shift, err := scanShift(r.db.QueryRow(ctx, query, driverID, at))
	if err != nil {
		if db.IsUniqueViolation(err, "driver_shifts_one_active_idx") {
			return nil, models.ErrShiftAlreadyActive
		}
		return nil, fmt.Errorf("repository.StartShift: %w", err)
	}
	return shift, nil
}

func (r *ShiftRepository) EndShift(ctx context.Context, driverID string, at time.Time) (*models.DriverShift, error) {
	query := `
        UPDATE driver_shifts
        SET is_active = FALSE, ended_at = $2
        WHERE driver_id = $1 AND is_active
        RETURNING ` + shiftColumns
	shift, err := scanShift(r.db.QueryRow(ctx, query, driverID, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNoActiveShift
		}
		return nil, fmt.Errorf("repository.EndShift: %w", err)
	}
	return shift, nil
}

func (r *ShiftRepository) ActiveShift(ctx context.Context, driverID string) (*models.DriverShift, error) {
	shift, err := scanShift(r.db.QueryRow(ctx,
		`SELECT `+shiftColumns+` FROM driver_shifts WHERE driver_id = $1 AND is_active`, driverID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("repository.ActiveShift: %w", err)
	}
	return shift, nil
}

func (r *ShiftRepository) ListShifts(ctx context.Context, driverID string, page, limit int) ([]*models.DriverShift, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM driver_shifts WHERE driver_id = $1`, driverID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repository.ListShifts count: %w", err)
	}

	rows, err := r.db.Query(ctx, `
        SELECT `+shiftColumns+`
        FROM driver_shifts
        WHERE driver_id = $1
        ORDER BY started_at DESC
        LIMIT $2 OFFSET $3`, driverID, limit, utils.Offset(page, limit))
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListShifts: %w", err)
	}
	shifts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.DriverShift, error) {
		return scanShift(row)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListShifts rows: %w", err)
	}
	return shifts, total, nil
}

// ShiftServiceInterface describes business logic for driver shifts.
type ShiftServiceInterface interface {
	Start(ctx context.Context, sess auth.Session) (*models.DriverShift, error)
	End(ctx context.Context, sess auth.Session) (*models.DriverShift, error)
	Current(ctx context.Context, sess auth.Session) (*models.DriverShift, error)
	History(ctx context.Context, sess auth.Session, page, limit int) ([]*models.DriverShift, int, error)
}

// ShiftService implements ShiftServiceInterface.
type ShiftService struct {
	repo ShiftRepositoryInterface
	now  func() time.Time
}

func NewShiftService(repo ShiftRepositoryInterface, now func() time.Time) *ShiftService {
	if now == nil {
		now = time.Now
	}
	return &ShiftService{repo: repo, now: now}
}

func (s *ShiftService) Start(ctx context.Context, sess auth.Session) (*models.DriverShift, error) {
	if err := auth.Require(sess, auth.RoleDriver); err != nil {
		return nil, err
	}
	shift, err := s.repo.StartShift(ctx, sess.UserID, s.now())
	if err != nil {
		return nil, err
	}
	log.Info().Str("driver_id", sess.UserID).Str("shift_id", shift.ID).Msg("Shift started")
	return shift, nil
}

func (s *ShiftService) End(ctx context.Context, sess auth.Session) (*models.DriverShift, error) {
	if err := auth.Require(sess, auth.RoleDriver); err != nil {
		return nil, err
	}
	shift, err := s.repo.EndShift(ctx, sess.UserID, s.now())
	if err != nil {
		return nil, err
	}
	log.Info().Str("driver_id", sess.UserID).Str("shift_id", shift.ID).Msg("Shift ended")
	return shift, nil
}

func (s *ShiftService) Current(ctx context.Context, sess auth.Session) (*models.DriverShift, error) {
	if err := auth.Require(sess, auth.RoleDriver); err != nil {
		return nil, err
	}
	return s.repo.ActiveShift(ctx, sess.UserID)
}

func (s *ShiftService) History(ctx context.Context, sess auth.Session, page, limit int) ([]*models.DriverShift, int, error) {
	if err := auth.Require(sess, auth.RoleDriver); err != nil {
		return nil, 0, err
	}
	return s.repo.ListShifts(ctx, sess.UserID, page, limit)
}

// ShiftHandler exposes the driver shift endpoints.
type ShiftHandler struct {
	svc ShiftServiceInterface
}

func NewShiftHandler(svc ShiftServiceInterface) *ShiftHandler {
	return &ShiftHandler{svc: svc}
}

type shiftAction func(ShiftServiceInterface, context.Context, auth.Session) (*models.DriverShift, error)

func (h *ShiftHandler) run(c echo.Context, action shiftAction, status int) error {
	sess, err := utils.ExtractSession(c)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	shift, err := action(h.svc, c.Request().Context(), sess)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	return utils.RespondWithJSON(c, status, shift)
}

// StartShift handles POST /driver/shifts/start.
func (h *ShiftHandler) StartShift(c echo.Context) error {
	return h.run(c, ShiftServiceInterface.Start, http.StatusCreated)
}

// EndShift handles POST /driver/shifts/end.
func (h *ShiftHandler) EndShift(c echo.Context) error {
	return h.run(c, ShiftServiceInterface.End, http.StatusOK)
}

// CurrentShift handles GET /driver/shifts/current.
func (h *ShiftHandler) CurrentShift(c echo.Context) error {
	return h.run(c, ShiftServiceInterface.Current, http.StatusOK)
}

func (h *ShiftHandler) ListShifts(c echo.Context) error {
	sess, err := utils.ExtractSession(c)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	page, limit := utils.GetPageLimit(c)
	shifts, total, err := h.svc.History(c.Request().Context(), sess, page, limit)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	return utils.RespondWithJSON(c, http.StatusOK, utils.Page[*models.DriverShift]{Items: shifts, Total: total, Page: page, Limit: limit})
}

// RegisterShiftRoutes attaches the shift routes to the driver group.
func RegisterShiftRoutes(g *echo.Group, h *ShiftHandler) {
	g.POST("/shifts/start", h.StartShift)
	g.POST("/shifts/end", h.EndShift)
	g.GET("/shifts/current", h.CurrentShift)
	g.GET("/shifts", h.ListShifts)
}
