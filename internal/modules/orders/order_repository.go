package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"laundry-pickup/internal/db"
	"laundry-pickup/internal/lifecycle"
	"laundry-pickup/internal/models"
	"laundry-pickup/internal/modules/coupons"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryInterface defines the contract for the order repository.
type RepositoryInterface interface {
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, orderID string) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerID string, page, limit int) ([]*models.Order, int, error)
	ListPool(ctx context.Context, driverID string, page, limit int) ([]*models.Order, int, error)
	ListByDriver(ctx context.Context, driverID string, page, limit int) ([]*models.Order, int, error)
	ListAll(ctx context.Context, status *models.OrderStatus, page, limit int) ([]*models.Order, int, error)
	HasRejected(ctx context.Context, orderID, driverID string) (bool, error)
	History(ctx context.Context, orderID string) ([]models.StatusChange, error)

	// ApplyTransition writes t only while the order is still in t.From. When
	// another actor got there first it returns models.ErrOrderUnavailable.
	ApplyTransition(ctx context.Context, t lifecycle.Transition) (*models.Order, error)
	UpdateSchedule(ctx context.Context, orderID string, pickup, ret models.TimeSlot) (*models.Order, error)
	AssignDriver(ctx context.Context, orderID string, driverID *string) (*models.Order, error)
	SetPaymentSession(ctx context.Context, orderID, sessionID string) error
	MarkPaymentStatus(ctx context.Context, orderID string, status models.PaymentStatus) (bool, error)
}

// Repository implements the RepositoryInterface.
type Repository struct {
	db  *pgxpool.Pool
	loc *time.Location
	now func() time.Time
}

// NewRepository creates a new order repository. Slots are read back in loc.
func NewRepository(db *pgxpool.Pool, loc *time.Location) *Repository {
	return &Repository{db: db, loc: loc, now: time.Now}
}

const orderColumns = `
	o.id, o.customer_id, o.driver_id, o.status, o.pickup_mode,
	o.pickup_start, o.pickup_end, o.return_start, o.return_end,
	o.address, o.phone, o.notes, o.price, o.final_price, o.coupon_id,
	o.payment_method, o.payment_status, o.payment_session_id,
	o.accepted_at, o.rejected_at, o.rejected_by, o.actual_pickup_time, o.actual_return_time,
	o.created_at, o.updated_at`

// scanOrder is a helper function to scan a row into an Order model.
func (r *Repository) scanOrder(row pgx.Row) (*models.Order, error) {
	var (
		o                      models.Order
		pickupStart, pickupEnd time.Time
		returnStart, returnEnd time.Time
	)
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.DriverID, &o.Status, &o.PickupMode,
		&pickupStart, &pickupEnd, &returnStart, &returnEnd,
		&o.Address, &o.Phone, &o.Notes, &o.Price, &o.FinalPrice, &o.CouponID,
		&o.PaymentMethod, &o.PaymentStatus, &o.PaymentSessionID,
		&o.AcceptedAt, &o.RejectedAt, &o.RejectedBy, &o.ActualPickupTime, &o.ActualReturnTime,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}
	o.PickupSlot = models.NewTimeSlot(pickupStart.In(r.loc), pickupEnd.In(r.loc))
	o.ReturnSlot = models.NewTimeSlot(returnStart.In(r.loc), returnEnd.In(r.loc))
	return &o, nil
}

func (r *Repository) loadItems(ctx context.Context, q db.Querier, o *models.Order) error {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, name, quantity, unit_price, total, length_cm, width_cm
		FROM order_items WHERE order_id = $1 ORDER BY id`, o.ID)
	if err != nil {
		return fmt.Errorf("repository.loadItems.Query: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.OrderItem, error) {
		var it models.OrderItem
		err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &it.Quantity, &it.UnitPrice, &it.Total, &it.LengthCm, &it.WidthCm)
		return it, err
	})
	if err != nil {
		return fmt.Errorf("repository.loadItems.Scan: %w", err)
	}
	o.Items = items
	return nil
}

// Create inserts the order, its items and the coupon redemption in one transaction.
func (r *Repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository.CreateOrder.Begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if order.CouponID != nil {
		if err := coupons.Redeem(ctx, tx, *order.CouponID, order.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository.CreateOrder: %w", err)
		}
	}

	query := `
		INSERT INTO orders AS o (
			id, customer_id, status, pickup_mode, pickup_start, pickup_end, return_start, return_end,
			address, phone, notes, price, final_price, coupon_id, payment_method, payment_status,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $17)
		RETURNING ` + orderColumns

	created, err := r.scanOrder(tx.QueryRow(ctx, query,
		order.ID, order.CustomerID, models.StatusPending, order.PickupMode,
		order.PickupSlot.Start, order.PickupSlot.End, order.ReturnSlot.Start, order.ReturnSlot.End,
		order.Address, order.Phone, order.Notes, order.Price, order.FinalPrice, order.CouponID,
		order.PaymentMethod, models.PaymentUnpaid, order.CreatedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("repository.CreateOrder.Insert: %w", err)
	}

	batch := &pgx.Batch{}
	for _, it := range order.Items {
		batch.Queue(`
			INSERT INTO order_items (id, order_id, product_id, name, quantity, unit_price, total, length_cm, width_cm)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			it.ID, created.ID, it.ProductID, it.Name, it.Quantity, it.UnitPrice, it.Total, it.LengthCm, it.WidthCm)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return nil, fmt.Errorf("repository.CreateOrder.Items: %w", err)
	}

	if err := insertHistory(ctx, tx, created.ID, models.StatusPending, models.StatusPending, &created.CustomerID, "created", order.CreatedAt); err != nil {
		return nil, fmt.Errorf("repository.CreateOrder: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("repository.CreateOrder.Commit: %w", err)
	}
	created.Items = order.Items
	return created, nil
}

// FindByID retrieves a single order with its items.
func (r *Repository) FindByID(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := r.scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1`, orderID))
	if err != nil {
		return nil, fmt.Errorf("repository.FindByID: %w", err)
	}
	if err := r.loadItems(ctx, r.db, order); err != nil {
		return nil, fmt.Errorf("repository.FindByID: %w", err)
	}
	return order, nil
}

// list runs a filtered, paged query. where refers to filterArgs as $1..$n.
func (r *Repository) list(ctx context.Context, op, where, orderBy string, filterArgs []any, page, limit int) ([]*models.Order, int, error) {
	n := len(filterArgs)
	query := fmt.Sprintf(`SELECT %s FROM orders o WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		orderColumns, where, orderBy, n+1, n+2)
	args := append(append([]any{}, filterArgs...), limit, (page-1)*limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.%s.Query: %w", op, err)
	}
	defer rows.Close()

	orders := []*models.Order{}
	for rows.Next() {
		order, err := r.scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repository.%s.Scan: %w", op, err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repository.%s.Rows: %w", op, err)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM orders o WHERE `+where, filterArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repository.%s.Count: %w", op, err)
	}
	return orders, total, nil
}

// ListByCustomer retrieves the orders of a customer, newest first.
func (r *Repository) ListByCustomer(ctx context.Context, customerID string, page, limit int) ([]*models.Order, int, error) {
	return r.list(ctx, "ListByCustomer", `o.customer_id = $1`, `o.created_at DESC`, []any{customerID}, page, limit)
}

// ListPool retrieves the unassigned orders a driver may still accept: pending
// or rejected, no driver, and not rejected by this driver before.
func (r *Repository) ListPool(ctx context.Context, driverID string, page, limit int) ([]*models.Order, int, error) {
	where := `o.driver_id IS NULL
		AND o.status IN ('pending', 'rejected')
		AND NOT EXISTS (SELECT 1 FROM order_rejections rj WHERE rj.order_id = o.id AND rj.driver_id = $1)`
	return r.list(ctx, "ListPool", where, `o.pickup_start ASC`, []any{driverID}, page, limit)
}

// ListByDriver retrieves the orders assigned to a driver, next pickup first.
func (r *Repository) ListByDriver(ctx context.Context, driverID string, page, limit int) ([]*models.Order, int, error) {
	return r.list(ctx, "ListByDriver", `o.driver_id = $1`, `o.pickup_start ASC`, []any{driverID}, page, limit)
}

// ListAll retrieves all orders, optionally of one status (for admin use).
func (r *Repository) ListAll(ctx context.Context, status *models.OrderStatus, page, limit int) ([]*models.Order, int, error) {
	if status != nil {
		return r.list(ctx, "ListAll", `o.status = $1`, `o.created_at DESC`, []any{*status}, page, limit)
	}
	return r.list(ctx, "ListAll", `TRUE`, `o.created_at DESC`, nil, page, limit)
}

func (r *Repository) HasRejected(ctx context.Context, orderID, driverID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM order_rejections WHERE order_id = $1 AND driver_id = $2)`,
		orderID, driverID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("repository.HasRejected: %w", err)
	}
	return exists, nil
}

// History returns the audit trail of an order, oldest first.
func (r *Repository) History(ctx context.Context, orderID string) ([]models.StatusChange, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, from_status, to_status, actor_id, reason, created_at
		FROM order_status_history WHERE order_id = $1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository.History: %w", err)
	}
	changes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.StatusChange, error) {
		var sc models.StatusChange
		err := row.Scan(&sc.ID, &sc.OrderID, &sc.From, &sc.To, &sc.ActorID, &sc.Reason, &sc.CreatedAt)
		return sc, err
	})
	if err != nil {
		return nil, fmt.Errorf("repository.History: %w", err)
	}
	return changes, nil
}

func insertHistory(ctx context.Context, q db.Querier, orderID string, from, to models.OrderStatus, actorID *string, reason string, at time.Time) error {
	_, err := q.Exec(ctx, `
		INSERT INTO order_status_history (order_id, from_status, to_status, actor_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		orderID, from, to, actorID, reason, at)
	if err != nil {
		return fmt.Errorf("insertHistory: %w", err)
	}
	return nil
}

// ApplyTransition is the compare-and-swap status write. The UPDATE matches
// only while status still equals t.From (and, for claims, while the order is
// unassigned or already ours); zero affected rows means someone else won.
// History, rejection, calendar and points rows are written in the same transaction.
func (r *Repository) ApplyTransition(ctx context.Context, t lifecycle.Transition) (*models.Order, error) {
	var setClauses []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	setClauses = append(setClauses, "status = "+arg(t.To), "updated_at = "+arg(t.At))
	if t.AssignDriver != nil {
		setClauses = append(setClauses, "driver_id = "+arg(*t.AssignDriver))
	}
	if t.ClearDriver {
		setClauses = append(setClauses, "driver_id = NULL")
	}
	if t.StampAccepted {
		setClauses = append(setClauses, "accepted_at = "+arg(t.At))
	}
	if t.StampPickup {
		setClauses = append(setClauses, "actual_pickup_time = "+arg(t.At))
	}
	if t.StampReturn {
		setClauses = append(setClauses, "actual_return_time = "+arg(t.At))
	}
	if t.RejectedBy != nil {
		setClauses = append(setClauses, "rejected_at = "+arg(t.At), "rejected_by = "+arg(*t.RejectedBy))
	}

	where := fmt.Sprintf("o.id = %s AND o.status = %s", arg(t.OrderID), arg(t.From))
	if t.ClaimFor != "" {
		where += fmt.Sprintf(" AND (o.driver_id IS NULL OR o.driver_id = %s)", arg(t.ClaimFor))
	}

	query := fmt.Sprintf(`UPDATE orders AS o SET %s WHERE %s RETURNING %s`,
		strings.Join(setClauses, ", "), where, orderColumns)

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository.ApplyTransition.Begin: %w", err)
	}
	defer tx.Rollback(ctx)

	order, err := r.scanOrder(tx.QueryRow(ctx, query, args...))
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("repository.ApplyTransition %s -> %s: %w", t.From, t.To, models.ErrOrderUnavailable)
	}
	if err != nil {
		return nil, fmt.Errorf("repository.ApplyTransition: %w", err)
	}

	actor := &t.ActorID
	if t.ActorID == "" {
		actor = nil
	}
	if err := insertHistory(ctx, tx, order.ID, t.From, t.To, actor, t.Reason, t.At); err != nil {
		return nil, fmt.Errorf("repository.ApplyTransition: %w", err)
	}

	if t.RecordRejection && t.RejectedBy != nil {
		_, err := tx.Exec(ctx, `
			INSERT INTO order_rejections (order_id, driver_id, created_at) VALUES ($1, $2, $3)
			ON CONFLICT (order_id, driver_id) DO NOTHING`,
			order.ID, *t.RejectedBy, t.At)
		if err != nil {
			return nil, fmt.Errorf("repository.ApplyTransition.Rejection: %w", err)
		}
	}

	if t.CalendarFor != nil {
		_, err := tx.Exec(ctx, `
			INSERT INTO calendar_events (user_id, order_id, title, starts_at, ends_at)
			VALUES ($1, $2, $3, $4, $5)`,
			*t.CalendarFor, order.ID, "Pickup: "+order.Address, order.PickupSlot.Start, order.PickupSlot.End)
		if err != nil {
			return nil, fmt.Errorf("repository.ApplyTransition.Calendar: %w", err)
		}
	}

	if t.Points > 0 {
		// One award per order, so an order delivered twice via override earns once.
		_, err := tx.Exec(ctx, `
			INSERT INTO loyalty_points (user_id, order_id, points, expires_at, created_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (order_id) DO NOTHING`,
			order.CustomerID, order.ID, t.Points, t.PointsExpireAt, t.At)
		if err != nil {
			return nil, fmt.Errorf("repository.ApplyTransition.Points: %w", err)
		}
	}

	if err := r.loadItems(ctx, tx, order); err != nil {
		return nil, fmt.Errorf("repository.ApplyTransition: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("repository.ApplyTransition.Commit: %w", err)
	}
	return order, nil
}

// UpdateSchedule moves the pickup and return slots while fulfilment has not started.
func (r *Repository) UpdateSchedule(ctx context.Context, orderID string, pickup, ret models.TimeSlot) (*models.Order, error) {
	query := `
		UPDATE orders AS o
		SET pickup_start = $2, pickup_end = $3, return_start = $4, return_end = $5, updated_at = $6
		WHERE o.id = $1 AND o.status IN ('pending', 'accepted')
		RETURNING ` + orderColumns

	order, err := r.scanOrder(r.db.QueryRow(ctx, query, orderID, pickup.Start, pickup.End, ret.Start, ret.End, r.now()))
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("repository.UpdateSchedule: %w", models.ErrOrderCannotBeRescheduled)
	}
	if err != nil {
		return nil, fmt.Errorf("repository.UpdateSchedule: %w", err)
	}
	if err := r.loadItems(ctx, r.db, order); err != nil {
		return nil, fmt.Errorf("repository.UpdateSchedule: %w", err)
	}
	return order, nil
}

// AssignDriver sets or clears the driver of a non-terminal order (for admin use).
func (r *Repository) AssignDriver(ctx context.Context, orderID string, driverID *string) (*models.Order, error) {
	query := `
		UPDATE orders AS o
		SET driver_id = $2, updated_at = $3
		WHERE o.id = $1 AND o.status NOT IN ('delivered', 'cancelled')
		RETURNING ` + orderColumns

	order, err := r.scanOrder(r.db.QueryRow(ctx, query, orderID, driverID, r.now()))
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("repository.AssignDriver: %w", models.ErrOrderUnavailable)
	}
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return nil, fmt.Errorf("repository.AssignDriver: unknown driver: %w", models.ErrValidation)
		}
		return nil, fmt.Errorf("repository.AssignDriver: %w", err)
	}
	if err := r.loadItems(ctx, r.db, order); err != nil {
		return nil, fmt.Errorf("repository.AssignDriver: %w", err)
	}
	return order, nil
}

// SetPaymentSession records a checkout session. It only applies to orders
// that can still be paid.
func (r *Repository) SetPaymentSession(ctx context.Context, orderID, sessionID string) error {
	cmdTag, err := r.db.Exec(ctx, `
		UPDATE orders
		SET payment_session_id = $2, payment_status = 'pending', updated_at = $3
		WHERE id = $1 AND payment_status <> 'paid' AND status NOT IN ('cancelled', 'rejected')`,
		orderID, sessionID, r.now())
	if err != nil {
		return fmt.Errorf("repository.SetPaymentSession: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return models.ErrOrderCannotBePaid
	}
	return nil
}

// MarkPaymentStatus updates an order's payment status. A paid order is never
// downgraded. The result reports whether anything changed.
func (r *Repository) MarkPaymentStatus(ctx context.Context, orderID string, status models.PaymentStatus) (bool, error) {
	cmdTag, err := r.db.Exec(ctx, `
		UPDATE orders
		SET payment_status = $2, updated_at = $3
		WHERE id = $1 AND payment_status <> 'paid' AND payment_status <> $2`,
		orderID, status, r.now())
	if err != nil {
		return false, fmt.Errorf("repository.MarkPaymentStatus: %w", err)
	}
	return cmdTag.RowsAffected() > 0, nil
}
