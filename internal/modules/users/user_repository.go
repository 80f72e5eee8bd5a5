package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"laundry-pickup/internal/auth"
	"laundry-pickup/internal/db"
	"laundry-pickup/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryInterface defines methods for interacting with user storage.
type RepositoryInterface interface {
	FindByID(ctx context.Context, userID string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User, passwordHash *string) (*models.User, error)

	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, userID string, data models.ProfileUpdateData) (*models.Profile, error)
	PointsBalance(ctx context.Context, userID string, at time.Time) (int, error)

	GetRole(ctx context.Context, userID string) (auth.Role, error)
	SetRole(ctx context.Context, userID string, role auth.Role) error
	List(ctx context.Context, role *auth.Role, page, limit int) ([]*models.User, int, error)

	// Delete removes the user and everything that references them. It reports
	// whether the user existed.
	Delete(ctx context.Context, userID string) (bool, error)
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const userColumns = `u.id, u.email, COALESCE(u.password_hash, ''), u.auth_provider, COALESCE(r.role, 'customer'), COALESCE(p.full_name, ''), u.created_at`

const userFrom = `
	FROM users u
	LEFT JOIN user_roles r ON r.user_id = u.id
	LEFT JOIN profiles p ON p.user_id = u.id`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.AuthProvider, &u.Role, &u.FullName, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *Repository) FindByID(ctx context.Context, userID string) (*models.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+userFrom+` WHERE u.id = $1`, userID))
	if err != nil {
		return nil, fmt.Errorf("repository.FindByID: %w", err)
	}
	return user, nil
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+userFrom+` WHERE u.email = $1`, normalizeEmail(email)))
	if err != nil {
		return nil, fmt.Errorf("repository.FindByEmail: %w", err)
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts the identity, its profile and its role in one transaction.
// A nil passwordHash is used for OAuth accounts.
func (r *Repository) Create(ctx context.Context, user *models.User, passwordHash *string) (*models.User, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository.CreateUser.Begin: %w", err)
	}
	defer tx.Rollback(ctx)

	created := *user
	created.Email = normalizeEmail(user.Email)
	err = tx.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, auth_provider)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		created.Email, passwordHash, created.AuthProvider,
	).Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "users_email_key") {
			return nil, models.ErrConflict
		}
		return nil, fmt.Errorf("repository.CreateUser.Insert: %w", err)
	}

	if _, err := tx.Exec(ctx, `INSERT INTO profiles (user_id, full_name) VALUES ($1, $2)`, created.ID, created.FullName); err != nil {
		return nil, fmt.Errorf("repository.CreateUser.Profile: %w", err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO user_roles (user_id, role) VALUES ($1, $2)`, created.ID, created.Role); err != nil {
		return nil, fmt.Errorf("repository.CreateUser.Role: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("repository.CreateUser.Commit: %w", err)
	}
	return &created, nil
}

func (r *Repository) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var p models.Profile
	err := r.db.QueryRow(ctx, `SELECT user_id, full_name, phone, address, updated_at FROM profiles WHERE user_id = $1`, userID).
		Scan(&p.UserID, &p.FullName, &p.Phone, &p.Address, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("repository.GetProfile: %w", err)
	}
	return &p, nil
}

func (r *Repository) UpdateProfile(ctx context.Context, userID string, data models.ProfileUpdateData) (*models.Profile, error) {
	var setClauses []string
	var args []any
	argIdx := 1

	if data.FullName != nil {
		setClauses = append(setClauses, fmt.Sprintf("full_name = $%d", argIdx))
		args = append(args, strings.TrimSpace(*data.FullName))
		argIdx++
	}
	if data.Phone != nil {
		setClauses = append(setClauses, fmt.Sprintf("phone = $%d", argIdx))
		args = append(args, strings.TrimSpace(*data.Phone))
		argIdx++
	}
	if data.Address != nil {
		setClauses = append(setClauses, fmt.Sprintf("address = $%d", argIdx))
		args = append(args, strings.TrimSpace(*data.Address))
		argIdx++
	}

	if len(setClauses) == 0 {
		return r.GetProfile(ctx, userID)
	}

	setClauses = append(setClauses, "updated_at = now()")
	args = append(args, userID)

	query := fmt.Sprintf(`UPDATE profiles SET %s WHERE user_id = $%d RETURNING user_id, full_name, phone, address, updated_at`,
		strings.Join(setClauses, ", "), argIdx)

	var p models.Profile
	err := r.db.QueryRow(ctx, query, args...).Scan(&p.UserID, &p.FullName, &p.Phone, &p.Address, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("repository.UpdateProfile: %w", err)
	}
	return &p, nil
}

// PointsBalance sums the loyalty points of a user that are still valid at at.
func (r *Repository) PointsBalance(ctx context.Context, userID string, at time.Time) (int, error) {
	var balance int
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(points), 0) FROM loyalty_points WHERE user_id = $1 AND expires_at > $2`,
		userID, at).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("repository.PointsBalance: %w", err)
	}
	return balance, nil
}

func (r *Repository) GetRole(ctx context.Context, userID string) (auth.Role, error) {
	var role string
	err := r.db.QueryRow(ctx, `SELECT role FROM user_roles WHERE user_id = $1`, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", models.ErrNotFound
		}
		return "", fmt.Errorf("repository.GetRole: %w", err)
	}
	return auth.ParseRole(role)
}

func (r *Repository) SetRole(ctx context.Context, userID string, role auth.Role) error {
	cmdTag, err := r.db.Exec(ctx, `UPDATE user_roles SET role = $2 WHERE user_id = $1`, userID, role)
	if err != nil {
		return fmt.Errorf("repository.SetRole: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *Repository) List(ctx context.Context, role *auth.Role, page, limit int) ([]*models.User, int, error) {
	where := "TRUE"
	args := []any{}
	if role != nil {
		where = "r.role = $1"
		args = append(args, *role)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*)`+userFrom+` WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repository.ListUsers.Count: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s %s WHERE %s ORDER BY u.created_at DESC LIMIT $%d OFFSET $%d`,
		userColumns, userFrom, where, len(args)+1, len(args)+2)
	rows, err := r.db.Query(ctx, query, append(args, limit, (page-1)*limit)...)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListUsers.Query: %w", err)
	}
	defer rows.Close()

	users := []*models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repository.ListUsers.Scan: %w", err)
		}
		u.PasswordHash = ""
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repository.ListUsers.Rows: %w", err)
	}
	return users, total, nil
}

// deleteSteps runs in order inside one transaction. First the user's traces on
// other people's orders go, then the user's own orders with everything hanging
// off them, then the account rows.
var deleteSteps = []string{
	`DELETE FROM order_rejections WHERE driver_id = $1`,
	`DELETE FROM calendar_events WHERE user_id = $1`,
	`DELETE FROM driver_shifts WHERE driver_id = $1`,
	`UPDATE orders SET driver_id = NULL, updated_at = now() WHERE driver_id = $1`,
	`UPDATE orders SET rejected_by = NULL WHERE rejected_by = $1`,
	`UPDATE order_status_history SET actor_id = NULL WHERE actor_id = $1`,

	`DELETE FROM order_items WHERE order_id IN (SELECT id FROM orders WHERE customer_id = $1)`,
	`DELETE FROM order_status_history WHERE order_id IN (SELECT id FROM orders WHERE customer_id = $1)`,
	`DELETE FROM order_rejections WHERE order_id IN (SELECT id FROM orders WHERE customer_id = $1)`,
	`DELETE FROM calendar_events WHERE order_id IN (SELECT id FROM orders WHERE customer_id = $1)`,
	`DELETE FROM loyalty_points WHERE user_id = $1 OR order_id IN (SELECT id FROM orders WHERE customer_id = $1)`,
	`DELETE FROM orders WHERE customer_id = $1`,

	`DELETE FROM user_roles WHERE user_id = $1`,
	`DELETE FROM profiles WHERE user_id = $1`,
}

func (r *Repository) Delete(ctx context.Context, userID string) (bool, error) {
	var existed bool
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		for i, step := range deleteSteps {
			if _, err := tx.Exec(ctx, step, userID); err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
		}
		cmdTag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
		if err != nil {
			return err
		}
		existed = cmdTag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("repository.DeleteUser: %w", err)
	}
	return existed, nil
}
