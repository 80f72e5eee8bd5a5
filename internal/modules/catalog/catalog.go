// Package catalog serves the seeded list of laundry services and their prices.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"laundry-pickup/internal/models"
	"laundry-pickup/pkg/utils"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// Repository reads products from Postgres.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetProduct returns a product, active or not.
func (r *Repository) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	err := r.db.QueryRow(ctx, `SELECT id, name, kind, price, active FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Kind, &p.Price, &p.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("repository.GetProduct: %w", err)
	}
	return &p, nil
}

// ListActive returns the products customers can order.
func (r *Repository) ListActive(ctx context.Context) ([]models.Product, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, kind, price, active FROM products WHERE active ORDER BY kind, price`)
	if err != nil {
		return nil, fmt.Errorf("repository.ListActive: %w", err)
	}
	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Product, error) {
		var p models.Product
		err := row.Scan(&p.ID, &p.Name, &p.Kind, &p.Price, &p.Active)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("repository.ListActive: %w", err)
	}
	return products, nil
}

// Lister is what the handler needs.
type Lister interface {
	ListActive(ctx context.Context) ([]models.Product, error)
}

// Handler serves GET /catalog.
type Handler struct {
	products Lister
}

func NewHandler(products Lister) *Handler {
	return &Handler{products: products}
}

func (h *Handler) List(c echo.Context) error {
	products, err := h.products.ListActive(c.Request().Context())
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	return utils.RespondWithJSON(c, http.StatusOK, products)
}
