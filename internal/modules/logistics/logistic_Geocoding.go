package logistics

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"laundry-pickup/internal/models"
	"laundry-pickup/pkg/utils"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// minAutocompleteLen is the shortest input worth an upstream call.
const minAutocompleteLen = 3

// Geocoder is the upstream address provider.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (models.LatLng, error)
	Autocomplete(ctx context.Context, input string) ([]models.AddressSuggestion, error)
}

// GeoServiceInterface defines the address lookup used by the checkout form.
type GeoServiceInterface interface {
	Geocode(ctx context.Context, address string) (models.LatLng, error)
	Autocomplete(ctx context.Context, text string) ([]models.AddressSuggestion, error)
}

// GeoService implements GeoServiceInterface on top of a Geocoder.
type GeoService struct {
	geocoder Geocoder
}

func NewGeoService(geocoder Geocoder) *GeoService {
	return &GeoService{geocoder: geocoder}
}

func (s *GeoService) Geocode(ctx context.Context, address string) (models.LatLng, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return models.LatLng{}, fmt.Errorf("%w: address is required", models.ErrValidation)
	}
	loc, err := s.geocoder.Geocode(ctx, address)
	if err != nil {
		return models.LatLng{}, fmt.Errorf("service.Geocode: %w", err)
	}
	return loc, nil
}

// Autocomplete returns an empty list for short input without asking upstream.
func (s *GeoService) Autocomplete(ctx context.Context, text string) ([]models.AddressSuggestion, error) {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < minAutocompleteLen {
		return []models.AddressSuggestion{}, nil
	}
	suggestions, err := s.geocoder.Autocomplete(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("service.Autocomplete: %w", err)
	}
	return suggestions, nil
}

// GeoHandler exposes the address lookup endpoints.
type GeoHandler struct {
	svc GeoServiceInterface
}

func NewGeoHandler(svc GeoServiceInterface) *GeoHandler {
	return &GeoHandler{svc: svc}
}

// Geocode handles GET /geo/geocode?address=.
func (h *GeoHandler) Geocode(c echo.Context) error {
	loc, err := h.svc.Geocode(c.Request().Context(), c.QueryParam("address"))
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	return utils.RespondWithJSON(c, http.StatusOK, loc)
}

// Autocomplete handles GET /geo/autocomplete?q=. A failing provider is
// reported as 502 so the client keeps the typed address.
func (h *GeoHandler) Autocomplete(c echo.Context) error {
	suggestions, err := h.svc.Autocomplete(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		log.Debug().Err(err).Msg("Autocomplete unavailable")
		return utils.HandleServiceError(c, err)
	}
	return utils.RespondWithJSON(c, http.StatusOK, suggestions)
}

// RegisterGeoRoutes attaches the geocoding endpoints to the provided group.
func RegisterGeoRoutes(g *echo.Group, h *GeoHandler) {
	g.GET("/geocode", h.Geocode)
	g.GET("/autocomplete", h.Autocomplete)
}
