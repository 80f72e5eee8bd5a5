package utils

import (
	"errors"
	"net/http"
	"strings"

	"laundry-pickup/internal/models"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// RespondWithError writes the standard error body.
func RespondWithError(c echo.Context, code int, message string) error {
	return c.JSON(code, models.ErrorResponse{Message: message})
}

// RespondWithJSON writes payload as JSON.
func RespondWithJSON(c echo.Context, code int, payload any) error {
	return c.JSON(code, payload)
}

// Page is the envelope of paged list answers.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

type errorMapping struct {
	target error
	status int
}

// Order matters: the first match wins.
var errorMappings = []errorMapping{
	{models.ErrForbidden, http.StatusForbidden},
	{models.ErrNotFound, http.StatusNotFound},
	{models.ErrInvalidCredentials, http.StatusUnauthorized},
	{models.ErrOrderUnavailable, http.StatusConflict},
	{models.ErrInvalidTransition, http.StatusConflict},
	{models.ErrShiftAlreadyActive, http.StatusConflict},
	{models.ErrNoActiveShift, http.StatusConflict},
	{models.ErrOrderCannotBeRescheduled, http.StatusConflict},
	{models.ErrOrderCannotBePaid, http.StatusConflict},
	{models.ErrConflict, http.StatusConflict},
	{models.ErrPriceMismatch, http.StatusUnprocessableEntity},
	{models.ErrCouponInvalid, http.StatusUnprocessableEntity},
	{models.ErrUnknownProduct, http.StatusUnprocessableEntity},
	{models.ErrPickupInPast, http.StatusUnprocessableEntity},
	{models.ErrInvalidSlot, http.StatusBadRequest},
	{models.ErrValidation, http.StatusBadRequest},
	{models.ErrAddressNotFound, http.StatusNotFound},
	{models.ErrUpstreamUnavailable, http.StatusBadGateway},
}

// HandleServiceError maps a service error onto an HTTP answer. Authorization
// failures always read "not authorized"; unknown errors are logged and hidden.
func HandleServiceError(c echo.Context, err error) error {
	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		switch m.status {
		case http.StatusForbidden:
			return RespondWithError(c, m.status, models.ErrForbidden.Error())
		case http.StatusBadGateway:
			log.Warn().Err(err).Str("path", c.Path()).Msg("Upstream provider failed")
			return RespondWithError(c, m.status, models.ErrUpstreamUnavailable.Error())
		}
		return RespondWithError(c, m.status, clientMessage(err, m.target))
	}

	log.Error().Err(err).Str("method", c.Request().Method).Str("path", c.Path()).Msg("Unhandled service error")
	return RespondWithError(c, http.StatusInternalServerError, "An internal error occurred")
}

// clientMessage drops the "layer.Op: " prefixes wrapped around target, keeping
// the sentinel text and any detail attached after it.
func clientMessage(err, target error) string {
	msg, sentinel := err.Error(), target.Error()
	if i := strings.Index(msg, sentinel); i >= 0 {
		return msg[i:]
	}
	return sentinel
}
