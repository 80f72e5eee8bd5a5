package utils

import (
	"strconv"

	"laundry-pickup/internal/auth"
	"laundry-pickup/internal/models"

	"github.com/labstack/echo/v4"
)

// SessionKey is the echo context key of the per-request auth.Session.
const SessionKey = "session"

// ExtractSession returns the session placed in the context by the auth
// middleware. A missing session is a models.ErrForbidden.
func ExtractSession(c echo.Context) (auth.Session, error) {
	s, ok := c.Get(SessionKey).(auth.Session)
	if !ok || s.UserID == "" {
		return auth.Session{}, models.ErrForbidden
	}
	return s, nil
}

const (
	defaultLimit = 20
	maxLimit     = 100
)

// GetPageLimit reads ?page= and ?limit=. Out of range values fall back to
// page 1 and the default limit.
func GetPageLimit(c echo.Context) (page, limit int) {
	page, err := strconv.Atoi(c.QueryParam("page"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err = strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit < 1 || limit > maxLimit {
		limit = defaultLimit
	}
	return page, limit
}

// Offset converts a page and limit into a SQL offset.
func Offset(page, limit int) int {
	return (page - 1) * limit
}
