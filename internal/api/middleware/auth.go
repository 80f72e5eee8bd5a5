package middleware

import (
	"context"
	"errors"
	"net/http"

	"laundry-pickup/internal/auth"
	"laundry-pickup/internal/models"
	"laundry-pickup/pkg/utils"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// JWTMAuth configures and returns Echo's JWT middleware.
func JWTMAuth(jwtSecretKey string) echo.MiddlewareFunc {
	config := echojwt.Config{
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(models.JwtCustomClaims)
		},
		SigningKey: []byte(jwtSecretKey),

		// SuccessHandler copies the verified user id into the context; the
		// session itself is built by LoadSession.
		SuccessHandler: func(c echo.Context) {
			userToken := c.Get("user").(*jwt.Token)
			claims := userToken.Claims.(*models.JwtCustomClaims)

			c.Set("userID", claims.UserID)
			c.Set("userEmail", claims.Email)
		},

		ErrorHandler: func(c echo.Context, err error) error {
			log.Debug().Err(err).Str("path", c.Path()).Msg("JWT rejected")

			switch {
			case errors.Is(err, echojwt.ErrJWTMissing):
				return utils.RespondWithError(c, http.StatusUnauthorized, "Missing or malformed JWT")
			case errors.Is(err, jwt.ErrTokenMalformed):
				return utils.RespondWithError(c, http.StatusUnauthorized, "Token is malformed")
			case errors.Is(err, jwt.ErrTokenExpired):
				return utils.RespondWithError(c, http.StatusUnauthorized, "Token has expired")
			case errors.Is(err, jwt.ErrTokenSignatureInvalid):
				return utils.RespondWithError(c, http.StatusUnauthorized, "Invalid token signature")
			}
			return utils.RespondWithError(c, http.StatusUnauthorized, "Invalid or expired JWT")
		},
	}
	return echojwt.WithConfig(config)
}

// RoleLookup returns the current role of a user.
type RoleLookup interface {
	GetRole(ctx context.Context, userID string) (auth.Role, error)
}

// LoadSession builds the auth.Session of the request from the verified token
// and the role currently stored for the user. A token of a deleted user is
// rejected even if it has not expired yet.
func LoadSession(roles RoleLookup) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, _ := c.Get("userID").(string)
			if userID == "" {
				return utils.RespondWithError(c, http.StatusUnauthorized, "Missing or malformed JWT")
			}

			role, err := roles.GetRole(c.Request().Context(), userID)
			if errors.Is(err, models.ErrNotFound) {
				return utils.RespondWithError(c, http.StatusUnauthorized, "Account no longer exists")
			}
			if err != nil {
				return utils.HandleServiceError(c, err)
			}

			email, _ := c.Get("userEmail").(string)
			c.Set(utils.SessionKey, auth.Session{UserID: userID, Email: email, Role: role})
			return next(c)
		}
	}
}

// RequireRoles lets a request through only for the given roles. Services
// still call auth.Require themselves; this only stops requests early.
func RequireRoles(roles ...auth.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			s, err := utils.ExtractSession(c)
			if err == nil {
				err = auth.Require(s, roles...)
			}
			if err != nil {
				return utils.HandleServiceError(c, err)
			}
			return next(c)
		}
	}
}
