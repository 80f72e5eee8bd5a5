package users

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"laundry-pickup/internal/auth"
	"laundry-pickup/internal/models"
	"laundry-pickup/pkg/utils"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

const oauthStateCookie = "oauthstate"

type Handler struct {
	service ServiceInterface
	// secureCookies is off only for plain-HTTP local development.
	secureCookies bool
}

// NewHandler creates a new user handler.
func NewHandler(service ServiceInterface, secureCookies bool) *Handler {
	return &Handler{service: service, secureCookies: secureCookies}
}

func (h *Handler) Signup(c echo.Context) error {
	var req models.SignupRequest
	if err := c.Bind(&req); err != nil {
		return utils.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
	}

	authResponse, err := h.service.Signup(c.Request().Context(), req)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	return utils.RespondWithJSON(c, http.StatusCreated, authResponse)
}

func (h *Handler) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return utils.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return utils.HandleServiceError(c, err)
	}

	authResponse, err := h.service.Login(c.Request().Context(), req)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	return utils.RespondWithJSON(c, http.StatusOK, authResponse)
}

// GoogleLogin redirects to Google's consent screen and pins the state value in
// a short-lived cookie.
func (h *Handler) GoogleLogin(c echo.Context) error {
	authURL, state, err := h.service.HandleGoogleLogin()
	if err != nil {
		log.Error().Err(err).Msg("Could not initiate Google login")
		return utils.RespondWithError(c, http.StatusInternalServerError, "Could not initiate Google login")
	}

	c.SetCookie(&http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Expires:  time.Now().Add(10 * time.Minute),
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return c.Redirect(http.StatusTemporaryRedirect, authURL)
}

// GoogleCallback checks the state against the cookie, finishes the login and
// sends the browser back to the frontend with the token.
func (h *Handler) GoogleCallback(c echo.Context) error {
	cookie, err := c.Cookie(oauthStateCookie)
	if err != nil {
		return utils.RespondWithError(c, http.StatusUnauthorized, "Invalid or missing state cookie")
	}
	if c.QueryParam("state") != cookie.Value {
		return utils.RespondWithError(c, http.StatusUnauthorized, "Invalid state parameter")
	}

	// The state is single use.
	cookie.Value = ""
	cookie.Expires = time.Unix(0, 0)
	cookie.Path = "/"
	c.SetCookie(cookie)

	code := c.QueryParam("code")
	if code == "" {
		return utils.RespondWithError(c, http.StatusBadRequest, "Authorization code not provided")
	}

	authResponse, err := h.service.HandleGoogleCallback(c.Request().Context(), code)
	if err != nil {
		log.Error().Err(err).Msg("Google callback failed")
		return c.Redirect(http.StatusTemporaryRedirect, fmt.Sprintf("%s/login/error", h.service.GetClientOrigin()))
	}

	redirectURL := fmt.Sprintf("%s/login/success?token=%s", h.service.GetClientOrigin(), url.QueryEscape(authResponse.AccessToken))
	return c.Redirect(http.StatusTemporaryRedirect, redirectURL)
}

// --- Profile Routes ---
func (h *Handler) GetProfile(c echo.Context) error {
	sess, err := utils.ExtractSession(c)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	profile, err := h.service.GetProfile(c.Request().Context(), sess)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	return utils.RespondWithJSON(c, http.StatusOK, profile)
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	sess, err := utils.ExtractSession(c)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	var req models.ProfileUpdateData
	if err := c.Bind(&req); err != nil {
		return utils.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
	}

	profile, err := h.service.UpdateProfile(c.Request().Context(), sess, req)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	return utils.RespondWithJSON(c, http.StatusOK, profile)
}

// DeleteMe deletes the caller's own account.
func (h *Handler) DeleteMe(c echo.Context) error {
	sess, err := utils.ExtractSession(c)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	if err := h.service.DeleteAccount(c.Request().Context(), sess, sess.UserID); err != nil {
		return utils.HandleServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// --- Admin Routes ---
func (h *Handler) ListUsers(c echo.Context) error {
	sess, err := utils.ExtractSession(c)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	var role *auth.Role
	if v := c.QueryParam("role"); v != "" {
		r, err := auth.ParseRole(v)
		if err != nil {
			return utils.HandleServiceError(c, err)
		}
		role = &r
	}
	page, limit := utils.GetPageLimit(c)

	users, total, err := h.service.ListUsers(c.Request().Context(), sess, role, page, limit)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	return utils.RespondWithJSON(c, http.StatusOK, utils.Page[*models.User]{Items: users, Total: total, Page: page, Limit: limit})
}

func (h *Handler) SetRole(c echo.Context) error {
	sess, err := utils.ExtractSession(c)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	var req models.UpdateRoleRequest
	if err := c.Bind(&req); err != nil {
		return utils.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return utils.HandleServiceError(c, err)
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}

	if err := h.service.SetRole(c.Request().Context(), sess, c.Param("userId"), role); err != nil {
		return utils.HandleServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DeleteUser(c echo.Context) error {
	sess, err := utils.ExtractSession(c)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	if err := h.service.DeleteAccount(c.Request().Context(), sess, c.Param("userId")); err != nil {
		return utils.HandleServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
