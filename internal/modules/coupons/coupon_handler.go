package coupons

import (
	"net/http"

	"laundry-pickup/internal/models"
	"laundry-pickup/pkg/utils"

	"github.com/labstack/echo/v4"
)

// Handler handles HTTP requests for coupons.
type Handler struct {
	svc ServiceInterface
}

func NewHandler(svc ServiceInterface) *Handler {
	return &Handler{svc: svc}
}

// ValidateCoupon answers the checkout preview. It never fails for an unusable code.
func (h *Handler) ValidateCoupon(c echo.Context) error {
	var req models.ValidateCouponRequest
	if err := c.Bind(&req); err != nil {
		return utils.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return utils.HandleServiceError(c, err)
	}

	result, err := h.svc.ValidateCoupon(c.Request().Context(), req.Code, req.OrderTotal)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	return utils.RespondWithJSON(c, http.StatusOK, result)
}

func (h *Handler) List(c echo.Context) error {
	sess, err := utils.ExtractSession(c)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	page, limit := utils.GetPageLimit(c)

	coupons, total, err := h.svc.List(c.Request().Context(), sess, page, limit)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	return utils.RespondWithJSON(c, http.StatusOK, utils.Page[*models.Coupon]{Items: coupons, Total: total, Page: page, Limit: limit})
}

func (h *Handler) Get(c echo.Context) error {
	sess, err := utils.ExtractSession(c)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	coupon, err := h.svc.Get(c.Request().Context(), sess, c.Param("couponId"))
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	return utils.RespondWithJSON(c, http.StatusOK, coupon)
}

func (h *Handler) Create(c echo.Context) error {
	sess, err := utils.ExtractSession(c)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	var req models.CouponRequest
	if err := c.Bind(&req); err != nil {
		return utils.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return utils.HandleServiceError(c, err)
	}

	coupon, err := h.svc.Create(c.Request().Context(), sess, req)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	return utils.RespondWithJSON(c, http.StatusCreated, coupon)
}

func (h *Handler) Update(c echo.Context) error {
	sess, err := utils.ExtractSession(c)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	var req models.CouponRequest
	if err := c.Bind(&req); err != nil {
		return utils.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return utils.HandleServiceError(c, err)
	}

	coupon, err := h.svc.Update(c.Request().Context(), sess, c.Param("couponId"), req)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	return utils.RespondWithJSON(c, http.StatusOK, coupon)
}

func (h *Handler) Delete(c echo.Context) error {
	sess, err := utils.ExtractSession(c)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	if err := h.svc.Delete(c.Request().Context(), sess, c.Param("couponId")); err != nil {
		return utils.HandleServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
