package payments

import (
	"net/http"

	"laundry-pickup/internal/models"
	"laundry-pickup/pkg/utils"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc ServiceInterface
}

func NewHandler(svc ServiceInterface) *Handler {
	return &Handler{svc: svc}
}

// CreateSession handles POST /orders/:orderId/payment-session.
func (h *Handler) CreateSession(c echo.Context) error {
	sess, err := utils.ExtractSession(c)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	session, err := h.svc.CreateSession(c.Request().Context(), sess, c.Param("orderId"))
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	return utils.RespondWithJSON(c, http.StatusCreated, session)
}

// Webhook handles POST /payments/webhook. Mercado Pago sends the payment id
// either in the JSON body or as query parameters.
func (h *Handler) Webhook(c echo.Context) error {
	var n models.PaymentNotification
	if err := c.Bind(&n); err != nil {
		return utils.RespondWithError(c, http.StatusBadRequest, "Invalid notification")
	}
	if n.Data.ID == "" {
		n.Data.ID = c.QueryParam("data.id")
	}
	if n.Type == "" {
		n.Type = c.QueryParam("type")
	}

	if err := h.svc.HandleNotification(c.Request().Context(), n); err != nil {
		return utils.HandleServiceError(c, err)
	}
	return c.NoContent(http.StatusOK)
}
