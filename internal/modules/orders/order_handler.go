package orders

import (
	"context"
	"net/http"
	"strconv"

	"laundry-pickup/internal/auth"
	"laundry-pickup/internal/models"
	"laundry-pickup/internal/scheduling"
	"laundry-pickup/pkg/utils"

	"github.com/labstack/echo/v4"
)

// Handler handles HTTP requests for orders and pickup slots.
type Handler struct {
	svc   ServiceInterface
	sched *scheduling.Scheduler
}

// NewHandler creates a new order handler.
func NewHandler(svc ServiceInterface, sched *scheduling.Scheduler) *Handler {
	return &Handler{svc: svc, sched: sched}
}

// ListSlots answers GET /slots?from_today=true&days=7.
func (h *Handler) ListSlots(c echo.Context) error {
	fromToday := c.QueryParam("from_today") != "false"
	days := scheduling.DefaultHorizonDays
	if v := c.QueryParam("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > scheduling.MaxHorizonDays {
			return utils.RespondWithError(c, http.StatusBadRequest, "days must be between 1 and 14")
		}
		days = n
	}
	return utils.RespondWithJSON(c, http.StatusOK, h.sched.SlotList(fromToday, days))
}

// ReturnEstimate answers GET /slots/return-estimate?date=&start=&asap=.
func (h *Handler) ReturnEstimate(c echo.Context) error {
	pickup, err := h.sched.ParseSlot(c.QueryParam("date"), c.QueryParam("start"))
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	asap, _ := strconv.ParseBool(c.QueryParam("asap"))
	return utils.RespondWithJSON(c, http.StatusOK, scheduling.EstimateReturn(pickup, asap))
}

func (h *Handler) Quote(c echo.Context) error {
	sess, err := utils.ExtractSession(c)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	var req models.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return utils.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
	}

	quote, err := h.svc.Quote(c.Request().Context(), sess, req)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	return utils.RespondWithJSON(c, http.StatusOK, quote)
}

func (h *Handler) CreateOrder(c echo.Context) error {
	sess, err := utils.ExtractSession(c)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	var req models.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return utils.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
	}

	order, err := h.svc.CreateOrder(c.Request().Context(), sess, req)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	return utils.RespondWithJSON(c, http.StatusCreated, order)
}

func (h *Handler) ListMyOrders(c echo.Context) error {
	sess, err := utils.ExtractSession(c)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	page, limit := utils.GetPageLimit(c)

	orders, total, err := h.svc.ListMyOrders(c.Request().Context(), sess, page, limit)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	return utils.RespondWithJSON(c, http.StatusOK, utils.Page[*models.Order]{Items: orders, Total: total, Page: page, Limit: limit})
}

func (h *Handler) GetOrder(c echo.Context) error {
	sess, err := utils.ExtractSession(c)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	order, err := h.svc.GetOrder(c.Request().Context(), sess, c.Param("orderId"))
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	return utils.RespondWithJSON(c, http.StatusOK, order)
}

func (h *Handler) History(c echo.Context) error {
	sess, err := utils.ExtractSession(c)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	changes, err := h.svc.History(c.Request().Context(), sess, c.Param("orderId"))
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	return utils.RespondWithJSON(c, http.StatusOK, changes)
}

func (h *Handler) CancelOrder(c echo.Context) error {
	return h.act(c, ServiceInterface.Cancel)
}

func (h *Handler) ListPool(c echo.Context) error {
	sess, err := utils.ExtractSession(c)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	page, limit := utils.GetPageLimit(c)

	orders, total, err := h.svc.ListPool(c.Request().Context(), sess, page, limit)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	return utils.RespondWithJSON(c, http.StatusOK, utils.Page[*models.Order]{Items: orders, Total: total, Page: page, Limit: limit})
}

func (h *Handler) ListAssignments(c echo.Context) error {
	sess, err := utils.ExtractSession(c)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	page, limit := utils.GetPageLimit(c)

	orders, total, err := h.svc.ListAssignments(c.Request().Context(), sess, page, limit)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	return utils.RespondWithJSON(c, http.StatusOK, utils.Page[*models.Order]{Items: orders, Total: total, Page: page, Limit: limit})
}

func (h *Handler) Accept(c echo.Context) error {
	return h.act(c, ServiceInterface.Accept)
}

func (h *Handler) Reject(c echo.Context) error {
	return h.act(c, ServiceInterface.Reject)
}

func (h *Handler) Advance(c echo.Context) error {
	return h.act(c, ServiceInterface.Advance)
}

func (h *Handler) Reschedule(c echo.Context) error {
	sess, err := utils.ExtractSession(c)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	var req models.RescheduleRequest
	if err := c.Bind(&req); err != nil {
		return utils.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
	}

	order, err := h.svc.Reschedule(c.Request().Context(), sess, c.Param("orderId"), req)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	return utils.RespondWithJSON(c, http.StatusOK, order)
}

func (h *Handler) ListAllOrders(c echo.Context) error {
	sess, err := utils.ExtractSession(c)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	page, limit := utils.GetPageLimit(c)

	var status *models.OrderStatus
	if v := c.QueryParam("status"); v != "" {
		st := models.OrderStatus(v)
		status = &st
	}

	orders, total, err := h.svc.ListAll(c.Request().Context(), sess, status, page, limit)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	return utils.RespondWithJSON(c, http.StatusOK, utils.Page[*models.Order]{Items: orders, Total: total, Page: page, Limit: limit})
}

// UpdateStatus is the admin transition along the matrix.
func (h *Handler) UpdateStatus(c echo.Context) error {
	sess, err := utils.ExtractSession(c)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	var req models.TransitionRequest
	if err := c.Bind(&req); err != nil {
		return utils.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return utils.HandleServiceError(c, err)
	}

	order, err := h.svc.Transition(c.Request().Context(), sess, c.Param("orderId"), req.Status)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	return utils.RespondWithJSON(c, http.StatusOK, order)
}

func (h *Handler) Override(c echo.Context) error {
	sess, err := utils.ExtractSession(c)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	var req models.OverrideRequest
	if err := c.Bind(&req); err != nil {
		return utils.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return utils.HandleServiceError(c, err)
	}

	order, err := h.svc.Override(c.Request().Context(), sess, c.Param("orderId"), req)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	return utils.RespondWithJSON(c, http.StatusOK, order)
}

func (h *Handler) AssignDriver(c echo.Context) error {
	sess, err := utils.ExtractSession(c)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	var req models.AssignDriverRequest
	if err := c.Bind(&req); err != nil {
		return utils.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return utils.HandleServiceError(c, err)
	}

	order, err := h.svc.AssignDriver(c.Request().Context(), sess, c.Param("orderId"), req.DriverID)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	return utils.RespondWithJSON(c, http.StatusOK, order)
}

type orderAction func(ServiceInterface, context.Context, auth.Session, string) (*models.Order, error)

// act runs a body-less status action on :orderId.
func (h *Handler) act(c echo.Context, do orderAction) error {
	sess, err := utils.ExtractSession(c)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	order, err := do(h.svc, c.Request().Context(), sess, c.Param("orderId"))
	if err != nil {
		return utils.HandleServiceError(c, err)
	}
	return utils.RespondWithJSON(c, http.StatusOK, order)
}
