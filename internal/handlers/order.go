package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/messmate/pgmess-backend/internal/logger"
	"github.com/messmate/pgmess-backend/internal/repos"
	"github.com/messmate/pgmess-backend/internal/services"
	"github.com/messmate/pgmess-backend/internal/types"
)

// UpsertOrderRequest is the direct (no-LLM) order write used by the
// admin dashboard. Meal fields are tri-state: absent leaves the meal
// as it is.
type UpsertOrderRequest struct {
	WhatsAppID string `json:"whatsapp_id" binding:"required"`
	Date       string `json:"date" binding:"required"`
	Breakfast  *bool  `json:"breakfast"`
	Lunch      *bool  `json:"lunch"`
	Dinner     *bool  `json:"dinner"`
}

type CancelByDateRequest struct {
	WhatsAppID string `json:"whatsapp_id" binding:"required"`
	Date       string `json:"date" binding:"required"`
}

type OrderHandler struct {
	log    *logger.Logger
	orders services.OrderService
}

func NewOrderHandler(log *logger.Logger, orders services.OrderService) *OrderHandler {
	return &OrderHandler{
		log:    log.With("handler", "OrderHandler"),
		orders: orders,
	}
}

func parseDate(raw string) (time.Time, error) {
	parsed, err := time.Parse("2006-01-02", strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD")
	}
	return parsed, nil
}

func (oh *OrderHandler) Upsert(c *gin.Context) {
	var req UpsertOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_date", err)
		return
	}

	changes := types.MealChanges{
		Breakfast: req.Breakfast,
		Lunch:     req.Lunch,
		Dinner:    req.Dinner,
	}
	if changes.Empty() {
		RespondError(c, http.StatusBadRequest, "no_meals", fmt.Errorf("at least one meal must be given"))
		return
	}

	order, err := oh.orders.DirectUpsert(c.Request.Context(), req.WhatsAppID, date, changes)
	if err != nil {
		oh.respondOrderError(c, err)
		return
	}
	RespondOK(c, gin.H{"order": order.Payload()})
}

func (oh *OrderHandler) ListByUser(c *gin.Context) {
	whatsappID := c.Param("whatsapp_id")
	orders, err := oh.orders.ListOrders(c.Request.Context(), whatsappID)
	if err != nil {
		oh.respondOrderError(c, err)
		return
	}
	payloads := make([]*types.OrderPayload, 0, len(orders))
	for _, o := range orders {
		payloads = append(payloads, o.Payload())
	}
	RespondOK(c, gin.H{"orders": payloads})
}

func (oh *OrderHandler) CancelByDate(c *gin.Context) {
	var req CancelByDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_date", err)
		return
	}

	order, err := oh.orders.CancelByDate(c.Request.Context(), req.WhatsAppID, date)
	if err != nil {
		oh.respondOrderError(c, err)
		return
	}
	RespondOK(c, gin.H{"canceled_order": order.Payload()})
}

func (oh *OrderHandler) respondOrderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		RespondError(c, http.StatusNotFound, "user_not_found", err)
	case errors.Is(err, repos.ErrConflict):
		RespondError(c, http.StatusConflict, "conflict", err)
	default:
		oh.log.Error("Order operation failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "internal", errors.New("internal error"))
	}
}
