package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/messmate/pgmess-backend/internal/logger"
	"github.com/messmate/pgmess-backend/internal/services"
)

type SummaryHandler struct {
	log    *logger.Logger
	orders services.OrderService
}

func NewSummaryHandler(log *logger.Logger, orders services.OrderService) *SummaryHandler {
	return &SummaryHandler{
		log:    log.With("handler", "SummaryHandler"),
		orders: orders,
	}
}

// Get reports the kitchen headcount for one date (?date=YYYY-MM-DD).
func (sh *SummaryHandler) Get(c *gin.Context) {
	raw := c.Query("date")
	if raw == "" {
		RespondError(c, http.StatusBadRequest, "bad_date", errors.New("date query parameter is required"))
		return
	}
	date, err := parseDate(raw)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_date", err)
		return
	}

	summary, err := sh.orders.Summary(c.Request.Context(), date)
	if err != nil {
		sh.log.Error("Summary failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"summary": summary})
}
