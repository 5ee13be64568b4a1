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

// ProcessRequest is what the WhatsApp worker posts for each inbound
// resident message. Date is the optional reference date (YYYY-MM-DD)
// an undated message applies to.
type ProcessRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	UserName string `json:"user_name"`
	Message  string `json:"message" binding:"required"`
	Date     string `json:"date"`
}

type ProcessResponse struct {
	Reply         string              `json:"reply"`
	Counter       int                 `json:"counter"`
	Order         *types.OrderPayload `json:"order,omitempty"`
	CanceledOrder *types.OrderPayload `json:"canceled_order,omitempty"`
}

type ProcessHandler struct {
	log    *logger.Logger
	orders services.OrderService
}

func NewProcessHandler(log *logger.Logger, orders services.OrderService) *ProcessHandler {
	return &ProcessHandler{
		log:    log.With("handler", "ProcessHandler"),
		orders: orders,
	}
}

func (ph *ProcessHandler) Process(c *gin.Context) {
	var req ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	var referenceDate time.Time
	if strings.TrimSpace(req.Date) != "" {
		parsed, err := time.Parse("2006-01-02", strings.TrimSpace(req.Date))
		if err != nil {
			RespondError(c, http.StatusBadRequest, "bad_date", fmt.Errorf("date must be YYYY-MM-DD"))
			return
		}
		referenceDate = parsed
	}

	result, err := ph.orders.Resolve(c.Request.Context(), req.UserID, req.UserName, req.Message, referenceDate, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, services.ErrExtractionUnavailable):
			ph.log.Error("Extraction unavailable", "error", err)
			RespondError(c, http.StatusServiceUnavailable, "extraction_unavailable", errors.New("the assistant is temporarily unavailable, please try again"))
		case errors.Is(err, repos.ErrConflict):
			RespondError(c, http.StatusConflict, "conflict", errors.New("your order changed while processing, please resend"))
		default:
			ph.log.Error("Process failed", "error", err)
			RespondError(c, http.StatusInternalServerError, "internal", errors.New("internal error"))
		}
		return
	}

	resp := ProcessResponse{
		Reply:   result.Reply,
		Counter: result.Counter,
	}
	if result.Canceled {
		resp.CanceledOrder = result.Order.Payload()
	} else {
		resp.Order = result.Order.Payload()
	}
	RespondOK(c, resp)
}
