package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/messmate/pgmess-backend/internal/logger"
	"github.com/messmate/pgmess-backend/internal/services"
	"github.com/messmate/pgmess-backend/internal/types"
)

type CreateUserRequest struct {
	WhatsAppID string `json:"whatsapp_id" binding:"required"`
	Username   string `json:"username" binding:"required"`
	Age        *int   `json:"age"`
	Address    string `json:"address"`
}

type UserHandler struct {
	log   *logger.Logger
	users services.UserService
}

func NewUserHandler(log *logger.Logger, users services.UserService) *UserHandler {
	return &UserHandler{
		log:   log.With("handler", "UserHandler"),
		users: users,
	}
}

func (uh *UserHandler) Create(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	user, err := uh.users.Register(c.Request.Context(), &types.User{
		WhatsAppID: req.WhatsAppID,
		Username:   req.Username,
		Age:        req.Age,
		Address:    req.Address,
	})
	if err != nil {
		uh.log.Error("Create user failed", "error", err)
		RespondError(c, http.StatusBadRequest, "create_failed", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

func (uh *UserHandler) List(c *gin.Context) {
	users, err := uh.users.List(c.Request.Context())
	if err != nil {
		uh.log.Error("List users failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"users": users})
}
