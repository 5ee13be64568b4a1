package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/messmate/pgmess-backend/internal/handlers"
	"github.com/messmate/pgmess-backend/internal/middleware"
	"github.com/messmate/pgmess-backend/internal/utils"
)

type RouterConfig struct {
	AuthMiddleware *middleware.AuthMiddleware
	ProcessHandler *handlers.ProcessHandler
	UserHandler    *handlers.UserHandler
	OrderHandler   *handlers.OrderHandler
	SummaryHandler *handlers.SummaryHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware("pgmess-backend"))

	// Cors
	origins := strings.Split(utils.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000", nil), ",")
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)

	// ===============
	// || Protected ||
	// ===============
	protected := router.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireServiceAuth())
	// Chat pipeline
	protected.POST("/process", cfg.ProcessHandler.Process)
	// Residents
	protected.POST("/users", cfg.UserHandler.Create)
	protected.GET("/users", cfg.UserHandler.List)
	// Direct order management
	protected.POST("/orders", cfg.OrderHandler.Upsert)
	protected.GET("/orders/:whatsapp_id", cfg.OrderHandler.ListByUser)
	protected.POST("/orders/cancel_by_date", cfg.OrderHandler.CancelByDate)
	// Kitchen
	protected.GET("/summary", cfg.SummaryHandler.Get)

	return router
}
