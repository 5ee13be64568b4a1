package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/messmate/pgmess-backend/internal/clients/llm"
	redisclient "github.com/messmate/pgmess-backend/internal/clients/redis"
	"github.com/messmate/pgmess-backend/internal/config"
	"github.com/messmate/pgmess-backend/internal/cutoff"
	"github.com/messmate/pgmess-backend/internal/db"
	"github.com/messmate/pgmess-backend/internal/handlers"
	"github.com/messmate/pgmess-backend/internal/logger"
	"github.com/messmate/pgmess-backend/internal/middleware"
	"github.com/messmate/pgmess-backend/internal/observability"
	"github.com/messmate/pgmess-backend/internal/repos"
	"github.com/messmate/pgmess-backend/internal/server"
	"github.com/messmate/pgmess-backend/internal/services"
	"github.com/messmate/pgmess-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "pgmess-backend",
		Environment: utils.GetEnv("DEPLOY_ENV", "development", log),
		Version:     utils.GetEnv("SERVICE_VERSION", "dev", log),
	})

	// Meal policy
	log.Info("Loading meal policy from main...")
	cfg, err := config.Load(os.Getenv("MEAL_CONFIG_PATH"), log)
	if err != nil {
		log.Error("Could not load meal config", "error", err)
		os.Exit(1)
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	orderRepo := repos.NewOrderRepo(thePG, log, cfg.Prices())
	aiCallLogRepo := repos.NewAICallLogRepo(thePG, log)

	// Conversation history
	var history services.ConversationStore
	if os.Getenv("REDIS_ADDR") != "" {
		history, err = redisclient.NewHistoryStore(log, cfg.HistoryMaxLines, cfg.HistoryTTL)
		if err != nil {
			log.Error("Could not init redis history store", "error", err)
			os.Exit(1)
		}
	} else {
		log.Warn("REDIS_ADDR not set, conversation history is in-memory only")
		history = services.NewMemoryHistoryStore(log, cfg.HistoryMaxLines, cfg.HistoryTTL)
	}
	defer history.Close()

	// Services
	log.Info("Setting up Services from main...")
	llmClient, err := llm.NewClient(log)
	if err != nil {
		log.Error("Could not init LLM client", "error", err)
		os.Exit(1)
	}
	extractor := services.NewIntentExtractor(log, llmClient, aiCallLogRepo, cfg.ExtractorTimeout)
	orderService := services.NewOrderService(log, userRepo, orderRepo, extractor, cutoff.NewPolicy(cfg), history)
	userService := services.NewUserService(log, userRepo)

	// Handlers
	log.Info("Setting up handlers from main...")
	processHandler := handlers.NewProcessHandler(log, orderService)
	userHandler := handlers.NewUserHandler(log, userService)
	orderHandler := handlers.NewOrderHandler(log, orderService)
	summaryHandler := handlers.NewSummaryHandler(log, orderService)

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware, err := middleware.NewAuthMiddleware(log)
	if err != nil {
		log.Error("Could not init auth middleware", "error", err)
		os.Exit(1)
	}

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		AuthMiddleware: authMiddleware,
		ProcessHandler: processHandler,
		UserHandler:    userHandler,
		OrderHandler:   orderHandler,
		SummaryHandler: summaryHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if otelShutdown != nil {
			_ = otelShutdown(shutdownCtx)
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server failed", "error", err)
		os.Exit(1)
	}
	log.Info("Server stopped")
}
