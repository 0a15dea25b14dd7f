package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/qanoonai/backend/internal/api/handlers"
	"github.com/qanoonai/backend/internal/app"
	"github.com/qanoonai/backend/internal/metrics"
	"github.com/qanoonai/backend/internal/middleware/ratelimit"
	"github.com/qanoonai/backend/internal/middleware/security"
	"github.com/qanoonai/backend/internal/middleware/validation"
	"github.com/qanoonai/backend/pkg/config"
	appLogger "github.com/qanoonai/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting QanoonAI search API")

	metrics.Init()

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	components, err := app.New(startCtx, cfg)
	cancel()
	if err != nil {
		appLogger.Fatal("Failed to initialize components", zap.Error(err))
	}

	fiberApp := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
		Logger:            appLogger.GetLogger(),
	})
	defer limiter.Stop()

	fiberApp.Use(recover.New())
	fiberApp.Use(logger.New())
	fiberApp.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.Server.AllowedOrigins, ", "),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-API-Key",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))
	fiberApp.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment:   cfg.Server.Development,
		NoStorePrefixes: []string{"/api/v1/ingestion", "/api/v1/stats", "/api/v1/cache"},
	}))

	deps := map[string]handlers.Pinger{"postgres": components.Store}
	if components.Redis != nil {
		deps["redis"] = components.Redis
	}
	healthHandler := handlers.NewHealthHandler(deps)
	searchHandler := handlers.NewSearchHandler(components.Search)
	adminHandler := handlers.NewAdminHandler(components.Pipeline, components.Stats, components.Search)

	fiberApp.Get("/health", healthHandler.Health)
	fiberApp.Get("/ready", healthHandler.Ready)
	fiberApp.Get("/metrics", metrics.MetricsHandler())

	api := fiberApp.Group("/api/v1", limiter.Middleware(), validation.Middleware(validation.Config{
		MaxQueryBytes: 4 * cfg.Search.MaxQueryLength,
		Logger:        appLogger.GetLogger(),
	}))

	api.Post("/search", searchHandler.Search)
	api.Get("/judgments", searchHandler.Browse)
	api.Get("/judgments/:id", searchHandler.GetJudgment)
	api.Get("/judgments/:id/citations", searchHandler.GetCitations)
	api.Get("/judgments/:id/citations/chain", searchHandler.GetCitationChain)

	api.Get("/stats", adminHandler.GetStats)
	api.Delete("/cache", adminHandler.ClearCache)
	api.Post("/ingestion/jobs", adminHandler.StartIngestion)
	api.Get("/ingestion/jobs/:id", adminHandler.GetIngestionJob)
	api.Post("/ingestion/resolve", adminHandler.ResolveCitations)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := fiberApp.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := fiberApp.ShutdownWithTimeout(15 * time.Second); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}
	components.Close(context.Background())
	appLogger.Info("Server stopped")
}
