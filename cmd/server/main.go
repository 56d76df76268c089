package main

import (
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/brightclass/insight-service/internal/cache"
	"github.com/brightclass/insight-service/internal/config"
	"github.com/brightclass/insight-service/internal/handlers"
	"github.com/brightclass/insight-service/internal/repositories/postgres"
	"github.com/brightclass/insight-service/internal/services"
	"github.com/brightclass/insight-service/internal/utils"
	"github.com/brightclass/insight-service/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	var logger utils.Logger
	if cfg.Environment == "production" {
		logger = utils.NewDefaultLogger()
		gin.SetMode(gin.ReleaseMode)
	} else {
		logger = utils.NewDevelopmentLogger()
	}
	slogger := utils.ToSlogLogger(logger)

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	// Redis is an optimization, not a dependency: without it every request
	// recomputes, which is correct, just slower.
	var cacheService cache.CacheService
	if redisClient, err := pkg.NewRedisClient(cfg); err != nil {
		logger.Warn("Redis unavailable, running without response cache", "error", err)
	} else {
		cacheService = cache.NewRedisCache(redisClient, slogger)
	}

	publisher, err := cfg.Events.CreateEventPublisher(slogger)
	if err != nil {
		logger.Error("Failed to create event publisher", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error("Failed to close event publisher", "error", err)
		}
	}()

	repo := postgres.NewTelemetryPostgreSQL(db)

	alertService := services.NewAlertService(repo, slogger, cfg.Thresholds, cacheService, publisher, cfg.CacheTTL)
	suggestionService := services.NewSuggestionService(repo, slogger, cfg.Thresholds, cacheService, publisher, cfg.CacheTTL)
	srsService := services.NewSRSPlanService(repo, slogger, cfg.Thresholds)
	masteryService := services.NewMasteryService(repo, slogger, cfg.Thresholds)
	performanceService := services.NewPerformanceService(repo, slogger)

	insightHandler := handlers.NewInsightHandler(
		alertService,
		suggestionService,
		srsService,
		masteryService,
		performanceService,
		logger,
		utils.NewValidator(),
		cfg.DashboardTimeout,
	)

	router := gin.New()
	router.Use(gin.Recovery())

	handlerManager := handlers.NewHandlerManager(insightHandler)
	handlerManager.SetupRoutes(router, logger)

	logger.Info("Starting insight service", "port", cfg.Port, "environment", cfg.Environment)
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}
