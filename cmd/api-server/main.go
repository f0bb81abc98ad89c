package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/scanops/envelope-batch-api/api/swagger"
	"github.com/scanops/envelope-batch-api/internal/handler"
	"github.com/scanops/envelope-batch-api/internal/middleware"
	"github.com/scanops/envelope-batch-api/internal/repository"
	"github.com/scanops/envelope-batch-api/internal/service"
	"github.com/scanops/envelope-batch-api/pkg/cache"
	"github.com/scanops/envelope-batch-api/pkg/config"
	"github.com/scanops/envelope-batch-api/pkg/database"
	"github.com/scanops/envelope-batch-api/pkg/logger"
	corsmiddleware "github.com/scanops/envelope-batch-api/pkg/middleware/cors"
	reqidmiddleware "github.com/scanops/envelope-batch-api/pkg/middleware/requestid"
	"github.com/scanops/envelope-batch-api/pkg/storage"
)

// @title Envelope Batch API
// @version 1.0.0
// @description Batch tracking for envelope scanning with per-item verdicts and spreadsheet import/export
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := database.Migrate(migrateCtx, db); err != nil {
		logr.Sugar().Fatalw("failed to migrate schema", "error", err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, list caching disabled", "error", err)
		}
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	snapshots, err := storage.NewLocalStorage(cfg.Import.SnapshotDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init import snapshot storage", "error", err)
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	batchRepo := repository.NewBatchRepository(db)
	listCache := repository.NewCacheRepository(redisClient, logr)

	batchSvc := service.NewBatchService(batchRepo, listCache, metricsSvc, cfg.Cache.ListTTL, validate, logr)
	importSvc := service.NewImportService(snapshots, cfg.Import.MaxFileSizeBytes, logr)
	exportSvc := service.NewExportService(batchRepo, logr)

	batchHandler := handler.NewBatchHandler(batchSvc)
	spreadsheetHandler := handler.NewSpreadsheetHandler(importSvc, exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/batches", batchHandler.Start)
		api.GET("/batches", batchHandler.List)
		api.GET("/batches/:id", batchHandler.Get)
		api.POST("/batches/:id/finish", batchHandler.Finish)
		api.GET("/batches/:id/export", spreadsheetHandler.Export)
		api.POST("/imports/spreadsheet", spreadsheetHandler.Import)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
