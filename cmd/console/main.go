package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/division-console/api/swagger"
	"github.com/noah-isme/division-console/internal/handler"
	"github.com/noah-isme/division-console/internal/middleware"
	"github.com/noah-isme/division-console/internal/models"
	"github.com/noah-isme/division-console/internal/repository"
	"github.com/noah-isme/division-console/internal/service"
	"github.com/noah-isme/division-console/pkg/cache"
	"github.com/noah-isme/division-console/pkg/config"
	"github.com/noah-isme/division-console/pkg/database"
	"github.com/noah-isme/division-console/pkg/logger"
	corsmiddleware "github.com/noah-isme/division-console/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/division-console/pkg/middleware/requestid"
	"github.com/noah-isme/division-console/pkg/websocket"
)

// @title Division Console API
// @version 1.0.0
// @description Backend for the division management console: CRUD proxy to the division gateway and background bulk deletion with live progress.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsSvc := service.NewMetricsService()
	checks := map[string]handler.Pinger{}

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, parent lookups will not be cached", zap.Error(err))
			redisClient = nil
		}
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, redisClient != nil)
	if redisClient != nil {
		checks["cache"] = cacheRepo
	}

	var (
		auditRepo *repository.DeletionAuditRepository
		db        *sqlx.DB
	)
	if cfg.Deletion.AuditEnabled {
		db, err = database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			logr.Fatal("failed to connect deletion audit store", zap.Error(err))
		}
		defer db.Close() //nolint:errcheck
		auditRepo = repository.NewDeletionAuditRepository(db)
		if err := auditRepo.EnsureSchema(ctx); err != nil {
			logr.Fatal("failed to prepare deletion audit schema", zap.Error(err))
		}
		checks["database"] = auditRepo
	}

	validate := service.NewValidator()
	divisionRepo := repository.NewDivisionRepository(cfg.Gateway, nil, metricsSvc, logr.Named("gateway"))
	divisionSvc := service.NewDivisionService(divisionRepo, cacheSvc, validate, logr)
	hierarchySvc := service.NewHierarchyService(divisionSvc, logr)
	verifier := service.NewTokenVerifier(cfg.JWT.Secret)

	hub := websocket.NewHub(logr.Named("ws"))
	go hub.Run(ctx)

	processorCfg := service.DeletionProcessorConfig{
		QueueSize:   cfg.Deletion.QueueSize,
		EventBuffer: cfg.Deletion.EventBuffer,
		ItemTimeout: cfg.Deletion.ItemTimeout,
	}
	var processor *service.DeletionProcessor
	if auditRepo != nil {
		processor = service.NewDeletionProcessor(divisionSvc, auditRepo, metricsSvc, processorCfg, logr.Named("deletion"))
	} else {
		processor = service.NewDeletionProcessor(divisionSvc, nil, metricsSvc, processorCfg, logr.Named("deletion"))
	}

	state := service.NewAppState()
	orchestrator := service.NewDeletionOrchestrator(processor, state, metricsSvc, cfg.Deletion.SupervisorTimeout, logr.Named("deletion"))
	orchestrator.OnEvent(func(event models.DeletionProgressEvent) {
		if err := hub.Broadcast(websocket.TypeDeletionProgress, event.Wire()); err != nil {
			logr.Debug("progress broadcast dropped", zap.Error(err))
		}
	})
	orchestrator.OnRefresh(func(path string) {
		if err := cacheSvc.InvalidateDivisions(ctx); err != nil {
			logr.Warn("failed to invalidate division cache", zap.Error(err))
		}
		if err := hub.Broadcast(websocket.TypeDivisionRefresh, websocket.RefreshPayload{Path: path}); err != nil {
			logr.Debug("refresh broadcast dropped", zap.Error(err))
		}
	})
	orchestrator.Start(ctx)

	divisionHandler := handler.NewDivisionHandler(divisionSvc, hierarchySvc, state)
	var deletionHandler *handler.DeletionHandler
	if auditRepo != nil {
		deletionHandler = handler.NewDeletionHandler(orchestrator, auditRepo)
	} else {
		deletionHandler = handler.NewDeletionHandler(orchestrator, nil)
	}
	appStateHandler := handler.NewAppStateHandler(state, orchestrator, validate)
	streamHandler := handler.NewStreamHandler(hub, state, cfg.CORS.AllowedOrigins, logr.Named("ws"))
	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/ws/deletions", middleware.Bearer(verifier, true), streamHandler.Deletions)

	secured := api.Group("")
	secured.Use(middleware.Bearer(verifier, false))

	divisions := secured.Group("/divisions")
	divisions.GET("", divisionHandler.List)
	divisions.GET("/options", divisionHandler.Options)
	divisions.GET("/:id", divisionHandler.Get)
	divisions.GET("/:id/parent", divisionHandler.Parent)
	divisions.POST("", divisionHandler.Create)
	divisions.PUT("/:id", divisionHandler.Update)
	divisions.DELETE("/:id", divisionHandler.Delete)

	deletions := secured.Group("/deletions")
	deletions.POST("", deletionHandler.Submit)
	deletions.GET("/:batchId/audit", deletionHandler.Audit)

	appState := secured.Group("/app/state")
	appState.GET("", appStateHandler.Get)
	appState.PUT("/search", appStateHandler.UpdateSearch)
	appState.DELETE("/deleting", appStateHandler.ClearDeleting)

	secured.GET("/system/metrics", metricsHandler.Summary)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "gateway", cfg.Gateway.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("http shutdown incomplete", zap.Error(err))
	}
	orchestrator.Stop()
	if state.IsDeleting() {
		logr.Warn("deletion interrupted before completion", zap.Any("state", state.Snapshot()))
	}
}
