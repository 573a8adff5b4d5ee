package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fieldservice/backend/internal/bootstrap"
	"github.com/fieldservice/backend/internal/domain/shared"
	"github.com/fieldservice/backend/internal/infrastructure/config"
	"github.com/fieldservice/backend/internal/infrastructure/logger"
	"github.com/fieldservice/backend/internal/infrastructure/telemetry"
	"github.com/fieldservice/backend/internal/interfaces/http/handler"
	"github.com/fieldservice/backend/internal/interfaces/http/middleware"
	"github.com/fieldservice/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync(log)

	if version != "dev" {
		cfg.App.Version = version
	}

	log.Info("Starting field service backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("store", cfg.Store.Backend),
		zap.String("version", cfg.App.Version),
	)

	ctx := context.Background()

	// Requests decline confirmations unless they pass ?confirm=true
	container, err := bootstrap.New(ctx, cfg, log, shared.StaticConfirmer(false))
	if err != nil {
		log.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer func() {
		if err := container.Close(); err != nil {
			log.Error("Error closing record store", zap.Error(err))
		}
	}()

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	var httpMetrics *telemetry.HTTPMetrics
	if container.Metrics != nil {
		httpMetrics = telemetry.NewHTTPMetrics(container.Metrics)
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		logger.GinMiddleware(log),
		middleware.Secure(),
		middleware.CORSWithConfig(cors),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		middleware.Metrics(httpMetrics),
	)

	if container.Tracer.Enabled() {
		engine.Use(
			middleware.Tracing(cfg.App.Name, container.Tracer.Provider(), "/health", cfg.Metrics.Path),
			middleware.TraceAttributes(),
		)
	}

	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		defer rateLimiter.Stop()
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	systemHandler := handler.NewSystemHandler(cfg.App.Name, cfg.App.Version, container.Checks)
	engine.GET("/health", systemHandler.Health)
	if container.Metrics != nil {
		engine.GET(cfg.Metrics.Path, gin.WrapH(container.Metrics.Handler()))
	}

	r := router.NewRouter(engine, router.WithAPIVersion("v1")).
		Use(middleware.Notifications(), middleware.Confirmation())
	if container.Idempotency != nil {
		r.Use(middleware.Idempotency(container.Idempotency, cfg.HTTP.IdempotencyTTL))
	}
	groups := router.DomainGroups(router.Handlers{
		Installments: handler.NewInstallmentHandler(container.Installments),
		Finance:      handler.NewFinanceHandler(container.Summary, container.CashFlow),
		Expenses:     handler.NewExpenseHandler(container.Expenses),
		Inventory:    handler.NewInventoryHandler(container.Stock),
		Backup:       handler.NewBackupHandler(container.Backups),
		System:       systemHandler,
	})
	r.RegisterAll(groups).Setup()
	for _, g := range groups {
		log.Debug("Routes registered", zap.String("group", g.Name()), zap.Strings("routes", g.Paths()))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
