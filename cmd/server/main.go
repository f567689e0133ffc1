package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apptrip "github.com/tripline/backend/internal/application/trip"
	"github.com/tripline/backend/internal/infrastructure/auth"
	"github.com/tripline/backend/internal/infrastructure/cache"
	"github.com/tripline/backend/internal/infrastructure/config"
	"github.com/tripline/backend/internal/infrastructure/integration"
	"github.com/tripline/backend/internal/infrastructure/logger"
	"github.com/tripline/backend/internal/infrastructure/persistence"
	"github.com/tripline/backend/internal/infrastructure/resilience"
	"github.com/tripline/backend/internal/infrastructure/scheduler"
	"github.com/tripline/backend/internal/interfaces/http/handler"
	"github.com/tripline/backend/internal/interfaces/http/middleware"
	"github.com/tripline/backend/internal/interfaces/http/router"
)

// version is overridden at build time via -ldflags
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting Tripline Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize repositories
	tripRepo := persistence.NewGormTripRepository(db.DB)
	transitionRepo := persistence.NewGormTransitionRepository(db.DB)

	// Circuit breakers for external dependencies
	breakerSettings := resilience.Settings{
		FailureThreshold: cfg.Resilience.Breaker.FailureThreshold,
		ResetTimeout:     cfg.Resilience.Breaker.ResetTimeout,
		CallTimeout:      cfg.Resilience.Breaker.CallTimeout,
	}
	breakers := resilience.NewRegistry(breakerSettings, log)
	itineraryBreaker := breakers.Register("itinerary", breakerSettings)
	weatherBreaker := breakers.Register("weather", breakerSettings)

	// External provider clients
	itineraryClient := integration.NewItineraryClient(cfg.Integration, cfg.Resilience.Retry, itineraryBreaker, log)
	weatherClient := integration.NewWeatherClient(cfg.Integration, weatherBreaker, log)

	// Initialize application services
	tripService := apptrip.NewTripService(tripRepo)
	statusService := apptrip.NewStatusService(tripRepo, transitionRepo, log)
	itineraryService := apptrip.NewItineraryService(tripRepo, itineraryClient, weatherClient, log)

	// Idempotency store (memory or redis per config)
	idempotencyStore, err := cache.NewIdempotencyStore(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize idempotency store", zap.Error(err))
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	// JWT authentication
	jwtService := auth.NewJWTService(cfg.JWT)

	// Date-based status sweep
	sweepScheduler := scheduler.NewStatusSweepScheduler(scheduler.StatusSweepConfig{
		Enabled:    cfg.Sweep.Enabled,
		Interval:   cfg.Sweep.Interval,
		RunTimeout: cfg.Sweep.RunTimeout,
		RunAtStart: cfg.Sweep.RunAtStart,
	}, statusService, log)
	if err := sweepScheduler.Start(context.Background()); err != nil {
		log.Fatal("Failed to start status sweep scheduler", zap.Error(err))
	}
	defer func() {
		if err := sweepScheduler.Stop(context.Background()); err != nil {
			log.Error("Error stopping status sweep scheduler", zap.Error(err))
		}
	}()

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware stack: request ID first so recovery and request logs
	// carry it, then CORS, then JWT authentication
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	engine.Use(middleware.CORSWithConfig(corsConfig))

	jwtConfig := middleware.JWTMiddlewareConfig{
		JWTService: jwtService,
		SkipPaths: []string{
			"/health",
			"/ready",
		},
		Logger: log,
	}
	engine.Use(middleware.JWTAuthMiddlewareWithConfig(jwtConfig))

	// Initialize HTTP handlers
	idempotencyMiddleware := middleware.Idempotency(idempotencyStore, cfg.Idempotency.TTL, log)
	tripHandler := handler.NewTripHandler(tripService, statusService, idempotencyMiddleware)
	itineraryHandler := handler.NewItineraryHandler(itineraryService)
	systemHandler := handler.NewSystemHandler(db, breakers, sweepScheduler, version)

	router.NewRouter(engine, router.WithAPIVersion("v1")).
		Register(tripHandler).
		Register(itineraryHandler).
		RegisterSystem(systemHandler).
		Setup()

	// Create HTTP server with config
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
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
