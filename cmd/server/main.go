package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/charity/backend/internal/application/ledger"
	"github.com/charity/backend/internal/domain/donation"
	"github.com/charity/backend/internal/infrastructure/cache"
	"github.com/charity/backend/internal/infrastructure/config"
	"github.com/charity/backend/internal/infrastructure/event"
	"github.com/charity/backend/internal/infrastructure/logger"
	"github.com/charity/backend/internal/infrastructure/persistence"
	"github.com/charity/backend/internal/infrastructure/scheduler"
	"github.com/charity/backend/internal/infrastructure/telemetry"
	"github.com/charity/backend/internal/interfaces/http/handler"
	"github.com/charity/backend/internal/interfaces/http/router"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      cfg.Log.Output,
		TimeFormat:  "2006-01-02T15:04:05.000Z07:00",
		Service:     cfg.App.Name,
		Environment: cfg.App.Env,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting donation ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	meter := meterProvider.Meter(telemetry.TracerName)
	ledgerMetrics, err := telemetry.NewLedgerMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create ledger metrics", zap.Error(err))
	}

	// Database
	db, err := persistence.NewDatabase(&cfg.Database, log,
		persistence.WithLogLevel(cfg.Log.Level),
		persistence.WithTracing(telemetry.DBTracingConfig{
			Enabled:    cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
			LogFullSQL: cfg.Telemetry.DBLogFullSQL,
			DBName:     cfg.Database.DBName,
		}),
	)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatal("Failed to get underlying sql.DB", zap.Error(err))
	}
	log.Info("Database connected successfully")

	poolMetrics, err := telemetry.RegisterDBPoolMetrics(meter, sqlDB)
	if err != nil {
		log.Fatal("Failed to register connection pool metrics", zap.Error(err))
	}

	// Redis is only dialed when something is configured to use it
	var redisClient redis.UniversalClient
	if cfg.Notification.UseRedis || cfg.Sweep.UseRedisLock {
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn("Redis unavailable, using in-process coordination", zap.Error(err))
		} else {
			redisClient = client
			defer func() {
				_ = client.Close()
			}()
		}
	}
	coordination := cache.NewCoordination(redisClient, cfg.Notification, cfg.Sweep, log)
	defer func() {
		_ = coordination.Close()
	}()

	// Events
	eventBus := event.NewInMemoryEventBus(log)
	notifier := ledger.NewGoalReachedNotifier(ledger.NewLogNotifier(log), log)
	eventBus.Subscribe(event.NewIdempotentHandler(notifier, coordination.Idempotency, log,
		event.WithKeyFunc(ledger.GoalReachedKey),
		event.WithTTL(cfg.Notification.DedupTTL),
	), donation.EventTypeProjectGoalReached)
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	// Ledger
	ledgerService := ledger.NewLedgerService(
		persistence.NewGormLedgerScope(db.DB),
		ledgerConfig(cfg),
		log,
		ledger.WithEventPublisher(eventBus),
		ledger.WithMetrics(ledgerMetrics),
		ledger.WithSweepLock(coordination.SweepLock),
	)

	sweepScheduler := scheduler.NewSweepScheduler(scheduler.SweepSchedulerConfig{
		Enabled:  cfg.Sweep.Enabled,
		Hour:     cfg.Sweep.Hour,
		Timeout:  cfg.Sweep.Timeout,
		Location: cfg.Ledger.Location(),
	}, ledgerService, log)
	if err := sweepScheduler.Start(ctx); err != nil {
		log.Fatal("Failed to start sweep scheduler", zap.Error(err))
	}

	engine := router.NewEngine(router.EngineConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		TracingEnabled: tracerProvider.IsEnabled(),
		MetricsEnabled: cfg.Telemetry.Enabled,
		Meter:          meter,
		MaxBodyBytes:   cfg.HTTP.MaxBodySize,
		HSTSEnabled:    cfg.App.Env == "production",
	}, router.Handlers{
		Ledger: handler.NewLedgerHandler(ledgerService, sweepRunnerFor(cfg.Sweep, sweepScheduler)),
		Health: handler.NewHealthHandler(sqlDB, version, log),
	}, log)
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Invalid trusted proxies", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := sweepScheduler.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping sweep scheduler", zap.Error(err))
	}
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}
	if err := poolMetrics.Unregister(); err != nil {
		log.Warn("Error unregistering pool metrics", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

func ledgerConfig(cfg *config.Config) ledger.Config {
	return ledger.Config{
		DefaultAnnualTarget: cfg.Ledger.DefaultAnnualTarget,
		Location:            cfg.Ledger.Location(),
		RetryDelay:          cfg.Ledger.RetryDelay,
		SweepAllProjects:    cfg.Ledger.SweepAllProjects,
		SweepLockTTL:        cfg.Sweep.LockTTL,
	}
}

// sweepRunnerFor returns nil when the scheduler is disabled so the handler
// answers async sweep requests with 503.
func sweepRunnerFor(cfg config.SweepConfig, s *scheduler.SweepScheduler) handler.SweepRunner {
	if !cfg.Enabled || s == nil {
		return nil
	}
	return s
}
