package router

import (
	"github.com/charity/backend/internal/infrastructure/logger"
	"github.com/charity/backend/internal/interfaces/http/handler"
	"github.com/charity/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// EngineConfig controls the global middleware chain
type EngineConfig struct {
	ServiceName    string
	TracingEnabled bool
	MetricsEnabled bool
	Meter          metric.Meter
	MaxBodyBytes   int64
	HSTSEnabled    bool
}

// Handlers groups the HTTP handlers mounted on the engine
type Handlers struct {
	Ledger *handler.LedgerHandler
	Health *handler.HealthHandler
}

// NewEngine builds the gin engine with the middleware chain and all routes.
//
// Order matters: RequestID runs first so every later middleware and the access
// log see the id; tracing wraps everything after it.
func NewEngine(cfg EngineConfig, h Handlers, log *zap.Logger) *gin.Engine {
	middleware.SetupValidator()

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.ServiceName,
			Enabled:     cfg.TracingEnabled,
		}),
		middleware.TracingAttributeInjector(),
		middleware.SpanErrorMarker(),
		middleware.HTTPMetricsWithMeter(cfg.Meter, cfg.MetricsEnabled),
		logger.GinMiddleware(log, logger.WithQuietPaths("/health")),
		middleware.SecureWithConfig(securityConfig(cfg)),
	)
	if cfg.MaxBodyBytes > 0 {
		engine.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	}

	engine.GET("/health", h.Health.Health)

	NewRouter(engine, WithRouteLogger(log)).
		Register(LedgerRoutes(h.Ledger)).
		Setup()

	return engine
}

func securityConfig(cfg EngineConfig) middleware.SecurityConfig {
	sc := middleware.DefaultSecurityConfig()
	sc.HSTSEnabled = cfg.HSTSEnabled
	return sc
}

// LedgerRoutes returns the donation, reconciliation and sweep routes
func LedgerRoutes(h *handler.LedgerHandler) RouteRegistrar {
	return ledgerRoutes{
		NewDomainGroup("donations", "/donations").
			POST("/:id/approve", h.ApproveDonation).
			POST("/:id/reject", h.RejectDonation),
		NewDomainGroup("projects", "/projects").
			POST("/:id/reconcile", h.ReconcileProject),
		NewDomainGroup("annual-goals", "/annual-goals").
			POST("/:year/reconcile", h.ReconcileAnnualGoal),
		NewDomainGroup("ledger", "/ledger").
			POST("/sweep", h.Sweep).
			GET("/sweep/status", h.SweepStatus),
	}
}

type ledgerRoutes []*DomainGroup

func (lr ledgerRoutes) RegisterRoutes(rg *gin.RouterGroup) {
	for _, g := range lr {
		g.RegisterRoutes(rg)
	}
}
