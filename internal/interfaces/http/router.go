// Package http exposes the planning service over a gin JSON API.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/topk-planner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/topk-planner/internal/interfaces/http/handlers"
	"github.com/turtacn/topk-planner/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers and middleware of the route tree.
// Nil handlers leave their routes unmounted; nil middleware is skipped.
type RouterConfig struct {
	RecommendationHandler *handlers.RecommendationHandler
	CatalogHandler        *handlers.CatalogHandler
	HealthHandler         *handlers.HealthHandler

	RateLimiter   *middleware.RateLimiter
	HTTPRecorder  middleware.HTTPRecorder
	LoggingConfig *middleware.LoggingConfig

	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler

	Logger logging.Logger
}

// NewRouter builds the gin engine.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logCfg := middleware.DefaultLoggingConfig()
	if cfg.LoggingConfig != nil {
		logCfg = *cfg.LoggingConfig
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger, logCfg))
	if cfg.HTTPRecorder != nil {
		r.Use(middleware.Metrics(cfg.HTTPRecorder))
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Middleware())
	}

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	api := r.Group("/api/v1")
	registerRecommendationRoutes(api, cfg.RecommendationHandler)
	registerCatalogRoutes(api, cfg.CatalogHandler)
	return r
}

func registerRecommendationRoutes(g *gin.RouterGroup, h *handlers.RecommendationHandler) {
	if h == nil {
		return
	}
	g.POST("/recommendations", h.Recommend)
	g.POST("/recommendations/batch", h.RecommendBatch)
	g.GET("/profiles", h.ListProfiles)
}

func registerCatalogRoutes(g *gin.RouterGroup, h *handlers.CatalogHandler) {
	if h == nil {
		return
	}
	g.GET("/catalogs", h.List)
	g.GET("/catalogs/:id", h.Get)
	g.PUT("/catalogs/:id", h.Put)
}
