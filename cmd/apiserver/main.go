// Command apiserver serves the planning API over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/topk-planner/internal/bootstrap"
	"github.com/turtacn/topk-planner/internal/config"
	"github.com/turtacn/topk-planner/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/topk-planner/internal/interfaces/http"
	"github.com/turtacn/topk-planner/internal/interfaces/http/handlers"
	"github.com/turtacn/topk-planner/internal/interfaces/http/middleware"
)

// Build-time variables injected via ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: PLANNER_* environment)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(cfg.Log.Logging())
	if err != nil {
		return err
	}
	logging.SetDefault(logger)
	gin.SetMode(cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	checkers := make([]handlers.HealthChecker, 0, len(rt.Checks))
	for _, c := range rt.Checks {
		checkers = append(checkers, handlers.NewChecker(c.Name, c.Fn))
	}

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		rlCfg := middleware.DefaultRateLimitConfig()
		rlCfg.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rlCfg.Burst = cfg.RateLimit.Burst
		limiter = middleware.NewRateLimiter(rlCfg)
	}

	router := httpserver.NewRouter(httpserver.RouterConfig{
		RecommendationHandler: handlers.NewRecommendationHandler(rt.Service, logger),
		CatalogHandler:        handlers.NewCatalogHandler(rt.Service),
		HealthHandler:         handlers.NewHealthHandler(version, checkers...),
		RateLimiter:           limiter,
		HTTPRecorder:          rt.Metrics,
		MetricsHandler:        rt.MetricsHandler(),
		Logger:                logger,
	})
	srv := httpserver.NewServer(cfg.Server, router, logger)

	if configPath != "" {
		watchConfig(configPath, logger, limiter)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	logger.Info("apiserver started", logging.String("version", version), logging.String("addr", srv.Addr()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down apiserver")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("apiserver shutdown error", logging.Err(err))
		return err
	}
	logger.Info("apiserver stopped")
	return nil
}

// watchConfig applies log level and rate limit edits without a restart.
func watchConfig(path string, logger logging.Logger, limiter *middleware.RateLimiter) {
	err := config.Watch(path, func(cfg *config.Config) {
		if ls, ok := logger.(logging.LevelSetter); ok {
			ls.SetLevel(cfg.Log.Level)
		}
		if limiter != nil {
			limiter.SetLimits(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
		}
		logger.Info("configuration reloaded", logging.String("log_level", cfg.Log.Level))
	}, func(err error) {
		logger.Warn("ignoring invalid configuration edit", logging.Err(err))
	})
	if err != nil {
		logger.Warn("config watch disabled", logging.Err(err))
	}
}
