// Command worker consumes recommendation requests from Kafka and publishes
// the ranked plans to the result topic.
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
	"github.com/turtacn/topk-planner/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/topk-planner/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/topk-planner/internal/interfaces/http"
	"github.com/turtacn/topk-planner/internal/interfaces/http/handlers"
	"github.com/turtacn/topk-planner/internal/interfaces/worker"
	"github.com/turtacn/topk-planner/pkg/errors"
)

const defaultHealthPort = 8081

// Build-time variables injected via ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: PLANNER_* environment)")
	healthPort := flag.Int("health-port", defaultHealthPort, "port for /healthz, /readyz and /metrics")
	ensureTopics := flag.Bool("ensure-topics", false, "create the planner topics before consuming")
	flag.Parse()

	if err := run(*configPath, *healthPort, *ensureTopics); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, healthPort int, ensureTopics bool) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}
	if !cfg.Kafka.Enabled {
		return errors.InvalidConfig("worker requires kafka.enabled")
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

	kc := cfg.Kafka
	if ensureTopics {
		if err := createTopics(ctx, kc, logger); err != nil {
			return err
		}
	}

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: kc.Brokers,
		GroupID: kc.GroupID,
		Topics:  []string{kc.RequestTopic},
		RetryConfig: kafka.RetryConfig{
			MaxRetries:      kc.MaxRetries,
			RetryBackoff:    kc.RetryBackoff,
			MaxRetryBackoff: 8 * kc.RetryBackoff,
			DeadLetterTopic: kc.DLQTopic,
		},
	}, rt.Producer, logger)
	if err != nil {
		return err
	}

	w, err := worker.NewRecommendationWorker(rt.Service, rt.Producer, worker.Config{
		ResultTopic: kc.ResultTopic,
		Recorder:    rt.Metrics,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	w.Register(consumer, kc.RequestTopic)

	healthSrv := startHealthServer(cfg.Server, healthPort, rt, logger)

	if err := consumer.Start(ctx); err != nil {
		return err
	}
	logger.Info("worker started",
		logging.String("version", version),
		logging.String("request_topic", kc.RequestTopic),
		logging.String("result_topic", kc.ResultTopic))

	<-ctx.Done()
	logger.Info("shutting down worker")

	if err := consumer.Close(); err != nil {
		logger.Error("consumer close error", logging.Err(err))
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := healthSrv.Stop(shutdownCtx); err != nil {
		logger.Error("health server shutdown error", logging.Err(err))
	}
	logger.Info("worker stopped",
		logging.Int64("processed", consumer.Processed()),
		logging.Int64("dead_lettered", consumer.DeadLettered()))
	return nil
}

func createTopics(ctx context.Context, kc config.KafkaConfig, logger logging.Logger) error {
	tm, err := kafka.NewTopicManager(kc.Brokers, logger)
	if err != nil {
		return err
	}
	defer tm.Close()
	return tm.EnsureTopics(ctx, kafka.DefaultTopics(kc.RequestTopic, kc.ResultTopic, kc.PlanEventTopic, kc.DLQTopic))
}

// startHealthServer exposes probes and metrics only; the worker has no API.
func startHealthServer(sc config.ServerConfig, port int, rt *bootstrap.Runtime, logger logging.Logger) *httpserver.Server {
	checkers := make([]handlers.HealthChecker, 0, len(rt.Checks))
	for _, c := range rt.Checks {
		checkers = append(checkers, handlers.NewChecker(c.Name, c.Fn))
	}
	router := httpserver.NewRouter(httpserver.RouterConfig{
		HealthHandler:  handlers.NewHealthHandler(version, checkers...),
		MetricsHandler: rt.MetricsHandler(),
		Logger:         logger,
	})

	sc.Port = port
	srv := httpserver.NewServer(sc, router, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("health server error", logging.Err(err))
		}
	}()
	return srv
}
