// Package bootstrap assembles the planning service and its infrastructure
// from a Config.  The three binaries share it.
package bootstrap

import (
	"context"
	"net/http"

	"github.com/turtacn/topk-planner/internal/application/planning"
	"github.com/turtacn/topk-planner/internal/config"
	"github.com/turtacn/topk-planner/internal/domain/catalog"
	"github.com/turtacn/topk-planner/internal/domain/ilp"
	"github.com/turtacn/topk-planner/internal/domain/preference"
	"github.com/turtacn/topk-planner/internal/infrastructure/database/postgres"
	"github.com/turtacn/topk-planner/internal/infrastructure/database/redis"
	"github.com/turtacn/topk-planner/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/topk-planner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/topk-planner/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/topk-planner/internal/infrastructure/solver"
	"github.com/turtacn/topk-planner/internal/infrastructure/solver/bnb"
	"github.com/turtacn/topk-planner/pkg/errors"
)

// Check is a named readiness probe.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Runtime owns everything built by New.  Close releases it in reverse order.
type Runtime struct {
	Config  *config.Config
	Logger  logging.Logger
	Metrics *prometheus.PlannerMetrics
	Service planning.Service
	Checks  []Check

	// Producer is set when Kafka is enabled.
	Producer *kafka.Producer

	collector prometheus.MetricsCollector
	closers   []func()
}

// MetricsHandler serves the registry, or nil when metrics are disabled.
func (r *Runtime) MetricsHandler() http.Handler {
	if r.collector == nil {
		return nil
	}
	return r.collector.Handler()
}

// Close releases the runtime's connections.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

func (r *Runtime) onClose(fn func()) { r.closers = append(r.closers, fn) }

// New builds the runtime described by cfg.  Optional backends are wired only
// when enabled; on error everything built so far is closed.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger) (_ *Runtime, err error) {
	if cfg == nil {
		return nil, errors.InvalidParam("config cannot be nil")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	rt := &Runtime{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	if err = rt.initMetrics(); err != nil {
		return nil, err
	}
	oracle, err := NewOracle(cfg.Solver, rt.Metrics, logger)
	if err != nil {
		return nil, err
	}
	generator, err := planning.NewTopKPlanGenerator(oracle, planning.GeneratorOptions{TieBreak: cfg.Planning.TieBreakEnabled()}, logger)
	if err != nil {
		return nil, err
	}
	catalogs, err := rt.initCatalogs(ctx)
	if err != nil {
		return nil, err
	}
	publisher, err := rt.initKafka()
	if err != nil {
		return nil, err
	}

	rt.Service, err = planning.NewService(planning.ServiceConfig{
		Generator:        generator,
		Catalogs:         catalogs,
		Profiles:         preference.DefaultRegistry(),
		Publisher:        publisher,
		Metrics:          rt.Metrics,
		Logger:           logger,
		DefaultTopK:      cfg.Planning.DefaultTopK,
		MaxTopK:          cfg.Planning.MaxTopK,
		DefaultTimeout:   cfg.Planning.DefaultTimeout,
		BatchConcurrency: cfg.Planning.BatchConcurrency,
		DefaultCatalogID: cfg.Planning.DefaultCatalogID,
	})
	if err != nil {
		return nil, err
	}
	return rt, nil
}

// NewOracle stacks the branch-and-bound solver behind a concurrency pool and
// metrics.  recorder may be nil.
func NewOracle(cfg config.SolverConfig, recorder solver.Recorder, logger logging.Logger) (ilp.Oracle, error) {
	pool, err := solver.NewPool(bnb.New(bnb.Options{NodeLimit: cfg.NodeLimit}, logger), cfg.MaxConcurrentSolves, logger)
	if err != nil {
		return nil, err
	}
	if recorder == nil {
		return pool, nil
	}
	return solver.NewInstrumented(pool, recorder), nil
}

func (r *Runtime) initMetrics() error {
	mc := r.Config.Metrics
	if !mc.Enabled {
		r.Metrics = prometheus.NewNoopPlannerMetrics()
		return nil
	}
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            mc.Namespace,
		Subsystem:            mc.Subsystem,
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, r.Logger)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create metrics collector")
	}
	r.collector = collector
	r.Metrics = prometheus.NewPlannerMetrics(collector)
	return nil
}

// initCatalogs returns the catalog repository: Postgres when enabled, the
// seeded in-memory store otherwise, optionally behind the Redis cache.
func (r *Runtime) initCatalogs(ctx context.Context) (catalog.Repository, error) {
	var repo catalog.Repository = catalog.NewSeededMemoryRepository()

	if db := r.Config.Database; db.Enabled {
		if db.AutoMigrate {
			if err := postgres.RunMigrations(db.DSN(), r.Logger); err != nil {
				return nil, err
			}
		}
		conn, err := postgres.NewConnection(ctx, db, r.Logger)
		if err != nil {
			return nil, err
		}
		r.onClose(conn.Close)
		r.Checks = append(r.Checks, Check{Name: "postgres", Fn: conn.HealthCheck})

		pg := postgres.NewCatalogRepository(conn.Pool(), r.Logger)
		if err := seedSampleCatalog(ctx, pg, r.Config.Planning.DefaultCatalogID, r.Logger); err != nil {
			return nil, err
		}
		repo = pg
	}

	if rc := r.Config.Redis; rc.Enabled {
		client, err := redis.NewClient(&redis.RedisConfig{
			Addr:         rc.Addr,
			Password:     rc.Password,
			DB:           rc.DB,
			PoolSize:     rc.PoolSize,
			MinIdleConns: rc.MinIdleConns,
			DialTimeout:  rc.DialTimeout,
			ReadTimeout:  rc.ReadTimeout,
			WriteTimeout: rc.WriteTimeout,
		}, r.Logger)
		if err != nil {
			return nil, err
		}
		r.onClose(func() { _ = client.Close() })
		r.Checks = append(r.Checks, Check{Name: "redis", Fn: client.Ping})

		cache := redis.NewRedisCache(client, r.Logger, redis.WithPrefix(rc.KeyPrefix), redis.WithDefaultTTL(rc.DefaultTTL))
		repo = redis.NewCachedCatalogRepository(repo, cache, rc.DefaultTTL, r.Metrics, r.Logger)
	}
	return repo, nil
}

// seedSampleCatalog stores the built-in gym catalog on first start when it is
// the configured default and the database lacks it.
func seedSampleCatalog(ctx context.Context, repo catalog.Repository, defaultID string, logger logging.Logger) error {
	if defaultID != catalog.SampleCatalogID {
		return nil
	}
	_, err := repo.Get(ctx, defaultID)
	switch {
	case err == nil:
		return nil
	case !errors.IsNotFound(err):
		return err
	}
	logger.Info("seeding sample catalog", logging.String("catalog_id", defaultID))
	return repo.Save(ctx, catalog.SampleCatalogID, catalog.SampleCatalogName, catalog.SampleGymCatalog())
}

// initKafka creates the shared producer and, when plan events are on, the
// event publisher.
func (r *Runtime) initKafka() (planning.EventPublisher, error) {
	kc := r.Config.Kafka
	if !kc.Enabled {
		return nil, nil
	}
	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      kc.Brokers,
		Acks:         "all",
		MaxRetries:   kc.MaxRetries,
		WriteTimeout: kc.WriteTimeout,
	}, r.Logger)
	if err != nil {
		return nil, err
	}
	r.Producer = producer
	r.onClose(func() { _ = producer.Close() })

	if !kc.PublishPlanEvents {
		return nil, nil
	}
	return kafka.NewPlanEventPublisher(producer, kc.PlanEventTopic, kafka.BreakerConfig{}, r.Metrics, r.Logger), nil
}
