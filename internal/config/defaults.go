package config

import (
	"runtime"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultServerPort            = 8080
	DefaultServerMode            = "release"
	DefaultServerReadTimeout     = 15 * time.Second
	DefaultServerWriteTimeout    = 60 * time.Second
	DefaultServerShutdownTimeout = 10 * time.Second
	DefaultServerMaxBodySize     = 4 << 20

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultTopK             = 2
	DefaultMaxTopK          = 20
	DefaultPlanningTimeout  = 10 * time.Second
	DefaultBatchConcurrency = 4
	DefaultCatalogID        = "gym"

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBUser     = "planner"
	DefaultDBName     = "planner"
	DefaultDBMaxConns = 10

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisTTL       = 10 * time.Minute
	DefaultRedisKeyPrefix = "planner:"

	DefaultKafkaBroker         = "localhost:9092"
	DefaultKafkaGroupID        = "planner-worker"
	DefaultKafkaRequestTopic   = "planner.recommendation.requests"
	DefaultKafkaResultTopic    = "planner.recommendation.results"
	DefaultKafkaPlanEventTopic = "planner.plans.generated"
	DefaultKafkaDLQTopic       = "planner.recommendation.dlq"
	DefaultKafkaMaxRetries     = 3
	DefaultKafkaRetryBackoff   = 500 * time.Millisecond

	DefaultMetricsNamespace = "planner"
	DefaultMetricsPath      = "/metrics"

	DefaultRateLimitRPS   = 50
	DefaultRateLimitBurst = 100
)

// NewDefaultConfig returns a Config with every default applied.  It passes
// Validate as-is.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every zero-value field in cfg.  Explicit values win.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultServerReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultServerWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultServerShutdownTimeout
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = DefaultServerMaxBodySize
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	if cfg.Planning.DefaultTopK == 0 {
		cfg.Planning.DefaultTopK = DefaultTopK
	}
	if cfg.Planning.MaxTopK == 0 {
		cfg.Planning.MaxTopK = DefaultMaxTopK
	}
	if cfg.Planning.DefaultTimeout == 0 {
		cfg.Planning.DefaultTimeout = DefaultPlanningTimeout
	}
	if cfg.Planning.BatchConcurrency == 0 {
		cfg.Planning.BatchConcurrency = DefaultBatchConcurrency
	}
	if cfg.Planning.TieBreak == nil {
		on := true
		cfg.Planning.TieBreak = &on
	}
	if cfg.Planning.DefaultCatalogID == "" {
		cfg.Planning.DefaultCatalogID = DefaultCatalogID
	}

	if cfg.Solver.MaxConcurrentSolves == 0 {
		cfg.Solver.MaxConcurrentSolves = runtime.NumCPU()
	}

	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.User == "" {
		cfg.Database.User = DefaultDBUser
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = DefaultRedisTTL
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.RequestTopic == "" {
		cfg.Kafka.RequestTopic = DefaultKafkaRequestTopic
	}
	if cfg.Kafka.ResultTopic == "" {
		cfg.Kafka.ResultTopic = DefaultKafkaResultTopic
	}
	if cfg.Kafka.PlanEventTopic == "" {
		cfg.Kafka.PlanEventTopic = DefaultKafkaPlanEventTopic
	}
	if cfg.Kafka.DLQTopic == "" {
		cfg.Kafka.DLQTopic = DefaultKafkaDLQTopic
	}
	if cfg.Kafka.MaxRetries == 0 {
		cfg.Kafka.MaxRetries = DefaultKafkaMaxRetries
	}
	if cfg.Kafka.RetryBackoff == 0 {
		cfg.Kafka.RetryBackoff = DefaultKafkaRetryBackoff
	}

	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}

	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = DefaultRateLimitRPS
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = DefaultRateLimitBurst
	}
}

// bindKeys registers every key with viper so that AutomaticEnv overrides are
// visible to Unmarshal even when no config file mentions the key.
func bindKeys(v *viper.Viper) {
	d := NewDefaultConfig()
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.max_body_size", d.Server.MaxBodySize)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.output", "")

	v.SetDefault("planning.default_top_k", d.Planning.DefaultTopK)
	v.SetDefault("planning.max_top_k", d.Planning.MaxTopK)
	v.SetDefault("planning.default_timeout", d.Planning.DefaultTimeout)
	v.SetDefault("planning.batch_concurrency", d.Planning.BatchConcurrency)
	v.SetDefault("planning.tie_break", true)
	v.SetDefault("planning.default_catalog_id", d.Planning.DefaultCatalogID)

	v.SetDefault("solver.max_concurrent_solves", d.Solver.MaxConcurrentSolves)
	v.SetDefault("solver.node_limit", 0)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", d.Database.Host)
	v.SetDefault("database.port", d.Database.Port)
	v.SetDefault("database.user", d.Database.User)
	v.SetDefault("database.password", "")
	v.SetDefault("database.db_name", d.Database.DBName)
	v.SetDefault("database.ssl_mode", d.Database.SSLMode)
	v.SetDefault("database.max_conns", d.Database.MaxConns)
	v.SetDefault("database.min_conns", 0)
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.default_ttl", d.Redis.DefaultTTL)
	v.SetDefault("redis.key_prefix", d.Redis.KeyPrefix)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", d.Kafka.Brokers)
	v.SetDefault("kafka.group_id", d.Kafka.GroupID)
	v.SetDefault("kafka.request_topic", d.Kafka.RequestTopic)
	v.SetDefault("kafka.result_topic", d.Kafka.ResultTopic)
	v.SetDefault("kafka.plan_event_topic", d.Kafka.PlanEventTopic)
	v.SetDefault("kafka.dlq_topic", d.Kafka.DLQTopic)
	v.SetDefault("kafka.publish_plan_events", false)
	v.SetDefault("kafka.max_retries", d.Kafka.MaxRetries)
	v.SetDefault("kafka.retry_backoff", d.Kafka.RetryBackoff)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)
	v.SetDefault("metrics.path", d.Metrics.Path)

	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.requests_per_second", d.RateLimit.RequestsPerSecond)
	v.SetDefault("ratelimit.burst", d.RateLimit.Burst)
}
