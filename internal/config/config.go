// Package config defines the planner's configuration structures.  No I/O or
// parsing logic lives here, only plain data types and validation.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/turtacn/topk-planner/internal/infrastructure/monitoring/logging"
)

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `mapstructure:"format"` // "json" | "console"
	Output string `mapstructure:"output"` // "stdout" | "stderr" | file path
}

// Logging converts the section into the logger constructor's parameters.
func (c LogConfig) Logging() logging.LogConfig {
	out := logging.LogConfig{Level: c.Level, Format: c.Format}
	if c.Output != "" {
		out.OutputPaths = []string{c.Output}
	}
	return out
}

// PlanningConfig tunes top-K generation.
type PlanningConfig struct {
	DefaultTopK      int           `mapstructure:"default_top_k"`
	MaxTopK          int           `mapstructure:"max_top_k"`
	DefaultTimeout   time.Duration `mapstructure:"default_timeout"`
	BatchConcurrency int           `mapstructure:"batch_concurrency"`
	// TieBreak is nil when unset so that an explicit false survives defaults.
	TieBreak         *bool  `mapstructure:"tie_break"`
	DefaultCatalogID string `mapstructure:"default_catalog_id"`
}

// TieBreakEnabled reports whether lexicographic tie-breaking is on.
func (c PlanningConfig) TieBreakEnabled() bool {
	return c.TieBreak == nil || *c.TieBreak
}

// SolverConfig bounds the branch-and-bound oracle.
type SolverConfig struct {
	MaxConcurrentSolves int   `mapstructure:"max_concurrent_solves"`
	NodeLimit           int64 `mapstructure:"node_limit"` // 0 = unlimited
}

// DatabaseConfig holds PostgreSQL connection parameters for the catalog store.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN renders the connection as a postgres:// URL.
func (c DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

// RedisConfig holds Redis connection parameters for the catalog cache.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds broker, topic and retry parameters.
type KafkaConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Brokers           []string      `mapstructure:"brokers"`
	GroupID           string        `mapstructure:"group_id"`
	RequestTopic      string        `mapstructure:"request_topic"`
	ResultTopic       string        `mapstructure:"result_topic"`
	PlanEventTopic    string        `mapstructure:"plan_event_topic"`
	DLQTopic          string        `mapstructure:"dlq_topic"`
	PublishPlanEvents bool          `mapstructure:"publish_plan_events"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

// MetricsConfig configures the Prometheus registry.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Subsystem string `mapstructure:"subsystem"`
	Path      string `mapstructure:"path"`
}

// RateLimitConfig configures the HTTP token bucket.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Planning  PlanningConfig  `mapstructure:"planning"`
	Solver    SolverConfig    `mapstructure:"solver"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

// Validate performs semantic validation of a fully-populated Config and
// returns the first problem found.  Sections that are disabled are skipped.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	if c.Planning.DefaultTopK < 1 {
		return fmt.Errorf("config: planning.default_top_k must be >= 1, got %d", c.Planning.DefaultTopK)
	}
	if c.Planning.MaxTopK < c.Planning.DefaultTopK {
		return fmt.Errorf("config: planning.max_top_k %d is below default_top_k %d", c.Planning.MaxTopK, c.Planning.DefaultTopK)
	}
	if c.Planning.DefaultTimeout <= 0 {
		return fmt.Errorf("config: planning.default_timeout must be positive")
	}
	if c.Planning.BatchConcurrency < 1 {
		return fmt.Errorf("config: planning.batch_concurrency must be >= 1, got %d", c.Planning.BatchConcurrency)
	}

	if c.Solver.MaxConcurrentSolves < 1 {
		return fmt.Errorf("config: solver.max_concurrent_solves must be >= 1, got %d", c.Solver.MaxConcurrentSolves)
	}
	if c.Solver.NodeLimit < 0 {
		return fmt.Errorf("config: solver.node_limit must be >= 0, got %d", c.Solver.NodeLimit)
	}

	if c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("config: database.host is required")
		}
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
		}
		if c.Database.User == "" {
			return fmt.Errorf("config: database.user is required")
		}
		if c.Database.DBName == "" {
			return fmt.Errorf("config: database.db_name is required")
		}
		if c.Database.MaxConns < 1 {
			return fmt.Errorf("config: database.max_conns must be >= 1, got %d", c.Database.MaxConns)
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			return fmt.Errorf("config: redis.addr is required")
		}
		if c.Redis.DB < 0 {
			return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
		}
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
		}
		if c.Kafka.GroupID == "" {
			return fmt.Errorf("config: kafka.group_id is required")
		}
	}

	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		return fmt.Errorf("config: metrics.namespace is required")
	}

	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst < 1) {
		return fmt.Errorf("config: ratelimit needs requests_per_second > 0 and burst >= 1")
	}

	return nil
}
