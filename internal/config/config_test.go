package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/topk-planner/internal/config"
)

func validConfig() *config.Config {
	return config.NewDefaultConfig()
}

func TestConfig_Validate_DefaultsAreValid(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validConfig().Validate())
}

func TestConfig_Validate_Failures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"port zero", func(c *config.Config) { c.Server.Port = 0 }, "server.port"},
		{"port too high", func(c *config.Config) { c.Server.Port = 65536 }, "server.port"},
		{"mode", func(c *config.Config) { c.Server.Mode = "prod" }, "server.mode"},
		{"log level", func(c *config.Config) { c.Log.Level = "trace" }, "log.level"},
		{"log format", func(c *config.Config) { c.Log.Format = "xml" }, "log.format"},
		{"top k", func(c *config.Config) { c.Planning.DefaultTopK = -1 }, "default_top_k"},
		{"max top k", func(c *config.Config) { c.Planning.MaxTopK = 1; c.Planning.DefaultTopK = 2 }, "max_top_k"},
		{"timeout", func(c *config.Config) { c.Planning.DefaultTimeout = -1 }, "default_timeout"},
		{"batch", func(c *config.Config) { c.Planning.BatchConcurrency = -2 }, "batch_concurrency"},
		{"solves", func(c *config.Config) { c.Solver.MaxConcurrentSolves = -1 }, "max_concurrent_solves"},
		{"node limit", func(c *config.Config) { c.Solver.NodeLimit = -5 }, "node_limit"},
		{"db host", func(c *config.Config) { c.Database.Enabled = true; c.Database.Host = "" }, "database.host"},
		{"db user", func(c *config.Config) { c.Database.Enabled = true; c.Database.User = "" }, "database.user"},
		{"db name", func(c *config.Config) { c.Database.Enabled = true; c.Database.DBName = "" }, "database.db_name"},
		{"redis addr", func(c *config.Config) { c.Redis.Enabled = true; c.Redis.Addr = "" }, "redis.addr"},
		{"kafka brokers", func(c *config.Config) { c.Kafka.Enabled = true; c.Kafka.Brokers = nil }, "kafka.brokers"},
		{"kafka group", func(c *config.Config) { c.Kafka.Enabled = true; c.Kafka.GroupID = "" }, "kafka.group_id"},
		{"metrics ns", func(c *config.Config) { c.Metrics.Enabled = true; c.Metrics.Namespace = "" }, "metrics.namespace"},
		{"ratelimit", func(c *config.Config) { c.RateLimit.Enabled = true; c.RateLimit.Burst = 0 }, "ratelimit"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestConfig_Validate_DisabledSectionsSkipped(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Database.Host = ""
	cfg.Redis.Addr = ""
	cfg.Kafka.Brokers = nil
	assert.NoError(t, cfg.Validate())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Parallel()
	db := config.DatabaseConfig{Host: "db", Port: 5433, User: "planner", Password: "p@ss", DBName: "plans", SSLMode: "disable"}
	assert.Equal(t, "postgres://planner:p%40ss@db:5433/plans?sslmode=disable", db.DSN())
}

func TestLogConfig_Logging(t *testing.T) {
	t.Parallel()
	lc := config.LogConfig{Level: "debug", Format: "console", Output: "stderr"}.Logging()
	assert.Equal(t, "debug", lc.Level)
	assert.Equal(t, []string{"stderr"}, lc.OutputPaths)
	assert.Nil(t, config.LogConfig{}.Logging().OutputPaths)
}
