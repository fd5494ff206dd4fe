package config

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaults_EmptyConfig(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultTopK, cfg.Planning.DefaultTopK)
	assert.Equal(t, DefaultMaxTopK, cfg.Planning.MaxTopK)
	assert.Equal(t, 10*time.Second, cfg.Planning.DefaultTimeout)
	assert.Equal(t, DefaultBatchConcurrency, cfg.Planning.BatchConcurrency)
	assert.True(t, cfg.Planning.TieBreakEnabled())
	assert.Equal(t, runtime.NumCPU(), cfg.Solver.MaxConcurrentSolves)
	assert.Equal(t, "planner.recommendation.dlq", cfg.Kafka.DLQTopic)
}

func TestApplyDefaults_PreserveExistingValues(t *testing.T) {
	off := false
	cfg := &Config{}
	cfg.Server.Port = 9999
	cfg.Planning.TieBreak = &off
	ApplyDefaults(cfg)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.False(t, cfg.Planning.TieBreakEnabled())
}

func TestApplyDefaults_Nil(t *testing.T) {
	assert.NotPanics(t, func() { ApplyDefaults(nil) })
}
