package postgres

import (
	"context"
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/topk-planner/internal/config"
	"github.com/turtacn/topk-planner/pkg/errors"
)

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@h:5432/db?sslmode=disable", migrateURL("postgres://u:p@h:5432/db?sslmode=disable"))
	assert.Equal(t, "pgx5://h/db", migrateURL("postgresql://h/db"))
	assert.Equal(t, "pgx5://h/db", migrateURL("pgx5://h/db"))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name()] = true
	}
	assert.True(t, names["000001_create_catalogs.up.sql"])
	assert.True(t, names["000001_create_catalogs.down.sql"])
}

func TestPoolConfig(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host: "db", Port: 5433, User: "planner", Password: "s3cret", DBName: "plans", SSLMode: "disable",
		MaxConns: 12, MinConns: 2, ConnMaxLifetime: time.Hour, ConnMaxIdleTime: time.Minute,
	}
	pc, err := poolConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, int32(12), pc.MaxConns)
	assert.Equal(t, int32(2), pc.MinConns)
	assert.Equal(t, time.Hour, pc.MaxConnLifetime)
	assert.Equal(t, time.Minute, pc.MaxConnIdleTime)
	assert.Equal(t, "db", pc.ConnConfig.Host)
	assert.Equal(t, uint16(5433), pc.ConnConfig.Port)
	assert.Equal(t, "plans", pc.ConnConfig.Database)
	assert.Equal(t, "planner", pc.ConnConfig.User)
}

func TestCatalogRepository_SaveValidatesBeforeQuerying(t *testing.T) {
	repo := NewCatalogRepository(nil, nil)

	err := repo.Save(context.Background(), "", "x", nil)
	assert.True(t, errors.IsInvalidConfig(err))

	err = repo.Save(context.Background(), "gym", "x", nil)
	assert.True(t, errors.IsInvalidConfig(err))
}

func TestRollbackMigration_RejectsNonPositiveSteps(t *testing.T) {
	assert.Error(t, RollbackMigration("postgres://h/db", 0))
}
