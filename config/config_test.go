package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("INGEST_WORKERS", "")
	cfg := FromEnv()

	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 2, cfg.IngestWorkers)
	assert.True(t, cfg.IngestAsync)
	assert.False(t, cfg.LaunchResume)
	assert.Equal(t, 5*time.Minute, cfg.PackageCacheTTL)
	assert.Equal(t, "/packages", cfg.PackagePublicPath)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("INGEST_ASYNC", "false")
	t.Setenv("INGEST_WORKERS", "8")
	t.Setenv("LAUNCH_RESUME", "true")
	t.Setenv("PACKAGE_CACHE_TTL", "30s")
	cfg := FromEnv()

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.False(t, cfg.IngestAsync)
	assert.Equal(t, 8, cfg.IngestWorkers)
	assert.True(t, cfg.LaunchResume)
	assert.Equal(t, 30*time.Second, cfg.PackageCacheTTL)
}

func TestFromEnvBadValuesFallBack(t *testing.T) {
	t.Setenv("INGEST_WORKERS", "many")
	t.Setenv("INGEST_ASYNC", "sometimes")
	t.Setenv("PACKAGE_CACHE_TTL", "soon")
	cfg := FromEnv()

	assert.Equal(t, 2, cfg.IngestWorkers)
	assert.True(t, cfg.IngestAsync)
	assert.Equal(t, 5*time.Minute, cfg.PackageCacheTTL)
}
