package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("FFTS_HOME", home)

	cfg := loadConfig()
	assert.Equal(t, filepath.Join(home, "ffts.db"), cfg.DBPath)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 4, cfg.PoolSize)
	assert.Empty(t, cfg.ProfilePath)
	assert.Equal(t, "@daily", cfg.RetentionSchedule)
	assert.Equal(t, 10, cfg.KeepRevisions)

	p, err := cfg.retentionPolicy()
	require.NoError(t, err)
	assert.Equal(t, 10, p.KeepRevisions)
	assert.Zero(t, p.MaxAge)
}

func TestLoadConfig_Retention(t *testing.T) {
	home := t.TempDir()
	t.Setenv("FFTS_HOME", home)
	require.NoError(t, os.WriteFile(filepath.Join(home, "settings.json"),
		[]byte(`{"retention_schedule":"0 3 * * *","keep_revisions":3,"retention_max_age":"720h"}`), 0o644))

	cfg := loadConfig()
	assert.Equal(t, "0 3 * * *", cfg.RetentionSchedule)
	p, err := cfg.retentionPolicy()
	require.NoError(t, err)
	assert.Equal(t, 3, p.KeepRevisions)
	assert.Equal(t, 720*time.Hour, p.MaxAge)

	t.Setenv("FFTS_RETENTION_SCHEDULE", "off")
	t.Setenv("FFTS_KEEP_REVISIONS", "0")
	t.Setenv("FFTS_RETENTION_MAX_AGE", "soon")
	cfg = loadConfig()
	assert.Equal(t, retentionOff, cfg.RetentionSchedule)
	assert.Equal(t, 0, cfg.KeepRevisions)
	_, err = cfg.retentionPolicy()
	assert.ErrorContains(t, err, "retention_max_age")

	cfg.RetentionMaxAge = ""
	cfg.KeepRevisions = -1
	_, err = cfg.retentionPolicy()
	assert.ErrorContains(t, err, "keep_revisions")
}

func TestLoadConfig_Layers(t *testing.T) {
	home := t.TempDir()
	t.Setenv("FFTS_HOME", home)
	require.NoError(t, os.WriteFile(filepath.Join(home, "settings.json"),
		[]byte(`{"log_level":"debug","pool_size":8,"profile_path":"/etc/ffts/a.hcl"}`), 0o644))

	cfg := loadConfig()
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 8, cfg.PoolSize)
	assert.Equal(t, "/etc/ffts/a.hcl", cfg.ProfilePath)

	t.Setenv("FFTS_LOG_LEVEL", "error")
	t.Setenv("FFTS_POOL_SIZE", "2")
	t.Setenv("FFTS_DB_PATH", "/tmp/x.db")
	t.Setenv("FFTS_LOG_FORMAT", "json")
	cfg = loadConfig()
	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, 2, cfg.PoolSize)
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.Equal(t, "json", cfg.LogFormat)

	t.Setenv("FFTS_POOL_SIZE", "zero")
	assert.Equal(t, 8, loadConfig().PoolSize)
}
