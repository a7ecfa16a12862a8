package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rendis/ffts/internal/retention"
)

// retentionOff in retention_schedule disables the serve-time sweep.
const retentionOff = "off"

// Config holds all fftsc configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	DBPath      string `json:"db_path"`
	LogLevel    string `json:"log_level"`
	LogFormat   string `json:"log_format"`
	ProfilePath string `json:"profile_path"`
	PoolSize    int    `json:"pool_size"`

	// Retention of stored builds, swept by `fftsc serve` and `fftsc prune`.
	RetentionSchedule string `json:"retention_schedule"`
	KeepRevisions     int    `json:"keep_revisions"`
	RetentionMaxAge   string `json:"retention_max_age,omitempty"`
}

func defaultConfig() Config {
	return Config{
		DBPath:    filepath.Join(fftsDir(), "ffts.db"),
		LogLevel:  "warn",
		LogFormat: "text",
		PoolSize:  4,

		RetentionSchedule: retention.DefaultSchedule,
		KeepRevisions:     10,
	}
}

// retentionPolicy parses the retention fields.
func (c Config) retentionPolicy() (retention.Policy, error) {
	p := retention.Policy{KeepRevisions: c.KeepRevisions}
	if c.KeepRevisions < 0 {
		return p, fmt.Errorf("keep_revisions must not be negative, got %d", c.KeepRevisions)
	}
	if c.RetentionMaxAge != "" {
		d, err := time.ParseDuration(c.RetentionMaxAge)
		if err != nil {
			return p, fmt.Errorf("retention_max_age: %w", err)
		}
		p.MaxAge = d
	}
	return p, nil
}

func fftsDir() string {
	if v := os.Getenv("FFTS_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ffts"
	}
	return filepath.Join(home, ".ffts")
}

func settingsPath() string {
	return filepath.Join(fftsDir(), "settings.json")
}

func binDir() string {
	return filepath.Join(fftsDir(), "bin")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("FFTS_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("FFTS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("FFTS_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("FFTS_PROFILE"); v != "" {
		cfg.ProfilePath = v
	}
	if v := os.Getenv("FFTS_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PoolSize = n
		}
	}
	if v := os.Getenv("FFTS_RETENTION_SCHEDULE"); v != "" {
		cfg.RetentionSchedule = v
	}
	if v := os.Getenv("FFTS_KEEP_REVISIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.KeepRevisions = n
		}
	}
	if v := os.Getenv("FFTS_RETENTION_MAX_AGE"); v != "" {
		cfg.RetentionMaxAge = v
	}
	return cfg
}
