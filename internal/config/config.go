// Package config holds the service settings of agentd: where state lives,
// how the HTTP API is exposed, and which tuning profile to load.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/talgya/agentmind/internal/decision"
	"github.com/talgya/agentmind/internal/engine"
)

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config is the process configuration. Defaults come from Default; any
// AGENTMIND_* environment variable overrides the matching field.
type Config struct {
	Store       string `env:"AGENTMIND_STORE"`
	DBPath      string `env:"AGENTMIND_DB_PATH"`
	PostgresDSN string `env:"AGENTMIND_LOCK_POSTGRES_DSN"` // empty: leases live in the store

	Port      int     `env:"AGENTMIND_PORT"`
	AdminKey  string  `env:"AGENTMIND_ADMIN_KEY"`
	RateLimit float64 `env:"AGENTMIND_RATE_LIMIT"` // requests per second per client
	RateBurst int     `env:"AGENTMIND_RATE_BURST"`

	AuditDir    string `env:"AGENTMIND_AUDIT_DIR"` // empty: no JSONL audit files
	ProfilePath string `env:"AGENTMIND_PROFILE"`   // empty: built-in tuning

	RetryAttempts int           `env:"AGENTMIND_RETRY_ATTEMPTS"`
	RetryDelay    time.Duration `env:"AGENTMIND_RETRY_DELAY"`

	LogLevel     string `env:"AGENTMIND_LOG_LEVEL"`
	RandomOrgKey string `env:"AGENTMIND_RANDOM_ORG_KEY"`
}

// Default returns the settings used when nothing is overridden.
func Default() *Config {
	retry := engine.DefaultRetryPolicy()
	return &Config{
		Store:         BackendSQLite,
		DBPath:        "data/agentmind.db",
		Port:          8080,
		RateLimit:     20,
		RateBurst:     40,
		RetryAttempts: retry.Attempts,
		RetryDelay:    retry.Delay,
		LogLevel:      "info",
	}
}

// Load applies environment overrides to the defaults and validates the result.
func Load() (*Config, error) {
	cfg := Default()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store {
	case BackendSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("AGENTMIND_DB_PATH is required for the sqlite store"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store %q (want %s or %s)", c.Store, BackendSQLite, BackendMemory))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.RateLimit <= 0 || c.RateBurst <= 0 {
		errs = append(errs, errors.New("rate limit and burst must be positive"))
	}
	if c.RetryAttempts < 1 {
		errs = append(errs, errors.New("retry attempts must be at least 1"))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Retry returns the configured retry policy for busy agents.
func (c *Config) Retry() engine.RetryPolicy {
	return engine.RetryPolicy{Attempts: c.RetryAttempts, Delay: c.RetryDelay}
}

// Decision loads the tuning profile, or the built-in one when none is set.
func (c *Config) Decision() (decision.Config, error) {
	if c.ProfilePath == "" {
		return decision.DefaultConfig(), nil
	}
	return decision.LoadConfig(c.ProfilePath)
}

// Level returns the slog level named by LogLevel.
func (c *Config) Level() slog.Level {
	l, _ := parseLevel(c.LogLevel)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
