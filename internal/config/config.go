// Package config defines service configuration structures and loading hooks.
package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/okian/edurating/internal/domain/weights"
	"github.com/shopspring/decimal"
)

// Snapshot sources.
const (
	SourceSQLite   = "sqlite"
	SourcePostgres = "postgres"
	SourceFile     = "file"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// SnapshotSource selects where rule tables are loaded from.
	SnapshotSource string `koanf:"snapshot_source"`

	// DBDSN is the database DSN; empty uses an on-disk SQLite file.
	DBDSN string `koanf:"db_dsn"`

	// RulesFile is the YAML rules file for the file source.
	RulesFile string `koanf:"rules_file"`

	// RefreshSchedule is a cron spec for snapshot reloads; empty disables them.
	RefreshSchedule string `koanf:"refresh_schedule"`

	// QueueSize bounds the in-memory rating job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of rating workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the job ID deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxTopLimit caps GET /v1/ratings/top?limit.
	MaxTopLimit int `koanf:"max_top_limit"`

	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`

	// CORSAllowedOrigins is a comma-separated origin list.
	CORSAllowedOrigins string `koanf:"cors_allowed_origins"`

	// Fallback weights for institutions without a stored configuration.
	DefaultTaskWeight   float64 `koanf:"default_task_weight"`
	DefaultSurveyWeight float64 `koanf:"default_survey_weight"`
	DefaultManualWeight float64 `koanf:"default_manual_weight"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		SnapshotSource:      SourceSQLite,
		RefreshSchedule:     "@every 5m",
		QueueSize:           10_000,
		WorkerCount:         runtime.NumCPU() * 2,
		DedupeSize:          50_000,
		MaxTopLimit:         100,
		RateLimitRPS:        200,
		RateLimitBurst:      400,
		CORSAllowedOrigins:  "*",
		DefaultTaskWeight:   0.40,
		DefaultSurveyWeight: 0.60,
		DefaultManualWeight: 0,
	}
}

// AllowedOrigins splits CORSAllowedOrigins.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// RatingWeights returns the configured fallback weights as decimals.
func (c *Config) RatingWeights() weights.RatingWeights {
	return weights.RatingWeights{
		TaskWeight:   decimal.NewFromFloat(c.DefaultTaskWeight),
		SurveyWeight: decimal.NewFromFloat(c.DefaultSurveyWeight),
		ManualWeight: decimal.NewFromFloat(c.DefaultManualWeight),
	}
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch c.SnapshotSource {
	case SourceSQLite:
	case SourcePostgres:
		if c.DBDSN == "" {
			return fmt.Errorf("%w: db_dsn is required for the postgres source", ErrInvalidConfig)
		}
	case SourceFile:
		if c.RulesFile == "" {
			return fmt.Errorf("%w: rules_file is required for the file source", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown snapshot_source %q", ErrInvalidConfig, c.SnapshotSource)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	if c.MaxTopLimit < 1 {
		return fmt.Errorf("%w: max_top_limit must be positive", ErrInvalidConfig)
	}
	if err := weights.Validate(c.RatingWeights()); err != nil {
		return fmt.Errorf("%w: default weights: %w", ErrInvalidConfig, err)
	}
	return nil
}
