// Package config defines service configuration and its loading.
//
// Conventions:
// - New returns a Config populated with defaults.
// - Load layers defaults, an optional YAML file and CIRCLE_ env vars.
package config

import (
	"runtime"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
	DriverMemory   = "memory"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StoreDriver selects the contact store: sqlite, pgx or memory.
	StoreDriver string `koanf:"store_driver"`

	// StoreDSN is the sqlite file path or the postgres connection string.
	StoreDSN string `koanf:"store_dsn"`

	// StoreConnectAttempts bounds connection attempts at startup.
	StoreConnectAttempts int `koanf:"store_connect_attempts"`

	// MaxListLimit caps GET /api/contacts?limit.
	MaxListLimit int `koanf:"max_list_limit"`

	// DashboardLimit is the length of the dashboard reconnect list.
	DashboardLimit int `koanf:"dashboard_limit"`

	// DedupeSize bounds the idempotency-key cache for logged interactions.
	DedupeSize int `koanf:"dedupe_size"`

	// ScoreWorkers bounds concurrent scoring when building contact views.
	ScoreWorkers int `koanf:"score_workers"`

	// RateLimitRPS and RateLimitBurst configure the write-route token bucket.
	// A non-positive RPS disables rate limiting.
	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		StoreDriver:          DriverSQLite,
		StoreDSN:             "data/circle.db",
		StoreConnectAttempts: 5,
		MaxListLimit:         500,
		DashboardLimit:       5,
		DedupeSize:           10_000,
		ScoreWorkers:         runtime.NumCPU(),
		RateLimitRPS:         20,
		RateLimitBurst:       40,
	}
}
