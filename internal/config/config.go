// Package config defines service configuration and its loading layers.
package config

import (
	"context"
	"time"
	_ "time/tzdata" // score_timezone must resolve on hosts without zoneinfo
)

// Store drivers and dedupe backends accepted by Validate.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"

	DedupeMemory = "memory"
	DedupeRedis  = "redis"
	DedupeNone   = "none"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// StoreDriver selects memory, sqlite or postgres.
	StoreDriver string `koanf:"store_driver"`

	// StoreDSN is the connection string for sql drivers.
	StoreDSN string `koanf:"store_dsn"`

	// DedupeBackend selects memory, redis or none for the fast-path filter.
	DedupeBackend string `koanf:"dedupe_backend"`

	// DedupeSize bounds the in-memory dedupe cache.
	DedupeSize int `koanf:"dedupe_size"`

	// DedupeTTLSec is how long an event id stays in the dedupe cache.
	DedupeTTLSec int `koanf:"dedupe_ttl_sec"`

	RedisAddr string `koanf:"redis_addr"`
	RedisDB   int    `koanf:"redis_db"`

	// ScoreTimezone is the IANA zone in which "today" is evaluated.
	ScoreTimezone string `koanf:"score_timezone"`

	// MaxFutureSkewSec rejects events stamped this far ahead. 0 disables.
	MaxFutureSkewSec int `koanf:"max_future_skew_sec"`

	TracingEnabled     bool    `koanf:"tracing_enabled"`
	TracingEndpoint    string  `koanf:"tracing_endpoint"`
	TracingSampleRatio float64 `koanf:"tracing_sample_ratio"`

	// ServiceName is reported on traces.
	ServiceName string `koanf:"service_name"`
}

// New returns a Config holding the defaults. The context is reserved for
// loaders that need it.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		StoreDriver:        StoreMemory,
		DedupeBackend:      DedupeMemory,
		DedupeSize:         50_000,
		DedupeTTLSec:       86_400,
		ScoreTimezone:      "UTC",
		TracingSampleRatio: 0.1,
		ServiceName:        "stride",
	}
}

// DedupeTTL returns DedupeTTLSec as a duration.
func (c *Config) DedupeTTL() time.Duration {
	return time.Duration(c.DedupeTTLSec) * time.Second
}

// MaxFutureSkew returns MaxFutureSkewSec as a duration.
func (c *Config) MaxFutureSkew() time.Duration {
	return time.Duration(c.MaxFutureSkewSec) * time.Second
}

// Location loads ScoreTimezone. An empty zone means UTC.
func (c *Config) Location() (*time.Location, error) {
	if c.ScoreTimezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.ScoreTimezone)
}
