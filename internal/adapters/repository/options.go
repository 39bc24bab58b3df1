package repository

import (
	"time"

	gormlogger "gorm.io/gorm/logger"
)

const defaultMetricsUpdateInterval = 5 * time.Second

type settings struct {
	metricsUpdateInterval time.Duration
	autoMigrate           bool
	gormLogLevel          gormlogger.LogLevel
	maxOpenConns          int
}

func newSettings(opts []Option) settings {
	s := settings{
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		autoMigrate:           true,
		gormLogLevel:          gormlogger.Silent,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Option applies a configuration option to a store.
type Option func(*settings)

// WithMetricsUpdateInterval sets the interval for background record count
// metrics.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *settings) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}

// WithAutoMigrate toggles schema migration when a gorm store opens.
func WithAutoMigrate(enabled bool) Option {
	return func(s *settings) {
		s.autoMigrate = enabled
	}
}

// WithGormLogLevel sets gorm's own SQL logger level. Silent by default.
func WithGormLogLevel(level gormlogger.LogLevel) Option {
	return func(s *settings) {
		s.gormLogLevel = level
	}
}

// WithMaxOpenConns caps the gorm connection pool.
func WithMaxOpenConns(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}
