package cache

import (
	"time"

	"github.com/okian/stride/pkg/logger"
)

// Option configures a RedisDeduper.
type Option func(*RedisDeduper)

// WithTTL sets how long ids are remembered.
func WithTTL(ttl time.Duration) Option {
	return func(d *RedisDeduper) {
		if ttl > 0 {
			d.ttl = ttl
		}
	}
}

// WithKeyPrefix namespaces the dedupe keys.
func WithKeyPrefix(prefix string) Option {
	return func(d *RedisDeduper) {
		if prefix != "" {
			d.prefix = prefix
		}
	}
}

// WithLogger sets the logger used for redis failures.
func WithLogger(l logger.Logger) Option {
	return func(d *RedisDeduper) {
		if l != nil {
			d.log = l
		}
	}
}
