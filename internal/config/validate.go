package config

import (
	"fmt"
	"strings"

	"github.com/okian/stride/pkg/errkind"
)

// Validate checks cross-field rules and normalizes enum casing. Failures
// wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	const op = "config.validate"

	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	c.DedupeBackend = strings.ToLower(strings.TrimSpace(c.DedupeBackend))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))

	if strings.TrimSpace(c.Addr) == "" {
		return errkind.WrapKind(op, ErrInvalidConfig, fmt.Errorf("addr must not be empty"))
	}

	switch c.StoreDriver {
	case StoreMemory:
	case StoreSQLite, StorePostgres:
		if strings.TrimSpace(c.StoreDSN) == "" {
			return errkind.WrapKind(op, ErrInvalidConfig, fmt.Errorf("store_dsn required for %s", c.StoreDriver))
		}
	default:
		return errkind.WrapKind(op, ErrInvalidConfig, fmt.Errorf("unknown store_driver %q", c.StoreDriver))
	}

	switch c.DedupeBackend {
	case DedupeMemory, DedupeNone:
	case DedupeRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return errkind.WrapKind(op, ErrInvalidConfig, fmt.Errorf("redis_addr required for redis dedupe"))
		}
	default:
		return errkind.WrapKind(op, ErrInvalidConfig, fmt.Errorf("unknown dedupe_backend %q", c.DedupeBackend))
	}

	switch c.LogFormat {
	case "", "text", "json":
	default:
		return errkind.WrapKind(op, ErrInvalidConfig, fmt.Errorf("unknown log_format %q", c.LogFormat))
	}

	if c.DedupeTTLSec < 0 || c.MaxFutureSkewSec < 0 {
		return errkind.WrapKind(op, ErrInvalidConfig, fmt.Errorf("durations must not be negative"))
	}

	if _, err := c.Location(); err != nil {
		return errkind.WrapKind(op, ErrInvalidConfig, fmt.Errorf("score_timezone: %w", err))
	}

	switch {
	case c.TracingSampleRatio < 0:
		c.TracingSampleRatio = 0
	case c.TracingSampleRatio > 1:
		c.TracingSampleRatio = 1
	}
	return nil
}
