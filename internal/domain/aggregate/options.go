package aggregate

import (
	"time"

	"github.com/okian/stride/pkg/logger"
)

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock sets the source of updatedAt.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithLogger sets the aggregator logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.log = l
		}
	}
}
