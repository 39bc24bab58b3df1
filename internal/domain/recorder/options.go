package recorder

import (
	"github.com/okian/stride/internal/domain/dedupe"
	"github.com/okian/stride/pkg/logger"
)

// Option configures a Recorder.
type Option func(*Recorder)

// WithDeduper puts d in front of the store as a fast-path duplicate filter.
func WithDeduper(d dedupe.Deduper) Option {
	return func(r *Recorder) {
		if d != nil {
			r.deduper = d
		}
	}
}

// WithLogger sets the logger used for duplicate and failure reports.
func WithLogger(l logger.Logger) Option {
	return func(r *Recorder) {
		if l != nil {
			r.log = l
		}
	}
}
