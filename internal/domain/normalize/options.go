package normalize

import "time"

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithMaxFutureSkew rejects events stamped further than d ahead of the
// clock. Zero disables the check.
func WithMaxFutureSkew(d time.Duration) Option {
	return func(n *Normalizer) {
		if d > 0 {
			n.maxFutureSkew = d
		}
	}
}

// WithClock overrides the time source used by the future check.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		if now != nil {
			n.now = now
		}
	}
}
