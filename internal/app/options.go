package service

import (
	"time"

	"github.com/okian/stride/internal/adapters/repository"
	"github.com/okian/stride/internal/domain/dedupe"
	"github.com/okian/stride/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore injects an already open store. Stop leaves it open.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
			s.storeDriver = st.Driver()
		}
	}
}

// WithStoreDriver selects the store Start opens.
func WithStoreDriver(driver, dsn string) Option {
	return func(s *Service) {
		if driver != "" {
			s.storeDriver = driver
		}
		s.storeDSN = dsn
	}
}

// WithDeduper injects a dedupe cache, overriding the backend setting.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Service) {
		if d != nil {
			s.deduper = d
		}
	}
}

// WithDedupeBackend selects memory, redis or none.
func WithDedupeBackend(backend string) Option {
	return func(s *Service) {
		if backend != "" {
			s.dedupeBackend = backend
		}
	}
}

// WithDedupeSize sets the size of the in-memory dedupe cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithDedupeTTL sets how long ids stay in the dedupe cache.
func WithDedupeTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.dedupeTTL = ttl
		}
	}
}

// WithRedis sets the redis endpoint used by the redis dedupe backend.
func WithRedis(addr string, db int) Option {
	return func(s *Service) {
		s.redisAddr = addr
		s.redisDB = db
	}
}

// WithMaxFutureSkew rejects events stamped further ahead than d.
func WithMaxFutureSkew(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.maxFutureSkew = d
		}
	}
}

// WithLocation sets the zone in which the scorer evaluates "today".
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithClock overrides the time source. Intended for tests and replays.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
