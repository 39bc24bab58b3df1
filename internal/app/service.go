// Package service wires the ingestion pipeline and the scoring read path
// behind the operations the HTTP API and CLI need.
package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/stride/internal/adapters/cache"
	"github.com/okian/stride/internal/adapters/repository"
	"github.com/okian/stride/internal/domain/aggregate"
	"github.com/okian/stride/internal/domain/dedupe"
	"github.com/okian/stride/internal/domain/identity"
	"github.com/okian/stride/internal/domain/model"
	"github.com/okian/stride/internal/domain/normalize"
	"github.com/okian/stride/internal/domain/recorder"
	"github.com/okian/stride/internal/domain/scoring"
	"github.com/okian/stride/pkg/errkind"
	"github.com/okian/stride/pkg/logger"
	"github.com/okian/stride/pkg/metrics"
	"github.com/okian/stride/pkg/tracing"
)

// Dedupe backends understood by Start.
const (
	DedupeMemory = "memory"
	DedupeRedis  = "redis"
	DedupeNone   = "none"
)

// Service implements the API dependencies for the session pipeline.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	deduper    dedupe.Deduper
	normalizer *normalize.Normalizer
	recorder   *recorder.Recorder
	aggregator *aggregate.Aggregator

	// Configuration
	storeDriver   string
	storeDSN      string
	dedupeBackend string
	dedupeSize    int
	dedupeTTL     time.Duration
	redisAddr     string
	redisDB       int
	maxFutureSkew time.Duration
	location      *time.Location
	now           func() time.Time

	// Resources opened by Start and released by Stop.
	ownsStore bool
	closers   []func() error

	started bool
	logger  logger.Logger
}

// New constructs a Service. Nothing is opened until Start.
func New(opts ...Option) *Service {
	s := &Service{
		storeDriver:   repository.DriverMemory,
		dedupeBackend: DedupeMemory,
		dedupeSize:    50_000,
		dedupeTTL:     24 * time.Hour,
		location:      time.UTC,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the store and dedupe cache and builds the pipeline.
func (s *Service) Start(ctx context.Context) error {
	const op = "service.start"

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting session service...")

	if s.store == nil {
		st, err := repository.Open(ctx, s.storeDriver, s.storeDSN)
		if err != nil {
			return errkind.Wrap(op, err)
		}
		s.store = st
		s.ownsStore = true
	}

	if s.deduper == nil {
		d, err := s.openDeduper(ctx)
		if err != nil {
			s.releaseLocked()
			return errkind.Wrap(op, err)
		}
		s.deduper = d
	}

	s.normalizer = normalize.New(
		normalize.WithMaxFutureSkew(s.maxFutureSkew),
		normalize.WithClock(s.now),
	)
	s.recorder = recorder.New(s.store,
		recorder.WithDeduper(s.deduper),
		recorder.WithLogger(s.logger.Named("recorder")),
	)
	s.aggregator = aggregate.New(s.store,
		aggregate.WithClock(s.now),
		aggregate.WithLogger(s.logger.Named("aggregate")),
	)

	s.started = true
	s.logger.Info(ctx, "session service started",
		logger.String("store", s.store.Driver()),
		logger.String("dedupe", s.dedupeBackend),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("scoreTimezone", s.location.String()),
	)
	return nil
}

func (s *Service) openDeduper(ctx context.Context) (dedupe.Deduper, error) {
	switch s.dedupeBackend {
	case DedupeNone:
		return dedupe.NewNoop(), nil
	case DedupeRedis:
		d, err := cache.NewRedisDeduper(ctx, s.redisAddr, s.redisDB,
			cache.WithTTL(s.dedupeTTL),
			cache.WithLogger(s.logger.Named("dedupe")),
		)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, d.Close)
		return d, nil
	default:
		return dedupe.NewInMemoryDeduper(
			dedupe.WithMaxSize(s.dedupeSize),
			dedupe.WithTTL(s.dedupeTTL),
		), nil
	}
}

// Stop releases what Start opened. An injected store is left open.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(context.Background(), "stopping session service...")
	s.releaseLocked()
	s.started = false
	s.logger.Info(context.Background(), "session service stopped")
}

func (s *Service) releaseLocked() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && s.logger != nil {
			s.logger.Warn(context.Background(), "close failed", logger.Error(err))
		}
	}
	s.closers = nil
	if s.ownsStore && s.store != nil {
		if err := s.store.Close(); err != nil && s.logger != nil {
			s.logger.Warn(context.Background(), "store close failed", logger.Error(err))
		}
		s.store = nil
		s.ownsStore = false
	}
}

// Ingest runs one raw event through normalize, identity, record and
// recompute. Validation failures wrap model.ErrValidation and store failures
// wrap model.ErrStorage.
func (s *Service) Ingest(ctx context.Context, raw model.RawEvent) (res model.IngestResult, err error) {
	const op = "service.ingest"

	ctx, span := tracing.Start(ctx, "ingest", attribute.String("event.type", string(raw.Type)))
	defer func() { tracing.End(span, err) }()

	if err := s.ready(op); err != nil {
		return model.IngestResult{}, err
	}
	metrics.RecordEventReceived()

	ev, err := s.normalizer.Normalize(raw)
	if err != nil {
		metrics.RecordValidationError(validationReason(err))
		return model.IngestResult{}, err
	}

	sessionID, eventID, err := identity.Derive(ev)
	if err != nil {
		metrics.RecordValidationError(validationReason(err))
		return model.IngestResult{}, err
	}
	span.SetAttributes(attribute.String("session.id", sessionID), attribute.String("event.id", eventID))

	dup, err := s.recorder.Record(ctx, model.SessionEvent{
		EventID:       eventID,
		SessionID:     sessionID,
		UserID:        ev.UserID,
		Type:          ev.Type,
		EventTime:     ev.EventTime,
		ReceivedAt:    s.now().UTC(),
		Payload:       ev.Payload,
		SchemaVersion: model.SchemaVersion,
	})
	if err != nil {
		return model.IngestResult{}, err
	}

	// Duplicates recompute too.
	if _, _, err := s.aggregator.Recompute(ctx, sessionID); err != nil {
		return model.IngestResult{}, err
	}

	return model.IngestResult{
		Status:    "ok",
		SessionID: sessionID,
		EventID:   eventID,
		Duplicate: dup,
	}, nil
}

// Recompute re-runs the aggregator for sessionID. Returns
// model.ErrSessionNotFound when the session has no events.
func (s *Service) Recompute(ctx context.Context, sessionID string) (model.Session, error) {
	const op = "service.recompute"

	if err := s.ready(op); err != nil {
		return model.Session{}, err
	}
	sess, ok, err := s.aggregator.Recompute(ctx, strings.TrimSpace(sessionID))
	if err != nil {
		return model.Session{}, err
	}
	if !ok {
		return model.Session{}, errkind.NewKind(op, model.ErrSessionNotFound)
	}
	return sess, nil
}

// Session returns the stored summary for sessionID.
func (s *Service) Session(ctx context.Context, sessionID string) (model.Session, error) {
	const op = "service.session"

	if err := s.ready(op); err != nil {
		return model.Session{}, err
	}
	sess, err := s.store.GetSession(ctx, strings.TrimSpace(sessionID))
	if err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			return model.Session{}, errkind.NewKind(op, model.ErrSessionNotFound)
		}
		metrics.RecordStorageError("get_session")
		return model.Session{}, model.NewStorageError(op, err)
	}
	return sess, nil
}

// ConsistencyScore scores userID over the trailing window ending today in
// the configured zone.
func (s *Service) ConsistencyScore(ctx context.Context, userID string) (res model.ConsistencyScoreResult, err error) {
	const op = "service.consistency_score"

	ctx, span := tracing.Start(ctx, "score", attribute.String("user.id", userID))
	defer func() { tracing.End(span, err) }()

	if err := s.ready(op); err != nil {
		return model.ConsistencyScoreResult{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return model.ConsistencyScoreResult{}, model.NewValidationError(op, model.ErrMissingIdentifier)
	}

	start := time.Now()
	now := s.now().In(s.location)
	sessions, err := s.store.ListSessionsEndedSince(ctx, userID, scoring.QueryCutoff(now))
	if err != nil {
		metrics.RecordStorageError("list_sessions_ended_since")
		return model.ConsistencyScoreResult{}, model.NewStorageError(op, err)
	}

	res = scoring.Score(sessions, now)
	metrics.RecordScore(metrics.Since(start), res.Score)
	span.SetAttributes(attribute.Int("score", res.Score), attribute.Int("sessions", len(sessions)))
	return res, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":       s.started,
		"storeDriver":   s.storeDriver,
		"dedupeBackend": s.dedupeBackend,
		"dedupeSize":    s.dedupeSize,
		"scoreTimezone": s.location.String(),
	}
	if s.started {
		stats["storeDriver"] = s.store.Driver()
		stats["dedupeEntries"] = s.deduper.Size()
		metrics.UpdateDedupeCacheSize(s.deduper.Size())
	}
	return stats
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

func (s *Service) ready(op string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return errkind.NewKind(op, ErrNotStarted)
	}
	return nil
}

func validationReason(err error) string {
	switch {
	case errors.Is(err, model.ErrMissingIdentifier):
		return "missing_identifier"
	case errors.Is(err, model.ErrInvalidEventType):
		return "invalid_event_type"
	case errors.Is(err, model.ErrInvalidTimestamp):
		return "invalid_timestamp"
	case errors.Is(err, model.ErrFutureTimestamp):
		return "future_timestamp"
	case errors.Is(err, model.ErrInvalidPayload):
		return "invalid_payload"
	default:
		return "other"
	}
}
