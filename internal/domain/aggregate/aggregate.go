package aggregate

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/stride/internal/domain/model"
	"github.com/okian/stride/pkg/logger"
	"github.com/okian/stride/pkg/metrics"
	"github.com/okian/stride/pkg/tracing"
)

const op = "aggregate.recompute"

// Store is the slice of the event store the aggregator reads and writes.
type Store interface {
	ListSessionEvents(ctx context.Context, sessionID string) ([]model.SessionEvent, error)
	GetSession(ctx context.Context, sessionID string) (model.Session, error)
	MergeSession(ctx context.Context, s model.Session) error
}

// Aggregator recomputes session summaries. Concurrent recomputes of one
// session are not serialized; the later merge wins.
type Aggregator struct {
	store Store
	now   func() time.Time
	log   logger.Logger
}

// New creates an Aggregator over store.
func New(store Store, opts ...Option) *Aggregator {
	a := &Aggregator{
		store: store,
		now:   time.Now,
		log:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Recompute folds every stored event of sessionID and merges the summary.
// ok is false, with a nil error, when the session has no events; nothing is
// written in that case.
func (a *Aggregator) Recompute(ctx context.Context, sessionID string) (sess model.Session, ok bool, err error) {
	ctx, span := tracing.Start(ctx, "recompute", attribute.String("session.id", sessionID))
	defer func() { tracing.End(span, err) }()
	start := time.Now()

	events, err := a.store.ListSessionEvents(ctx, sessionID)
	if err != nil {
		metrics.RecordStorageError("list_session_events")
		return model.Session{}, false, model.NewStorageError(op, err)
	}
	if len(events) == 0 {
		metrics.RecordRecomputeSkipped()
		a.log.Debug(ctx, "recompute skipped, no events", logger.String("sessionId", sessionID))
		return model.Session{}, false, nil
	}

	sum := Fold(events)
	a.report(ctx, sessionID, sum)

	version, err := a.previousVersion(ctx, sessionID)
	if err != nil {
		return model.Session{}, false, err
	}

	sess = model.Session{
		SessionID:   sessionID,
		UserID:      sum.UserID,
		StartTime:   sum.StartTime,
		EndTime:     sum.EndTime,
		DurationSec: sum.DurationSec,
		Calories:    sum.Calories,
		EventCount:  sum.EventCount,
		LastEventAt: sum.LastEventAt,
		UpdatedAt:   a.now().UTC(),
		Version:     version + 1,
	}

	if err := a.store.MergeSession(ctx, sess); err != nil {
		metrics.RecordStorageError("merge_session")
		a.log.Error(ctx, "session write failed", logger.String("sessionId", sessionID), logger.Error(err))
		return model.Session{}, false, model.NewStorageError(op, err)
	}

	metrics.RecordRecompute(metrics.Since(start), sess.EventCount)
	span.SetAttributes(
		attribute.Int("session.event_count", sess.EventCount),
		attribute.Int64("session.version", sess.Version),
	)
	a.log.Info(ctx, "session computed",
		logger.String("sessionId", sessionID),
		logger.Int64("durationSec", sess.DurationSec),
		logger.Float64("calories", sess.Calories),
		logger.Int("eventCount", sess.EventCount),
		logger.Int64("version", sess.Version),
	)
	return sess, true, nil
}

func (a *Aggregator) previousVersion(ctx context.Context, sessionID string) (int64, error) {
	prev, err := a.store.GetSession(ctx, sessionID)
	switch {
	case err == nil:
		return prev.Version, nil
	case errors.Is(err, model.ErrSessionNotFound):
		return 0, nil
	default:
		metrics.RecordStorageError("get_session")
		return 0, model.NewStorageError(op, err)
	}
}

func (a *Aggregator) report(ctx context.Context, sessionID string, sum Summary) {
	for _, id := range sum.DuplicateIDs {
		metrics.RecordEventDuplicate(metrics.StageAggregator)
		a.log.Warn(ctx, "duplicate event ignored",
			logger.String("eventId", id),
			logger.String("sessionId", sessionID),
			logger.String("stage", metrics.StageAggregator),
		)
	}
	for _, id := range sum.SkippedIDs {
		metrics.RecordMalformedEvent()
		a.log.Warn(ctx, "event without usable time skipped",
			logger.String("eventId", id),
			logger.String("sessionId", sessionID),
		)
	}
	if sum.Clamped {
		metrics.RecordClampedDuration()
		a.log.Warn(ctx, "end precedes start, duration clamped to zero",
			logger.String("sessionId", sessionID),
			logger.Time("startTime", *sum.StartTime),
			logger.Time("endTime", *sum.EndTime),
		)
	}
}
