// Package recorder writes normalized events to the event store exactly once
// per event id.
package recorder

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/stride/internal/domain/dedupe"
	"github.com/okian/stride/internal/domain/model"
	"github.com/okian/stride/pkg/logger"
	"github.com/okian/stride/pkg/metrics"
	"github.com/okian/stride/pkg/tracing"
)

const op = "recorder.record"

// EventWriter is the create-only half of the event store.
type EventWriter interface {
	CreateEvent(ctx context.Context, ev model.SessionEvent) error
}

// Recorder absorbs duplicate-key conflicts and surfaces every other store
// failure as model.ErrStorage.
type Recorder struct {
	store   EventWriter
	deduper dedupe.Deduper
	log     logger.Logger
}

// New creates a Recorder writing to store.
func New(store EventWriter, opts ...Option) *Recorder {
	r := &Recorder{
		store:   store,
		deduper: dedupe.NewNoop(),
		log:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record persists ev. duplicate is true when ev was already known, either to
// the dedupe cache or to the store; that outcome is not an error.
func (r *Recorder) Record(ctx context.Context, ev model.SessionEvent) (duplicate bool, err error) {
	ctx, span := tracing.Start(ctx, "record",
		attribute.String("event.id", ev.EventID),
		attribute.String("session.id", ev.SessionID),
	)
	defer func() {
		span.SetAttributes(attribute.Bool("event.duplicate", duplicate))
		tracing.End(span, err)
	}()

	if r.deduper.Seen(ctx, ev.EventID) {
		metrics.RecordEventDuplicate(metrics.StageDedupe)
		r.log.Warn(ctx, "duplicate event ignored",
			logger.String("eventId", ev.EventID),
			logger.String("sessionId", ev.SessionID),
			logger.String("stage", metrics.StageDedupe),
		)
		return true, nil
	}

	if err := r.store.CreateEvent(ctx, ev); err != nil {
		if errors.Is(err, model.ErrDuplicateEvent) {
			r.remember(ctx, ev.EventID)
			metrics.RecordEventDuplicate(metrics.StageRecorder)
			r.log.Warn(ctx, "duplicate event ignored",
				logger.String("eventId", ev.EventID),
				logger.String("sessionId", ev.SessionID),
				logger.String("stage", metrics.StageRecorder),
			)
			return true, nil
		}

		metrics.RecordStorageError("create_event")
		metrics.RecordErrorByComponent("recorder", "storage")
		r.log.Error(ctx, "event write failed",
			logger.String("eventId", ev.EventID),
			logger.String("sessionId", ev.SessionID),
			logger.Error(err),
		)
		return false, model.NewStorageError(op, err)
	}

	r.remember(ctx, ev.EventID)
	metrics.RecordEventRecorded()
	return false, nil
}

// remember caches id once the store holds it, even if ctx is already
// cancelled.
func (r *Recorder) remember(ctx context.Context, id string) {
	r.deduper.Record(context.WithoutCancel(ctx), id)
	metrics.UpdateDedupeCacheSize(r.deduper.Size())
}
