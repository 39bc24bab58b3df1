// Package normalize validates raw event submissions and turns them into
// typed, second-resolution events.
package normalize

import (
	"strings"
	"time"

	"github.com/okian/stride/internal/domain/model"
)

const op = "normalize"

// Accepted timestamp layouts, tried in order. Layouts without an offset are
// read as UTC.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// Normalizer validates RawEvents.
type Normalizer struct {
	maxFutureSkew time.Duration
	now           func() time.Time
}

// New creates a Normalizer. Without options it enforces no future bound.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{now: time.Now}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize applies the validation rules in order and returns the first
// failure as a model.ErrValidation.
func (n *Normalizer) Normalize(raw model.RawEvent) (model.NormalizedEvent, error) {
	userID := strings.TrimSpace(raw.UserID)
	clientID := strings.TrimSpace(raw.ClientSessionID)
	if userID == "" || clientID == "" {
		return model.NormalizedEvent{}, model.NewValidationError(op, model.ErrMissingIdentifier)
	}

	if !raw.Type.Valid() {
		return model.NormalizedEvent{}, model.NewValidationError(op, model.ErrInvalidEventType)
	}

	ts, ok := parseTimestamp(raw.Timestamp)
	if !ok {
		return model.NormalizedEvent{}, model.NewValidationError(op, model.ErrInvalidTimestamp)
	}
	ts = ts.Truncate(time.Second)

	if n.maxFutureSkew > 0 && ts.After(n.now().Add(n.maxFutureSkew)) {
		return model.NormalizedEvent{}, model.NewValidationError(op, model.ErrFutureTimestamp)
	}

	payload := raw.Payload.Clone()
	if payload == nil {
		payload = model.Payload{}
	}

	return model.NormalizedEvent{
		UserID:          userID,
		ClientSessionID: clientID,
		Type:            raw.Type,
		EventTime:       ts,
		Payload:         payload,
	}, nil
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
