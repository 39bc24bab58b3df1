// Package aggregate rebuilds session summaries from the full event log.
package aggregate

import (
	"encoding/json"
	"math"
	"time"

	"github.com/okian/stride/internal/domain/model"
)

// Summary is the result of folding one session's events.
type Summary struct {
	UserID      string
	StartTime   *time.Time
	EndTime     *time.Time
	LastEventAt *time.Time
	DurationSec int64
	Calories    float64
	EventCount  int

	// DuplicateIDs lists event ids seen more than once, once per extra row.
	DuplicateIDs []string
	// SkippedIDs lists distinct events dropped for lacking a usable instant.
	SkippedIDs []string
	// Clamped is true when the latest end preceded the earliest start.
	Clamped bool
}

// Fold reduces events into a Summary. The result does not depend on the order
// of events except for UserID, which comes from the first event.
func Fold(events []model.SessionEvent) Summary {
	var s Summary
	if len(events) == 0 {
		return s
	}
	s.UserID = events[0].UserID

	seen := make(map[string]struct{}, len(events))
	for _, ev := range events {
		if _, dup := seen[ev.EventID]; dup {
			s.DuplicateIDs = append(s.DuplicateIDs, ev.EventID)
			continue
		}
		seen[ev.EventID] = struct{}{}

		at := ev.EventTime
		if at.IsZero() {
			s.SkippedIDs = append(s.SkippedIDs, ev.EventID)
			continue
		}
		s.EventCount++

		switch ev.Type {
		case model.EventStart:
			if s.StartTime == nil || at.Before(*s.StartTime) {
				s.StartTime = instant(at)
			}
		case model.EventEnd:
			if s.EndTime == nil || at.After(*s.EndTime) {
				s.EndTime = instant(at)
			}
		case model.EventMetric:
			if c, ok := Calories(ev.Payload); ok {
				s.Calories += c
			}
		}

		if s.LastEventAt == nil || at.After(*s.LastEventAt) {
			s.LastEventAt = instant(at)
		}
	}

	if s.StartTime != nil && s.EndTime != nil {
		d := int64(math.Floor(s.EndTime.Sub(*s.StartTime).Seconds()))
		if d < 0 {
			d = 0
			s.Clamped = true
		}
		s.DurationSec = d
	}
	return s
}

// Calories extracts payload.calories when it is a finite positive number.
func Calories(p model.Payload) (float64, bool) {
	var c float64
	switch v := p["calories"].(type) {
	case float64:
		c = v
	case float32:
		c = float64(v)
	case int:
		c = float64(v)
	case int32:
		c = float64(v)
	case int64:
		c = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		c = f
	default:
		return 0, false
	}
	if math.IsNaN(c) || math.IsInf(c, 0) || c <= 0 {
		return 0, false
	}
	return c, true
}

func instant(t time.Time) *time.Time { return &t }
