package repository

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/okian/stride/internal/domain/model"
)

// Instants are stored in UTC next to their original offset in seconds so a
// round trip keeps each instant's local calendar date.

type eventRow struct {
	EventID       string         `gorm:"column:event_id;primaryKey;size:64"`
	SessionID     string         `gorm:"column:session_id;size:64;not null;index:idx_session_events_session_time,priority:1"`
	UserID        string         `gorm:"column:user_id;not null"`
	Type          string         `gorm:"column:type;size:16;not null"`
	EventTime     time.Time      `gorm:"column:event_time;not null;index:idx_session_events_session_time,priority:2"`
	EventOffset   int            `gorm:"column:event_offset;not null"`
	ReceivedAt    time.Time      `gorm:"column:received_at;not null"`
	Payload       datatypes.JSON `gorm:"column:payload"`
	SchemaVersion int            `gorm:"column:schema_version;not null"`
}

func (eventRow) TableName() string { return CollectionEvents }

type sessionRow struct {
	SessionID       string     `gorm:"column:session_id;primaryKey;size:64"`
	UserID          string     `gorm:"column:user_id;not null;index:idx_sessions_user_end,priority:1"`
	StartTime       *time.Time `gorm:"column:start_time"`
	StartOffset     int        `gorm:"column:start_offset;not null"`
	EndTime         *time.Time `gorm:"column:end_time;index:idx_sessions_user_end,priority:2"`
	EndOffset       int        `gorm:"column:end_offset;not null"`
	DurationSec     int64      `gorm:"column:duration_sec;not null"`
	Calories        float64    `gorm:"column:calories;not null"`
	EventCount      int        `gorm:"column:event_count;not null"`
	LastEventAt     *time.Time `gorm:"column:last_event_at"`
	LastEventOffset int        `gorm:"column:last_event_offset;not null"`
	ComputedAt      time.Time  `gorm:"column:updated_at;not null"`
	Version         int64      `gorm:"column:version;not null"`
}

func (sessionRow) TableName() string { return CollectionSessions }

func toEventRow(ev model.SessionEvent) (eventRow, error) {
	payload := ev.Payload
	if payload == nil {
		payload = model.Payload{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return eventRow{}, err
	}
	t, off := splitInstant(ev.EventTime)
	return eventRow{
		EventID:       ev.EventID,
		SessionID:     ev.SessionID,
		UserID:        ev.UserID,
		Type:          string(ev.Type),
		EventTime:     t,
		EventOffset:   off,
		ReceivedAt:    ev.ReceivedAt.UTC(),
		Payload:       datatypes.JSON(raw),
		SchemaVersion: ev.SchemaVersion,
	}, nil
}

func (r eventRow) toModel() (model.SessionEvent, error) {
	payload := model.Payload{}
	if len(r.Payload) > 0 {
		if err := json.Unmarshal(r.Payload, &payload); err != nil {
			return model.SessionEvent{}, err
		}
	}
	return model.SessionEvent{
		EventID:       r.EventID,
		SessionID:     r.SessionID,
		UserID:        r.UserID,
		Type:          model.EventType(r.Type),
		EventTime:     joinInstant(r.EventTime, r.EventOffset),
		ReceivedAt:    r.ReceivedAt.UTC(),
		Payload:       payload,
		SchemaVersion: r.SchemaVersion,
	}, nil
}

func toSessionRow(s model.Session) sessionRow {
	row := sessionRow{
		SessionID:   s.SessionID,
		UserID:      s.UserID,
		DurationSec: s.DurationSec,
		Calories:    s.Calories,
		EventCount:  s.EventCount,
		ComputedAt:  s.UpdatedAt.UTC(),
		Version:     s.Version,
	}
	row.StartTime, row.StartOffset = splitOptional(s.StartTime)
	row.EndTime, row.EndOffset = splitOptional(s.EndTime)
	row.LastEventAt, row.LastEventOffset = splitOptional(s.LastEventAt)
	return row
}

func (r sessionRow) toModel() model.Session {
	return model.Session{
		SessionID:   r.SessionID,
		UserID:      r.UserID,
		StartTime:   joinOptional(r.StartTime, r.StartOffset),
		EndTime:     joinOptional(r.EndTime, r.EndOffset),
		DurationSec: r.DurationSec,
		Calories:    r.Calories,
		EventCount:  r.EventCount,
		LastEventAt: joinOptional(r.LastEventAt, r.LastEventOffset),
		UpdatedAt:   r.ComputedAt.UTC(),
		Version:     r.Version,
	}
}

func splitInstant(t time.Time) (time.Time, int) {
	_, off := t.Zone()
	return t.UTC(), off
}

func joinInstant(t time.Time, off int) time.Time {
	if off == 0 {
		return t.UTC()
	}
	return t.In(time.FixedZone("", off))
}

func splitOptional(t *time.Time) (*time.Time, int) {
	if t == nil {
		return nil, 0
	}
	u, off := splitInstant(*t)
	return &u, off
}

func joinOptional(t *time.Time, off int) *time.Time {
	if t == nil {
		return nil
	}
	v := joinInstant(*t, off)
	return &v
}
