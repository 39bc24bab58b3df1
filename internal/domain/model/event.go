// Package model contains domain models passed between layers.
package model

import "time"

// SchemaVersion tags every persisted SessionEvent.
const SchemaVersion = 1

// EventType is the kind of observation an event carries.
type EventType string

// Event types accepted by the normalizer.
const (
	EventStart  EventType = "start"
	EventMetric EventType = "metric"
	EventEnd    EventType = "end"
)

// Valid reports whether t is one of the three known literals.
func (t EventType) Valid() bool {
	switch t {
	case EventStart, EventMetric, EventEnd:
		return true
	default:
		return false
	}
}

// Payload is the open key/value body of an event.
type Payload map[string]any

// Clone returns a shallow copy; nil stays nil.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// RawEvent is an untrusted submission as decoded from the wire.
type RawEvent struct {
	UserID          string    `json:"userId"`
	ClientSessionID string    `json:"clientSessionId"`
	Type            EventType `json:"type"`
	Timestamp       string    `json:"timestamp"`
	Payload         Payload   `json:"payload,omitempty"`
}

// NormalizedEvent is a validated event with trimmed identifiers and a
// second-resolution event time.
type NormalizedEvent struct {
	UserID          string
	ClientSessionID string
	Type            EventType
	EventTime       time.Time
	Payload         Payload
}

// SessionEvent is the immutable record written once per event id.
type SessionEvent struct {
	EventID       string    `json:"eventId"`
	SessionID     string    `json:"sessionId"`
	UserID        string    `json:"userId"`
	Type          EventType `json:"type"`
	EventTime     time.Time `json:"eventTime"`
	ReceivedAt    time.Time `json:"receivedAt"`
	Payload       Payload   `json:"payload"`
	SchemaVersion int       `json:"schemaVersion"`
}
