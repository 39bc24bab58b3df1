// Package repository holds the event store contract and its implementations.
//
// Two collections exist: session_events, written once per event id and never
// updated, and sessions, the recomputed projection merged on every recompute.
package repository

import (
	"context"
	"time"

	"github.com/okian/stride/internal/domain/model"
)

// Supported drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Collection names used for tables and metric labels.
const (
	CollectionEvents   = "session_events"
	CollectionSessions = "sessions"
)

// EventStore is the create-only event log.
type EventStore interface {
	// CreateEvent persists ev keyed by its EventID. Returns ErrAlreadyExists
	// when the key is taken; the stored event is never overwritten.
	CreateEvent(ctx context.Context, ev model.SessionEvent) error

	// ListSessionEvents returns every event of a session ordered by event
	// time ascending, ties broken by event id.
	ListSessionEvents(ctx context.Context, sessionID string) ([]model.SessionEvent, error)
}

// SessionStore holds the recomputed session projections.
type SessionStore interface {
	// GetSession returns ErrNotFound when no summary exists.
	GetSession(ctx context.Context, sessionID string) (model.Session, error)

	// MergeSession writes every computed field of s over the stored summary.
	MergeSession(ctx context.Context, s model.Session) error

	// ListSessionsEndedSince returns the user's sessions with an end time at
	// or after since, ordered by end time ascending.
	ListSessionsEndedSince(ctx context.Context, userID string, since time.Time) ([]model.Session, error)
}

// Store is the full collaborator used by the service.
type Store interface {
	EventStore
	SessionStore

	// Driver names the backing implementation.
	Driver() string
	Close() error
}

// Open builds the store selected by driver.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (Store, error) {
	switch driver {
	case "", DriverMemory:
		return NewMemStore(ctx, opts...), nil
	case DriverSQLite, DriverPostgres:
		return OpenGorm(ctx, driver, dsn, opts...)
	default:
		return nil, ErrUnknownDriver
	}
}
