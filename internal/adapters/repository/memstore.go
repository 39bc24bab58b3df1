package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/stride/internal/domain/model"
	"github.com/okian/stride/pkg/metrics"
)

// MemStore is a mutex-guarded in-memory Store. Values are copied on the way
// in and out so callers never share state with the store.
type MemStore struct {
	mu        sync.RWMutex
	events    map[string]model.SessionEvent
	bySession map[string][]string
	sessions  map[string]model.Session
	byUser    map[string]map[string]struct{}

	updater *metricsUpdater
}

// NewMemStore constructs an empty in-memory store.
func NewMemStore(ctx context.Context, opts ...Option) *MemStore {
	cfg := newSettings(opts)
	s := &MemStore{
		events:    make(map[string]model.SessionEvent),
		bySession: make(map[string][]string),
		sessions:  make(map[string]model.Session),
		byUser:    make(map[string]map[string]struct{}),
	}
	s.updater = startMetricsUpdater(ctx, cfg.metricsUpdateInterval, s)
	return s
}

// Driver implements Store.
func (s *MemStore) Driver() string { return DriverMemory }

// Close stops the background metrics updater.
func (s *MemStore) Close() error {
	s.updater.stop()
	return nil
}

// CreateEvent implements EventStore.
func (s *MemStore) CreateEvent(ctx context.Context, ev model.SessionEvent) error {
	start := time.Now()
	defer func() { metrics.RecordStoreLatency("create_event", metrics.Since(start)) }()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[ev.EventID]; ok {
		return ErrAlreadyExists
	}
	ev.Payload = ev.Payload.Clone()
	s.events[ev.EventID] = ev
	s.bySession[ev.SessionID] = append(s.bySession[ev.SessionID], ev.EventID)
	return nil
}

// ListSessionEvents implements EventStore.
func (s *MemStore) ListSessionEvents(ctx context.Context, sessionID string) ([]model.SessionEvent, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreLatency("list_session_events", metrics.Since(start)) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	ids := s.bySession[sessionID]
	out := make([]model.SessionEvent, 0, len(ids))
	for _, id := range ids {
		ev := s.events[id]
		ev.Payload = ev.Payload.Clone()
		out = append(out, ev)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].EventTime.Equal(out[j].EventTime) {
			return out[i].EventTime.Before(out[j].EventTime)
		}
		return out[i].EventID < out[j].EventID
	})
	return out, nil
}

// GetSession implements SessionStore.
func (s *MemStore) GetSession(ctx context.Context, sessionID string) (model.Session, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreLatency("get_session", metrics.Since(start)) }()

	if err := ctx.Err(); err != nil {
		return model.Session{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return model.Session{}, ErrNotFound
	}
	return copySession(sess), nil
}

// MergeSession implements SessionStore.
func (s *MemStore) MergeSession(ctx context.Context, sess model.Session) error {
	start := time.Now()
	defer func() { metrics.RecordStoreLatency("merge_session", metrics.Since(start)) }()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.sessions[sess.SessionID]; ok && prev.UserID != sess.UserID {
		delete(s.byUser[prev.UserID], sess.SessionID)
	}
	s.sessions[sess.SessionID] = copySession(sess)
	if s.byUser[sess.UserID] == nil {
		s.byUser[sess.UserID] = make(map[string]struct{})
	}
	s.byUser[sess.UserID][sess.SessionID] = struct{}{}
	return nil
}

// ListSessionsEndedSince implements SessionStore.
func (s *MemStore) ListSessionsEndedSince(ctx context.Context, userID string, since time.Time) ([]model.Session, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreLatency("list_sessions_ended_since", metrics.Since(start)) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]model.Session, 0, len(s.byUser[userID]))
	for id := range s.byUser[userID] {
		sess := s.sessions[id]
		if sess.EndTime == nil || sess.EndTime.Before(since) {
			continue
		}
		out = append(out, copySession(sess))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].EndTime.Equal(*out[j].EndTime) {
			return out[i].EndTime.Before(*out[j].EndTime)
		}
		return out[i].SessionID < out[j].SessionID
	})
	return out, nil
}

func (s *MemStore) counts(context.Context) (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events), len(s.sessions), nil
}

func copySession(s model.Session) model.Session {
	s.StartTime = copyTime(s.StartTime)
	s.EndTime = copyTime(s.EndTime)
	s.LastEventAt = copyTime(s.LastEventAt)
	return s
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
