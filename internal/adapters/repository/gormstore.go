package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/okian/stride/internal/domain/model"
	"github.com/okian/stride/pkg/errkind"
	"github.com/okian/stride/pkg/metrics"
)

// GormStore is a Store backed by Postgres or SQLite through gorm.
type GormStore struct {
	db      *gorm.DB
	driver  string
	updater *metricsUpdater
}

// OpenGorm connects to driver at dsn and returns a ready store.
func OpenGorm(ctx context.Context, driver, dsn string, opts ...Option) (*GormStore, error) {
	const op = "repository.open_gorm"

	if strings.TrimSpace(dsn) == "" {
		return nil, errkind.WrapKind(op, ErrMissingDSN, fmt.Errorf("driver %s", driver))
	}

	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, errkind.WrapKind(op, ErrUnknownDriver, fmt.Errorf("driver %q", driver))
	}

	cfg := newSettings(opts)
	db, err := gorm.Open(dialector, gormConfig(cfg))
	if err != nil {
		return nil, errkind.Wrap(op, err)
	}
	return NewGormStore(ctx, db, driver, opts...)
}

// NewGormStore wraps an open gorm handle. The schema is migrated unless
// WithAutoMigrate(false) is given.
func NewGormStore(ctx context.Context, db *gorm.DB, driver string, opts ...Option) (*GormStore, error) {
	const op = "repository.new_gorm_store"

	cfg := newSettings(opts)
	if cfg.maxOpenConns > 0 {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(cfg.maxOpenConns)
		}
	}
	if cfg.autoMigrate {
		if err := db.WithContext(ctx).AutoMigrate(&eventRow{}, &sessionRow{}); err != nil {
			return nil, errkind.Wrap(op, err)
		}
	}

	s := &GormStore{db: db, driver: driver}
	s.updater = startMetricsUpdater(ctx, cfg.metricsUpdateInterval, s)
	return s, nil
}

// GormConfig returns the gorm settings used by OpenGorm.
func GormConfig(opts ...Option) *gorm.Config {
	return gormConfig(newSettings(opts))
}

func gormConfig(cfg settings) *gorm.Config {
	return &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(cfg.gormLogLevel),
		NowFunc:                func() time.Time { return time.Now().UTC() },
	}
}

// Driver implements Store.
func (s *GormStore) Driver() string { return s.driver }

// Close stops the metrics updater and releases the connection pool.
func (s *GormStore) Close() error {
	s.updater.stop()
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateEvent implements EventStore with INSERT ... ON CONFLICT DO NOTHING.
func (s *GormStore) CreateEvent(ctx context.Context, ev model.SessionEvent) error {
	const op = "repository.create_event"
	start := time.Now()
	defer func() { metrics.RecordStoreLatency("create_event", metrics.Since(start)) }()

	row, err := toEventRow(ev)
	if err != nil {
		return errkind.Wrap(op, err)
	}

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return ErrAlreadyExists
		}
		return errkind.Wrap(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// ListSessionEvents implements EventStore.
func (s *GormStore) ListSessionEvents(ctx context.Context, sessionID string) ([]model.SessionEvent, error) {
	const op = "repository.list_session_events"
	start := time.Now()
	defer func() { metrics.RecordStoreLatency("list_session_events", metrics.Since(start)) }()

	var rows []eventRow
	if err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("event_time asc").
		Order("event_id asc").
		Find(&rows).Error; err != nil {
		return nil, errkind.Wrap(op, err)
	}

	out := make([]model.SessionEvent, 0, len(rows))
	for _, r := range rows {
		ev, err := r.toModel()
		if err != nil {
			return nil, errkind.Wrap(op, fmt.Errorf("event %s: %w", r.EventID, err))
		}
		out = append(out, ev)
	}
	return out, nil
}

// GetSession implements SessionStore.
func (s *GormStore) GetSession(ctx context.Context, sessionID string) (model.Session, error) {
	const op = "repository.get_session"
	start := time.Now()
	defer func() { metrics.RecordStoreLatency("get_session", metrics.Since(start)) }()

	var row sessionRow
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Session{}, ErrNotFound
	}
	if err != nil {
		return model.Session{}, errkind.Wrap(op, err)
	}
	return row.toModel(), nil
}

// MergeSession implements SessionStore as an upsert on session_id.
func (s *GormStore) MergeSession(ctx context.Context, sess model.Session) error {
	const op = "repository.merge_session"
	start := time.Now()
	defer func() { metrics.RecordStoreLatency("merge_session", metrics.Since(start)) }()

	row := toSessionRow(sess)
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			UpdateAll: true,
		}).
		Create(&row).Error; err != nil {
		return errkind.Wrap(op, err)
	}
	return nil
}

// ListSessionsEndedSince implements SessionStore.
func (s *GormStore) ListSessionsEndedSince(ctx context.Context, userID string, since time.Time) ([]model.Session, error) {
	const op = "repository.list_sessions_ended_since"
	start := time.Now()
	defer func() { metrics.RecordStoreLatency("list_sessions_ended_since", metrics.Since(start)) }()

	var rows []sessionRow
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND end_time IS NOT NULL AND end_time >= ?", userID, since.UTC().Truncate(time.Second)).
		Order("end_time asc").
		Order("session_id asc").
		Find(&rows).Error; err != nil {
		return nil, errkind.Wrap(op, err)
	}

	out := make([]model.Session, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *GormStore) counts(ctx context.Context) (int, int, error) {
	var events, sessions int64
	if err := s.db.WithContext(ctx).Model(&eventRow{}).Count(&events).Error; err != nil {
		return 0, 0, err
	}
	if err := s.db.WithContext(ctx).Model(&sessionRow{}).Count(&sessions).Error; err != nil {
		return 0, 0, err
	}
	return int(events), int(sessions), nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.TrimSpace(pgErr.Code) == "23505"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
