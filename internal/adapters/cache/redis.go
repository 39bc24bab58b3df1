// Package cache provides shared dedupe caches for multi-instance deployments.
package cache

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/stride/pkg/errkind"
	"github.com/okian/stride/pkg/logger"
	"github.com/okian/stride/pkg/metrics"
)

const (
	defaultKeyPrefix = "stride:dedupe:"
	defaultTTL       = 24 * time.Hour
	pingTimeout      = 5 * time.Second
)

// ErrMissingAddr is returned when no redis address is configured.
var ErrMissingAddr = errors.New("missing redis address")

// RedisDeduper implements dedupe.Deduper with EXISTS and SET NX EX. Redis
// failures fail open: the id is reported as unseen and the event store decides.
type RedisDeduper struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
	log    logger.Logger
	size   atomic.Int64
}

// NewRedisDeduper connects to addr and verifies the connection.
func NewRedisDeduper(ctx context.Context, addr string, db int, opts ...Option) (*RedisDeduper, error) {
	const op = "cache.new_redis_deduper"

	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errkind.NewKind(op, ErrMissingAddr)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DB:          db,
		DialTimeout: pingTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errkind.Wrap(op, err)
	}
	return NewRedisDeduperFromClient(rdb, opts...), nil
}

// NewRedisDeduperFromClient wraps an existing client.
func NewRedisDeduperFromClient(rdb redis.UniversalClient, opts ...Option) *RedisDeduper {
	d := &RedisDeduper{
		rdb:    rdb,
		prefix: defaultKeyPrefix,
		ttl:    defaultTTL,
		log:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Seen implements dedupe.Deduper.
func (d *RedisDeduper) Seen(ctx context.Context, id string) bool {
	n, err := d.rdb.Exists(ctx, d.key(id)).Result()
	if err != nil {
		metrics.RecordErrorByComponent("dedupe", "redis")
		d.log.Warn(ctx, "dedupe lookup failed, deferring to store",
			logger.String("eventId", id),
			logger.Error(err),
		)
		return false
	}
	return n > 0
}

// Record implements dedupe.Deduper. The first record of an id wins and the
// ttl is not extended.
func (d *RedisDeduper) Record(ctx context.Context, id string) {
	created, err := d.rdb.SetNX(ctx, d.key(id), 1, d.ttl).Result()
	if err != nil {
		metrics.RecordErrorByComponent("dedupe", "redis")
		d.log.Warn(ctx, "dedupe record failed", logger.String("eventId", id), logger.Error(err))
		return
	}
	if created {
		d.size.Add(1)
	}
}

// Size reports the ids this process recorded. Keys written by other
// instances or expired by redis are not reflected.
func (d *RedisDeduper) Size() int64 {
	return d.size.Load()
}

// Close releases the client.
func (d *RedisDeduper) Close() error {
	return d.rdb.Close()
}

func (d *RedisDeduper) key(id string) string {
	return d.prefix + id
}
