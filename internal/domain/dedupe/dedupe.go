// Package dedupe provides the fast-path idempotency filter in front of the
// event store. The store remains the source of truth; a hit here only saves a
// round trip. Ids are recorded only once the store holds the event.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const defaultMaxSize = 50000

// Deduper records seen event ids.
type Deduper interface {
	// Seen reports whether id was recorded and has not expired.
	Seen(ctx context.Context, id string) bool

	// Record marks id as persisted.
	Record(ctx context.Context, id string)

	Size() int64
}

type entry struct {
	id      string
	addedAt time.Time
}

// inMemoryDeduper keeps ids in insertion order and evicts the oldest once
// maxSize is reached. maxSize <= 0 disables eviction.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	size    atomic.Int64
}

// NewInMemoryDeduper creates a bounded in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: defaultMaxSize,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

func (d *inMemoryDeduper) Seen(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	el, ok := d.seen[id]
	if !ok {
		return false
	}
	if d.expired(el.Value.(*entry), d.now()) {
		d.remove(el)
		return false
	}
	return true
}

func (d *inMemoryDeduper) Record(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[id]; ok {
		d.remove(el)
	}

	if d.maxSize > 0 {
		for len(d.seen) >= d.maxSize {
			d.remove(d.order.Front())
		}
	}

	d.seen[id] = d.order.PushBack(&entry{id: id, addedAt: d.now()})
	d.size.Add(1)
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}

func (d *inMemoryDeduper) expired(e *entry, now time.Time) bool {
	return d.ttl > 0 && now.Sub(e.addedAt) >= d.ttl
}

// remove must be called with d.mu held.
func (d *inMemoryDeduper) remove(el *list.Element) {
	if el == nil {
		return
	}
	e := d.order.Remove(el).(*entry)
	delete(d.seen, e.id)
	d.size.Add(-1)
}

// noopDeduper never reports a hit.
type noopDeduper struct{}

// NewNoop returns a Deduper that always defers to the store.
func NewNoop() Deduper { return noopDeduper{} }

func (noopDeduper) Seen(context.Context, string) bool { return false }
func (noopDeduper) Record(context.Context, string)     {}
func (noopDeduper) Size() int64                        { return 0 }
