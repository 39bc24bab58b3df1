package repository

import (
	"context"
	"sync"
	"time"

	"github.com/okian/stride/pkg/metrics"
)

// recordCounter reports collection sizes.
type recordCounter interface {
	counts(ctx context.Context) (events, sessions int, err error)
}

// metricsUpdater periodically publishes collection sizes until stopped.
type metricsUpdater struct {
	wg       sync.WaitGroup
	stopChan chan struct{}
	once     sync.Once
}

func startMetricsUpdater(ctx context.Context, interval time.Duration, c recordCounter) *metricsUpdater {
	u := &metricsUpdater{stopChan: make(chan struct{})}
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-u.stopChan:
				return
			case <-ticker.C:
				events, sessions, err := c.counts(ctx)
				if err != nil {
					continue
				}
				metrics.UpdateStoredRecords(CollectionEvents, events)
				metrics.UpdateStoredRecords(CollectionSessions, sessions)
			}
		}
	}()
	return u
}

func (u *metricsUpdater) stop() {
	u.once.Do(func() { close(u.stopChan) })
	u.wg.Wait()
}
