package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Evicter removes stale cache entries.
type Evicter interface {
	Evict(ctx context.Context) (int, error)
}

// EventCleaner removes expired operator events.
type EventCleaner interface {
	CleanupOldEvents(ctx context.Context) error
}

// Janitor runs periodic maintenance: cache eviction and event cleanup.
type Janitor struct {
	interval time.Duration
	cache    Evicter
	events   EventCleaner
	logger   *slog.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewJanitor creates a janitor. events may be nil.
func NewJanitor(interval time.Duration, cache Evicter, events EventCleaner, logger *slog.Logger) *Janitor {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Janitor{
		interval: interval,
		cache:    cache,
		events:   events,
		logger:   logger,
	}
}

// Start runs one pass immediately and then every interval.
func (j *Janitor) Start(ctx context.Context) {
	ctx, j.cancel = context.WithCancel(ctx)

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()

		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		j.RunOnce(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				j.RunOnce(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for the current pass.
func (j *Janitor) Stop() {
	if j.cancel != nil {
		j.cancel()
	}
	j.wg.Wait()
}

// RunOnce performs a single maintenance pass.
func (j *Janitor) RunOnce(ctx context.Context) {
	removed, err := j.cache.Evict(ctx)
	if err != nil {
		j.logger.Error("cache eviction failed", "error", err)
	} else if removed > 0 {
		j.logger.Info("cache eviction pass", "removed", removed)
	}

	if j.events != nil {
		if err := j.events.CleanupOldEvents(ctx); err != nil {
			j.logger.Error("event cleanup failed", "error", err)
		}
	}
}
