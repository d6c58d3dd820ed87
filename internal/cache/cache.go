// Package cache maps request fingerprints to previously stored artifacts.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/YuldShah/uptovipnew/internal/domain"
	"github.com/YuldShah/uptovipnew/internal/metrics"
)

// Config holds content cache configuration.
type Config struct {
	// TTL after which an entry is treated as a miss. Zero disables staleness.
	TTL time.Duration
}

// Cache is the content cache used by the orchestrator.
type Cache struct {
	store  Store
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// New creates a cache over the given backend.
func New(store Store, cfg Config, logger *slog.Logger) *Cache {
	return &Cache{
		store:  store,
		ttl:    cfg.TTL,
		now:    time.Now,
		logger: logger,
	}
}

// SetClock replaces the time source.
func (c *Cache) SetClock(now func() time.Time) {
	c.now = now
}

// TTL returns the configured staleness threshold.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Lookup returns the live entry for fp, or nil on a miss. Stale entries
// are reported as misses and left in place for the eviction pass.
func (c *Cache) Lookup(ctx context.Context, fp domain.Fingerprint) (*domain.CacheEntry, error) {
	entry, err := c.store.Get(ctx, fp)
	if errors.Is(err, domain.ErrEntryNotFound) {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, nil
	}
	if err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("cache lookup: %w", err)
	}

	if entry.IsStale(c.now(), c.ttl) {
		metrics.CacheLookups.WithLabelValues("stale").Inc()
		c.logger.Debug("cache entry stale",
			"fingerprint", fp.Short(),
			"last_validated_at", entry.LastValidatedAt,
		)
		return nil, nil
	}

	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return entry, nil
}

// Store records ref, delivered as kind, as the artifact for fp. Any
// previous entry is overwritten and revalidated.
func (c *Cache) Store(ctx context.Context, fp domain.Fingerprint, ref string, kind domain.ArtifactKind, sizeBytes int64) (*domain.CacheEntry, error) {
	if ref == "" {
		return nil, fmt.Errorf("cache store: empty artifact reference")
	}

	now := c.now().UTC()
	entry, err := c.store.Upsert(ctx, domain.CacheEntry{
		Fingerprint:       fp,
		ArtifactReference: ref,
		CreatedAt:         now,
		LastValidatedAt:   now,
		SizeBytes:         sizeBytes,
		ArtifactKind:      kind,
	})
	if err != nil {
		return nil, fmt.Errorf("cache store: %w", err)
	}

	c.logger.Debug("cache entry stored", "fingerprint", fp.Short(), "kind", kind, "size_bytes", sizeBytes)
	return entry, nil
}

// Invalidate removes the entry for fp.
func (c *Cache) Invalidate(ctx context.Context, fp domain.Fingerprint) error {
	if err := c.store.Delete(ctx, fp); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	c.logger.Info("cache entry invalidated", "fingerprint", fp.Short())
	return nil
}

// Evict physically removes entries that are past the TTL.
func (c *Cache) Evict(ctx context.Context) (int, error) {
	if c.ttl <= 0 {
		return 0, nil
	}

	cutoff := c.now().Add(-c.ttl)
	removed, err := c.store.DeleteValidatedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cache evict: %w", err)
	}

	if removed > 0 {
		metrics.CacheEvicted.Add(float64(removed))
		c.logger.Info("evicted stale cache entries", "removed", removed, "cutoff", cutoff)
	}
	return removed, nil
}
