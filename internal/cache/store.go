package cache

import (
	"context"
	"sync"
	"time"

	"github.com/YuldShah/uptovipnew/internal/domain"
)

// Store is the key-value backend of the content cache.
type Store interface {
	// Get returns the entry or domain.ErrEntryNotFound.
	Get(ctx context.Context, fp domain.Fingerprint) (*domain.CacheEntry, error)

	// Upsert atomically writes the entry, keeping CreatedAt of an existing row,
	// and returns what was stored.
	Upsert(ctx context.Context, entry domain.CacheEntry) (*domain.CacheEntry, error)

	// Delete removes the entry. Missing entries are not an error.
	Delete(ctx context.Context, fp domain.Fingerprint) error

	// DeleteValidatedBefore removes entries last validated before cutoff.
	DeleteValidatedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[domain.Fingerprint]domain.CacheEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[domain.Fingerprint]domain.CacheEntry),
	}
}

// Get returns the entry for fp.
func (s *MemoryStore) Get(ctx context.Context, fp domain.Fingerprint) (*domain.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[fp]
	if !ok {
		return nil, domain.ErrEntryNotFound
	}
	return &entry, nil
}

// Upsert writes the entry.
func (s *MemoryStore) Upsert(ctx context.Context, entry domain.CacheEntry) (*domain.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[entry.Fingerprint]; ok {
		entry.CreatedAt = existing.CreatedAt
	}
	s.entries[entry.Fingerprint] = entry
	return &entry, nil
}

// Delete removes the entry for fp.
func (s *MemoryStore) Delete(ctx context.Context, fp domain.Fingerprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, fp)
	return nil
}

// DeleteValidatedBefore removes stale entries.
func (s *MemoryStore) DeleteValidatedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for fp, entry := range s.entries {
		if entry.LastValidatedAt.Before(cutoff) {
			delete(s.entries, fp)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
