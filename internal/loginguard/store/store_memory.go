package store

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// MemoryStore is an in-process TTLStore for tests and offline configurations.
// Expiry is evaluated lazily against the injected clock on each read.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock replaces the store's time source. Tests use this to drive expiry
// deterministically.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemory constructs an empty in-memory TTL store.
func NewMemory(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return "", false, nil
	}
	if s.expired(entry) {
		delete(s.entries, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = entry
	return nil
}

func (s *MemoryStore) Del(_ context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for _, key := range keys {
		entry, ok := s.entries[key]
		if !ok {
			continue
		}
		delete(s.entries, key)
		if !s.expired(entry) {
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || s.expired(entry) {
		return TTLMissing, nil
	}
	if entry.expiresAt.IsZero() {
		return TTLNoExpiry, nil
	}
	return entry.expiresAt.Sub(s.now()), nil
}

func (s *MemoryStore) expired(entry memoryEntry) bool {
	return !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt)
}
