package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultMemorySize = 1024
	defaultMemoryTTL  = time.Hour
)

// MemoryConfig sizes the in-process cache.
type MemoryConfig struct {
	Size int
	TTL  time.Duration
}

// MemoryStore keeps entries in a process-local LRU. Entries share the TTL given at
// construction; the per-call ttl passed to Set is ignored.
type MemoryStore struct {
	entries *lru.LRU[string, []byte]
}

// NewMemoryStore constructs an expiring LRU cache.
func NewMemoryStore(cfg MemoryConfig) *MemoryStore {
	if cfg.Size <= 0 {
		cfg.Size = defaultMemorySize
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultMemoryTTL
	}
	return &MemoryStore{
		entries: lru.NewLRU[string, []byte](cfg.Size, nil, cfg.TTL),
	}
}

// Set stores a copy of value under key.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	copied := make([]byte, len(value))
	copy(copied, value)
	s.entries.Add(normalizeKey(key), copied)
	return nil
}

// Get returns the cached value if present and not expired.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, ok := s.entries.Get(normalizeKey(key))
	if !ok {
		return nil, false, nil
	}
	return value, true, nil
}

// Delete removes keys, ignoring missing ones.
func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		s.entries.Remove(normalizeKey(key))
	}
	return nil
}

// Len reports the number of live entries.
func (s *MemoryStore) Len() int {
	return s.entries.Len()
}
