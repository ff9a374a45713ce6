package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mailsift/mailsift/internal/core"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a fingerprint has no cached pattern
var ErrNotFound = errors.New("cache entry not found")

// MemoryCache is an in-memory implementation of the PatternCache interface.
// Entries live for the process lifetime; there is no eviction.
type MemoryCache struct {
	entries map[string]*core.CachedPattern
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewMemoryCache creates a new in-memory pattern cache
func NewMemoryCache(logger *zap.Logger) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]*core.CachedPattern),
		logger:  logger,
	}
}

// Hit retrieves the pattern for a fingerprint, incrementing its hit count
// and refreshing last_used
func (c *MemoryCache) Hit(ctx context.Context, fingerprint string) (*core.CachedPattern, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[fingerprint]
	if !ok {
		return nil, ErrNotFound
	}
	entry.HitCount++
	entry.LastUsed = time.Now()

	out := *entry
	return &out, nil
}

// Store inserts or replaces a pattern
func (c *MemoryCache) Store(ctx context.Context, pattern *core.CachedPattern) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := *pattern
	c.entries[pattern.Fingerprint] = &entry
	return nil
}

// Len returns the number of cached patterns
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close is a no-op for the in-memory cache
func (c *MemoryCache) Close() error {
	return nil
}
