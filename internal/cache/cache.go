package cache

import (
	"context"
	"sync"
	"time"
)

// Cache stores serialized weather payloads with TTL-based expiration.
// Get returns fresh data only; GetStale also returns entries past their TTL
// but younger than maxAge, together with their age. Used for stale-cache
// fallback when the upstream API is failing.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	GetStale(ctx context.Context, key string, maxAge time.Duration) ([]byte, time.Duration, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// InMemoryCache implements Cache using a mutex-protected map. Entries are kept
// past their TTL (up to staleWindow) so GetStale can serve them, and removed
// on access once older than ttl+staleWindow.
type InMemoryCache struct {
	mu          sync.RWMutex
	data        map[string]cacheEntry
	staleWindow time.Duration
}

type cacheEntry struct {
	value     []byte
	storedAt  time.Time
	expiresAt time.Time
}

// NewInMemoryCache creates an in-memory cache. staleWindow is how long expired
// entries remain retrievable through GetStale (0 = discard at expiry).
func NewInMemoryCache(staleWindow time.Duration) *InMemoryCache {
	return &InMemoryCache{
		data:        make(map[string]cacheEntry),
		staleWindow: staleWindow,
	}
}

// Get retrieves fresh cached data for the key. Returns (data, true, nil) on
// hit, (nil, false, nil) on miss or expiry.
func (c *InMemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	entry, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	now := time.Now()
	if now.After(entry.expiresAt) {
		if now.After(entry.expiresAt.Add(c.staleWindow)) {
			c.mu.Lock()
			delete(c.data, key)
			c.mu.Unlock()
		}
		return nil, false, nil
	}

	return entry.value, true, nil
}

// GetStale retrieves cached data regardless of TTL expiry, as long as the
// entry is younger than maxAge. Returns the entry's age alongside the value.
func (c *InMemoryCache) GetStale(ctx context.Context, key string, maxAge time.Duration) ([]byte, time.Duration, bool, error) {
	c.mu.RLock()
	entry, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return nil, 0, false, nil
	}

	age := time.Since(entry.storedAt)
	if age > maxAge {
		return nil, 0, false, nil
	}
	return entry.value, age, true, nil
}

// Set stores data in cache with the specified TTL duration.
func (c *InMemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := time.Now()
	c.mu.Lock()
	c.data[key] = cacheEntry{
		value:     value,
		storedAt:  now,
		expiresAt: now.Add(ttl),
	}
	c.mu.Unlock()
	return nil
}
