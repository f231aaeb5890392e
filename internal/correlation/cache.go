package correlation

import (
	"sync"
	"time"
)

// Cache is a small bounded get-or-compute cache with per-entry TTL. It
// exists to absorb repeated trace-list queries against the store; it is
// injected where needed rather than held as package state.
type Cache[V any] struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	entries    map[string]cacheEntry[V]
	now        func() time.Time
}

type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// NewCache creates a cache holding at most maxEntries values for ttl each.
func NewCache[V any](ttl time.Duration, maxEntries int) *Cache[V] {
	if maxEntries <= 0 {
		maxEntries = 128
	}
	return &Cache[V]{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]cacheEntry[V]),
		now:        time.Now,
	}
}

// GetOrCompute returns the cached value for key, computing and storing it
// when absent or expired. Compute errors are returned without caching.
func (c *Cache[V]) GetOrCompute(key string, compute func() (V, error)) (V, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.now().Before(e.expiresAt) {
		c.mu.Unlock()
		return e.value, nil
	}
	c.mu.Unlock()

	// Compute outside the lock; concurrent callers for the same key may
	// race, last write wins.
	value, err := compute()
	if err != nil {
		var zero V
		return zero, err
	}

	c.mu.Lock()
	c.evictLocked()
	c.entries[key] = cacheEntry[V]{value: value, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()

	return value, nil
}

// Invalidate drops the entry for key, if present.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// evictLocked removes expired entries, then the soonest-to-expire entry if
// the cache is still full. Caller holds the lock.
func (c *Cache[V]) evictLocked() {
	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	if len(c.entries) < c.maxEntries {
		return
	}
	var oldestKey string
	var oldest time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.expiresAt.Before(oldest) {
			oldestKey = k
			oldest = e.expiresAt
		}
	}
	delete(c.entries, oldestKey)
}
