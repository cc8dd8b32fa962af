package utils

import (
	"sync"
	"time"
)

// TTLCache is a small time-bounded cache for read-mostly data (card
// catalog buckets, exchange rates). Invalidation is time-based only.
type TTLCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cacheEntry
}

type cacheEntry struct {
	value    interface{}
	storedAt time.Time
}

// NewTTLCache builds a cache; nowFn is injectable for tests (nil means
// time.Now).
func NewTTLCache(ttl time.Duration, nowFn func() time.Time) *TTLCache {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &TTLCache{
		ttl:     ttl,
		now:     nowFn,
		entries: make(map[string]cacheEntry),
	}
}

func (c *TTLCache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.storedAt) >= c.ttl {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return entry.value, true
}

func (c *TTLCache) Set(key string, value interface{}) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{value: value, storedAt: c.now()}
	c.mu.Unlock()
}

func (c *TTLCache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}
