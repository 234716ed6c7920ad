package engine

import (
	"sync"
	"time"
)

// Clock abstracts time.Now so TTL behavior is testable without sleeping.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func SystemClock() Clock { return systemClock{} }

type cacheEntry struct {
	value     any
	expiresAt time.Time
}

// ResultCache memoizes expensive computations for a short TTL. Safe for
// concurrent use; concurrent misses for the same key may all recompute,
// which is acceptable at this request volume.
type ResultCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	clock   Clock
	entries map[string]cacheEntry
}

func NewResultCache(ttl time.Duration, clock Clock) *ResultCache {
	if clock == nil {
		clock = SystemClock()
	}
	return &ResultCache{
		ttl:     ttl,
		clock:   clock,
		entries: map[string]cacheEntry{},
	}
}

func (c *ResultCache) Get(key string) (any, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.clock.Now().After(entry.expiresAt) {
		c.mu.Lock()
		if current, still := c.entries[key]; still && current.expiresAt.Equal(entry.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry.value, true
}

func (c *ResultCache) Set(key string, value any) {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cacheEntry{value: value, expiresAt: now.Add(c.ttl)}
}
