package engine

import (
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestResultCacheHitWithinTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	cache := NewResultCache(5*time.Minute, clock)
	cache.Set("trends:eq-1", 42)
	clock.Advance(4 * time.Minute)
	value, ok := cache.Get("trends:eq-1")
	if !ok || value != 42 {
		t.Fatalf("expected cache hit got %v %v", value, ok)
	}
}

func TestResultCacheExpiresAfterTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	cache := NewResultCache(5*time.Minute, clock)
	cache.Set("trends:eq-1", 42)
	clock.Advance(6 * time.Minute)
	if _, ok := cache.Get("trends:eq-1"); ok {
		t.Fatalf("expected expired entry")
	}
}

func TestResultCacheMiss(t *testing.T) {
	cache := NewResultCache(time.Minute, &fakeClock{now: time.Now()})
	if _, ok := cache.Get("missing"); ok {
		t.Fatalf("expected miss")
	}
}

func TestResultCacheOverwrite(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	cache := NewResultCache(5*time.Minute, clock)
	cache.Set("key", 1)
	clock.Advance(4 * time.Minute)
	cache.Set("key", 2)
	clock.Advance(2 * time.Minute)
	value, ok := cache.Get("key")
	if !ok || value != 2 {
		t.Fatalf("expected refreshed entry got %v %v", value, ok)
	}
}
