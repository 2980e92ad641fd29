package cache

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache(ttl time.Duration, maxEntries int) (*Cache[string], *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	return New[string](Config{TTL: ttl, MaxEntries: maxEntries, Now: clock.Now}), clock
}

func TestCache_GetSet(t *testing.T) {
	c, _ := newTestCache(time.Minute, 0)
	defer c.Stop()

	c.Set("a", "1")
	v, ok := c.Get("a")
	if !ok || v != "1" {
		t.Fatalf("Get(a) = %q, %v; want 1, true", v, ok)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for unknown key")
	}
}

func TestCache_PeekReportsAge(t *testing.T) {
	c, clock := newTestCache(time.Minute, 0)
	defer c.Stop()

	c.Set("a", "1")
	clock.Advance(40 * time.Second)

	item, ok := c.Peek("a")
	if !ok {
		t.Fatal("expected Peek to return live entry")
	}
	if item.Value != "1" {
		t.Errorf("Peek value = %q, want 1", item.Value)
	}
	if item.Age(clock.Now()) != 40*time.Second {
		t.Errorf("Age = %v, want 40s", item.Age(clock.Now()))
	}
}

func TestCache_ExpiredEntriesHiddenBeforeCleanup(t *testing.T) {
	c, clock := newTestCache(time.Minute, 0)
	defer c.Stop()

	c.Set("a", "1")
	clock.Advance(time.Minute + time.Second)

	if _, ok := c.Get("a"); ok {
		t.Error("expected Get to skip expired entry")
	}
	if _, ok := c.Peek("a"); ok {
		t.Error("expected Peek to skip expired entry")
	}
	if c.Size() != 1 {
		t.Errorf("Size before cleanup = %d, want 1", c.Size())
	}

	c.Invalidate("")
	if c.Size() != 0 {
		t.Errorf("Size after Invalidate(\"\") = %d, want 0", c.Size())
	}
}

func TestCache_MaxEntriesEvictsOldest(t *testing.T) {
	c, clock := newTestCache(time.Hour, 2)
	defer c.Stop()

	c.Set("a", "1")
	clock.Advance(time.Second)
	c.Set("b", "2")
	clock.Advance(time.Second)
	c.Set("c", "3")

	if c.Size() != 2 {
		t.Fatalf("Size = %d, want 2", c.Size())
	}
	if _, ok := c.Peek("a"); ok {
		t.Error("expected oldest entry to be evicted")
	}
	if _, ok := c.Peek("c"); !ok {
		t.Error("expected newest entry to be present")
	}

	// Overwriting an existing key does not evict.
	c.Set("b", "22")
	if c.Size() != 2 {
		t.Errorf("Size after overwrite = %d, want 2", c.Size())
	}
}

func TestCache_InvalidatePrefix(t *testing.T) {
	c, _ := newTestCache(time.Hour, 0)
	defer c.Stop()

	c.Set("video:1", "x")
	c.Set("video:2", "y")
	c.Set("other", "z")

	c.Invalidate("video:")

	if c.Size() != 1 {
		t.Errorf("Size = %d, want 1", c.Size())
	}
}

func TestCache_Stats(t *testing.T) {
	c, clock := newTestCache(time.Minute, 0)
	defer c.Stop()

	c.Set("a", "1")
	c.SetWithTTL("b", "2", time.Hour)
	clock.Advance(2 * time.Minute)

	stats := c.GetStats()
	if stats.TotalKeys != 2 || stats.Expired != 1 || stats.Size != 1 {
		t.Errorf("stats = %+v, want total=2 expired=1 size=1", stats)
	}
}

func TestCache_StopIsIdempotent(t *testing.T) {
	c := New[int](Config{TTL: time.Minute, CleanupInterval: time.Millisecond})
	c.Stop()
	c.Stop()
}
