package cache

import (
	"sync"
	"time"
)

// Item is a cached value together with the time it was stored.
type Item[V any] struct {
	Value     V
	StoredAt  time.Time
	ExpiresAt time.Time
}

// Age returns how long ago the item was stored.
func (item *Item[V]) Age(now time.Time) time.Duration {
	return now.Sub(item.StoredAt)
}

// IsExpired checks if the item outlived the cache TTL
func (item *Item[V]) IsExpired(now time.Time) bool {
	return now.After(item.ExpiresAt)
}

// Config holds cache configuration
type Config struct {
	TTL             time.Duration    // How long an entry is retained before eviction
	MaxEntries      int              // Upper bound on entries, 0 = unbounded
	CleanupInterval time.Duration    // 0 disables the background cleanup goroutine
	Now             func() time.Time // Clock, defaults to time.Now
}

// Cache is a thread-safe bounded in-memory cache with TTL eviction.
// Expired entries are never returned, whether or not cleanup has run yet.
type Cache[V any] struct {
	items      map[string]*Item[V]
	mu         sync.RWMutex
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// New creates a cache and starts the cleanup goroutine when configured.
func New[V any](cfg Config) *Cache[V] {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	c := &Cache[V]{
		items:       make(map[string]*Item[V]),
		ttl:         cfg.TTL,
		maxEntries:  cfg.MaxEntries,
		now:         now,
		stopCleanup: make(chan struct{}),
	}

	if cfg.CleanupInterval > 0 {
		go c.cleanup(cfg.CleanupInterval)
	}

	return c
}

// Get retrieves an unexpired value from cache
func (c *Cache[V]) Get(key string) (V, bool) {
	item, ok := c.Peek(key)
	return item.Value, ok
}

// Peek returns the unexpired item with its timestamps, so callers can apply
// a freshness window tighter than the TTL.
func (c *Cache[V]) Peek(key string) (Item[V], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, exists := c.items[key]
	if !exists || item.IsExpired(c.now()) {
		return Item[V]{}, false
	}
	return *item, true
}

// Set stores a value in cache with the default TTL
func (c *Cache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value in cache with custom TTL
func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.items[key]; !exists && c.maxEntries > 0 && len(c.items) >= c.maxEntries {
		c.evictLocked(now)
	}

	c.items[key] = &Item[V]{
		Value:     value,
		StoredAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

// evictLocked drops expired entries, or the oldest one when none expired.
func (c *Cache[V]) evictLocked(now time.Time) {
	removed := 0
	var oldestKey string
	var oldest time.Time
	for key, item := range c.items {
		if item.IsExpired(now) {
			delete(c.items, key)
			removed++
			continue
		}
		if oldestKey == "" || item.StoredAt.Before(oldest) {
			oldestKey = key
			oldest = item.StoredAt
		}
	}
	if removed == 0 && oldestKey != "" {
		delete(c.items, oldestKey)
	}
}

// Delete removes a key from cache
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Invalidate removes keys with the given prefix, or every expired item when prefix is empty.
func (c *Cache[V]) Invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, item := range c.items {
		if prefix == "" {
			if item.IsExpired(now) {
				delete(c.items, key)
			}
			continue
		}
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(c.items, key)
		}
	}
}

// cleanup periodically removes expired items
func (c *Cache[V]) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Invalidate("")
		case <-c.stopCleanup:
			return
		}
	}
}

// Stop stops the cleanup goroutine
func (c *Cache[V]) Stop() {
	c.stopOnce.Do(func() { close(c.stopCleanup) })
}

// Size returns the number of items in cache, expired ones included
func (c *Cache[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Stats returns cache statistics
type Stats struct {
	Size      int
	Expired   int
	TotalKeys int
}

// GetStats returns cache statistics
func (c *Cache[V]) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := Stats{
		TotalKeys: len(c.items),
	}

	now := c.now()
	for _, item := range c.items {
		if item.IsExpired(now) {
			stats.Expired++
		}
	}

	stats.Size = stats.TotalKeys - stats.Expired
	return stats
}
