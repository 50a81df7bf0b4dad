package metric

import (
	"context"
	"sync"
	"time"

	"github.com/catalogmf/catalog/internal/model"
)

// cacheEntry holds a cached payload with expiration.
type cacheEntry struct {
	data    *model.MetricsPayload
	created time.Time
	expires time.Time
	hits    int64
}

// QueryCache is a thread-safe cache of metric payloads keyed by query name.
// One instance is created at startup and handed to every component that
// needs it, there is no package level cache.
type QueryCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	maxSize int
	maxAge  time.Duration
	hits    int64
	misses  int64
	now     func() time.Time
}

// NewQueryCache creates a new cache. Entries older than maxAge are stale
// and never returned.
func NewQueryCache(maxSize int, maxAge time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 16
	}
	return &QueryCache{
		entries: make(map[string]*cacheEntry),
		maxSize: maxSize,
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// Get retrieves a payload from the cache if it is still fresh.
func (c *QueryCache) Get(key string) (*model.MetricsPayload, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok {
		if c.now().Before(entry.expires) {
			entry.hits++
			c.hits++
			return entry.data, true
		}
		delete(c.entries, key)
	}

	c.misses++
	return nil, false
}

// Set stores a payload in the cache replacing the previous one.
func (c *QueryCache) Set(key string, data *model.MetricsPayload) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.maxSize {
		c.evict(c.now())
		if len(c.entries) >= c.maxSize {
			c.evictOldest()
		}
	}

	now := c.now()
	c.entries[key] = &cacheEntry{
		data:    data,
		created: now,
		expires: now.Add(c.maxAge),
	}
}

// Stats returns cache statistics.
func (c *QueryCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := c.hits + c.misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(c.hits) / float64(total) * 100
	}

	return CacheStats{
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: hitRate,
		Size:    len(c.entries),
	}
}

// Clear removes all entries from cache.
func (c *QueryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.hits = 0
	c.misses = 0
}

// Run removes the expired entries periodically until the context is done.
func (c *QueryCache) Run(ctx context.Context) {
	interval := c.maxAge
	if interval < time.Second {
		interval = time.Second
	}
	tk := time.NewTicker(interval)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			c.mu.Lock()
			c.evict(c.now())
			c.mu.Unlock()
		}
	}
}

// evict removes expired entries. Must be called with the lock held.
func (c *QueryCache) evict(now time.Time) {
	for key, entry := range c.entries {
		if !now.Before(entry.expires) {
			delete(c.entries, key)
		}
	}
}

// evictOldest removes the oldest entry. Must be called with the lock held.
func (c *QueryCache) evictOldest() {
	var (
		oldestKey string
		oldest    time.Time
	)
	for key, entry := range c.entries {
		if oldestKey == "" || entry.created.Before(oldest) {
			oldestKey = key
			oldest = entry.created
		}
	}
	delete(c.entries, oldestKey)
}

// CacheStats provides cache performance metrics.
type CacheStats struct {
	Hits    int64
	Misses  int64
	HitRate float64
	Size    int
}
