package robots

import (
	"context"
	"sync"
	"time"
)

// Entry is a fetched robots.txt response as stored in a Cache.
type Entry struct {
	StatusCode int    `json:"status"`
	Body       []byte `json:"body"`
}

// Cache stores robots.txt responses per origin.
type Cache interface {
	Get(ctx context.Context, origin string) (Entry, bool, error)
	Set(ctx context.Context, origin string, e Entry, ttl time.Duration) error
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type memoryEntry struct {
	entry   Entry
	expires time.Time
}

// MemoryCache is a process-local TTL cache.
type MemoryCache struct {
	mu      sync.Mutex
	clock   Clock
	entries map[string]memoryEntry
}

// NewMemoryCache builds an empty MemoryCache.
func NewMemoryCache(clock Clock) *MemoryCache {
	return &MemoryCache{clock: clock, entries: make(map[string]memoryEntry)}
}

// Get implements Cache. Expired entries are evicted on read.
func (c *MemoryCache) Get(_ context.Context, origin string) (Entry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[origin]
	if !ok {
		return Entry{}, false, nil
	}
	if !c.clock.Now().Before(e.expires) {
		delete(c.entries, origin)
		return Entry{}, false, nil
	}
	return e.entry, true, nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, origin string, e Entry, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[origin] = memoryEntry{entry: e, expires: c.clock.Now().Add(ttl)}
	return nil
}
