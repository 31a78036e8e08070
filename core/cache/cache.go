// Package cache is a small in-process TTL map for slowly-changing reference data.
//
// There is no size bound and no LRU: entries live until they expire or are
// invalidated after a write. Losing the cache only costs a refetch.
package cache

import (
	"strings"
	"sync"
	"time"
)

type entry struct {
	value    interface{}
	storedAt time.Time
	ttl      time.Duration
}

type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func New() *Cache {
	return &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// NewWithClock is New with a custom clock; tests use it to move time forward.
func NewWithClock(now func() time.Time) *Cache {
	c := New()
	c.now = now
	return c
}

// Set stores value under key for ttl. A nil *Cache is a valid, always-missing cache.
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, storedAt: c.now(), ttl: ttl}
}

// Get returns the value stored under key if it has not outlived its ttl.
// Expired entries are evicted.
func (c *Cache) Get(key string) (interface{}, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.storedAt) > e.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Invalidate evicts key.
func (c *Cache) Invalidate(key string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// InvalidatePattern evicts every key containing substr.
func (c *Cache) InvalidatePattern(substr string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.Contains(key, substr) {
			delete(c.entries, key)
		}
	}
}

// Len is the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Fetch returns the cached value for key, or calls load and caches its result for ttl.
// Errors are returned as-is and never cached.
func Fetch[T any](c *Cache, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	c.Set(key, v, ttl)
	return v, nil
}

// TTLs are the three cache tiers.
type TTLs struct {
	Short  time.Duration // frequently-changing data: submissions, clarity calls
	Medium time.Duration // enrollments, weeks, students, whitelist
	Long   time.Duration // rarely-changing reference data: tracks, cohorts
}

func DefaultTTLs() TTLs {
	return TTLs{Short: 30 * time.Second, Medium: 2 * time.Minute, Long: 5 * time.Minute}
}
