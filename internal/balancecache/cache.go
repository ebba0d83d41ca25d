// Package balancecache provides an in-memory key-value cache of last-known
// transaction balances. Entries are a performance hint, never the source of
// truth: callers must treat a missing key as the steady-state case.
package balancecache

import (
	"strings"
	"sync"
	"time"
)

type entry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Cache is a thread-safe in-memory cache with optional per-entry TTL.
type Cache struct {
	mu    sync.RWMutex
	items map[string]entry
	done  chan struct{}
	once  sync.Once
}

// New creates a cache. If cleanupInterval is positive, a background janitor
// removes expired entries on that interval; expiry is best-effort either way,
// Get never returns an expired value.
func New(cleanupInterval time.Duration) *Cache {
	c := &Cache{
		items: make(map[string]entry),
		done:  make(chan struct{}),
	}

	if cleanupInterval > 0 {
		go c.cleanup(cleanupInterval)
	}

	return c
}

// Get retrieves a value from the cache. Returns false if not found or expired.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.items[key]
	if !ok || e.expired(time.Now()) {
		return "", false
	}

	return e.value, true
}

// Set stores a value. A positive ttl schedules automatic expiry;
// ttl <= 0 stores the value without expiry.
func (c *Cache) Set(key, value string, ttl time.Duration) {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = entry{value: value, expiresAt: expiresAt}
}

// Delete removes a value from the cache.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}

// ClearByPrefix removes every entry whose key starts with prefix.
func (c *Cache) ClearByPrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k := range c.items {
		if strings.HasPrefix(k, prefix) {
			delete(c.items, k)
		}
	}
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// Close stops the janitor goroutine. The cache stays usable after Close.
func (c *Cache) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Cache) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for k, e := range c.items {
				if e.expired(now) {
					delete(c.items, k)
				}
			}
			c.mu.Unlock()
		}
	}
}
