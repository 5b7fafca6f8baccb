// Package dedup provides the rolling-window filters in front of the scan
// gateway: a short raw-input debounce and a longer duplicate-suppression
// window. Both are bounded in-memory TTL maps.
package dedup

import (
	"sync"
	"time"
)

// Cache maps identifier -> last accepted instant. Check stamps the identifier
// atomically on accept so two near-simultaneous scans cannot both pass.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]time.Time
	maxEntries int
}

// New creates a cache capped at maxEntries; the cap should track the active
// student count. Entries past their window are evicted lazily.
func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	return &Cache{
		entries:    make(map[string]time.Time),
		maxEntries: maxEntries,
	}
}

// Check reports whether the identifier may pass at now given the window.
// On accept the identifier is stamped before the lock is released.
func (c *Cache) Check(identifier string, now time.Time, window time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if last, ok := c.entries[identifier]; ok && now.Sub(last) < window {
		return false
	}
	if len(c.entries) >= c.maxEntries {
		c.evict(now, window)
	}
	c.entries[identifier] = now
	return true
}

// evict drops expired entries; if everything is fresh it drops the oldest so
// the map never exceeds the cap. Called with the lock held.
func (c *Cache) evict(now time.Time, window time.Duration) {
	var oldestKey string
	var oldest time.Time
	for k, t := range c.entries {
		if now.Sub(t) >= window {
			delete(c.entries, k)
			continue
		}
		if oldestKey == "" || t.Before(oldest) {
			oldestKey, oldest = k, t
		}
	}
	if len(c.entries) >= c.maxEntries && oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// Forget removes an identifier, releasing its window early. Used when a
// stamped scan ultimately fails to commit.
func (c *Cache) Forget(identifier string) {
	c.mu.Lock()
	delete(c.entries, identifier)
	c.mu.Unlock()
}

// Len returns the live entry count, exported as a gauge.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
