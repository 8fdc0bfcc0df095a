// Package cache is a small in-process TTL cache for computed reports.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache maps string keys to values of one type, each with its own expiry
type Cache[V any] struct {
	items map[string]entry[V]
	mutex sync.RWMutex
	now   func() time.Time
}

// New creates an empty cache
func New[V any]() *Cache[V] {
	return &Cache[V]{
		items: make(map[string]entry[V]),
		now:   time.Now,
	}
}

// Get returns the value stored under key if it has not expired.
// Expired entries are removed on access.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mutex.RLock()
	item, ok := c.items[key]
	c.mutex.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if !c.now().Before(item.expiresAt) {
		c.mutex.Lock()
		// another writer may have refreshed it in between
		if current, ok := c.items[key]; ok && !c.now().Before(current.expiresAt) {
			delete(c.items, key)
		}
		c.mutex.Unlock()
		return zero, false
	}
	return item.value, true
}

// Set stores value under key for ttl. A non-positive ttl stores nothing.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		c.Delete(key)
		return
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.items[key] = entry[V]{value: value, expiresAt: c.now().Add(ttl)}
}

// Delete removes key
func (c *Cache[V]) Delete(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.items, key)
}

// Clear removes every entry
func (c *Cache[V]) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.items = make(map[string]entry[V])
}

// Len counts stored entries, expired or not
func (c *Cache[V]) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.items)
}
