// Package cache provides the read-through LRU the Delivery Store fronts
// itself with: a fixed-capacity cache of the most-recently-touched records,
// evicted by recency rather than time-to-live.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache is a generic interface over a size-bound, thread-safe cache.
// Implementations evict by recency (LRU), not by expiration.
type Cache[V any] interface {
	// Get retrieves a value from the cache.
	Get(key string) (V, bool)

	// Set stores a value in the cache, evicting the least-recently-used
	// entry if the cache is at capacity.
	Set(key string, value V)

	// GetOrSet atomically gets a value or computes and caches it if not
	// found. compute is only called on a miss.
	GetOrSet(key string, compute func() (V, error)) (V, error)

	// Delete removes a specific key from the cache.
	Delete(key string)

	// Clear removes all items from the cache.
	Clear()

	// Size returns the number of items currently in the cache.
	Size() int
}

// LRUCache is a thread-safe, size-bound LRU cache backed by
// hashicorp/golang-lru.
type LRUCache[V any] struct {
	cache *lru.Cache[string, V]
}

// NewLRUCache creates an LRU cache holding up to capacity entries.
func NewLRUCache[V any](capacity int) (*LRUCache[V], error) {
	c, err := lru.New[string, V](capacity)
	if err != nil {
		return nil, err
	}
	return &LRUCache[V]{cache: c}, nil
}

func (c *LRUCache[V]) Get(key string) (V, bool) {
	return c.cache.Get(key)
}

func (c *LRUCache[V]) Set(key string, value V) {
	c.cache.Add(key, value)
}

// GetOrSet is not protected by a single atomic critical section across the
// compute call: two concurrent misses for the same key may both compute,
// with the last Add winning. compute is expected to be idempotent (e.g.
// re-reading the same record from the backing store), which is the only
// way this cache is used.
func (c *LRUCache[V]) GetOrSet(key string, compute func() (V, error)) (V, error) {
	if value, ok := c.cache.Get(key); ok {
		return value, nil
	}

	value, err := compute()
	if err != nil {
		var zero V
		return zero, err
	}

	c.cache.Add(key, value)
	return value, nil
}

func (c *LRUCache[V]) Delete(key string) {
	c.cache.Remove(key)
}

func (c *LRUCache[V]) Clear() {
	c.cache.Purge()
}

func (c *LRUCache[V]) Size() int {
	return c.cache.Len()
}
