// Package cache provides the structural memo table shared by every compiler stage. Keys are
// comparable composite structs whose components are descriptor pointers (reference identity)
// or content fingerprints; each entry carries a cleanup func run exactly once when the entry is
// evicted, which is where native handles are released and observer subscriptions dropped.
package cache

import "golang.org/x/exp/maps"

// Cleanup is run once when an entry leaves the cache.
type Cleanup func()

type entry[V any] struct {
	value   V
	cleanup Cleanup
}

// Cache is a composite-key structural cache. It is not safe for concurrent use.
type Cache[K comparable, V any] struct {
	entries map[K]*entry[V]
	hits    uint64
	misses  uint64
}

// New creates an empty Cache.
func New[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{entries: make(map[K]*entry[V])}
}

// Get returns the value stored under key.
//
// Parameters:
//   - key: the composite key to look up
//
// Returns:
//   - V: the cached value, or the zero value on a miss
//   - bool: true if the key was present
func (c *Cache[K, V]) Get(key K) (V, bool) {
	e, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	return e.value, true
}

// Put stores value under key. An entry already stored under key is evicted first, running its cleanup.
//
// Parameters:
//   - key: the composite key
//   - value: the value to store
//   - cleanup: optional func run when the entry is evicted
func (c *Cache[K, V]) Put(key K, value V, cleanup Cleanup) {
	c.Evict(key)
	c.entries[key] = &entry[V]{value: value, cleanup: cleanup}
}

// GetOrCreate returns the value under key, calling create on a miss and storing its result.
// Nothing is stored when create fails.
func (c *Cache[K, V]) GetOrCreate(key K, create func() (V, Cleanup, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, cleanup, err := create()
	if err != nil {
		var zero V
		return zero, err
	}
	c.entries[key] = &entry[V]{value: v, cleanup: cleanup}
	return v, nil
}

// Evict removes key and runs its cleanup.
//
// Returns:
//   - bool: true if an entry was removed
func (c *Cache[K, V]) Evict(key K) bool {
	e, ok := c.entries[key]
	if !ok {
		return false
	}
	delete(c.entries, key)
	if e.cleanup != nil {
		e.cleanup()
	}
	return true
}

// EvictFunc removes every entry for which match returns true and runs their cleanups.
//
// Parameters:
//   - match: the predicate selecting entries to evict
//
// Returns:
//   - int: the number of evicted entries
func (c *Cache[K, V]) EvictFunc(match func(key K, value V) bool) int {
	var cleanups []Cleanup
	n := 0
	maps.DeleteFunc(c.entries, func(k K, e *entry[V]) bool {
		if !match(k, e.value) {
			return false
		}
		n++
		if e.cleanup != nil {
			cleanups = append(cleanups, e.cleanup)
		}
		return true
	})
	// cleanups may re-enter the cache, so they run after the sweep
	for _, fn := range cleanups {
		fn()
	}
	return n
}

// Purge evicts every entry.
func (c *Cache[K, V]) Purge() {
	old := c.entries
	c.entries = make(map[K]*entry[V])
	for _, e := range old {
		if e.cleanup != nil {
			e.cleanup()
		}
	}
}

// Keys returns a snapshot of the stored keys in unspecified order.
func (c *Cache[K, V]) Keys() []K {
	keys := make([]K, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}

func (c *Cache[K, V]) Len() int {
	return len(c.entries)
}

// Stats returns the hit and miss counters.
func (c *Cache[K, V]) Stats() (hits, misses uint64) {
	return c.hits, c.misses
}
