// Package cache provides the render cache: compiled renderers keyed by entry
// view identity, each carrying the set of identities it was built from.
package cache

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Cache maps keys to values tagged with dependency sets. It is safe for
// concurrent use; concurrent Puts for one key resolve as last writer wins.
type Cache[T any] struct {
	entries map[string]*Entry[T]
	mutex   sync.RWMutex
	// generation advances on every Invalidate, under mutex.
	generation uint64

	// Statistics tracking (atomic for thread safety)
	hits          int64
	misses        int64
	stores        int64
	invalidations int64
}

// Entry is an immutable cache record. Updates replace it wholesale.
type Entry[T any] struct {
	Key          string
	Value        T
	Dependencies map[string]struct{}
	CreatedAt    time.Time
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries       int   `json:"entries"`
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Stores        int64 `json:"stores"`
	Invalidations int64 `json:"invalidations"`
}

// HitRate returns hits over lookups, or 0 before the first lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// New creates an empty cache.
func New[T any]() *Cache[T] {
	return &Cache[T]{entries: make(map[string]*Entry[T])}
}

// Get retrieves the value stored under key.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mutex.RLock()
	entry, ok := c.entries[key]
	c.mutex.RUnlock()

	if !ok {
		atomic.AddInt64(&c.misses, 1)
		var zero T
		return zero, false
	}
	atomic.AddInt64(&c.hits, 1)
	return entry.Value, true
}

// Put stores value under key with its dependency set. key is always a
// dependency of itself.
func (c *Cache[T]) Put(key string, value T, deps []string) {
	entry := newEntry(key, value, deps)

	c.mutex.Lock()
	c.entries[key] = entry
	c.mutex.Unlock()
	atomic.AddInt64(&c.stores, 1)
}

// Generation returns the current invalidation generation. Capture it before
// building a value and hand it to PutIfCurrent.
func (c *Cache[T]) Generation() uint64 {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.generation
}

// PutIfCurrent stores value like Put unless an Invalidate ran after gen was
// captured, in which case the value may be built from stale sources and is
// dropped. It reports whether the value was stored.
func (c *Cache[T]) PutIfCurrent(key string, value T, deps []string, gen uint64) bool {
	entry := newEntry(key, value, deps)

	c.mutex.Lock()
	if c.generation != gen {
		c.mutex.Unlock()
		return false
	}
	c.entries[key] = entry
	c.mutex.Unlock()
	atomic.AddInt64(&c.stores, 1)
	return true
}

func newEntry[T any](key string, value T, deps []string) *Entry[T] {
	set := make(map[string]struct{}, len(deps)+1)
	set[key] = struct{}{}
	for _, d := range deps {
		set[d] = struct{}{}
	}
	return &Entry[T]{
		Key:          key,
		Value:        value,
		Dependencies: set,
		CreatedAt:    time.Now(),
	}
}

// Invalidate removes every entry whose dependency set contains changed and
// returns the removed keys in sorted order.
func (c *Cache[T]) Invalidate(changed string) []string {
	c.mutex.Lock()
	c.generation++
	var removed []string
	for key, entry := range c.entries {
		if _, ok := entry.Dependencies[changed]; ok {
			delete(c.entries, key)
			removed = append(removed, key)
		}
	}
	c.mutex.Unlock()

	atomic.AddInt64(&c.invalidations, int64(len(removed)))
	sort.Strings(removed)
	return removed
}

// Len returns the number of entries.
func (c *Cache[T]) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.entries)
}

// Dependencies returns the sorted dependency set recorded for key.
func (c *Cache[T]) Dependencies(key string) ([]string, bool) {
	c.mutex.RLock()
	entry, ok := c.entries[key]
	c.mutex.RUnlock()
	if !ok {
		return nil, false
	}

	deps := make([]string, 0, len(entry.Dependencies))
	for d := range entry.Dependencies {
		deps = append(deps, d)
	}
	sort.Strings(deps)
	return deps, true
}

// Stats returns current counters.
func (c *Cache[T]) Stats() Stats {
	return Stats{
		Entries:       c.Len(),
		Hits:          atomic.LoadInt64(&c.hits),
		Misses:        atomic.LoadInt64(&c.misses),
		Stores:        atomic.LoadInt64(&c.stores),
		Invalidations: atomic.LoadInt64(&c.invalidations),
	}
}
