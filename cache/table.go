// Package cache provides a concurrent, insert-only table for objects that
// must exist at most once per key and live as long as the table.
//
// Keys are hashed and compared by caller-supplied functions, so the hash
// and the equality of a key may follow different rules (for example a
// content hash with identity equality). Values are stored by pointer and
// never removed or moved, so a pointer returned by the table stays valid
// for the table's lifetime.
//
// # Thread Safety
//
// Table is safe for concurrent use. It must not be copied after creation.
package cache

import (
	"sync"
	"sync/atomic"
)

const (
	// ShardCount is the number of shards per table.
	// Must be a power of 2 for fast modulo via bitwise AND.
	ShardCount = 16

	shardMask = ShardCount - 1
)

// Hasher computes the hash of a key. Keys that are equal must hash equally.
type Hasher[K any] func(K) uint64

// Equal reports whether two keys denote the same entry.
type Equal[K any] func(a, b K) bool

// Table maps keys to values created on first request.
//
// Entries with the same hash are chained in a bucket and told apart by the
// Equal function. A shard lock is held while a value is created, so two
// goroutines asking for the same key never both run the create function.
type Table[K any, V any] struct {
	shards [ShardCount]*tableShard[K, V]
	hash   Hasher[K]
	equal  Equal[K]

	// Statistics (atomic for lock-free reads)
	hits   atomic.Uint64
	misses atomic.Uint64
}

// tableShard is a single shard of the table.
type tableShard[K any, V any] struct {
	mu      sync.RWMutex
	buckets map[uint64][]tableEntry[K, V]
	count   int
}

// tableEntry holds a key and its value.
type tableEntry[K any, V any] struct {
	key   K
	value *V
}

// NewTable creates an empty table.
func NewTable[K any, V any](hash Hasher[K], equal Equal[K]) *Table[K, V] {
	t := &Table[K, V]{
		hash:  hash,
		equal: equal,
	}
	for i := range t.shards {
		t.shards[i] = &tableShard[K, V]{
			buckets: make(map[uint64][]tableEntry[K, V]),
		}
	}
	return t
}

// find returns the value for key in the bucket with hash h.
// The caller must hold the shard lock.
func (s *tableShard[K, V]) find(h uint64, key K, equal Equal[K]) (*V, bool) {
	for _, e := range s.buckets[h] {
		if equal(e.key, key) {
			return e.value, true
		}
	}
	return nil, false
}

// Get returns the value for key, if present.
func (t *Table[K, V]) Get(key K) (*V, bool) {
	h := t.hash(key)
	shard := t.shards[h&shardMask]

	shard.mu.RLock()
	v, ok := shard.find(h, key, t.equal)
	shard.mu.RUnlock()
	return v, ok
}

// GetOrCreate returns the value for key, creating it with create if absent.
// It reports whether the value was created by this call.
//
// This method implements the "get or create" pattern with double-check locking:
//  1. Fast path: RLock, look up, return if found
//  2. Slow path: Lock, look up again, create and insert if still absent
//
// create runs with the shard lock held. If create panics, nothing is
// inserted and the lock is released.
func (t *Table[K, V]) GetOrCreate(key K, create func() *V) (*V, bool) {
	h := t.hash(key)
	shard := t.shards[h&shardMask]

	// Fast path: read lock
	shard.mu.RLock()
	if v, ok := shard.find(h, key, t.equal); ok {
		shard.mu.RUnlock()
		t.hits.Add(1)
		return v, false
	}
	shard.mu.RUnlock()

	// Slow path: write lock with double-check
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if v, ok := shard.find(h, key, t.equal); ok {
		t.hits.Add(1)
		return v, false
	}

	v := create()
	shard.buckets[h] = append(shard.buckets[h], tableEntry[K, V]{key: key, value: v})
	shard.count++
	t.misses.Add(1)
	return v, true
}

// Len returns the total number of entries across all shards.
func (t *Table[K, V]) Len() int {
	total := 0
	for _, shard := range t.shards {
		shard.mu.RLock()
		total += shard.count
		shard.mu.RUnlock()
	}
	return total
}

// ShardLen returns the number of entries in each shard.
// Useful for debugging load distribution.
func (t *Table[K, V]) ShardLen() [ShardCount]int {
	var lens [ShardCount]int
	for i, shard := range t.shards {
		shard.mu.RLock()
		lens[i] = shard.count
		shard.mu.RUnlock()
	}
	return lens
}

// Range calls fn for every entry, one shard at a time, holding that shard's
// read lock. fn must not call back into the table for the same shard with
// GetOrCreate. Iteration stops when fn returns false.
func (t *Table[K, V]) Range(fn func(key K, value *V) bool) {
	for _, shard := range t.shards {
		shard.mu.RLock()
		for _, bucket := range shard.buckets {
			for _, e := range bucket {
				if !fn(e.key, e.value) {
					shard.mu.RUnlock()
					return
				}
			}
		}
		shard.mu.RUnlock()
	}
}

// Stats returns the number of lookups that found an entry and the number
// that created one. The two values are read independently.
func (t *Table[K, V]) Stats() (hits, misses uint64) {
	return t.hits.Load(), t.misses.Load()
}
