// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package cache

import (
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is returned when adding to a closed registry.
var ErrClosed = errors.New("cache: registry closed")

// Key identifies what an item can be reused for. Keys with equal hashes are
// compared with IsCompatible; compatible keys must hash equally.
type Key interface {
	IsCompatible(other Key) bool
	Hash() uint64
}

// Item is an object pooled by a Registry.
type Item interface {
	Key() Key

	// InUse reports whether the item has an owner or pending work. Items in
	// use are never returned by Fetch, removed or evicted.
	InUse() bool

	// SizeBytes is the memory held by the item, sampled when it is added.
	SizeBytes() int64
}

// Destroyer is implemented by items holding resources. Destroy is called
// once the registry drops a not-in-use item.
type Destroyer interface {
	Destroy()
}

// Config configures a Registry.
type Config struct {
	// MaxBytes bounds the total size of pooled items. Not-in-use items are
	// evicted, least recently used first, when an Add exceeds it.
	// Zero means unlimited.
	MaxBytes int64
}

// Stats contains registry statistics.
type Stats struct {
	// Entries is the number of pooled items.
	Entries int
	// Bytes is the total size of pooled items.
	Bytes int64
	// MaxBytes is the configured budget, zero if unlimited.
	MaxBytes int64
	// Hits and Misses count lookups that found or did not find items.
	Hits   uint64
	Misses uint64
	// Evictions is the number of items dropped to stay within MaxBytes.
	Evictions uint64
}

// String returns a human-readable form of s.
func (s Stats) String() string {
	return fmt.Sprintf("Cache[%d entries, %d/%d bytes, %d hits, %d misses, %d evictions]",
		s.Entries, s.Bytes, s.MaxBytes, s.Hits, s.Misses, s.Evictions)
}

// entry is a pooled item with its key and LRU position.
type entry[T Item] struct {
	item T
	key  Key
	hash uint64
	size int64
	node *lruNode[*entry[T]]
}

// Registry pools items by key so they can be reused once no longer in use.
//
// Every operation runs under one mutex. Registry is safe for concurrent use
// and must not be copied after creation.
type Registry[T interface {
	comparable
	Item
}] struct {
	mu       sync.Mutex
	buckets  map[uint64][]*entry[T]
	items    map[T]*entry[T]
	lru      lruList[*entry[T]]
	bytes    int64
	maxBytes int64

	hits      uint64
	misses    uint64
	evictions uint64

	closed bool
}

// New creates an empty registry.
func New[T interface {
	comparable
	Item
}](cfg Config) *Registry[T] {
	return &Registry[T]{
		buckets:  make(map[uint64][]*entry[T]),
		items:    make(map[T]*entry[T]),
		maxBytes: max(cfg.MaxBytes, 0),
	}
}

// Fetch returns every pooled item compatible with key and not in use, least
// recently added first. The returned items are marked as recently used.
func (r *Registry[T]) Fetch(key Key) []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []T
	for _, e := range r.buckets[key.Hash()] {
		if e.key.IsCompatible(key) && !e.item.InUse() {
			out = append(out, e.item)
			r.lru.MoveToFront(e.node)
		}
	}
	if len(out) == 0 {
		r.misses++
	} else {
		r.hits++
	}
	return out
}

// FetchOne returns one pooled item compatible with key and not in use.
func (r *Registry[T]) FetchOne(key Key) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.buckets[key.Hash()] {
		if e.key.IsCompatible(key) && !e.item.InUse() {
			r.lru.MoveToFront(e.node)
			r.hits++
			return e.item, true
		}
	}
	r.misses++
	var zero T
	return zero, false
}

// Claim offers claim every pooled item compatible with key and not in use,
// least recently added first, and returns the first item claim accepts.
// claim runs under the registry lock, so an accepted item can be marked in
// use without another caller claiming it too. claim must not call back into
// the registry.
func (r *Registry[T]) Claim(key Key, claim func(T) bool) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.buckets[key.Hash()] {
		if e.key.IsCompatible(key) && !e.item.InUse() && claim(e.item) {
			r.lru.MoveToFront(e.node)
			r.hits++
			return e.item, true
		}
	}
	r.misses++
	var zero T
	return zero, false
}

// Add pools item under its current key. Adding an item that is already
// pooled refreshes its key and size. Items evicted to honor MaxBytes are
// destroyed before Add returns.
func (r *Registry[T]) Add(item T) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}

	if e, ok := r.items[item]; ok {
		r.unlinkLocked(e)
	}
	key := item.Key()
	e := &entry[T]{item: item, key: key, hash: key.Hash(), size: item.SizeBytes()}
	e.node = r.lru.PushFront(e)
	r.buckets[e.hash] = append(r.buckets[e.hash], e)
	r.items[item] = e
	r.bytes += e.size

	evicted := r.evictLocked(e)
	r.mu.Unlock()

	destroy(evicted)
	return nil
}

// Remove drops item from the registry without destroying it.
// It reports whether the item was pooled.
func (r *Registry[T]) Remove(item T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.items[item]
	if ok {
		r.unlinkLocked(e)
	}
	return ok
}

// RemoveAllNotInUseMatching drops and destroys every item compatible with
// key that is not in use. It returns the number of items removed.
func (r *Registry[T]) RemoveAllNotInUseMatching(key Key) int {
	r.mu.Lock()
	var removed []T
	for _, e := range r.buckets[key.Hash()] {
		if e.key.IsCompatible(key) && !e.item.InUse() {
			removed = append(removed, e.item)
		}
	}
	for _, it := range removed {
		r.unlinkLocked(r.items[it])
	}
	r.mu.Unlock()

	destroy(removed)
	return len(removed)
}

// Contains reports whether item is pooled.
func (r *Registry[T]) Contains(item T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.items[item]
	return ok
}

// Len returns the number of pooled items.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.items)
}

// Stats returns registry statistics.
func (r *Registry[T]) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Stats{
		Entries:   len(r.items),
		Bytes:     r.bytes,
		MaxBytes:  r.maxBytes,
		Hits:      r.hits,
		Misses:    r.misses,
		Evictions: r.evictions,
	}
}

// Close empties the registry and destroys every item not in use. Items in
// use are dropped without being destroyed; their owners are responsible for
// them. Close is idempotent.
func (r *Registry[T]) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true

	var idle []T
	for it := range r.items {
		if !it.InUse() {
			idle = append(idle, it)
		}
	}
	r.buckets = make(map[uint64][]*entry[T])
	r.items = make(map[T]*entry[T])
	r.lru = lruList[*entry[T]]{}
	r.bytes = 0
	r.mu.Unlock()

	destroy(idle)
}

// Closed reports whether Close was called.
func (r *Registry[T]) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.closed
}

// evictLocked drops least recently used items that are not in use until the
// registry fits its budget. keep is never evicted.
// Caller must hold r.mu.
func (r *Registry[T]) evictLocked(keep *entry[T]) []T {
	if r.maxBytes == 0 || r.bytes <= r.maxBytes {
		return nil
	}
	var evicted []T
	for n := r.lru.Back(); n != nil && r.bytes > r.maxBytes; {
		e := n.value
		n = n.Prev()
		if e == keep || e.item.InUse() {
			continue
		}
		r.unlinkLocked(e)
		r.evictions++
		evicted = append(evicted, e.item)
	}
	return evicted
}

// unlinkLocked removes e from every index.
// Caller must hold r.mu.
func (r *Registry[T]) unlinkLocked(e *entry[T]) {
	bucket := r.buckets[e.hash]
	for i, other := range bucket {
		if other == e {
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(r.buckets, e.hash)
	} else {
		r.buckets[e.hash] = bucket
	}
	delete(r.items, e.item)
	r.lru.Remove(e.node)
	r.bytes -= e.size
}

func destroy[T any](items []T) {
	for _, it := range items {
		if d, ok := any(it).(Destroyer); ok {
			d.Destroy()
		}
	}
}
