// Package cache implements the pixmap and palette caches shared by the
// display channel and the GLZ/image decoders (spec.md section 4.D): an
// ID-keyed, ref-counted store bounded by a byte budget, with a blocking
// Get for consumers that must wait on an entry a draw record references
// before it has arrived.
package cache

import (
	"sync"

	"github.com/breeze-rmm/spicec/internal/spiceerr"
)

// Entry is one cached value plus its accounting.
type Entry struct {
	ID       uint64
	Data     any
	Size     int
	refCount int
}

// Cache is a generic ID-keyed cache bounded by total byte size, with
// condition-variable blocking gets for consumers racing an in-flight
// insert — generalized from the teacher's fixed-shape image/buffer
// sync.Pool into a keyed, budget-tracked, ref-counted store.
type Cache struct {
	mu      sync.Mutex
	cond    *sync.Cond
	entries map[uint64]*Entry
	budget  int
	used    int
	aborted bool
}

// New creates a Cache with the given byte budget. A budget of 0 means
// unbounded.
func New(budgetBytes int) *Cache {
	c := &Cache{
		entries: make(map[uint64]*Entry),
		budget:  budgetBytes,
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Put inserts a fresh entry with refCount 1, evicting refCount-0 entries
// until there is budget for it, or, if id is already present, increments
// its refCount rather than replacing it — per spec.md section 4.D, "a
// second add with the same id increments the refcount rather than
// replacing". It wakes any goroutine blocked in Get for this ID.
func (c *Cache) Put(id uint64, data any, size int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[id]; ok {
		old.refCount++
		c.cond.Broadcast()
		return nil
	}

	if c.budget > 0 {
		for c.used+size > c.budget {
			if !c.evictOneLocked() {
				return spiceerr.Resource("cache: budget exceeded, no evictable entry for id %d", id)
			}
		}
	}

	c.entries[id] = &Entry{ID: id, Data: data, Size: size, refCount: 1}
	c.used += size
	c.cond.Broadcast()
	return nil
}

// evictOneLocked removes one refCount==0 entry. Returns false if none
// exists (every cached entry is in use).
func (c *Cache) evictOneLocked() bool {
	for id, e := range c.entries {
		if e.refCount == 0 {
			c.used -= e.Size
			delete(c.entries, id)
			return true
		}
	}
	return false
}

// Get returns the entry for id, incrementing its ref count, blocking
// until it appears or the cache is aborted. A draw record that arrives
// before its referenced pixmap (legal per the wire ordering) waits here
// rather than failing.
func (c *Cache) Get(id uint64) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		if e, ok := c.entries[id]; ok {
			e.refCount++
			return e.Data, nil
		}
		if c.aborted {
			return nil, spiceerr.Cancelled("cache: aborted while waiting for id %d", id)
		}
		c.cond.Wait()
	}
}

// TryGet returns the entry for id without blocking, or ok=false.
func (c *Cache) TryGet(id uint64) (data any, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	e.refCount++
	return e.Data, true
}

// Release decrements id's ref count, making it eligible for eviction once
// it reaches zero. Releasing an id not held is a no-op.
func (c *Cache) Release(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[id]; ok && e.refCount > 0 {
		e.refCount--
	}
}

// Evict forcibly removes id regardless of ref count, per
// SPICE_MSG_DISPLAY_INVAL_LIST/INVAL_PALETTE.
func (c *Cache) Evict(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[id]; ok {
		c.used -= e.Size
		delete(c.entries, id)
	}
}

// Clear evicts everything, per SPICE_MSG_DISPLAY_INVAL_ALL_PIXMAPS /
// INVAL_ALL_PALETTES.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uint64]*Entry)
	c.used = 0
}

// Abort wakes every blocked Get with an error, used when the channel
// disconnects while a draw dispatch is waiting on a cache miss.
func (c *Cache) Abort() {
	c.mu.Lock()
	c.aborted = true
	c.cond.Broadcast()
	c.mu.Unlock()
}

// Reset clears the aborted flag and all entries, for reuse after a
// reconnect re-establishes the channel (caches are not valid across a
// non-migration reconnect per spec.md section 4.D).
func (c *Cache) Reset() {
	c.mu.Lock()
	c.aborted = false
	c.entries = make(map[uint64]*Entry)
	c.used = 0
	c.mu.Unlock()
}
