package fs

import (
	"fmt"
	"sync"
)

/// BLOCK_CACHE_SIZE bounds the live cache; a miss that would grow it
/// further must first evict an entry.
const BLOCK_CACHE_SIZE = 16

/// BlockCacheEntry_t is one cached block: its buffer, whether the buffer
/// has unwritten modifications, and the device it was loaded from.
type BlockCacheEntry_t struct {
	mu    sync.Mutex
	id    int
	dev   BlockDevice_i
	buf   [BLOCK_SZ]byte
	dirty bool
	refs  int // live outside holders, guarded by the manager's mu; the manager itself is not counted
}

/// Sync writes the buffer back iff dirty and clears the dirty flag.
func (e *BlockCacheEntry_t) Sync() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.syncLocked()
}

func (e *BlockCacheEntry_t) syncLocked() {
	if e.dirty {
		e.dev.WriteBlock(e.id, &e.buf)
		e.dirty = false
	}
}

/// Read invokes f with a read-only view into the buffer at the given
/// offset; it never marks the entry dirty.
func (e *BlockCacheEntry_t) Read(offset int, f func(buf []byte)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	f(e.buf[offset:])
}

/// Modify invokes f with a mutable view into the buffer at the given
/// offset and marks the entry dirty -- the dirty flag is set exactly when
/// a mutation scope was opened, never merely on fetch.
func (e *BlockCacheEntry_t) Modify(offset int, f func(buf []byte)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	f(e.buf[offset:])
	e.dirty = true
}

/// BlockCache_t is the coarse-locked manager of a bounded, insertion-order
/// pool of cached blocks.
type BlockCache_t struct {
	mu      sync.Mutex
	order   []*BlockCacheEntry_t // insertion order, index 0 is oldest
	byBlock map[int]*BlockCacheEntry_t
}

/// NewBlockCache returns an empty manager.
func NewBlockCache() *BlockCache_t {
	return &BlockCache_t{byBlock: make(map[int]*BlockCacheEntry_t)}
}

/// GetBlockCache returns the cached entry for id, loading it from dev on a
/// miss. On a miss with a full pool it evicts the oldest entry that is not
/// currently held by anyone else; if every entry is pinned, that is a
/// fatal resource-exhaustion condition.
func (c *BlockCache_t) GetBlockCache(id int, dev BlockDevice_i) *BlockCacheEntry_t {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.byBlock[id]; ok {
		e.refs++
		return e
	}
	if len(c.order) >= BLOCK_CACHE_SIZE {
		c.evictLocked()
	}
	e := &BlockCacheEntry_t{id: id, dev: dev, refs: 1}
	dev.ReadBlock(id, &e.buf)
	c.order = append(c.order, e)
	c.byBlock[id] = e
	return e
}

// evictLocked drops the first entry with no outside holders. Caller holds
// c.mu.
func (c *BlockCache_t) evictLocked() {
	for i, e := range c.order {
		if e.refs == 0 {
			e.Sync()
			c.order = append(c.order[:i], c.order[i+1:]...)
			delete(c.byBlock, e.id)
			return
		}
	}
	panic(fmt.Sprintf("fs: block cache exhausted, all %d entries pinned", len(c.order)))
}

/// Release drops this holder's reference, obtained from GetBlockCache.
func (c *BlockCache_t) Release(e *BlockCacheEntry_t) {
	c.mu.Lock()
	e.refs--
	c.mu.Unlock()
}

/// SyncAll syncs every live entry, as block_cache_sync_all does before a
/// remount in the original design.
func (c *BlockCache_t) SyncAll() {
	c.mu.Lock()
	entries := make([]*BlockCacheEntry_t, len(c.order))
	copy(entries, c.order)
	c.mu.Unlock()
	for _, e := range entries {
		e.Sync()
	}
}
