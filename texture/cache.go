// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package texture tracks GPU residency of decoded frame sequences under
// a caller-specified memory budget.
//
// The cache is keyed by viewport id: each viewport owns at most one
// resident frame-sequence texture. When an insert would push the total
// over budget, least recently used entries are evicted (and their GPU
// resources freed) until the new entry fits. A single entry larger than
// the whole budget is still accepted: availability is preferred over
// strict budget enforcement, so an oversized cine loop displays instead
// of being refused.
package texture

import (
	"container/list"
	"sync"
	"sync/atomic"
)

// bytesPerPixel is the normalized GPU footprint per pixel. Frames are
// uploaded as RGBA8 regardless of source bit depth.
const bytesPerPixel = 4

// DefaultBudgetBytes is the memory budget used when none is configured.
const DefaultBudgetBytes = 512 << 20 // 512 MiB

// FrameTexture is the GPU resource owned by a cache entry. The cache
// calls Destroy exactly once when an entry is evicted, replaced,
// deleted, or cleared, except through ClearWithoutDispose.
type FrameTexture interface {
	Destroy()
}

// Entry describes one resident frame-sequence texture.
type Entry struct {
	// Texture is the GPU resource. Ownership passes to the cache on Set.
	Texture FrameTexture

	// SeriesID identifies the source series, for diagnostics.
	SeriesID string

	// Width, Height and FrameCount describe the uploaded sequence and
	// determine its accounted size.
	Width      int
	Height     int
	FrameCount int
}

// SizeBytes returns the accounted GPU footprint of the entry:
// width * height * frameCount * 4, regardless of source bit depth.
func (e Entry) SizeBytes() int64 {
	return VRAMSizeBytes(e.Width, e.Height, e.FrameCount)
}

// VRAMSizeBytes returns the normalized GPU footprint of a frame
// sequence in bytes.
func VRAMSizeBytes(width, height, frameCount int) int64 {
	return int64(width) * int64(height) * int64(frameCount) * bytesPerPixel
}

// EvictedMeta describes an evicted entry, passed to the eviction
// callback for diagnostics.
type EvictedMeta struct {
	SeriesID   string
	Width      int
	Height     int
	FrameCount int
	SizeBytes  int64
}

// EvictionCallback is invoked after an entry has been evicted to make
// room and its GPU resource freed. It is not invoked for explicit
// Delete/Clear calls, nor when an oversized entry merely exceeds the
// budget on its own. Callbacks run outside the cache lock, so they may
// safely call back into the cache.
type EvictionCallback func(viewportID string, meta EvictedMeta)

// cacheEntry is the internal bookkeeping for one resident entry.
type cacheEntry struct {
	viewportID string
	entry      Entry
	size       int64
	element    *list.Element
}

// Stats contains cache statistics for monitoring.
type Stats struct {
	// Size is the current resident total in bytes.
	Size int64
	// Budget is the configured memory budget in bytes.
	Budget int64
	// Entries is the number of resident entries.
	Entries int
	// OverBudget reports whether a single oversized entry currently
	// exceeds the budget on its own.
	OverBudget bool
	// Hits, Misses and Evictions are cumulative counters.
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// ResidencyCache is a thread-safe LRU cache bounding the total GPU
// memory held by frame-sequence textures.
type ResidencyCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	lru     *list.List // front = most recently used
	size    int64
	budget  int64
	onEvict EvictionCallback

	// Statistics (atomic for zero-allocation reads)
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// NewResidencyCache creates a cache with the given budget in bytes.
// Budgets <= 0 fall back to DefaultBudgetBytes. The eviction callback
// may be nil.
func NewResidencyCache(budgetBytes int64, onEvict EvictionCallback) *ResidencyCache {
	if budgetBytes <= 0 {
		budgetBytes = DefaultBudgetBytes
	}
	return &ResidencyCache{
		entries: make(map[string]*cacheEntry),
		lru:     list.New(),
		budget:  budgetBytes,
		onEvict: onEvict,
	}
}

// Get returns the resident entry for a viewport and marks it most
// recently used. The second return is false when nothing is resident.
func (c *ResidencyCache) Get(viewportID string) (Entry, bool) {
	c.mu.Lock()
	ce, ok := c.entries[viewportID]
	if !ok {
		c.mu.Unlock()
		c.misses.Add(1)
		return Entry{}, false
	}
	c.lru.MoveToFront(ce.element)
	entry := ce.entry
	c.mu.Unlock()

	c.hits.Add(1)
	return entry, true
}

// Has reports whether an entry is resident without touching LRU order.
func (c *ResidencyCache) Has(viewportID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[viewportID]
	return ok
}

// Set inserts or replaces the entry for a viewport. A replaced entry's
// texture is freed first. Least recently used entries are then evicted
// until the new total fits the budget or only the new entry remains:
// a single oversized entry is always accepted, never rejected.
func (c *ResidencyCache) Set(viewportID string, entry Entry) {
	size := entry.SizeBytes()
	if size <= 0 {
		return
	}

	var replaced FrameTexture
	var evicted []*cacheEntry

	c.mu.Lock()
	if existing, ok := c.entries[viewportID]; ok {
		c.lru.Remove(existing.element)
		c.size -= existing.size
		delete(c.entries, viewportID)
		replaced = existing.entry.Texture
	}

	// Evict from the LRU tail until the new entry fits. Candidates are
	// snapshotted so callbacks never observe the cache mid-mutation.
	for c.size+size > c.budget && c.lru.Len() > 0 {
		elem := c.lru.Back()
		victim := elem.Value.(*cacheEntry)
		c.lru.Remove(elem)
		c.size -= victim.size
		delete(c.entries, victim.viewportID)
		evicted = append(evicted, victim)
	}

	ce := &cacheEntry{viewportID: viewportID, entry: entry, size: size}
	ce.element = c.lru.PushFront(ce)
	c.entries[viewportID] = ce
	c.size += size
	onEvict := c.onEvict
	c.mu.Unlock()

	if replaced != nil {
		replaced.Destroy()
	}
	for _, v := range evicted {
		c.evictions.Add(1)
		if v.entry.Texture != nil {
			v.entry.Texture.Destroy()
		}
		if onEvict != nil {
			onEvict(v.viewportID, EvictedMeta{
				SeriesID:   v.entry.SeriesID,
				Width:      v.entry.Width,
				Height:     v.entry.Height,
				FrameCount: v.entry.FrameCount,
				SizeBytes:  v.size,
			})
		}
	}
}

// DeleteAndDispose removes one entry and frees its texture immediately.
// Unknown ids are a no-op. The eviction callback does not fire.
func (c *ResidencyCache) DeleteAndDispose(viewportID string) {
	c.mu.Lock()
	ce, ok := c.entries[viewportID]
	if ok {
		c.lru.Remove(ce.element)
		c.size -= ce.size
		delete(c.entries, viewportID)
	}
	c.mu.Unlock()

	if ok && ce.entry.Texture != nil {
		ce.entry.Texture.Destroy()
	}
}

// Clear frees every resident texture and empties the cache.
func (c *ResidencyCache) Clear() {
	c.mu.Lock()
	removed := make([]*cacheEntry, 0, len(c.entries))
	for _, ce := range c.entries {
		removed = append(removed, ce)
	}
	c.entries = make(map[string]*cacheEntry)
	c.lru.Init()
	c.size = 0
	c.mu.Unlock()

	for _, ce := range removed {
		if ce.entry.Texture != nil {
			ce.entry.Texture.Destroy()
		}
	}
}

// ClearWithoutDispose drops all bookkeeping without freeing GPU
// resources. Used exactly once per shared-surface loss: the underlying
// handles are already invalid, so destroying them would double-free.
func (c *ResidencyCache) ClearWithoutDispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
	c.lru.Init()
	c.size = 0
}

// VRAMUsageMB returns the resident total in megabytes, recomputed on
// read.
func (c *ResidencyCache) VRAMUsageMB() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return float64(c.size) / 1e6
}

// Size returns the resident total in bytes.
func (c *ResidencyCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Budget returns the configured memory budget in bytes.
func (c *ResidencyCache) Budget() int64 {
	return c.budget
}

// EntryCount returns the number of resident entries.
func (c *ResidencyCache) EntryCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of cache statistics.
func (c *ResidencyCache) Stats() Stats {
	c.mu.Lock()
	size := c.size
	entries := len(c.entries)
	c.mu.Unlock()

	return Stats{
		Size:       size,
		Budget:     c.budget,
		Entries:    entries,
		OverBudget: size > c.budget,
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Evictions:  c.evictions.Load(),
	}
}
