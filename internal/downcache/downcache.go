// Package downcache implements the bounded write-behind buffer that batches
// references awaiting a single paged store write. It performs no I/O of its
// own — the channel layer decides when to drain it and what to do with the
// result.
package downcache

import "github.com/rvsoni/hornetq/internal/types"

// DownCache is a fixed-capacity ordered buffer of references pending a
// batched page-out. Not safe for concurrent use — callers serialize access.
type DownCache struct {
	capacity int
	refs     []*types.MessageReference
}

// New returns an empty DownCache with the given capacity. capacity must be
// positive; callers are expected to have already validated it (see
// internal/channel.SetPagingParams).
func New(capacity int) *DownCache {
	return &DownCache{
		capacity: capacity,
		refs:     make([]*types.MessageReference, 0, capacity),
	}
}

// Add appends ref to the cache and reports whether the cache is now at
// capacity (the caller should flush).
func (d *DownCache) Add(ref *types.MessageReference) (full bool) {
	d.refs = append(d.refs, ref)
	return len(d.refs) >= d.capacity
}

// Size returns the number of references currently buffered.
func (d *DownCache) Size() int {
	return len(d.refs)
}

// Drain returns the buffered references in insertion order and empties the
// cache. The caller owns the returned slice.
func (d *DownCache) Drain() []*types.MessageReference {
	out := d.refs
	d.refs = make([]*types.MessageReference, 0, d.capacity)
	return out
}

// Clear empties the cache without returning its contents.
func (d *DownCache) Clear() {
	d.refs = make([]*types.MessageReference, 0, d.capacity)
}
