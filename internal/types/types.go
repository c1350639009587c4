// Package types contains the core domain types shared across the paging
// channel packages. It deliberately has zero imports of other internal
// packages so that both the store layer and the channel layer can import
// from it without creating an import cycle.
package types

// MaxPriority is the highest valid priority value. Priorities run 0-9,
// matching the JMS convention the original broker follows; 9 is delivered
// before 0, and 4 is the conventional default.
const MaxPriority = 9

// UnpagedOrder is the sentinel PagingOrder value meaning "not paged" — the
// reference lives in memory, not in the down-cache or the persisted paged
// segment.
const UnpagedOrder int64 = -1

// MessageReference is a per-channel handle to a message body. References are
// shared with the MessageStore: the store owns the body, the channel owns
// the per-channel delivery attributes below.
type MessageReference struct {
	MessageID     string
	Priority      uint8
	DeliveryCount int
	Reliable      bool

	// PagingOrder is meaningful only while the reference sits in the
	// down-cache or in the persisted paged segment. UnpagedOrder (-1)
	// otherwise.
	PagingOrder int64

	// Release is invoked by ReleaseMemoryReference once the channel no
	// longer needs the body resident in memory (i.e. after the reference
	// has been durably paged out). Set by the MessageStore at reference
	// creation time; nil is a safe no-op.
	Release func()
}

// ReleaseMemoryReference signals that the channel no longer needs the body
// kept in memory. Safe to call on a reference with a nil Release func.
func (r *MessageReference) ReleaseMemoryReference() {
	if r.Release != nil {
		r.Release()
	}
}

// ReferenceInfo is the compact persisted-store row for a single reference.
type ReferenceInfo struct {
	MessageID     string
	DeliveryCount int
	Reliable      bool

	// PagingOrder is nil for an unpaged row.
	PagingOrder *int64
}

// InitialLoadInfo is the result of loading a channel's unpaged prefix plus,
// when paged rows exist in the store, the bounds of the paged segment.
type InitialLoadInfo struct {
	Refs []ReferenceInfo

	// MinPageOrder and MaxPageOrder are both nil when the store holds no
	// paged rows for this channel.
	MinPageOrder *int64
	MaxPageOrder *int64
}
