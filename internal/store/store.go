// Package store declares the two external collaborators the paging channel
// core consumes: MessageStore (message body identity/dedup) and
// PersistenceManager (durable reference storage). Both are out of scope for
// this module per spec — they are contracts, not implementations. Reference
// implementations grounded in the teacher's own storage stack live in the
// bolt and memstore subpackages, so the core can be exercised end-to-end
// rather than against mocks only.
package store

import (
	"errors"

	"github.com/rvsoni/hornetq/internal/types"
)

// ErrNotFound is returned when a requested row or message does not exist.
var ErrNotFound = errors.New("store: not found")

// Message is the body-bearing unit a MessageStore hands references to and a
// PersistenceManager can retrieve by ID when the MessageStore has no cached
// body.
type Message struct {
	ID       string
	Priority uint8
	Reliable bool
	Body     []byte
}

// MessageStore deduplicates message bodies and hands out reference handles
// keyed by message ID.
type MessageStore interface {
	// Reference returns a new reference to messageID's body if the body is
	// already known to the store, or (nil, false) otherwise.
	Reference(messageID string) (*types.MessageReference, bool)

	// ReferenceForMessage registers msg's body (if not already known) and
	// returns a reference to it. Safe to call more than once for the same
	// message ID — the already-stored body is kept, and each call returns a
	// new reference to it.
	ReferenceForMessage(msg Message) *types.MessageReference
}

// PersistenceManager is the durable store for references: initial load,
// paged load, page write, page-order update, and depage-remove.
type PersistenceManager interface {
	// GetInitialReferenceInfos returns the unpaged prefix (up to limit rows,
	// in original insertion order) plus, if paged rows exist for channelID,
	// the inclusive [min, max] page-order bounds.
	GetInitialReferenceInfos(channelID string, limit int) (types.InitialLoadInfo, error)

	// GetPagedReferenceInfos returns up to count rows starting at
	// fromPageOrder (inclusive), ordered by page-order.
	GetPagedReferenceInfos(channelID string, fromPageOrder int64, count int) ([]types.ReferenceInfo, error)

	// GetMessages returns the messages for ids, in the same order, or an
	// error if fewer than len(ids) could be found.
	GetMessages(ids []string) ([]Message, error)

	// AddUnpagedReference inserts a new unpaged row for ref. A reliable
	// reference on a recoverable channel must be durable the moment it is
	// admitted, whether or not the channel is currently paging, so that a
	// later UpdatePageOrder always has an existing row to stamp instead of
	// requiring a fresh insert.
	AddUnpagedReference(channelID string, ref types.ReferenceInfo) error

	// PageReferences inserts new rows for refs, all of which must already
	// carry a PagingOrder. paged is always true in practice; it is part of
	// the signature for fidelity with the source algorithm.
	PageReferences(channelID string, refs []types.ReferenceInfo, paged bool) error

	// UpdatePageOrder stamps PagingOrder onto rows that already exist in the
	// store as unpaged (reliable) rows.
	UpdatePageOrder(channelID string, refs []types.ReferenceInfo) error

	// RemoveDepagedReferences deletes rows, used for unreliable (or
	// non-recoverable) references once they have been loaded back into
	// memory.
	RemoveDepagedReferences(channelID string, refs []types.ReferenceInfo) error

	// UpdateReliableReferencesNotPagedInRange clears PagingOrder for every
	// reliable row whose page-order lies in [fromInclusive, toInclusive],
	// so they are not loaded again on a subsequent paged read.
	// expectedCount is a sanity check: implementations must fail the call
	// (without committing any change) if the actual count differs.
	UpdateReliableReferencesNotPagedInRange(channelID string, fromInclusive, toInclusive int64, expectedCount int) error
}
