// Package memstore provides an in-memory MessageStore reference
// implementation: a body cache keyed by message ID, reference-counted so a
// body is only evicted once every channel holding a reference to it has
// released it. The label-keyed sync.Map + atomic counter idiom is grounded
// on the teacher's metrics registry (internal/metrics/metrics.go), adapted
// here from a counter cache to a reference-count cache.
package memstore

import (
	"sync"
	"sync/atomic"

	"github.com/rvsoni/hornetq/internal/store"
	"github.com/rvsoni/hornetq/internal/types"
)

type entry struct {
	msg      store.Message
	refCount atomic.Int64
}

// Store is a concurrency-safe, in-memory MessageStore.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// New returns an empty Store.
func New() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// Reference returns a new MessageReference for an already-known body, or
// (nil, false) if messageID has never been registered (or was fully
// released).
func (s *Store) Reference(messageID string) (*types.MessageReference, bool) {
	s.mu.RLock()
	e, ok := s.entries[messageID]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return s.newRef(e), true
}

// ReferenceForMessage registers msg's body if not already known and returns
// a reference to it. Calling this more than once for the same message ID is
// safe and idempotent with respect to the stored body.
func (s *Store) ReferenceForMessage(msg store.Message) *types.MessageReference {
	s.mu.Lock()
	e, ok := s.entries[msg.ID]
	if !ok {
		e = &entry{msg: msg}
		s.entries[msg.ID] = e
	}
	s.mu.Unlock()
	return s.newRef(e)
}

// Len reports how many distinct message bodies are currently cached.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) newRef(e *entry) *types.MessageReference {
	e.refCount.Add(1)
	return &types.MessageReference{
		MessageID:   e.msg.ID,
		Priority:    e.msg.Priority,
		Reliable:    e.msg.Reliable,
		PagingOrder: types.UnpagedOrder,
		Release:     func() { s.release(e.msg.ID, e) },
	}
}

// release decrements e's reference count and evicts the body once it drops
// to zero.
func (s *Store) release(messageID string, e *entry) {
	if e.refCount.Add(-1) > 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// Re-check under the lock: a concurrent ReferenceForMessage/Reference
	// call may have bumped the count back up between the atomic decrement
	// above and acquiring the lock.
	if e.refCount.Load() <= 0 {
		delete(s.entries, messageID)
	}
}
