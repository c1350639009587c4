// Package multiset implements the in-memory priority-ordered container of
// message references described by the paging channel core: a bounded,
// order-preserving multiset keyed by priority, with cheap head and tail
// removal. It has no knowledge of paging or persistence.
package multiset

import (
	"container/list"

	"github.com/rvsoni/hornetq/internal/types"
)

// numPriorities is the number of distinct priority buckets (0..MaxPriority).
const numPriorities = types.MaxPriority + 1

// OrderedMultiset holds references ordered by priority then insertion order
// within a priority. It is built from priority-indexed container/list
// buckets rather than a single sorted structure, so add/remove stay O(1)
// modulo the constant-size priority scan.
//
// Not safe for concurrent use — callers serialize access (see
// internal/serializer).
type OrderedMultiset struct {
	buckets [numPriorities]*list.List
	size    int
}

// New returns an empty OrderedMultiset.
func New() *OrderedMultiset {
	m := &OrderedMultiset{}
	for i := range m.buckets {
		m.buckets[i] = list.New()
	}
	return m
}

// AddLast appends ref to the tail of its priority bucket.
func (m *OrderedMultiset) AddLast(ref *types.MessageReference, priority uint8) {
	m.buckets[bucketIndex(priority)].PushBack(ref)
	m.size++
}

// AddFirst inserts ref at the head of its priority bucket. Used by cancel to
// restore a reference to the front of the logical sequence.
func (m *OrderedMultiset) AddFirst(ref *types.MessageReference, priority uint8) {
	m.buckets[bucketIndex(priority)].PushFront(ref)
	m.size++
}

// RemoveFirst returns and removes the highest-priority, oldest-inserted
// reference. Returns false if the multiset is empty.
func (m *OrderedMultiset) RemoveFirst() (*types.MessageReference, bool) {
	for p := numPriorities - 1; p >= 0; p-- {
		b := m.buckets[p]
		if e := b.Front(); e != nil {
			b.Remove(e)
			m.size--
			return e.Value.(*types.MessageReference), true
		}
	}
	return nil, false
}

// RemoveLast returns and removes the lowest-priority, newest-inserted
// reference — the inverse of RemoveFirst. Returns false if empty.
func (m *OrderedMultiset) RemoveLast() (*types.MessageReference, bool) {
	for p := 0; p < numPriorities; p++ {
		b := m.buckets[p]
		if e := b.Back(); e != nil {
			b.Remove(e)
			m.size--
			return e.Value.(*types.MessageReference), true
		}
	}
	return nil, false
}

// Size returns the total number of references held across all priorities.
func (m *OrderedMultiset) Size() int {
	return m.size
}

// Clear empties the multiset.
func (m *OrderedMultiset) Clear() {
	for _, b := range m.buckets {
		b.Init()
	}
	m.size = 0
}

func bucketIndex(priority uint8) uint8 {
	if priority > types.MaxPriority {
		return types.MaxPriority
	}
	return priority
}
