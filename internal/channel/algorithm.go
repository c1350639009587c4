package channel

import (
	"fmt"

	"github.com/rvsoni/hornetq/internal/downcache"
	"github.com/rvsoni/hornetq/internal/types"
)

// doAdd implements Add. Runs on the serializer goroutine.
func (c *Channel) doAdd(ref *types.MessageReference) error {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return fmt.Errorf("add: channel not loaded: %w", ErrIllegalState)
	}
	paging := c.paging
	if paging && ref.Reliable && !c.acceptReliableMessages {
		c.mu.Unlock()
		return fmt.Errorf("add: reliable reference on a channel not accepting them: %w", ErrInvariantViolation)
	}
	recoverable := c.recoverable
	c.mu.Unlock()

	// A reliable reference on a recoverable channel must already be durable
	// in the store before it enters memory or the down-cache — whether or
	// not the channel happens to be paging right now — so that it already
	// has a row by the time addToDownCache's later UpdatePageOrder call
	// needs to stamp one.
	if ref.Reliable && recoverable {
		if err := c.persistence.AddUnpagedReference(c.id, types.ReferenceInfo{
			MessageID:     ref.MessageID,
			DeliveryCount: ref.DeliveryCount,
			Reliable:      ref.Reliable,
		}); err != nil {
			return fmt.Errorf("add: persist reliable reference: %w: %v", ErrStoreOp, err)
		}
	}

	if paging {
		return c.addToDownCache(ref, false)
	}

	c.mu.Lock()
	c.messageRefs.AddLast(ref, ref.Priority)
	size := c.messageRefs.Size()
	if size == c.fullSize {
		c.paging = true
		c.logger.Debug("entering paging mode", "messageCount", size)
	}
	c.mu.Unlock()
	return nil
}

// doRemoveFirst implements RemoveFirst.
func (c *Channel) doRemoveFirst() (*types.MessageReference, error) {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return nil, fmt.Errorf("removeFirst: channel not loaded: %w", ErrIllegalState)
	}
	ref, ok := c.messageRefs.RemoveFirst()
	c.mu.Unlock()
	if !ok {
		return nil, nil
	}
	if _, err := c.checkLoad(); err != nil {
		return ref, err
	}
	return ref, nil
}

// doCancel implements Cancel.
func (c *Channel) doCancel(ref *types.MessageReference) error {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return fmt.Errorf("cancel: channel not loaded: %w", ErrIllegalState)
	}
	c.messageRefs.AddFirst(ref, ref.Priority)
	needsEvict := c.paging && c.messageRefs.Size() == c.fullSize+1
	var evicted *types.MessageReference
	if needsEvict {
		evicted, _ = c.messageRefs.RemoveLast()
	}
	c.mu.Unlock()

	if evicted != nil {
		return c.addToDownCache(evicted, true)
	}
	return nil
}

// addToDownCache assigns ref a page-order and appends it to the
// down-cache, flushing the cache if it is now full. cancelling selects
// whether the order is taken from the front (cancel eviction) or the back
// (ordinary paging) of the paged segment.
func (c *Channel) addToDownCache(ref *types.MessageReference, cancelling bool) error {
	c.mu.Lock()
	if cancelling {
		c.firstPagingOrder--
		ref.PagingOrder = c.firstPagingOrder
	} else {
		ref.PagingOrder = c.nextPagingOrder
		c.nextPagingOrder++
	}
	full := c.downCache.Add(ref)
	c.mu.Unlock()

	if full {
		return c.flushDownCache()
	}
	return nil
}

// flushDownCache persists the current down-cache contents. toAdd and
// toUpdate are committed via separate store calls, so a failure partway
// through must restore only the group whose call did not succeed — the
// other group is already durable and re-queuing it would have the next
// flush attempt insert or update it a second time.
func (c *Channel) flushDownCache() error {
	c.mu.Lock()
	refs := c.downCache.Drain()
	c.mu.Unlock()
	if len(refs) == 0 {
		return nil
	}

	var toUpdate, toAdd []*types.MessageReference
	for _, r := range refs {
		if r.Reliable && c.recoverable {
			toUpdate = append(toUpdate, r)
		} else {
			toAdd = append(toAdd, r)
		}
	}

	restore := func(pending []*types.MessageReference) {
		if len(pending) == 0 {
			return
		}
		c.mu.Lock()
		for _, r := range pending {
			c.downCache.Add(r)
		}
		c.mu.Unlock()
	}

	if len(toAdd) > 0 {
		if err := c.persistence.PageReferences(c.id, referenceInfos(toAdd), true); err != nil {
			restore(toAdd)
			restore(toUpdate)
			return fmt.Errorf("flush down-cache: page references: %w: %v", ErrStoreOp, err)
		}
		for _, r := range toAdd {
			r.ReleaseMemoryReference()
		}
	}
	if len(toUpdate) > 0 {
		if err := c.persistence.UpdatePageOrder(c.id, referenceInfos(toUpdate)); err != nil {
			restore(toUpdate)
			return fmt.Errorf("flush down-cache: update page order: %w: %v", ErrStoreOp, err)
		}
		for _, r := range toUpdate {
			r.ReleaseMemoryReference()
		}
	}

	c.logger.Debug("flushed down-cache", "count", len(refs), "paged", len(toAdd), "updated", len(toUpdate))
	return nil
}

// checkLoad decides whether enough headroom exists to refill memory from
// the paged segment, and if so performs the load.
func (c *Channel) checkLoad() (bool, error) {
	c.mu.Lock()
	refNum := c.nextPagingOrder - c.firstPagingOrder
	if refNum == 0 {
		c.paging = false
		c.mu.Unlock()
		return false, nil
	}
	numberLoadable := refNum
	if int64(c.pageSize) < numberLoadable {
		numberLoadable = int64(c.pageSize)
	}
	curSize := int64(c.messageRefs.Size())
	threshold := int64(c.fullSize) - numberLoadable
	c.mu.Unlock()

	if curSize > threshold {
		return false, nil
	}
	if err := c.loadPagedReferences(int(numberLoadable)); err != nil {
		return false, err
	}
	return true, nil
}

// loadPagedReferences brings n paged references back into memory: flush
// any pending down-cache entries first (so the page-order window being
// read cannot overlap them), read the rows, materialize bodies, insert
// into memory, then reconcile the store (remove depaged rows, clear
// page-order on reliable ones still recoverable in place) and advance
// firstPagingOrder.
func (c *Channel) loadPagedReferences(n int) error {
	if err := c.flushDownCache(); err != nil {
		return err
	}

	c.mu.Lock()
	first := c.firstPagingOrder
	c.mu.Unlock()

	infos, err := c.persistence.GetPagedReferenceInfos(c.id, first, n)
	if err != nil {
		return fmt.Errorf("load paged references: %w: %v", ErrStoreOp, err)
	}

	loaded, err := c.processReferences(infos)
	if err != nil {
		return err
	}

	var toRemove []types.ReferenceInfo
	reliableRecoverable := 0
	for i, ref := range loaded {
		if ref.Reliable && c.recoverable {
			reliableRecoverable++
		} else {
			unpaged := types.UnpagedOrder
			toRemove = append(toRemove, types.ReferenceInfo{
				MessageID:   infos[i].MessageID,
				PagingOrder: &unpaged,
			})
		}
	}

	if len(toRemove) > 0 {
		if err := c.persistence.RemoveDepagedReferences(c.id, toRemove); err != nil {
			return fmt.Errorf("load paged references: remove depaged: %w: %v", ErrStoreOp, err)
		}
	}
	if reliableRecoverable > 0 {
		if err := c.persistence.UpdateReliableReferencesNotPagedInRange(c.id, first, first+int64(n)-1, reliableRecoverable); err != nil {
			return fmt.Errorf("load paged references: clear reliable range: %w: %v", ErrStoreOp, err)
		}
	}

	c.mu.Lock()
	c.firstPagingOrder += int64(n)
	if c.firstPagingOrder == c.nextPagingOrder {
		c.firstPagingOrder, c.nextPagingOrder = 0, 0
		if c.messageRefs.Size() != c.fullSize {
			c.paging = false
		}
	}
	c.mu.Unlock()
	c.logger.Debug("loaded paged references", "count", n, "reliableRecoverable", reliableRecoverable, "removed", len(toRemove))
	return nil
}

// processReferences materializes bodies for infos (via the message store,
// batch-loading missing ones from the persistence manager), stamps each
// resulting reference's per-load attributes, and inserts it into memory.
// The returned slice is positionally aligned with infos.
func (c *Channel) processReferences(infos []types.ReferenceInfo) ([]*types.MessageReference, error) {
	refs := make([]*types.MessageReference, len(infos))
	var missingIdx []int
	var missingIDs []string

	for i, info := range infos {
		if ref, ok := c.messageStore.Reference(info.MessageID); ok {
			refs[i] = ref
		} else {
			missingIdx = append(missingIdx, i)
			missingIDs = append(missingIDs, info.MessageID)
		}
	}

	if len(missingIDs) > 0 {
		msgs, err := c.persistence.GetMessages(missingIDs)
		if err != nil {
			return nil, fmt.Errorf("process references: get messages: %w: %v", ErrStoreOp, err)
		}
		if len(msgs) != len(missingIDs) {
			return nil, fmt.Errorf("process references: got %d messages, wanted %d: %w",
				len(msgs), len(missingIDs), ErrInvariantViolation)
		}
		for j, idx := range missingIdx {
			refs[idx] = c.messageStore.ReferenceForMessage(msgs[j])
		}
	}

	c.mu.Lock()
	for i, info := range infos {
		ref := refs[i]
		ref.DeliveryCount = info.DeliveryCount
		ref.Reliable = info.Reliable
		ref.PagingOrder = types.UnpagedOrder
		c.messageRefs.AddLast(ref, ref.Priority)
	}
	c.mu.Unlock()
	return refs, nil
}

// doLoad implements Load.
func (c *Channel) doLoad() error {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return fmt.Errorf("load: channel already active: %w", ErrIllegalState)
	}
	c.mu.Unlock()

	c.resetState()

	initial, err := c.persistence.GetInitialReferenceInfos(c.id, c.fullSize)
	if err != nil {
		return fmt.Errorf("load: get initial reference infos: %w: %v", ErrStoreOp, err)
	}

	c.mu.Lock()
	if initial.MaxPageOrder != nil {
		c.firstPagingOrder = *initial.MinPageOrder
		c.nextPagingOrder = *initial.MaxPageOrder + 1
		c.paging = true
	} else {
		c.firstPagingOrder, c.nextPagingOrder = 0, 0
	}
	c.active = true
	c.mu.Unlock()

	if len(initial.Refs) > 0 {
		if _, err := c.processReferences(initial.Refs); err != nil {
			return err
		}
	}

	for {
		more, err := c.checkLoad()
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	c.logger.Info("channel loaded", "messageCount", c.MessageCount(), "paging", c.IsPaging())
	return nil
}

// doUnload implements Unload.
func (c *Channel) doUnload() error {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return fmt.Errorf("unload: channel active: %w", ErrIllegalState)
	}
	c.mu.Unlock()
	c.resetState()
	return nil
}

// resetState clears all in-memory paging state without checking active —
// callers are responsible for the active-state precondition.
func (c *Channel) resetState() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messageRefs.Clear()
	c.downCache = downcache.New(c.downCacheSize)
	c.paging = false
	c.firstPagingOrder, c.nextPagingOrder = 0, 0
	c.active = false
}

// doSetPagingParams implements SetPagingParams.
func (c *Channel) doSetPagingParams(fullSize, pageSize, downCacheSize int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		return fmt.Errorf("setPagingParams: channel active: %w", ErrIllegalState)
	}
	if !(downCacheSize > 0 && downCacheSize <= pageSize && pageSize < fullSize) {
		return fmt.Errorf("setPagingParams: invalid params full=%d page=%d down=%d: %w",
			fullSize, pageSize, downCacheSize, ErrInvariantViolation)
	}
	c.fullSize, c.pageSize, c.downCacheSize = fullSize, pageSize, downCacheSize
	c.downCache = downcache.New(downCacheSize)
	return nil
}

// referenceInfos converts in-memory references into their compact store
// rows, carrying each reference's already-assigned page-order.
func referenceInfos(refs []*types.MessageReference) []types.ReferenceInfo {
	out := make([]types.ReferenceInfo, len(refs))
	for i, r := range refs {
		po := r.PagingOrder
		out[i] = types.ReferenceInfo{
			MessageID:     r.MessageID,
			DeliveryCount: r.DeliveryCount,
			Reliable:      r.Reliable,
			PagingOrder:   &po,
		}
	}
	return out
}
