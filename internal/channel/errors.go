package channel

import "errors"

// ErrInvariantViolation marks a fatal sanity-check failure: bad paging
// configuration, a reliable reference rejected by a channel not accepting
// them, or a store read returning fewer rows than requested.
var ErrInvariantViolation = errors.New("channel: invariant violation")

// ErrStoreOp marks any failure returned by the PersistenceManager; the
// store's own error is carried in the message text only. It is
// never retried inside the channel; the calling operation fails and the
// channel is left in a consistent state.
var ErrStoreOp = errors.New("channel: store operation failed")

// ErrIllegalState marks an operation that requires a particular
// active/inactive boundary state and was called outside it.
var ErrIllegalState = errors.New("channel: illegal state")
