// Package channel implements the paging channel core: the bounded
// in-memory ordered multiset, the write-behind down-cache, and the paged
// loader that together let a single channel hold far more references than
// fit in memory while preserving priority-FIFO order. It is grounded on
// the teacher's queue state machine (internal/queue/statemachine.go) for
// its active/inactive boundary shape, and on its scheduler goroutine for
// the serializer that linearizes every mutation.
package channel

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/rvsoni/hornetq/internal/downcache"
	"github.com/rvsoni/hornetq/internal/multiset"
	"github.com/rvsoni/hornetq/internal/serializer"
	"github.com/rvsoni/hornetq/internal/store"
	"github.com/rvsoni/hornetq/internal/types"
)

// Config carries a channel's identity and static paging parameters.
type Config struct {
	ChannelID string

	FullSize      int
	PageSize      int
	DownCacheSize int

	AcceptReliableMessages bool
	Recoverable            bool
}

// Channel is the paging channel core. Every mutating operation is
// serialized through a single dedicated goroutine; read-only inspectors
// take a coarse mutex instead and may be called from any goroutine.
type Channel struct {
	id string

	messageStore store.MessageStore
	persistence  store.PersistenceManager
	serializer   *serializer.Serializer
	logger       *slog.Logger

	mu sync.Mutex

	messageRefs *multiset.OrderedMultiset
	downCache   *downcache.DownCache

	paging           bool
	firstPagingOrder int64
	nextPagingOrder  int64

	fullSize      int
	pageSize      int
	downCacheSize int

	active                 bool
	acceptReliableMessages bool
	recoverable            bool
}

// New constructs a Channel. It starts inactive; call Load to bring it into
// service.
func New(cfg Config, ms store.MessageStore, pm store.PersistenceManager, logger *slog.Logger) (*Channel, error) {
	if !(cfg.DownCacheSize > 0 && cfg.DownCacheSize <= cfg.PageSize && cfg.PageSize < cfg.FullSize) {
		return nil, fmt.Errorf("channel %s: invalid paging params full=%d page=%d down=%d: %w",
			cfg.ChannelID, cfg.FullSize, cfg.PageSize, cfg.DownCacheSize, ErrInvariantViolation)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		id:                     cfg.ChannelID,
		messageStore:           ms,
		persistence:            pm,
		serializer:             serializer.New(),
		logger:                 logger.With("channel", cfg.ChannelID),
		messageRefs:            multiset.New(),
		downCache:              downcache.New(cfg.DownCacheSize),
		fullSize:               cfg.FullSize,
		pageSize:               cfg.PageSize,
		downCacheSize:          cfg.DownCacheSize,
		acceptReliableMessages: cfg.AcceptReliableMessages,
		recoverable:            cfg.Recoverable,
	}, nil
}

// Close stops the channel's serializer goroutine. The channel must not be
// used afterwards.
func (c *Channel) Close() {
	c.serializer.Close()
}

// Add inserts a newly received reference. While the channel is paging, ref
// is appended to the down-cache instead of memory, and a reliable reference
// is rejected with ErrInvariantViolation if the channel does not accept them.
func (c *Channel) Add(ref *types.MessageReference) error {
	return c.serializer.Submit(func() error { return c.doAdd(ref) })
}

// RemoveFirst dequeues the head reference for delivery, triggering a
// conditional refill from the store. Returns (nil, nil) if the channel is
// empty.
func (c *Channel) RemoveFirst() (*types.MessageReference, error) {
	var ref *types.MessageReference
	err := c.serializer.Submit(func() error {
		var err error
		ref, err = c.doRemoveFirst()
		return err
	})
	return ref, err
}

// Cancel restores a previously delivered reference to the head of its
// priority class, as on a nack/requeue.
func (c *Channel) Cancel(ref *types.MessageReference) error {
	return c.serializer.Submit(func() error { return c.doCancel(ref) })
}

// Load is the recovery boundary: it resets in-memory state, restores the
// unpaged prefix from the store, and greedily tops up from the paged
// segment. Callable only while the channel is inactive.
func (c *Channel) Load() error {
	return c.serializer.Submit(func() error { return c.doLoad() })
}

// Unload clears all in-memory state. Callable only while the channel is
// inactive.
func (c *Channel) Unload() error {
	return c.serializer.Submit(func() error { return c.doUnload() })
}

// SetPagingParams changes the paging configuration. Callable only while the
// channel is inactive.
func (c *Channel) SetPagingParams(fullSize, pageSize, downCacheSize int) error {
	return c.serializer.Submit(func() error { return c.doSetPagingParams(fullSize, pageSize, downCacheSize) })
}

// MessageCount returns the total number of references the channel is
// currently responsible for: in memory plus every page-order slot
// reserved in [firstPagingOrder, nextPagingOrder). A down-cache entry's
// page-order is reserved at the moment it is added (addToDownCache), not
// at flush time, so that span already accounts for references still
// sitting in the down-cache — counting downCache.Size() separately would
// double-count them.
func (c *Channel) MessageCount() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(c.messageRefs.Size()) + (c.nextPagingOrder - c.firstPagingOrder)
}

// IsPaging reports whether the channel is currently spilling references to
// the store.
func (c *Channel) IsPaging() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paging
}

// DownCacheCount returns the number of references currently buffered in the
// down-cache.
func (c *Channel) DownCacheCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.downCache.Size()
}

// IsActive reports whether the channel has been loaded.
func (c *Channel) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}
