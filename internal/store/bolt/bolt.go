// Package bolt provides a go.etcd.io/bbolt-backed PersistenceManager
// reference implementation. It is grounded directly on the teacher's
// internal/storage/local/index.go: one bbolt database, ACID transactions,
// a bucket-per-channel layout, and a compact binary/JSON row encoding. It
// deliberately does NOT persist message bodies as a durable log — the
// message body store is an explicit non-goal of the paging channel core
// (spec.md §1) — but it does keep a small "bodies" bucket so GetMessages is
// servable end-to-end for tests and the demo binary; see DESIGN.md.
package bolt

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/rvsoni/hornetq/internal/store"
	"github.com/rvsoni/hornetq/internal/types"
)

var (
	bucketChannels = []byte("channels")
	bucketBodies   = []byte("bodies")

	subBucketRows    = []byte("rows")
	subBucketByOrder = []byte("byorder")
	subBucketBySeq   = []byte("byseq")
	subBucketMeta    = []byte("meta")

	metaKeyNextSeq = []byte("nextseq")
)

// row is the persisted record for a single reference.
type row struct {
	DeliveryCount int    `json:"dc"`
	Reliable      bool   `json:"rel"`
	Paged         bool   `json:"paged"`
	PagingOrder   int64  `json:"po,omitempty"`
	Seq           uint64 `json:"seq,omitempty"`
}

// Store is a bbolt-backed store.PersistenceManager.
type Store struct {
	db *bbolt.DB
}

// Open creates (or reopens) a bbolt-backed Store at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o640, nil)
	if err != nil {
		return nil, fmt.Errorf("bolt store: open %s: %w", path, err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketChannels); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketBodies)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bolt store: init buckets: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutMessage stores msg's body so a later GetMessages can serve it. This is
// a convenience for tests and the demo binary standing in for the (explicitly
// out-of-scope) message body store.
func (s *Store) PutMessage(msg store.Message) error {
	val, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("bolt store: marshal message %s: %w", msg.ID, err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketBodies).Put([]byte(msg.ID), val)
	})
}

// GetMessages implements store.PersistenceManager.
func (s *Store) GetMessages(ids []string) ([]store.Message, error) {
	out := make([]store.Message, 0, len(ids))
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketBodies)
		for _, id := range ids {
			val := b.Get([]byte(id))
			if val == nil {
				return fmt.Errorf("bolt store: get messages: %w: %s", store.ErrNotFound, id)
			}
			var msg store.Message
			if err := json.Unmarshal(val, &msg); err != nil {
				return fmt.Errorf("bolt store: unmarshal message %s: %w", id, err)
			}
			out = append(out, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetInitialReferenceInfos implements store.PersistenceManager.
func (s *Store) GetInitialReferenceInfos(channelID string, limit int) (types.InitialLoadInfo, error) {
	var info types.InitialLoadInfo

	err := s.db.View(func(tx *bbolt.Tx) error {
		chb := channelBucket(tx, channelID)
		if chb == nil {
			return nil
		}

		seqBucket := chb.Bucket(subBucketBySeq)
		rowsBucket := chb.Bucket(subBucketRows)
		if seqBucket != nil && rowsBucket != nil {
			c := seqBucket.Cursor()
			count := 0
			for k, v := c.First(); k != nil && count < limit; k, v = c.Next() {
				msgID := string(v)
				r, err := decodeRow(rowsBucket.Get([]byte(msgID)))
				if err != nil {
					return fmt.Errorf("decode row %s: %w", msgID, err)
				}
				info.Refs = append(info.Refs, types.ReferenceInfo{
					MessageID:     msgID,
					DeliveryCount: r.DeliveryCount,
					Reliable:      r.Reliable,
				})
				count++
			}
		}

		orderBucket := chb.Bucket(subBucketByOrder)
		if orderBucket != nil {
			if k, _ := orderBucket.Cursor().First(); k != nil {
				minV := decodeOrder(k)
				info.MinPageOrder = &minV
			}
			if k, _ := orderBucket.Cursor().Last(); k != nil {
				maxV := decodeOrder(k)
				info.MaxPageOrder = &maxV
			}
		}
		return nil
	})
	return info, err
}

// GetPagedReferenceInfos implements store.PersistenceManager.
func (s *Store) GetPagedReferenceInfos(channelID string, fromPageOrder int64, count int) ([]types.ReferenceInfo, error) {
	var out []types.ReferenceInfo

	err := s.db.View(func(tx *bbolt.Tx) error {
		chb := channelBucket(tx, channelID)
		if chb == nil {
			return nil
		}
		orderBucket := chb.Bucket(subBucketByOrder)
		rowsBucket := chb.Bucket(subBucketRows)
		if orderBucket == nil || rowsBucket == nil {
			return nil
		}

		c := orderBucket.Cursor()
		n := 0
		for k, v := c.Seek(encodeOrder(fromPageOrder)); k != nil && n < count; k, v = c.Next() {
			msgID := string(v)
			r, err := decodeRow(rowsBucket.Get([]byte(msgID)))
			if err != nil {
				return fmt.Errorf("decode row %s: %w", msgID, err)
			}
			po := r.PagingOrder
			out = append(out, types.ReferenceInfo{
				MessageID:     msgID,
				DeliveryCount: r.DeliveryCount,
				Reliable:      r.Reliable,
				PagingOrder:   &po,
			})
			n++
		}
		return nil
	})
	return out, err
}

// AddUnpagedReference implements store.PersistenceManager. It inserts a
// fresh unpaged row for ref, assigning it the next insertion sequence so it
// sorts correctly in a later GetInitialReferenceInfos.
func (s *Store) AddUnpagedReference(channelID string, ref types.ReferenceInfo) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		chb, err := createChannelBucket(tx, channelID)
		if err != nil {
			return err
		}
		rowsBucket, seqBucket, metaBucket :=
			chb.Bucket(subBucketRows), chb.Bucket(subBucketBySeq), chb.Bucket(subBucketMeta)

		seq, err := nextSeq(metaBucket)
		if err != nil {
			return err
		}
		r := row{
			DeliveryCount: ref.DeliveryCount,
			Reliable:      ref.Reliable,
			Paged:         false,
			Seq:           seq,
		}
		val, err := encodeRow(r)
		if err != nil {
			return err
		}
		if err := rowsBucket.Put([]byte(ref.MessageID), val); err != nil {
			return err
		}
		return seqBucket.Put(encodeSeq(seq), []byte(ref.MessageID))
	})
}

// PageReferences implements store.PersistenceManager. It inserts brand new
// rows; every ref must already carry a non-nil PagingOrder.
func (s *Store) PageReferences(channelID string, refs []types.ReferenceInfo, paged bool) error {
	if len(refs) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		chb, err := createChannelBucket(tx, channelID)
		if err != nil {
			return err
		}
		rowsBucket, orderBucket := chb.Bucket(subBucketRows), chb.Bucket(subBucketByOrder)

		for _, ref := range refs {
			if ref.PagingOrder == nil {
				return fmt.Errorf("bolt store: page references: %s has no paging order", ref.MessageID)
			}
			r := row{
				DeliveryCount: ref.DeliveryCount,
				Reliable:      ref.Reliable,
				Paged:         paged,
				PagingOrder:   *ref.PagingOrder,
			}
			val, err := encodeRow(r)
			if err != nil {
				return err
			}
			if err := rowsBucket.Put([]byte(ref.MessageID), val); err != nil {
				return err
			}
			if err := orderBucket.Put(encodeOrder(*ref.PagingOrder), []byte(ref.MessageID)); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdatePageOrder implements store.PersistenceManager. Every ref must
// already exist as an unpaged row.
func (s *Store) UpdatePageOrder(channelID string, refs []types.ReferenceInfo) error {
	if len(refs) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		chb, err := createChannelBucket(tx, channelID)
		if err != nil {
			return err
		}
		rowsBucket := chb.Bucket(subBucketRows)
		seqBucket := chb.Bucket(subBucketBySeq)
		orderBucket := chb.Bucket(subBucketByOrder)

		for _, ref := range refs {
			if ref.PagingOrder == nil {
				return fmt.Errorf("bolt store: update page order: %s has no paging order", ref.MessageID)
			}
			existing, err := decodeRow(rowsBucket.Get([]byte(ref.MessageID)))
			if err != nil {
				return fmt.Errorf("bolt store: update page order: %s: %w", ref.MessageID, err)
			}
			if !existing.Paged {
				if err := seqBucket.Delete(encodeSeq(existing.Seq)); err != nil {
					return err
				}
			}
			existing.Paged = true
			existing.PagingOrder = *ref.PagingOrder
			existing.Seq = 0
			val, err := encodeRow(existing)
			if err != nil {
				return err
			}
			if err := rowsBucket.Put([]byte(ref.MessageID), val); err != nil {
				return err
			}
			if err := orderBucket.Put(encodeOrder(*ref.PagingOrder), []byte(ref.MessageID)); err != nil {
				return err
			}
		}
		return nil
	})
}

// RemoveDepagedReferences implements store.PersistenceManager. Rows are
// looked up and removed by MessageID — the in-memory reference's
// PagingOrder has typically already been reset to the unpaged sentinel by
// the time this is called, so it cannot be used as a lookup key.
func (s *Store) RemoveDepagedReferences(channelID string, refs []types.ReferenceInfo) error {
	if len(refs) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		chb := channelBucket(tx, channelID)
		if chb == nil {
			return nil
		}
		rowsBucket, orderBucket := chb.Bucket(subBucketRows), chb.Bucket(subBucketByOrder)

		for _, ref := range refs {
			val := rowsBucket.Get([]byte(ref.MessageID))
			if val == nil {
				continue
			}
			existing, err := decodeRow(val)
			if err != nil {
				return fmt.Errorf("bolt store: remove depaged: %s: %w", ref.MessageID, err)
			}
			if existing.Paged {
				if err := orderBucket.Delete(encodeOrder(existing.PagingOrder)); err != nil {
					return err
				}
			}
			if err := rowsBucket.Delete([]byte(ref.MessageID)); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateReliableReferencesNotPagedInRange implements store.PersistenceManager.
// It clears the PagingOrder of every reliable row in the paged range
// [fromInclusive, toInclusive], leaving unreliable rows in the range as they
// are, and fails the whole call without committing any change if the number
// of reliable rows found does not match expectedCount.
func (s *Store) UpdateReliableReferencesNotPagedInRange(channelID string, fromInclusive, toInclusive int64, expectedCount int) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		chb := channelBucket(tx, channelID)
		if chb == nil {
			if expectedCount != 0 {
				return fmt.Errorf("bolt store: update reliable range: expected %d rows, found 0", expectedCount)
			}
			return nil
		}
		rowsBucket, orderBucket, seqBucket, metaBucket :=
			chb.Bucket(subBucketRows), chb.Bucket(subBucketByOrder), chb.Bucket(subBucketBySeq), chb.Bucket(subBucketMeta)

		type hit struct {
			msgID string
			order []byte
		}
		var hits []hit
		c := orderBucket.Cursor()
		from, to := encodeOrder(fromInclusive), encodeOrder(toInclusive)
		for k, v := c.Seek(from); k != nil && bytesCompare(k, to) <= 0; k, v = c.Next() {
			r, err := decodeRow(rowsBucket.Get(v))
			if err != nil {
				return fmt.Errorf("bolt store: update reliable range: %s: %w", string(v), err)
			}
			if !r.Reliable {
				continue
			}
			hits = append(hits, hit{msgID: string(v), order: append([]byte(nil), k...)})
		}

		if len(hits) != expectedCount {
			return fmt.Errorf("bolt store: update reliable range: expected %d rows, found %d", expectedCount, len(hits))
		}

		for _, h := range hits {
			existing, err := decodeRow(rowsBucket.Get([]byte(h.msgID)))
			if err != nil {
				return fmt.Errorf("bolt store: update reliable range: %s: %w", h.msgID, err)
			}
			seq, err := nextSeq(metaBucket)
			if err != nil {
				return err
			}
			existing.Paged = false
			existing.PagingOrder = 0
			existing.Seq = seq
			val, err := encodeRow(existing)
			if err != nil {
				return err
			}
			if err := rowsBucket.Put([]byte(h.msgID), val); err != nil {
				return err
			}
			if err := orderBucket.Delete(h.order); err != nil {
				return err
			}
			if err := seqBucket.Put(encodeSeq(seq), []byte(h.msgID)); err != nil {
				return err
			}
		}
		return nil
	})
}

// ─── bucket helpers ───────────────────────────────────────────────────────────

func channelBucket(tx *bbolt.Tx, channelID string) *bbolt.Bucket {
	channels := tx.Bucket(bucketChannels)
	if channels == nil {
		return nil
	}
	return channels.Bucket([]byte(channelID))
}

func createChannelBucket(tx *bbolt.Tx, channelID string) (*bbolt.Bucket, error) {
	channels := tx.Bucket(bucketChannels)
	chb, err := channels.CreateBucketIfNotExists([]byte(channelID))
	if err != nil {
		return nil, err
	}
	for _, name := range [][]byte{subBucketRows, subBucketByOrder, subBucketBySeq, subBucketMeta} {
		if _, err := chb.CreateBucketIfNotExists(name); err != nil {
			return nil, err
		}
	}
	return chb, nil
}

func nextSeq(meta *bbolt.Bucket) (uint64, error) {
	cur := uint64(0)
	if v := meta.Get(metaKeyNextSeq); v != nil {
		cur = binary.BigEndian.Uint64(v)
	}
	next := cur + 1
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], next)
	if err := meta.Put(metaKeyNextSeq, buf[:]); err != nil {
		return 0, err
	}
	return cur, nil
}

// ─── encoding helpers ─────────────────────────────────────────────────────────

func encodeRow(r row) ([]byte, error) {
	return json.Marshal(r)
}

func decodeRow(val []byte) (row, error) {
	var r row
	if val == nil {
		return r, store.ErrNotFound
	}
	if err := json.Unmarshal(val, &r); err != nil {
		return row{}, err
	}
	return r, nil
}

// encodeOrder maps a signed page-order to an order-preserving big-endian
// byte key by flipping the sign bit, so bbolt's lexicographic key ordering
// matches numeric ordering across negative and non-negative values.
func encodeOrder(order int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(order)^(1<<63))
	return buf[:]
}

func decodeOrder(buf []byte) int64 {
	u := binary.BigEndian.Uint64(buf)
	return int64(u ^ (1 << 63))
}

func encodeSeq(seq uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return buf[:]
}

func bytesCompare(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
