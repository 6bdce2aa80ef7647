package engine

import (
	"github.com/tidwall/btree"

	"github.com/iotaaxel/limit-order-book/internal/common"
)

// bookEntry pins an order to its arrival sequence number. The sequence keeps
// the ordering total when two orders carry the same submission timestamp.
type bookEntry struct {
	order *common.Order
	seq   uint64
}

// sideQueue holds the resting orders of one side in price-time priority.
//
// The btree is keyed by (price, submitted-at, sequence) with the price
// direction depending on the side, so the minimum of the tree is always the
// best order. A separate id index makes removal O(log n) without violating
// the ordering, which a heap-backed queue could only match by rebuilding.
type sideQueue struct {
	side    common.Side
	entries *btree.BTreeG[*bookEntry]
	index   map[string]*bookEntry
}

func newSideQueue(side common.Side) *sideQueue {
	less := func(a, b *bookEntry) bool {
		if a.order.Price != b.order.Price {
			if side == common.Buy {
				// Highest bid first.
				return a.order.Price > b.order.Price
			}
			// Lowest ask first.
			return a.order.Price < b.order.Price
		}
		if !a.order.SubmittedAt.Equal(b.order.SubmittedAt) {
			return a.order.SubmittedAt.Before(b.order.SubmittedAt)
		}
		return a.seq < b.seq
	}
	return &sideQueue{
		side:    side,
		entries: btree.NewBTreeG(less),
		index:   make(map[string]*bookEntry),
	}
}

func (q *sideQueue) insert(order *common.Order, seq uint64) {
	entry := &bookEntry{order: order, seq: seq}
	q.entries.Set(entry)
	q.index[order.ID] = entry
}

// peekBest returns the entry at the top of the queue without removing it.
// Quantity mutations on the returned order are safe: the tree ordering never
// reads quantity.
func (q *sideQueue) peekBest() (*bookEntry, bool) {
	return q.entries.Min()
}

func (q *sideQueue) remove(id string) bool {
	entry, ok := q.index[id]
	if !ok {
		return false
	}
	q.entries.Delete(entry)
	delete(q.index, id)
	return true
}

func (q *sideQueue) contains(id string) bool {
	_, ok := q.index[id]
	return ok
}

func (q *sideQueue) get(id string) (*common.Order, bool) {
	entry, ok := q.index[id]
	if !ok {
		return nil, false
	}
	return entry.order, true
}

func (q *sideQueue) len() int {
	return q.entries.Len()
}

// scan walks every resting order in priority order. Callers must not insert
// or remove during the walk.
func (q *sideQueue) scan(fn func(order *common.Order) bool) {
	q.entries.Scan(func(entry *bookEntry) bool {
		return fn(entry.order)
	})
}
