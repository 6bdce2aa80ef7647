package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iotaaxel/limit-order-book/internal/common"
)

func entryAt(id string, price int64, at time.Time) *common.Order {
	return &common.Order{
		ID:          id,
		Price:       price,
		Quantity:    1,
		SubmittedAt: at,
	}
}

func TestSideQueue_BuyOrdering(t *testing.T) {
	q := newSideQueue(common.Buy)
	q.insert(entryAt("low", 98, testEpoch), 1)
	q.insert(entryAt("high", 102, testEpoch.Add(time.Second)), 2)
	q.insert(entryAt("mid", 100, testEpoch.Add(2*time.Second)), 3)

	var ids []string
	q.scan(func(order *common.Order) bool {
		ids = append(ids, order.ID)
		return true
	})
	assert.Equal(t, []string{"high", "mid", "low"}, ids, "descending price on the buy side")
}

func TestSideQueue_SellOrdering(t *testing.T) {
	q := newSideQueue(common.Sell)
	q.insert(entryAt("high", 102, testEpoch), 1)
	q.insert(entryAt("low", 98, testEpoch.Add(time.Second)), 2)
	q.insert(entryAt("mid", 100, testEpoch.Add(2*time.Second)), 3)

	var ids []string
	q.scan(func(order *common.Order) bool {
		ids = append(ids, order.ID)
		return true
	})
	assert.Equal(t, []string{"low", "mid", "high"}, ids, "ascending price on the sell side")
}

func TestSideQueue_TimeBreaksPriceTies(t *testing.T) {
	q := newSideQueue(common.Buy)
	q.insert(entryAt("later", 100, testEpoch.Add(time.Second)), 1)
	q.insert(entryAt("earlier", 100, testEpoch), 2)

	entry, ok := q.peekBest()
	require.True(t, ok)
	assert.Equal(t, "earlier", entry.order.ID)
}

func TestSideQueue_SequenceBreaksTimestampTies(t *testing.T) {
	q := newSideQueue(common.Buy)
	q.insert(entryAt("second", 100, testEpoch), 2)
	q.insert(entryAt("first", 100, testEpoch), 1)

	entry, ok := q.peekBest()
	require.True(t, ok)
	assert.Equal(t, "first", entry.order.ID)
}

func TestSideQueue_RemovePreservesOrdering(t *testing.T) {
	q := newSideQueue(common.Sell)
	q.insert(entryAt("a", 100, testEpoch), 1)
	q.insert(entryAt("b", 101, testEpoch.Add(time.Second)), 2)
	q.insert(entryAt("c", 102, testEpoch.Add(2*time.Second)), 3)

	require.True(t, q.remove("a"))
	entry, ok := q.peekBest()
	require.True(t, ok)
	assert.Equal(t, "b", entry.order.ID)
	assert.Equal(t, 2, q.len())

	assert.False(t, q.remove("a"), "second removal is a no-op")
	assert.False(t, q.contains("a"))
	assert.True(t, q.contains("c"))
}

func TestSideQueue_EmptyPeek(t *testing.T) {
	q := newSideQueue(common.Buy)
	_, ok := q.peekBest()
	assert.False(t, ok)
	assert.Equal(t, 0, q.len())
}
