package net

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tomb "gopkg.in/tomb.v2"

	"github.com/iotaaxel/limit-order-book/internal/common"
	"github.com/iotaaxel/limit-order-book/internal/config"
	"github.com/iotaaxel/limit-order-book/internal/engine"
)

func newTestServer() *Server {
	cfg := config.Default()
	cfg.ListenAddress = "127.0.0.1"
	cfg.ListenPort = 0
	cfg.Workers = 2
	cfg.ExpiryInterval = config.Duration(10 * time.Millisecond)
	return New(cfg, engine.NewOrderBook())
}

func (s *Server) ownerCount() int {
	s.ownersLock.Lock()
	defer s.ownersLock.Unlock()
	return len(s.owners)
}

func TestHandleNewOrder_TracksOwnerOfRestingOrder(t *testing.T) {
	srv := newTestServer()
	var tb tomb.Tomb

	err := srv.handleNewOrder(&tb, "client-1", &NewOrderMessage{
		Side:        common.Buy,
		TimeInForce: common.GTC,
		Price:       100,
		Quantity:    10,
	})
	require.NoError(t, err)

	// The resting order is owned by the placing session, so a later expiry
	// or fill can be routed back to it.
	bid, ok := srv.book.BestBidOrder()
	require.True(t, ok)
	addr, ok := srv.owner(bid.ID)
	require.True(t, ok)
	assert.Equal(t, "client-1", addr)
}

func TestHandleNewOrder_ReleasesOwnersOfFilledOrders(t *testing.T) {
	srv := newTestServer()
	var tb tomb.Tomb

	require.NoError(t, srv.handleNewOrder(&tb, "client-1", &NewOrderMessage{
		Side:        common.Buy,
		TimeInForce: common.GTC,
		Price:       100,
		Quantity:    10,
	}))
	require.NoError(t, srv.handleNewOrder(&tb, "client-2", &NewOrderMessage{
		Side:        common.Sell,
		TimeInForce: common.GTC,
		Price:       100,
		Quantity:    10,
	}))

	// Both orders filled completely on insert; neither may leak an owner
	// entry.
	assert.Equal(t, 0, srv.book.Len(common.Buy))
	assert.Equal(t, 0, srv.book.Len(common.Sell))
	assert.Equal(t, 0, srv.ownerCount())
}

func TestHandleNewOrder_RejectionLeavesNoOwner(t *testing.T) {
	srv := newTestServer()
	var tb tomb.Tomb

	require.NoError(t, srv.handleNewOrder(&tb, "client-1", &NewOrderMessage{
		Side:        common.Buy,
		TimeInForce: common.GTC,
		Price:       0,
		Quantity:    10,
	}))

	assert.Equal(t, 0, srv.ownerCount())
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	srv := newTestServer()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.Run(ctx)
		close(done)
	}()

	// Give the listener a moment to come up, then pull the plug.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
