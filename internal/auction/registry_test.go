package auction_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outbid/paddle/internal/auction"
)

func TestRegistry_ResolveUnknownItem(t *testing.T) {
	registry := auction.NewRegistry(newMemLedger(), newCaptureHub(), time.Second)

	arbiter, err := registry.Resolve(context.Background(), uuid.New())

	assert.ErrorIs(t, err, auction.ErrItemNotFound)
	assert.Nil(t, arbiter)
	assert.Equal(t, 0, registry.Len())
}

// TestRegistry_ConcurrentFirstResolve: concurrent first bids on a
// never-seen item must all end up with the same arbiter instance,
// otherwise per-item serialization means nothing.
func TestRegistry_ConcurrentFirstResolve(t *testing.T) {
	item := testItem(10000)
	registry := auction.NewRegistry(newMemLedger(item), newCaptureHub(), time.Second)

	const resolvers = 32
	arbiters := make([]*auction.Arbiter, resolvers)
	var wg sync.WaitGroup
	for i := 0; i < resolvers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			arbiter, err := registry.Resolve(context.Background(), item.ID)
			require.NoError(t, err)
			arbiters[i] = arbiter
		}(i)
	}
	wg.Wait()

	for i := 1; i < resolvers; i++ {
		assert.Same(t, arbiters[0], arbiters[i])
	}
	assert.Equal(t, 1, registry.Len())
	assert.Equal(t, item.ID, arbiters[0].ItemID())
}

// TestRegistry_ResolveHydratesHighest: an arbiter created for an item
// with existing history rejects bids at or below the recorded highest.
func TestRegistry_ResolveHydratesHighest(t *testing.T) {
	item := testItem(10000)
	item.CurrentHighestBid = 17500
	registry := auction.NewRegistry(newMemLedger(item), newCaptureHub(), time.Second)

	arbiter, err := registry.Resolve(context.Background(), item.ID)
	require.NoError(t, err)

	_, err = arbiter.SubmitBid(context.Background(), testBidder("alice"), 17500)
	var tooLow *auction.BidTooLowError
	require.ErrorAs(t, err, &tooLow)
	assert.Equal(t, int64(17500), tooLow.CurrentHighest)
}

func TestRegistry_Close(t *testing.T) {
	item := testItem(10000)
	ledger := newMemLedger(item)
	hub := newCaptureHub()
	registry := auction.NewRegistry(ledger, hub, time.Second)
	ctx := context.Background()

	arbiter, err := registry.Resolve(ctx, item.ID)
	require.NoError(t, err)

	registry.Close(item.ID)
	assert.Equal(t, 0, registry.Len())

	// The retained arbiter is terminal.
	bid, err := arbiter.SubmitBid(ctx, testBidder("alice"), 15000)
	assert.ErrorIs(t, err, auction.ErrItemNotFound)
	assert.Nil(t, bid)
	assert.Empty(t, hub.published(item.ID))

	// Closing an item without an arbiter is a no-op.
	registry.Close(uuid.New())
}

// TestRegistry_CloseWaitsForInFlight: a submission that already holds
// the serialization slot completes before the close takes effect.
func TestRegistry_CloseWaitsForInFlight(t *testing.T) {
	item := testItem(10000)
	ledger := newMemLedger(item)
	registry := auction.NewRegistry(ledger, newCaptureHub(), 5*time.Second)
	ctx := context.Background()

	arbiter, err := registry.Resolve(ctx, item.ID)
	require.NoError(t, err)

	release := ledger.blockAppends(item.ID)

	submitted := make(chan error, 1)
	go func() {
		_, err := arbiter.SubmitBid(ctx, testBidder("alice"), 15000)
		submitted <- err
	}()

	// Give the submission time to take the slot, then close while its
	// write is still pending.
	time.Sleep(50 * time.Millisecond)
	closed := make(chan struct{})
	go func() {
		registry.Close(item.ID)
		close(closed)
	}()

	release()
	assert.NoError(t, <-submitted, "in-flight bid completes despite the close")
	<-closed
	assert.Equal(t, []int64{15000}, ledger.bidAmounts(item.ID))
}
