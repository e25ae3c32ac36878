package hub_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outbid/paddle/internal/auction"
	"github.com/outbid/paddle/internal/hub"
)

func testEvent(itemID uuid.UUID, amount int64) auction.BidAccepted {
	return auction.BidAccepted{
		BidID:      uuid.New(),
		ItemID:     itemID,
		BidderID:   uuid.New(),
		BidderName: "alice",
		Amount:     amount,
		AcceptedAt: time.Now(),
	}
}

func newTestHub() *hub.Hub {
	return hub.New(slog.Default())
}

func TestHub_PublishReachesAllSubscribers(t *testing.T) {
	h := newTestHub()
	itemID := uuid.New()

	first := h.Subscribe(itemID)
	second := h.Subscribe(itemID)
	assert.Equal(t, 2, h.RoomSize(itemID))

	event := testEvent(itemID, 15000)
	h.Publish(itemID, event)

	for _, sub := range []*hub.Subscription{first, second} {
		select {
		case got := <-sub.Events():
			assert.Equal(t, event.BidID, got.BidID)
			assert.Equal(t, int64(15000), got.Amount)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive the event")
		}
	}
}

func TestHub_DeliveryOrderMatchesPublishOrder(t *testing.T) {
	h := newTestHub()
	itemID := uuid.New()
	sub := h.Subscribe(itemID)

	amounts := []int64{11000, 12000, 13000, 14000}
	for _, amount := range amounts {
		h.Publish(itemID, testEvent(itemID, amount))
	}

	for _, want := range amounts {
		select {
		case got := <-sub.Events():
			assert.Equal(t, want, got.Amount)
		case <-time.After(time.Second):
			t.Fatal("missing event")
		}
	}
}

func TestHub_RoomsAreIndependent(t *testing.T) {
	h := newTestHub()
	itemX := uuid.New()
	itemY := uuid.New()

	subX := h.Subscribe(itemX)
	subY := h.Subscribe(itemY)

	h.Publish(itemX, testEvent(itemX, 15000))

	select {
	case got := <-subX.Events():
		assert.Equal(t, itemX, got.ItemID)
	case <-time.After(time.Second):
		t.Fatal("room X subscriber did not receive the event")
	}

	select {
	case got := <-subY.Events():
		t.Fatalf("room Y subscriber received a room X event: %+v", got)
	default:
	}
}

func TestHub_UnsubscribeIsIdempotent(t *testing.T) {
	h := newTestHub()
	itemID := uuid.New()

	sub := h.Subscribe(itemID)
	keep := h.Subscribe(itemID)

	sub.Unsubscribe()
	sub.Unsubscribe() // second call must be a no-op
	assert.Equal(t, 1, h.RoomSize(itemID))

	// The channel is closed exactly once.
	_, open := <-sub.Events()
	assert.False(t, open)

	// Future publishes reach remaining subscribers only.
	h.Publish(itemID, testEvent(itemID, 15000))
	select {
	case got, open := <-keep.Events():
		require.True(t, open)
		assert.Equal(t, int64(15000), got.Amount)
	case <-time.After(time.Second):
		t.Fatal("remaining subscriber did not receive the event")
	}
}

func TestHub_RoomTornDownWhenEmpty(t *testing.T) {
	h := newTestHub()
	itemID := uuid.New()

	sub := h.Subscribe(itemID)
	assert.Equal(t, 1, h.RoomSize(itemID))

	sub.Unsubscribe()
	assert.Equal(t, 0, h.RoomSize(itemID))

	// Publishing to an empty room is a no-op, not an error.
	h.Publish(itemID, testEvent(itemID, 15000))
	assert.Equal(t, 0, h.RoomSize(itemID))
}

// TestHub_SlowSubscriberDoesNotBlockOthers fills one subscriber's
// buffer and checks a healthy subscriber still receives everything.
func TestHub_SlowSubscriberDoesNotBlockOthers(t *testing.T) {
	h := newTestHub()
	itemID := uuid.New()

	slow := h.Subscribe(itemID)
	healthy := h.Subscribe(itemID)

	const published = 40 // more than a subscription buffers

	// Drain the healthy subscriber as events arrive; the slow one never
	// reads, so its buffer fills and later deliveries to it are dropped.
	got := make(chan int64, published)
	go func() {
		for event := range healthy.Events() {
			got <- event.Amount
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < published; i++ {
			h.Publish(itemID, testEvent(itemID, int64(10000+i)))
			time.Sleep(time.Millisecond) // let the healthy reader keep up
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}

	for i := 0; i < published; i++ {
		select {
		case amount := <-got:
			assert.Equal(t, int64(10000+i), amount, "healthy subscriber sees every event in order")
		case <-time.After(time.Second):
			t.Fatalf("healthy subscriber got %d of %d events", i, published)
		}
	}
	assert.Less(t, len(slow.Events()), published, "slow subscriber missed dropped events")
	healthy.Unsubscribe()
}
