// Package hub implements the room-keyed broadcast layer: every auction
// item with live viewers has a room, and accepted-bid events published
// for that item are fanned out to each subscriber of the room.
package hub

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/outbid/paddle/internal/auction"
)

// subscriptionBuffer is how many undelivered events a subscriber may
// lag behind before deliveries to it are dropped. Delivery is
// best-effort: a slow viewer never blocks the publisher or its peers.
const subscriptionBuffer = 16

// Hub routes accepted-bid events to the subscribers of each item's
// room. Rooms exist only while they have subscribers; publishing to an
// item without viewers is a no-op.
type Hub struct {
	logger *slog.Logger

	mu    sync.Mutex
	rooms map[uuid.UUID]map[*Subscription]struct{}
}

// Subscription is one viewer's membership in a room. Events are
// received from Events until Unsubscribe is called or the hub drops the
// subscriber.
type Subscription struct {
	hub    *Hub
	itemID uuid.UUID
	events chan auction.BidAccepted
	closed bool // guarded by hub.mu
}

// New creates an empty hub.
func New(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		rooms:  make(map[uuid.UUID]map[*Subscription]struct{}),
	}
}

// Subscribe adds a viewer to the item's room. There is no replay: the
// subscriber sees only bids accepted after this call returns. Initial
// state comes from the item read endpoint.
func (h *Hub) Subscribe(itemID uuid.UUID) *Subscription {
	sub := &Subscription{
		hub:    h,
		itemID: itemID,
		events: make(chan auction.BidAccepted, subscriptionBuffer),
	}

	h.mu.Lock()
	room, ok := h.rooms[itemID]
	if !ok {
		room = make(map[*Subscription]struct{})
		h.rooms[itemID] = room
	}
	room[sub] = struct{}{}
	h.mu.Unlock()

	return sub
}

// Publish delivers event to every current subscriber of the item's
// room, in publish order per subscriber. Subscribers whose buffer is
// full miss this event rather than slow anyone down.
func (h *Hub) Publish(itemID uuid.UUID, event auction.BidAccepted) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.rooms[itemID] {
		select {
		case sub.events <- event:
		default:
			h.logger.Warn("dropping event for slow subscriber", "item_id", itemID, "bid_id", event.BidID)
		}
	}
}

// RoomSize reports the number of subscribers currently in the item's
// room.
func (h *Hub) RoomSize(itemID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[itemID])
}

// Events is the stream of accepted bids for the subscribed item. The
// channel is closed by Unsubscribe.
func (s *Subscription) Events() <-chan auction.BidAccepted {
	return s.events
}

// Unsubscribe removes the viewer from its room, closing the event
// channel. The room itself is torn down when its last subscriber
// leaves. Calling Unsubscribe more than once is a no-op.
func (s *Subscription) Unsubscribe() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	room := s.hub.rooms[s.itemID]
	delete(room, s)
	if len(room) == 0 {
		delete(s.hub.rooms, s.itemID)
	}
	close(s.events)
}
