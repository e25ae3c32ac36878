package auction_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/outbid/paddle/internal/auction"
)

// memLedger is an in-memory ItemLedger for unit tests. gate, appendErr
// and appendDelay simulate slow or failing persistence.
type memLedger struct {
	mu    sync.Mutex
	items map[uuid.UUID]*auction.Item
	bids  map[uuid.UUID][]*auction.Bid

	appendErr   error
	appendDelay time.Duration
	gate        map[uuid.UUID]chan struct{} // AppendBid blocks until the item's gate is closed
}

func newMemLedger(items ...*auction.Item) *memLedger {
	l := &memLedger{
		items: make(map[uuid.UUID]*auction.Item),
		bids:  make(map[uuid.UUID][]*auction.Bid),
		gate:  make(map[uuid.UUID]chan struct{}),
	}
	for _, item := range items {
		copied := *item
		l.items[item.ID] = &copied
	}
	return l
}

func (l *memLedger) GetItem(_ context.Context, itemID uuid.UUID) (*auction.Item, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	item, ok := l.items[itemID]
	if !ok {
		return nil, auction.ErrItemNotFound
	}
	copied := *item
	return &copied, nil
}

func (l *memLedger) AppendBid(ctx context.Context, bid *auction.Bid) error {
	l.mu.Lock()
	gate := l.gate[bid.ItemID]
	delay := l.appendDelay
	failure := l.appendErr
	l.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if failure != nil {
		return failure
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	item, ok := l.items[bid.ItemID]
	if !ok {
		return auction.ErrItemNotFound
	}
	l.bids[bid.ItemID] = append(l.bids[bid.ItemID], bid)
	item.CurrentHighestBid = bid.Amount
	return nil
}

func (l *memLedger) bidAmounts(itemID uuid.UUID) []int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	amounts := make([]int64, 0, len(l.bids[itemID]))
	for _, bid := range l.bids[itemID] {
		amounts = append(amounts, bid.Amount)
	}
	return amounts
}

func (l *memLedger) setAppendErr(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.appendErr = err
}

func (l *memLedger) blockAppends(itemID uuid.UUID) (release func()) {
	gate := make(chan struct{})
	l.mu.Lock()
	l.gate[itemID] = gate
	l.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// captureHub records published events in order.
type captureHub struct {
	mu     sync.Mutex
	events map[uuid.UUID][]auction.BidAccepted
}

func newCaptureHub() *captureHub {
	return &captureHub{events: make(map[uuid.UUID][]auction.BidAccepted)}
}

func (h *captureHub) Publish(itemID uuid.UUID, event auction.BidAccepted) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events[itemID] = append(h.events[itemID], event)
}

func (h *captureHub) published(itemID uuid.UUID) []auction.BidAccepted {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]auction.BidAccepted(nil), h.events[itemID]...)
}

var errLedgerDown = errors.New("ledger unavailable")
