package auction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Arbiter is the single serialization point for all bid attempts on one
// item. At most one submission is in flight per item at any instant;
// submissions on different items proceed fully in parallel because each
// item has its own arbiter.
type Arbiter struct {
	itemID  uuid.UUID
	ledger  ItemLedger
	hub     Broadcaster
	timeout time.Duration

	// slot is the serialization point: a capacity-1 channel rather than
	// a mutex so acquisition can respect a deadline.
	slot chan struct{}

	// highest and closed are only touched while holding the slot.
	highest int64
	closed  bool

	now func() time.Time
}

func newArbiter(item *Item, ledger ItemLedger, hub Broadcaster, timeout time.Duration) *Arbiter {
	return &Arbiter{
		itemID:  item.ID,
		ledger:  ledger,
		hub:     hub,
		timeout: timeout,
		slot:    make(chan struct{}, 1),
		highest: item.HighestAmount(),
		now:     time.Now,
	}
}

// ItemID returns the item this arbiter serializes.
func (a *Arbiter) ItemID() uuid.UUID {
	return a.itemID
}

// SubmitBid validates amount against the current highest accepted
// amount and, if it is strictly higher, records the bid and publishes a
// BidAccepted event. Acceptance order, ledger order and broadcast order
// are identical for this item. The whole attempt is bounded by the
// arbiter's timeout; running out of time before the bid is durably
// recorded surfaces as ErrPersistence.
func (a *Arbiter) SubmitBid(ctx context.Context, bidder Bidder, amount int64) (*Bid, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	select {
	case a.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: timed out waiting for item %s: %v", ErrPersistence, a.itemID, ctx.Err())
	}
	defer func() { <-a.slot }()

	if a.closed {
		return nil, ErrItemNotFound
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if amount <= a.highest {
		return nil, &BidTooLowError{CurrentHighest: a.highest}
	}

	bid := &Bid{
		ID:         uuid.New(),
		ItemID:     a.itemID,
		Bidder:     bidder,
		Amount:     amount,
		AcceptedAt: a.now(),
	}

	if err := a.ledger.AppendBid(ctx, bid); err != nil {
		if errors.Is(err, ErrItemNotFound) {
			// Item was deleted out from under us: terminal, not retryable.
			a.closed = true
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	// The bid is durable from here on: update the highest amount and
	// broadcast before releasing the slot so per-item event order
	// matches acceptance order.
	a.highest = amount
	a.hub.Publish(a.itemID, NewBidAccepted(bid))

	return bid, nil
}

// close marks the arbiter terminal. It waits for any in-flight
// submission to finish; everything after returns ErrItemNotFound.
func (a *Arbiter) close() {
	a.slot <- struct{}{}
	a.closed = true
	<-a.slot
}
