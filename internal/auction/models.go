package auction

import (
	"time"

	"github.com/google/uuid"
)

// Item represents an auction item. MinimumBid is immutable once bidding
// has started; CurrentHighestBid is maintained by the ledger alongside
// the bid history.
type Item struct {
	ID                uuid.UUID
	Title             string
	Description       string
	MinimumBid        int64 // in cents
	CurrentHighestBid int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HighestAmount returns the amount a new bid must exceed.
func (i *Item) HighestAmount() int64 {
	if i.CurrentHighestBid > i.MinimumBid {
		return i.CurrentHighestBid
	}
	return i.MinimumBid
}

// Bidder is the authenticated identity placing a bid, as supplied by
// the session layer. It is never re-verified here.
type Bidder struct {
	ID   uuid.UUID
	Name string
}

// Bid is an accepted bid. AcceptedAt is assigned when the bid passes
// validation inside the arbiter, not when the request arrived. Bids are
// append-only.
type Bid struct {
	ID         uuid.UUID
	ItemID     uuid.UUID
	Bidder     Bidder
	Amount     int64 // in cents
	AcceptedAt time.Time
}

// BidAccepted is the event fanned out to live viewers and written to
// the outbox after a bid is durably recorded.
type BidAccepted struct {
	BidID      uuid.UUID `json:"bidId"`
	ItemID     uuid.UUID `json:"itemId"`
	BidderID   uuid.UUID `json:"bidderId"`
	BidderName string    `json:"bidderName"`
	Amount     int64     `json:"amount"`
	AcceptedAt time.Time `json:"acceptedAt"`
}

// EventTypeBidAccepted is the outbox routing key for BidAccepted events.
const EventTypeBidAccepted = "bid.accepted"

// NewBidAccepted builds the broadcast event for an accepted bid.
func NewBidAccepted(bid *Bid) BidAccepted {
	return BidAccepted{
		BidID:      bid.ID,
		ItemID:     bid.ItemID,
		BidderID:   bid.Bidder.ID,
		BidderName: bid.Bidder.Name,
		Amount:     bid.Amount,
		AcceptedAt: bid.AcceptedAt,
	}
}
