package auction

import (
	"context"

	"github.com/google/uuid"
)

// ItemLedger is the durable record of items and their bid history,
// owned by the persistence layer.
type ItemLedger interface {
	// GetItem retrieves an item with its current highest bid.
	// Returns ErrItemNotFound for unknown items.
	GetItem(ctx context.Context, itemID uuid.UUID) (*Item, error)

	// AppendBid durably records an accepted bid together with the
	// item's new highest amount in a single transaction. Any failure
	// means the bid was not accepted.
	AppendBid(ctx context.Context, bid *Bid) error
}

// Broadcaster fans an accepted-bid event out to the item's live
// viewers. Publish must not block the caller.
type Broadcaster interface {
	Publish(itemID uuid.UUID, event BidAccepted)
}
