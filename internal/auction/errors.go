package auction

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAmount rejects non-positive or malformed bid amounts.
	ErrInvalidAmount = errors.New("bid amount must be positive")

	// ErrBidTooLow is the sentinel matched by errors.Is for rejected
	// bids; the concrete error is always a *BidTooLowError.
	ErrBidTooLow = errors.New("bid amount must be higher than current highest bid")

	// ErrItemNotFound covers both unknown items and items whose auction
	// has been closed. Terminal for the request.
	ErrItemNotFound = errors.New("auction item not found")

	// ErrPersistence means the ledger write did not durably complete.
	// The bid is treated as not accepted and no event is broadcast, so
	// the same submission is safe to retry.
	ErrPersistence = errors.New("failed to record bid")
)

// BidTooLowError carries the highest amount at the instant of rejection
// so the client can offer a valid next bid without another round trip.
type BidTooLowError struct {
	CurrentHighest int64
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid amount must be higher than current highest bid (%d)", e.CurrentHighest)
}

func (e *BidTooLowError) Is(target error) bool {
	return target == ErrBidTooLow
}
