package auction

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// DefaultSubmitTimeout bounds a single bid attempt: waiting for the
// item's serialization slot plus the ledger write.
const DefaultSubmitTimeout = 3 * time.Second

// Registry owns the item-to-arbiter mapping. Arbiters are created
// lazily on first access, hydrated from the ledger, and reclaimed when
// the item is closed. It is the sole authority for the existence checks
// behind ErrItemNotFound.
type Registry struct {
	ledger  ItemLedger
	hub     Broadcaster
	timeout time.Duration

	mu       sync.Mutex
	arbiters map[uuid.UUID]*Arbiter

	// group suppresses duplicate hydration: two concurrent first bids
	// on a never-seen item must end up with the same arbiter instance.
	group singleflight.Group
}

// NewRegistry creates a registry backed by the given ledger. Accepted
// bids are published to hub.
func NewRegistry(ledger ItemLedger, hub Broadcaster, timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = DefaultSubmitTimeout
	}
	return &Registry{
		ledger:   ledger,
		hub:      hub,
		timeout:  timeout,
		arbiters: make(map[uuid.UUID]*Arbiter),
	}
}

// Resolve returns the arbiter for itemID, creating it on first access.
// Returns ErrItemNotFound if the ledger has no such item.
func (r *Registry) Resolve(ctx context.Context, itemID uuid.UUID) (*Arbiter, error) {
	r.mu.Lock()
	arbiter, ok := r.arbiters[itemID]
	r.mu.Unlock()
	if ok {
		return arbiter, nil
	}

	v, err, _ := r.group.Do(itemID.String(), func() (interface{}, error) {
		r.mu.Lock()
		if arbiter, ok := r.arbiters[itemID]; ok {
			r.mu.Unlock()
			return arbiter, nil
		}
		r.mu.Unlock()

		item, err := r.ledger.GetItem(ctx, itemID)
		if err != nil {
			return nil, err
		}

		arbiter := newArbiter(item, r.ledger, r.hub, r.timeout)
		r.mu.Lock()
		r.arbiters[itemID] = arbiter
		r.mu.Unlock()
		return arbiter, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Arbiter), nil
}

// Close marks the item's auction terminal: pending submissions finish,
// later ones are rejected with ErrItemNotFound, and the arbiter is
// dropped so it can be collected. Closing an item without an arbiter is
// a no-op.
func (r *Registry) Close(itemID uuid.UUID) {
	r.mu.Lock()
	arbiter, ok := r.arbiters[itemID]
	delete(r.arbiters, itemID)
	r.mu.Unlock()

	if ok {
		arbiter.close()
	}
}

// Len reports how many arbiters are currently live.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.arbiters)
}
