// Package cache mirrors each item's current highest amount in Redis so
// the item view path can answer without touching Postgres. The arbiter
// never reads it; losing the cache only costs a ledger round trip.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned when no highest amount is cached for an item.
var ErrCacheMiss = errors.New("highest bid not cached")

// HighestBidCache stores the latest accepted amount per item.
type HighestBidCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a cache with the given entry TTL (0 = no expiry).
func New(client *redis.Client, ttl time.Duration) *HighestBidCache {
	return &HighestBidCache{client: client, ttl: ttl}
}

func key(itemID uuid.UUID) string {
	return fmt.Sprintf("auction:item:%s:highest", itemID)
}

// SetHighest records the item's current highest amount (in cents).
func (c *HighestBidCache) SetHighest(ctx context.Context, itemID uuid.UUID, amount int64) error {
	if err := c.client.Set(ctx, key(itemID), amount, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache highest bid: %w", err)
	}
	return nil
}

// GetHighest reads the cached highest amount for an item.
func (c *HighestBidCache) GetHighest(ctx context.Context, itemID uuid.UUID) (int64, error) {
	amount, err := c.client.Get(ctx, key(itemID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrCacheMiss
		}
		return 0, fmt.Errorf("failed to read cached highest bid: %w", err)
	}
	return amount, nil
}

// Invalidate drops the cached amount, used when an item is deleted.
func (c *HighestBidCache) Invalidate(ctx context.Context, itemID uuid.UUID) error {
	if err := c.client.Del(ctx, key(itemID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached highest bid: %w", err)
	}
	return nil
}
