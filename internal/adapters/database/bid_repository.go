package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/outbid/paddle/internal/auction"
)

// PostgresBidRepository persists accepted bids using pgx.
type PostgresBidRepository struct {
	pool *pgxpool.Pool // for read-only operations
}

// NewPostgresBidRepository creates a new PostgreSQL bid repository
func NewPostgresBidRepository(pool *pgxpool.Pool) *PostgresBidRepository {
	return &PostgresBidRepository{pool: pool}
}

// SaveBid appends an accepted bid within a transaction.
func (r *PostgresBidRepository) SaveBid(ctx context.Context, tx pgx.Tx, bid *auction.Bid) error {
	query := `
		INSERT INTO bids (id, item_id, bidder_id, bidder_name, amount, accepted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := tx.Exec(ctx, query,
		bid.ID,
		bid.ItemID,
		bid.Bidder.ID,
		bid.Bidder.Name,
		bid.Amount,
		bid.AcceptedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	return nil
}

// GetBidsByItemID retrieves an item's bid history in acceptance order.
func (r *PostgresBidRepository) GetBidsByItemID(ctx context.Context, itemID uuid.UUID) ([]*auction.Bid, error) {
	query := `
		SELECT id, item_id, bidder_id, bidder_name, amount, accepted_at
		FROM bids
		WHERE item_id = $1
		ORDER BY accepted_at ASC
	`
	rows, err := r.pool.Query(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()

	var result []*auction.Bid
	for rows.Next() {
		var bid auction.Bid
		if err := rows.Scan(
			&bid.ID,
			&bid.ItemID,
			&bid.Bidder.ID,
			&bid.Bidder.Name,
			&bid.Amount,
			&bid.AcceptedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		result = append(result, &bid)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}

	return result, nil
}
