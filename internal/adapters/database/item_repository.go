package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/outbid/paddle/internal/auction"
	pkgdb "github.com/outbid/paddle/pkg/database"
)

// PostgresItemRepository persists auction items using pgx.
type PostgresItemRepository struct {
	pool *pgxpool.Pool // for non-transactional reads
}

// NewPostgresItemRepository creates a new PostgreSQL item repository
func NewPostgresItemRepository(pool *pgxpool.Pool) *PostgresItemRepository {
	return &PostgresItemRepository{pool: pool}
}

// GetItemByID retrieves an item by its ID (non-transactional read).
// Returns auction.ErrItemNotFound for unknown items.
func (r *PostgresItemRepository) GetItemByID(ctx context.Context, itemID uuid.UUID) (*auction.Item, error) {
	return r.getItemByID(ctx, r.pool, itemID)
}

func (r *PostgresItemRepository) getItemByID(ctx context.Context, db pkgdb.DBTX, itemID uuid.UUID) (*auction.Item, error) {
	query := `
		SELECT id, title, description, minimum_bid, current_highest_bid, created_at, updated_at
		FROM items
		WHERE id = $1
	`
	var item auction.Item
	err := db.QueryRow(ctx, query, itemID).Scan(
		&item.ID,
		&item.Title,
		&item.Description,
		&item.MinimumBid,
		&item.CurrentHighestBid,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auction.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return &item, nil
}

// CreateItem inserts a new item with an empty bid history.
func (r *PostgresItemRepository) CreateItem(ctx context.Context, item *auction.Item) error {
	query := `
		INSERT INTO items (id, title, description, minimum_bid, current_highest_bid, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		item.ID,
		item.Title,
		item.Description,
		item.MinimumBid,
		item.CurrentHighestBid,
		item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}
	return nil
}

// DeleteItem removes an item and, through the schema's cascade, its bid
// history. Returns auction.ErrItemNotFound if no row was deleted.
func (r *PostgresItemRepository) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM items WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if result.RowsAffected() == 0 {
		return auction.ErrItemNotFound
	}
	return nil
}

// UpdateHighestBid updates the current highest bid for an item within a
// transaction.
func (r *PostgresItemRepository) UpdateHighestBid(ctx context.Context, tx pgx.Tx, itemID uuid.UUID, amount int64) error {
	query := `
		UPDATE items
		SET current_highest_bid = $1, updated_at = NOW()
		WHERE id = $2
	`
	result, err := tx.Exec(ctx, query, amount, itemID)
	if err != nil {
		return fmt.Errorf("failed to update highest bid: %w", err)
	}
	if result.RowsAffected() == 0 {
		return auction.ErrItemNotFound
	}
	return nil
}
