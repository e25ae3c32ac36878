// Package database is the Postgres-backed Item Ledger: the durable,
// exclusively-owned record of auction items and their ordered bid
// histories.
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/outbid/paddle/internal/auction"
	pkgdb "github.com/outbid/paddle/pkg/database"
	"github.com/outbid/paddle/pkg/events"
)

// Ledger composes the item, bid and outbox repositories behind the
// auction.ItemLedger port. AppendBid is the only mutation of bid state:
// one transaction records the bid, advances the item's highest amount
// and stores the broadcast event in the outbox, so a bid is either
// fully durable or not accepted at all.
type Ledger struct {
	txManager  pkgdb.TransactionManager
	itemRepo   *PostgresItemRepository
	bidRepo    *PostgresBidRepository
	outboxRepo *PostgresOutboxRepository
}

// NewLedger wires the repositories over a single pool.
func NewLedger(pool *pgxpool.Pool, txManager pkgdb.TransactionManager) *Ledger {
	return &Ledger{
		txManager:  txManager,
		itemRepo:   NewPostgresItemRepository(pool),
		bidRepo:    NewPostgresBidRepository(pool),
		outboxRepo: NewPostgresOutboxRepository(pool),
	}
}

// GetItem implements auction.ItemLedger.
func (l *Ledger) GetItem(ctx context.Context, itemID uuid.UUID) (*auction.Item, error) {
	return l.itemRepo.GetItemByID(ctx, itemID)
}

// AppendBid implements auction.ItemLedger.
func (l *Ledger) AppendBid(ctx context.Context, bid *auction.Bid) error {
	tx, err := l.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // no-op after commit
	}()

	if err := l.bidRepo.SaveBid(ctx, tx, bid); err != nil {
		return err
	}

	if err := l.itemRepo.UpdateHighestBid(ctx, tx, bid.ItemID, bid.Amount); err != nil {
		return err
	}

	payload, err := json.Marshal(auction.NewBidAccepted(bid))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	outboxEvent := &events.OutboxEvent{
		ID:        uuid.New(),
		EventType: auction.EventTypeBidAccepted,
		Payload:   payload,
		Status:    events.OutboxStatusPending,
		CreatedAt: time.Now(),
	}
	if err := l.outboxRepo.SaveEvent(ctx, tx, outboxEvent); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Items exposes the item repository for the CRUD entry points.
func (l *Ledger) Items() *PostgresItemRepository {
	return l.itemRepo
}

// Bids exposes the bid repository for history reads.
func (l *Ledger) Bids() *PostgresBidRepository {
	return l.bidRepo
}

// Outbox exposes the outbox repository for the relay.
func (l *Ledger) Outbox() *PostgresOutboxRepository {
	return l.outboxRepo
}
