// Package events wires the outbox relay for this service: accepted-bid
// rows written by the ledger are drained to the auction.events exchange
// on RabbitMQ.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/outbid/paddle/internal/adapters/database"
	pkgdb "github.com/outbid/paddle/pkg/database"
	pkgevents "github.com/outbid/paddle/pkg/events"
)

// Exchange is the topic exchange accepted-bid events are published to.
const Exchange = "auction.events"

// BidEventsProducer relays bid.accepted outbox rows to RabbitMQ.
type BidEventsProducer struct {
	relay     *pkgevents.OutboxRelay
	publisher *pkgevents.RabbitMQPublisher
}

// NewBidEventsProducer builds the relay over the service's pool and
// broker connection.
func NewBidEventsProducer(pool *pgxpool.Pool, conn *amqp.Connection, logger *slog.Logger) (*BidEventsProducer, error) {
	publisher, err := pkgevents.NewRabbitMQPublisher(conn, Exchange)
	if err != nil {
		return nil, fmt.Errorf("failed to create publisher: %w", err)
	}

	txManager := pkgdb.NewPostgresTransactionManager(pool, 3*time.Second)
	outboxRepo := database.NewPostgresOutboxRepository(pool)

	relay := pkgevents.NewOutboxRelay(
		outboxRepo,
		publisher,
		txManager,
		10,                   // batch size
		500*time.Millisecond, // polling interval
		Exchange,
		logger,
	)

	return &BidEventsProducer{
		relay:     relay,
		publisher: publisher,
	}, nil
}

// Run starts the relay loop
func (p *BidEventsProducer) Run(ctx context.Context) error {
	return p.relay.Run(ctx)
}

// Close closes the publisher channel
func (p *BidEventsProducer) Close() error {
	return p.publisher.Close()
}
