//go:build integration

package events_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"

	"github.com/outbid/paddle/internal/adapters/database"
	"github.com/outbid/paddle/internal/adapters/events"
	"github.com/outbid/paddle/internal/auction"
	pkgdb "github.com/outbid/paddle/pkg/database"
	pkgevents "github.com/outbid/paddle/pkg/events"
	"github.com/outbid/paddle/pkg/testhelpers"
)

// TestProducerIntegrationWithRabbitMQ relays a committed accepted-bid
// outbox row to a real broker and checks the row is marked published.
func TestProducerIntegrationWithRabbitMQ(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	rabbitmqContainer, err := rabbitmq.Run(ctx,
		"rabbitmq:3.12-management-alpine",
		rabbitmq.WithAdminPassword("password"),
	)
	require.NoError(t, err)
	defer func() {
		if termErr := rabbitmqContainer.Terminate(ctx); termErr != nil {
			t.Fatalf("failed to terminate container: %s", termErr)
		}
	}()

	amqpURL, err := rabbitmqContainer.AmqpURL(ctx)
	require.NoError(t, err)

	testDB := testhelpers.NewTestDatabase(t, "../../../migrations")
	defer testDB.Close()
	pool := testDB.Pool

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	pubConn, err := amqp091.Dial(amqpURL)
	require.NoError(t, err)
	defer pubConn.Close()

	producer, err := events.NewBidEventsProducer(pool, pubConn, logger)
	require.NoError(t, err)
	defer producer.Close()

	// Separate consumer connection bound to the accepted-bid routing key.
	conn, err := amqp091.Dial(amqpURL)
	require.NoError(t, err)
	defer conn.Close()

	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	err = ch.ExchangeDeclare(events.Exchange, "topic", true, false, false, false, nil)
	require.NoError(t, err)

	q, err := ch.QueueDeclare("", false, false, true, false, nil)
	require.NoError(t, err)

	err = ch.QueueBind(q.Name, auction.EventTypeBidAccepted, events.Exchange, false, nil)
	require.NoError(t, err)

	msgs, err := ch.Consume(q.Name, "", true, false, false, false, nil)
	require.NoError(t, err)

	// Seed the outbox the way the ledger writes it: a full accepted-bid
	// event committed alongside its bid.
	txManager := pkgdb.NewPostgresTransactionManager(pool, 3*time.Second)
	ledger := database.NewLedger(pool, txManager)

	item := &auction.Item{
		ID:         uuid.New(),
		Title:      "Vintage Watch",
		MinimumBid: 10000,
		CreatedAt:  time.Now(),
	}
	require.NoError(t, ledger.Items().CreateItem(ctx, item))

	bid := &auction.Bid{
		ID:         uuid.New(),
		ItemID:     item.ID,
		Bidder:     auction.Bidder{ID: uuid.New(), Name: "alice"},
		Amount:     15000,
		AcceptedAt: time.Now(),
	}
	require.NoError(t, ledger.AppendBid(ctx, bid))

	ctxProducer, cancelProducer := context.WithCancel(ctx)
	go func() {
		_ = producer.Run(ctxProducer)
	}()
	defer cancelProducer()

	select {
	case msg := <-msgs:
		assert.Equal(t, auction.EventTypeBidAccepted, msg.RoutingKey)
		var event auction.BidAccepted
		require.NoError(t, json.Unmarshal(msg.Body, &event))
		assert.Equal(t, bid.ID, event.BidID)
		assert.Equal(t, item.ID, event.ItemID)
		assert.Equal(t, "alice", event.BidderName)
		assert.Equal(t, int64(15000), event.Amount)
	case <-time.After(10 * time.Second):
		t.Fatal("Timeout waiting for message from RabbitMQ")
	}

	require.Eventually(t, func() bool {
		var status string
		err = pool.QueryRow(ctx,
			"SELECT status FROM outbox_events WHERE payload->>'bidId' = $1",
			bid.ID.String(),
		).Scan(&status)
		if err != nil {
			return false
		}
		return status == string(pkgevents.OutboxStatusPublished)
	}, 5*time.Second, 100*time.Millisecond, "Event status should be updated to 'published'")
}
