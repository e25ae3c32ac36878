package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/outbid/paddle/internal/adapters/api"
	"github.com/outbid/paddle/internal/adapters/cache"
	"github.com/outbid/paddle/internal/adapters/database"
	"github.com/outbid/paddle/internal/adapters/events"
	"github.com/outbid/paddle/internal/adapters/ws"
	"github.com/outbid/paddle/internal/auction"
	"github.com/outbid/paddle/internal/hub"
	"github.com/outbid/paddle/pkg/auth"
	pkgdb "github.com/outbid/paddle/pkg/database"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load environment variables (local overrides .env)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Postgres connection pool
	dbURL := os.Getenv("PADDLE_DB_URL")
	if dbURL == "" {
		logger.Error("PADDLE_DB_URL is not set")
		os.Exit(1)
	}

	dbConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		logger.Error("Unable to parse database config", "error", err)
		os.Exit(1)
	}

	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		logger.Error("Unable to create connection pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if pingErr := pool.Ping(ctx); pingErr != nil {
		logger.Error("Unable to ping database", "error", pingErr)
		os.Exit(1)
	}
	logger.Info("Postgres Connected")

	// 2. RabbitMQ (durable event stream)
	rabbitURL := os.Getenv("RABBITMQ_URL")
	if rabbitURL == "" {
		logger.Error("RABBITMQ_URL is not set")
		os.Exit(1)
	}

	amqpConn, err := amqp091.Dial(rabbitURL)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()
	logger.Info("RabbitMQ Connected")

	// 3. Redis (highest-bid cache, optional)
	var highestCache api.HighestCache
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisURL})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis connection failed, running without cache", "error", err)
		} else {
			highestCache = cache.New(rdb, 24*time.Hour)
			logger.Info("Redis Connected")
		}
	}

	// 4. Session gateway public key
	keyFile := os.Getenv("AUTH_PUBLIC_KEY_FILE")
	if keyFile == "" {
		logger.Error("AUTH_PUBLIC_KEY_FILE is not set")
		os.Exit(1)
	}
	keyPEM, err := os.ReadFile(keyFile)
	if err != nil {
		logger.Error("Failed to read auth public key", "error", err)
		os.Exit(1)
	}
	signer, err := auth.NewSignerFromPublicKey(keyPEM, "paddle-auth")
	if err != nil {
		logger.Error("Failed to parse auth public key", "error", err)
		os.Exit(1)
	}

	// 5. Ledger, hub, registry
	txManager := pkgdb.NewPostgresTransactionManager(pool, 3*time.Second)
	ledger := database.NewLedger(pool, txManager)
	broadcastHub := hub.New(logger)
	registry := auction.NewRegistry(ledger, broadcastHub, auction.DefaultSubmitTimeout)

	// 6. Outbox relay to RabbitMQ
	producer, err := events.NewBidEventsProducer(pool, amqpConn, logger)
	if err != nil {
		logger.Error("Failed to create bid events producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	// 7. HTTP surface
	apiHandler := api.NewHandler(registry, ledger.Items(), ledger.Bids(), highestCache, logger)
	wsHandler := ws.NewHandler(registry, broadcastHub, logger)
	requireAuth := auth.Middleware(signer)

	mux := http.NewServeMux()
	mux.Handle("POST /auction", requireAuth(http.HandlerFunc(apiHandler.CreateItem)))
	mux.Handle("GET /auction/{id}", http.HandlerFunc(apiHandler.GetItem))
	mux.Handle("DELETE /auction/{id}", requireAuth(http.HandlerFunc(apiHandler.DeleteItem)))
	mux.Handle("POST /auction/{id}/bid", requireAuth(http.HandlerFunc(apiHandler.PlaceBid)))
	mux.Handle("GET /auction/{id}/live", http.HandlerFunc(wsHandler.Subscribe))
	mux.HandleFunc("GET /health", apiHandler.Health)

	addr := os.Getenv("PADDLE_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("Starting Outbox Relay")
		return producer.Run(groupCtx)
	})

	group.Go(func() error {
		logger.Info("Starting Paddle Bid Service", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("Service stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("Service stopped")
}
