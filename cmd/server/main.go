// Package main provides the unified service: HTTP API over the query views
// plus scheduled history and vending refresh cycles.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"payon-market/internal/api"
	"payon-market/internal/query"
	"payon-market/internal/refresh"
	"payon-market/internal/storage"
	"payon-market/internal/storage/memory"
	"payon-market/internal/storage/migrations"
	pgstore "payon-market/internal/storage/postgres"
	"payon-market/internal/upstream"
)

func main() {
	// Load .env file if present; flags below fall back to env vars.
	_ = godotenv.Load()

	addr := flag.String("addr", envOr("ADDR", ":8080"), "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	useMemory := flag.Bool("use-memory", os.Getenv("USE_MEMORY") == "true", "Use in-memory stores instead of Postgres")
	upstreamEndpoint := flag.String("upstream-endpoint", os.Getenv("PRICING_ENDPOINT"), "Upstream pricing source base URL")
	namesEndpoint := flag.String("names-endpoint", os.Getenv("NAMES_ENDPOINT"), "Item/card name lookup base URL")
	iconBaseURL := flag.String("icon-base-url", os.Getenv("ICON_URL_BASE_ENDPOINT"), "Base URL for item icons")
	coveredIDs := flag.String("covered-ids", os.Getenv("COVERED_ITEM_IDS"), "Comma-separated item ids for full refreshes")
	historyInterval := flag.Duration("history-interval", 6*time.Hour, "Interval between full history refresh cycles (0 disables)")
	vendingInterval := flag.Duration("vending-interval", 15*time.Minute, "Interval between sliced vending refresh cycles (0 disables)")
	vendingBatchSize := flag.Int("vending-batch-size", 50, "Items per sliced vending refresh cycle")
	requestDelay := flag.Duration("request-delay", refresh.DefaultDelay, "Inter-request delay against the upstream source")
	flag.Parse()

	logger := log.New(os.Stdout, "", log.LstdFlags)

	if *upstreamEndpoint == "" {
		logger.Fatal("upstream endpoint is required (-upstream-endpoint / PRICING_ENDPOINT)")
	}

	ids, err := parseIDList(*coveredIDs)
	if err != nil {
		logger.Fatalf("parse covered ids: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stores
	var (
		histories storage.HistoryStore
		snapshots storage.SnapshotStore
		index     storage.ItemIndexStore
	)
	if *useMemory {
		logger.Println("Using in-memory stores")
		histories = memory.NewHistoryStore()
		snapshots = memory.NewSnapshotStore()
		index = memory.NewItemIndexStore()
	} else {
		if *postgresDSN == "" {
			logger.Fatal("postgres dsn is required unless -use-memory is set")
		}
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("connect postgres: %v", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("run migrations: %v", err)
		}
		histories = pgstore.NewHistoryStore(pool)
		snapshots = pgstore.NewSnapshotStore(pool)
		index = pgstore.NewItemIndexStore(pool)
	}

	// Upstream collaborators
	client := upstream.NewClient(*upstreamEndpoint, 0)
	names := upstream.NewNameService(*namesEndpoint, 0, nil)

	runner := refresh.NewRunner(refresh.Options{
		Source:     client,
		Names:      names,
		Histories:  histories,
		Snapshots:  snapshots,
		Index:      index,
		CoveredIDs: ids,
		Delay:      *requestDelay,
		Logger:     logger,
	})

	queries := query.NewService(query.Options{
		Histories: histories,
		Snapshots: snapshots,
	})

	server := api.NewServer(api.Options{
		Query:       queries,
		Runner:      runner,
		IconBaseURL: *iconBaseURL,
		Logger:      logger,
	})

	// Scheduled refresh loops
	go historyLoop(ctx, runner, *historyInterval, logger)
	go vendingLoop(ctx, runner, *vendingInterval, *vendingBatchSize, logger)

	httpServer := &http.Server{Addr: *addr, Handler: server.Handler()}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Printf("Listening on %s", *addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("http server: %v", err)
	}
}

// historyLoop runs full history refresh cycles (followed by an item index
// rebuild) on a fixed interval.
func historyLoop(ctx context.Context, runner *refresh.Runner, interval time.Duration, logger *log.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := runner.RefreshHistory(ctx, refresh.CycleOptions{Full: true}); err != nil {
				logger.Printf("scheduled history refresh: %v", err)
				continue
			}
			if err := runner.RefreshItemIndex(ctx); err != nil {
				logger.Printf("scheduled index refresh: %v", err)
			}
		}
	}
}

// vendingLoop runs sliced vending refresh cycles on a fixed interval. The
// slice offset is derived from the current minute so consecutive runs walk
// the id list in batches, as the original cron trigger did.
func vendingLoop(ctx context.Context, runner *refresh.Runner, interval time.Duration, batchSize int, logger *log.Logger) {
	if interval <= 0 || batchSize <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			slice := &refresh.Slice{
				Offset: time.Now().Minute() * batchSize,
				Limit:  batchSize,
			}
			if _, err := runner.RefreshVending(ctx, refresh.CycleOptions{Slice: slice}); err != nil {
				logger.Printf("scheduled vending refresh: %v", err)
			}
		}
	}
}

// parseIDList parses a comma-separated id list. Empty input yields nil.
func parseIDList(value string) ([]int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	parts := strings.Split(value, ",")
	ids := make([]int, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid item id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
