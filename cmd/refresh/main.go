// Package main provides a one-shot refresh command for use from cron or by
// hand: a single history, vending, or index cycle against the configured
// stores, then exit.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"payon-market/internal/refresh"
	"payon-market/internal/storage/migrations"
	pgstore "payon-market/internal/storage/postgres"
	"payon-market/internal/upstream"
)

func main() {
	_ = godotenv.Load()

	mode := flag.String("mode", "history", "Cycle to run: history, vending, or index")
	full := flag.Bool("full", false, "Refresh covered ids plus the stored item index")
	offset := flag.Int("offset", -1, "Slice offset into the id list (-1 disables slicing)")
	limit := flag.Int("limit", 0, "Slice length (requires -offset)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	upstreamEndpoint := flag.String("upstream-endpoint", os.Getenv("PRICING_ENDPOINT"), "Upstream pricing source base URL")
	namesEndpoint := flag.String("names-endpoint", os.Getenv("NAMES_ENDPOINT"), "Item/card name lookup base URL")
	coveredIDs := flag.String("covered-ids", os.Getenv("COVERED_ITEM_IDS"), "Comma-separated item ids for full refreshes")
	requestDelay := flag.Duration("request-delay", refresh.DefaultDelay, "Inter-request delay against the upstream source")
	flag.Parse()

	logger := log.New(os.Stdout, "", log.LstdFlags)

	if *upstreamEndpoint == "" {
		logger.Fatal("upstream endpoint is required (-upstream-endpoint / PRICING_ENDPOINT)")
	}
	if *postgresDSN == "" {
		logger.Fatal("postgres dsn is required (-postgres-dsn / POSTGRES_DSN)")
	}

	ids, err := parseIDList(*coveredIDs)
	if err != nil {
		logger.Fatalf("parse covered ids: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("run migrations: %v", err)
	}

	runner := refresh.NewRunner(refresh.Options{
		Source:     upstream.NewClient(*upstreamEndpoint, 0),
		Names:      upstream.NewNameService(*namesEndpoint, 0, nil),
		Histories:  pgstore.NewHistoryStore(pool),
		Snapshots:  pgstore.NewSnapshotStore(pool),
		Index:      pgstore.NewItemIndexStore(pool),
		CoveredIDs: ids,
		Delay:      *requestDelay,
		Logger:     logger,
	})

	opts := refresh.CycleOptions{Full: *full}
	if *offset >= 0 {
		opts.Slice = &refresh.Slice{Offset: *offset, Limit: *limit}
	}

	switch *mode {
	case "history":
		result, err := runner.RefreshHistory(ctx, opts)
		if err != nil {
			logger.Fatalf("history refresh: %v", err)
		}
		logger.Printf("History cycle %s done: %d items, %d failed, %d rows inserted, %d purged in %s",
			result.CycleID, result.Items, result.Failed, result.RowsInserted, result.RowsPurged, result.Elapsed)
	case "vending":
		result, err := runner.RefreshVending(ctx, opts)
		if err != nil {
			logger.Fatalf("vending refresh: %v", err)
		}
		logger.Printf("Vending cycle %s done: %d items, %d failed, %d rows inserted, %d purged in %s",
			result.CycleID, result.Items, result.Failed, result.RowsInserted, result.RowsPurged, result.Elapsed)
	case "index":
		if err := runner.RefreshItemIndex(ctx); err != nil {
			logger.Fatalf("index refresh: %v", err)
		}
		logger.Println("Item index refreshed")
	default:
		logger.Fatalf("unknown mode %q (want history, vending, or index)", *mode)
	}
}

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
