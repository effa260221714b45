// Package refresh implements the batch refresh cycles that pull raw market
// data from the upstream source and persist per-variant rows. Ingestion is
// deliberately a single-threaded, rate-limited sequential loop: one upstream
// request in flight at a time with a fixed inter-request delay, as
// backpressure against upstream throttling. Slice mode (offset/limit) skips
// the delay for time-boxed execution contexts.
package refresh

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"payon-market/internal/domain"
	"payon-market/internal/normalize"
	"payon-market/internal/storage"
	"payon-market/internal/upstream"
)

// Default cycle parameters.
const (
	DefaultDelay     = 300 * time.Millisecond
	DefaultRetention = 48 * time.Hour
)

// Source is the upstream pricing source consumed by refresh cycles.
type Source interface {
	ItemHistory(ctx context.Context, itemID int) (*upstream.ItemHistory, error)
	ItemHistoryDetails(ctx context.Context, itemID int) ([]upstream.ListingRecord, error)
}

// Runner executes refresh cycles against the stores.
type Runner struct {
	source     Source
	names      normalize.NameLookup
	normalizer *normalize.Normalizer
	histories  storage.HistoryStore
	snapshots  storage.SnapshotStore
	index      storage.ItemIndexStore
	coveredIDs []int
	delay      time.Duration
	retention  time.Duration
	logger     *log.Logger
	now        func() time.Time
}

// Options contains configuration for creating a Runner.
type Options struct {
	Source     Source
	Names      normalize.NameLookup
	Histories  storage.HistoryStore
	Snapshots  storage.SnapshotStore
	Index      storage.ItemIndexStore
	CoveredIDs []int          // full id universe for full refreshes
	Delay      time.Duration  // inter-request delay, default 300ms
	Retention  time.Duration  // purge horizon, default 48h
	Logger     *log.Logger    // default log.Default()
	Now        func() time.Time
}

// NewRunner creates a refresh runner.
func NewRunner(opts Options) *Runner {
	delay := opts.Delay
	if delay == 0 {
		delay = DefaultDelay
	}
	retention := opts.Retention
	if retention == 0 {
		retention = DefaultRetention
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Runner{
		source:     opts.Source,
		names:      opts.Names,
		normalizer: normalize.NewNormalizer(opts.Names),
		histories:  opts.Histories,
		snapshots:  opts.Snapshots,
		index:      opts.Index,
		coveredIDs: opts.CoveredIDs,
		delay:      delay,
		retention:  retention,
		logger:     logger,
		now:        now,
	}
}

// Slice restricts a cycle to ids[Offset : Offset+Limit] and disables the
// inter-request delay so the cycle fits a short wall-clock budget.
type Slice struct {
	Offset int
	Limit  int
}

// CycleOptions selects the id set and execution mode of one cycle.
type CycleOptions struct {
	// Full walks the configured covered-id universe instead of the stored
	// item index, and purges expired history rows first.
	Full bool

	// Slice, when set, runs in time-boxed slice mode.
	Slice *Slice
}

// Result summarizes one completed refresh cycle.
type Result struct {
	CycleID      string
	Items        int // ids walked
	Failed       int // upstream fetch failures (recovered)
	Skipped      int // items with no data
	RowsInserted int
	RowsPurged   int
	Elapsed      time.Duration
}

// RefreshHistory runs one history refresh cycle: fetch raw history per item,
// normalize into priced events, group by variant and bulk-insert one history
// row per variant at the end of the cycle. Upstream failures and malformed
// batches are recovered per item; a persistence failure aborts the cycle.
func (r *Runner) RefreshHistory(ctx context.Context, opts CycleOptions) (*Result, error) {
	started := r.now()
	result := &Result{CycleID: uuid.NewString()}

	if opts.Full {
		purged, err := r.histories.DeleteOlderThan(ctx, started.Add(-r.retention))
		if err != nil {
			return nil, fmt.Errorf("purge history rows: %w", err)
		}
		result.RowsPurged = purged
	}

	ids, err := r.cycleIDs(ctx, opts)
	if err != nil {
		return nil, err
	}

	var rows []*domain.VariantHistory
	for i, itemID := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.Items++
		r.logger.Printf("[refreshHistory] %s: %d [%d/%d]", result.CycleID, itemID, i+1, len(ids))

		history, err := r.source.ItemHistory(ctx, itemID)
		if err != nil {
			// Unreliable upstream: recover with an empty result and move on.
			r.logger.Printf("[refreshHistory] %d failed: %v", itemID, err)
			result.Failed++
			r.sleep(ctx, opts)
			continue
		}

		if len(history.SellHistory) == 0 && len(history.VendHistory) == 0 {
			result.Skipped++
			r.sleep(ctx, opts)
			continue
		}

		name, _ := r.names.Name(itemID)
		sell := r.normalizeBatches(itemID, history.SellHistory)
		vend := r.normalizeBatches(itemID, history.VendHistory)
		rows = append(rows, normalize.BuildHistories(itemID, name, sell, vend, started)...)

		r.sleep(ctx, opts)
	}

	if err := r.histories.InsertBulk(ctx, rows); err != nil {
		return nil, fmt.Errorf("insert history rows: %w", err)
	}
	result.RowsInserted = len(rows)
	result.Elapsed = r.now().Sub(started)

	r.logger.Printf("[refreshHistory] %s done: %d items, %d failed, %d skipped, %d rows, %d purged (%v)",
		result.CycleID, result.Items, result.Failed, result.Skipped, result.RowsInserted, result.RowsPurged, result.Elapsed)
	return result, nil
}

// RefreshVending runs one live-snapshot refresh cycle: purge expired rows,
// fetch active listings per item, group by variant and bulk-insert one
// snapshot row per variant at the end of the cycle.
func (r *Runner) RefreshVending(ctx context.Context, opts CycleOptions) (*Result, error) {
	started := r.now()
	result := &Result{CycleID: uuid.NewString()}

	purged, err := r.snapshots.DeleteOlderThan(ctx, started.Add(-r.retention))
	if err != nil {
		return nil, fmt.Errorf("purge snapshot rows: %w", err)
	}
	result.RowsPurged = purged

	ids, err := r.cycleIDs(ctx, opts)
	if err != nil {
		return nil, err
	}

	classifier := r.normalizer.Classifier()
	var rows []*domain.VariantSnapshot
	for i, itemID := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.Items++
		r.logger.Printf("[refreshVendingItems] %s: %d [%d/%d]", result.CycleID, itemID, i+1, len(ids))

		records, err := r.source.ItemHistoryDetails(ctx, itemID)
		if err != nil {
			r.logger.Printf("[refreshVendingItems] %d failed: %v", itemID, err)
			result.Failed++
			r.sleep(ctx, opts)
			continue
		}
		if len(records) == 0 {
			result.Skipped++
			r.sleep(ctx, opts)
			continue
		}

		entries := make([]normalize.KeyedListing, 0, len(records))
		for _, rec := range records {
			entries = append(entries, normalize.KeyedListing{
				Key: domain.VariantKey{
					ItemID:     itemID,
					Refinement: rec.Refinement,
					Cards:      classifier.CardCombo(rec.SubItemIDs[:]),
				},
				Listing: rec.Listing,
			})
		}
		groups := normalize.GroupListings(entries)
		keys := make([]domain.VariantKey, 0, len(groups))
		for key := range groups {
			keys = append(keys, key)
		}
		sort.Slice(keys, func(a, b int) bool {
			if keys[a].Refinement != keys[b].Refinement {
				return keys[a].Refinement < keys[b].Refinement
			}
			return keys[a].Cards < keys[b].Cards
		})
		for _, key := range keys {
			rows = append(rows, &domain.VariantSnapshot{
				ItemID:     key.ItemID,
				Refinement: key.Refinement,
				Cards:      key.Cards,
				Listings:   groups[key],
				CreatedAt:  started,
			})
		}

		r.sleep(ctx, opts)
	}

	if err := r.snapshots.InsertBulk(ctx, rows); err != nil {
		return nil, fmt.Errorf("insert snapshot rows: %w", err)
	}
	result.RowsInserted = len(rows)
	result.Elapsed = r.now().Sub(started)

	r.logger.Printf("[refreshVendingItems] %s done: %d items, %d failed, %d skipped, %d rows, %d purged (%v)",
		result.CycleID, result.Items, result.Failed, result.Skipped, result.RowsInserted, result.RowsPurged, result.Elapsed)
	return result, nil
}

// RefreshItemIndex rebuilds the tracked-id index from ids actually observed
// in stored history rows.
func (r *Runner) RefreshItemIndex(ctx context.Context) error {
	ids, err := r.histories.ListItemIDs(ctx)
	if err != nil {
		return fmt.Errorf("list observed item ids: %w", err)
	}
	if err := r.index.Replace(ctx, ids); err != nil {
		return fmt.Errorf("replace item index: %w", err)
	}
	r.logger.Printf("[refreshItemIndex] %d ids indexed", len(ids))
	return nil
}

// cycleIDs resolves the id set of one cycle: the covered-id universe for
// full refreshes, the stored index otherwise, sliced when requested.
func (r *Runner) cycleIDs(ctx context.Context, opts CycleOptions) ([]int, error) {
	ids := r.coveredIDs
	if !opts.Full {
		indexed, err := r.index.IDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("load item index: %w", err)
		}
		ids = indexed
	}

	if s := opts.Slice; s != nil {
		offset := s.Offset
		if offset < 0 {
			offset = 0
		}
		if offset >= len(ids) {
			return nil, nil
		}
		ids = ids[offset:]
		if s.Limit > 0 && s.Limit < len(ids) {
			ids = ids[:s.Limit]
		}
	}
	return ids, nil
}

// normalizeBatches flattens raw batches into priced events, logging
// malformed batches (mismatched arrays, bad dates) as they are skipped.
func (r *Runner) normalizeBatches(itemID int, batches []domain.RawTimeSeries) []domain.PricedEvent {
	var events []domain.PricedEvent
	for _, batch := range batches {
		batchEvents := r.normalizer.Events(itemID, batch)
		if len(batchEvents) == 0 && len(batch.Prices) > 0 {
			r.logger.Printf("[refreshHistory] %d: skipped malformed batch (%d prices, %d filters, date %q)",
				itemID, len(batch.Prices), len(batch.Filters), batch.Date)
			continue
		}
		events = append(events, batchEvents...)
	}
	return events
}

// sleep waits the inter-request delay, except in slice mode where the cycle
// trades rate-limit friendliness for wall-clock latency.
func (r *Runner) sleep(ctx context.Context, opts CycleOptions) {
	if opts.Slice != nil || r.delay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(r.delay):
	}
}
