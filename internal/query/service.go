// Package query builds the read-side views of the pipeline: per-variant
// window statistics, live vending summaries and relative price indicators,
// computed on read from persisted rows rather than stored. Aggregation is
// pure and holds no shared state, so views are computed in parallel across
// variants without changing results.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"payon-market/internal/domain"
	"payon-market/internal/stats"
	"payon-market/internal/storage"
)

// DefaultParallelism bounds the per-variant compute fan-out.
const DefaultParallelism = 8

// HistoryView is one variant's historical statistics across all windows.
type HistoryView struct {
	ItemID     int                     `json:"itemId"`
	Name       string                  `json:"name"`
	Refinement int                     `json:"refinement"`
	Cards      string                  `json:"cards"`
	Last7Days  domain.WindowStatistics `json:"last7days"`
	Last30Days domain.WindowStatistics `json:"last30days"`
	AllTime    domain.WindowStatistics `json:"allTime"`
}

// VendingView is one variant's live listing summary plus price indicators
// for every (metric, window) combination, keyed "{metric}_{window}".
type VendingView struct {
	ItemID     int                               `json:"itemId"`
	Name       string                            `json:"name"`
	Refinement int                               `json:"refinement"`
	Cards      string                            `json:"cards"`
	Summary    domain.SnapshotSummary            `json:"summary"`
	Indicators map[string]domain.PriceIndicator `json:"indicators"`
}

// Service computes read-side views from the stores.
type Service struct {
	histories   storage.HistoryStore
	snapshots   storage.SnapshotStore
	now         func() time.Time
	parallelism int
}

// Options contains configuration for creating a Service.
type Options struct {
	Histories   storage.HistoryStore
	Snapshots   storage.SnapshotStore
	Now         func() time.Time
	Parallelism int
}

// NewService creates a query service.
func NewService(opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}
	return &Service{
		histories:   opts.Histories,
		snapshots:   opts.Snapshots,
		now:         now,
		parallelism: parallelism,
	}
}

// Items returns paginated history views across all variants, plus a hasMore
// flag for the next page.
func (s *Service) Items(ctx context.Context, offset, take int) ([]HistoryView, bool, error) {
	if take <= 0 {
		return nil, false, fmt.Errorf("%w: take must be positive", storage.ErrInvalidInput)
	}

	// Fetch one extra row to detect whether a next page exists.
	rows, err := s.histories.List(ctx, offset, take+1)
	if err != nil {
		return nil, false, fmt.Errorf("list history rows: %w", err)
	}
	hasMore := len(rows) > take
	if hasMore {
		rows = rows[:take]
	}

	views, err := s.historyViews(ctx, rows)
	return views, hasMore, err
}

// Item returns the history views of every variant of one item.
func (s *Service) Item(ctx context.Context, itemID int) ([]HistoryView, error) {
	rows, err := s.histories.GetByItemID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("get history rows: %w", err)
	}
	return s.historyViews(ctx, rows)
}

// Vending returns paginated live vending views across all variants, plus a
// hasMore flag. Each view carries the snapshot summary and the full
// indicator grid against the variant's own history.
func (s *Service) Vending(ctx context.Context, offset, take int) ([]VendingView, bool, error) {
	if take <= 0 {
		return nil, false, fmt.Errorf("%w: take must be positive", storage.ErrInvalidInput)
	}

	rows, err := s.snapshots.List(ctx, offset, take+1)
	if err != nil {
		return nil, false, fmt.Errorf("list snapshot rows: %w", err)
	}
	hasMore := len(rows) > take
	if hasMore {
		rows = rows[:take]
	}

	views := make([]VendingView, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, row := range rows {
		g.Go(func() error {
			view, err := s.vendingView(gctx, row)
			if err != nil {
				return err
			}
			views[i] = view
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, false, err
	}
	return views, hasMore, nil
}

// historyViews computes window statistics for each row in parallel.
func (s *Service) historyViews(ctx context.Context, rows []*domain.VariantHistory) ([]HistoryView, error) {
	now := s.now()
	views := make([]HistoryView, len(rows))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, row := range rows {
		g.Go(func() error {
			views[i] = HistoryView{
				ItemID:     row.ItemID,
				Name:       row.Name,
				Refinement: row.Refinement,
				Cards:      row.Cards,
				Last7Days:  stats.Compute(row, domain.Last7Days, now),
				Last30Days: stats.Compute(row, domain.Last30Days, now),
				AllTime:    stats.Compute(row, domain.AllTime, now),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return views, nil
}

// vendingView summarizes one snapshot row and computes its indicator grid.
// A variant with no matching history row compares as neutral-favorable on
// every combination.
func (s *Service) vendingView(ctx context.Context, row *domain.VariantSnapshot) (VendingView, error) {
	summary := stats.Summarize(row.Listings)

	view := VendingView{
		ItemID:     row.ItemID,
		Refinement: row.Refinement,
		Cards:      row.Cards,
		Summary:    summary,
		Indicators: make(map[string]domain.PriceIndicator, len(domain.Metrics)*len(domain.Windows)),
	}

	history, err := s.histories.GetByVariant(ctx, row.Key())
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return VendingView{}, fmt.Errorf("get history for variant: %w", err)
	}

	now := s.now()
	for _, window := range domain.Windows {
		var windowStats domain.WindowStatistics
		if history != nil {
			windowStats = stats.Compute(history, window, now)
		}
		for _, metric := range domain.Metrics {
			key := fmt.Sprintf("%s_%s", metric, window)
			view.Indicators[key] = stats.Compare(summary.LowestPrice, stats.Reference(windowStats, metric))
		}
	}

	if history != nil {
		view.Name = history.Name
	}
	return view, nil
}
