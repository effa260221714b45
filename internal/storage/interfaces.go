package storage

import (
	"context"
	"time"

	"payon-market/internal/domain"
)

// HistoryStore provides access to variant_history storage. Rows are
// bulk-inserted per refresh cycle and superseded by later cycles; reads
// always resolve to the most recent cycle per variant.
type HistoryStore interface {
	// InsertBulk adds one cycle's history rows. Returns ErrInvalidInput on
	// nil rows.
	InsertBulk(ctx context.Context, rows []*domain.VariantHistory) error

	// GetByItemID retrieves the latest row per variant of an item, ordered
	// by (refinement, cards) ASC. Empty result when the item is unknown.
	GetByItemID(ctx context.Context, itemID int) ([]*domain.VariantHistory, error)

	// GetByVariant retrieves the latest row for an exact variant.
	// Returns ErrNotFound if no row matches.
	GetByVariant(ctx context.Context, key domain.VariantKey) (*domain.VariantHistory, error)

	// List retrieves the latest row per variant across all items, ordered by
	// (item_id, refinement, cards) ASC, sliced by offset/limit.
	List(ctx context.Context, offset, limit int) ([]*domain.VariantHistory, error)

	// ListItemIDs retrieves distinct item ids ordered by most recent row
	// first (ties by item id ASC).
	ListItemIDs(ctx context.Context) ([]int, error)

	// DeleteOlderThan purges rows created before the cutoff. Returns the
	// number of rows removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// SnapshotStore provides access to variant_snapshot storage. Rows are fully
// replaced each refresh cycle.
type SnapshotStore interface {
	// InsertBulk adds one cycle's snapshot rows. Returns ErrInvalidInput on
	// nil rows.
	InsertBulk(ctx context.Context, rows []*domain.VariantSnapshot) error

	// GetByItemID retrieves the latest row per variant of an item, ordered
	// by (refinement, cards) ASC.
	GetByItemID(ctx context.Context, itemID int) ([]*domain.VariantSnapshot, error)

	// List retrieves the latest row per variant across all items, ordered by
	// (item_id, refinement, cards) ASC, sliced by offset/limit.
	List(ctx context.Context, offset, limit int) ([]*domain.VariantSnapshot, error)

	// DeleteOlderThan purges rows created before the cutoff. Returns the
	// number of rows removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// ItemIndexStore holds the list of item ids known to have market history,
// rebuilt from observed history rows and consumed by incremental refresh
// cycles.
type ItemIndexStore interface {
	// Replace swaps the stored id list for the given one.
	Replace(ctx context.Context, ids []int) error

	// IDs retrieves the stored id list in stored order.
	IDs(ctx context.Context) ([]int, error)
}
