package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"payon-market/internal/domain"
	"payon-market/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using PostgreSQL. Listing
// payloads are stored as JSONB arrays.
type SnapshotStore struct {
	pool *Pool
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

const snapshotColumns = "item_id, refinement, cards, listings, created_at"

// InsertBulk adds one cycle's snapshot rows in a single batch.
func (s *SnapshotStore) InsertBulk(ctx context.Context, rows []*domain.VariantSnapshot) error {
	if len(rows) == 0 {
		return nil
	}

	query := `
		INSERT INTO variant_snapshot (item_id, refinement, cards, listings, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	batch := &pgx.Batch{}
	for _, r := range rows {
		if r == nil {
			return storage.ErrInvalidInput
		}
		listings := r.Listings
		if listings == nil {
			listings = []domain.Listing{}
		}
		listingsJSON, err := json.Marshal(listings)
		if err != nil {
			return fmt.Errorf("marshal listings: %w", err)
		}
		batch.Queue(query, r.ItemID, r.Refinement, r.Cards, listingsJSON, r.CreatedAt)
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert snapshot rows: %w", err)
	}
	return nil
}

// GetByItemID retrieves the latest row per variant of an item.
func (s *SnapshotStore) GetByItemID(ctx context.Context, itemID int) ([]*domain.VariantSnapshot, error) {
	query := `
		SELECT DISTINCT ON (item_id, refinement, cards) ` + snapshotColumns + `
		FROM variant_snapshot
		WHERE item_id = $1
		ORDER BY item_id, refinement, cards, created_at DESC, id DESC
	`

	rows, err := s.pool.Query(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("get snapshots by item id: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// List retrieves the latest row per variant across all items, sliced by
// offset/limit. A non-positive limit returns all remaining rows.
func (s *SnapshotStore) List(ctx context.Context, offset, limit int) ([]*domain.VariantSnapshot, error) {
	query := `
		SELECT DISTINCT ON (item_id, refinement, cards) ` + snapshotColumns + `
		FROM variant_snapshot
		ORDER BY item_id, refinement, cards, created_at DESC, id DESC
		OFFSET $1 LIMIT NULLIF($2, 0)
	`

	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}

	rows, err := s.pool.Query(ctx, query, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// DeleteOlderThan purges rows created before the cutoff.
func (s *SnapshotStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM variant_snapshot WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old snapshot rows: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// scanSnapshot scans a single row into a VariantSnapshot.
func scanSnapshot(row pgx.Row) (*domain.VariantSnapshot, error) {
	var snap domain.VariantSnapshot
	var listingsJSON []byte

	err := row.Scan(
		&snap.ItemID,
		&snap.Refinement,
		&snap.Cards,
		&listingsJSON,
		&snap.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(listingsJSON, &snap.Listings); err != nil {
		return nil, fmt.Errorf("unmarshal listings: %w", err)
	}
	return &snap, nil
}

// scanSnapshots scans all rows into VariantSnapshot structs.
func scanSnapshots(rows pgx.Rows) ([]*domain.VariantSnapshot, error) {
	var result []*domain.VariantSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		result = append(result, snap)
	}
	return result, rows.Err()
}
