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

// HistoryStore implements storage.HistoryStore using PostgreSQL. Event
// payloads are stored as JSONB arrays alongside the variant columns.
type HistoryStore struct {
	pool *Pool
}

// NewHistoryStore creates a new HistoryStore.
func NewHistoryStore(pool *Pool) *HistoryStore {
	return &HistoryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.HistoryStore = (*HistoryStore)(nil)

// historyColumns is the select list shared by all history queries.
const historyColumns = "item_id, name, refinement, cards, sell_events, vend_events, created_at"

// InsertBulk adds one cycle's history rows in a single batch.
func (s *HistoryStore) InsertBulk(ctx context.Context, rows []*domain.VariantHistory) error {
	if len(rows) == 0 {
		return nil
	}

	query := `
		INSERT INTO variant_history (item_id, name, refinement, cards, sell_events, vend_events, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	batch := &pgx.Batch{}
	for _, r := range rows {
		if r == nil {
			return storage.ErrInvalidInput
		}
		sellJSON, err := json.Marshal(pointsOrEmpty(r.SellEvents))
		if err != nil {
			return fmt.Errorf("marshal sell events: %w", err)
		}
		vendJSON, err := json.Marshal(pointsOrEmpty(r.VendEvents))
		if err != nil {
			return fmt.Errorf("marshal vend events: %w", err)
		}
		batch.Queue(query, r.ItemID, r.Name, r.Refinement, r.Cards, sellJSON, vendJSON, r.CreatedAt)
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert history rows: %w", err)
	}
	return nil
}

// GetByItemID retrieves the latest row per variant of an item.
func (s *HistoryStore) GetByItemID(ctx context.Context, itemID int) ([]*domain.VariantHistory, error) {
	query := `
		SELECT DISTINCT ON (item_id, refinement, cards) ` + historyColumns + `
		FROM variant_history
		WHERE item_id = $1
		ORDER BY item_id, refinement, cards, created_at DESC, id DESC
	`

	rows, err := s.pool.Query(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("get history by item id: %w", err)
	}
	defer rows.Close()

	return scanHistories(rows)
}

// GetByVariant retrieves the latest row for an exact variant.
func (s *HistoryStore) GetByVariant(ctx context.Context, key domain.VariantKey) (*domain.VariantHistory, error) {
	query := `
		SELECT ` + historyColumns + `
		FROM variant_history
		WHERE item_id = $1 AND refinement = $2 AND cards = $3
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	row := s.pool.QueryRow(ctx, query, key.ItemID, key.Refinement, key.Cards)
	h, err := scanHistory(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get history by variant: %w", err)
	}
	return h, nil
}

// List retrieves the latest row per variant across all items, sliced by
// offset/limit. A non-positive limit returns all remaining rows.
func (s *HistoryStore) List(ctx context.Context, offset, limit int) ([]*domain.VariantHistory, error) {
	query := `
		SELECT DISTINCT ON (item_id, refinement, cards) ` + historyColumns + `
		FROM variant_history
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
		return nil, fmt.Errorf("list histories: %w", err)
	}
	defer rows.Close()

	return scanHistories(rows)
}

// ListItemIDs retrieves distinct item ids, most recently refreshed first.
func (s *HistoryStore) ListItemIDs(ctx context.Context) ([]int, error) {
	query := `
		SELECT item_id
		FROM variant_history
		GROUP BY item_id
		ORDER BY MAX(created_at) DESC, item_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list item ids: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan item id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteOlderThan purges rows created before the cutoff.
func (s *HistoryStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM variant_history WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old history rows: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// scanHistory scans a single row into a VariantHistory.
func scanHistory(row pgx.Row) (*domain.VariantHistory, error) {
	var h domain.VariantHistory
	var sellJSON, vendJSON []byte

	err := row.Scan(
		&h.ItemID,
		&h.Name,
		&h.Refinement,
		&h.Cards,
		&sellJSON,
		&vendJSON,
		&h.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(sellJSON, &h.SellEvents); err != nil {
		return nil, fmt.Errorf("unmarshal sell events: %w", err)
	}
	if err := json.Unmarshal(vendJSON, &h.VendEvents); err != nil {
		return nil, fmt.Errorf("unmarshal vend events: %w", err)
	}
	return &h, nil
}

// scanHistories scans all rows into VariantHistory structs.
func scanHistories(rows pgx.Rows) ([]*domain.VariantHistory, error) {
	var result []*domain.VariantHistory
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		result = append(result, h)
	}
	return result, rows.Err()
}

// pointsOrEmpty keeps JSONB payloads as [] rather than null for nil slices.
func pointsOrEmpty(points []domain.PricePoint) []domain.PricePoint {
	if points == nil {
		return []domain.PricePoint{}
	}
	return points
}
