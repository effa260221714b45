package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"payon-market/internal/storage"
)

// ItemIndexStore implements storage.ItemIndexStore using PostgreSQL.
type ItemIndexStore struct {
	pool *Pool
}

// NewItemIndexStore creates a new ItemIndexStore.
func NewItemIndexStore(pool *Pool) *ItemIndexStore {
	return &ItemIndexStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ItemIndexStore = (*ItemIndexStore)(nil)

// Replace swaps the stored id list for the given one, atomically.
func (s *ItemIndexStore) Replace(ctx context.Context, ids []int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin item index replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM item_index`); err != nil {
		return fmt.Errorf("clear item index: %w", err)
	}

	batch := &pgx.Batch{}
	for pos, id := range ids {
		batch.Queue(`INSERT INTO item_index (position, item_id) VALUES ($1, $2)`, pos, id)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert item index: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit item index replace: %w", err)
	}
	return nil
}

// IDs retrieves the stored id list in stored order.
func (s *ItemIndexStore) IDs(ctx context.Context) ([]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT item_id FROM item_index ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("query item index: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan item index id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
