package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"payon-market/internal/domain"
	"payon-market/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	rows []snapshotRow
	seq  int64
}

type snapshotRow struct {
	seq int64
	row *domain.VariantSnapshot
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

// InsertBulk adds one cycle's snapshot rows.
func (s *SnapshotStore) InsertBulk(_ context.Context, rows []*domain.VariantSnapshot) error {
	if len(rows) == 0 {
		return nil
	}
	for _, r := range rows {
		if r == nil {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.seq++
		s.rows = append(s.rows, snapshotRow{seq: s.seq, row: copySnapshot(r)})
	}
	return nil
}

// GetByItemID retrieves the latest row per variant of an item.
func (s *SnapshotStore) GetByItemID(_ context.Context, itemID int) ([]*domain.VariantSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := s.latestByVariant(func(r *domain.VariantSnapshot) bool {
		return r.ItemID == itemID
	})
	return sortSnapshots(latest), nil
}

// List retrieves the latest row per variant across all items, sliced by
// offset/limit.
func (s *SnapshotStore) List(_ context.Context, offset, limit int) ([]*domain.VariantSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := sortSnapshots(s.latestByVariant(nil))
	return sliceSnapshots(rows, offset, limit), nil
}

// DeleteOlderThan purges rows created before the cutoff.
func (s *SnapshotStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.rows[:0]
	removed := 0
	for _, sr := range s.rows {
		if sr.row.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, sr)
	}
	s.rows = kept
	return removed, nil
}

func (s *SnapshotStore) latestByVariant(match func(*domain.VariantSnapshot) bool) map[domain.VariantKey]snapshotRow {
	latest := make(map[domain.VariantKey]snapshotRow)
	for _, sr := range s.rows {
		if match != nil && !match(sr.row) {
			continue
		}
		key := sr.row.Key()
		cur, ok := latest[key]
		if !ok || sr.row.CreatedAt.After(cur.row.CreatedAt) ||
			(sr.row.CreatedAt.Equal(cur.row.CreatedAt) && sr.seq > cur.seq) {
			latest[key] = sr
		}
	}
	return latest
}

func sortSnapshots(latest map[domain.VariantKey]snapshotRow) []*domain.VariantSnapshot {
	rows := make([]*domain.VariantSnapshot, 0, len(latest))
	for _, sr := range latest {
		rows = append(rows, copySnapshot(sr.row))
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ItemID != rows[j].ItemID {
			return rows[i].ItemID < rows[j].ItemID
		}
		if rows[i].Refinement != rows[j].Refinement {
			return rows[i].Refinement < rows[j].Refinement
		}
		return rows[i].Cards < rows[j].Cards
	})
	return rows
}

func sliceSnapshots(rows []*domain.VariantSnapshot, offset, limit int) []*domain.VariantSnapshot {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(rows) {
		return nil
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

func copySnapshot(r *domain.VariantSnapshot) *domain.VariantSnapshot {
	rowCopy := *r
	rowCopy.Listings = append([]domain.Listing(nil), r.Listings...)
	return &rowCopy
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)
