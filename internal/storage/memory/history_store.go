package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"payon-market/internal/domain"
	"payon-market/internal/storage"
)

// HistoryStore is an in-memory implementation of storage.HistoryStore.
type HistoryStore struct {
	mu   sync.RWMutex
	rows []historyRow
	seq  int64
}

// historyRow pairs a stored row with its insertion sequence, used to break
// CreatedAt ties when resolving the latest row per variant.
type historyRow struct {
	seq int64
	row *domain.VariantHistory
}

// NewHistoryStore creates a new in-memory history store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{}
}

// InsertBulk adds one cycle's history rows.
func (s *HistoryStore) InsertBulk(_ context.Context, rows []*domain.VariantHistory) error {
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
		s.rows = append(s.rows, historyRow{seq: s.seq, row: copyHistory(r)})
	}
	return nil
}

// GetByItemID retrieves the latest row per variant of an item.
func (s *HistoryStore) GetByItemID(_ context.Context, itemID int) ([]*domain.VariantHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := s.latestByVariant(func(r *domain.VariantHistory) bool {
		return r.ItemID == itemID
	})
	return sortHistories(latest), nil
}

// GetByVariant retrieves the latest row for an exact variant.
func (s *HistoryStore) GetByVariant(_ context.Context, key domain.VariantKey) (*domain.VariantHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := s.latestByVariant(func(r *domain.VariantHistory) bool {
		return r.Key() == key
	})
	rows := sortHistories(latest)
	if len(rows) == 0 {
		return nil, storage.ErrNotFound
	}
	return rows[0], nil
}

// List retrieves the latest row per variant across all items, sliced by
// offset/limit.
func (s *HistoryStore) List(_ context.Context, offset, limit int) ([]*domain.VariantHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := sortHistories(s.latestByVariant(nil))
	return sliceHistories(rows, offset, limit), nil
}

// ListItemIDs retrieves distinct item ids, most recently refreshed first.
func (s *HistoryStore) ListItemIDs(_ context.Context) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	newest := make(map[int]time.Time)
	for _, hr := range s.rows {
		if ts, ok := newest[hr.row.ItemID]; !ok || hr.row.CreatedAt.After(ts) {
			newest[hr.row.ItemID] = hr.row.CreatedAt
		}
	}

	ids := make([]int, 0, len(newest))
	for id := range newest {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if !newest[ids[i]].Equal(newest[ids[j]]) {
			return newest[ids[i]].After(newest[ids[j]])
		}
		return ids[i] < ids[j]
	})
	return ids, nil
}

// DeleteOlderThan purges rows created before the cutoff.
func (s *HistoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.rows[:0]
	removed := 0
	for _, hr := range s.rows {
		if hr.row.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, hr)
	}
	s.rows = kept
	return removed, nil
}

// latestByVariant resolves the most recent row per variant key among rows
// matching the filter (nil filter matches all). CreatedAt ties fall to the
// later insertion.
func (s *HistoryStore) latestByVariant(match func(*domain.VariantHistory) bool) map[domain.VariantKey]historyRow {
	latest := make(map[domain.VariantKey]historyRow)
	for _, hr := range s.rows {
		if match != nil && !match(hr.row) {
			continue
		}
		key := hr.row.Key()
		cur, ok := latest[key]
		if !ok || hr.row.CreatedAt.After(cur.row.CreatedAt) ||
			(hr.row.CreatedAt.Equal(cur.row.CreatedAt) && hr.seq > cur.seq) {
			latest[key] = hr
		}
	}
	return latest
}

// sortHistories orders resolved rows by (item_id, refinement, cards) ASC,
// returning copies.
func sortHistories(latest map[domain.VariantKey]historyRow) []*domain.VariantHistory {
	rows := make([]*domain.VariantHistory, 0, len(latest))
	for _, hr := range latest {
		rows = append(rows, copyHistory(hr.row))
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

func sliceHistories(rows []*domain.VariantHistory, offset, limit int) []*domain.VariantHistory {
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

func copyHistory(r *domain.VariantHistory) *domain.VariantHistory {
	rowCopy := *r
	rowCopy.SellEvents = append([]domain.PricePoint(nil), r.SellEvents...)
	rowCopy.VendEvents = append([]domain.PricePoint(nil), r.VendEvents...)
	return &rowCopy
}

var _ storage.HistoryStore = (*HistoryStore)(nil)
