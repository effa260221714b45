package memory

import (
	"context"
	"sync"

	"payon-market/internal/storage"
)

// ItemIndexStore is an in-memory implementation of storage.ItemIndexStore.
type ItemIndexStore struct {
	mu  sync.RWMutex
	ids []int
}

// NewItemIndexStore creates a new in-memory item index store.
func NewItemIndexStore() *ItemIndexStore {
	return &ItemIndexStore{}
}

// Replace swaps the stored id list for the given one.
func (s *ItemIndexStore) Replace(_ context.Context, ids []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append([]int(nil), ids...)
	return nil
}

// IDs retrieves the stored id list in stored order.
func (s *ItemIndexStore) IDs(_ context.Context) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]int(nil), s.ids...), nil
}

var _ storage.ItemIndexStore = (*ItemIndexStore)(nil)
