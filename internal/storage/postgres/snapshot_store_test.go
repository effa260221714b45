package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payon-market/internal/domain"
	"payon-market/internal/storage"
)

func snapshotFixture(itemID, refinement int, cards string, createdAt time.Time) *domain.VariantSnapshot {
	return &domain.VariantSnapshot{
		ItemID:     itemID,
		Refinement: refinement,
		Cards:      cards,
		Listings: []domain.Listing{
			{
				ListedAt:    createdAt.Add(-time.Hour),
				ShopName:    "Cheap Stuff",
				Amount:      3,
				Price:       5000,
				Coordinates: domain.Coordinates{Map: "prontera", X: 150, Y: 180},
			},
		},
		CreatedAt: createdAt,
	}
}

func TestSnapshotStore_InsertAndGetByItemID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotStore(pool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	rows := []*domain.VariantSnapshot{
		snapshotFixture(501, 0, "", now),
		snapshotFixture(501, 7, "Poring Card", now),
		snapshotFixture(999, 0, "", now),
	}
	require.NoError(t, store.InsertBulk(ctx, rows))

	got, err := store.GetByItemID(ctx, 501)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 0, got[0].Refinement)
	assert.Equal(t, 7, got[1].Refinement)

	require.Len(t, got[0].Listings, 1)
	l := got[0].Listings[0]
	assert.Equal(t, "Cheap Stuff", l.ShopName)
	assert.Equal(t, 3, l.Amount)
	assert.Equal(t, 5000, l.Price)
	assert.Equal(t, "prontera", l.Coordinates.Map)
	assert.True(t, l.ListedAt.Equal(now.Add(-time.Hour)))
}

func TestSnapshotStore_LatestRowWins(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotStore(pool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	old := snapshotFixture(501, 0, "", now.Add(-time.Hour))
	newer := snapshotFixture(501, 0, "", now)
	newer.Listings[0].Price = 9999

	require.NoError(t, store.InsertBulk(ctx, []*domain.VariantSnapshot{old}))
	require.NoError(t, store.InsertBulk(ctx, []*domain.VariantSnapshot{newer}))

	got, err := store.GetByItemID(ctx, 501)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 9999, got[0].Listings[0].Price)
}

func TestSnapshotStore_List_OffsetLimit(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotStore(pool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	require.NoError(t, store.InsertBulk(ctx, []*domain.VariantSnapshot{
		snapshotFixture(100, 0, "", now),
		snapshotFixture(200, 0, "", now),
		snapshotFixture(300, 0, "", now),
	}))

	got, err := store.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 200, got[0].ItemID)

	got, err = store.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestSnapshotStore_DeleteOlderThan(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotStore(pool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	require.NoError(t, store.InsertBulk(ctx, []*domain.VariantSnapshot{
		snapshotFixture(100, 0, "", now.Add(-72*time.Hour)),
		snapshotFixture(200, 0, "", now),
	}))

	removed, err := store.DeleteOlderThan(ctx, now.Add(-48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	got, err := store.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 200, got[0].ItemID)
}

func TestSnapshotStore_InsertBulk_NilRow(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotStore(pool)

	err := store.InsertBulk(context.Background(), []*domain.VariantSnapshot{nil})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
