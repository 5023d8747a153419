package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polymarket-edge-lab/internal/domain"
	"polymarket-edge-lab/internal/storage"
)

func TestSignalStore_InsertAndGetByMarketID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSignalStore(pool)
	ctx := context.Background()

	sig := &domain.Signal{
		MarketID:    "mkt-001",
		Asset:       "btc",
		Action:      domain.ActionLong,
		EntryPrice:  0.40,
		Edge:        0.12,
		Confidence:  0.7,
		CreatedAtMs: 1700000000000,
	}

	err := store.Insert(ctx, sig)
	require.NoError(t, err)

	retrieved, err := store.GetByMarketID(ctx, "mkt-001")
	require.NoError(t, err)

	assert.Equal(t, sig.MarketID, retrieved.MarketID)
	assert.Equal(t, sig.Asset, retrieved.Asset)
	assert.Equal(t, sig.Action, retrieved.Action)
	assert.Equal(t, sig.EntryPrice, retrieved.EntryPrice)
	assert.Equal(t, sig.Edge, retrieved.Edge)
	assert.Equal(t, sig.Confidence, retrieved.Confidence)
	assert.Equal(t, sig.CreatedAtMs, retrieved.CreatedAtMs)
}

func TestSignalStore_OneSignalPerMarket(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSignalStore(pool)
	ctx := context.Background()

	sig := &domain.Signal{
		MarketID:    "mkt-dup",
		Asset:       "btc",
		Action:      domain.ActionShort,
		EntryPrice:  0.80,
		Edge:        0.08,
		Confidence:  0.5,
		CreatedAtMs: 1700000000000,
	}

	require.NoError(t, store.Insert(ctx, sig))

	err := store.Insert(ctx, sig)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestSignalStore_GetByMarketIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSignalStore(pool)

	_, err := store.GetByMarketID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSignalStore_GetByTimeRangeAndGetAll(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSignalStore(pool)
	ctx := context.Background()

	signals := []*domain.Signal{
		{MarketID: "mkt-1", Asset: "btc", Action: domain.ActionLong, EntryPrice: 0.4, Edge: 0.1, Confidence: 0.6, CreatedAtMs: 1000},
		{MarketID: "mkt-2", Asset: "eth", Action: domain.ActionShort, EntryPrice: 0.7, Edge: 0.09, Confidence: 0.5, CreatedAtMs: 3000},
		{MarketID: "mkt-3", Asset: "btc", Action: domain.ActionLong, EntryPrice: 0.3, Edge: 0.2, Confidence: 0.9, CreatedAtMs: 2000},
	}
	for _, sig := range signals {
		require.NoError(t, store.Insert(ctx, sig))
	}

	ranged, err := store.GetByTimeRange(ctx, 1500, 2500)
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, "mkt-3", ranged[0].MarketID)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "mkt-1", all[0].MarketID)
	assert.Equal(t, "mkt-3", all[1].MarketID)
	assert.Equal(t, "mkt-2", all[2].MarketID)
}
