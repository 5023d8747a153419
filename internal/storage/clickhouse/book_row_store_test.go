package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polymarket-edge-lab/internal/domain"
)

func TestBookRowStore_InsertBulkAndGetByMarketID(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBookRowStore(conn)
	ctx := context.Background()

	rows := []*domain.BookRow{
		{MarketID: "mkt-1", TimestampMs: 2000, BidPrice: 0.49, BidSize: 100, AskPrice: 0.51, AskSize: 90, Spread: 0.02, MidPrice: 0.5},
		{MarketID: "mkt-1", TimestampMs: 1000, BidPrice: 0.48, BidSize: 120, AskPrice: 0.52, AskSize: 80, Spread: 0.04, MidPrice: 0.5},
		{MarketID: "mkt-2", TimestampMs: 1500, BidPrice: 0.30, BidSize: 40, AskPrice: 0.35, AskSize: 60, Spread: 0.05, MidPrice: 0.325},
	}
	require.NoError(t, store.InsertBulk(ctx, rows))

	result, err := store.GetByMarketID(ctx, "mkt-1")
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, int64(1000), result[0].TimestampMs)
	assert.Equal(t, 0.48, result[0].BidPrice)
	assert.Equal(t, 0.04, result[0].Spread)
	assert.Equal(t, int64(2000), result[1].TimestampMs)
}

func TestBookRowStore_GetByTimeRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBookRowStore(conn)
	ctx := context.Background()

	rows := []*domain.BookRow{
		{MarketID: "mkt-1", TimestampMs: 1000, BidPrice: 0.48, AskPrice: 0.52, Spread: 0.04, MidPrice: 0.5},
		{MarketID: "mkt-1", TimestampMs: 2000, BidPrice: 0.49, AskPrice: 0.51, Spread: 0.02, MidPrice: 0.5},
		{MarketID: "mkt-1", TimestampMs: 3000, BidPrice: 0.50, AskPrice: 0.52, Spread: 0.02, MidPrice: 0.51},
	}
	require.NoError(t, store.InsertBulk(ctx, rows))

	result, err := store.GetByTimeRange(ctx, "mkt-1", 1500, 2500)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, int64(2000), result[0].TimestampMs)
}
