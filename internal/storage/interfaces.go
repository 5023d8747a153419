package storage

import (
	"context"

	"polymarket-edge-lab/internal/domain"
)

// PricePointStore provides access to oracle/exchange price history.
type PricePointStore interface {
	// Insert adds a single price observation.
	Insert(ctx context.Context, p *domain.PricePoint) error

	// InsertBulk adds multiple observations in one batch.
	InsertBulk(ctx context.Context, points []*domain.PricePoint) error

	// GetByTimeRange retrieves points for (source, asset) within [start, end]
	// milliseconds inclusive, ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, source, asset string, start, end int64) ([]*domain.PricePoint, error)

	// GetAsOf retrieves the latest point for (source, asset) with
	// timestamp <= tsMs. Returns ErrNotFound if none exists.
	GetAsOf(ctx context.Context, source, asset string, tsMs int64) (*domain.PricePoint, error)
}

// BookRowStore provides access to captured top-of-book rows.
type BookRowStore interface {
	// Insert adds a single top-of-book row.
	Insert(ctx context.Context, r *domain.BookRow) error

	// InsertBulk adds multiple rows in one batch.
	InsertBulk(ctx context.Context, rows []*domain.BookRow) error

	// GetByMarketID retrieves all rows for a market, ordered by timestamp ASC.
	GetByMarketID(ctx context.Context, marketID string) ([]*domain.BookRow, error)

	// GetByTimeRange retrieves rows for a market within [start, end]
	// milliseconds inclusive, ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, marketID string, start, end int64) ([]*domain.BookRow, error)
}

// MarketWindowStore provides access to discovered market windows.
type MarketWindowStore interface {
	// Insert adds a new window. Returns ErrDuplicateKey if market_id exists.
	Insert(ctx context.Context, w *domain.MarketWindow) error

	// Upsert inserts the window or refreshes its mutable quote fields if
	// it already exists.
	Upsert(ctx context.Context, w *domain.MarketWindow) error

	// GetByID retrieves a window by market ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, marketID string) (*domain.MarketWindow, error)

	// GetActive retrieves windows whose [start, end] span covers the
	// given instant (unix milliseconds), ordered by start time ASC.
	GetActive(ctx context.Context, nowMs int64) ([]*domain.MarketWindow, error)

	// GetByAsset retrieves all windows for an asset, ordered by start time ASC.
	GetByAsset(ctx context.Context, asset string) ([]*domain.MarketWindow, error)
}

// SignalStore provides access to emitted trading signals.
type SignalStore interface {
	// Insert adds a new signal. Returns ErrDuplicateKey if one already
	// exists for the market.
	Insert(ctx context.Context, s *domain.Signal) error

	// GetByMarketID retrieves the signal for a market. Returns
	// ErrNotFound if none was emitted.
	GetByMarketID(ctx context.Context, marketID string) (*domain.Signal, error)

	// GetByTimeRange retrieves signals created within [start, end]
	// milliseconds inclusive, ordered by creation time ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Signal, error)

	// GetAll retrieves all signals ordered by creation time ASC.
	GetAll(ctx context.Context) ([]*domain.Signal, error)
}

// TradeGradeStore provides access to realized signal outcomes.
type TradeGradeStore interface {
	// Upsert inserts the grade or replaces an existing grade for the
	// same market. Grades are recomputed on every backtest run.
	Upsert(ctx context.Context, g *domain.TradeGrade) error

	// GetByMarketID retrieves the grade for a market. Returns
	// ErrNotFound if the market has not been graded.
	GetByMarketID(ctx context.Context, marketID string) (*domain.TradeGrade, error)

	// GetAll retrieves all grades ordered by market ID ASC.
	GetAll(ctx context.Context) ([]*domain.TradeGrade, error)
}
