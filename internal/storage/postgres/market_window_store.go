package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"polymarket-edge-lab/internal/domain"
	"polymarket-edge-lab/internal/storage"
)

// MarketWindowStore implements storage.MarketWindowStore using PostgreSQL.
type MarketWindowStore struct {
	pool *Pool
}

// NewMarketWindowStore creates a new MarketWindowStore.
func NewMarketWindowStore(pool *Pool) *MarketWindowStore {
	return &MarketWindowStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MarketWindowStore = (*MarketWindowStore)(nil)

// Insert adds a new window. Returns ErrDuplicateKey if market_id exists.
func (s *MarketWindowStore) Insert(ctx context.Context, w *domain.MarketWindow) error {
	query := `
		INSERT INTO market_windows (
			market_id, slug, asset, yes_token_id, no_token_id,
			start_time, duration_ms, best_bid, best_ask
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
		w.MarketID,
		w.Slug,
		w.Asset,
		w.YesTokenID,
		w.NoTokenID,
		w.StartTime,
		w.Duration.Milliseconds(),
		w.BestBid,
		w.BestAsk,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert market window: %w", err)
	}
	return nil
}

// Upsert inserts the window or refreshes its quote fields if it exists.
func (s *MarketWindowStore) Upsert(ctx context.Context, w *domain.MarketWindow) error {
	query := `
		INSERT INTO market_windows (
			market_id, slug, asset, yes_token_id, no_token_id,
			start_time, duration_ms, best_bid, best_ask
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (market_id) DO UPDATE SET
			best_bid = EXCLUDED.best_bid,
			best_ask = EXCLUDED.best_ask
	`

	_, err := s.pool.Exec(ctx, query,
		w.MarketID,
		w.Slug,
		w.Asset,
		w.YesTokenID,
		w.NoTokenID,
		w.StartTime,
		w.Duration.Milliseconds(),
		w.BestBid,
		w.BestAsk,
	)
	if err != nil {
		return fmt.Errorf("upsert market window: %w", err)
	}
	return nil
}

// GetByID retrieves a window by market ID. Returns ErrNotFound if not exists.
func (s *MarketWindowStore) GetByID(ctx context.Context, marketID string) (*domain.MarketWindow, error) {
	query := `
		SELECT market_id, slug, asset, yes_token_id, no_token_id,
		       start_time, duration_ms, best_bid, best_ask
		FROM market_windows
		WHERE market_id = $1
	`

	row := s.pool.QueryRow(ctx, query, marketID)
	w, err := scanWindow(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get market window by id: %w", err)
	}
	return w, nil
}

// GetActive retrieves windows covering the given instant, ordered by start ASC.
func (s *MarketWindowStore) GetActive(ctx context.Context, nowMs int64) ([]*domain.MarketWindow, error) {
	query := `
		SELECT market_id, slug, asset, yes_token_id, no_token_id,
		       start_time, duration_ms, best_bid, best_ask
		FROM market_windows
		WHERE start_time <= $1
		  AND start_time + duration_ms * INTERVAL '1 millisecond' >= $1
		ORDER BY start_time ASC, market_id ASC
	`

	rows, err := s.pool.Query(ctx, query, time.UnixMilli(nowMs).UTC())
	if err != nil {
		return nil, fmt.Errorf("get active market windows: %w", err)
	}
	defer rows.Close()

	return scanWindows(rows)
}

// GetByAsset retrieves all windows for an asset, ordered by start ASC.
func (s *MarketWindowStore) GetByAsset(ctx context.Context, asset string) ([]*domain.MarketWindow, error) {
	query := `
		SELECT market_id, slug, asset, yes_token_id, no_token_id,
		       start_time, duration_ms, best_bid, best_ask
		FROM market_windows
		WHERE asset = $1
		ORDER BY start_time ASC, market_id ASC
	`

	rows, err := s.pool.Query(ctx, query, asset)
	if err != nil {
		return nil, fmt.Errorf("get market windows by asset: %w", err)
	}
	defer rows.Close()

	return scanWindows(rows)
}

// scanWindow scans a single row into a MarketWindow.
func scanWindow(row pgx.Row) (*domain.MarketWindow, error) {
	var w domain.MarketWindow
	var durationMs int64

	err := row.Scan(
		&w.MarketID,
		&w.Slug,
		&w.Asset,
		&w.YesTokenID,
		&w.NoTokenID,
		&w.StartTime,
		&durationMs,
		&w.BestBid,
		&w.BestAsk,
	)
	if err != nil {
		return nil, err
	}

	w.StartTime = w.StartTime.UTC()
	w.Duration = time.Duration(durationMs) * time.Millisecond
	return &w, nil
}

// scanWindows scans multiple rows into a slice of MarketWindow.
func scanWindows(rows pgx.Rows) ([]*domain.MarketWindow, error) {
	var windows []*domain.MarketWindow

	for rows.Next() {
		var w domain.MarketWindow
		var durationMs int64

		err := rows.Scan(
			&w.MarketID,
			&w.Slug,
			&w.Asset,
			&w.YesTokenID,
			&w.NoTokenID,
			&w.StartTime,
			&durationMs,
			&w.BestBid,
			&w.BestAsk,
		)
		if err != nil {
			return nil, fmt.Errorf("scan market window row: %w", err)
		}

		w.StartTime = w.StartTime.UTC()
		w.Duration = time.Duration(durationMs) * time.Millisecond
		windows = append(windows, &w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate market window rows: %w", err)
	}

	return windows, nil
}
