package clickhouse

import (
	"context"
	"fmt"

	"polymarket-edge-lab/internal/domain"
	"polymarket-edge-lab/internal/storage"
)

// BookRowStore implements storage.BookRowStore using ClickHouse.
type BookRowStore struct {
	conn *Conn
}

// NewBookRowStore creates a new BookRowStore.
func NewBookRowStore(conn *Conn) *BookRowStore {
	return &BookRowStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BookRowStore = (*BookRowStore)(nil)

// Insert adds a single top-of-book row.
func (s *BookRowStore) Insert(ctx context.Context, r *domain.BookRow) error {
	if r == nil || r.MarketID == "" || r.TimestampMs <= 0 {
		return storage.ErrInvalidInput
	}
	return s.InsertBulk(ctx, []*domain.BookRow{r})
}

// InsertBulk adds multiple rows in one batch.
func (s *BookRowStore) InsertBulk(ctx context.Context, rows []*domain.BookRow) error {
	if len(rows) == 0 {
		return nil
	}

	for _, r := range rows {
		if r == nil || r.MarketID == "" || r.TimestampMs <= 0 {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO book_rows (
			market_id, timestamp_ms, bid_price, bid_size,
			ask_price, ask_size, spread, mid_price
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		err := batch.Append(
			r.MarketID, uint64(r.TimestampMs),
			r.BidPrice, r.BidSize, r.AskPrice, r.AskSize,
			r.Spread, r.MidPrice,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByMarketID retrieves all rows for a market, ordered by timestamp ASC.
func (s *BookRowStore) GetByMarketID(ctx context.Context, marketID string) ([]*domain.BookRow, error) {
	query := `
		SELECT market_id, timestamp_ms, bid_price, bid_size,
		       ask_price, ask_size, spread, mid_price
		FROM book_rows
		WHERE market_id = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, marketID)
	if err != nil {
		return nil, fmt.Errorf("query book rows by market id: %w", err)
	}
	defer rows.Close()

	return scanBookRows(rows)
}

// GetByTimeRange retrieves rows for a market within [start, end] inclusive.
func (s *BookRowStore) GetByTimeRange(ctx context.Context, marketID string, start, end int64) ([]*domain.BookRow, error) {
	query := `
		SELECT market_id, timestamp_ms, bid_price, bid_size,
		       ask_price, ask_size, spread, mid_price
		FROM book_rows
		WHERE market_id = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, marketID, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query book rows by time range: %w", err)
	}
	defer rows.Close()

	return scanBookRows(rows)
}

// scanBookRows scans multiple rows.
func scanBookRows(rows chRows) ([]*domain.BookRow, error) {
	var result []*domain.BookRow

	for rows.Next() {
		var r domain.BookRow
		var timestampMs uint64

		err := rows.Scan(
			&r.MarketID, &timestampMs,
			&r.BidPrice, &r.BidSize, &r.AskPrice, &r.AskSize,
			&r.Spread, &r.MidPrice,
		)
		if err != nil {
			return nil, fmt.Errorf("scan book row: %w", err)
		}

		r.TimestampMs = int64(timestampMs)
		result = append(result, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate book rows: %w", err)
	}

	return result, nil
}
