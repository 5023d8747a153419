package clickhouse

import (
	"context"
	"fmt"

	"polymarket-edge-lab/internal/domain"
	"polymarket-edge-lab/internal/storage"
)

// PricePointStore implements storage.PricePointStore using ClickHouse.
// Price history is append-only; MergeTree does not enforce uniqueness
// and the capture pipeline tolerates repeated observations.
type PricePointStore struct {
	conn *Conn
}

// NewPricePointStore creates a new PricePointStore.
func NewPricePointStore(conn *Conn) *PricePointStore {
	return &PricePointStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PricePointStore = (*PricePointStore)(nil)

// Insert adds a single price observation.
func (s *PricePointStore) Insert(ctx context.Context, p *domain.PricePoint) error {
	if p == nil || p.Source == "" || p.Asset == "" || p.TimestampMs <= 0 {
		return storage.ErrInvalidInput
	}
	return s.InsertBulk(ctx, []*domain.PricePoint{p})
}

// InsertBulk adds multiple observations in one batch.
func (s *PricePointStore) InsertBulk(ctx context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	for _, p := range points {
		if p == nil || p.Source == "" || p.Asset == "" || p.TimestampMs <= 0 {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_points (
			source, asset, timestamp_ms, price
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		if err := batch.Append(p.Source, p.Asset, uint64(p.TimestampMs), p.Price); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTimeRange retrieves points for (source, asset) within [start, end]
// inclusive, ordered by timestamp ASC.
func (s *PricePointStore) GetByTimeRange(ctx context.Context, source, asset string, start, end int64) ([]*domain.PricePoint, error) {
	query := `
		SELECT source, asset, timestamp_ms, price
		FROM price_points
		WHERE source = ? AND asset = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, source, asset, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query price points by time range: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// GetAsOf retrieves the latest point for (source, asset) with timestamp <= tsMs.
func (s *PricePointStore) GetAsOf(ctx context.Context, source, asset string, tsMs int64) (*domain.PricePoint, error) {
	query := `
		SELECT source, asset, timestamp_ms, price
		FROM price_points
		WHERE source = ? AND asset = ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms DESC
		LIMIT 1
	`

	var p domain.PricePoint
	var timestampMs uint64
	err := s.conn.QueryRow(ctx, query, source, asset, uint64(tsMs)).Scan(
		&p.Source, &p.Asset, &timestampMs, &p.Price,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("query price point as of: %w", err)
	}

	p.TimestampMs = int64(timestampMs)
	return &p, nil
}

// scanPricePoints scans multiple rows.
func scanPricePoints(rows chRows) ([]*domain.PricePoint, error) {
	var points []*domain.PricePoint

	for rows.Next() {
		var p domain.PricePoint
		var timestampMs uint64

		if err := rows.Scan(&p.Source, &p.Asset, &timestampMs, &p.Price); err != nil {
			return nil, fmt.Errorf("scan price point row: %w", err)
		}

		p.TimestampMs = int64(timestampMs)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price point rows: %w", err)
	}

	return points, nil
}
