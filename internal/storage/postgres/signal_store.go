package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"polymarket-edge-lab/internal/domain"
	"polymarket-edge-lab/internal/storage"
)

// SignalStore implements storage.SignalStore using PostgreSQL.
type SignalStore struct {
	pool *Pool
}

// NewSignalStore creates a new SignalStore.
func NewSignalStore(pool *Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SignalStore = (*SignalStore)(nil)

// Insert adds a new signal. Returns ErrDuplicateKey if one already
// exists for the market.
func (s *SignalStore) Insert(ctx context.Context, sig *domain.Signal) error {
	query := `
		INSERT INTO signals (
			market_id, asset, action, entry_price, edge, confidence, created_at_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.pool.Exec(ctx, query,
		sig.MarketID,
		sig.Asset,
		string(sig.Action),
		sig.EntryPrice,
		sig.Edge,
		sig.Confidence,
		sig.CreatedAtMs,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

// GetByMarketID retrieves the signal for a market. Returns ErrNotFound
// if none was emitted.
func (s *SignalStore) GetByMarketID(ctx context.Context, marketID string) (*domain.Signal, error) {
	query := `
		SELECT market_id, asset, action, entry_price, edge, confidence, created_at_ms
		FROM signals
		WHERE market_id = $1
	`

	row := s.pool.QueryRow(ctx, query, marketID)
	sig, err := scanSignal(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get signal by market id: %w", err)
	}
	return sig, nil
}

// GetByTimeRange retrieves signals created within [start, end] inclusive.
func (s *SignalStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Signal, error) {
	query := `
		SELECT market_id, asset, action, entry_price, edge, confidence, created_at_ms
		FROM signals
		WHERE created_at_ms >= $1 AND created_at_ms <= $2
		ORDER BY created_at_ms ASC, market_id ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get signals by time range: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

// GetAll retrieves all signals ordered by creation time ASC.
func (s *SignalStore) GetAll(ctx context.Context) ([]*domain.Signal, error) {
	query := `
		SELECT market_id, asset, action, entry_price, edge, confidence, created_at_ms
		FROM signals
		ORDER BY created_at_ms ASC, market_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all signals: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

// scanSignal scans a single row into a Signal.
func scanSignal(row pgx.Row) (*domain.Signal, error) {
	var sig domain.Signal
	var actionStr string

	err := row.Scan(
		&sig.MarketID,
		&sig.Asset,
		&actionStr,
		&sig.EntryPrice,
		&sig.Edge,
		&sig.Confidence,
		&sig.CreatedAtMs,
	)
	if err != nil {
		return nil, err
	}

	sig.Action = domain.Action(actionStr)
	return &sig, nil
}

// scanSignals scans multiple rows into a slice of Signal.
func scanSignals(rows pgx.Rows) ([]*domain.Signal, error) {
	var signals []*domain.Signal

	for rows.Next() {
		var sig domain.Signal
		var actionStr string

		err := rows.Scan(
			&sig.MarketID,
			&sig.Asset,
			&actionStr,
			&sig.EntryPrice,
			&sig.Edge,
			&sig.Confidence,
			&sig.CreatedAtMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan signal row: %w", err)
		}

		sig.Action = domain.Action(actionStr)
		signals = append(signals, &sig)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signal rows: %w", err)
	}

	return signals, nil
}
