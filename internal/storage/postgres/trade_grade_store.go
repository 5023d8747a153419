package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"polymarket-edge-lab/internal/domain"
	"polymarket-edge-lab/internal/storage"
)

// TradeGradeStore implements storage.TradeGradeStore using PostgreSQL.
type TradeGradeStore struct {
	pool *Pool
}

// NewTradeGradeStore creates a new TradeGradeStore.
func NewTradeGradeStore(pool *Pool) *TradeGradeStore {
	return &TradeGradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeGradeStore = (*TradeGradeStore)(nil)

// Upsert inserts the grade or replaces an existing grade for the market.
func (s *TradeGradeStore) Upsert(ctx context.Context, g *domain.TradeGrade) error {
	if g == nil || g.MarketID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO trade_grades (
			market_id, action, entry_price, settlement_price, confidence, won, pnl
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (market_id) DO UPDATE SET
			action = EXCLUDED.action,
			entry_price = EXCLUDED.entry_price,
			settlement_price = EXCLUDED.settlement_price,
			confidence = EXCLUDED.confidence,
			won = EXCLUDED.won,
			pnl = EXCLUDED.pnl
	`

	_, err := s.pool.Exec(ctx, query,
		g.MarketID,
		string(g.Action),
		g.EntryPrice,
		g.SettlementPrice,
		g.Confidence,
		g.Won,
		g.PnL,
	)
	if err != nil {
		return fmt.Errorf("upsert trade grade: %w", err)
	}
	return nil
}

// GetByMarketID retrieves the grade for a market. Returns ErrNotFound
// if the market has not been graded.
func (s *TradeGradeStore) GetByMarketID(ctx context.Context, marketID string) (*domain.TradeGrade, error) {
	query := `
		SELECT market_id, action, entry_price, settlement_price, confidence, won, pnl
		FROM trade_grades
		WHERE market_id = $1
	`

	row := s.pool.QueryRow(ctx, query, marketID)
	g, err := scanTradeGrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade grade by market id: %w", err)
	}
	return g, nil
}

// GetAll retrieves all grades ordered by market ID ASC.
func (s *TradeGradeStore) GetAll(ctx context.Context) ([]*domain.TradeGrade, error) {
	query := `
		SELECT market_id, action, entry_price, settlement_price, confidence, won, pnl
		FROM trade_grades
		ORDER BY market_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all trade grades: %w", err)
	}
	defer rows.Close()

	var grades []*domain.TradeGrade
	for rows.Next() {
		g, err := scanTradeGrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade grade row: %w", err)
		}
		grades = append(grades, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade grade rows: %w", err)
	}

	return grades, nil
}

// scanTradeGrade scans a single row into a TradeGrade.
func scanTradeGrade(row pgx.Row) (*domain.TradeGrade, error) {
	var g domain.TradeGrade
	var actionStr string

	err := row.Scan(
		&g.MarketID,
		&actionStr,
		&g.EntryPrice,
		&g.SettlementPrice,
		&g.Confidence,
		&g.Won,
		&g.PnL,
	)
	if err != nil {
		return nil, err
	}

	g.Action = domain.Action(actionStr)
	return &g, nil
}
