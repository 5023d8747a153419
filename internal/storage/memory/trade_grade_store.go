package memory

import (
	"context"
	"sort"
	"sync"

	"polymarket-edge-lab/internal/domain"
	"polymarket-edge-lab/internal/storage"
)

// TradeGradeStore is an in-memory implementation of storage.TradeGradeStore.
type TradeGradeStore struct {
	mu     sync.RWMutex
	grades map[string]*domain.TradeGrade // keyed by market_id
}

// NewTradeGradeStore creates a new in-memory trade grade store.
func NewTradeGradeStore() *TradeGradeStore {
	return &TradeGradeStore{
		grades: make(map[string]*domain.TradeGrade),
	}
}

// Upsert inserts the grade or replaces an existing grade for the market.
func (s *TradeGradeStore) Upsert(_ context.Context, g *domain.TradeGrade) error {
	if g == nil || g.MarketID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	gradeCopy := *g
	s.grades[g.MarketID] = &gradeCopy
	return nil
}

// GetByMarketID retrieves the grade for a market.
func (s *TradeGradeStore) GetByMarketID(_ context.Context, marketID string) (*domain.TradeGrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.grades[marketID]
	if !ok {
		return nil, storage.ErrNotFound
	}

	gradeCopy := *g
	return &gradeCopy, nil
}

// GetAll retrieves all grades ordered by market ID ASC.
func (s *TradeGradeStore) GetAll(_ context.Context) ([]*domain.TradeGrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.TradeGrade, 0, len(s.grades))
	for _, g := range s.grades {
		gradeCopy := *g
		result = append(result, &gradeCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].MarketID < result[j].MarketID
	})

	return result, nil
}

var _ storage.TradeGradeStore = (*TradeGradeStore)(nil)
