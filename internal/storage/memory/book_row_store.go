package memory

import (
	"context"
	"sort"
	"sync"

	"polymarket-edge-lab/internal/domain"
	"polymarket-edge-lab/internal/storage"
)

// BookRowStore is an in-memory implementation of storage.BookRowStore.
type BookRowStore struct {
	mu   sync.RWMutex
	rows []*domain.BookRow
}

// NewBookRowStore creates a new in-memory book row store.
func NewBookRowStore() *BookRowStore {
	return &BookRowStore{}
}

// Insert adds a single top-of-book row.
func (s *BookRowStore) Insert(_ context.Context, r *domain.BookRow) error {
	if r == nil || r.MarketID == "" || r.TimestampMs <= 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rowCopy := *r
	s.rows = append(s.rows, &rowCopy)
	return nil
}

// InsertBulk adds multiple rows. Fails the entire batch if any row is invalid.
func (s *BookRowStore) InsertBulk(_ context.Context, rows []*domain.BookRow) error {
	if len(rows) == 0 {
		return nil
	}

	for _, r := range rows {
		if r == nil || r.MarketID == "" || r.TimestampMs <= 0 {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range rows {
		rowCopy := *r
		s.rows = append(s.rows, &rowCopy)
	}
	return nil
}

// GetByMarketID retrieves all rows for a market, ordered by timestamp ASC.
func (s *BookRowStore) GetByMarketID(_ context.Context, marketID string) ([]*domain.BookRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.BookRow
	for _, r := range s.rows {
		if r.MarketID == marketID {
			rowCopy := *r
			result = append(result, &rowCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}

// GetByTimeRange retrieves rows for a market within [start, end] inclusive.
func (s *BookRowStore) GetByTimeRange(_ context.Context, marketID string, start, end int64) ([]*domain.BookRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.BookRow
	for _, r := range s.rows {
		if r.MarketID == marketID && r.TimestampMs >= start && r.TimestampMs <= end {
			rowCopy := *r
			result = append(result, &rowCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}

var _ storage.BookRowStore = (*BookRowStore)(nil)
