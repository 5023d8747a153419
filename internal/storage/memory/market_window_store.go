package memory

import (
	"context"
	"sort"
	"sync"

	"polymarket-edge-lab/internal/domain"
	"polymarket-edge-lab/internal/storage"
)

// MarketWindowStore is an in-memory implementation of storage.MarketWindowStore.
type MarketWindowStore struct {
	mu      sync.RWMutex
	windows map[string]*domain.MarketWindow // keyed by market_id
}

// NewMarketWindowStore creates a new in-memory market window store.
func NewMarketWindowStore() *MarketWindowStore {
	return &MarketWindowStore{
		windows: make(map[string]*domain.MarketWindow),
	}
}

// Insert adds a new window. Returns ErrDuplicateKey if market_id exists.
func (s *MarketWindowStore) Insert(_ context.Context, w *domain.MarketWindow) error {
	if w == nil || w.MarketID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.windows[w.MarketID]; exists {
		return storage.ErrDuplicateKey
	}

	windowCopy := *w
	s.windows[w.MarketID] = &windowCopy
	return nil
}

// Upsert inserts the window or refreshes its quote fields if it exists.
func (s *MarketWindowStore) Upsert(_ context.Context, w *domain.MarketWindow) error {
	if w == nil || w.MarketID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.windows[w.MarketID]; ok {
		existing.BestBid = w.BestBid
		existing.BestAsk = w.BestAsk
		return nil
	}

	windowCopy := *w
	s.windows[w.MarketID] = &windowCopy
	return nil
}

// GetByID retrieves a window by market ID.
func (s *MarketWindowStore) GetByID(_ context.Context, marketID string) (*domain.MarketWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.windows[marketID]
	if !ok {
		return nil, storage.ErrNotFound
	}

	windowCopy := *w
	return &windowCopy, nil
}

// GetActive retrieves windows covering the given instant, ordered by start ASC.
func (s *MarketWindowStore) GetActive(_ context.Context, nowMs int64) ([]*domain.MarketWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MarketWindow
	for _, w := range s.windows {
		startMs := w.StartTime.UnixMilli()
		endMs := w.EndTime().UnixMilli()
		if nowMs >= startMs && nowMs <= endMs {
			windowCopy := *w
			result = append(result, &windowCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.Before(result[j].StartTime)
	})

	return result, nil
}

// GetByAsset retrieves all windows for an asset, ordered by start ASC.
func (s *MarketWindowStore) GetByAsset(_ context.Context, asset string) ([]*domain.MarketWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MarketWindow
	for _, w := range s.windows {
		if w.Asset == asset {
			windowCopy := *w
			result = append(result, &windowCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.Before(result[j].StartTime)
	})

	return result, nil
}

var _ storage.MarketWindowStore = (*MarketWindowStore)(nil)
