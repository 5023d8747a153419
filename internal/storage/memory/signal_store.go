package memory

import (
	"context"
	"sort"
	"sync"

	"polymarket-edge-lab/internal/domain"
	"polymarket-edge-lab/internal/storage"
)

// SignalStore is an in-memory implementation of storage.SignalStore.
type SignalStore struct {
	mu      sync.RWMutex
	signals map[string]*domain.Signal // keyed by market_id
}

// NewSignalStore creates a new in-memory signal store.
func NewSignalStore() *SignalStore {
	return &SignalStore{
		signals: make(map[string]*domain.Signal),
	}
}

// Insert adds a new signal. Returns ErrDuplicateKey if one already
// exists for the market.
func (s *SignalStore) Insert(_ context.Context, sig *domain.Signal) error {
	if sig == nil || sig.MarketID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.signals[sig.MarketID]; exists {
		return storage.ErrDuplicateKey
	}

	signalCopy := *sig
	s.signals[sig.MarketID] = &signalCopy
	return nil
}

// GetByMarketID retrieves the signal for a market.
func (s *SignalStore) GetByMarketID(_ context.Context, marketID string) (*domain.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sig, ok := s.signals[marketID]
	if !ok {
		return nil, storage.ErrNotFound
	}

	signalCopy := *sig
	return &signalCopy, nil
}

// GetByTimeRange retrieves signals created within [start, end] inclusive,
// ordered by creation time ASC.
func (s *SignalStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Signal
	for _, sig := range s.signals {
		if sig.CreatedAtMs >= start && sig.CreatedAtMs <= end {
			signalCopy := *sig
			result = append(result, &signalCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAtMs < result[j].CreatedAtMs
	})

	return result, nil
}

// GetAll retrieves all signals ordered by creation time ASC.
func (s *SignalStore) GetAll(_ context.Context) ([]*domain.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Signal, 0, len(s.signals))
	for _, sig := range s.signals {
		signalCopy := *sig
		result = append(result, &signalCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAtMs < result[j].CreatedAtMs
	})

	return result, nil
}

var _ storage.SignalStore = (*SignalStore)(nil)
