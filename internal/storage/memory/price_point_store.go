// Package memory provides in-memory store implementations, used in
// tests and when running without databases.
package memory

import (
	"context"
	"sort"
	"sync"

	"polymarket-edge-lab/internal/domain"
	"polymarket-edge-lab/internal/storage"
)

// PricePointStore is an in-memory implementation of storage.PricePointStore.
type PricePointStore struct {
	mu     sync.RWMutex
	points []*domain.PricePoint
}

// NewPricePointStore creates a new in-memory price point store.
func NewPricePointStore() *PricePointStore {
	return &PricePointStore{}
}

// Insert adds a single price observation.
func (s *PricePointStore) Insert(_ context.Context, p *domain.PricePoint) error {
	if p == nil || p.Source == "" || p.Asset == "" || p.TimestampMs <= 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pointCopy := *p
	s.points = append(s.points, &pointCopy)
	return nil
}

// InsertBulk adds multiple observations. Fails the entire batch if any
// point is invalid.
func (s *PricePointStore) InsertBulk(_ context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	for _, p := range points {
		if p == nil || p.Source == "" || p.Asset == "" || p.TimestampMs <= 0 {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		pointCopy := *p
		s.points = append(s.points, &pointCopy)
	}
	return nil
}

// GetByTimeRange retrieves points for (source, asset) within [start, end]
// inclusive, ordered by timestamp ASC.
func (s *PricePointStore) GetByTimeRange(_ context.Context, source, asset string, start, end int64) ([]*domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PricePoint
	for _, p := range s.points {
		if p.Source == source && p.Asset == asset && p.TimestampMs >= start && p.TimestampMs <= end {
			pointCopy := *p
			result = append(result, &pointCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}

// GetAsOf retrieves the latest point for (source, asset) with timestamp <= tsMs.
func (s *PricePointStore) GetAsOf(_ context.Context, source, asset string, tsMs int64) (*domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *domain.PricePoint
	for _, p := range s.points {
		if p.Source != source || p.Asset != asset || p.TimestampMs > tsMs {
			continue
		}
		if best == nil || p.TimestampMs > best.TimestampMs {
			best = p
		}
	}
	if best == nil {
		return nil, storage.ErrNotFound
	}

	pointCopy := *best
	return &pointCopy, nil
}

var _ storage.PricePointStore = (*PricePointStore)(nil)
