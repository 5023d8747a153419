// Package pricecache holds recent oracle and exchange prices as per
// (source, asset) time-ordered series with as-of lookup.
package pricecache

import (
	"sort"
	"sync"
	"time"

	"polymarket-edge-lab/internal/domain"
)

// DefaultMaxAge is the default retention window for a series, measured from
// the newest timestamp in that series (not wall clock).
const DefaultMaxAge = 30 * time.Minute

type key struct {
	source string
	asset  string
}

// series is a dense array-backed time series. Timestamps are kept
// non-decreasing; parallel slices avoid per-point allocations.
type series struct {
	ts []int64
	px []float64
}

// Cache is a bounded in-memory store of recent prices. Safe for one writer
// and many readers.
type Cache struct {
	mu       sync.RWMutex
	maxAgeMs int64
	series   map[key]*series
}

// New creates a Cache with the given retention window. Non-positive maxAge
// falls back to DefaultMaxAge.
func New(maxAge time.Duration) *Cache {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Cache{
		maxAgeMs: maxAge.Milliseconds(),
		series:   make(map[key]*series),
	}
}

// Add inserts a price observation at its sorted position. In-order arrivals
// append; out-of-order arrivals are placed by binary search. After insertion,
// entries older than newest-maxAge are evicted.
func (c *Cache) Add(source, asset string, tsMs int64, price float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key{source, asset}
	s := c.series[k]
	if s == nil {
		s = &series{}
		c.series[k] = s
	}

	if n := len(s.ts); n == 0 || tsMs >= s.ts[n-1] {
		s.ts = append(s.ts, tsMs)
		s.px = append(s.px, price)
	} else {
		// First index with timestamp strictly greater than tsMs.
		i := sort.Search(n, func(j int) bool { return s.ts[j] > tsMs })
		s.ts = append(s.ts, 0)
		copy(s.ts[i+1:], s.ts[i:])
		s.ts[i] = tsMs
		s.px = append(s.px, 0)
		copy(s.px[i+1:], s.px[i:])
		s.px[i] = price
	}

	cutoff := s.ts[len(s.ts)-1] - c.maxAgeMs
	j := sort.Search(len(s.ts), func(i int) bool { return s.ts[i] >= cutoff })
	if j > 0 {
		s.ts = append(s.ts[:0], s.ts[j:]...)
		s.px = append(s.px[:0], s.px[j:]...)
	}
}

// AsOf returns the latest entry with timestamp <= tsMs. The second return is
// false if the series is empty or every retained entry is newer than tsMs.
func (c *Cache) AsOf(source, asset string, tsMs int64) (domain.PricePoint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.series[key{source, asset}]
	if s == nil || len(s.ts) == 0 {
		return domain.PricePoint{}, false
	}

	// Index of first entry newer than tsMs; the one before it is the answer.
	i := sort.Search(len(s.ts), func(j int) bool { return s.ts[j] > tsMs })
	if i == 0 {
		return domain.PricePoint{}, false
	}

	return domain.PricePoint{
		Source:      source,
		Asset:       asset,
		TimestampMs: s.ts[i-1],
		Price:       s.px[i-1],
	}, true
}

// History returns the prices with timestamps in [fromMs, toMs], oldest first.
func (c *Cache) History(source, asset string, fromMs, toMs int64) []float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.series[key{source, asset}]
	if s == nil {
		return nil
	}

	lo := sort.Search(len(s.ts), func(i int) bool { return s.ts[i] >= fromMs })
	hi := sort.Search(len(s.ts), func(i int) bool { return s.ts[i] > toMs })
	if lo >= hi {
		return nil
	}

	out := make([]float64, hi-lo)
	copy(out, s.px[lo:hi])
	return out
}

// Len returns the number of retained entries for a series.
func (c *Cache) Len(source, asset string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.series[key{source, asset}]
	if s == nil {
		return 0
	}
	return len(s.ts)
}
