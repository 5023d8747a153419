// Package orderbook reconstructs top-of-book state for one market token from
// full order-book snapshots.
package orderbook

import (
	"sort"
	"sync"

	"polymarket-edge-lab/internal/domain"
)

// DefaultDepth is the number of levels retained per side.
const DefaultDepth = 5

// Book holds the top-N bid/ask levels for one token. Snapshot application is
// atomic with respect to concurrent reads.
type Book struct {
	mu      sync.RWMutex
	assetID string
	depth   int
	bids    []domain.BookLevel // descending by price
	asks    []domain.BookLevel // ascending by price
}

// New creates an empty book for the given token. Non-positive depth falls
// back to DefaultDepth.
func New(assetID string, depth int) *Book {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Book{assetID: assetID, depth: depth}
}

// AssetID returns the token id this book tracks.
func (b *Book) AssetID() string {
	return b.assetID
}

// ApplySnapshot replaces the full level set. Each side is sorted (bids
// descending, asks ascending) and truncated to the book depth.
func (b *Book) ApplySnapshot(bids, asks []domain.BookLevel) {
	newBids := make([]domain.BookLevel, len(bids))
	copy(newBids, bids)
	sort.Slice(newBids, func(i, j int) bool { return newBids[i].Price > newBids[j].Price })
	if len(newBids) > b.depth {
		newBids = newBids[:b.depth]
	}

	newAsks := make([]domain.BookLevel, len(asks))
	copy(newAsks, asks)
	sort.Slice(newAsks, func(i, j int) bool { return newAsks[i].Price < newAsks[j].Price })
	if len(newAsks) > b.depth {
		newAsks = newAsks[:b.depth]
	}

	b.mu.Lock()
	b.bids = newBids
	b.asks = newAsks
	b.mu.Unlock()
}

// Snapshot returns up to depth bid levels (descending) and ask levels
// (ascending). The returned slices are copies.
func (b *Book) Snapshot() (bids, asks []domain.BookLevel) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	bids = make([]domain.BookLevel, len(b.bids))
	copy(bids, b.bids)
	asks = make([]domain.BookLevel, len(b.asks))
	copy(asks, b.asks)
	return bids, asks
}

// Row converts the current top of book into a persisted capture row. A missing
// side falls back to price 0.5 and size 0, matching the capture log format.
func (b *Book) Row(marketID string, tsMs int64) domain.BookRow {
	b.mu.RLock()
	defer b.mu.RUnlock()

	row := domain.BookRow{
		MarketID:    marketID,
		TimestampMs: tsMs,
		BidPrice:    0.5,
		AskPrice:    0.5,
	}
	if len(b.bids) > 0 {
		row.BidPrice = b.bids[0].Price
		row.BidSize = b.bids[0].Size
	}
	if len(b.asks) > 0 {
		row.AskPrice = b.asks[0].Price
		row.AskSize = b.asks[0].Size
	}
	if len(b.bids) > 0 && len(b.asks) > 0 {
		row.Spread = row.AskPrice - row.BidPrice
	}
	row.MidPrice = (row.BidPrice + row.AskPrice) / 2
	return row
}
