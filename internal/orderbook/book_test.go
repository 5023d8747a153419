package orderbook

import (
	"testing"

	"polymarket-edge-lab/internal/domain"
)

func TestBook_SnapshotSortedAndTruncated(t *testing.T) {
	b := New("token-1", 5)
	bids := []domain.BookLevel{
		{Price: 0.40, Size: 10}, {Price: 0.48, Size: 5}, {Price: 0.44, Size: 7},
		{Price: 0.47, Size: 3}, {Price: 0.42, Size: 1}, {Price: 0.41, Size: 2},
		{Price: 0.46, Size: 9},
	}
	asks := []domain.BookLevel{
		{Price: 0.55, Size: 4}, {Price: 0.51, Size: 8}, {Price: 0.53, Size: 2},
		{Price: 0.52, Size: 6}, {Price: 0.58, Size: 1}, {Price: 0.56, Size: 3},
	}
	b.ApplySnapshot(bids, asks)

	gotBids, gotAsks := b.Snapshot()
	if len(gotBids) != 5 || len(gotAsks) != 5 {
		t.Fatalf("expected 5 levels per side, got %d bids %d asks", len(gotBids), len(gotAsks))
	}
	for i := 1; i < len(gotBids); i++ {
		if gotBids[i].Price >= gotBids[i-1].Price {
			t.Errorf("bids not strictly descending: %v", gotBids)
		}
	}
	for i := 1; i < len(gotAsks); i++ {
		if gotAsks[i].Price <= gotAsks[i-1].Price {
			t.Errorf("asks not strictly ascending: %v", gotAsks)
		}
	}
	if gotBids[0].Price != 0.48 {
		t.Errorf("best bid = %v, want 0.48", gotBids[0].Price)
	}
	if gotAsks[0].Price != 0.51 {
		t.Errorf("best ask = %v, want 0.51", gotAsks[0].Price)
	}
	// Truncation keeps the top 5 by price: bid 0.40 and ask 0.58 are dropped.
	if gotBids[4].Price != 0.42 {
		t.Errorf("worst retained bid = %v, want 0.42", gotBids[4].Price)
	}
}

func TestBook_SnapshotReplacesLevels(t *testing.T) {
	b := New("token-1", 5)
	b.ApplySnapshot(
		[]domain.BookLevel{{Price: 0.40, Size: 10}},
		[]domain.BookLevel{{Price: 0.60, Size: 10}},
	)
	b.ApplySnapshot(
		[]domain.BookLevel{{Price: 0.45, Size: 1}},
		[]domain.BookLevel{{Price: 0.55, Size: 1}},
	)

	bids, asks := b.Snapshot()
	if len(bids) != 1 || bids[0].Price != 0.45 {
		t.Errorf("old bid levels leaked: %v", bids)
	}
	if len(asks) != 1 || asks[0].Price != 0.55 {
		t.Errorf("old ask levels leaked: %v", asks)
	}
}

func TestBook_RowTopOfBook(t *testing.T) {
	b := New("token-1", 5)
	b.ApplySnapshot(
		[]domain.BookLevel{{Price: 0.48, Size: 30}, {Price: 0.47, Size: 10}},
		[]domain.BookLevel{{Price: 0.52, Size: 20}},
	)

	row := b.Row("mkt-1", 1234)
	if row.BidPrice != 0.48 || row.BidSize != 30 {
		t.Errorf("bid = (%v, %v), want (0.48, 30)", row.BidPrice, row.BidSize)
	}
	if row.AskPrice != 0.52 || row.AskSize != 20 {
		t.Errorf("ask = (%v, %v), want (0.52, 20)", row.AskPrice, row.AskSize)
	}
	if got := row.Spread; got < 0.0399 || got > 0.0401 {
		t.Errorf("spread = %v, want 0.04", got)
	}
	if row.MidPrice != 0.5 {
		t.Errorf("mid = %v, want 0.5", row.MidPrice)
	}
	if row.MarketID != "mkt-1" || row.TimestampMs != 1234 {
		t.Errorf("row identity wrong: %+v", row)
	}
}

func TestBook_RowEmptySideFallback(t *testing.T) {
	b := New("token-1", 5)
	b.ApplySnapshot(nil, []domain.BookLevel{{Price: 0.52, Size: 20}})

	row := b.Row("mkt-1", 1)
	if row.BidPrice != 0.5 || row.BidSize != 0 {
		t.Errorf("missing bid side should fall back to (0.5, 0), got (%v, %v)", row.BidPrice, row.BidSize)
	}
	if row.Spread != 0 {
		t.Errorf("spread should be 0 with a missing side, got %v", row.Spread)
	}
}
