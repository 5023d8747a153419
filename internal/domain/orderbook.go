package domain

// BookLevel is a single order-book price level.
type BookLevel struct {
	Price float64
	Size  float64
}

// BookUpdate is a normalized order-book message for one token. Inbound wire
// messages (single object or batch) are flattened into these before dispatch.
type BookUpdate struct {
	MarketID    string
	AssetID     string // CLOB token id
	TimestampMs int64
	Bids        []BookLevel
	Asks        []BookLevel
}

// BookRow is one persisted top-of-book observation, matching the capture log
// row format. One row is appended per valid order-book update per market.
type BookRow struct {
	MarketID    string
	TimestampMs int64
	BidPrice    float64
	BidSize     float64
	AskPrice    float64
	AskSize     float64
	Spread      float64
	MidPrice    float64
}
