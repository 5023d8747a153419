package domain

// Action is the direction of a trading signal.
type Action string

// Action constants.
const (
	ActionLong  Action = "long"
	ActionShort Action = "short"
	ActionNone  Action = "none"
)

// FairValue is the model-implied YES probability for a market.
// Derived per query, never persisted. FairYes + FairNo == 1.
type FairValue struct {
	FairYes        float64
	FairNo         float64
	ZScore         float64
	LogDistance    float64 // ln(current/strike)
	SigmaRemaining float64 // vol per minute * sqrt(minutes remaining)
}

// MispriceKind classifies the direction of a detected mispricing.
type MispriceKind string

// Misprice kinds. Overpriced YES means the market quotes YES above fair value
// (short YES / buy NO); underpriced YES is the mirror case.
const (
	MispriceOverpricedYes  MispriceKind = "overpriced_yes"
	MispriceUnderpricedYes MispriceKind = "underpriced_yes"
)

// Misprice describes a market price diverging from model fair value by at
// least the minimum edge.
type Misprice struct {
	Kind        MispriceKind
	MarketPrice float64
	FairValue   float64
	Edge        float64
}

// Signal is a trading signal emitted for one market. Immutable after
// creation; the evaluator consumes it read-only.
type Signal struct {
	MarketID    string
	Asset       string
	Action      Action
	EntryPrice  float64
	Edge        float64
	Confidence  float64
	CreatedAtMs int64
}

// TradeGrade is the realized outcome of one signal after settlement.
type TradeGrade struct {
	MarketID        string
	Action          Action
	EntryPrice      float64
	SettlementPrice float64
	Confidence      float64
	Won             bool
	PnL             float64
}
