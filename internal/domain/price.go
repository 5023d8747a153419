package domain

// Price sources. Chainlink is the oracle feed that settles markets; Binance is
// the spot exchange feed kept alongside it for cross-checks.
const (
	SourceChainlink = "cl"
	SourceBinance   = "bn"
)

// Assets traded on the 15-minute up/down markets.
var KnownAssets = []string{"btc", "eth", "sol", "xrp"}

// IsKnownAsset reports whether sym is one of the tracked asset symbols.
func IsKnownAsset(sym string) bool {
	for _, a := range KnownAssets {
		if a == sym {
			return true
		}
	}
	return false
}

// PricePoint is a single price observation for one (source, asset) pair.
type PricePoint struct {
	Source      string  // SourceChainlink or SourceBinance
	Asset       string  // normalized symbol, e.g. "btc"
	TimestampMs int64   // Unix timestamp in milliseconds
	Price       float64 // quoted price in USD
}
