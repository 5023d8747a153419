package domain

import "time"

// MarketWindow identifies one 15-minute binary market and its trading bracket.
// Discovered by the catalog scanner, dropped once the window closes plus the
// stop buffer.
type MarketWindow struct {
	MarketID   string        // catalog event id
	Slug       string        // e.g. "btc-updown-15m-..."
	Asset      string        // traded asset symbol, "unknown" if not derivable
	YesTokenID string        // CLOB token id for the YES outcome
	NoTokenID  string        // CLOB token id for the NO outcome
	StartTime  time.Time     // event start (window open)
	Duration   time.Duration // 15 minutes
	BestBid    float64       // best bid at discovery time, 0 if absent
	BestAsk    float64       // best ask at discovery time, 0 if absent
}

// EndTime returns the window close time.
func (w *MarketWindow) EndTime() time.Time {
	return w.StartTime.Add(w.Duration)
}

// ActiveAt reports whether the capture bracket [start-startBuffer, end+stopBuffer]
// contains now.
func (w *MarketWindow) ActiveAt(now time.Time, startBuffer, stopBuffer time.Duration) bool {
	return !now.Before(w.StartTime.Add(-startBuffer)) && !now.After(w.EndTime().Add(stopBuffer))
}

// ExpiredAt reports whether the window closed more than stopBuffer ago.
func (w *MarketWindow) ExpiredAt(now time.Time, stopBuffer time.Duration) bool {
	return now.After(w.EndTime().Add(stopBuffer))
}

// MinutesRemaining returns the time to window close in minutes. Negative once
// the window has closed.
func (w *MarketWindow) MinutesRemaining(now time.Time) float64 {
	return w.EndTime().Sub(now).Minutes()
}
