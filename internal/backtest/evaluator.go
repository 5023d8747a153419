// Package backtest grades populations of trading signals against realized
// settlement prices.
package backtest

import (
	"errors"
	"math"

	"polymarket-edge-lab/internal/domain"
)

// ErrNoSignals is returned when a run contains no actionable signals. Callers
// must distinguish this from a genuine zero-score result.
var ErrNoSignals = errors.New("backtest: no signals to evaluate")

// SettledSignal pairs a signal with the settlement price realized at its
// market's close.
type SettledSignal struct {
	Signal          *domain.Signal
	SettlementPrice float64
}

// Config holds evaluator tuning constants.
type Config struct {
	// LossPenalty scales losing-trade P&L. The 0.5 default mirrors the
	// one-sided risk assumption of the source strategy; it is a tuning
	// constant, not a derived value.
	LossPenalty float64
}

// DefaultConfig returns the standard evaluator constants.
func DefaultConfig() Config {
	return Config{LossPenalty: 0.5}
}

// Report aggregates the outcome of grading a signal population.
type Report struct {
	Trades      int
	Wins        int
	WinRate     float64
	TotalPnL    float64
	AvgPnL      float64
	StdDevPnL   float64
	SharpeRatio float64 // mean/stddev, 0 when stddev is 0 or fewer than 2 trades
	Grades      []*domain.TradeGrade
}

// Evaluator grades signals against settlement.
type Evaluator struct {
	cfg Config
}

// NewEvaluator creates an Evaluator. A non-positive loss penalty falls back
// to the default.
func NewEvaluator(cfg Config) *Evaluator {
	if cfg.LossPenalty <= 0 {
		cfg.LossPenalty = DefaultConfig().LossPenalty
	}
	return &Evaluator{cfg: cfg}
}

// Evaluate grades each actionable signal: a long wins when settlement ends
// above entry, a short when it ends below. P&L is the directional price delta
// scaled by confidence; losses additionally carry the loss penalty factor.
// Returns ErrNoSignals when no signal has an actionable direction.
func (e *Evaluator) Evaluate(settled []SettledSignal) (*Report, error) {
	report := &Report{}
	var pnls []float64

	for _, s := range settled {
		if s.Signal == nil || s.Signal.Action == domain.ActionNone {
			continue
		}

		grade := e.grade(s.Signal, s.SettlementPrice)
		report.Grades = append(report.Grades, grade)
		pnls = append(pnls, grade.PnL)
		report.Trades++
		if grade.Won {
			report.Wins++
		}
	}

	if report.Trades == 0 {
		return nil, ErrNoSignals
	}

	var sum float64
	for _, p := range pnls {
		sum += p
	}
	report.TotalPnL = sum
	report.AvgPnL = sum / float64(report.Trades)
	report.WinRate = float64(report.Wins) / float64(report.Trades)
	report.StdDevPnL = stddev(pnls, report.AvgPnL)
	if report.StdDevPnL > 0 && report.Trades > 1 {
		report.SharpeRatio = report.AvgPnL / report.StdDevPnL
	}

	return report, nil
}

// grade scores a single signal against settlement.
func (e *Evaluator) grade(sig *domain.Signal, settlement float64) *domain.TradeGrade {
	g := &domain.TradeGrade{
		MarketID:        sig.MarketID,
		Action:          sig.Action,
		EntryPrice:      sig.EntryPrice,
		SettlementPrice: settlement,
		Confidence:      sig.Confidence,
	}

	switch sig.Action {
	case domain.ActionLong:
		g.Won = settlement > sig.EntryPrice
		if g.Won {
			g.PnL = (settlement - sig.EntryPrice) * sig.Confidence
		} else {
			g.PnL = -(sig.EntryPrice - settlement) * sig.Confidence * e.cfg.LossPenalty
		}
	case domain.ActionShort:
		g.Won = settlement < sig.EntryPrice
		if g.Won {
			g.PnL = (sig.EntryPrice - settlement) * sig.Confidence
		} else {
			g.PnL = -(settlement - sig.EntryPrice) * sig.Confidence * e.cfg.LossPenalty
		}
	}
	return g
}

// stddev is the population standard deviation, matching the source's
// aggregation over the full trade population.
func stddev(xs []float64, mean float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sumSq float64
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}
