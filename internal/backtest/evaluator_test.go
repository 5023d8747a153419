package backtest

import (
	"errors"
	"math"
	"testing"

	"polymarket-edge-lab/internal/domain"
)

func TestEvaluate_NoSignals(t *testing.T) {
	e := NewEvaluator(DefaultConfig())

	if _, err := e.Evaluate(nil); !errors.Is(err, ErrNoSignals) {
		t.Errorf("empty input: got %v, want ErrNoSignals", err)
	}

	// ActionNone signals do not count as trades.
	settled := []SettledSignal{
		{Signal: &domain.Signal{MarketID: "m1", Action: domain.ActionNone}, SettlementPrice: 0.5},
	}
	if _, err := e.Evaluate(settled); !errors.Is(err, ErrNoSignals) {
		t.Errorf("none-only input: got %v, want ErrNoSignals", err)
	}
}

func TestEvaluate_WinningLong(t *testing.T) {
	e := NewEvaluator(DefaultConfig())

	settled := []SettledSignal{
		{
			Signal:          &domain.Signal{MarketID: "m1", Action: domain.ActionLong, EntryPrice: 0.40, Confidence: 0.7},
			SettlementPrice: 0.55,
		},
	}

	report, err := e.Evaluate(settled)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if report.Trades != 1 || report.Wins != 1 {
		t.Errorf("trades=%d wins=%d, want 1/1", report.Trades, report.Wins)
	}
	// pnl = (0.55-0.40)*0.7 = 0.105
	if math.Abs(report.TotalPnL-0.105) > 1e-12 {
		t.Errorf("pnl = %v, want 0.105", report.TotalPnL)
	}
	if report.WinRate != 1.0 {
		t.Errorf("win rate = %v, want 1", report.WinRate)
	}
}

func TestEvaluate_LosingShortAppliesPenalty(t *testing.T) {
	e := NewEvaluator(DefaultConfig())

	settled := []SettledSignal{
		{
			Signal:          &domain.Signal{MarketID: "m1", Action: domain.ActionShort, EntryPrice: 0.80, Confidence: 0.6},
			SettlementPrice: 0.90,
		},
	}

	report, err := e.Evaluate(settled)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if report.Wins != 0 {
		t.Errorf("wins = %d, want 0", report.Wins)
	}
	// pnl = -(0.90-0.80)*0.6*0.5 = -0.03
	if math.Abs(report.TotalPnL-(-0.03)) > 1e-12 {
		t.Errorf("pnl = %v, want -0.03", report.TotalPnL)
	}
}

func TestEvaluate_SharpeZeroForSingleTrade(t *testing.T) {
	e := NewEvaluator(DefaultConfig())

	settled := []SettledSignal{
		{
			Signal:          &domain.Signal{MarketID: "m1", Action: domain.ActionLong, EntryPrice: 0.4, Confidence: 1},
			SettlementPrice: 0.6,
		},
	}

	report, err := e.Evaluate(settled)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if report.SharpeRatio != 0 {
		t.Errorf("single-trade sharpe = %v, want 0", report.SharpeRatio)
	}
}

func TestEvaluate_Aggregates(t *testing.T) {
	e := NewEvaluator(Config{LossPenalty: 0.5})

	settled := []SettledSignal{
		{
			Signal:          &domain.Signal{MarketID: "m1", Action: domain.ActionLong, EntryPrice: 0.40, Confidence: 1},
			SettlementPrice: 0.60, // win, pnl 0.20
		},
		{
			Signal:          &domain.Signal{MarketID: "m2", Action: domain.ActionLong, EntryPrice: 0.50, Confidence: 1},
			SettlementPrice: 0.40, // loss, pnl -0.05
		},
		{
			Signal:          &domain.Signal{MarketID: "m3", Action: domain.ActionShort, EntryPrice: 0.70, Confidence: 1},
			SettlementPrice: 0.50, // win, pnl 0.20
		},
	}

	report, err := e.Evaluate(settled)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if report.Trades != 3 || report.Wins != 2 {
		t.Fatalf("trades=%d wins=%d, want 3/2", report.Trades, report.Wins)
	}
	if math.Abs(report.WinRate-2.0/3.0) > 1e-12 {
		t.Errorf("win rate = %v, want 2/3", report.WinRate)
	}
	if math.Abs(report.TotalPnL-0.35) > 1e-12 {
		t.Errorf("total pnl = %v, want 0.35", report.TotalPnL)
	}

	mean := 0.35 / 3.0
	wantVar := (math.Pow(0.20-mean, 2)*2 + math.Pow(-0.05-mean, 2)) / 3.0
	wantStd := math.Sqrt(wantVar)
	if math.Abs(report.StdDevPnL-wantStd) > 1e-12 {
		t.Errorf("stddev = %v, want %v", report.StdDevPnL, wantStd)
	}
	if math.Abs(report.SharpeRatio-mean/wantStd) > 1e-12 {
		t.Errorf("sharpe = %v, want %v", report.SharpeRatio, mean/wantStd)
	}
	if len(report.Grades) != 3 {
		t.Errorf("grades = %d, want 3", len(report.Grades))
	}
}
