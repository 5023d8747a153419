package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"polymarket-edge-lab/internal/backtest"
	"polymarket-edge-lab/internal/config"
	"polymarket-edge-lab/internal/domain"
	"polymarket-edge-lab/internal/logging"
	"polymarket-edge-lab/internal/storage"
	chstore "polymarket-edge-lab/internal/storage/clickhouse"
	pgstore "polymarket-edge-lab/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (defaults apply when empty)")
	fromStr := flag.String("from", "", "Grade signals created at or after this time (RFC3339)")
	toStr := flag.String("to", "", "Grade signals created at or before this time (RFC3339)")
	output := flag.String("output", "", "Write the JSON report to this file instead of stdout")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Storage.PostgresDSN == "" || cfg.Storage.ClickhouseDSN == "" {
		fmt.Fprintln(os.Stderr, "Error: storage.postgres_dsn and storage.clickhouse_dsn are required")
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect to postgres")
	}
	defer pool.Close()

	conn, err := chstore.NewConn(ctx, cfg.Storage.ClickhouseDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect to clickhouse")
	}
	defer conn.Close()

	signalStore := pgstore.NewSignalStore(pool)
	windowStore := pgstore.NewMarketWindowStore(pool)
	gradeStore := pgstore.NewTradeGradeStore(pool)
	priceStore := chstore.NewPricePointStore(conn)

	signals, err := loadSignals(ctx, signalStore, *fromStr, *toStr)
	if err != nil {
		logger.Fatal().Err(err).Msg("load signals")
	}
	logger.Info().Int("signals", len(signals)).Msg("signals loaded")

	settled := settle(ctx, logger, signals, windowStore, priceStore)

	report, err := backtest.NewEvaluator(backtest.DefaultConfig()).Evaluate(settled)
	if err != nil {
		if errors.Is(err, backtest.ErrNoSignals) {
			logger.Fatal().Msg("no settleable signals in range")
		}
		logger.Fatal().Err(err).Msg("evaluate")
	}

	for _, g := range report.Grades {
		if err := gradeStore.Upsert(ctx, g); err != nil {
			logger.Warn().Err(err).Str("market_id", g.MarketID).Msg("grade not persisted")
		}
	}

	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		logger.Fatal().Err(err).Msg("encode report")
	}
	body = append(body, '\n')

	if *output != "" {
		if err := os.WriteFile(*output, body, 0o644); err != nil {
			logger.Fatal().Err(err).Msg("write report")
		}
		logger.Info().Str("path", *output).Msg("report written")
		return
	}
	os.Stdout.Write(body)
}

func loadSignals(ctx context.Context, store storage.SignalStore, fromStr, toStr string) ([]*domain.Signal, error) {
	if fromStr == "" && toStr == "" {
		return store.GetAll(ctx)
	}

	from := int64(0)
	to := time.Now().UnixMilli()
	if fromStr != "" {
		t, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			return nil, fmt.Errorf("parse --from: %w", err)
		}
		from = t.UnixMilli()
	}
	if toStr != "" {
		t, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			return nil, fmt.Errorf("parse --to: %w", err)
		}
		to = t.UnixMilli()
	}
	return store.GetByTimeRange(ctx, from, to)
}

// settle resolves each signal's settlement price: the last oracle print
// at or before its market window's close. Signals whose window or
// settlement price cannot be found are skipped.
func settle(ctx context.Context, logger zerolog.Logger, signals []*domain.Signal, windows storage.MarketWindowStore, prices storage.PricePointStore) []backtest.SettledSignal {
	settled := make([]backtest.SettledSignal, 0, len(signals))
	for _, sig := range signals {
		w, err := windows.GetByID(ctx, sig.MarketID)
		if err != nil {
			logger.Warn().Err(err).Str("market_id", sig.MarketID).Msg("window not found, signal skipped")
			continue
		}

		p, err := prices.GetAsOf(ctx, domain.SourceChainlink, sig.Asset, w.EndTime().UnixMilli())
		if err != nil {
			logger.Warn().Err(err).Str("market_id", sig.MarketID).Msg("no settlement price, signal skipped")
			continue
		}

		settled = append(settled, backtest.SettledSignal{Signal: sig, SettlementPrice: p.Price})
	}
	return settled
}
