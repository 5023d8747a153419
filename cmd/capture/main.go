package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"polymarket-edge-lab/internal/capture"
	"polymarket-edge-lab/internal/config"
	"polymarket-edge-lab/internal/domain"
	"polymarket-edge-lab/internal/gamma"
	"polymarket-edge-lab/internal/logging"
	"polymarket-edge-lab/internal/observability"
	"polymarket-edge-lab/internal/pricecache"
	"polymarket-edge-lab/internal/pricing"
	"polymarket-edge-lab/internal/recorder"
	"polymarket-edge-lab/internal/scheduler"
	"polymarket-edge-lab/internal/storage"
	chstore "polymarket-edge-lab/internal/storage/clickhouse"
	"polymarket-edge-lab/internal/storage/memory"
	"polymarket-edge-lab/internal/storage/migrations"
	pgstore "polymarket-edge-lab/internal/storage/postgres"
	"polymarket-edge-lab/internal/stream"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (defaults apply when empty)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	if cfg.Metrics.Addr != "" {
		go serveMetrics(cfg.Metrics.Addr, logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()

		select {
		case sig := <-sigCh:
			logger.Error().Str("signal", sig.String()).Msg("second signal, forcing exit")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Error().Msg("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = run(ctx, cfg, *useMemory, logger)
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("capture engine failed")
	}
	logger.Info().Msg("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, useMemory bool, logger zerolog.Logger) error {
	var (
		priceStore  storage.PricePointStore   = memory.NewPricePointStore()
		bookStore   storage.BookRowStore      = memory.NewBookRowStore()
		windowStore storage.MarketWindowStore = memory.NewMarketWindowStore()
		signalStore storage.SignalStore       = memory.NewSignalStore()
	)

	if !useMemory {
		if cfg.Storage.PostgresDSN == "" || cfg.Storage.ClickhouseDSN == "" {
			return fmt.Errorf("storage DSNs are required (use --use-memory for in-memory storage)")
		}

		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("postgres migrations: %w", err)
		}

		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			return fmt.Errorf("clickhouse migrations: %w", err)
		}
		defer conn.Close()

		priceStore = chstore.NewPricePointStore(conn)
		bookStore = chstore.NewBookRowStore(conn)
		windowStore = pgstore.NewMarketWindowStore(pool)
		signalStore = pgstore.NewSignalStore(pool)
	}

	cache := pricecache.New(cfg.Storage.PriceMaxAge)
	model := pricing.NewModel(cfg.Pricing)
	catalog := gamma.NewClient(cfg.Catalog, logger)

	rec, err := recorder.New(cfg.Recorder.Dir, logger)
	if err != nil {
		return fmt.Errorf("create recorder: %w", err)
	}
	defer rec.Close()

	oracle := stream.NewOracleListener(stream.OracleOptions{
		Config: cfg.Oracle,
		Cache:  cache,
		Sink:   &priceSink{store: priceStore},
		Logger: logger,
	})

	coordinator := scheduler.New(scheduler.Options{
		Config:  cfg.Scheduler,
		Scanner: catalog,
		Factory: func(w *domain.MarketWindow) scheduler.MarketCapture {
			return capture.New(capture.Options{
				Window:    w,
				StreamCfg: cfg.Book,
				Recorder:  rec,
				Store:     bookStore,
				Logger:    logger,
			})
		},
		Cache:       cache,
		Model:       model,
		SignalStore: signalStore,
		WindowStore: windowStore,
		Logger:      logger,
	})

	errCh := make(chan error, 2)
	go func() { errCh <- oracle.Run(ctx) }()
	go func() { errCh <- coordinator.Run(ctx) }()

	logger.Info().Msg("capture engine started")
	err = <-errCh
	<-errCh
	return err
}

// priceSink persists routed oracle prices to the price point store.
type priceSink struct {
	store storage.PricePointStore
}

func (s *priceSink) RecordPricePoint(ctx context.Context, p domain.PricePoint) error {
	return s.store.Insert(ctx, &p)
}

func serveMetrics(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	logger.Info().Str("addr", addr).Msg("metrics server listening")
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
