package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"polymarket-edge-lab/internal/config"
	"polymarket-edge-lab/internal/gamma"
	"polymarket-edge-lab/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (defaults apply when empty)")
	horizon := flag.Duration("horizon", 0, "Scan horizon around now (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *horizon > 0 {
		cfg.Catalog.Horizon = *horizon
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	client := gamma.NewClient(cfg.Catalog, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	now := time.Now().UTC()
	windows, err := client.ScanWindows(ctx, now)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scan: %v\n", err)
		os.Exit(1)
	}

	if len(windows) == 0 {
		fmt.Println("no market windows found")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MARKET_ID\tASSET\tSTART\tEND\tBID\tASK\tSTATE")
	for _, mw := range windows {
		state := "upcoming"
		switch {
		case mw.ExpiredAt(now, 0):
			state = "expired"
		case !now.Before(mw.StartTime):
			state = "live"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.3f\t%.3f\t%s\n",
			mw.MarketID,
			mw.Asset,
			mw.StartTime.Format(time.RFC3339),
			mw.EndTime().Format(time.RFC3339),
			mw.BestBid,
			mw.BestAsk,
			state,
		)
	}
	w.Flush()
	fmt.Printf("\n%d windows\n", len(windows))
}
