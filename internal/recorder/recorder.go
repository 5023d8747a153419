// Package recorder appends top-of-book rows to per-market CSV files.
package recorder

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"polymarket-edge-lab/internal/domain"
)

var csvHeader = []string{
	"timestamp_ms", "timestamp_iso",
	"bid_price_1", "bid_size_1",
	"ask_price_1", "ask_size_1",
	"spread", "mid_price",
	"market_id",
}

// Recorder writes one CSV file per market under a base directory. Files
// are opened in append mode so a restart continues an existing capture;
// the header is written only when the file is created empty.
type Recorder struct {
	dir    string
	logger zerolog.Logger

	mu      sync.Mutex
	files   map[string]*os.File
	writers map[string]*csv.Writer
}

// New creates a Recorder rooted at dir, creating it if needed.
func New(dir string, logger zerolog.Logger) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Recorder{
		dir:     dir,
		logger:  logger.With().Str("component", "recorder").Logger(),
		files:   make(map[string]*os.File),
		writers: make(map[string]*csv.Writer),
	}, nil
}

// Record appends one row for the market and flushes it to disk.
func (r *Recorder) Record(row domain.BookRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, err := r.writerFor(row.MarketID)
	if err != nil {
		return err
	}

	iso := time.UnixMilli(row.TimestampMs).UTC().Format(time.RFC3339Nano)
	record := []string{
		strconv.FormatInt(row.TimestampMs, 10),
		iso,
		formatFloat(row.BidPrice),
		formatFloat(row.BidSize),
		formatFloat(row.AskPrice),
		formatFloat(row.AskSize),
		formatFloat(row.Spread),
		formatFloat(row.MidPrice),
		row.MarketID,
	}
	if err := w.Write(record); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	w.Flush()
	return w.Error()
}

// writerFor returns the CSV writer for a market, opening the file and
// writing the header on first use. Caller holds the lock.
func (r *Recorder) writerFor(marketID string) (*csv.Writer, error) {
	if w, ok := r.writers[marketID]; ok {
		return w, nil
	}

	path := filepath.Join(r.dir, marketID+".csv")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	w := csv.NewWriter(f)

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, err
		}
	}

	r.files[marketID] = f
	r.writers[marketID] = w
	r.logger.Debug().Str("market_id", marketID).Str("path", path).Msg("capture file opened")
	return w, nil
}

// CloseMarket flushes and closes the file for one market, releasing its
// handle. Recording the same market again reopens the file in append mode.
func (r *Recorder) CloseMarket(marketID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked(marketID)
}

// Close flushes and closes all open files.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for id := range r.files {
		if err := r.closeLocked(id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Recorder) closeLocked(marketID string) error {
	f, ok := r.files[marketID]
	if !ok {
		return nil
	}
	if w := r.writers[marketID]; w != nil {
		w.Flush()
	}
	delete(r.files, marketID)
	delete(r.writers, marketID)
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", marketID, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
