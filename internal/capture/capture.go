// Package capture wires a per-market order book listener to the book
// state, the CSV recorder and durable storage.
package capture

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"polymarket-edge-lab/internal/domain"
	"polymarket-edge-lab/internal/observability"
	"polymarket-edge-lab/internal/orderbook"
	"polymarket-edge-lab/internal/recorder"
	"polymarket-edge-lab/internal/storage"
	"polymarket-edge-lab/internal/stream"
)

// Capture runs the CLOB stream for one market window, maintaining the
// live book and appending every snapshot to the CSV recorder and the
// book row store.
type Capture struct {
	window   *domain.MarketWindow
	book     *orderbook.Book
	listener *stream.BookListener
	recorder *recorder.Recorder   // optional
	store    storage.BookRowStore // optional
	logger   zerolog.Logger

	mu      sync.RWMutex
	lastRow *domain.BookRow
}

// Options configures a Capture.
type Options struct {
	Window    *domain.MarketWindow
	StreamCfg stream.BookConfig
	Recorder  *recorder.Recorder   // optional
	Store     storage.BookRowStore // optional
	Logger    zerolog.Logger
}

// New creates a capture for the window's YES token.
func New(opts Options) *Capture {
	c := &Capture{
		window:   opts.Window,
		book:     orderbook.New(opts.Window.YesTokenID, orderbook.DefaultDepth),
		recorder: opts.Recorder,
		store:    opts.Store,
		logger: opts.Logger.With().
			Str("component", "capture").
			Str("market_id", opts.Window.MarketID).
			Logger(),
	}
	c.listener = stream.NewBookListener(stream.BookOptions{
		Config:   opts.StreamCfg,
		MarketID: opts.Window.MarketID,
		TokenID:  opts.Window.YesTokenID,
		Handler:  c.onUpdate,
		Logger:   opts.Logger,
	})
	return c
}

// Run streams until ctx is cancelled, then releases the CSV handle.
func (c *Capture) Run(ctx context.Context) error {
	err := c.listener.Run(ctx)
	if c.recorder != nil {
		if cerr := c.recorder.CloseMarket(c.window.MarketID); cerr != nil {
			c.logger.Warn().Err(cerr).Msg("capture file not closed cleanly")
		}
	}
	return err
}

// MidPrice returns the current YES mid, false before the first snapshot.
func (c *Capture) MidPrice() (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastRow == nil {
		return 0, false
	}
	return c.lastRow.MidPrice, true
}

// onUpdate applies one book update and fans it out.
func (c *Capture) onUpdate(u domain.BookUpdate) {
	c.book.ApplySnapshot(u.Bids, u.Asks)
	row := c.book.Row(c.window.MarketID, u.TimestampMs)

	c.mu.Lock()
	c.lastRow = &row
	c.mu.Unlock()

	if c.recorder != nil {
		if err := c.recorder.Record(row); err != nil {
			c.logger.Warn().Err(err).Msg("book row not recorded")
		}
	}
	if c.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := c.store.Insert(ctx, &row); err != nil {
			c.logger.Warn().Err(err).Msg("book row not stored")
		} else {
			observability.DefaultMetrics.BookRowsStored.Inc()
		}
		cancel()
	}
}
