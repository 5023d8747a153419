// Package scheduler drives the capture lifecycle: periodic catalog
// rescans, per-window listener start and stop, and signal emission.
package scheduler

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"polymarket-edge-lab/internal/domain"
	"polymarket-edge-lab/internal/observability"
	"polymarket-edge-lab/internal/pricecache"
	"polymarket-edge-lab/internal/pricing"
	"polymarket-edge-lab/internal/storage"
)

// Config configures the coordinator.
type Config struct {
	TickInterval    time.Duration `mapstructure:"tick_interval"`
	RescanInterval  time.Duration `mapstructure:"rescan_interval"`
	StartBuffer     time.Duration `mapstructure:"start_buffer"`
	StopBuffer      time.Duration `mapstructure:"stop_buffer"`
	MaxListeners    int           `mapstructure:"max_listeners"`
	VolLookback     time.Duration `mapstructure:"vol_lookback"`
	ConfidenceScale float64       `mapstructure:"confidence_scale"`
}

// DefaultConfig returns default coordinator configuration.
func DefaultConfig() Config {
	return Config{
		TickInterval:    1 * time.Second,
		RescanInterval:  600 * time.Second,
		StartBuffer:     10 * time.Second,
		StopBuffer:      10 * time.Second,
		MaxListeners:    64,
		VolLookback:     10 * time.Minute,
		ConfidenceScale: 4,
	}
}

// Scanner discovers market windows near the current time.
type Scanner interface {
	ScanWindows(ctx context.Context, now time.Time) ([]*domain.MarketWindow, error)
}

// MarketCapture is a running capture for one market window. Run blocks
// until the context is cancelled; MidPrice reports the current YES mid
// once the book has received its first snapshot.
type MarketCapture interface {
	Run(ctx context.Context) error
	MidPrice() (float64, bool)
}

// CaptureFactory builds a capture for a window.
type CaptureFactory func(w *domain.MarketWindow) MarketCapture

// handle tracks a running capture and its signal state.
type handle struct {
	window   *domain.MarketWindow
	capture  MarketCapture
	cancel   context.CancelFunc
	done     chan struct{}
	signaled bool
}

// Coordinator owns the window table and listener handles. Not safe for
// concurrent Run calls; all state is touched from the Run goroutine.
type Coordinator struct {
	cfg     Config
	scanner Scanner
	factory CaptureFactory
	cache   *pricecache.Cache
	model   *pricing.Model
	signals storage.SignalStore       // optional
	windows storage.MarketWindowStore // optional, persists discoveries
	logger  zerolog.Logger

	mu      sync.Mutex
	tracked map[string]*domain.MarketWindow
	handles map[string]*handle

	now func() time.Time
}

// Options configures a Coordinator.
type Options struct {
	Config      Config
	Scanner     Scanner
	Factory     CaptureFactory
	Cache       *pricecache.Cache
	Model       *pricing.Model
	SignalStore storage.SignalStore       // optional
	WindowStore storage.MarketWindowStore // optional
	Logger      zerolog.Logger
}

// New creates a Coordinator.
func New(opts Options) *Coordinator {
	cfg := opts.Config
	def := DefaultConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.RescanInterval <= 0 {
		cfg.RescanInterval = def.RescanInterval
	}
	if cfg.StartBuffer <= 0 {
		cfg.StartBuffer = def.StartBuffer
	}
	if cfg.StopBuffer <= 0 {
		cfg.StopBuffer = def.StopBuffer
	}
	if cfg.MaxListeners <= 0 {
		cfg.MaxListeners = def.MaxListeners
	}
	if cfg.VolLookback <= 0 {
		cfg.VolLookback = def.VolLookback
	}
	if cfg.ConfidenceScale <= 0 {
		cfg.ConfidenceScale = def.ConfidenceScale
	}

	return &Coordinator{
		cfg:     cfg,
		scanner: opts.Scanner,
		factory: opts.Factory,
		cache:   opts.Cache,
		model:   opts.Model,
		signals: opts.SignalStore,
		windows: opts.WindowStore,
		logger:  opts.Logger.With().Str("component", "scheduler").Logger(),
		tracked: make(map[string]*domain.MarketWindow),
		handles: make(map[string]*handle),
		now:     time.Now,
	}
}

// Run scans immediately, then ticks until ctx is cancelled. On return
// all capture handles are stopped.
func (c *Coordinator) Run(ctx context.Context) error {
	c.rescan(ctx)

	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()
	rescan := time.NewTicker(c.cfg.RescanInterval)
	defer rescan.Stop()

	for {
		select {
		case <-ctx.Done():
			c.stopAll()
			return ctx.Err()
		case <-rescan.C:
			c.rescan(ctx)
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// rescan refreshes the window table from the catalog. Scan failures are
// logged and the current table is kept.
func (c *Coordinator) rescan(ctx context.Context) {
	windows, err := c.scanner.ScanWindows(ctx, c.now())
	if err != nil {
		c.logger.Warn().Err(err).Msg("catalog rescan failed")
		return
	}

	c.mu.Lock()
	for _, w := range windows {
		c.tracked[w.MarketID] = w
	}
	total := len(c.tracked)
	c.mu.Unlock()

	observability.DefaultMetrics.WindowsTracked.Set(float64(total))
	observability.DefaultMetrics.LastScan.Set(float64(c.now().Unix()))
	c.logger.Info().Int("discovered", len(windows)).Int("tracked", total).Msg("catalog rescan complete")

	if c.windows != nil {
		for _, w := range windows {
			if err := c.windows.Upsert(ctx, w); err != nil {
				c.logger.Warn().Err(err).Str("market_id", w.MarketID).Msg("window not persisted")
			}
		}
	}
}

// tick reconciles handles with the window table and evaluates signals.
func (c *Coordinator) tick(ctx context.Context) {
	now := c.now()

	c.mu.Lock()
	var toStart []*domain.MarketWindow
	for id, w := range c.tracked {
		if _, running := c.handles[id]; running {
			continue
		}
		if w.ActiveAt(now, c.cfg.StartBuffer, c.cfg.StopBuffer) {
			toStart = append(toStart, w)
		} else if w.ExpiredAt(now, c.cfg.StopBuffer) {
			delete(c.tracked, id)
		}
	}

	var toStop []*handle
	for id, h := range c.handles {
		if h.window.ExpiredAt(now, c.cfg.StopBuffer) {
			toStop = append(toStop, h)
			delete(c.handles, id)
			delete(c.tracked, id)
		}
	}

	for _, w := range toStart {
		if len(c.handles) >= c.cfg.MaxListeners {
			observability.DefaultMetrics.ListenerCapHits.Inc()
			c.logger.Warn().
				Str("market_id", w.MarketID).
				Int("cap", c.cfg.MaxListeners).
				Msg("listener cap reached, window not captured")
			continue
		}
		c.startLocked(ctx, w)
	}

	var toSignal []*handle
	for _, h := range c.handles {
		if !h.signaled && !now.Before(h.window.StartTime) && now.Before(h.window.EndTime()) {
			toSignal = append(toSignal, h)
		}
	}
	observability.DefaultMetrics.ActiveListeners.Set(float64(len(c.handles)))
	c.mu.Unlock()

	for _, h := range toStop {
		h.cancel()
		<-h.done
		c.logger.Info().Str("market_id", h.window.MarketID).Msg("capture stopped")
	}

	for _, h := range toSignal {
		c.evaluate(ctx, h, now)
	}
}

// startLocked launches a capture handle. Caller holds the lock.
func (c *Coordinator) startLocked(ctx context.Context, w *domain.MarketWindow) {
	capture := c.factory(w)
	runCtx, cancel := context.WithCancel(ctx)
	h := &handle{
		window:  w,
		capture: capture,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	c.handles[w.MarketID] = h

	go func() {
		defer close(h.done)
		if err := capture.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Warn().Err(err).Str("market_id", w.MarketID).Msg("capture ended early")
		}
	}()

	c.logger.Info().
		Str("market_id", w.MarketID).
		Str("asset", w.Asset).
		Time("start", w.StartTime).
		Msg("capture started")
}

// evaluate prices the window and emits at most one signal per market.
func (c *Coordinator) evaluate(ctx context.Context, h *handle, now time.Time) {
	w := h.window
	if !domain.IsKnownAsset(w.Asset) {
		return
	}

	nowMs := now.UnixMilli()
	strike, ok := c.cache.AsOf(domain.SourceChainlink, w.Asset, w.StartTime.UnixMilli())
	if !ok {
		return
	}
	current, ok := c.cache.AsOf(domain.SourceChainlink, w.Asset, nowMs)
	if !ok {
		return
	}

	marketYes, ok := h.capture.MidPrice()
	if !ok {
		// No book yet; fall back to the discovery-time quotes.
		if w.BestBid <= 0 || w.BestAsk <= 0 {
			return
		}
		marketYes = (w.BestBid + w.BestAsk) / 2
	}

	history := c.cache.History(domain.SourceChainlink, w.Asset,
		nowMs-c.cfg.VolLookback.Milliseconds(), nowMs)
	vol := c.model.EstimateVolatility(history)

	fv, err := c.model.FairValue(current.Price, strike.Price, vol, w.MinutesRemaining(now))
	if err != nil {
		c.logger.Warn().Err(err).Str("market_id", w.MarketID).Msg("fair value rejected")
		return
	}

	mp := c.model.FindMisprice(marketYes, fv.FairYes)
	if mp == nil {
		return
	}

	action := domain.ActionLong
	if mp.Kind == domain.MispriceOverpricedYes {
		action = domain.ActionShort
	}

	sig := &domain.Signal{
		MarketID:    w.MarketID,
		Asset:       w.Asset,
		Action:      action,
		EntryPrice:  marketYes,
		Edge:        mp.Edge,
		Confidence:  math.Min(1, mp.Edge*c.cfg.ConfidenceScale),
		CreatedAtMs: nowMs,
	}

	if c.signals != nil {
		if err := c.signals.Insert(ctx, sig); err != nil {
			if !errors.Is(err, storage.ErrDuplicateKey) {
				c.logger.Warn().Err(err).Str("market_id", w.MarketID).Msg("signal not persisted")
				return
			}
		}
	}

	c.mu.Lock()
	h.signaled = true
	c.mu.Unlock()

	observability.RecordSignalEmitted(string(action))
	c.logger.Info().
		Str("market_id", w.MarketID).
		Str("asset", w.Asset).
		Str("action", string(action)).
		Float64("entry", sig.EntryPrice).
		Float64("edge", sig.Edge).
		Float64("fair_yes", fv.FairYes).
		Msg("signal emitted")
}

// stopAll cancels every running capture and waits for them to exit.
func (c *Coordinator) stopAll() {
	c.mu.Lock()
	handles := make([]*handle, 0, len(c.handles))
	for id, h := range c.handles {
		handles = append(handles, h)
		delete(c.handles, id)
	}
	c.mu.Unlock()

	for _, h := range handles {
		h.cancel()
		<-h.done
	}
	observability.DefaultMetrics.ActiveListeners.Set(0)
}
