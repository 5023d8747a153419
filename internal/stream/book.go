package stream

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"polymarket-edge-lab/internal/domain"
	"polymarket-edge-lab/internal/observability"
)

// BookConfig configures a per-market order book listener.
type BookConfig struct {
	URL          string        `mapstructure:"url"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DefaultBookConfig returns default book listener configuration.
func DefaultBookConfig() BookConfig {
	return BookConfig{
		URL:          "wss://ws-subscriptions-clob.polymarket.com/ws/market",
		PingInterval: 10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// BookHandler receives normalized order book updates.
type BookHandler func(domain.BookUpdate)

// BookListener subscribes to the CLOB market channel for a single token
// and dispatches normalized book updates to a handler. A listener covers
// one market window; it is not reused across connections.
type BookListener struct {
	cfg      BookConfig
	marketID string
	tokenID  string
	handler  BookHandler
	logger   zerolog.Logger
}

// BookOptions configures a BookListener.
type BookOptions struct {
	Config   BookConfig
	MarketID string
	TokenID  string
	Handler  BookHandler
	Logger   zerolog.Logger
}

// NewBookListener creates a listener for one market's token feed.
func NewBookListener(opts BookOptions) *BookListener {
	cfg := opts.Config
	if cfg.URL == "" {
		cfg.URL = DefaultBookConfig().URL
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultBookConfig().PingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultBookConfig().WriteTimeout
	}

	return &BookListener{
		cfg:      cfg,
		marketID: opts.MarketID,
		tokenID:  opts.TokenID,
		handler:  opts.Handler,
		logger: opts.Logger.With().
			Str("component", "book_listener").
			Str("market_id", opts.MarketID).
			Logger(),
	}
}

// Run connects, subscribes and streams updates until ctx is cancelled
// or the connection fails. Unlike the oracle listener it does not
// reconnect; the scheduler owns listener lifecycles.
func (l *BookListener) Run(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, l.cfg.URL, nil)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	sub := marketSubscription{Type: "market", AssetIDs: []string{l.tokenID}}
	conn.SetWriteDeadline(time.Now().Add(l.cfg.WriteTimeout))
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}
	l.logger.Info().Msg("book stream subscribed")

	// Keep-alive writer. The feed expects a literal PING text frame; a
	// failed write closes the socket so the read loop exits too.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.pingLoop(conn, done)
	}()
	defer wg.Wait()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		l.handleMessage(message)
	}
}

func (l *BookListener) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(l.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(l.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, []byte("PING")); err != nil {
				conn.Close()
				return
			}
		}
	}
}

// handleMessage normalizes a frame into zero or more book updates. The
// feed sends either a single event object or an array of them.
func (l *BookListener) handleMessage(message []byte) {
	events, ok := decodeBookEvents(message)
	if !ok {
		observability.RecordBookUpdate(false)
		return
	}

	for _, ev := range events {
		update, ok := l.normalize(ev)
		if !ok {
			observability.RecordBookUpdate(false)
			continue
		}
		observability.RecordBookUpdate(true)
		l.handler(update)
	}
}

// normalize converts a raw book event into a domain update. Events that
// are not book snapshots are skipped; a missing or unparseable timestamp
// is replaced with the local receive time.
func (l *BookListener) normalize(ev bookEvent) (domain.BookUpdate, bool) {
	if ev.EventType != "" && ev.EventType != "book" {
		return domain.BookUpdate{}, false
	}
	if len(ev.Bids) == 0 && len(ev.Asks) == 0 {
		return domain.BookUpdate{}, false
	}

	tsMs := parseTimestampMs(ev.Timestamp)
	if tsMs <= 0 {
		tsMs = time.Now().UnixMilli()
	}

	update := domain.BookUpdate{
		MarketID:    l.marketID,
		AssetID:     l.tokenID,
		TimestampMs: tsMs,
		Bids:        parseLevels(ev.Bids),
		Asks:        parseLevels(ev.Asks),
	}
	if len(update.Bids) == 0 && len(update.Asks) == 0 {
		return domain.BookUpdate{}, false
	}
	return update, true
}

func decodeBookEvents(message []byte) ([]bookEvent, bool) {
	trimmed := []byte{}
	for _, b := range message {
		if b != ' ' && b != '\n' && b != '\r' && b != '\t' {
			trimmed = append(trimmed, b)
			break
		}
	}
	if len(trimmed) == 0 {
		return nil, false
	}

	if trimmed[0] == '[' {
		var events []bookEvent
		if err := json.Unmarshal(message, &events); err != nil {
			return nil, false
		}
		return events, true
	}

	var ev bookEvent
	if err := json.Unmarshal(message, &ev); err != nil {
		return nil, false
	}
	return []bookEvent{ev}, true
}

// parseLevels converts wire levels to domain levels. Binary outcome
// prices must lie strictly inside (0, 1); entries outside that range or
// with non-positive size are dropped.
func parseLevels(raw []bookLevel) []domain.BookLevel {
	levels := make([]domain.BookLevel, 0, len(raw))
	for _, lv := range raw {
		price, err1 := strconv.ParseFloat(lv.Price, 64)
		size, err2 := strconv.ParseFloat(lv.Size, 64)
		if err1 != nil || err2 != nil || price <= 0 || price >= 1 || size <= 0 {
			continue
		}
		levels = append(levels, domain.BookLevel{Price: price, Size: size})
	}
	return levels
}

// parseTimestampMs accepts millisecond or second epoch strings.
func parseTimestampMs(s string) int64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	// Second-resolution timestamps are below this for any modern date.
	if v < 1e12 {
		v *= 1000
	}
	return v
}

// CLOB wire types.

type marketSubscription struct {
	Type     string   `json:"type"`
	AssetIDs []string `json:"assets_ids"`
}

type bookEvent struct {
	EventType string      `json:"event_type"`
	AssetID   string      `json:"asset_id"`
	Market    string      `json:"market"`
	Timestamp string      `json:"timestamp"`
	Bids      []bookLevel `json:"bids"`
	Asks      []bookLevel `json:"asks"`
}

type bookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}
