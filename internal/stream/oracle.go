// Package stream implements WebSocket ingestion of oracle prices and
// per-market order book feeds.
package stream

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"polymarket-edge-lab/internal/domain"
	"polymarket-edge-lab/internal/observability"
	"polymarket-edge-lab/internal/pricecache"
)

const (
	topicChainlink = "crypto_prices_chainlink"
	topicExchange  = "crypto_prices"
)

// OracleConfig configures the oracle price listener.
type OracleConfig struct {
	URL          string        `mapstructure:"url"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ReconnectDelay is a fixed pause between sessions. Known weak
	// point: there is no exponential backoff, so a persistently failing
	// endpoint is redialed at this constant rate.
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
}

// DefaultOracleConfig returns default oracle listener configuration.
func DefaultOracleConfig() OracleConfig {
	return OracleConfig{
		URL:            "wss://ws-live-data.polymarket.com",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   10 * time.Second,
		ReconnectDelay: 200 * time.Millisecond,
	}
}

// PricePointSink receives every routed price point, typically for
// durable storage. Implementations must not block for long.
type PricePointSink interface {
	RecordPricePoint(ctx context.Context, p domain.PricePoint) error
}

// OracleListener consumes the real-time data stream and routes oracle
// and exchange prices into the price cache. It reconnects forever until
// the context is cancelled.
type OracleListener struct {
	cfg    OracleConfig
	cache  *pricecache.Cache
	sink   PricePointSink
	logger zerolog.Logger
}

// OracleOptions configures an OracleListener.
type OracleOptions struct {
	Config OracleConfig
	Cache  *pricecache.Cache
	Sink   PricePointSink // optional
	Logger zerolog.Logger
}

// NewOracleListener creates an oracle listener. It does not connect
// until Run is called.
func NewOracleListener(opts OracleOptions) *OracleListener {
	cfg := opts.Config
	if cfg.URL == "" {
		cfg.URL = DefaultOracleConfig().URL
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultOracleConfig().ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultOracleConfig().WriteTimeout
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultOracleConfig().ReconnectDelay
	}

	return &OracleListener{
		cfg:    cfg,
		cache:  opts.Cache,
		sink:   opts.Sink,
		logger: opts.Logger.With().Str("component", "oracle_listener").Logger(),
	}
}

// Run connects and consumes the stream until ctx is cancelled. Every
// connection failure is followed by a fixed delay and a fresh dial; Run
// only returns the context error.
func (l *OracleListener) Run(ctx context.Context) error {
	for {
		if err := l.runOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Warn().Err(err).
				Dur("retry_in", l.cfg.ReconnectDelay).
				Msg("stream session ended, reconnecting")
			observability.RecordOracleReconnect()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.cfg.ReconnectDelay):
		}
	}
}

// runOnce dials, subscribes and reads until the connection breaks.
func (l *OracleListener) runOnce(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, l.cfg.URL, nil)
	if err != nil {
		return err
	}

	// Close the socket when ctx is cancelled so ReadMessage unblocks.
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

	if err := l.subscribe(conn); err != nil {
		return err
	}
	l.logger.Info().Str("url", l.cfg.URL).Msg("oracle stream connected")

	for {
		conn.SetReadDeadline(time.Now().Add(l.cfg.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		l.handleMessage(message)
	}
}

// subscribe sends the topic subscription request.
func (l *OracleListener) subscribe(conn *websocket.Conn) error {
	req := subscribeRequest{
		Action: "subscribe",
		Subscriptions: []topicSubscription{
			{Topic: topicChainlink, Type: "update", Filters: ""},
			{Topic: topicExchange, Type: "update", Filters: ""},
		},
	}
	conn.SetWriteDeadline(time.Now().Add(l.cfg.WriteTimeout))
	return conn.WriteJSON(req)
}

// handleMessage routes a single stream message into the cache. Anything
// that does not parse as a price update is dropped silently.
func (l *OracleListener) handleMessage(message []byte) {
	var msg streamMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		observability.RecordPriceDropped()
		return
	}

	var source string
	switch msg.Topic {
	case topicChainlink:
		source = domain.SourceChainlink
	case topicExchange:
		source = domain.SourceBinance
	default:
		observability.RecordPriceDropped()
		return
	}

	asset := parseSymbol(msg.Topic, msg.Payload.Symbol)
	if !domain.IsKnownAsset(asset) || msg.Payload.Price <= 0 || msg.Payload.Timestamp <= 0 {
		observability.RecordPriceDropped()
		return
	}

	l.cache.Add(source, asset, msg.Payload.Timestamp, msg.Payload.Price)
	observability.RecordPriceRouted(source)
	observability.DefaultMetrics.LastPriceUpdate.Set(float64(time.Now().Unix()))

	if l.sink != nil {
		point := domain.PricePoint{
			Source:      source,
			Asset:       asset,
			TimestampMs: msg.Payload.Timestamp,
			Price:       msg.Payload.Price,
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := l.sink.RecordPricePoint(ctx, point); err != nil {
			l.logger.Warn().Err(err).Str("asset", asset).Msg("price point not persisted")
		}
		cancel()
	}
}

// parseSymbol extracts the asset identifier from a stream symbol. The
// oracle topic uses "btc/usd" style pairs, the exchange topic uses
// concatenated "btcusdt" style tickers.
func parseSymbol(topic, symbol string) string {
	s := strings.ToLower(strings.TrimSpace(symbol))
	switch topic {
	case topicChainlink:
		if i := strings.IndexByte(s, '/'); i > 0 {
			return s[:i]
		}
		return s
	case topicExchange:
		return strings.TrimSuffix(s, "usdt")
	}
	return s
}

// Stream wire types.

type subscribeRequest struct {
	Action        string              `json:"action"`
	Subscriptions []topicSubscription `json:"subscriptions"`
}

type topicSubscription struct {
	Topic   string `json:"topic"`
	Type    string `json:"type"`
	Filters string `json:"filters"`
}

type streamMessage struct {
	Topic   string        `json:"topic"`
	Payload streamPayload `json:"payload"`
}

type streamPayload struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"`
}
