package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"polymarket-edge-lab/internal/domain"
	"polymarket-edge-lab/internal/pricecache"
)

var upgrader = websocket.Upgrader{}

// wsURL converts an httptest server URL to a ws:// URL.
func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestOracleListenerRoutesPrices(t *testing.T) {
	messages := []string{
		`{"topic":"crypto_prices_chainlink","payload":{"symbol":"btc/usd","value":65000.5,"timestamp":1700000000000}}`,
		`{"topic":"crypto_prices","payload":{"symbol":"ethusdt","value":3100.25,"timestamp":1700000001000}}`,
		`{"topic":"crypto_prices_chainlink","payload":{"symbol":"doge/usd","value":0.1,"timestamp":1700000002000}}`,
		`{"topic":"comments","payload":{"body":"irrelevant"}}`,
		`not json at all`,
		`{"topic":"crypto_prices","payload":{"symbol":"btcusdt","value":-5,"timestamp":1700000003000}}`,
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Consume the subscription request first.
		var sub subscribeRequest
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		if sub.Action != "subscribe" || len(sub.Subscriptions) != 2 {
			t.Errorf("unexpected subscription request: %+v", sub)
		}

		for _, m := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
		// Keep the connection open until the client goes away.
		conn.ReadMessage()
	}))
	defer srv.Close()

	cache := pricecache.New(pricecache.DefaultMaxAge)
	listener := NewOracleListener(OracleOptions{
		Config: OracleConfig{URL: wsURL(srv), ReconnectDelay: 50 * time.Millisecond},
		Cache:  cache,
		Logger: zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go listener.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cache.Len(domain.SourceChainlink, "btc") > 0 && cache.Len(domain.SourceBinance, "eth") > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	p, ok := cache.AsOf(domain.SourceChainlink, "btc", 1700000000000)
	if !ok {
		t.Fatal("chainlink btc price not routed")
	}
	if p.Price != 65000.5 {
		t.Errorf("price = %v, want 65000.5", p.Price)
	}

	p, ok = cache.AsOf(domain.SourceBinance, "eth", 1700000001000)
	if !ok {
		t.Fatal("exchange eth price not routed")
	}
	if p.Price != 3100.25 {
		t.Errorf("price = %v, want 3100.25", p.Price)
	}

	// Unknown asset, unknown topic, malformed JSON and non-positive
	// prices must all be dropped.
	if cache.Len(domain.SourceChainlink, "doge") != 0 {
		t.Error("unknown asset was routed")
	}
	if cache.Len(domain.SourceBinance, "btc") != 0 {
		t.Error("non-positive price was routed")
	}
}

func TestOracleListenerReconnects(t *testing.T) {
	sessions := make(chan struct{}, 4)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sessions <- struct{}{}
		// Drop the connection right after the subscribe message.
		conn.ReadMessage()
		conn.Close()
	}))
	defer srv.Close()

	cache := pricecache.New(pricecache.DefaultMaxAge)
	listener := NewOracleListener(OracleOptions{
		Config: OracleConfig{URL: wsURL(srv), ReconnectDelay: 20 * time.Millisecond},
		Cache:  cache,
		Logger: zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- listener.Run(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case <-sessions:
		case <-time.After(2 * time.Second):
			t.Fatalf("expected at least 2 connect attempts, got %d", i)
		}
	}

	cancel()
	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestParseSymbol(t *testing.T) {
	tests := []struct {
		topic, symbol, want string
	}{
		{topicChainlink, "btc/usd", "btc"},
		{topicChainlink, "ETH/USD", "eth"},
		{topicExchange, "btcusdt", "btc"},
		{topicExchange, "XRPUSDT", "xrp"},
		{topicExchange, "btc", "btc"},
	}
	for _, tt := range tests {
		if got := parseSymbol(tt.topic, tt.symbol); got != tt.want {
			t.Errorf("parseSymbol(%q, %q) = %q, want %q", tt.topic, tt.symbol, got, tt.want)
		}
	}
}

func TestParseLevelsRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		price, size string
		keep        bool
	}{
		{"0.48", "120", true},
		{"0.999", "1", true},
		{"0.001", "1", true},
		{"1.00", "10", false},
		{"1.50", "10", false},
		{"0", "10", false},
		{"-0.1", "10", false},
		{"0.5", "0", false},
		{"bad", "10", false},
	}
	for _, tt := range tests {
		got := parseLevels([]bookLevel{{Price: tt.price, Size: tt.size}})
		if kept := len(got) == 1; kept != tt.keep {
			t.Errorf("parseLevels(price=%s, size=%s) kept=%v, want %v", tt.price, tt.size, kept, tt.keep)
		}
	}
}

func TestBookListenerDispatchesUpdates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub marketSubscription
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		if sub.Type != "market" || len(sub.AssetIDs) != 1 || sub.AssetIDs[0] != "token-1" {
			t.Errorf("unexpected subscription: %+v", sub)
		}

		// Single object event.
		conn.WriteMessage(websocket.TextMessage, []byte(
			`{"event_type":"book","asset_id":"token-1","timestamp":"1700000000000",`+
				`"bids":[{"price":"0.48","size":"120"},{"price":"bad","size":"1"},{"price":"1.50","size":"10"}],`+
				`"asks":[{"price":"0.52","size":"80"}]}`))
		// Array of events.
		conn.WriteMessage(websocket.TextMessage, []byte(
			`[{"event_type":"book","asset_id":"token-1","timestamp":"1700000001",`+
				`"bids":[{"price":"0.49","size":"50"}],"asks":[]}]`))
		// Non-book event must be skipped.
		conn.WriteMessage(websocket.TextMessage, []byte(
			`{"event_type":"last_trade_price","asset_id":"token-1","price":"0.5"}`))

		conn.ReadMessage()
	}))
	defer srv.Close()

	updates := make(chan domain.BookUpdate, 8)
	listener := NewBookListener(BookOptions{
		Config:   BookConfig{URL: wsURL(srv), PingInterval: time.Hour},
		MarketID: "mkt-1",
		TokenID:  "token-1",
		Handler:  func(u domain.BookUpdate) { updates <- u },
		Logger:   zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go listener.Run(ctx)

	var first domain.BookUpdate
	select {
	case first = <-updates:
	case <-time.After(2 * time.Second):
		t.Fatal("no update received")
	}

	if first.MarketID != "mkt-1" || first.AssetID != "token-1" {
		t.Errorf("update identity = %s/%s, want mkt-1/token-1", first.MarketID, first.AssetID)
	}
	if first.TimestampMs != 1700000000000 {
		t.Errorf("TimestampMs = %d, want 1700000000000", first.TimestampMs)
	}
	if len(first.Bids) != 1 || first.Bids[0].Price != 0.48 || first.Bids[0].Size != 120 {
		t.Errorf("bids = %+v, want only the level at 0.48/120", first.Bids)
	}
	if len(first.Asks) != 1 || first.Asks[0].Price != 0.52 {
		t.Errorf("asks = %+v, want one level at 0.52", first.Asks)
	}

	var second domain.BookUpdate
	select {
	case second = <-updates:
	case <-time.After(2 * time.Second):
		t.Fatal("array-framed update not received")
	}
	// Second-resolution timestamps are scaled to milliseconds.
	if second.TimestampMs != 1700000001000 {
		t.Errorf("TimestampMs = %d, want 1700000001000", second.TimestampMs)
	}
	if len(second.Bids) != 1 || second.Bids[0].Price != 0.49 {
		t.Errorf("bids = %+v, want one level at 0.49", second.Bids)
	}

	select {
	case extra := <-updates:
		t.Errorf("unexpected extra update: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBookListenerSendsPing(t *testing.T) {
	pings := make(chan string, 4)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if _, _, err := conn.ReadMessage(); err != nil { // subscription
			return
		}
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			pings <- string(msg)
		}
	}))
	defer srv.Close()

	listener := NewBookListener(BookOptions{
		Config:   BookConfig{URL: wsURL(srv), PingInterval: 20 * time.Millisecond},
		MarketID: "mkt-1",
		TokenID:  "token-1",
		Handler:  func(domain.BookUpdate) {},
		Logger:   zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go listener.Run(ctx)

	select {
	case msg := <-pings:
		if msg != "PING" {
			t.Errorf("keep-alive frame = %q, want PING", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no keep-alive frame received")
	}
}

func TestBookListenerStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	listener := NewBookListener(BookOptions{
		Config:   BookConfig{URL: wsURL(srv), PingInterval: time.Hour},
		MarketID: "mkt-1",
		TokenID:  "token-1",
		Handler:  func(domain.BookUpdate) {},
		Logger:   zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- listener.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
