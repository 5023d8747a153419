// Package gamma discovers upcoming 15-minute binary markets from a
// Gamma-style paged market catalog.
package gamma

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"polymarket-edge-lab/internal/domain"
	"polymarket-edge-lab/internal/observability"
)

// Config holds catalog client settings.
type Config struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`     // per-request hard timeout
	PageSize   int           `mapstructure:"page_size"`   // events per page
	MaxPages   int           `mapstructure:"max_pages"`   // bounds runaway paging
	Horizon    time.Duration `mapstructure:"horizon"`     // lookback/lookahead around now
	Recurrence string        `mapstructure:"recurrence"`  // series recurrence tag to keep
}

// DefaultConfig returns the standard catalog settings.
func DefaultConfig() Config {
	return Config{
		BaseURL:    "https://gamma-api.polymarket.com",
		Timeout:    15 * time.Second,
		PageSize:   200,
		MaxPages:   20,
		Horizon:    2 * time.Hour,
		Recurrence: "15m",
	}
}

// Client pages through the market catalog and extracts trading windows.
type Client struct {
	cfg    Config
	http   *http.Client
	logger zerolog.Logger
}

// NewClient creates a catalog client. Zero config fields fall back to
// defaults.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = def.MaxPages
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = def.Horizon
	}
	if cfg.Recurrence == "" {
		cfg.Recurrence = def.Recurrence
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.With().Str("component", "gamma").Logger(),
	}
}

// Catalog wire types. Token ids and outcome lists arrive as JSON-encoded
// strings inside JSON, as the Gamma API serves them.

type catalogEvent struct {
	ID             string          `json:"id"`
	Slug           string          `json:"slug"`
	StartTime      string          `json:"startTime"`
	EventStartTime string          `json:"eventStartTime"`
	Series         []catalogSeries `json:"series"`
	Tags           []catalogTag    `json:"tags"`
	Markets        []catalogMarket `json:"markets"`
}

type catalogSeries struct {
	Recurrence string `json:"recurrence"`
}

type catalogTag struct {
	Slug string `json:"slug"`
}

type catalogMarket struct {
	ID           string      `json:"id"`
	ClobTokenIDs string      `json:"clobTokenIds"`
	BestBid      json.Number `json:"bestBid"`
	BestAsk      json.Number `json:"bestAsk"`
}

// ScanWindows pages through the catalog and returns markets with the
// configured recurrence whose start time falls within ±Horizon of now.
// Errors on individual pages are logged and skipped; paging stops at
// MaxPages or on the first empty page.
func (c *Client) ScanWindows(ctx context.Context, now time.Time) ([]*domain.MarketWindow, error) {
	lo := now.Add(-c.cfg.Horizon)
	hi := now.Add(c.cfg.Horizon)

	var windows []*domain.MarketWindow
	offset := 0

	for page := 0; page < c.cfg.MaxPages; page++ {
		events, err := c.fetchPage(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return windows, ctx.Err()
			}
			observability.DefaultMetrics.ScanPageErrors.Inc()
			c.logger.Warn().Err(err).Int("offset", offset).Msg("catalog page failed, skipping")
			offset += c.cfg.PageSize
			continue
		}
		observability.DefaultMetrics.ScanPagesFetched.Inc()
		if len(events) == 0 {
			break
		}

		for _, e := range events {
			w, ok := c.toWindow(e)
			if !ok {
				continue
			}
			if w.StartTime.Before(lo) || w.StartTime.After(hi) {
				continue
			}
			windows = append(windows, w)
		}

		offset += c.cfg.PageSize
	}

	c.logger.Debug().Int("windows", len(windows)).Msg("catalog scan complete")
	return windows, nil
}

// fetchPage retrieves one catalog page of open events.
func (c *Client) fetchPage(ctx context.Context, offset int) ([]catalogEvent, error) {
	u, err := url.Parse(c.cfg.BaseURL + "/events")
	if err != nil {
		return nil, fmt.Errorf("parse catalog url: %w", err)
	}

	q := u.Query()
	q.Set("order", "id")
	q.Set("ascending", "false")
	q.Set("limit", strconv.Itoa(c.cfg.PageSize))
	q.Set("offset", strconv.Itoa(offset))
	q.Set("closed", "false")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog page status %d", resp.StatusCode)
	}

	var events []catalogEvent
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, fmt.Errorf("decode catalog page: %w", err)
	}
	return events, nil
}

// toWindow converts a catalog event into a MarketWindow. Events without the
// configured recurrence, a parseable start time, or a token pair are dropped.
func (c *Client) toWindow(e catalogEvent) (*domain.MarketWindow, bool) {
	recurring := false
	for _, s := range e.Series {
		if s.Recurrence == c.cfg.Recurrence {
			recurring = true
			break
		}
	}
	if !recurring {
		return nil, false
	}

	start := e.EventStartTime
	if start == "" {
		start = e.StartTime
	}
	if start == "" {
		return nil, false
	}
	st, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return nil, false
	}

	if len(e.Markets) == 0 {
		return nil, false
	}
	m := e.Markets[0]
	yesID, noID, err := tokenPair(m.ClobTokenIDs)
	if err != nil {
		return nil, false
	}

	bid, _ := m.BestBid.Float64()
	ask, _ := m.BestAsk.Float64()

	return &domain.MarketWindow{
		MarketID:   e.ID,
		Slug:       e.Slug,
		Asset:      extractAsset(e),
		YesTokenID: yesID,
		NoTokenID:  noID,
		StartTime:  st.UTC(),
		Duration:   15 * time.Minute,
		BestBid:    bid,
		BestAsk:    ask,
	}, true
}

// extractAsset derives the traded asset from the event slug or tags: slug
// prefix first, then tag slugs, then the slug's first segment, else
// "unknown".
func extractAsset(e catalogEvent) string {
	slug := strings.ToLower(e.Slug)
	for _, a := range domain.KnownAssets {
		if strings.HasPrefix(slug, a+"-") {
			return a
		}
	}
	for _, t := range e.Tags {
		s := strings.ToLower(t.Slug)
		if domain.IsKnownAsset(s) {
			return s
		}
	}
	if slug != "" {
		return strings.SplitN(slug, "-", 2)[0]
	}
	return "unknown"
}

// tokenPair parses the JSON-encoded token id list carried as a string.
func tokenPair(raw string) (yes, no string, err error) {
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return "", "", fmt.Errorf("parse clob token ids: %w", err)
	}
	if len(ids) < 2 {
		return "", "", fmt.Errorf("expected 2 token ids, got %d", len(ids))
	}
	return ids[0], ids[1], nil
}
