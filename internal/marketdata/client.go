// Package marketdata looks up market prices for assets referenced by
// unification runs. Lookups are best effort: a failed lookup yields a quote
// with a null price so the caller can keep going without market data.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"opsunify/internal/config"
	"opsunify/internal/infrastructure"
	"opsunify/pkg/contracts/domain"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36"

// quoteResponse mirrors the quote endpoint payload. Only the fields the
// pipeline consumes are decoded.
type quoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol             string  `json:"symbol"`
			RegularMarketPrice float64 `json:"regularMarketPrice"`
			RegularMarketTime  int64   `json:"regularMarketTime"`
			Currency           string  `json:"currency"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"quoteResponse"`
}

// Client fetches market quotes with caching, rate limiting and a local
// exchange suffix fallback for symbols quoted on the home market.
type Client struct {
	httpClient  *http.Client
	endpoint    string
	localSuffix string
	maxBatch    int
	limiter     *rate.Limiter
	cache       QuoteCache
	logger      *slog.Logger
	metrics     *infrastructure.BusinessMetrics
	now         func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithCache replaces the default in-memory quote cache.
func WithCache(cache QuoteCache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithMetrics enables lookup and cache metrics recording.
func WithMetrics(m *infrastructure.BusinessMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a quote client from configuration.
func NewClient(cfg config.MarketDataConfig, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		endpoint:    cfg.Endpoint,
		localSuffix: cfg.LocalSuffix,
		maxBatch:    cfg.MaxBatchSize,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		cache:       NewMemoryCache(cfg.CacheTTL),
		logger:      logger.With(slog.String("component", "marketdata")),
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Lookup resolves one symbol to a quote. The symbol is tried as given first;
// when the quote endpoint knows nothing about it, the configured local
// exchange suffix is appended and the lookup retried. Failures other than
// context cancellation degrade to a quote with a null price.
func (c *Client) Lookup(ctx context.Context, symbol string) (domain.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return domain.Quote{}, fmt.Errorf("marketdata: empty symbol")
	}

	start := c.now()

	if cached, ok := c.cache.Get(symbol); ok {
		cached.FromCache = true
		infrastructure.RecordQuoteLookup(ctx, c.metrics, c.now().Sub(start), true, false, true)
		return cached, nil
	}

	quote, fallback, err := c.resolve(ctx, symbol)
	if err != nil {
		if ctx.Err() != nil {
			return domain.Quote{}, ctx.Err()
		}
		c.logger.WarnContext(ctx, "quote lookup failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()))
		infrastructure.RecordQuoteLookup(ctx, c.metrics, c.now().Sub(start), false, fallback, false)
		return domain.Quote{Symbol: symbol, AsOf: c.now()}, nil
	}

	c.cache.Set(symbol, quote)
	infrastructure.RecordQuoteLookup(ctx, c.metrics, c.now().Sub(start), false, fallback, true)
	return quote, nil
}

// resolve tries the symbol as given, then with the local suffix appended.
// The bool result reports whether the suffix fallback produced the quote.
func (c *Client) resolve(ctx context.Context, symbol string) (domain.Quote, bool, error) {
	quote, err := c.fetch(ctx, symbol)
	if err == nil {
		return quote, false, nil
	}

	if c.localSuffix == "" || strings.HasSuffix(symbol, strings.ToUpper(c.localSuffix)) {
		return domain.Quote{}, false, err
	}
	if ctx.Err() != nil {
		return domain.Quote{}, false, err
	}

	local := symbol + strings.ToUpper(c.localSuffix)
	localQuote, localErr := c.fetch(ctx, local)
	if localErr != nil {
		return domain.Quote{}, true, fmt.Errorf("%s: %w (fallback %s: %v)", symbol, err, local, localErr)
	}

	localQuote.Symbol = symbol
	return localQuote, true, nil
}

// fetch performs one rate-limited request against the quote endpoint.
func (c *Client) fetch(ctx context.Context, symbol string) (domain.Quote, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.Quote{}, err
	}

	reqURL := fmt.Sprintf("%s?symbols=%s", c.endpoint, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return domain.Quote{}, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("quote request for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Quote{}, fmt.Errorf("quote endpoint returned status %d for %s", resp.StatusCode, symbol)
	}

	var payload quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.Quote{}, fmt.Errorf("decode quote response for %s: %w", symbol, err)
	}

	if payload.QuoteResponse.Error != nil || len(payload.QuoteResponse.Result) == 0 {
		return domain.Quote{}, fmt.Errorf("no quote result for %s", symbol)
	}

	result := payload.QuoteResponse.Result[0]
	if result.RegularMarketPrice == 0 {
		return domain.Quote{}, fmt.Errorf("no market price for %s", symbol)
	}

	asOf := c.now()
	if result.RegularMarketTime > 0 {
		asOf = time.Unix(result.RegularMarketTime, 0).UTC()
	}

	return domain.Quote{
		Symbol:         symbol,
		ResolvedSymbol: result.Symbol,
		Price:          domain.NullFloatFrom(result.RegularMarketPrice),
		Currency:       result.Currency,
		AsOf:           asOf,
	}, nil
}

// lookupConcurrency bounds parallel lookups within one batch.
const lookupConcurrency = 4

// LookupBatch resolves a set of symbols concurrently, deduplicated and
// capped at the configured batch size. Results keep the first-appearance
// order of the input. Only context cancellation aborts the batch.
func (c *Client) LookupBatch(ctx context.Context, symbols []string) ([]domain.Quote, error) {
	unique := make([]string, 0, len(symbols))
	seen := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		unique = append(unique, s)
	}

	if c.maxBatch > 0 && len(unique) > c.maxBatch {
		unique = unique[:c.maxBatch]
	}

	quotes := make([]domain.Quote, len(unique))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupConcurrency)

	for i, symbol := range unique {
		g.Go(func() error {
			quote, err := c.Lookup(gctx, symbol)
			if err != nil {
				return err
			}
			quotes[i] = quote
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return quotes, nil
}
