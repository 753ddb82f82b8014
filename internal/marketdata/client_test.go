package marketdata

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsunify/internal/config"
	"opsunify/pkg/contracts/domain"
)

// quoteFixture is the price table served by the fake quote endpoint.
type quoteFixture map[string]struct {
	price    float64
	currency string
}

func newQuoteServer(t *testing.T, fixture quoteFixture, hits *int64) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt64(hits, 1)
		}

		symbol := r.URL.Query().Get("symbols")
		w.Header().Set("Content-Type", "application/json")

		entry, ok := fixture[symbol]
		if !ok {
			fmt.Fprint(w, `{"quoteResponse":{"result":[],"error":null}}`)
			return
		}

		fmt.Fprintf(w, `{"quoteResponse":{"result":[{"symbol":%q,"regularMarketPrice":%v,"regularMarketTime":1724500000,"currency":%q}],"error":null}}`,
			symbol, entry.price, entry.currency)
	}))
}

func newTestClient(t *testing.T, serverURL string, opts ...Option) *Client {
	t.Helper()

	cfg := config.MarketDataConfig{
		Enabled:      true,
		Endpoint:     serverURL,
		Timeout:      5 * time.Second,
		CacheTTL:     time.Minute,
		RPS:          100,
		Burst:        10,
		LocalSuffix:  ".SA",
		MaxBatchSize: 10,
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(cfg, logger, opts...)
}

func TestClientLookup(t *testing.T) {
	server := newQuoteServer(t, quoteFixture{
		"PETR4": {price: 38.52, currency: "BRL"},
	}, nil)
	defer server.Close()

	client := newTestClient(t, server.URL)

	quote, err := client.Lookup(context.Background(), "petr4")
	require.NoError(t, err)

	assert.Equal(t, "PETR4", quote.Symbol)
	assert.Equal(t, "PETR4", quote.ResolvedSymbol)
	assert.True(t, quote.Price.Valid)
	assert.Equal(t, 38.52, quote.Price.Value)
	assert.Equal(t, "BRL", quote.Currency)
	assert.False(t, quote.FromCache)
	assert.False(t, quote.AsOf.IsZero())
}

func TestClientLookupLocalSuffixFallback(t *testing.T) {
	server := newQuoteServer(t, quoteFixture{
		"VALE3.SA": {price: 61.10, currency: "BRL"},
	}, nil)
	defer server.Close()

	client := newTestClient(t, server.URL)

	quote, err := client.Lookup(context.Background(), "VALE3")
	require.NoError(t, err)

	assert.Equal(t, "VALE3", quote.Symbol, "requested symbol is preserved")
	assert.Equal(t, "VALE3.SA", quote.ResolvedSymbol)
	assert.True(t, quote.Price.Valid)
	assert.Equal(t, 61.10, quote.Price.Value)
}

func TestClientLookupDegradesToNullPrice(t *testing.T) {
	server := newQuoteServer(t, quoteFixture{}, nil)
	defer server.Close()

	client := newTestClient(t, server.URL)

	quote, err := client.Lookup(context.Background(), "NADA9")
	require.NoError(t, err, "lookup failures must not surface as errors")

	assert.Equal(t, "NADA9", quote.Symbol)
	assert.False(t, quote.Price.Valid)
	assert.Empty(t, quote.Currency)
}

func TestClientLookupServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	quote, err := client.Lookup(context.Background(), "PETR4")
	require.NoError(t, err)
	assert.False(t, quote.Price.Valid)
}

func TestClientLookupUsesCache(t *testing.T) {
	var hits int64
	server := newQuoteServer(t, quoteFixture{
		"ITUB4": {price: 33.40, currency: "BRL"},
	}, &hits)
	defer server.Close()

	client := newTestClient(t, server.URL)

	first, err := client.Lookup(context.Background(), "ITUB4")
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := client.Lookup(context.Background(), "ITUB4")
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Price, second.Price)

	assert.Equal(t, int64(1), atomic.LoadInt64(&hits), "second lookup must be served from cache")
}

// staticCache is a QuoteCache stub for verifying cache injection.
type staticCache struct {
	mu      sync.Mutex
	entries map[string]domain.Quote
	sets    int
}

func (c *staticCache) Get(symbol string) (domain.Quote, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.entries[symbol]
	return q, ok
}

func (c *staticCache) Set(symbol string, quote domain.Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[symbol] = quote
	c.sets++
}

func TestClientLookupInjectedCache(t *testing.T) {
	var hits int64
	server := newQuoteServer(t, quoteFixture{}, &hits)
	defer server.Close()

	seeded := &staticCache{entries: map[string]domain.Quote{
		"BBDC4": {
			Symbol:   "BBDC4",
			Price:    domain.NullFloatFrom(14.25),
			Currency: "BRL",
			AsOf:     time.Now(),
		},
	}}

	client := newTestClient(t, server.URL, WithCache(seeded))

	quote, err := client.Lookup(context.Background(), "BBDC4")
	require.NoError(t, err)

	assert.True(t, quote.FromCache)
	assert.Equal(t, 14.25, quote.Price.Value)
	assert.Equal(t, int64(0), atomic.LoadInt64(&hits), "endpoint must not be called on cache hit")
}

func TestClientLookupContextCancelled(t *testing.T) {
	server := newQuoteServer(t, quoteFixture{
		"PETR4": {price: 38.52, currency: "BRL"},
	}, nil)
	defer server.Close()

	client := newTestClient(t, server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Lookup(ctx, "PETR4")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClientLookupEmptySymbol(t *testing.T) {
	server := newQuoteServer(t, quoteFixture{}, nil)
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.Lookup(context.Background(), "   ")
	require.Error(t, err)
}

func TestLookupBatch(t *testing.T) {
	server := newQuoteServer(t, quoteFixture{
		"PETR4": {price: 38.52, currency: "BRL"},
		"VALE3": {price: 61.10, currency: "BRL"},
	}, nil)
	defer server.Close()

	client := newTestClient(t, server.URL)

	quotes, err := client.LookupBatch(context.Background(), []string{"petr4", "SEM1", "VALE3", "PETR4"})
	require.NoError(t, err)

	require.Len(t, quotes, 3, "duplicates are collapsed")
	assert.Equal(t, "PETR4", quotes[0].Symbol)
	assert.Equal(t, "SEM1", quotes[1].Symbol)
	assert.Equal(t, "VALE3", quotes[2].Symbol)

	assert.True(t, quotes[0].Price.Valid)
	assert.False(t, quotes[1].Price.Valid, "unknown symbol degrades to null price")
	assert.True(t, quotes[2].Price.Valid)
}

func TestLookupBatchCapsAtMaxBatchSize(t *testing.T) {
	server := newQuoteServer(t, quoteFixture{}, nil)
	defer server.Close()

	cfg := config.MarketDataConfig{
		Enabled:      true,
		Endpoint:     server.URL,
		Timeout:      5 * time.Second,
		CacheTTL:     time.Minute,
		RPS:          100,
		Burst:        10,
		LocalSuffix:  ".SA",
		MaxBatchSize: 2,
	}
	client := NewClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	quotes, err := client.LookupBatch(context.Background(), []string{"A1", "B2", "C3", "D4"})
	require.NoError(t, err)
	assert.Len(t, quotes, 2)
}

func TestMemoryCacheExpiry(t *testing.T) {
	cache := NewMemoryCache(20 * time.Millisecond)

	cache.Set("PETR4", domain.Quote{Symbol: "PETR4", Price: domain.NullFloatFrom(10)})

	got, ok := cache.Get("PETR4")
	require.True(t, ok)
	assert.Equal(t, 10.0, got.Price.Value)

	time.Sleep(40 * time.Millisecond)

	_, ok = cache.Get("PETR4")
	assert.False(t, ok, "entry must expire after the TTL")
}
