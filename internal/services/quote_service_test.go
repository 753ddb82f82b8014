package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsunify/internal/config"
)

// newQuoteEndpoint serves the given symbol prices in the quote endpoint's
// wire format. Unknown symbols get an empty result set.
func newQuoteEndpoint(t *testing.T, prices map[string]float64) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Query().Get("symbols")
		w.Header().Set("Content-Type", "application/json")

		price, ok := prices[symbol]
		if !ok {
			fmt.Fprint(w, `{"quoteResponse":{"result":[],"error":null}}`)
			return
		}

		fmt.Fprintf(w, `{"quoteResponse":{"result":[{"symbol":%q,"regularMarketPrice":%v,"regularMarketTime":1724500000,"currency":"BRL"}],"error":null}}`,
			symbol, price)
	}))
}

func quoteTestConfig(endpoint string) config.MarketDataConfig {
	return config.MarketDataConfig{
		Enabled:      true,
		Endpoint:     endpoint,
		Timeout:      5 * time.Second,
		CacheTTL:     time.Minute,
		RPS:          100,
		Burst:        10,
		LocalSuffix:  ".SA",
		MaxBatchSize: 3,
	}
}

func newTestQuoteService(t *testing.T, cfg config.MarketDataConfig) *QuoteService {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewQuoteService(cfg, logger)
}

func TestQuoteServiceLookup(t *testing.T) {
	server := newQuoteEndpoint(t, map[string]float64{"PETR4.SA": 38.52})
	defer server.Close()

	svc := newTestQuoteService(t, quoteTestConfig(server.URL))

	quote, err := svc.Lookup(context.Background(), "petr4")
	require.NoError(t, err)
	assert.Equal(t, "PETR4", quote.Symbol)
	assert.Equal(t, "PETR4.SA", quote.ResolvedSymbol)
	require.True(t, quote.Price.Valid)
	assert.InDelta(t, 38.52, quote.Price.Value, 0.001)
}

func TestQuoteServiceLookupMissIsNullPrice(t *testing.T) {
	server := newQuoteEndpoint(t, nil)
	defer server.Close()

	svc := newTestQuoteService(t, quoteTestConfig(server.URL))

	quote, err := svc.Lookup(context.Background(), "NADA11")
	require.NoError(t, err)
	assert.Equal(t, "NADA11", quote.Symbol)
	assert.False(t, quote.Price.Valid)
}

func TestQuoteServiceDisabled(t *testing.T) {
	cfg := quoteTestConfig("http://localhost:0")
	cfg.Enabled = false
	svc := newTestQuoteService(t, cfg)

	_, err := svc.Lookup(context.Background(), "PETR4")
	assert.ErrorIs(t, err, ErrQuotesDisabled)

	_, err = svc.LookupBatch(context.Background(), []string{"PETR4"})
	assert.ErrorIs(t, err, ErrQuotesDisabled)
}

func TestQuoteServiceEmptySymbol(t *testing.T) {
	server := newQuoteEndpoint(t, nil)
	defer server.Close()

	svc := newTestQuoteService(t, quoteTestConfig(server.URL))

	_, err := svc.Lookup(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrNoSymbols)

	_, err = svc.LookupBatch(context.Background(), []string{"", "  "})
	assert.ErrorIs(t, err, ErrNoSymbols)
}

func TestQuoteServiceBatch(t *testing.T) {
	server := newQuoteEndpoint(t, map[string]float64{
		"PETR4": 38.52,
		"VALE3": 61.10,
	})
	defer server.Close()

	svc := newTestQuoteService(t, quoteTestConfig(server.URL))

	quotes, err := svc.LookupBatch(context.Background(), []string{"PETR4", "VALE3", "NADA11"})
	require.NoError(t, err)
	require.Len(t, quotes, 3)

	assert.Equal(t, "PETR4", quotes[0].Symbol)
	assert.True(t, quotes[0].Price.Valid)
	assert.Equal(t, "VALE3", quotes[1].Symbol)
	assert.True(t, quotes[1].Price.Valid)
	assert.Equal(t, "NADA11", quotes[2].Symbol)
	assert.False(t, quotes[2].Price.Valid)
}

func TestQuoteServiceBatchTooLarge(t *testing.T) {
	server := newQuoteEndpoint(t, nil)
	defer server.Close()

	svc := newTestQuoteService(t, quoteTestConfig(server.URL))

	_, err := svc.LookupBatch(context.Background(), []string{"A", "B", "C", "D"})
	assert.ErrorIs(t, err, ErrBatchTooLarge)
}
