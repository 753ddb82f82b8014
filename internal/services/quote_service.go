package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"opsunify/internal/config"
	"opsunify/internal/marketdata"
	"opsunify/pkg/contracts/domain"
)

// QuoteService serves best-effort market quotes for the HTTP surface. It
// enforces the request limits and delegates resolution, caching and the
// local-suffix fallback to the market data client.
type QuoteService struct {
	client   *marketdata.Client
	logger   *slog.Logger
	enabled  bool
	maxBatch int
}

// NewQuoteService creates the quote lookup service. When cfg.Enabled is
// false, every lookup returns ErrQuotesDisabled.
func NewQuoteService(cfg config.MarketDataConfig, logger *slog.Logger, opts ...marketdata.Option) *QuoteService {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuoteService{
		client:   marketdata.NewClient(cfg, logger, opts...),
		logger:   logger.With(slog.String("service", "quotes")),
		enabled:  cfg.Enabled,
		maxBatch: cfg.MaxBatchSize,
	}
}

// Lookup resolves one symbol. A lookup miss comes back as a quote with a
// null price, not an error.
func (s *QuoteService) Lookup(ctx context.Context, symbol string) (domain.Quote, error) {
	if !s.enabled {
		return domain.Quote{}, ErrQuotesDisabled
	}
	if strings.TrimSpace(symbol) == "" {
		return domain.Quote{}, ErrNoSymbols
	}
	return s.client.Lookup(ctx, symbol)
}

// LookupBatch resolves a set of symbols, best effort. Requests over the
// configured batch limit are rejected rather than silently truncated.
func (s *QuoteService) LookupBatch(ctx context.Context, symbols []string) ([]domain.Quote, error) {
	if !s.enabled {
		return nil, ErrQuotesDisabled
	}

	cleaned := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		if symbol = strings.TrimSpace(symbol); symbol != "" {
			cleaned = append(cleaned, symbol)
		}
	}
	if len(cleaned) == 0 {
		return nil, ErrNoSymbols
	}
	if s.maxBatch > 0 && len(cleaned) > s.maxBatch {
		return nil, fmt.Errorf("%w: %d symbols, limit is %d", ErrBatchTooLarge, len(cleaned), s.maxBatch)
	}

	return s.client.LookupBatch(ctx, cleaned)
}
