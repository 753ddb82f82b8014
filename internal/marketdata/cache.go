package marketdata

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"opsunify/pkg/contracts/domain"
)

// QuoteCache stores resolved quotes for reuse between lookups. Implementations
// must be safe for concurrent use.
type QuoteCache interface {
	Get(symbol string) (domain.Quote, bool)
	Set(symbol string, quote domain.Quote)
}

// memoryCache is the default QuoteCache backed by an expiring in-memory store.
type memoryCache struct {
	store *gocache.Cache
}

// NewMemoryCache creates a QuoteCache whose entries expire after ttl.
func NewMemoryCache(ttl time.Duration) QuoteCache {
	return &memoryCache{
		store: gocache.New(ttl, 2*ttl),
	}
}

func (c *memoryCache) Get(symbol string) (domain.Quote, bool) {
	v, ok := c.store.Get(symbol)
	if !ok {
		return domain.Quote{}, false
	}
	q, ok := v.(domain.Quote)
	return q, ok
}

func (c *memoryCache) Set(symbol string, quote domain.Quote) {
	c.store.Set(symbol, quote, gocache.DefaultExpiration)
}
