package domain

import "time"

// Quote is one best-effort market price lookup result. Price is null when
// every fallback symbol failed; the pipeline treats that as "no price", not
// as an error.
type Quote struct {
	Symbol         string    `json:"symbol"`
	ResolvedSymbol string    `json:"resolved_symbol,omitempty"`
	Price          NullFloat `json:"price"`
	Currency       string    `json:"currency,omitempty"`
	AsOf           time.Time `json:"as_of"`
	FromCache      bool      `json:"from_cache"`
}
