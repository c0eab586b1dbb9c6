// Package oracle resolves market quotes for portfolio valuation. The
// Binance-backed oracle serves crypto pairs, Static serves a fixed
// quote table for demos and tests, and Cached wraps either with a
// Redis quote cache.
package oracle

import (
	"context"
	"strings"
	"sync"

	"github.com/openfolio/papertrader/internal/ledger"
)

// PriceOracle returns current quotes for a set of symbols, keyed by the
// normalized (uppercase) symbol. Symbols the oracle cannot price are
// absent from the result; callers treat an absent quote as "contributes
// zero", so only transport failures return an error.
type PriceOracle interface {
	Prices(ctx context.Context, symbols []string) (map[string]ledger.Quote, error)
}

// Static serves quotes from a fixed in-memory table.
type Static struct {
	mu     sync.RWMutex
	quotes map[string]ledger.Quote
}

// NewStatic builds a static oracle from a symbol-to-quote table.
func NewStatic(quotes map[string]ledger.Quote) *Static {
	table := make(map[string]ledger.Quote, len(quotes))
	for symbol, quote := range quotes {
		table[strings.ToUpper(symbol)] = quote
	}
	return &Static{quotes: table}
}

// Prices returns the table entries for the requested symbols.
func (s *Static) Prices(_ context.Context, symbols []string) (map[string]ledger.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]ledger.Quote, len(symbols))
	for _, symbol := range symbols {
		symbol = strings.ToUpper(symbol)
		if quote, ok := s.quotes[symbol]; ok {
			out[symbol] = quote
		}
	}
	return out, nil
}

// Set adds or replaces a quote.
func (s *Static) Set(symbol string, quote ledger.Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[strings.ToUpper(symbol)] = quote
}

// Remove drops a symbol from the table.
func (s *Static) Remove(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.quotes, strings.ToUpper(symbol))
}
