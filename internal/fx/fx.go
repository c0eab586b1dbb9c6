// Package fx provides the exchange-rate collaborator used when valuing
// cash and positions held in currencies other than the ledger's base.
// The shipped implementations are deliberately simple: parity for demo
// sessions and a static table for tests. Live rate feeds plug in behind
// the same interface.
package fx

import "github.com/shopspring/decimal"

// RateSource converts between currencies.
type RateSource interface {
	// Rate returns the multiplier converting one unit of from into to.
	// The second return is false when the source has no rate for the pair.
	Rate(from, to string) (decimal.Decimal, bool)
}

var one = decimal.NewFromInt(1)

// Parity treats every currency pair as 1:1. It is a placeholder, not a
// statement about real exchange rates.
type Parity struct{}

// Rate always returns 1.
func (Parity) Rate(from, to string) (decimal.Decimal, bool) {
	return one, true
}

// StaticRates is a fixed conversion table. Pairs are stored directed;
// the inverse of a known pair is derived automatically.
type StaticRates struct {
	rates map[string]decimal.Decimal
}

// NewStaticRates builds a table from "FROM/TO" keyed rates.
func NewStaticRates(rates map[string]decimal.Decimal) *StaticRates {
	m := make(map[string]decimal.Decimal, len(rates))
	for pair, rate := range rates {
		m[pair] = rate
	}
	return &StaticRates{rates: m}
}

// Rate returns the table rate for the pair, the reciprocal of the reverse
// pair, or 1 for equal currencies. Unknown pairs return false.
func (s *StaticRates) Rate(from, to string) (decimal.Decimal, bool) {
	if from == to {
		return one, true
	}
	if r, ok := s.rates[from+"/"+to]; ok {
		return r, true
	}
	if r, ok := s.rates[to+"/"+from]; ok && !r.IsZero() {
		return one.Div(r), true
	}
	return decimal.Zero, false
}
