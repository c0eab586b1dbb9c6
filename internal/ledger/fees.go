package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/openfolio/papertrader/internal/assets"
)

// FeeSchedule maps asset classes to commission rates. Rates are fractions
// of notional value (0.001 = 0.1%). Classes without an explicit rate use
// the default rate, as do unknown symbols.
type FeeSchedule struct {
	rates       map[assets.Class]decimal.Decimal
	defaultRate decimal.Decimal
}

// NewFeeSchedule builds a schedule from explicit per-class rates and a
// default for everything else.
func NewFeeSchedule(rates map[assets.Class]decimal.Decimal, defaultRate decimal.Decimal) *FeeSchedule {
	m := make(map[assets.Class]decimal.Decimal, len(rates))
	for class, rate := range rates {
		m[class] = rate
	}
	return &FeeSchedule{rates: m, defaultRate: defaultRate}
}

// DefaultFeeSchedule returns the standard commission tiers: 0.1% for
// stocks, commodities, crypto, and REITs; 0.05% for bonds and ETFs;
// 0.01% for forex and indices; 0.1% otherwise.
func DefaultFeeSchedule() *FeeSchedule {
	pct := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }
	return NewFeeSchedule(map[assets.Class]decimal.Decimal{
		assets.ClassStocks:      pct("0.001"),
		assets.ClassBonds:       pct("0.0005"),
		assets.ClassCommodities: pct("0.001"),
		assets.ClassForex:       pct("0.0001"),
		assets.ClassCrypto:      pct("0.001"),
		assets.ClassREITs:       pct("0.001"),
		assets.ClassETFs:        pct("0.0005"),
		assets.ClassIndices:     pct("0.0001"),
	}, pct("0.001"))
}

// Rate returns the commission rate for an asset class.
func (s *FeeSchedule) Rate(class assets.Class) decimal.Decimal {
	if rate, ok := s.rates[class]; ok {
		return rate
	}
	return s.defaultRate
}

// Fee returns the commission charged on a notional amount.
func (s *FeeSchedule) Fee(class assets.Class, notional decimal.Decimal) decimal.Decimal {
	return notional.Mul(s.Rate(class))
}
