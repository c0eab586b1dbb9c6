package ledger

import (
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// TotalValue returns the portfolio value in the base currency: all cash
// balances converted plus the market value of every position that has a
// usable quote. Positions without a quote in the price map contribute
// zero; a sparse price map is never an error.
func (l *Ledger) TotalValue(prices map[string]Quote) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totalValueLocked(prices)
}

func (l *Ledger) totalValueLocked(prices map[string]Quote) decimal.Decimal {
	total := decimal.Zero
	for currency, balance := range l.cashBalances {
		total = total.Add(l.toBaseLocked(currency, balance))
	}
	for symbol, position := range l.positions {
		quote, ok := prices[symbol]
		if !ok || !quote.Price.IsPositive() {
			continue
		}
		marketValue := position.Quantity.Mul(quote.Price)
		total = total.Add(l.toBaseLocked(position.Currency, marketValue))
	}
	return total
}

// MarketValue returns the combined market value of all quoted positions
// in the base currency, excluding cash.
func (l *Ledger) MarketValue(prices map[string]Quote) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := decimal.Zero
	for symbol, position := range l.positions {
		quote, ok := prices[symbol]
		if !ok || !quote.Price.IsPositive() {
			continue
		}
		total = total.Add(l.toBaseLocked(position.Currency, position.Quantity.Mul(quote.Price)))
	}
	return total
}

// UnrealizedPnL returns the aggregate unrealized profit of all quoted
// positions in the base currency. Unquoted positions are excluded.
func (l *Ledger) UnrealizedPnL(prices map[string]Quote) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.unrealizedLocked(prices)
}

func (l *Ledger) unrealizedLocked(prices map[string]Quote) decimal.Decimal {
	total := decimal.Zero
	for symbol, position := range l.positions {
		quote, ok := prices[symbol]
		if !ok || !quote.Price.IsPositive() {
			continue
		}
		unrealized := position.Quantity.Mul(quote.Price).Sub(position.CostBasis)
		total = total.Add(l.toBaseLocked(position.Currency, unrealized))
	}
	return total
}

// toBaseLocked converts an amount into the base currency. A missing rate
// falls back to parity so valuation stays total.
func (l *Ledger) toBaseLocked(currency string, amount decimal.Decimal) decimal.Decimal {
	if currency == l.baseCurrency {
		return amount
	}
	rate, ok := l.rates.Rate(currency, l.baseCurrency)
	if !ok {
		log.Debug().
			Str("from", currency).
			Str("to", l.baseCurrency).
			Msg("No exchange rate available, assuming parity")
		return amount
	}
	return amount.Mul(rate)
}
