package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfolio/papertrader/internal/assets"
	"github.com/openfolio/papertrader/internal/fx"
)

func TestTotalValueCashOnly(t *testing.T) {
	l := newTestLedger(t, "10000")
	assertDec(t, "10000", l.TotalValue(nil))
	assertDec(t, "0", l.MarketValue(nil))
	assertDec(t, "0", l.UnrealizedPnL(nil))
}

func TestTotalValueWithPositions(t *testing.T) {
	l := newTestLedger(t, "10000")
	buyAt(t, l, "BTC-USD", "0.1", "45000")

	prices := map[string]Quote{"BTC-USD": quote("50000")}

	assertDec(t, "10495.5", l.TotalValue(prices))
	assertDec(t, "5000", l.MarketValue(prices))
	assertDec(t, "500", l.UnrealizedPnL(prices))
}

func TestTotalValueMissingQuote(t *testing.T) {
	l := newTestLedger(t, "20000")
	buyAt(t, l, "BTC-USD", "0.1", "45000")
	buyAt(t, l, "AAPL", "10", "180")

	// AAPL has no quote: it contributes zero instead of failing the
	// whole valuation.
	prices := map[string]Quote{"BTC-USD": quote("45000")}

	cash := dec("20000").Sub(dec("4504.5")).Sub(dec("1801.8"))
	assertDec(t, cash.Add(dec("4500")).String(), l.TotalValue(prices))
	assertDec(t, "4500", l.MarketValue(prices))

	// An unusable quote counts as missing too.
	prices["AAPL"] = quote("0")
	assertDec(t, "4500", l.MarketValue(prices))

	assertDec(t, cash.String(), l.TotalValue(nil), "no quotes at all leaves just cash")
}

func TestTotalValueConvertsCurrencies(t *testing.T) {
	dir := assets.NewStaticDirectory([]assets.Asset{
		{Symbol: "SAP.DE", Name: "SAP SE", Class: assets.ClassStocks, Region: assets.RegionEurope, Currency: "EUR", Volatility: assets.VolatilityMedium},
	})
	rates := fx.NewStaticRates(map[string]decimal.Decimal{
		"EUR/USD": dec("1.25"),
	})

	l, err := New(Options{
		InitialBalance: dec("10000"),
		BaseCurrency:   "EUR",
		Directory:      dir,
		Rates:          rates,
		Clock:          testClock(),
	})
	require.NoError(t, err)

	buyAt(t, l, "SAP.DE", "10", "200")

	// Base is EUR, so the EUR position needs no conversion.
	prices := map[string]Quote{"SAP.DE": quote("210")}
	assertDec(t, "2100", l.MarketValue(prices))
	assertDec(t, "100", l.UnrealizedPnL(prices))
	assertDec(t, dec("7998").Add(dec("2100")).String(), l.TotalValue(prices))
}

func TestTotalValueUSDBaseWithEURPosition(t *testing.T) {
	dir := assets.NewStaticDirectory([]assets.Asset{
		{Symbol: "SAP.DE", Name: "SAP SE", Class: assets.ClassStocks, Region: assets.RegionEurope, Currency: "EUR", Volatility: assets.VolatilityMedium},
	})
	rates := fx.NewStaticRates(map[string]decimal.Decimal{
		"EUR/USD": dec("1.25"),
	})

	l, err := New(Options{
		InitialBalance: dec("10000"),
		BaseCurrency:   "USD",
		Directory:      dir,
		Rates:          rates,
		Clock:          testClock(),
	})
	require.NoError(t, err)

	snap := l.Snapshot()
	snap.CashBalances["EUR"] = dec("1000")
	snap.Positions = map[string]*Position{
		"SAP.DE": {
			Symbol: "SAP.DE", AssetClass: assets.ClassStocks, Currency: "EUR",
			Quantity: dec("10"), AvgPrice: dec("200"), CostBasis: dec("2000"),
			OpenedAt: snap.SavedAt, UpdatedAt: snap.SavedAt,
		},
	}
	require.NoError(t, l.Restore(snap))

	// 10000 USD + 1000 EUR * 1.25 + 10 * 210 EUR * 1.25.
	prices := map[string]Quote{"SAP.DE": quote("210")}
	assertDec(t, "13875", l.TotalValue(prices))
	assertDec(t, "2625", l.MarketValue(prices))
	assertDec(t, "125", l.UnrealizedPnL(prices), "100 EUR gain converted at 1.25")
}

func TestValuationParityFallback(t *testing.T) {
	// A rate source with no entry for the pair falls back to parity so
	// foreign balances never drop out of the total.
	l, err := New(Options{
		InitialBalance: dec("10000"),
		Rates:          fx.NewStaticRates(nil),
		Clock:          testClock(),
	})
	require.NoError(t, err)

	snap := l.Snapshot()
	snap.CashBalances["GBP"] = dec("500")
	require.NoError(t, l.Restore(snap))

	assertDec(t, "10500", l.TotalValue(nil))
	assert.False(t, l.TotalValue(nil).IsNegative())
}
