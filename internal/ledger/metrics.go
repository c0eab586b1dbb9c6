package ledger

import (
	"math"

	"github.com/shopspring/decimal"
)

// PortfolioMetrics is the full portfolio report: valuation, P&L,
// allocation breakdowns, a volatility-tier risk proxy, and realized
// trade performance.
type PortfolioMetrics struct {
	TotalValue      decimal.Decimal            `json:"total_value"`
	CashBalances    map[string]decimal.Decimal `json:"cash_balances"`
	TotalPnL        decimal.Decimal            `json:"total_pnl"`
	TotalPnLPercent decimal.Decimal            `json:"total_pnl_percent"`
	RealizedPnL     decimal.Decimal            `json:"realized_pnl"`
	UnrealizedPnL   decimal.Decimal            `json:"unrealized_pnl"`
	PositionCount   int                        `json:"position_count"`
	TradeCount      int                        `json:"trade_count"`

	// Allocation percentages over priced positions, each map summing to
	// 100 whenever any position is priced.
	AllocationByClass  map[string]decimal.Decimal `json:"allocation_by_class"`
	AllocationByRegion map[string]decimal.Decimal `json:"allocation_by_region"`
	AllocationBySector map[string]decimal.Decimal `json:"allocation_by_sector"`

	Risk        RiskMetrics        `json:"risk"`
	Performance PerformanceMetrics `json:"performance"`
}

// RiskMetrics is a simplified risk proxy built from per-asset volatility
// tiers rather than return history.
type RiskMetrics struct {
	PortfolioVolatility float64 `json:"portfolio_volatility"`
	MaxDrawdownEstimate float64 `json:"max_drawdown_estimate"`
	ValueAtRisk95       float64 `json:"var_95"`
	ConcentrationRisk   float64 `json:"concentration_risk"`
}

// PerformanceMetrics summarizes closed-trade performance. Each sell is
// paired against the unweighted average price of the symbol's buys.
type PerformanceMetrics struct {
	TotalTrades    int             `json:"total_trades"` // paired sell trades
	WinningTrades  int             `json:"winning_trades"`
	WinRate        float64         `json:"win_rate"`         // 0..100
	AvgTradeReturn float64         `json:"avg_trade_return"` // percent
	TotalFees      decimal.Decimal `json:"total_fees"`
}

// Volatility assumed per directory tier. Assets without a directory
// entry or tier fall back to 0.25.
var tierVolatility = map[string]float64{
	"low":       0.15,
	"medium":    0.25,
	"high":      0.40,
	"very_high": 0.60,
}

const defaultVolatility = 0.25

var hundred = decimal.NewFromInt(100)

// Metrics computes the full portfolio report against a price map. Like
// valuation, it tolerates sparse prices: unquoted positions drop out of
// the allocation and risk views rather than causing errors.
func (l *Ledger) Metrics(prices map[string]Quote) PortfolioMetrics {
	l.mu.RLock()
	defer l.mu.RUnlock()

	totalValue := l.totalValueLocked(prices)
	totalPnL := totalValue.Sub(l.initialBalance)
	pnlPercent := decimal.Zero
	if l.initialBalance.IsPositive() {
		pnlPercent = totalPnL.Div(l.initialBalance).Mul(hundred)
	}

	realized := decimal.Zero
	for _, trade := range l.trades {
		realized = realized.Add(trade.RealizedPnL)
	}

	cash := make(map[string]decimal.Decimal, len(l.cashBalances))
	for currency, balance := range l.cashBalances {
		cash[currency] = balance
	}

	m := PortfolioMetrics{
		TotalValue:      totalValue,
		CashBalances:    cash,
		TotalPnL:        totalPnL,
		TotalPnLPercent: pnlPercent,
		RealizedPnL:     realized,
		UnrealizedPnL:   l.unrealizedLocked(prices),
		PositionCount:   len(l.positions),
		TradeCount:      len(l.trades),
	}

	m.AllocationByClass, m.AllocationByRegion, m.AllocationBySector = l.allocationsLocked(prices)
	m.Risk = l.riskLocked(prices, totalValue)
	m.Performance = l.performanceLocked()
	return m
}

// allocationsLocked buckets priced position market value by asset class,
// region, and sector, then renormalizes each map to percentages. Class
// comes from the position itself; region and sector come from the
// directory, with unknown buckets on a miss. The sector map covers only
// sectored assets.
func (l *Ledger) allocationsLocked(prices map[string]Quote) (byClass, byRegion, bySector map[string]decimal.Decimal) {
	byClass = make(map[string]decimal.Decimal)
	byRegion = make(map[string]decimal.Decimal)
	bySector = make(map[string]decimal.Decimal)

	for symbol, position := range l.positions {
		quote, ok := prices[symbol]
		if !ok || !quote.Price.IsPositive() {
			continue
		}
		marketValue := l.toBaseLocked(position.Currency, position.Quantity.Mul(quote.Price))

		byClass[string(position.AssetClass)] = byClass[string(position.AssetClass)].Add(marketValue)

		region := "unknown"
		sector := ""
		if asset, found := l.directory.Lookup(symbol); found {
			region = string(asset.Region)
			sector = string(asset.Sector)
		}
		byRegion[region] = byRegion[region].Add(marketValue)
		if sector != "" {
			bySector[sector] = bySector[sector].Add(marketValue)
		}
	}

	for _, allocation := range []map[string]decimal.Decimal{byClass, byRegion, bySector} {
		total := decimal.Zero
		for _, value := range allocation {
			total = total.Add(value)
		}
		if !total.IsPositive() {
			continue
		}
		for key, value := range allocation {
			allocation[key] = value.Div(total).Mul(hundred)
		}
	}
	return byClass, byRegion, bySector
}

// riskLocked computes the volatility-tier risk proxy. Weights are priced
// position market values over total portfolio value, cash included.
func (l *Ledger) riskLocked(prices map[string]Quote, totalValue decimal.Decimal) RiskMetrics {
	if len(l.positions) == 0 || !totalValue.IsPositive() {
		return RiskMetrics{}
	}

	var variance, maxWeight float64
	for symbol, position := range l.positions {
		quote, ok := prices[symbol]
		if !ok || !quote.Price.IsPositive() {
			continue
		}
		marketValue := l.toBaseLocked(position.Currency, position.Quantity.Mul(quote.Price))
		weight := marketValue.Div(totalValue).InexactFloat64()

		sigma := defaultVolatility
		if asset, found := l.directory.Lookup(symbol); found {
			if v, known := tierVolatility[string(asset.Volatility)]; known {
				sigma = v
			}
		}

		variance += weight * weight * sigma * sigma
		if weight > maxWeight {
			maxWeight = weight
		}
	}

	volatility := math.Sqrt(variance)
	return RiskMetrics{
		PortfolioVolatility: volatility,
		MaxDrawdownEstimate: volatility * 2.0,
		ValueAtRisk95:       volatility * 1.645,
		ConcentrationRisk:   maxWeight,
	}
}

// performanceLocked pairs sell trades against the unweighted average buy
// price of the same symbol. Sells with no buy history are unpaired and
// excluded, which keeps the win rate inside [0, 100].
func (l *Ledger) performanceLocked() PerformanceMetrics {
	perf := PerformanceMetrics{TotalFees: decimal.Zero}
	if len(l.trades) == 0 {
		return perf
	}

	buySum := make(map[string]decimal.Decimal)
	buyCount := make(map[string]int64)
	for _, trade := range l.trades {
		perf.TotalFees = perf.TotalFees.Add(trade.Fee)
		if trade.Side == OrderSideBuy {
			buySum[trade.Symbol] = buySum[trade.Symbol].Add(trade.Price)
			buyCount[trade.Symbol]++
		}
	}

	var returnSum float64
	for _, trade := range l.trades {
		if trade.Side != OrderSideSell {
			continue
		}
		count := buyCount[trade.Symbol]
		if count == 0 {
			continue
		}
		avgBuy := buySum[trade.Symbol].Div(decimal.NewFromInt(count))
		if !avgBuy.IsPositive() {
			continue
		}
		ret := trade.Price.Sub(avgBuy).Div(avgBuy).InexactFloat64()
		perf.TotalTrades++
		returnSum += ret
		if ret > 0 {
			perf.WinningTrades++
		}
	}

	if perf.TotalTrades > 0 {
		perf.WinRate = float64(perf.WinningTrades) / float64(perf.TotalTrades) * 100
		perf.AvgTradeReturn = returnSum / float64(perf.TotalTrades) * 100
	}
	return perf
}
