package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// PositionRow is one line of the position report.
type PositionRow struct {
	Symbol               string
	Name                 string
	AssetClass           string
	Quantity             decimal.Decimal
	AvgPrice             decimal.Decimal
	CurrentPrice         decimal.Decimal
	MarketValue          decimal.Decimal
	UnrealizedPnL        decimal.Decimal
	UnrealizedPnLPercent decimal.Decimal
	RealizedPnL          decimal.Decimal
	Currency             string
}

// TradeRow is one line of the trade history report.
type TradeRow struct {
	ID          string
	Symbol      string
	Name        string
	AssetClass  string
	Side        string
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	Value       decimal.Decimal
	Fee         decimal.Decimal
	RealizedPnL decimal.Decimal
	Currency    string
	Timestamp   time.Time
}

// OrderRow is one line of the order report.
type OrderRow struct {
	ID          string
	Symbol      string
	Name        string
	AssetClass  string
	Side        string
	Type        string
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	Status      string
	FilledPrice decimal.Decimal
	Fee         decimal.Decimal
	Currency    string
	CreatedAt   time.Time
}

// PositionReport returns the open positions as display rows, sorted by
// symbol. Positions without a quote render with zero current price and
// unrealized P&L.
func (l *Ledger) PositionReport(prices map[string]Quote) []PositionRow {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rows := make([]PositionRow, 0, len(l.positions))
	for symbol, position := range l.positions {
		row := PositionRow{
			Symbol:      symbol,
			Name:        l.assetNameLocked(symbol),
			AssetClass:  string(position.AssetClass),
			Quantity:    position.Quantity,
			AvgPrice:    position.AvgPrice,
			RealizedPnL: position.RealizedPnL,
			Currency:    position.Currency,
		}
		if quote, ok := prices[symbol]; ok && quote.Price.IsPositive() {
			row.CurrentPrice = quote.Price
			row.MarketValue = position.Quantity.Mul(quote.Price)
			row.UnrealizedPnL = row.MarketValue.Sub(position.CostBasis)
			if position.CostBasis.IsPositive() {
				row.UnrealizedPnLPercent = row.UnrealizedPnL.Div(position.CostBasis).Mul(hundred)
			}
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Symbol < rows[j].Symbol })
	return rows
}

// TradeReport returns the trade history as display rows in execution
// order.
func (l *Ledger) TradeReport() []TradeRow {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rows := make([]TradeRow, 0, len(l.trades))
	for _, trade := range l.trades {
		rows = append(rows, TradeRow{
			ID:          trade.ID,
			Symbol:      trade.Symbol,
			Name:        l.assetNameLocked(trade.Symbol),
			AssetClass:  string(trade.AssetClass),
			Side:        string(trade.Side),
			Quantity:    trade.Quantity,
			Price:       trade.Price,
			Value:       trade.Value,
			Fee:         trade.Fee,
			RealizedPnL: trade.RealizedPnL,
			Currency:    trade.Currency,
			Timestamp:   trade.Timestamp,
		})
	}
	return rows
}

// OrderReport returns all orders as display rows in creation order.
func (l *Ledger) OrderReport() []OrderRow {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rows := make([]OrderRow, 0, len(l.orderIDs))
	for _, id := range l.orderIDs {
		order := l.orders[id]
		rows = append(rows, OrderRow{
			ID:          order.ID,
			Symbol:      order.Symbol,
			Name:        l.assetNameLocked(order.Symbol),
			AssetClass:  string(order.AssetClass),
			Side:        string(order.Side),
			Type:        string(order.Type),
			Quantity:    order.Quantity,
			Price:       order.Price,
			Status:      string(order.Status),
			FilledPrice: order.FilledPrice,
			Fee:         order.Fee,
			Currency:    order.Currency,
			CreatedAt:   order.CreatedAt,
		})
	}
	return rows
}

// assetNameLocked resolves a display name, falling back to the symbol.
func (l *Ledger) assetNameLocked(symbol string) string {
	if asset, ok := l.directory.Lookup(symbol); ok && asset.Name != "" {
		return asset.Name
	}
	return symbol
}
