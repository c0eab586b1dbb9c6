// Package ledger implements the paper-trading portfolio ledger: order
// lifecycle, position tracking with volume-weighted average cost, trade
// history, cash accounting across currencies, valuation, portfolio
// metrics, and lossless snapshot persistence.
//
// The ledger is the single writer of its own state. Execution runs under
// a write lock and is full-or-reject: an order either fills completely at
// the supplied price or transitions to rejected with no state change.
package ledger

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/openfolio/papertrader/internal/assets"
	"github.com/openfolio/papertrader/internal/fx"
	"github.com/openfolio/papertrader/internal/metrics"
)

// Options configures a new ledger. Zero-value collaborators fall back to
// defaults: the built-in asset catalog, default fee tiers, 1:1 exchange
// rates, no event publishing, and the system clock.
type Options struct {
	InitialBalance decimal.Decimal
	BaseCurrency   string
	Fees           *FeeSchedule
	Directory      assets.Directory
	Rates          fx.RateSource
	Publisher      Publisher
	Clock          func() time.Time
}

// Ledger tracks one paper-trading portfolio.
type Ledger struct {
	mu sync.RWMutex

	initialBalance decimal.Decimal
	baseCurrency   string
	cashBalances   map[string]decimal.Decimal
	positions      map[string]*Position
	orders         map[string]*Order
	orderIDs       []string // creation order
	trades         []*Trade
	orderCounter   int64
	tradeCounter   int64

	fees      *FeeSchedule
	directory assets.Directory
	rates     fx.RateSource
	publisher Publisher
	now       func() time.Time
}

// New creates a ledger funded with the initial balance in the base
// currency. The initial balance must be strictly positive.
func New(opts Options) (*Ledger, error) {
	if !opts.InitialBalance.IsPositive() {
		return nil, fmt.Errorf("initial balance must be positive, got %s", opts.InitialBalance)
	}
	if opts.BaseCurrency == "" {
		opts.BaseCurrency = "USD"
	}
	if opts.Fees == nil {
		opts.Fees = DefaultFeeSchedule()
	}
	if opts.Directory == nil {
		opts.Directory = assets.DefaultDirectory()
	}
	if opts.Rates == nil {
		opts.Rates = fx.Parity{}
	}
	if opts.Publisher == nil {
		opts.Publisher = NopPublisher{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	l := &Ledger{
		initialBalance: opts.InitialBalance,
		baseCurrency:   opts.BaseCurrency,
		cashBalances:   map[string]decimal.Decimal{opts.BaseCurrency: opts.InitialBalance},
		positions:      make(map[string]*Position),
		orders:         make(map[string]*Order),
		fees:           opts.Fees,
		directory:      opts.Directory,
		rates:          opts.Rates,
		publisher:      opts.Publisher,
		now:            opts.Clock,
	}

	log.Info().
		Str("initial_balance", opts.InitialBalance.String()).
		Str("base_currency", opts.BaseCurrency).
		Msg("Ledger created")

	return l, nil
}

// validateRequest checks an order request before anything is recorded.
func validateRequest(req OrderRequest) error {
	if strings.TrimSpace(req.Symbol) == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidOrder)
	}
	if !req.Side.Valid() {
		return fmt.Errorf("%w: invalid side %q", ErrInvalidOrder, req.Side)
	}
	if !req.Type.Valid() {
		return fmt.Errorf("%w: invalid type %q", ErrInvalidOrder, req.Type)
	}
	if !req.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive, got %s", ErrInvalidOrder, req.Quantity)
	}
	if (req.Type == OrderTypeLimit || req.Type == OrderTypeStopLimit) && !req.Price.IsPositive() {
		return fmt.Errorf("%w: %s order requires a positive limit price", ErrInvalidOrder, req.Type)
	}
	if (req.Type == OrderTypeStop || req.Type == OrderTypeStopLimit) && !req.StopPrice.IsPositive() {
		return fmt.Errorf("%w: %s order requires a positive stop price", ErrInvalidOrder, req.Type)
	}
	return nil
}

// CreateOrder validates and records a new pending order. No funds or
// inventory are reserved; all checks happen at execution time. A symbol
// the asset directory does not know is recorded with the unknown asset
// class and settles in the base currency.
func (l *Ledger) CreateOrder(req OrderRequest) (*Order, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))

	l.mu.Lock()
	assetClass := assets.ClassUnknown
	currency := l.baseCurrency
	if asset, ok := l.directory.Lookup(symbol); ok {
		assetClass = asset.Class
		currency = asset.Currency
	}

	l.orderCounter++
	order := &Order{
		ID:         fmt.Sprintf("order_%d", l.orderCounter),
		Symbol:     symbol,
		Side:       req.Side,
		Type:       req.Type,
		Quantity:   req.Quantity,
		Price:      req.Price,
		StopPrice:  req.StopPrice,
		Status:     OrderStatusPending,
		AssetClass: assetClass,
		Currency:   currency,
		CreatedAt:  l.now(),
	}
	l.orders[order.ID] = order
	l.orderIDs = append(l.orderIDs, order.ID)
	ev := l.eventLocked(EventOrderCreated, order, nil, "")
	l.mu.Unlock()

	metrics.OrdersCreated.Inc()
	log.Info().
		Str("order_id", order.ID).
		Str("symbol", symbol).
		Str("side", string(req.Side)).
		Str("type", string(req.Type)).
		Str("quantity", req.Quantity.String()).
		Str("asset_class", string(assetClass)).
		Msg("Order created")

	l.publish(ev)

	cp := *order
	return &cp, nil
}

// ExecuteOrder fills a pending order completely at the given price, or
// rejects it. It returns true only on a fill. Executing a terminal order
// is an idempotent no-op returning false. The whole check-and-mutate
// sequence runs under the write lock.
func (l *Ledger) ExecuteOrder(id string, price decimal.Decimal) bool {
	l.mu.Lock()

	order, ok := l.orders[id]
	if !ok {
		l.mu.Unlock()
		log.Warn().Str("order_id", id).Msg("Cannot execute unknown order")
		return false
	}
	if order.Status != OrderStatusPending {
		status := order.Status
		l.mu.Unlock()
		log.Debug().Str("order_id", id).Str("status", string(status)).
			Msg("Order already terminal, execution is a no-op")
		return false
	}
	if !price.IsPositive() {
		ev := l.rejectLocked(order, "invalid execution price")
		l.mu.Unlock()
		l.publish(ev)
		return false
	}

	cost := price.Mul(order.Quantity)
	fee := l.fees.Fee(order.AssetClass, cost)

	var trade *Trade
	switch order.Side {
	case OrderSideBuy:
		required := cost.Add(fee)
		cash := l.cashBalances[order.Currency]
		if cash.LessThan(required) {
			ev := l.rejectLocked(order, "insufficient funds")
			l.mu.Unlock()
			l.publish(ev)
			return false
		}
		l.cashBalances[order.Currency] = cash.Sub(required)
		l.applyBuyLocked(order, price, cost)
		trade = l.fillLocked(order, price, cost, fee, decimal.Zero)

	case OrderSideSell:
		position, held := l.positions[order.Symbol]
		if !held || position.Quantity.LessThan(order.Quantity) {
			ev := l.rejectLocked(order, "insufficient position")
			l.mu.Unlock()
			l.publish(ev)
			return false
		}
		netProceeds := cost.Sub(fee)
		l.cashBalances[order.Currency] = l.cashBalances[order.Currency].Add(netProceeds)

		// Draw cost basis out proportionally to the quantity sold.
		basisOut := position.CostBasis.Mul(order.Quantity).Div(position.Quantity)
		realized := netProceeds.Sub(basisOut)

		position.Quantity = position.Quantity.Sub(order.Quantity)
		position.CostBasis = position.CostBasis.Sub(basisOut)
		position.RealizedPnL = position.RealizedPnL.Add(realized)
		position.UpdatedAt = l.now()
		if position.Quantity.IsZero() {
			delete(l.positions, order.Symbol)
		}
		trade = l.fillLocked(order, price, cost, fee, realized)
	}

	ev := l.eventLocked(EventOrderFilled, order, trade, "")
	l.mu.Unlock()
	l.publish(ev)
	return true
}

// applyBuyLocked opens or extends the position for a filled buy.
func (l *Ledger) applyBuyLocked(order *Order, price, cost decimal.Decimal) {
	position, held := l.positions[order.Symbol]
	if !held {
		now := l.now()
		l.positions[order.Symbol] = &Position{
			Symbol:     order.Symbol,
			AssetClass: order.AssetClass,
			Currency:   order.Currency,
			Quantity:   order.Quantity,
			AvgPrice:   price,
			CostBasis:  cost,
			OpenedAt:   now,
			UpdatedAt:  now,
		}
		return
	}

	totalQuantity := position.Quantity.Add(order.Quantity)
	totalBasis := position.CostBasis.Add(cost)
	position.AvgPrice = totalBasis.Div(totalQuantity)
	position.Quantity = totalQuantity
	position.CostBasis = totalBasis
	position.UpdatedAt = l.now()
}

// fillLocked transitions the order to filled and appends the trade record.
func (l *Ledger) fillLocked(order *Order, price, value, fee, realized decimal.Decimal) *Trade {
	now := l.now()
	order.Status = OrderStatusFilled
	order.FilledPrice = price
	order.Fee = fee
	order.FilledAt = &now

	l.tradeCounter++
	trade := &Trade{
		ID:          fmt.Sprintf("trade_%d", l.tradeCounter),
		OrderID:     order.ID,
		Symbol:      order.Symbol,
		AssetClass:  order.AssetClass,
		Side:        order.Side,
		Quantity:    order.Quantity,
		Price:       price,
		Value:       value,
		Fee:         fee,
		Currency:    order.Currency,
		RealizedPnL: realized,
		Timestamp:   now,
	}
	l.trades = append(l.trades, trade)

	metrics.OrdersExecuted.WithLabelValues("filled").Inc()
	metrics.TradesExecuted.WithLabelValues(string(order.Side)).Inc()
	metrics.FeesPaid.Add(fee.InexactFloat64())
	if !realized.IsZero() {
		metrics.RealizedPnL.Add(realized.InexactFloat64())
	}

	log.Info().
		Str("order_id", order.ID).
		Str("trade_id", trade.ID).
		Str("symbol", order.Symbol).
		Str("side", string(order.Side)).
		Str("quantity", order.Quantity.String()).
		Str("price", price.String()).
		Str("fee", fee.String()).
		Str("realized_pnl", realized.String()).
		Msg("Order filled")

	return trade
}

// rejectLocked transitions the order to rejected without touching
// balances or positions.
func (l *Ledger) rejectLocked(order *Order, reason string) Event {
	order.Status = OrderStatusRejected
	order.RejectReason = reason

	metrics.OrdersExecuted.WithLabelValues("rejected").Inc()
	log.Warn().
		Str("order_id", order.ID).
		Str("symbol", order.Symbol).
		Str("side", string(order.Side)).
		Str("reason", reason).
		Msg("Order rejected")

	return l.eventLocked(EventOrderRejected, order, nil, reason)
}

// CancelOrder cancels a pending order. Terminal orders and unknown ids
// return false without any state change.
func (l *Ledger) CancelOrder(id string) bool {
	l.mu.Lock()
	order, ok := l.orders[id]
	if !ok || order.Status != OrderStatusPending {
		l.mu.Unlock()
		log.Debug().Str("order_id", id).Msg("Cancel is a no-op")
		return false
	}
	order.Status = OrderStatusCancelled
	ev := l.eventLocked(EventOrderCancelled, order, nil, "")
	l.mu.Unlock()

	metrics.OrdersCancelled.Inc()
	log.Info().Str("order_id", id).Msg("Order cancelled")
	l.publish(ev)
	return true
}

// eventLocked builds an event with copies of the payload objects.
func (l *Ledger) eventLocked(t EventType, order *Order, trade *Trade, reason string) Event {
	ev := Event{Type: t, Timestamp: l.now(), Reason: reason}
	if order != nil {
		cp := *order
		ev.Order = &cp
	}
	if trade != nil {
		cp := *trade
		ev.Trade = &cp
	}
	return ev
}

// publish sends an event outside the critical section. Publish failures
// are logged and never affect ledger state.
func (l *Ledger) publish(ev Event) {
	if err := l.publisher.Publish(ev); err != nil {
		log.Error().Err(err).Str("event", string(ev.Type)).Msg("Failed to publish ledger event")
	}
}

// Order returns a copy of the order with the given id.
func (l *Ledger) Order(id string) (Order, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	order, ok := l.orders[id]
	if !ok {
		return Order{}, false
	}
	return *order, true
}

// Orders returns copies of all orders in creation order.
func (l *Ledger) Orders() []Order {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Order, 0, len(l.orderIDs))
	for _, id := range l.orderIDs {
		out = append(out, *l.orders[id])
	}
	return out
}

// OpenOrders returns copies of all pending orders in creation order.
func (l *Ledger) OpenOrders() []Order {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Order
	for _, id := range l.orderIDs {
		if order := l.orders[id]; order.Status == OrderStatusPending {
			out = append(out, *order)
		}
	}
	return out
}

// Position returns a copy of the open position for a symbol.
func (l *Ledger) Position(symbol string) (Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	position, ok := l.positions[strings.ToUpper(symbol)]
	if !ok {
		return Position{}, false
	}
	return *position, true
}

// Positions returns copies of all open positions sorted by symbol.
func (l *Ledger) Positions() []Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Position, 0, len(l.positions))
	for _, position := range l.positions {
		out = append(out, *position)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Trades returns copies of all trades in execution order.
func (l *Ledger) Trades() []Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Trade, 0, len(l.trades))
	for _, trade := range l.trades {
		out = append(out, *trade)
	}
	return out
}

// CashBalance returns the balance held in one currency. Currencies never
// traded report zero.
func (l *Ledger) CashBalance(currency string) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cashBalances[currency]
}

// CashBalances returns a copy of all cash balances by currency.
func (l *Ledger) CashBalances() map[string]decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]decimal.Decimal, len(l.cashBalances))
	for currency, balance := range l.cashBalances {
		out[currency] = balance
	}
	return out
}

// BaseCurrency returns the ledger's base currency.
func (l *Ledger) BaseCurrency() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.baseCurrency
}

// InitialBalance returns the funding amount the ledger started with.
func (l *Ledger) InitialBalance() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.initialBalance
}
