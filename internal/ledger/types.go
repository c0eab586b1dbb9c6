package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/openfolio/papertrader/internal/assets"
)

// OrderSide represents buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Valid reports whether s is a known order side.
func (s OrderSide) Valid() bool {
	return s == OrderSideBuy || s == OrderSideSell
}

// OrderType represents the order type. Limit and stop parameters are
// carried on the order; execution always fills at the caller-supplied
// price, so trigger evaluation is the driver's concern.
type OrderType string

const (
	OrderTypeMarket    OrderType = "market"
	OrderTypeLimit     OrderType = "limit"
	OrderTypeStop      OrderType = "stop"
	OrderTypeStopLimit OrderType = "stop_limit"
)

// Valid reports whether t is a known order type.
func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeMarket, OrderTypeLimit, OrderTypeStop, OrderTypeStopLimit:
		return true
	}
	return false
}

// OrderStatus represents the current state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRejected  OrderStatus = "rejected"

	// OrderStatusPartiallyFilled is accepted on snapshot restore for
	// compatibility but never produced: execution is full-or-reject.
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusFilled, OrderStatusCancelled,
		OrderStatusRejected, OrderStatusPartiallyFilled:
		return true
	}
	return false
}

// Terminal reports whether the status is final. Terminal orders never
// change again; re-executing one is a no-op.
func (s OrderStatus) Terminal() bool {
	return s != OrderStatusPending && s.Valid()
}

// Order represents a trading order. Orders are owned by the ledger;
// accessors hand out copies.
type Order struct {
	ID           string          `json:"id"`
	Symbol       string          `json:"symbol"`
	Side         OrderSide       `json:"side"`
	Type         OrderType       `json:"type"`
	Quantity     decimal.Decimal `json:"quantity"`
	Price        decimal.Decimal `json:"price"`      // limit price, zero for market orders
	StopPrice    decimal.Decimal `json:"stop_price"` // zero unless stop / stop_limit
	Status       OrderStatus     `json:"status"`
	AssetClass   assets.Class    `json:"asset_class"`
	Currency     string          `json:"currency"` // settlement currency
	CreatedAt    time.Time       `json:"created_at"`
	FilledAt     *time.Time      `json:"filled_at,omitempty"`
	FilledPrice  decimal.Decimal `json:"filled_price"`
	Fee          decimal.Decimal `json:"fee"`
	RejectReason string          `json:"reject_reason,omitempty"`
}

// Position represents an open holding. A position exists iff its quantity
// is strictly positive; selling a position down to zero removes it.
type Position struct {
	Symbol      string          `json:"symbol"`
	AssetClass  assets.Class    `json:"asset_class"`
	Currency    string          `json:"currency"`
	Quantity    decimal.Decimal `json:"quantity"`
	AvgPrice    decimal.Decimal `json:"avg_price"` // volume-weighted average entry
	CostBasis   decimal.Decimal `json:"cost_basis"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	OpenedAt    time.Time       `json:"opened_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Trade is the immutable record of a fill. Trades are append-only and
// never mutated after creation.
type Trade struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id"`
	Symbol      string          `json:"symbol"`
	AssetClass  assets.Class    `json:"asset_class"`
	Side        OrderSide       `json:"side"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Value       decimal.Decimal `json:"value"` // price * quantity, before fees
	Fee         decimal.Decimal `json:"fee"`
	Currency    string          `json:"currency"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"` // set on sells, zero on buys
	Timestamp   time.Time       `json:"timestamp"`
}

// Quote is a point-in-time market quote. Only Price participates in
// valuation; the remaining fields are carried for reporting.
type Quote struct {
	Price         decimal.Decimal `json:"price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Volume        decimal.Decimal `json:"volume"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	Open          decimal.Decimal `json:"open"`
	Timestamp     time.Time       `json:"timestamp"`
}

// OrderRequest describes a new order to be created.
type OrderRequest struct {
	Symbol    string          `json:"symbol"`
	Side      OrderSide       `json:"side"`
	Type      OrderType       `json:"type"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price,omitempty"`      // required for limit / stop_limit
	StopPrice decimal.Decimal `json:"stop_price,omitempty"` // required for stop / stop_limit
}
