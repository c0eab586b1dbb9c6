// Package metrics provides Prometheus instrumentation for the ledger:
// order and trade counters, portfolio gauges, and an HTTP exposition
// server. Label values are drawn from small fixed enums (order status,
// trade side, currency codes) so cardinality stays bounded.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Order lifecycle metrics
var (
	// Orders created, regardless of eventual outcome
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "papertrader_orders_created_total",
		Help: "Total number of orders created",
	})

	// Execution outcomes by status (filled, rejected)
	OrdersExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "papertrader_orders_executed_total",
		Help: "Total number of order executions by outcome",
	}, []string{"status"})

	// Orders cancelled while pending
	OrdersCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "papertrader_orders_cancelled_total",
		Help: "Total number of orders cancelled",
	})

	// Trades by side (buy, sell)
	TradesExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "papertrader_trades_total",
		Help: "Total number of trades executed by side",
	}, []string{"side"})

	// Commission paid across all trades
	FeesPaid = promauto.NewCounter(prometheus.CounterOpts{
		Name: "papertrader_fees_paid_total",
		Help: "Total commission paid across all trades",
	})

	// Cumulative realized P&L booked on sells
	RealizedPnL = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "papertrader_realized_pnl",
		Help: "Cumulative realized profit and loss",
	})
)

// Portfolio state metrics, set by the poller
var (
	PortfolioValue = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "papertrader_portfolio_value",
		Help: "Total portfolio value in the base currency",
	})

	UnrealizedPnL = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "papertrader_unrealized_pnl",
		Help: "Aggregate unrealized profit and loss of open positions",
	})

	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "papertrader_open_positions",
		Help: "Number of currently open positions",
	})

	CashBalance = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "papertrader_cash_balance",
		Help: "Cash balance by currency",
	}, []string{"currency"})
)

// Persistence metrics
var (
	SnapshotDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "papertrader_snapshot_duration_ms",
		Help:    "Snapshot save/load duration in milliseconds",
		Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
	}, []string{"operation"})

	SnapshotErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "papertrader_snapshot_errors_total",
		Help: "Snapshot persistence failures by operation",
	}, []string{"operation"})
)

// Oracle metrics
var (
	OracleRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "papertrader_oracle_requests_total",
		Help: "Price oracle requests by result (hit, miss, error)",
	}, []string{"result"})

	OracleLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "papertrader_oracle_latency_ms",
		Help:    "Price oracle fetch latency in milliseconds",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})

	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "papertrader_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
	}, []string{"service"})
)
