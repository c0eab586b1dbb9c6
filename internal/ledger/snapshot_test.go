package ledger

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfolio/papertrader/internal/assets"
)

// tradingSession builds a ledger with a filled buy, a partial sell, a
// rejected order, a cancelled limit, and one open order.
func tradingSession(t *testing.T) *Ledger {
	t.Helper()
	l := newTestLedger(t, "25000")

	buy, err := l.CreateOrder(OrderRequest{
		Symbol: "BTC-USD", Side: OrderSideBuy, Type: OrderTypeMarket, Quantity: dec("0.4"),
	})
	require.NoError(t, err)
	require.True(t, l.ExecuteOrder(buy.ID, dec("45000")))

	sell, err := l.CreateOrder(OrderRequest{
		Symbol: "BTC-USD", Side: OrderSideSell, Type: OrderTypeMarket, Quantity: dec("0.1"),
	})
	require.NoError(t, err)
	require.True(t, l.ExecuteOrder(sell.ID, dec("46000")))

	oversized, err := l.CreateOrder(OrderRequest{
		Symbol: "AAPL", Side: OrderSideBuy, Type: OrderTypeMarket, Quantity: dec("9999"),
	})
	require.NoError(t, err)
	require.False(t, l.ExecuteOrder(oversized.ID, dec("180")))

	limit, err := l.CreateOrder(OrderRequest{
		Symbol: "ETH-USD", Side: OrderSideBuy, Type: OrderTypeLimit, Quantity: dec("1"), Price: dec("2500"),
	})
	require.NoError(t, err)
	require.True(t, l.CancelOrder(limit.ID))

	_, err = l.CreateOrder(OrderRequest{
		Symbol: "SPY", Side: OrderSideBuy, Type: OrderTypeLimit, Quantity: dec("10"), Price: dec("500"),
	})
	require.NoError(t, err)

	return l
}

func TestSnapshotRoundTrip(t *testing.T) {
	l := tradingSession(t)
	snap := l.Snapshot()

	data, err := json.Marshal(snap)
	require.NoError(t, err)

	var decoded Snapshot
	require.NoError(t, json.Unmarshal(data, &decoded))

	restored := newTestLedger(t, "1")
	require.NoError(t, restored.Restore(&decoded))

	// Re-snapshotting the restored ledger reproduces the document.
	// SavedAt is write-time metadata, so it is pinned before comparing.
	again := restored.Snapshot()
	again.SavedAt = snap.SavedAt
	reencoded, err := json.Marshal(again)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(reencoded))

	assertDec(t, l.CashBalance("USD").String(), restored.CashBalance("USD"))
	assert.Equal(t, len(l.Orders()), len(restored.Orders()))
	assert.Equal(t, len(l.Trades()), len(restored.Trades()))

	position, ok := restored.Position("BTC-USD")
	require.True(t, ok)
	assertDec(t, "0.3", position.Quantity)
	assertDec(t, "45000", position.AvgPrice)
}

func TestSnapshotEncodingIsStable(t *testing.T) {
	l := tradingSession(t)

	data, err := json.Marshal(l.Snapshot())
	require.NoError(t, err)

	var decoded Snapshot
	require.NoError(t, json.Unmarshal(data, &decoded))

	reencoded, err := json.Marshal(&decoded)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(reencoded), "decode/encode must not drift")
}

func TestRestoreContinuesIDSequence(t *testing.T) {
	l := tradingSession(t)
	snap := l.Snapshot()

	restored := newTestLedger(t, "1")
	require.NoError(t, restored.Restore(snap))

	order, err := restored.CreateOrder(OrderRequest{
		Symbol: "AAPL", Side: OrderSideBuy, Type: OrderTypeMarket, Quantity: dec("1"),
	})
	require.NoError(t, err)
	assert.Equal(t, "order_6", order.ID, "id generation resumes after the restored counter")

	require.True(t, restored.ExecuteOrder(order.ID, dec("100")))
	trades := restored.Trades()
	assert.Equal(t, "trade_3", trades[len(trades)-1].ID)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	l := tradingSession(t)
	snap := l.Snapshot()

	// Mutating the snapshot must not reach the ledger.
	snap.CashBalances["USD"] = decimal.Zero
	for _, position := range snap.Positions {
		position.Quantity = dec("999")
	}
	snap.Orders[0].Status = OrderStatusCancelled

	position, ok := l.Position("BTC-USD")
	require.True(t, ok)
	assertDec(t, "0.3", position.Quantity)
	assert.False(t, l.CashBalance("USD").IsZero())

	first, ok := l.Order("order_1")
	require.True(t, ok)
	assert.Equal(t, OrderStatusFilled, first.Status)
}

func TestRestoreAllOrNothing(t *testing.T) {
	l := tradingSession(t)
	cashBefore := l.CashBalance("USD")
	ordersBefore := len(l.Orders())

	bad := l.Snapshot()
	bad.InitialBalance = dec("-1")

	err := l.Restore(bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorruptState)

	// Nothing was applied.
	assertDec(t, cashBefore.String(), l.CashBalance("USD"))
	assert.Len(t, l.Orders(), ordersBefore)

	order, err := l.CreateOrder(OrderRequest{
		Symbol: "AAPL", Side: OrderSideBuy, Type: OrderTypeMarket, Quantity: dec("1"),
	})
	require.NoError(t, err)
	assert.True(t, l.ExecuteOrder(order.ID, dec("10")), "ledger keeps working after a failed restore")
}

func TestRestoreAcceptsPartiallyFilledOrders(t *testing.T) {
	// Older documents may carry partially filled orders. They restore
	// as-is; the status counts as terminal so execution skips them.
	snap := validSnapshot()
	snap.Orders[0].Status = OrderStatusPartiallyFilled

	l := newTestLedger(t, "1")
	require.NoError(t, l.Restore(snap))

	assert.False(t, l.ExecuteOrder("order_1", dec("45000")))
}

func validSnapshot() *Snapshot {
	filled := time.Date(2025, 6, 1, 12, 0, 2, 0, time.UTC)
	return &Snapshot{
		SchemaVersion:  SchemaVersion,
		SavedAt:        time.Date(2025, 6, 1, 12, 0, 10, 0, time.UTC),
		InitialBalance: dec("10000"),
		BaseCurrency:   "USD",
		CashBalances:   map[string]decimal.Decimal{"USD": dec("5495.5")},
		Positions: map[string]*Position{
			"BTC-USD": {
				Symbol: "BTC-USD", AssetClass: assets.ClassCrypto, Currency: "USD",
				Quantity: dec("0.1"),
				AvgPrice: dec("45000"),
				CostBasis: dec("4500"),
				OpenedAt: filled, UpdatedAt: filled,
			},
		},
		Orders: []*Order{
			{
				ID: "order_1", Symbol: "BTC-USD", Side: OrderSideBuy, Type: OrderTypeMarket,
				Quantity: dec("0.1"), Status: OrderStatusFilled,
				AssetClass: assets.ClassCrypto, Currency: "USD", CreatedAt: filled,
				FilledAt: &filled, FilledPrice: dec("45000"),
				Fee: dec("4.5"),
			},
		},
		Trades: []*Trade{
			{
				ID: "trade_1", OrderID: "order_1", Symbol: "BTC-USD",
				AssetClass: assets.ClassCrypto, Side: OrderSideBuy,
				Quantity: dec("0.1"),
				Price: dec("45000"),
				Value: dec("4500"),
				Fee: dec("4.5"),
				Currency: "USD", Timestamp: filled,
			},
		},
		OrderCounter: 1,
		TradeCounter: 1,
	}
}

func TestSnapshotValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Snapshot)
		wantErr string
	}{
		{"valid", func(s *Snapshot) {}, ""},
		{"short version tolerated", func(s *Snapshot) { s.SchemaVersion = "1.0" }, ""},
		{"missing version", func(s *Snapshot) { s.SchemaVersion = "" }, "missing schema version"},
		{"garbage version", func(s *Snapshot) { s.SchemaVersion = "not-a-version" }, "invalid schema version"},
		{"future major", func(s *Snapshot) { s.SchemaVersion = "2.0.0" }, "incompatible schema version"},
		{"newer minor", func(s *Snapshot) { s.SchemaVersion = "1.9.0" }, "newer than supported"},
		{"zero initial balance", func(s *Snapshot) { s.InitialBalance = decimal.Zero }, "initial balance must be positive"},
		{"missing base currency", func(s *Snapshot) { s.BaseCurrency = "" }, "base currency is required"},
		{"negative counter", func(s *Snapshot) { s.TradeCounter = -1 }, "counters must be non-negative"},
		{"negative cash", func(s *Snapshot) {
			s.CashBalances["USD"] = dec("-5")
		}, "negative cash balance"},
		{"empty currency key", func(s *Snapshot) {
			s.CashBalances[""] = dec("5")
		}, "empty currency"},
		{"nil position", func(s *Snapshot) { s.Positions["BTC-USD"] = nil }, "is nil"},
		{"position key mismatch", func(s *Snapshot) {
			s.Positions["ETH-USD"] = s.Positions["BTC-USD"]
			delete(s.Positions, "BTC-USD")
		}, "does not match symbol"},
		{"zero quantity position", func(s *Snapshot) {
			s.Positions["BTC-USD"].Quantity = decimal.Zero
		}, "quantity must be positive"},
		{"negative cost basis", func(s *Snapshot) {
			s.Positions["BTC-USD"].CostBasis = dec("-1")
		}, "negative price or cost basis"},
		{"position without currency", func(s *Snapshot) {
			s.Positions["BTC-USD"].Currency = ""
		}, "has no currency"},
		{"nil order", func(s *Snapshot) { s.Orders[0] = nil }, "order 0 is nil"},
		{"malformed order id", func(s *Snapshot) { s.Orders[0].ID = "ord-1" }, "malformed order id"},
		{"non-numeric order id", func(s *Snapshot) { s.Orders[0].ID = "order_x" }, "malformed order id"},
		{"order id beyond counter", func(s *Snapshot) { s.Orders[0].ID = "order_7" }, "exceeds order counter"},
		{"duplicate order id", func(s *Snapshot) {
			cp := *s.Orders[0]
			s.Orders = append(s.Orders, &cp)
		}, "duplicate order id"},
		{"order without symbol", func(s *Snapshot) { s.Orders[0].Symbol = "" }, "has no symbol"},
		{"invalid order side", func(s *Snapshot) { s.Orders[0].Side = "short" }, "invalid side"},
		{"invalid order type", func(s *Snapshot) { s.Orders[0].Type = "trailing" }, "invalid type"},
		{"invalid order status", func(s *Snapshot) { s.Orders[0].Status = "done" }, "invalid status"},
		{"zero quantity order", func(s *Snapshot) { s.Orders[0].Quantity = decimal.Zero }, "quantity must be positive"},
		{"malformed trade id", func(s *Snapshot) { s.Trades[0].ID = "fill_1" }, "malformed trade id"},
		{"trade id beyond counter", func(s *Snapshot) { s.Trades[0].ID = "trade_2" }, "exceeds trade counter"},
		{"duplicate trade id", func(s *Snapshot) {
			cp := *s.Trades[0]
			s.Trades = append(s.Trades, &cp)
			s.TradeCounter = 2
			s.Trades[1].ID = "trade_1"
		}, "duplicate trade id"},
		{"trade without order id", func(s *Snapshot) { s.Trades[0].OrderID = "" }, "has no order id"},
		{"invalid trade side", func(s *Snapshot) { s.Trades[0].Side = "flat" }, "invalid side"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := validSnapshot()
			tt.mutate(snap)

			err := snap.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateNilSnapshot(t *testing.T) {
	var snap *Snapshot
	assert.Error(t, snap.Validate())

	l := newTestLedger(t, "1")
	err := l.Restore(nil)
	assert.ErrorIs(t, err, ErrCorruptState)
}
