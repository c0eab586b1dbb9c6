package ledger

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// SchemaVersion is the snapshot document version this build writes.
// Restores accept any snapshot with the same major version that is not
// newer than this.
const SchemaVersion = "1.0.0"

// Snapshot is the complete serializable ledger state. A snapshot written
// by Snapshot and read back through Restore reproduces the ledger
// exactly, including the id counters, so id generation continues without
// collision.
type Snapshot struct {
	SchemaVersion  string                     `json:"schema_version"`
	SavedAt        time.Time                  `json:"saved_at"`
	InitialBalance decimal.Decimal            `json:"initial_balance"`
	BaseCurrency   string                     `json:"base_currency"`
	CashBalances   map[string]decimal.Decimal `json:"cash_balances"`
	Positions      map[string]*Position       `json:"positions"`
	Orders         []*Order                   `json:"orders"`
	Trades         []*Trade                   `json:"trades"`
	OrderCounter   int64                      `json:"order_counter"`
	TradeCounter   int64                      `json:"trade_counter"`
}

// Snapshot returns a deep copy of the current ledger state.
func (l *Ledger) Snapshot() *Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snap := &Snapshot{
		SchemaVersion:  SchemaVersion,
		SavedAt:        l.now(),
		InitialBalance: l.initialBalance,
		BaseCurrency:   l.baseCurrency,
		CashBalances:   make(map[string]decimal.Decimal, len(l.cashBalances)),
		Positions:      make(map[string]*Position, len(l.positions)),
		Orders:         make([]*Order, 0, len(l.orderIDs)),
		Trades:         make([]*Trade, 0, len(l.trades)),
		OrderCounter:   l.orderCounter,
		TradeCounter:   l.tradeCounter,
	}
	for currency, balance := range l.cashBalances {
		snap.CashBalances[currency] = balance
	}
	for symbol, position := range l.positions {
		cp := *position
		snap.Positions[symbol] = &cp
	}
	for _, id := range l.orderIDs {
		cp := *l.orders[id]
		if cp.FilledAt != nil {
			t := *cp.FilledAt
			cp.FilledAt = &t
		}
		snap.Orders = append(snap.Orders, &cp)
	}
	for _, trade := range l.trades {
		cp := *trade
		snap.Trades = append(snap.Trades, &cp)
	}
	return snap
}

// Restore replaces the entire ledger state with a snapshot. The document
// is validated up front and either applied completely or not at all: on
// any validation failure the ledger keeps its previous state and the
// returned error matches ErrCorruptState.
func (l *Ledger) Restore(snap *Snapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptState, err)
	}

	cash := make(map[string]decimal.Decimal, len(snap.CashBalances))
	for currency, balance := range snap.CashBalances {
		cash[currency] = balance
	}
	positions := make(map[string]*Position, len(snap.Positions))
	for symbol, position := range snap.Positions {
		cp := *position
		positions[symbol] = &cp
	}
	orders := make(map[string]*Order, len(snap.Orders))
	orderIDs := make([]string, 0, len(snap.Orders))
	for _, order := range snap.Orders {
		cp := *order
		if cp.FilledAt != nil {
			t := *cp.FilledAt
			cp.FilledAt = &t
		}
		orders[cp.ID] = &cp
		orderIDs = append(orderIDs, cp.ID)
	}
	trades := make([]*Trade, 0, len(snap.Trades))
	for _, trade := range snap.Trades {
		cp := *trade
		trades = append(trades, &cp)
	}

	l.mu.Lock()
	l.initialBalance = snap.InitialBalance
	l.baseCurrency = snap.BaseCurrency
	l.cashBalances = cash
	l.positions = positions
	l.orders = orders
	l.orderIDs = orderIDs
	l.trades = trades
	l.orderCounter = snap.OrderCounter
	l.tradeCounter = snap.TradeCounter
	l.mu.Unlock()

	log.Info().
		Str("base_currency", snap.BaseCurrency).
		Int("orders", len(snap.Orders)).
		Int("positions", len(snap.Positions)).
		Int("trades", len(snap.Trades)).
		Msg("Ledger state restored from snapshot")
	return nil
}

// Validate checks a snapshot for structural and accounting consistency.
func (s *Snapshot) Validate() error {
	if s == nil {
		return fmt.Errorf("snapshot is nil")
	}
	if err := checkSchemaVersion(s.SchemaVersion); err != nil {
		return err
	}
	if !s.InitialBalance.IsPositive() {
		return fmt.Errorf("initial balance must be positive, got %s", s.InitialBalance)
	}
	if s.BaseCurrency == "" {
		return fmt.Errorf("base currency is required")
	}
	if s.OrderCounter < 0 || s.TradeCounter < 0 {
		return fmt.Errorf("counters must be non-negative")
	}

	for currency, balance := range s.CashBalances {
		if currency == "" {
			return fmt.Errorf("cash balance with empty currency")
		}
		if balance.IsNegative() {
			return fmt.Errorf("negative cash balance %s %s", balance, currency)
		}
	}

	for symbol, position := range s.Positions {
		if position == nil {
			return fmt.Errorf("position %s is nil", symbol)
		}
		if position.Symbol != symbol {
			return fmt.Errorf("position key %s does not match symbol %s", symbol, position.Symbol)
		}
		if !position.Quantity.IsPositive() {
			return fmt.Errorf("position %s quantity must be positive, got %s", symbol, position.Quantity)
		}
		if position.AvgPrice.IsNegative() || position.CostBasis.IsNegative() {
			return fmt.Errorf("position %s has negative price or cost basis", symbol)
		}
		if position.Currency == "" {
			return fmt.Errorf("position %s has no currency", symbol)
		}
	}

	orderIDs := make(map[string]bool, len(s.Orders))
	for i, order := range s.Orders {
		if order == nil {
			return fmt.Errorf("order %d is nil", i)
		}
		if err := validateSnapshotID(order.ID, "order", s.OrderCounter); err != nil {
			return err
		}
		if orderIDs[order.ID] {
			return fmt.Errorf("duplicate order id %s", order.ID)
		}
		orderIDs[order.ID] = true
		if order.Symbol == "" {
			return fmt.Errorf("order %s has no symbol", order.ID)
		}
		if !order.Side.Valid() {
			return fmt.Errorf("order %s has invalid side %q", order.ID, order.Side)
		}
		if !order.Type.Valid() {
			return fmt.Errorf("order %s has invalid type %q", order.ID, order.Type)
		}
		if !order.Status.Valid() {
			return fmt.Errorf("order %s has invalid status %q", order.ID, order.Status)
		}
		if !order.Quantity.IsPositive() {
			return fmt.Errorf("order %s quantity must be positive, got %s", order.ID, order.Quantity)
		}
	}

	tradeIDs := make(map[string]bool, len(s.Trades))
	for i, trade := range s.Trades {
		if trade == nil {
			return fmt.Errorf("trade %d is nil", i)
		}
		if err := validateSnapshotID(trade.ID, "trade", s.TradeCounter); err != nil {
			return err
		}
		if tradeIDs[trade.ID] {
			return fmt.Errorf("duplicate trade id %s", trade.ID)
		}
		tradeIDs[trade.ID] = true
		if trade.OrderID == "" {
			return fmt.Errorf("trade %s has no order id", trade.ID)
		}
		if !trade.Side.Valid() {
			return fmt.Errorf("trade %s has invalid side %q", trade.ID, trade.Side)
		}
		if !trade.Quantity.IsPositive() {
			return fmt.Errorf("trade %s quantity must be positive, got %s", trade.ID, trade.Quantity)
		}
	}

	return nil
}

// checkSchemaVersion accepts snapshots from the same major version that
// are not newer than this build.
func checkSchemaVersion(version string) error {
	if version == "" {
		return fmt.Errorf("missing schema version")
	}
	current, err := semver.NewVersion(version)
	if err != nil {
		// Tolerate short versions like "1.0"
		current, err = semver.NewVersion(version + ".0")
		if err != nil {
			return fmt.Errorf("invalid schema version %q", version)
		}
	}
	target := semver.MustParse(SchemaVersion)
	if current.Major() != target.Major() {
		return fmt.Errorf("incompatible schema version %s (supported: %d.x)", version, target.Major())
	}
	if current.GreaterThan(target) {
		return fmt.Errorf("schema version %s is newer than supported version %s", version, SchemaVersion)
	}
	return nil
}

// validateSnapshotID checks the <kind>_<n> id format and that n does not
// exceed the persisted counter, which would make future ids collide.
func validateSnapshotID(id, kind string, counter int64) error {
	rest, ok := strings.CutPrefix(id, kind+"_")
	if !ok {
		return fmt.Errorf("malformed %s id %q", kind, id)
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || n <= 0 {
		return fmt.Errorf("malformed %s id %q", kind, id)
	}
	if n > counter {
		return fmt.Errorf("%s id %s exceeds %s counter %d", kind, id, kind, counter)
	}
	return nil
}
