package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/openfolio/papertrader/internal/assets"
	"github.com/openfolio/papertrader/internal/ledger"
	"github.com/openfolio/papertrader/internal/metrics"
)

// PoolInterface is the subset of pgxpool.Pool the store uses.
// This allows us to use both real pgxpool.Pool and mocks in tests.
type PoolInterface interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Connect creates a tuned PostgreSQL connection pool and verifies it
// with a ping.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Database connection pool created successfully")
	return pool, nil
}

// PostgresStore persists snapshots in a normalized relational schema.
// Each named ledger owns one row in ledger_state plus child rows for
// cash balances, positions, orders and trades; Save replaces all of
// them in a single transaction.
type PostgresStore struct {
	pool PoolInterface
	name string
}

// NewPostgresStore creates a store with a PoolInterface (for testing with mocks).
func NewPostgresStore(pool PoolInterface, name string) *PostgresStore {
	if name == "" {
		name = "default"
	}
	return &PostgresStore{pool: pool, name: name}
}

// NewPostgresStoreWithPool creates a store with a real pgxpool.Pool.
func NewPostgresStoreWithPool(pool *pgxpool.Pool, name string) *PostgresStore {
	return NewPostgresStore(pool, name)
}

// Save writes the snapshot transactionally: the ledger_state row is
// upserted and every child table is rewritten from the snapshot.
func (s *PostgresStore) Save(ctx context.Context, snap *ledger.Snapshot) error {
	start := time.Now()
	if err := s.save(ctx, snap); err != nil {
		metrics.SnapshotErrors.WithLabelValues("save").Inc()
		log.Error().Err(err).Str("ledger", s.name).Msg("Failed to save snapshot")
		return err
	}
	metrics.SnapshotDuration.WithLabelValues("save").Observe(float64(time.Since(start).Milliseconds()))
	log.Debug().
		Str("ledger", s.name).
		Int("orders", len(snap.Orders)).
		Int("trades", len(snap.Trades)).
		Msg("Snapshot saved to database")
	return nil
}

func (s *PostgresStore) save(ctx context.Context, snap *ledger.Snapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // no-op after commit

	query := `
		INSERT INTO ledger_state (id, name, schema_version, saved_at, initial_balance, base_currency, order_counter, trade_counter)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (name) DO UPDATE SET
			schema_version = EXCLUDED.schema_version,
			saved_at = EXCLUDED.saved_at,
			initial_balance = EXCLUDED.initial_balance,
			base_currency = EXCLUDED.base_currency,
			order_counter = EXCLUDED.order_counter,
			trade_counter = EXCLUDED.trade_counter,
			updated_at = NOW()
		RETURNING id::text
	`
	var id string
	err = tx.QueryRow(ctx, query,
		uuid.New().String(),
		s.name,
		snap.SchemaVersion,
		snap.SavedAt,
		snap.InitialBalance.String(),
		snap.BaseCurrency,
		snap.OrderCounter,
		snap.TradeCounter,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to upsert ledger state: %w", err)
	}

	// Child tables are rewritten wholesale. Snapshots are small enough
	// that replace-on-save beats diffing row by row.
	for _, table := range []string{"trades", "orders", "positions", "cash_balances"} {
		if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE ledger_id = $1", table), id); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	currencies := make([]string, 0, len(snap.CashBalances))
	for currency := range snap.CashBalances {
		currencies = append(currencies, currency)
	}
	sort.Strings(currencies)
	for _, currency := range currencies {
		_, err := tx.Exec(ctx, `
			INSERT INTO cash_balances (ledger_id, currency, balance)
			VALUES ($1, $2, $3)
		`, id, currency, snap.CashBalances[currency].String())
		if err != nil {
			return fmt.Errorf("failed to insert cash balance %s: %w", currency, err)
		}
	}

	symbols := make([]string, 0, len(snap.Positions))
	for symbol := range snap.Positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	for _, symbol := range symbols {
		p := snap.Positions[symbol]
		_, err := tx.Exec(ctx, `
			INSERT INTO positions (ledger_id, symbol, asset_class, currency, quantity, avg_price, cost_basis, realized_pnl, opened_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, id, p.Symbol, string(p.AssetClass), p.Currency,
			p.Quantity.String(), p.AvgPrice.String(), p.CostBasis.String(), p.RealizedPnL.String(),
			p.OpenedAt, p.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert position %s: %w", symbol, err)
		}
	}

	for i, o := range snap.Orders {
		_, err := tx.Exec(ctx, `
			INSERT INTO orders (ledger_id, seq, id, symbol, side, type, quantity, price, stop_price, status, asset_class, currency, created_at, filled_at, filled_price, fee, reject_reason)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		`, id, i+1, o.ID, o.Symbol, string(o.Side), string(o.Type),
			o.Quantity.String(), o.Price.String(), o.StopPrice.String(),
			string(o.Status), string(o.AssetClass), o.Currency,
			o.CreatedAt, o.FilledAt, o.FilledPrice.String(), o.Fee.String(), o.RejectReason)
		if err != nil {
			return fmt.Errorf("failed to insert order %s: %w", o.ID, err)
		}
	}

	for i, tr := range snap.Trades {
		_, err := tx.Exec(ctx, `
			INSERT INTO trades (ledger_id, seq, id, order_id, symbol, asset_class, side, quantity, price, gross_value, fee, currency, realized_pnl, executed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`, id, i+1, tr.ID, tr.OrderID, tr.Symbol, string(tr.AssetClass), string(tr.Side),
			tr.Quantity.String(), tr.Price.String(), tr.Value.String(), tr.Fee.String(),
			tr.Currency, tr.RealizedPnL.String(), tr.Timestamp)
		if err != nil {
			return fmt.Errorf("failed to insert trade %s: %w", tr.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Load rebuilds the snapshot from the relational schema and validates
// it. A ledger that was never saved returns ErrNotFound.
func (s *PostgresStore) Load(ctx context.Context) (*ledger.Snapshot, error) {
	start := time.Now()
	snap, err := s.load(ctx)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			metrics.SnapshotErrors.WithLabelValues("load").Inc()
			log.Error().Err(err).Str("ledger", s.name).Msg("Failed to load snapshot")
		}
		return nil, err
	}
	metrics.SnapshotDuration.WithLabelValues("load").Observe(float64(time.Since(start).Milliseconds()))
	log.Debug().
		Str("ledger", s.name).
		Int("orders", len(snap.Orders)).
		Int("trades", len(snap.Trades)).
		Msg("Snapshot loaded from database")
	return snap, nil
}

func (s *PostgresStore) load(ctx context.Context) (*ledger.Snapshot, error) {
	snap := &ledger.Snapshot{
		CashBalances: make(map[string]decimal.Decimal),
		Positions:    make(map[string]*ledger.Position),
		Orders:       []*ledger.Order{},
		Trades:       []*ledger.Trade{},
	}

	query := `
		SELECT id::text, schema_version, saved_at, initial_balance::text, base_currency, order_counter, trade_counter
		FROM ledger_state
		WHERE name = $1
	`
	var (
		id             string
		initialBalance string
	)
	err := s.pool.QueryRow(ctx, query, s.name).Scan(
		&id, &snap.SchemaVersion, &snap.SavedAt, &initialBalance,
		&snap.BaseCurrency, &snap.OrderCounter, &snap.TradeCounter,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger state: %w", err)
	}
	if snap.InitialBalance, err = parseStoredDecimal("initial_balance", initialBalance); err != nil {
		return nil, err
	}

	if err := s.loadCashBalances(ctx, id, snap); err != nil {
		return nil, err
	}
	if err := s.loadPositions(ctx, id, snap); err != nil {
		return nil, err
	}
	if err := s.loadOrders(ctx, id, snap); err != nil {
		return nil, err
	}
	if err := s.loadTrades(ctx, id, snap); err != nil {
		return nil, err
	}

	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrCorruptState, err)
	}
	return snap, nil
}

func (s *PostgresStore) loadCashBalances(ctx context.Context, id string, snap *ledger.Snapshot) error {
	rows, err := s.pool.Query(ctx, `
		SELECT currency, balance::text
		FROM cash_balances
		WHERE ledger_id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to load cash balances: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var currency, balance string
		if err := rows.Scan(&currency, &balance); err != nil {
			return fmt.Errorf("failed to scan cash balance: %w", err)
		}
		d, err := parseStoredDecimal("balance", balance)
		if err != nil {
			return err
		}
		snap.CashBalances[currency] = d
	}
	return rows.Err()
}

func (s *PostgresStore) loadPositions(ctx context.Context, id string, snap *ledger.Snapshot) error {
	rows, err := s.pool.Query(ctx, `
		SELECT symbol, asset_class, currency, quantity::text, avg_price::text, cost_basis::text, realized_pnl::text, opened_at, updated_at
		FROM positions
		WHERE ledger_id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to load positions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p ledger.Position
		var class, quantity, avgPrice, costBasis, realizedPnL string
		if err := rows.Scan(&p.Symbol, &class, &p.Currency,
			&quantity, &avgPrice, &costBasis, &realizedPnL, &p.OpenedAt, &p.UpdatedAt); err != nil {
			return fmt.Errorf("failed to scan position: %w", err)
		}
		p.AssetClass = assets.Class(class)
		if p.Quantity, err = parseStoredDecimal("quantity", quantity); err != nil {
			return err
		}
		if p.AvgPrice, err = parseStoredDecimal("avg_price", avgPrice); err != nil {
			return err
		}
		if p.CostBasis, err = parseStoredDecimal("cost_basis", costBasis); err != nil {
			return err
		}
		if p.RealizedPnL, err = parseStoredDecimal("realized_pnl", realizedPnL); err != nil {
			return err
		}
		snap.Positions[p.Symbol] = &p
	}
	return rows.Err()
}

func (s *PostgresStore) loadOrders(ctx context.Context, id string, snap *ledger.Snapshot) error {
	rows, err := s.pool.Query(ctx, `
		SELECT id, symbol, side, type, quantity::text, price::text, stop_price::text, status, asset_class, currency, created_at, filled_at, filled_price::text, fee::text, reject_reason
		FROM orders
		WHERE ledger_id = $1
		ORDER BY seq
	`, id)
	if err != nil {
		return fmt.Errorf("failed to load orders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var o ledger.Order
		var side, otype, status, class string
		var quantity, price, stopPrice, filledPrice, fee string
		if err := rows.Scan(&o.ID, &o.Symbol, &side, &otype,
			&quantity, &price, &stopPrice, &status, &class, &o.Currency,
			&o.CreatedAt, &o.FilledAt, &filledPrice, &fee, &o.RejectReason); err != nil {
			return fmt.Errorf("failed to scan order: %w", err)
		}
		o.Side = ledger.OrderSide(side)
		o.Type = ledger.OrderType(otype)
		o.Status = ledger.OrderStatus(status)
		o.AssetClass = assets.Class(class)
		if o.Quantity, err = parseStoredDecimal("quantity", quantity); err != nil {
			return err
		}
		if o.Price, err = parseStoredDecimal("price", price); err != nil {
			return err
		}
		if o.StopPrice, err = parseStoredDecimal("stop_price", stopPrice); err != nil {
			return err
		}
		if o.FilledPrice, err = parseStoredDecimal("filled_price", filledPrice); err != nil {
			return err
		}
		if o.Fee, err = parseStoredDecimal("fee", fee); err != nil {
			return err
		}
		snap.Orders = append(snap.Orders, &o)
	}
	return rows.Err()
}

func (s *PostgresStore) loadTrades(ctx context.Context, id string, snap *ledger.Snapshot) error {
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_id, symbol, asset_class, side, quantity::text, price::text, gross_value::text, fee::text, currency, realized_pnl::text, executed_at
		FROM trades
		WHERE ledger_id = $1
		ORDER BY seq
	`, id)
	if err != nil {
		return fmt.Errorf("failed to load trades: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tr ledger.Trade
		var side, class string
		var quantity, price, grossValue, fee, realizedPnL string
		if err := rows.Scan(&tr.ID, &tr.OrderID, &tr.Symbol, &class, &side,
			&quantity, &price, &grossValue, &fee, &tr.Currency, &realizedPnL, &tr.Timestamp); err != nil {
			return fmt.Errorf("failed to scan trade: %w", err)
		}
		tr.AssetClass = assets.Class(class)
		tr.Side = ledger.OrderSide(side)
		if tr.Quantity, err = parseStoredDecimal("quantity", quantity); err != nil {
			return err
		}
		if tr.Price, err = parseStoredDecimal("price", price); err != nil {
			return err
		}
		if tr.Value, err = parseStoredDecimal("gross_value", grossValue); err != nil {
			return err
		}
		if tr.Fee, err = parseStoredDecimal("fee", fee); err != nil {
			return err
		}
		if tr.RealizedPnL, err = parseStoredDecimal("realized_pnl", realizedPnL); err != nil {
			return err
		}
		snap.Trades = append(snap.Trades, &tr)
	}
	return rows.Err()
}

// Close releases the underlying pool.
func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// parseStoredDecimal converts a numeric column read as text. Values that
// fail to parse mean the row was modified outside the store.
func parseStoredDecimal(column, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: column %s holds %q", ledger.ErrCorruptState, column, raw)
	}
	return d, nil
}
