// Paper Trader CLI
// Runs a scripted paper-trading session against the configured oracle and store
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/openfolio/papertrader/internal/assets"
	"github.com/openfolio/papertrader/internal/config"
	"github.com/openfolio/papertrader/internal/events"
	"github.com/openfolio/papertrader/internal/ledger"
	"github.com/openfolio/papertrader/internal/metrics"
	"github.com/openfolio/papertrader/internal/oracle"
	"github.com/openfolio/papertrader/internal/store"
)

// ============================================================================
// CLI FLAGS
// ============================================================================

var (
	// Configuration
	configPath   = flag.String("config", "", "Path to config file (defaults to configs/config.yaml)")
	snapshotFile = flag.String("snapshot", "", "Snapshot file path (overrides store.snapshot_path)")

	// Monitoring
	metricsPort = flag.Int("metrics-port", 0, "Prometheus metrics port (overrides monitoring.prometheus_port)")

	// Output
	outputFile = flag.String("output", "", "Output file for the session report (optional)")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
)

// ============================================================================
// MAIN
// ============================================================================

func main() {
	// Parse flags
	flag.Parse()

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	config.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// Apply flag overrides
	if *snapshotFile != "" {
		cfg.Store.SnapshotPath = *snapshotFile
	}
	if *metricsPort != 0 {
		cfg.Monitoring.PrometheusPort = *metricsPort
	}

	log.Info().
		Str("version", config.GetVersion()).
		Str("environment", cfg.App.Environment).
		Str("oracle", cfg.Oracle.Provider).
		Str("store", cfg.Store.Backend).
		Msg("Starting paper trading session")

	// Run session
	ctx := context.Background()
	if err := runSession(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Session failed")
	}

	log.Info().Msg("Session completed successfully")
}

// ============================================================================
// SESSION EXECUTION
// ============================================================================

func runSession(ctx context.Context, cfg *config.Config) error {
	// Asset directory
	directory, err := buildDirectory(cfg)
	if err != nil {
		return err
	}

	// Price oracle, optionally wrapped with the Redis quote cache
	priceOracle, cleanup := buildOracle(cfg)
	defer cleanup()

	// Event publisher
	var publisher ledger.Publisher
	if cfg.Events.Enabled {
		nats, err := events.NewNATSPublisher(events.NATSConfig{
			URL:    cfg.Events.URL,
			Prefix: cfg.Events.SubjectPrefix,
			Name:   cfg.Events.ClientName,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer nats.Close()
		publisher = nats
	}

	// Snapshot store
	st, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	// Create the ledger
	book, err := ledger.New(ledger.Options{
		InitialBalance: decimal.NewFromFloat(cfg.Ledger.InitialBalance),
		BaseCurrency:   cfg.Ledger.BaseCurrency,
		Fees:           buildFeeSchedule(cfg),
		Directory:      directory,
		Publisher:      publisher,
	})
	if err != nil {
		return fmt.Errorf("failed to create ledger: %w", err)
	}

	// Restore prior state if a snapshot exists
	snap, err := st.Load(ctx)
	switch {
	case err == nil:
		if err := book.Restore(snap); err != nil {
			return fmt.Errorf("failed to restore snapshot: %w", err)
		}
		log.Info().
			Int("positions", len(snap.Positions)).
			Int("trades", len(snap.Trades)).
			Msg("Restored ledger from snapshot")
	case errors.Is(err, store.ErrNotFound):
		log.Info().
			Float64("balance", cfg.Ledger.InitialBalance).
			Str("currency", cfg.Ledger.BaseCurrency).
			Msg("No snapshot found, funded a fresh ledger")
	default:
		return fmt.Errorf("failed to load snapshot: %w", err)
	}

	// Metrics server and portfolio poller
	if cfg.Monitoring.EnableMetrics {
		server := metrics.NewServer(cfg.Monitoring.PrometheusPort)
		server.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("Metrics server shutdown failed")
			}
		}()

		poller := metrics.NewPoller(portfolioSampler(book, priceOracle), cfg.Monitoring.GetPollInterval())
		go poller.Start(ctx)
		defer poller.Stop()
	}

	// Run the scripted trades
	quotes, err := fetchQuotes(ctx, priceOracle, book)
	if err != nil {
		return err
	}
	if err := tradeSession(book, quotes); err != nil {
		return err
	}

	// Generate report
	report := renderReport(book, quotes)
	fmt.Println(report)

	// Write to output file if specified
	if *outputFile != "" {
		if err := os.WriteFile(*outputFile, []byte(report), 0644); err != nil {
			log.Warn().Err(err).Str("file", *outputFile).Msg("Failed to write output file")
		} else {
			log.Info().Str("file", *outputFile).Msg("Report written to file")
		}
	}

	// Persist the final state
	if err := st.Save(ctx, book.Snapshot()); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	log.Info().Str("backend", cfg.Store.Backend).Msg("Snapshot saved")
	if publisher != nil {
		if err := publisher.Publish(ledger.Event{Type: ledger.EventSnapshotSaved, Timestamp: time.Now()}); err != nil {
			log.Warn().Err(err).Msg("Failed to publish snapshot event")
		}
	}

	return nil
}

// ============================================================================
// SESSION SETUP
// ============================================================================

func buildDirectory(cfg *config.Config) (assets.Directory, error) {
	if cfg.Assets.CatalogFile == "" {
		return assets.DefaultDirectory(), nil
	}
	directory, err := assets.LoadCatalog(cfg.Assets.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load asset catalog: %w", err)
	}
	log.Info().Str("file", cfg.Assets.CatalogFile).Msg("Loaded asset catalog")
	return directory, nil
}

func buildFeeSchedule(cfg *config.Config) *ledger.FeeSchedule {
	rates := make(map[assets.Class]decimal.Decimal, len(cfg.Fees.Rates))
	for name, rate := range cfg.Fees.Rates {
		class := assets.Class(name)
		if !class.Valid() || class == assets.ClassUnknown {
			log.Warn().Str("class", name).Msg("Ignoring fee rate for unknown asset class")
			continue
		}
		rates[class] = decimal.NewFromFloat(rate)
	}
	return ledger.NewFeeSchedule(rates, decimal.NewFromFloat(cfg.Fees.DefaultRate))
}

func buildOracle(cfg *config.Config) (oracle.PriceOracle, func()) {
	var base oracle.PriceOracle
	switch cfg.Oracle.Provider {
	case "binance":
		base = oracle.NewBinance(oracle.BinanceConfig{
			APIKey:            cfg.Oracle.APIKey,
			SecretKey:         cfg.Oracle.SecretKey,
			Testnet:           cfg.Oracle.Testnet,
			RequestTimeout:    cfg.Oracle.GetRequestTimeout(),
			RequestsPerSecond: cfg.Oracle.RequestsPerSecond,
			Burst:             cfg.Oracle.Burst,
		})
	default:
		base = oracle.NewStatic(demoQuotes())
	}

	cleanup := func() {}
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetRedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		base = oracle.NewCached(base, client, cfg.Redis.GetCacheTTL())
		cleanup = func() {
			if err := client.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close Redis client")
			}
		}
		log.Info().Str("addr", cfg.Redis.GetRedisAddr()).Msg("Quote caching enabled")
	}
	return base, cleanup
}

func buildStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case "postgres":
		pool, err := store.Connect(ctx, cfg.Store.Database.GetDSN())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return store.NewPostgresStoreWithPool(pool, cfg.Store.LedgerName), nil
	default:
		fileStore, err := store.NewFileStore(cfg.Store.SnapshotPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open snapshot file store: %w", err)
		}
		return fileStore, nil
	}
}

// portfolioSampler adapts the ledger and oracle into the poller's sample
// callback. Quotes are fetched fresh on every tick so the gauges track
// the market, not the last report.
func portfolioSampler(book *ledger.Ledger, priceOracle oracle.PriceOracle) metrics.SampleFunc {
	return func(ctx context.Context) (metrics.Sample, error) {
		positions := book.Positions()
		quotes := map[string]ledger.Quote{}
		if len(positions) > 0 {
			symbols := make([]string, 0, len(positions))
			for _, position := range positions {
				symbols = append(symbols, position.Symbol)
			}
			var err error
			quotes, err = priceOracle.Prices(ctx, symbols)
			if err != nil {
				return metrics.Sample{}, err
			}
		}

		cash := make(map[string]float64)
		for currency, balance := range book.CashBalances() {
			cash[currency] = balance.InexactFloat64()
		}

		return metrics.Sample{
			PortfolioValue: book.TotalValue(quotes).InexactFloat64(),
			UnrealizedPnL:  book.UnrealizedPnL(quotes).InexactFloat64(),
			OpenPositions:  len(positions),
			CashBalances:   cash,
		}, nil
	}
}

// ============================================================================
// SCRIPTED SESSION
// ============================================================================

// sessionSymbols are the instruments the demo session trades.
var sessionSymbols = []string{"BTC-USD", "AAPL", "MSFT"}

// fetchQuotes loads quotes for the session symbols plus anything already
// held, so a restored portfolio is fully marked in the report.
func fetchQuotes(ctx context.Context, priceOracle oracle.PriceOracle, book *ledger.Ledger) (map[string]ledger.Quote, error) {
	seen := make(map[string]bool, len(sessionSymbols))
	symbols := make([]string, 0, len(sessionSymbols))
	for _, symbol := range sessionSymbols {
		seen[symbol] = true
		symbols = append(symbols, symbol)
	}
	for _, position := range book.Positions() {
		if !seen[position.Symbol] {
			seen[position.Symbol] = true
			symbols = append(symbols, position.Symbol)
		}
	}

	quotes, err := priceOracle.Prices(ctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quotes: %w", err)
	}
	log.Info().Int("symbols", len(quotes)).Msg("Fetched quotes")
	return quotes, nil
}

// tradeSession walks the ledger through a representative set of trades:
// opening buys, a sell with nothing to cover, a partial profit-take, and
// a resting limit order that gets cancelled.
func tradeSession(book *ledger.Ledger, quotes map[string]ledger.Quote) error {
	for _, symbol := range sessionSymbols {
		if !quotes[symbol].Price.IsPositive() {
			return fmt.Errorf("no quote for session symbol %s", symbol)
		}
	}
	btc := quotes["BTC-USD"]
	aapl := quotes["AAPL"]
	msft := quotes["MSFT"]

	// Open a crypto position
	order, err := book.CreateOrder(ledger.OrderRequest{
		Symbol:   "BTC-USD",
		Side:     ledger.OrderSideBuy,
		Type:     ledger.OrderTypeMarket,
		Quantity: decimal.NewFromFloat(0.25),
	})
	if err != nil {
		return fmt.Errorf("failed to create BTC-USD order: %w", err)
	}
	if !book.ExecuteOrder(order.ID, btc.Price) {
		log.Warn().Str("order_id", order.ID).Msg("BTC-USD buy was rejected")
	}

	// Open a stock position
	order, err = book.CreateOrder(ledger.OrderRequest{
		Symbol:   "AAPL",
		Side:     ledger.OrderSideBuy,
		Type:     ledger.OrderTypeMarket,
		Quantity: decimal.NewFromInt(10),
	})
	if err != nil {
		return fmt.Errorf("failed to create AAPL order: %w", err)
	}
	if !book.ExecuteOrder(order.ID, aapl.Price) {
		log.Warn().Str("order_id", order.ID).Msg("AAPL buy was rejected")
	}

	// Sell a symbol the ledger never bought. The order is created fine
	// but execution rejects it, leaving cash untouched.
	order, err = book.CreateOrder(ledger.OrderRequest{
		Symbol:   "MSFT",
		Side:     ledger.OrderSideSell,
		Type:     ledger.OrderTypeMarket,
		Quantity: decimal.NewFromInt(5),
	})
	if err != nil {
		return fmt.Errorf("failed to create MSFT order: %w", err)
	}
	if !book.ExecuteOrder(order.ID, msft.Price) {
		log.Info().Str("order_id", order.ID).Msg("Uncovered sell rejected, as it should be")
	}

	// Take profit on part of the crypto position at a higher mark
	exitPrice := btc.Price.Mul(decimal.NewFromFloat(1.02))
	order, err = book.CreateOrder(ledger.OrderRequest{
		Symbol:   "BTC-USD",
		Side:     ledger.OrderSideSell,
		Type:     ledger.OrderTypeMarket,
		Quantity: decimal.NewFromFloat(0.1),
	})
	if err != nil {
		return fmt.Errorf("failed to create BTC-USD sell order: %w", err)
	}
	if !book.ExecuteOrder(order.ID, exitPrice) {
		log.Warn().Str("order_id", order.ID).Msg("BTC-USD partial sell was rejected")
	}

	// Rest a limit buy below the market, then cancel it
	limitPrice := aapl.Price.Mul(decimal.NewFromFloat(0.95))
	order, err = book.CreateOrder(ledger.OrderRequest{
		Symbol:   "AAPL",
		Side:     ledger.OrderSideBuy,
		Type:     ledger.OrderTypeLimit,
		Quantity: decimal.NewFromInt(5),
		Price:    limitPrice,
	})
	if err != nil {
		return fmt.Errorf("failed to create AAPL limit order: %w", err)
	}
	if !book.CancelOrder(order.ID) {
		log.Warn().Str("order_id", order.ID).Msg("AAPL limit order could not be cancelled")
	}

	return nil
}

// ============================================================================
// REPORT
// ============================================================================

func renderReport(book *ledger.Ledger, quotes map[string]ledger.Quote) string {
	m := book.Metrics(quotes)

	var b strings.Builder
	b.WriteString(`
================================================================================
PAPER TRADING SESSION REPORT
================================================================================

PORTFOLIO
---------
`)
	fmt.Fprintf(&b, "Total Value:      %s %s\n", m.TotalValue.StringFixed(2), book.BaseCurrency())
	for _, currency := range sortedKeys(m.CashBalances) {
		fmt.Fprintf(&b, "Cash (%s):       %s\n", currency, m.CashBalances[currency].StringFixed(2))
	}
	fmt.Fprintf(&b, "Total P&L:        %s (%s%%)\n", m.TotalPnL.StringFixed(2), m.TotalPnLPercent.StringFixed(2))
	fmt.Fprintf(&b, "Realized P&L:     %s\n", m.RealizedPnL.StringFixed(2))
	fmt.Fprintf(&b, "Unrealized P&L:   %s\n", m.UnrealizedPnL.StringFixed(2))
	fmt.Fprintf(&b, "Open Positions:   %d\n", m.PositionCount)
	fmt.Fprintf(&b, "Trades:           %d\n", m.TradeCount)

	b.WriteString("\nPOSITIONS\n---------\n")
	positionRows := book.PositionReport(quotes)
	if len(positionRows) == 0 {
		b.WriteString("(none)\n")
	} else {
		fmt.Fprintf(&b, "%-10s %-12s %12s %14s %14s %14s %14s\n",
			"SYMBOL", "CLASS", "QTY", "AVG PRICE", "PRICE", "VALUE", "UNREAL P&L")
		for _, row := range positionRows {
			fmt.Fprintf(&b, "%-10s %-12s %12s %14s %14s %14s %14s\n",
				row.Symbol, row.AssetClass, row.Quantity.String(),
				row.AvgPrice.StringFixed(2), row.CurrentPrice.StringFixed(2),
				row.MarketValue.StringFixed(2), row.UnrealizedPnL.StringFixed(2))
		}
	}

	b.WriteString("\nTRADES\n------\n")
	tradeRows := book.TradeReport()
	if len(tradeRows) == 0 {
		b.WriteString("(none)\n")
	} else {
		fmt.Fprintf(&b, "%-10s %-5s %12s %14s %12s %14s\n",
			"SYMBOL", "SIDE", "QTY", "PRICE", "FEE", "REALIZED P&L")
		for _, row := range tradeRows {
			fmt.Fprintf(&b, "%-10s %-5s %12s %14s %12s %14s\n",
				row.Symbol, strings.ToUpper(row.Side), row.Quantity.String(),
				row.Price.StringFixed(2), row.Fee.StringFixed(2), row.RealizedPnL.StringFixed(2))
		}
	}

	b.WriteString("\nORDERS\n------\n")
	orderRows := book.OrderReport()
	if len(orderRows) == 0 {
		b.WriteString("(none)\n")
	} else {
		fmt.Fprintf(&b, "%-10s %-5s %-11s %12s %14s %-10s\n",
			"SYMBOL", "SIDE", "TYPE", "QTY", "PRICE", "STATUS")
		for _, row := range orderRows {
			price := row.FilledPrice
			if price.IsZero() {
				price = row.Price
			}
			fmt.Fprintf(&b, "%-10s %-5s %-11s %12s %14s %-10s\n",
				row.Symbol, strings.ToUpper(row.Side), row.Type,
				row.Quantity.String(), price.StringFixed(2), strings.ToUpper(row.Status))
		}
	}

	fmt.Fprintf(&b, `
RISK
----
Volatility:       %.2f%%
Max Drawdown Est: %.2f%%
VaR (95%%):        %.2f%%
Concentration:    %.2f%%

PERFORMANCE
-----------
Closed Trades:    %d
Winning Trades:   %d
Win Rate:         %.2f%%
Avg Trade Return: %.2f%%
Total Fees:       %s

================================================================================
`,
		m.Risk.PortfolioVolatility*100,
		m.Risk.MaxDrawdownEstimate*100,
		m.Risk.ValueAtRisk95*100,
		m.Risk.ConcentrationRisk*100,
		m.Performance.TotalTrades,
		m.Performance.WinningTrades,
		m.Performance.WinRate,
		m.Performance.AvgTradeReturn,
		m.Performance.TotalFees.StringFixed(2),
	)

	return b.String()
}

// ============================================================================
// UTILITIES
// ============================================================================

// demoQuotes seeds the static oracle so the session runs without any
// network access.
func demoQuotes() map[string]ledger.Quote {
	now := time.Now().UTC()
	table := map[string]string{
		"BTC-USD": "45000",
		"ETH-USD": "2500",
		"AAPL":    "185.50",
		"MSFT":    "410.25",
		"SPY":     "470.80",
		"GLD":     "190.10",
	}

	quotes := make(map[string]ledger.Quote, len(table))
	for symbol, price := range table {
		p := decimal.RequireFromString(price)
		quotes[symbol] = ledger.Quote{
			Price:     p,
			Open:      p,
			High:      p,
			Low:       p,
			Timestamp: now,
		}
	}
	return quotes
}

func sortedKeys(m map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
