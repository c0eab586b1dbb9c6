package oracle

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/openfolio/papertrader/internal/ledger"
	"github.com/openfolio/papertrader/internal/metrics"
)

// Circuit breaker thresholds for the Binance API.
const (
	binanceMinRequests  = 5
	binanceFailureRatio = 0.6
	binanceOpenTimeout  = 30 * time.Second
	binanceMaxHalfOpen  = 3
	binanceCountWindow  = 10 * time.Second
)

// BinanceConfig configures the Binance oracle. Public market data needs
// no credentials; the keys are only relevant against the testnet.
type BinanceConfig struct {
	APIKey            string
	SecretKey         string
	Testnet           bool
	RequestTimeout    time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Binance resolves crypto quotes from the Binance 24h ticker endpoint.
// Directory symbols use the BASE-USD convention and are mapped to
// Binance BASEUSDT pairs; symbols with no mapping are skipped. All
// calls go through a rate limiter and a circuit breaker.
type Binance struct {
	client  *binance.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewBinance creates a Binance-backed oracle.
func NewBinance(cfg BinanceConfig) *Binance {
	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.RequestTimeout > 0 {
		client.HTTPClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	if cfg.Testnet {
		binance.UseTestnet = true
		log.Info().Msg("Binance oracle initialized (testnet)")
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "binance",
		MaxRequests: binanceMaxHalfOpen,
		Interval:    binanceCountWindow,
		Timeout:     binanceOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= binanceMinRequests && failureRatio >= binanceFailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("service", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
	})

	return &Binance{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		breaker: breaker,
	}
}

// Prices fetches 24h ticker stats for every mappable symbol. Symbols
// that fail individually are skipped with a warning; an error is
// returned only when every attempted symbol failed.
func (b *Binance) Prices(ctx context.Context, symbols []string) (map[string]ledger.Quote, error) {
	out := make(map[string]ledger.Quote, len(symbols))

	var lastErr error
	attempted := 0
	for _, symbol := range symbols {
		symbol = strings.ToUpper(symbol)
		pair, ok := binancePair(symbol)
		if !ok {
			continue
		}
		attempted++

		quote, err := b.fetch(ctx, pair)
		if err != nil {
			lastErr = err
			metrics.OracleRequests.WithLabelValues("error").Inc()
			log.Warn().
				Err(err).
				Str("symbol", symbol).
				Str("pair", pair).
				Msg("Failed to fetch quote")
			continue
		}
		out[symbol] = quote
	}

	if len(out) == 0 && lastErr != nil {
		return nil, fmt.Errorf("failed to fetch quotes: %w", lastErr)
	}
	return out, nil
}

func (b *Binance) fetch(ctx context.Context, pair string) (ledger.Quote, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return ledger.Quote{}, err
	}

	start := time.Now()
	result, err := b.breaker.Execute(func() (interface{}, error) {
		return b.client.NewListPriceChangeStatsService().Symbol(pair).Do(ctx)
	})
	metrics.OracleLatency.Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		return ledger.Quote{}, err
	}

	stats := result.([]*binance.PriceChangeStats)
	if len(stats) == 0 {
		return ledger.Quote{}, fmt.Errorf("no ticker data for %s", pair)
	}

	t := stats[0]
	return ledger.Quote{
		Price:         parseDecimal(t.LastPrice),
		Change:        parseDecimal(t.PriceChange),
		ChangePercent: parseDecimal(t.PriceChangePercent),
		Volume:        parseDecimal(t.Volume),
		High:          parseDecimal(t.HighPrice),
		Low:           parseDecimal(t.LowPrice),
		Open:          parseDecimal(t.OpenPrice),
		Timestamp:     time.Now().UTC(),
	}, nil
}

// binancePair maps a BASE-USD directory symbol to the Binance USDT
// pair. Anything else has no Binance market here.
func binancePair(symbol string) (string, bool) {
	base, ok := strings.CutSuffix(symbol, "-USD")
	if !ok || base == "" {
		return "", false
	}
	return base + "USDT", true
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateOpen:
		return 2
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 0
	}
}
