package oracle

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/openfolio/papertrader/internal/ledger"
	"github.com/openfolio/papertrader/internal/metrics"
)

const (
	cacheKeyPrefix  = "papertrader:quote:"
	cacheOpTimeout  = 500 * time.Millisecond
	defaultQuoteTTL = 15 * time.Second
)

// Cached decorates an oracle with a Redis quote cache. Lookups hit
// Redis first; the remaining symbols go to the wrapped oracle in a
// single flight and fill the cache. A nil Redis client makes the
// decorator a passthrough, and any cache error degrades to a miss
// rather than failing the call.
type Cached struct {
	inner  PriceOracle
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewCached wraps an oracle with a Redis cache.
func NewCached(inner PriceOracle, client *redis.Client, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = defaultQuoteTTL
	}
	return &Cached{inner: inner, client: client, ttl: ttl}
}

// Prices serves as many symbols as possible from cache and fetches the
// rest through the wrapped oracle.
func (c *Cached) Prices(ctx context.Context, symbols []string) (map[string]ledger.Quote, error) {
	if c.client == nil {
		return c.inner.Prices(ctx, symbols)
	}

	out := make(map[string]ledger.Quote, len(symbols))
	missing := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		symbol = strings.ToUpper(symbol)
		if quote, ok := c.get(ctx, symbol); ok {
			metrics.OracleRequests.WithLabelValues("hit").Inc()
			out[symbol] = quote
			continue
		}
		metrics.OracleRequests.WithLabelValues("miss").Inc()
		missing = append(missing, symbol)
	}
	if len(missing) == 0 {
		return out, nil
	}

	// Concurrent pollers asking for the same missing set share one
	// upstream fetch.
	sort.Strings(missing)
	fetched, err, _ := c.group.Do(strings.Join(missing, ","), func() (interface{}, error) {
		quotes, err := c.inner.Prices(ctx, missing)
		if err != nil {
			return nil, err
		}
		for symbol, quote := range quotes {
			c.put(ctx, symbol, quote)
		}
		return quotes, nil
	})
	if err != nil {
		return nil, err
	}

	for symbol, quote := range fetched.(map[string]ledger.Quote) {
		out[symbol] = quote
	}
	return out, nil
}

func (c *Cached) get(ctx context.Context, symbol string) (ledger.Quote, bool) {
	cacheCtx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()

	data, err := c.client.Get(cacheCtx, cacheKeyPrefix+symbol).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Debug().
				Err(err).
				Str("symbol", symbol).
				Msg("Quote cache read failed, treating as miss")
		}
		return ledger.Quote{}, false
	}

	var quote ledger.Quote
	if err := json.Unmarshal(data, &quote); err != nil {
		log.Warn().
			Err(err).
			Str("symbol", symbol).
			Msg("Failed to unmarshal cached quote")
		return ledger.Quote{}, false
	}
	return quote, true
}

func (c *Cached) put(ctx context.Context, symbol string, quote ledger.Quote) {
	data, err := json.Marshal(quote)
	if err != nil {
		return
	}

	cacheCtx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()

	if err := c.client.Set(cacheCtx, cacheKeyPrefix+symbol, data, c.ttl).Err(); err != nil {
		log.Debug().
			Err(err).
			Str("symbol", symbol).
			Msg("Failed to cache quote")
	}
}
