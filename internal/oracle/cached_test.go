package oracle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfolio/papertrader/internal/ledger"
)

// fakeOracle counts upstream calls so tests can prove what the cache
// absorbed.
type fakeOracle struct {
	mu     sync.Mutex
	calls  int
	delay  time.Duration
	quotes map[string]ledger.Quote
	err    error
}

func (f *fakeOracle) Prices(_ context.Context, symbols []string) (map[string]ledger.Quote, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]ledger.Quote, len(symbols))
	for _, symbol := range symbols {
		if quote, ok := f.quotes[symbol]; ok {
			out[symbol] = quote
		}
	}
	return out, nil
}

func (f *fakeOracle) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeOracle) setQuote(symbol string, quote ledger.Quote) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes[symbol] = quote
}

func cachedFixture(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *fakeOracle, *Cached) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	fake := &fakeOracle{quotes: map[string]ledger.Quote{
		"BTC-USD": {Price: dec("45000"), Timestamp: time.Now().UTC()},
	}}
	return mr, fake, NewCached(fake, client, ttl)
}

func TestCachedServesFromRedis(t *testing.T) {
	_, fake, cached := cachedFixture(t, time.Minute)
	ctx := context.Background()

	quotes, err := cached.Prices(ctx, []string{"BTC-USD"})
	require.NoError(t, err)
	assert.True(t, quotes["BTC-USD"].Price.Equal(dec("45000")))
	assert.Equal(t, 1, fake.callCount())

	// Upstream moves, but the cache still serves the stored quote.
	fake.setQuote("BTC-USD", ledger.Quote{Price: dec("99999")})

	quotes, err = cached.Prices(ctx, []string{"btc-usd"})
	require.NoError(t, err)
	assert.True(t, quotes["BTC-USD"].Price.Equal(dec("45000")))
	assert.Equal(t, 1, fake.callCount(), "second lookup must not reach upstream")
}

func TestCachedExpiry(t *testing.T) {
	mr, fake, cached := cachedFixture(t, time.Minute)
	ctx := context.Background()

	_, err := cached.Prices(ctx, []string{"BTC-USD"})
	require.NoError(t, err)
	require.Equal(t, 1, fake.callCount())

	mr.FastForward(2 * time.Minute)

	_, err = cached.Prices(ctx, []string{"BTC-USD"})
	require.NoError(t, err)
	assert.Equal(t, 2, fake.callCount(), "expired entries refetch")
}

func TestCachedCorruptEntryRefetches(t *testing.T) {
	mr, fake, cached := cachedFixture(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, mr.Set("papertrader:quote:BTC-USD", "{not json"))

	quotes, err := cached.Prices(ctx, []string{"BTC-USD"})
	require.NoError(t, err)
	assert.True(t, quotes["BTC-USD"].Price.Equal(dec("45000")))
	assert.Equal(t, 1, fake.callCount(), "corrupt entry counts as a miss")
}

func TestCachedNilClientPassthrough(t *testing.T) {
	fake := &fakeOracle{quotes: map[string]ledger.Quote{
		"BTC-USD": {Price: dec("45000")},
	}}
	cached := NewCached(fake, nil, time.Minute)

	for i := 0; i < 3; i++ {
		quotes, err := cached.Prices(context.Background(), []string{"BTC-USD"})
		require.NoError(t, err)
		assert.True(t, quotes["BTC-USD"].Price.Equal(dec("45000")))
	}
	assert.Equal(t, 3, fake.callCount(), "nil client means every call goes upstream")
}

func TestCachedUnknownSymbolNotCached(t *testing.T) {
	_, fake, cached := cachedFixture(t, time.Minute)
	ctx := context.Background()

	quotes, err := cached.Prices(ctx, []string{"MYSTERY"})
	require.NoError(t, err)
	assert.Empty(t, quotes)

	_, err = cached.Prices(ctx, []string{"MYSTERY"})
	require.NoError(t, err)
	assert.Equal(t, 2, fake.callCount(), "absent quotes are never cached")
}

func TestCachedInnerError(t *testing.T) {
	_, fake, cached := cachedFixture(t, time.Minute)
	fake.err = errors.New("exchange unreachable")

	_, err := cached.Prices(context.Background(), []string{"BTC-USD"})
	assert.Error(t, err)
}

func TestCachedSingleFlight(t *testing.T) {
	_, fake, cached := cachedFixture(t, time.Minute)
	fake.delay = 50 * time.Millisecond

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			quotes, err := cached.Prices(context.Background(), []string{"BTC-USD"})
			assert.NoError(t, err)
			assert.Len(t, quotes, 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, fake.callCount(), "concurrent misses share one upstream fetch")
}
