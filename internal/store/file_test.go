package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfolio/papertrader/internal/ledger"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// sessionSnapshot runs a short trading session and captures its state.
// The clock truncates to microseconds so timestamps survive a trip
// through TIMESTAMPTZ columns unchanged.
func sessionSnapshot(t *testing.T) *ledger.Snapshot {
	t.Helper()

	l, err := ledger.New(ledger.Options{
		InitialBalance: dec("25000"),
		Clock:          func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	})
	require.NoError(t, err)

	buy, err := l.CreateOrder(ledger.OrderRequest{
		Symbol:   "BTC-USD",
		Side:     ledger.OrderSideBuy,
		Type:     ledger.OrderTypeMarket,
		Quantity: dec("0.2"),
	})
	require.NoError(t, err)
	require.True(t, l.ExecuteOrder(buy.ID, dec("45000")))

	sell, err := l.CreateOrder(ledger.OrderRequest{
		Symbol:   "BTC-USD",
		Side:     ledger.OrderSideSell,
		Type:     ledger.OrderTypeMarket,
		Quantity: dec("0.1"),
	})
	require.NoError(t, err)
	require.True(t, l.ExecuteOrder(sell.ID, dec("46000")))

	_, err = l.CreateOrder(ledger.OrderRequest{
		Symbol:   "AAPL",
		Side:     ledger.OrderSideBuy,
		Type:     ledger.OrderTypeLimit,
		Quantity: dec("10"),
		Price:    dec("180"),
	})
	require.NoError(t, err)

	return l.Snapshot()
}

// snapshotJSON marshals a snapshot for JSONEq comparisons.
func snapshotJSON(t *testing.T, snap *ledger.Snapshot) string {
	t.Helper()
	data, err := json.Marshal(snap)
	require.NoError(t, err)
	return string(data)
}

func TestFileStoreRoundTrip(t *testing.T) {
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "snapshot.json"))
	require.NoError(t, err)
	defer fs.Close()

	snap := sessionSnapshot(t)
	require.NoError(t, fs.Save(context.Background(), snap))

	loaded, err := fs.Load(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, snapshotJSON(t, snap), snapshotJSON(t, loaded))

	// The loaded snapshot restores into a working ledger.
	fresh, err := ledger.New(ledger.Options{InitialBalance: dec("1")})
	require.NoError(t, err)
	require.NoError(t, fresh.Restore(loaded))
	assert.True(t, fresh.CashBalance("USD").Equal(snap.CashBalances["USD"]))
}

func TestFileStoreLoadMissing(t *testing.T) {
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	_, err = fs.Load(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreCorruptJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	fs, err := NewFileStore(path)
	require.NoError(t, err)

	_, err = fs.Load(context.Background())
	assert.ErrorIs(t, err, ledger.ErrCorruptState)
}

func TestFileStoreInvalidSnapshot(t *testing.T) {
	snap := sessionSnapshot(t)
	snap.BaseCurrency = ""
	data, err := json.Marshal(snap)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	fs, err := NewFileStore(path)
	require.NoError(t, err)

	_, err = fs.Load(context.Background())
	assert.ErrorIs(t, err, ledger.ErrCorruptState)
}

func TestFileStoreOverwrite(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(filepath.Join(dir, "snapshot.json"))
	require.NoError(t, err)

	require.NoError(t, fs.Save(context.Background(), sessionSnapshot(t)))

	// Counters may run ahead of recorded ids, so bumping one is a cheap
	// way to make the second save distinguishable.
	second := sessionSnapshot(t)
	second.OrderCounter = 50
	require.NoError(t, fs.Save(context.Background(), second))

	loaded, err := fs.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(50), loaded.OrderCounter)

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStoreCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "ledgers", "snapshot.json")
	fs, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, fs.Save(context.Background(), sessionSnapshot(t)))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestNewFileStoreRequiresPath(t *testing.T) {
	_, err := NewFileStore("")
	assert.Error(t, err)
}
