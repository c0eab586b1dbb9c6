package metrics

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewPoller(t *testing.T) {
	interval := 10 * time.Second
	poller := NewPoller(func(ctx context.Context) (Sample, error) {
		return Sample{}, nil
	}, interval)

	assert.NotNil(t, poller)
	assert.Equal(t, interval, poller.interval)
	assert.NotNil(t, poller.stopCh)
}

func TestPoller_Stop(t *testing.T) {
	poller := NewPoller(func(ctx context.Context) (Sample, error) {
		return Sample{}, nil
	}, time.Second)

	// Stop should not panic
	assert.NotPanics(t, func() {
		poller.Stop()
	})

	// Channel should be closed
	_, ok := <-poller.stopCh
	assert.False(t, ok, "stopCh should be closed")
}

func TestPoller_UpdatesGauges(t *testing.T) {
	sample := Sample{
		PortfolioValue: 105250.75,
		UnrealizedPnL:  1250.25,
		OpenPositions:  2,
		CashBalances:   map[string]float64{"USD": 95000.5, "EUR": 200},
	}
	poller := NewPoller(func(ctx context.Context) (Sample, error) {
		return sample, nil
	}, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan bool)
	go func() {
		poller.Start(ctx)
		done <- true
	}()

	// Let it run for a few ticks
	time.Sleep(50 * time.Millisecond)
	poller.Stop()

	select {
	case <-done:
		// Success
	case <-time.After(2 * time.Second):
		t.Fatal("Poller did not stop in time")
	}

	assert.Equal(t, 105250.75, testutil.ToFloat64(PortfolioValue))
	assert.Equal(t, 1250.25, testutil.ToFloat64(UnrealizedPnL))
	assert.Equal(t, 2.0, testutil.ToFloat64(OpenPositions))
	assert.Equal(t, 95000.5, testutil.ToFloat64(CashBalance.WithLabelValues("USD")))
	assert.Equal(t, 200.0, testutil.ToFloat64(CashBalance.WithLabelValues("EUR")))
}

func TestPoller_ImmediateUpdate(t *testing.T) {
	var calls atomic.Int64
	poller := NewPoller(func(ctx context.Context) (Sample, error) {
		calls.Add(1)
		return Sample{PortfolioValue: 42}, nil
	}, 10*time.Second) // Long interval

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan bool)
	go func() {
		poller.Start(ctx)
		done <- true
	}()

	// The first update happens on entry, not after the first tick.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, 42.0, testutil.ToFloat64(PortfolioValue))

	cancel()

	select {
	case <-done:
		// Success
	case <-time.After(2 * time.Second):
		t.Fatal("Poller did not stop when context was cancelled")
	}
}

func TestPoller_SampleErrorLeavesGauges(t *testing.T) {
	PortfolioValue.Set(7777)

	poller := NewPoller(func(ctx context.Context) (Sample, error) {
		return Sample{}, errors.New("pricing unavailable")
	}, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan bool)
	go func() {
		poller.Start(ctx)
		done <- true
	}()

	time.Sleep(50 * time.Millisecond)
	poller.Stop()

	select {
	case <-done:
		// Success
	case <-time.After(2 * time.Second):
		t.Fatal("Poller did not stop in time")
	}

	// Failed samples are logged and skipped, not written as zeros.
	assert.Equal(t, 7777.0, testutil.ToFloat64(PortfolioValue))
}

func TestPoller_MultipleStops(t *testing.T) {
	poller := NewPoller(func(ctx context.Context) (Sample, error) {
		return Sample{}, nil
	}, time.Second)

	// First stop should work
	assert.NotPanics(t, func() {
		poller.Stop()
	})

	// Second stop should panic (closing closed channel)
	// This is expected behavior in Go
	assert.Panics(t, func() {
		poller.Stop()
	})
}
