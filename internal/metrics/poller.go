package metrics

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Sample is one observation of portfolio state, produced by the caller's
// SampleFunc and written to the portfolio gauges.
type Sample struct {
	PortfolioValue float64
	UnrealizedPnL  float64
	OpenPositions  int
	CashBalances   map[string]float64
}

// SampleFunc produces the current portfolio sample. It runs outside the
// ledger's critical section on the poller goroutine.
type SampleFunc func(ctx context.Context) (Sample, error)

// Poller periodically samples portfolio state into the Prometheus gauges.
type Poller struct {
	sample   SampleFunc
	interval time.Duration
	stopCh   chan struct{}
}

// NewPoller creates a poller with the given sampling interval.
func NewPoller(sample SampleFunc, interval time.Duration) *Poller {
	return &Poller{
		sample:   sample,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the polling loop. It blocks until Stop is called or the
// context is cancelled, updating immediately on entry.
func (p *Poller) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.update(ctx)

	for {
		select {
		case <-ticker.C:
			p.update(ctx)
		case <-p.stopCh:
			log.Info().Msg("Metrics poller stopped")
			return
		case <-ctx.Done():
			log.Info().Msg("Metrics poller context cancelled")
			return
		}
	}
}

// Stop stops the polling loop.
func (p *Poller) Stop() {
	close(p.stopCh)
}

func (p *Poller) update(ctx context.Context) {
	sample, err := p.sample(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to sample portfolio state")
		return
	}

	PortfolioValue.Set(sample.PortfolioValue)
	UnrealizedPnL.Set(sample.UnrealizedPnL)
	OpenPositions.Set(float64(sample.OpenPositions))
	for currency, balance := range sample.CashBalances {
		CashBalance.WithLabelValues(currency).Set(balance)
	}

	log.Debug().Msg("Portfolio metrics updated")
}
