package fx

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParity(t *testing.T) {
	var src RateSource = Parity{}

	r, ok := src.Rate("USD", "EUR")
	require.True(t, ok)
	assert.True(t, r.Equal(decimal.NewFromInt(1)))

	r, ok = src.Rate("JPY", "JPY")
	require.True(t, ok)
	assert.True(t, r.Equal(decimal.NewFromInt(1)))
}

func TestStaticRates(t *testing.T) {
	src := NewStaticRates(map[string]decimal.Decimal{
		"EUR/USD": decimal.RequireFromString("1.10"),
		"USD/JPY": decimal.RequireFromString("150"),
	})

	r, ok := src.Rate("EUR", "USD")
	require.True(t, ok)
	assert.True(t, r.Equal(decimal.RequireFromString("1.10")))

	// Inverse pair is derived
	r, ok = src.Rate("USD", "EUR")
	require.True(t, ok)
	assert.True(t, r.Round(6).Equal(decimal.RequireFromString("0.909091")))

	// Same currency short-circuits
	r, ok = src.Rate("GBP", "GBP")
	require.True(t, ok)
	assert.True(t, r.Equal(decimal.NewFromInt(1)))

	// Unknown pair
	_, ok = src.Rate("GBP", "CHF")
	assert.False(t, ok)
}
