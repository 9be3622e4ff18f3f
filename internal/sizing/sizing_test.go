package sizing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures_bot/internal/models"
)

func constraints(minNotional, step float64, precision int) models.SymbolConstraints {
	return models.SymbolConstraints{
		MinNotional: decimal.NewFromFloat(minNotional),
		StepSize:    decimal.NewFromFloat(step),
		Precision:   precision,
	}
}

func TestNormalizeTruncatesDown(t *testing.T) {
	cases := []struct {
		raw, step float64
		precision int
		want      string
	}{
		{7500.9, 1, 0, "7500"},
		{7500.0, 1, 0, "7500"},
		{0.12345, 0.001, 3, "0.123"},
		{0.1239, 0.001, 3, "0.123"},
		{5, 10, 0, "0"},    // raw below step is unsizable
		{0.0004, 0.001, 3, "0"},
		{123.456, 0.5, 1, "123"},
	}
	for _, c := range cases {
		got := Normalize(decimal.NewFromFloat(c.raw), decimal.NewFromFloat(c.step), c.precision)
		assert.Equal(t, c.want, got.String(), "raw=%v step=%v", c.raw, c.step)
	}
}

func TestNormalizeNeverExceedsRawAndSnapsToStep(t *testing.T) {
	steps := []float64{1, 0.5, 0.1, 0.001}
	raws := []float64{0, 0.0007, 1, 3.3333, 99.99, 7500.9}
	for _, s := range steps {
		step := decimal.NewFromFloat(s)
		for _, r := range raws {
			raw := decimal.NewFromFloat(r)
			got := Normalize(raw, step, 3)
			assert.True(t, got.LessThanOrEqual(raw), "normalize(%v, %v) = %v exceeds raw", r, s, got)
			// Exact multiple of the step.
			rem := got.Div(step).Sub(got.Div(step).Floor())
			assert.True(t, rem.IsZero(), "normalize(%v, %v) = %v not a step multiple", r, s, got)
		}
	}
}

func TestOrderQuantityReferenceScenario(t *testing.T) {
	// balance=1000, risk=1%, leverage=75, price=0.10:
	// notionalAtRisk=10, maxNotional=750, raw=max(7500, 50)=7500.
	qty, err := OrderQuantity(0.10, 1000, 0.01, 75, constraints(5, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, "7500", qty.String())

	notional := Notional(qty, 0.10)
	assert.True(t, notional.GreaterThanOrEqual(decimal.NewFromInt(5)))
}

func TestOrderQuantityMinNotionalFloor(t *testing.T) {
	// A tiny balance still targets the exchange minimum notional.
	qty, err := OrderQuantity(0.10, 1, 0.01, 1, constraints(5, 1, 0))
	require.NoError(t, err)
	// raw = max(0.01/0.10, 5/0.10) = 50
	assert.Equal(t, "50", qty.String())
	assert.True(t, Notional(qty, 0.10).GreaterThanOrEqual(decimal.NewFromInt(5)))
}

func TestOrderQuantityNeverZero(t *testing.T) {
	// Even when everything normalizes to zero the sizer emits one lot step;
	// the loop's notional check decides whether that is tradable.
	qty, err := OrderQuantity(100000, 0.01, 0.01, 1, constraints(5, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, "1", qty.String())
}

func TestOrderQuantityRejectsBadPrice(t *testing.T) {
	_, err := OrderQuantity(0, 1000, 0.01, 75, constraints(5, 1, 0))
	assert.Error(t, err)

	_, err = OrderQuantity(-1, 1000, 0.01, 75, constraints(5, 1, 0))
	assert.Error(t, err)
}

func TestOrderQuantityFractionalStep(t *testing.T) {
	qty, err := OrderQuantity(25000, 10000, 0.02, 10, constraints(100, 0.001, 3))
	require.NoError(t, err)
	// maxNotional = 2000, raw = 0.08
	assert.Equal(t, "0.08", qty.String())
	assert.True(t, Notional(qty, 25000).GreaterThanOrEqual(decimal.NewFromInt(100)))
}
