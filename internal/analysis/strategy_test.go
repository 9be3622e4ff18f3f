package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures_bot/internal/models"
)

var testParams = Params{
	Leverage:     75,
	ProfitTarget: 6.0,
	StopLoss:     -3.0,
	PriceTrigger: 0.05,
}

func TestDecideOpensLongAboveAverage(t *testing.T) {
	// average=0.1000, price 0.06% above -> breakout long.
	actions := Decide(nil, 0.10006, 0.1000, testParams)
	require.Len(t, actions, 1)

	a := actions[0]
	assert.Equal(t, ActionOpen, a.Type)
	assert.Equal(t, models.SideBuy, a.Side)
	assert.Equal(t, models.PositionLong, a.PositionSide)
	assert.InDelta(t, 0.06, a.Deviation, 1e-9)
}

func TestDecideOpensShortBelowAverage(t *testing.T) {
	actions := Decide(nil, 0.09994, 0.1000, testParams)
	require.Len(t, actions, 1)
	assert.Equal(t, models.SideSell, actions[0].Side)
	assert.Equal(t, models.PositionShort, actions[0].PositionSide)
}

func TestDecideHoldsInsideTrigger(t *testing.T) {
	assert.Empty(t, Decide(nil, 0.10004, 0.1000, testParams)) // 0.04% < 0.05%
	assert.Empty(t, Decide(nil, 0.1000, 0.1000, testParams))
	assert.Empty(t, Decide(nil, 0.1, 0, testParams)) // no average yet
}

func TestDecideClosesAtProfitTarget(t *testing.T) {
	// entry 0.10, amount 7500, leverage 75 -> initial margin 10.
	// unrealized +6 -> 60% of margin, far past the 6% target.
	pos := models.Position{
		Symbol:           "DOGEUSDT",
		Side:             models.PositionLong,
		Amount:           7500,
		EntryPrice:       0.10,
		UnrealizedProfit: 6,
	}
	actions := Decide([]models.Position{pos}, 0.1008, 0.1, testParams)
	require.Len(t, actions, 1)

	a := actions[0]
	assert.Equal(t, ActionClose, a.Type)
	assert.Equal(t, models.SideSell, a.Side)
	assert.Equal(t, models.CloseReasonTakeProfit, a.Reason)
	assert.InDelta(t, 60.0, a.PnLPercent, 1e-9)
}

func TestDecideClosesShortAtStopLoss(t *testing.T) {
	pos := models.Position{
		Symbol:           "DOGEUSDT",
		Side:             models.PositionShort,
		Amount:           -7500,
		EntryPrice:       0.10,
		UnrealizedProfit: -0.4, // -4% of the 10 USDT margin
	}
	actions := Decide([]models.Position{pos}, 0.1008, 0.1, testParams)
	require.Len(t, actions, 1)

	a := actions[0]
	assert.Equal(t, models.SideBuy, a.Side) // offsetting a short buys back
	assert.Equal(t, models.CloseReasonStopLoss, a.Reason)
}

func TestDecideHoldsInsideThresholds(t *testing.T) {
	pos := models.Position{
		Symbol:           "DOGEUSDT",
		Side:             models.PositionLong,
		Amount:           7500,
		EntryPrice:       0.10,
		UnrealizedProfit: 0.2, // +2%, inside (-3%, +6%)
	}
	assert.Empty(t, Decide([]models.Position{pos}, 0.2, 0.1, testParams))
}

func TestDecideSkipsZeroMarginPosition(t *testing.T) {
	pos := models.Position{
		Symbol:           "DOGEUSDT",
		Side:             models.PositionLong,
		Amount:           7500,
		EntryPrice:       0, // corrupt snapshot
		UnrealizedProfit: 100,
	}
	assert.NotPanics(t, func() {
		assert.Empty(t, Decide([]models.Position{pos}, 0.1, 0.1, testParams))
	})
}

func TestDecideEvaluatesHedgeSidesIndependently(t *testing.T) {
	long := models.Position{
		Symbol: "DOGEUSDT", Side: models.PositionLong,
		Amount: 7500, EntryPrice: 0.10, UnrealizedProfit: 6, // closes
	}
	short := models.Position{
		Symbol: "DOGEUSDT", Side: models.PositionShort,
		Amount: -7500, EntryPrice: 0.10, UnrealizedProfit: 0, // holds
	}
	actions := Decide([]models.Position{long, short}, 0.1008, 0.1, testParams)
	require.Len(t, actions, 1)
	assert.Equal(t, models.PositionLong, actions[0].PositionSide)
}

func TestDecideNeverOpensWhilePositioned(t *testing.T) {
	pos := models.Position{
		Symbol: "DOGEUSDT", Side: models.PositionLong,
		Amount: 7500, EntryPrice: 0.10, UnrealizedProfit: 0.2,
	}
	// Massive deviation, but an open position means no entries this tick.
	actions := Decide([]models.Position{pos}, 0.2, 0.1, testParams)
	assert.Empty(t, actions)
}
