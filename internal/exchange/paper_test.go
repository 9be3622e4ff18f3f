package exchange

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures_bot/internal/models"
)

// stubData serves a controllable price.
type stubData struct {
	price float64
}

func (s *stubData) ServerTime(ctx context.Context) (int64, error) {
	return time.Now().UnixMilli(), nil
}

func (s *stubData) SymbolConstraints(ctx context.Context, symbol string) (models.SymbolConstraints, error) {
	return defaultConstraints(), nil
}

func (s *stubData) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	return s.price, nil
}

func marketOrder(side models.Side, qty float64, reduceOnly bool) models.Order {
	return models.Order{
		Symbol:     "DOGEUSDT",
		Side:       side,
		Quantity:   decimal.NewFromFloat(qty),
		ReduceOnly: reduceOnly,
	}
}

func TestPaperOpenAndReadBack(t *testing.T) {
	ctx := context.Background()
	data := &stubData{price: 0.10}
	g := NewPaperGateway(data, 5000, models.ModeOneWay)

	id, err := g.PlaceMarketOrder(ctx, marketOrder(models.SideBuy, 7500, false))
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	data.price = 0.11
	positions, err := g.OpenPositions(ctx, "DOGEUSDT")
	require.NoError(t, err)
	require.Len(t, positions, 1)

	p := positions[0]
	assert.Equal(t, 7500.0, p.Amount)
	assert.Equal(t, 0.10, p.EntryPrice)
	assert.InDelta(t, 75.0, p.UnrealizedProfit, 1e-9) // (0.11-0.10)*7500
}

func TestPaperReduceOnlyCloseRealizesPnL(t *testing.T) {
	ctx := context.Background()
	data := &stubData{price: 0.10}
	g := NewPaperGateway(data, 5000, models.ModeOneWay)

	_, err := g.PlaceMarketOrder(ctx, marketOrder(models.SideBuy, 7500, false))
	require.NoError(t, err)

	data.price = 0.11
	_, err = g.PlaceMarketOrder(ctx, marketOrder(models.SideSell, 7500, true))
	require.NoError(t, err)

	positions, err := g.OpenPositions(ctx, "DOGEUSDT")
	require.NoError(t, err)
	assert.Empty(t, positions) // zero-amount rows are filtered

	balance, err := g.USDTBalance(ctx)
	require.NoError(t, err)
	fee := 0.11 * 7500 * paperTakerFee
	assert.InDelta(t, 5000+75-fee, balance, 1e-9)
}

func TestPaperReduceOnlyOnFlatIsRejected(t *testing.T) {
	ctx := context.Background()
	g := NewPaperGateway(&stubData{price: 0.10}, 5000, models.ModeOneWay)

	_, err := g.PlaceMarketOrder(ctx, marketOrder(models.SideSell, 100, true))
	require.Error(t, err)
	assert.True(t, IsReduceOnlyRejected(err))
}

func TestPaperReduceOnlyNeverFlips(t *testing.T) {
	ctx := context.Background()
	data := &stubData{price: 0.10}
	g := NewPaperGateway(data, 5000, models.ModeOneWay)

	_, err := g.PlaceMarketOrder(ctx, marketOrder(models.SideBuy, 100, false))
	require.NoError(t, err)

	// Oversized reduce-only clamps at flat instead of going short.
	_, err = g.PlaceMarketOrder(ctx, marketOrder(models.SideSell, 500, true))
	require.NoError(t, err)

	positions, err := g.OpenPositions(ctx, "DOGEUSDT")
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestPaperHedgeModeKeepsSidesSeparate(t *testing.T) {
	ctx := context.Background()
	data := &stubData{price: 0.10}
	g := NewPaperGateway(data, 5000, models.ModeHedge)

	long := marketOrder(models.SideBuy, 100, false)
	long.PositionSide = models.PositionLong
	short := marketOrder(models.SideSell, 200, false)
	short.PositionSide = models.PositionShort

	_, err := g.PlaceMarketOrder(ctx, long)
	require.NoError(t, err)
	_, err = g.PlaceMarketOrder(ctx, short)
	require.NoError(t, err)

	positions, err := g.OpenPositions(ctx, "DOGEUSDT")
	require.NoError(t, err)
	require.Len(t, positions, 2)

	bySide := map[models.PositionSide]models.Position{}
	for _, p := range positions {
		bySide[p.Side] = p
	}
	assert.Equal(t, 100.0, bySide[models.PositionLong].Amount)
	assert.Equal(t, -200.0, bySide[models.PositionShort].Amount)
}

func TestPaperLeverageAndMode(t *testing.T) {
	ctx := context.Background()
	g := NewPaperGateway(&stubData{price: 0.10}, 5000, models.ModeHedge)

	lev, err := g.SetLeverage(ctx, "DOGEUSDT", 75)
	require.NoError(t, err)
	assert.Equal(t, 75, lev)

	mode, err := g.PositionMode(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ModeHedge, mode)
}
