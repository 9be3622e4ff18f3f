package exchange

import (
	"context"
	"log"
	"sync"

	"github.com/adshao/go-binance/v2/common"

	"futures_bot/internal/models"
)

// Flat taker fee charged by the paper gateway when exposure is reduced.
const paperTakerFee = 0.0004

// MarketData is the read-only market surface a paper session still takes
// from a real gateway.
type MarketData interface {
	ServerTime(ctx context.Context) (int64, error)
	SymbolConstraints(ctx context.Context, symbol string) (models.SymbolConstraints, error)
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
}

// PaperGateway implements Gateway against an in-memory account while pulling
// live prices and symbol metadata from a wrapped data source. It exists so
// the whole loop can run end to end without capital at risk.
type PaperGateway struct {
	data MarketData
	mode models.PositionMode

	mu        sync.Mutex
	balance   float64
	leverage  map[string]int
	positions map[string]*paperPosition // keyed by symbol + position side
	nextID    int64
}

type paperPosition struct {
	symbol string
	side   models.PositionSide
	amount float64 // signed
	entry  float64
}

func NewPaperGateway(data MarketData, balance float64, mode models.PositionMode) *PaperGateway {
	return &PaperGateway{
		data:      data,
		mode:      mode,
		balance:   balance,
		leverage:  make(map[string]int),
		positions: make(map[string]*paperPosition),
		nextID:    1,
	}
}

func (g *PaperGateway) ServerTime(ctx context.Context) (int64, error) {
	return g.data.ServerTime(ctx)
}

func (g *PaperGateway) PositionMode(ctx context.Context) (models.PositionMode, error) {
	return g.mode, nil
}

func (g *PaperGateway) SetLeverage(ctx context.Context, symbol string, leverage int) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.leverage[symbol] = leverage
	return leverage, nil
}

func (g *PaperGateway) SymbolConstraints(ctx context.Context, symbol string) (models.SymbolConstraints, error) {
	return g.data.SymbolConstraints(ctx, symbol)
}

func (g *PaperGateway) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	return g.data.CurrentPrice(ctx, symbol)
}

func (g *PaperGateway) USDTBalance(ctx context.Context) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.balance, nil
}

func (g *PaperGateway) OpenPositions(ctx context.Context, symbol string) ([]models.Position, error) {
	price, err := g.data.CurrentPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var out []models.Position
	for _, p := range g.positions {
		if p.symbol != symbol || p.amount == 0 {
			continue
		}
		out = append(out, models.Position{
			Symbol:           p.symbol,
			Side:             p.side,
			Amount:           p.amount,
			EntryPrice:       p.entry,
			UnrealizedProfit: (price - p.entry) * p.amount,
		})
	}
	return out, nil
}

// PlaceMarketOrder fills immediately at the live price. Reduce-only orders
// that would not reduce anything are rejected with the same error code the
// real exchange uses, so the controller's abort path is exercised in paper
// runs too.
func (g *PaperGateway) PlaceMarketOrder(ctx context.Context, order models.Order) (int64, error) {
	price, err := g.data.CurrentPrice(ctx, order.Symbol)
	if err != nil {
		return 0, err
	}

	qty, _ := order.Quantity.Float64()
	delta := qty
	if order.Side == models.SideSell {
		delta = -qty
	}

	key := order.Symbol + "/" + string(models.PositionBoth)
	if g.mode == models.ModeHedge && order.PositionSide != "" {
		key = order.Symbol + "/" + string(order.PositionSide)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	pos := g.positions[key]
	if pos == nil {
		pos = &paperPosition{symbol: order.Symbol, side: order.PositionSide}
		if pos.side == "" {
			pos.side = models.PositionBoth
		}
		g.positions[key] = pos
	}

	if order.ReduceOnly {
		if pos.amount == 0 || sameSign(pos.amount, delta) {
			return 0, &common.APIError{Code: reduceOnlyRejectedCode, Message: "ReduceOnly Order is rejected."}
		}
		// Clamp so a reduce-only fill can never flip the position.
		if abs(delta) > abs(pos.amount) {
			delta = -pos.amount
		}
	}

	g.apply(pos, delta, price)

	id := g.nextID
	g.nextID++
	log.Printf("📝 paper fill #%d: %s %s %v @ %.6f (pos %.6f)", id, order.Side, order.Symbol, order.Quantity, price, pos.amount)
	return id, nil
}

// apply merges a signed fill into the position, realizing PnL and fees on
// the reduced part and re-basing the entry when the direction flips.
func (g *PaperGateway) apply(pos *paperPosition, delta, price float64) {
	if pos.amount == 0 || sameSign(pos.amount, delta) {
		total := pos.amount + delta
		if total != 0 {
			pos.entry = (pos.entry*abs(pos.amount) + price*abs(delta)) / abs(total)
		}
		pos.amount = total
		return
	}

	closed := min(abs(delta), abs(pos.amount))
	sign := 1.0
	if pos.amount < 0 {
		sign = -1.0
	}
	pnl := (price - pos.entry) * sign * closed
	fee := price * closed * paperTakerFee
	g.balance += pnl - fee

	pos.amount += delta
	if pos.amount == 0 {
		pos.entry = 0
	} else if !sameSign(pos.amount, -delta) {
		// Flipped through zero: the remainder is a fresh position.
		pos.entry = price
	}
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
