package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	"github.com/shopspring/decimal"

	"futures_bot/config"
	"futures_bot/internal/analysis"
	"futures_bot/internal/exchange"
	"futures_bot/internal/models"
	"futures_bot/internal/sizing"
)

// Engine drives the trading loop for one symbol: poll price, derive state
// from the gateway, decide, size, execute. Single-threaded: every gateway
// call blocks the loop, so within a tick reads always happen before the
// decision and the decision before any order.
type Engine struct {
	gw          exchange.Gateway
	cfg         *config.Config
	history     *analysis.PriceHistory
	constraints models.SymbolConstraints

	mu          sync.RWMutex
	running     bool
	stop        context.CancelFunc
	startedAt   time.Time
	lastPrice   float64
	lastAverage float64
	trades      []models.Trade

	onOpen  func(models.Order, float64)
	onClose func(models.Trade)
}

func New(gw exchange.Gateway, cfg *config.Config) *Engine {
	return &Engine{
		gw:      gw,
		cfg:     cfg,
		history: analysis.NewPriceHistory(cfg.HistorySize),
	}
}

// SetCallbacks registers trade notifications (nil disables them).
func (e *Engine) SetCallbacks(onOpen func(models.Order, float64), onClose func(models.Trade)) {
	e.onOpen = onOpen
	e.onClose = onClose
}

// Stop cancels a running monitoring loop. Run then returns nil, the same as
// an external context cancellation. No-op when the loop is not running.
func (e *Engine) Stop() {
	e.mu.Lock()
	stop := e.stop
	e.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// Run executes the monitoring loop until ctx is cancelled or an
// unrecoverable error occurs. A close failure after the full retry budget is
// terminal: running on with a position the loop cannot manage is worse than
// stopping. Run returns rather than exiting so the embedding application can
// supervise it.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.startup(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.mu.Lock()
	e.running = true
	e.stop = cancel
	e.startedAt = time.Now()
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.running = false
		e.stop = nil
		e.mu.Unlock()
	}()

	log.Printf("🚀 monitoring %s every %s", e.cfg.Symbol, e.cfg.PollInterval)

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("⏸️ monitoring loop stopped")
			return nil
		case <-ticker.C:
			if err := e.tick(ctx); err != nil {
				return err
			}
		}
	}
}

// startup resolves the account mode, applies leverage and fetches the symbol
// filters. All three are preconditions for safe order placement, so any
// failure here aborts the strategy.
func (e *Engine) startup(ctx context.Context) error {
	if st, err := e.gw.ServerTime(ctx); err != nil {
		log.Printf("⚠️ server time check failed: %v", err)
	} else {
		drift := time.Now().UnixMilli() - st
		log.Printf("🕐 exchange clock drift: %dms", drift)
	}

	mode, err := e.gw.PositionMode(ctx)
	if err != nil {
		return fmt.Errorf("cannot resolve position mode: %w", err)
	}
	log.Printf("ℹ️ account position mode: %s", mode)

	lev, err := e.gw.SetLeverage(ctx, e.cfg.Symbol, e.cfg.Leverage)
	if err != nil {
		return err
	}
	log.Printf("ℹ️ leverage set to %dx on %s", lev, e.cfg.Symbol)

	c, err := e.gw.SymbolConstraints(ctx, e.cfg.Symbol)
	if err != nil {
		return fmt.Errorf("cannot fetch symbol constraints: %w", err)
	}
	e.constraints = c
	log.Printf("ℹ️ %s filters: minNotional=%v step=%v precision=%d",
		e.cfg.Symbol, c.MinNotional, c.StepSize, c.Precision)
	return nil
}

// tick runs one polling cycle. Only a failed close is returned as an error;
// everything else logs and lets the next tick retry.
func (e *Engine) tick(ctx context.Context) error {
	price, err := e.gw.CurrentPrice(ctx, e.cfg.Symbol)
	if err != nil {
		log.Printf("⚠️ price fetch failed: %v", err)
		return nil
	}

	e.history.Push(price)
	average := e.history.Average()

	e.mu.Lock()
	e.lastPrice = price
	e.lastAverage = average
	e.mu.Unlock()

	positions, err := e.gw.OpenPositions(ctx, e.cfg.Symbol)
	if err != nil {
		log.Printf("⚠️ position fetch failed: %v", err)
		return nil
	}

	actions := analysis.Decide(positions, price, average, e.params())
	if len(actions) == 0 {
		return nil
	}

	// One mode lookup per decision cycle; every order this tick reuses it.
	mode, err := e.gw.PositionMode(ctx)
	if err != nil {
		log.Printf("⚠️ cannot resolve position mode, skipping tick: %v", err)
		return nil
	}

	for _, a := range actions {
		switch a.Type {
		case analysis.ActionClose:
			if err := e.closePosition(ctx, a, mode, price); err != nil {
				return fmt.Errorf("cannot close %s position, refusing to continue: %w",
					a.Position.Side, err)
			}
		case analysis.ActionOpen:
			e.openPosition(ctx, a, mode, price)
		}
	}
	return nil
}

func (e *Engine) params() analysis.Params {
	return analysis.Params{
		Leverage:     e.cfg.Leverage,
		ProfitTarget: e.cfg.ProfitTarget,
		StopLoss:     e.cfg.StopLoss,
		PriceTrigger: e.cfg.PriceTrigger,
	}
}

// openPosition sizes and places an entry order. Failures are logged and
// dropped: capital was never at risk, the next tick gets a fresh chance.
func (e *Engine) openPosition(ctx context.Context, a analysis.Action, mode models.PositionMode, price float64) {
	balance, err := e.gw.USDTBalance(ctx)
	if err != nil {
		log.Printf("⚠️ balance fetch failed: %v", err)
		return
	}

	qty, err := sizing.OrderQuantity(price, balance, e.cfg.RiskFraction, e.cfg.Leverage, e.constraints)
	if err != nil {
		log.Printf("⚠️ sizing failed: %v", err)
		return
	}

	notional := sizing.Notional(qty, price)
	if notional.LessThan(e.constraints.MinNotional) {
		log.Printf("⚠️ notional %v below minimum %v, skipping entry", notional, e.constraints.MinNotional)
		return
	}

	order := models.Order{
		Symbol:   e.cfg.Symbol,
		Side:     a.Side,
		Quantity: qty,
	}
	if mode == models.ModeHedge {
		order.PositionSide = a.PositionSide
	}

	log.Printf("📈 deviation %+.3f%% vs average, opening %s %s qty=%v notional=%v",
		a.Deviation, a.PositionSide, e.cfg.Symbol, qty, notional)

	id, err := e.placeMarketOrder(ctx, order, mode, e.cfg.OpenRetries)
	if err != nil {
		log.Printf("❌ entry failed: %v", err)
		return
	}

	log.Printf("✅ opened %s %s at ~%v (order %d)", a.PositionSide, e.cfg.Symbol, price, id)
	if e.onOpen != nil {
		e.onOpen(order, price)
	}
}

// closePosition places the offsetting order for one position. Any error,
// whether a spent retry budget or a non-retryable rejection, is returned
// and ends the loop.
func (e *Engine) closePosition(ctx context.Context, a analysis.Action, mode models.PositionMode, price float64) error {
	pos := a.Position

	amt := pos.Amount
	if amt < 0 {
		amt = -amt
	}
	qty := sizing.Normalize(decimal.NewFromFloat(amt), e.constraints.StepSize, e.constraints.Precision)
	if qty.Sign() <= 0 {
		return fmt.Errorf("position amount %v normalizes to zero, cannot offset", pos.Amount)
	}

	order := models.Order{
		Symbol:   e.cfg.Symbol,
		Side:     a.Side,
		Quantity: qty,
	}
	if mode == models.ModeHedge {
		order.PositionSide = pos.Side
	} else {
		order.ReduceOnly = true
	}

	log.Printf("🎯 pnl %+.2f%% of margin (%s), closing %s %s qty=%v",
		a.PnLPercent, a.Reason, pos.Side, e.cfg.Symbol, qty)

	id, err := e.placeMarketOrder(ctx, order, mode, e.cfg.CloseRetries)
	if err != nil {
		return err
	}

	trade := models.Trade{
		Symbol:      pos.Symbol,
		Side:        pos.Side,
		Amount:      pos.Amount,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   price,
		RealizedPL:  pos.UnrealizedProfit,
		PnLPercent:  a.PnLPercent,
		CloseReason: a.Reason,
		ClosedAt:    time.Now(),
	}
	e.mu.Lock()
	e.trades = append(e.trades, trade)
	e.mu.Unlock()

	// A closed trade starts a fresh observation window.
	e.history.Reset()

	log.Printf("✅ closed %s %s: %+.2f USDT (%+.2f%%, %s, order %d)",
		pos.Side, pos.Symbol, trade.RealizedPL, trade.PnLPercent, trade.CloseReason, id)
	if e.onClose != nil {
		e.onClose(trade)
	}
	return nil
}

// placeMarketOrder is the execution controller: bounded attempts with fixed
// spacing, mode-shaped parameters, fresh client order ID per attempt so the
// exchange can distinguish retries. A reduce-only rejection aborts without
// consuming the remaining budget: the position likely changed under us and
// blind retries could double exposure. Every other rejection and transport
// error retries until the budget is spent.
func (e *Engine) placeMarketOrder(ctx context.Context, order models.Order, mode models.PositionMode, attempts int) (int64, error) {
	if mode == models.ModeHedge {
		order.ReduceOnly = false
	} else {
		order.PositionSide = ""
	}

	delay := &backoff.Backoff{
		Min:    e.cfg.RetryDelay,
		Max:    e.cfg.RetryDelay,
		Factor: 1,
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		order.ClientOrderID = uuid.NewString()

		id, err := e.gw.PlaceMarketOrder(ctx, order)
		if err == nil {
			return id, nil
		}
		lastErr = err

		if exchange.IsReduceOnlyRejected(err) {
			return 0, fmt.Errorf("reduce-only order rejected (side=%s qty=%v): %w",
				order.Side, order.Quantity, err)
		}

		log.Printf("⚠️ order attempt %d/%d failed (side=%s qty=%v reduceOnly=%v positionSide=%q): %v",
			attempt, attempts, order.Side, order.Quantity, order.ReduceOnly, order.PositionSide, err)

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(delay.Duration()):
		}
	}
	return 0, fmt.Errorf("market order failed after %d attempts: %w", attempts, lastErr)
}
