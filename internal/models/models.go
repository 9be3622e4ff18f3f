package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionMode is the account-level futures accounting mode.
type PositionMode string

const (
	ModeHedge  PositionMode = "HEDGE"
	ModeOneWay PositionMode = "ONE_WAY"
)

// Side is an order direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// PositionSide tags a position in hedge mode. One-way accounts report "BOTH".
type PositionSide string

const (
	PositionLong  PositionSide = "LONG"
	PositionShort PositionSide = "SHORT"
	PositionBoth  PositionSide = "BOTH"
)

// Position is an open futures position as reported by the exchange.
// Amount is signed: positive for long exposure, negative for short.
// The gateway filters zero-amount entries, so Amount != 0 always holds here.
type Position struct {
	Symbol           string
	Side             PositionSide
	Amount           float64
	EntryPrice       float64
	UnrealizedProfit float64
}

func (p Position) IsLong() bool  { return p.Amount > 0 }
func (p Position) IsShort() bool { return p.Amount < 0 }

// InitialMargin is the capital committed to the position at the given
// leverage. Returns 0 for corrupt data (zero entry price or amount), which
// callers must treat as "cannot evaluate this position".
func (p Position) InitialMargin(leverage int) float64 {
	if leverage <= 0 {
		return 0
	}
	amt := p.Amount
	if amt < 0 {
		amt = -amt
	}
	return p.EntryPrice * amt / float64(leverage)
}

// SymbolConstraints are the exchange-imposed order quantization rules for one
// symbol. Fetched once per run and treated as immutable.
type SymbolConstraints struct {
	MinNotional decimal.Decimal
	StepSize    decimal.Decimal
	Precision   int
}

// Order is a single market-order attempt. Quantity must already be
// normalized. PositionSide and ReduceOnly are mutually exclusive: hedge
// accounts use the former, one-way closes use the latter.
type Order struct {
	Symbol        string
	Side          Side
	Quantity      decimal.Decimal
	PositionSide  PositionSide // empty = omit
	ReduceOnly    bool
	ClientOrderID string
}

// Close reasons recorded on trades.
const (
	CloseReasonTakeProfit = "TAKE_PROFIT"
	CloseReasonStopLoss   = "STOP_LOSS"
)

// Trade is a closed position kept in the in-memory journal.
type Trade struct {
	Symbol      string
	Side        PositionSide
	Amount      float64
	EntryPrice  float64
	ExitPrice   float64
	RealizedPL  float64
	PnLPercent  float64
	CloseReason string
	ClosedAt    time.Time
}
