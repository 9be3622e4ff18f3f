// Package analysis holds the price window and the pure tick-decision rule.
// State lives on the exchange; Decide only maps one tick's observations to
// actions, which keeps it testable without a live gateway.
package analysis

import "futures_bot/internal/models"

// Params are the strategy thresholds, all in percent except Leverage.
type Params struct {
	Leverage     int
	ProfitTarget float64 // close at or above, e.g. 6.0
	StopLoss     float64 // close at or below, e.g. -3.0
	PriceTrigger float64 // open when |deviation| reaches this, e.g. 0.05
}

type ActionType int

const (
	ActionOpen ActionType = iota
	ActionClose
)

// Action is one order the loop should attempt this tick.
type Action struct {
	Type         ActionType
	Side         models.Side
	PositionSide models.PositionSide
	Position     models.Position // close only: the position being offset
	Reason       string          // close only
	PnLPercent   float64         // close only
	Deviation    float64         // open only, percent vs the moving average
}

// Decide evaluates one polling tick. With open positions it checks each one
// against the profit/loss thresholds independently (hedge mode can hold both
// sides at once); positions whose initial margin computes to zero are left
// unresolved for the tick. With no positions it compares the current price
// against the moving average and opens in the direction of the move once the
// relative deviation reaches the trigger.
func Decide(positions []models.Position, price, average float64, p Params) []Action {
	if len(positions) > 0 {
		var actions []Action
		for _, pos := range positions {
			margin := pos.InitialMargin(p.Leverage)
			if margin == 0 {
				// Corrupt snapshot; skip until the next tick re-reads it.
				continue
			}
			pnlPct := pos.UnrealizedProfit / margin * 100

			var reason string
			switch {
			case pnlPct >= p.ProfitTarget:
				reason = models.CloseReasonTakeProfit
			case pnlPct <= p.StopLoss:
				reason = models.CloseReasonStopLoss
			default:
				continue
			}

			side := models.SideBuy
			if pos.IsLong() {
				side = models.SideSell
			}
			actions = append(actions, Action{
				Type:         ActionClose,
				Side:         side,
				PositionSide: pos.Side,
				Position:     pos,
				Reason:       reason,
				PnLPercent:   pnlPct,
			})
		}
		return actions
	}

	if average <= 0 || price <= 0 {
		return nil
	}

	deviation := (price - average) / average * 100
	abs := deviation
	if abs < 0 {
		abs = -abs
	}
	if abs < p.PriceTrigger {
		return nil
	}

	side, posSide := models.SideBuy, models.PositionLong
	if deviation < 0 {
		side, posSide = models.SideSell, models.PositionShort
	}
	return []Action{{
		Type:         ActionOpen,
		Side:         side,
		PositionSide: posSide,
		Deviation:    deviation,
	}}
}
