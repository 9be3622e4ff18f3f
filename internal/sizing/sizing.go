// Package sizing converts account balance and risk settings into order
// quantities that respect the exchange's lot-size and notional filters.
package sizing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"futures_bot/internal/models"
)

// Normalize truncates raw down to the nearest multiple of step and
// re-expresses it with precision decimal digits. It never rounds up, so the
// resulting notional can only shrink. A raw smaller than step normalizes to
// zero; callers must treat that as unsizable. step > 0 is the caller's
// contract.
func Normalize(raw, step decimal.Decimal, precision int) decimal.Decimal {
	if step.Sign() <= 0 {
		return decimal.Zero
	}
	return raw.Div(step).Floor().Mul(step).Truncate(int32(precision))
}

// OrderQuantity sizes a market order from the account balance.
//
// The risk fraction bounds capital exposure independent of leverage:
// notionalAtRisk = balance * riskFraction, and the order targets
// notionalAtRisk * leverage worth of contracts, floored at the exchange
// minimum notional so the order is not rejected outright. The result is
// normalized to the lot step and never below one step, so a zero-size order
// is never emitted when a trade is intended.
func OrderQuantity(price, balance, riskFraction float64, leverage int, c models.SymbolConstraints) (decimal.Decimal, error) {
	if price <= 0 {
		return decimal.Zero, fmt.Errorf("sizing: non-positive price %v", price)
	}

	p := decimal.NewFromFloat(price)
	notionalAtRisk := decimal.NewFromFloat(balance).Mul(decimal.NewFromFloat(riskFraction))
	maxNotional := notionalAtRisk.Mul(decimal.NewFromInt(int64(leverage)))

	raw := decimal.Max(maxNotional.Div(p), c.MinNotional.Div(p))
	qty := Normalize(raw, c.StepSize, c.Precision)
	if qty.LessThan(c.StepSize) {
		qty = c.StepSize
	}
	return qty, nil
}

// Notional is the gross exposure of an order at the given price.
func Notional(qty decimal.Decimal, price float64) decimal.Decimal {
	return qty.Mul(decimal.NewFromFloat(price))
}
