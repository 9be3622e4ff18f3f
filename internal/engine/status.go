package engine

import (
	"context"
	"time"

	"futures_bot/internal/models"
)

// Status is a point-in-time snapshot of the loop for the bot and the status
// server.
type Status struct {
	Running      bool          `json:"running"`
	Symbol       string        `json:"symbol"`
	Paper        bool          `json:"paper"`
	LastPrice    float64       `json:"last_price"`
	AveragePrice float64       `json:"average_price"`
	Uptime       time.Duration `json:"uptime"`
	Trades       int           `json:"trades"`
}

// Stats aggregates the in-memory trade journal.
type Stats struct {
	TotalTrades int     `json:"total_trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	WinRate     float64 `json:"win_rate"`
	RealizedPL  float64 `json:"realized_pl"`
}

func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var uptime time.Duration
	if e.running {
		uptime = time.Since(e.startedAt)
	}
	return Status{
		Running:      e.running,
		Symbol:       e.cfg.Symbol,
		Paper:        e.cfg.Paper,
		LastPrice:    e.lastPrice,
		AveragePrice: e.lastAverage,
		Uptime:       uptime,
		Trades:       len(e.trades),
	}
}

func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := Stats{TotalTrades: len(e.trades)}
	for _, t := range e.trades {
		if t.RealizedPL > 0 {
			s.Wins++
		} else {
			s.Losses++
		}
		s.RealizedPL += t.RealizedPL
	}
	if s.TotalTrades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.TotalTrades) * 100
	}
	return s
}

// Trades returns a copy of the journal in close order.
func (e *Engine) Trades() []models.Trade {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]models.Trade, len(e.trades))
	copy(out, e.trades)
	return out
}

func (e *Engine) Balance(ctx context.Context) (float64, error) {
	return e.gw.USDTBalance(ctx)
}

func (e *Engine) Positions(ctx context.Context) ([]models.Position, error) {
	return e.gw.OpenPositions(ctx, e.cfg.Symbol)
}
