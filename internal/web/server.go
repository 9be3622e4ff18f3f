package web

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"futures_bot/internal/engine"
)

// Server exposes a read-only JSON status surface for the running strategy.
type Server struct {
	engine *engine.Engine
	port   string
}

func NewServer(eng *engine.Engine, port string) *Server {
	return &Server{engine: eng, port: port}
}

func (s *Server) Start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/trades", s.handleTrades)

	log.Printf("🌐 status server on http://localhost:%s", s.port)
	go func() {
		if err := http.ListenAndServe(":"+s.port, mux); err != nil {
			log.Printf("status server error: %v", err)
		}
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	st := s.engine.Status()
	stats := s.engine.Stats()

	resp := map[string]any{
		"running":       st.Running,
		"symbol":        st.Symbol,
		"paper":         st.Paper,
		"last_price":    st.LastPrice,
		"average_price": st.AveragePrice,
		"uptime_sec":    int(st.Uptime.Seconds()),
		"total_trades":  stats.TotalTrades,
		"wins":          stats.Wins,
		"losses":        stats.Losses,
		"win_rate":      stats.WinRate,
		"realized_pl":   stats.RealizedPL,
	}
	if balance, err := s.engine.Balance(ctx); err == nil {
		resp["balance"] = balance
	}
	if positions, err := s.engine.Positions(ctx); err == nil {
		resp["open_positions"] = len(positions)
	}
	writeJSON(w, resp)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.engine.Trades())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("⚠️ encode response: %v", err)
	}
}
