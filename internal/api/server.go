// Package api provides the HTTP API for the city simulation.
// GET endpoints are public (read-only observation).
// POST /api/v1/speed requires a bearer token; build endpoints are
// rate-limited per IP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/mpue/citysim/internal/engine"
	"github.com/mpue/citysim/internal/grid"
	"github.com/mpue/citysim/internal/persistence"
)

// Server serves the city state over HTTP and pushes tick summaries to
// WebSocket subscribers.
type Server struct {
	City     *engine.City
	Loop     *engine.Loop
	DB       *persistence.DB
	Hub      *Hub
	Port     int
	AdminKey string // Bearer token for /speed. Empty = endpoint disabled.
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	buildLimiter := NewRateLimiter(120, time.Minute)

	mux := http.NewServeMux()

	// Public read-only endpoints.
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/grid", s.handleGrid)
	mux.HandleFunc("/api/v1/tile/", s.handleTile)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/happiness", s.handleHappiness)

	// Player actions.
	mux.HandleFunc("/api/v1/build", RateLimitMiddleware(buildLimiter, s.handleBuild))
	mux.HandleFunc("/api/v1/demolish", RateLimitMiddleware(buildLimiter, s.handleDemolish))
	mux.HandleFunc("/api/v1/powerline", RateLimitMiddleware(buildLimiter, s.handlePowerLine))
	mux.HandleFunc("/api/v1/loan", s.handleLoan)

	// Admin control plane.
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))

	// WebSocket live feed.
	if s.Hub != nil {
		mux.HandleFunc("/ws", s.Hub.HandleWS)
	}

	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := http.ListenAndServe(addr, corsMiddleware(mux)); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware allows browser frontends served from another origin to
// read the API during development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled", http.StatusForbidden)
				return
			}
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != s.AdminKey {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.City.Stats()
	status := map[string]any{
		"city_id":          st.ID,
		"tick":             st.Tick,
		"sim_time":         engine.SimDate(st.Tick),
		"year":             st.Year,
		"month":            st.Month,
		"money":            st.Money,
		"money_display":    humanize.Comma(int64(st.Money)),
		"loan":             st.Loan,
		"population":       st.Population,
		"population_display": humanize.Comma(int64(st.Population)),
		"happiness":        st.Happiness,
		"demand":           st.Demand,
	}
	if s.Loop != nil {
		status["speed"] = s.Loop.Speed
		status["running"] = s.Loop.Running
	}
	writeJSON(w, status)
}

func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	width, height, tiles := s.City.QueryGrid()
	writeJSON(w, map[string]any{
		"width":  width,
		"height": height,
		"tiles":  tiles,
	})
}

// handleTile serves GET /api/v1/tile/{x}/{y}.
func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/v1/tile/"), "/")
	if len(parts) != 2 {
		http.Error(w, "expected /api/v1/tile/{x}/{y}", http.StatusBadRequest)
		return
	}
	x, errX := strconv.Atoi(parts[0])
	y, errY := strconv.Atoi(parts[1])
	if errX != nil || errY != nil {
		http.Error(w, "coordinates must be integers", http.StatusBadRequest)
		return
	}
	snap := s.City.QueryTile(x, y)
	if snap == nil {
		http.Error(w, "coordinate out of range", http.StatusNotFound)
		return
	}
	writeJSON(w, snap)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}

	if s.DB != nil {
		events, err := s.DB.RecentEvents(limit)
		if err == nil {
			writeJSON(w, map[string]any{"events": events})
			return
		}
		slog.Warn("event query failed, falling back to in-memory feed", "error", err)
	}
	writeJSON(w, map[string]any{"events": s.City.Events(limit)})
}

func (s *Server) handleHappiness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.City.HappinessBreakdown())
}

type buildRequest struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Type string `json:"type"`
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var req buildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	tt, ok := grid.TypeFromString(req.Type)
	if !ok || tt == grid.Empty {
		http.Error(w, "unknown tile type", http.StatusBadRequest)
		return
	}
	if err := s.City.PlaceTile(req.X, req.Y, tt); err != nil {
		writeActionError(w, err)
		return
	}
	s.broadcastGridChange("tile_placed", req.X, req.Y)
	writeJSON(w, map[string]any{"ok": true})
}

func (s *Server) handleDemolish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var req buildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	if err := s.City.Demolish(req.X, req.Y); err != nil {
		writeActionError(w, err)
		return
	}
	s.broadcastGridChange("tile_demolished", req.X, req.Y)
	writeJSON(w, map[string]any{"ok": true})
}

type powerLineRequest struct {
	X       int  `json:"x"`
	Y       int  `json:"y"`
	Present bool `json:"present"`
}

func (s *Server) handlePowerLine(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var req powerLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	ok := s.City.SetPowerLine(req.X, req.Y, req.Present)
	if ok {
		s.broadcastGridChange("power_line", req.X, req.Y)
	}
	writeJSON(w, map[string]any{"ok": ok})
}

type loanRequest struct {
	Amount int  `json:"amount"`
	Repay  bool `json:"repay,omitempty"`
}

func (s *Server) handleLoan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var req loanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	var ok bool
	if req.Repay {
		ok = s.City.RepayLoan(req.Amount)
	} else {
		ok = s.City.TakeLoan(req.Amount)
	}
	writeJSON(w, map[string]any{"ok": ok, "stats": s.City.Stats()})
}

type speedRequest struct {
	Speed float64 `json:"speed"`
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, map[string]any{"speed": s.Loop.Speed})
		return
	}
	var req speedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	if req.Speed < 0 || req.Speed > 16 {
		http.Error(w, "speed must be in [0,16]", http.StatusBadRequest)
		return
	}
	s.Loop.Speed = req.Speed
	slog.Info("simulation speed changed", "speed", req.Speed)
	writeJSON(w, map[string]any{"speed": s.Loop.Speed})
}

// writeActionError maps placement errors onto HTTP statuses. These are
// expected gameplay outcomes, not server failures.
func writeActionError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, engine.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
	case errors.Is(err, engine.ErrAlreadyOccupied), errors.Is(err, engine.ErrFootprintUnavailable):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrInvalidCoordinate):
		status = http.StatusBadRequest
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": err.Error()})
}

func (s *Server) broadcastGridChange(event string, x, y int) {
	if s.Hub == nil {
		return
	}
	s.Hub.Broadcast(event, map[string]any{
		"x":    x,
		"y":    y,
		"tile": s.City.QueryTile(x, y),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response", "error", err)
	}
}
