// Package api provides the HTTP API over classroom worlds.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/talgya/classroom/internal/agents"
	"github.com/talgya/classroom/internal/engine"
	"github.com/talgya/classroom/internal/persistence"
)

// Server serves classroom worlds over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Dash     *engine.Dashboard
	Agg      *engine.DailyAggregator
	DB       *persistence.DB
	Eng      *engine.Engine // optional; enables /status speed and /speed
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	HoursPerTick      float64            // default tick length for POST /tick
	ConversationLimit int                // default semaphore limit
	Roster            agents.SpawnConfig // defaults for POST /worlds
	Limiter           *RateLimiter       // optional per-client limit on every route
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	const w = "/api/v1/worlds/{world}"

	// Public endpoints.
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/worlds", s.handleWorlds)
	mux.HandleFunc("GET "+w+"/states", s.withWorld(s.handleStates))
	mux.HandleFunc("GET "+w+"/events", s.withWorld(s.handleEvents))
	mux.HandleFunc("GET "+w+"/events/active", s.withWorld(s.handleActiveEvents))
	mux.HandleFunc("GET "+w+"/snapshots", s.withWorld(s.handleSnapshots))
	mux.HandleFunc("GET "+w+"/daily", s.withWorld(s.handleDaily))
	mux.HandleFunc("GET "+w+"/daily/latest", s.withWorld(s.handleDailyLatest))
	mux.HandleFunc("GET "+w+"/daily/{agent}", s.withWorld(s.handleAgentDaily))
	mux.HandleFunc("GET "+w+"/trends", s.withWorld(s.handleTrends))
	mux.HandleFunc("GET "+w+"/class-events", s.withWorld(s.handleClassEvents))
	mux.HandleFunc("GET "+w+"/top", s.withWorld(s.handleTop))
	mux.HandleFunc("GET "+w+"/clock", s.withWorld(s.handleClock))

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("POST /api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("POST /api/v1/worlds", s.adminOnly(s.handleCreateWorld))
	mux.HandleFunc("POST "+w+"/tick", s.adminOnly(s.withWorld(s.handleTick)))
	mux.HandleFunc("POST "+w+"/events", s.adminOnly(s.withWorld(s.handleInject)))
	mux.HandleFunc("POST "+w+"/act", s.adminOnly(s.withWorld(s.handleAct)))
	mux.HandleFunc("POST "+w+"/aggregate", s.adminOnly(s.withWorld(s.handleAggregate)))
	mux.HandleFunc("POST "+w+"/clock/scale", s.adminOnly(s.withWorld(s.handleClockScale)))
	mux.HandleFunc("POST "+w+"/clock/pause", s.adminOnly(s.withWorld(s.handleClockPause)))
	mux.HandleFunc("POST "+w+"/clock/step", s.adminOnly(s.withWorld(s.handleClockStep)))
	mux.HandleFunc("POST "+w+"/semaphores/{name}/acquire", s.adminOnly(s.withWorld(s.handleAcquire)))
	mux.HandleFunc("POST "+w+"/semaphores/{name}/release", s.adminOnly(s.withWorld(s.handleRelease)))

	var h http.Handler = mux
	if s.Limiter != nil {
		h = RateLimitMiddleware(s.Limiter, h)
	}
	return h
}

// Run serves the API until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", srv.Addr, "admin_auth", s.AdminKey != "")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no CLASSSIM_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// withWorld rejects requests for worlds that do not exist.
func (s *Server) withWorld(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.DB.World(r.Context(), r.PathValue("world")); err != nil {
			writeError(w, err)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	worlds, err := s.DB.Worlds(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	status := map[string]any{
		"name":   "classsim",
		"worlds": len(worlds),
	}
	if s.Eng != nil {
		status["tick"] = s.Eng.Tick()
		status["speed"] = s.Eng.Speed()
		status["hours_per_tick"] = s.Eng.HoursPerTick
	}
	writeJSON(w, status)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "no engine running", http.StatusConflict)
		return
	}
	var req struct {
		Speed float64 `json:"speed"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Speed < 0 || req.Speed > 1000 {
		http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
		return
	}
	s.Eng.SetSpeed(req.Speed)
	slog.Info("speed changed", "speed", req.Speed)
	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handleWorlds(w http.ResponseWriter, r *http.Request) {
	worlds, err := s.DB.Worlds(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if worlds == nil {
		worlds = []engine.World{}
	}
	writeJSON(w, worlds)
}

func (s *Server) handleCreateWorld(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Seed  *int64 `json:"seed"`
		Size  int    `json:"size"`
		Class string `json:"class"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	cfg := s.Roster
	if req.Seed != nil {
		cfg.Seed = *req.Seed
	}
	if req.Size > 0 {
		cfg.Size = req.Size
	}
	if req.Class != "" {
		cfg.Class = req.Class
	}
	if cfg.Size <= 0 || cfg.Size > 200 {
		http.Error(w, "size must be 1-200", http.StatusBadRequest)
		return
	}
	name := req.Name
	if name == "" {
		name = cfg.Class
	}

	roster := agents.NewSpawner(cfg).Spawn()
	world, created, err := s.Sim.InitWorld(r.Context(), engine.World{ID: req.ID, Name: name}, roster)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	writeJSONStatus(w, status, map[string]any{"world": world, "created": created, "agents": len(roster)})
}

func (s *Server) handleStates(w http.ResponseWriter, r *http.Request) {
	states, err := s.Sim.States(r.Context(), r.PathValue("world"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, states)
}

func (s *Server) handleClock(w http.ResponseWriter, r *http.Request) {
	world := r.PathValue("world")
	c, err := s.Sim.ClockOf(r.Context(), world)
	if err != nil {
		writeError(w, err)
		return
	}
	now, err := s.Sim.Now(r.Context(), world)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"clock": c, "now": now, "paused": c.Paused()})
}

// writeError maps an error to a status code and writes it.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrMissingActor), errors.Is(err, engine.ErrMissingWorld),
		errors.Is(err, agents.ErrUnknownBehavior), errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrTickInProgress):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

// decodeBody decodes a JSON request body into v. An empty body leaves v
// untouched. It writes a 400 and returns false on malformed input.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}
