package api

import (
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/talgya/classroom/internal/agents"
	"github.com/talgya/classroom/internal/engine"
)

// at returns the requested time, or the world clock's now when unset.
func (s *Server) at(r *http.Request, requested time.Time) (time.Time, error) {
	if !requested.IsZero() {
		return requested, nil
	}
	return s.Sim.Now(r.Context(), r.PathValue("world"))
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Hours *float64  `json:"hours"`
		At    time.Time `json:"at"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	hours := s.HoursPerTick
	if req.Hours != nil {
		hours = *req.Hours
	}
	if hours < 0 || math.IsNaN(hours) || math.IsInf(hours, 0) || hours > 24*30 {
		writeError(w, badRequest("hours must be 0-720"))
		return
	}
	at, err := s.at(r, req.At)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.Sim.Tick(r.Context(), r.PathValue("world"), hours, at)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, res)
}

func (s *Server) handleInject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind      agents.Kind      `json:"kind"`
		Time      time.Time        `json:"time"`
		End       time.Time        `json:"end"`
		Target    engine.Target    `json:"target"`
		Actors    []agents.AgentID `json:"actors"`
		Intensity *float64         `json:"intensity"`
		Location  string           `json:"location"`
		Payload   string           `json:"payload"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	at, err := s.at(r, req.Time)
	if err != nil {
		writeError(w, err)
		return
	}
	intensity := 1.0
	if req.Intensity != nil {
		intensity = *req.Intensity
	}

	e, err := engine.NewEvent(engine.Event{
		World:     r.PathValue("world"),
		Kind:      req.Kind,
		Time:      at,
		End:       req.End,
		Target:    req.Target,
		Actors:    req.Actors,
		Intensity: intensity,
		Location:  req.Location,
		Payload:   req.Payload,
	})
	if err != nil {
		writeError(w, badRequest("%v", err))
		return
	}
	res, err := s.Sim.InjectEvent(r.Context(), e)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, res)
}

func (s *Server) handleAct(w http.ResponseWriter, r *http.Request) {
	var req struct {
		At time.Time `json:"at"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	at, err := s.at(r, req.At)
	if err != nil {
		writeError(w, err)
		return
	}
	choices, err := s.Sim.Act(r.Context(), r.PathValue("world"), at)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, choices)
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	now, err := s.at(r, time.Time{})
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.Agg.Run(r.Context(), r.PathValue("world"), now)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, res)
}

func (s *Server) handleClockScale(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Scale *float64 `json:"scale"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Scale == nil {
		writeError(w, badRequest("scale required"))
		return
	}
	c, err := s.Sim.SetTimeScale(r.Context(), r.PathValue("world"), *req.Scale)
	if err != nil {
		writeError(w, badRequest("%v", err))
		return
	}
	writeJSON(w, c)
}

func (s *Server) handleClockPause(w http.ResponseWriter, r *http.Request) {
	c, err := s.Sim.Pause(r.Context(), r.PathValue("world"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, c)
}

func (s *Server) handleClockStep(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Days int `json:"days"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Days <= 0 {
		writeError(w, badRequest("days must be positive"))
		return
	}
	c, err := s.Sim.StepDays(r.Context(), r.PathValue("world"), req.Days)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, c)
}

func (s *Server) handleAcquire(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Limit int `json:"limit"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	limit := req.Limit
	if limit == 0 {
		limit = s.ConversationLimit
	}
	if limit <= 0 {
		writeError(w, badRequest("limit must be positive"))
		return
	}
	world, name := r.PathValue("world"), r.PathValue("name")
	ok, count, err := s.DB.Acquire(r.Context(), world, name, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	slog.Debug("semaphore acquire", "world", world, "name", name, "granted", ok, "count", count)
	status := http.StatusOK
	if !ok {
		status = http.StatusConflict
	}
	writeJSONStatus(w, status, map[string]any{"acquired": ok, "count": count, "limit": limit})
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	count, err := s.DB.Release(r.Context(), r.PathValue("world"), r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]int{"count": count})
}
