package api

import (
	"log/slog"
	"net/http"

	"github.com/talgya/classroom/internal/agents"
	"github.com/talgya/classroom/internal/engine"
)

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	since, err := queryTime(q, "since")
	if err != nil {
		writeError(w, err)
		return
	}
	after, err := queryInt64(q, "after")
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := queryInt(q, "limit", 0)
	if err != nil {
		writeError(w, err)
		return
	}

	page := engine.Page{After: after, Limit: clampPageSize(limit, eventPages)}
	events, err := s.DB.Events(r.Context(), engine.EventQuery{World: r.PathValue("world"), From: since, Page: page})
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]any{"events": events}
	if len(events) == page.Limit {
		resp["next_after"] = events[len(events)-1].Seq
	}
	if events == nil {
		resp["events"] = []engine.LoggedEvent{}
	}
	writeJSON(w, resp)
}

func (s *Server) handleActiveEvents(w http.ResponseWriter, r *http.Request) {
	world := r.PathValue("world")
	q := r.URL.Query()
	at, err := queryTime(q, "at")
	if err != nil {
		writeError(w, err)
		return
	}
	if at.IsZero() {
		if at, err = s.Sim.Now(r.Context(), world); err != nil {
			writeError(w, err)
			return
		}
	}
	events, err := s.Sim.ActiveEvents(r.Context(), world, at, agents.AgentID(q.Get("agent")), eventPages.Max)
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []engine.Event{}
	}
	writeJSON(w, events)
}

func (s *Server) snapshotQuery(r *http.Request) (engine.SnapshotQuery, error) {
	q := r.URL.Query()
	from, err := queryTime(q, "from")
	if err != nil {
		return engine.SnapshotQuery{}, err
	}
	to, err := queryTime(q, "to")
	if err != nil {
		return engine.SnapshotQuery{}, err
	}
	after, err := queryInt64(q, "after")
	if err != nil {
		return engine.SnapshotQuery{}, err
	}
	limit, err := queryInt(q, "limit", 0)
	if err != nil {
		return engine.SnapshotQuery{}, err
	}
	return engine.SnapshotQuery{
		World: r.PathValue("world"),
		Agent: agents.AgentID(q.Get("agent")),
		From:  from,
		To:    to,
		Page:  engine.Page{After: after, Limit: clampPageSize(limit, snapshotPages)},
	}, nil
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	sq, err := s.snapshotQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if r.URL.Query().Get("format") == "csv" {
		s.exportSnapshots(w, r, sq)
		return
	}

	snaps, err := s.DB.Snapshots(r.Context(), sq)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]any{"snapshots": snaps}
	if snaps == nil {
		resp["snapshots"] = []engine.Snapshot{}
	}
	if len(snaps) == sq.Limit {
		resp["next_after"] = snaps[len(snaps)-1].ID
	}
	writeJSON(w, resp)
}

// exportSnapshots streams every snapshot matching sq as CSV, page by page.
func (s *Server) exportSnapshots(w http.ResponseWriter, r *http.Request, sq engine.SnapshotQuery) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="snapshots-`+sq.World+`.csv"`)
	if err := WriteSnapshotsCSV(r.Context(), w, s.DB, sq); err != nil {
		// Headers are already written.
		slog.Error("csv export failed", "world", sq.World, "error", err)
	}
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dayRange(w, r)
	if !ok {
		return
	}
	rows, err := s.DB.DailyStats(r.Context(), r.PathValue("world"), "", from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	if rows == nil {
		rows = []engine.DailyStat{}
	}
	writeJSON(w, rows)
}

func (s *Server) handleAgentDaily(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dayRange(w, r)
	if !ok {
		return
	}
	rows, err := s.Dash.AgentTrends(r.Context(), r.PathValue("world"), agents.AgentID(r.PathValue("agent")), from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	if rows == nil {
		rows = []engine.DailyStat{}
	}
	writeJSON(w, rows)
}

func (s *Server) handleDailyLatest(w http.ResponseWriter, r *http.Request) {
	rows, err := s.Dash.DistributionLatest(r.Context(), r.PathValue("world"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, rows)
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dayRange(w, r)
	if !ok {
		return
	}
	trends, err := s.Dash.ClassTrends(r.Context(), r.PathValue("world"), from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, trends)
}

func (s *Server) handleClassEvents(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dayRange(w, r)
	if !ok {
		return
	}
	if from == "" || to == "" {
		writeError(w, badRequest("from and to are required"))
		return
	}
	events, err := s.Dash.ClassEvents(r.Context(), r.PathValue("world"), from, to, eventPages.Max)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, events)
}

func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := q.Get("metric")
	if name == "" {
		name = string(engine.MetricStress)
	}
	metric, err := engine.ParseMetric(name)
	if err != nil {
		writeError(w, badRequest("%v", err))
		return
	}
	n, err := queryInt(q, "n", 5)
	if err != nil {
		writeError(w, err)
		return
	}
	if n < 1 || n > 100 {
		writeError(w, badRequest("n must be 1-100"))
		return
	}
	movers, err := s.Dash.TopMovers(r.Context(), r.PathValue("world"), metric, n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, movers)
}

func dayRange(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	q := r.URL.Query()
	from, err := queryDay(q, "from")
	if err != nil {
		writeError(w, err)
		return "", "", false
	}
	to, err := queryDay(q, "to")
	if err != nil {
		writeError(w, err)
		return "", "", false
	}
	return from, to, true
}
