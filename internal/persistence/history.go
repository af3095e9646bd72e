package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/talgya/classroom/internal/agents"
	"github.com/talgya/classroom/internal/engine"
)

// defaultPage is used when a query leaves Limit unset.
const defaultPage = 1000

type eventRow struct {
	Seq        int64         `db:"seq"`
	ID         string        `db:"id"`
	World      string        `db:"world_id"`
	Kind       string        `db:"kind"`
	TimeMs     int64         `db:"time_ms"`
	EndMs      sql.NullInt64 `db:"end_ms"`
	Target     string        `db:"target"`
	ActorsJSON string        `db:"actors_json"`
	Intensity  float64       `db:"intensity"`
	Location   string        `db:"location"`
	Payload    string        `db:"payload"`
}

func (r eventRow) event() (engine.LoggedEvent, error) {
	e := engine.Event{
		ID:        r.ID,
		World:     r.World,
		Kind:      agents.Kind(r.Kind),
		Time:      fromMillis(r.TimeMs),
		Target:    engine.Target(r.Target),
		Intensity: r.Intensity,
		Location:  r.Location,
		Payload:   r.Payload,
	}
	if r.EndMs.Valid {
		e.End = fromMillis(r.EndMs.Int64)
	}
	if err := json.Unmarshal([]byte(r.ActorsJSON), &e.Actors); err != nil {
		return engine.LoggedEvent{}, fmt.Errorf("decode actors of event %s: %w", r.ID, err)
	}
	return engine.LoggedEvent{Seq: r.Seq, Event: e}, nil
}

// AppendEvent logs e and applies f to the world's students in one
// transaction.
func (db *DB) AppendEvent(ctx context.Context, e engine.Event, f engine.UpdateFunc) error {
	actors := e.Actors
	if actors == nil {
		actors = []agents.AgentID{}
	}
	actorsJSON, err := json.Marshal(actors)
	if err != nil {
		return err
	}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO events
		(id, world_id, kind, time_ms, end_ms, target, actors_json, intensity, location, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.World, string(e.Kind), toMillis(e.Time), nullMillis(e.End), string(e.Target),
		string(actorsJSON), e.Intensity, e.Location, e.Payload,
	)
	if err != nil {
		return fmt.Errorf("insert event %s: %w", e.ID, err)
	}
	if err := applyUpdate(ctx, tx, e.World, f); err != nil {
		return err
	}
	return tx.Commit()
}

// timeRange appends the keyset and time-window predicates shared by the
// event and snapshot scans.
func timeRange(sb *strings.Builder, args []any, seqCol string, q engine.Page, from, to int64, hasFrom, hasTo bool) []any {
	sb.WriteString(" AND " + seqCol + " > ?")
	args = append(args, q.After)
	if hasFrom {
		sb.WriteString(" AND time_ms >= ?")
		args = append(args, from)
	}
	if hasTo {
		sb.WriteString(" AND time_ms < ?")
		args = append(args, to)
	}
	return args
}

func pageLimit(limit int) int {
	if limit <= 0 {
		return defaultPage
	}
	return limit
}

// Events returns one page of a world's event log in log order.
func (db *DB) Events(ctx context.Context, q engine.EventQuery) ([]engine.LoggedEvent, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT seq, id, world_id, kind, time_ms, end_ms, target, actors_json, intensity, location, payload
		FROM events WHERE world_id = ?`)
	args := timeRange(&sb, []any{q.World}, "seq", q.Page, toMillis(q.From), toMillis(q.To), !q.From.IsZero(), !q.To.IsZero())
	sb.WriteString(" ORDER BY seq LIMIT ?")
	args = append(args, pageLimit(q.Limit))

	var rows []eventRow
	if err := db.conn.SelectContext(ctx, &rows, sb.String(), args...); err != nil {
		return nil, err
	}
	out := make([]engine.LoggedEvent, 0, len(rows))
	for _, r := range rows {
		e, err := r.event()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

type snapshotRow struct {
	ID      int64   `db:"id"`
	World   string  `db:"world_id"`
	Agent   string  `db:"agent_id"`
	TimeMs  int64   `db:"time_ms"`
	Joy     float64 `db:"joy"`
	Anxiety float64 `db:"anxiety"`
	Sadness float64 `db:"sadness"`
	Anger   float64 `db:"anger"`
	Stress  float64 `db:"stress"`
	Energy  float64 `db:"energy"`
	Risk    float64 `db:"risk"`
}

func insertSnapshots(ctx context.Context, tx *sqlx.Tx, snaps []engine.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	stmt, err := tx.PrepareNamedContext(ctx, `INSERT INTO snapshots
		(world_id, agent_id, time_ms, joy, anxiety, sadness, anger, stress, energy, risk)
		VALUES (:world_id, :agent_id, :time_ms, :joy, :anxiety, :sadness, :anger, :stress, :energy, :risk)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range snaps {
		row := snapshotRow{
			World: s.World, Agent: string(s.Agent), TimeMs: toMillis(s.Time),
			Joy: s.Emotion.Joy, Anxiety: s.Emotion.Anxiety, Sadness: s.Emotion.Sadness, Anger: s.Emotion.Anger,
			Stress: s.Stress, Energy: s.Energy, Risk: s.Risk,
		}
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return fmt.Errorf("insert snapshot %s: %w", s.Agent, err)
		}
	}
	return nil
}

// Snapshots returns one page of a world's snapshot series in insertion order.
func (db *DB) Snapshots(ctx context.Context, q engine.SnapshotQuery) ([]engine.Snapshot, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, world_id, agent_id, time_ms, joy, anxiety, sadness, anger, stress, energy, risk
		FROM snapshots WHERE world_id = ?`)
	args := []any{q.World}
	if q.Agent != "" {
		sb.WriteString(" AND agent_id = ?")
		args = append(args, string(q.Agent))
	}
	args = timeRange(&sb, args, "id", q.Page, toMillis(q.From), toMillis(q.To), !q.From.IsZero(), !q.To.IsZero())
	sb.WriteString(" ORDER BY id LIMIT ?")
	args = append(args, pageLimit(q.Limit))

	var rows []snapshotRow
	if err := db.conn.SelectContext(ctx, &rows, sb.String(), args...); err != nil {
		return nil, err
	}
	out := make([]engine.Snapshot, len(rows))
	for i, r := range rows {
		out[i] = engine.Snapshot{
			ID: r.ID, World: r.World, Agent: agents.AgentID(r.Agent), Time: fromMillis(r.TimeMs),
			Emotion: agents.Emotion{Joy: r.Joy, Anxiety: r.Anxiety, Sadness: r.Sadness, Anger: r.Anger},
			Stress:  r.Stress, Energy: r.Energy, Risk: r.Risk,
		}
	}
	return out, nil
}
