package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/talgya/classroom/internal/agents"
	"github.com/talgya/classroom/internal/engine"
)

type stateRow struct {
	World      string  `db:"world_id"`
	Agent      string  `db:"agent_id"`
	Name       string  `db:"name"`
	Class      string  `db:"class"`
	TraitsJSON string  `db:"traits_json"`
	Joy        float64 `db:"joy"`
	Anxiety    float64 `db:"anxiety"`
	Sadness    float64 `db:"sadness"`
	Anger      float64 `db:"anger"`
	Stress     float64 `db:"stress"`
	Energy     float64 `db:"energy"`
	Risk       float64 `db:"risk"`
	TiesJSON   string  `db:"ties_json"`
	MemoryJSON string  `db:"memory_json"`
	LastEvent  string  `db:"last_event"`
}

func toStateRow(world string, s agents.State) (stateRow, error) {
	traits, err := json.Marshal(s.Traits)
	if err != nil {
		return stateRow{}, err
	}
	ties := s.Ties
	if ties == nil {
		ties = []agents.Tie{}
	}
	tiesJSON, err := json.Marshal(ties)
	if err != nil {
		return stateRow{}, err
	}
	mem := s.MemoryKeys
	if mem == nil {
		mem = []string{}
	}
	memJSON, err := json.Marshal(mem)
	if err != nil {
		return stateRow{}, err
	}
	return stateRow{
		World: world, Agent: string(s.ID), Name: s.Name, Class: s.Class,
		TraitsJSON: string(traits),
		Joy:        s.Emotion.Joy, Anxiety: s.Emotion.Anxiety, Sadness: s.Emotion.Sadness, Anger: s.Emotion.Anger,
		Stress: s.Stress, Energy: s.Energy, Risk: s.Risk,
		TiesJSON: string(tiesJSON), MemoryJSON: string(memJSON), LastEvent: s.LastEvent,
	}, nil
}

func (r stateRow) state() (agents.State, error) {
	s := agents.State{
		ID: agents.AgentID(r.Agent), Name: r.Name, Class: r.Class,
		Emotion:   agents.Emotion{Joy: r.Joy, Anxiety: r.Anxiety, Sadness: r.Sadness, Anger: r.Anger},
		Stress:    r.Stress,
		Energy:    r.Energy,
		Risk:      r.Risk,
		LastEvent: r.LastEvent,
	}
	if err := json.Unmarshal([]byte(r.TraitsJSON), &s.Traits); err != nil {
		return s, fmt.Errorf("decode traits %s: %w", r.Agent, err)
	}
	if err := json.Unmarshal([]byte(r.TiesJSON), &s.Ties); err != nil {
		return s, fmt.Errorf("decode ties %s: %w", r.Agent, err)
	}
	if err := json.Unmarshal([]byte(r.MemoryJSON), &s.MemoryKeys); err != nil {
		return s, fmt.Errorf("decode memory %s: %w", r.Agent, err)
	}
	return s, nil
}

// LoadStates returns every student of a world in roster order.
func (db *DB) LoadStates(ctx context.Context, world string) ([]agents.State, error) {
	return loadStates(ctx, db.conn, world)
}

func loadStates(ctx context.Context, q sqlx.QueryerContext, world string) ([]agents.State, error) {
	var rows []stateRow
	err := sqlx.SelectContext(ctx, q, &rows, `SELECT world_id, agent_id, name, class, traits_json,
		joy, anxiety, sadness, anger, stress, energy, risk, ties_json, memory_json, last_event
		FROM agent_states WHERE world_id = ? ORDER BY rowid`, world)
	if err != nil {
		return nil, err
	}
	out := make([]agents.State, 0, len(rows))
	for _, r := range rows {
		s, err := r.state()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// InsertStates seeds an empty world. A world that already has students is
// left alone and false is returned.
func (db *DB) InsertStates(ctx context.Context, world string, states []agents.State) (bool, error) {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var n int
	if err := tx.GetContext(ctx, &n, "SELECT COUNT(*) FROM agent_states WHERE world_id = ?", world); err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	stmt, err := tx.PrepareNamedContext(ctx, `INSERT INTO agent_states
		(world_id, agent_id, name, class, traits_json, joy, anxiety, sadness, anger,
		 stress, energy, risk, ties_json, memory_json, last_event)
		VALUES (:world_id, :agent_id, :name, :class, :traits_json, :joy, :anxiety, :sadness, :anger,
		 :stress, :energy, :risk, :ties_json, :memory_json, :last_event)`)
	if err != nil {
		return false, err
	}
	defer stmt.Close()

	for _, s := range states {
		row, err := toStateRow(world, s)
		if err != nil {
			return false, err
		}
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return false, fmt.Errorf("insert state %s: %w", s.ID, err)
		}
	}
	return true, tx.Commit()
}

// UpdateStates runs a read-modify-write of a world's students in one
// immediate transaction.
func (db *DB) UpdateStates(ctx context.Context, world string, f engine.UpdateFunc) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := applyUpdate(ctx, tx, world, f); err != nil {
		return err
	}
	return tx.Commit()
}

// applyUpdate reads the world inside tx, runs f and writes its states and
// snapshots back through the same tx.
func applyUpdate(ctx context.Context, tx *sqlx.Tx, world string, f engine.UpdateFunc) error {
	states, err := loadStates(ctx, tx, world)
	if err != nil {
		return fmt.Errorf("load states: %w", err)
	}
	next, snaps, err := f(states)
	if err != nil {
		return err
	}
	if err := updateStates(ctx, tx, world, next); err != nil {
		return err
	}
	return insertSnapshots(ctx, tx, snaps)
}

func updateStates(ctx context.Context, tx *sqlx.Tx, world string, states []agents.State) error {
	if len(states) == 0 {
		return nil
	}
	stmt, err := tx.PrepareNamedContext(ctx, `UPDATE agent_states SET
		joy = :joy, anxiety = :anxiety, sadness = :sadness, anger = :anger,
		stress = :stress, energy = :energy, risk = :risk,
		memory_json = :memory_json, last_event = :last_event
		WHERE world_id = :world_id AND agent_id = :agent_id`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range states {
		row, err := toStateRow(world, s)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return fmt.Errorf("update state %s: %w", s.ID, err)
		}
	}
	return nil
}
