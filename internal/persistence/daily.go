package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/talgya/classroom/internal/agents"
	"github.com/talgya/classroom/internal/engine"
)

type dailyRow struct {
	World      string  `db:"world_id"`
	Agent      string  `db:"agent_id"`
	Day        string  `db:"day"`
	AvgStress  float64 `db:"stress_avg"`
	AvgAnxiety float64 `db:"anxiety_avg"`
	AvgJoy     float64 `db:"joy_avg"`
	Samples    int     `db:"samples"`
	Events     int     `db:"events_count"`
}

// UpsertDailyStats writes rows keyed by (world, agent, day), replacing any
// earlier aggregate for the same key.
func (db *DB) UpsertDailyStats(ctx context.Context, stats []engine.DailyStat) error {
	if len(stats) == 0 {
		return nil
	}
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx, `INSERT INTO daily_stats
		(world_id, agent_id, day, stress_avg, anxiety_avg, joy_avg, samples, events_count)
		VALUES (:world_id, :agent_id, :day, :stress_avg, :anxiety_avg, :joy_avg, :samples, :events_count)
		ON CONFLICT(world_id, agent_id, day) DO UPDATE SET
			stress_avg = excluded.stress_avg,
			anxiety_avg = excluded.anxiety_avg,
			joy_avg = excluded.joy_avg,
			samples = excluded.samples,
			events_count = excluded.events_count`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range stats {
		row := dailyRow{
			World: s.World, Agent: string(s.Agent), Day: s.Day,
			AvgStress: s.AvgStress, AvgAnxiety: s.AvgAnxiety, AvgJoy: s.AvgJoy,
			Samples: s.Samples, Events: s.Events,
		}
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return fmt.Errorf("upsert daily %s/%s/%s: %w", s.World, s.Agent, s.Day, err)
		}
	}
	return tx.Commit()
}

// DailyStats returns daily rows of a world ordered by day then agent.
func (db *DB) DailyStats(ctx context.Context, world string, agent agents.AgentID, fromDay, toDay string) ([]engine.DailyStat, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT world_id, agent_id, day, stress_avg, anxiety_avg, joy_avg, samples, events_count
		FROM daily_stats WHERE world_id = ?`)
	args := []any{world}
	if agent != "" {
		sb.WriteString(" AND agent_id = ?")
		args = append(args, string(agent))
	}
	if fromDay != "" {
		sb.WriteString(" AND day >= ?")
		args = append(args, fromDay)
	}
	if toDay != "" {
		sb.WriteString(" AND day <= ?")
		args = append(args, toDay)
	}
	sb.WriteString(" ORDER BY day, agent_id")

	var rows []dailyRow
	if err := db.conn.SelectContext(ctx, &rows, sb.String(), args...); err != nil {
		return nil, err
	}
	out := make([]engine.DailyStat, len(rows))
	for i, r := range rows {
		out[i] = engine.DailyStat{
			World: r.World, Agent: agents.AgentID(r.Agent), Day: r.Day,
			AvgStress: r.AvgStress, AvgAnxiety: r.AvgAnxiety, AvgJoy: r.AvgJoy,
			Samples: r.Samples, Events: r.Events,
		}
	}
	return out, nil
}
