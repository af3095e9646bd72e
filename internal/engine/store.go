package engine

import (
	"context"
	"time"

	"github.com/talgya/classroom/internal/agents"
)

// Page bounds a keyset-paginated read: rows with ID greater than After,
// at most Limit of them, in ID order.
type Page struct {
	After int64
	Limit int
}

// SnapshotQuery selects snapshots of one world in [From, To).
// Zero bounds are open; an empty Agent means every student.
type SnapshotQuery struct {
	World string
	Agent agents.AgentID
	From  time.Time
	To    time.Time
	Page
}

// EventQuery selects events of one world starting in [From, To).
type EventQuery struct {
	World string
	From  time.Time
	To    time.Time
	Page
}

// LoggedEvent is an event together with its log position.
type LoggedEvent struct {
	Seq int64 `json:"seq"`
	Event
}

// UpdateFunc maps the current students of a world to the states to
// overwrite and the snapshots to append.
type UpdateFunc func(states []agents.State) ([]agents.State, []Snapshot, error)

// StateStore holds the current state of every student.
type StateStore interface {
	LoadStates(ctx context.Context, world string) ([]agents.State, error)
	// InsertStates seeds a world. It returns false without writing when the
	// world already has states.
	InsertStates(ctx context.Context, world string, states []agents.State) (bool, error)
	// UpdateStates reads every student of world, calls f and writes back its
	// result inside one write transaction, so no other writer, in this
	// process or another, can commit between the read and the write.
	UpdateStates(ctx context.Context, world string, f UpdateFunc) error
}

// EventLog is the append-only record of world events.
type EventLog interface {
	// AppendEvent records e and applies f to the students of e.World in the
	// same write transaction as UpdateStates.
	AppendEvent(ctx context.Context, e Event, f UpdateFunc) error
	Events(ctx context.Context, q EventQuery) ([]LoggedEvent, error)
}

// SnapshotLog reads the snapshot time series.
type SnapshotLog interface {
	Snapshots(ctx context.Context, q SnapshotQuery) ([]Snapshot, error)
}

// DailyStore keeps the daily rollups.
type DailyStore interface {
	UpsertDailyStats(ctx context.Context, stats []DailyStat) error
	// DailyStats returns rows with fromDay ≤ day ≤ toDay (empty bounds are
	// open) ordered by day then agent. An empty agent means every student.
	DailyStats(ctx context.Context, world string, agent agents.AgentID, fromDay, toDay string) ([]DailyStat, error)
}

// WorldStore tracks the known worlds and their clocks.
type WorldStore interface {
	CreateWorld(ctx context.Context, w World) error
	Worlds(ctx context.Context) ([]World, error)
	// Clock returns the stored clock of a world; ok is false when none is set.
	Clock(ctx context.Context, world string) (c Clock, ok bool, err error)
	SaveClock(ctx context.Context, world string, c Clock) error
}

// Store is everything the simulation persists.
type Store interface {
	StateStore
	EventLog
	SnapshotLog
	DailyStore
	WorldStore
}
