package engine

import (
	"context"
	"sort"
	"sync"

	"github.com/talgya/classroom/internal/agents"
)

// memStore is an in-memory Store for tests.
type memStore struct {
	mu      sync.Mutex
	worlds  []World
	states  map[string][]agents.State
	events  []LoggedEvent
	snaps   []Snapshot
	daily   map[string]DailyStat
	clocks  map[string]Clock
	commits int

	// loadHook, when set, runs before UpdateStates or AppendEvent reads
	// the world.
	loadHook func()
}

func newMemStore() *memStore {
	return &memStore{
		states: make(map[string][]agents.State),
		daily:  make(map[string]DailyStat),
		clocks: make(map[string]Clock),
	}
}

func copyStates(in []agents.State) []agents.State {
	out := make([]agents.State, len(in))
	for i, s := range in {
		s.Ties = append([]agents.Tie(nil), s.Ties...)
		out[i] = s
	}
	return out
}

func (m *memStore) LoadStates(_ context.Context, world string) ([]agents.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyStates(m.states[world]), nil
}

func (m *memStore) InsertStates(_ context.Context, world string, states []agents.State) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.states[world]) > 0 {
		return false, nil
	}
	m.states[world] = copyStates(states)
	return true, nil
}

func (m *memStore) put(world string, states []agents.State, snaps []Snapshot) {
	cur := m.states[world]
	for _, s := range states {
		for i := range cur {
			if cur[i].ID == s.ID {
				cur[i] = s
			}
		}
	}
	for _, sn := range snaps {
		sn.ID = int64(len(m.snaps) + 1)
		m.snaps = append(m.snaps, sn)
	}
	m.commits++
}

func (m *memStore) UpdateStates(_ context.Context, world string, f UpdateFunc) error {
	if m.loadHook != nil {
		m.loadHook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	next, snaps, err := f(copyStates(m.states[world]))
	if err != nil {
		return err
	}
	m.put(world, next, snaps)
	return nil
}

func (m *memStore) AppendEvent(_ context.Context, e Event, f UpdateFunc) error {
	if m.loadHook != nil {
		m.loadHook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	next, snaps, err := f(copyStates(m.states[e.World]))
	if err != nil {
		return err
	}
	m.events = append(m.events, LoggedEvent{Seq: int64(len(m.events) + 1), Event: e})
	m.put(e.World, next, snaps)
	return nil
}

func (m *memStore) Events(_ context.Context, q EventQuery) ([]LoggedEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []LoggedEvent
	for _, e := range m.events {
		if e.World != q.World || e.Seq <= q.After {
			continue
		}
		if !q.From.IsZero() && e.Time.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && !e.Time.Before(q.To) {
			continue
		}
		out = append(out, e)
		if len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) Snapshots(_ context.Context, q SnapshotQuery) ([]Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Snapshot
	for _, s := range m.snaps {
		if s.World != q.World || s.ID <= q.After {
			continue
		}
		if q.Agent != "" && s.Agent != q.Agent {
			continue
		}
		if !q.From.IsZero() && s.Time.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && !s.Time.Before(q.To) {
			continue
		}
		out = append(out, s)
		if len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) UpsertDailyStats(_ context.Context, stats []DailyStat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range stats {
		m.daily[s.World+"|"+string(s.Agent)+"|"+s.Day] = s
	}
	return nil
}

func (m *memStore) DailyStats(_ context.Context, world string, agent agents.AgentID, fromDay, toDay string) ([]DailyStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []DailyStat
	for _, s := range m.daily {
		if s.World != world || (agent != "" && s.Agent != agent) {
			continue
		}
		if (fromDay != "" && s.Day < fromDay) || (toDay != "" && s.Day > toDay) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Day != out[j].Day {
			return out[i].Day < out[j].Day
		}
		return out[i].Agent < out[j].Agent
	})
	return out, nil
}

func (m *memStore) CreateWorld(_ context.Context, w World) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, have := range m.worlds {
		if have.ID == w.ID {
			return nil
		}
	}
	m.worlds = append(m.worlds, w)
	return nil
}

func (m *memStore) Worlds(context.Context) ([]World, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]World(nil), m.worlds...), nil
}

func (m *memStore) Clock(_ context.Context, world string) (Clock, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clocks[world]
	return c, ok, nil
}

func (m *memStore) SaveClock(_ context.Context, world string, c Clock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clocks[world] = c
	return nil
}
