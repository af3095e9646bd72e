// Simulation applies the psychological model to stored worlds: it seeds
// rosters, advances ticks, injects events and runs the behavior step.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/talgya/classroom/internal/agents"
	"github.com/talgya/classroom/internal/weights"
)

// SupportFunc supplies an external support index for a student. ok is false
// when nothing is known, in which case the neutral index is used.
type SupportFunc func(world string, id agents.AgentID) (index float64, ok bool)

// Options tune a Simulation. The zero value is usable.
type Options struct {
	Logger  *slog.Logger
	Support SupportFunc
	Now     func() time.Time // real-time source, defaults to time.Now
	// Parallel caps how many worlds TickWorlds advances at once. Zero means 4.
	Parallel int
	// TimeScale is the clock speed given to newly created worlds. Zero means 1.
	TimeScale float64
}

// Simulation holds the model weights and the store, and serializes
// mutations per world.
type Simulation struct {
	weights  weights.Config
	store    Store
	support  SupportFunc
	log      *slog.Logger
	now      func() time.Time
	parallel int
	scale    float64

	mu       sync.Mutex
	locks    map[string]*worldMutex
	lastTick map[string]time.Time // clock instant of each world's last serve-loop tick
}

// worldMutex serializes the mutations of one world. refs counts the callers
// holding or waiting for it; the entry is dropped when it reaches zero.
type worldMutex struct {
	sync.Mutex
	refs int
}

// NewSimulation creates a Simulation over store using w.
func NewSimulation(store Store, w weights.Config, opts Options) *Simulation {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Parallel <= 0 {
		opts.Parallel = 4
	}
	if opts.TimeScale <= 0 {
		opts.TimeScale = 1
	}
	return &Simulation{
		weights:  w.Clone(),
		store:    store,
		support:  opts.Support,
		log:      opts.Logger,
		now:      opts.Now,
		parallel: opts.Parallel,
		scale:    opts.TimeScale,
		locks:    make(map[string]*worldMutex),
		lastTick: make(map[string]time.Time),
	}
}

// Weights returns a copy of the model weights in use.
func (s *Simulation) Weights() weights.Config {
	return s.weights.Clone()
}

// worldLock returns the mutex of world with a reference taken. Callers must
// hand it back with release once they have unlocked it.
func (s *Simulation) worldLock(world string) *worldMutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[world]
	if !ok {
		l = &worldMutex{}
		s.locks[world] = l
	}
	l.refs++
	return l
}

func (s *Simulation) release(world string, l *worldMutex) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.refs--; l.refs == 0 {
		delete(s.locks, world)
	}
}

func (s *Simulation) supportIndex(world string, id agents.AgentID) float64 {
	if s.support != nil {
		if v, ok := s.support(world, id); ok {
			return v
		}
	}
	return s.weights.Support.Neutral
}

// InitWorld registers a world and seeds it with roster at neutral defaults.
// A world that already has students is left untouched and false is returned.
func (s *Simulation) InitWorld(ctx context.Context, w World, roster []agents.State) (World, bool, error) {
	if w.ID == "" {
		w.ID = NewWorldID()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = s.now()
	}

	l := s.worldLock(w.ID)
	defer s.release(w.ID, l)
	l.Lock()
	defer l.Unlock()

	if err := s.store.CreateWorld(ctx, w); err != nil {
		return World{}, false, fmt.Errorf("create world %s: %w", w.ID, err)
	}

	states := make([]agents.State, 0, len(roster))
	for _, r := range roster {
		st := agents.NewState(r.ID, r.Name, r.Class, r.Traits, r.Ties)
		states = append(states, agents.Rescore(st, s.supportIndex(w.ID, st.ID), s.weights))
	}
	inserted, err := s.store.InsertStates(ctx, w.ID, states)
	if err != nil {
		return World{}, false, fmt.Errorf("seed world %s: %w", w.ID, err)
	}
	if inserted {
		if s.scale != 1 {
			now := s.now()
			if err := s.store.SaveClock(ctx, w.ID, RealClock(now).WithScale(s.scale, now)); err != nil {
				return World{}, false, fmt.Errorf("set clock %s: %w", w.ID, err)
			}
		}
		s.log.Info("world seeded", "world", w.ID, "name", w.Name, "agents", len(states), "time_scale", s.scale)
	}
	return w, inserted, nil
}

// States returns the current state of every student in a world.
func (s *Simulation) States(ctx context.Context, world string) ([]agents.State, error) {
	states, err := s.store.LoadStates(ctx, world)
	if err != nil {
		return nil, fmt.Errorf("load states %s: %w", world, err)
	}
	return states, nil
}

// TickResult summarizes one tick.
type TickResult struct {
	World    string    `json:"world_id"`
	At       time.Time `json:"at"`
	Hours    float64   `json:"hours"`
	Agents   int       `json:"agents"`
	MeanRisk float64   `json:"mean_risk"`
	// NewDay is set by TickWorlds when this tick moved the world's clock
	// onto a new UTC day.
	NewDay bool `json:"new_day,omitempty"`
}

// Tick advances a world by dtHours of simulated time stamped at.
//
// Every student decays, then catches emotion from the students it is tied
// to, then is re-scored. Contagion always reads the emotions loaded at the
// start of the tick, never a value written earlier in the same tick.
// A second Tick for a world that is still ticking fails with ErrTickInProgress.
func (s *Simulation) Tick(ctx context.Context, world string, dtHours float64, at time.Time) (TickResult, error) {
	if dtHours < 0 || math.IsNaN(dtHours) || math.IsInf(dtHours, 0) {
		return TickResult{}, fmt.Errorf("invalid tick duration %v", dtHours)
	}

	l := s.worldLock(world)
	defer s.release(world, l)
	if !l.TryLock() {
		return TickResult{}, fmt.Errorf("%w %s", ErrTickInProgress, world)
	}
	defer l.Unlock()

	res := TickResult{World: world, At: at, Hours: dtHours}
	err := s.store.UpdateStates(ctx, world, func(states []agents.State) ([]agents.State, []Snapshot, error) {
		frozen := agents.FreezeEmotions(states)
		next := make([]agents.State, len(states))
		snaps := make([]Snapshot, len(states))
		riskSum := 0.0
		for i, st := range states {
			st = agents.Decay(st, dtHours, s.weights.Decay)
			st = agents.Spread(st, frozen, dtHours, s.weights.Social)
			st = agents.Rescore(st, s.supportIndex(world, st.ID), s.weights)
			next[i] = st
			snaps[i] = SnapshotOf(world, st, at)
			riskSum += st.Risk
		}
		res.Agents = len(next)
		if len(next) > 0 {
			res.MeanRisk = riskSum / float64(len(next))
		}
		return next, snaps, nil
	})
	if err != nil {
		return TickResult{}, fmt.Errorf("commit tick %s: %w", world, err)
	}

	s.log.Debug("tick", "world", world, "at", at.Format(time.RFC3339), "agents", res.Agents, "mean_risk", fmt.Sprintf("%.3f", res.MeanRisk))
	return res, nil
}

// TickWorlds advances every unpaused world at its own clock's "now" by the
// simulated time that clock has moved since the world's previous TickWorlds
// call, so state and snapshot stamps share one time base. A world's first
// tick in this process advances it by firstHours. Worlds tick concurrently.
// A world still busy with an earlier tick is skipped. The first failure is
// returned after all worlds have been attempted.
func (s *Simulation) TickWorlds(ctx context.Context, firstHours float64) ([]TickResult, error) {
	worlds, err := s.store.Worlds(ctx)
	if err != nil {
		return nil, fmt.Errorf("list worlds: %w", err)
	}

	var (
		mu      sync.Mutex
		results []TickResult
		g       errgroup.Group
	)
	g.SetLimit(s.parallel)
	for _, w := range worlds {
		g.Go(func() error {
			c, err := s.ClockOf(ctx, w.ID)
			if err != nil {
				return err
			}
			if c.Paused() {
				return nil
			}
			at := c.Now(s.now())
			prev, seen := s.previousTick(w.ID)
			dt := firstHours
			if seen {
				dt = max(at.Sub(prev).Hours(), 0)
			}

			res, err := s.Tick(ctx, w.ID, dt, at)
			if errors.Is(err, ErrTickInProgress) {
				s.log.Warn("tick skipped, world busy", "world", w.ID)
				return nil
			}
			if err != nil {
				s.log.Error("tick failed", "world", w.ID, "error", err)
				return err
			}
			res.NewDay = seen && DayKey(prev) != DayKey(at)
			s.recordTick(w.ID, at)

			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	err = g.Wait()
	sort.Slice(results, func(i, j int) bool { return results[i].World < results[j].World })
	return results, err
}

func (s *Simulation) previousTick(world string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.lastTick[world]
	return t, ok
}

func (s *Simulation) recordTick(world string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTick[world] = at
}

// InjectResult reports which students an event reached.
type InjectResult struct {
	Event   Event            `json:"event"`
	Applied []agents.AgentID `json:"applied"`
	Skipped []agents.AgentID `json:"skipped,omitempty"`
}

// InjectEvent validates e, logs it and appraises it immediately for each
// student it targets, re-scoring and snapshotting them at the event's time.
// Listed actors missing from the world are skipped.
func (s *Simulation) InjectEvent(ctx context.Context, e Event) (InjectResult, error) {
	e, err := NewEvent(e)
	if err != nil {
		return InjectResult{}, err
	}

	l := s.worldLock(e.World)
	defer s.release(e.World, l)
	l.Lock()
	defer l.Unlock()

	res := InjectResult{Event: e}
	err = s.store.AppendEvent(ctx, e, func(states []agents.State) ([]agents.State, []Snapshot, error) {
		var targets []*agents.State
		if e.Target == TargetClass {
			for i := range states {
				targets = append(targets, &states[i])
			}
		} else {
			idx := agents.Index(states)
			for _, id := range e.Actors {
				st, ok := idx[id]
				if !ok {
					s.log.Debug("event actor not found", "world", e.World, "agent", id, "event", e.ID)
					res.Skipped = append(res.Skipped, id)
					continue
				}
				targets = append(targets, st)
			}
		}

		updated := make([]agents.State, 0, len(targets))
		snaps := make([]Snapshot, 0, len(targets))
		for _, st := range targets {
			next := agents.Appraise(*st, e.Kind, e.Intensity, s.weights)
			next.LastEvent = string(e.Kind)
			next = agents.Rescore(next, s.supportIndex(e.World, next.ID), s.weights)
			updated = append(updated, next)
			snaps = append(snaps, SnapshotOf(e.World, next, e.Time))
			res.Applied = append(res.Applied, next.ID)
		}
		return updated, snaps, nil
	})
	if err != nil {
		return InjectResult{}, fmt.Errorf("record event %s: %w", e.ID, err)
	}
	s.log.Info("event injected", "world", e.World, "kind", e.Kind, "target", e.Target, "applied", len(res.Applied), "skipped", len(res.Skipped))
	return res, nil
}

// BehaviorChoice is the coping behavior one student took.
type BehaviorChoice struct {
	Agent    agents.AgentID  `json:"agent_id"`
	Behavior agents.Behavior `json:"behavior"`
}

// Act lets every student in a world pick and carry out one coping behavior,
// then re-scores and snapshots them at at. It never runs inside a tick.
func (s *Simulation) Act(ctx context.Context, world string, at time.Time) ([]BehaviorChoice, error) {
	l := s.worldLock(world)
	defer s.release(world, l)
	l.Lock()
	defer l.Unlock()

	var choices []BehaviorChoice
	err := s.store.UpdateStates(ctx, world, func(states []agents.State) ([]agents.State, []Snapshot, error) {
		choices = make([]BehaviorChoice, len(states))
		snaps := make([]Snapshot, len(states))
		for i, st := range states {
			b := agents.ChooseBehavior(st, s.weights.Behavior)
			st = agents.ApplyBehavior(st, b, s.weights.Behavior)
			st = agents.Rescore(st, s.supportIndex(world, st.ID), s.weights)
			states[i] = st
			snaps[i] = SnapshotOf(world, st, at)
			choices[i] = BehaviorChoice{Agent: st.ID, Behavior: b}
		}
		return states, snaps, nil
	})
	if err != nil {
		return nil, fmt.Errorf("commit behaviors %s: %w", world, err)
	}
	s.log.Info("behavior step", "world", world, "agents", len(choices))
	return choices, nil
}

// ActiveEvents returns the events running at at that concern agent, or every
// running event when agent is empty.
func (s *Simulation) ActiveEvents(ctx context.Context, world string, at time.Time, agent agents.AgentID, pageSize int) ([]Event, error) {
	if pageSize <= 0 {
		pageSize = 500
	}
	var out []Event
	// Stores keep millisecond times; the bound must still admit an event
	// starting exactly at at.
	q := EventQuery{World: world, To: at.Truncate(time.Millisecond).Add(time.Millisecond), Page: Page{Limit: pageSize}}
	for {
		page, err := s.store.Events(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("scan events %s: %w", world, err)
		}
		for _, le := range page {
			if le.ActiveAt(at) && (agent == "" || le.Concerns(agent)) {
				out = append(out, le.Event)
			}
		}
		if len(page) < q.Limit {
			return out, nil
		}
		q.After = page[len(page)-1].Seq
	}
}
