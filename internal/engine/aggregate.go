package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/talgya/classroom/internal/agents"
)

// AggregatorConfig bounds a daily aggregation run.
type AggregatorConfig struct {
	WindowDays   int `yaml:"window_days"`
	SnapshotPage int `yaml:"snapshot_page"`
	EventPage    int `yaml:"event_page"`
}

// DefaultAggregatorConfig scans a trailing week in pages of 1000 snapshots
// and 500 events.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{WindowDays: 7, SnapshotPage: 1000, EventPage: 500}
}

// DailyAggregator rolls snapshot and event history into DailyStat rows.
// Rows are upserted, so re-running over the same window is safe.
type DailyAggregator struct {
	store Store
	cfg   AggregatorConfig
	log   *slog.Logger
}

// NewDailyAggregator creates an aggregator. Non-positive config fields take
// their defaults.
func NewDailyAggregator(store Store, cfg AggregatorConfig, logger *slog.Logger) *DailyAggregator {
	def := DefaultAggregatorConfig()
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = def.WindowDays
	}
	if cfg.SnapshotPage <= 0 {
		cfg.SnapshotPage = def.SnapshotPage
	}
	if cfg.EventPage <= 0 {
		cfg.EventPage = def.EventPage
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DailyAggregator{store: store, cfg: cfg, log: logger}
}

// AggregateResult summarizes one world's run.
type AggregateResult struct {
	World     string `json:"world_id"`
	Rows      int    `json:"rows"`
	Snapshots int    `json:"snapshots"`
	Events    int    `json:"events"`
}

type dayAgent struct {
	day   string
	agent agents.AgentID
}

type accumulator struct {
	stress, anxiety, joy float64
	count                int
	personal             int
}

// Run aggregates one world. now is the world's simulated "now": the window
// starts at UTC midnight WindowDays before it, so the oldest day is always
// rebuilt whole, and the live states count as one more sample for now's day.
func (a *DailyAggregator) Run(ctx context.Context, world string, now time.Time) (AggregateResult, error) {
	start := now.UTC().AddDate(0, 0, -a.cfg.WindowDays).Truncate(24 * time.Hour)
	acc := make(map[dayAgent]*accumulator)
	classByDay := make(map[string]int)
	res := AggregateResult{World: world}

	sample := func(day string, id agents.AgentID, stress float64, e agents.Emotion) {
		k := dayAgent{day, id}
		v, ok := acc[k]
		if !ok {
			v = &accumulator{}
			acc[k] = v
		}
		v.stress += stress
		v.anxiety += e.Anxiety
		v.joy += e.Joy
		v.count++
	}

	sq := SnapshotQuery{World: world, From: start, Page: Page{Limit: a.cfg.SnapshotPage}}
	for {
		page, err := a.store.Snapshots(ctx, sq)
		if err != nil {
			return res, fmt.Errorf("scan snapshots %s: %w", world, err)
		}
		for _, sn := range page {
			sample(DayKey(sn.Time), sn.Agent, sn.Stress, sn.Emotion)
		}
		res.Snapshots += len(page)
		if len(page) < sq.Limit {
			break
		}
		sq.After = page[len(page)-1].ID
	}

	eq := EventQuery{World: world, From: start, Page: Page{Limit: a.cfg.EventPage}}
	for {
		page, err := a.store.Events(ctx, eq)
		if err != nil {
			return res, fmt.Errorf("scan events %s: %w", world, err)
		}
		for _, le := range page {
			day := DayKey(le.Time)
			if le.Target == TargetClass {
				classByDay[day]++
				continue
			}
			for _, id := range le.Actors {
				k := dayAgent{day, id}
				v, ok := acc[k]
				if !ok {
					v = &accumulator{}
					acc[k] = v
				}
				v.personal++
			}
		}
		res.Events += len(page)
		if len(page) < eq.Limit {
			break
		}
		eq.After = page[len(page)-1].Seq
	}

	states, err := a.store.LoadStates(ctx, world)
	if err != nil {
		return res, fmt.Errorf("load states %s: %w", world, err)
	}
	today := DayKey(now)
	for _, st := range states {
		sample(today, st.ID, st.Stress, st.Emotion)
	}

	stats := make([]DailyStat, 0, len(acc))
	for k, v := range acc {
		if v.count == 0 {
			continue
		}
		n := float64(v.count)
		stats = append(stats, DailyStat{
			World:      world,
			Agent:      k.agent,
			Day:        k.day,
			AvgStress:  v.stress / n,
			AvgAnxiety: v.anxiety / n,
			AvgJoy:     v.joy / n,
			Samples:    v.count,
			Events:     v.personal + classByDay[k.day],
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Day != stats[j].Day {
			return stats[i].Day < stats[j].Day
		}
		return stats[i].Agent < stats[j].Agent
	})

	if err := a.store.UpsertDailyStats(ctx, stats); err != nil {
		return res, fmt.Errorf("upsert daily stats %s: %w", world, err)
	}
	res.Rows = len(stats)

	a.log.Info("daily stats aggregated",
		"world", world,
		"rows", humanize.Comma(int64(res.Rows)),
		"snapshots", humanize.Comma(int64(res.Snapshots)),
		"events", humanize.Comma(int64(res.Events)),
	)
	return res, nil
}

// RunAll aggregates every known world, each at the time nowOf reports.
func (a *DailyAggregator) RunAll(ctx context.Context, nowOf func(context.Context, string) (time.Time, error)) ([]AggregateResult, error) {
	worlds, err := a.store.Worlds(ctx)
	if err != nil {
		return nil, fmt.Errorf("list worlds: %w", err)
	}

	var (
		mu  sync.Mutex
		out []AggregateResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, w := range worlds {
		g.Go(func() error {
			now, err := nowOf(gctx, w.ID)
			if err != nil {
				return err
			}
			res, err := a.Run(gctx, w.ID, now)
			if err != nil {
				return err
			}
			mu.Lock()
			out = append(out, res)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].World < out[j].World })
	return out, nil
}
