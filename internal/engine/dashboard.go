package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/talgya/classroom/internal/agents"
)

// Metric names a daily-average column.
type Metric string

const (
	MetricStress  Metric = "stress"
	MetricAnxiety Metric = "anxiety"
	MetricJoy     Metric = "joy"
)

// ParseMetric validates a metric name.
func ParseMetric(name string) (Metric, error) {
	switch m := Metric(name); m {
	case MetricStress, MetricAnxiety, MetricJoy:
		return m, nil
	}
	return "", fmt.Errorf("unknown metric %q", name)
}

func (m Metric) of(d DailyStat) float64 {
	switch m {
	case MetricStress:
		return d.AvgStress
	case MetricAnxiety:
		return d.AvgAnxiety
	}
	return d.AvgJoy
}

// improvement turns a change from prev to last into a score where larger
// is better for the student.
func (m Metric) improvement(prev, last float64) float64 {
	if m == MetricJoy {
		return last - prev
	}
	return prev - last
}

// Dashboard answers read-only trend queries over daily stats.
type Dashboard struct {
	store Store
}

// NewDashboard creates a Dashboard over store.
func NewDashboard(store Store) *Dashboard {
	return &Dashboard{store: store}
}

// DayTrend is the class average for one day.
type DayTrend struct {
	Day        string  `json:"day"`
	AvgStress  float64 `json:"stress_avg"`
	AvgAnxiety float64 `json:"anxiety_avg"`
	AvgJoy     float64 `json:"joy_avg"`
	Agents     int     `json:"agents"`
}

// ClassTrends averages every student's daily row per day, oldest first.
func (d *Dashboard) ClassTrends(ctx context.Context, world, fromDay, toDay string) ([]DayTrend, error) {
	rows, err := d.store.DailyStats(ctx, world, "", fromDay, toDay)
	if err != nil {
		return nil, fmt.Errorf("class trends %s: %w", world, err)
	}
	byDay := make(map[string]*DayTrend)
	for _, r := range rows {
		t, ok := byDay[r.Day]
		if !ok {
			t = &DayTrend{Day: r.Day}
			byDay[r.Day] = t
		}
		t.AvgStress += r.AvgStress
		t.AvgAnxiety += r.AvgAnxiety
		t.AvgJoy += r.AvgJoy
		t.Agents++
	}
	out := make([]DayTrend, 0, len(byDay))
	for _, t := range byDay {
		n := float64(t.Agents)
		t.AvgStress /= n
		t.AvgAnxiety /= n
		t.AvgJoy /= n
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out, nil
}

// AgentTrends returns one student's daily rows, oldest first.
func (d *Dashboard) AgentTrends(ctx context.Context, world string, agent agents.AgentID, fromDay, toDay string) ([]DailyStat, error) {
	rows, err := d.store.DailyStats(ctx, world, agent, fromDay, toDay)
	if err != nil {
		return nil, fmt.Errorf("agent trends %s/%s: %w", world, agent, err)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Day < rows[j].Day })
	return rows, nil
}

// DistributionLatest returns every row of the most recent aggregated day.
func (d *Dashboard) DistributionLatest(ctx context.Context, world string) ([]DailyStat, error) {
	rows, err := d.store.DailyStats(ctx, world, "", "", "")
	if err != nil {
		return nil, fmt.Errorf("latest distribution %s: %w", world, err)
	}
	latest := ""
	for _, r := range rows {
		if r.Day > latest {
			latest = r.Day
		}
	}
	out := []DailyStat{}
	for _, r := range rows {
		if r.Day == latest {
			out = append(out, r)
		}
	}
	return out, nil
}

// Mover is one student's change between two trailing windows.
type Mover struct {
	Agent agents.AgentID `json:"agent_id"`
	Prev  float64        `json:"prev_avg"`
	Last  float64        `json:"last_avg"`
	Delta float64        `json:"delta"` // positive means improved
}

// Movers splits students into the most improved and most worsened.
type Movers struct {
	Metric   Metric  `json:"metric"`
	Improved []Mover `json:"improved"`
	Worsened []Mover `json:"worsened"`
}

const (
	moverWindow     = 7
	moverMinSamples = 3
)

// TopMovers compares each student's latest 7 daily rows with the 7 before
// and returns the n most improved and n most worsened. Students with fewer
// than 3 rows in either window are left out.
func (d *Dashboard) TopMovers(ctx context.Context, world string, metric Metric, n int) (Movers, error) {
	rows, err := d.store.DailyStats(ctx, world, "", "", "")
	if err != nil {
		return Movers{}, fmt.Errorf("top movers %s: %w", world, err)
	}

	byAgent := make(map[agents.AgentID][]DailyStat)
	for _, r := range rows {
		byAgent[r.Agent] = append(byAgent[r.Agent], r)
	}

	var all []Mover
	for id, rs := range byAgent {
		sort.Slice(rs, func(i, j int) bool { return rs[i].Day > rs[j].Day })
		last := rs[:min(moverWindow, len(rs))]
		var prev []DailyStat
		if len(rs) > moverWindow {
			prev = rs[moverWindow:min(2*moverWindow, len(rs))]
		}
		if len(last) < moverMinSamples || len(prev) < moverMinSamples {
			continue
		}
		p, l := mean(prev, metric), mean(last, metric)
		all = append(all, Mover{Agent: id, Prev: p, Last: l, Delta: metric.improvement(p, l)})
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Delta != all[j].Delta {
			return all[i].Delta > all[j].Delta
		}
		return all[i].Agent < all[j].Agent
	})

	out := Movers{Metric: metric, Improved: []Mover{}, Worsened: []Mover{}}
	for _, m := range all {
		if len(out.Improved) == n {
			break
		}
		if m.Delta > 0 {
			out.Improved = append(out.Improved, m)
		}
	}
	for i := len(all) - 1; i >= 0 && len(out.Worsened) < n; i-- {
		if all[i].Delta < 0 {
			out.Worsened = append(out.Worsened, all[i])
		}
	}
	return out, nil
}

func mean(rows []DailyStat, m Metric) float64 {
	sum := 0.0
	for _, r := range rows {
		sum += m.of(r)
	}
	return sum / float64(len(rows))
}

// ClassEvent is a class-wide event placed on its day.
type ClassEvent struct {
	Day  string      `json:"day"`
	Kind agents.Kind `json:"kind"`
}

// ClassEvents lists the class-wide events that started between fromDay and
// toDay inclusive, for annotating trend charts.
func (d *Dashboard) ClassEvents(ctx context.Context, world, fromDay, toDay string, pageSize int) ([]ClassEvent, error) {
	from, err := time.Parse(DayLayout, fromDay)
	if err != nil {
		return nil, fmt.Errorf("parse from day: %w", err)
	}
	to, err := time.Parse(DayLayout, toDay)
	if err != nil {
		return nil, fmt.Errorf("parse to day: %w", err)
	}
	if pageSize <= 0 {
		pageSize = 500
	}

	out := []ClassEvent{}
	q := EventQuery{World: world, From: from, To: to.AddDate(0, 0, 1), Page: Page{Limit: pageSize}}
	for {
		page, err := d.store.Events(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("class events %s: %w", world, err)
		}
		for _, le := range page {
			if le.Target == TargetClass {
				out = append(out, ClassEvent{Day: DayKey(le.Time), Kind: le.Kind})
			}
		}
		if len(page) < q.Limit {
			return out, nil
		}
		q.After = page[len(page)-1].Seq
	}
}
