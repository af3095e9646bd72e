package persistence

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/talgya/classroom/internal/agents"
	"github.com/talgya/classroom/internal/engine"
	"github.com/talgya/classroom/internal/weights"
)

var testNow = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "classroom.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newSim(db *DB) *engine.Simulation {
	return engine.NewSimulation(db, weights.Default(), engine.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:    func() time.Time { return testNow },
	})
}

func seedWorld(t *testing.T, db *DB) (*engine.Simulation, string, []agents.State) {
	t.Helper()
	sim := newSim(db)
	roster := agents.NewSpawner(agents.SpawnConfig{Seed: 7, Size: 8, Columns: 4, Class: "G3-1"}).Spawn()
	w, inserted, err := sim.InitWorld(context.Background(), engine.World{ID: "w1", Name: "G3-1"}, roster)
	if err != nil || !inserted {
		t.Fatalf("InitWorld = %v, %v", inserted, err)
	}
	return sim, w.ID, roster
}

func TestStatesRoundTrip(t *testing.T) {
	db := openTestDB(t)
	_, world, roster := seedWorld(t, db)
	ctx := context.Background()

	got, err := db.LoadStates(ctx, world)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(roster) {
		t.Fatalf("loaded %d states, want %d", len(got), len(roster))
	}
	for i := range roster {
		if got[i].ID != roster[i].ID || got[i].Traits != roster[i].Traits || !reflect.DeepEqual(got[i].Ties, roster[i].Ties) {
			t.Errorf("state %d = %+v, want %+v", i, got[i], roster[i])
		}
		if got[i].Risk == 0 {
			t.Errorf("%s stored without risk", got[i].ID)
		}
	}

	inserted, err := db.InsertStates(ctx, world, roster[:1])
	if err != nil || inserted {
		t.Errorf("second InsertStates = %v, %v; want false", inserted, err)
	}
}

func TestWorlds(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := db.CreateWorld(ctx, engine.World{ID: "a", Name: "A", CreatedAt: testNow}); err != nil {
		t.Fatal(err)
	}
	if err := db.CreateWorld(ctx, engine.World{ID: "a", Name: "dup", CreatedAt: testNow}); err != nil {
		t.Fatalf("duplicate CreateWorld: %v", err)
	}

	w, err := db.World(ctx, "a")
	if err != nil || w.Name != "A" || !w.CreatedAt.Equal(testNow) {
		t.Errorf("World(a) = %+v, %v", w, err)
	}
	if _, err := db.World(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("World(missing) err = %v, want ErrNotFound", err)
	}
	all, err := db.Worlds(ctx)
	if err != nil || len(all) != 1 {
		t.Errorf("Worlds = %+v, %v", all, err)
	}
}

func TestTickAndInjectPersist(t *testing.T) {
	db := openTestDB(t)
	sim, world, roster := seedWorld(t, db)
	ctx := context.Background()

	res, err := sim.InjectEvent(ctx, engine.Event{
		World: world, Kind: agents.KindPeerConflict, Time: testNow.Add(-time.Hour),
		Intensity: 0.9, Actors: []agents.AgentID{roster[0].ID, "ghost"},
		End: testNow.Add(time.Hour), Payload: `{"note":"hallway"}`,
	})
	if err != nil {
		t.Fatalf("InjectEvent: %v", err)
	}
	if _, err := sim.Tick(ctx, world, 1, testNow); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	events, err := db.Events(ctx, engine.EventQuery{World: world})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	e := events[0].Event
	if e.ID != res.Event.ID || !e.End.Equal(testNow.Add(time.Hour)) || e.Payload != `{"note":"hallway"}` || len(e.Actors) != 2 {
		t.Errorf("stored event = %+v", e)
	}

	snaps, err := db.Snapshots(ctx, engine.SnapshotQuery{World: world})
	if err != nil {
		t.Fatal(err)
	}
	if want := 1 + len(roster); len(snaps) != want {
		t.Fatalf("snapshots = %d, want %d", len(snaps), want)
	}
	if !snaps[0].Time.Equal(testNow.Add(-time.Hour)) || snaps[0].Agent != roster[0].ID {
		t.Errorf("event snapshot = %+v", snaps[0])
	}

	one, err := db.Snapshots(ctx, engine.SnapshotQuery{World: world, Agent: roster[0].ID, From: testNow})
	if err != nil {
		t.Fatal(err)
	}
	if len(one) != 1 || !one[0].Time.Equal(testNow) {
		t.Errorf("filtered snapshots = %+v", one)
	}

	states, err := db.LoadStates(ctx, world)
	if err != nil {
		t.Fatal(err)
	}
	if states[0].LastEvent != string(agents.KindPeerConflict) || states[0].Stress <= agents.DefaultStress {
		t.Errorf("appraised state not persisted: %+v", states[0])
	}
}

func TestActiveEventsAtStart(t *testing.T) {
	db := openTestDB(t)
	sim, world, _ := seedWorld(t, db)
	ctx := context.Background()

	for _, at := range []time.Time{testNow, testNow.Add(time.Millisecond)} {
		_, err := sim.InjectEvent(ctx, engine.Event{World: world, Kind: agents.KindMockExam, Time: at, Intensity: 0.5})
		if err != nil {
			t.Fatalf("InjectEvent: %v", err)
		}
	}

	active, err := sim.ActiveEvents(ctx, world, testNow, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || !active[0].Time.Equal(testNow) {
		t.Errorf("active at start = %+v, want the event starting at %v", active, testNow)
	}
}

// Two handles on one file stand in for a CLI run racing the server.
func TestUpdateStatesAcrossHandles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classroom.db")
	dbA, err := Open(path)
	if err != nil {
		t.Fatalf("Open A: %v", err)
	}
	t.Cleanup(func() { dbA.Close() })
	dbB, err := Open(path)
	if err != nil {
		t.Fatalf("Open B: %v", err)
	}
	t.Cleanup(func() { dbB.Close() })

	_, world, roster := seedWorld(t, dbA)
	simB := newSim(dbB)
	ctx := context.Background()
	target := roster[0].ID

	injected := make(chan error, 1)
	err = dbA.UpdateStates(ctx, world, func(states []agents.State) ([]agents.State, []engine.Snapshot, error) {
		go func() {
			_, err := simB.InjectEvent(ctx, engine.Event{
				World: world, Kind: agents.KindPeerConflict, Time: testNow,
				Intensity: 0.9, Actors: []agents.AgentID{target},
			})
			injected <- err
		}()
		// Hold the write transaction while the other handle tries to inject.
		time.Sleep(100 * time.Millisecond)
		for i := range states {
			states[i].MemoryKeys = []string{"held"}
		}
		return states, nil, nil
	})
	if err != nil {
		t.Fatalf("UpdateStates: %v", err)
	}
	if err := <-injected; err != nil {
		t.Fatalf("InjectEvent on second handle: %v", err)
	}

	states, err := dbA.LoadStates(ctx, world)
	if err != nil {
		t.Fatal(err)
	}
	got := states[0]
	if got.ID != target {
		t.Fatalf("first state = %s, want %s", got.ID, target)
	}
	if got.LastEvent != string(agents.KindPeerConflict) {
		t.Errorf("LastEvent = %q, injected event lost", got.LastEvent)
	}
	if !reflect.DeepEqual(got.MemoryKeys, []string{"held"}) {
		t.Errorf("MemoryKeys = %v, concurrent update lost", got.MemoryKeys)
	}

	snaps, err := dbA.Snapshots(ctx, engine.SnapshotQuery{World: world, Agent: target})
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 1 || snaps[0].Stress != got.Stress {
		t.Errorf("event snapshot = %+v, stored stress %v", snaps, got.Stress)
	}
}

func TestEventPagination(t *testing.T) {
	db := openTestDB(t)
	sim, world, _ := seedWorld(t, db)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := sim.InjectEvent(ctx, engine.Event{World: world, Kind: agents.KindMockExam, Target: engine.TargetClass, Time: testNow.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatal(err)
		}
	}

	var seen []int64
	q := engine.EventQuery{World: world, From: testNow.Add(time.Hour), Page: engine.Page{Limit: 2}}
	for {
		page, err := db.Events(ctx, q)
		if err != nil {
			t.Fatal(err)
		}
		for _, e := range page {
			seen = append(seen, e.Seq)
		}
		if len(page) < q.Limit {
			break
		}
		q.After = page[len(page)-1].Seq
	}
	if len(seen) != 4 {
		t.Errorf("paged through %v, want 4 events", seen)
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] <= seen[i-1] {
			t.Errorf("pages out of order: %v", seen)
		}
	}
}

func TestAggregationIdempotent(t *testing.T) {
	db := openTestDB(t)
	sim, world, _ := seedWorld(t, db)
	ctx := context.Background()

	for h := 0; h < 30; h++ {
		if _, err := sim.Tick(ctx, world, 1, testNow.Add(time.Duration(h-30)*time.Hour)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := sim.InjectEvent(ctx, engine.Event{World: world, Kind: agents.KindMockExam, Target: engine.TargetClass, Time: testNow.Add(-2 * time.Hour), Intensity: 1}); err != nil {
		t.Fatal(err)
	}

	agg := engine.NewDailyAggregator(db, engine.AggregatorConfig{SnapshotPage: 7, EventPage: 1}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	first, err := agg.Run(ctx, world, testNow)
	if err != nil {
		t.Fatal(err)
	}
	rows1, err := db.DailyStats(ctx, world, "", "", "")
	if err != nil {
		t.Fatal(err)
	}

	second, err := agg.Run(ctx, world, testNow)
	if err != nil {
		t.Fatal(err)
	}
	rows2, err := db.DailyStats(ctx, world, "", "", "")
	if err != nil {
		t.Fatal(err)
	}

	if first != second {
		t.Errorf("runs differ: %+v vs %+v", first, second)
	}
	if len(rows1) == 0 || !reflect.DeepEqual(rows1, rows2) {
		t.Errorf("rows changed between runs:\n%+v\n%+v", rows1, rows2)
	}

	// Two days of ticks plus today's live state.
	days := map[string]bool{}
	for _, r := range rows1 {
		days[r.Day] = true
	}
	if len(days) != 2 {
		t.Errorf("days = %v, want 2025-03-02 and 2025-03-03", days)
	}
	today, err := db.DailyStats(ctx, world, "s01", "2025-03-03", "2025-03-03")
	if err != nil || len(today) != 1 || today[0].Events != 1 {
		t.Errorf("s01 today = %+v, %v", today, err)
	}
}

func TestClockRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, ok, err := db.Clock(ctx, "w"); ok || err != nil {
		t.Fatalf("unset clock = %v, %v", ok, err)
	}
	want := engine.Clock{TimeScale: 30, WorldNow: testNow, UpdatedAt: testNow.Add(time.Minute)}
	if err := db.SaveClock(ctx, "w", want); err != nil {
		t.Fatal(err)
	}
	got, ok, err := db.Clock(ctx, "w")
	if err != nil || !ok || got.TimeScale != 30 || !got.WorldNow.Equal(want.WorldNow) || !got.UpdatedAt.Equal(want.UpdatedAt) {
		t.Errorf("Clock = %+v, %v, %v", got, ok, err)
	}
}
