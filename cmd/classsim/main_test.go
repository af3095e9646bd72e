package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/talgya/classroom/internal/engine"
)

// run executes classsim against a scratch database and returns stdout.
func run(t *testing.T, db string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CLASSSIM_LOG_LEVEL", "error")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--db", db, "--env", filepath.Join(filepath.Dir(db), "missing.env")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestSeedTickExport(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cli.db")

	out, err := run(t, db, "seed", "--size", "6", "--seed", "3")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !strings.Contains(out, "seeded world default") || !strings.Contains(out, "6 students") {
		t.Errorf("seed output = %q", out)
	}
	if out, _ := run(t, db, "seed"); !strings.Contains(out, "already exists") {
		t.Errorf("second seed output = %q", out)
	}

	out, err = run(t, db, "inject", "peer_conflict", "--actor", "s01,ghost", "--json")
	if err != nil {
		t.Fatalf("inject: %v", err)
	}
	var res engine.InjectResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("inject output %q: %v", out, err)
	}
	if len(res.Applied) != 1 || len(res.Skipped) != 1 {
		t.Errorf("inject = %+v", res)
	}

	out, err = run(t, db, "tick", "--count", "2")
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if lines := strings.Count(out, "\n"); lines != 2 {
		t.Errorf("tick printed %d lines, want 2:\n%s", lines, out)
	}

	out, err = run(t, db, "export")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1+1+2*6 {
		t.Errorf("export has %d rows, want header + 13", len(rows))
	}

	out, err = run(t, db, "act")
	if err != nil || !strings.HasPrefix(out, "STUDENT") {
		t.Errorf("act = %q, %v", out, err)
	}
	if _, err := run(t, db, "aggregate", "--all"); err != nil {
		t.Errorf("aggregate: %v", err)
	}
}

func TestCommandsNeedSeededWorld(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cli.db")
	for _, args := range [][]string{{"tick"}, {"act"}, {"top"}, {"clock"}} {
		if _, err := run(t, db, args...); err == nil || !strings.Contains(err.Error(), "classsim seed") {
			t.Errorf("%v on empty db: err = %v", args, err)
		}
	}
}

func TestClockCommands(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cli.db")
	if _, err := run(t, db, "seed", "--size", "2"); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, db, "clock", "pause")
	if err != nil || !strings.Contains(out, "paused") {
		t.Errorf("clock pause = %q, %v", out, err)
	}
	if _, err := run(t, db, "clock", "step", "0"); err == nil {
		t.Error("zero-day step accepted")
	}
	if _, err := run(t, db, "clock", "scale", "-1"); err == nil {
		t.Error("negative scale accepted")
	}
	out, err = run(t, db, "clock", "scale", "60")
	if err != nil || !strings.Contains(out, "x60") {
		t.Errorf("clock scale = %q, %v", out, err)
	}
}

func TestInjectRequiresActors(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cli.db")
	if _, err := run(t, db, "seed", "--size", "2"); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, db, "inject", "quiz_low_score"); err == nil {
		t.Error("agent event without actors accepted")
	}
	if out, err := run(t, db, "inject", "field_trip", "--class"); err != nil || !strings.Contains(out, "not a known kind") {
		t.Errorf("unknown kind = %q, %v", out, err)
	}
}
