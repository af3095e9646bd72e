package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "data/classroom.db" || cfg.APIPort != 8080 || cfg.HoursPerTick != 1 {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.TickInterval != time.Second || cfg.WindowDays != 7 || cfg.SnapshotPage != 1000 || cfg.EventPage != 500 {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.TimeScale != 0 || cfg.ClockScale() != 3600 {
		t.Errorf("ClockScale() = %v, want one simulated hour per real second", cfg.ClockScale())
	}
	agg := cfg.Aggregator()
	if agg.WindowDays != 7 || agg.EventPage != 500 {
		t.Errorf("Aggregator() = %+v", agg)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CLASSSIM_API_PORT", "9090")
	t.Setenv("CLASSSIM_HOURS_PER_TICK", "0.5")
	t.Setenv("CLASSSIM_TICK_INTERVAL", "250ms")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIPort != 9090 || cfg.HoursPerTick != 0.5 || cfg.TickInterval != 250*time.Millisecond {
		t.Errorf("cfg = %+v", cfg)
	}
	if got := cfg.ClockScale(); got != 7200 {
		t.Errorf("ClockScale() = %v, want 7200", got)
	}

	t.Setenv("CLASSSIM_TIME_SCALE", "2")
	cfg, err = Load("")
	if err != nil || cfg.ClockScale() != 2 {
		t.Errorf("explicit ClockScale() = %v, %v", cfg.ClockScale(), err)
	}
}

func TestLoadDotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("CLASSSIM_CLASS_NAME=G2-4\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// Restore the variable after the test whatever godotenv does to it.
	t.Setenv("CLASSSIM_CLASS_NAME", "")
	os.Unsetenv("CLASSSIM_CLASS_NAME")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ClassName != "G2-4" {
		t.Errorf("ClassName = %q, want value from .env", cfg.ClassName)
	}

	if err := LoadDotenv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing .env should be ignored, got %v", err)
	}
}

func TestParseEnvError(t *testing.T) {
	t.Setenv("CLASSSIM_API_PORT", "not-an-int")
	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("err = %v, want parse env error", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"zero hours", "CLASSSIM_HOURS_PER_TICK", "0"},
		{"negative scale", "CLASSSIM_TIME_SCALE", "-1"},
		{"empty class", "CLASSSIM_CLASS_SIZE", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := Load(""); err == nil || !strings.Contains(err.Error(), tt.key) {
				t.Errorf("err = %v, want mention of %s", err, tt.key)
			}
		})
	}
}

func TestWeights(t *testing.T) {
	w, err := Config{}.Weights()
	if err != nil || w.Social.Spread != 0.2 {
		t.Fatalf("default weights = %+v, %v", w.Social, err)
	}

	path := filepath.Join(t.TempDir(), "weights.yaml")
	if err := os.WriteFile(path, []byte("social:\n  spread: 0.35\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	w, err = Config{WeightsFile: path}.Weights()
	if err != nil || w.Social.Spread != 0.35 {
		t.Errorf("file weights = %+v, %v", w.Social, err)
	}

	if _, err := (Config{WeightsFile: filepath.Join(t.TempDir(), "nope.yaml")}).Weights(); err == nil {
		t.Error("missing weights file accepted")
	}
}
