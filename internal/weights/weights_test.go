package weights

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestDefaultReturnsFreshMaps(t *testing.T) {
	a := Default()
	a.Impacts["quiz_low_score"] = Impact{Mood: 9}

	b := Default()
	if b.Impacts["quiz_low_score"].Mood != -0.5 {
		t.Errorf("mutating one Default leaked into another: %+v", b.Impacts["quiz_low_score"])
	}
}

func TestCloneIsDeep(t *testing.T) {
	a := Default()
	c := a.Clone()
	c.Energy["mock_exam"] = 1

	if a.Energy["mock_exam"] != -0.08 {
		t.Errorf("Clone shares maps with original: %v", a.Energy["mock_exam"])
	}
}

func TestUnknownKindHasZeroImpact(t *testing.T) {
	cfg := Default()
	if got := cfg.ImpactFor("alien_invasion"); got != (Impact{}) {
		t.Errorf("ImpactFor(unknown) = %+v, want zero", got)
	}
	if got := cfg.EnergyFor("quiz_low_score"); got != 0 {
		t.Errorf("EnergyFor(quiz_low_score) = %v, want 0", got)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"negative decay rate", func(c *Config) { c.Decay.StressDecay = -1 }, "decay.stress_decay"},
		{"nan risk weight", func(c *Config) { c.Risk.Joy = math.NaN() }, "risk.joy"},
		{"zero social decay", func(c *Config) { c.Social.Decay = 0 }, "social.decay"},
		{"neutral support above one", func(c *Config) { c.Support.Neutral = 1.5 }, "support.neutral"},
		{"infinite impact", func(c *Config) { c.Impacts["x"] = Impact{Mood: math.Inf(1)} }, "impact"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestParseOverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
decay:
  stress_decay: 0.1
impacts:
  exam_cancelled:
    mood: 0.6
    stress: -0.4
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Decay.StressDecay != 0.1 {
		t.Errorf("stress_decay = %v, want 0.1", cfg.Decay.StressDecay)
	}
	if cfg.Decay.EmotionReturn != 0.15 {
		t.Errorf("emotion_return = %v, want default 0.15", cfg.Decay.EmotionReturn)
	}
	if got := cfg.ImpactFor("exam_cancelled"); got.Mood != 0.6 || got.Stress != -0.4 {
		t.Errorf("new kind = %+v", got)
	}
	if got := cfg.ImpactFor("quiz_low_score"); got.Mood != -0.5 {
		t.Errorf("default kind lost after overlay: %+v", got)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	if _, err := Parse([]byte("social:\n  decay: 2\n")); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := Parse([]byte("decay: [1, 2")); err == nil {
		t.Fatal("expected yaml error")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.yaml")
	if err := os.WriteFile(path, []byte("risk:\n  stress: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Risk.Stress != 2 {
		t.Errorf("risk.stress = %v, want 2", cfg.Risk.Stress)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
