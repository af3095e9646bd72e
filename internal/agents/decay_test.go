package agents

import (
	"math"
	"testing"

	"github.com/talgya/classroom/internal/weights"
)

func TestDecayTwoHours(t *testing.T) {
	s := NewState("s01", "x", "c", NeutralTraits(), nil)
	s.Emotion = Emotion{Joy: 0.6, Anxiety: 0.4, Sadness: -0.3, Anger: 0.2}
	s.Stress = 0.7
	s.Energy = 0.3

	got := Decay(s, 2, weights.Default().Decay)

	approx(t, "joy", got.Emotion.Joy, 0.397, 0.002)
	approx(t, "stress", got.Stress, 0.537, 0.002)
	approx(t, "energy", got.Energy, 0.604, 0.002)
	approx(t, "sadness", got.Emotion.Sadness, math.Tanh(-0.21), 1e-9)
}

func TestDecayNormReducing(t *testing.T) {
	w := weights.Default().Decay
	emotions := []Emotion{
		{0.9, -0.9, 0.5, -0.1},
		{-0.4, 0.7, -0.8, 0.99},
		{},
	}
	for _, e := range emotions {
		for _, dt := range []float64{0.5, 2, 10, 1000} {
			for _, st := range []float64{0.05, 0.4, 1} {
				for _, en := range []float64{0, 0.2, 0.4, 0.6} {
					s := State{Emotion: e, Stress: st, Energy: en}
					got := Decay(s, dt, w)

					before := []float64{e.Joy, e.Anxiety, e.Sadness, e.Anger}
					after := []float64{got.Emotion.Joy, got.Emotion.Anxiety, got.Emotion.Sadness, got.Emotion.Anger}
					for i := range before {
						if math.Abs(after[i]) > math.Abs(before[i]) {
							t.Errorf("dt=%v: |emotion[%d]| grew %v -> %v", dt, i, before[i], after[i])
						}
					}
					if got.Stress >= st {
						t.Errorf("dt=%v: stress %v did not decrease from %v", dt, got.Stress, st)
					}
					if dt >= 2 && got.Energy <= en {
						t.Errorf("dt=%v: energy %v did not increase from %v", dt, got.Energy, en)
					}
					assertBounded(t, "decay", got)
				}
			}
		}
	}
}

func TestDecayNeverFlipsSign(t *testing.T) {
	s := State{Emotion: Emotion{Joy: 0.5, Anxiety: -0.5}}
	got := Decay(s, 100, weights.Default().Decay)
	if got.Emotion.Joy != 0 || got.Emotion.Anxiety != 0 {
		t.Errorf("long decay = %+v, want emotions at zero", got.Emotion)
	}
}

func TestDecayNonPositiveDurationIsNoop(t *testing.T) {
	s := State{Emotion: Emotion{Joy: 0.5}, Stress: 0.5, Energy: 0.5}
	for _, dt := range []float64{0, -3, math.NaN()} {
		if got := Decay(s, dt, weights.Default().Decay); got.Emotion != s.Emotion || got.Stress != s.Stress || got.Energy != s.Energy {
			t.Errorf("Decay(dt=%v) changed state: %+v", dt, got)
		}
	}
}
