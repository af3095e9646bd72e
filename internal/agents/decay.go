package agents

import (
	"math"

	"github.com/talgya/classroom/internal/weights"
)

// Decay advances s by dtHours of quiet time: emotions fall back toward zero,
// stress eases and energy recovers. It never looks at other students or events.
// A non-positive or NaN duration returns s unchanged.
func Decay(s State, dtHours float64, w weights.Decay) State {
	if !(dtHours > 0) {
		return s
	}

	// Retention is floored at zero so a long gap cannot flip an emotion's sign.
	keep := math.Max(0, 1-w.EmotionReturn*dtHours)
	s.Emotion = Emotion{
		Joy:     Squash(s.Emotion.Joy * keep),
		Anxiety: Squash(s.Emotion.Anxiety * keep),
		Sadness: Squash(s.Emotion.Sadness * keep),
		Anger:   Squash(s.Emotion.Anger * keep),
	}
	s.Stress = Clamp01(Squash(s.Stress - w.StressDecay*dtHours))
	s.Energy = Clamp01(Squash(s.Energy + w.EnergyRecovery*dtHours))
	return s
}
