package agents

import (
	"math"

	"github.com/talgya/classroom/internal/weights"
)

// SupportEstimate blends an external support index with the summed strength
// of the student's supportive ties, capped to [0, 1].
func SupportEstimate(ties []Tie, index float64, w weights.Support) float64 {
	fromTies := 0.0
	for _, t := range ties {
		if t.Weight > 0 {
			fromTies += t.Weight
		}
	}
	return Clamp01(Clamp01(index)*w.IndexWeight + fromTies*w.TieWeight)
}

// Risk is the early-warning score of s given an estimated support level.
// Only positive anxiety, sadness and joy count.
func Risk(s State, support float64, w weights.Risk) float64 {
	x := w.Stress*s.Stress +
		w.Anxiety*math.Max(0, s.Emotion.Anxiety) +
		w.Sadness*math.Max(0, s.Emotion.Sadness) -
		w.Joy*math.Max(0, s.Emotion.Joy) -
		w.Support*Clamp01(support)
	return Clamp01(Sigmoid(x))
}

// Rescore recomputes the derived risk of s. index is the external support
// index for the student; pass w.Support.Neutral when none is known.
func Rescore(s State, index float64, w weights.Config) State {
	s.Risk = Risk(s, SupportEstimate(s.Ties, index, w.Support), w.Risk)
	return s
}
