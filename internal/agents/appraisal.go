package agents

import "github.com/talgya/classroom/internal/weights"

// PersonalModifier is how much the student's traits bend an event of the given
// kind. It may be negative, which damps the event.
func PersonalModifier(kind Kind, t Traits, m weights.TraitModifiers) float64 {
	mod := 0.0
	if kind.IsNegative() {
		mod += m.NegativeSensitivity * t.Neuroticism
	}
	if kind.IsPositive() {
		mod += m.PositiveBoost * t.Conscientiousness
	}
	if kind.IsSocial() {
		mod -= m.SocialBuffer * t.Agreeableness
		if kind == KindPeerSupport {
			mod += m.SupportAmplify * t.Extraversion
		}
	}
	return mod
}

// Appraise applies an event of the given kind and intensity to s.
// Kinds with neither a mood/stress impact nor an energy nudge leave s untouched.
func Appraise(s State, kind Kind, intensity float64, w weights.Config) State {
	impact, hasImpact := w.Impacts[string(kind)]
	energy, hasEnergy := w.Energy[string(kind)]
	if !hasImpact && !hasEnergy {
		return s
	}

	scale := Clamp01(intensity) * (1 + PersonalModifier(kind, s.Traits, w.Traits))

	s.Emotion = applyMoodDelta(s.Emotion, impact.Mood*scale, w.Spill)
	s.Stress = Clamp01(Squash(s.Stress + impact.Stress*scale))
	s.Energy = Clamp01(Squash(s.Energy + energy))
	return s
}

// applyMoodDelta raises joy and eases the negative emotions for a
// non-negative delta, and the reverse for a negative one.
func applyMoodDelta(e Emotion, delta float64, spill weights.MoodSpill) Emotion {
	if delta >= 0 {
		return Emotion{
			Joy:     Squash(e.Joy + delta),
			Sadness: Squash(e.Sadness - delta*spill.PositiveSadness),
			Anxiety: Squash(e.Anxiety - delta*spill.PositiveAnxiety),
			Anger:   Squash(e.Anger - delta*spill.PositiveAnger),
		}
	}
	m := -delta
	return Emotion{
		Joy:     Squash(e.Joy - m),
		Sadness: Squash(e.Sadness + m*spill.NegativeSadness),
		Anxiety: Squash(e.Anxiety + m*spill.NegativeAnxiety),
		Anger:   Squash(e.Anger + m*spill.NegativeAnger),
	}
}
