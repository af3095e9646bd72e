package agents

import "github.com/talgya/classroom/internal/weights"

// Neighbors is a frozen view of every student's emotion, taken once before a
// tick so that no update in the tick can observe another update of the same tick.
type Neighbors map[AgentID]Emotion

// FreezeEmotions captures the emotions of states.
func FreezeEmotions(states []State) Neighbors {
	n := make(Neighbors, len(states))
	for _, s := range states {
		n[s.ID] = s.Emotion
	}
	return n
}

// Spread pulls s's emotion toward the emotions of the students it is tied to,
// scaled by k. Negative moods travel harder than positive ones. Ties to
// students missing from neighbors are skipped; when no tie contributes, s is
// returned unchanged.
func Spread(s State, neighbors Neighbors, k float64, w weights.Social) State {
	var d Emotion
	contributed := false

	for _, tie := range s.Ties {
		n, ok := neighbors[tie.Target]
		if !ok || tie.Target == s.ID {
			continue
		}
		contributed = true

		base := k * w.Spread * tie.Weight
		amp := 1.0
		if n.NegativeLoad() > 0 {
			amp = w.NegativeAmplify
		}
		d.Joy += base * n.Joy
		d.Anxiety += base * n.Anxiety * amp
		d.Sadness += base * n.Sadness * amp
		d.Anger += base * n.Anger * amp
	}
	if !contributed {
		return s
	}

	s.Emotion = Emotion{
		Joy:     Squash((s.Emotion.Joy + d.Joy) * w.Decay),
		Anxiety: Squash((s.Emotion.Anxiety + d.Anxiety) * w.Decay),
		Sadness: Squash((s.Emotion.Sadness + d.Sadness) * w.Decay),
		Anger:   Squash((s.Emotion.Anger + d.Anger) * w.Decay),
	}
	return s
}
