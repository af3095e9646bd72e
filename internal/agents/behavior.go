// Coping behavior scheduler. A student picks exactly one behavior from a fixed
// ordered set; the effect of each behavior is deterministic.
package agents

import (
	"errors"
	"fmt"

	"github.com/talgya/classroom/internal/weights"
)

// Behavior is a coping action a student can take.
type Behavior string

const (
	BehaviorStudy    Behavior = "study"
	BehaviorRest     Behavior = "rest"
	BehaviorChat     Behavior = "chat"
	BehaviorSeekHelp Behavior = "seek_help"
)

// ErrUnknownBehavior is returned by ParseBehavior for names outside the set.
var ErrUnknownBehavior = errors.New("unknown behavior")

type behaviorScorer struct {
	behavior Behavior
	score    func(s State, w weights.Behavior) float64
}

// schedule is iterated in order; on equal scores the earlier entry wins.
var schedule = []behaviorScorer{
	{BehaviorStudy, func(s State, w weights.Behavior) float64 {
		return Squash((1-s.Stress)+s.Energy) - w.StudyStressCost*s.Stress + w.StudyAchievementGain
	}},
	{BehaviorRest, func(s State, w weights.Behavior) float64 {
		return Squash(s.Stress+(1-s.Energy)) + w.RestStressRelief + w.RestEnergyGain
	}},
	{BehaviorChat, func(s State, w weights.Behavior) float64 {
		return Squash(s.Traits.Extraversion+(1-s.Stress)*0.3) + w.ChatStressRelief
	}},
	{BehaviorSeekHelp, func(s State, w weights.Behavior) float64 {
		return Squash(s.Stress*1.2+(1-s.Energy)*0.5) + w.HelpStressRelief + s.Traits.Agreeableness*w.HelpAgreeableness
	}},
}

// Behaviors returns the behavior set in tie-break order.
func Behaviors() []Behavior {
	out := make([]Behavior, len(schedule))
	for i, b := range schedule {
		out[i] = b.behavior
	}
	return out
}

// ParseBehavior validates a behavior name.
func ParseBehavior(name string) (Behavior, error) {
	for _, b := range schedule {
		if string(b.behavior) == name {
			return b.behavior, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBehavior, name)
}

// BehaviorScore pairs a behavior with its score for one state.
type BehaviorScore struct {
	Behavior Behavior `json:"behavior"`
	Score    float64  `json:"score"`
}

// ScoreBehaviors returns every behavior's score in tie-break order.
func ScoreBehaviors(s State, w weights.Behavior) []BehaviorScore {
	out := make([]BehaviorScore, len(schedule))
	for i, b := range schedule {
		out[i] = BehaviorScore{Behavior: b.behavior, Score: b.score(s, w)}
	}
	return out
}

// ChooseBehavior returns the behavior with the strictly highest score.
// Ties go to the behavior declared first.
func ChooseBehavior(s State, w weights.Behavior) Behavior {
	best := schedule[0].behavior
	bestScore := schedule[0].score(s, w)
	for _, b := range schedule[1:] {
		if sc := b.score(s, w); sc > bestScore {
			best, bestScore = b.behavior, sc
		}
	}
	return best
}

// ApplyBehavior executes a behavior's fixed effect on s. Unknown behaviors
// leave s unchanged.
func ApplyBehavior(s State, b Behavior, w weights.Behavior) State {
	switch b {
	case BehaviorStudy:
		s.Stress = Clamp01(Squash(s.Stress + w.StudyStressCost))
		s.Emotion.Joy = Squash(s.Emotion.Joy + w.StudyAchievementGain)
		s.Energy = Clamp01(Squash(s.Energy - w.StudyEnergyCost))
	case BehaviorRest:
		s.Stress = Clamp01(Squash(s.Stress - w.RestStressRelief))
		s.Energy = Clamp01(Squash(s.Energy + w.RestEnergyGain))
	case BehaviorChat:
		s.Stress = Clamp01(Squash(s.Stress - w.ChatStressRelief))
		s.Emotion.Joy = Squash(s.Emotion.Joy + w.ChatJoyGain)
	case BehaviorSeekHelp:
		s.Stress = Clamp01(Squash(s.Stress - w.HelpStressRelief))
		s.Emotion.Anxiety = Squash(s.Emotion.Anxiety - w.HelpAnxietyRelief)
	}
	return s
}
