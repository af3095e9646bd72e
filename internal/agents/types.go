// Package agents provides the student psychological model: the agent state,
// event appraisal, temporal decay, social contagion, risk scoring and the
// coping-behavior scheduler. Every function here is pure: it takes a State
// value and returns the next one.
package agents

// AgentID identifies a student within a world.
type AgentID string

// Neutral starting point for a freshly onboarded student.
const (
	DefaultStress = 0.3
	DefaultEnergy = 0.7
)

// Traits is the stable Big Five personality vector. All values are 0.0–1.0
// and never change for the lifetime of a simulation.
type Traits struct {
	Extraversion      float64 `json:"extraversion"`
	Neuroticism       float64 `json:"neuroticism"`
	Conscientiousness float64 `json:"conscientiousness"`
	Openness          float64 `json:"openness"`
	Agreeableness     float64 `json:"agreeableness"`
}

// NeutralTraits returns the all-0.5 trait vector.
func NeutralTraits() Traits {
	return Traits{0.5, 0.5, 0.5, 0.5, 0.5}
}

// Emotion is the momentary affect vector, each component -1.0 to +1.0.
type Emotion struct {
	Joy     float64 `json:"joy"`
	Anxiety float64 `json:"anxiety"`
	Sadness float64 `json:"sadness"`
	Anger   float64 `json:"anger"`
}

// NegativeLoad is the summed anxiety, sadness and anger.
func (e Emotion) NegativeLoad() float64 {
	return e.Anxiety + e.Sadness + e.Anger
}

// Squashed returns e with every component passed through Squash.
func (e Emotion) Squashed() Emotion {
	return Emotion{
		Joy:     Squash(e.Joy),
		Anxiety: Squash(e.Anxiety),
		Sadness: Squash(e.Sadness),
		Anger:   Squash(e.Anger),
	}
}

// Tie is a directed, signed social edge.
type Tie struct {
	Target AgentID `json:"target_id"`
	Weight float64 `json:"weight"` // -1.0 (adversarial) to 1.0 (supportive)
}

// State is one student's full psychological state.
type State struct {
	ID    AgentID `json:"agent_id"`
	Name  string  `json:"name"`
	Class string  `json:"class"`

	Traits  Traits  `json:"traits"`
	Emotion Emotion `json:"emotion"`
	Stress  float64 `json:"stress"` // 0.0–1.0
	Energy  float64 `json:"energy"` // 0.0–1.0
	Risk    float64 `json:"risk"`   // 0.0–1.0, derived by Rescore only

	Ties       []Tie    `json:"ties"`
	MemoryKeys []string `json:"memory_keys"` // owned by the memory subsystem
	LastEvent  string   `json:"last_event,omitempty"`
}

// NewState onboards a student with neutral defaults. Ties are normalized.
// Risk is left at zero; callers score the state before storing it.
func NewState(id AgentID, name, class string, traits Traits, ties []Tie) State {
	return State{
		ID:    id,
		Name:  name,
		Class: class,
		Traits: Traits{
			Extraversion:      Clamp01(traits.Extraversion),
			Neuroticism:       Clamp01(traits.Neuroticism),
			Conscientiousness: Clamp01(traits.Conscientiousness),
			Openness:          Clamp01(traits.Openness),
			Agreeableness:     Clamp01(traits.Agreeableness),
		},
		Stress:     DefaultStress,
		Energy:     DefaultEnergy,
		Ties:       NormalizeTies(id, ties),
		MemoryKeys: []string{},
	}
}

// NormalizeTies clamps weights into [-1, 1], drops self-ties and keeps only
// the first tie per target.
func NormalizeTies(self AgentID, ties []Tie) []Tie {
	out := make([]Tie, 0, len(ties))
	seen := make(map[AgentID]bool, len(ties))
	for _, t := range ties {
		if t.Target == "" || t.Target == self || seen[t.Target] {
			continue
		}
		seen[t.Target] = true
		out = append(out, Tie{Target: t.Target, Weight: Clamp(t.Weight, -1, 1)})
	}
	return out
}

// Index maps states by ID.
func Index(states []State) map[AgentID]*State {
	idx := make(map[AgentID]*State, len(states))
	for i := range states {
		idx[states[i].ID] = &states[i]
	}
	return idx
}
