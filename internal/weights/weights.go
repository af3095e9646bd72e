// Package weights holds every tunable constant of the psychological model.
// A Config is a plain value: callers build one (Default, LoadFile) and hand it
// to the engine, which never mutates it.
package weights

import (
	"fmt"
	"math"
)

// Impact is the raw push an event kind gives to mood and stress.
// The sign carries the direction.
type Impact struct {
	Mood   float64 `yaml:"mood" json:"mood"`
	Stress float64 `yaml:"stress" json:"stress"`
}

// TraitModifiers scale how personality bends the effective intensity of an event.
type TraitModifiers struct {
	NegativeSensitivity float64 `yaml:"negative_sensitivity" json:"negative_sensitivity"` // × neuroticism, negative events
	PositiveBoost       float64 `yaml:"positive_boost" json:"positive_boost"`             // × conscientiousness, positive events
	SocialBuffer        float64 `yaml:"social_buffer" json:"social_buffer"`               // × agreeableness, subtracted for social events
	SupportAmplify      float64 `yaml:"support_amplify" json:"support_amplify"`           // × extraversion, peer support only
}

// MoodSpill is how a mood delta spreads across the negative emotions.
type MoodSpill struct {
	PositiveSadness float64 `yaml:"positive_sadness" json:"positive_sadness"`
	PositiveAnxiety float64 `yaml:"positive_anxiety" json:"positive_anxiety"`
	PositiveAnger   float64 `yaml:"positive_anger" json:"positive_anger"`
	NegativeSadness float64 `yaml:"negative_sadness" json:"negative_sadness"`
	NegativeAnxiety float64 `yaml:"negative_anxiety" json:"negative_anxiety"`
	NegativeAnger   float64 `yaml:"negative_anger" json:"negative_anger"`
}

// Social configures emotional contagion along ties.
type Social struct {
	Spread          float64 `yaml:"spread" json:"spread"`
	NegativeAmplify float64 `yaml:"negative_amplify" json:"negative_amplify"`
	Decay           float64 `yaml:"decay" json:"decay"` // multiplicative damping applied before the squash
}

// Decay configures the passage of time. All rates are per simulated hour.
type Decay struct {
	EmotionReturn  float64 `yaml:"emotion_return" json:"emotion_return"`
	StressDecay    float64 `yaml:"stress_decay" json:"stress_decay"`
	EnergyRecovery float64 `yaml:"energy_recovery" json:"energy_recovery"`
}

// Risk holds the linear weights fed into the logistic risk score.
type Risk struct {
	Stress  float64 `yaml:"stress" json:"stress"`
	Anxiety float64 `yaml:"anxiety" json:"anxiety"`
	Sadness float64 `yaml:"sadness" json:"sadness"`
	Joy     float64 `yaml:"joy" json:"joy"`
	Support float64 `yaml:"support" json:"support"`
}

// Support blends the external support index with positive tie strength.
type Support struct {
	IndexWeight float64 `yaml:"index_weight" json:"index_weight"`
	TieWeight   float64 `yaml:"tie_weight" json:"tie_weight"`
	Neutral     float64 `yaml:"neutral" json:"neutral"` // used when no index is known
}

// Behavior holds the additive score weights and fixed effects of coping behaviors.
type Behavior struct {
	StudyStressCost      float64 `yaml:"study_stress_cost" json:"study_stress_cost"`
	StudyAchievementGain float64 `yaml:"study_achievement_gain" json:"study_achievement_gain"`
	StudyEnergyCost      float64 `yaml:"study_energy_cost" json:"study_energy_cost"`
	RestStressRelief     float64 `yaml:"rest_stress_relief" json:"rest_stress_relief"`
	RestEnergyGain       float64 `yaml:"rest_energy_gain" json:"rest_energy_gain"`
	ChatStressRelief     float64 `yaml:"chat_stress_relief" json:"chat_stress_relief"`
	ChatJoyGain          float64 `yaml:"chat_joy_gain" json:"chat_joy_gain"`
	HelpStressRelief     float64 `yaml:"help_stress_relief" json:"help_stress_relief"`
	HelpAnxietyRelief    float64 `yaml:"help_anxiety_relief" json:"help_anxiety_relief"`
	HelpAgreeableness    float64 `yaml:"help_agreeableness" json:"help_agreeableness"`
}

// Config is the complete weight set.
type Config struct {
	Impacts  map[string]Impact  `yaml:"impacts" json:"impacts"`
	Energy   map[string]float64 `yaml:"energy" json:"energy"` // per-kind energy nudge; missing kinds leave energy alone
	Traits   TraitModifiers     `yaml:"traits" json:"traits"`
	Spill    MoodSpill          `yaml:"spill" json:"spill"`
	Social   Social             `yaml:"social" json:"social"`
	Decay    Decay              `yaml:"decay" json:"decay"`
	Risk     Risk               `yaml:"risk" json:"risk"`
	Support  Support            `yaml:"support" json:"support"`
	Behavior Behavior           `yaml:"behavior" json:"behavior"`
}

// Default returns the calibrated weight set. Each call returns fresh maps.
func Default() Config {
	return Config{
		Impacts: map[string]Impact{
			"quiz_low_score":  {Mood: -0.5, Stress: 0.4},
			"quiz_high_score": {Mood: 0.5, Stress: -0.2},
			"teacher_praise":  {Mood: 0.4, Stress: -0.1},
			"peer_conflict":   {Mood: -0.6, Stress: 0.5},
			"peer_support":    {Mood: 0.3, Stress: -0.2},
			"parent_pressure": {Mood: -0.4, Stress: 0.5},
			"extra_homework":  {Mood: -0.2, Stress: 0.3},
			"mock_exam":       {Mood: 0.0, Stress: 0.4},
			"self_reflection": {Mood: 0.1, Stress: -0.05},
			"club_activity":   {Mood: 0.3, Stress: -0.1},
		},
		Energy: map[string]float64{
			"extra_homework":  -0.1,
			"mock_exam":       -0.08,
			"peer_support":    0.05,
			"club_activity":   0.06,
			"self_reflection": 0.03,
		},
		Traits: TraitModifiers{
			NegativeSensitivity: 0.5,
			PositiveBoost:       0.4,
			SocialBuffer:        0.3,
			SupportAmplify:      0.2,
		},
		Spill: MoodSpill{
			PositiveSadness: 0.5,
			PositiveAnxiety: 0.3,
			PositiveAnger:   0.2,
			NegativeSadness: 0.6,
			NegativeAnxiety: 0.7,
			NegativeAnger:   0.4,
		},
		Social: Social{
			Spread:          0.2,
			NegativeAmplify: 1.2,
			Decay:           0.6,
		},
		Decay: Decay{
			EmotionReturn:  0.15,
			StressDecay:    0.05,
			EnergyRecovery: 0.2,
		},
		Risk: Risk{
			Stress:  1.0,
			Anxiety: 0.9,
			Sadness: 0.6,
			Joy:     0.7,
			Support: 0.8,
		},
		Support: Support{
			IndexWeight: 0.5,
			TieWeight:   0.1,
			Neutral:     0.5,
		},
		Behavior: Behavior{
			StudyStressCost:      0.15,
			StudyAchievementGain: 0.1,
			StudyEnergyCost:      0.1,
			RestStressRelief:     0.12,
			RestEnergyGain:       0.25,
			ChatStressRelief:     0.06,
			ChatJoyGain:          0.05,
			HelpStressRelief:     0.18,
			HelpAnxietyRelief:    0.08,
			HelpAgreeableness:    0.2,
		},
	}
}

// Clone returns a deep copy, so a caller holding the original cannot reach
// into the maps of the copy.
func (c Config) Clone() Config {
	out := c
	out.Impacts = make(map[string]Impact, len(c.Impacts))
	for k, v := range c.Impacts {
		out.Impacts[k] = v
	}
	out.Energy = make(map[string]float64, len(c.Energy))
	for k, v := range c.Energy {
		out.Energy[k] = v
	}
	return out
}

// ImpactFor returns the base impact of kind. Unknown kinds have zero impact.
func (c Config) ImpactFor(kind string) Impact {
	return c.Impacts[kind]
}

// EnergyFor returns the energy nudge of kind, zero when the kind has none.
func (c Config) EnergyFor(kind string) float64 {
	return c.Energy[kind]
}

// Validate rejects weight sets that would break the boundedness guarantees.
func (c Config) Validate() error {
	for kind, imp := range c.Impacts {
		if !finite(imp.Mood) || !finite(imp.Stress) {
			return fmt.Errorf("impact %q: non-finite value", kind)
		}
	}
	for kind, e := range c.Energy {
		if !finite(e) {
			return fmt.Errorf("energy %q: non-finite value", kind)
		}
	}

	nonNegative := []struct {
		name string
		v    float64
	}{
		{"traits.negative_sensitivity", c.Traits.NegativeSensitivity},
		{"traits.positive_boost", c.Traits.PositiveBoost},
		{"traits.social_buffer", c.Traits.SocialBuffer},
		{"traits.support_amplify", c.Traits.SupportAmplify},
		{"social.spread", c.Social.Spread},
		{"social.negative_amplify", c.Social.NegativeAmplify},
		{"decay.emotion_return", c.Decay.EmotionReturn},
		{"decay.stress_decay", c.Decay.StressDecay},
		{"decay.energy_recovery", c.Decay.EnergyRecovery},
		{"risk.stress", c.Risk.Stress},
		{"risk.anxiety", c.Risk.Anxiety},
		{"risk.sadness", c.Risk.Sadness},
		{"risk.joy", c.Risk.Joy},
		{"risk.support", c.Risk.Support},
		{"support.index_weight", c.Support.IndexWeight},
		{"support.tie_weight", c.Support.TieWeight},
	}
	for _, f := range nonNegative {
		if !finite(f.v) || f.v < 0 {
			return fmt.Errorf("%s must be a non-negative number, got %v", f.name, f.v)
		}
	}

	if !finite(c.Social.Decay) || c.Social.Decay <= 0 || c.Social.Decay > 1 {
		return fmt.Errorf("social.decay must be in (0, 1], got %v", c.Social.Decay)
	}
	if !finite(c.Support.Neutral) || c.Support.Neutral < 0 || c.Support.Neutral > 1 {
		return fmt.Errorf("support.neutral must be in [0, 1], got %v", c.Support.Neutral)
	}
	return nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
