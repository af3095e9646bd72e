// Roster spawning. Students sit on a grid; traits and ties come from smooth
// noise fields, so neighbors tend to resemble each other and get along.

package agents

import (
	"fmt"
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// SpawnConfig controls roster generation.
type SpawnConfig struct {
	Seed    int64
	Size    int
	Columns int    // seats per row
	Class   string // class label stamped on every student
}

// DefaultSpawnConfig returns a 22-student class in rows of six.
func DefaultSpawnConfig() SpawnConfig {
	return SpawnConfig{Seed: 42, Size: 22, Columns: 6, Class: "G3-1"}
}

// Spawner creates students for a new world.
type Spawner struct {
	cfg        SpawnConfig
	rng        *rand.Rand
	traitNoise [5]opensimplex.Noise
	tieNoise   opensimplex.Noise
}

// NewSpawner creates a spawner. The same config always yields the same roster.
func NewSpawner(cfg SpawnConfig) *Spawner {
	if cfg.Columns <= 0 {
		cfg.Columns = 6
	}
	s := &Spawner{
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(cfg.Seed + 300)),
		tieNoise: opensimplex.NewNormalized(cfg.Seed + 10),
	}
	for i := range s.traitNoise {
		s.traitNoise[i] = opensimplex.NewNormalized(cfg.Seed + int64(i) + 1)
	}
	return s
}

type seat struct{ row, col int }

// Spawn returns the roster in seat order with neutral starting state.
func (s *Spawner) Spawn() []State {
	n := s.cfg.Size
	seats := make([]seat, n)
	ids := make([]AgentID, n)
	bySeat := make(map[seat]int, n)
	for i := 0; i < n; i++ {
		seats[i] = seat{row: i / s.cfg.Columns, col: i % s.cfg.Columns}
		ids[i] = AgentID(fmt.Sprintf("s%02d", i+1))
		bySeat[seats[i]] = i
	}

	out := make([]State, 0, n)
	for i, st := range seats {
		var ties []Tie
		for _, nb := range []seat{{st.row, st.col - 1}, {st.row, st.col + 1}, {st.row - 1, st.col}, {st.row + 1, st.col}} {
			j, ok := bySeat[nb]
			if !ok {
				continue
			}
			ties = append(ties, Tie{Target: ids[j], Weight: s.tieWeight(st, nb)})
		}
		out = append(out, NewState(ids[i], s.name(i), s.cfg.Class, s.traits(st), ties))
	}
	return out
}

func (s *Spawner) traits(st seat) Traits {
	x, y := float64(st.col), float64(st.row)
	v := [5]float64{}
	for i, noise := range s.traitNoise {
		base := fieldNoise(noise, x, y, 3, 0.35, 0.5)
		jitter := s.rng.NormFloat64() * 0.05
		v[i] = round2(Clamp(base+jitter, 0.05, 0.95))
	}
	return Traits{
		Extraversion:      v[0],
		Neuroticism:       v[1],
		Conscientiousness: v[2],
		Openness:          v[3],
		Agreeableness:     v[4],
	}
}

// tieWeight is symmetric in its two seats. Most ties come out supportive.
func (s *Spawner) tieWeight(a, b seat) float64 {
	mx := float64(a.col+b.col) / 2
	my := float64(a.row+b.row) / 2
	n := fieldNoise(s.tieNoise, mx, my, 2, 0.5, 0.5)
	return round2(Clamp(1.5*n-0.35, -1, 1))
}

func (s *Spawner) name(i int) string {
	name := studentNames[i%len(studentNames)]
	if round := i / len(studentNames); round > 0 {
		name = fmt.Sprintf("%s %d", name, round+1)
	}
	return name
}

// fieldNoise sums octaves of normalized noise, returning a value in [0, 1].
func fieldNoise(noise opensimplex.Noise, x, y float64, octaves int, freq, persistence float64) float64 {
	total, amp, maxAmp := 0.0, 1.0, 0.0
	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*freq, y*freq) * amp
		maxAmp += amp
		amp *= persistence
		freq *= 2
	}
	return total / maxAmp
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

var studentNames = []string{
	"Lin Chen", "Wang Yue", "Zhao Qiang", "Chen Ke", "Liu Xu", "Zhou Ning",
	"Sun Jie", "Guo Hui", "Ma Chao", "Yang Liu", "Wu Qi", "He Yang",
	"Deng Yue", "Feng Yue", "Ren Hang", "Bai Lu", "Tang Yi", "Jia Fan",
	"Gu Nan", "Yuan Tian", "Liu Fang", "Fan Yi",
}
