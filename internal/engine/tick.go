// Package engine runs the classroom simulation over stored worlds: the tick
// orchestrator, event injection, the behavior step, daily aggregation,
// dashboard queries, world clocks and the real-time loop that drives ticks.
package engine

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"
)

// Engine drives ticks in real time.
type Engine struct {
	Interval     time.Duration // base real time between ticks
	HoursPerTick float64       // simulated hours one tick covers at speed 1

	// OnTick is populated during setup. Worlds advance by their own clocks,
	// so the loop only decides when to tick.
	OnTick func(ctx context.Context, tick uint64)

	mu    sync.Mutex
	tick  uint64
	speed float64 // 1.0 = base interval, 0 = paused
}

// NewEngine creates an engine ticking once a second, one simulated hour per tick.
func NewEngine() *Engine {
	return &Engine{
		Interval:     time.Second,
		HoursPerTick: 1,
		speed:        1,
	}
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the speed multiplier. Zero or less pauses the loop.
func (e *Engine) SetSpeed(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speed = math.Max(0, v)
}

// Tick returns the number of ticks run so far.
func (e *Engine) Tick() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick
}

// Run starts the loop. Blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	slog.Info("simulation engine started", "tick", e.Tick(), "speed", e.Speed(), "hours_per_tick", e.HoursPerTick)

	for {
		speed := e.Speed()
		wait := 100 * time.Millisecond // paused, check again shortly
		if speed > 0 {
			start := time.Now()
			e.step(ctx)
			wait = time.Duration(float64(e.Interval)/speed) - time.Since(start)
		}

		select {
		case <-ctx.Done():
			slog.Info("simulation engine stopped", "tick", e.Tick())
			return
		case <-time.After(max(wait, 0)):
		}
	}
}

// step advances the loop by one tick.
func (e *Engine) step(ctx context.Context) {
	e.mu.Lock()
	e.tick++
	tick := e.tick
	e.mu.Unlock()

	if e.OnTick != nil {
		e.OnTick(ctx, tick)
	}
}
