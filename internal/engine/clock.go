package engine

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Clock maps real time onto a world's simulated time. Simulated time runs at
// TimeScale times real time from the anchor (WorldNow, UpdatedAt).
type Clock struct {
	TimeScale float64   `json:"time_scale"`
	WorldNow  time.Time `json:"world_now"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RealClock is the clock of a world with no stored settings.
func RealClock(real time.Time) Clock {
	return Clock{TimeScale: 1, WorldNow: real, UpdatedAt: real}
}

// Now returns the simulated instant corresponding to real.
func (c Clock) Now(real time.Time) time.Time {
	elapsed := real.Sub(c.UpdatedAt)
	return c.WorldNow.Add(time.Duration(float64(elapsed) * c.TimeScale))
}

// Paused reports whether simulated time is frozen.
func (c Clock) Paused() bool {
	return c.TimeScale == 0
}

// WithScale re-anchors the clock at real and switches to a new scale, so time
// already elapsed keeps the old rate.
func (c Clock) WithScale(scale float64, real time.Time) Clock {
	return Clock{TimeScale: scale, WorldNow: c.Now(real), UpdatedAt: real}
}

// Step re-anchors the clock at real and jumps it forward by days.
func (c Clock) Step(days int, real time.Time) Clock {
	return Clock{TimeScale: c.TimeScale, WorldNow: c.Now(real).AddDate(0, 0, days), UpdatedAt: real}
}

// ClockOf returns the current clock of a world.
func (s *Simulation) ClockOf(ctx context.Context, world string) (Clock, error) {
	c, ok, err := s.store.Clock(ctx, world)
	if err != nil {
		return Clock{}, fmt.Errorf("load clock %s: %w", world, err)
	}
	if !ok {
		return RealClock(s.now()), nil
	}
	return c, nil
}

// Now returns the simulated "now" of a world.
func (s *Simulation) Now(ctx context.Context, world string) (time.Time, error) {
	c, err := s.ClockOf(ctx, world)
	if err != nil {
		return time.Time{}, err
	}
	return c.Now(s.now()), nil
}

// SetTimeScale changes how fast a world's time runs. Zero pauses it.
func (s *Simulation) SetTimeScale(ctx context.Context, world string, scale float64) (Clock, error) {
	if scale < 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return Clock{}, fmt.Errorf("invalid time scale %v", scale)
	}
	return s.updateClock(ctx, world, func(c Clock, real time.Time) Clock {
		return c.WithScale(scale, real)
	})
}

// Pause freezes a world's simulated time.
func (s *Simulation) Pause(ctx context.Context, world string) (Clock, error) {
	return s.SetTimeScale(ctx, world, 0)
}

// StepDays jumps a world's simulated time forward.
func (s *Simulation) StepDays(ctx context.Context, world string, days int) (Clock, error) {
	if days <= 0 {
		return Clock{}, fmt.Errorf("step must be at least one day, got %d", days)
	}
	return s.updateClock(ctx, world, func(c Clock, real time.Time) Clock {
		return c.Step(days, real)
	})
}

func (s *Simulation) updateClock(ctx context.Context, world string, f func(Clock, time.Time) Clock) (Clock, error) {
	c, err := s.ClockOf(ctx, world)
	if err != nil {
		return Clock{}, err
	}
	next := f(c, s.now())
	if err := s.store.SaveClock(ctx, world, next); err != nil {
		return Clock{}, fmt.Errorf("save clock %s: %w", world, err)
	}
	s.log.Info("world clock updated", "world", world, "scale", next.TimeScale, "world_now", next.WorldNow.Format(time.RFC3339))
	return next, nil
}
