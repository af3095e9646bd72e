package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestEngineStepCountsTicks(t *testing.T) {
	e := NewEngine()
	var seen []uint64
	e.OnTick = func(_ context.Context, tick uint64) { seen = append(seen, tick) }

	for i := 0; i < 3; i++ {
		e.step(context.Background())
	}
	if len(seen) != 3 || seen[0] != 1 || seen[2] != 3 || e.Tick() != 3 {
		t.Errorf("ticks = %v, Tick() = %d", seen, e.Tick())
	}
}

func TestEngineRunStopsOnCancel(t *testing.T) {
	e := NewEngine()
	e.Interval = time.Millisecond
	var n atomic.Int64
	ctx, cancel := context.WithCancel(context.Background())
	e.OnTick = func(context.Context, uint64) {
		if n.Add(1) == 3 {
			cancel()
		}
	}

	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if n.Load() < 3 {
		t.Errorf("ticks = %d, want at least 3", n.Load())
	}
}

func TestEnginePausedDoesNotTick(t *testing.T) {
	e := NewEngine()
	e.SetSpeed(0)
	e.OnTick = func(context.Context, uint64) { t.Error("ticked while paused") }
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	e.Run(ctx)
	if e.Speed() != 0 {
		t.Errorf("speed = %v", e.Speed())
	}
}
