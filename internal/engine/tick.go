// Package engine provides the tick-based simulation loop and the Simulation
// that ties terrain, sky, weather, volcanoes and players together.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// TickSchedule defines when each system runs relative to the tick counter.
const (
	TicksPerSimSecond = 20                     // 1 tick = 50ms of sim time
	TicksPerSimMinute = 60 * TicksPerSimSecond // 1200
	TicksPerSimHour   = 60 * TicksPerSimMinute // 72000
	TicksPerSimDay    = 24 * TicksPerSimHour   // 1728000
)

// TickDuration is the sim time one tick covers.
const TickDuration = time.Second / TicksPerSimSecond

// MaxSpeed bounds the speed multiplier.
const MaxSpeed = 1000

// Engine drives the simulation forward.
type Engine struct {
	tick     atomic.Uint64 // Current tick counter (monotonic, never resets)
	Interval time.Duration // Wall time per tick at speed 1

	mu      sync.Mutex
	speed   float64 // Multiplier: 1.0 = real-time, 0 = paused
	running bool

	// Callbacks for each tick layer, populated during setup.
	OnTick   func(tick uint64) // Every tick (frame)
	OnSecond func(tick uint64) // Every 20 ticks
	OnMinute func(tick uint64) // Every 1200 ticks
	OnHour   func(tick uint64) // Every 72000 ticks
	OnDay    func(tick uint64) // Every 1728000 ticks
}

// NewEngine creates a simulation engine with default settings.
func NewEngine() *Engine {
	return &Engine{
		Interval: TickDuration,
		speed:    1.0,
	}
}

// Tick returns the most recently executed tick.
func (e *Engine) Tick() uint64 {
	return e.tick.Load()
}

// SetTick positions the counter, e.g. after restoring saved state.
func (e *Engine) SetTick(t uint64) {
	e.tick.Store(t)
}

// Speed returns the current multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the multiplier. 0 pauses the loop.
func (e *Engine) SetSpeed(speed float64) error {
	if speed < 0 || speed > MaxSpeed || math.IsNaN(speed) {
		return fmt.Errorf("speed must be 0-%d, got %v", MaxSpeed, speed)
	}
	e.mu.Lock()
	e.speed = speed
	e.mu.Unlock()
	return nil
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Run starts the simulation loop. Blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	slog.Info("simulation engine started", "tick", e.Tick(), "speed", e.Speed())

	for {
		speed := e.Speed()
		if speed <= 0 {
			// Paused; sleep briefly and check again.
			if !sleepCtx(ctx, 100*time.Millisecond) {
				break
			}
			continue
		}

		start := time.Now()

		e.Step()

		// Sleep for the remainder of the tick interval, adjusted for speed.
		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / speed)
		if elapsed < target {
			if !sleepCtx(ctx, target-elapsed) {
				break
			}
		} else if ctx.Err() != nil {
			break
		}
	}

	slog.Info("simulation engine stopped", "tick", e.Tick())
}

// Step advances the simulation by one tick and fires every layer due.
func (e *Engine) Step() {
	tick := e.tick.Add(1)

	if e.OnTick != nil {
		e.OnTick(tick)
	}
	// Volcanoes and effects housekeeping.
	if tick%TicksPerSimSecond == 0 && e.OnSecond != nil {
		e.OnSecond(tick)
	}
	// Sky and weather.
	if tick%TicksPerSimMinute == 0 && e.OnMinute != nil {
		e.OnMinute(tick)
	}
	// Real weather refresh.
	if tick%TicksPerSimHour == 0 && e.OnHour != nil {
		e.OnHour(tick)
	}
	// Daily report and save.
	if tick%TicksPerSimDay == 0 && e.OnDay != nil {
		e.OnDay(tick)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// SimTime returns a human-readable simulation time string from a tick number.
func SimTime(tick uint64) string {
	totalSeconds := tick / TicksPerSimSecond
	seconds := totalSeconds % 60
	minutes := (totalSeconds / 60) % 60
	hours := (totalSeconds / 3600) % 24
	days := totalSeconds/86400 + 1
	return fmt.Sprintf("Day %d, %02d:%02d:%02d", days, hours, minutes, seconds)
}
