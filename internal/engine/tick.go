package engine

import (
	"fmt"
	"log/slog"
	"time"
)

// Loop drives the city forward one month per interval. The loop is the
// only caller of Step, so ticks never overlap.
type Loop struct {
	City     *City
	Speed    float64       // multiplier: 1.0 = real-time, 0 = paused
	Interval time.Duration // base tick interval
	Running  bool

	// OnMonth fires after each simulated month — used for broadcast and
	// periodic autosave.
	OnMonth func(tick uint64, res TickResult)
}

// NewLoop creates a simulation loop with default settings.
func NewLoop(c *City) *Loop {
	return &Loop{
		City:     c,
		Speed:    1.0,
		Interval: time.Second,
	}
}

// Run starts the simulation loop. Blocks until Stop is called.
func (l *Loop) Run() {
	l.Running = true
	slog.Info("simulation loop started", "speed", l.Speed, "interval", l.Interval)

	for l.Running {
		if l.Speed <= 0 {
			// Paused — sleep briefly and check again.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		start := time.Now()

		res := l.City.Step()
		if l.OnMonth != nil {
			l.OnMonth(l.City.Stats().Tick, res)
		}

		// Sleep for the remainder of the tick interval, adjusted for speed.
		elapsed := time.Since(start)
		target := time.Duration(float64(l.Interval) / l.Speed)
		if elapsed < target {
			time.Sleep(target - elapsed)
		}
	}

	slog.Info("simulation loop stopped")
}

// Stop halts the simulation loop.
func (l *Loop) Stop() {
	l.Running = false
}

// SimDate formats a tick count as a calendar string, one tick per month.
func SimDate(tick uint64) string {
	months := [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun",
		"Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}
	return fmt.Sprintf("%s, year %d", months[tick%12], tick/12+1)
}
