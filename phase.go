package gifsync

import (
	"math"
	"time"
)

// MaxTickDelta bounds how far a single late tick can move the free-running
// clock, e.g. after the UI thread stalled.
const MaxTickDelta = 100 * time.Millisecond

// ClampTickDelta limits a measured wall-clock delta to [0, MaxTickDelta].
func ClampTickDelta(dt time.Duration) time.Duration {
	if dt < 0 {
		return 0
	}
	if dt > MaxTickDelta {
		return MaxTickDelta
	}
	return dt
}

// PhaseSource is where the phase of the current tick comes from: either the
// host's beat position (Playing) or elapsed wall time (Stopped).
type PhaseSource interface {
	phaseSource()
}

// Playing derives the phase from the transport's absolute beat position.
type Playing struct {
	Beat float64
}

// Stopped advances the free-running clock by the time since the last tick.
// Engine.Tick clamps measured deltas with ClampTickDelta before building it.
type Stopped struct {
	Elapsed time.Duration
}

func (Playing) phaseSource() {}
func (Stopped) phaseSource() {}

// Clock is the free-running oscillator used while the transport is stopped.
type Clock struct {
	FreeRun float64 // seconds accumulated while stopped
}

// Reset rewinds the free-running clock to the start of a cycle.
func (c *Clock) Reset() {
	c.FreeRun = 0
}

// SourceFor picks the phase source for one tick.
func SourceFor(snap TransportSnapshot, elapsed time.Duration) PhaseSource {
	if snap.Playing {
		return Playing{Beat: snap.Beat}
	}
	return Stopped{Elapsed: elapsed}
}

// Phase returns the normalized position in the current cycle, in [0, 1).
// A Stopped source advances clock as a side effect; a Playing source leaves
// it untouched. Switching between the two is not smoothed. Stopped.Elapsed
// is applied unclamped; callers measuring wall-clock time clamp it with
// ClampTickDelta.
func Phase(src PhaseSource, bars, tempo float64, clock *Clock) float64 {
	switch s := src.(type) {
	case Playing:
		cycle := CycleBeats(bars)
		return wrapUnit(wrap(s.Beat, cycle) / cycle)

	case Stopped:
		dt := s.Elapsed
		if dt < 0 {
			dt = 0
		}
		if clock == nil {
			clock = &Clock{}
		}
		clock.FreeRun += dt.Seconds()
		return wrapUnit(clock.FreeRun / CycleSeconds(tempo, bars))
	}
	return 0
}

// wrap folds x into [0, m).
func wrap(x, m float64) float64 {
	r := math.Mod(x, m)
	if r < 0 {
		r += m
	}
	return r
}

// wrapUnit folds x into [0, 1), mapping non-finite input to 0.
func wrapUnit(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	r := wrap(x, 1)
	if r >= 1 || math.IsNaN(r) {
		// -tiny + 1 rounds up to exactly 1
		return 0
	}
	return r
}
