package gifsync

import (
	"fmt"
	"math"
)

const (
	beatsPerBar   = 4.0
	minCycleBeats = 0.0001
	minTempo      = 1.0

	// DefaultTempo is used until the transport reports a tempo of its own.
	DefaultTempo = 120.0
	// DefaultBars is the sync length of a fresh engine.
	DefaultBars = 1.0
)

// CycleBeats returns the length of one animation loop in beats.
func CycleBeats(bars float64) float64 {
	return math.Max(minCycleBeats, bars*beatsPerBar)
}

// CycleSeconds returns the length of one animation loop in seconds at the given tempo.
func CycleSeconds(tempo, bars float64) float64 {
	secPerBeat := 60.0 / math.Max(minTempo, tempo)
	return secPerBeat * CycleBeats(bars)
}

// SyncOption is one entry of the sync length menu.
type SyncOption struct {
	Label string
	Bars  float64
}

// SyncOptions lists the sync lengths offered to the user. Any positive value
// is accepted by the engine; these are only the menu entries.
var SyncOptions = []SyncOption{
	{"1/8 bar", 0.125},
	{"1/4 bar", 0.25},
	{"1/2 bar", 0.5},
	{"1 bar", 1},
	{"2 bars", 2},
	{"3 bars", 3},
	{"4 bars", 4},
	{"5 bars", 5},
	{"6 bars", 6},
	{"7 bars", 7},
	{"8 bars", 8},
}

// IsSelected reports whether a menu entry matches the current sync length.
func (o SyncOption) IsSelected(bars float64) bool {
	return math.Abs(bars-o.Bars) < 0.000001
}

// SyncLabel returns the menu label for bars, or a numeric label for values
// outside the menu.
func SyncLabel(bars float64) string {
	for _, o := range SyncOptions {
		if o.IsSelected(bars) {
			return o.Label
		}
	}
	return fmt.Sprintf("%g bars", bars)
}

func validBars(bars float64) bool {
	return bars > 0 && !math.IsNaN(bars) && !math.IsInf(bars, 0)
}
