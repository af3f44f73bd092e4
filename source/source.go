// Package source contains the transport producers that feed a
// gifsync.Transport: an in-process metronome, an external MIDI clock and an
// Ableton Link session. Each producer writes from its own goroutine; the
// engine only reads.
package source

import (
	"errors"

	gifsync "github.com/DatanoiseTV/gifsync-go"
)

// ErrUnavailable is returned when a producer was not compiled in. Link and
// RtMidi need the `link` and `rtmidi` build tags and their native libraries.
var ErrUnavailable = errors.New("transport source not available in this build")

// Control is the part of a source the user can drive from the UI.
type Control interface {
	Tempo() float64
	SetTempo(bpm float64)
	TogglePlaying()
	// Follower reports whether an external master owns the transport, in
	// which case SetTempo and TogglePlaying have no effect.
	Follower() bool
}

// Free is the stopped host: the animation free-runs at a tempo set by hand.
type Free struct {
	T *gifsync.Transport
}

func (f Free) Tempo() float64 { return f.T.Tempo() }
func (f Free) SetTempo(bpm float64) { f.T.SetTempo(bpm) }
func (f Free) TogglePlaying() {}
func (f Free) Follower() bool { return false }

// Following wraps a transport owned by an external master.
type Following struct {
	T *gifsync.Transport
}

func (f Following) Tempo() float64 { return f.T.Tempo() }
func (f Following) SetTempo(float64) {}
func (f Following) TogglePlaying() {}
func (f Following) Follower() bool { return true }
