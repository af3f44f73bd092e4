package gifsync

import (
	"math"
	"sync/atomic"
)

// Transport is the host's playback state as seen by the engine. Producers
// (a Link session, a MIDI clock, the internal metronome) write it from their
// own goroutines; the engine only reads. Each field is atomic on its own and
// a reader may observe a mix of old and new values for one tick.
type Transport struct {
	tempo   atomic.Uint64 // math.Float64bits
	playing atomic.Bool
	beat    atomic.Uint64 // math.Float64bits
}

// TransportSnapshot is one read of the three transport fields.
type TransportSnapshot struct {
	Tempo   float64
	Playing bool
	Beat    float64
}

// NewTransport creates a stopped transport at the given fallback tempo.
func NewTransport(bpm float64) *Transport {
	t := &Transport{}
	if !(bpm > 0) {
		bpm = DefaultTempo
	}
	t.tempo.Store(math.Float64bits(bpm))
	return t
}

// Tempo returns the last reported tempo in BPM.
func (t *Transport) Tempo() float64 {
	return math.Float64frombits(t.tempo.Load())
}

// SetTempo stores a new tempo. Non-positive and non-finite values are
// ignored so a host that has not reported yet keeps the fallback.
func (t *Transport) SetTempo(bpm float64) {
	if !(bpm > 0) || math.IsInf(bpm, 0) {
		return
	}
	t.tempo.Store(math.Float64bits(bpm))
}

// IsPlaying reports whether the host transport is running.
func (t *Transport) IsPlaying() bool {
	return t.playing.Load()
}

// SetPlaying stores the transport's run state.
func (t *Transport) SetPlaying(playing bool) {
	t.playing.Store(playing)
}

// BeatPosition returns the last reported position in quarter-note beats.
func (t *Transport) BeatPosition() float64 {
	return math.Float64frombits(t.beat.Load())
}

// SetBeatPosition stores the position in beats. Negative positions (pre-roll)
// are kept; non-finite ones are dropped.
func (t *Transport) SetBeatPosition(beat float64) {
	if math.IsNaN(beat) || math.IsInf(beat, 0) {
		return
	}
	t.beat.Store(math.Float64bits(beat))
}

// Update stores all three fields, one at a time.
func (t *Transport) Update(bpm float64, playing bool, beat float64) {
	t.SetTempo(bpm)
	t.SetPlaying(playing)
	t.SetBeatPosition(beat)
}

// Snapshot reads all three fields.
func (t *Transport) Snapshot() TransportSnapshot {
	return TransportSnapshot{
		Tempo:   t.Tempo(),
		Playing: t.IsPlaying(),
		Beat:    t.BeatPosition(),
	}
}
