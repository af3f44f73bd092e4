package source

import (
	"context"
	"math"
	"sync"
	"time"

	gifsync "github.com/DatanoiseTV/gifsync-go"
	"github.com/sirupsen/logrus"
)

// Tempo bounds accepted from the keyboard.
const (
	MinTempo = 20.0
	MaxTempo = 300.0
)

// Metronome is an in-process host transport. It plays at a tempo chosen by
// the user and publishes its beat position at a fixed rate.
type Metronome struct {
	transport *gifsync.Transport
	log       *logrus.Entry
	now       func() time.Time
	interval  time.Duration

	mu      sync.Mutex
	tempo   float64
	playing bool
	anchor  time.Time // wall time of beat `base`
	base    float64
}

// MetronomeOption configures a Metronome.
type MetronomeOption func(*Metronome)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) MetronomeOption {
	return func(m *Metronome) { m.now = now }
}

// WithInterval sets the publish period (default 1ms).
func WithInterval(d time.Duration) MetronomeOption {
	return func(m *Metronome) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithLog sets the log entry.
func WithLog(l *logrus.Entry) MetronomeOption {
	return func(m *Metronome) { m.log = l }
}

// NewMetronome creates a stopped metronome that writes into t.
func NewMetronome(t *gifsync.Transport, opts ...MetronomeOption) *Metronome {
	m := &Metronome{
		transport: t,
		now:       time.Now,
		interval:  time.Millisecond,
		tempo:     t.Tempo(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logrus.NewEntry(logrus.StandardLogger())
	}
	m.log = m.log.WithField("source", "internal")
	return m
}

// Tempo returns the metronome tempo in BPM.
func (m *Metronome) Tempo() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tempo
}

// SetTempo changes the tempo, clamped to [MinTempo, MaxTempo]. The beat
// position is continuous across the change.
func (m *Metronome) SetTempo(bpm float64) {
	if math.IsNaN(bpm) {
		return
	}
	bpm = math.Max(MinTempo, math.Min(MaxTempo, bpm))

	m.mu.Lock()
	now := m.now()
	m.rebase(now)
	m.tempo = bpm
	m.publish(now)
	m.mu.Unlock()

	m.log.Debugf("Tempo: %.1f BPM", bpm)
}

// Start plays from beat 0.
func (m *Metronome) Start() {
	m.mu.Lock()
	m.start()
	m.mu.Unlock()

	m.log.Info("Transport started")
}

// Stop halts the transport and keeps the position.
func (m *Metronome) Stop() {
	m.mu.Lock()
	m.stop()
	m.mu.Unlock()

	m.log.Info("Transport stopped")
}

// TogglePlaying starts a stopped metronome and stops a playing one.
func (m *Metronome) TogglePlaying() {
	m.mu.Lock()
	playing := !m.playing
	if playing {
		m.start()
	} else {
		m.stop()
	}
	m.mu.Unlock()

	if playing {
		m.log.Info("Transport started")
	} else {
		m.log.Info("Transport stopped")
	}
}

// start and stop expect m.mu to be held.
func (m *Metronome) start() {
	m.playing = true
	m.base = 0
	m.anchor = m.now()
	m.publish(m.anchor)
}

func (m *Metronome) stop() {
	now := m.now()
	m.rebase(now)
	m.playing = false
	m.publish(now)
}

// Follower is false: the metronome is driven by the user.
func (m *Metronome) Follower() bool { return false }

// Beat returns the current position in beats.
func (m *Metronome) Beat() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.beatAt(m.now())
}

// Run publishes the transport state every interval until ctx is done.
func (m *Metronome) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Publish()
		}
	}
}

// Publish writes the current state to the transport once.
func (m *Metronome) Publish() {
	m.mu.Lock()
	m.publish(m.now())
	m.mu.Unlock()
}

func (m *Metronome) publish(now time.Time) {
	m.transport.Update(m.tempo, m.playing, m.beatAt(now))
}

func (m *Metronome) beatAt(now time.Time) float64 {
	if !m.playing {
		return m.base
	}
	return m.base + now.Sub(m.anchor).Seconds()*m.tempo/60.0
}

func (m *Metronome) rebase(now time.Time) {
	m.base = m.beatAt(now)
	m.anchor = now
}
