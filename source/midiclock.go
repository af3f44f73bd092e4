package source

import (
	"math"
	"sync"
	"time"

	gifsync "github.com/DatanoiseTV/gifsync-go"
	"github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2"
)

const (
	midiClocksPerQuarterNote = 24
	clocksPerSixteenth       = 6 // one song position unit

	// tempo is re-estimated every estimateClocks clocks
	estimateClocks = 6
	minClockTempo  = 40.0
	maxClockTempo  = 200.0
	tempoTolerance = 0.1 // BPM
)

// MIDIClock follows an external MIDI clock master: 24 clocks per quarter
// note, Start/Continue/Stop and Song Position Pointer.
type MIDIClock struct {
	transport *gifsync.Transport
	log       *logrus.Entry
	now       func() time.Time

	mu          sync.Mutex
	clocks      int64 // clocks since song position zero
	playing     bool
	tempo       float64
	window      int // clock intervals in the current estimate window
	windowStart time.Time
}

// NewMIDIClock creates a follower writing into t.
func NewMIDIClock(t *gifsync.Transport, log *logrus.Entry) *MIDIClock {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &MIDIClock{
		transport: t,
		log:       log.WithField("source", "midi"),
		now:       time.Now,
	}
}

// Handle processes one raw message from a MIDI input callback.
func (c *MIDIClock) Handle(data []byte) {
	c.HandleAt(midi.Message(data), c.now())
}

// HandleAt processes msg as received at the given time.
func (c *MIDIClock) HandleAt(msg midi.Message, at time.Time) {
	if len(msg) == 0 {
		return
	}

	switch msg.Type() {
	case midi.TimingClockMsg:
		c.handleClock(at)

	case midi.StartMsg:
		c.mu.Lock()
		c.playing = true
		c.clocks = 0
		c.resetWindow()
		c.mu.Unlock()
		c.transport.SetBeatPosition(0)
		c.transport.SetPlaying(true)
		c.log.Info("MIDI Start received")

	case midi.ContinueMsg:
		c.mu.Lock()
		c.playing = true
		c.mu.Unlock()
		c.transport.SetPlaying(true)
		c.log.Info("MIDI Continue received")

	case midi.StopMsg:
		c.mu.Lock()
		c.playing = false
		c.resetWindow()
		c.mu.Unlock()
		c.transport.SetPlaying(false)
		c.log.Info("MIDI Stop received")

	case midi.SPPMsg:
		spp, ok := songPosition(msg)
		if !ok {
			return
		}
		c.mu.Lock()
		c.clocks = int64(spp) * clocksPerSixteenth
		c.mu.Unlock()
		c.transport.SetBeatPosition(float64(spp) / 4)
		c.log.WithField("beat", float64(spp)/4).Debug("MIDI song position")

	default:
		c.log.Debugf("Other MIDI message: %s", msg)
	}
}

// songPosition decodes a Song Position Pointer in sixteenth notes. The
// 14-bit value is sent LSB first.
func songPosition(msg midi.Message) (uint16, bool) {
	if len(msg) != 3 {
		return 0, false
	}
	return uint16(msg[1]&0x7f) | uint16(msg[2]&0x7f)<<7, true
}

func (c *MIDIClock) handleClock(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.playing {
		c.clocks++
		c.transport.SetBeatPosition(float64(c.clocks) / midiClocksPerQuarterNote)
	}

	if c.windowStart.IsZero() {
		c.windowStart = at
		return
	}
	c.window++
	if c.window < estimateClocks {
		return
	}

	duration := at.Sub(c.windowStart)
	c.windowStart = at
	c.window = 0
	if duration <= 0 {
		return
	}

	// six clocks are a sixteenth note
	bpm := 60.0 / (duration.Seconds() * midiClocksPerQuarterNote / estimateClocks)
	if bpm < minClockTempo || bpm > maxClockTempo {
		return
	}
	if c.tempo != 0 && math.Abs(bpm-c.tempo) <= tempoTolerance {
		return
	}

	old := c.tempo
	c.tempo = bpm
	c.transport.SetTempo(bpm)
	if old == 0 {
		c.log.Infof("MIDI tempo: %.1f BPM", bpm)
	} else {
		c.log.Infof("MIDI tempo: %.1f BPM (was %.1f)", bpm, old)
	}
}

func (c *MIDIClock) resetWindow() {
	c.window = 0
	c.windowStart = time.Time{}
}

// Tempo returns the last estimated tempo, 0 before the first estimate.
func (c *MIDIClock) Tempo() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tempo
}
