package gifsync

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/DatanoiseTV/gifsync-go/settings"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// View is what the render surface draws for one tick. Frame is nil when no
// animation is loaded; Status then holds the prompt to show instead.
type View struct {
	Frame      *Frame
	Index      int // -1 without a frame
	Sequence   *Sequence
	Generation uint64 // bumps on every successful load
	Phase      float64
	Status     string
	Playing    bool
	Tempo      float64
	Bars       float64
}

// Sink receives the view of every tick.
type Sink interface {
	Present(View)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(View)

// Present calls f(v).
func (f SinkFunc) Present(v View) { f(v) }

type published struct {
	seq *Sequence
	gen uint64
}

// Engine ties a transport to a decoded animation and resolves the frame to
// show on each tick.
//
// An Engine is not safe for concurrent use: Tick, Load and SetBars must be
// called from one goroutine, and Load must never be called from inside a
// Sink. Sequence may be read from any goroutine.
type Engine struct {
	id        string
	transport *Transport
	sink      Sink
	log       *logrus.Entry

	current    atomic.Pointer[published]
	generation uint64

	bars     float64
	clock    Clock
	lastTick time.Time
	status   string
	path     string
}

// Option configures an Engine.
type Option func(*Engine)

// WithSink sets the render sink that receives every tick's view.
func WithSink(s Sink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithLogger sets the log entry the engine writes to.
func WithLogger(l *logrus.Entry) Option {
	return func(e *Engine) { e.log = l }
}

// WithBars sets the initial sync length.
func WithBars(bars float64) Option {
	return func(e *Engine) {
		if validBars(bars) {
			e.bars = bars
		}
	}
}

// NewEngine creates an engine reading from transport.
func NewEngine(transport *Transport, opts ...Option) *Engine {
	if transport == nil {
		transport = NewTransport(DefaultTempo)
	}
	e := &Engine{
		id:        uuid.NewString(),
		transport: transport,
		bars:      DefaultBars,
		status:    StatusPrompt,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logrus.NewEntry(logrus.StandardLogger())
	}
	e.log = e.log.WithField("instance", e.id)
	return e
}

// ID identifies this engine in logs. Several engines may share one transport.
func (e *Engine) ID() string { return e.id }

// Transport returns the transport the engine reads.
func (e *Engine) Transport() *Transport { return e.transport }

// Sequence returns the active animation, nil if none was loaded.
func (e *Engine) Sequence() *Sequence {
	if p := e.current.Load(); p != nil {
		return p.seq
	}
	return nil
}

// Status returns the current status line.
func (e *Engine) Status() string { return e.status }

// Path returns the file of the last animation loaded from disk.
func (e *Engine) Path() string { return e.path }

// Bars returns the sync length.
func (e *Engine) Bars() float64 { return e.bars }

// SetBars changes the sync length. The free-running clock restarts when the
// length changes so the stopped animation does not jump.
func (e *Engine) SetBars(bars float64) error {
	if !validBars(bars) {
		return fmt.Errorf("%w: %v", ErrInvalidBars, bars)
	}
	if bars == e.bars {
		return nil
	}
	e.bars = bars
	e.clock.Reset()
	e.log.WithField("bars", bars).Infof("Sync length set to %s", SyncLabel(bars))
	return nil
}

// Load decodes data and, on success, makes it the active animation. On
// failure the previous animation stays active and only the status changes.
func (e *Engine) Load(data []byte, name string) error {
	seq, err := Decode(data)
	if err != nil {
		e.fail(name, err)
		return err
	}
	e.publish(seq, name)
	return nil
}

// LoadFile reads and loads the animation at path and remembers the path.
func (e *Engine) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		err = decodeError(ErrIOFailure, err)
		e.fail(path, err)
		return err
	}
	defer f.Close()

	seq, err := DecodeReader(f)
	if err != nil {
		e.fail(path, err)
		return err
	}

	e.path = path
	e.publish(seq, filepath.Base(path))
	return nil
}

// CanReload reports whether the last loaded file still exists.
func (e *Engine) CanReload() bool {
	if e.path == "" {
		return false
	}
	info, err := os.Stat(e.path)
	return err == nil && info.Mode().IsRegular()
}

// Reload loads the last file again.
func (e *Engine) Reload() error {
	if e.path == "" {
		return decodeError(ErrIOFailure, errors.New("nothing to reload"))
	}
	return e.LoadFile(e.path)
}

func (e *Engine) publish(seq *Sequence, name string) {
	e.generation++
	e.current.Store(&published{seq: seq, gen: e.generation})
	e.clock.Reset()
	if name == "" {
		name = "GIF loaded"
	}
	e.status = name

	e.log.WithFields(logrus.Fields{
		"file":      name,
		"frames":    seq.Len(),
		"total_sec": seq.Total,
		"width":     seq.Width,
		"height":    seq.Height,
	}).Info("Animation loaded")
}

func (e *Engine) fail(name string, err error) {
	e.status = StatusFor(err)
	e.log.WithFields(logrus.Fields{
		"file":  name,
		"error": err,
	}).Warn("Animation load failed")
}

// Tick resolves the frame for the given wall-clock time and hands the view to
// the sink. Deltas between ticks are clamped with ClampTickDelta.
func (e *Engine) Tick(now time.Time) View {
	var dt time.Duration
	if !e.lastTick.IsZero() {
		dt = ClampTickDelta(now.Sub(e.lastTick))
	}
	e.lastTick = now

	return e.step(dt)
}

// Step advances the engine by an explicit delta, for hosts that drive the
// engine from their own clock. The delta is applied as given; a caller that
// measures wall-clock gaps must pass them through ClampTickDelta first, or a
// stall will jump the free-running phase. Tick does this.
func (e *Engine) Step(dt time.Duration) View {
	return e.step(dt)
}

func (e *Engine) step(dt time.Duration) View {
	snap := e.transport.Snapshot()
	phase := Phase(SourceFor(snap, dt), e.bars, snap.Tempo, &e.clock)

	v := View{
		Index:   -1,
		Phase:   phase,
		Status:  e.status,
		Playing: snap.Playing,
		Tempo:   snap.Tempo,
		Bars:    e.bars,
	}
	if p := e.current.Load(); p != nil {
		v.Sequence = p.seq
		v.Generation = p.gen
		if i := p.seq.IndexAt(phase); i >= 0 {
			v.Index = i
			v.Frame = &p.seq.Frames[i]
		}
	}

	if e.sink != nil {
		e.sink.Present(v)
	}
	return v
}

// Settings captures the state that is persisted between sessions.
func (e *Engine) Settings() settings.Settings {
	return settings.Settings{
		BPM:      e.transport.Tempo(),
		SyncBars: e.bars,
		GifPath:  e.path,
	}
}

// Restore applies persisted settings. A saved animation that still exists is
// loaded again; a missing one leaves a status message.
func (e *Engine) Restore(s settings.Settings) {
	e.transport.SetTempo(s.BPM)
	if err := e.SetBars(s.SyncBars); err != nil {
		e.log.WithError(err).Warn("Ignoring saved sync length")
	}

	if s.GifPath == "" {
		e.path = ""
		e.status = StatusPrompt
		return
	}

	if _, err := os.Stat(s.GifPath); err != nil {
		e.path = s.GifPath
		e.status = StatusMissing
		e.log.WithField("file", s.GifPath).Warn("Saved animation is missing")
		return
	}

	if err := e.LoadFile(s.GifPath); err != nil {
		e.path = s.GifPath
	}
}
