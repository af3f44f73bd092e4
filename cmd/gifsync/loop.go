package main

import (
	"context"
	"image"
	"time"

	"github.com/sirupsen/logrus"

	gifsync "github.com/DatanoiseTV/gifsync-go"
	"github.com/DatanoiseTV/gifsync-go/render"
)

const requestQueueSize = 16

// loop owns the engine: ticks and every state change run on its goroutine.
// UI and network goroutines post requests instead of calling the engine.
type loop struct {
	engine      *gifsync.Engine
	requests    chan func()
	log         *logrus.Entry
	snapshotDir string
	onPath      func(path string) // called after the loaded path changes

	last gifsync.View
}

// newLoop creates a loop without an engine; set engine before Run.
func newLoop(snapshotDir string, log *logrus.Entry) *loop {
	return &loop{
		requests:    make(chan func(), requestQueueSize),
		log:         log,
		snapshotDir: snapshotDir,
	}
}

func (l *loop) post(fn func()) {
	select {
	case l.requests <- fn:
	default:
		l.log.Warn("Request queue full, dropping request")
	}
}

// LoadFile queues a load of path.
func (l *loop) LoadFile(path string) {
	l.post(func() {
		if err := l.engine.LoadFile(path); err == nil {
			l.pathChanged()
		}
	})
}

// LoadData queues a load of an animation received in memory. The remembered
// path is kept, so the watcher and Reload still refer to the last file.
func (l *loop) LoadData(data []byte, name string) {
	l.post(func() {
		l.engine.Load(data, name)
	})
}

// Reload queues a reload of the current file.
func (l *loop) Reload() {
	l.post(func() {
		if !l.engine.CanReload() {
			l.log.Warn("Nothing to reload")
			return
		}
		l.engine.Reload()
	})
}

// SetBars queues a sync length change.
func (l *loop) SetBars(bars float64) {
	l.post(func() {
		if err := l.engine.SetBars(bars); err != nil {
			l.log.WithError(err).Warn("Sync length rejected")
		}
	})
}

// Snapshot saves the last view as PNG. Views are immutable, so rendering
// happens off the loop.
func (l *loop) Snapshot() {
	l.post(func() {
		v := l.last
		go func() {
			path, err := render.SavePNG(l.snapshotDir, v, image.Point{}, time.Now())
			if err != nil {
				l.log.WithError(err).Error("Snapshot failed")
				return
			}
			l.log.WithField("file", path).Info("Snapshot saved")
		}()
	})
}

func (l *loop) pathChanged() {
	if l.onPath != nil {
		l.onPath(l.engine.Path())
	}
}

// Run ticks the engine at hz until ctx is done, running queued requests
// between ticks.
func (l *loop) Run(ctx context.Context, hz int) {
	ticker := time.NewTicker(time.Second / time.Duration(hz))
	defer ticker.Stop()

	l.last = l.engine.Tick(time.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.requests:
			fn()
		case now := <-ticker.C:
			l.last = l.engine.Tick(now)
		}
	}
}
