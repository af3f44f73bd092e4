// Package watch reloads the animation when its file changes on disk.
package watch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce is how long the file must stay quiet before a change is
// reported. Editors and exporters often write a GIF in several steps.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reports changes to a single file. It watches the parent
// directory so files replaced by rename are still seen.
type Watcher struct {
	fs       *fsnotify.Watcher
	log      *logrus.Entry
	debounce time.Duration
	onChange func(path string)

	mu   sync.Mutex
	path string
	dir  string
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a change is reported.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// New creates a watcher that calls onChange from its Run goroutine.
func New(onChange func(path string), log *logrus.Entry, opts ...Option) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	w := &Watcher{
		fs:       fs,
		log:      log.WithField("component", "watch"),
		debounce: DefaultDebounce,
		onChange: onChange,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Watch switches the watched file. An empty path stops watching.
func (w *Watcher) Watch(path string) error {
	if path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		path = abs
	}
	dir := filepath.Dir(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	if path == w.path {
		return nil
	}
	if w.dir != "" && w.dir != dir {
		w.fs.Remove(w.dir)
		w.dir = ""
	}
	w.path = path
	if path == "" || w.dir == dir {
		return nil
	}
	if err := w.fs.Add(dir); err != nil {
		w.path = ""
		return err
	}
	w.dir = dir
	w.log.WithField("file", path).Debug("Watching animation file")
	return nil
}

// Path returns the watched file.
func (w *Watcher) Path() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.path
}

// Run delivers change notifications until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	pending := ""
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			path := w.Path()
			if path == "" || filepath.Clean(ev.Name) != path {
				continue
			}
			pending = path
			timer.Reset(w.debounce)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("File watch error")

		case <-timer.C:
			// the file may have been switched while waiting
			if pending != "" && pending == w.Path() {
				w.log.WithField("file", pending).Info("Animation file changed")
				w.onChange(pending)
			}
			pending = ""
		}
	}
}

// Close stops watching and releases the watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
