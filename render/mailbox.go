// Package render turns engine views into pixels for the host surfaces: a
// latest-only mailbox between the tick loop and slow consumers, PNG
// snapshots and terminal half-block cells.
package render

import (
	"sync"
	"sync/atomic"

	gifsync "github.com/DatanoiseTV/gifsync-go"
)

// Mailbox is a single-slot buffer between the tick loop and one consumer.
// Present never blocks: a view that was not consumed yet is overwritten.
type Mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	view   gifsync.View
	seq    uint64 // bumped on every Present
	read   uint64 // seq the consumer last took
	closed bool

	drops atomic.Uint64
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	m := &Mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Present stores v, replacing an unconsumed view.
func (m *Mailbox) Present(v gifsync.View) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if m.seq != m.read {
		m.drops.Add(1)
	}
	m.view = v
	m.seq++
	m.mu.Unlock()

	m.cond.Signal()
}

// Next blocks until a view newer than the last one taken arrives. It returns
// false once the mailbox is closed.
func (m *Mailbox) Next() (gifsync.View, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for m.seq == m.read && !m.closed {
		m.cond.Wait()
	}
	if m.closed {
		return gifsync.View{}, false
	}
	m.read = m.seq
	return m.view, true
}

// Latest returns the most recent view without waiting. ok is false before
// the first Present.
func (m *Mailbox) Latest() (v gifsync.View, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view, m.seq > 0
}

// Drops returns how many views were overwritten before being consumed.
func (m *Mailbox) Drops() uint64 {
	return m.drops.Load()
}

// Close wakes a blocked consumer and discards further views.
func (m *Mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cond.Broadcast()
}

// Multi fans one tick out to several sinks, in order.
type Multi []gifsync.Sink

// Present calls Present on every sink.
func (ms Multi) Present(v gifsync.View) {
	for _, s := range ms {
		s.Present(v)
	}
}
