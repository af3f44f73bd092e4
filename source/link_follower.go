package source

import (
	"context"
	"time"

	gifsync "github.com/DatanoiseTV/gifsync-go"
	"github.com/sirupsen/logrus"
)

// LinkSession is what the follower reads from a Link session.
type LinkSession interface {
	Capture(quantum float64) (tempo float64, playing bool, beat float64)
	NumPeers() uint64
}

// LinkFollower copies a Link session's timeline into a transport.
type LinkFollower struct {
	session   LinkSession
	transport *gifsync.Transport
	log       *logrus.Entry
	quantum   float64
	interval  time.Duration
}

// NewLinkFollower creates a follower polling session every millisecond.
func NewLinkFollower(session LinkSession, t *gifsync.Transport, quantum float64, log *logrus.Entry) *LinkFollower {
	if quantum <= 0 {
		quantum = 4
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &LinkFollower{
		session:   session,
		transport: t,
		log:       log.WithField("source", "link"),
		quantum:   quantum,
		interval:  time.Millisecond,
	}
}

// Run polls the session until ctx is done.
func (f *LinkFollower) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			f.Poll()
		}
	}
}

// Poll captures the session once and publishes it.
func (f *LinkFollower) Poll() {
	tempo, playing, beat := f.session.Capture(f.quantum)
	f.transport.Update(tempo, playing, beat)
}

// Peers returns the number of other Link participants.
func (f *LinkFollower) Peers() uint64 {
	return f.session.NumPeers()
}

// Watch logs session events reported through the Link callbacks.
func (f *LinkFollower) Watch(l *Link) {
	l.SetNumPeersCallback(func(n uint64) {
		f.log.Infof("Link peers: %d", n)
	})
	l.SetTempoCallback(func(tempo float64) {
		f.log.Debugf("Link tempo: %.2f BPM", tempo)
	})
	l.SetStartStopCallback(func(isPlaying bool) {
		f.log.Infof("Link transport %s", playingStateString(isPlaying))
	})
}

func playingStateString(isPlaying bool) string {
	if isPlaying {
		return "started"
	}
	return "stopped"
}
