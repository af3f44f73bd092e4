package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	gifsync "github.com/DatanoiseTV/gifsync-go"
	"github.com/DatanoiseTV/gifsync-go/config"
	"github.com/DatanoiseTV/gifsync-go/source"
)

const virtualPortName = "gifsync Clock In"

// transportSource is the producer chosen for this run.
type transportSource struct {
	Name    string
	Control source.Control
	Peers   func() uint64 // nil unless following Link
	close   func()
}

func (s *transportSource) Close() {
	if s.close != nil {
		s.close()
	}
}

// openSource starts the configured producer. Sources that are not compiled
// in or fail to open fall back to free-running.
func openSource(ctx context.Context, cfg *config.Config, t *gifsync.Transport, rt *realtime, log *logrus.Entry) *transportSource {
	src, err := startSource(ctx, cfg, t, rt, log)
	if err != nil {
		log.WithError(err).WithField("source", cfg.Source).Warn("Transport source unavailable, free-running instead")
		return &transportSource{Name: config.SourceFree, Control: source.Free{T: t}}
	}
	return src
}

func startSource(ctx context.Context, cfg *config.Config, t *gifsync.Transport, rt *realtime, log *logrus.Entry) (*transportSource, error) {
	switch cfg.Source {
	case config.SourceInternal:
		m := source.NewMetronome(t, source.WithLog(log))
		m.Start()
		rt.Go("metronome", func() { m.Run(ctx) })
		return &transportSource{Name: cfg.Source, Control: m}, nil

	case config.SourceMIDI:
		clock := source.NewMIDIClock(t, log)
		in, err := source.OpenMIDIIn(cfg.MIDI.Port, virtualPortName, clock.Handle)
		if err != nil {
			return nil, fmt.Errorf("failed to open MIDI input: %w", err)
		}
		if cfg.MIDI.Port >= 0 {
			log.Infof("Following MIDI clock on port %d", cfg.MIDI.Port)
		} else {
			log.Infof("Following MIDI clock on virtual port '%s'", virtualPortName)
		}
		return &transportSource{
			Name:    cfg.Source,
			Control: source.Following{T: t},
			close:   func() { in.Close() },
		}, nil

	case config.SourceLink:
		link, err := source.OpenLink(t.Tempo())
		if err != nil {
			return nil, fmt.Errorf("failed to join Link session: %w", err)
		}
		f := source.NewLinkFollower(link, t, cfg.Link.Quantum, log)
		f.Watch(link)
		rt.Go("link", func() { f.Run(ctx) })
		log.Infof("Following Link session (quantum %g)", cfg.Link.Quantum)
		return &transportSource{
			Name:    cfg.Source,
			Control: source.Following{T: t},
			Peers:   f.Peers,
			close:   func() { link.Close() },
		}, nil
	}

	return &transportSource{Name: config.SourceFree, Control: source.Free{T: t}}, nil
}

func listAvailablePorts() {
	fmt.Println("Available MIDI Input Ports:")
	ports, err := source.ListMIDIInputs()
	if err != nil {
		fmt.Printf("Error listing input ports: %v\n", err)
		return
	}
	for i, port := range ports {
		fmt.Printf("  %d: %s\n", i, port)
	}
}
