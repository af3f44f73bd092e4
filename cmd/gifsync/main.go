// Command gifsync plays a GIF locked to a musical transport: an Ableton Link
// session, an external MIDI clock or its own metronome.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	gifsync "github.com/DatanoiseTV/gifsync-go"
	"github.com/DatanoiseTV/gifsync-go/config"
	"github.com/DatanoiseTV/gifsync-go/overlay"
	"github.com/DatanoiseTV/gifsync-go/render"
	"github.com/DatanoiseTV/gifsync-go/settings"
	"github.com/DatanoiseTV/gifsync-go/tui"
	"github.com/DatanoiseTV/gifsync-go/watch"
)

// Command line flags. Flags given explicitly override the config file.
var (
	configPath = flag.String("config", config.DefaultPath(), "Path to the TOML configuration file")
	sourceName = flag.String("source", "", "Transport source: free, internal, link, midi")
	tempo      = flag.Float64("tempo", 0, "Tempo in BPM, overrides the saved tempo")
	gifPath    = flag.String("gif", "", "GIF to load on start, overrides the saved file")
	uiMode     = flag.String("ui", "", "User interface: tui, headless")
	midiPort   = flag.Int("midi-port", -1, "MIDI input port for -source midi (-1 opens a virtual port, see -list-ports)")
	listPorts  = flag.Bool("list-ports", false, "List available MIDI input ports and exit")
	listen     = flag.String("listen", "", "Serve the browser overlay on host:port")
	watchFile  = flag.Bool("watch", false, "Reload the GIF when the file changes")
	realtimeOn = flag.Bool("realtime", false, "Run timing threads with real-time priority")
	logLevel   = flag.String("log-level", "", "Log level: debug, info, warn, error")
)

// applyFlags copies the flags set on the command line into cfg.
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "source":
			cfg.Source = *sourceName
		case "tempo":
			cfg.Tempo = *tempo
		case "gif":
			cfg.GIF = *gifPath
		case "ui":
			cfg.UI = *uiMode
		case "midi-port":
			cfg.MIDI.Port = *midiPort
		case "listen":
			cfg.Overlay.Listen = *listen
		case "watch":
			cfg.Watch.Enabled = *watchFile
		case "realtime":
			cfg.Realtime = *realtimeOn
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})
}

func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func loadConfig() *config.Config {
	var (
		cfg *config.Config
		err error
	)
	if flagSet("config") {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.LoadOptional(*configPath)
	}
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	applyFlags(cfg)
	if err := config.Validate(cfg); err != nil {
		logrus.Fatalf("Invalid options: %v", err)
	}
	return cfg
}

func main() {
	flag.Parse()

	// Handle port listing
	if *listPorts {
		listAvailablePorts()
		return
	}

	cfg := loadConfig()
	logrus.SetLevel(cfg.Level())

	useTUI := cfg.UI == config.UITUI
	if useTUI && !term.IsTerminal(int(os.Stdout.Fd())) {
		logrus.Warn("Standard output is not a terminal, running headless")
		useTUI = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logrus.NewEntry(logrus.StandardLogger())
	rt := &realtime{enabled: cfg.Realtime, log: log}
	if cfg.Realtime {
		logRealtimePriorityInfo(log)
	}

	// Sinks
	lp := newLoop(cfg.Snapshot.Dir, log)
	var sinks render.Multi
	var views *render.Mailbox
	if useTUI {
		views = render.NewMailbox()
		sinks = append(sinks, views)
	}
	var server *overlay.Server
	if cfg.Overlay.Listen != "" {
		server = overlay.New(lp, log)
		sinks = append(sinks, server.Sink())
	}

	transport := gifsync.NewTransport(cfg.Tempo)
	engine := gifsync.NewEngine(transport, gifsync.WithSink(sinks), gifsync.WithLogger(log))
	lp.engine = engine

	// Restore the previous session before any producer reads the tempo
	saved, err := settings.Load(cfg.SettingsPath)
	if err != nil {
		log.WithError(err).Warn("Failed to read saved settings, using defaults")
	}
	if flagSet("tempo") {
		saved.BPM = cfg.Tempo
	}
	if cfg.GIF != "" {
		saved.GifPath = cfg.GIF
	}
	engine.Restore(saved)

	// File watching
	if cfg.Watch.Enabled {
		w, err := watch.New(func(string) { lp.Reload() }, log)
		if err != nil {
			log.WithError(err).Warn("File watching unavailable")
		} else {
			defer w.Close()
			lp.onPath = func(path string) {
				if err := w.Watch(path); err != nil {
					log.WithError(err).WithField("file", path).Warn("Failed to watch file")
				}
			}
			lp.pathChanged()
			go w.Run(ctx)
		}
	}

	src := openSource(ctx, cfg, transport, rt, log)
	log.WithField("source", src.Name).Infof("gifsync started (instance %s)", engine.ID())

	runCtx, cancel := context.WithCancel(ctx)
	rt.Go("tick", func() { lp.Run(runCtx, cfg.TickHz) })

	if server != nil {
		go server.Run(runCtx)
		go func() {
			if err := server.ListenAndServe(runCtx, cfg.Overlay.Listen); err != nil {
				log.WithError(err).Error("Overlay server failed")
			}
		}()
	}

	if useTUI {
		ui := tui.New(tui.Options{
			Views:   views,
			Control: src.Control,
			Actions: lp,
			Source:  src.Name,
			Peers:   src.Peers,
		})
		logrus.SetOutput(ui.LogWriter())
		logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})

		go func() {
			<-ctx.Done()
			ui.Stop()
		}()
		if err := ui.Run(); err != nil {
			logrus.SetOutput(os.Stderr)
			logrus.Fatalf("UI error: %v", err)
		}
		logrus.SetOutput(os.Stderr)
	} else {
		fmt.Println("gifsync running... Press Ctrl+C to stop")
		<-ctx.Done()
	}

	// Graceful shutdown
	cancel()
	if views != nil {
		views.Close()
	}
	rt.Wait()
	src.Close()

	if err := settings.Save(cfg.SettingsPath, engine.Settings()); err != nil {
		log.WithError(err).Error("Failed to save settings")
	}
	log.Info("gifsync stopped")
}
