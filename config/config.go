package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
)

// Transport sources
const (
	SourceFree     = "free"     // no transport, free-running at the saved tempo
	SourceInternal = "internal" // in-process metronome driven from the UI
	SourceLink     = "link"     // Ableton Link session
	SourceMIDI     = "midi"     // external MIDI clock
)

// UI modes
const (
	UITUI      = "tui"
	UIHeadless = "headless"
)

// Config represents the complete gifsync runtime configuration
type Config struct {
	TickHz       int     `toml:"tick_hz"`       // render ticks per second (default: 60)
	Source       string  `toml:"source"`        // free, internal, link, midi
	Tempo        float64 `toml:"tempo"`         // fallback BPM before any host reports one
	SettingsPath string  `toml:"settings_path"` // persisted session state
	LogLevel     string  `toml:"log_level"`     // logrus level name
	UI           string  `toml:"ui"`            // tui, headless
	Realtime     bool    `toml:"realtime"`      // raise follower threads to realtime priority
	GIF          string  `toml:"gif"`           // animation to load on start, overrides the saved one

	MIDI     MIDIConfig     `toml:"midi"`
	Link     LinkConfig     `toml:"link"`
	Overlay  OverlayConfig  `toml:"overlay"`
	Watch    WatchConfig    `toml:"watch"`
	Snapshot SnapshotConfig `toml:"snapshot"`
}

// MIDIConfig contains MIDI clock input settings
type MIDIConfig struct {
	Port int `toml:"port"` // input port index, -1 opens a virtual port
}

// LinkConfig contains Ableton Link settings
type LinkConfig struct {
	Quantum float64 `toml:"quantum"` // beats per phase cycle (default: 4)
}

// OverlayConfig contains the browser overlay server settings
type OverlayConfig struct {
	Listen string `toml:"listen"` // host:port, empty disables the server
}

// WatchConfig contains file watching settings
type WatchConfig struct {
	Enabled bool `toml:"enabled"` // reload the animation when its file changes
}

// SnapshotConfig contains PNG snapshot settings
type SnapshotConfig struct {
	Dir string `toml:"dir"` // output directory (default: current directory)
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		TickHz:       60,
		Source:       SourceInternal,
		Tempo:        120,
		SettingsPath: "~/.gifsync/settings.yaml",
		LogLevel:     "info",
		UI:           UITUI,
		MIDI:         MIDIConfig{Port: -1},
		Link:         LinkConfig{Quantum: 4},
		Snapshot:     SnapshotConfig{Dir: "."},
	}
}

// Load reads and parses a TOML configuration file on top of the defaults.
// An empty path returns the validated defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, Validate(cfg)
	}

	path, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("failed to parse config at %d:%d: %w", row, col, err)
		}
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadOptional is Load, but a missing file yields the defaults.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Default()
		return cfg, Validate(cfg)
	}
	return cfg, err
}

// DefaultPath returns ~/.gifsync/config.toml.
func DefaultPath() string {
	return "~/.gifsync/config.toml"
}
