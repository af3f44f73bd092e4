package config

import (
	"fmt"
	"math"

	"github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
)

// Validate checks if the configuration is valid and fills in defaults
func Validate(cfg *Config) error {
	if cfg.TickHz <= 0 {
		cfg.TickHz = 60
	}
	if cfg.TickHz > 1000 {
		return fmt.Errorf("tick_hz must be <= 1000, got %d", cfg.TickHz)
	}

	switch cfg.Source {
	case "":
		cfg.Source = SourceInternal
	case SourceFree, SourceInternal, SourceLink, SourceMIDI:
	default:
		return fmt.Errorf("source must be one of free, internal, link, midi, got %q", cfg.Source)
	}

	if math.IsNaN(cfg.Tempo) || math.IsInf(cfg.Tempo, 0) || cfg.Tempo < 0 {
		return fmt.Errorf("tempo must be a positive number, got %v", cfg.Tempo)
	}
	if cfg.Tempo == 0 {
		cfg.Tempo = 120
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}

	switch cfg.UI {
	case "":
		cfg.UI = UITUI
	case UITUI, UIHeadless:
	default:
		return fmt.Errorf("ui must be tui or headless, got %q", cfg.UI)
	}

	if cfg.Link.Quantum <= 0 {
		cfg.Link.Quantum = 4
	}
	if cfg.MIDI.Port < -1 {
		return fmt.Errorf("midi.port must be >= -1, got %d", cfg.MIDI.Port)
	}

	var err error
	if cfg.SettingsPath == "" {
		cfg.SettingsPath = "~/.gifsync/settings.yaml"
	}
	if cfg.SettingsPath, err = homedir.Expand(cfg.SettingsPath); err != nil {
		return fmt.Errorf("settings_path: %w", err)
	}
	if cfg.Snapshot.Dir == "" {
		cfg.Snapshot.Dir = "."
	}
	if cfg.Snapshot.Dir, err = homedir.Expand(cfg.Snapshot.Dir); err != nil {
		return fmt.Errorf("snapshot.dir: %w", err)
	}
	if cfg.GIF != "" {
		if cfg.GIF, err = homedir.Expand(cfg.GIF); err != nil {
			return fmt.Errorf("gif: %w", err)
		}
	}

	return nil
}

// Level returns the configured log level.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
