// Package settings persists the user's choices between sessions: the
// fallback tempo, the sync length and the last animation that loaded.
package settings

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// Defaults for a blob that is missing or lacks a key.
const (
	DefaultBPM      = 120.0
	DefaultSyncBars = 1.0
)

// Settings is the persisted key/value blob.
type Settings struct {
	BPM      float64 `yaml:"bpm"`
	SyncBars float64 `yaml:"syncBars"`
	GifPath  string  `yaml:"gifPath"`
}

// Default returns the settings of a first run.
func Default() Settings {
	return Settings{BPM: DefaultBPM, SyncBars: DefaultSyncBars}
}

// Marshal encodes s as YAML.
func (s Settings) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode settings: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a blob written by Marshal. Missing keys keep their
// defaults and out-of-range numbers are replaced by them. An 8-byte blob that
// is not YAML is read as a bare little-endian tempo, the oldest state format.
func Unmarshal(data []byte) (Settings, error) {
	s := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return s, nil
	}

	if err := yaml.Unmarshal(data, &s); err != nil {
		if len(data) == 8 {
			return legacy(data), nil
		}
		return Default(), fmt.Errorf("failed to parse settings: %w", err)
	}
	return s.sanitized(), nil
}

func legacy(data []byte) Settings {
	s := Default()
	if bpm := math.Float64frombits(binary.LittleEndian.Uint64(data)); bpm > 0 && !math.IsInf(bpm, 0) {
		s.BPM = bpm
	}
	return s
}

func (s Settings) sanitized() Settings {
	if !(s.BPM > 0) || math.IsInf(s.BPM, 0) {
		s.BPM = DefaultBPM
	}
	if !(s.SyncBars > 0) || math.IsInf(s.SyncBars, 0) {
		s.SyncBars = DefaultSyncBars
	}
	return s
}

// DefaultPath returns ~/.gifsync/settings.yaml.
func DefaultPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("failed to locate home directory: %w", err)
	}
	return filepath.Join(home, ".gifsync", "settings.yaml"), nil
}

// Load reads settings from path. A missing file yields the defaults.
func Load(path string) (Settings, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return Default(), fmt.Errorf("failed to expand settings path: %w", err)
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Default(), fmt.Errorf("failed to read settings file: %w", err)
	}
	return Unmarshal(data)
}

// Save writes settings to path, replacing the previous file in one rename.
func Save(path string, s Settings) error {
	path, err := homedir.Expand(path)
	if err != nil {
		return fmt.Errorf("failed to expand settings path: %w", err)
	}

	data, err := s.Marshal()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace settings file: %w", err)
	}
	return nil
}
