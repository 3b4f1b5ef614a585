// Package config persists the channel configuration and relay states across
// restarts as a TOML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/sweeney/smartswitch/internal/logic"
)

// DefaultPath is where the daemon keeps its state.
const DefaultPath = "/var/lib/smartswitch/state.toml"

// State is the persisted form of a device.
type State struct {
	BothPressed bool                         `toml:"both_pressed"`
	Relays      []bool                       `toml:"relays"`
	Channels    []logic.ChannelConfiguration `toml:"channel"`
}

// Default returns factory settings for n channels with every relay off.
func Default(n int) State {
	return FromDevice(logic.DefaultDeviceConfiguration(n), make([]bool, n))
}

// FromDevice builds a State from a device configuration and relay states.
func FromDevice(d logic.DeviceConfiguration, relays []bool) State {
	return State{
		BothPressed: d.BothPressed,
		Relays:      append([]bool(nil), relays...),
		Channels:    append([]logic.ChannelConfiguration(nil), d.Channels...),
	}
}

// Device returns the device configuration part of s.
func (s State) Device() logic.DeviceConfiguration {
	return logic.DeviceConfiguration{
		Channels:    append([]logic.ChannelConfiguration(nil), s.Channels...),
		BothPressed: s.BothPressed,
	}
}

// Validate checks the configuration and that there is one relay state per channel.
func (s State) Validate() error {
	if err := s.Device().Validate(); err != nil {
		return err
	}
	if len(s.Relays) != len(s.Channels) {
		return fmt.Errorf("relays: expected %d states, got %d", len(s.Channels), len(s.Relays))
	}
	return nil
}

// FileStore reads and writes State at a fixed path.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store for path, creating its directory.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Path returns the file the store writes.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the stored state for a device with n channels. A missing file
// yields factory defaults.
func (f *FileStore) Load(n int) (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var s State
	md, err := toml.DecodeFile(f.path, &s)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(n), nil
		}
		return State{}, fmt.Errorf("decode %s: %w", f.path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return State{}, fmt.Errorf("decode %s: unknown keys %v", f.path, undecoded)
	}
	if len(s.Channels) != n {
		return State{}, fmt.Errorf("%s holds %d channels, device has %d", f.path, len(s.Channels), n)
	}
	if s.Relays == nil {
		s.Relays = make([]bool, n)
	}
	if err := s.Validate(); err != nil {
		return State{}, fmt.Errorf("%s: %w", f.path, err)
	}
	return s, nil
}

// Save validates s and writes it atomically.
func (f *FileStore) Save(s State) error {
	if err := s.Validate(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(s); err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write tmp: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("rename tmp: %w", err)
	}
	return nil
}

// Reset removes the stored state so the next Load returns defaults.
func (f *FileStore) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", f.path, err)
	}
	return nil
}
