package logic

import (
	"errors"
	"fmt"
	"time"
)

// OperatingMode selects whether a channel drives a local relay.
type OperatingMode string

const (
	OperatingServer OperatingMode = "server"
	OperatingClient OperatingMode = "client"
)

// SwitchMode selects how button edges are interpreted.
type SwitchMode string

const (
	SwitchToggle        SwitchMode = "toggle"
	SwitchMomentary     SwitchMode = "momentary"
	SwitchMultifunction SwitchMode = "multifunction"
)

// SwitchActions maps momentary press/release to relay states.
type SwitchActions string

const (
	ActionsOnOff  SwitchActions = "onoff"
	ActionsOffOn  SwitchActions = "offon"
	ActionsToggle SwitchActions = "toggle"
)

// RelayMode selects the multifunction action that toggles the relay.
type RelayMode string

const (
	RelayUnlinked RelayMode = "unlinked"
	RelayFront    RelayMode = "front"
	RelaySingle   RelayMode = "single"
	RelayDouble   RelayMode = "double"
	RelayTriple   RelayMode = "triple"
	RelayLong     RelayMode = "long"
)

// LongPressMode selects the level control command sent while holding.
type LongPressMode string

const (
	LongPressNone          LongPressMode = "none"
	LongPressLevelCtrlUp   LongPressMode = "level_up"
	LongPressLevelCtrlDown LongPressMode = "level_down"
)

// InterlockMode constrains the relay states of the two channels.
type InterlockMode string

const (
	InterlockNone            InterlockMode = "none"
	InterlockMutualExclusion InterlockMode = "mutual_exclusion"
	InterlockOpposite        InterlockMode = "opposite"
)

// Defaults match the factory settings of the switch.
const (
	DefaultMaxPause     = 250 * time.Millisecond
	DefaultMinLongPress = 1000 * time.Millisecond
)

// ChannelConfiguration is the parameter set of one channel.
type ChannelConfiguration struct {
	OperatingMode OperatingMode `toml:"operating_mode" json:"operating_mode"`
	SwitchMode    SwitchMode    `toml:"switch_mode" json:"switch_mode"`
	SwitchActions SwitchActions `toml:"switch_actions" json:"switch_actions"`
	RelayMode     RelayMode     `toml:"relay_mode" json:"relay_mode"`
	LongPressMode LongPressMode `toml:"long_press_mode" json:"long_press_mode"`
	InterlockMode InterlockMode `toml:"interlock_mode" json:"interlock_mode"`
	MaxPause      time.Duration `toml:"max_pause" json:"max_pause"`
	MinLongPress  time.Duration `toml:"min_long_press" json:"min_long_press"`
}

// DefaultChannelConfiguration returns the factory configuration of a channel.
func DefaultChannelConfiguration() ChannelConfiguration {
	return ChannelConfiguration{
		OperatingMode: OperatingServer,
		SwitchMode:    SwitchToggle,
		SwitchActions: ActionsOnOff,
		RelayMode:     RelayUnlinked,
		LongPressMode: LongPressNone,
		InterlockMode: InterlockNone,
		MaxPause:      DefaultMaxPause,
		MinLongPress:  DefaultMinLongPress,
	}
}

// DeviceConfiguration holds every channel of a device.
type DeviceConfiguration struct {
	Channels []ChannelConfiguration `toml:"channel" json:"channels"`
	// BothPressed enables the synthetic both-buttons-pressed event.
	BothPressed bool `toml:"both_pressed" json:"both_pressed"`
}

// DefaultDeviceConfiguration returns factory settings for a device with n channels.
func DefaultDeviceConfiguration(n int) DeviceConfiguration {
	d := DeviceConfiguration{}
	for i := 0; i < n; i++ {
		d.Channels = append(d.Channels, DefaultChannelConfiguration())
	}
	return d
}

// Update is a partial configuration write. Nil fields are left unchanged.
type Update struct {
	OperatingMode *OperatingMode
	SwitchMode    *SwitchMode
	SwitchActions *SwitchActions
	RelayMode     *RelayMode
	LongPressMode *LongPressMode
	InterlockMode *InterlockMode
	MaxPause      *time.Duration
	MinLongPress  *time.Duration
}

// Empty reports whether the update writes nothing.
func (u Update) Empty() bool {
	return u == Update{}
}

var (
	// ErrConflict is matched by every rejected configuration write.
	ErrConflict = errors.New("configuration conflict")
	// ErrTimingAnomaly marks an edge whose timestamp precedes the last one seen.
	ErrTimingAnomaly = errors.New("timing anomaly")
	// ErrClientMode is returned for relay commands on a client-mode channel.
	ErrClientMode = errors.New("channel runs in client mode")
	// ErrUnknownChannel is returned for channels the device does not have.
	ErrUnknownChannel = errors.New("unknown channel")
)

// ConflictError describes why a configuration write was rejected.
type ConflictError struct {
	Channel Channel
	Field   string
	Reason  string
}

func (e *ConflictError) Error() string {
	if e.Channel == 0 {
		return fmt.Sprintf("configuration conflict: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("configuration conflict on %s: %s: %s", e.Channel, e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrConflict) true for every ConflictError.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

func conflict(ch Channel, field, format string, args ...any) error {
	return &ConflictError{Channel: ch, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks that every field of a complete channel configuration is usable.
func (c ChannelConfiguration) Validate(ch Channel) error {
	switch c.OperatingMode {
	case OperatingServer, OperatingClient:
	default:
		return conflict(ch, "operating_mode", "unknown value %q", c.OperatingMode)
	}
	switch c.SwitchMode {
	case SwitchToggle, SwitchMomentary, SwitchMultifunction:
	default:
		return conflict(ch, "switch_mode", "unknown value %q", c.SwitchMode)
	}
	switch c.SwitchActions {
	case ActionsOnOff, ActionsOffOn, ActionsToggle:
	default:
		return conflict(ch, "switch_actions", "unknown value %q", c.SwitchActions)
	}
	switch c.RelayMode {
	case RelayUnlinked, RelayFront, RelaySingle, RelayDouble, RelayTriple, RelayLong:
	default:
		return conflict(ch, "relay_mode", "unknown value %q", c.RelayMode)
	}
	switch c.LongPressMode {
	case LongPressNone, LongPressLevelCtrlUp, LongPressLevelCtrlDown:
	default:
		return conflict(ch, "long_press_mode", "unknown value %q", c.LongPressMode)
	}
	switch c.InterlockMode {
	case InterlockNone, InterlockMutualExclusion, InterlockOpposite:
	default:
		return conflict(ch, "interlock_mode", "unknown value %q", c.InterlockMode)
	}
	if c.MaxPause <= DebounceWindow {
		// A shorter pause would close the gesture before a second press
		// could pass the debounce window.
		return conflict(ch, "max_pause", "must exceed the %v debounce window, got %v", DebounceWindow, c.MaxPause)
	}
	if c.MinLongPress <= 0 {
		return conflict(ch, "min_long_press", "must be positive, got %v", c.MinLongPress)
	}
	return nil
}

// Validate checks the channel count, every channel and the interlock pairing.
func (d DeviceConfiguration) Validate() error {
	n := len(d.Channels)
	if n < 1 || n > MaxChannels {
		return conflict(0, "channels", "device must have 1 or %d channels, got %d", MaxChannels, n)
	}
	for i, c := range d.Channels {
		if err := c.Validate(Channel(i + 1)); err != nil {
			return err
		}
	}
	if n == 1 && d.Channels[0].InterlockMode != InterlockNone {
		return conflict(Channel1, "interlock_mode", "single channel device cannot interlock")
	}
	if n == 2 && d.Channels[0].InterlockMode != d.Channels[1].InterlockMode {
		return conflict(Channel2, "interlock_mode", "%q does not match sibling %q",
			d.Channels[1].InterlockMode, d.Channels[0].InterlockMode)
	}
	return nil
}

// Apply merges a partial write into cur. sibling is nil on single channel devices.
// The returned configuration is only meaningful when err is nil.
func (u Update) Apply(ch Channel, cur ChannelConfiguration, sibling *ChannelConfiguration) (ChannelConfiguration, error) {
	next := cur
	if u.OperatingMode != nil {
		next.OperatingMode = *u.OperatingMode
	}
	if u.SwitchMode != nil {
		next.SwitchMode = *u.SwitchMode
	}
	if u.SwitchActions != nil {
		next.SwitchActions = *u.SwitchActions
	}
	if u.RelayMode != nil {
		next.RelayMode = *u.RelayMode
	}
	if u.LongPressMode != nil {
		next.LongPressMode = *u.LongPressMode
	}
	if u.InterlockMode != nil {
		next.InterlockMode = *u.InterlockMode
	}
	if u.MaxPause != nil {
		next.MaxPause = *u.MaxPause
	}
	if u.MinLongPress != nil {
		next.MinLongPress = *u.MinLongPress
	}

	if err := next.Validate(ch); err != nil {
		return cur, err
	}
	if u.RelayMode != nil && next.SwitchMode != SwitchMultifunction {
		return cur, conflict(ch, "relay_mode", "requires switch_mode %q, have %q", SwitchMultifunction, next.SwitchMode)
	}
	if u.LongPressMode != nil && next.SwitchMode != SwitchMultifunction {
		return cur, conflict(ch, "long_press_mode", "requires switch_mode %q, have %q", SwitchMultifunction, next.SwitchMode)
	}
	if u.SwitchActions != nil && next.SwitchMode != SwitchMomentary {
		return cur, conflict(ch, "switch_actions", "requires switch_mode %q, have %q", SwitchMomentary, next.SwitchMode)
	}
	if u.InterlockMode != nil {
		if sibling == nil && next.InterlockMode != InterlockNone {
			return cur, conflict(ch, "interlock_mode", "single channel device cannot interlock")
		}
		if sibling != nil && sibling.InterlockMode != next.InterlockMode {
			return cur, conflict(ch, "interlock_mode", "%q does not match sibling %q", next.InterlockMode, sibling.InterlockMode)
		}
	}
	return next, nil
}
