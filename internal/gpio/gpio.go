// Package gpio provides button edge input and relay output with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"time"

	"github.com/sweeney/smartswitch/internal/logic"
)

// EdgeWatcher delivers debounce-free button edges as the hardware sees them.
type EdgeWatcher interface {
	// Edges returns the channel edges are delivered on. It is closed by Close.
	Edges() <-chan logic.Edge

	// Levels returns the current logical button levels, indexed by channel-1.
	Levels() ([]bool, error)

	// Close releases GPIO resources.
	Close() error
}

// RelayDriver drives the relay (and its indicator) of each channel.
type RelayDriver interface {
	Set(ch logic.Channel, on bool) error
	Get(ch logic.Channel) (bool, error)
	Close() error
}

// Clock returns the current instant on the monotonic clock edges are stamped with.
type Clock interface {
	Now() time.Duration
}

// Pins maps channels to BCM line offsets. Index 0 is channel 1.
type Pins struct {
	Chip    string
	Buttons []int
	Relays  []int
}

// Default pin assignment (BCM numbering)
const (
	DefaultChip       = "gpiochip0"
	DefaultPinButton1 = 26
	DefaultPinButton2 = 16
	DefaultPinRelay1  = 5
	DefaultPinRelay2  = 6
)

// DefaultPins returns the standard wiring for a device with n channels.
func DefaultPins(n int) Pins {
	p := Pins{
		Chip:    DefaultChip,
		Buttons: []int{DefaultPinButton1, DefaultPinButton2},
		Relays:  []int{DefaultPinRelay1, DefaultPinRelay2},
	}
	if n < len(p.Buttons) {
		p.Buttons = p.Buttons[:n]
		p.Relays = p.Relays[:n]
	}
	return p
}

// edgeBuffer is the capacity of the edge channel.
const edgeBuffer = 64
