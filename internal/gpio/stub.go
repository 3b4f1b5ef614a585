//go:build !linux

package gpio

import (
	"errors"
	"time"

	"github.com/sweeney/smartswitch/internal/logic"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealWatcher is not available on non-Linux platforms.
type RealWatcher struct{}

// NewRealWatcher returns an error on non-Linux platforms.
func NewRealWatcher(chipName string, pins []int) (*RealWatcher, error) {
	return nil, errUnsupported
}

// Edges returns nil on non-Linux platforms.
func (w *RealWatcher) Edges() <-chan logic.Edge { return nil }

// Dropped always returns 0 on non-Linux platforms.
func (w *RealWatcher) Dropped() int64 { return 0 }

// Levels is not implemented on non-Linux platforms.
func (w *RealWatcher) Levels() ([]bool, error) { return nil, errUnsupported }

// Close is not implemented on non-Linux platforms.
func (w *RealWatcher) Close() error { return nil }

// RealRelays is not available on non-Linux platforms.
type RealRelays struct{}

// NewRealRelays returns an error on non-Linux platforms.
func NewRealRelays(chipName string, pins []int) (*RealRelays, error) {
	return nil, errUnsupported
}

// Set is not implemented on non-Linux platforms.
func (r *RealRelays) Set(ch logic.Channel, on bool) error { return errUnsupported }

// Get is not implemented on non-Linux platforms.
func (r *RealRelays) Get(ch logic.Channel) (bool, error) { return false, errUnsupported }

// Close is not implemented on non-Linux platforms.
func (r *RealRelays) Close() error { return nil }

var processStart = time.Now()

// MonotonicClock falls back to the runtime's monotonic reading.
type MonotonicClock struct{}

// Now returns the time since the process started.
func (MonotonicClock) Now() time.Duration {
	return time.Since(processStart)
}
