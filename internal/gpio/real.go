//go:build linux

package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/atomic"
	"golang.org/x/sys/unix"

	"github.com/sweeney/smartswitch/internal/logic"
)

// RealWatcher watches button lines on the Linux GPIO character device.
// Buttons pull the line to ground, so lines are requested active-low with a
// pull-up and a rising logical edge is a press.
type RealWatcher struct {
	chip  *gpiocdev.Chip
	lines []*gpiocdev.Line
	edges chan logic.Edge

	mu      sync.Mutex
	closed  bool
	dropped atomic.Int64
}

// NewRealWatcher requests one input line per button pin.
func NewRealWatcher(chipName string, pins []int) (*RealWatcher, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	w := &RealWatcher{
		chip:  chip,
		edges: make(chan logic.Edge, edgeBuffer),
	}
	for i, pin := range pins {
		ch := logic.Channel(i + 1)
		line, err := chip.RequestLine(pin,
			gpiocdev.AsInput,
			gpiocdev.AsActiveLow,
			gpiocdev.WithPullUp,
			gpiocdev.WithBothEdges,
			gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
				w.deliver(logic.Edge{
					Channel: ch,
					Pressed: evt.Type == gpiocdev.LineEventRisingEdge,
					At:      evt.Timestamp,
				})
			}))
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("request button pin %d: %w", pin, err)
		}
		w.lines = append(w.lines, line)
	}
	return w, nil
}

func (w *RealWatcher) deliver(e logic.Edge) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case w.edges <- e:
	default:
		w.dropped.Inc()
	}
}

// Edges returns the edge channel.
func (w *RealWatcher) Edges() <-chan logic.Edge {
	return w.edges
}

// Dropped returns the number of edges lost because the loop fell behind.
func (w *RealWatcher) Dropped() int64 {
	return w.dropped.Load()
}

// Levels reads the logical level of every button line.
func (w *RealWatcher) Levels() ([]bool, error) {
	out := make([]bool, 0, len(w.lines))
	for i, l := range w.lines {
		v, err := l.Value()
		if err != nil {
			return nil, fmt.Errorf("read button %d: %w", i+1, err)
		}
		out = append(out, v == 1)
	}
	return out, nil
}

// Close releases the lines and closes the edge channel.
// Lines are reconfigured to input with pull-down (Pi boot defaults) first.
func (w *RealWatcher) Close() error {
	var errs []error
	for i, l := range w.lines {
		if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure button %d: %w", i+1, err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close button %d: %w", i+1, err))
		}
	}
	if w.chip != nil {
		if err := w.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.edges)
	}
	w.mu.Unlock()

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealRelays drives relay output lines.
type RealRelays struct {
	chip  *gpiocdev.Chip
	lines []*gpiocdev.Line
}

// NewRealRelays requests one output line per relay pin, initially off.
func NewRealRelays(chipName string, pins []int) (*RealRelays, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	r := &RealRelays{chip: chip}
	for _, pin := range pins {
		line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request relay pin %d: %w", pin, err)
		}
		r.lines = append(r.lines, line)
	}
	return r, nil
}

func (r *RealRelays) line(ch logic.Channel) (*gpiocdev.Line, error) {
	if ch < logic.Channel1 || int(ch) > len(r.lines) {
		return nil, fmt.Errorf("%w: %d", logic.ErrUnknownChannel, int(ch))
	}
	return r.lines[int(ch)-1], nil
}

// Set drives the relay of ch.
func (r *RealRelays) Set(ch logic.Channel, on bool) error {
	l, err := r.line(ch)
	if err != nil {
		return err
	}
	v := 0
	if on {
		v = 1
	}
	if err := l.SetValue(v); err != nil {
		return fmt.Errorf("set relay %s: %w", ch, err)
	}
	return nil
}

// Get reads back the relay output of ch.
func (r *RealRelays) Get(ch logic.Channel) (bool, error) {
	l, err := r.line(ch)
	if err != nil {
		return false, err
	}
	v, err := l.Value()
	if err != nil {
		return false, fmt.Errorf("read relay %s: %w", ch, err)
	}
	return v == 1, nil
}

// Close switches the relays off and releases the lines.
func (r *RealRelays) Close() error {
	var errs []error
	for i, l := range r.lines {
		if err := l.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("release relay %d: %w", i+1, err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close relay %d: %w", i+1, err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// MonotonicClock reads CLOCK_MONOTONIC, the clock the kernel stamps line
// events with.
type MonotonicClock struct{}

// Now returns the time since boot.
func (MonotonicClock) Now() time.Duration {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}
	return time.Duration(ts.Nano())
}
