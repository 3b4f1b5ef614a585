package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/sweeney/smartswitch/internal/logic"
)

// FakeWatcher is a test double that delivers scripted edges.
type FakeWatcher struct {
	mu     sync.Mutex
	edges  chan logic.Edge
	levels []bool

	// Closed tracks if Close was called
	Closed bool

	// LevelsError, if set, will be returned by Levels()
	LevelsError error
}

// NewFakeWatcher creates a FakeWatcher for n channels, all released.
func NewFakeWatcher(n int) *FakeWatcher {
	return &FakeWatcher{
		edges:  make(chan logic.Edge, edgeBuffer),
		levels: make([]bool, n),
	}
}

// Emit queues an edge and updates the reported level of its channel.
// Blocks if the buffer is full.
func (f *FakeWatcher) Emit(e logic.Edge) {
	f.mu.Lock()
	if i := int(e.Channel) - 1; i >= 0 && i < len(f.levels) {
		f.levels[i] = e.Pressed
	}
	f.mu.Unlock()
	f.edges <- e
}

// Edges returns the edge channel.
func (f *FakeWatcher) Edges() <-chan logic.Edge {
	return f.edges
}

// Levels returns the levels of the last emitted edges.
func (f *FakeWatcher) Levels() ([]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LevelsError != nil {
		return nil, f.LevelsError
	}
	return append([]bool(nil), f.levels...), nil
}

// Close marks the watcher as closed and closes the edge channel.
func (f *FakeWatcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.Closed {
		f.Closed = true
		close(f.edges)
	}
	return nil
}

// RelayCall records one Set call.
type RelayCall struct {
	Channel logic.Channel
	On      bool
}

// FakeRelays is a test double that records relay writes.
type FakeRelays struct {
	mu     sync.Mutex
	states []bool
	calls  []RelayCall

	// SetError, if set, will be returned by Set()
	SetError error

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeRelays creates FakeRelays for n channels, all off.
func NewFakeRelays(n int) *FakeRelays {
	return &FakeRelays{states: make([]bool, n)}
}

func (f *FakeRelays) index(ch logic.Channel) (int, error) {
	i := int(ch) - 1
	if i < 0 || i >= len(f.states) {
		return 0, fmt.Errorf("%w: %d", logic.ErrUnknownChannel, int(ch))
	}
	return i, nil
}

// Set records the write and updates the relay state.
func (f *FakeRelays) Set(ch logic.Channel, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	i, err := f.index(ch)
	if err != nil {
		return err
	}
	f.states[i] = on
	f.calls = append(f.calls, RelayCall{Channel: ch, On: on})
	return nil
}

// Get returns the relay state of ch.
func (f *FakeRelays) Get(ch logic.Channel) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, err := f.index(ch)
	if err != nil {
		return false, err
	}
	return f.states[i], nil
}

// Calls returns a copy of every recorded Set call.
func (f *FakeRelays) Calls() []RelayCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RelayCall(nil), f.calls...)
}

// Close marks the relays as closed.
func (f *FakeRelays) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// FakeClock is a manually advanced clock.
type FakeClock struct {
	mu  sync.Mutex
	now time.Duration
}

// Now returns the current fake instant.
func (c *FakeClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to at.
func (c *FakeClock) Set(at time.Duration) {
	c.mu.Lock()
	c.now = at
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}
