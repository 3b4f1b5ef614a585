package logic

import (
	"fmt"
	"time"
)

// DebounceWindow is the minimum spacing between two accepted edges of one channel.
// Edges arriving sooner are treated as contact bounce.
const DebounceWindow = 30 * time.Millisecond

// maxFiresPerTick bounds the work done by a single OnTick call.
const maxFiresPerTick = 8

type timerKind int

const (
	timerNone timerKind = iota
	timerDebounce
	timerLongPress
	timerPause
)

// Classifier turns the raw edges of one button into semantic actions.
// Not safe for concurrent use.
type Classifier struct {
	cfg ChannelConfiguration

	phase  ClassifierState
	clicks int

	// Debounced level and the last raw level seen.
	level bool
	raw   bool

	accepted bool
	lastEdge time.Duration // last accepted edge
	seen     bool
	lastSeen time.Duration // last raw edge

	longAt  time.Duration
	pauseAt time.Duration

	spurious  int
	anomalies int
}

// NewClassifier creates an idle classifier for the given configuration.
func NewClassifier(cfg ChannelConfiguration) *Classifier {
	return &Classifier{cfg: cfg, phase: StateIdle}
}

// Configure replaces the configuration and abandons any gesture in progress.
// The debounced button level is kept. A long press still held is closed with
// a LongPressRelease at at, so whoever saw the LongPress also sees it end.
func (c *Classifier) Configure(cfg ChannelConfiguration, at time.Duration) []Action {
	var out []Action
	if c.phase == StateLongPressActive {
		out = append(out, Action{Type: ActionLongPressRelease, At: at})
	}
	c.cfg = cfg
	c.Reset()
	return out
}

// Reset returns the classifier to Idle.
func (c *Classifier) Reset() {
	c.phase = StateIdle
	c.clicks = 0
}

// State returns the current classifier state.
func (c *Classifier) State() ClassifierState {
	if c.raw != c.level {
		return StateDebouncing
	}
	return c.phase
}

// Pressed returns the debounced button level.
func (c *Classifier) Pressed() bool {
	return c.level
}

// Clicks returns the number of clicks counted in the current gesture.
func (c *Classifier) Clicks() int {
	return c.clicks
}

// Spurious returns the number of edges discarded as bounce or duplicates.
func (c *Classifier) Spurious() int {
	return c.spurious
}

// Anomalies returns the number of edges discarded for going back in time.
func (c *Classifier) Anomalies() int {
	return c.anomalies
}

// NextDeadline returns the instant at which OnTick will next have work to do.
func (c *Classifier) NextDeadline() (time.Duration, bool) {
	kind, at := c.next()
	return at, kind != timerNone
}

func (c *Classifier) next() (timerKind, time.Duration) {
	kind, at := timerNone, time.Duration(0)
	consider := func(k timerKind, t time.Duration) {
		if kind == timerNone || t < at {
			kind, at = k, t
		}
	}
	if c.raw != c.level {
		consider(timerDebounce, c.lastEdge+DebounceWindow)
	}
	switch c.phase {
	case StateLongPressArmed:
		consider(timerLongPress, c.longAt)
	case StatePressedWaiting:
		// A press exactly at the pause deadline is still in time, so the
		// gesture closes on the first instant after it.
		consider(timerPause, c.pauseAt+1)
	}
	return kind, at
}

// OnEdge processes a raw edge. Timers due at or before now fire first, so the
// returned actions are in time order. An edge older than the previous one is
// discarded with ErrTimingAnomaly.
func (c *Classifier) OnEdge(pressed bool, now time.Duration) ([]Action, error) {
	if c.seen && now < c.lastSeen {
		c.anomalies++
		return nil, fmt.Errorf("%w: edge at %v precedes %v", ErrTimingAnomaly, now, c.lastSeen)
	}
	c.seen = true
	c.lastSeen = now

	out := c.OnTick(now)

	c.raw = pressed
	if pressed == c.level {
		c.spurious++
		return out, nil
	}
	if c.accepted && now-c.lastEdge < DebounceWindow {
		// Reconciled when the window closes if the level is still different.
		c.spurious++
		return out, nil
	}
	return append(out, c.accept(pressed, now)...), nil
}

// OnTick fires every timer due at or before now.
func (c *Classifier) OnTick(now time.Duration) []Action {
	var out []Action
	for i := 0; i < maxFiresPerTick; i++ {
		kind, at := c.next()
		if kind == timerNone || at > now {
			break
		}
		switch kind {
		case timerDebounce:
			out = append(out, c.accept(c.raw, at)...)
		case timerLongPress:
			c.phase = StateLongPressActive
			c.clicks = 0
			out = append(out, Action{Type: ActionLongPress, At: at})
		case timerPause:
			out = append(out, Action{Type: clickAction(c.clicks), At: c.pauseAt})
			c.Reset()
		}
	}
	return out
}

func (c *Classifier) accept(pressed bool, at time.Duration) []Action {
	c.level = pressed
	c.raw = pressed
	c.accepted = true
	c.lastEdge = at

	if c.cfg.SwitchMode != SwitchMultifunction {
		if pressed {
			return []Action{{Type: ActionPress, At: at}}
		}
		return []Action{{Type: ActionRelease, At: at}}
	}

	if pressed {
		switch c.phase {
		case StateIdle:
			c.clicks = 1
			c.arm(at)
			return []Action{{Type: ActionPress, At: at}}
		case StatePressedWaiting:
			c.clicks++
			c.arm(at)
		}
		return nil
	}

	switch c.phase {
	case StateLongPressArmed:
		c.phase = StatePressedWaiting
		c.pauseAt = at + c.cfg.MaxPause
	case StateLongPressActive:
		c.Reset()
		return []Action{{Type: ActionLongPressRelease, At: at}}
	}
	return nil
}

func (c *Classifier) arm(at time.Duration) {
	c.phase = StateLongPressArmed
	c.longAt = at + c.cfg.MinLongPress
}

func clickAction(clicks int) ActionType {
	switch {
	case clicks <= 1:
		return ActionSinglePress
	case clicks == 2:
		return ActionDoublePress
	}
	return ActionTriplePress
}
