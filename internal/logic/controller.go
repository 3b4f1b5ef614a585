package logic

import (
	"fmt"
	"time"
)

// Bindings tells the controller which devices a channel is bound to.
type Bindings interface {
	Targets(ch Channel) []string
}

type noBindings struct{}

func (noBindings) Targets(Channel) []string { return nil }

// ChannelStatus is a point-in-time view of one channel.
type ChannelStatus struct {
	Channel   Channel
	Relay     bool
	State     ClassifierState
	Pressed   bool
	Counts    ActionCounts
	Spurious  int
	Anomalies int
	Config    ChannelConfiguration
}

type channel struct {
	classifier *Classifier
	engine     *Engine
	counts     ActionCounts

	pressAt  time.Duration
	hasPress bool
}

// Controller owns one classifier and one engine per channel and wires them
// through the interlock. Every call returns the effects the collaborators
// must carry out, in order. Not safe for concurrent use.
type Controller struct {
	cfg       DeviceConfiguration
	channels  []*channel
	interlock *Interlock
	timers    *timerQueue
	bindings  Bindings
}

// NewController validates cfg and creates a controller with the relays off,
// as far as the interlock mode allows. bindings may be nil.
func NewController(cfg DeviceConfiguration, bindings Bindings) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if bindings == nil {
		bindings = noBindings{}
	}
	c := &Controller{
		cfg:      copyDevice(cfg),
		timers:   newTimerQueue(),
		bindings: bindings,
	}
	var engines []*Engine
	for _, cc := range cfg.Channels {
		ch := &channel{
			classifier: NewClassifier(cc),
			engine:     NewEngine(cc),
		}
		c.channels = append(c.channels, ch)
		engines = append(engines, ch.engine)
	}
	c.interlock = NewInterlock(cfg.Channels[0].InterlockMode, engines...)
	c.interlock.Normalize()
	return c, nil
}

// Sync returns a SetRelay effect for every server channel so the outputs
// match the controller after startup.
func (c *Controller) Sync() []Effect {
	var effects []Effect
	for i, st := range c.channels {
		if st.engine.Server() {
			effects = append(effects, Effect{Type: EffectSetRelay, Channel: Channel(i + 1), On: st.engine.On()})
		}
	}
	return effects
}

// Channels returns the number of channels.
func (c *Controller) Channels() int {
	return len(c.channels)
}

func (c *Controller) channel(ch Channel) (*channel, error) {
	if ch < Channel1 || int(ch) > len(c.channels) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownChannel, int(ch))
	}
	return c.channels[ch.index()], nil
}

// Edge ingests one raw edge. Timers due before the edge fire first.
func (c *Controller) Edge(e Edge) ([]Effect, error) {
	st, err := c.channel(e.Channel)
	if err != nil {
		return nil, err
	}
	effects := c.Tick(e.At)

	actions, err := st.classifier.OnEdge(e.Pressed, e.At)
	c.reschedule(e.Channel)
	if err != nil {
		return effects, fmt.Errorf("%s: %w", e.Channel, err)
	}
	return append(effects, c.dispatch(e.Channel, actions)...), nil
}

// Tick advances the logical clock to now and fires every due deadline in
// time order across channels.
func (c *Controller) Tick(now time.Duration) []Effect {
	var effects []Effect
	for i := 0; i < maxFiresPerTick*MaxChannels; i++ {
		ch, at, ok := c.timers.peek()
		if !ok || at > now {
			break
		}
		actions := c.channels[ch.index()].classifier.OnTick(at)
		c.reschedule(ch)
		effects = append(effects, c.dispatch(ch, actions)...)
	}
	return effects
}

// NextDeadline returns the earliest pending deadline of any channel.
func (c *Controller) NextDeadline() (time.Duration, bool) {
	_, at, ok := c.timers.peek()
	return at, ok
}

// Command applies an on/off/toggle command received from the network.
func (c *Controller) Command(ch Channel, kind CommandKind, at time.Duration) ([]Effect, error) {
	st, err := c.channel(ch)
	if err != nil {
		return nil, err
	}
	if !st.engine.Server() {
		return nil, fmt.Errorf("%s: %w", ch, ErrClientMode)
	}
	var on bool
	switch kind {
	case CommandOn:
		on = true
	case CommandOff:
		on = false
	case CommandToggle:
		on = !st.engine.On()
	default:
		return nil, fmt.Errorf("%s: unsupported relay command %q", ch, kind)
	}
	return c.transition(ch, on, at), nil
}

// RestoreRelay sets a relay state restored at startup. Only SetRelay effects
// are produced; nothing is reported.
func (c *Controller) RestoreRelay(ch Channel, on bool) ([]Effect, error) {
	st, err := c.channel(ch)
	if err != nil {
		return nil, err
	}
	if !st.engine.Server() {
		return nil, nil
	}
	changed := st.engine.doStateChange(on)
	var effects []Effect
	touched := false
	for _, t := range c.interlock.Normalize() {
		touched = touched || t.Channel == ch
		effects = append(effects, Effect{Type: EffectSetRelay, Channel: t.Channel, On: t.On})
	}
	if changed && !touched {
		effects = append(effects, Effect{Type: EffectSetRelay, Channel: ch, On: st.engine.On()})
	}
	return effects, nil
}

// Configure applies a partial configuration write to ch at instant at. A
// rejected write leaves the configuration untouched and returns an error
// matching ErrConflict. The gesture in progress on ch is abandoned; a held
// long press is released through the outgoing configuration first.
func (c *Controller) Configure(ch Channel, u Update, at time.Duration) ([]Effect, error) {
	st, err := c.channel(ch)
	if err != nil {
		return nil, err
	}
	var sibling *ChannelConfiguration
	if len(c.channels) == MaxChannels {
		sc := c.cfg.Channels[ch.Sibling().index()]
		sibling = &sc
	}
	next, err := u.Apply(ch, c.cfg.Channels[ch.index()], sibling)
	if err != nil {
		return nil, err
	}
	c.cfg.Channels[ch.index()] = next
	effects := c.dispatch(ch, st.classifier.Configure(next, at))
	st.engine.Configure(next)
	c.reschedule(ch)
	return append(effects, c.applyTransitions(c.interlock.Normalize(), at)...), nil
}

// SetInterlock changes the interlock mode of both channels at once. Gestures
// in progress are not affected.
func (c *Controller) SetInterlock(mode InterlockMode, at time.Duration) ([]Effect, error) {
	next := copyDevice(c.cfg)
	for i := range next.Channels {
		next.Channels[i].InterlockMode = mode
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	c.cfg = next
	for i, st := range c.channels {
		st.engine.Configure(next.Channels[i])
	}
	return c.applyTransitions(c.interlock.SetMode(mode), at), nil
}

// SetBothPressed enables or disables the both-buttons event.
func (c *Controller) SetBothPressed(enabled bool) {
	c.cfg.BothPressed = enabled
}

// Configuration returns a copy of the active configuration.
func (c *Controller) Configuration() DeviceConfiguration {
	return copyDevice(c.cfg)
}

// Relay returns the relay state of ch.
func (c *Controller) Relay(ch Channel) bool {
	st, err := c.channel(ch)
	if err != nil {
		return false
	}
	return st.engine.On()
}

// Status returns a view of every channel.
func (c *Controller) Status() []ChannelStatus {
	out := make([]ChannelStatus, 0, len(c.channels))
	for i, st := range c.channels {
		out = append(out, ChannelStatus{
			Channel:   Channel(i + 1),
			Relay:     st.engine.On(),
			State:     st.classifier.State(),
			Pressed:   st.classifier.Pressed(),
			Counts:    st.counts,
			Spurious:  st.classifier.Spurious(),
			Anomalies: st.classifier.Anomalies(),
			Config:    c.cfg.Channels[i],
		})
	}
	return out
}

func (c *Controller) reschedule(ch Channel) {
	at, ok := c.channels[ch.index()].classifier.NextDeadline()
	c.timers.set(ch, at, ok)
}

// dispatch runs actions of ch through its engine and the interlock.
func (c *Controller) dispatch(ch Channel, actions []Action) []Effect {
	var effects []Effect
	st := c.channels[ch.index()]
	for _, a := range actions {
		st.counts.add(a.Type)
		if a.Type == ActionPress {
			effects = append(effects, c.checkBothPressed(ch, a.At)...)
		}

		out := st.engine.OnAction(a.Type)
		if out.SetRelay {
			effects = append(effects, c.transition(ch, out.RelayOn, a.At)...)
		}

		targets := c.bindings.Targets(ch)
		if out.Report != "" {
			if len(targets) == 0 {
				effects = append(effects, Effect{Type: EffectReportAction, Channel: ch, At: a.At, Action: out.Report})
			} else {
				effects = append(effects, Effect{
					Type:    EffectSendCommand,
					Channel: ch,
					At:      a.At,
					Command: Command{Kind: CommandAction, Action: out.Report},
					Targets: targets,
				})
			}
		}
		for _, cmd := range out.Commands {
			effects = append(effects, Effect{Type: EffectSendCommand, Channel: ch, At: a.At, Command: cmd, Targets: targets})
		}
	}
	return effects
}

func (c *Controller) transition(ch Channel, on bool, at time.Duration) []Effect {
	return c.applyTransitions(c.interlock.Propose(ch, on), at)
}

func (c *Controller) applyTransitions(ts []Transition, at time.Duration) []Effect {
	var effects []Effect
	for _, t := range ts {
		effects = append(effects,
			Effect{Type: EffectSetRelay, Channel: t.Channel, At: at, On: t.On},
			Effect{Type: EffectReportState, Channel: t.Channel, At: at, On: t.On},
		)
	}
	return effects
}

// checkBothPressed emits BothPressed once when both channels classify a Press
// within one debounce window.
func (c *Controller) checkBothPressed(ch Channel, at time.Duration) []Effect {
	st := c.channels[ch.index()]
	st.pressAt = at
	st.hasPress = true
	if len(c.channels) < MaxChannels || !c.cfg.BothPressed {
		return nil
	}
	sib := c.channels[ch.Sibling().index()]
	if !sib.hasPress {
		return nil
	}
	gap := at - sib.pressAt
	if gap < 0 {
		gap = -gap
	}
	if gap > DebounceWindow {
		return nil
	}
	st.hasPress = false
	sib.hasPress = false
	return []Effect{{Type: EffectBothPressed, At: at}}
}

func copyDevice(d DeviceConfiguration) DeviceConfiguration {
	out := d
	out.Channels = append([]ChannelConfiguration(nil), d.Channels...)
	return out
}
