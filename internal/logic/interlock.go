package logic

// Transition is an applied relay state change.
type Transition struct {
	Channel Channel
	On      bool
}

// Interlock enforces the relay constraint between the two channels of a device.
// Transitions are applied synchronously; the sibling's classifier is never
// involved, only its relay state.
type Interlock struct {
	mode    InterlockMode
	engines []*Engine
}

// NewInterlock pairs the engines of a device. A single engine never interlocks.
func NewInterlock(mode InterlockMode, engines ...*Engine) *Interlock {
	return &Interlock{mode: mode, engines: engines}
}

// Mode returns the interlock mode.
func (il *Interlock) Mode() InterlockMode {
	return il.mode
}

// SetMode changes the mode and returns the transitions needed to satisfy it.
func (il *Interlock) SetMode(mode InterlockMode) []Transition {
	il.mode = mode
	return il.Normalize()
}

// Propose applies a relay transition on ch together with whatever the
// interlock mode requires of the sibling. Transitions turning a relay off are
// ordered before those turning one on, so the relays are never both on.
func (il *Interlock) Propose(ch Channel, on bool) []Transition {
	var off, onT []Transition
	record := func(c Channel, state bool) {
		if !il.engines[c.index()].doStateChange(state) {
			return
		}
		if state {
			onT = append(onT, Transition{Channel: c, On: true})
		} else {
			off = append(off, Transition{Channel: c, On: false})
		}
	}

	if sib := il.sibling(ch); sib != nil {
		switch il.mode {
		case InterlockMutualExclusion:
			if on {
				record(ch.Sibling(), false)
			}
		case InterlockOpposite:
			record(ch.Sibling(), !on)
		}
	}
	record(ch, on)

	return append(off, onT...)
}

// Normalize brings the pair into a state the mode allows. Channel 1 wins.
func (il *Interlock) Normalize() []Transition {
	if len(il.engines) < 2 || !il.engines[0].Server() || !il.engines[1].Server() {
		return nil
	}
	switch il.mode {
	case InterlockMutualExclusion:
		if il.engines[0].On() && il.engines[1].On() {
			return il.Propose(Channel2, false)
		}
	case InterlockOpposite:
		if il.engines[0].On() == il.engines[1].On() {
			return il.Propose(Channel2, !il.engines[0].On())
		}
	}
	return nil
}

// sibling returns the sibling engine when it takes part in the interlock.
// Client mode channels have no relay and are left alone.
func (il *Interlock) sibling(ch Channel) *Engine {
	if len(il.engines) < 2 || il.mode == InterlockNone {
		return nil
	}
	sib := il.engines[ch.Sibling().index()]
	if !sib.Server() {
		return nil
	}
	return sib
}
