package logic

// Outcome is what an Engine wants done in response to one action.
type Outcome struct {
	// SetRelay requests a relay transition to RelayOn.
	SetRelay bool
	RelayOn  bool
	// Report is the action to report to the network, empty for none.
	Report   ActionType
	Commands []Command
}

// Engine maps classified actions to relay transitions and network intents.
// It owns the relay state of its channel.
type Engine struct {
	cfg ChannelConfiguration
	on  bool
}

// NewEngine creates an engine with the relay off.
func NewEngine(cfg ChannelConfiguration) *Engine {
	return &Engine{cfg: cfg}
}

// Configure replaces the configuration. The relay state is kept.
func (e *Engine) Configure(cfg ChannelConfiguration) {
	e.cfg = cfg
}

// On returns the relay state.
func (e *Engine) On() bool {
	return e.on
}

// Server reports whether the channel drives a local relay.
func (e *Engine) Server() bool {
	return e.cfg.OperatingMode == OperatingServer
}

// doStateChange is the only place the relay state changes.
// Returns false when the relay already was in the requested state.
func (e *Engine) doStateChange(on bool) bool {
	if e.on == on {
		return false
	}
	e.on = on
	return true
}

// OnAction maps one action according to the switch, relay and long press modes.
func (e *Engine) OnAction(a ActionType) Outcome {
	var out Outcome

	switch e.cfg.SwitchMode {
	case SwitchToggle:
		if a == ActionPress {
			e.relayIntent(&out, CommandToggle)
		}

	case SwitchMomentary:
		switch a {
		case ActionPress:
			e.relayIntent(&out, momentaryCommand(e.cfg.SwitchActions, true))
		case ActionRelease:
			e.relayIntent(&out, momentaryCommand(e.cfg.SwitchActions, false))
		}

	case SwitchMultifunction:
		if a.Terminal() {
			out.Report = a
		}
		if relayModeMatches(e.cfg.RelayMode, a) {
			e.relayIntent(&out, CommandToggle)
		}
		switch a {
		case ActionLongPress:
			switch e.cfg.LongPressMode {
			case LongPressLevelCtrlUp:
				out.Commands = append(out.Commands, Command{Kind: CommandLevelMoveUp})
			case LongPressLevelCtrlDown:
				out.Commands = append(out.Commands, Command{Kind: CommandLevelMoveDown})
			}
		case ActionLongPressRelease:
			if e.cfg.LongPressMode != LongPressNone {
				out.Commands = append(out.Commands, Command{Kind: CommandLevelStop})
			}
		}
	}

	return out
}

// relayIntent turns an on/off/toggle intent into a local transition in server
// mode or a command to bound devices in client mode.
func (e *Engine) relayIntent(out *Outcome, kind CommandKind) {
	if !e.Server() {
		out.Commands = append(out.Commands, Command{Kind: kind})
		return
	}
	out.SetRelay = true
	switch kind {
	case CommandOn:
		out.RelayOn = true
	case CommandOff:
		out.RelayOn = false
	default:
		out.RelayOn = !e.on
	}
}

func momentaryCommand(actions SwitchActions, pressed bool) CommandKind {
	switch actions {
	case ActionsOnOff:
		if pressed {
			return CommandOn
		}
		return CommandOff
	case ActionsOffOn:
		if pressed {
			return CommandOff
		}
		return CommandOn
	}
	return CommandToggle
}

func relayModeMatches(mode RelayMode, a ActionType) bool {
	switch mode {
	case RelayFront:
		return a == ActionPress
	case RelaySingle:
		return a == ActionSinglePress
	case RelayDouble:
		return a == ActionDoublePress
	case RelayTriple:
		return a == ActionTriplePress
	case RelayLong:
		return a == ActionLongPress
	}
	return false
}
