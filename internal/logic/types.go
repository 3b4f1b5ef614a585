// Package logic contains the pure behaviour core of the smart switch.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injected as a time.Duration offset on one monotonic clock.
package logic

import (
	"fmt"
	"time"
)

// Channel identifies one button and its relay. Channels are numbered from 1.
type Channel int

const (
	Channel1 Channel = 1
	Channel2 Channel = 2
)

// MaxChannels is the number of channels a device can carry.
const MaxChannels = 2

func (c Channel) String() string {
	return fmt.Sprintf("button_%d", int(c))
}

// Sibling returns the other channel of the interlock pair.
func (c Channel) Sibling() Channel {
	if c == Channel1 {
		return Channel2
	}
	return Channel1
}

func (c Channel) index() int {
	return int(c) - 1
}

// Edge is a raw button transition reported by the hardware.
type Edge struct {
	Channel Channel
	Pressed bool
	At      time.Duration
}

// ActionType is a classified button outcome.
type ActionType string

const (
	ActionPress            ActionType = "press"
	ActionRelease          ActionType = "release"
	ActionSinglePress      ActionType = "single"
	ActionDoublePress      ActionType = "double"
	ActionTriplePress      ActionType = "triple"
	ActionLongPress        ActionType = "hold"
	ActionLongPressRelease ActionType = "release_hold"
)

// Terminal reports whether the action completes a gesture.
// Press and Release are intermediate.
func (a ActionType) Terminal() bool {
	switch a {
	case ActionSinglePress, ActionDoublePress, ActionTriplePress, ActionLongPress, ActionLongPressRelease:
		return true
	}
	return false
}

// MultistateValue is the present value reported for a terminal action.
// Returns -1 for intermediate actions.
func (a ActionType) MultistateValue() int {
	switch a {
	case ActionLongPressRelease:
		return 0
	case ActionSinglePress:
		return 1
	case ActionDoublePress:
		return 2
	case ActionTriplePress:
		return 3
	case ActionLongPress:
		return 255
	}
	return -1
}

// Action is a classified action together with the instant that produced it.
type Action struct {
	Type ActionType
	At   time.Duration
}

// ClassifierState is the gesture phase of a ClickClassifier.
type ClassifierState string

const (
	StateIdle            ClassifierState = "IDLE"
	StateDebouncing      ClassifierState = "DEBOUNCING"
	StatePressedWaiting  ClassifierState = "PRESSED_WAITING"
	StateLongPressArmed  ClassifierState = "LONG_PRESS_ARMED"
	StateLongPressActive ClassifierState = "LONG_PRESS_ACTIVE"
)

// CommandKind is a command sent to bound devices.
type CommandKind string

const (
	CommandOn            CommandKind = "on"
	CommandOff           CommandKind = "off"
	CommandToggle        CommandKind = "toggle"
	CommandLevelMoveUp   CommandKind = "level_move_up"
	CommandLevelMoveDown CommandKind = "level_move_down"
	CommandLevelStop     CommandKind = "level_stop"
	// CommandAction delivers a classified action directly to bound devices.
	CommandAction CommandKind = "action"
)

// Command is a network command intent. Action is set only for CommandAction.
type Command struct {
	Kind   CommandKind
	Action ActionType
}

// EffectType identifies what an Effect asks the collaborators to do.
type EffectType string

const (
	EffectSetRelay     EffectType = "SET_RELAY"
	EffectReportState  EffectType = "REPORT_STATE"
	EffectReportAction EffectType = "REPORT_ACTION"
	EffectSendCommand  EffectType = "SEND_COMMAND"
	EffectBothPressed  EffectType = "BOTH_PRESSED"
)

// Effect is an output produced by the controller. The daemon executes effects
// in order; the core itself never performs I/O.
type Effect struct {
	Type    EffectType
	Channel Channel
	At      time.Duration

	// SetRelay, ReportState
	On bool
	// ReportAction
	Action ActionType
	// SendCommand
	Command Command
	Targets []string
}

func (e Effect) String() string {
	switch e.Type {
	case EffectSetRelay, EffectReportState:
		return fmt.Sprintf("%s %s on=%v", e.Type, e.Channel, e.On)
	case EffectReportAction:
		return fmt.Sprintf("%s %s %s", e.Type, e.Channel, e.Action)
	case EffectSendCommand:
		if e.Command.Kind == CommandAction {
			return fmt.Sprintf("%s %s %s(%s) targets=%v", e.Type, e.Channel, e.Command.Kind, e.Command.Action, e.Targets)
		}
		return fmt.Sprintf("%s %s %s targets=%v", e.Type, e.Channel, e.Command.Kind, e.Targets)
	}
	return string(e.Type)
}

// ActionCounts tracks the number of terminal and raw actions since startup.
type ActionCounts struct {
	Press       int
	Release     int
	Single      int
	Double      int
	Triple      int
	Long        int
	LongRelease int
}

func (c *ActionCounts) add(a ActionType) {
	switch a {
	case ActionPress:
		c.Press++
	case ActionRelease:
		c.Release++
	case ActionSinglePress:
		c.Single++
	case ActionDoublePress:
		c.Double++
	case ActionTriplePress:
		c.Triple++
	case ActionLongPress:
		c.Long++
	case ActionLongPressRelease:
		c.LongRelease++
	}
}
