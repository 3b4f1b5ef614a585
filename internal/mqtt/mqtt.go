// Package mqtt provides MQTT publishing and subscriptions with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/smartswitch/internal/logic"
)

// Publisher publishes switch reports to MQTT. Every method returns an error
// if publishing fails; callers log it and carry on.
type Publisher interface {
	// PublishAction reports a classified action of an unbound channel.
	PublishAction(ch logic.Channel, action logic.ActionType, ts time.Time) error

	// PublishState reports the relay state of a channel (retained).
	PublishState(ch logic.Channel, on bool, ts time.Time) error

	// PublishCommand sends a command to the devices bound to a channel.
	PublishCommand(ch logic.Channel, cmd logic.Command, targets []string, ts time.Time) error

	// PublishBothPressed reports that both buttons went down together.
	PublishBothPressed(ts time.Time) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Requests delivers network commands, configuration writes and binding updates.
	Requests() <-chan Request

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool
}

// ActionPayload is published on <base>/button_<n>/action.
type ActionPayload struct {
	Action    string `json:"action"`
	Value     *int   `json:"value,omitempty"`
	Timestamp string `json:"timestamp"`
}

// StatePayload is published on <base>/button_<n>/state.
type StatePayload struct {
	State     string `json:"state"`
	Timestamp string `json:"timestamp"`
}

// CommandPayload is published on <base>/button_<n>/command.
type CommandPayload struct {
	ID        string   `json:"id"`
	Command   string   `json:"command"`
	Action    string   `json:"action,omitempty"`
	Value     *int     `json:"value,omitempty"`
	Targets   []string `json:"targets"`
	Timestamp string   `json:"timestamp"`
}

// BothPressedPayload is published on <base>/both_pressed.
type BothPressedPayload struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
}

func formatTime(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339Nano)
}

func multistate(a logic.ActionType) *int {
	v := a.MultistateValue()
	if v < 0 {
		return nil
	}
	return &v
}

// StateString renders a relay state.
func StateString(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

// FormatActionPayload creates the JSON payload for an action report.
func FormatActionPayload(action logic.ActionType, ts time.Time) ([]byte, error) {
	return json.Marshal(ActionPayload{
		Action:    string(action),
		Value:     multistate(action),
		Timestamp: formatTime(ts),
	})
}

// FormatStatePayload creates the JSON payload for a relay state report.
func FormatStatePayload(on bool, ts time.Time) ([]byte, error) {
	return json.Marshal(StatePayload{State: StateString(on), Timestamp: formatTime(ts)})
}

// FormatCommandPayload creates the JSON payload for a bound command.
func FormatCommandPayload(id string, cmd logic.Command, targets []string, ts time.Time) ([]byte, error) {
	p := CommandPayload{
		ID:        id,
		Command:   string(cmd.Kind),
		Targets:   targets,
		Timestamp: formatTime(ts),
	}
	if p.Targets == nil {
		p.Targets = []string{}
	}
	if cmd.Kind == logic.CommandAction {
		p.Action = string(cmd.Action)
		p.Value = multistate(cmd.Action)
	}
	return json.Marshal(p)
}

// FormatBothPressedPayload creates the JSON payload for the both-buttons event.
func FormatBothPressedPayload(ts time.Time) ([]byte, error) {
	return json.Marshal(BothPressedPayload{Event: "both_pressed", Timestamp: formatTime(ts)})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	})
}
