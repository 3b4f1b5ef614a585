package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sweeney/smartswitch/internal/logic"
)

// RequestKind identifies an inbound message.
type RequestKind string

const (
	RequestSet       RequestKind = "set"
	RequestConfig    RequestKind = "config"
	RequestInterlock RequestKind = "interlock"
	RequestBindings  RequestKind = "bindings"
)

// Request is an inbound message addressed to this device.
type Request struct {
	Kind      RequestKind
	Channel   logic.Channel
	Command   logic.CommandKind   // RequestSet
	Update    logic.Update        // RequestConfig
	Interlock logic.InterlockMode // RequestInterlock
	Targets   []string            // RequestBindings
}

// ErrUnknownTopic is returned for topics outside this device's subscriptions.
var ErrUnknownTopic = errors.New("unknown topic")

// ConfigWrite is the JSON body of a configuration write. Durations are in
// milliseconds; absent fields are left unchanged.
type ConfigWrite struct {
	OperatingMode  *logic.OperatingMode `json:"operating_mode,omitempty"`
	SwitchMode     *logic.SwitchMode    `json:"switch_mode,omitempty"`
	SwitchActions  *logic.SwitchActions `json:"switch_actions,omitempty"`
	RelayMode      *logic.RelayMode     `json:"relay_mode,omitempty"`
	LongPressMode  *logic.LongPressMode `json:"long_press_mode,omitempty"`
	InterlockMode  *logic.InterlockMode `json:"interlock_mode,omitempty"`
	MaxPauseMs     *int64               `json:"max_pause_ms,omitempty"`
	MinLongPressMs *int64               `json:"min_long_press_ms,omitempty"`
}

// maxMillis is the largest millisecond count a time.Duration can hold.
const maxMillis = math.MaxInt64 / int64(time.Millisecond)

func millis(field string, v *int64) (*time.Duration, error) {
	if v == nil {
		return nil, nil
	}
	if *v > maxMillis || *v < -maxMillis {
		return nil, fmt.Errorf("%s: %d ms out of range", field, *v)
	}
	d := time.Duration(*v) * time.Millisecond
	return &d, nil
}

// Update converts the write into a partial configuration update.
func (w ConfigWrite) Update() (logic.Update, error) {
	maxPause, err := millis("max_pause_ms", w.MaxPauseMs)
	if err != nil {
		return logic.Update{}, err
	}
	minLong, err := millis("min_long_press_ms", w.MinLongPressMs)
	if err != nil {
		return logic.Update{}, err
	}
	return logic.Update{
		OperatingMode: w.OperatingMode,
		SwitchMode:    w.SwitchMode,
		SwitchActions: w.SwitchActions,
		RelayMode:     w.RelayMode,
		LongPressMode: w.LongPressMode,
		InterlockMode: w.InterlockMode,
		MaxPause:      maxPause,
		MinLongPress:  minLong,
	}, nil
}

// ParseRequest decodes a message received on one of t's subscriptions.
func ParseRequest(t Topics, topic string, payload []byte) (Request, error) {
	if topic == t.InterlockSet() {
		mode := logic.InterlockMode(strings.ToLower(strings.TrimSpace(string(payload))))
		return Request{Kind: RequestInterlock, Interlock: mode}, nil
	}

	ch, leaf, ok := t.split(topic)
	if !ok {
		return Request{}, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}

	switch leaf {
	case "set":
		kind, err := parseRelayCommand(payload)
		if err != nil {
			return Request{}, err
		}
		return Request{Kind: RequestSet, Channel: ch, Command: kind}, nil

	case "config/set":
		var w ConfigWrite
		if err := json.Unmarshal(payload, &w); err != nil {
			return Request{}, fmt.Errorf("decode config write: %w", err)
		}
		u, err := w.Update()
		if err != nil {
			return Request{}, err
		}
		if u.Empty() {
			return Request{}, errors.New("config write sets no fields")
		}
		return Request{Kind: RequestConfig, Channel: ch, Update: u}, nil

	case "bindings":
		var targets []string
		if len(strings.TrimSpace(string(payload))) > 0 {
			if err := json.Unmarshal(payload, &targets); err != nil {
				return Request{}, fmt.Errorf("decode bindings: %w", err)
			}
		}
		return Request{Kind: RequestBindings, Channel: ch, Targets: targets}, nil
	}
	return Request{}, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
}

func parseRelayCommand(payload []byte) (logic.CommandKind, error) {
	switch strings.ToUpper(strings.TrimSpace(string(payload))) {
	case "ON":
		return logic.CommandOn, nil
	case "OFF":
		return logic.CommandOff, nil
	case "TOGGLE":
		return logic.CommandToggle, nil
	}
	return "", fmt.Errorf("unknown relay command %q", payload)
}
