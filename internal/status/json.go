package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/smartswitch/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event          string        `json:"event,omitempty"`
	Reason         string        `json:"reason,omitempty"`
	Device         string        `json:"device"`
	Ready          bool          `json:"ready"`
	UptimeSeconds  int64         `json:"uptime_seconds"`
	StartTime      string        `json:"start_time"`
	Timestamp      string        `json:"timestamp"`
	MQTT           MQTTStatus    `json:"mqtt"`
	Channels       []ChannelJSON `json:"channels"`
	BothPressed    bool          `json:"both_pressed"`
	RejectedWrites int           `json:"rejected_writes"`
	DroppedEdges   int64         `json:"dropped_edges"`
	Network        *NetworkJSON  `json:"network,omitempty"`
	Config         ConfigJSON    `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ChannelJSON is the JSON representation of one channel.
type ChannelJSON struct {
	Channel   int               `json:"channel"`
	Name      string            `json:"name"`
	Relay     string            `json:"relay"`
	State     string            `json:"state"`
	Pressed   bool              `json:"pressed"`
	BoundTo   []string          `json:"bound_to"`
	Counts    CountsJSON        `json:"action_counts"`
	Spurious  int               `json:"spurious_edges"`
	Anomalies int               `json:"timing_anomalies"`
	Config    ChannelConfigJSON `json:"config"`
}

// CountsJSON is the JSON representation of action counts.
type CountsJSON struct {
	Press       int `json:"press"`
	Release     int `json:"release"`
	Single      int `json:"single"`
	Double      int `json:"double"`
	Triple      int `json:"triple"`
	Hold        int `json:"hold"`
	ReleaseHold int `json:"release_hold"`
}

// ChannelConfigJSON is the JSON representation of a channel configuration.
type ChannelConfigJSON struct {
	OperatingMode  string `json:"operating_mode"`
	SwitchMode     string `json:"switch_mode"`
	SwitchActions  string `json:"switch_actions"`
	RelayMode      string `json:"relay_mode"`
	LongPressMode  string `json:"long_press_mode"`
	InterlockMode  string `json:"interlock_mode"`
	MaxPauseMs     int64  `json:"max_pause_ms"`
	MinLongPressMs int64  `json:"min_long_press_ms"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Channels    int    `json:"channels"`
	TickMs      int64  `json:"tick_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	StatePath   string `json:"state_path"`
}

func relayString(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

// ChannelConfig converts a channel configuration for display.
func ChannelConfig(c logic.ChannelConfiguration) ChannelConfigJSON {
	return ChannelConfigJSON{
		OperatingMode:  string(c.OperatingMode),
		SwitchMode:     string(c.SwitchMode),
		SwitchActions:  string(c.SwitchActions),
		RelayMode:      string(c.RelayMode),
		LongPressMode:  string(c.LongPressMode),
		InterlockMode:  string(c.InterlockMode),
		MaxPauseMs:     c.MaxPause.Milliseconds(),
		MinLongPressMs: c.MinLongPress.Milliseconds(),
	}
}

func buildChannel(c logic.ChannelStatus, bound []string) ChannelJSON {
	if bound == nil {
		bound = []string{}
	}
	return ChannelJSON{
		Channel: int(c.Channel),
		Name:    c.Channel.String(),
		Relay:   relayString(c.Relay),
		State:   string(c.State),
		Pressed: c.Pressed,
		BoundTo: bound,
		Counts: CountsJSON{
			Press:       c.Counts.Press,
			Release:     c.Counts.Release,
			Single:      c.Counts.Single,
			Double:      c.Counts.Double,
			Triple:      c.Counts.Triple,
			Hold:        c.Counts.Long,
			ReleaseHold: c.Counts.LongRelease,
		},
		Spurious:  c.Spurious,
		Anomalies: c.Anomalies,
		Config:    ChannelConfig(c.Config),
	}
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Device:         snap.Config.Device,
		Ready:          snap.Ready,
		UptimeSeconds:  int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:      snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:      snap.Now.UTC().Format(time.RFC3339),
		MQTT:           MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Channels:       []ChannelJSON{},
		BothPressed:    snap.BothPressed,
		RejectedWrites: snap.RejectedWrites,
		DroppedEdges:   snap.DroppedEdges,
		Config: ConfigJSON{
			Channels:    snap.Config.Channels,
			TickMs:      snap.Config.TickMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			StatePath:   snap.Config.StatePath,
		},
	}
	for _, c := range snap.Channels {
		inner.Channels = append(inner.Channels, buildChannel(c, snap.Bindings[c.Channel]))
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatChannelJSON returns the JSON view of one channel. It reports false
// when the device has no such channel.
func FormatChannelJSON(snap Snapshot, ch logic.Channel) ([]byte, bool) {
	c, ok := snap.Channel(ch)
	if !ok {
		return nil, false
	}
	data, _ := json.MarshalIndent(buildChannel(c, snap.Bindings[ch]), "", "  ")
	return data, true
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
