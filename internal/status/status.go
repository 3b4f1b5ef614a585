// Package status provides a thread-safe status tracker for the smartswitch daemon.
// It is read by HTTP handlers and by the heartbeat publisher.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/smartswitch/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Device      string
	Channels    int
	TickMs      int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
	StatePath   string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Channels       []logic.ChannelStatus
	Bindings       map[logic.Channel][]string
	BothPressed    bool
	Ready          bool
	RejectedWrites int
	DroppedEdges   int64
	StartTime      time.Time
	Now            time.Time
	MQTTConnected  bool
	Network        *NetworkInfo
	Config         Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Channel returns the status of ch, if the device has it.
func (s Snapshot) Channel(ch logic.Channel) (logic.ChannelStatus, bool) {
	for _, c := range s.Channels {
		if c.Channel == ch {
			return c, true
		}
	}
	return logic.ChannelStatus{}, false
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update replaces the channel view. Called from runLoop after every event.
func (t *Tracker) Update(channels []logic.ChannelStatus, bothPressed bool) {
	cp := append([]logic.ChannelStatus(nil), channels...)
	t.mu.Lock()
	t.snap.Channels = cp
	t.snap.BothPressed = bothPressed
	t.snap.Ready = true
	t.mu.Unlock()
}

// SetBindings replaces the bound targets view.
func (t *Tracker) SetBindings(b map[logic.Channel][]string) {
	t.mu.Lock()
	t.snap.Bindings = b
	t.mu.Unlock()
}

// AddRejectedWrite counts a configuration write refused as a conflict.
func (t *Tracker) AddRejectedWrite() {
	t.mu.Lock()
	t.snap.RejectedWrites++
	t.mu.Unlock()
}

// SetDroppedEdges records how many edges the GPIO layer lost.
func (t *Tracker) SetDroppedEdges(n int64) {
	t.mu.Lock()
	t.snap.DroppedEdges = n
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Channels = append([]logic.ChannelStatus(nil), t.snap.Channels...)
	if t.snap.Bindings != nil {
		s.Bindings = make(map[logic.Channel][]string, len(t.snap.Bindings))
		for k, v := range t.snap.Bindings {
			s.Bindings[k] = append([]string(nil), v...)
		}
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
