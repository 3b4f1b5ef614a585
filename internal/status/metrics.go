package status

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/smartswitch/internal/logic"
)

const namespace = "smartswitch"

// Metrics exports controller activity as prometheus series. Counters are
// driven by effects as the daemon executes them; gauges and discard
// counters follow the tracker snapshot.
type Metrics struct {
	Actions          *prometheus.CounterVec
	Commands         *prometheus.CounterVec
	RelayTransitions *prometheus.CounterVec
	DiscardedEdges   *prometheus.CounterVec
	RejectedWrites   *prometheus.CounterVec
	Relay            *prometheus.GaugeVec
	MQTTConnected    prometheus.Gauge
	DroppedEdges     prometheus.Gauge

	mu       sync.Mutex
	spurious map[logic.Channel]int
	anomaly  map[logic.Channel]int
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Classified button actions reported, by channel and action.",
		}, []string{"channel", "action"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_sent_total",
			Help:      "Commands sent to bound devices, by channel and command.",
		}, []string{"channel", "command"}),
		RelayTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_transitions_total",
			Help:      "Relay state changes, by channel and new state.",
		}, []string{"channel", "state"}),
		DiscardedEdges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discarded_edges_total",
			Help:      "Edges ignored by the classifier, by channel and reason.",
		}, []string{"channel", "reason"}),
		RejectedWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_config_writes_total",
			Help:      "Configuration writes refused as conflicts, by field.",
		}, []string{"field"}),
		Relay: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relay_on",
			Help:      "1 when the channel relay is energised.",
		}, []string{"channel"}),
		MQTTConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mqtt_connected",
			Help:      "1 while the MQTT client is connected.",
		}),
		DroppedEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gpio_dropped_edges",
			Help:      "Edges lost because the event buffer was full.",
		}),
		spurious: make(map[logic.Channel]int),
		anomaly:  make(map[logic.Channel]int),
	}
	reg.MustRegister(
		m.Actions, m.Commands, m.RelayTransitions, m.DiscardedEdges,
		m.RejectedWrites, m.Relay, m.MQTTConnected, m.DroppedEdges,
	)
	return m
}

// ObserveEffect counts one executed effect.
func (m *Metrics) ObserveEffect(e logic.Effect) {
	ch := e.Channel.String()
	switch e.Type {
	case logic.EffectReportAction:
		m.Actions.WithLabelValues(ch, string(e.Action)).Inc()
	case logic.EffectSendCommand:
		if e.Command.Kind == logic.CommandAction {
			m.Actions.WithLabelValues(ch, string(e.Command.Action)).Inc()
		}
		m.Commands.WithLabelValues(ch, string(e.Command.Kind)).Inc()
	case logic.EffectReportState:
		m.RelayTransitions.WithLabelValues(ch, relayString(e.On)).Inc()
	}
}

// ObserveRejected counts a refused configuration write.
func (m *Metrics) ObserveRejected(field string) {
	if field == "" {
		field = "unknown"
	}
	m.RejectedWrites.WithLabelValues(field).Inc()
}

// ObserveStatus brings gauges in line with snap and adds any growth in the
// per-channel discard totals.
func (m *Metrics) ObserveStatus(snap Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range snap.Channels {
		name := c.Channel.String()
		if c.Relay {
			m.Relay.WithLabelValues(name).Set(1)
		} else {
			m.Relay.WithLabelValues(name).Set(0)
		}
		if d := c.Spurious - m.spurious[c.Channel]; d > 0 {
			m.DiscardedEdges.WithLabelValues(name, "spurious").Add(float64(d))
		}
		if d := c.Anomalies - m.anomaly[c.Channel]; d > 0 {
			m.DiscardedEdges.WithLabelValues(name, "timing_anomaly").Add(float64(d))
		}
		m.spurious[c.Channel] = c.Spurious
		m.anomaly[c.Channel] = c.Anomalies
	}
	if snap.MQTTConnected {
		m.MQTTConnected.Set(1)
	} else {
		m.MQTTConnected.Set(0)
	}
	m.DroppedEdges.Set(float64(snap.DroppedEdges))
}
