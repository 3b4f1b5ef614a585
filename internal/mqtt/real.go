package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"

	"github.com/sweeney/smartswitch/internal/logic"
)

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	Device     string
	Channels   int
	BufferSize int
}

// RealPublisher publishes to an actual MQTT broker. While the broker is
// unreachable messages are queued and replayed on reconnect.
type RealPublisher struct {
	client   paho.Client
	topics   Topics
	channels int
	requests chan Request

	connected atomic.Bool
	mu        sync.Mutex
	queue     *offlineQueue
}

// NewRealPublisher creates a publisher and starts connecting in the background.
func NewRealPublisher(o Options) *RealPublisher {
	if o.BufferSize == 0 {
		o.BufferSize = 256
	}
	p := &RealPublisher{
		topics:   NewTopics(o.Device),
		channels: o.Channels,
		requests: make(chan Request, 32),
		queue:    newOfflineQueue(o.BufferSize),
	}

	will, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE", Reason: "LWT"})
	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(p.topics.System(), will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.connected.Store(false)
			log.Warn().Err(err).Msg("mqtt: connection lost")
		})

	p.client = paho.NewClient(opts)
	p.client.Connect()
	return p
}

func (p *RealPublisher) onConnect(c paho.Client) {
	filters := make(map[string]byte)
	for _, t := range p.topics.Subscriptions(p.channels) {
		filters[t] = 1
	}
	if tok := c.SubscribeMultiple(filters, p.onMessage); tok.WaitTimeout(5*time.Second) && tok.Error() != nil {
		log.Error().Err(tok.Error()).Msg("mqtt: subscribe failed")
	}

	p.mu.Lock()
	pending := p.queue.drain()
	p.connected.Store(true)
	p.mu.Unlock()

	log.Info().Int("replayed", len(pending)).Msg("mqtt: connected")
	for _, m := range pending {
		if err := p.send(m); err != nil {
			log.Warn().Err(err).Str("topic", m.topic).Msg("mqtt: replay failed")
		}
	}
}

func (p *RealPublisher) onMessage(_ paho.Client, msg paho.Message) {
	req, err := ParseRequest(p.topics, msg.Topic(), msg.Payload())
	if err != nil {
		log.Warn().Err(err).Str("topic", msg.Topic()).Msg("mqtt: ignoring message")
		return
	}
	select {
	case p.requests <- req:
	default:
		log.Warn().Str("topic", msg.Topic()).Msg("mqtt: request queue full, dropping")
	}
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.connected.Load()
}

// Requests returns inbound requests parsed from the subscriptions.
func (p *RealPublisher) Requests() <-chan Request {
	return p.requests
}

func (p *RealPublisher) send(m outgoing) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return errors.New("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// publish sends m, or queues it while disconnected.
func (p *RealPublisher) publish(m outgoing) error {
	p.mu.Lock()
	if !p.connected.Load() {
		p.queue.push(m)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	return p.send(m)
}

// PublishAction reports a classified action.
func (p *RealPublisher) PublishAction(ch logic.Channel, action logic.ActionType, ts time.Time) error {
	payload, err := FormatActionPayload(action, ts)
	if err != nil {
		return fmt.Errorf("format action payload: %w", err)
	}
	return p.publish(outgoing{topic: p.topics.Action(ch), payload: payload})
}

// PublishState reports a relay state. QoS 1 and retained so late
// subscribers see the current state.
func (p *RealPublisher) PublishState(ch logic.Channel, on bool, ts time.Time) error {
	payload, err := FormatStatePayload(on, ts)
	if err != nil {
		return fmt.Errorf("format state payload: %w", err)
	}
	return p.publish(outgoing{topic: p.topics.State(ch), payload: payload, qos: 1, retained: true})
}

// PublishCommand sends a command to bound devices, tagged with a fresh id.
func (p *RealPublisher) PublishCommand(ch logic.Channel, cmd logic.Command, targets []string, ts time.Time) error {
	payload, err := FormatCommandPayload(uuid.NewString(), cmd, targets, ts)
	if err != nil {
		return fmt.Errorf("format command payload: %w", err)
	}
	return p.publish(outgoing{topic: p.topics.Command(ch), payload: payload, qos: 1})
}

// PublishBothPressed reports the both-buttons event.
func (p *RealPublisher) PublishBothPressed(ts time.Time) error {
	payload, err := FormatBothPressedPayload(ts)
	if err != nil {
		return fmt.Errorf("format both pressed payload: %w", err)
	}
	return p.publish(outgoing{topic: p.topics.BothPressed(), payload: payload})
}

// PublishSystem sends a system lifecycle event.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(outgoing{topic: p.topics.System(), payload: payload, qos: 1, retained: event.Retained})
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
