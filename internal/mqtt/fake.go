package mqtt

import (
	"fmt"
	"sync"
	"time"

	"github.com/sweeney/smartswitch/internal/logic"
)

// Message is one recorded publish.
type Message struct {
	Topic    string
	Payload  []byte
	Retained bool
}

// FakePublisher records published messages for test assertions.
// Safe for concurrent use.
type FakePublisher struct {
	mu       sync.Mutex
	topics   Topics
	messages []Message
	requests chan Request

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// PublishError, if set, will be returned by every publish method.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for the named device.
func NewFakePublisher(device string) *FakePublisher {
	return &FakePublisher{
		topics:   NewTopics(device),
		requests: make(chan Request, 32),
	}
}

func (f *FakePublisher) record(topic string, payload []byte, err error, retained bool) error {
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.messages = append(f.messages, Message{Topic: topic, Payload: payload, Retained: retained})
	return nil
}

// PublishAction records the action payload.
func (f *FakePublisher) PublishAction(ch logic.Channel, action logic.ActionType, ts time.Time) error {
	payload, err := FormatActionPayload(action, ts)
	return f.record(f.topics.Action(ch), payload, err, false)
}

// PublishState records the state payload.
func (f *FakePublisher) PublishState(ch logic.Channel, on bool, ts time.Time) error {
	payload, err := FormatStatePayload(on, ts)
	return f.record(f.topics.State(ch), payload, err, true)
}

// PublishCommand records the command payload with a sequential id.
func (f *FakePublisher) PublishCommand(ch logic.Channel, cmd logic.Command, targets []string, ts time.Time) error {
	f.mu.Lock()
	id := fmt.Sprintf("cmd-%d", len(f.messages)+1)
	f.mu.Unlock()
	payload, err := FormatCommandPayload(id, cmd, targets, ts)
	return f.record(f.topics.Command(ch), payload, err, false)
}

// PublishBothPressed records the both-buttons payload.
func (f *FakePublisher) PublishBothPressed(ts time.Time) error {
	payload, err := FormatBothPressedPayload(ts)
	return f.record(f.topics.BothPressed(), payload, err, false)
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err := f.record(f.topics.System(), payload, err, event.Retained); err != nil {
		return err
	}
	f.mu.Lock()
	f.SystemEvents = append(f.SystemEvents, event)
	f.mu.Unlock()
	return nil
}

// Inject queues an inbound request as if it arrived from the broker.
func (f *FakePublisher) Inject(req Request) {
	f.requests <- req
}

// Requests returns injected requests.
func (f *FakePublisher) Requests() <-chan Request {
	return f.requests
}

// Messages returns a copy of every recorded publish.
func (f *FakePublisher) Messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.messages...)
}

// MessagesOn returns the recorded publishes on topic.
func (f *FakePublisher) MessagesOn(topic string) []Message {
	var out []Message
	for _, m := range f.Messages() {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// Events returns a copy of the recorded system events.
func (f *FakePublisher) Events() []SystemEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SystemEvent(nil), f.SystemEvents...)
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// Reset clears recorded messages.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = nil
	f.SystemEvents = nil
	f.Closed = false
	f.PublishError = nil
}
