package irrigation

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
)

type publishedMessage struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

type mockPublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
	err      error
}

func (m *mockPublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, publishedMessage{Topic: topic, Payload: payload, QoS: qos, Retained: retained})
	return nil
}

type mockHub struct {
	mu       sync.Mutex
	channels []string
	payloads []any
}

func (m *mockHub) Broadcast(channel string, payload any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, channel)
	m.payloads = append(m.payloads, payload)
}

func TestMQTTNotifier_Publish(t *testing.T) {
	pub := &mockPublisher{}
	n := NewMQTTNotifier(pub, func(id string) string { return "graylogic/core/irrigation/" + id + "/state" }, nil)

	n.Publish("front", Attributes{ID: "front", Name: "Front", IsOn: true, LastRunDate: "2026-10-19", RemainingSeconds: 42})

	if len(pub.messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(pub.messages))
	}
	msg := pub.messages[0]
	if msg.Topic != "graylogic/core/irrigation/front/state" {
		t.Errorf("topic = %q", msg.Topic)
	}
	if !msg.Retained || msg.QoS != 1 {
		t.Errorf("qos/retained = %d/%v, want 1/true", msg.QoS, msg.Retained)
	}

	var got map[string]any
	if err := json.Unmarshal(msg.Payload, &got); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if got["last_ran"] != "2026-10-19" || got["time_remaining"] != float64(42) || got["is_on"] != true {
		t.Errorf("payload = %v", got)
	}
}

func TestMQTTNotifier_PublishFailureIsSwallowed(t *testing.T) {
	pub := &mockPublisher{err: errors.New("not connected")}
	n := NewMQTTNotifier(pub, func(id string) string { return id }, nil)

	n.Publish("front", Attributes{ID: "front"})
}

func TestMultiNotifier(t *testing.T) {
	pub := &mockPublisher{}
	hub := &mockHub{}
	n := MultiNotifier{
		NewMQTTNotifier(pub, func(id string) string { return id }, nil),
		HubNotifier{Hub: hub},
		nil,
	}

	n.Publish("front", Attributes{ID: "front"})

	if len(pub.messages) != 1 {
		t.Errorf("mqtt messages = %d, want 1", len(pub.messages))
	}
	if len(hub.channels) != 1 || hub.channels[0] != ChannelProgramState {
		t.Errorf("hub channels = %v, want [%s]", hub.channels, ChannelProgramState)
	}
}
