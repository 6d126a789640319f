package irrigation

import "encoding/json"

// Publisher is the MQTT publish capability used by MQTTNotifier.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// WSHub is the interface for broadcasting WebSocket events.
type WSHub interface {
	Broadcast(channel string, payload any)
}

// ChannelProgramState is the WebSocket channel carrying program attributes.
const ChannelProgramState = "irrigation.program_state"

// MQTTNotifier publishes program attributes as retained JSON messages.
type MQTTNotifier struct {
	publisher Publisher
	topic     func(programID string) string
	logger    Logger
}

// NewMQTTNotifier creates a notifier publishing to topic(programID).
func NewMQTTNotifier(publisher Publisher, topic func(programID string) string, logger Logger) *MQTTNotifier {
	if logger == nil {
		logger = noopLogger{}
	}
	return &MQTTNotifier{publisher: publisher, topic: topic, logger: logger}
}

// Publish implements Notifier. Failures are logged, never returned.
func (n *MQTTNotifier) Publish(programID string, attrs Attributes) {
	payload, err := json.Marshal(attrs)
	if err != nil {
		n.logger.Error("failed to marshal program attributes", "program_id", programID, "error", err)
		return
	}
	if err := n.publisher.Publish(n.topic(programID), payload, 1, true); err != nil {
		n.logger.Debug("program attributes not published", "program_id", programID, "error", err)
	}
}

// HubNotifier pushes program attributes to WebSocket subscribers.
type HubNotifier struct {
	Hub WSHub
}

// Publish implements Notifier.
func (n HubNotifier) Publish(_ string, attrs Attributes) {
	n.Hub.Broadcast(ChannelProgramState, attrs)
}
