package entity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Publisher is the MQTT publish capability used by SwitchActuator.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// CommandSource identifies this service in command payloads.
const CommandSource = "irrigation"

// SwitchCommand is the payload a bridge receives to set a switch.
type SwitchCommand struct {
	ID         string         `json:"id"`
	DeviceID   string         `json:"device_id"`
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters"`
	Source     string         `json:"source"`
}

// ActuatorConfig configures a SwitchActuator.
type ActuatorConfig struct {
	// Protocol is the bridge segment of command topics, e.g. "knx".
	Protocol string

	// Topic builds the command topic for a protocol and device id.
	Topic func(protocol, deviceID string) string

	// Optimistic records the commanded state in the Store once published.
	Optimistic bool
}

// SwitchActuator drives zone valves over MQTT.
//
// It implements irrigation.ActuatorPort. State is read from the Store,
// which bridges keep current; an unknown state reads as off.
type SwitchActuator struct {
	publisher Publisher
	store     *Store
	cfg       ActuatorConfig
	newID     func() string
	logger    Logger
}

// NewSwitchActuator creates an actuator publishing through publisher.
func NewSwitchActuator(publisher Publisher, store *Store, cfg ActuatorConfig) *SwitchActuator {
	return &SwitchActuator{
		publisher: publisher,
		store:     store,
		cfg:       cfg,
		newID:     uuid.NewString,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for command diagnostics.
func (a *SwitchActuator) SetLogger(logger Logger) {
	if logger != nil {
		a.logger = logger
	}
}

// IsOn reports the last known state of ref.
func (a *SwitchActuator) IsOn(ctx context.Context, ref string) (bool, error) {
	v, err := a.store.Read(ctx, ref)
	if err != nil {
		return false, nil //nolint:nilerr // unknown state reads as off
	}
	return v.IsOn(), nil
}

// TurnOn publishes a set on command for ref.
func (a *SwitchActuator) TurnOn(ctx context.Context, ref string) error {
	return a.set(ctx, ref, true)
}

// TurnOff publishes a set off command for ref.
func (a *SwitchActuator) TurnOff(ctx context.Context, ref string) error {
	return a.set(ctx, ref, false)
}

func (a *SwitchActuator) set(ctx context.Context, ref string, on bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	deviceID := DeviceID(ref)
	if deviceID == "" {
		return fmt.Errorf("%w: %q", ErrInvalidEntityID, ref)
	}

	cmd := SwitchCommand{
		ID:         a.newID(),
		DeviceID:   deviceID,
		Command:    "set",
		Parameters: map[string]any{"on": on},
		Source:     CommandSource,
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("%w: encoding: %w", ErrCommandFailed, err)
	}

	topic := a.cfg.Topic(a.cfg.Protocol, deviceID)
	if err := a.publisher.Publish(topic, payload, 1, false); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCommandFailed, ref, err)
	}

	if a.cfg.Optimistic {
		state := "off"
		if on {
			state = "on"
		}
		a.store.Set(ref, state)
	}

	a.logger.Debug("switch command sent", "entity_id", ref, "on", on, "command_id", cmd.ID)
	return nil
}

// DeviceID returns the object part of an entity id.
//
// Example: "switch.front_lawn" -> "front_lawn"
func DeviceID(ref string) string {
	if _, object, ok := strings.Cut(ref, "."); ok {
		return object
	}
	return ref
}
