package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes shared with the protocol bridges and the core.
const (
	// TopicPrefix is the root of bridge command topics:
	// graylogic/command/{protocol}/{device_id}
	TopicPrefix = "graylogic"

	// TopicPrefixCore is the root of canonical entity state topics.
	TopicPrefixCore = "graylogic/core"

	// TopicPrefixIrrigation is the root of program state and command topics.
	TopicPrefixIrrigation = "graylogic/core/irrigation"

	// TopicPrefixSystem is the root of service status topics.
	TopicPrefixSystem = "graylogic/system"
)

const stopProgramsSegment = "stop_programs"

// Topics provides builders for the irrigation controller's MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.ProgramState("front-garden")
//	// Returns: "graylogic/core/irrigation/front-garden/state"
type Topics struct{}

// ─── Bridge Topics ──────────────────────────────────────────────────

// BridgeCommand returns the topic a bridge listens on for device commands.
//
// Example: graylogic/command/knx/valve-front-lawn
func (Topics) BridgeCommand(protocol, deviceID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, protocol, deviceID)
}

// ─── Entity Topics ──────────────────────────────────────────────────

// EntityState returns the canonical state topic of one entity.
//
// Example: graylogic/core/entity/input_number.lawn_water/state
func (Topics) EntityState(entityID string) string {
	return fmt.Sprintf("%s/entity/%s/state", TopicPrefixCore, entityID)
}

// AllEntityStates matches every entity state topic.
//
// Pattern: graylogic/core/entity/+/state
func (Topics) AllEntityStates() string {
	return fmt.Sprintf("%s/entity/+/state", TopicPrefixCore)
}

// ─── Irrigation Topics ──────────────────────────────────────────────

// ProgramState returns the retained attributes topic of a program.
//
// Example: graylogic/core/irrigation/front-garden/state
func (Topics) ProgramState(programID string) string {
	return fmt.Sprintf("%s/%s/state", TopicPrefixIrrigation, programID)
}

// ProgramCommand returns the start/stop command topic of a program.
//
// Example: graylogic/core/irrigation/front-garden/command
func (Topics) ProgramCommand(programID string) string {
	return fmt.Sprintf("%s/%s/command", TopicPrefixIrrigation, programID)
}

// AllProgramCommands matches every program command topic.
//
// Pattern: graylogic/core/irrigation/+/command
func (Topics) AllProgramCommands() string {
	return fmt.Sprintf("%s/+/command", TopicPrefixIrrigation)
}

// StopPrograms returns the topic that stops all programs but one.
//
// Example: graylogic/core/irrigation/stop_programs
func (Topics) StopPrograms() string {
	return fmt.Sprintf("%s/%s", TopicPrefixIrrigation, stopProgramsSegment)
}

// ─── System Topics ──────────────────────────────────────────────────

// ServiceStatus returns the retained online/offline topic.
//
// Example: graylogic/system/irrigation/status
func (Topics) ServiceStatus() string {
	return fmt.Sprintf("%s/irrigation/status", TopicPrefixSystem)
}

// ─── Parsers ────────────────────────────────────────────────────────

// ParseEntityStateTopic extracts the entity id from an entity state topic.
func ParseEntityStateTopic(topic string) (entityID string, ok bool) {
	rest, found := strings.CutPrefix(topic, TopicPrefixCore+"/entity/")
	if !found {
		return "", false
	}
	entityID, found = strings.CutSuffix(rest, "/state")
	if !found || entityID == "" || strings.Contains(entityID, "/") {
		return "", false
	}
	return entityID, true
}
