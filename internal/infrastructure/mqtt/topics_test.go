package mqtt

import "testing"

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"BridgeCommand", topics.BridgeCommand("knx", "valve-front-lawn"), "graylogic/command/knx/valve-front-lawn"},
		{"EntityState", topics.EntityState("input_number.lawn_water"), "graylogic/core/entity/input_number.lawn_water/state"},
		{"AllEntityStates", topics.AllEntityStates(), "graylogic/core/entity/+/state"},
		{"ProgramState", topics.ProgramState("front-garden"), "graylogic/core/irrigation/front-garden/state"},
		{"ProgramCommand", topics.ProgramCommand("front-garden"), "graylogic/core/irrigation/front-garden/command"},
		{"AllProgramCommands", topics.AllProgramCommands(), "graylogic/core/irrigation/+/command"},
		{"StopPrograms", topics.StopPrograms(), "graylogic/core/irrigation/stop_programs"},
		{"ServiceStatus", topics.ServiceStatus(), "graylogic/system/irrigation/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.expected)
			}
		})
	}
}

func TestParseEntityStateTopic(t *testing.T) {
	tests := []struct {
		topic  string
		wantID string
		wantOK bool
	}{
		{"graylogic/core/entity/switch.front_lawn/state", "switch.front_lawn", true},
		{"graylogic/core/entity//state", "", false},
		{"graylogic/core/entity/a/b/state", "", false},
		{"graylogic/core/irrigation/front/state", "", false},
		{"graylogic/core/entity/switch.front_lawn", "", false},
	}
	for _, tt := range tests {
		id, ok := ParseEntityStateTopic(tt.topic)
		if id != tt.wantID || ok != tt.wantOK {
			t.Errorf("ParseEntityStateTopic(%q) = (%q, %v), want (%q, %v)", tt.topic, id, ok, tt.wantID, tt.wantOK)
		}
	}
}
