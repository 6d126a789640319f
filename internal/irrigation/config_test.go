package irrigation

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testProgramsYAML = `
programs:
  - id: front-garden
    name: front garden
    icon: mdi:flower
    start_time: input_datetime.front_start
    enabled: input_boolean.irrigation_on
    run_days: input_select.front_days
    zones:
      - actuator: switch.front_lawn
        name: Lawn
        rain_sensor: binary_sensor.rain
        ignore_rain_sensor: input_boolean.ignore_rain
        water: input_number.lawn_water
        water_adjust: input_number.lawn_adjust
        wait: input_number.lawn_wait
        repeat: input_number.lawn_repeat
      - actuator: switch.front_beds
        name: Beds
        water: input_number.beds_water
  - id: back
    start_time: input_datetime.back_start
    run_frequency: input_select.back_freq
    zones:
      - actuator: switch.back_lawn
        name: Back lawn
        water: input_number.back_water

values:
  input_number.beds_water: "7"
  input_select.front_days: "Mon,Thu"
`

func TestParsePrograms(t *testing.T) {
	file, err := ParsePrograms([]byte(testProgramsYAML))
	if err != nil {
		t.Fatalf("ParsePrograms() error = %v", err)
	}

	if len(file.Programs) != 2 {
		t.Fatalf("programs = %d, want 2", len(file.Programs))
	}

	front := file.Programs[0]
	if front.ID != "front-garden" || front.Icon != "mdi:flower" {
		t.Errorf("front = %s/%s, want front-garden/mdi:flower", front.ID, front.Icon)
	}
	if len(front.Zones) != 2 {
		t.Fatalf("front zones = %d, want 2", len(front.Zones))
	}
	lawn := front.Zones[0]
	if lawn.RainSensor != "binary_sensor.rain" || lawn.Repeat != "input_number.lawn_repeat" {
		t.Errorf("lawn = %+v, want rain sensor and repeat set", lawn)
	}
	if got := len(lawn.References()); got != 6 {
		t.Errorf("lawn references = %d, want 6", got)
	}

	back := file.Programs[1]
	if back.RunFrequency != "input_select.back_freq" || back.RunDays != "" {
		t.Errorf("back trigger = days %q freq %q", back.RunDays, back.RunFrequency)
	}

	if got := file.Values["input_number.beds_water"]; got != "7" {
		t.Errorf("values[beds_water] = %q, want 7", got)
	}
}

func TestParsePrograms_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr error
		want    []string
	}{
		{
			name: "duplicate ids",
			yaml: `
programs:
  - id: front
    start_time: input_datetime.a
    zones: [{actuator: switch.a, name: A, water: input_number.a}]
  - id: front
    start_time: input_datetime.b
    zones: [{actuator: switch.b, name: B, water: input_number.b}]
`,
			wantErr: ErrProgramExists,
		},
		{
			name: "all problems reported",
			yaml: `
programs:
  - id: one
    zones: [{actuator: switch.a, name: A, water: input_number.a}]
  - id: two
    start_time: input_datetime.b
    zones: []
`,
			want: []string{"programs[0]", "programs[1]"},
		},
		{
			name: "malformed yaml",
			yaml: "programs: [",
			want: []string{"parsing programs file"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePrograms([]byte(tt.yaml))
			if err == nil {
				t.Fatal("ParsePrograms() error = nil, want error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("ParsePrograms() error = %v, want %v", err, tt.wantErr)
			}
			for _, s := range tt.want {
				if !strings.Contains(err.Error(), s) {
					t.Errorf("error %q does not mention %q", err, s)
				}
			}
		})
	}
}

func TestLoadPrograms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "programs.yaml")
	if err := os.WriteFile(path, []byte(testProgramsYAML), 0o600); err != nil {
		t.Fatalf("writing programs file: %v", err)
	}

	file, err := LoadPrograms(path)
	if err != nil {
		t.Fatalf("LoadPrograms() error = %v", err)
	}
	if len(file.Programs) != 2 {
		t.Errorf("programs = %d, want 2", len(file.Programs))
	}

	if _, err := LoadPrograms(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadPrograms() on missing file error = nil, want error")
	}
}
