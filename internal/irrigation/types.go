package irrigation

import "time"

// Default icons used when a program or zone does not configure one.
const (
	DefaultIcon = "mdi:fountain"
	WaitIcon    = "mdi:timer-sand"
	RainIcon    = "mdi:weather-rainy"
)

// ProgramConfig describes one schedulable irrigation program.
// It is immutable once registered.
type ProgramConfig struct {
	// Identity
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	Icon string `yaml:"icon" json:"icon"`

	// Trigger rule. StartTime is required; the rest are optional.
	// RunDays and RunFrequency are mutually exclusive.
	StartTime    string `yaml:"start_time" json:"start_time"`
	Enabled      string `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	RunDays      string `yaml:"run_days,omitempty" json:"run_days,omitempty"`
	RunFrequency string `yaml:"run_frequency,omitempty" json:"run_frequency,omitempty"`

	// Zones in execution order (non-empty).
	Zones []ZoneConfig `yaml:"zones" json:"zones"`
}

// ZoneConfig describes one valve and the references its watering cycle reads.
type ZoneConfig struct {
	Actuator string `yaml:"actuator" json:"actuator"`
	Name     string `yaml:"name" json:"name"`
	Icon     string `yaml:"icon,omitempty" json:"icon,omitempty"`

	RainSensor       string `yaml:"rain_sensor,omitempty" json:"rain_sensor,omitempty"`
	IgnoreRainSensor string `yaml:"ignore_rain_sensor,omitempty" json:"ignore_rain_sensor,omitempty"`

	Water       string `yaml:"water" json:"water"`                                   // minutes, required
	WaterAdjust string `yaml:"water_adjust,omitempty" json:"water_adjust,omitempty"` // multiplier
	Wait        string `yaml:"wait,omitempty" json:"wait,omitempty"`                 // minutes between repeats
	Repeat      string `yaml:"repeat,omitempty" json:"repeat,omitempty"`             // 0 behaves as 1
}

// References returns every non-empty reference the zone reads, in resolution order.
func (z ZoneConfig) References() []string {
	refs := make([]string, 0, 7)
	for _, r := range []string{z.RainSensor, z.IgnoreRainSensor, z.Water, z.WaterAdjust, z.Wait, z.Repeat} {
		if r != "" {
			refs = append(refs, r)
		}
	}
	return refs
}

// TriggerReferences returns every non-empty reference the trigger rule reads.
func (p ProgramConfig) TriggerReferences() []string {
	var refs []string
	for _, r := range []string{p.StartTime, p.Enabled, p.RunDays, p.RunFrequency} {
		if r != "" {
			refs = append(refs, r)
		}
	}
	return refs
}

// Attributes is the externally visible state of a program, published after
// every mutation.
type Attributes struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Icon             string `json:"icon"`
	IsOn             bool   `json:"is_on"`
	LastRunDate      string `json:"last_ran"` // YYYY-MM-DD, local calendar day
	RemainingSeconds int    `json:"time_remaining"`
}

// ProgramID returns the id of the program the attributes describe.
func (a Attributes) ProgramID() string { return a.ID }

// RuntimeState is the mutable state owned by a Program.
type RuntimeState struct {
	Running           bool
	StopRequested     bool
	TriggeredManually bool
	IsOn              bool
	LastRunDate       time.Time
	RemainingSeconds  int
	DisplayName       string
	DisplayIcon       string
}

// Trigger identifies how a run was started.
type Trigger string

const (
	TriggerManual   Trigger = "manual"
	TriggerSchedule Trigger = "schedule"
)

// RunStatus is the state of a recorded program run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusStopped   RunStatus = "stopped"
)

// Run records a single execution of a program.
type Run struct {
	ID           string     `json:"id"`
	ProgramID    string     `json:"program_id"`
	Trigger      Trigger    `json:"trigger"`
	Status       RunStatus  `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ZonesWatered int        `json:"zones_watered"`
	ZonesSkipped int        `json:"zones_skipped"`
	DurationMS   *int       `json:"duration_ms,omitempty"`
}

// SkipReason explains why a zone was passed over without watering.
type SkipReason string

const (
	SkipRain         SkipReason = "rain"
	SkipZeroDuration SkipReason = "zero_duration"
	SkipMissingWater SkipReason = "missing_water"
)

// dateLayout is the persisted and published format of the last run date.
const dateLayout = "2006-01-02"

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// FormatDate formats a last-run date for storage and publication.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

// ParseDate parses a YYYY-MM-DD date as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(dateLayout, s, loc)
}
