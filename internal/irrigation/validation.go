package irrigation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength = 100
	maxIDLength   = 50
	maxZones      = 32
	idPattern     = `^[a-z0-9]+(?:[-_][a-z0-9]+)*$`
)

var idRegex = regexp.MustCompile(idPattern)

// ValidateProgram checks a program definition.
// Returns an error describing the first validation failure found.
func ValidateProgram(p *ProgramConfig) error {
	if p == nil {
		return ErrInvalidProgram
	}

	if err := ValidateID(p.ID); err != nil {
		return err
	}
	if len(p.Name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidProgram, maxNameLength)
	}

	if strings.TrimSpace(p.StartTime) == "" {
		return fmt.Errorf("%w: start_time is required", ErrInvalidProgram)
	}
	if p.RunDays != "" && p.RunFrequency != "" {
		return fmt.Errorf("%w: run_days and run_frequency are mutually exclusive", ErrInvalidProgram)
	}

	if len(p.Zones) == 0 {
		return ErrNoZones
	}
	if len(p.Zones) > maxZones {
		return fmt.Errorf("%w: exceeds maximum of %d zones", ErrInvalidZone, maxZones)
	}
	for i, z := range p.Zones {
		if err := ValidateZone(z); err != nil {
			return fmt.Errorf("zone[%d]: %w", i, err)
		}
	}

	return nil
}

// ValidateZone checks a zone definition.
func ValidateZone(z ZoneConfig) error {
	if strings.TrimSpace(z.Actuator) == "" {
		return fmt.Errorf("%w: actuator is required", ErrInvalidZone)
	}
	if strings.TrimSpace(z.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidZone)
	}
	if len(z.Name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidZone, maxNameLength)
	}
	if strings.TrimSpace(z.Water) == "" {
		return fmt.Errorf("%w: water is required", ErrInvalidZone)
	}
	return nil
}

// ValidateID checks if a program ID is a valid slug.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: id cannot be empty", ErrInvalidProgram)
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("%w: id exceeds %d characters", ErrInvalidProgram, maxIDLength)
	}
	if !idRegex.MatchString(id) {
		return fmt.Errorf("%w: id must be lowercase alphanumeric with hyphens or underscores", ErrInvalidProgram)
	}
	return nil
}

// GenerateID creates a new UUID for a run.
func GenerateID() string {
	return uuid.New().String()
}
