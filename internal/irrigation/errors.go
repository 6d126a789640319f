package irrigation

import "errors"

// Domain errors for the irrigation package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, irrigation.ErrValueNotFound) {
//	    // degrade to the clause default
//	}
var (
	// ErrProgramNotFound is returned when a program ID is not registered or has no stored state.
	ErrProgramNotFound = errors.New("irrigation: program not found")

	// ErrProgramExists is returned when registering a program ID twice.
	ErrProgramExists = errors.New("irrigation: program already exists")

	// ErrInvalidProgram is returned when program validation fails.
	ErrInvalidProgram = errors.New("irrigation: invalid program")

	// ErrInvalidZone is returned when a zone definition is invalid.
	ErrInvalidZone = errors.New("irrigation: invalid zone")

	// ErrNoZones is returned when a program defines no zones.
	ErrNoZones = errors.New("irrigation: no zones")

	// ErrValueNotFound is returned by a ValueSource when a reference cannot be resolved.
	ErrValueNotFound = errors.New("irrigation: value not found")

	// ErrValueInvalid is returned when a value cannot be converted to the requested type.
	ErrValueInvalid = errors.New("irrigation: invalid value")

	// ErrRunNotFound is returned when a run ID does not exist.
	ErrRunNotFound = errors.New("irrigation: run not found")
)
