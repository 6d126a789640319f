package irrigation

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ProgramsFile is the on-disk layout of the programs file.
type ProgramsFile struct {
	// Programs are registered in file order.
	Programs []ProgramConfig `yaml:"programs"`

	// Values seeds fixed references (durations, flags) that no external
	// system publishes, keyed by reference.
	Values map[string]string `yaml:"values,omitempty"`
}

// LoadPrograms reads and validates a programs file.
//
// Every program is validated and IDs must be unique. All problems are
// reported together.
func LoadPrograms(path string) (*ProgramsFile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from trusted configuration
	if err != nil {
		return nil, fmt.Errorf("reading programs file: %w", err)
	}
	return ParsePrograms(data)
}

// ParsePrograms parses and validates programs file content.
func ParsePrograms(data []byte) (*ProgramsFile, error) {
	var file ProgramsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing programs file: %w", err)
	}

	var errs []error
	seen := make(map[string]struct{}, len(file.Programs))
	for i := range file.Programs {
		p := &file.Programs[i]
		if err := ValidateProgram(p); err != nil {
			errs = append(errs, fmt.Errorf("programs[%d] (%s): %w", i, p.ID, err))
			continue
		}
		if _, dup := seen[p.ID]; dup {
			errs = append(errs, fmt.Errorf("programs[%d]: %w: %s", i, ErrProgramExists, p.ID))
			continue
		}
		seen[p.ID] = struct{}{}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &file, nil
}
