package irrigation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValueSource gives read-only access to named external values (input
// numbers, booleans, selects, sensors). Read returns ErrValueNotFound when
// the reference is unknown.
type ValueSource interface {
	Read(ctx context.Context, ref string) (Value, error)
}

// Value is a raw external value with typed accessors.
type Value struct {
	Raw       string    `json:"state"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewValue creates a Value stamped with the given update time.
func NewValue(raw string, updated time.Time) Value {
	return Value{Raw: strings.TrimSpace(raw), UpdatedAt: updated}
}

// String returns the raw value.
func (v Value) String() string {
	return v.Raw
}

// Bool reports whether the value reads as "on".
// Accepted truthy forms: on, true, yes, 1. Falsy: off, false, no, 0.
func (v Value) Bool() (bool, error) {
	switch strings.ToLower(v.Raw) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q is not a boolean", ErrValueInvalid, v.Raw)
}

// IsOn is Bool with any parse failure reading as off.
func (v Value) IsOn() bool {
	on, err := v.Bool()
	return err == nil && on
}

// Float parses the value as a number.
func (v Value) Float() (float64, error) {
	f, err := strconv.ParseFloat(v.Raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not numeric", ErrValueInvalid, v.Raw)
	}
	return f, nil
}

// Int parses the value as a number and truncates it toward zero.
func (v Value) Int() (int, error) {
	f, err := v.Float()
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

// timeOfDayLayouts are the accepted forms of a time-of-day value.
var timeOfDayLayouts = []string{"15:04:05", "15:04"}

// TimeOfDay parses the value as a wall clock time and returns hour and minute.
// Full timestamps are accepted and their clock part in loc is used.
func (v Value) TimeOfDay(loc *time.Location) (hour, minute int, err error) {
	for _, layout := range timeOfDayLayouts {
		if t, perr := time.Parse(layout, v.Raw); perr == nil {
			return t.Hour(), t.Minute(), nil
		}
	}
	if t, perr := v.Time(loc); perr == nil {
		return t.Hour(), t.Minute(), nil
	}
	return 0, 0, fmt.Errorf("%w: %q is not a time of day", ErrValueInvalid, v.Raw)
}

// timestampLayouts are the accepted forms of a timestamp value.
var timestampLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"}

// Time parses the value as a timestamp and returns it in loc (time.Local
// when nil). A timestamp without an offset is read as loc wall time.
func (v Value) Time(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, v.Raw, loc); err == nil {
			return t.In(loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q is not a timestamp", ErrValueInvalid, v.Raw)
}

// Date parses the value as a calendar date (YYYY-MM-DD) in loc.
func (v Value) Date(loc *time.Location) (time.Time, error) {
	t, err := ParseDate(v.Raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a date", ErrValueInvalid, v.Raw)
	}
	return t, nil
}

// MapValueSource is a fixed in-memory ValueSource.
type MapValueSource map[string]string

// Read implements ValueSource.
func (m MapValueSource) Read(_ context.Context, ref string) (Value, error) {
	raw, ok := m[ref]
	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ErrValueNotFound, ref)
	}
	return NewValue(raw, time.Time{}), nil
}
