package irrigation

import (
	"context"
	"strings"
	"time"
	"unicode"
)

// secondsPerDay is the divisor of the elapsed-days frequency clause.
const secondsPerDay = 86400

// TriggerEvaluator decides whether a program should start at a given minute.
//
// It holds no per-program state and is safe for concurrent use.
type TriggerEvaluator struct {
	values ValueSource
	logger Logger
}

// NewTriggerEvaluator creates an evaluator reading from values.
func NewTriggerEvaluator(values ValueSource, logger Logger) *TriggerEvaluator {
	if logger == nil {
		logger = noopLogger{}
	}
	return &TriggerEvaluator{values: values, logger: logger}
}

// ShouldStart evaluates the trigger rule of cfg at now.
//
// All configured clauses are ANDed:
//  1. now matches the start time at minute granularity (required)
//  2. the enable flag reads on (if configured)
//  3. now's weekday abbreviation is in the day list (if configured)
//  4. whole days since lastRun >= the frequency (if configured)
//
// A clause whose reference cannot be resolved is logged and evaluates false.
func (e *TriggerEvaluator) ShouldStart(ctx context.Context, now time.Time, cfg ProgramConfig, lastRun time.Time) bool {
	if !e.startTimeMatches(ctx, now, cfg) {
		return false
	}
	if cfg.Enabled != "" && !e.enabled(ctx, cfg) {
		return false
	}
	if cfg.RunDays != "" && !e.dayAllowed(ctx, now, cfg) {
		return false
	}
	if cfg.RunFrequency != "" && !e.frequencyElapsed(ctx, now, cfg, lastRun) {
		return false
	}
	return true
}

func (e *TriggerEvaluator) startTimeMatches(ctx context.Context, now time.Time, cfg ProgramConfig) bool {
	v, ok := e.read(ctx, cfg.ID, "start_time", cfg.StartTime)
	if !ok {
		return false
	}
	hour, minute, err := v.TimeOfDay(now.Location())
	if err != nil {
		e.logger.Warn("start time unreadable, check your configuration",
			"program_id", cfg.ID, "ref", cfg.StartTime, "error", err)
		return false
	}
	return now.Hour() == hour && now.Minute() == minute
}

func (e *TriggerEvaluator) enabled(ctx context.Context, cfg ProgramConfig) bool {
	v, ok := e.read(ctx, cfg.ID, "enabled", cfg.Enabled)
	if !ok {
		return false
	}
	return v.IsOn()
}

func (e *TriggerEvaluator) dayAllowed(ctx context.Context, now time.Time, cfg ProgramConfig) bool {
	v, ok := e.read(ctx, cfg.ID, "run_days", cfg.RunDays)
	if !ok {
		return false
	}
	return DayInList(now.Weekday(), v.Raw)
}

func (e *TriggerEvaluator) frequencyElapsed(ctx context.Context, now time.Time, cfg ProgramConfig, lastRun time.Time) bool {
	v, ok := e.read(ctx, cfg.ID, "run_frequency", cfg.RunFrequency)
	if !ok {
		return false
	}
	freq, err := v.Int()
	if err != nil {
		e.logger.Warn("run frequency unreadable, check your configuration",
			"program_id", cfg.ID, "ref", cfg.RunFrequency, "error", err)
		return false
	}
	return ElapsedDays(now, lastRun) >= freq
}

// read resolves a trigger reference, logging a configuration warning on failure.
func (e *TriggerEvaluator) read(ctx context.Context, programID, clause, ref string) (Value, bool) {
	v, err := e.values.Read(ctx, ref)
	if err != nil {
		e.logger.Warn("trigger reference not found, check your configuration",
			"program_id", programID, "clause", clause, "ref", ref, "error", err)
		return Value{}, false
	}
	return v, true
}

// ElapsedDays returns floor((now - lastRun) / 86400) in whole days.
func ElapsedDays(now, lastRun time.Time) int {
	secs := now.Unix() - lastRun.Unix()
	if secs < 0 {
		return -int((-secs + secondsPerDay - 1) / secondsPerDay)
	}
	return int(secs / secondsPerDay)
}

// DayInList reports whether the three-letter abbreviation of day appears as
// a token of list. Tokens are separated by anything that is not a letter, so
// "Mon,Wed,Fri", "Mon Wed" and "['Mon', 'Wed']" are all accepted.
func DayInList(day time.Weekday, list string) bool {
	abbr := day.String()[:3]
	tokens := strings.FieldsFunc(list, func(r rune) bool { return !unicode.IsLetter(r) })
	for _, tok := range tokens {
		if len(tok) >= 3 && strings.EqualFold(tok[:3], abbr) {
			return true
		}
	}
	return false
}
