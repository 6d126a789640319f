package irrigation

import (
	"context"
	"time"
)

// ActuatorPort drives zone valves. Commands are fire-and-forget and
// idempotent; the reported state converges eventually.
type ActuatorPort interface {
	IsOn(ctx context.Context, ref string) (bool, error)
	TurnOn(ctx context.Context, ref string) error
	TurnOff(ctx context.Context, ref string) error
}

// Broadcaster requests that every program other than the given one stops.
type Broadcaster interface {
	StopAllExcept(ctx context.Context, programID string)
}

// RestoreStore persists the last run date of each program across restarts.
// LoadLastRun returns ErrProgramNotFound when nothing has been stored.
type RestoreStore interface {
	LoadLastRun(ctx context.Context, programID string) (time.Time, error)
	SaveLastRun(ctx context.Context, programID string, date time.Time) error
}

// RunLog records program executions. It is optional.
type RunLog interface {
	CreateRun(ctx context.Context, run *Run) error
	UpdateRun(ctx context.Context, run *Run) error
}

// Notifier receives the program attributes after every mutation.
type Notifier interface {
	Publish(programID string, attrs Attributes)
}

// RunObserver receives run lifecycle events for telemetry. It is optional.
type RunObserver interface {
	RunStarted(run Run)
	ZoneSkipped(programID, zone string, reason SkipReason)
	ZoneWatered(programID, zone string, minutes int, repeats int)
	RunFinished(run Run)
}

// Clock supplies the current time and the tick suspension point.
// Sleep returns early with ctx.Err() when ctx is cancelled.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// Logger defines the logging interface used by the irrigation package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// SystemClock is the wall clock in a fixed location.
type SystemClock struct {
	Location *time.Location
}

// Now returns the current time in the clock's location.
func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// Sleep blocks for d or until ctx is cancelled.
func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MultiNotifier fans attributes out to several notifiers.
type MultiNotifier []Notifier

// Publish implements Notifier.
func (m MultiNotifier) Publish(programID string, attrs Attributes) {
	for _, n := range m {
		if n != nil {
			n.Publish(programID, attrs)
		}
	}
}

// MultiObserver fans run events out to several observers.
type MultiObserver []RunObserver

func (m MultiObserver) RunStarted(run Run) {
	for _, o := range m {
		o.RunStarted(run)
	}
}

func (m MultiObserver) ZoneSkipped(programID, zone string, reason SkipReason) {
	for _, o := range m {
		o.ZoneSkipped(programID, zone, reason)
	}
}

func (m MultiObserver) ZoneWatered(programID, zone string, minutes int, repeats int) {
	for _, o := range m {
		o.ZoneWatered(programID, zone, minutes, repeats)
	}
}

func (m MultiObserver) RunFinished(run Run) {
	for _, o := range m {
		o.RunFinished(run)
	}
}

type noopObserver struct{}

func (noopObserver) RunStarted(Run)                         {}
func (noopObserver) ZoneSkipped(string, string, SkipReason) {}
func (noopObserver) ZoneWatered(string, string, int, int)   {}
func (noopObserver) RunFinished(Run)                        {}
