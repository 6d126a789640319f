package irrigation

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode"
)

// DefaultTick is the countdown step and the start-up grace period.
const DefaultTick = time.Second

// Dependencies are the collaborators shared by every program of a registry.
// Values, Actuators and Store are required; the rest may be nil.
type Dependencies struct {
	Values    ValueSource
	Actuators ActuatorPort
	Store     RestoreStore
	Runs      RunLog
	Notifier  Notifier
	Observer  RunObserver
	Clock     Clock
	Tick      time.Duration
	Logger    Logger
}

// withDefaults fills the optional collaborators with no-op implementations.
func (d Dependencies) withDefaults() Dependencies {
	if d.Notifier == nil {
		d.Notifier = MultiNotifier(nil)
	}
	if d.Observer == nil {
		d.Observer = noopObserver{}
	}
	if d.Clock == nil {
		d.Clock = SystemClock{}
	}
	if d.Tick <= 0 {
		d.Tick = DefaultTick
	}
	if d.Logger == nil {
		d.Logger = noopLogger{}
	}
	return d
}

// Program is the execution state machine of one irrigation program.
//
// States are Idle and Running. A stop request is a flag observed by the
// running task once per tick; it is never a separate state.
//
// Thread Safety: all methods are safe for concurrent use.
type Program struct {
	cfg  ProgramConfig
	name string
	icon string

	deps        Dependencies
	broadcaster Broadcaster
	sequencer   *ZoneSequencer

	mu    sync.Mutex // Protects state
	state RuntimeState

	done chan struct{} // closed when the current run finishes; nil when idle
}

// NewProgram creates an idle program. lastRun is the restored last run date.
// The broadcaster is asked to stop sibling programs before every run.
func NewProgram(cfg ProgramConfig, deps Dependencies, broadcaster Broadcaster, lastRun time.Time) *Program {
	deps = deps.withDefaults()

	name := cfg.Name
	if name == "" {
		name = cfg.ID
	}
	name = TitleCase(name)
	icon := cfg.Icon
	if icon == "" {
		icon = DefaultIcon
	}

	p := &Program{
		cfg:         cfg,
		name:        name,
		icon:        icon,
		deps:        deps,
		broadcaster: broadcaster,
		sequencer: &ZoneSequencer{
			values:    deps.Values,
			actuators: deps.Actuators,
			clock:     deps.Clock,
			tick:      deps.Tick,
			observer:  deps.Observer,
			logger:    deps.Logger,
		},
	}
	p.state = RuntimeState{
		TriggeredManually: true,
		LastRunDate:       lastRun,
		DisplayName:       name,
		DisplayIcon:       icon,
	}
	return p
}

// ID returns the program ID.
func (p *Program) ID() string { return p.cfg.ID }

// Name returns the title-cased display name.
func (p *Program) Name() string { return p.name }

// Config returns the program definition.
func (p *Program) Config() ProgramConfig { return p.cfg }

// Start begins a run in a new goroutine and reports whether it did.
// It is a no-op returning false when the program is already running.
func (p *Program) Start(ctx context.Context, manual bool) bool {
	if !p.claim(manual) {
		return false
	}
	go p.execute(ctx, manual)
	return true
}

// Run is Start without the goroutine: it blocks until the run finishes.
func (p *Program) Run(ctx context.Context, manual bool) bool {
	if !p.claim(manual) {
		return false
	}
	p.execute(ctx, manual)
	return true
}

// Stop requests the running task to stop and switches off every zone
// actuator that currently reads on. It is idempotent and does not wait for
// the run loop to observe the request.
func (p *Program) Stop(ctx context.Context) {
	p.mu.Lock()
	p.state.StopRequested = true
	p.mu.Unlock()

	for _, zone := range p.cfg.Zones {
		on, err := p.deps.Actuators.IsOn(ctx, zone.Actuator)
		if err != nil {
			p.deps.Logger.Warn("actuator state unavailable during stop",
				"program_id", p.cfg.ID, "actuator", zone.Actuator, "error", err)
			continue
		}
		if !on {
			continue
		}
		if err := p.deps.Actuators.TurnOff(ctx, zone.Actuator); err != nil {
			p.deps.Logger.Warn("actuator turn off failed during stop",
				"program_id", p.cfg.ID, "actuator", zone.Actuator, "error", err)
		}
	}

	p.mu.Lock()
	p.state.IsOn = false
	p.mu.Unlock()
	p.notify()
}

// Wait blocks until the current run, if any, has finished or ctx is done.
func (p *Program) Wait(ctx context.Context) error {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether a run is in progress.
func (p *Program) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Running
}

// LastRunDate returns the date of the last automatic run.
func (p *Program) LastRunDate() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.LastRunDate
}

// State returns a copy of the runtime state.
func (p *Program) State() RuntimeState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Attributes returns the externally visible state.
func (p *Program) Attributes() Attributes {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attributesLocked()
}

func (p *Program) attributesLocked() Attributes {
	return Attributes{
		ID:               p.cfg.ID,
		Name:             p.state.DisplayName,
		Icon:             p.state.DisplayIcon,
		IsOn:             p.state.IsOn,
		LastRunDate:      FormatDate(p.state.LastRunDate),
		RemainingSeconds: p.state.RemainingSeconds,
	}
}

// notify publishes the current attributes.
func (p *Program) notify() {
	p.deps.Notifier.Publish(p.cfg.ID, p.Attributes())
}

// claim moves the program from Idle to Running.
func (p *Program) claim(manual bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Running {
		return false
	}
	p.state.Running = true
	p.state.StopRequested = false
	p.state.TriggeredManually = manual
	p.state.IsOn = true
	p.state.RemainingSeconds = 0
	p.state.DisplayName = p.name
	p.state.DisplayIcon = p.icon
	p.done = make(chan struct{})
	return true
}

// execute runs every zone in order and then returns the program to Idle.
func (p *Program) execute(ctx context.Context, manual bool) {
	trigger := TriggerSchedule
	if manual {
		trigger = TriggerManual
	}
	run := &Run{
		ID:        GenerateID(),
		ProgramID: p.cfg.ID,
		Trigger:   trigger,
		Status:    RunStatusRunning,
		StartedAt: p.deps.Clock.Now(),
	}

	p.deps.Logger.Info("irrigation program started",
		"program_id", p.cfg.ID,
		"run_id", run.ID,
		"trigger", trigger,
		"zones", len(p.cfg.Zones),
	)
	p.notify()

	if p.deps.Runs != nil {
		if err := p.deps.Runs.CreateRun(ctx, run); err != nil {
			p.deps.Logger.Error("failed to create run record", "run_id", run.ID, "error", err)
		}
	}
	p.deps.Observer.RunStarted(*run)

	if p.broadcaster != nil {
		p.broadcaster.StopAllExcept(ctx, p.cfg.ID)
	}

	scope := &runScope{p: p, ctx: ctx}

	// Give sibling actuator-off commands one tick to land.
	_ = p.deps.Clock.Sleep(ctx, p.deps.Tick) //nolint:errcheck // cancellation is observed through stopped()

	for _, zone := range p.cfg.Zones {
		if scope.stopped() {
			break
		}
		out := p.sequencer.Run(ctx, p.cfg.ID, p.name, zone, scope, manual)
		switch {
		case out.Watered:
			run.ZonesWatered++
		case out.Skipped != "":
			run.ZonesSkipped++
		}
		if !out.Continue {
			break
		}
	}

	p.finish(ctx, run, manual, scope.stopped())
}

// finish records the outcome and resets the runtime state.
func (p *Program) finish(ctx context.Context, run *Run, manual, stopped bool) {
	now := p.deps.Clock.Now()

	p.mu.Lock()
	advance := !manual && !stopped
	if advance {
		p.state.LastRunDate = StartOfDay(now)
	}
	lastRun := p.state.LastRunDate
	p.state.Running = false
	p.state.StopRequested = false
	p.state.TriggeredManually = true
	p.state.IsOn = false
	p.state.DisplayName = p.name
	p.state.DisplayIcon = p.icon
	done := p.done
	p.done = nil
	p.mu.Unlock()

	// Persistence must not be lost to a cancelled run context.
	persistCtx := context.WithoutCancel(ctx)
	if advance {
		if err := p.deps.Store.SaveLastRun(persistCtx, p.cfg.ID, lastRun); err != nil {
			p.deps.Logger.Error("failed to persist last run date",
				"program_id", p.cfg.ID, "date", FormatDate(lastRun), "error", err)
		}
	}

	run.Status = RunStatusCompleted
	if stopped {
		run.Status = RunStatusStopped
	}
	run.CompletedAt = &now
	durationMS := int(now.Sub(run.StartedAt).Milliseconds())
	run.DurationMS = &durationMS

	if p.deps.Runs != nil {
		if err := p.deps.Runs.UpdateRun(persistCtx, run); err != nil {
			p.deps.Logger.Error("failed to update run record", "run_id", run.ID, "error", err)
		}
	}
	p.deps.Observer.RunFinished(*run)

	p.deps.Logger.Info("irrigation program finished",
		"program_id", p.cfg.ID,
		"run_id", run.ID,
		"status", run.Status,
		"zones_watered", run.ZonesWatered,
		"zones_skipped", run.ZonesSkipped,
		"duration_ms", durationMS,
	)
	p.notify()

	if done != nil {
		close(done)
	}
}

// runScope binds a program to the context of one run. A cancelled context
// reads as a stop request.
type runScope struct {
	p   *Program
	ctx context.Context
}

func (s *runScope) stopped() bool {
	if s.ctx.Err() != nil {
		return true
	}
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	return s.p.state.StopRequested
}

func (s *runScope) setRemaining(seconds int) {
	s.p.mu.Lock()
	s.p.state.RemainingSeconds = max(seconds, 0)
	s.p.mu.Unlock()
	s.p.notify()
}

func (s *runScope) tickRemaining() {
	s.p.mu.Lock()
	if s.p.state.RemainingSeconds > 0 {
		s.p.state.RemainingSeconds--
	}
	s.p.mu.Unlock()
	s.p.notify()
}

func (s *runScope) setDisplay(name, icon string) {
	s.p.mu.Lock()
	s.p.state.DisplayName = name
	s.p.state.DisplayIcon = icon
	s.p.mu.Unlock()
	s.p.notify()
}

func (s *runScope) restoreDisplay() {
	s.setDisplay(s.p.name, s.p.icon)
}

// TitleCase upper-cases the first letter of every word and lower-cases the rest.
func TitleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if prevLetter {
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(unicode.ToUpper(r))
		}
		prevLetter = unicode.IsLetter(r)
	}
	return b.String()
}
