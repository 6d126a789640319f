package irrigation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// defaultLastRunAge is how far back an unknown last run date is placed, so
// frequency-based triggers can fire on the first matching day.
const defaultLastRunAge = 10

// Registry owns every registered program and implements Broadcaster.
//
// Runs started through the registry are bound to the registry's own
// lifetime rather than to the caller's context; Shutdown cancels them.
//
// All public methods are thread-safe.
type Registry struct {
	deps      Dependencies
	evaluator *TriggerEvaluator

	mu       sync.RWMutex // Protects programs and order
	programs map[string]*Program
	order    []string

	runCtx    context.Context //nolint:containedctx // lifetime of background runs
	cancelRun context.CancelFunc
}

// NewRegistry creates an empty registry.
func NewRegistry(deps Dependencies) *Registry {
	deps = deps.withDefaults()
	runCtx, cancel := context.WithCancel(context.Background())
	return &Registry{
		deps:      deps,
		evaluator: NewTriggerEvaluator(deps.Values, deps.Logger),
		programs:  make(map[string]*Program),
		runCtx:    runCtx,
		cancelRun: cancel,
	}
}

// Register validates cfg, restores its last run date and adds the program.
//
// Returns:
//   - error: nil on success, or:
//   - ErrInvalidProgram, ErrInvalidZone, ErrNoZones on validation failure
//   - ErrProgramExists if the ID is already registered
func (r *Registry) Register(ctx context.Context, cfg ProgramConfig) (*Program, error) {
	if err := ValidateProgram(&cfg); err != nil {
		return nil, err
	}

	r.mu.RLock()
	_, exists := r.programs[cfg.ID]
	r.mu.RUnlock()
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrProgramExists, cfg.ID)
	}

	lastRun := r.restoreLastRun(ctx, cfg.ID)
	p := NewProgram(cfg, r.deps, r, lastRun)

	r.mu.Lock()
	if _, exists = r.programs[cfg.ID]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrProgramExists, cfg.ID)
	}
	r.programs[cfg.ID] = p
	r.order = append(r.order, cfg.ID)
	r.mu.Unlock()

	r.deps.Logger.Info("irrigation program registered",
		"program_id", cfg.ID,
		"name", p.Name(),
		"zones", len(cfg.Zones),
		"last_ran", FormatDate(lastRun),
	)
	p.notify()
	return p, nil
}

// restoreLastRun loads the persisted last run date, defaulting to
// defaultLastRunAge days before today.
func (r *Registry) restoreLastRun(ctx context.Context, id string) time.Time {
	fallback := StartOfDay(r.deps.Clock.Now()).AddDate(0, 0, -defaultLastRunAge)
	if r.deps.Store == nil {
		return fallback
	}
	lastRun, err := r.deps.Store.LoadLastRun(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrProgramNotFound) {
			r.deps.Logger.Warn("failed to restore last run date", "program_id", id, "error", err)
		}
		return fallback
	}
	return lastRun
}

// Unregister stops and removes a program.
func (r *Registry) Unregister(ctx context.Context, id string) error {
	r.mu.Lock()
	p, ok := r.programs[id]
	if ok {
		delete(r.programs, id)
		for i, pid := range r.order {
			if pid == id {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.mu.Unlock()

	if !ok {
		return ErrProgramNotFound
	}
	p.Stop(ctx)
	r.deps.Logger.Info("irrigation program unregistered", "program_id", id)
	return nil
}

// Get returns a registered program.
func (r *Registry) Get(id string) (*Program, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.programs[id]
	if !ok {
		return nil, ErrProgramNotFound
	}
	return p, nil
}

// List returns every program in registration order.
func (r *Registry) List() []*Program {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Program, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.programs[id])
	}
	return out
}

// Count returns the number of registered programs.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.programs)
}

// Start begins a run of the program. It reports false when the program was
// already running.
func (r *Registry) Start(id string, manual bool) (bool, error) {
	p, err := r.Get(id)
	if err != nil {
		return false, err
	}
	return p.Start(r.runCtx, manual), nil
}

// Stop requests a stop of the program.
func (r *Registry) Stop(ctx context.Context, id string) error {
	p, err := r.Get(id)
	if err != nil {
		return err
	}
	p.Stop(ctx)
	return nil
}

// StopAll stops every program.
func (r *Registry) StopAll(ctx context.Context) {
	r.StopAllExcept(ctx, "")
}

// StopAllExcept stops every program other than programID.
func (r *Registry) StopAllExcept(ctx context.Context, programID string) {
	for _, p := range r.List() {
		if p.ID() == programID {
			continue
		}
		p.Stop(ctx)
	}
}

// Tick evaluates the trigger of every idle program at now and starts the
// ones that match. It returns the IDs of the programs started.
func (r *Registry) Tick(ctx context.Context, now time.Time) []string {
	var started []string
	for _, p := range r.List() {
		if p.Running() {
			continue
		}
		if !r.evaluator.ShouldStart(ctx, now, p.Config(), p.LastRunDate()) {
			continue
		}
		if p.Start(r.runCtx, false) {
			started = append(started, p.ID())
		}
	}
	return started
}

// CheckReferences looks up every configured reference once and logs a
// warning for each one that cannot be resolved. It returns the missing
// references.
func (r *Registry) CheckReferences(ctx context.Context) []string {
	var missing []string
	check := func(programID, ref string) {
		if _, err := r.deps.Values.Read(ctx, ref); err != nil {
			r.deps.Logger.Warn("configured reference not found, check your configuration",
				"program_id", programID, "ref", ref)
			missing = append(missing, ref)
		}
	}

	for _, p := range r.List() {
		cfg := p.Config()
		for _, ref := range cfg.TriggerReferences() {
			check(cfg.ID, ref)
		}
		for _, z := range cfg.Zones {
			check(cfg.ID, z.Actuator)
			for _, ref := range z.References() {
				check(cfg.ID, ref)
			}
		}
	}
	return missing
}

// Shutdown cancels every running program and waits for them to finish.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.cancelRun()
	for _, p := range r.List() {
		if err := p.Wait(ctx); err != nil {
			return fmt.Errorf("waiting for program %s: %w", p.ID(), err)
		}
	}
	return nil
}

// Command actions accepted by HandleCommand.
const (
	CommandStart = "start"
	CommandStop  = "stop"
)

// commandPayload is the body of a program command message.
type commandPayload struct {
	Command string `json:"command"`
}

// stopProgramsPayload is the body of a stop_programs message.
type stopProgramsPayload struct {
	Ignore string `json:"ignore"`
}

// HandleCommand executes a command message.
//
// Topics:
//   - .../irrigation/{id}/command with {"command": "start"|"stop"}
//   - .../irrigation/stop_programs with {"ignore": "<program id>"}
//
// A start from a command is a manual run.
func (r *Registry) HandleCommand(ctx context.Context, topic string, payload []byte) error {
	parts := strings.Split(topic, "/")
	if len(parts) == 0 {
		return fmt.Errorf("%w: empty topic", ErrInvalidProgram)
	}

	if parts[len(parts)-1] == "stop_programs" {
		var msg stopProgramsPayload
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &msg); err != nil {
				return fmt.Errorf("parsing stop_programs payload: %w", err)
			}
		}
		r.deps.Logger.Info("stopping programs", "ignore", msg.Ignore)
		r.StopAllExcept(ctx, msg.Ignore)
		return nil
	}

	if len(parts) < 2 || parts[len(parts)-1] != "command" {
		return fmt.Errorf("%w: unrecognised command topic %q", ErrInvalidProgram, topic)
	}
	id := parts[len(parts)-2]

	var msg commandPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("parsing command payload: %w", err)
	}

	switch msg.Command {
	case CommandStart:
		started, err := r.Start(id, true)
		if err != nil {
			return err
		}
		if !started {
			r.deps.Logger.Debug("program already running", "program_id", id)
		}
		return nil
	case CommandStop:
		return r.Stop(ctx, id)
	default:
		return fmt.Errorf("%w: unknown command %q", ErrInvalidProgram, msg.Command)
	}
}
