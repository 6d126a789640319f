package irrigation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// ─── Fake Clock ─────────────────────────────────────────────────────────────

// fakeClock advances virtual time on every Sleep so countdowns run instantly.
// onSleep, when set, is called after each sleep with the 1-based sleep count.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	sleeps  int
	onSleep func(n int)
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.sleeps++
	n := c.sleeps
	hook := c.onSleep
	c.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return ctx.Err()
}

func (c *fakeClock) sleepCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sleeps
}

// ─── Mock Actuators ─────────────────────────────────────────────────────────

type actuatorEvent struct {
	Ref string
	On  bool
}

// mockActuators keeps switch states in memory and records every command.
type mockActuators struct {
	mu     sync.Mutex
	states map[string]bool
	events []actuatorEvent
	failOn string
}

func newMockActuators() *mockActuators {
	return &mockActuators{states: make(map[string]bool)}
}

func (m *mockActuators) IsOn(_ context.Context, ref string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[ref], nil
}

func (m *mockActuators) TurnOn(_ context.Context, ref string) error {
	return m.set(ref, true)
}

func (m *mockActuators) TurnOff(_ context.Context, ref string) error {
	return m.set(ref, false)
}

func (m *mockActuators) set(ref string, on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ref == m.failOn {
		return errors.New("actuator unavailable")
	}
	m.states[ref] = on
	m.events = append(m.events, actuatorEvent{Ref: ref, On: on})
	return nil
}

func (m *mockActuators) preset(ref string, on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[ref] = on
}

func (m *mockActuators) getEvents() []actuatorEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	cpy := make([]actuatorEvent, len(m.events))
	copy(cpy, m.events)
	return cpy
}

func (m *mockActuators) eventsFor(ref string) []bool {
	var out []bool
	for _, e := range m.getEvents() {
		if e.Ref == ref {
			out = append(out, e.On)
		}
	}
	return out
}

// ─── Mock Store ─────────────────────────────────────────────────────────────

// mockStore is an in-memory RestoreStore and RunLog.
type mockStore struct {
	mu       sync.Mutex
	lastRuns map[string]time.Time
	saves    int
	runs     map[string]Run
	loadErr  error
}

func newMockStore() *mockStore {
	return &mockStore{
		lastRuns: make(map[string]time.Time),
		runs:     make(map[string]Run),
	}
}

func (m *mockStore) LoadLastRun(_ context.Context, id string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return time.Time{}, m.loadErr
	}
	t, ok := m.lastRuns[id]
	if !ok {
		return time.Time{}, ErrProgramNotFound
	}
	return t, nil
}

func (m *mockStore) SaveLastRun(_ context.Context, id string, date time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRuns[id] = date
	m.saves++
	return nil
}

func (m *mockStore) CreateRun(_ context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = *run
	return nil
}

func (m *mockStore) UpdateRun(_ context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; !ok {
		return ErrRunNotFound
	}
	m.runs[run.ID] = *run
	return nil
}

func (m *mockStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *mockStore) allRuns() []Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Run, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, r)
	}
	return out
}

// ─── Recording Notifier ─────────────────────────────────────────────────────

type recordingNotifier struct {
	mu    sync.Mutex
	attrs []Attributes
}

func (n *recordingNotifier) Publish(_ string, attrs Attributes) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.attrs = append(n.attrs, attrs)
}

func (n *recordingNotifier) all() []Attributes {
	n.mu.Lock()
	defer n.mu.Unlock()
	cpy := make([]Attributes, len(n.attrs))
	copy(cpy, n.attrs)
	return cpy
}

func (n *recordingNotifier) maxRemaining() int {
	best := 0
	for _, a := range n.all() {
		if a.RemainingSeconds > best {
			best = a.RemainingSeconds
		}
	}
	return best
}

// ─── Recording Observer ─────────────────────────────────────────────────────

type recordingObserver struct {
	mu       sync.Mutex
	started  int
	skipped  []SkipReason
	watered  []string
	finished []Run
}

func (o *recordingObserver) RunStarted(Run) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started++
}

func (o *recordingObserver) ZoneSkipped(_, _ string, reason SkipReason) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.skipped = append(o.skipped, reason)
}

func (o *recordingObserver) ZoneWatered(_, zone string, _ int, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.watered = append(o.watered, zone)
}

func (o *recordingObserver) RunFinished(run Run) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, run)
}

// ─── Recording Broadcaster ──────────────────────────────────────────────────

type recordingBroadcaster struct {
	mu    sync.Mutex
	calls []string
}

func (b *recordingBroadcaster) StopAllExcept(_ context.Context, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, id)
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// testNow is Monday 2026-10-19 06:30 local time.
var testNow = time.Date(2026, time.October, 19, 6, 30, 0, 0, time.Local)

type harness struct {
	values    MapValueSource
	actuators *mockActuators
	store     *mockStore
	notifier  *recordingNotifier
	observer  *recordingObserver
	clock     *fakeClock
}

func newHarness() *harness {
	return &harness{
		values:    MapValueSource{},
		actuators: newMockActuators(),
		store:     newMockStore(),
		notifier:  &recordingNotifier{},
		observer:  &recordingObserver{},
		clock:     newFakeClock(testNow),
	}
}

func (h *harness) deps() Dependencies {
	return Dependencies{
		Values:    h.values,
		Actuators: h.actuators,
		Store:     h.store,
		Runs:      h.store,
		Notifier:  h.notifier,
		Observer:  h.observer,
		Clock:     h.clock,
	}
}

// zone builds a zone whose references are named after the zone.
func (h *harness) zone(name string, water, wait, repeat string) ZoneConfig {
	z := ZoneConfig{
		Actuator: "switch." + name,
		Name:     name,
		Water:    "input_number." + name + "_water",
	}
	h.values[z.Water] = water
	if wait != "" {
		z.Wait = "input_number." + name + "_wait"
		h.values[z.Wait] = wait
	}
	if repeat != "" {
		z.Repeat = "input_number." + name + "_repeat"
		h.values[z.Repeat] = repeat
	}
	return z
}

func testProgram(id string, zones ...ZoneConfig) ProgramConfig {
	return ProgramConfig{
		ID:        id,
		Name:      "front garden",
		StartTime: "input_datetime." + id + "_start",
		Zones:     zones,
	}
}

func waitProgram(t *testing.T, p *Program) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Wait(ctx); err != nil {
		t.Fatalf("program %s did not finish: %v", p.ID(), err)
	}
}
