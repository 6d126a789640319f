package main

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-irrigation/internal/entity"
	"github.com/nerrad567/gray-logic-irrigation/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-irrigation/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-irrigation/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-irrigation/internal/irrigation"
)

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
}

type fakeActuators struct {
	mu    sync.Mutex
	state map[string]bool
	offs  []string
}

func (f *fakeActuators) IsOn(_ context.Context, ref string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state[ref], nil
}

func (f *fakeActuators) TurnOn(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state[ref] = true
	return nil
}

func (f *fakeActuators) TurnOff(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state[ref] = false
	f.offs = append(f.offs, ref)
	return nil
}

func testRegistry(t *testing.T, values irrigation.MapValueSource, actuators *fakeActuators) *irrigation.Registry {
	t.Helper()

	reg := irrigation.NewRegistry(irrigation.Dependencies{
		Values:    values,
		Actuators: actuators,
		Tick:      time.Millisecond,
	})
	_, err := reg.Register(context.Background(), irrigation.ProgramConfig{
		ID:        "front",
		StartTime: "input_datetime.front_start",
		Zones: []irrigation.ZoneConfig{
			{Actuator: "switch.lawn", Name: "Lawn", Water: "input_number.lawn_water"},
		},
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		reg.Shutdown(ctx) //nolint:errcheck // test cleanup
	})
	return reg
}

// ─── run() ─────────────────────────────────────────────────────────

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("IRRIGATION_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

func TestRun_MissingProgramsFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
site:
  id: test-site
  timezone: UTC
database:
  path: "` + filepath.Join(tmpDir, "test.db") + `"
irrigation:
  programs_file: "` + filepath.Join(tmpDir, "missing.yaml") + `"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("IRRIGATION_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail when the programs file is missing")
	}
}

// ─── MQTT handlers ─────────────────────────────────────────────────

func TestEntityStateHandler(t *testing.T) {
	store := entity.NewStore()
	handler := entityStateHandler(store, testLogger())

	if err := handler("graylogic/core/entity/binary_sensor.rain/state", []byte(`{"state":"on"}`)); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	v, err := store.Read(context.Background(), "binary_sensor.rain")
	if err != nil || !v.IsOn() {
		t.Errorf("Read() = %v, %v; want on", v, err)
	}

	if err := handler("graylogic/core/something/else", []byte(`"on"`)); err != nil {
		t.Errorf("unexpected topic error = %v, want nil", err)
	}
	if len(store.IDs()) != 1 {
		t.Errorf("store ids = %v, want only the rain sensor", store.IDs())
	}
}

func TestCommandHandler(t *testing.T) {
	actuators := &fakeActuators{state: map[string]bool{}}
	reg := testRegistry(t, irrigation.MapValueSource{
		"input_datetime.front_start": "06:00",
		"input_number.lawn_water":    "10",
	}, actuators)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := commandHandler(ctx, reg, testLogger())

	if err := handler("graylogic/core/irrigation/front/command", []byte(`{"command":"start"}`)); err != nil {
		t.Fatalf("start command error = %v", err)
	}
	p, _ := reg.Get("front")
	if !p.Running() {
		t.Fatal("program not running after start command")
	}

	if err := handler("graylogic/core/irrigation/stop_programs", []byte(`{}`)); err != nil {
		t.Fatalf("stop_programs error = %v", err)
	}
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	if err := p.Wait(waitCtx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	if err := handler("graylogic/core/irrigation/front/bogus", []byte(`{}`)); err == nil {
		t.Error("unknown topic should return an error")
	}
}

// ─── Startup ───────────────────────────────────────────────────────

func TestStartupSweep(t *testing.T) {
	actuators := &fakeActuators{state: map[string]bool{"switch.lawn": true}}
	reg := testRegistry(t, irrigation.MapValueSource{
		"input_datetime.front_start": "06:00",
		"switch.lawn":                "on",
	}, actuators)

	startupSweep(context.Background(), config.IrrigationConfig{StopOnStartup: true}, reg, testLogger())

	if on, _ := actuators.IsOn(context.Background(), "switch.lawn"); on {
		t.Error("valve left open after startup sweep")
	}
	if len(actuators.offs) != 1 {
		t.Errorf("TurnOff calls = %v, want one", actuators.offs)
	}
}

func TestStartupSweep_Disabled(t *testing.T) {
	actuators := &fakeActuators{state: map[string]bool{"switch.lawn": true}}
	reg := testRegistry(t, irrigation.MapValueSource{}, actuators)

	startupSweep(context.Background(), config.IrrigationConfig{StopOnStartup: false}, reg, testLogger())

	if len(actuators.offs) != 0 {
		t.Errorf("TurnOff calls = %v, want none", actuators.offs)
	}
}

// ─── History observer ──────────────────────────────────────────────

type fakeHistory struct {
	watered []string
	skipped []string
	runs    []influxdb.RunSummary
}

func (f *fakeHistory) WriteZoneWatered(_, zone string, _, _ int) {
	f.watered = append(f.watered, zone)
}

func (f *fakeHistory) WriteZoneSkipped(_, zone, reason string) {
	f.skipped = append(f.skipped, zone+":"+reason)
}

func (f *fakeHistory) WriteRun(run influxdb.RunSummary) {
	f.runs = append(f.runs, run)
}

func TestHistoryObserver(t *testing.T) {
	h := &fakeHistory{}
	obs := historyObserver{history: h}

	started := time.Date(2026, time.October, 19, 6, 0, 0, 0, time.UTC)
	completed := started.Add(12 * time.Minute)
	ms := 720000
	run := irrigation.Run{
		ProgramID:    "front",
		Trigger:      irrigation.TriggerSchedule,
		Status:       irrigation.RunStatusCompleted,
		StartedAt:    started,
		CompletedAt:  &completed,
		ZonesWatered: 1,
		ZonesSkipped: 1,
		DurationMS:   &ms,
	}

	obs.RunStarted(run)
	obs.ZoneWatered("front", "Lawn", 10, 1)
	obs.ZoneSkipped("front", "Beds", irrigation.SkipRain)
	obs.RunFinished(run)

	if len(h.watered) != 1 || h.watered[0] != "Lawn" {
		t.Errorf("watered = %v", h.watered)
	}
	if len(h.skipped) != 1 || h.skipped[0] != "Beds:rain" {
		t.Errorf("skipped = %v", h.skipped)
	}
	if len(h.runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(h.runs))
	}
	got := h.runs[0]
	if got.Duration != 12*time.Minute || !got.FinishedAt.Equal(completed) || got.Status != "completed" || got.Trigger != "schedule" {
		t.Errorf("run summary = %+v", got)
	}
}
