package irrigation

import (
	"context"
	"reflect"
	"testing"
)

// ─── Timing Scenarios ───────────────────────────────────────────────────────

func TestProgram_SingleZoneCycle(t *testing.T) {
	h := newHarness()
	cfg := testProgram("front", h.zone("lawn", "10", "0", "1"))
	p := NewProgram(cfg, h.deps(), nil, testNow.AddDate(0, 0, -10))

	if !p.Run(context.Background(), false) {
		t.Fatal("Run() = false, want true")
	}

	if got := h.notifier.maxRemaining(); got != 600 {
		t.Errorf("remaining seconds at start = %d, want 600", got)
	}
	if got, want := h.actuators.eventsFor("switch.lawn"), []bool{true, false}; !reflect.DeepEqual(got, want) {
		t.Errorf("actuator commands = %v, want %v", got, want)
	}
	// One grace tick plus 600 countdown ticks.
	if got := h.clock.sleepCount(); got != 601 {
		t.Errorf("ticks = %d, want 601", got)
	}
	if got := p.Attributes().RemainingSeconds; got != 0 {
		t.Errorf("remaining after completion = %d, want 0", got)
	}
}

func TestProgram_WaterWaitRepeat(t *testing.T) {
	h := newHarness()
	cfg := testProgram("front", h.zone("lawn", "5", "2", "3"))
	p := NewProgram(cfg, h.deps(), nil, testNow.AddDate(0, 0, -10))

	p.Run(context.Background(), false)

	if got := h.notifier.maxRemaining(); got != 1140 {
		t.Errorf("remaining seconds at start = %d, want 1140", got)
	}
	want := []bool{true, false, true, false, true, false}
	if got := h.actuators.eventsFor("switch.lawn"); !reflect.DeepEqual(got, want) {
		t.Errorf("actuator commands = %v, want %v", got, want)
	}
	// grace + 3 waters of 300 + 2 waits of 120; no wait after the last repeat.
	if got := h.clock.sleepCount(); got != 1+900+240 {
		t.Errorf("ticks = %d, want %d", got, 1+900+240)
	}
}

func TestProgram_WaitIconShownBetweenRepeats(t *testing.T) {
	h := newHarness()
	cfg := testProgram("front", h.zone("lawn", "1", "1", "2"))
	p := NewProgram(cfg, h.deps(), nil, testNow)

	p.Run(context.Background(), false)

	var sawWait, sawZone bool
	for _, a := range h.notifier.all() {
		if a.Name == "Front Garden-lawn" && a.Icon == WaitIcon {
			sawWait = true
		}
		if a.Name == "Front Garden-lawn" && a.Icon == DefaultIcon {
			sawZone = true
		}
	}
	if !sawWait {
		t.Error("wait icon never published")
	}
	if !sawZone {
		t.Error("zone display never published")
	}
	final := p.Attributes()
	if final.Name != "Front Garden" || final.Icon != DefaultIcon {
		t.Errorf("display after run = %q/%q, want base name and icon", final.Name, final.Icon)
	}
}

func TestProgram_RepeatZeroBehavesAsOne(t *testing.T) {
	h := newHarness()
	cfg := testProgram("front", h.zone("lawn", "2", "3", "0"))
	p := NewProgram(cfg, h.deps(), nil, testNow)

	p.Run(context.Background(), false)

	if got, want := h.actuators.eventsFor("switch.lawn"), []bool{true, false}; !reflect.DeepEqual(got, want) {
		t.Errorf("actuator commands = %v, want %v", got, want)
	}
	if got := h.notifier.maxRemaining(); got != 120 {
		t.Errorf("remaining seconds = %d, want 120", got)
	}
}

func TestProgram_WaterAdjustmentRoundsUp(t *testing.T) {
	tests := []struct {
		name      string
		adjust    string
		remaining int
		commands  int
	}{
		{"fractional rounds up", "0.55", 6 * 60, 2},
		{"double", "2", 20 * 60, 2},
		{"zero skips the zone", "0", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			z := h.zone("lawn", "10", "", "")
			z.WaterAdjust = "input_number.lawn_adjust"
			h.values[z.WaterAdjust] = tt.adjust
			p := NewProgram(testProgram("front", z), h.deps(), nil, testNow)

			p.Run(context.Background(), false)

			if got := h.notifier.maxRemaining(); got != tt.remaining {
				t.Errorf("remaining seconds = %d, want %d", got, tt.remaining)
			}
			if got := len(h.actuators.eventsFor("switch.lawn")); got != tt.commands {
				t.Errorf("actuator commands = %d, want %d", got, tt.commands)
			}
		})
	}
}

func TestEffectiveWaterMinutes(t *testing.T) {
	tests := []struct {
		water, adjust float64
		want          int
	}{
		{10, 1, 10},
		{10, 0.55, 6},
		{7, 0.1, 1},
		{0.2, 1, 1},
		{10, 0, 0},
	}
	for _, tt := range tests {
		if got := EffectiveWaterMinutes(tt.water, tt.adjust); got != tt.want {
			t.Errorf("EffectiveWaterMinutes(%v, %v) = %d, want %d", tt.water, tt.adjust, got, tt.want)
		}
	}
}

// ─── Rain Skip ──────────────────────────────────────────────────────────────

func rainZone(h *harness, raining, ignore string) ZoneConfig {
	z := h.zone("lawn", "1", "", "")
	z.RainSensor = "binary_sensor.rain"
	h.values[z.RainSensor] = raining
	if ignore != "" {
		z.IgnoreRainSensor = "input_boolean.ignore_rain"
		h.values[z.IgnoreRainSensor] = ignore
	}
	return z
}

func TestProgram_RainSkip(t *testing.T) {
	tests := []struct {
		name    string
		raining string
		ignore  string
		manual  bool
		skipped bool
	}{
		{"raining skips", "on", "", false, true},
		{"raining with ignore off skips", "on", "off", false, true},
		{"ignore flag waters", "on", "on", false, false},
		{"manual bypasses sensor", "on", "", true, false},
		{"dry waters", "off", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			p := NewProgram(testProgram("front", rainZone(h, tt.raining, tt.ignore)), h.deps(), nil, testNow)

			p.Run(context.Background(), tt.manual)

			cmds := h.actuators.eventsFor("switch.lawn")
			if tt.skipped && len(cmds) != 0 {
				t.Errorf("actuator commands = %v, want none", cmds)
			}
			if !tt.skipped && len(cmds) != 2 {
				t.Errorf("actuator commands = %v, want on/off", cmds)
			}
		})
	}
}

func TestProgram_RainSkipShowsIndicatorThenNextZone(t *testing.T) {
	h := newHarness()
	wet := rainZone(h, "on", "")
	dry := h.zone("bed", "1", "", "")
	p := NewProgram(testProgram("front", wet, dry), h.deps(), nil, testNow)

	p.Run(context.Background(), false)

	var sawRain bool
	for _, a := range h.notifier.all() {
		if a.Name == "Front Garden-lawn" && a.Icon == RainIcon {
			sawRain = true
		}
	}
	if !sawRain {
		t.Error("rain indicator never published")
	}
	if got := h.actuators.eventsFor("switch.lawn"); len(got) != 0 {
		t.Errorf("rain zone commands = %v, want none", got)
	}
	if got := h.actuators.eventsFor("switch.bed"); len(got) != 2 {
		t.Errorf("next zone commands = %v, want on/off", got)
	}
	// grace + 5 rain ticks + 60 water ticks
	if got := h.clock.sleepCount(); got != 66 {
		t.Errorf("ticks = %d, want 66", got)
	}
	if len(h.observer.skipped) != 1 || h.observer.skipped[0] != SkipRain {
		t.Errorf("skipped = %v, want [rain]", h.observer.skipped)
	}
}

func TestProgram_StopDuringRainPauseAborts(t *testing.T) {
	h := newHarness()
	wet := rainZone(h, "on", "")
	dry := h.zone("bed", "1", "", "")
	p := NewProgram(testProgram("front", wet, dry), h.deps(), nil, testNow)

	h.clock.onSleep = func(n int) {
		if n == 3 {
			p.Stop(context.Background())
		}
	}
	p.Run(context.Background(), false)

	if got := h.actuators.eventsFor("switch.bed"); len(got) != 0 {
		t.Errorf("next zone commands = %v, want none after stop", got)
	}
}

// ─── Missing References ─────────────────────────────────────────────────────

func TestProgram_MissingWaterSkipsZone(t *testing.T) {
	h := newHarness()
	broken := ZoneConfig{Actuator: "switch.broken", Name: "broken", Water: "input_number.nowhere"}
	ok := h.zone("bed", "1", "", "")
	p := NewProgram(testProgram("front", broken, ok), h.deps(), nil, testNow)

	p.Run(context.Background(), false)

	if got := h.actuators.eventsFor("switch.broken"); len(got) != 0 {
		t.Errorf("broken zone commands = %v, want none", got)
	}
	if got := h.actuators.eventsFor("switch.bed"); len(got) != 2 {
		t.Errorf("next zone commands = %v, want on/off", got)
	}
}

func TestProgram_MissingOptionalValuesUseDefaults(t *testing.T) {
	h := newHarness()
	z := h.zone("lawn", "1", "", "")
	z.WaterAdjust = "input_number.missing_adjust"
	z.Wait = "input_number.missing_wait"
	z.Repeat = "input_number.missing_repeat"
	z.RainSensor = "binary_sensor.missing"
	p := NewProgram(testProgram("front", z), h.deps(), nil, testNow)

	p.Run(context.Background(), false)

	if got, want := h.actuators.eventsFor("switch.lawn"), []bool{true, false}; !reflect.DeepEqual(got, want) {
		t.Errorf("actuator commands = %v, want %v", got, want)
	}
	if got := h.notifier.maxRemaining(); got != 60 {
		t.Errorf("remaining seconds = %d, want 60", got)
	}
}

// ─── Stop ───────────────────────────────────────────────────────────────────

func TestProgram_StopMidWater(t *testing.T) {
	h := newHarness()
	lastRun := StartOfDay(testNow).AddDate(0, 0, -4)
	first := h.zone("lawn", "10", "", "")
	second := h.zone("bed", "10", "", "")
	p := NewProgram(testProgram("front", first, second), h.deps(), nil, lastRun)

	var remainingAtStop int
	h.clock.onSleep = func(n int) {
		if n == 31 {
			p.Stop(context.Background())
			remainingAtStop = p.Attributes().RemainingSeconds
		}
	}
	p.Run(context.Background(), false)

	if got, want := h.actuators.eventsFor("switch.lawn"), []bool{true, false}; !reflect.DeepEqual(got, want) {
		t.Errorf("lawn commands = %v, want %v", got, want)
	}
	if got := h.actuators.eventsFor("switch.bed"); len(got) != 0 {
		t.Errorf("bed commands = %v, want none", got)
	}
	if remainingAtStop != 570 {
		t.Errorf("remaining at stop = %d, want 570", remainingAtStop)
	}
	if got := p.Attributes().RemainingSeconds; got != remainingAtStop {
		t.Errorf("remaining after stop = %d, want frozen at %d", got, remainingAtStop)
	}
	if !p.LastRunDate().Equal(lastRun) {
		t.Errorf("last run = %v, want unchanged %v", p.LastRunDate(), lastRun)
	}
	if h.store.saveCount() != 0 {
		t.Errorf("last run saved %d times, want 0", h.store.saveCount())
	}
	if p.Running() {
		t.Error("program still running after stop")
	}
	runs := h.store.allRuns()
	if len(runs) != 1 || runs[0].Status != RunStatusStopped {
		t.Errorf("runs = %+v, want one stopped run", runs)
	}
}

func TestProgram_StopSweepsEveryZone(t *testing.T) {
	h := newHarness()
	p := NewProgram(testProgram("front",
		h.zone("lawn", "1", "", ""),
		h.zone("bed", "1", "", ""),
		h.zone("hedge", "1", "", ""),
	), h.deps(), nil, testNow)
	h.actuators.preset("switch.lawn", true)
	h.actuators.preset("switch.hedge", true)

	p.Stop(context.Background())

	want := []actuatorEvent{{Ref: "switch.lawn", On: false}, {Ref: "switch.hedge", On: false}}
	if got := h.actuators.getEvents(); !reflect.DeepEqual(got, want) {
		t.Errorf("commands = %v, want %v", got, want)
	}
	if p.Attributes().IsOn {
		t.Error("is_on = true after stop")
	}
}

func TestProgram_StopIsIdempotent(t *testing.T) {
	h := newHarness()
	p := NewProgram(testProgram("front", h.zone("lawn", "1", "", "")), h.deps(), nil, testNow)

	p.Stop(context.Background())
	p.Stop(context.Background())

	if got := h.actuators.getEvents(); len(got) != 0 {
		t.Errorf("commands = %v, want none", got)
	}
	if p.Running() {
		t.Error("idle program reports running")
	}

	// A stale stop request must not abort the next run.
	p.Run(context.Background(), true)
	if got := h.actuators.eventsFor("switch.lawn"); len(got) != 2 {
		t.Errorf("commands after stale stop = %v, want on/off", got)
	}
}

func TestProgram_ContextCancelActsAsStop(t *testing.T) {
	h := newHarness()
	lastRun := StartOfDay(testNow).AddDate(0, 0, -4)
	p := NewProgram(testProgram("front", h.zone("lawn", "10", "", "")), h.deps(), nil, lastRun)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.clock.onSleep = func(n int) {
		if n == 10 {
			cancel()
		}
	}
	p.Run(ctx, false)

	if got, want := h.actuators.eventsFor("switch.lawn"), []bool{true, false}; !reflect.DeepEqual(got, want) {
		t.Errorf("commands = %v, want %v", got, want)
	}
	if !p.LastRunDate().Equal(lastRun) {
		t.Error("last run advanced after cancellation")
	}
}

// ─── Lifecycle ──────────────────────────────────────────────────────────────

func TestProgram_StartWhileRunningIsNoop(t *testing.T) {
	h := newHarness()
	p := NewProgram(testProgram("front", h.zone("lawn", "1", "", "")), h.deps(), nil, testNow)

	var second bool
	h.clock.onSleep = func(n int) {
		if n == 5 {
			second = p.Start(context.Background(), true)
		}
	}
	p.Run(context.Background(), false)

	if second {
		t.Error("Start() while running = true, want false")
	}
	if h.observer.started != 1 {
		t.Errorf("runs started = %d, want 1", h.observer.started)
	}
}

func TestProgram_StartRunsInBackground(t *testing.T) {
	h := newHarness()
	p := NewProgram(testProgram("front", h.zone("lawn", "1", "", "")), h.deps(), nil, testNow)

	if !p.Start(context.Background(), true) {
		t.Fatal("Start() = false, want true")
	}
	waitProgram(t, p)

	if p.Running() {
		t.Error("program still running after Wait")
	}
	if got := h.actuators.eventsFor("switch.lawn"); len(got) != 2 {
		t.Errorf("commands = %v, want on/off", got)
	}
}

func TestProgram_LastRunBookkeeping(t *testing.T) {
	lastRun := StartOfDay(testNow).AddDate(0, 0, -4)

	t.Run("automatic run advances to today", func(t *testing.T) {
		h := newHarness()
		p := NewProgram(testProgram("front", h.zone("lawn", "1", "", "")), h.deps(), nil, lastRun)

		p.Run(context.Background(), false)

		want := StartOfDay(h.clock.Now())
		if !p.LastRunDate().Equal(want) {
			t.Errorf("last run = %v, want %v", p.LastRunDate(), want)
		}
		if got := h.store.lastRuns["front"]; !got.Equal(want) {
			t.Errorf("persisted last run = %v, want %v", got, want)
		}
		if got := p.Attributes().LastRunDate; got != "2026-10-19" {
			t.Errorf("published last_ran = %q, want 2026-10-19", got)
		}
	})

	t.Run("manual run leaves it unchanged", func(t *testing.T) {
		h := newHarness()
		p := NewProgram(testProgram("front", h.zone("lawn", "1", "", "")), h.deps(), nil, lastRun)

		p.Run(context.Background(), true)

		if !p.LastRunDate().Equal(lastRun) {
			t.Errorf("last run = %v, want %v", p.LastRunDate(), lastRun)
		}
		if h.store.saveCount() != 0 {
			t.Error("manual run persisted a last run date")
		}
	})

	t.Run("triggered manually resets to true", func(t *testing.T) {
		h := newHarness()
		p := NewProgram(testProgram("front", h.zone("lawn", "1", "", "")), h.deps(), nil, lastRun)

		p.Run(context.Background(), false)

		if !p.State().TriggeredManually {
			t.Error("TriggeredManually = false after run, want true")
		}
	})
}

func TestProgram_BroadcastBeforeFirstZone(t *testing.T) {
	h := newHarness()
	b := &recordingBroadcaster{}
	p := NewProgram(testProgram("front", h.zone("lawn", "1", "", "")), h.deps(), b, testNow)

	var actuatorCallsAtGrace int
	h.clock.onSleep = func(n int) {
		if n == 1 {
			actuatorCallsAtGrace = len(h.actuators.getEvents())
		}
	}
	p.Run(context.Background(), false)

	if !reflect.DeepEqual(b.calls, []string{"front"}) {
		t.Errorf("broadcast calls = %v, want [front]", b.calls)
	}
	if actuatorCallsAtGrace != 0 {
		t.Errorf("actuator driven before grace tick: %d commands", actuatorCallsAtGrace)
	}
}

func TestProgram_RunRecord(t *testing.T) {
	h := newHarness()
	p := NewProgram(testProgram("front",
		h.zone("lawn", "1", "", ""),
		h.zone("bed", "0", "", ""),
	), h.deps(), nil, testNow)

	p.Run(context.Background(), true)

	runs := h.store.allRuns()
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	r := runs[0]
	if r.Status != RunStatusCompleted || r.Trigger != TriggerManual {
		t.Errorf("run status/trigger = %s/%s, want completed/manual", r.Status, r.Trigger)
	}
	if r.ZonesWatered != 1 || r.ZonesSkipped != 1 {
		t.Errorf("watered/skipped = %d/%d, want 1/1", r.ZonesWatered, r.ZonesSkipped)
	}
	if r.DurationMS == nil || *r.DurationMS != 61000 {
		t.Errorf("duration = %v, want 61000ms", r.DurationMS)
	}
}

func TestTitleCase(t *testing.T) {
	tests := map[string]string{
		"front garden": "Front Garden",
		"back_lawn":    "Back_Lawn",
		"VEGGIE patch": "Veggie Patch",
		"zone 2b":      "Zone 2B",
		"":             "",
	}
	for in, want := range tests {
		if got := TitleCase(in); got != want {
			t.Errorf("TitleCase(%q) = %q, want %q", in, got, want)
		}
	}
}
