package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nerrad567/gray-logic-irrigation/internal/irrigation"
)

func TestCollector_RunLifecycle(t *testing.T) {
	c := NewCollector()

	started := time.Date(2026, time.October, 19, 6, 30, 0, 0, time.UTC)
	run := irrigation.Run{ID: "r1", ProgramID: "front", Trigger: irrigation.TriggerSchedule, StartedAt: started}

	c.RunStarted(run)
	if got := testutil.ToFloat64(c.activeRuns); got != 1 {
		t.Errorf("active_runs = %v, want 1", got)
	}

	c.ZoneWatered("front", "Lawn", 10, 2)
	c.ZoneSkipped("front", "Beds", irrigation.SkipRain)

	done := started.Add(25 * time.Minute)
	ms := int((25 * time.Minute).Milliseconds())
	run.Status = irrigation.RunStatusCompleted
	run.CompletedAt = &done
	run.DurationMS = &ms
	c.RunFinished(run)

	if got := testutil.ToFloat64(c.runsStarted.WithLabelValues("front", "schedule")); got != 1 {
		t.Errorf("runs_started_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.runsFinished.WithLabelValues("front", "completed")); got != 1 {
		t.Errorf("runs_finished_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.activeRuns); got != 0 {
		t.Errorf("active_runs = %v, want 0", got)
	}
	if got := testutil.ToFloat64(c.waterMinutes.WithLabelValues("front", "Lawn")); got != 20 {
		t.Errorf("water_minutes_total = %v, want 20", got)
	}
	if got := testutil.ToFloat64(c.zonesSkipped.WithLabelValues("front", "Beds", "rain")); got != 1 {
		t.Errorf("zones_skipped_total = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(c.runDuration); got != 1 {
		t.Errorf("run_duration_seconds series = %d, want 1", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	c.RunStarted(irrigation.Run{ProgramID: "back", Trigger: irrigation.TriggerManual})

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`irrigation_runs_started_total{program="back",trigger="manual"} 1`,
		"irrigation_active_runs 1",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
