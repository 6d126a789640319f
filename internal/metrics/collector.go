// Package metrics exposes irrigation run telemetry as Prometheus metrics.
//
// Collector implements irrigation.RunObserver and owns a private registry,
// so the controller's metrics never collide with the process defaults.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/gray-logic-irrigation/internal/irrigation"
)

// Namespace prefixes every metric name.
const Namespace = "irrigation"

// runDurationBuckets cover a short manual test run up to a long multi-zone soak (seconds).
var runDurationBuckets = []float64{30, 60, 300, 600, 1200, 1800, 3600, 7200, 14400}

// Collector records irrigation run events.
type Collector struct {
	registry *prometheus.Registry

	runsStarted  *prometheus.CounterVec
	runsFinished *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	activeRuns   prometheus.Gauge

	zonesWatered *prometheus.CounterVec
	zonesSkipped *prometheus.CounterVec
	waterMinutes *prometheus.CounterVec
}

// NewCollector creates a Collector with Go runtime and process collectors registered.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		runsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "runs_started_total",
				Help:      "Total number of program runs started",
			},
			[]string{"program", "trigger"},
		),
		runsFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "runs_finished_total",
				Help:      "Total number of program runs finished, by final status",
			},
			[]string{"program", "status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall-clock duration of program runs",
				Buckets:   runDurationBuckets,
			},
			[]string{"program"},
		),
		activeRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "active_runs",
				Help:      "Number of program runs in progress",
			},
		),
		zonesWatered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "zones_watered_total",
				Help:      "Total number of zone waterings completed",
			},
			[]string{"program", "zone"},
		),
		zonesSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "zones_skipped_total",
				Help:      "Total number of zones skipped, by reason",
			},
			[]string{"program", "zone", "reason"},
		),
		waterMinutes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "water_minutes_total",
				Help:      "Total valve-open minutes, including repeats",
			},
			[]string{"program", "zone"},
		),
	}

	c.registry.MustRegister(
		c.runsStarted,
		c.runsFinished,
		c.runDuration,
		c.activeRuns,
		c.zonesWatered,
		c.zonesSkipped,
		c.waterMinutes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Registry returns the underlying registry for callers that add their own collectors.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler serving the registry in the exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ─── irrigation.RunObserver ────────────────────────────────────────

// RunStarted counts the run and marks it active.
func (c *Collector) RunStarted(run irrigation.Run) {
	c.runsStarted.WithLabelValues(run.ProgramID, string(run.Trigger)).Inc()
	c.activeRuns.Inc()
}

// ZoneSkipped counts a zone passed over without watering.
func (c *Collector) ZoneSkipped(programID, zone string, reason irrigation.SkipReason) {
	c.zonesSkipped.WithLabelValues(programID, zone, string(reason)).Inc()
}

// ZoneWatered counts a completed zone and its total valve-open minutes.
func (c *Collector) ZoneWatered(programID, zone string, minutes int, repeats int) {
	c.zonesWatered.WithLabelValues(programID, zone).Inc()
	if repeats < 1 {
		repeats = 1
	}
	c.waterMinutes.WithLabelValues(programID, zone).Add(float64(minutes * repeats))
}

// RunFinished counts the outcome and observes the run duration.
func (c *Collector) RunFinished(run irrigation.Run) {
	c.runsFinished.WithLabelValues(run.ProgramID, string(run.Status)).Inc()
	c.activeRuns.Dec()

	switch {
	case run.DurationMS != nil:
		c.runDuration.WithLabelValues(run.ProgramID).Observe(float64(*run.DurationMS) / 1000)
	case run.CompletedAt != nil:
		c.runDuration.WithLabelValues(run.ProgramID).Observe(run.CompletedAt.Sub(run.StartedAt).Seconds())
	}
}

var _ irrigation.RunObserver = (*Collector)(nil)
