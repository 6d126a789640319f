package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementZone = "irrigation_zone"
	MeasurementRun  = "irrigation_run"
)

// Zone outcomes recorded in the "outcome" tag of MeasurementZone.
const (
	OutcomeWatered = "watered"
	OutcomeSkipped = "skipped"
)

// RunSummary is one finished program run.
type RunSummary struct {
	ProgramID    string
	Trigger      string
	Status       string
	ZonesWatered int
	ZonesSkipped int
	Duration     time.Duration
	FinishedAt   time.Time
}

// WriteZoneWatered records a zone that completed its cycle.
//
// Fields: minutes (per repeat), repeats, total_minutes.
func (c *Client) WriteZoneWatered(programID, zone string, minutes, repeats int) {
	c.writePoint(MeasurementZone,
		map[string]string{
			"program_id": programID,
			"zone":       zone,
			"outcome":    OutcomeWatered,
		},
		map[string]interface{}{
			"minutes":       minutes,
			"repeats":       repeats,
			"total_minutes": minutes * repeats,
		},
		c.now(),
	)
}

// WriteZoneSkipped records a zone passed over, with the reason as a tag.
func (c *Client) WriteZoneSkipped(programID, zone, reason string) {
	c.writePoint(MeasurementZone,
		map[string]string{
			"program_id": programID,
			"zone":       zone,
			"outcome":    OutcomeSkipped,
			"reason":     reason,
		},
		map[string]interface{}{
			"count": 1,
		},
		c.now(),
	)
}

// WriteRun records a finished run at its completion time.
func (c *Client) WriteRun(run RunSummary) {
	at := run.FinishedAt
	if at.IsZero() {
		at = c.now()
	}
	c.writePoint(MeasurementRun,
		map[string]string{
			"program_id": run.ProgramID,
			"trigger":    run.Trigger,
			"status":     run.Status,
		},
		map[string]interface{}{
			"zones_watered":    run.ZonesWatered,
			"zones_skipped":    run.ZonesSkipped,
			"duration_seconds": run.Duration.Seconds(),
		},
		at,
	)
}

func (c *Client) writePoint(measurement string, tags map[string]string, fields map[string]interface{}, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, at))
}
