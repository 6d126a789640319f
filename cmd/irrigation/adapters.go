package main

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-irrigation/internal/entity"
	"github.com/nerrad567/gray-logic-irrigation/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-irrigation/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-irrigation/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-irrigation/internal/irrigation"
)

// entityStateHandler feeds entity state messages into the value store.
func entityStateHandler(store *entity.Store, log *logging.Logger) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		id, ok := mqtt.ParseEntityStateTopic(topic)
		if !ok {
			log.Debug("ignoring message on unexpected topic", "topic", topic)
			return nil
		}
		return store.Ingest(id, payload)
	}
}

// commandHandler routes program command and stop_programs messages to the
// registry. Runs outlive the message, so the process context is used.
func commandHandler(ctx context.Context, registry *irrigation.Registry, log *logging.Logger) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		log.Debug("program command received", "topic", topic)
		return registry.HandleCommand(ctx, topic, payload)
	}
}

// runHistory is the subset of influxdb.Client written by historyObserver.
type runHistory interface {
	WriteZoneWatered(programID, zone string, minutes, repeats int)
	WriteZoneSkipped(programID, zone, reason string)
	WriteRun(run influxdb.RunSummary)
}

// historyObserver adapts the InfluxDB client to irrigation.RunObserver.
type historyObserver struct {
	history runHistory
}

// RunStarted implements irrigation.RunObserver. Runs are written once finished.
func (historyObserver) RunStarted(irrigation.Run) {}

// ZoneSkipped implements irrigation.RunObserver.
func (h historyObserver) ZoneSkipped(programID, zone string, reason irrigation.SkipReason) {
	h.history.WriteZoneSkipped(programID, zone, string(reason))
}

// ZoneWatered implements irrigation.RunObserver.
func (h historyObserver) ZoneWatered(programID, zone string, minutes int, repeats int) {
	h.history.WriteZoneWatered(programID, zone, minutes, repeats)
}

// RunFinished implements irrigation.RunObserver.
func (h historyObserver) RunFinished(run irrigation.Run) {
	summary := influxdb.RunSummary{
		ProgramID:    run.ProgramID,
		Trigger:      string(run.Trigger),
		Status:       string(run.Status),
		ZonesWatered: run.ZonesWatered,
		ZonesSkipped: run.ZonesSkipped,
		FinishedAt:   time.Now(),
	}
	if run.CompletedAt != nil {
		summary.FinishedAt = *run.CompletedAt
	}
	if run.DurationMS != nil {
		summary.Duration = time.Duration(*run.DurationMS) * time.Millisecond
	}
	h.history.WriteRun(summary)
}
