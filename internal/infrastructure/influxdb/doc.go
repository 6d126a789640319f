// Package influxdb records irrigation history in InfluxDB.
//
// Two measurements are written:
//
//	irrigation_zone  tags: program_id, zone, outcome[, reason]
//	                 fields: minutes, repeats, total_minutes | count
//	irrigation_run   tags: program_id, trigger, status
//	                 fields: zones_watered, zones_skipped, duration_seconds
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // history is optional
//	}
//	defer client.Close()
//
//	client.WriteZoneWatered("front-garden", "Lawn", 10, 1)
//
// Writes are batched according to batch_size and flush_interval and
// never block the program that produced them.
package influxdb
