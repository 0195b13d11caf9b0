// Package influxdb writes chemspyd telemetry to InfluxDB v2.
//
// Three measurements are written, all tagged with the platform ID:
//
//   - platform_status: one field per status key (temperature, vacuum, ...)
//   - command: duration_ms and failed per finished command, tagged by name
//   - well_quantity: tracked quantity per well after a transfer
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB, cfg.Platform.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteStatus(status, time.Now())
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval. Batch failures are reported through SetOnError.
package influxdb
