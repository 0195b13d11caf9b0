// Package monitor polls platform status while the controller is idle and
// delivers each reading to the configured sinks (MQTT, InfluxDB,
// Prometheus). It also prunes the command journal and quantity ledger on
// a slow cadence.
//
//	mon, err := monitor.New(monitor.Config{Reader: r, Busy: ch, Interval: 10 * time.Second})
//	mon.AddSink(recorder)
//	go mon.Run(ctx)
package monitor
