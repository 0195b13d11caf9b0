package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/chemspyd-core/internal/events"
	"github.com/nerrad567/chemspyd-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/chemspyd-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/chemspyd-core/internal/metrics"
	"github.com/nerrad567/chemspyd-core/internal/monitor"
)

// telemetry holds the optional outbound sinks.
type telemetry struct {
	mqtt    *mqtt.Client
	bridge  *events.Bridge
	influx  *influxdb.Client
	metrics *metrics.Recorder
}

// attachTelemetry connects the sinks enabled in configuration and attaches
// them to the channel and controller. Closed together with the app.
func (a *app) attachTelemetry(withMetrics bool) (*telemetry, error) {
	t := &telemetry{}
	cfg := a.cfg

	if cfg.MQTT.Enabled {
		client, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("connecting to MQTT: %w", err)
		}
		client.SetLogger(a.log.With("component", "mqtt"))
		t.mqtt = client
		t.bridge = events.New(events.Config{
			Publisher: client,
			Topics:    client.Topics(),
			QoS:       client.QoS(),
			Platform:  cfg.Platform.ID,
		})
		t.bridge.SetLogger(a.log.With("component", "events"))
		a.channel.AddObserver(t.bridge)
		a.closers = append(a.closers, func() {
			t.bridge.Close()
			_ = client.Close()
		})
		a.log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	}

	if cfg.InfluxDB.Enabled {
		client, err := influxdb.Connect(cfg.InfluxDB, cfg.Platform.ID)
		if err != nil {
			return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		log := a.log.With("component", "influxdb")
		client.SetOnError(func(err error) { log.Warn("influxdb write failed", "error", err) })
		t.influx = client
		a.channel.AddObserver(events.CommandSeries{W: client})
		a.addQuantityRecorder(events.QuantitySeries{W: client})
		a.closers = append(a.closers, func() { _ = client.Close() })
		a.log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	if withMetrics && cfg.Metrics.Enabled {
		t.metrics = metrics.New(cfg.Platform.ID)
		a.channel.AddObserver(t.metrics)
		a.ctl.SetValidationRecorder(t.metrics)
	}
	return t, nil
}

// statusSinks returns every enabled sink for status readings.
func (t *telemetry) statusSinks() []monitor.Sink {
	var sinks []monitor.Sink
	if t.bridge != nil {
		sinks = append(sinks, t.bridge)
	}
	if t.influx != nil {
		sinks = append(sinks, monitor.SinkFunc(t.influx.WriteStatus))
	}
	if t.metrics != nil {
		sinks = append(sinks, t.metrics)
	}
	return sinks
}

// healthCheck verifies the journal and connected sinks.
func (a *app) healthCheck(ctx context.Context, t *telemetry) error {
	var errs []error
	if a.db != nil {
		if err := a.db.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	if t.mqtt != nil {
		if err := t.mqtt.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mqtt: %w", err))
		}
	}
	if t.influx != nil {
		if err := t.influx.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("influxdb: %w", err))
		}
	}
	return errors.Join(errs...)
}
