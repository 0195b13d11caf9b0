// Package mqtt connects chemspyd to an MQTT broker for command and
// telemetry events.
//
// The client registers a retained last-will on {prefix}/system/status so
// consumers see the core go offline, reconnects with backoff and restores
// subscriptions afterwards.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := client.Topics().Command("set_stir", mqtt.PhaseCompleted)
//	err = client.Publish(topic, payload, client.QoS(), false)
//
// Tests that need a broker are behind the integration build tag.
package mqtt
