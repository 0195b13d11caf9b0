// Package events fans command and telemetry events out to the optional
// sinks: MQTT (Bridge), InfluxDB (CommandSeries, QuantitySeries) and
// several quantity recorders at once (QuantityFanout).
//
// Topics and payloads:
//
//	{prefix}/command/{name}/posted|started|completed|failed   CommandEvent
//	{prefix}/status                                           StatusEvent (retained)
package events
