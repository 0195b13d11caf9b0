// Package metrics exposes chemspyd command and status metrics to
// Prometheus.
//
// A Recorder is registered as a channel observer and as the controller's
// validation recorder; the status monitor feeds it readings. Serve runs
// the scrape endpoint.
package metrics
