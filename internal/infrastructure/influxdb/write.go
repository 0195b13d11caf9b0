package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementStatus   = "platform_status"
	MeasurementCommand  = "command"
	MeasurementQuantity = "well_quantity"
)

// WriteStatus writes one converted status reading as a single point with a
// field per status key.
//
// Example:
//
//	client.WriteStatus(map[string]float64{"temperature": 60, "vacuum": 200}, time.Now())
func (c *Client) WriteStatus(status map[string]float64, at time.Time) {
	if !c.IsConnected() || len(status) == 0 {
		return
	}
	fields := make(map[string]any, len(status))
	for k, v := range status {
		fields[k] = v
	}
	c.writer.WritePoint(write.NewPoint(MeasurementStatus, c.tags(nil), fields, at))
}

// WriteCommand records a finished command: its duration and whether it
// failed. Simulated commands are tagged so dashboards can drop them.
//
// Parameters:
//   - name: Command name, e.g. "transfer_liquid"
//   - duration: Time from posting until the controller went idle
//   - simulated: Command was only logged
//   - failed: Execute returned an error
//   - at: Completion time
func (c *Client) WriteCommand(name string, duration time.Duration, simulated, failed bool, at time.Time) {
	if !c.IsConnected() {
		return
	}
	tags := c.tags(map[string]string{
		"name":      name,
		"simulated": boolTag(simulated),
	})
	fields := map[string]any{
		"duration_ms": duration.Milliseconds(),
		"failed":      failed,
	}
	c.writer.WritePoint(write.NewPoint(MeasurementCommand, tags, fields, at))
}

// WriteQuantity records the tracked quantity of one well.
func (c *Client) WriteQuantity(element string, index int, quantity float64, at time.Time) {
	if !c.IsConnected() {
		return
	}
	tags := c.tags(map[string]string{"element": element})
	fields := map[string]any{
		"index":    index,
		"quantity": quantity,
	}
	c.writer.WritePoint(write.NewPoint(MeasurementQuantity, tags, fields, at))
}

func (c *Client) tags(extra map[string]string) map[string]string {
	tags := map[string]string{"platform": c.platform}
	for k, v := range extra {
		tags[k] = v
	}
	return tags
}

func boolTag(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
