package controller

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/nerrad567/chemspyd-core/internal/units"
	"github.com/nerrad567/chemspyd-core/internal/zone"
)

// StatusKey names one field of status.csv and the units it is converted
// between.
type StatusKey struct {
	Name       string `yaml:"name"`
	SourceUnit string `yaml:"source_unit"`
	TargetUnit string `yaml:"target_unit"`
}

// Status field names in the stock status.csv layout.
const (
	StatusTemperature    = "temperature"
	StatusReflux         = "reflux"
	StatusVacuum         = "vacuum"
	StatusStir           = "stir"
	StatusBoxTemperature = "box_temperature"
	StatusBoxHumidity    = "box_humidity"
)

// DefaultStatusKeys returns the stock status.csv layout: temperatures in K
// reported in °C, pressure in Pa reported in mbar.
func DefaultStatusKeys() []StatusKey {
	return []StatusKey{
		{StatusTemperature, units.Kelvin, units.Celsius},
		{StatusReflux, units.Kelvin, units.Celsius},
		{StatusVacuum, units.Pascal, units.Millibar},
		{StatusStir, units.RPM, units.RPM},
		{StatusBoxTemperature, units.Kelvin, units.Celsius},
		{StatusBoxHumidity, units.Percent, units.Percent},
	}
}

// ValidateStatusKeys checks names are unique and conversions are known.
func ValidateStatusKeys(keys []StatusKey) error {
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k.Name == "" {
			return fmt.Errorf("%w: status key without name", zone.ErrConfiguration)
		}
		if _, dup := seen[k.Name]; dup {
			return fmt.Errorf("%w: duplicate status key %q", zone.ErrConfiguration, k.Name)
		}
		seen[k.Name] = struct{}{}
		if !units.Supported(k.SourceUnit, k.TargetUnit) {
			return fmt.Errorf("%w: status key %q: cannot convert %s to %s",
				zone.ErrConfiguration, k.Name, k.SourceUnit, k.TargetUnit)
		}
	}
	return nil
}

// Status is one converted status reading keyed by field name.
type Status map[string]float64

// StatusKeys returns the configured status layout.
func (c *Controller) StatusKeys() []StatusKey {
	return append([]StatusKey(nil), c.statusKeys...)
}

// ReadStatus reads status.csv and converts each field. Fields beyond the
// configured keys are ignored, as are keys without a field.
func (c *Controller) ReadStatus() (Status, error) {
	raw, err := c.exec.ReadStatus()
	if err != nil {
		return nil, err
	}

	status := make(Status, len(c.statusKeys))
	for i, key := range c.statusKeys {
		if i >= len(raw) {
			break
		}
		v, err := strconv.ParseFloat(raw[i], 64)
		if err != nil {
			return nil, fmt.Errorf("status %s: parsing %q: %w", key.Name, raw[i], err)
		}
		converted, err := units.Convert(v, key.SourceUnit, key.TargetUnit)
		if err != nil {
			return nil, fmt.Errorf("status %s: %w", key.Name, err)
		}
		status[key.Name] = converted
	}
	return status, nil
}

// ReadStatusValue returns a single converted status field.
func (c *Controller) ReadStatusValue(name string) (float64, error) {
	status, err := c.ReadStatus()
	if err != nil {
		return 0, err
	}
	v, ok := status[name]
	if !ok {
		return 0, fmt.Errorf("%w: no status field %q", zone.ErrConfiguration, name)
	}
	return v, nil
}

// MeasureLevel measures the material level of each well in z and returns
// the levels in the order of the zone list.
func (c *Controller) MeasureLevel(ctx context.Context, z Zone) ([]float64, error) {
	const op = "measure_level"

	g, err := c.resolve(op, z)
	if err != nil {
		return nil, err
	}
	if err := c.execute(ctx, op, arg("Zone", g.ZoneString(), "")); err != nil {
		return nil, err
	}

	raw, err := c.exec.ReadReturn()
	if err != nil {
		return nil, fmt.Errorf("%s: reading levels: %w", op, err)
	}
	return parseFloats(raw, nil)
}

// UnmountAll unmounts every tool from the arm.
func (c *Controller) UnmountAll(ctx context.Context) error {
	return c.execute(ctx, "unmount_all")
}

// StopManager shuts the controller application down cleanly.
func (c *Controller) StopManager(ctx context.Context) error {
	return c.execute(ctx, "stop_manager")
}

// Wait makes the controller itself wait for d. The call blocks for the
// whole duration like any other command.
func (c *Controller) Wait(ctx context.Context, d time.Duration) error {
	if d < 0 {
		return c.reject("wait", fmt.Errorf("%w: duration %v must not be negative", zone.ErrRange, d))
	}
	return c.execute(ctx, "wait", arg("Time", d.Seconds(), "s"))
}
