package controller

import (
	"context"
	"fmt"

	"github.com/nerrad567/chemspyd-core/internal/zone"
)

// Switch states accepted by the element setters.
const (
	On  = "on"
	Off = "off"
)

// SetDrawer opens or closes the drawer of the given wells and sets the
// environment they are kept under (none, inert, vacuum).
func (c *Controller) SetDrawer(ctx context.Context, z Zone, state, environment string) error {
	const op = "set_drawer"

	g, err := c.resolve(op, z)
	if err != nil {
		return err
	}
	if err := c.checkParameters(op, g,
		zone.ParamDrawer, state,
		zone.ParamEnvironment, environment,
	); err != nil {
		return err
	}

	return c.execute(ctx, op,
		arg("Zone", g.ZoneString(), ""),
		arg("Target State", state, ""),
		arg("Environment", environment, ""),
	)
}

// SetReflux switches the reflux chiller of the elements touched by z.
func (c *Controller) SetReflux(ctx context.Context, z Zone, state string, temperature float64) error {
	const op = "set_reflux"

	g, err := c.resolve(op, z)
	if err != nil {
		return err
	}
	if err := c.checkParameters(op, g,
		zone.ParamReflux, state,
		zone.ParamRefluxTemperature, temperature,
	); err != nil {
		return err
	}

	return c.execute(ctx, op,
		arg("Zone", g.ElementString(), ""),
		arg("Target State", state, ""),
		arg("Chiller Temperature", temperature, "°C"),
	)
}

// SetTemperature switches the thermostat of the elements touched by z,
// with an optional ramp in °C/min (0 for none).
func (c *Controller) SetTemperature(ctx context.Context, z Zone, state string, temperature, ramp float64) error {
	const op = "set_temperature"

	g, err := c.resolve(op, z)
	if err != nil {
		return err
	}
	if err := c.checkParameters(op, g,
		zone.ParamThermostat, state,
		zone.ParamThermostatTemperature, temperature,
		zone.ParamThermostatRamp, ramp,
	); err != nil {
		return err
	}

	return c.execute(ctx, op,
		arg("Zone", g.ElementString(), ""),
		arg("Target State", state, ""),
		arg("Temperature", temperature, "°C"),
		arg("Ramp Speed", ramp, "°C/min"),
	)
}

// SetStir switches stirring of the elements touched by z. The arm is
// unmounted first so no tool hangs into a vortexing rack.
func (c *Controller) SetStir(ctx context.Context, z Zone, state string, rpm float64) error {
	const op = "set_stir"

	g, err := c.resolve(op, z)
	if err != nil {
		return err
	}
	if err := c.checkParameters(op, g,
		zone.ParamStir, state,
		zone.ParamStirRate, rpm,
	); err != nil {
		return err
	}

	if err := c.UnmountAll(ctx); err != nil {
		return err
	}
	return c.execute(ctx, op,
		arg("Zone", g.ElementString(), ""),
		arg("Target State", state, ""),
		arg("Stir Rate", rpm, "rpm"),
	)
}

// SetVacuum switches the vacuum pump of the elements touched by z.
func (c *Controller) SetVacuum(ctx context.Context, z Zone, state string, pressure float64) error {
	const op = "set_vacuum"

	g, err := c.resolve(op, z)
	if err != nil {
		return err
	}
	if err := c.checkParameters(op, g,
		zone.ParamVacuumPump, state,
		zone.ParamVacuumPumpPressure, pressure,
	); err != nil {
		return err
	}

	return c.execute(ctx, op,
		arg("Zone", g.ElementString(), ""),
		arg("Target State", state, ""),
		arg("Pressure", pressure, "mbar"),
	)
}

// SetZoneState enables or disables zones in the controller. Some failures
// (e.g. an empty powder capsule) disable a zone; this re-enables it.
func (c *Controller) SetZoneState(ctx context.Context, z Zone, enabled bool) error {
	const op = "set_zone_state"

	g, err := c.resolve(op, z)
	if err != nil {
		return err
	}
	return c.execute(ctx, op,
		arg("Zone", g.ZoneString(), ""),
		arg("Target State", enabled, ""),
	)
}

// Setting is one entry of an aggregate SetElement call.
type Setting struct {
	Off   bool
	Value float64
}

// SetOn switches a knob on at value.
func SetOn(value float64) Setting { return Setting{Value: value} }

// SetOff switches a knob off.
func SetOff() Setting { return Setting{Off: true} }

// Knobs accepted by SetElement, in the order they are applied.
const (
	KnobReflux      = "reflux"
	KnobTemperature = "temperature"
	KnobStir        = "stir"
	KnobVacuum      = "vacuum"
)

var knobOrder = []string{KnobReflux, KnobTemperature, KnobStir, KnobVacuum}

// elementSetter applies one knob. offValue is the setpoint sent alongside
// an "off" state.
type elementSetter struct {
	set      func(ctx context.Context, z Zone, state string, value float64) error
	offValue float64
}

func (c *Controller) buildSetters() map[string]elementSetter {
	return map[string]elementSetter{
		KnobReflux: {set: c.SetReflux, offValue: 15},
		KnobTemperature: {set: func(ctx context.Context, z Zone, state string, value float64) error {
			return c.SetTemperature(ctx, z, state, value, 0)
		}, offValue: 15},
		KnobStir:   {set: c.SetStir, offValue: 200},
		KnobVacuum: {set: c.SetVacuum, offValue: 1000},
	}
}

// SetElement applies several knobs to z in a fixed order (reflux,
// temperature, stir, vacuum). Knobs missing from settings are left as
// they are. Unknown knob names are rejected before anything is sent.
func (c *Controller) SetElement(ctx context.Context, z Zone, settings map[string]Setting) error {
	for name := range settings {
		if _, ok := c.setters[name]; !ok {
			return c.reject("set_element", fmt.Errorf("%w: unknown setting %q", zone.ErrConfiguration, name))
		}
	}

	for _, name := range knobOrder {
		s, ok := settings[name]
		if !ok {
			continue
		}
		setter := c.setters[name]
		var err error
		if s.Off {
			err = setter.set(ctx, z, Off, setter.offValue)
		} else {
			err = setter.set(ctx, z, On, s.Value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
