package emulator

import (
	"fmt"
	"strconv"
	"strings"
)

// defaultHandlers emulates the commands whose effects show up in status.csv
// or return.csv. Everything else is acknowledged without side effects.
func defaultHandlers() map[string]Handler {
	return map[string]Handler{
		"set_temperature": setTemperature,
		"set_reflux":      setReflux,
		"set_stir":        setStir,
		"set_vacuum":      setVacuum,
		"transfer_solid":  transferSolid,
		"measure_level":   measureLevel,
	}
}

// set_temperature: zone, state, temperature [°C], ramp
func setTemperature(args []string, s *Status) ([]string, error) {
	on, value, err := switchArgs(args, 3)
	if err != nil {
		return nil, err
	}
	if on {
		s.TemperatureK = value + 273.15
	} else {
		s.TemperatureK = AmbientKelvin
	}
	return nil, nil
}

// set_reflux: zone, state, chiller temperature [°C]
func setReflux(args []string, s *Status) ([]string, error) {
	on, value, err := switchArgs(args, 3)
	if err != nil {
		return nil, err
	}
	if on {
		s.RefluxK = value + 273.15
	} else {
		s.RefluxK = AmbientKelvin
	}
	return nil, nil
}

// set_stir: zone, state, rate [rpm]
func setStir(args []string, s *Status) ([]string, error) {
	on, value, err := switchArgs(args, 3)
	if err != nil {
		return nil, err
	}
	if on {
		s.StirRPM = value
	} else {
		s.StirRPM = 0
	}
	return nil, nil
}

// set_vacuum: zone, state, pressure [mbar]
func setVacuum(args []string, s *Status) ([]string, error) {
	on, value, err := switchArgs(args, 3)
	if err != nil {
		return nil, err
	}
	if on {
		s.VacuumPa = value * 100
	} else {
		s.VacuumPa = AmbientPascal
	}
	return nil, nil
}

// transfer_solid: source, destination, mass [mg], ...
// Returns the dispensed mass in kg for every destination well.
func transferSolid(args []string, _ *Status) ([]string, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("transfer_solid expects at least 3 arguments, got %d", len(args))
	}
	mg, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return nil, fmt.Errorf("transfer_solid mass %q: %w", args[2], err)
	}
	destinations := strings.Split(args[1], ";")
	ret := make([]string, len(destinations))
	for i := range destinations {
		ret[i] = strconv.FormatFloat(mg/1e6, 'g', -1, 64)
	}
	return ret, nil
}

// measure_level: zone
// Reports a fixed level for every measured well.
func measureLevel(args []string, _ *Status) ([]string, error) {
	if len(args) < 1 || args[0] == "" {
		return nil, fmt.Errorf("measure_level expects a zone")
	}
	zones := strings.Split(args[0], ";")
	ret := make([]string, len(zones))
	for i := range zones {
		ret[i] = "12.5"
	}
	return ret, nil
}

// switchArgs reads the on/off state (index 1) and the setpoint (index 2).
func switchArgs(args []string, want int) (bool, float64, error) {
	if len(args) < want {
		return false, 0, fmt.Errorf("expected at least %d arguments, got %d", want, len(args))
	}
	on := args[1] == "on"
	value, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return false, 0, fmt.Errorf("setpoint %q: %w", args[2], err)
	}
	return on, value, nil
}
