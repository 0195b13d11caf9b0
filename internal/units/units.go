// Package units converts the raw SI values reported by the external
// controller into the units used by callers.
//
// Every conversion rounds to five decimal places so that values read back
// from the protocol files compare cleanly (298.15 K is exactly 25 °C).
package units

import (
	"errors"
	"fmt"
	"math"
)

// ErrUnsupported is returned by Convert for an unknown unit pair.
var ErrUnsupported = errors.New("units: unsupported conversion")

// Unit names understood by Convert.
const (
	Kelvin     = "K"
	Celsius    = "C"
	Pascal     = "Pa"
	Millibar   = "mbar"
	Kilogram   = "kg"
	Milligram  = "mg"
	RPM        = "rpm"
	Percent    = "%"
	Millimetre = "mm"
)

const decimals = 5

// Round rounds v to five decimal places.
func Round(v float64) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}

// KelvinToCelsius converts a temperature in K to °C.
func KelvinToCelsius(k float64) float64 {
	return Round(k - 273.15)
}

// CelsiusToKelvin converts a temperature in °C to K.
func CelsiusToKelvin(c float64) float64 {
	return Round(c + 273.15)
}

// PascalToMillibar converts a pressure in Pa to mbar.
func PascalToMillibar(pa float64) float64 {
	return Round(pa / 100)
}

// KilogramToMilligram converts a mass in kg to mg.
func KilogramToMilligram(kg float64) float64 {
	return Round(kg * 1e6)
}

type pair struct{ from, to string }

var converters = map[pair]func(float64) float64{
	{Kelvin, Celsius}:     KelvinToCelsius,
	{Celsius, Kelvin}:     CelsiusToKelvin,
	{Pascal, Millibar}:    PascalToMillibar,
	{Kilogram, Milligram}: KilogramToMilligram,
}

// Convert converts v between two units. An empty or identical unit pair
// returns v unchanged.
func Convert(v float64, from, to string) (float64, error) {
	if from == to || from == "" || to == "" {
		return v, nil
	}
	fn, ok := converters[pair{from, to}]
	if !ok {
		return 0, fmt.Errorf("%w: %s to %s", ErrUnsupported, from, to)
	}
	return fn(v), nil
}

// Supported reports whether Convert handles the unit pair.
func Supported(from, to string) bool {
	if from == to || from == "" || to == "" {
		return true
	}
	_, ok := converters[pair{from, to}]
	return ok
}
