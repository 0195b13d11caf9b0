package zone

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
)

// DefaultState is the addressing state every well starts in. Each element
// must map it to a wire prefix.
const DefaultState = "default"

// Element descriptor keys.
const (
	KeyWells           = "wells"
	KeyMaxQuantity     = "max_quantity"
	KeyDefaultQuantity = "default_quantity"
	KeyAddableLiquid   = "addable_liquid"
	KeyRemovableLiquid = "removable_liquid"
	KeyAddableSolid    = "addable_solid"
	KeyRemovableSolid  = "removable_solid"
	KeyStates          = "states"
)

// Settable parameter names. Any descriptor key that is not one of the
// structural keys above is read as a parameter envelope, so elements may
// carry parameters beyond this list.
const (
	ParamThermostat            = "thermostat"
	ParamThermostatTemperature = "thermostat_temperature"
	ParamThermostatRamp        = "thermostat_ramp"
	ParamStir                  = "stir"
	ParamStirRate              = "stir_rate"
	ParamReflux                = "reflux"
	ParamRefluxTemperature     = "reflux_temperature"
	ParamVacuumPump            = "vacuum_pump"
	ParamVacuumPumpPressure    = "vacuum_pump_pressure"
	ParamDrawer                = "drawer"
	ParamEnvironment           = "environment"
)

// requiredKeys must be present in every element descriptor. A key may be
// present with a null value (e.g. a rack without a thermostat).
var requiredKeys = []string{
	KeyWells,
	KeyMaxQuantity,
	KeyDefaultQuantity,
	KeyAddableLiquid,
	KeyRemovableLiquid,
	KeyAddableSolid,
	KeyRemovableSolid,
	ParamThermostat,
	ParamStir,
	ParamReflux,
	ParamVacuumPump,
	ParamDrawer,
	ParamEnvironment,
	KeyStates,
}

var structuralKeys = map[string]struct{}{
	KeyWells:           {},
	KeyMaxQuantity:     {},
	KeyDefaultQuantity: {},
	KeyAddableLiquid:   {},
	KeyRemovableLiquid: {},
	KeyAddableSolid:    {},
	KeyRemovableSolid:  {},
	KeyStates:          {},
}

// EnvelopeKind says how a parameter value is checked.
type EnvelopeKind int

const (
	// EnvelopeNone marks a parameter that cannot be set on the element.
	EnvelopeNone EnvelopeKind = iota

	// EnvelopeRange is a closed numeric range [Lo, Hi].
	EnvelopeRange

	// EnvelopeOptions is a set of allowed discrete values (strings or booleans).
	EnvelopeOptions
)

// String returns the envelope kind name.
func (k EnvelopeKind) String() string {
	switch k {
	case EnvelopeRange:
		return "range"
	case EnvelopeOptions:
		return "options"
	default:
		return "none"
	}
}

// Envelope is the capability envelope of one settable parameter.
type Envelope struct {
	Kind    EnvelopeKind
	Lo, Hi  float64
	Options []any
}

// Contains reports whether an options envelope allows value.
func (e Envelope) Contains(value any) bool {
	return slices.Contains(e.Options, value)
}

// Element describes one physical hardware zone (a rack, a reaction block,
// a valve bank). It is built once from configuration and never mutated.
type Element struct {
	name            string
	wells           int
	maxQuantity     float64
	defaultQuantity *float64

	addableLiquid   bool
	removableLiquid bool
	addableSolid    bool
	removableSolid  bool

	envelopes map[string]Envelope
	states    map[string]string
}

// NewElement builds an Element from its decoded capability descriptor.
//
// The descriptor is the per-element mapping of the element document, as
// produced by yaml.Unmarshal into map[string]any.
//
// Parameters:
//   - name: Element name (must match the zone name used by the external controller)
//   - props: Descriptor with at least the required keys
//
// Returns:
//   - *Element: Immutable element
//   - error: ErrConfiguration if keys are missing or values are malformed
func NewElement(name string, props map[string]any) (*Element, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: element name is required", ErrConfiguration)
	}

	var missing []string
	for _, key := range requiredKeys {
		if _, ok := props[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: configuration of %s failed, missing keys %v",
			ErrConfiguration, name, missing)
	}

	e := &Element{
		name:      name,
		envelopes: make(map[string]Envelope),
		states:    make(map[string]string),
	}

	var err error
	if e.wells, err = intValue(props[KeyWells]); err != nil || e.wells < 0 {
		return nil, fmt.Errorf("%w: %s.%s must be a non-negative integer", ErrConfiguration, name, KeyWells)
	}
	if e.maxQuantity, err = floatValue(props[KeyMaxQuantity]); err != nil || !(e.maxQuantity >= 0) || math.IsInf(e.maxQuantity, 0) {
		return nil, fmt.Errorf("%w: %s.%s must be a finite non-negative number", ErrConfiguration, name, KeyMaxQuantity)
	}
	if raw := props[KeyDefaultQuantity]; raw != nil {
		dq, dqErr := floatValue(raw)
		if dqErr != nil || !(dq >= 0) || dq > e.maxQuantity {
			return nil, fmt.Errorf("%w: %s.%s must be a number within [0, %g]",
				ErrConfiguration, name, KeyDefaultQuantity, e.maxQuantity)
		}
		e.defaultQuantity = &dq
	}

	flags := []struct {
		key string
		dst *bool
	}{
		{KeyAddableLiquid, &e.addableLiquid},
		{KeyRemovableLiquid, &e.removableLiquid},
		{KeyAddableSolid, &e.addableSolid},
		{KeyRemovableSolid, &e.removableSolid},
	}
	for _, f := range flags {
		b, ok := props[f.key].(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s must be a boolean", ErrConfiguration, name, f.key)
		}
		*f.dst = b
	}

	if err := e.parseStates(props[KeyStates]); err != nil {
		return nil, err
	}

	for key, raw := range props {
		if _, structural := structuralKeys[key]; structural {
			continue
		}
		env, err := parseEnvelope(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %v", ErrConfiguration, name, key, err)
		}
		e.envelopes[key] = env
	}

	return e, nil
}

func (e *Element) parseStates(raw any) error {
	states, ok := raw.(map[string]any)
	if !ok || len(states) == 0 {
		return fmt.Errorf("%w: %s.%s must be a non-empty mapping", ErrConfiguration, e.name, KeyStates)
	}
	for state, v := range states {
		prefix, ok := v.(string)
		if !ok || prefix == "" {
			return fmt.Errorf("%w: %s.%s.%s must be a non-empty string", ErrConfiguration, e.name, KeyStates, state)
		}
		if strings.ContainsAny(prefix, ",;:\n") {
			return fmt.Errorf("%w: %s.%s.%s contains a reserved character", ErrConfiguration, e.name, KeyStates, state)
		}
		e.states[state] = prefix
	}
	if _, ok := e.states[DefaultState]; !ok {
		return fmt.Errorf("%w: %s.%s has no %q entry", ErrConfiguration, e.name, KeyStates, DefaultState)
	}
	return nil
}

// parseEnvelope reads a parameter descriptor: null (not settable), a
// two-element numeric list (range) or a list of strings/booleans (options).
func parseEnvelope(raw any) (Envelope, error) {
	if raw == nil {
		return Envelope{Kind: EnvelopeNone}, nil
	}

	list, ok := raw.([]any)
	if !ok {
		return Envelope{}, fmt.Errorf("expected a list or null, got %T", raw)
	}
	if len(list) == 0 {
		return Envelope{Kind: EnvelopeNone}, nil
	}

	if _, numeric := numberValue(list[0]); numeric {
		if len(list) != 2 {
			return Envelope{}, fmt.Errorf("numeric range needs exactly two bounds, got %d", len(list))
		}
		lo, okLo := numberValue(list[0])
		hi, okHi := numberValue(list[1])
		if !okLo || !okHi {
			return Envelope{}, fmt.Errorf("numeric range bounds must both be numbers")
		}
		if lo > hi {
			return Envelope{}, fmt.Errorf("range lower bound %g exceeds upper bound %g", lo, hi)
		}
		return Envelope{Kind: EnvelopeRange, Lo: lo, Hi: hi}, nil
	}

	options := make([]any, 0, len(list))
	for _, item := range list {
		switch item.(type) {
		case string, bool:
			options = append(options, item)
		default:
			return Envelope{}, fmt.Errorf("option %v must be a string or boolean", item)
		}
	}
	return Envelope{Kind: EnvelopeOptions, Options: options}, nil
}

// Name returns the element name.
func (e *Element) Name() string { return e.name }

// String returns the element name.
func (e *Element) String() string { return e.name }

// Wells returns the number of wells in the element.
func (e *Element) Wells() int { return e.wells }

// MaxQuantity returns the per-well quantity limit.
func (e *Element) MaxQuantity() float64 { return e.maxQuantity }

// DefaultQuantity returns the seed quantity of a tracked well. The second
// result is false when the element has no default, which disables tracking
// for all of its wells.
func (e *Element) DefaultQuantity() (float64, bool) {
	if e.defaultQuantity == nil {
		return 0, false
	}
	return *e.defaultQuantity, true
}

// AddableLiquid reports whether liquid may be dispensed into the element.
func (e *Element) AddableLiquid() bool { return e.addableLiquid }

// RemovableLiquid reports whether liquid may be drawn from the element.
func (e *Element) RemovableLiquid() bool { return e.removableLiquid }

// AddableSolid reports whether solid may be dispensed into the element.
func (e *Element) AddableSolid() bool { return e.addableSolid }

// RemovableSolid reports whether solid may be taken from the element.
func (e *Element) RemovableSolid() bool { return e.removableSolid }

// HasState reports whether wells of this element can be addressed in state.
func (e *Element) HasState(state string) bool {
	_, ok := e.states[state]
	return ok
}

// WirePrefix returns the zone prefix used on the wire for state.
func (e *Element) WirePrefix(state string) (string, bool) {
	p, ok := e.states[state]
	return p, ok
}

// StateNames returns the sorted logical state names of the element.
func (e *Element) StateNames() []string {
	names := make([]string, 0, len(e.states))
	for s := range e.states {
		names = append(names, s)
	}
	sort.Strings(names)
	return names
}

// Envelope returns the envelope for a parameter.
func (e *Element) Envelope(name string) (Envelope, bool) {
	env, ok := e.envelopes[name]
	return env, ok
}

// ValidateParameter checks a target setting (temperature, stir rate,
// drawer position, ...) against the element's capability envelope.
//
// Numeric values (any int, uint or float kind) are checked against the
// inclusive [lo, hi] range. Strings and booleans are checked for
// membership in the allowed option set. The method never mutates the
// element.
//
// Returns:
//   - error: ErrRange if the value is outside the envelope;
//     ErrConfiguration if the parameter cannot be set for this element
//     (no descriptor, or descriptor kind does not match the value kind)
func (e *Element) ValidateParameter(name string, value any) error {
	env, ok := e.envelopes[name]
	if !ok || env.Kind == EnvelopeNone {
		return e.notSettable(name)
	}

	switch v := value.(type) {
	case string, bool:
		if env.Kind != EnvelopeOptions {
			return e.notSettable(name)
		}
		if !env.Contains(v) {
			return fmt.Errorf("%w: %s (%v) is not a feasible option for %s",
				ErrRange, name, v, e.name)
		}
		return nil
	default:
		n, numeric := numberValue(value)
		if !numeric || env.Kind != EnvelopeRange {
			return e.notSettable(name)
		}
		if math.IsNaN(n) || n < env.Lo || n > env.Hi {
			return fmt.Errorf("%w: %s (%v) exceeds the limit [%g, %g] of %s",
				ErrRange, name, value, env.Lo, env.Hi, e.name)
		}
		return nil
	}
}

func (e *Element) notSettable(name string) error {
	return fmt.Errorf("%w: parameter %s cannot be set for %s", ErrConfiguration, name, e.name)
}

// numberValue converts any Go numeric kind to float64.
func numberValue(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func floatValue(v any) (float64, error) {
	n, ok := numberValue(v)
	if !ok {
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
	return n, nil
}

func intValue(v any) (int, error) {
	n, ok := numberValue(v)
	if !ok || n != math.Trunc(n) {
		return 0, fmt.Errorf("expected an integer, got %v", v)
	}
	return int(n), nil
}
