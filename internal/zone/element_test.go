package zone

import (
	"errors"
	"strings"
	"testing"
)

func TestNewElement_MissingKeys(t *testing.T) {
	props := testElements()["RACKR"]
	delete(props, "states")
	delete(props, "drawer")

	_, err := NewElement("RACKR", props)
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("NewElement() error = %v, want ErrConfiguration", err)
	}
	if !strings.Contains(err.Error(), "[drawer states]") {
		t.Errorf("error %q should name the missing keys", err)
	}
}

func TestNewElement_InvalidDescriptors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"wells not integer", func(p map[string]any) { p["wells"] = 2.5 }},
		{"negative max", func(p map[string]any) { p["max_quantity"] = -1 }},
		{"default above max", func(p map[string]any) { p["default_quantity"] = 21 }},
		{"flag not bool", func(p map[string]any) { p["addable_liquid"] = "yes" }},
		{"states without default", func(p map[string]any) { p["states"] = map[string]any{"dispense": "RACKR_D"} }},
		{"state prefix with delimiter", func(p map[string]any) { p["states"] = map[string]any{"default": "RA,CK"} }},
		{"range with three bounds", func(p map[string]any) { p["stir"] = []any{0, 1, 2} }},
		{"inverted range", func(p map[string]any) { p["stir"] = []any{10, 0} }},
		{"scalar envelope", func(p map[string]any) { p["stir"] = "on" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			props := testElements()["RACKR"]
			tt.mutate(props)
			if _, err := NewElement("RACKR", props); !errors.Is(err, ErrConfiguration) {
				t.Errorf("NewElement() error = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestElement_ValidateParameter(t *testing.T) {
	isynth, err := NewElement("ISYNTH", testElements()["ISYNTH"])
	if err != nil {
		t.Fatalf("NewElement() error = %v", err)
	}

	tests := []struct {
		name    string
		param   string
		value   any
		wantErr error
	}{
		{"stir rate within range", ParamStirRate, 200, nil},
		{"stir rate above range", ParamStirRate, 2000, ErrRange},
		{"stir rate at upper bound", ParamStirRate, 1600, nil},
		{"stir rate at lower bound", ParamStirRate, 0.0, nil},
		{"negative temperature in range", ParamThermostatTemperature, -40, nil},
		{"float32 value", ParamThermostatRamp, float32(2.5), nil},
		{"int64 out of range", ParamVacuumPumpPressure, int64(2000), ErrRange},
		{"discrete allowed", ParamDrawer, "open", nil},
		{"discrete not allowed", ParamDrawer, "ajar", ErrRange},
		{"bool against string options", ParamStir, true, ErrRange},
		{"string against range", ParamStirRate, "fast", ErrConfiguration},
		{"number against options", ParamDrawer, 1, ErrConfiguration},
		{"unknown parameter", "centrifuge", 100, ErrConfiguration},
		{"unsupported kind", ParamStirRate, []int{1}, ErrConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := isynth.ValidateParameter(tt.param, tt.value)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateParameter(%s, %v) error = %v, want nil", tt.param, tt.value, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateParameter(%s, %v) error = %v, want %v", tt.param, tt.value, err, tt.wantErr)
			}
		})
	}
}

func TestElement_ValidateParameter_NullEnvelope(t *testing.T) {
	rack, err := NewElement("RACKR", testElements()["RACKR"])
	if err != nil {
		t.Fatalf("NewElement() error = %v", err)
	}
	if err := rack.ValidateParameter(ParamStir, "on"); !errors.Is(err, ErrConfiguration) {
		t.Errorf("ValidateParameter on null envelope error = %v, want ErrConfiguration", err)
	}
}

func TestElement_ValidateParameter_IsPure(t *testing.T) {
	isynth, err := NewElement("ISYNTH", testElements()["ISYNTH"])
	if err != nil {
		t.Fatalf("NewElement() error = %v", err)
	}
	before, _ := isynth.Envelope(ParamStirRate)

	inputs := []struct {
		param string
		value any
	}{
		{ParamStirRate, 200},
		{ParamStirRate, 5000},
		{ParamDrawer, "open"},
		{"missing", 1},
	}
	for _, in := range inputs {
		first := isynth.ValidateParameter(in.param, in.value)
		for i := 0; i < 5; i++ {
			again := isynth.ValidateParameter(in.param, in.value)
			if (first == nil) != (again == nil) || (first != nil && first.Error() != again.Error()) {
				t.Fatalf("ValidateParameter(%s, %v) not stable: %v then %v", in.param, in.value, first, again)
			}
		}
	}

	after, _ := isynth.Envelope(ParamStirRate)
	if before.Lo != after.Lo || before.Hi != after.Hi || before.Kind != after.Kind {
		t.Errorf("envelope changed: %+v -> %+v", before, after)
	}
}

func TestElement_Accessors(t *testing.T) {
	isynth, err := NewElement("ISYNTH", testElements()["ISYNTH"])
	if err != nil {
		t.Fatalf("NewElement() error = %v", err)
	}

	if isynth.Wells() != 6 {
		t.Errorf("Wells() = %d, want 6", isynth.Wells())
	}
	if got := isynth.StateNames(); strings.Join(got, ",") != "default,dispense,vacuum" {
		t.Errorf("StateNames() = %v", got)
	}
	if p, ok := isynth.WirePrefix("vacuum"); !ok || p != "ISYNTH_VAC" {
		t.Errorf("WirePrefix(vacuum) = %q, %v", p, ok)
	}
	if dq, ok := isynth.DefaultQuantity(); !ok || dq != 0 {
		t.Errorf("DefaultQuantity() = %v, %v", dq, ok)
	}

	valve, err := NewElement("VALVEB", testElements()["VALVEB"])
	if err != nil {
		t.Fatalf("NewElement() error = %v", err)
	}
	if _, ok := valve.DefaultQuantity(); ok {
		t.Error("VALVEB should have no default quantity")
	}
}
