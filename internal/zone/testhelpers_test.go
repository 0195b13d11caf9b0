package zone

import "testing"

// testElements returns descriptors for a small platform: a liquid source
// rack, a reaction block with several addressing states, a solid capsule
// bank and a valve bank that only delivers liquid.
func testElements() map[string]map[string]any {
	return map[string]map[string]any{
		"RACKR": {
			"wells":            4,
			"max_quantity":     20,
			"default_quantity": 20,
			"addable_liquid":   false,
			"removable_liquid": true,
			"addable_solid":    false,
			"removable_solid":  false,
			"thermostat":       nil,
			"stir":             nil,
			"reflux":           nil,
			"vacuum_pump":      nil,
			"drawer":           nil,
			"environment":      nil,
			"states":           map[string]any{"default": "RACKR"},
		},
		"ISYNTH": {
			"wells":                  6,
			"max_quantity":           8.0,
			"default_quantity":       0.0,
			"addable_liquid":         true,
			"removable_liquid":       true,
			"addable_solid":          true,
			"removable_solid":        false,
			"thermostat":             []any{"on", "off"},
			"thermostat_temperature": []any{-40, 150},
			"thermostat_ramp":        []any{0, 10},
			"stir":                   []any{"on", "off"},
			"stir_rate":              []any{0, 1600},
			"reflux":                 []any{"on", "off"},
			"reflux_temperature":     []any{-20, 40},
			"vacuum_pump":            []any{"on", "off"},
			"vacuum_pump_pressure":   []any{0, 1050},
			"drawer":                 []any{"open", "close"},
			"environment":            []any{"none", "inert", "vacuum"},
			"states": map[string]any{
				"default":  "ISYNTH",
				"dispense": "ISYNTH_DISP",
				"vacuum":   "ISYNTH_VAC",
			},
		},
		"SOLID": {
			"wells":            2,
			"max_quantity":     5000,
			"default_quantity": 1000,
			"addable_liquid":   false,
			"removable_liquid": false,
			"addable_solid":    false,
			"removable_solid":  true,
			"thermostat":       nil,
			"stir":             nil,
			"reflux":           nil,
			"vacuum_pump":      nil,
			"drawer":           nil,
			"environment":      nil,
			"states":           map[string]any{"default": "SOLID"},
		},
		"VALVEB": {
			"wells":            4,
			"max_quantity":     1000,
			"default_quantity": nil,
			"addable_liquid":   false,
			"removable_liquid": true,
			"addable_solid":    false,
			"removable_solid":  false,
			"thermostat":       nil,
			"stir":             nil,
			"reflux":           nil,
			"vacuum_pump":      nil,
			"drawer":           nil,
			"environment":      nil,
			"states":           map[string]any{"default": "VALVEB"},
		},
	}
}

func newTestRegistry(t *testing.T, track bool) *Registry {
	t.Helper()
	reg, err := NewRegistry(RegistryConfig{Elements: testElements(), TrackQuantities: track})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return reg
}

func mustWell(t *testing.T, reg *Registry, element string, index int) *Well {
	t.Helper()
	w, err := reg.Well(element, index)
	if err != nil {
		t.Fatalf("Well(%s, %d) error = %v", element, index, err)
	}
	return w
}

func mustQuantity(t *testing.T, w *Well) float64 {
	t.Helper()
	q, ok := w.Quantity()
	if !ok {
		t.Fatalf("%s is not tracked", w)
	}
	return q
}
