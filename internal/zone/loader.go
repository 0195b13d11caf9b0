package zone

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadElementsFile reads an element capability document.
//
// The document is a YAML (or JSON) mapping of element names to
// descriptors:
//
//	RACKR:
//	  wells: 30
//	  max_quantity: 20
//	  default_quantity: 20
//	  addable_liquid: false
//	  removable_liquid: true
//	  addable_solid: false
//	  removable_solid: false
//	  thermostat: null
//	  stir: null
//	  reflux: null
//	  vacuum_pump: null
//	  drawer: null
//	  environment: null
//	  states:
//	    default: RACKR
//
// Parameters:
//   - path: Path to the document
//
// Returns:
//   - map[string]map[string]any: Descriptors keyed by element name, ready
//     for RegistryConfig.Elements
//   - error: If the file cannot be read or parsed
func LoadElementsFile(path string) (map[string]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading element config: %w", err)
	}
	return ParseElements(data)
}

// ParseElements decodes an element capability document.
func ParseElements(data []byte) (map[string]map[string]any, error) {
	var elements map[string]map[string]any
	if err := yaml.Unmarshal(data, &elements); err != nil {
		return nil, fmt.Errorf("%w: parsing element config: %v", ErrConfiguration, err)
	}
	if len(elements) == 0 {
		return nil, fmt.Errorf("%w: element config defines no elements", ErrConfiguration)
	}
	return elements, nil
}
