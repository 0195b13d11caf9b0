package controller

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/chemspyd-core/internal/zone"
)

// Needle describes the system liquid line behind one needle.
type Needle struct {
	RinseStation int    `yaml:"rinse_station"`
	Liquid       string `yaml:"liquid,omitempty"`
}

// SystemLiquids is the pump and system-liquid table of the platform.
type SystemLiquids struct {
	// Needles maps needle numbers (1-based) to their liquid line.
	Needles map[int]Needle `yaml:"needles"`

	// Returns maps a system-liquid valve well to the waste well used when
	// priming or flushing it.
	Returns map[string]string `yaml:"returns"`
}

// DefaultSystemLiquids returns the stock four-needle layout.
func DefaultSystemLiquids() *SystemLiquids {
	return &SystemLiquids{
		Needles: map[int]Needle{
			1: {RinseStation: 1},
			2: {RinseStation: 1},
			3: {RinseStation: 2},
			4: {RinseStation: 2},
		},
		Returns: defaultReturns(),
	}
}

func defaultReturns() map[string]string {
	return map[string]string{
		"VALVEB:1": "WASTE1:1",
		"VALVEB:2": "WASTE1:2",
		"VALVEB:3": "WASTE1:3",
		"VALVEB:4": "WASTE2:4",
	}
}

// LoadSystemLiquids reads the system liquids document:
//
//	needles:
//	  1: {rinse_station: 1, liquid: THF}
//	  2: {rinse_station: 1, liquid: THF}
//	returns:
//	  VALVEB:1: WASTE1:1
//
// A document without a returns section gets the stock valve-to-waste
// table.
func LoadSystemLiquids(path string) (*SystemLiquids, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading system liquids: %w", err)
	}

	var sl SystemLiquids
	if err := yaml.Unmarshal(data, &sl); err != nil {
		return nil, fmt.Errorf("%w: parsing system liquids: %v", zone.ErrConfiguration, err)
	}
	if len(sl.Returns) == 0 {
		sl.Returns = defaultReturns()
	}
	if err := sl.Validate(); err != nil {
		return nil, err
	}
	return &sl, nil
}

// Validate checks needle numbers and rinse stations.
func (s *SystemLiquids) Validate() error {
	if len(s.Needles) == 0 {
		return fmt.Errorf("%w: system liquids define no needles", zone.ErrConfiguration)
	}
	for n, needle := range s.Needles {
		if n < 1 {
			return fmt.Errorf("%w: needle %d: needles are numbered from 1", zone.ErrConfiguration, n)
		}
		if needle.RinseStation < 1 {
			return fmt.Errorf("%w: needle %d has no rinse station", zone.ErrConfiguration, n)
		}
	}
	return nil
}

// RinseStation returns the rinse station wired to needle. Needle 0 (all
// needles) returns fallback unchanged.
func (s *SystemLiquids) RinseStation(needle, fallback int) (int, error) {
	if needle == 0 {
		return fallback, nil
	}
	n, ok := s.Needles[needle]
	if !ok {
		return 0, fmt.Errorf("%w: unknown needle %d", zone.ErrConfiguration, needle)
	}
	return n.RinseStation, nil
}

// ReturnDestination returns the waste well for a system-liquid valve well.
func (s *SystemLiquids) ReturnDestination(valve string) (string, error) {
	dst, ok := s.Returns[valve]
	if !ok {
		return "", fmt.Errorf("%w: no return destination for %s", zone.ErrUnknownWell, valve)
	}
	return dst, nil
}

// NeedleNumbers returns the configured needles in order.
func (s *SystemLiquids) NeedleNumbers() []int {
	out := make([]int, 0, len(s.Needles))
	for n := range s.Needles {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}
