package zone

import "errors"

// Domain errors for the zone package.
//
// Every validation failure is raised before a command reaches the
// channel. Check them with errors.Is():
//
//	if errors.Is(err, zone.ErrQuantity) {
//	    // the well would over- or under-flow
//	}
var (
	// ErrConfiguration is returned when an element descriptor is malformed
	// or incomplete, or when a parameter has no matching descriptor on the
	// element ("this knob does not exist here").
	ErrConfiguration = errors.New("zone: configuration error")

	// ErrRange is returned when a numeric value lies outside the inclusive
	// [lo, hi] envelope or a discrete value is not an allowed option
	// ("this knob exists but the value is out of bounds").
	ErrRange = errors.New("zone: value out of range")

	// ErrElement is returned when a state, material phase or capability is
	// not supported by the element that owns the well.
	ErrElement = errors.New("zone: not supported by element")

	// ErrQuantity is returned when a tracked quantity would leave
	// [0, max_quantity].
	ErrQuantity = errors.New("zone: quantity out of bounds")

	// ErrUnknownWell is returned when a well name cannot be resolved.
	ErrUnknownWell = errors.New("zone: unknown well")
)
