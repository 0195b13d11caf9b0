// Package zone provides the resource model of the platform: hardware
// Elements with their capability envelopes, the Wells inside them, and the
// transient Groups that operations address.
//
// # Key Types
//
//   - Element: immutable description of a hardware zone (well count,
//     quantity limits, phase flags, parameter envelopes, state prefixes)
//   - Well: one addressable position with an optional tracked quantity
//   - WellRef: a well viewed in a given addressing state
//   - Group: ordered wells resolved for a single call
//   - Registry: all elements and wells plus the wire-name lookup table
//
// # Validation
//
// Every check runs before a command is sent to the external controller.
// Failures map onto four sentinel errors: ErrConfiguration (descriptor or
// parameter does not exist), ErrRange (value outside its envelope),
// ErrElement (state or phase not supported) and ErrQuantity (tracked
// quantity would leave [0, max_quantity]).
//
// # Accounting
//
// Quantities are updated optimistically when an operation is requested,
// not when the hardware confirms it. Group broadcasts have no rollback: if
// the third member of a group fails, the first two keep their new
// quantities and the call still reports failure.
//
// # Usage
//
//	docs, err := zone.LoadElementsFile("configs/elements.yaml")
//	if err != nil {
//	    return err
//	}
//	reg, err := zone.NewRegistry(zone.RegistryConfig{Elements: docs, TrackQuantities: true})
//	if err != nil {
//	    return err
//	}
//	src, err := reg.Resolve([]string{"RACKR:1", "RACKR:2"})
//	if err != nil {
//	    return err
//	}
//	if err := src.RemoveLiquid(2.5); err != nil {
//	    return err
//	}
//	fmt.Println(src.ZoneString()) // RACKR:1;RACKR:2
package zone
