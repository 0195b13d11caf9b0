// Package emulator is an in-process stand-in for the external hardware
// controller.
//
// It watches command.csv in the shared protocol directory and answers the
// way the controller does: clear the new-command flag, report busy, apply
// the command to an emulated telemetry state, write return.csv and
// status.csv, then report idle again. It lets the channel, the controller
// operations and the CLI run end to end without hardware.
//
// Handled commands: set_temperature, set_reflux, set_stir and set_vacuum
// update the telemetry; transfer_solid returns the requested mass (in kg)
// per destination; measure_level returns a fixed level per zone. Other
// commands are acknowledged with an empty return record. Tests can install
// their own behaviour with Handle.
package emulator
