// Package controller is the operation surface of the chemistry platform.
//
// Each operation takes zone specifiers, resolves them against a
// zone.Registry, checks the affected elements can do what is asked and
// applies quantity accounting before posting one command through an
// Executor (normally a *channel.Channel):
//
//	ctl, err := controller.New(controller.Config{Registry: reg, Executor: ch})
//	if err != nil { ... }
//	err = ctl.TransferLiquid(ctx, controller.NewLiquidTransfer("RACKL:1", "ISYNTH:1", 2.5, 0))
//
// Rejections happen before anything reaches the controller and wrap the
// zone sentinel errors (zone.ErrElement, zone.ErrQuantity, zone.ErrRange,
// zone.ErrUnknownWell, zone.ErrConfiguration). Command failures wrap the
// channel errors (channel.ErrTimeout, context errors).
//
// Status readings are converted from the controller's raw units (K, Pa)
// into the units configured per status key.
package controller
