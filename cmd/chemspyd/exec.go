package main

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/chemspyd-core/internal/controller"
	"github.com/nerrad567/chemspyd-core/internal/zone"
)

// withController opens the app with journal and telemetry and runs fn.
func (o *options) withController(ctx context.Context, fn func(ctx context.Context, a *app) error) error {
	a, err := o.openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	if _, err := a.attachTelemetry(false); err != nil {
		return err
	}
	return fn(ctx, a)
}

// operation declares one exec subcommand: positional argument names and
// the controller call.
type operation struct {
	use   string
	short string
	args  []string
	run   func(ctx context.Context, a *app, args []string) error
	flags func(cmd *cobra.Command)
}

func newExecCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Validate and run one platform operation",
		Long: `exec runs a single operation. Zones are well names such as ISYNTH:1; join
several with ';'. States are "on" or "off".`,
	}

	var (
		needle       int
		rinse        float64
		rinseStation int
		ramp         float64
		grip         = controller.DefaultVialGrip()
	)

	ops := []operation{
		{
			use: "transfer-liquid", short: "Transfer liquid between zones (mL)",
			args: []string{"SOURCE", "DESTINATION", "VOLUME"},
			run: func(ctx context.Context, a *app, args []string) error {
				volume, err := parseNumber("volume", args[2])
				if err != nil {
					return err
				}
				t := controller.NewLiquidTransfer(args[0], args[1], volume, needle)
				t.RinseVolume = rinse
				t.RinseStation = rinseStation
				return a.ctl.TransferLiquid(ctx, t)
			},
			flags: func(cmd *cobra.Command) {
				cmd.Flags().IntVar(&needle, "needle", 0, "needle number, 0 uses all needles")
				cmd.Flags().Float64Var(&rinse, "rinse", 2, "rinse volume (mL)")
				cmd.Flags().IntVar(&rinseStation, "rinse-station", 1, "rinse station when all needles are used")
			},
		},
		{
			use: "transfer-solid", short: "Dispense solid into each destination well (mg)",
			args: []string{"SOURCE", "DESTINATION", "WEIGHT"},
			run: func(ctx context.Context, a *app, args []string) error {
				weight, err := parseNumber("weight", args[2])
				if err != nil {
					return err
				}
				masses, err := a.ctl.TransferSolid(ctx, controller.NewSolidTransfer(args[0], args[1], weight))
				if err != nil {
					return err
				}
				fmt.Fprintf(o.out, "dispensed (mg): %v\n", masses)
				return nil
			},
		},
		{
			use: "set-temperature", short: "Switch a thermostat (°C)",
			args: []string{"ZONE", "STATE", "TEMPERATURE"},
			run: func(ctx context.Context, a *app, args []string) error {
				v, err := parseNumber("temperature", args[2])
				if err != nil {
					return err
				}
				return a.ctl.SetTemperature(ctx, args[0], args[1], v, ramp)
			},
			flags: func(cmd *cobra.Command) {
				cmd.Flags().Float64Var(&ramp, "ramp", 0, "ramp rate (°C/min), 0 heats at full rate")
			},
		},
		{
			use: "set-stir", short: "Switch a stirrer (rpm)",
			args: []string{"ZONE", "STATE", "RPM"},
			run: func(ctx context.Context, a *app, args []string) error {
				v, err := parseNumber("rpm", args[2])
				if err != nil {
					return err
				}
				return a.ctl.SetStir(ctx, args[0], args[1], v)
			},
		},
		{
			use: "set-vacuum", short: "Switch a vacuum pump (mbar)",
			args: []string{"ZONE", "STATE", "PRESSURE"},
			run: func(ctx context.Context, a *app, args []string) error {
				v, err := parseNumber("pressure", args[2])
				if err != nil {
					return err
				}
				return a.ctl.SetVacuum(ctx, args[0], args[1], v)
			},
		},
		{
			use: "set-reflux", short: "Switch a reflux chiller (°C)",
			args: []string{"ZONE", "STATE", "TEMPERATURE"},
			run: func(ctx context.Context, a *app, args []string) error {
				v, err := parseNumber("temperature", args[2])
				if err != nil {
					return err
				}
				return a.ctl.SetReflux(ctx, args[0], args[1], v)
			},
		},
		{
			use: "set-drawer", short: "Set a drawer position and environment",
			args: []string{"ZONE", "STATE", "ENVIRONMENT"},
			run: func(ctx context.Context, a *app, args []string) error {
				return a.ctl.SetDrawer(ctx, args[0], args[1], args[2])
			},
		},
		{
			use: "set-zone-state", short: "Enable or disable zones",
			args: []string{"ZONE", "ENABLED"},
			run: func(ctx context.Context, a *app, args []string) error {
				enabled, err := parseEnabled(args[1])
				if err != nil {
					return err
				}
				return a.ctl.SetZoneState(ctx, args[0], enabled)
			},
		},
		{
			use: "vial-transport", short: "Move vials with the gripper",
			args: []string{"SOURCE", "DESTINATION"},
			run: func(ctx context.Context, a *app, args []string) error {
				return a.ctl.VialTransport(ctx, args[0], args[1], grip)
			},
			flags: func(cmd *cobra.Command) {
				cmd.Flags().Float64Var(&grip.Force, "force", grip.Force, "gripping force (N)")
				cmd.Flags().Float64Var(&grip.Depth, "depth", grip.Depth, "gripping depth (mm)")
				cmd.Flags().BoolVar(&grip.PushIn, "push-in", false, "push the vial in")
				cmd.Flags().BoolVar(&grip.GripInside, "grip-inside", false, "grip the vial from inside")
			},
		},
		{
			use: "measure-level", short: "Measure the material level of each well",
			args: []string{"ZONE"},
			run: func(ctx context.Context, a *app, args []string) error {
				levels, err := a.ctl.MeasureLevel(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(o.out, "levels: %v\n", levels)
				return nil
			},
		},
		{
			use: "prime-pump", short: "Flush system liquid through a pump into waste (mL)",
			args: []string{"PUMP", "VOLUME"},
			run: func(ctx context.Context, a *app, args []string) error {
				pump, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("pump %q: %w", args[0], err)
				}
				volume, err := parseNumber("volume", args[1])
				if err != nil {
					return err
				}
				return a.ctl.PrimePump(ctx, pump, volume)
			},
		},
		{
			use: "wait", short: "Make the controller wait, e.g. 90s",
			args: []string{"DURATION"},
			run: func(ctx context.Context, a *app, args []string) error {
				d, err := time.ParseDuration(args[0])
				if err != nil {
					return fmt.Errorf("duration %q: %w", args[0], err)
				}
				return a.ctl.Wait(ctx, d)
			},
		},
		{
			use: "stop-manager", short: "Stop the controller's command manager",
			run: func(ctx context.Context, a *app, _ []string) error {
				return a.ctl.StopManager(ctx)
			},
		},
	}

	for _, op := range ops {
		cmd.AddCommand(o.operationCmd(op))
	}
	return cmd
}

func (o *options) operationCmd(op operation) *cobra.Command {
	use := op.use
	if len(op.args) > 0 {
		use += " " + strings.Join(op.args, " ")
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: op.short,
		Args:  cobra.ExactArgs(len(op.args)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withController(cmd.Context(), func(ctx context.Context, a *app) error {
				return op.run(ctx, a, args)
			})
		},
	}
	if op.flags != nil {
		op.flags(cmd)
	}
	return cmd
}

func parseNumber(name, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not a number", name, s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s %q is not a finite number", zone.ErrRange, name, s)
	}
	return v, nil
}

func parseEnabled(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "enabled", "1":
		return true, nil
	case "off", "false", "disabled", "0":
		return false, nil
	}
	return false, fmt.Errorf("enabled %q must be on or off", s)
}
