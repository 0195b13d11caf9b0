package controller

import (
	"context"
	"fmt"
	"strconv"

	"github.com/nerrad567/chemspyd-core/internal/channel"
	"github.com/nerrad567/chemspyd-core/internal/units"
)

// LiquidTransfer describes one liquid transfer. Use NewLiquidTransfer for
// the stock defaults.
type LiquidTransfer struct {
	Source      Zone
	Destination Zone
	Volume      float64 // mL
	Needle      int     // 0 means all needles

	SourceFlow          float64 // mL/min
	SourceBottomUp      bool
	SourceDistance      float64 // mm
	DestinationFlow     float64 // mL/min
	DestinationBottomUp bool
	DestinationDistance float64 // mm

	RinseVolume  float64 // mL
	RinseStation int     // used only with Needle 0

	Airgap            float64 // mL
	PostAirgap        float64 // mL
	AirgapDestination string
	ExtraVolume       float64 // mL
	ExtraDestination  string

	SourceEquilibration      float64 // s
	DestinationEquilibration float64 // s
	MultipleAspiration       bool
}

// NewLiquidTransfer returns a transfer with the stock defaults.
func NewLiquidTransfer(source, destination Zone, volume float64, needle int) LiquidTransfer {
	return LiquidTransfer{
		Source:              source,
		Destination:         destination,
		Volume:              volume,
		Needle:              needle,
		SourceFlow:          10,
		SourceBottomUp:      true,
		SourceDistance:      3,
		DestinationFlow:     10,
		DestinationDistance: 5,
		RinseVolume:         2,
		RinseStation:        1,
		Airgap:              0.01,
		AirgapDestination:   "WASTE",
		ExtraDestination:    "WASTE",
	}
}

// TransferLiquid moves liquid from the source wells to the destination
// wells.
//
// The source must allow liquid removal and the destination liquid
// addition; with tracking enabled, both must stay within their quantity
// bounds. A specific needle uses the rinse station from the system
// liquids table.
func (c *Controller) TransferLiquid(ctx context.Context, t LiquidTransfer) error {
	const op = "transfer_liquid"

	if err := checkAmount("volume", t.Volume); err != nil {
		return c.reject(op, err)
	}
	source, err := c.resolve(op, t.Source)
	if err != nil {
		return err
	}
	destination, err := c.resolve(op, t.Destination)
	if err != nil {
		return err
	}
	rinse, err := c.liquids.RinseStation(t.Needle, t.RinseStation)
	if err != nil {
		return c.reject(op, err)
	}

	args := []channel.Arg{
		arg("Source Zone", source.ZoneString(), ""),
		arg("Destination Zone", destination.ZoneString(), ""),
		arg("Volume", t.Volume, "mL"),
		arg("Needle No.", t.Needle, ""),
		arg("Flow Rate (Source)", t.SourceFlow, "mL/min"),
		arg("Bottom-Up (Source)", t.SourceBottomUp, ""),
		arg("Distance (Source)", t.SourceDistance, "mm"),
		arg("Flow Rate (Destination)", t.DestinationFlow, "mL/min"),
		arg("Bottom-Up (Destination)", t.DestinationBottomUp, ""),
		arg("Distance (Destination)", t.DestinationDistance, "mm"),
		arg("Rinse Volume", t.RinseVolume, "mL"),
		arg("Rinse Station No.", rinse, ""),
		arg("Airgap Volume", t.Airgap, "mL"),
		arg("Post-Airgap Volume", t.PostAirgap, "mL"),
		arg("Airgap Destination", t.AirgapDestination, ""),
		arg("Extra Volume", t.ExtraVolume, "mL"),
		arg("Extra Volume Destination", t.ExtraDestination, ""),
		arg("Equilib. Time (Source)", t.SourceEquilibration, "s"),
		arg("Equilib. Time (Destination)", t.DestinationEquilibration, "s"),
		arg("Mult. Aspiration Allowed", t.MultipleAspiration, ""),
	}
	if err := checkFinite(args); err != nil {
		return c.reject(op, err)
	}

	if err := source.RemoveLiquid(t.Volume); err != nil {
		return c.reject(op, err)
	}
	if err := destination.AddLiquid(t.Volume); err != nil {
		return c.reject(op, err)
	}

	err = c.execute(ctx, op, args...)
	c.recordQuantities(ctx)
	return err
}

// SolidTransfer describes one gravimetric solid dispense. Use
// NewSolidTransfer for the stock defaults.
type SolidTransfer struct {
	Source      Zone
	Destination Zone
	Weight      float64 // mg

	Height        float64 // mm relative to vial top, negative is inside
	Chunk         float64 // mg
	Equilibration float64 // s
	AutoDispense  bool

	RoughSpeed        float64 // rpm
	RoughAcceleration float64 // deg s^-2
	RoughAmplitude    float64 // %

	FineAmount       float64 // mg
	FineSpeed        float64 // rpm
	FineAcceleration float64 // deg s^-2
	FineAmplitude    float64 // %
	FineAngle        float64 // degrees, 0-360
}

// NewSolidTransfer returns a solid dispense with the stock defaults.
func NewSolidTransfer(source, destination Zone, weight float64) SolidTransfer {
	return SolidTransfer{
		Source:            source,
		Destination:       destination,
		Weight:            weight,
		Chunk:             0.1,
		Equilibration:     5,
		RoughSpeed:        30,
		RoughAcceleration: 20,
		RoughAmplitude:    100,
		FineAmount:        1,
		FineSpeed:         30,
		FineAcceleration:  20,
		FineAmplitude:     40,
		FineAngle:         360,
	}
}

// TransferSolid dispenses solid from the source capsules into the
// destination wells and returns the weighed mass per destination in mg.
func (c *Controller) TransferSolid(ctx context.Context, t SolidTransfer) ([]float64, error) {
	const op = "transfer_solid"

	if err := checkAmount("weight", t.Weight); err != nil {
		return nil, c.reject(op, err)
	}
	source, err := c.resolve(op, t.Source)
	if err != nil {
		return nil, err
	}
	destination, err := c.resolve(op, t.Destination)
	if err != nil {
		return nil, err
	}

	args := []channel.Arg{
		arg("Source Zone", source.ZoneString(), ""),
		arg("Destination Zone", destination.ZoneString(), ""),
		arg("Mass", t.Weight, "mg"),
		arg("Dispensing Height", t.Height, "mm"),
		arg("Chunk Size", t.Chunk, "mg"),
		arg("Equilibration Time", t.Equilibration, "s"),
		arg("Rough Dispensing Speed", t.RoughSpeed, "rpm"),
		arg("Rough Dispensing Acceleration", t.RoughAcceleration, "deg s^-2"),
		arg("Rough Dispensing Amplitude", t.RoughAmplitude, ""),
		arg("Fine Dispensing Amount", t.FineAmount, "mg"),
		arg("Fine Dispensing Speed", t.FineSpeed, "rpm"),
		arg("Fine Dispensing Acceleration", t.FineAcceleration, "deg s^-2"),
		arg("Fine Dispensing Amplitude", t.FineAmplitude, ""),
		arg("Fine Dispensing Angle", t.FineAngle, "deg"),
		arg("Auto Dispense Activated", t.AutoDispense, ""),
	}
	if err := checkFinite(args); err != nil {
		return nil, c.reject(op, err)
	}

	if err := source.RemoveSolid(t.Weight); err != nil {
		return nil, c.reject(op, err)
	}
	if err := destination.AddSolid(0); err != nil {
		return nil, c.reject(op, err)
	}

	err = c.execute(ctx, op, args...)
	c.recordQuantities(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := c.exec.ReadReturn()
	if err != nil {
		return nil, fmt.Errorf("%s: reading dispensed masses: %w", op, err)
	}
	return parseFloats(raw, units.KilogramToMilligram)
}

// VialTransport moves vials between positions with the gripper. No
// quantities change.
func (c *Controller) VialTransport(ctx context.Context, source, destination Zone, opts VialGrip) error {
	const op = "vial_transport"

	src, err := c.resolve(op, source)
	if err != nil {
		return err
	}
	dst, err := c.resolve(op, destination)
	if err != nil {
		return err
	}

	return c.execute(ctx, op,
		arg("Source Zone", src.ZoneString(), ""),
		arg("Destination Zone", dst.ZoneString(), ""),
		arg("Gripping Force", opts.Force, "N"),
		arg("Gripping Depth", opts.Depth, "mm"),
		arg("Push Vial In", opts.PushIn, ""),
		arg("Grip Vial from Inside", opts.GripInside, ""),
	)
}

// VialGrip configures the gripper for VialTransport.
type VialGrip struct {
	Force      float64 // N
	Depth      float64 // mm
	PushIn     bool
	GripInside bool
}

// DefaultVialGrip returns the stock gripper settings.
func DefaultVialGrip() VialGrip {
	return VialGrip{Force: 10, Depth: 7.5}
}

// PrimePump flushes volume of system liquid from a valve well into its
// waste well and unmounts the tool afterwards.
func (c *Controller) PrimePump(ctx context.Context, pump int, volume float64) error {
	valve := "VALVEB:" + strconv.Itoa(pump)
	waste, err := c.liquids.ReturnDestination(valve)
	if err != nil {
		return c.reject("prime_pump", err)
	}

	t := NewLiquidTransfer(valve, waste, volume, 0)
	t.SourceFlow = 20
	t.DestinationFlow = 40
	t.RinseVolume = 0
	if err := c.TransferLiquid(ctx, t); err != nil {
		return err
	}
	return c.UnmountAll(ctx)
}

func parseFloats(raw []string, convert func(float64) float64) ([]float64, error) {
	out := make([]float64, len(raw))
	for i, s := range raw {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing return value %q: %w", s, err)
		}
		if convert != nil {
			v = convert(v)
		}
		out[i] = v
	}
	return out, nil
}
