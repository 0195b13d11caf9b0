package events

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/chemspyd-core/internal/channel"
	"github.com/nerrad567/chemspyd-core/internal/zone"
)

// CommandWriter stores finished commands as time series.
// *influxdb.Client implements it.
type CommandWriter interface {
	WriteCommand(name string, duration time.Duration, simulated, failed bool, at time.Time)
}

// QuantityWriter stores well quantities as time series.
// *influxdb.Client implements it.
type QuantityWriter interface {
	WriteQuantity(element string, index int, quantity float64, at time.Time)
}

// CommandSeries adapts a CommandWriter to channel.Observer; only
// completions are written.
type CommandSeries struct {
	W   CommandWriter
	Now func() time.Time
}

// CommandPosted implements channel.Observer.
func (CommandSeries) CommandPosted(channel.Command) {}

// CommandStarted implements channel.Observer.
func (CommandSeries) CommandStarted(channel.Command) {}

// CommandCompleted implements channel.Observer.
func (s CommandSeries) CommandCompleted(cmd channel.Command, err error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	s.W.WriteCommand(cmd.Name, cmd.Duration, cmd.Simulated, err != nil, now())
}

// QuantityRecorder matches controller.QuantityRecorder.
type QuantityRecorder interface {
	RecordQuantities(ctx context.Context, snaps []zone.QuantitySnapshot) error
}

// QuantitySeries writes each snapshot to a QuantityWriter.
type QuantitySeries struct {
	W   QuantityWriter
	Now func() time.Time
}

// RecordQuantities implements controller.QuantityRecorder.
func (s QuantitySeries) RecordQuantities(_ context.Context, snaps []zone.QuantitySnapshot) error {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	at := now()
	for _, snap := range snaps {
		s.W.WriteQuantity(snap.Element, snap.Index, snap.Quantity, at)
	}
	return nil
}

// QuantityFanout records snapshots with every recorder and joins their
// errors.
type QuantityFanout []QuantityRecorder

// RecordQuantities implements controller.QuantityRecorder.
func (f QuantityFanout) RecordQuantities(ctx context.Context, snaps []zone.QuantitySnapshot) error {
	var errs []error
	for _, r := range f {
		if err := r.RecordQuantities(ctx, snaps); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
