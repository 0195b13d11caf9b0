package controller

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/nerrad567/chemspyd-core/internal/channel"
	"github.com/nerrad567/chemspyd-core/internal/zone"
)

// Zone is a caller-supplied zone specifier: a well name such as "RACKL:3"
// (several joined with ';'), a *zone.Well, a zone.WellRef, a *zone.Group or
// a slice of these. See zone.Registry.Resolve.
type Zone = any

// Executor posts commands to the external controller and reads its
// result files. *channel.Channel implements it.
type Executor interface {
	Execute(ctx context.Context, name string, args ...channel.Arg) error
	ReadReturn() ([]string, error)
	ReadStatus() ([]string, error)
}

// QuantityRecorder persists tracked quantities after a command changed
// them.
type QuantityRecorder interface {
	RecordQuantities(ctx context.Context, snaps []zone.QuantitySnapshot) error
}

// ValidationRecorder is notified when an operation is rejected before any
// command is sent.
type ValidationRecorder interface {
	ValidationFailed(operation string, err error)
}

// Logger defines the logging interface used by the controller.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config holds the controller dependencies.
type Config struct {
	// Registry resolves zone specifiers. Required.
	Registry *zone.Registry

	// Executor runs commands. Required.
	Executor Executor

	// Liquids maps needles to rinse stations and valves to waste. Optional;
	// DefaultSystemLiquids is used when nil.
	Liquids *SystemLiquids

	// StatusKeys names the fields of status.csv in order. Optional;
	// DefaultStatusKeys is used when empty.
	StatusKeys []StatusKey
}

// Controller is the high-level operation surface of the platform. Each
// operation resolves its zones, validates them against the element
// capabilities, applies quantity accounting and only then posts exactly
// one command (SetStir posts two).
//
// Accounting is optimistic: quantities are updated before the command is
// confirmed and are not rolled back if the command fails.
type Controller struct {
	registry   *zone.Registry
	exec       Executor
	liquids    *SystemLiquids
	statusKeys []StatusKey
	setters    map[string]elementSetter

	logger     Logger
	quantities QuantityRecorder
	validation ValidationRecorder
}

// New creates a Controller.
func New(cfg Config) (*Controller, error) {
	if cfg.Registry == nil {
		return nil, errors.New("controller: registry is required")
	}
	if cfg.Executor == nil {
		return nil, errors.New("controller: executor is required")
	}

	c := &Controller{
		registry:   cfg.Registry,
		exec:       cfg.Executor,
		liquids:    cfg.Liquids,
		statusKeys: cfg.StatusKeys,
		logger:     noopLogger{},
	}
	if c.liquids == nil {
		c.liquids = DefaultSystemLiquids()
	}
	if len(c.statusKeys) == 0 {
		c.statusKeys = DefaultStatusKeys()
	}
	if err := ValidateStatusKeys(c.statusKeys); err != nil {
		return nil, err
	}
	c.setters = c.buildSetters()
	return c, nil
}

// SetLogger sets the logger for the controller.
func (c *Controller) SetLogger(logger Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// SetQuantityRecorder sets where tracked quantities are persisted.
func (c *Controller) SetQuantityRecorder(r QuantityRecorder) {
	c.quantities = r
}

// SetValidationRecorder sets the receiver of rejected operations.
func (c *Controller) SetValidationRecorder(r ValidationRecorder) {
	c.validation = r
}

// Registry returns the zone registry.
func (c *Controller) Registry() *zone.Registry { return c.registry }

// Liquids returns the system liquids table.
func (c *Controller) Liquids() *SystemLiquids { return c.liquids }

// resolve builds the group for spec, recording a failure against op.
func (c *Controller) resolve(op string, spec Zone, state ...string) (*zone.Group, error) {
	g, err := c.registry.Resolve(spec, state...)
	if err != nil {
		return nil, c.reject(op, err)
	}
	return g, nil
}

// reject records a validation failure and returns err unchanged.
func (c *Controller) reject(op string, err error) error {
	c.logger.Warn("operation rejected", "operation", op, "error", err)
	if c.validation != nil {
		c.validation.ValidationFailed(op, err)
	}
	return err
}

// checkParameters validates each name/value pair against every member.
func (c *Controller) checkParameters(op string, g *zone.Group, params ...any) error {
	for i := 0; i+1 < len(params); i += 2 {
		name, ok := params[i].(string)
		if !ok {
			return fmt.Errorf("controller: parameter name %v is not a string", params[i])
		}
		if err := g.SetParameter(name, params[i+1]); err != nil {
			return c.reject(op, err)
		}
	}
	return nil
}

// execute posts one command.
func (c *Controller) execute(ctx context.Context, name string, args ...channel.Arg) error {
	if err := checkFinite(args); err != nil {
		return c.reject(name, err)
	}
	if err := c.exec.Execute(ctx, name, args...); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// recordQuantities persists the tracked quantities; failures are logged
// since the command has already run.
func (c *Controller) recordQuantities(ctx context.Context) {
	if c.quantities == nil {
		return
	}
	snaps := c.registry.Snapshot()
	if len(snaps) == 0 {
		return
	}
	if err := c.quantities.RecordQuantities(ctx, snaps); err != nil {
		c.logger.Error("recording quantities failed", "error", err)
	}
}

// checkAmount rejects negative, NaN and infinite amounts.
func checkAmount(what string, v float64) error {
	if !(v >= 0) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s %g must be a finite non-negative number", zone.ErrRange, what, v)
	}
	return nil
}

// checkFinite rejects float arguments the controller cannot parse.
func checkFinite(args []channel.Arg) error {
	for _, a := range args {
		if f, ok := a.Value.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			return fmt.Errorf("%w: %s %g is not a finite number", zone.ErrRange, a.Name, f)
		}
	}
	return nil
}

func arg(name string, value any, unit string) channel.Arg {
	return channel.Arg{Name: name, Value: value, Unit: unit}
}
