package channel

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultPollInterval is used when Config.PollInterval is zero.
const DefaultPollInterval = 100 * time.Millisecond

// Config holds the channel settings.
type Config struct {
	// Dir is the directory holding the four protocol files. Required unless
	// Simulation is set.
	Dir string

	// PollInterval is the delay between flag checks while waiting.
	PollInterval time.Duration

	// Timeout bounds each wait phase of Execute. Zero waits forever, which
	// reproduces the controller's own blocking semantics.
	Timeout time.Duration

	// Simulation logs commands instead of writing them. No file is read or
	// written in this mode.
	Simulation bool
}

// Logger defines the logging interface used by the channel.
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

// Command describes one Execute call as seen by observers.
type Command struct {
	ID        string
	Name      string
	Args      []Arg
	Simulated bool
	PostedAt  time.Time
	StartedAt time.Time
	Duration  time.Duration
}

// Observer receives command lifecycle notifications. Callbacks run on the
// executing goroutine and must not block.
type Observer interface {
	// CommandPosted is called once the command file has been written.
	CommandPosted(cmd Command)

	// CommandStarted is called when the controller leaves idle.
	CommandStarted(cmd Command)

	// CommandCompleted is called when Execute returns, with its error.
	CommandCompleted(cmd Command, err error)
}

// State is the channel state derived from the two protocol flags.
type State string

const (
	// StateIdle means the controller is idle and no command is pending.
	StateIdle State = "idle"

	// StatePosted means a command is written but not yet accepted.
	StatePosted State = "posted"

	// StateExecuting means the controller is busy.
	StateExecuting State = "executing"

	// StateSimulated is reported in simulation mode.
	StateSimulated State = "simulated"
)

// Channel is the file-based rendezvous with the external hardware
// controller. It is the only writer of command.csv and only ever reads the
// other three files.
//
// Thread Safety:
//   - Execute calls are serialised by an internal mutex.
//   - Flag and value reads are safe at any time.
type Channel struct {
	cfg    Config
	logger Logger

	commandPath  string
	responsePath string
	statusPath   string
	returnPath   string

	mu        sync.Mutex // serialises Execute
	obsMu     sync.RWMutex
	observers []Observer
}

// New creates a Channel.
//
// Returns:
//   - *Channel: Ready channel; nothing is read until first use
//   - error: If Dir is missing outside simulation or a duration is negative
func New(cfg Config) (*Channel, error) {
	if cfg.Dir == "" && !cfg.Simulation {
		return nil, errors.New("channel: directory is required")
	}
	if cfg.PollInterval < 0 || cfg.Timeout < 0 {
		return nil, errors.New("channel: poll interval and timeout must not be negative")
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	return &Channel{
		cfg:          cfg,
		logger:       noopLogger{},
		commandPath:  filepath.Join(cfg.Dir, CommandFile),
		responsePath: filepath.Join(cfg.Dir, ResponseFile),
		statusPath:   filepath.Join(cfg.Dir, StatusFile),
		returnPath:   filepath.Join(cfg.Dir, ReturnFile),
	}, nil
}

// SetLogger sets the logger for the channel.
func (c *Channel) SetLogger(logger Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// AddObserver registers an observer for command lifecycle events.
func (c *Channel) AddObserver(o Observer) {
	if o == nil {
		return
	}
	c.obsMu.Lock()
	c.observers = append(c.observers, o)
	c.obsMu.Unlock()
}

// Simulation reports whether the channel runs in simulation mode.
func (c *Channel) Simulation() bool { return c.cfg.Simulation }

// Dir returns the protocol directory.
func (c *Channel) Dir() string { return c.cfg.Dir }

// IsIdle reports whether the first field of response.csv is "1".
func (c *Channel) IsIdle() (bool, error) {
	return readFlag(c.responsePath)
}

// HasNewCommand reports whether the first field of command.csv is "1".
func (c *Channel) HasNewCommand() (bool, error) {
	return readFlag(c.commandPath)
}

// IsBlocked reports whether the controller is busy or a command is still
// pending: !idle || newCommand.
func (c *Channel) IsBlocked() (bool, error) {
	idle, err := c.IsIdle()
	if err != nil {
		return false, err
	}
	if !idle {
		return true, nil
	}
	return c.HasNewCommand()
}

// State derives the channel state from both flags.
func (c *Channel) State() (State, error) {
	if c.cfg.Simulation {
		return StateSimulated, nil
	}
	idle, err := c.IsIdle()
	if err != nil {
		return "", err
	}
	if !idle {
		return StateExecuting, nil
	}
	pending, err := c.HasNewCommand()
	if err != nil {
		return "", err
	}
	if pending {
		return StatePosted, nil
	}
	return StateIdle, nil
}

// ReadReturn returns the result values of the last command, without the
// end sentinel. Callers apply unit conversions.
func (c *Channel) ReadReturn() ([]string, error) {
	return readValues(c.returnPath)
}

// ReadStatus returns the telemetry values, without the end sentinel.
func (c *Channel) ReadStatus() ([]string, error) {
	return readValues(c.statusPath)
}

// Execute posts a command and blocks until the controller has run it.
//
// The sequence is: wait until the channel is unblocked, write command.csv,
// wait until the controller leaves idle (accepted), wait until it is
// unblocked again (completed). In simulation mode the command is only
// logged.
//
// Parameters:
//   - ctx: Cancels any wait phase
//   - name: Command name known to the controller
//   - args: Ordered arguments; values must not contain ',' or line breaks
//
// Returns:
//   - error: ErrInvalidArgument before anything is written, ErrTimeout if a
//     wait phase exceeds Config.Timeout, ctx.Err() on cancellation, or a
//     file error
func (c *Channel) Execute(ctx context.Context, name string, args ...Arg) error {
	payload, err := encodeCommand(name, args)
	if err != nil {
		return err
	}

	cmd := Command{
		ID:        uuid.NewString(),
		Name:      name,
		Args:      args,
		Simulated: c.cfg.Simulation,
	}

	if c.cfg.Simulation {
		cmd.PostedAt = time.Now()
		c.logger.Debug("execute (simulated)", "command", name, "args", formatArgs(args), "id", cmd.ID)
		c.notifyPosted(cmd)
		c.notifyCompleted(cmd, nil)
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	err = c.run(ctx, &cmd, payload)
	if !cmd.PostedAt.IsZero() {
		cmd.Duration = time.Since(cmd.PostedAt)
		c.notifyCompleted(cmd, err)
	}
	if err != nil {
		c.logger.Error("command failed", "command", name, "id", cmd.ID, "error", err)
	}
	return err
}

func (c *Channel) run(ctx context.Context, cmd *Command, payload []byte) error {
	if err := c.waitUntil(ctx, "channel release", c.unblocked); err != nil {
		return err
	}

	if err := WriteFileAtomic(c.commandPath, payload); err != nil {
		return err
	}
	cmd.PostedAt = time.Now()
	c.logger.Info("execute", "command", cmd.Name, "args", formatArgs(cmd.Args), "id", cmd.ID)
	c.notifyPosted(*cmd)

	if err := c.waitUntil(ctx, "command acceptance", c.busy); err != nil {
		return err
	}
	cmd.StartedAt = time.Now()
	c.logger.Debug("command started", "command", cmd.Name, "id", cmd.ID)
	c.notifyStarted(*cmd)

	if err := c.waitUntil(ctx, "command completion", c.unblocked); err != nil {
		return err
	}
	c.logger.Debug("command completed", "command", cmd.Name, "id", cmd.ID,
		"duration", time.Since(cmd.PostedAt))
	return nil
}

func (c *Channel) unblocked() (bool, error) {
	blocked, err := c.IsBlocked()
	return !blocked, err
}

func (c *Channel) busy() (bool, error) {
	idle, err := c.IsIdle()
	return !idle, err
}

// waitUntil polls cond every PollInterval until it holds. Malformed reads
// are retried on the next tick since the controller may be mid-write.
func (c *Channel) waitUntil(ctx context.Context, phase string, cond func() (bool, error)) error {
	var deadline <-chan time.Time
	if c.cfg.Timeout > 0 {
		timer := time.NewTimer(c.cfg.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		ok, err := cond()
		switch {
		case err == nil && ok:
			return nil
		case err != nil && !errors.Is(err, ErrMalformedFile):
			return err
		case err != nil:
			c.logger.Debug("retrying protocol read", "phase", phase, "error", err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", phase, ctx.Err())
		case <-deadline:
			return fmt.Errorf("%w: no %s after %v", ErrTimeout, phase, c.cfg.Timeout)
		case <-ticker.C:
		}
	}
}

func (c *Channel) notifyPosted(cmd Command) {
	c.obsMu.RLock()
	defer c.obsMu.RUnlock()
	for _, o := range c.observers {
		o.CommandPosted(cmd)
	}
}

func (c *Channel) notifyStarted(cmd Command) {
	c.obsMu.RLock()
	defer c.obsMu.RUnlock()
	for _, o := range c.observers {
		o.CommandStarted(cmd)
	}
}

func (c *Channel) notifyCompleted(cmd Command, err error) {
	c.obsMu.RLock()
	defer c.obsMu.RUnlock()
	for _, o := range c.observers {
		o.CommandCompleted(cmd, err)
	}
}

func readFlag(path string) (bool, error) {
	fields, err := ReadRecord(path)
	if err != nil {
		return false, err
	}
	return fields[0] == flagSet, nil
}
