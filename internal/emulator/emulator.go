package emulator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/chemspyd-core/internal/channel"
)

// Default timings.
const (
	DefaultPollInterval  = 20 * time.Millisecond
	DefaultExecutionTime = 50 * time.Millisecond
)

// Ambient readings reported while nothing is switched on.
const (
	AmbientKelvin   = 293.15
	AmbientPascal   = 101325.0
	AmbientHumidity = 35.0
)

// Config holds emulator settings.
type Config struct {
	// Dir is the shared protocol directory.
	Dir string

	// PollInterval is how often command.csv is checked.
	PollInterval time.Duration

	// ExecutionTime is how long each command keeps the controller busy.
	ExecutionTime time.Duration
}

// Logger defines the logging interface used by the emulator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Status is the telemetry the emulator reports, in the controller's raw
// units.
type Status struct {
	TemperatureK    float64
	RefluxK         float64
	VacuumPa        float64
	StirRPM         float64
	BoxTemperatureK float64
	BoxHumidity     float64
}

// AmbientStatus is the telemetry of an idle platform.
func AmbientStatus() Status {
	return Status{
		TemperatureK:    AmbientKelvin,
		RefluxK:         AmbientKelvin,
		VacuumPa:        AmbientPascal,
		BoxTemperatureK: AmbientKelvin,
		BoxHumidity:     AmbientHumidity,
	}
}

func (s Status) record() string {
	values := []float64{s.TemperatureK, s.RefluxK, s.VacuumPa, s.StirRPM, s.BoxTemperatureK, s.BoxHumidity}
	fields := make([]string, 0, len(values)+1)
	for _, v := range values {
		fields = append(fields, strconv.FormatFloat(v, 'f', -1, 64))
	}
	fields = append(fields, "end")
	return strings.Join(fields, ",") + "\n"
}

// Received is one command picked up by the emulator.
type Received struct {
	Name string
	Args []string
	At   time.Time
}

// Handler runs one command against the emulated status and returns the
// values for return.csv.
type Handler func(args []string, status *Status) ([]string, error)

// Emulator answers the command file protocol in-process, standing in for
// the external controller during tests and dry runs.
//
// Thread Safety:
//   - All exported methods are safe for concurrent use.
type Emulator struct {
	cfg    Config
	logger Logger

	mu       sync.Mutex
	status   Status
	handlers map[string]Handler
	received []Received

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an emulator with the default command handlers.
func New(cfg Config) (*Emulator, error) {
	if cfg.Dir == "" {
		return nil, errors.New("emulator: directory is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ExecutionTime < 0 {
		cfg.ExecutionTime = 0
	}

	e := &Emulator{
		cfg:      cfg,
		logger:   noopLogger{},
		status:   AmbientStatus(),
		handlers: make(map[string]Handler),
	}
	for name, h := range defaultHandlers() {
		e.handlers[name] = h
	}
	return e, nil
}

// SetLogger sets the logger for the emulator.
func (e *Emulator) SetLogger(logger Logger) {
	if logger != nil {
		e.logger = logger
	}
}

// Handle registers or replaces the handler for a command.
func (e *Emulator) Handle(name string, h Handler) {
	e.mu.Lock()
	e.handlers[name] = h
	e.mu.Unlock()
}

// Status returns the current emulated telemetry.
func (e *Emulator) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// SetStatus overwrites the emulated telemetry and rewrites status.csv.
func (e *Emulator) SetStatus(s Status) error {
	e.mu.Lock()
	e.status = s
	e.mu.Unlock()
	return e.write(channel.StatusFile, s.record())
}

// Received returns the commands picked up so far, oldest first.
func (e *Emulator) Received() []Received {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Received(nil), e.received...)
}

// Init writes an idle protocol directory: idle response, cleared command
// flag, ambient status and an empty return record.
func (e *Emulator) Init() error {
	if err := os.MkdirAll(e.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("creating protocol directory: %w", err)
	}
	files := []struct{ name, content string }{
		{channel.CommandFile, "0,none\n,end\n"},
		{channel.ReturnFile, "end\n"},
		{channel.StatusFile, e.Status().record()},
		{channel.ResponseFile, "1,idle\n"},
	}
	for _, f := range files {
		if err := e.write(f.name, f.content); err != nil {
			return err
		}
	}
	return nil
}

// Start initialises the directory and begins answering commands in a
// background goroutine until ctx is cancelled or Stop is called.
func (e *Emulator) Start(ctx context.Context) error {
	if err := e.Init(); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})

	go e.loop(ctx)
	e.logger.Info("controller emulator started", "dir", e.cfg.Dir)
	return nil
}

// Stop halts the emulator and waits for the loop to exit.
func (e *Emulator) Stop() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
	e.cancel = nil
	e.logger.Info("controller emulator stopped")
}

func (e *Emulator) loop(ctx context.Context) {
	defer close(e.done)

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		name, args, ok := e.pending()
		if !ok {
			continue
		}
		if err := e.execute(ctx, name, args); err != nil {
			e.logger.Error("emulated command failed", "command", name, "error", err)
		}
	}
}

// pending returns the posted command, if any.
func (e *Emulator) pending() (string, []string, bool) {
	data, err := os.ReadFile(filepath.Join(e.cfg.Dir, channel.CommandFile))
	if err != nil {
		return "", nil, false
	}
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	if len(lines) < 2 {
		return "", nil, false
	}
	head := strings.Split(lines[0], ",")
	if len(head) < 2 || head[0] != "1" {
		return "", nil, false
	}
	args := strings.Split(lines[1], ",")
	if last := len(args) - 1; args[last] == "end" {
		args = args[:last]
	}
	if len(args) == 1 && args[0] == "" {
		args = nil
	}
	return head[1], args, true
}

func (e *Emulator) execute(ctx context.Context, name string, args []string) error {
	e.logger.Debug("emulating command", "command", name, "args", args)

	if err := e.write(channel.ResponseFile, "0,busy\n"); err != nil {
		return err
	}
	if err := e.write(channel.CommandFile, "0,"+name+"\n"+strings.Join(append(args, "end"), ",")+"\n"); err != nil {
		return err
	}

	e.mu.Lock()
	e.received = append(e.received, Received{Name: name, Args: args, At: time.Now()})
	handler, known := e.handlers[name]
	var ret []string
	var err error
	if known {
		ret, err = handler(args, &e.status)
	} else {
		e.logger.Warn("unknown command acknowledged", "command", name)
	}
	status := e.status
	e.mu.Unlock()

	if e.cfg.ExecutionTime > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(e.cfg.ExecutionTime):
		}
	}

	if err != nil {
		e.logger.Warn("command handler rejected arguments", "command", name, "error", err)
		ret = nil
	}
	if writeErr := e.write(channel.ReturnFile, strings.Join(append(ret, "end"), ",")+"\n"); writeErr != nil {
		return writeErr
	}
	if writeErr := e.write(channel.StatusFile, status.record()); writeErr != nil {
		return writeErr
	}
	return e.write(channel.ResponseFile, "1,idle\n")
}

func (e *Emulator) write(name, content string) error {
	return channel.WriteFileAtomic(filepath.Join(e.cfg.Dir, name), []byte(content))
}
