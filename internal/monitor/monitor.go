package monitor

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultInterval is used when Config.Interval is zero.
const DefaultInterval = 10 * time.Second

// StatusReader returns one converted status reading.
// *controller.Controller implements it through an adapter in cmd.
type StatusReader interface {
	ReadStatus() (map[string]float64, error)
}

// BusyChecker reports whether the controller is executing a command.
// *channel.Channel implements it.
type BusyChecker interface {
	IsBlocked() (bool, error)
}

// Sink receives every successful status reading.
type Sink interface {
	ObserveStatus(status map[string]float64, at time.Time)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(status map[string]float64, at time.Time)

// ObserveStatus implements Sink.
func (f SinkFunc) ObserveStatus(status map[string]float64, at time.Time) { f(status, at) }

// FailureSink is optionally implemented by sinks that count failed reads.
type FailureSink interface {
	StatusReadFailed()
}

// Pruner deletes journal entries older than a retention period.
type Pruner interface {
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Logger defines the logging interface used by the monitor.
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

// Config holds the monitor dependencies.
type Config struct {
	Reader StatusReader

	// Busy, when set, skips ticks while a command is executing.
	Busy BusyChecker

	Sinks    []Sink
	Interval time.Duration

	// Pruner and Retention enable journal pruning on every PruneEvery-th
	// tick. Retention 0 disables pruning.
	Pruner     Pruner
	Retention  time.Duration
	PruneEvery int
}

// Monitor polls status.csv on an interval and fans readings out to sinks.
type Monitor struct {
	cfg     Config
	refresh chan struct{}
	logger  Logger
	now     func() time.Time

	mu   sync.RWMutex
	last map[string]float64
	at   time.Time
}

// New creates a Monitor.
//
// Returns:
//   - *Monitor: Monitor ready to Run
//   - error: If no Reader is configured or Interval is negative
func New(cfg Config) (*Monitor, error) {
	if cfg.Reader == nil {
		return nil, errors.New("monitor: status reader is required")
	}
	if cfg.Interval < 0 {
		return nil, errors.New("monitor: interval must not be negative")
	}
	if cfg.Interval == 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.PruneEvery <= 0 {
		cfg.PruneEvery = 360
	}
	return &Monitor{
		cfg:     cfg,
		refresh: make(chan struct{}, 1),
		logger:  noopLogger{},
		now:     time.Now,
	}, nil
}

// SetLogger sets the logger. Call before Run.
func (m *Monitor) SetLogger(logger Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// AddSink registers a sink. Call before Run.
func (m *Monitor) AddSink(s Sink) {
	if s != nil {
		m.cfg.Sinks = append(m.cfg.Sinks, s)
	}
}

// Refresh requests an immediate reading. Requests made while one is
// pending collapse into one.
func (m *Monitor) Refresh() {
	select {
	case m.refresh <- struct{}{}:
	default:
	}
}

// Last returns a copy of the latest reading and its time; nil before the
// first successful read.
func (m *Monitor) Last() (map[string]float64, time.Time) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last == nil {
		return nil, time.Time{}
	}
	out := make(map[string]float64, len(m.last))
	for k, v := range m.last {
		out[k] = v
	}
	return out, m.at
}

// Run reads once immediately, then on every tick or Refresh, until ctx is
// cancelled. It returns ctx.Err().
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.Poll(ctx)
	ticks := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			ticks++
			m.Poll(ctx)
			if ticks%m.cfg.PruneEvery == 0 {
				m.prune(ctx)
			}
		case <-m.refresh:
			m.Poll(ctx)
		}
	}
}

// Poll takes one reading unless the controller is busy. It reports whether
// a reading was delivered.
func (m *Monitor) Poll(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	if m.cfg.Busy != nil {
		busy, err := m.cfg.Busy.IsBlocked()
		if err != nil {
			m.logger.Debug("checking controller state failed", "error", err)
		} else if busy {
			m.logger.Debug("controller busy, skipping status read")
			return false
		}
	}

	status, err := m.cfg.Reader.ReadStatus()
	if err != nil {
		m.logger.Warn("reading status failed", "error", err)
		for _, s := range m.cfg.Sinks {
			if f, ok := s.(FailureSink); ok {
				f.StatusReadFailed()
			}
		}
		return false
	}

	at := m.now()
	m.mu.Lock()
	m.last = status
	m.at = at
	m.mu.Unlock()

	for _, s := range m.cfg.Sinks {
		s.ObserveStatus(status, at)
	}
	m.logger.Debug("status read", "values", status)
	return true
}

func (m *Monitor) prune(ctx context.Context) {
	if m.cfg.Pruner == nil || m.cfg.Retention <= 0 {
		return
	}
	n, err := m.cfg.Pruner.Prune(ctx, m.cfg.Retention)
	if err != nil {
		m.logger.Error("pruning journal failed", "error", err)
		return
	}
	if n > 0 {
		m.logger.Info("pruned journal", "removed", n, "retention", m.cfg.Retention)
	}
}
