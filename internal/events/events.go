package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/chemspyd-core/internal/channel"
	"github.com/nerrad567/chemspyd-core/internal/infrastructure/mqtt"
)

// defaultQueueSize bounds messages waiting for the broker.
const defaultQueueSize = 256

// Publisher sends one MQTT message. *mqtt.Client implements it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Logger defines the logging interface used by the bridge.
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

// CommandEvent is the JSON payload of a command lifecycle message.
type CommandEvent struct {
	Platform   string        `json:"platform"`
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Phase      string        `json:"phase"`
	Args       []channel.Arg `json:"args"`
	Simulated  bool          `json:"simulated"`
	PostedAt   time.Time     `json:"posted_at"`
	StartedAt  *time.Time    `json:"started_at,omitempty"`
	DurationMS int64         `json:"duration_ms,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// StatusEvent is the retained JSON payload on the status topic.
type StatusEvent struct {
	Platform  string             `json:"platform"`
	Timestamp time.Time          `json:"timestamp"`
	Values    map[string]float64 `json:"values"`
}

type message struct {
	topic    string
	payload  []byte
	retained bool
}

// Bridge publishes command lifecycle and status readings to MQTT. It
// implements channel.Observer.
//
// Callbacks only enqueue; a single goroutine publishes in order. When the
// queue is full the message is dropped and a warning logged.
type Bridge struct {
	pub      Publisher
	topics   mqtt.Topics
	qos      byte
	platform string

	queue  chan message
	done   chan struct{}
	mu     sync.RWMutex
	closed bool

	logger Logger
}

// Config holds the bridge settings.
type Config struct {
	Publisher Publisher
	Topics    mqtt.Topics
	QoS       byte
	Platform  string

	// QueueSize defaults to 256.
	QueueSize int
}

// New starts a bridge. Call Close to drain and stop it.
func New(cfg Config) *Bridge {
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	b := &Bridge{
		pub:      cfg.Publisher,
		topics:   cfg.Topics,
		qos:      cfg.QoS,
		platform: cfg.Platform,
		queue:    make(chan message, size),
		done:     make(chan struct{}),
		logger:   noopLogger{},
	}
	go b.run()
	return b
}

// SetLogger sets the logger. Call before the first event.
func (b *Bridge) SetLogger(logger Logger) {
	if logger != nil {
		b.logger = logger
	}
}

// Close publishes what is queued and stops the bridge. Further events are
// dropped.
func (b *Bridge) Close() {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.queue)
	}
	b.mu.Unlock()
	<-b.done
}

func (b *Bridge) run() {
	defer close(b.done)
	for msg := range b.queue {
		if err := b.pub.Publish(msg.topic, msg.payload, b.qos, msg.retained); err != nil {
			b.logger.Warn("mqtt publish failed", "topic", msg.topic, "error", err)
		}
	}
}

func (b *Bridge) enqueue(topic string, v any, retained bool) {
	payload, err := json.Marshal(v)
	if err != nil {
		b.logger.Error("encoding event failed", "topic", topic, "error", err)
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		b.logger.Debug("event dropped after close", "topic", topic)
		return
	}
	select {
	case b.queue <- message{topic: topic, payload: payload, retained: retained}:
	default:
		b.logger.Warn("event queue full, dropping", "topic", topic)
	}
}

func (b *Bridge) commandEvent(cmd channel.Command, phase string) CommandEvent {
	ev := CommandEvent{
		Platform:   b.platform,
		ID:         cmd.ID,
		Name:       cmd.Name,
		Phase:      phase,
		Args:       cmd.Args,
		Simulated:  cmd.Simulated,
		PostedAt:   cmd.PostedAt,
		DurationMS: cmd.Duration.Milliseconds(),
	}
	if !cmd.StartedAt.IsZero() {
		started := cmd.StartedAt
		ev.StartedAt = &started
	}
	return ev
}

// CommandPosted implements channel.Observer.
func (b *Bridge) CommandPosted(cmd channel.Command) {
	b.enqueue(b.topics.Command(cmd.Name, mqtt.PhasePosted), b.commandEvent(cmd, mqtt.PhasePosted), false)
}

// CommandStarted implements channel.Observer.
func (b *Bridge) CommandStarted(cmd channel.Command) {
	b.enqueue(b.topics.Command(cmd.Name, mqtt.PhaseStarted), b.commandEvent(cmd, mqtt.PhaseStarted), false)
}

// CommandCompleted implements channel.Observer. Failures go to the
// "failed" phase with the error text.
func (b *Bridge) CommandCompleted(cmd channel.Command, err error) {
	phase := mqtt.PhaseCompleted
	if err != nil {
		phase = mqtt.PhaseFailed
	}
	ev := b.commandEvent(cmd, phase)
	if err != nil {
		ev.Error = err.Error()
	}
	b.enqueue(b.topics.Command(cmd.Name, phase), ev, false)
}

// ObserveStatus publishes a retained status reading.
func (b *Bridge) ObserveStatus(status map[string]float64, at time.Time) {
	b.enqueue(b.topics.Status(), StatusEvent{Platform: b.platform, Timestamp: at.UTC(), Values: status}, true)
}
