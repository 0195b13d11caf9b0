package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/chemspyd-core/internal/channel"
	"github.com/nerrad567/chemspyd-core/internal/zone"
)

const namespace = "chemspyd"

// Result label values.
const (
	resultOK      = "ok"
	resultTimeout = "timeout"
	resultError   = "error"
)

// Recorder exposes command, validation and status metrics for Prometheus.
// It implements channel.Observer and controller.ValidationRecorder.
type Recorder struct {
	registry *prometheus.Registry

	commands    *prometheus.CounterVec
	durations   *prometheus.HistogramVec
	inFlight    prometheus.Gauge
	rejections  *prometheus.CounterVec
	status      *prometheus.GaugeVec
	lastStatus  prometheus.Gauge
	statusReads *prometheus.CounterVec
}

// New creates a Recorder with its own registry. Every series carries a
// platform label.
func New(platform string) *Recorder {
	labels := prometheus.Labels{"platform": platform}
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "commands_total",
			Help:        "Commands executed, by name and result.",
			ConstLabels: labels,
		}, []string{"name", "result"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "command_duration_seconds",
			Help:        "Time from posting a command until the controller was idle again.",
			ConstLabels: labels,
			Buckets:     []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 900, 1800},
		}, []string{"name"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "commands_in_flight",
			Help:        "Commands posted and not yet completed.",
			ConstLabels: labels,
		}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "validation_failures_total",
			Help:        "Operations rejected before a command was sent.",
			ConstLabels: labels,
		}, []string{"operation", "reason"}),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "status_value",
			Help:        "Last converted status reading per key.",
			ConstLabels: labels,
		}, []string{"key"}),
		lastStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "status_last_read_timestamp_seconds",
			Help:        "Unix time of the last successful status read.",
			ConstLabels: labels,
		}),
		statusReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "status_reads_total",
			Help:        "Status reads, by result.",
			ConstLabels: labels,
		}, []string{"result"}),
	}

	r.registry.MustRegister(
		r.commands, r.durations, r.inFlight, r.rejections,
		r.status, r.lastStatus, r.statusReads,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry returns the registry backing the recorder.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// CommandPosted implements channel.Observer.
func (r *Recorder) CommandPosted(channel.Command) {
	r.inFlight.Inc()
}

// CommandStarted implements channel.Observer.
func (r *Recorder) CommandStarted(channel.Command) {}

// CommandCompleted implements channel.Observer. Simulated commands are
// counted but have no duration worth observing.
func (r *Recorder) CommandCompleted(cmd channel.Command, err error) {
	r.inFlight.Dec()
	r.commands.WithLabelValues(cmd.Name, resultLabel(err)).Inc()
	if !cmd.Simulated && err == nil {
		r.durations.WithLabelValues(cmd.Name).Observe(cmd.Duration.Seconds())
	}
}

// ValidationFailed implements controller.ValidationRecorder.
func (r *Recorder) ValidationFailed(operation string, err error) {
	r.rejections.WithLabelValues(operation, reasonLabel(err)).Inc()
}

// ObserveStatus records one converted status reading.
func (r *Recorder) ObserveStatus(status map[string]float64, at time.Time) {
	for key, v := range status {
		r.status.WithLabelValues(key).Set(v)
	}
	r.lastStatus.Set(float64(at.Unix()))
	r.statusReads.WithLabelValues(resultOK).Inc()
}

// StatusReadFailed counts a failed status read.
func (r *Recorder) StatusReadFailed() {
	r.statusReads.WithLabelValues(resultError).Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return resultOK
	case errors.Is(err, channel.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return resultTimeout
	default:
		return resultError
	}
}

func reasonLabel(err error) string {
	switch {
	case errors.Is(err, zone.ErrUnknownWell):
		return "unknown_well"
	case errors.Is(err, zone.ErrElement):
		return "element"
	case errors.Is(err, zone.ErrQuantity):
		return "quantity"
	case errors.Is(err, zone.ErrRange):
		return "range"
	case errors.Is(err, zone.ErrConfiguration):
		return "configuration"
	default:
		return "other"
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Serve exposes the metrics on addr under path until ctx is cancelled.
func (r *Recorder) Serve(ctx context.Context, addr, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, r.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
		return nil
	}
}
