package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
	slogjournal "github.com/systemd/slog-journal"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nerrad567/chemspyd-core/internal/infrastructure/config"
)

// Logger wraps slog.Logger with the chemspyd default fields.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger

	closers []io.Closer
}

// New creates a Logger from the logging section of config.yaml.
//
// Output selects the destination: stdout, stderr, file (rotated by
// lumberjack), both (stdout and file) or journal (systemd journal, falling
// back to stderr when journald is unreachable).
//
// Parameters:
//   - cfg: Logging configuration
//   - version: Application version added to every record
//
// Returns:
//   - *Logger: Configured logger; call Close to flush the log file
func New(cfg config.LoggingConfig, version string) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	l := &Logger{}

	var handlers []slog.Handler
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		handlers = append(handlers, newHandler(cfg.Format, os.Stderr, opts))
	case "file":
		handlers = append(handlers, newHandler(cfg.Format, l.rotating(cfg.File), opts))
	case "both":
		handlers = append(handlers,
			newHandler(cfg.Format, os.Stdout, opts),
			newHandler(cfg.Format, l.rotating(cfg.File), opts),
		)
	case "journal":
		h, err := slogjournal.NewHandler(&slogjournal.Options{Level: opts.Level})
		if err != nil {
			fallback := newHandler(cfg.Format, os.Stderr, opts)
			slog.New(fallback).Warn("systemd journal unavailable, logging to stderr", "error", err)
			handlers = append(handlers, fallback)
		} else {
			handlers = append(handlers, h)
		}
	default:
		handlers = append(handlers, newHandler(cfg.Format, os.Stdout, opts))
	}

	var handler slog.Handler
	if len(handlers) == 1 {
		handler = handlers[0]
	} else {
		handler = slogmulti.Fanout(handlers...)
	}
	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "chemspyd"),
		slog.String("version", version),
	})

	l.Logger = slog.New(handler)
	return l
}

// NewWithWriter creates a Logger writing to w, for tests and tools.
func NewWithWriter(w io.Writer, format, level string) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	return &Logger{Logger: slog.New(newHandler(format, w, opts))}
}

func (l *Logger) rotating(cfg config.FileLoggingConfig) io.Writer {
	w := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	l.closers = append(l.closers, w)
	return w
}

func newHandler(format string, w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	if strings.ToLower(format) == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// parseLevel converts a level name to slog.Level, defaulting to info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a Logger with additional default attributes.
//
// Example:
//
//	chLogger := logger.With("component", "channel")
//	chLogger.Info("command posted") // includes component=channel
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), closers: l.closers}
}

// Close closes any log files opened by New.
func (l *Logger) Close() error {
	var errs []string
	for _, c := range l.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	l.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("closing log files: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Default creates a logger for use before configuration is loaded: text on
// stderr at info level.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "text",
		Output: "stderr",
	}, "dev")
}
