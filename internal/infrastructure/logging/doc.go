// Package logging provides structured logging for chemspyd.
//
// It wraps log/slog with default fields (service, version) and selects the
// destination from config:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # text, json
//	  output: "both"     # stdout, stderr, file, both, journal
//	  file:
//	    path: "./logs/chemspyd.log"
//	    max_size: 50     # MB before rotation
//	    max_backups: 5
//	    max_age: 30      # days
//
// File output is rotated with lumberjack; "both" fans records out to stdout
// and the file through slog-multi.
//
// Packages that log take a four-method Logger interface, which *Logger
// satisfies:
//
//	ch.SetLogger(logger.With("component", "channel"))
package logging
