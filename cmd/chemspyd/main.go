// chemspyd drives a robotic chemistry platform through the file-based
// command channel of its vendor controller.
//
// Every operation is checked against the element capability document
// before a command file is written. Commands, status readings and tracked
// quantities can be journaled to SQLite and published to MQTT, InfluxDB
// and Prometheus.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information, set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// defaultConfigPath is used when neither --config nor CHEMSPYD_CONFIG is set.
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes the command line in args. Separated from main for tests.
func run(ctx context.Context, args []string) error {
	root := newRootCmd(newOptions(os.Stdout))
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
