package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/chemspyd-core/internal/emulator"
	"github.com/nerrad567/chemspyd-core/internal/monitor"
)

func newValidateCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration, element and system liquid documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := o.openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()

			wells := 0
			for _, e := range a.registry.Elements() {
				wells += e.Wells()
			}
			fmt.Fprintf(o.out, "configuration OK: %d elements, %d wells, %d zone names, needles %v\n",
				len(a.registry.Elements()), wells, len(a.registry.Names()), a.ctl.Liquids().NeedleNumbers())
			return nil
		},
	}
}

func newStatusCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Read and convert the controller status file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := o.openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()

			status, err := a.ctl.ReadStatus()
			if err != nil {
				return fmt.Errorf("reading status: %w", err)
			}
			w := tabwriter.NewWriter(o.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tVALUE\tUNIT")
			for _, key := range a.ctl.StatusKeys() {
				if v, ok := status[key.Name]; ok {
					fmt.Fprintf(w, "%s\t%g\t%s\n", key.Name, v, key.TargetUnit)
				}
			}
			return w.Flush()
		},
	}
}

func newUnmountCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "unmount",
		Short: "Return every tool to its parking position",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.withController(cmd.Context(), func(ctx context.Context, a *app) error {
				return a.ctl.UnmountAll(ctx)
			})
		},
	}
}

func newHistoryCmd(o *options) *cobra.Command {
	var (
		limit int
		name  string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled commands, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := o.openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.close()
			if a.journal == nil {
				return errors.New("the command journal is disabled (database.enabled: false)")
			}

			entries, err := a.journal.RecentCommands(cmd.Context(), limit, name)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(o.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "POSTED\tNAME\tDURATION\tRESULT\tID")
			for _, e := range entries {
				result := "running"
				switch {
				case e.Error != "":
					result = "failed: " + e.Error
				case e.Simulated && e.Done():
					result = "simulated"
				case e.Done():
					result = "ok"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					e.PostedAt.Local().Format(time.DateTime), e.Name, e.Duration.Round(time.Millisecond), result, e.ID)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries")
	cmd.Flags().StringVar(&name, "name", "", "only commands with this name")
	return cmd
}

func newMonitorCmd(o *options) *cobra.Command {
	var (
		emulate  bool
		execTime time.Duration
	)
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Publish status readings until interrupted",
		Long: `monitor reads the status file on the configured interval while the controller
is idle and publishes each reading to the enabled sinks. With --emulate an
in-process controller emulator answers the command files for dry runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.runMonitor(cmd.Context(), emulate, execTime)
		},
	}
	cmd.Flags().BoolVar(&emulate, "emulate", false, "run the controller emulator in the channel directory")
	cmd.Flags().DurationVar(&execTime, "exec-time", time.Second, "emulated execution time per command")
	return cmd
}

func (o *options) runMonitor(ctx context.Context, emulate bool, execTime time.Duration) error {
	a, err := o.openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	if emulate {
		emu, err := emulator.New(emulator.Config{
			Dir:           a.cfg.Channel.Dir,
			PollInterval:  a.cfg.Channel.PollInterval,
			ExecutionTime: execTime,
		})
		if err != nil {
			return fmt.Errorf("creating emulator: %w", err)
		}
		emu.SetLogger(a.log.With("component", "emulator"))
		if err := emu.Start(ctx); err != nil {
			return fmt.Errorf("starting emulator: %w", err)
		}
		defer emu.Stop()
	}

	t, err := a.attachTelemetry(true)
	if err != nil {
		return err
	}

	mcfg := monitor.Config{
		Reader:    statusReader{a},
		Busy:      a.channel,
		Sinks:     t.statusSinks(),
		Interval:  a.cfg.Status.Interval,
		Retention: a.cfg.Database.Retention,
	}
	if a.journal != nil {
		mcfg.Pruner = a.journal
	}
	mon, err := monitor.New(mcfg)
	if err != nil {
		return err
	}
	mon.SetLogger(a.log.With("component", "monitor"))

	if t.mqtt != nil {
		err := t.mqtt.Subscribe(t.mqtt.Topics().StatusRefresh(), t.mqtt.QoS(), func(string, []byte) error {
			mon.Refresh()
			return nil
		})
		if err != nil {
			return fmt.Errorf("subscribing to status refresh: %w", err)
		}
	}

	if t.metrics != nil {
		go func() {
			if err := t.metrics.Serve(ctx, a.cfg.Metrics.Listen, a.cfg.Metrics.Path); err != nil {
				a.log.Error("metrics server stopped", "error", err)
			}
		}()
		a.log.Info("metrics endpoint listening", "listen", a.cfg.Metrics.Listen, "path", a.cfg.Metrics.Path)
	}

	if err := a.healthCheck(ctx, t); err != nil {
		a.log.Warn("health check failed", "error", err)
	}

	a.log.Info("status monitor running", "interval", a.cfg.Status.Interval, "dir", a.cfg.Channel.Dir)
	if err := mon.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.log.Info("status monitor stopped")
	return nil
}

// statusReader adapts the controller's Status to the monitor's plain map.
type statusReader struct{ a *app }

func (r statusReader) ReadStatus() (map[string]float64, error) {
	return r.a.ctl.ReadStatus()
}
