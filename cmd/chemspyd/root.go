package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nerrad567/chemspyd-core/internal/infrastructure/config"
)

// options carries the flag/env layer shared by all subcommands.
type options struct {
	v   *viper.Viper
	out io.Writer
}

// flagKeys binds persistent flags to config keys. Viper also resolves the
// same keys from CHEMSPYD_* variables, e.g. CHEMSPYD_CHANNEL_DIR.
var flagKeys = map[string]string{
	"config":    "config",
	"dir":       "channel.dir",
	"simulate":  "channel.simulation",
	"timeout":   "channel.timeout",
	"log-level": "logging.level",
}

func newOptions(out io.Writer) *options {
	return &options{v: viper.New(), out: out}
}

func newRootCmd(o *options) *cobra.Command {

	root := &cobra.Command{
		Use:   "chemspyd",
		Short: "Command core for a Chemspeed robotic chemistry platform",
		Long: `chemspyd validates operations against the platform's element capabilities
and posts them to the vendor controller through its shared command files.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(o.out)

	flags := root.PersistentFlags()
	flags.String("config", defaultConfigPath, "configuration file")
	flags.String("dir", "", "command channel directory (overrides channel.dir)")
	flags.Bool("simulate", false, "log commands instead of writing them")
	flags.Duration("timeout", 0, "timeout per command wait phase, 0 waits forever")
	flags.String("log-level", "", "log level: debug, info, warn, error")

	for flag, key := range flagKeys {
		if err := o.v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("binding flag %s: %v", flag, err))
		}
	}
	o.v.SetEnvPrefix("CHEMSPYD")
	o.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	o.v.AutomaticEnv()

	root.AddCommand(
		newValidateCmd(o),
		newStatusCmd(o),
		newExecCmd(o),
		newUnmountCmd(o),
		newHistoryCmd(o),
		newMonitorCmd(o),
		newVersionCmd(o),
	)
	return root
}

// loadConfig reads the configuration file and applies flag overrides.
//
// A missing file at the default path falls back to built-in defaults; a
// missing file named explicitly is an error.
func (o *options) loadConfig() (*config.Config, error) {
	path := o.v.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) || o.v.IsSet("config") {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		if cfg, err = config.Parse(nil); err != nil {
			return nil, fmt.Errorf("loading default config: %w", err)
		}
	}

	if o.v.IsSet("channel.dir") {
		cfg.Channel.Dir = o.v.GetString("channel.dir")
	}
	if o.v.IsSet("channel.simulation") {
		cfg.Channel.Simulation = o.v.GetBool("channel.simulation")
	}
	if o.v.IsSet("channel.timeout") {
		cfg.Channel.Timeout = o.v.GetDuration("channel.timeout")
	}
	if o.v.IsSet("logging.level") {
		cfg.Logging.Level = o.v.GetString("logging.level")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func newVersionCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintf(o.out, "chemspyd %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
