// Command stsched runs, generates and benchmarks scheduling scenarios and
// serves the scheduler over HTTP.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/elektrokombinacija/stsched/internal/config"
)

var (
	flagConfig    string
	flagLogLevel  string
	flagLogFormat string

	cfg    config.Config
	logger *slog.Logger
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "stsched",
		Short: "Space-time job scheduler for fleets of mobile agents",
		Long: `stsched places jobs on a fleet of disk-shaped agents moving in a 2-D world,
planning collision-free trajectories for every agent.

  stsched run <scenario.yaml>     Schedule a scenario and print the report
  stsched gen                     Generate random scenarios
  stsched bench <dir>             Run every scenario of a directory
  stsched serve                   Serve the scheduler as a JSON API`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg = config.Default()
			if flagConfig != "" {
				if cfg, err = config.Load(flagConfig); err != nil {
					var ve *config.ValidationErrors
					if errors.As(err, &ve) {
						fmt.Fprint(cmd.ErrOrStderr(), ve.FormatStderr())
					}
					return err
				}
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Logging.Level = flagLogLevel
			}
			if cmd.Flags().Changed("log-format") {
				cfg.Logging.Format = flagLogFormat
			}
			logger = cfg.Logging.Logger()
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to the YAML configuration file")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newRunCmd(),
		newGenCmd(),
		newBenchCmd(),
		newServeCmd(),
	)
	return root
}
