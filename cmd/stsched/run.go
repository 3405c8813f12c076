package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/elektrokombinacija/stsched/internal/scenario"
	"github.com/elektrokombinacija/stsched/internal/sim"
)

func newRunCmd() *cobra.Command {
	var metricsPath string

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Schedule a scenario and print its JSON report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := runScenario(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return fmt.Errorf("encode report: %w", err)
			}
			if metricsPath != "" {
				if err := sim.ExportMetrics(metricsPath, report.Metrics); err != nil {
					return fmt.Errorf("export metrics: %w", err)
				}
			}
			if n := len(report.Violations); n > 0 {
				return fmt.Errorf("%s: %d violations, first: %s", args[0], n, report.Violations[0])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&metricsPath, "metrics", "", "Also write the metrics to this JSON file")
	return cmd
}

// runScenario loads and runs one scenario under the loaded configuration.
// The scenario's own frozen horizon duration wins over the configured one.
func runScenario(ctx context.Context, path string) (*scenario.Report, error) {
	f, err := scenario.Load(path)
	if err != nil {
		return nil, err
	}
	if f.Clock.FrozenHorizonDuration == 0 {
		f.Clock.FrozenHorizonDuration = cfg.Scheduler.FrozenHorizonDuration
	}
	planner, err := cfg.Planner(logger)
	if err != nil {
		return nil, err
	}
	return scenario.Run(ctx, f, planner, logger)
}
