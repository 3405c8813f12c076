package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// benchResult is one scenario run of a benchmark.
type benchResult struct {
	Scenario    string  `json:"scenario"`
	Agents      int     `json:"agents"`
	Requests    int     `json:"requests"`
	Placed      int     `json:"placed"`
	Jobs        int     `json:"jobs"`
	Makespan    float64 `json:"makespan"`
	Utilization float64 `json:"utilization"`
	PlanningMs  float64 `json:"planning_ms"`
	Violations  int     `json:"violations"`
}

func newBenchCmd() *cobra.Command {
	var (
		parallel int
		jsonPath string
	)

	cmd := &cobra.Command{
		Use:   "bench <dir>",
		Short: "Run every scenario of a directory and summarize",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := filepath.Glob(filepath.Join(args[0], "*.yaml"))
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return fmt.Errorf("no scenarios in %s", args[0])
			}
			sort.Strings(paths)

			results := make([]benchResult, len(paths))
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(parallel)
			for i, path := range paths {
				g.Go(func() error {
					report, err := runScenario(ctx, path)
					if err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
					m := report.Metrics
					results[i] = benchResult{
						Scenario:    report.Scenario,
						Agents:      m.Agents,
						Requests:    m.PlanningAttempts,
						Placed:      m.PlanningSuccesses,
						Jobs:        m.Jobs,
						Makespan:    m.Makespan,
						Utilization: m.Utilization,
						PlanningMs:  m.PlanningTimeMs,
						Violations:  len(report.Violations),
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "SCENARIO\tAGENTS\tPLACED\tJOBS\tMAKESPAN\tUTIL\tPLAN_MS\tVIOLATIONS")
			for _, r := range results {
				fmt.Fprintf(tw, "%s\t%d\t%d/%d\t%d\t%.1f\t%.2f\t%.1f\t%d\n",
					r.Scenario, r.Agents, r.Placed, r.Requests, r.Jobs, r.Makespan, r.Utilization, r.PlanningMs, r.Violations)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if jsonPath != "" {
				data, err := json.MarshalIndent(results, "", "  ")
				if err != nil {
					return err
				}
				if err := os.WriteFile(jsonPath, data, 0644); err != nil {
					return fmt.Errorf("write %s: %w", jsonPath, err)
				}
			}
			for _, r := range results {
				if r.Violations > 0 {
					return fmt.Errorf("%s: %d violations", r.Scenario, r.Violations)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&parallel, "parallel", "p", runtime.NumCPU(), "Scenarios run at once")
	cmd.Flags().StringVar(&jsonPath, "json", "", "Also write the results to this JSON file")
	return cmd
}
