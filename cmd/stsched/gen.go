package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/elektrokombinacija/stsched/internal/scenario"
)

func newGenCmd() *cobra.Command {
	p := scenario.DefaultParams()
	var (
		outDir  string
		scaling bool
	)

	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate random scenario files",
		Long: `Generate writes seeded random scenarios as YAML. With --scaling it writes a
series of growing fleets instead of a single scenario.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			params := []scenario.Params{p}
			if scaling {
				params = scenario.ScalingParams(p.Seed)
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create %s: %w", outDir, err)
			}
			for _, p := range params {
				f, err := scenario.Generate(p)
				if err != nil {
					return err
				}
				path := filepath.Join(outDir, f.Name+".yaml")
				if err := f.Save(path); err != nil {
					return fmt.Errorf("write %s: %w", path, err)
				}
				logger.Info("scenario generated", "path", path, "agents", len(f.Agents), "jobs", len(f.Jobs))
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&outDir, "out", "o", "scenarios", "Output directory")
	fl.BoolVar(&scaling, "scaling", false, "Generate the scaling series")
	fl.Int64Var(&p.Seed, "seed", p.Seed, "Random seed")
	fl.IntVar(&p.Agents, "agents", p.Agents, "Number of agents")
	fl.IntVar(&p.Jobs, "jobs", p.Jobs, "Number of single jobs")
	fl.IntVar(&p.Batches, "batches", p.Batches, "Number of dependent batches")
	fl.IntVar(&p.Periodic, "periodic", p.Periodic, "Number of periodic series")
	fl.IntVar(&p.Obstacles, "obstacles", p.Obstacles, "Number of rectangular obstacles")
	fl.Float64Var(&p.Width, "width", p.Width, "World width (m)")
	fl.Float64Var(&p.Height, "height", p.Height, "World height (m)")
	return cmd
}
