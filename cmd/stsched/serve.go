package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/elektrokombinacija/stsched/internal/config"
	"github.com/elektrokombinacija/stsched/internal/scenario"
	"github.com/elektrokombinacija/stsched/internal/scheduler"
	"github.com/elektrokombinacija/stsched/internal/server"
	"github.com/elektrokombinacija/stsched/internal/world"
)

func newServeCmd() *cobra.Command {
	var (
		addr         string
		scenarioPath string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scheduler as a JSON API",
		Long: `Serve starts the HTTP API. The world, the initial fleet and the clock come
from --scenario (its jobs are ignored); without it the world is open and the
fleet empty. When --config is given, changes to the frozen horizon duration
in that file apply without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = cfg.Server.Addr
			}
			sched, err := newServeScheduler(scenarioPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := &http.Server{Addr: addr, Handler: server.New(sched, logger)}
			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logger.Info("listening", "addr", addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
				defer cancel()
				logger.Info("shutting down")
				return srv.Shutdown(shutdownCtx)
			})
			if flagConfig != "" {
				g.Go(func() error {
					return config.Watch(ctx, flagConfig, func(c config.Config, err error) {
						if err != nil {
							logger.Warn("config reload failed, keeping previous", "path", flagConfig, "error", err)
							return
						}
						d := c.Scheduler.FrozenHorizonDuration
						if d == sched.FrozenHorizonDuration() {
							return
						}
						if err := sched.SetFrozenHorizonDuration(d); err != nil {
							logger.Warn("config reload rejected", "error", err)
							return
						}
						logger.Info("config reloaded", "frozen_horizon_duration", d, "frozen_horizon", sched.FrozenHorizon())
					})
				})
			}
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	cmd.Flags().StringVar(&scenarioPath, "scenario", "", "Scenario providing the world, fleet and clock")
	return cmd
}

func newServeScheduler(scenarioPath string) (*scheduler.Scheduler, error) {
	planner, err := cfg.Planner(logger)
	if err != nil {
		return nil, err
	}
	if scenarioPath == "" {
		return scheduler.New(world.Open(), planner,
			scheduler.WithLogger(logger),
			scheduler.WithFrozenHorizonDuration(cfg.Scheduler.FrozenHorizonDuration))
	}

	f, err := scenario.Load(scenarioPath)
	if err != nil {
		return nil, err
	}
	w, err := f.BuildWorld()
	if err != nil {
		return nil, err
	}
	horizon := f.Clock.FrozenHorizonDuration
	if horizon == 0 {
		horizon = cfg.Scheduler.FrozenHorizonDuration
	}
	sched, err := scheduler.New(w, planner,
		scheduler.WithLogger(logger),
		scheduler.WithPresentTime(f.Clock.PresentTime),
		scheduler.WithFrozenHorizonDuration(horizon))
	if err != nil {
		return nil, err
	}
	for _, spec := range f.AgentSpecs() {
		if _, err := sched.AddAgent(spec); err != nil {
			return nil, fmt.Errorf("%s: %w", scenarioPath, err)
		}
	}
	return sched, nil
}
