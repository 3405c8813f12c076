package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/elektrokombinacija/stsched/internal/algo"
	"github.com/elektrokombinacija/stsched/internal/core"
	"github.com/elektrokombinacija/stsched/internal/logging"
	"github.com/elektrokombinacija/stsched/internal/scheduler"
	"github.com/elektrokombinacija/stsched/internal/sim"
)

// Outcome is the result of one scheduling request of a scenario.
type Outcome struct {
	Name    string        `json:"name"`
	Kind    string        `json:"kind"` // job, batch, periodic
	Jobs    int           `json:"jobs"`
	Placed  bool          `json:"placed"`
	Error   string        `json:"error,omitempty"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

// Report is the result of running a scenario.
type Report struct {
	Scenario   string          `json:"scenario"`
	Outcomes   []Outcome       `json:"outcomes"`
	Metrics    sim.Metrics     `json:"metrics"`
	Violations []sim.Violation `json:"-"`
}

// Placed counts the successful requests.
func (r *Report) Placed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Placed {
			n++
		}
	}
	return n
}

// Run schedules every request of f in file order (jobs, then batches, then
// periodic jobs), committing each success, and verifies the resulting
// schedule. Infeasible requests are reported, not returned as errors.
func Run(ctx context.Context, f *File, cfg algo.Config, logger *slog.Logger) (*Report, error) {
	log := logging.Component(logger, "scenario").With("scenario", f.Name)
	w, err := f.BuildWorld()
	if err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = logger
	}
	s, err := scheduler.New(w, cfg,
		scheduler.WithLogger(logger),
		scheduler.WithPresentTime(f.Clock.PresentTime),
		scheduler.WithFrozenHorizonDuration(f.Clock.FrozenHorizonDuration))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	for _, spec := range f.AgentSpecs() {
		if _, err := s.AddAgent(spec); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
		}
	}

	report := &Report{Scenario: f.Name}
	do := func(name, kind string, jobs int, schedule func() (*scheduler.Result, error)) error {
		start := time.Now()
		res, err := schedule()
		if err == nil {
			err = s.Commit(res.TransactionID)
		}
		o := Outcome{Name: name, Kind: kind, Jobs: jobs, Placed: err == nil, Elapsed: time.Since(start)}
		switch {
		case err == nil:
			log.Debug("placed", "request", name, "kind", kind)
		case errors.Is(err, core.ErrNoFeasiblePlacement):
			o.Error = err.Error()
			log.Info("not placed", "request", name, "kind", kind, "error", err)
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			return fmt.Errorf("%s %q: %w", kind, name, err)
		}
		report.Outcomes = append(report.Outcomes, o)
		return nil
	}

	for _, j := range f.Jobs {
		spec, err := j.Spec("jobs")
		if err != nil {
			return nil, err
		}
		if err := do(j.Name, "job", 1, func() (*scheduler.Result, error) { return s.Schedule(ctx, spec) }); err != nil {
			return nil, err
		}
	}
	for _, b := range f.Batches {
		specs, deps, err := b.Specs()
		if err != nil {
			return nil, err
		}
		if err := do(b.Name, "batch", len(specs), func() (*scheduler.Result, error) {
			return s.ScheduleDependent(ctx, specs, deps)
		}); err != nil {
			return nil, err
		}
	}
	for _, p := range f.Periodic {
		spec, err := p.Spec()
		if err != nil {
			return nil, err
		}
		if err := do(p.Name, "periodic", p.Repetitions, func() (*scheduler.Result, error) {
			return s.SchedulePeriodic(ctx, spec)
		}); err != nil {
			return nil, err
		}
	}

	s.View(func(sc *core.Schedule) {
		report.Metrics = sim.Collect(sc)
		report.Violations = sim.Verify(sc, w)
	})
	for _, o := range report.Outcomes {
		report.Metrics.PlanningAttempts++
		if o.Placed {
			report.Metrics.PlanningSuccesses++
		}
		report.Metrics.PlanningTimeMs += float64(o.Elapsed.Microseconds()) / 1000
	}
	for _, v := range report.Violations {
		report.Metrics.Violations = append(report.Metrics.Violations, v.String())
	}
	log.Info("scenario done",
		"placed", report.Placed(), "requests", len(report.Outcomes),
		"makespan", report.Metrics.Makespan, "violations", len(report.Violations))
	return report, nil
}
