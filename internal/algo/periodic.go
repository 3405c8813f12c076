package algo

import (
	"context"
	"errors"
	"fmt"

	"github.com/elektrokombinacija/stsched/internal/core"
)

// PlanPeriodic places every repetition of a periodic job. With SameLocation
// set, each candidate location is tried in its own branch holding all
// repetitions; the branch is merged only when every repetition fits there.
// Otherwise each repetition picks its own location and the first failure
// aborts the series. On failure alt is unchanged.
func (p *Planner) PlanPeriodic(ctx context.Context, alt *core.Alternative, spec core.PeriodicJobSpec) ([]*core.Job, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	reps := spec.JobSpecs()
	if !spec.SameLocation {
		branch, err := alt.Branch()
		if err != nil {
			return nil, err
		}
		jobs := make([]*core.Job, 0, len(reps))
		for _, s := range reps {
			job, err := p.PlanJob(ctx, branch, s)
			if err != nil {
				return nil, p.discard(branch, err)
			}
			jobs = append(jobs, job)
		}
		return jobs, branch.Merge()
	}

	space, err := p.world.Space(spec.Space)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrNoFeasiblePlacement, err)
	}
	locs := NewLocationIterator(space, p.cfg.MaxLocationPicks)
	tried := 0
	for {
		loc, ok := locs.Next()
		if !ok {
			break
		}
		tried++
		branch, err := alt.Branch()
		if err != nil {
			return nil, err
		}
		jobs := make([]*core.Job, 0, len(reps))
		var failed error
		for _, s := range reps {
			job, err := p.PlanJobAt(ctx, branch, s, loc)
			if err != nil {
				failed = err
				break
			}
			jobs = append(jobs, job)
		}
		if failed == nil {
			return jobs, branch.Merge()
		}
		if err := branch.Delete(); err != nil {
			return nil, err
		}
		if !errors.Is(failed, core.ErrNoFeasiblePlacement) {
			return nil, failed
		}
		p.log.Debug("periodic location rejected", "location", loc, "placed", len(jobs), "error", failed)
	}
	return nil, fmt.Errorf("%w: periodic series of %d after %d locations",
		core.ErrNoFeasiblePlacement, spec.Repetitions, tried)
}
