package algo

import (
	"context"
	"fmt"

	"github.com/elektrokombinacija/stsched/internal/core"
	"github.com/elektrokombinacija/stsched/internal/trajectory"
)

// PlanRemoval stages the removal of a committed job. The agent keeps its
// committed trajectory, so the freed time becomes idle in place.
func (p *Planner) PlanRemoval(ctx context.Context, alt *core.Alternative, job *core.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a, err := p.schedule.Agent(job.AgentID())
	if err != nil {
		return err
	}
	if !a.HasJob(job) {
		return fmt.Errorf("%w: job %s is not committed", core.ErrUnknownJob, job.ID())
	}
	if h := p.schedule.FrozenHorizon(); job.StartTime() < h-trajectory.TimeTolerance {
		return fmt.Errorf("%w: job %s starts at %g before the frozen horizon %g",
			core.ErrIllegalState, job.ID(), job.StartTime(), h)
	}
	if p.schedule.JobRemovalLock(a.ID()).Intersects(job.StartTime(), job.FinishTime()) {
		return fmt.Errorf("%w: job %s is already being removed", core.ErrIllegalState, job.ID())
	}
	u, err := alt.Update(a)
	if err != nil {
		return err
	}
	p.log.Debug("job removal staged", "job", job.ID(), "agent", a.ID())
	return u.AddJobRemoval(job)
}

// PlanReplacement removes a committed job and places spec instead, in one
// branch of alt. The replacement may reuse the removed job's time.
func (p *Planner) PlanReplacement(ctx context.Context, alt *core.Alternative, job *core.Job, spec core.JobSpec) (*core.Job, error) {
	if spec.ID == job.ID() {
		return nil, fmt.Errorf("%w: replacement must use a new job id", core.ErrInvalidArgument)
	}
	branch, err := alt.Branch()
	if err != nil {
		return nil, err
	}
	if err := p.PlanRemoval(ctx, branch, job); err != nil {
		return nil, p.discard(branch, err)
	}
	placed, err := p.PlanJob(ctx, branch, spec)
	if err != nil {
		return nil, p.discard(branch, err)
	}
	return placed, branch.Merge()
}
