package algo

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/elektrokombinacija/stsched/internal/core"
	"github.com/elektrokombinacija/stsched/internal/geom"
	"github.com/elektrokombinacija/stsched/internal/motion"
	"github.com/elektrokombinacija/stsched/internal/trajectory"
	"github.com/elektrokombinacija/stsched/internal/world"
)

// Planner stages job placements into alternatives. It only reads the
// schedule; callers must keep the schedule from changing while a plan runs.
type Planner struct {
	cfg      Config
	world    *world.World
	schedule *core.Schedule
	log      *slog.Logger

	mu           sync.Mutex
	perspectives map[float64]*world.Perspective
}

// NewPlanner validates cfg and returns a planner over w and s.
func NewPlanner(w *world.World, s *core.Schedule, cfg Config) (*Planner, error) {
	if w == nil || s == nil {
		return nil, fmt.Errorf("%w: world and schedule are required", core.ErrInvalidArgument)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Planner{
		cfg:          cfg,
		world:        w,
		schedule:     s,
		log:          cfg.logger(),
		perspectives: make(map[float64]*world.Perspective),
	}, nil
}

// Config returns the planner configuration.
func (p *Planner) Config() Config { return p.cfg }

// perspective returns the cached map of an agent shape.
func (p *Planner) perspective(radius float64) *world.Perspective {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.perspectives[radius]
	if !ok {
		v = p.world.Perspective(radius)
		p.perspectives[radius] = v
	}
	return v
}

// PlanJob places one job and stages it into alt. It returns
// ErrNoFeasiblePlacement when no candidate works; alt is then unchanged.
func (p *Planner) PlanJob(ctx context.Context, alt *core.Alternative, spec core.JobSpec) (*core.Job, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	space, err := p.world.Space(spec.Space)
	if err != nil {
		return nil, fmt.Errorf("%w: job %s: %v", core.ErrNoFeasiblePlacement, spec.ID, err)
	}
	return p.place(ctx, alt, spec, NewLocationIterator(space, p.cfg.MaxLocationPicks))
}

// PlanJobAt places one job at a fixed location.
func (p *Planner) PlanJobAt(ctx context.Context, alt *core.Alternative, spec core.JobSpec, loc geom.Point) (*core.Job, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return p.place(ctx, alt, spec, &fixedLocation{p: loc})
}

// place tries every candidate location and, per location, every idle slot
// candidate until one attempt succeeds.
func (p *Planner) place(ctx context.Context, alt *core.Alternative, spec core.JobSpec, locs Locations) (*core.Job, error) {
	log := p.log.With("job", spec.ID)
	horizon := p.schedule.FrozenHorizon()
	earliest := math.Max(spec.EarliestStart, horizon)
	if earliest > spec.LatestStart+trajectory.TimeTolerance {
		return nil, fmt.Errorf("%w: job %s: latest start %g is before the frozen horizon %g",
			core.ErrNoFeasiblePlacement, spec.ID, spec.LatestStart, horizon)
	}
	agents := p.schedule.Agents()

	tried := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		loc, ok := locs.Next()
		if !ok {
			break
		}
		slots := newIdleSlotIterator(agents, slotQuery{
			location: loc,
			earliest: earliest,
			latest:   spec.LatestStart,
			duration: spec.Duration,
			horizon:  horizon,
			blocked:  func(a *core.Agent) bool { return p.perspective(a.Radius()).Blocked(loc) },
			viewOf:   func(a *core.Agent) *core.AgentView { return p.view(alt, a) },
			order:    p.cfg.Order,
		})
		log.Debug("location candidate", "location", loc, "slots", slots.Len())
		for {
			c, ok := slots.Next()
			if !ok {
				break
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			tried++
			job, err := p.attempt(ctx, alt, spec, loc, earliest, c)
			if err != nil {
				return nil, err
			}
			if job != nil {
				log.Debug("job placed", "agent", c.Agent.ID(), "location", loc, "start", job.StartTime())
				return job, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: job %s after %d attempts", core.ErrNoFeasiblePlacement, spec.ID, tried)
}

// attempt plans the approach into loc and the departure out of it within one
// idle slot. A nil job and nil error mean the candidate does not work.
func (p *Planner) attempt(ctx context.Context, alt *core.Alternative, spec core.JobSpec, loc geom.Point, earliest float64, c Candidate) (*core.Job, error) {
	a, slot := c.Agent, c.Slot
	persp := p.perspective(a.Radius())
	obstacles := p.obstacles(alt, a)

	path, ok := p.cfg.Spatial.FindPath(ctx, persp, slot.StartLocation, loc)
	if !ok {
		return nil, nil
	}
	approach, ok := p.cfg.Velocity.MinimumTime(ctx, motion.MinimumTimeRequest{
		Path:           path,
		Obstacles:      obstacles,
		MaxSpeed:       a.MaxSpeed(),
		StartTime:      slot.StartTime,
		EarliestFinish: math.Max(earliest, slot.StartTime),
		LatestFinish:   math.Min(spec.LatestStart, slot.FinishTime-spec.Duration),
		Buffer:         spec.Duration,
	})
	if !ok {
		return nil, nil
	}
	start := approach.FinishTime()
	finish := start + spec.Duration

	var departure trajectory.Trajectory
	if slot.Bounded {
		back, ok := p.cfg.Spatial.FindPath(ctx, persp, loc, slot.FinishLocation)
		if !ok {
			return nil, nil
		}
		departure, ok = p.cfg.Velocity.FixTime(ctx, motion.FixTimeRequest{
			Path:       back,
			Obstacles:  obstacles,
			MaxSpeed:   a.MaxSpeed(),
			StartTime:  finish,
			FinishTime: slot.FinishTime,
		})
		if !ok {
			return nil, nil
		}
	} else {
		departure = trajectory.Stationary(loc, finish, trajectory.EndOfTime)
		if motion.Collides(departure, finish, trajectory.EndOfTime, obstacles) {
			return nil, nil
		}
	}

	job, err := core.NewJob(spec.ID, a.ID(), loc, start, spec.Duration)
	if err != nil {
		return nil, err
	}
	u, err := alt.Update(a)
	if err != nil {
		return nil, err
	}
	if err := u.AddJob(job); err != nil {
		return nil, err
	}
	for _, t := range []trajectory.Trajectory{approach, trajectory.Stationary(loc, start, finish), departure} {
		if err := u.UpdateTrajectory(t); err != nil {
			return nil, err
		}
	}
	return job, nil
}

// view returns agent a as seen through alt, with time claimed by registered
// alternatives cut out.
func (p *Planner) view(alt *core.Alternative, a *core.Agent) *core.AgentView {
	u, _ := alt.UpdateOf(a.ID())
	return core.NewAgentView(a, u, p.schedule.TrajectoryLock(a.ID()))
}

// obstacles collects what agent a must avoid: the world's moving obstacles
// and every other agent, as committed, as proposed by registered
// alternatives and as proposed by alt itself. Radii are summed.
func (p *Planner) obstacles(alt *core.Alternative, a *core.Agent) []motion.Obstacle {
	horizon := p.schedule.FrozenHorizon()
	var out []motion.Obstacle
	for _, d := range p.perspective(a.Radius()).DynamicObstacles() {
		out = append(out, motion.Obstacle{Radius: d.Radius + a.Radius(), Trajectory: d.Trajectory})
	}
	for _, b := range p.schedule.Agents() {
		if b == a {
			continue
		}
		r := a.Radius() + b.Radius()
		u, _ := alt.UpdateOf(b.ID())
		for _, t := range core.NewAgentView(b, u, nil).Trajectories(horizon, trajectory.EndOfTime) {
			out = append(out, motion.Obstacle{Radius: r, Trajectory: t})
		}
		for _, t := range p.schedule.ProposedTrajectories(b.ID()) {
			out = append(out, motion.Obstacle{Radius: r, Trajectory: t})
		}
	}
	return out
}
