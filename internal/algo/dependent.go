package algo

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/elektrokombinacija/stsched/internal/core"
	"github.com/elektrokombinacija/stsched/internal/trajectory"
)

// DependencyGraph maps a job to the jobs that must finish before it starts.
type DependencyGraph map[uuid.UUID][]uuid.UUID

// Add records that job depends on dep.
func (g DependencyGraph) Add(job, dep uuid.UUID) {
	g[job] = append(g[job], dep)
}

// order sorts the jobs so every job follows its dependencies. It uses Kahn's
// algorithm and reports a cycle by its path.
func (g DependencyGraph) order(ids []uuid.UUID) ([]uuid.UUID, error) {
	known := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	inDegree := make(map[uuid.UUID]int, len(ids))
	forward := make(map[uuid.UUID][]uuid.UUID)
	for _, id := range ids {
		for _, dep := range g[id] {
			if !known[dep] {
				return nil, fmt.Errorf("%w: job %s depends on unknown job %s", core.ErrInvalidArgument, id, dep)
			}
			inDegree[id]++
			forward[dep] = append(forward[dep], id)
		}
	}
	for id := range g {
		if !known[id] {
			return nil, fmt.Errorf("%w: dependency of unknown job %s", core.ErrInvalidArgument, id)
		}
	}

	var queue, sorted []uuid.UUID
	for _, id := range ids {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		sorted = append(sorted, id)
		for _, next := range forward[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if len(sorted) == len(ids) {
		return sorted, nil
	}

	cycle := g.cyclePath(ids, inDegree)
	names := make([]string, len(cycle))
	for i, id := range cycle {
		names[i] = id.String()
	}
	return nil, fmt.Errorf("%w: circular dependency: %s", core.ErrInvalidArgument, strings.Join(names, " -> "))
}

// cyclePath finds one cycle among the jobs Kahn's algorithm left behind.
func (g DependencyGraph) cyclePath(ids []uuid.UUID, inDegree map[uuid.UUID]int) []uuid.UUID {
	const (
		white = iota
		gray
		black
	)
	color := make(map[uuid.UUID]int)
	parent := make(map[uuid.UUID]uuid.UUID)

	var path []uuid.UUID
	var dfs func(id uuid.UUID) bool
	dfs = func(id uuid.UUID) bool {
		color[id] = gray
		for _, dep := range g[id] {
			switch color[dep] {
			case gray:
				path = []uuid.UUID{dep}
				for cur := id; cur != dep; cur = parent[cur] {
					path = append(path, cur)
				}
				path = append(path, dep)
				return true
			case white:
				parent[dep] = id
				if dfs(dep) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}
	for _, id := range ids {
		if inDegree[id] > 0 && color[id] == white && dfs(id) {
			break
		}
	}
	return path
}

// window is a normalized start window.
type window struct{ earliest, latest float64 }

// normalize tightens every start window so dependencies fit: forward, a job
// cannot start before its dependencies can finish; backward, a dependency
// must start early enough for its dependents.
func (g DependencyGraph) normalize(order []uuid.UUID, specs map[uuid.UUID]core.JobSpec, margin float64) (map[uuid.UUID]window, error) {
	w := make(map[uuid.UUID]window, len(order))
	for _, id := range order {
		s := specs[id]
		w[id] = window{s.EarliestStart, s.LatestStart}
	}
	for _, id := range order {
		cur := w[id]
		for _, dep := range g[id] {
			cur.earliest = math.Max(cur.earliest, w[dep].earliest+specs[dep].Duration+margin)
		}
		w[id] = cur
	}
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		for _, dep := range g[id] {
			d := w[dep]
			d.latest = math.Min(d.latest, w[id].latest-margin-specs[dep].Duration)
			w[dep] = d
		}
	}
	for _, id := range order {
		if w[id].earliest > w[id].latest+trajectory.TimeTolerance {
			return nil, fmt.Errorf("%w: job %s has an empty start window after dependency propagation",
				core.ErrNoFeasiblePlacement, id)
		}
	}
	return w, nil
}

// PlanDependent places a batch of jobs respecting deps. Jobs are planned in
// dependency order against one branch of alt, each starting no earlier than
// its placed dependencies finish plus the configured margin. The first
// failure discards the whole batch and leaves alt unchanged.
func (p *Planner) PlanDependent(ctx context.Context, alt *core.Alternative, specs []core.JobSpec, deps DependencyGraph) ([]*core.Job, error) {
	byID := make(map[uuid.UUID]core.JobSpec, len(specs))
	ids := make([]uuid.UUID, 0, len(specs))
	for _, s := range specs {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := byID[s.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate job %s", core.ErrInvalidArgument, s.ID)
		}
		byID[s.ID] = s
		ids = append(ids, s.ID)
	}
	if deps == nil {
		deps = DependencyGraph{}
	}
	order, err := deps.order(ids)
	if err != nil {
		return nil, err
	}
	windows, err := deps.normalize(order, byID, p.cfg.DependencyMargin)
	if err != nil {
		return nil, err
	}

	branch, err := alt.Branch()
	if err != nil {
		return nil, err
	}
	placed := make(map[uuid.UUID]*core.Job, len(order))
	for _, id := range order {
		s := byID[id]
		s.EarliestStart, s.LatestStart = windows[id].earliest, windows[id].latest
		for _, dep := range deps[id] {
			s.EarliestStart = math.Max(s.EarliestStart, placed[dep].FinishTime()+p.cfg.DependencyMargin)
		}
		if s.EarliestStart > s.LatestStart+trajectory.TimeTolerance {
			return nil, p.discard(branch, fmt.Errorf("%w: job %s cannot start after its dependencies",
				core.ErrNoFeasiblePlacement, id))
		}
		s.LatestStart = math.Max(s.LatestStart, s.EarliestStart)
		job, err := p.PlanJob(ctx, branch, s)
		if err != nil {
			return nil, p.discard(branch, err)
		}
		placed[id] = job
	}
	if err := branch.Merge(); err != nil {
		return nil, err
	}

	jobs := make([]*core.Job, len(specs))
	for i, s := range specs {
		jobs[i] = placed[s.ID]
	}
	return jobs, nil
}

// discard deletes a failed branch and returns cause.
func (p *Planner) discard(branch *core.Alternative, cause error) error {
	if err := branch.Delete(); err != nil {
		p.log.Error("deleting branch", "error", err)
	}
	return cause
}
