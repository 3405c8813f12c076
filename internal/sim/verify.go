// Package sim replays committed schedules. It checks the properties every
// committed plan must have and collects execution metrics.
package sim

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/elektrokombinacija/stsched/internal/core"
	"github.com/elektrokombinacija/stsched/internal/geom"
	"github.com/elektrokombinacija/stsched/internal/motion"
	"github.com/elektrokombinacija/stsched/internal/trajectory"
	"github.com/elektrokombinacija/stsched/internal/world"
)

// ViolationType classifies a broken property.
type ViolationType int

const (
	// Discontinuity: the committed trajectories have a gap or a jump.
	Discontinuity ViolationType = iota
	// JobNotStationary: the agent moves or is elsewhere while working.
	JobNotStationary
	// Separation: two agent disks overlap.
	Separation
	// StaticCollision: a movement crosses a static obstacle.
	StaticCollision
	// DynamicCollision: an agent meets a dynamic obstacle.
	DynamicCollision
)

func (v ViolationType) String() string {
	switch v {
	case Discontinuity:
		return "discontinuity"
	case JobNotStationary:
		return "job-not-stationary"
	case Separation:
		return "separation"
	case StaticCollision:
		return "static-collision"
	case DynamicCollision:
		return "dynamic-collision"
	}
	return fmt.Sprintf("ViolationType(%d)", int(v))
}

// Violation is one broken property. Time is the start of the offending
// trajectory piece or job.
type Violation struct {
	Type   ViolationType
	Agent1 string
	Agent2 string // Separation only
	Job    uuid.UUID
	Time   float64
}

func (v Violation) String() string {
	switch v.Type {
	case Separation:
		return fmt.Sprintf("%s: %s and %s at t=%.3f", v.Type, v.Agent1, v.Agent2, v.Time)
	case JobNotStationary:
		return fmt.Sprintf("%s: %s job %s at t=%.3f", v.Type, v.Agent1, v.Job, v.Time)
	}
	return fmt.Sprintf("%s: %s at t=%.3f", v.Type, v.Agent1, v.Time)
}

// Verify checks the committed trajectories of every agent in s against w and
// each other. The result is ordered by time.
func Verify(s *core.Schedule, w *world.World) []Violation {
	agents := s.Agents()
	var out []Violation
	for _, a := range agents {
		out = append(out, verifyAgent(a, w)...)
	}
	out = append(out, conflicts(agents, false)...)
	slices.SortStableFunc(out, func(a, b Violation) int { return cmp.Compare(a.Time, b.Time) })
	return out
}

func verifyAgent(a *core.Agent, w *world.World) []Violation {
	var out []Violation
	trajs := a.Trajectories()
	if !trajs.IsContinuous() || !trajs.Covers(a.InitialTime(), trajectory.EndOfTime) {
		out = append(out, Violation{Type: Discontinuity, Agent1: a.ID(), Time: gapTime(trajs, a.InitialTime())})
	}
	for _, j := range a.Jobs() {
		if !trajs.IsStationaryAt(j.Location(), j.StartTime(), j.FinishTime()) {
			out = append(out, Violation{Type: JobNotStationary, Agent1: a.ID(), Job: j.ID(), Time: j.StartTime()})
		}
	}

	p := w.Perspective(a.Radius())
	var dynamic []motion.Obstacle
	for _, o := range w.Dynamic {
		dynamic = append(dynamic, motion.Obstacle{Radius: o.Radius + a.Radius(), Trajectory: o.Trajectory})
	}
	for _, tr := range trajs.Trajectories() {
		if !clearPath(p, tr.Path()) {
			out = append(out, Violation{Type: StaticCollision, Agent1: a.ID(), Time: tr.StartTime()})
		}
		if motion.Collides(tr, tr.StartTime(), tr.FinishTime(), dynamic) {
			out = append(out, Violation{Type: DynamicCollision, Agent1: a.ID(), Time: tr.StartTime()})
		}
	}
	return out
}

// clearPath checks the moving legs of path. Resting in place is never a
// static collision.
func clearPath(p *world.Perspective, path []geom.Point) bool {
	for i := 1; i < len(path); i++ {
		if path[i-1].Equal(path[i]) {
			continue
		}
		if !p.Clear(path[i-1], path[i]) {
			return false
		}
	}
	return true
}

func gapTime(trajs *trajectory.Container, from float64) float64 {
	reached := from
	pieces := trajs.Trajectories()
	for i, tr := range pieces {
		if tr.StartTime() > reached+trajectory.TimeTolerance {
			return reached
		}
		if i > 0 && !tr.StartLocation().Equal(pieces[i-1].FinishLocation()) {
			return tr.StartTime()
		}
		reached = tr.FinishTime()
	}
	return reached
}

// FindFirstConflict returns the earliest separation violation between two
// agents, or nil.
func FindFirstConflict(agents []*core.Agent) *Violation {
	found := conflicts(agents, true)
	if len(found) == 0 {
		return nil
	}
	return &found[0]
}

// conflicts checks every pair of agents. With first set it returns only the
// earliest conflict.
func conflicts(agents []*core.Agent, first bool) []Violation {
	agents = slices.Clone(agents)
	slices.SortFunc(agents, func(a, b *core.Agent) int { return cmp.Compare(a.ID(), b.ID()) })

	var out []Violation
	var best *Violation
	for i := 0; i < len(agents); i++ {
		for j := i + 1; j < len(agents); j++ {
			t, ok := firstContact(agents[i], agents[j])
			if !ok {
				continue
			}
			v := Violation{Type: Separation, Agent1: agents[i].ID(), Agent2: agents[j].ID(), Time: t}
			if !first {
				out = append(out, v)
			} else if best == nil || v.Time < best.Time {
				best = &v
			}
		}
	}
	if first && best != nil {
		return []Violation{*best}
	}
	return out
}

// firstContact returns the start of the first trajectory piece of a that
// comes too close to b.
func firstContact(a, b *core.Agent) (float64, bool) {
	var obstacles []motion.Obstacle
	for _, tr := range b.Trajectories().Trajectories() {
		obstacles = append(obstacles, motion.Obstacle{Radius: a.Radius() + b.Radius(), Trajectory: tr})
	}
	for _, tr := range a.Trajectories().Trajectories() {
		if motion.Collides(tr, tr.StartTime(), tr.FinishTime(), obstacles) {
			return tr.StartTime(), true
		}
	}
	return 0, false
}
