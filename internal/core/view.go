package core

import (
	"slices"

	"github.com/elektrokombinacija/stsched/internal/geom"
	"github.com/elektrokombinacija/stsched/internal/interval"
	"github.com/elektrokombinacija/stsched/internal/trajectory"
)

// AgentView is an agent as seen through an Update: committed jobs minus
// proposed removals plus proposed jobs, and the committed trajectories
// overlaid with the proposed ones. Time locked by other alternatives is not
// offered as idle.
type AgentView struct {
	agent        *Agent
	jobs         []*Job
	trajectories *trajectory.Container
	locked       interval.Set[float64]
}

// NewAgentView builds the view. u and locked may be nil.
func NewAgentView(agent *Agent, u *Update, locked interval.Set[float64]) *AgentView {
	v := &AgentView{
		agent:        agent,
		jobs:         slices.Clone(agent.jobs),
		trajectories: agent.trajectories.Clone(),
		locked:       locked,
	}
	if u != nil {
		for _, r := range u.removals {
			v.jobs = slices.DeleteFunc(v.jobs, func(j *Job) bool { return j.id == r.id })
		}
		for _, j := range u.jobs {
			v.jobs = insertByStart(v.jobs, j)
		}
		v.trajectories.UpdateAll(u.trajectories)
	}
	return v
}

func (v *AgentView) Agent() *Agent { return v.agent }

// Jobs returns the jobs of the view sorted by start time.
func (v *AgentView) Jobs() []*Job { return slices.Clone(v.jobs) }

// Interpolate returns the location at time t in the view.
func (v *AgentView) Interpolate(t float64) (geom.Point, bool) { return v.trajectories.Interpolate(t) }

// Trajectories returns the trajectories overlapping [from, to].
func (v *AgentView) Trajectories(from, to float64) []trajectory.Trajectory {
	return v.trajectories.Slice(from, to)
}

// IdleSlots returns the idle slots overlapping [from, to] outside locked time.
func (v *AgentView) IdleSlots(from, to float64) []IdleSlot {
	slots := idleSlots(v.jobs, v.trajectories, v.agent.initialTime, from, to)
	return cutSlots(slots, v.locked, v.trajectories)
}
