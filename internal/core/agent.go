package core

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/elektrokombinacija/stsched/internal/geom"
	"github.com/elektrokombinacija/stsched/internal/interval"
	"github.com/elektrokombinacija/stsched/internal/trajectory"
)

// Agent is a mobile unit with its committed jobs and trajectories. The
// trajectory container covers [InitialTime, EndOfTime) without gaps. Agents
// are only mutated by the Schedule.
type Agent struct {
	id              string
	radius          float64
	maxSpeed        float64
	initialLocation geom.Point
	initialTime     float64

	jobs         []*Job // sorted by start time
	trajectories *trajectory.Container
}

// NewAgent creates an idle agent resting at its initial location forever.
func NewAgent(spec AgentSpec) (*Agent, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &Agent{
		id:              spec.ID,
		radius:          spec.Radius,
		maxSpeed:        spec.MaxSpeed,
		initialLocation: spec.InitialLocation,
		initialTime:     spec.InitialTime,
		trajectories: trajectory.NewContainer(
			trajectory.Stationary(spec.InitialLocation, spec.InitialTime, trajectory.EndOfTime)),
	}, nil
}

func (a *Agent) ID() string                  { return a.id }
func (a *Agent) Radius() float64             { return a.radius }
func (a *Agent) MaxSpeed() float64           { return a.maxSpeed }
func (a *Agent) InitialLocation() geom.Point { return a.initialLocation }
func (a *Agent) InitialTime() float64        { return a.initialTime }

// Jobs returns the committed jobs sorted by start time.
func (a *Agent) Jobs() []*Job { return slices.Clone(a.jobs) }

// Job returns the committed job with the given id.
func (a *Agent) Job(id uuid.UUID) (*Job, bool) {
	for _, j := range a.jobs {
		if j.id == id {
			return j, true
		}
	}
	return nil, false
}

// HasJob reports whether j is one of the agent's committed jobs.
func (a *Agent) HasJob(j *Job) bool {
	c, ok := a.Job(j.id)
	return ok && c.Equal(j)
}

// JobIntervals is a live view of the committed job intervals.
func (a *Agent) JobIntervals() interval.Set[float64] {
	return interval.NewMapped[float64, *Job](agentJobs{a}, (*Job).Interval)
}

// Trajectories returns a copy of the committed trajectory container.
func (a *Agent) Trajectories() *trajectory.Container { return a.trajectories.Clone() }

// Interpolate returns the committed location at time t.
func (a *Agent) Interpolate(t float64) (geom.Point, bool) { return a.trajectories.Interpolate(t) }

// IdleSlots returns the idle slots overlapping [from, to].
func (a *Agent) IdleSlots(from, to float64) []IdleSlot {
	return idleSlots(a.jobs, a.trajectories, a.initialTime, from, to)
}

// IsIdleFrom reports whether the agent has no job finishing after t and
// rests at a single location from t on.
func (a *Agent) IsIdleFrom(t float64) bool {
	if n := len(a.jobs); n > 0 && a.jobs[n-1].FinishTime() > t+trajectory.TimeTolerance {
		return false
	}
	t = max(t, a.initialTime)
	p, ok := a.trajectories.Interpolate(t)
	return ok && a.trajectories.IsStationaryAt(p, t, trajectory.EndOfTime)
}

func (a *Agent) String() string {
	return fmt.Sprintf("Agent(%s, r=%g, v=%g, %d jobs)", a.id, a.radius, a.maxSpeed, len(a.jobs))
}

func (a *Agent) addJob(j *Job) {
	a.jobs = insertByStart(a.jobs, j)
}

func (a *Agent) removeJob(j *Job) {
	a.jobs = slices.DeleteFunc(a.jobs, func(e *Job) bool { return e.id == j.id })
}

func (a *Agent) updateTrajectory(t trajectory.Trajectory) {
	a.trajectories.Update(t)
}

// agentJobs exposes the committed jobs as an interval.Sequence.
type agentJobs struct{ a *Agent }

func (s agentJobs) Len() int      { return len(s.a.jobs) }
func (s agentJobs) At(i int) *Job { return s.a.jobs[i] }
