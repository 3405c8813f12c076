package core

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/google/uuid"

	"github.com/elektrokombinacija/stsched/internal/interval"
	"github.com/elektrokombinacija/stsched/internal/trajectory"
)

// Schedule is the committed state: the agents, their jobs and trajectories,
// and per agent the trajectory and job-removal locks held by registered
// Alternatives. It is not safe for concurrent use; callers serialize access.
type Schedule struct {
	agents          map[string]*Agent
	trajectoryLocks map[string]*interval.MutableSet[float64]
	removalLocks    map[string]*interval.MutableSet[float64]
	alternatives    []*Alternative
	jobs            map[uuid.UUID]*Job
	pending         map[uuid.UUID]*Alternative // job ids proposed by registered alternatives

	frozenHorizon float64
}

// NewSchedule creates an empty schedule. The frozen horizon starts at -Inf.
func NewSchedule() *Schedule {
	return &Schedule{
		agents:          make(map[string]*Agent),
		trajectoryLocks: make(map[string]*interval.MutableSet[float64]),
		removalLocks:    make(map[string]*interval.MutableSet[float64]),
		jobs:            make(map[uuid.UUID]*Job),
		pending:         make(map[uuid.UUID]*Alternative),
		frozenHorizon:   math.Inf(-1),
	}
}

// FrozenHorizon returns the earliest time edits may start at.
func (s *Schedule) FrozenHorizon() float64 { return s.frozenHorizon }

// AdvanceFrozenHorizon moves the frozen horizon to t unless it is already
// later, and returns the resulting horizon.
func (s *Schedule) AdvanceFrozenHorizon(t float64) float64 {
	if t > s.frozenHorizon {
		s.frozenHorizon = t
	}
	return s.frozenHorizon
}

// Agent returns the agent with the given id.
func (s *Schedule) Agent(id string) (*Agent, error) {
	a, ok := s.agents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, id)
	}
	return a, nil
}

// Agents returns all agents sorted by id.
func (s *Schedule) Agents() []*Agent {
	out := make([]*Agent, 0, len(s.agents))
	for _, id := range slices.Sorted(maps.Keys(s.agents)) {
		out = append(out, s.agents[id])
	}
	return out
}

// Job returns the committed job with the given id.
func (s *Schedule) Job(id uuid.UUID) (*Job, error) {
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	return j, nil
}

// Jobs returns all committed jobs sorted by start time, then id.
func (s *Schedule) Jobs() []*Job {
	out := slices.Collect(maps.Values(s.jobs))
	slices.SortFunc(out, func(a, b *Job) int {
		if a.startTime != b.startTime {
			if a.startTime < b.startTime {
				return -1
			}
			return 1
		}
		return slices.Compare(a.id[:], b.id[:])
	})
	return out
}

// TrajectoryLock returns the time of agentID claimed by registered alternatives.
func (s *Schedule) TrajectoryLock(agentID string) interval.SimpleSet[float64] {
	if l, ok := s.trajectoryLocks[agentID]; ok {
		return l.Snapshot()
	}
	return interval.SimpleSet[float64]{}
}

// JobRemovalLock returns the job intervals of agentID claimed for removal by
// registered alternatives.
func (s *Schedule) JobRemovalLock(agentID string) interval.SimpleSet[float64] {
	if l, ok := s.removalLocks[agentID]; ok {
		return l.Snapshot()
	}
	return interval.SimpleSet[float64]{}
}

// Alternatives returns the registered alternatives in registration order.
func (s *Schedule) Alternatives() []*Alternative { return slices.Clone(s.alternatives) }

// IsRegistered reports whether alt was added and not yet integrated or eliminated.
func (s *Schedule) IsRegistered(alt *Alternative) bool {
	return slices.Contains(s.alternatives, alt)
}

// ProposedTrajectories returns the trajectories registered alternatives
// propose for agentID.
func (s *Schedule) ProposedTrajectories(agentID string) []trajectory.Trajectory {
	var out []trajectory.Trajectory
	for _, alt := range s.alternatives {
		if u, ok := alt.updates[agentID]; ok {
			out = append(out, u.trajectories.Trajectories()...)
		}
	}
	return out
}

// AddAgent registers a new idle agent.
func (s *Schedule) AddAgent(spec AgentSpec) (*Agent, error) {
	if _, ok := s.agents[spec.ID]; ok {
		return nil, fmt.Errorf("%w: agent %s already exists", ErrInvalidArgument, spec.ID)
	}
	a, err := NewAgent(spec)
	if err != nil {
		return nil, err
	}
	s.agents[a.id] = a
	s.trajectoryLocks[a.id] = interval.NewMutable[float64]()
	s.removalLocks[a.id] = interval.NewMutable[float64]()
	return a, nil
}

// RemoveAgent removes an agent that is idle from the frozen horizon on and
// not referenced by any registered alternative.
func (s *Schedule) RemoveAgent(id string) error {
	a, err := s.Agent(id)
	if err != nil {
		return err
	}
	if !s.trajectoryLocks[id].IsEmpty() || !s.removalLocks[id].IsEmpty() {
		return fmt.Errorf("%w: agent %s is locked by a pending alternative", ErrIllegalState, id)
	}
	if !a.IsIdleFrom(s.frozenHorizon) {
		return fmt.Errorf("%w: agent %s is not idle from %g on", ErrIllegalState, id, s.frozenHorizon)
	}
	for _, j := range a.jobs {
		delete(s.jobs, j.id)
	}
	delete(s.agents, id)
	delete(s.trajectoryLocks, id)
	delete(s.removalLocks, id)
	return nil
}

// AddAlternative checks alt against the committed state and all registered
// alternatives and, if compatible, claims its locks. Nothing changes on error.
func (s *Schedule) AddAlternative(alt *Alternative) error {
	if !alt.sealed {
		return fmt.Errorf("%w: alternative is not sealed", ErrIllegalState)
	}
	if s.IsRegistered(alt) {
		return fmt.Errorf("%w: alternative is already registered", ErrIllegalState)
	}
	for _, u := range alt.Updates() {
		if err := s.checkUpdate(u); err != nil {
			return err
		}
	}

	for _, u := range alt.Updates() {
		id := u.agent.id
		// checked disjoint above
		_ = s.trajectoryLocks[id].AddSet(u.Claim())
		_ = s.removalLocks[id].AddSet(u.removalLock)
		for _, j := range u.jobs {
			s.pending[j.id] = alt
		}
	}
	s.alternatives = append(s.alternatives, alt)
	return nil
}

func (s *Schedule) checkUpdate(u *Update) error {
	agent, ok := s.agents[u.agent.id]
	if !ok || agent != u.agent {
		return fmt.Errorf("%w: %w: %s", ErrInconsistentAlternative, ErrUnknownAgent, u.agent.id)
	}
	inconsistent := func(format string, args ...any) error {
		return fmt.Errorf("%w: agent %s: %s", ErrInconsistentAlternative, agent.id, fmt.Sprintf(format, args...))
	}
	claim := u.Claim()

	// edits start no earlier than the frozen horizon
	if lo, err := claim.Min(); err == nil && lo < s.frozenHorizon-trajectory.TimeTolerance {
		return inconsistent("edit at %g before frozen horizon %g", lo, s.frozenHorizon)
	}
	if lo, err := u.removalLock.Min(); err == nil && lo < s.frozenHorizon-trajectory.TimeTolerance {
		return inconsistent("removal at %g before frozen horizon %g", lo, s.frozenHorizon)
	}
	if lo, err := claim.Min(); err == nil && lo < agent.initialTime-trajectory.TimeTolerance {
		return inconsistent("edit at %g before the agent exists", lo)
	}

	// claims must not overlap committed jobs unless they are being removed
	committed := interval.Copy(agent.JobIntervals()).Difference(u.removalLock)
	if claim.IntersectsSet(committed) {
		return inconsistent("claim overlaps committed jobs")
	}

	// claims are exclusive among alternatives
	if claim.IntersectsSet(s.trajectoryLocks[agent.id]) {
		return inconsistent("claim overlaps the trajectory lock of another alternative")
	}

	// proposed trajectories connect to the committed trajectory
	for _, run := range u.trajectories.Runs() {
		first, last := run[0], run[len(run)-1]
		if p, ok := agent.trajectories.Interpolate(first.StartTime()); !ok || !p.Equal(first.StartLocation()) {
			return inconsistent("trajectory at %g does not start where the agent is", first.StartTime())
		}
		if math.IsInf(last.FinishTime(), 1) {
			continue
		}
		if p, ok := agent.trajectories.Interpolate(last.FinishTime()); !ok || !p.Equal(last.FinishLocation()) {
			return inconsistent("trajectory at %g does not end where the agent continues", last.FinishTime())
		}
	}

	// jobs not covered by proposed trajectories rest on the committed trajectory
	covered := u.trajectories.Intervals()
	for _, j := range u.jobs {
		for _, gap := range interval.Single(j.startTime, j.FinishTime()).Difference(covered).Intervals() {
			if !agent.trajectories.IsStationaryAt(j.location, gap.From(), gap.To()) {
				return inconsistent("job %s is not on a stationary section at %v", j.id, j.location)
			}
		}
		if _, ok := s.jobs[j.id]; ok {
			return inconsistent("job %s already exists", j.id)
		}
		if _, ok := s.pending[j.id]; ok {
			return inconsistent("job %s is proposed by another alternative", j.id)
		}
	}

	// removals reference committed jobs
	for _, r := range u.removals {
		if !agent.HasJob(r) {
			return inconsistent("removal of unknown job %s", r.id)
		}
	}

	// removals are exclusive among alternatives
	if u.removalLock.IntersectsSet(s.removalLocks[agent.id]) {
		return inconsistent("removal overlaps the removal lock of another alternative")
	}
	return nil
}

// Integrate applies a registered alternative to the committed state and
// releases its locks.
func (s *Schedule) Integrate(alt *Alternative) error {
	if !s.IsRegistered(alt) {
		return fmt.Errorf("%w: alternative is not registered", ErrIllegalState)
	}
	for _, u := range alt.Updates() {
		s.apply(u)
		s.release(alt, u)
	}
	s.dropAlternative(alt)
	return nil
}

// Eliminate releases the locks of a registered alternative without applying it.
func (s *Schedule) Eliminate(alt *Alternative) error {
	if !s.IsRegistered(alt) {
		return fmt.Errorf("%w: alternative is not registered", ErrIllegalState)
	}
	for _, u := range alt.Updates() {
		s.release(alt, u)
	}
	s.dropAlternative(alt)
	return nil
}

// IntegrateAgent applies only the update of agentID. The alternative is
// dropped once it holds no more updates.
func (s *Schedule) IntegrateAgent(alt *Alternative, agentID string) error {
	u, err := s.registeredUpdate(alt, agentID)
	if err != nil {
		return err
	}
	s.apply(u)
	s.release(alt, u)
	s.dropUpdate(alt, agentID)
	return nil
}

// EliminateAgent releases only the locks of agentID's update.
func (s *Schedule) EliminateAgent(alt *Alternative, agentID string) error {
	u, err := s.registeredUpdate(alt, agentID)
	if err != nil {
		return err
	}
	s.release(alt, u)
	s.dropUpdate(alt, agentID)
	return nil
}

func (s *Schedule) registeredUpdate(alt *Alternative, agentID string) (*Update, error) {
	if !s.IsRegistered(alt) {
		return nil, fmt.Errorf("%w: alternative is not registered", ErrIllegalState)
	}
	u, ok := alt.updates[agentID]
	if !ok {
		return nil, fmt.Errorf("%w: alternative has no update for %s", ErrUnknownAgent, agentID)
	}
	return u, nil
}

func (s *Schedule) apply(u *Update) {
	a := u.agent
	for _, r := range u.removals {
		a.removeJob(r)
		delete(s.jobs, r.id)
	}
	for _, j := range u.jobs {
		a.addJob(j)
		s.jobs[j.id] = j
	}
	for _, t := range u.trajectories.Trajectories() {
		a.updateTrajectory(t)
	}
}

func (s *Schedule) release(alt *Alternative, u *Update) {
	id := u.agent.id
	_ = s.trajectoryLocks[id].RemoveSet(u.Claim())
	_ = s.removalLocks[id].RemoveSet(u.removalLock)
	for _, j := range u.jobs {
		if s.pending[j.id] == alt {
			delete(s.pending, j.id)
		}
	}
}

func (s *Schedule) dropUpdate(alt *Alternative, agentID string) {
	alt.removeUpdate(agentID)
	if len(alt.updates) == 0 {
		s.dropAlternative(alt)
	}
}

func (s *Schedule) dropAlternative(alt *Alternative) {
	s.alternatives = slices.DeleteFunc(s.alternatives, func(a *Alternative) bool { return a == alt })
}
