package core

import (
	"fmt"
	"slices"

	"github.com/elektrokombinacija/stsched/internal/interval"
	"github.com/elektrokombinacija/stsched/internal/trajectory"
)

// Update holds the changes an Alternative proposes for one agent: new
// trajectories, new jobs and job removals, plus the time ranges they claim.
type Update struct {
	owner        *Alternative
	agent        *Agent
	trajectories *trajectory.Container
	jobs         []*Job // sorted by start time
	removals     []*Job // sorted by start time

	trajectoryLock *interval.MutableSet[float64]
	jobLock        *interval.MutableSet[float64]
	removalLock    *interval.MutableSet[float64]

	sealed bool
}

func newUpdate(owner *Alternative, agent *Agent) *Update {
	return &Update{
		owner:          owner,
		agent:          agent,
		trajectories:   trajectory.NewContainer(),
		trajectoryLock: interval.NewMutable[float64](),
		jobLock:        interval.NewMutable[float64](),
		removalLock:    interval.NewMutable[float64](),
	}
}

func (u *Update) Agent() *Agent  { return u.agent }
func (u *Update) IsSealed() bool { return u.sealed }

// IsEmpty reports whether the update proposes nothing.
func (u *Update) IsEmpty() bool {
	return u.trajectories.IsEmpty() && len(u.jobs) == 0 && len(u.removals) == 0
}

// Jobs returns the proposed jobs sorted by start time.
func (u *Update) Jobs() []*Job { return slices.Clone(u.jobs) }

// Removals returns the proposed job removals sorted by start time.
func (u *Update) Removals() []*Job { return slices.Clone(u.removals) }

// Trajectories returns the proposed trajectories in time order.
func (u *Update) Trajectories() []trajectory.Trajectory { return u.trajectories.Trajectories() }

func (u *Update) TrajectoryLock() interval.SimpleSet[float64] { return u.trajectoryLock.Snapshot() }
func (u *Update) JobLock() interval.SimpleSet[float64]        { return u.jobLock.Snapshot() }
func (u *Update) RemovalLock() interval.SimpleSet[float64]    { return u.removalLock.Snapshot() }

// Claim returns the time the update needs exclusive trajectory rights for:
// its trajectories and its new jobs.
func (u *Update) Claim() interval.SimpleSet[float64] {
	return u.trajectoryLock.Snapshot().Union(u.jobLock)
}

// checkMutable rejects changes to sealed updates and to updates whose
// alternative is frozen or no longer holds them.
func (u *Update) checkMutable() error {
	if u.sealed {
		return fmt.Errorf("%w: update for %s is sealed", ErrIllegalState, u.agent.id)
	}
	if u.owner.updates[u.agent.id] != u {
		return fmt.Errorf("%w: update for %s is no longer held by its alternative", ErrIllegalState, u.agent.id)
	}
	return u.owner.checkMutable()
}

// AddJob proposes a new job for the agent.
func (u *Update) AddJob(j *Job) error {
	if err := u.checkMutable(); err != nil {
		return err
	}
	if j.agentID != u.agent.id {
		return fmt.Errorf("%w: job %s belongs to %s, not %s", ErrInvalidArgument, j.id, j.agentID, u.agent.id)
	}
	if u.jobLock.Intersects(j.startTime, j.FinishTime()) {
		return fmt.Errorf("%w: job %s overlaps another proposed job", ErrInvalidArgument, j.id)
	}
	if err := u.jobLock.Add(j.startTime, j.FinishTime()); err != nil {
		return err
	}
	u.jobs = insertByStart(u.jobs, j)
	return nil
}

// AddJobRemoval proposes removing a committed job of the agent.
func (u *Update) AddJobRemoval(j *Job) error {
	if err := u.checkMutable(); err != nil {
		return err
	}
	if j.agentID != u.agent.id {
		return fmt.Errorf("%w: job %s belongs to %s, not %s", ErrInvalidArgument, j.id, j.agentID, u.agent.id)
	}
	if u.removalLock.Intersects(j.startTime, j.FinishTime()) {
		return fmt.Errorf("%w: job %s overlaps another proposed removal", ErrInvalidArgument, j.id)
	}
	if err := u.removalLock.Add(j.startTime, j.FinishTime()); err != nil {
		return err
	}
	u.removals = insertByStart(u.removals, j)
	return nil
}

// UpdateTrajectory proposes t, overlaying previously proposed trajectories.
// Trajectories without duration are ignored.
func (u *Update) UpdateTrajectory(t trajectory.Trajectory) error {
	if err := u.checkMutable(); err != nil {
		return err
	}
	if t.IsEmpty() || t.Duration() <= trajectory.TimeTolerance {
		return nil
	}
	u.trajectories.Update(t)
	return u.trajectoryLock.Add(t.StartTime(), t.FinishTime())
}

// Seal checks the update is self-consistent and makes it read-only. Proposed
// trajectories must be continuous wherever they touch, and proposed jobs must
// be stationary at their location where proposed trajectories cover them.
func (u *Update) Seal() error {
	if u.sealed {
		return fmt.Errorf("%w: update for %s is already sealed", ErrIllegalState, u.agent.id)
	}
	if err := u.checkSelfConsistency(); err != nil {
		return err
	}
	for _, l := range []*interval.MutableSet[float64]{u.trajectoryLock, u.jobLock, u.removalLock} {
		if err := l.Seal(); err != nil {
			return err
		}
	}
	u.sealed = true
	return nil
}

func (u *Update) checkSelfConsistency() error {
	for _, run := range u.trajectories.Runs() {
		if _, err := trajectory.Concat(run...); err != nil {
			return fmt.Errorf("%w: agent %s: %v", ErrInconsistentAlternative, u.agent.id, err)
		}
	}
	for _, j := range u.jobs {
		for _, t := range u.trajectories.Slice(j.startTime, j.FinishTime()) {
			if !t.IsStationary(t.StartTime(), t.FinishTime()) || !t.StartLocation().Equal(j.location) {
				return fmt.Errorf("%w: agent %s moves during job %s",
					ErrInconsistentAlternative, u.agent.id, j.id)
			}
		}
	}
	return nil
}

// clone returns an unsealed deep copy owned by owner.
func (u *Update) clone(owner *Alternative) *Update {
	return &Update{
		owner:          owner,
		agent:          u.agent,
		trajectories:   u.trajectories.Clone(),
		jobs:           slices.Clone(u.jobs),
		removals:       slices.Clone(u.removals),
		trajectoryLock: u.trajectoryLock.Clone(),
		jobLock:        u.jobLock.Clone(),
		removalLock:    u.removalLock.Clone(),
	}
}

func insertByStart(jobs []*Job, j *Job) []*Job {
	i, _ := slices.BinarySearchFunc(jobs, j.startTime, func(e *Job, t float64) int {
		switch {
		case e.startTime < t:
			return -1
		case e.startTime > t:
			return 1
		}
		return 0
	})
	return slices.Insert(jobs, i, j)
}
