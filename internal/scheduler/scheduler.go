// Package scheduler is the host-facing API: agents, clock, scheduling
// transactions and their commit or abort.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/elektrokombinacija/stsched/internal/algo"
	"github.com/elektrokombinacija/stsched/internal/core"
	"github.com/elektrokombinacija/stsched/internal/logging"
	"github.com/elektrokombinacija/stsched/internal/trajectory"
	"github.com/elektrokombinacija/stsched/internal/world"
)

// ErrUnknownTransaction is returned by Commit and Abort for ids that are not
// outstanding.
var ErrUnknownTransaction = errors.New("unknown transaction")

// TrajectoryUpdate is a trajectory a transaction assigns to an agent.
type TrajectoryUpdate struct {
	AgentID    string
	Trajectory trajectory.Trajectory
}

// Result describes an outstanding transaction.
type Result struct {
	TransactionID     ulid.ULID
	Jobs              map[uuid.UUID]*core.Job
	JobRemovals       map[uuid.UUID]*core.Job
	TrajectoryUpdates []TrajectoryUpdate
}

type transaction struct {
	alt     *core.Alternative
	result  *Result
	op      string
	created time.Time
}

// Scheduler owns a schedule and plans against it. Planning runs under a
// read lock, so independent requests plan concurrently; registering,
// committing and aborting transactions, agent changes and clock changes take
// the write lock.
type Scheduler struct {
	mu sync.RWMutex

	world    *world.World
	schedule *core.Schedule
	planner  *algo.Planner
	log      *slog.Logger

	presentTime     float64
	horizonDuration float64
	transactions    map[ulid.ULID]*transaction
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger of the scheduler and, unless the planner
// configuration has its own, of the planner.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// WithPresentTime sets the initial present time (default 0).
func WithPresentTime(t float64) Option {
	return func(s *Scheduler) { s.presentTime = t }
}

// WithFrozenHorizonDuration sets the initial frozen horizon duration
// (default 0).
func WithFrozenHorizonDuration(d float64) Option {
	return func(s *Scheduler) { s.horizonDuration = d }
}

// New returns a scheduler over w with an empty schedule.
func New(w *world.World, cfg algo.Config, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		world:        w,
		schedule:     core.NewSchedule(),
		transactions: make(map[ulid.ULID]*transaction),
	}
	for _, opt := range opts {
		opt(s)
	}
	if math.IsNaN(s.presentTime) || math.IsInf(s.presentTime, 0) {
		return nil, fmt.Errorf("%w: present time %g", core.ErrInvalidArgument, s.presentTime)
	}
	if !(s.horizonDuration >= 0) || math.IsInf(s.horizonDuration, 1) {
		return nil, fmt.Errorf("%w: frozen horizon duration %g", core.ErrInvalidArgument, s.horizonDuration)
	}
	if cfg.Logger == nil {
		cfg.Logger = s.log
	}
	planner, err := algo.NewPlanner(w, s.schedule, cfg)
	if err != nil {
		return nil, err
	}
	s.planner = planner
	s.log = logging.Component(s.log, "scheduler")
	s.schedule.AdvanceFrozenHorizon(s.presentTime + s.horizonDuration)
	return s, nil
}

// World returns the world the scheduler plans in.
func (s *Scheduler) World() *world.World { return s.world }

// View runs fn with the schedule while holding the read lock. fn must not
// keep references that it reads after returning.
func (s *Scheduler) View(fn func(*core.Schedule)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.schedule)
}

// AddAgent adds an idle agent.
func (s *Scheduler) AddAgent(spec core.AgentSpec) (*core.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.schedule.AddAgent(spec)
	if err != nil {
		return nil, err
	}
	s.log.Info("agent added", "agent", a.ID(), "location", a.InitialLocation(), "time", a.InitialTime())
	return a, nil
}

// RemoveAgent removes an agent that is idle from the frozen horizon on and
// not claimed by any outstanding transaction.
func (s *Scheduler) RemoveAgent(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.schedule.RemoveAgent(id); err != nil {
		return err
	}
	s.log.Info("agent removed", "agent", id)
	return nil
}

// PresentTime returns the present time.
func (s *Scheduler) PresentTime() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.presentTime
}

// FrozenHorizon returns the earliest time new commitments may start.
func (s *Scheduler) FrozenHorizon() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schedule.FrozenHorizon()
}

// FrozenHorizonDuration returns the margin kept ahead of the present time.
func (s *Scheduler) FrozenHorizonDuration() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.horizonDuration
}

// SetPresentTime moves the present time forward.
func (s *Scheduler) SetPresentTime(t float64) error {
	return s.SetClock(&t, nil)
}

// SetFrozenHorizonDuration changes the margin kept ahead of the present
// time. The frozen horizon itself never moves back.
func (s *Scheduler) SetFrozenHorizonDuration(d float64) error {
	return s.SetClock(nil, &d)
}

// SetClock changes the present time and the frozen horizon duration together.
// Nil values are kept. Nothing is applied unless both values are valid.
func (s *Scheduler) SetClock(present, duration *float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if present != nil {
		if t := *present; math.IsNaN(t) || math.IsInf(t, 0) || t < s.presentTime {
			return fmt.Errorf("%w: present time %g must not go back from %g", core.ErrInvalidArgument, t, s.presentTime)
		}
	}
	if duration != nil {
		if d := *duration; !(d >= 0) || math.IsInf(d, 1) {
			return fmt.Errorf("%w: frozen horizon duration %g must not be negative", core.ErrInvalidArgument, d)
		}
	}
	if present != nil {
		s.presentTime = *present
	}
	if duration != nil {
		s.horizonDuration = *duration
	}
	s.advance()
	return nil
}

func (s *Scheduler) advance() {
	h := s.schedule.AdvanceFrozenHorizon(s.presentTime + s.horizonDuration)
	s.log.Debug("clock", "present", s.presentTime, "frozen_horizon", h)
}

// Schedule places one job.
func (s *Scheduler) Schedule(ctx context.Context, spec core.JobSpec) (*Result, error) {
	return s.transact(ctx, "schedule", func(alt *core.Alternative) error {
		_, err := s.planner.PlanJob(ctx, alt, spec)
		return err
	})
}

// ScheduleDependent places a batch of jobs honoring deps. Either every job is
// placed or none.
func (s *Scheduler) ScheduleDependent(ctx context.Context, specs []core.JobSpec, deps algo.DependencyGraph) (*Result, error) {
	return s.transact(ctx, "schedule-dependent", func(alt *core.Alternative) error {
		_, err := s.planner.PlanDependent(ctx, alt, specs, deps)
		return err
	})
}

// SchedulePeriodic places every repetition of a periodic job or none.
func (s *Scheduler) SchedulePeriodic(ctx context.Context, spec core.PeriodicJobSpec) (*Result, error) {
	return s.transact(ctx, "schedule-periodic", func(alt *core.Alternative) error {
		_, err := s.planner.PlanPeriodic(ctx, alt, spec)
		return err
	})
}

// Unschedule removes a committed job.
func (s *Scheduler) Unschedule(ctx context.Context, jobID uuid.UUID) (*Result, error) {
	return s.transact(ctx, "unschedule", func(alt *core.Alternative) error {
		job, err := s.schedule.Job(jobID)
		if err != nil {
			return err
		}
		return s.planner.PlanRemoval(ctx, alt, job)
	})
}

// Reschedule replaces a committed job by a newly placed one. The new job
// needs its own id.
func (s *Scheduler) Reschedule(ctx context.Context, jobID uuid.UUID, spec core.JobSpec) (*Result, error) {
	return s.transact(ctx, "reschedule", func(alt *core.Alternative) error {
		job, err := s.schedule.Job(jobID)
		if err != nil {
			return err
		}
		_, err = s.planner.PlanReplacement(ctx, alt, job, spec)
		return err
	})
}

// transact plans into a fresh alternative under the read lock and registers
// it under the write lock. When the schedule changed in between and the
// alternative no longer fits, it is planned once more under the write lock.
func (s *Scheduler) transact(ctx context.Context, op string, plan func(*core.Alternative) error) (*Result, error) {
	s.mu.RLock()
	alt, err := s.prepare(plan)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err = s.schedule.AddAlternative(alt)
	if errors.Is(err, core.ErrInconsistentAlternative) {
		s.log.Debug("replanning after a concurrent change", "op", op, "error", err)
		if alt, err = s.prepare(plan); err != nil {
			return nil, err
		}
		err = s.schedule.AddAlternative(alt)
	}
	if err != nil {
		return nil, err
	}

	tx := &transaction{alt: alt, op: op, created: time.Now(), result: newResult(ulid.Make(), alt)}
	s.transactions[tx.result.TransactionID] = tx
	s.log.Info("transaction registered",
		"tx", tx.result.TransactionID, "op", op,
		"jobs", len(tx.result.Jobs), "removals", len(tx.result.JobRemovals))
	return tx.result, nil
}

func (s *Scheduler) prepare(plan func(*core.Alternative) error) (*core.Alternative, error) {
	alt := core.NewAlternative()
	if err := plan(alt); err != nil {
		return nil, err
	}
	if err := alt.Seal(); err != nil {
		return nil, err
	}
	return alt, nil
}

func newResult(id ulid.ULID, alt *core.Alternative) *Result {
	r := &Result{
		TransactionID: id,
		Jobs:          make(map[uuid.UUID]*core.Job),
		JobRemovals:   make(map[uuid.UUID]*core.Job),
	}
	for _, j := range alt.Jobs() {
		r.Jobs[j.ID()] = j
	}
	for _, j := range alt.Removals() {
		r.JobRemovals[j.ID()] = j
	}
	for _, u := range alt.Updates() {
		for _, t := range u.Trajectories() {
			r.TrajectoryUpdates = append(r.TrajectoryUpdates, TrajectoryUpdate{AgentID: u.Agent().ID(), Trajectory: t})
		}
	}
	return r
}

// Commit applies an outstanding transaction to the schedule.
func (s *Scheduler) Commit(id ulid.ULID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTransaction, id)
	}
	if err := s.schedule.Integrate(tx.alt); err != nil {
		return err
	}
	delete(s.transactions, id)
	s.log.Info("transaction committed", "tx", id, "op", tx.op, "pending_for", time.Since(tx.created))
	return nil
}

// Abort discards an outstanding transaction and releases its claims.
func (s *Scheduler) Abort(id ulid.ULID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTransaction, id)
	}
	if err := s.schedule.Eliminate(tx.alt); err != nil {
		return err
	}
	delete(s.transactions, id)
	s.log.Info("transaction aborted", "tx", id, "op", tx.op)
	return nil
}

// Transaction returns the result of an outstanding transaction.
func (s *Scheduler) Transaction(id ulid.ULID) (*Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[id]
	if !ok {
		return nil, false
	}
	return tx.result, true
}

// Transactions returns the outstanding transaction ids in creation order.
func (s *Scheduler) Transactions() []ulid.ULID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]ulid.ULID, 0, len(s.transactions))
	for id := range s.transactions {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b ulid.ULID) int { return a.Compare(b) })
	return ids
}
