package scheduler

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/elektrokombinacija/stsched/internal/algo"
	"github.com/elektrokombinacija/stsched/internal/core"
	"github.com/elektrokombinacija/stsched/internal/geom"
	"github.com/elektrokombinacija/stsched/internal/logging"
	"github.com/elektrokombinacija/stsched/internal/sim"
	"github.com/elektrokombinacija/stsched/internal/world"
)

func createTestScheduler(t *testing.T, w *world.World, agents map[string]geom.Point, opts ...Option) *Scheduler {
	t.Helper()
	opts = append([]Option{WithLogger(logging.Discard())}, opts...)
	s, err := New(w, algo.DefaultConfig(), opts...)
	require.NoError(t, err)
	for id, loc := range agents {
		_, err := s.AddAgent(core.AgentSpec{ID: id, Radius: 0.5, MaxSpeed: 1, InitialLocation: loc})
		require.NoError(t, err)
	}
	return s
}

func pointJob(loc geom.Point, earliest, latest, duration float64) core.JobSpec {
	return core.JobSpec{
		ID:            uuid.New(),
		Space:         world.PointSpace(loc),
		EarliestStart: earliest,
		LatestStart:   latest,
		Duration:      duration,
	}
}

type state struct {
	Agents  []string
	Jobs    []string
	Locks   []string
	Trajs   []string
	Alts    int
	Horizon float64
}

func observe(s *Scheduler) state {
	var st state
	s.View(func(sc *core.Schedule) {
		for _, a := range sc.Agents() {
			st.Agents = append(st.Agents, a.String())
			st.Locks = append(st.Locks, sc.TrajectoryLock(a.ID()).String(), sc.JobRemovalLock(a.ID()).String())
			for _, tr := range a.Trajectories().Trajectories() {
				st.Trajs = append(st.Trajs, tr.String())
			}
		}
		for _, j := range sc.Jobs() {
			st.Jobs = append(st.Jobs, j.String())
		}
		st.Alts = len(sc.Alternatives())
		st.Horizon = sc.FrozenHorizon()
	})
	return st
}

func TestScheduler_JobAtInitialLocation(t *testing.T) {
	s := createTestScheduler(t, world.Open(), map[string]geom.Point{"a1": geom.Pt(0, 0)})
	spec := pointJob(geom.Pt(0, 0), 0, 0, 5)

	res, err := s.Schedule(context.Background(), spec)
	require.NoError(t, err)
	require.Contains(t, res.Jobs, spec.ID)
	assert.Empty(t, res.JobRemovals)
	job := res.Jobs[spec.ID]
	assert.Equal(t, 0.0, job.StartTime())

	for _, u := range res.TrajectoryUpdates {
		assert.Equal(t, "a1", u.AgentID)
		assert.True(t, u.Trajectory.IsStationary(u.Trajectory.StartTime(), u.Trajectory.FinishTime()))
	}

	require.NoError(t, s.Commit(res.TransactionID))
	assert.Empty(t, s.Transactions())
	s.View(func(sc *core.Schedule) {
		committed, err := sc.Job(spec.ID)
		require.NoError(t, err)
		assert.True(t, committed.Location().Equal(geom.Pt(0, 0)))
	})
}

func TestScheduler_SeparatedByObstacle(t *testing.T) {
	w, err := world.New(
		geom.Rectangle(geom.Pt(0, 0), geom.Pt(20, 10)),
		[]geom.Polygon{geom.Rectangle(geom.Pt(9, 0), geom.Pt(11, 10))},
		nil,
	)
	require.NoError(t, err)
	s := createTestScheduler(t, w, map[string]geom.Point{"a1": geom.Pt(2, 5)})
	before := observe(s)

	_, err = s.Schedule(context.Background(), pointJob(geom.Pt(15, 5), 0, math.Inf(1), 1))
	assert.ErrorIs(t, err, core.ErrNoFeasiblePlacement)
	assert.Equal(t, before, observe(s))
	assert.Empty(t, s.Transactions())
}

func TestScheduler_DependentJobs(t *testing.T) {
	margin := 2.0
	newScheduler := func() *Scheduler {
		cfg := algo.DefaultConfig()
		cfg.DependencyMargin = margin
		s, err := New(world.Open(), cfg, WithLogger(logging.Discard()))
		require.NoError(t, err)
		for id, loc := range map[string]geom.Point{"a1": geom.Pt(0, 0), "a2": geom.Pt(10, 0)} {
			_, err := s.AddAgent(core.AgentSpec{ID: id, Radius: 0.5, MaxSpeed: 1, InitialLocation: loc})
			require.NoError(t, err)
		}
		return s
	}
	j1 := pointJob(geom.Pt(0, 0), 0, math.Inf(1), 5)
	j2 := pointJob(geom.Pt(10, 0), 0, math.Inf(1), 5)

	t.Run("with edge", func(t *testing.T) {
		deps := algo.DependencyGraph{}
		deps.Add(j2.ID, j1.ID)
		res, err := newScheduler().ScheduleDependent(context.Background(), []core.JobSpec{j1, j2}, deps)
		require.NoError(t, err)
		require.Len(t, res.Jobs, 2)
		assert.GreaterOrEqual(t, res.Jobs[j2.ID].StartTime(), res.Jobs[j1.ID].FinishTime()+margin-1e-6)
	})

	t.Run("without edge", func(t *testing.T) {
		res, err := newScheduler().ScheduleDependent(context.Background(), []core.JobSpec{j1, j2}, nil)
		require.NoError(t, err)
		require.Len(t, res.Jobs, 2)
		assert.Less(t, res.Jobs[j2.ID].StartTime(), res.Jobs[j1.ID].FinishTime())
	})
}

func TestScheduler_PeriodicSameLocation(t *testing.T) {
	s := createTestScheduler(t, world.Open(), map[string]geom.Point{"a1": geom.Pt(5, 1)})
	x := geom.Pt(14, 1)
	busy, err := s.Schedule(context.Background(), pointJob(x, 21, 21, 1))
	require.NoError(t, err)
	require.NoError(t, s.Commit(busy.TransactionID))

	ids := make([]uuid.UUID, 4)
	for i := range ids {
		ids[i] = uuid.New()
	}
	region := geom.Rectangle(geom.Pt(0, 0), geom.Pt(10, 2))
	res, err := s.SchedulePeriodic(context.Background(), core.PeriodicJobSpec{
		IDs:          ids,
		Space:        world.RegionSpace(region),
		StartTime:    0,
		Period:       10,
		Duration:     1,
		Repetitions:  4,
		SameLocation: true,
	})
	require.NoError(t, err)
	require.Len(t, res.Jobs, 4, "no jobs left from rejected locations")

	loc := res.Jobs[ids[0]].Location()
	assert.False(t, loc.Equal(region.Centroid()))
	for _, id := range ids {
		assert.True(t, res.Jobs[id].Location().Equal(loc))
	}
	require.NoError(t, s.Commit(res.TransactionID))
}

func TestScheduler_AbortRestoresState(t *testing.T) {
	s := createTestScheduler(t, world.Open(), map[string]geom.Point{"a1": geom.Pt(0, 0), "a2": geom.Pt(10, 0)})
	first, err := s.Schedule(context.Background(), pointJob(geom.Pt(3, 0), 0, math.Inf(1), 2))
	require.NoError(t, err)
	require.NoError(t, s.Commit(first.TransactionID))
	before := observe(s)

	res, err := s.Schedule(context.Background(), pointJob(geom.Pt(5, 5), 0, math.Inf(1), 2))
	require.NoError(t, err)
	assert.NotEqual(t, before, observe(s), "registration claims locks")

	require.NoError(t, s.Abort(res.TransactionID))
	assert.Equal(t, before, observe(s))
	assert.Empty(t, s.Transactions())
}

func TestScheduler_UnknownTransaction(t *testing.T) {
	s := createTestScheduler(t, world.Open(), map[string]geom.Point{"a1": geom.Pt(0, 0)})
	assert.ErrorIs(t, s.Commit(ulid.Make()), ErrUnknownTransaction)
	assert.ErrorIs(t, s.Abort(ulid.Make()), ErrUnknownTransaction)

	res, err := s.Schedule(context.Background(), pointJob(geom.Pt(1, 0), 0, math.Inf(1), 1))
	require.NoError(t, err)
	require.NoError(t, s.Commit(res.TransactionID))
	assert.ErrorIs(t, s.Commit(res.TransactionID), ErrUnknownTransaction, "committed twice")
}

func TestScheduler_PendingTransactionsClaimAgents(t *testing.T) {
	s := createTestScheduler(t, world.Open(), map[string]geom.Point{"a1": geom.Pt(0, 0), "a2": geom.Pt(20, 0)})
	r1, err := s.Schedule(context.Background(), pointJob(geom.Pt(0, 0), 0, math.Inf(1), 5))
	require.NoError(t, err)
	r2, err := s.Schedule(context.Background(), pointJob(geom.Pt(3, 0), 0, math.Inf(1), 5))
	require.NoError(t, err)

	assert.Equal(t, "a1", only(t, r1).AgentID())
	assert.Equal(t, "a2", only(t, r2).AgentID(), "a1 is claimed by the first transaction")
	assert.Equal(t, []ulid.ULID{r1.TransactionID, r2.TransactionID}, s.Transactions())

	got, ok := s.Transaction(r2.TransactionID)
	require.True(t, ok)
	assert.Same(t, r2, got)

	require.NoError(t, s.Commit(r2.TransactionID))
	require.NoError(t, s.Commit(r1.TransactionID))
	s.View(func(sc *core.Schedule) { assert.Len(t, sc.Jobs(), 2) })
}

func only(t *testing.T, r *Result) *core.Job {
	t.Helper()
	require.Len(t, r.Jobs, 1)
	for _, j := range r.Jobs {
		return j
	}
	return nil
}

func TestScheduler_ConcurrentScheduling(t *testing.T) {
	agents := make(map[string]geom.Point)
	for i := range 4 {
		agents[fmt.Sprintf("a%d", i)] = geom.Pt(float64(5*i), 0)
	}
	s := createTestScheduler(t, world.Open(), agents)

	// every pending transaction claims one agent; each job sits above its
	// own agent so the assignment holds in any interleaving
	results := make([]*Result, len(agents))
	g, ctx := errgroup.WithContext(context.Background())
	for i := range results {
		g.Go(func() error {
			res, err := s.Schedule(ctx, pointJob(geom.Pt(float64(5*i), 3), 0, math.Inf(1), 2))
			results[i] = res
			return err
		})
	}
	require.NoError(t, g.Wait())
	for i, res := range results {
		assert.Equal(t, fmt.Sprintf("a%d", i), only(t, res).AgentID())
	}
	for _, res := range results {
		require.NoError(t, s.Commit(res.TransactionID))
	}

	s.View(func(sc *core.Schedule) {
		assert.Len(t, sc.Jobs(), len(results))
		assert.Empty(t, sim.Verify(sc, s.World()))
		assert.Empty(t, sc.Alternatives())
		for _, a := range sc.Agents() {
			assert.True(t, a.Trajectories().IsContinuous(), "agent %s", a.ID())
			assert.True(t, sc.TrajectoryLock(a.ID()).IsEmpty(), "agent %s", a.ID())
			assert.True(t, sc.JobRemovalLock(a.ID()).IsEmpty(), "agent %s", a.ID())
			jobs := a.Jobs()
			for i := 1; i < len(jobs); i++ {
				assert.LessOrEqual(t, jobs[i-1].FinishTime(), jobs[i].StartTime()+1e-6)
			}
		}
	})
}

func TestScheduler_Unschedule(t *testing.T) {
	s := createTestScheduler(t, world.Open(), map[string]geom.Point{"a1": geom.Pt(0, 0)})
	spec := pointJob(geom.Pt(2, 0), 10, 10, 1)
	res, err := s.Schedule(context.Background(), spec)
	require.NoError(t, err)
	require.NoError(t, s.Commit(res.TransactionID))

	_, err = s.Unschedule(context.Background(), uuid.New())
	assert.ErrorIs(t, err, core.ErrUnknownJob)

	res, err = s.Unschedule(context.Background(), spec.ID)
	require.NoError(t, err)
	assert.Contains(t, res.JobRemovals, spec.ID)
	require.NoError(t, s.Commit(res.TransactionID))
	s.View(func(sc *core.Schedule) {
		_, err := sc.Job(spec.ID)
		assert.ErrorIs(t, err, core.ErrUnknownJob)
	})
}

func TestScheduler_Reschedule(t *testing.T) {
	s := createTestScheduler(t, world.Open(), map[string]geom.Point{"a1": geom.Pt(0, 0)})
	old := pointJob(geom.Pt(2, 0), 10, 10, 1)
	res, err := s.Schedule(context.Background(), old)
	require.NoError(t, err)
	require.NoError(t, s.Commit(res.TransactionID))

	repl := pointJob(geom.Pt(2, 0), 10, 10, 3)
	res, err = s.Reschedule(context.Background(), old.ID, repl)
	require.NoError(t, err)
	assert.Contains(t, res.JobRemovals, old.ID)
	assert.Contains(t, res.Jobs, repl.ID)
	require.NoError(t, s.Commit(res.TransactionID))

	s.View(func(sc *core.Schedule) {
		j, err := sc.Job(repl.ID)
		require.NoError(t, err)
		assert.Equal(t, 3.0, j.Duration())
	})
}

func TestScheduler_Clock(t *testing.T) {
	s := createTestScheduler(t, world.Open(), map[string]geom.Point{"a1": geom.Pt(0, 0)}, WithFrozenHorizonDuration(5))
	assert.Equal(t, 0.0, s.PresentTime())
	assert.Equal(t, 5.0, s.FrozenHorizon())

	require.NoError(t, s.SetPresentTime(10))
	assert.Equal(t, 15.0, s.FrozenHorizon())
	assert.ErrorIs(t, s.SetPresentTime(9), core.ErrInvalidArgument)
	assert.ErrorIs(t, s.SetPresentTime(math.NaN()), core.ErrInvalidArgument)

	require.NoError(t, s.SetFrozenHorizonDuration(1))
	assert.Equal(t, 15.0, s.FrozenHorizon(), "the horizon never moves back")
	require.NoError(t, s.SetFrozenHorizonDuration(8))
	assert.Equal(t, 18.0, s.FrozenHorizon())
	assert.ErrorIs(t, s.SetFrozenHorizonDuration(-1), core.ErrInvalidArgument)

	res, err := s.Schedule(context.Background(), pointJob(geom.Pt(0, 0), 0, math.Inf(1), 1))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, only(t, res).StartTime(), 18.0)

	_, err = s.Schedule(context.Background(), pointJob(geom.Pt(0, 0), 0, 17, 1))
	assert.ErrorIs(t, err, core.ErrNoFeasiblePlacement)
}

func TestScheduler_SetClockAppliesBothOrNothing(t *testing.T) {
	s := createTestScheduler(t, world.Open(), nil, WithFrozenHorizonDuration(5))
	present, duration := 10.0, 2.0
	require.NoError(t, s.SetClock(&present, &duration))
	assert.Equal(t, 10.0, s.PresentTime())
	assert.Equal(t, 2.0, s.FrozenHorizonDuration())
	assert.Equal(t, 12.0, s.FrozenHorizon())

	present, duration = 4, 1
	assert.ErrorIs(t, s.SetClock(&present, &duration), core.ErrInvalidArgument)
	present, duration = 20, -1
	assert.ErrorIs(t, s.SetClock(&present, &duration), core.ErrInvalidArgument)
	assert.Equal(t, 10.0, s.PresentTime())
	assert.Equal(t, 2.0, s.FrozenHorizonDuration(), "a rejected update changes nothing")
	assert.Equal(t, 12.0, s.FrozenHorizon())

	duration = 6
	require.NoError(t, s.SetClock(nil, &duration))
	assert.Equal(t, 16.0, s.FrozenHorizon())
}

func TestScheduler_RemoveAgent(t *testing.T) {
	s := createTestScheduler(t, world.Open(), map[string]geom.Point{"a1": geom.Pt(0, 0)})
	res, err := s.Schedule(context.Background(), pointJob(geom.Pt(0, 0), 0, math.Inf(1), 1))
	require.NoError(t, err)

	assert.ErrorIs(t, s.RemoveAgent("a1"), core.ErrIllegalState, "claimed by a pending transaction")
	require.NoError(t, s.Abort(res.TransactionID))
	require.NoError(t, s.RemoveAgent("a1"))
	assert.ErrorIs(t, s.RemoveAgent("a1"), core.ErrUnknownAgent)
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(world.Open(), algo.DefaultConfig(), WithFrozenHorizonDuration(-1))
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	_, err = New(world.Open(), algo.DefaultConfig(), WithPresentTime(math.Inf(1)))
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	_, err = New(nil, algo.DefaultConfig())
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}
