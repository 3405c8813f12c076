package algo

import (
	"context"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/stsched/internal/core"
	"github.com/elektrokombinacija/stsched/internal/geom"
	"github.com/elektrokombinacija/stsched/internal/world"
)

func TestDependencyGraph_Order(t *testing.T) {
	a, b, c, d := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	g := DependencyGraph{}
	g.Add(c, b)
	g.Add(b, a)
	g.Add(d, a)

	order, err := g.order([]uuid.UUID{d, c, b, a})
	require.NoError(t, err)
	pos := make(map[uuid.UUID]int)
	for i, id := range order {
		pos[id] = i
	}
	assert.Len(t, order, 4)
	assert.Less(t, pos[a], pos[b])
	assert.Less(t, pos[b], pos[c])
	assert.Less(t, pos[a], pos[d])
}

func TestDependencyGraph_Cycle(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	g := DependencyGraph{}
	g.Add(a, c)
	g.Add(b, a)
	g.Add(c, b)

	_, err := g.order([]uuid.UUID{a, b, c})
	require.ErrorIs(t, err, core.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "circular dependency")
	assert.Contains(t, err.Error(), " -> ")

	self := DependencyGraph{}
	self.Add(a, a)
	_, err = self.order([]uuid.UUID{a})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestDependencyGraph_UnknownJob(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	g := DependencyGraph{}
	g.Add(a, b)

	_, err := g.order([]uuid.UUID{a})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestDependencyGraph_Normalize(t *testing.T) {
	j1 := pointJob(geom.Pt(0, 0), 0, 100, 5)
	j2 := pointJob(geom.Pt(0, 0), 0, 20, 5)
	g := DependencyGraph{}
	g.Add(j2.ID, j1.ID)
	specs := map[uuid.UUID]core.JobSpec{j1.ID: j1, j2.ID: j2}

	w, err := g.normalize([]uuid.UUID{j1.ID, j2.ID}, specs, 1)
	require.NoError(t, err)
	assert.Equal(t, window{0, 14}, w[j1.ID], "j1 must leave room for j2")
	assert.Equal(t, window{6, 20}, w[j2.ID], "j2 waits for j1")

	j1.EarliestStart = 15
	specs[j1.ID] = j1
	_, err = g.normalize([]uuid.UUID{j1.ID, j2.ID}, specs, 1)
	assert.ErrorIs(t, err, core.ErrNoFeasiblePlacement)
}

func createMarginPlanner(t *testing.T, margin float64) (*Planner, *core.Schedule) {
	t.Helper()
	s := core.NewSchedule()
	for _, a := range []agentAt{{"a1", geom.Pt(0, 0)}, {"a2", geom.Pt(10, 0)}} {
		_, err := s.AddAgent(core.AgentSpec{ID: a.id, Radius: 0.5, MaxSpeed: 1, InitialLocation: a.loc})
		require.NoError(t, err)
	}
	cfg := DefaultConfig()
	cfg.DependencyMargin = margin
	p, err := NewPlanner(world.Open(), s, cfg)
	require.NoError(t, err)
	return p, s
}

func TestPlanDependent_MarginBetweenDependentJobs(t *testing.T) {
	p, s := createMarginPlanner(t, 2)
	j1 := pointJob(geom.Pt(0, 0), 0, math.Inf(1), 5)
	j2 := pointJob(geom.Pt(10, 0), 0, math.Inf(1), 5)
	g := DependencyGraph{}
	g.Add(j2.ID, j1.ID)

	alt := core.NewAlternative()
	jobs, err := p.PlanDependent(context.Background(), alt, []core.JobSpec{j2, j1}, g)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	placed2, placed1 := jobs[0], jobs[1]
	assert.Equal(t, j2.ID, placed2.ID(), "results follow the input order")
	assert.GreaterOrEqual(t, placed2.StartTime(), placed1.FinishTime()+2-1e-6)
	assert.False(t, alt.IsBranched())
	commit(t, s, alt)
	assertContinuous(t, s)
}

func TestPlanDependent_WithoutEdgeJobsRunConcurrently(t *testing.T) {
	p, _ := createMarginPlanner(t, 2)
	k1 := pointJob(geom.Pt(0, 0), 0, math.Inf(1), 5)
	k2 := pointJob(geom.Pt(10, 0), 0, math.Inf(1), 5)

	jobs, err := p.PlanDependent(context.Background(), core.NewAlternative(), []core.JobSpec{k1, k2}, nil)
	require.NoError(t, err)
	assert.InDelta(t, jobs[0].StartTime(), jobs[1].StartTime(), 1e-6)
	assert.NotEqual(t, jobs[0].AgentID(), jobs[1].AgentID())
}

func TestPlanDependent_FailureLeavesAlternativeUntouched(t *testing.T) {
	p, _ := createTestPlanner(t, world.Open(), agentAt{"a1", geom.Pt(0, 0)})
	alt := core.NewAlternative()
	staged, err := p.PlanJob(context.Background(), alt, pointJob(geom.Pt(0, 0), 0, 0, 1))
	require.NoError(t, err)

	// j2 cannot be reached in time once j1 is placed
	j1 := pointJob(geom.Pt(1, 0), 0, 10, 1)
	j2 := pointJob(geom.Pt(50, 0), 0, 10, 1)
	g := DependencyGraph{}
	g.Add(j2.ID, j1.ID)

	_, err = p.PlanDependent(context.Background(), alt, []core.JobSpec{j1, j2}, g)
	assert.ErrorIs(t, err, core.ErrNoFeasiblePlacement)
	assert.False(t, alt.IsBranched())
	assert.Equal(t, []*core.Job{staged}, alt.Jobs())
}

func TestPlanDependent_Invalid(t *testing.T) {
	p, _ := createTestPlanner(t, world.Open(), agentAt{"a1", geom.Pt(0, 0)})
	j := pointJob(geom.Pt(0, 0), 0, 10, 1)

	_, err := p.PlanDependent(context.Background(), core.NewAlternative(), []core.JobSpec{j, j}, nil)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	g := DependencyGraph{}
	g.Add(j.ID, j.ID)
	_, err = p.PlanDependent(context.Background(), core.NewAlternative(), []core.JobSpec{j}, g)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}
