package algo

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/stsched/internal/core"
	"github.com/elektrokombinacija/stsched/internal/geom"
	"github.com/elektrokombinacija/stsched/internal/world"
)

func periodicSpec(space world.LocationSpace, reps int, sameLocation bool) core.PeriodicJobSpec {
	ids := make([]uuid.UUID, reps)
	for i := range ids {
		ids[i] = uuid.New()
	}
	return core.PeriodicJobSpec{
		IDs:          ids,
		Space:        space,
		StartTime:    0,
		Period:       10,
		Duration:     1,
		Repetitions:  reps,
		SameLocation: sameLocation,
	}
}

// The agent must be at x=(14,1) during [21,22). From there, only points of
// the region within 7m can host the third repetition (window [20,29]), while
// the region's centroid hosts the first two. The centroid branch must be
// dropped entirely.
func TestPlanPeriodic_SameLocationDiscardsPartialBranch(t *testing.T) {
	p, s := createTestPlanner(t, world.Open(), agentAt{"a1", geom.Pt(5, 1)})
	x := geom.Pt(14, 1)

	busy := core.NewAlternative()
	_, err := p.PlanJobAt(context.Background(), busy, pointJob(x, 21, 21, 1), x)
	require.NoError(t, err)
	commit(t, s, busy)

	region := geom.Rectangle(geom.Pt(0, 0), geom.Pt(10, 2))
	spec := periodicSpec(world.RegionSpace(region), 4, true)
	alt := core.NewAlternative()

	jobs, err := p.PlanPeriodic(context.Background(), alt, spec)
	require.NoError(t, err)
	require.Len(t, jobs, 4)
	assert.Len(t, alt.Jobs(), 4, "no leftovers from rejected locations")
	assert.False(t, alt.IsBranched())

	loc := jobs[0].Location()
	assert.False(t, loc.Equal(region.Centroid()))
	assert.LessOrEqual(t, loc.Distance(x), 7.0)
	for i, j := range jobs {
		assert.True(t, j.Location().Equal(loc), "repetition %d", i)
		assert.Equal(t, spec.IDs[i], j.ID())
		assert.GreaterOrEqual(t, j.StartTime(), float64(10*i))
		assert.LessOrEqual(t, j.StartTime(), float64(10*i+9)+1e-6)
	}

	commit(t, s, alt)
	assertContinuous(t, s)
}

func TestPlanPeriodic_SameLocationFails(t *testing.T) {
	p, s := createTestPlanner(t, world.Open(), agentAt{"a1", geom.Pt(0, 0)})
	spec := periodicSpec(world.PointSpace(geom.Pt(100, 0)), 3, true)
	alt := core.NewAlternative()

	_, err := p.PlanPeriodic(context.Background(), alt, spec)
	assert.ErrorIs(t, err, core.ErrNoFeasiblePlacement)
	assert.True(t, alt.IsEmpty())
	assert.False(t, alt.IsBranched())
	assert.Empty(t, s.Jobs())
}

func TestPlanPeriodic_IndependentLocations(t *testing.T) {
	p, s := createTestPlanner(t, world.Open(), agentAt{"a1", geom.Pt(0, 0)}, agentAt{"a2", geom.Pt(4, 0)})
	spec := periodicSpec(world.RegionSpace(geom.Rectangle(geom.Pt(0, -1), geom.Pt(4, 1))), 3, false)
	alt := core.NewAlternative()

	jobs, err := p.PlanPeriodic(context.Background(), alt, spec)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	for i, j := range jobs {
		assert.GreaterOrEqual(t, j.StartTime(), float64(10*i))
		assert.LessOrEqual(t, j.StartTime(), float64(10*i+9)+1e-6)
	}
	commit(t, s, alt)
	assertContinuous(t, s)
}

func TestPlanPeriodic_IndependentFailureAbortsSeries(t *testing.T) {
	p, _ := createTestPlanner(t, world.Open(), agentAt{"a1", geom.Pt(0, 0)})
	alt := core.NewAlternative()
	spec := periodicSpec(world.PointSpace(geom.Pt(5, 0)), 2, false)
	spec.StartTime = 0
	spec.Period = 2
	spec.Duration = 1 // the first window [0,1] is out of reach

	_, err := p.PlanPeriodic(context.Background(), alt, spec)
	assert.ErrorIs(t, err, core.ErrNoFeasiblePlacement)
	assert.True(t, alt.IsEmpty())
}

func TestPlanPeriodic_Invalid(t *testing.T) {
	p, _ := createTestPlanner(t, world.Open(), agentAt{"a1", geom.Pt(0, 0)})
	spec := periodicSpec(world.PointSpace(geom.Pt(0, 0)), 2, true)
	spec.IDs = spec.IDs[:1]

	_, err := p.PlanPeriodic(context.Background(), core.NewAlternative(), spec)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}
