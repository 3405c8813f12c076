package algo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/stsched/internal/core"
	"github.com/elektrokombinacija/stsched/internal/geom"
	"github.com/elektrokombinacija/stsched/internal/world"
)

func drain(it Locations) []geom.Point {
	var out []geom.Point
	for {
		p, ok := it.Next()
		if !ok {
			return out
		}
		out = append(out, p)
	}
}

func TestLocationIterator_Point(t *testing.T) {
	space, err := world.Open().Space(world.PointSpace(geom.Pt(3, 4)))
	require.NoError(t, err)

	pts := drain(NewLocationIterator(space, 10))
	assert.Equal(t, []geom.Point{geom.Pt(3, 4)}, pts)
}

func TestLocationIterator_Region(t *testing.T) {
	w, err := world.New(
		geom.Rectangle(geom.Pt(0, 0), geom.Pt(10, 10)),
		[]geom.Polygon{geom.Rectangle(geom.Pt(4, 4), geom.Pt(6, 6))},
		nil,
	)
	require.NoError(t, err)
	region := geom.Rectangle(geom.Pt(2, 2), geom.Pt(8, 8))
	space, err := w.Space(world.RegionSpace(region))
	require.NoError(t, err)

	pts := drain(NewLocationIterator(space, 12))
	assert.Len(t, pts, 12)
	for _, p := range pts {
		assert.True(t, region.Contains(p), "%v", p)
		assert.True(t, w.Free(p), "%v", p)
	}
	assert.Equal(t, pts, drain(NewLocationIterator(space, 12)), "deterministic")
}

func TestLocationIterator_CentroidFirst(t *testing.T) {
	region := geom.Rectangle(geom.Pt(0, 0), geom.Pt(4, 2))
	space, err := world.Open().Space(world.RegionSpace(region))
	require.NoError(t, err)

	pts := drain(NewLocationIterator(space, 3))
	require.Len(t, pts, 3)
	assert.True(t, pts[0].Equal(geom.Pt(2, 1)))
	assert.True(t, pts[1].Equal(geom.Pt(2, 2.0/3)))
}

func TestHalton(t *testing.T) {
	assert.Equal(t, 0.5, halton(1, 2))
	assert.Equal(t, 0.25, halton(2, 2))
	assert.Equal(t, 0.75, halton(3, 2))
	assert.InDelta(t, 1.0/3, halton(1, 3), 1e-12)
	assert.InDelta(t, 5.0/9, halton(7, 3), 1e-12)
}

func TestSlotOrder(t *testing.T) {
	fast, err := core.NewAgent(core.AgentSpec{ID: "fast", MaxSpeed: 10})
	require.NoError(t, err)
	slow, err := core.NewAgent(core.AgentSpec{ID: "slow", MaxSpeed: 1})
	require.NoError(t, err)

	tight := Candidate{Agent: slow, Slot: core.IdleSlot{StartTime: 0}, WindowStart: 0, WindowFinish: 2, Distance: 10}
	loose := Candidate{Agent: fast, Slot: core.IdleSlot{StartTime: 0}, WindowStart: 0, WindowFinish: math.Inf(1), Distance: 10}

	assert.Negative(t, LeastSlackFirst.compare(tight, loose))
	assert.Positive(t, EarliestStartFirst.compare(tight, loose), "the fast agent arrives first")

	near := loose
	near.Distance = 1
	assert.Positive(t, LeastSlackFirst.compare(loose, near), "equal slack falls back to distance")
}

func TestParseSlotOrder(t *testing.T) {
	o, err := ParseSlotOrder("earliest-start")
	require.NoError(t, err)
	assert.Equal(t, EarliestStartFirst, o)
	assert.Equal(t, "earliest-start", o.String())

	o, err = ParseSlotOrder("")
	require.NoError(t, err)
	assert.Equal(t, LeastSlackFirst, o)

	_, err = ParseSlotOrder("random")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}
