package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/stsched/internal/geom"
)

// createTestWorld returns a 10x10 world with a 2x2 block in the middle.
func createTestWorld(t *testing.T) *World {
	t.Helper()
	w, err := New(
		geom.Rectangle(geom.Pt(0, 0), geom.Pt(10, 10)),
		[]geom.Polygon{geom.Rectangle(geom.Pt(4, 4), geom.Pt(6, 6))},
		nil,
	)
	require.NoError(t, err)
	return w
}

func TestNew_RejectsInvalidPolygons(t *testing.T) {
	_, err := New(geom.Polygon{geom.Pt(0, 0)}, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidWorld)

	_, err = New(nil, []geom.Polygon{{geom.Pt(0, 0), geom.Pt(1, 1)}}, nil)
	assert.ErrorIs(t, err, ErrInvalidWorld)

	_, err = New(nil, nil, []DynamicObstacle{{ID: "ghost", Radius: 1}})
	assert.ErrorIs(t, err, ErrInvalidWorld)
}

func TestWorld_Space(t *testing.T) {
	w := createTestWorld(t)

	s, err := w.Space(PointSpace(geom.Pt(1, 1)))
	require.NoError(t, err)
	p, ok := s.AsPoint()
	assert.True(t, ok)
	assert.Equal(t, geom.Pt(1, 1), p)

	_, err = w.Space(PointSpace(geom.Pt(5, 5)))
	assert.ErrorIs(t, err, ErrInvalidSpace, "inside an obstacle")

	_, err = w.Space(PointSpace(geom.Pt(20, 5)))
	assert.ErrorIs(t, err, ErrInvalidSpace, "outside the bounds")

	_, err = w.Space(RegionSpace(geom.Rectangle(geom.Pt(20, 20), geom.Pt(30, 30))))
	assert.ErrorIs(t, err, ErrInvalidSpace)

	_, err = w.Space(LocationSpace{})
	assert.ErrorIs(t, err, ErrInvalidSpace)

	region, err := w.Space(RegionSpace(geom.Rectangle(geom.Pt(3, 3), geom.Pt(12, 7))))
	require.NoError(t, err)
	assert.True(t, region.Contains(geom.Pt(3.5, 3.5)))
	assert.False(t, region.Contains(geom.Pt(5, 5)), "obstacle is excluded")
	assert.False(t, region.Contains(geom.Pt(11, 5)), "outside the world")
	assert.Equal(t, 10.0, region.Bounds().Max.X)
}

func TestPerspective_Blocked(t *testing.T) {
	w := createTestWorld(t)
	p := w.Perspective(0.5)

	assert.False(t, p.Blocked(geom.Pt(1, 1)))
	assert.True(t, p.Blocked(geom.Pt(0.2, 5)), "too close to the bounds")
	assert.True(t, p.Blocked(geom.Pt(3.8, 5)), "too close to the obstacle")
	assert.False(t, p.Blocked(geom.Pt(3.4, 5)))
	assert.True(t, p.Blocked(geom.Pt(11, 5)))
}

func TestPerspective_Clear(t *testing.T) {
	w := createTestWorld(t)
	p := w.Perspective(0.5)

	assert.True(t, p.Clear(geom.Pt(1, 1), geom.Pt(9, 1)))
	assert.False(t, p.Clear(geom.Pt(1, 5), geom.Pt(9, 5)), "passes through the block")
	assert.False(t, p.Clear(geom.Pt(1, 3.8), geom.Pt(9, 3.8)), "grazes the block")
}

func TestPerspective_Waypoints(t *testing.T) {
	w := createTestWorld(t)
	p := w.Perspective(0.5)

	wps := p.Waypoints()
	assert.Len(t, wps, 8, "four around the block, four inside the bounds corners")
	for _, q := range wps {
		assert.False(t, p.Blocked(q), "waypoint %v", q)
	}

	open := Open().Perspective(1)
	assert.Empty(t, open.Waypoints())
	assert.False(t, open.Blocked(geom.Pt(1e6, -1e6)))
}
