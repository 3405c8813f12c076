// Package world models the environment agents move through: navigable
// bounds, static polygonal obstacles and moving disk obstacles.
package world

import (
	"errors"
	"fmt"

	"github.com/elektrokombinacija/stsched/internal/geom"
	"github.com/elektrokombinacija/stsched/internal/trajectory"
)

// ErrInvalidSpace is returned for malformed location spaces or spaces lying
// outside the world.
var ErrInvalidSpace = errors.New("world: invalid location space")

// ErrInvalidWorld is returned for malformed world definitions.
var ErrInvalidWorld = errors.New("world: invalid world")

// ClearanceMargin is added to agent radii when placing waypoints so they pass
// the clearance checks despite rounding.
const ClearanceMargin = 1e-3

// DynamicObstacle is a moving disk.
type DynamicObstacle struct {
	ID         string
	Radius     float64
	Trajectory trajectory.Trajectory
}

// World is the static description of the environment. A nil Bounds means the
// unbounded plane.
type World struct {
	Bounds    geom.Polygon
	Obstacles []geom.Polygon
	Dynamic   []DynamicObstacle
}

// New validates and returns a world. Polygons are normalized to
// counter-clockwise orientation.
func New(bounds geom.Polygon, obstacles []geom.Polygon, dynamic []DynamicObstacle) (*World, error) {
	w := &World{Dynamic: dynamic}
	if bounds != nil {
		if err := bounds.Validate(); err != nil {
			return nil, fmt.Errorf("%w: bounds: %v", ErrInvalidWorld, err)
		}
		w.Bounds = bounds.CounterClockwise()
	}
	for i, o := range obstacles {
		if err := o.Validate(); err != nil {
			return nil, fmt.Errorf("%w: obstacle %d: %v", ErrInvalidWorld, i, err)
		}
		w.Obstacles = append(w.Obstacles, o.CounterClockwise())
	}
	for _, d := range dynamic {
		if d.Radius < 0 || d.Trajectory.IsEmpty() {
			return nil, fmt.Errorf("%w: dynamic obstacle %q", ErrInvalidWorld, d.ID)
		}
	}
	return w, nil
}

// Open returns an unbounded world without obstacles.
func Open() *World {
	return &World{}
}

// InBounds reports whether p lies within the world bounds.
func (w *World) InBounds(p geom.Point) bool {
	return w.Bounds == nil || w.Bounds.Contains(p)
}

// Free reports whether p is inside the bounds and outside all static obstacles.
func (w *World) Free(p geom.Point) bool {
	if !w.InBounds(p) {
		return false
	}
	for _, o := range w.Obstacles {
		if o.Contains(p) {
			return false
		}
	}
	return true
}

// Space resolves a job location space against the world.
func (w *World) Space(ls LocationSpace) (Space, error) {
	if err := ls.Validate(); err != nil {
		return Space{}, err
	}
	if p, ok := ls.AsPoint(); ok {
		if !w.Free(p) {
			return Space{}, fmt.Errorf("%w: %v is not navigable", ErrInvalidSpace, p)
		}
		return Space{world: w, point: p, single: true}, nil
	}
	region := ls.Region.CounterClockwise()
	if w.Bounds != nil && !overlaps(region.Bounds(), w.Bounds.Bounds()) {
		return Space{}, fmt.Errorf("%w: region lies outside the world", ErrInvalidSpace)
	}
	return Space{world: w, region: region}, nil
}

func overlaps(a, b geom.Rect) bool {
	return a.Min.X <= b.Max.X && b.Min.X <= a.Max.X && a.Min.Y <= b.Max.Y && b.Min.Y <= a.Max.Y
}

// Perspective returns the world as seen by an agent of the given radius.
func (w *World) Perspective(radius float64) *Perspective {
	p := &Perspective{world: w, radius: radius}
	p.waypoints = p.computeWaypoints()
	return p
}

// Perspective is the navigable map of one agent shape. It implements the
// static map consumed by the spatial pathfinder.
type Perspective struct {
	world     *World
	radius    float64
	waypoints []geom.Point
}

func (p *Perspective) Radius() float64 { return p.radius }

// DynamicObstacles returns the world's moving obstacles.
func (p *Perspective) DynamicObstacles() []DynamicObstacle { return p.world.Dynamic }

// Blocked reports whether an agent disk centred at q overlaps an obstacle or
// leaves the bounds.
func (p *Perspective) Blocked(q geom.Point) bool {
	tol := geom.Epsilon
	if b := p.world.Bounds; b != nil && (!b.Contains(q) || b.BorderDistance(q) < p.radius-tol) {
		return true
	}
	for _, o := range p.world.Obstacles {
		if o.Distance(q) < p.radius-tol {
			return true
		}
	}
	return false
}

// Clear reports whether the agent disk can sweep the segment ab.
func (p *Perspective) Clear(a, b geom.Point) bool {
	if p.Blocked(a) || p.Blocked(b) {
		return false
	}
	tol := geom.Epsilon
	if bounds := p.world.Bounds; bounds != nil {
		for i := range bounds {
			c, d := bounds.Edge(i)
			if geom.SegmentDistance(a, b, c, d) < p.radius-tol {
				return false
			}
		}
	}
	for _, o := range p.world.Obstacles {
		if o.SegmentDistance(a, b) < p.radius-tol {
			return false
		}
	}
	return true
}

// Waypoints returns the corners an agent can route around: obstacle vertices
// pushed outward and bounds vertices pushed inward by the radius.
func (p *Perspective) Waypoints() []geom.Point {
	return p.waypoints
}

func (p *Perspective) computeWaypoints() []geom.Point {
	var out []geom.Point
	add := func(poly geom.Polygon, sign float64) {
		for i := range poly {
			q, ok := offsetVertex(poly, i, sign*(p.radius+ClearanceMargin))
			if ok && !p.Blocked(q) {
				out = append(out, q)
			}
		}
	}
	for _, o := range p.world.Obstacles {
		add(o, 1)
	}
	if p.world.Bounds != nil {
		add(p.world.Bounds, -1)
	}
	return out
}

// offsetVertex moves vertex i of a counter-clockwise polygon along its miter
// direction so both adjacent edges are at distance d (inward for negative d).
func offsetVertex(poly geom.Polygon, i int, d float64) (geom.Point, bool) {
	n := len(poly)
	prev, cur, next := poly[(i+n-1)%n], poly[i], poly[(i+1)%n]
	n1 := outwardNormal(prev, cur)
	n2 := outwardNormal(cur, next)
	dir := n1.Add(n2).Unit()
	if dir.Norm() == 0 {
		return geom.Point{}, false
	}
	cos := dir.Dot(n1)
	if cos < 0.2 {
		cos = 0.2
	}
	return cur.Add(dir.Scale(d / cos)), true
}

func outwardNormal(a, b geom.Point) geom.Point {
	e := b.Sub(a)
	return geom.Pt(e.Y, -e.X).Unit()
}

