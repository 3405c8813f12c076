package geom

import (
	"errors"
	"math"
)

// ErrInvalidPolygon is returned for polygons with fewer than three vertices,
// non-finite coordinates or zero area.
var ErrInvalidPolygon = errors.New("geom: invalid polygon")

// Polygon is a simple polygon given by its vertices in order (either
// orientation). The closing edge is implicit.
type Polygon []Point

// Rectangle returns the axis-aligned rectangle polygon spanning min and max.
func Rectangle(min, max Point) Polygon {
	return Polygon{min, {max.X, min.Y}, max, {min.X, max.Y}}
}

// Validate checks the polygon is usable for containment tests.
func (p Polygon) Validate() error {
	if len(p) < 3 {
		return ErrInvalidPolygon
	}
	for _, v := range p {
		if !v.IsFinite() {
			return ErrInvalidPolygon
		}
	}
	if math.Abs(p.SignedArea()) < Epsilon {
		return ErrInvalidPolygon
	}
	return nil
}

// SignedArea is positive for counter-clockwise polygons.
func (p Polygon) SignedArea() float64 {
	a := 0.0
	for i := range p {
		a += p[i].Cross(p[(i+1)%len(p)])
	}
	return a / 2
}

// Edge returns the i-th edge.
func (p Polygon) Edge(i int) (Point, Point) {
	return p[i], p[(i+1)%len(p)]
}

// Contains reports whether q lies inside the polygon or on its border.
func (p Polygon) Contains(q Point) bool {
	if p.BorderDistance(q) <= Epsilon {
		return true
	}
	inside := false
	for i, j := 0, len(p)-1; i < len(p); j, i = i, i+1 {
		a, b := p[i], p[j]
		if (a.Y > q.Y) != (b.Y > q.Y) &&
			q.X < (b.X-a.X)*(q.Y-a.Y)/(b.Y-a.Y)+a.X {
			inside = !inside
		}
	}
	return inside
}

// BorderDistance returns the distance from q to the polygon's boundary.
func (p Polygon) BorderDistance(q Point) float64 {
	d := math.Inf(1)
	for i := range p {
		a, b := p.Edge(i)
		d = math.Min(d, SegmentPointDistance(a, b, q))
	}
	return d
}

// Distance returns 0 for points inside the polygon, else the border distance.
func (p Polygon) Distance(q Point) float64 {
	if p.Contains(q) {
		return 0
	}
	return p.BorderDistance(q)
}

// SegmentDistance returns the distance between segment ab and the polygon area.
func (p Polygon) SegmentDistance(a, b Point) float64 {
	if p.Contains(a) || p.Contains(b) {
		return 0
	}
	d := math.Inf(1)
	for i := range p {
		c, e := p.Edge(i)
		d = math.Min(d, SegmentDistance(a, b, c, e))
	}
	return d
}

// Bounds returns the bounding box.
func (p Polygon) Bounds() Rect {
	r := Rect{Min: Point{math.Inf(1), math.Inf(1)}, Max: Point{math.Inf(-1), math.Inf(-1)}}
	for _, v := range p {
		r.Min.X = math.Min(r.Min.X, v.X)
		r.Min.Y = math.Min(r.Min.Y, v.Y)
		r.Max.X = math.Max(r.Max.X, v.X)
		r.Max.Y = math.Max(r.Max.Y, v.Y)
	}
	return r
}

// Centroid returns the area centroid.
func (p Polygon) Centroid() Point {
	a := p.SignedArea()
	if a == 0 {
		return p.Bounds().Min
	}
	var c Point
	for i := range p {
		u, v := p.Edge(i)
		f := u.Cross(v)
		c.X += (u.X + v.X) * f
		c.Y += (u.Y + v.Y) * f
	}
	return c.Scale(1 / (6 * a))
}

// CounterClockwise returns the polygon with counter-clockwise orientation.
func (p Polygon) CounterClockwise() Polygon {
	if p.SignedArea() >= 0 {
		return p
	}
	out := make(Polygon, len(p))
	for i, v := range p {
		out[len(p)-1-i] = v
	}
	return out
}

// PolylineLength returns the total length of a polyline.
func PolylineLength(path []Point) float64 {
	l := 0.0
	for i := 1; i < len(path); i++ {
		l += path[i-1].Distance(path[i])
	}
	return l
}
