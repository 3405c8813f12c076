package world

import (
	"fmt"

	"github.com/elektrokombinacija/stsched/internal/geom"
)

// LocationSpace is where a job may take place: either a single point or a
// polygonal region.
type LocationSpace struct {
	Point  *geom.Point
	Region geom.Polygon
}

// PointSpace returns a location space degenerated to p.
func PointSpace(p geom.Point) LocationSpace {
	return LocationSpace{Point: &p}
}

// RegionSpace returns a polygonal location space.
func RegionSpace(region geom.Polygon) LocationSpace {
	return LocationSpace{Region: region}
}

// AsPoint returns the point of a degenerate space.
func (s LocationSpace) AsPoint() (geom.Point, bool) {
	if s.Point == nil {
		return geom.Point{}, false
	}
	return *s.Point, true
}

// Validate checks that exactly one of Point and Region is set and usable.
func (s LocationSpace) Validate() error {
	switch {
	case s.Point != nil && s.Region != nil:
		return fmt.Errorf("%w: both point and region given", ErrInvalidSpace)
	case s.Point != nil:
		if !s.Point.IsFinite() {
			return fmt.Errorf("%w: point is not finite", ErrInvalidSpace)
		}
	case s.Region != nil:
		if err := s.Region.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSpace, err)
		}
	default:
		return fmt.Errorf("%w: empty location space", ErrInvalidSpace)
	}
	return nil
}

// Space is a location space resolved against a world.
type Space struct {
	world  *World
	region geom.Polygon
	point  geom.Point
	single bool
}

// AsPoint returns the point of a degenerate space.
func (s Space) AsPoint() (geom.Point, bool) {
	return s.point, s.single
}

// Region returns the polygon of a region space.
func (s Space) Region() geom.Polygon { return s.region }

// Bounds returns the bounding box of the candidate locations.
func (s Space) Bounds() geom.Rect {
	if s.single {
		return geom.Rect{Min: s.point, Max: s.point}
	}
	r := s.region.Bounds()
	if s.world.Bounds != nil {
		wb := s.world.Bounds.Bounds()
		r.Min.X, r.Min.Y = max(r.Min.X, wb.Min.X), max(r.Min.Y, wb.Min.Y)
		r.Max.X, r.Max.Y = min(r.Max.X, wb.Max.X), min(r.Max.Y, wb.Max.Y)
	}
	return r
}

// Contains reports whether p is a navigable location of the space.
func (s Space) Contains(p geom.Point) bool {
	if s.single {
		return p.Equal(s.point)
	}
	return s.region.Contains(p) && s.world.Free(p)
}
