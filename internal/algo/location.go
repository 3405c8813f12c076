package algo

import (
	"github.com/elektrokombinacija/stsched/internal/geom"
	"github.com/elektrokombinacija/stsched/internal/world"
)

// Locations yields candidate job locations.
type Locations interface {
	Next() (geom.Point, bool)
}

// LocationIterator yields up to a fixed number of navigable points of a
// space. A single-point space yields only that point. A region yields its
// centroid, when navigable, followed by a Halton sequence over the region's
// bounds, so the same space always produces the same candidates.
type LocationIterator struct {
	space    world.Space
	picks    int
	yielded  int
	index    int
	attempts int
	centroid bool
}

// NewLocationIterator returns an iterator yielding at most picks points.
func NewLocationIterator(space world.Space, picks int) *LocationIterator {
	return &LocationIterator{space: space, picks: picks, attempts: 16 * picks}
}

// Next returns the next candidate.
func (it *LocationIterator) Next() (geom.Point, bool) {
	if it.yielded >= it.picks {
		return geom.Point{}, false
	}
	if p, ok := it.space.AsPoint(); ok {
		it.yielded = it.picks
		return p, true
	}
	if !it.centroid {
		it.centroid = true
		if c := it.space.Region().Centroid(); it.space.Contains(c) {
			it.yielded++
			return c, true
		}
	}
	b := it.space.Bounds()
	for it.index < it.attempts {
		it.index++
		p := geom.Pt(
			b.Min.X+halton(it.index, 2)*b.Width(),
			b.Min.Y+halton(it.index, 3)*b.Height(),
		)
		if it.space.Contains(p) {
			it.yielded++
			return p, true
		}
	}
	return geom.Point{}, false
}

// fixedLocation yields one point once.
type fixedLocation struct {
	p    geom.Point
	done bool
}

func (f *fixedLocation) Next() (geom.Point, bool) {
	if f.done {
		return geom.Point{}, false
	}
	f.done = true
	return f.p, true
}

// halton returns the i-th element of the van der Corput sequence in base.
func halton(i, base int) float64 {
	f, r := 1.0, 0.0
	for ; i > 0; i /= base {
		f /= float64(base)
		r += f * float64(i%base)
	}
	return r
}
