// Package trajectory implements time-parameterized piecewise-linear paths and
// containers of non-overlapping trajectories.
package trajectory

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/elektrokombinacija/stsched/internal/geom"
)

// EndOfTime is the sentinel finish time of an agent's last trajectory.
var EndOfTime = math.Inf(1)

// TimeTolerance for floating-point time comparison.
const TimeTolerance = 1e-6

// ErrInvalidTrajectory is returned when vertices are out of order or jump.
var ErrInvalidTrajectory = errors.New("trajectory: invalid trajectory")

// timeEqual compares times with tolerance.
func timeEqual(t1, t2 float64) bool {
	if math.IsInf(t1, 1) || math.IsInf(t2, 1) {
		return t1 == t2
	}
	return math.Abs(t1-t2) < TimeTolerance
}

// Vertex is a location at a specific time.
type Vertex struct {
	Location geom.Point
	Time     float64
}

// Trajectory is an immutable timed polyline. The zero value is the empty trajectory.
type Trajectory struct {
	verts []Vertex
}

// New builds a trajectory from vertices ordered by non-decreasing time.
// Vertices sharing a time must share the location; an infinite time is only
// allowed for a stationary last vertex.
func New(verts []Vertex) (Trajectory, error) {
	out := make([]Vertex, 0, len(verts))
	for i, v := range verts {
		if !v.Location.IsFinite() || math.IsNaN(v.Time) || math.IsInf(v.Time, -1) {
			return Trajectory{}, fmt.Errorf("%w: vertex %d is not finite", ErrInvalidTrajectory, i)
		}
		if n := len(out); n > 0 {
			prev := out[n-1]
			switch {
			case v.Time < prev.Time-TimeTolerance:
				return Trajectory{}, fmt.Errorf("%w: vertex %d goes back in time", ErrInvalidTrajectory, i)
			case timeEqual(v.Time, prev.Time):
				if !v.Location.Equal(prev.Location) {
					return Trajectory{}, fmt.Errorf("%w: vertex %d jumps", ErrInvalidTrajectory, i)
				}
				continue
			case math.IsInf(v.Time, 1) && !v.Location.Equal(prev.Location):
				return Trajectory{}, fmt.Errorf("%w: unbounded tail must be stationary", ErrInvalidTrajectory)
			}
		} else if math.IsInf(v.Time, 1) {
			return Trajectory{}, fmt.Errorf("%w: starts at end of time", ErrInvalidTrajectory)
		}
		out = append(out, v)
	}
	return Trajectory{verts: out}, nil
}

// Must is like New but panics on invalid input.
func Must(verts ...Vertex) Trajectory {
	t, err := New(verts)
	if err != nil {
		panic(err)
	}
	return t
}

// Stationary returns a trajectory resting at p from from to to.
func Stationary(p geom.Point, from, to float64) Trajectory {
	if timeEqual(from, to) {
		return Trajectory{verts: []Vertex{{p, from}}}
	}
	return Trajectory{verts: []Vertex{{p, from}, {p, to}}}
}

// FromPath zips a spatial path with its arrival times.
func FromPath(path []geom.Point, times []float64) (Trajectory, error) {
	if len(path) != len(times) {
		return Trajectory{}, fmt.Errorf("%w: %d points but %d times", ErrInvalidTrajectory, len(path), len(times))
	}
	verts := make([]Vertex, len(path))
	for i := range path {
		verts[i] = Vertex{path[i], times[i]}
	}
	return New(verts)
}

func (t Trajectory) IsEmpty() bool { return len(t.verts) == 0 }

// Vertices returns a copy of the vertices.
func (t Trajectory) Vertices() []Vertex {
	return append([]Vertex(nil), t.verts...)
}

func (t Trajectory) StartTime() float64           { return t.verts[0].Time }
func (t Trajectory) FinishTime() float64          { return t.verts[len(t.verts)-1].Time }
func (t Trajectory) StartLocation() geom.Point    { return t.verts[0].Location }
func (t Trajectory) FinishLocation() geom.Point   { return t.verts[len(t.verts)-1].Location }
func (t Trajectory) Duration() float64            { return t.FinishTime() - t.StartTime() }
func (t Trajectory) Length() float64              { return geom.PolylineLength(t.Path()) }
func (t Trajectory) covers(from, to float64) bool { return from >= t.StartTime()-TimeTolerance && to <= t.FinishTime()+TimeTolerance }

// Path returns the spatial polyline.
func (t Trajectory) Path() []geom.Point {
	out := make([]geom.Point, len(t.verts))
	for i, v := range t.verts {
		out[i] = v.Location
	}
	return out
}

// Interpolate returns the location at time at. ok is false outside
// [StartTime, FinishTime].
func (t Trajectory) Interpolate(at float64) (p geom.Point, ok bool) {
	if t.IsEmpty() || at < t.StartTime()-TimeTolerance || at > t.FinishTime()+TimeTolerance {
		return geom.Point{}, false
	}
	// first vertex after at
	i := sort.Search(len(t.verts), func(i int) bool { return t.verts[i].Time > at })
	if i == 0 {
		return t.verts[0].Location, true
	}
	if i == len(t.verts) {
		return t.verts[i-1].Location, true
	}
	a, b := t.verts[i-1], t.verts[i]
	if math.IsInf(b.Time, 1) {
		return a.Location, true
	}
	return a.Location.Lerp(b.Location, (at-a.Time)/(b.Time-a.Time)), true
}

// IsStationary reports whether the trajectory rests at a single location
// during [from, to].
func (t Trajectory) IsStationary(from, to float64) bool {
	if t.IsEmpty() || !t.covers(from, to) {
		return false
	}
	p, _ := t.Interpolate(from)
	for _, v := range t.verts {
		if v.Time > from && v.Time < to && !v.Location.Equal(p) {
			return false
		}
	}
	q, _ := t.Interpolate(to)
	return q.Equal(p)
}

// SubTrajectory returns the section during [from, to] clipped to the
// trajectory's own time span. The result is empty when nothing remains.
func (t Trajectory) SubTrajectory(from, to float64) Trajectory {
	if t.IsEmpty() {
		return Trajectory{}
	}
	from = math.Max(from, t.StartTime())
	to = math.Min(to, t.FinishTime())
	if from > to {
		return Trajectory{}
	}
	start, _ := t.Interpolate(from)
	verts := []Vertex{{start, from}}
	for _, v := range t.verts {
		if v.Time > from+TimeTolerance && v.Time < to-TimeTolerance {
			verts = append(verts, v)
		}
	}
	if !timeEqual(from, to) {
		finish, _ := t.Interpolate(to)
		verts = append(verts, Vertex{finish, to})
	}
	return Trajectory{verts: verts}
}

// Merge appends next, which must start where and when t finishes.
func (t Trajectory) Merge(next Trajectory) (Trajectory, error) {
	switch {
	case t.IsEmpty():
		return next, nil
	case next.IsEmpty():
		return t, nil
	case !timeEqual(t.FinishTime(), next.StartTime()):
		return Trajectory{}, fmt.Errorf("%w: merge gap between %g and %g",
			ErrInvalidTrajectory, t.FinishTime(), next.StartTime())
	case !t.FinishLocation().Equal(next.StartLocation()):
		return Trajectory{}, fmt.Errorf("%w: merge jump from %v to %v",
			ErrInvalidTrajectory, t.FinishLocation(), next.StartLocation())
	}
	verts := make([]Vertex, 0, len(t.verts)+len(next.verts)-1)
	verts = append(verts, t.verts...)
	verts = append(verts, next.verts[1:]...)
	return Trajectory{verts: verts}, nil
}

// Concat merges consecutive trajectories.
func Concat(trajs ...Trajectory) (Trajectory, error) {
	var out Trajectory
	for _, tr := range trajs {
		var err error
		if out, err = out.Merge(tr); err != nil {
			return Trajectory{}, err
		}
	}
	return out, nil
}

func (t Trajectory) String() string {
	parts := make([]string, len(t.verts))
	for i, v := range t.verts {
		parts[i] = fmt.Sprintf("%v@%g", v.Location, v.Time)
	}
	return "<" + strings.Join(parts, " ") + ">"
}
