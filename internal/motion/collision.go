package motion

import (
	"math"
	"slices"

	"github.com/elektrokombinacija/stsched/internal/geom"
	"github.com/elektrokombinacija/stsched/internal/trajectory"
)

// Collides reports whether tr comes closer to any obstacle than the
// obstacle's radius during [from, to]. Beyond its finish tr is taken to rest
// at its final location. Between breakpoints both sides move linearly, so
// the minimum distance is exact.
func Collides(tr trajectory.Trajectory, from, to float64, obstacles []Obstacle) bool {
	for _, o := range obstacles {
		if collidesWith(tr, from, to, o) {
			return true
		}
	}
	return false
}

func collidesWith(tr trajectory.Trajectory, from, to float64, o Obstacle) bool {
	if tr.IsEmpty() || o.Trajectory.IsEmpty() {
		return false
	}
	lo := math.Max(from, o.Trajectory.StartTime())
	hi := math.Min(to, o.Trajectory.FinishTime())
	if lo > hi {
		return false
	}

	times := breakpoints(lo, hi, tr, o.Trajectory)
	prev := relative(tr, o.Trajectory, times[0])
	if prev.Norm() < o.Radius-geom.Epsilon {
		return true
	}
	for _, t := range times[1:] {
		cur := relative(tr, o.Trajectory, t)
		if geom.SegmentPointDistance(prev, cur, geom.Point{}) < o.Radius-geom.Epsilon {
			return true
		}
		prev = cur
	}
	return false
}

// breakpoints returns the sorted vertex times of a and b within [lo, hi]
// plus the bounds. An infinite hi is replaced by a finite time after which
// both sides are stationary.
func breakpoints(lo, hi float64, a, b trajectory.Trajectory) []float64 {
	times := []float64{lo}
	last := lo
	for _, tr := range []trajectory.Trajectory{a, b} {
		for _, v := range tr.Vertices() {
			if v.Time > lo && v.Time < hi {
				times = append(times, v.Time)
				if !math.IsInf(v.Time, 1) {
					last = math.Max(last, v.Time)
				}
			}
		}
	}
	if math.IsInf(hi, 1) {
		hi = last + 1
	}
	times = append(times, hi)
	slices.Sort(times)
	return slices.Compact(times)
}

func relative(a, b trajectory.Trajectory, t float64) geom.Point {
	return locationAt(a, t).Sub(locationAt(b, t))
}

func locationAt(tr trajectory.Trajectory, t float64) geom.Point {
	if t >= tr.FinishTime() {
		return tr.FinishLocation()
	}
	if t <= tr.StartTime() {
		return tr.StartLocation()
	}
	p, _ := tr.Interpolate(t)
	return p
}
