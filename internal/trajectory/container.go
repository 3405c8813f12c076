package trajectory

import (
	"math"
	"sort"

	"github.com/elektrokombinacija/stsched/internal/geom"
	"github.com/elektrokombinacija/stsched/internal/interval"
)

// Container holds non-overlapping trajectories sorted by start time. Gaps are
// allowed; an agent's committed container has none.
type Container struct {
	trajs []Trajectory
}

// NewContainer returns a container holding trajs, later ones overlaying
// earlier ones.
func NewContainer(trajs ...Trajectory) *Container {
	c := &Container{}
	for _, t := range trajs {
		c.Update(t)
	}
	return c
}

// Update inserts t, cutting away the overlapped parts of existing trajectories.
// Trajectories without duration are ignored.
func (c *Container) Update(t Trajectory) {
	if t.IsEmpty() || t.Duration() <= TimeTolerance {
		return
	}
	ts, tf := t.StartTime(), t.FinishTime()

	out := make([]Trajectory, 0, len(c.trajs)+2)
	for _, e := range c.trajs {
		if e.FinishTime() <= ts+TimeTolerance || e.StartTime() >= tf-TimeTolerance {
			out = append(out, e)
			continue
		}
		if e.StartTime() < ts-TimeTolerance {
			out = append(out, e.SubTrajectory(e.StartTime(), ts))
		}
		if e.FinishTime() > tf+TimeTolerance {
			out = append(out, e.SubTrajectory(tf, e.FinishTime()))
		}
	}
	out = append(out, t)
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime() < out[j].StartTime() })
	c.trajs = out
}

// UpdateAll applies Update for every trajectory of o.
func (c *Container) UpdateAll(o *Container) {
	for _, t := range o.trajs {
		c.Update(t)
	}
}

// Trajectories returns the trajectories in time order.
func (c *Container) Trajectories() []Trajectory {
	return append([]Trajectory(nil), c.trajs...)
}

func (c *Container) Len() int      { return len(c.trajs) }
func (c *Container) IsEmpty() bool { return len(c.trajs) == 0 }

// StartTime returns the start of the first trajectory, +Inf when empty.
func (c *Container) StartTime() float64 {
	if c.IsEmpty() {
		return math.Inf(1)
	}
	return c.trajs[0].StartTime()
}

// FinishTime returns the finish of the last trajectory, -Inf when empty.
func (c *Container) FinishTime() float64 {
	if c.IsEmpty() {
		return math.Inf(-1)
	}
	return c.trajs[len(c.trajs)-1].FinishTime()
}

// TrajectoryAt returns the trajectory covering time at. At a boundary the
// later trajectory wins.
func (c *Container) TrajectoryAt(at float64) (Trajectory, bool) {
	i := sort.Search(len(c.trajs), func(i int) bool { return c.trajs[i].StartTime() > at+TimeTolerance })
	for j := i - 1; j >= 0 && j >= i-2; j-- {
		if t := c.trajs[j]; at <= t.FinishTime()+TimeTolerance {
			return t, true
		}
	}
	return Trajectory{}, false
}

// Interpolate returns the location at time at.
func (c *Container) Interpolate(at float64) (geom.Point, bool) {
	t, ok := c.TrajectoryAt(at)
	if !ok {
		return geom.Point{}, false
	}
	return t.Interpolate(at)
}

// Slice returns the trajectory sections overlapping [from, to], clipped.
func (c *Container) Slice(from, to float64) []Trajectory {
	var out []Trajectory
	for _, t := range c.trajs {
		if t.FinishTime() <= from+TimeTolerance || t.StartTime() >= to-TimeTolerance {
			continue
		}
		if s := t.SubTrajectory(from, to); !s.IsEmpty() && s.Duration() > TimeTolerance {
			out = append(out, s)
		}
	}
	return out
}

// IsContinuous reports whether consecutive trajectories touch in time and
// location.
func (c *Container) IsContinuous() bool {
	for i := 1; i < len(c.trajs); i++ {
		if !adjacent(c.trajs[i-1], c.trajs[i]) {
			return false
		}
	}
	return true
}

// Covers reports whether [from, to] is covered without gaps.
func (c *Container) Covers(from, to float64) bool {
	reached := from
	for _, t := range c.trajs {
		if t.FinishTime() <= reached+TimeTolerance {
			continue
		}
		if t.StartTime() > reached+TimeTolerance {
			return false
		}
		reached = t.FinishTime()
		if reached >= to-TimeTolerance {
			return true
		}
	}
	return reached >= to-TimeTolerance
}

// IsStationaryAt reports whether the container rests at p throughout [from, to].
func (c *Container) IsStationaryAt(p geom.Point, from, to float64) bool {
	if !c.Covers(from, to) {
		return false
	}
	at, ok := c.Interpolate(from)
	if !ok || !at.Equal(p) {
		return false
	}
	for _, t := range c.Slice(from, to) {
		if !t.IsStationary(t.StartTime(), t.FinishTime()) || !t.StartLocation().Equal(p) {
			return false
		}
	}
	return true
}

// Runs groups the trajectories into maximal runs without time gaps.
func (c *Container) Runs() [][]Trajectory {
	var runs [][]Trajectory
	for i, t := range c.trajs {
		if i == 0 || !timeEqual(c.trajs[i-1].FinishTime(), t.StartTime()) {
			runs = append(runs, nil)
		}
		runs[len(runs)-1] = append(runs[len(runs)-1], t)
	}
	return runs
}

// Intervals returns the covered time as an interval set.
func (c *Container) Intervals() interval.SimpleSet[float64] {
	ivs := make([]interval.Interval[float64], 0, len(c.trajs))
	for _, t := range c.trajs {
		ivs = append(ivs, interval.Must(t.StartTime(), t.FinishTime()))
	}
	return interval.Of(ivs...)
}

// Clone returns an independent copy. Trajectories are immutable and shared.
func (c *Container) Clone() *Container {
	return &Container{trajs: c.Trajectories()}
}

func adjacent(a, b Trajectory) bool {
	return timeEqual(a.FinishTime(), b.StartTime()) && a.FinishLocation().Equal(b.StartLocation())
}
