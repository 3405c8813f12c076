package core

import (
	"fmt"

	"github.com/elektrokombinacija/stsched/internal/geom"
	"github.com/elektrokombinacija/stsched/internal/interval"
	"github.com/elektrokombinacija/stsched/internal/trajectory"
)

// IdleSlot is a maximal span in which an agent has no job. It is derived on
// demand and never stored.
type IdleSlot struct {
	StartLocation  geom.Point
	StartTime      float64
	FinishLocation geom.Point // only meaningful when Bounded
	FinishTime     float64    // EndOfTime when not Bounded
	// Bounded is set when the agent must be at FinishLocation at FinishTime,
	// for example because a job follows.
	Bounded bool
}

// Duration returns the length of the slot.
func (s IdleSlot) Duration() float64 { return s.FinishTime - s.StartTime }

// Fits reports whether a job of the given duration can start in
// [earliest, latest] within the slot.
func (s IdleSlot) Fits(earliest, latest, duration float64) bool {
	lo := max(s.StartTime, earliest)
	hi := min(s.FinishTime-duration, latest)
	return lo <= hi+trajectory.TimeTolerance
}

func (s IdleSlot) String() string {
	if !s.Bounded {
		return fmt.Sprintf("IdleSlot(%v@%g, open)", s.StartLocation, s.StartTime)
	}
	return fmt.Sprintf("IdleSlot(%v@%g, %v@%g)", s.StartLocation, s.StartTime, s.FinishLocation, s.FinishTime)
}

// idleSlots derives the gaps between sorted jobs that overlap [from, to].
// Slot starts are clipped to from.
func idleSlots(jobs []*Job, trajs *trajectory.Container, initialTime, from, to float64) []IdleSlot {
	var out []IdleSlot
	gapStart := initialTime
	emit := func(gapFinish float64, next *Job) {
		start := max(gapStart, from)
		if gapFinish-start <= trajectory.TimeTolerance || start > to {
			return
		}
		p, ok := trajs.Interpolate(start)
		if !ok {
			return
		}
		slot := IdleSlot{StartLocation: p, StartTime: start, FinishTime: gapFinish}
		if next != nil {
			slot.Bounded = true
			slot.FinishLocation = next.location
		}
		out = append(out, slot)
	}
	for _, j := range jobs {
		emit(j.startTime, j)
		gapStart = j.FinishTime()
	}
	emit(trajectory.EndOfTime, nil)
	return out
}

// cutSlots removes the locked time ranges from the slots. A slot cut short by
// a lock must end where the trajectory is at the lock's start.
func cutSlots(slots []IdleSlot, locked interval.Set[float64], trajs *trajectory.Container) []IdleSlot {
	if locked == nil || locked.IsEmpty() {
		return slots
	}
	var out []IdleSlot
	for _, s := range slots {
		free := interval.Single(s.StartTime, s.FinishTime).Difference(locked)
		for _, iv := range free.Intervals() {
			if iv.To()-iv.From() <= trajectory.TimeTolerance {
				continue
			}
			start, ok := trajs.Interpolate(iv.From())
			if !ok {
				continue
			}
			cut := IdleSlot{StartLocation: start, StartTime: iv.From(), FinishTime: iv.To()}
			if iv.To() == s.FinishTime {
				cut.Bounded, cut.FinishLocation = s.Bounded, s.FinishLocation
			} else {
				finish, ok := trajs.Interpolate(iv.To())
				if !ok {
					continue
				}
				cut.Bounded, cut.FinishLocation = true, finish
			}
			out = append(out, cut)
		}
	}
	return out
}
