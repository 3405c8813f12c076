package algo

import (
	"cmp"
	"math"
	"slices"

	"github.com/elektrokombinacija/stsched/internal/core"
	"github.com/elektrokombinacija/stsched/internal/geom"
)

// Candidate is an agent and one of its idle slots able to host a job.
type Candidate struct {
	Agent *core.Agent
	Slot  core.IdleSlot

	// Window is the feasible start window within the slot.
	WindowStart, WindowFinish float64
	// Distance is the straight-line distance from the slot start to the job.
	Distance float64
}

// Slack returns how much the job start can move within the slot.
func (c Candidate) Slack() float64 { return c.WindowFinish - c.WindowStart }

// arrival estimates the earliest job start ignoring obstacles.
func (c Candidate) arrival() float64 {
	return math.Max(c.WindowStart, c.Slot.StartTime+c.Distance/c.Agent.MaxSpeed())
}

// IdleSlotIterator yields the candidates for one job location in the order
// of a SlotOrder.
type IdleSlotIterator struct {
	candidates []Candidate
	next       int
}

// Next returns the next candidate.
func (it *IdleSlotIterator) Next() (Candidate, bool) {
	if it.next >= len(it.candidates) {
		return Candidate{}, false
	}
	c := it.candidates[it.next]
	it.next++
	return c, true
}

// Len returns the number of candidates.
func (it *IdleSlotIterator) Len() int { return len(it.candidates) }

// slotQuery describes the job the slots are searched for.
type slotQuery struct {
	location geom.Point
	earliest float64
	latest   float64
	duration float64
	horizon  float64
	blocked  func(a *core.Agent) bool
	viewOf   func(a *core.Agent) *core.AgentView
	order    SlotOrder
}

// newIdleSlotIterator collects the slots of every agent able to stand at the
// query location whose window fits the job.
func newIdleSlotIterator(agents []*core.Agent, q slotQuery) *IdleSlotIterator {
	it := &IdleSlotIterator{}
	for _, a := range agents {
		if q.blocked(a) {
			continue
		}
		for _, s := range q.viewOf(a).IdleSlots(q.horizon, q.latest) {
			if !s.Fits(q.earliest, q.latest, q.duration) {
				continue
			}
			it.candidates = append(it.candidates, Candidate{
				Agent:        a,
				Slot:         s,
				WindowStart:  math.Max(s.StartTime, q.earliest),
				WindowFinish: math.Min(s.FinishTime-q.duration, q.latest),
				Distance:     s.StartLocation.Distance(q.location),
			})
		}
	}
	slices.SortStableFunc(it.candidates, q.order.compare)
	return it
}

func (o SlotOrder) compare(a, b Candidate) int {
	var c int
	switch o {
	case EarliestStartFirst:
		c = cmp.Compare(a.arrival(), b.arrival())
	default:
		c = cmp.Compare(a.Slack(), b.Slack())
	}
	if c != 0 {
		return c
	}
	if c = cmp.Compare(a.Distance, b.Distance); c != 0 {
		return c
	}
	if c = cmp.Compare(a.Agent.ID(), b.Agent.ID()); c != 0 {
		return c
	}
	return cmp.Compare(a.Slot.StartTime, b.Slot.StartTime)
}
