package motion

import (
	"context"
	"math"

	"github.com/elektrokombinacija/stsched/internal/geom"
	"github.com/elektrokombinacija/stsched/internal/trajectory"
)

// Obstacle is a moving disk the agent, treated as a point, must keep clear
// of. Radius already includes the agent's own radius.
type Obstacle struct {
	Radius     float64
	Trajectory trajectory.Trajectory
}

// FixTimeRequest asks for a trajectory along Path that starts exactly at
// StartTime and arrives exactly at FinishTime.
type FixTimeRequest struct {
	Path       []geom.Point
	Obstacles  []Obstacle
	MaxSpeed   float64
	StartTime  float64
	FinishTime float64
}

// MinimumTimeRequest asks for the earliest arrival along Path within
// [EarliestFinish, LatestFinish] that stays collision-free for Buffer
// seconds after arrival.
type MinimumTimeRequest struct {
	Path           []geom.Point
	Obstacles      []Obstacle
	MaxSpeed       float64
	StartTime      float64
	EarliestFinish float64
	LatestFinish   float64
	Buffer         float64
}

// VelocityPathfinder times a spatial path against moving obstacles.
type VelocityPathfinder interface {
	FixTime(ctx context.Context, req FixTimeRequest) (trajectory.Trajectory, bool)
	MinimumTime(ctx context.Context, req MinimumTimeRequest) (trajectory.Trajectory, bool)
}

// DelaySearch is a VelocityPathfinder that drives at maximum speed and only
// chooses how long to wait before departing.
type DelaySearch struct {
	// Step is the smallest departure delay increment (seconds).
	Step float64
	// MaxDelays bounds the number of departure delays tried per request.
	MaxDelays int
}

// NewDelaySearch returns a DelaySearch with the given step and budget.
func NewDelaySearch(step float64, maxDelays int) *DelaySearch {
	return &DelaySearch{Step: step, MaxDelays: maxDelays}
}

// travelTime returns the time needed to traverse path at speed.
func travelTime(path []geom.Point, speed float64) (float64, bool) {
	l := geom.PolylineLength(path)
	if l <= geom.Epsilon {
		return 0, true
	}
	if speed <= 0 {
		return 0, false
	}
	return l / speed, true
}

// delays yields departure delays from 0 to slack inclusive. An unbounded
// slack yields MaxDelays delays Step apart.
func (d *DelaySearch) delays(slack float64) []float64 {
	if slack < 0 {
		return nil
	}
	if math.IsInf(slack, 1) {
		step := d.Step
		if step <= 0 {
			step = 1
		}
		out := make([]float64, max(d.MaxDelays, 1))
		for i := range out {
			out[i] = float64(i) * step
		}
		return out
	}
	step := d.Step
	if n := float64(max(d.MaxDelays, 1)); step <= 0 || slack/step > n {
		step = slack / n
	}
	var out []float64
	for x := 0.0; x < slack-trajectory.TimeTolerance; x += step {
		out = append(out, x)
	}
	return append(out, slack)
}

func (d *DelaySearch) FixTime(ctx context.Context, req FixTimeRequest) (trajectory.Trajectory, bool) {
	travel, ok := travelTime(req.Path, req.MaxSpeed)
	if !ok || len(req.Path) == 0 {
		return trajectory.Trajectory{}, false
	}
	slack := req.FinishTime - req.StartTime - travel
	if slack < -trajectory.TimeTolerance {
		return trajectory.Trajectory{}, false
	}
	slack = math.Max(slack, 0)

	for _, delay := range d.delays(slack) {
		if ctx.Err() != nil {
			return trajectory.Trajectory{}, false
		}
		tr, err := build(req.Path, req.StartTime, delay, req.MaxSpeed, req.FinishTime)
		if err != nil {
			continue
		}
		if !Collides(tr, req.StartTime, req.FinishTime, req.Obstacles) {
			return tr, true
		}
	}
	return trajectory.Trajectory{}, false
}

func (d *DelaySearch) MinimumTime(ctx context.Context, req MinimumTimeRequest) (trajectory.Trajectory, bool) {
	travel, ok := travelTime(req.Path, req.MaxSpeed)
	if !ok || len(req.Path) == 0 {
		return trajectory.Trajectory{}, false
	}
	slack := req.LatestFinish - req.StartTime - travel
	if slack < -trajectory.TimeTolerance {
		return trajectory.Trajectory{}, false
	}
	slack = math.Max(slack, 0)

	for _, delay := range d.delays(slack) {
		if ctx.Err() != nil {
			return trajectory.Trajectory{}, false
		}
		finish := math.Max(req.StartTime+delay+travel, req.EarliestFinish)
		if finish > req.LatestFinish+trajectory.TimeTolerance {
			break
		}
		tr, err := build(req.Path, req.StartTime, delay, req.MaxSpeed, finish)
		if err != nil {
			continue
		}
		if !Collides(tr, req.StartTime, finish+req.Buffer, req.Obstacles) {
			return tr, true
		}
	}
	return trajectory.Trajectory{}, false
}

// build waits at the first point for delay, drives along path at speed and
// waits at the last point until finish.
func build(path []geom.Point, start, delay, speed, finish float64) (trajectory.Trajectory, error) {
	verts := []trajectory.Vertex{{Location: path[0], Time: start}}
	t := start + delay
	if delay > trajectory.TimeTolerance {
		verts = append(verts, trajectory.Vertex{Location: path[0], Time: t})
	}
	for i := 1; i < len(path); i++ {
		if dl := path[i-1].Distance(path[i]); dl > 0 {
			t += dl / speed
		}
		verts = append(verts, trajectory.Vertex{Location: path[i], Time: t})
	}
	if finish > t+trajectory.TimeTolerance {
		verts = append(verts, trajectory.Vertex{Location: path[len(path)-1], Time: finish})
	} else {
		// absorb rounding so the trajectory ends exactly at finish
		verts[len(verts)-1].Time = finish
	}
	return trajectory.New(verts)
}
