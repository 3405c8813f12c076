package core

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/elektrokombinacija/stsched/internal/geom"
	"github.com/elektrokombinacija/stsched/internal/world"
)

// AgentSpec describes an agent to add to the schedule.
type AgentSpec struct {
	ID              string
	Radius          float64 // Disk radius (m)
	MaxSpeed        float64 // m/s
	InitialLocation geom.Point
	InitialTime     float64
}

// Validate checks the spec is usable.
func (s AgentSpec) Validate() error {
	switch {
	case s.ID == "":
		return fmt.Errorf("%w: agent id is empty", ErrInvalidArgument)
	case !(s.Radius >= 0) || math.IsInf(s.Radius, 1):
		return fmt.Errorf("%w: agent %s radius %g", ErrInvalidArgument, s.ID, s.Radius)
	case !(s.MaxSpeed > 0) || math.IsInf(s.MaxSpeed, 1):
		return fmt.Errorf("%w: agent %s max speed %g must be positive", ErrInvalidArgument, s.ID, s.MaxSpeed)
	case !s.InitialLocation.IsFinite():
		return fmt.Errorf("%w: agent %s initial location is not finite", ErrInvalidArgument, s.ID)
	case math.IsNaN(s.InitialTime) || math.IsInf(s.InitialTime, 0):
		return fmt.Errorf("%w: agent %s initial time is not finite", ErrInvalidArgument, s.ID)
	}
	return nil
}

// JobSpec describes a job to place: where it may happen, when it may start
// and how long it takes.
type JobSpec struct {
	ID            uuid.UUID
	Space         world.LocationSpace
	EarliestStart float64
	LatestStart   float64
	Duration      float64
}

// Validate checks earliest <= latest, a positive duration and a usable
// location space.
func (s JobSpec) Validate() error {
	switch {
	case s.ID == uuid.Nil:
		return fmt.Errorf("%w: job id is nil", ErrInvalidArgument)
	case math.IsNaN(s.EarliestStart) || math.IsNaN(s.LatestStart) || math.IsInf(s.EarliestStart, 0):
		return fmt.Errorf("%w: job %s start window is not a number", ErrInvalidArgument, s.ID)
	case s.EarliestStart > s.LatestStart:
		return fmt.Errorf("%w: job %s earliest start %g after latest start %g",
			ErrInvalidArgument, s.ID, s.EarliestStart, s.LatestStart)
	case !(s.Duration > 0) || math.IsInf(s.Duration, 1):
		return fmt.Errorf("%w: job %s duration %g must be positive", ErrInvalidArgument, s.ID, s.Duration)
	}
	if err := s.Space.Validate(); err != nil {
		return fmt.Errorf("%w: job %s: %v", ErrInvalidArgument, s.ID, err)
	}
	return nil
}

// PeriodicJobSpec describes Repetitions jobs of equal duration, one per
// period. Repetition i may start within
// [StartTime+i*Period, StartTime+(i+1)*Period-Duration].
type PeriodicJobSpec struct {
	IDs          []uuid.UUID
	Space        world.LocationSpace
	StartTime    float64
	Period       float64
	Duration     float64
	Repetitions  int
	SameLocation bool // Place every repetition at the same location
}

// Validate checks the series is well-formed.
func (s PeriodicJobSpec) Validate() error {
	switch {
	case s.Repetitions < 1:
		return fmt.Errorf("%w: repetitions %d must be positive", ErrInvalidArgument, s.Repetitions)
	case len(s.IDs) != s.Repetitions:
		return fmt.Errorf("%w: %d ids for %d repetitions", ErrInvalidArgument, len(s.IDs), s.Repetitions)
	case !(s.Duration > 0) || math.IsInf(s.Duration, 1):
		return fmt.Errorf("%w: duration %g must be positive", ErrInvalidArgument, s.Duration)
	case !(s.Period >= s.Duration) || math.IsInf(s.Period, 1):
		return fmt.Errorf("%w: period %g shorter than duration %g", ErrInvalidArgument, s.Period, s.Duration)
	case math.IsNaN(s.StartTime) || math.IsInf(s.StartTime, 0):
		return fmt.Errorf("%w: start time is not finite", ErrInvalidArgument)
	}
	seen := make(map[uuid.UUID]bool, len(s.IDs))
	for _, id := range s.IDs {
		if id == uuid.Nil || seen[id] {
			return fmt.Errorf("%w: repetition ids must be unique and non-nil", ErrInvalidArgument)
		}
		seen[id] = true
	}
	if err := s.Space.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return nil
}

// JobSpecs expands the series into one JobSpec per repetition.
func (s PeriodicJobSpec) JobSpecs() []JobSpec {
	out := make([]JobSpec, s.Repetitions)
	for i := range out {
		start := s.StartTime + float64(i)*s.Period
		out[i] = JobSpec{
			ID:            s.IDs[i],
			Space:         s.Space,
			EarliestStart: start,
			LatestStart:   start + s.Period - s.Duration,
			Duration:      s.Duration,
		}
	}
	return out
}
