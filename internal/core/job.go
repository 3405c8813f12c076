package core

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/elektrokombinacija/stsched/internal/geom"
	"github.com/elektrokombinacija/stsched/internal/interval"
)

// Job is an immutable, located and timed assignment of one agent.
type Job struct {
	id        uuid.UUID
	agentID   string
	location  geom.Point
	startTime float64
	duration  float64
}

// NewJob creates a job. The duration must be positive and finite.
func NewJob(id uuid.UUID, agentID string, location geom.Point, startTime, duration float64) (*Job, error) {
	switch {
	case id == uuid.Nil:
		return nil, fmt.Errorf("%w: job id is nil", ErrInvalidArgument)
	case agentID == "":
		return nil, fmt.Errorf("%w: job %s has no agent", ErrInvalidArgument, id)
	case !location.IsFinite():
		return nil, fmt.Errorf("%w: job %s location is not finite", ErrInvalidArgument, id)
	case math.IsNaN(startTime) || math.IsInf(startTime, 0):
		return nil, fmt.Errorf("%w: job %s start time is not finite", ErrInvalidArgument, id)
	case !(duration > 0) || math.IsInf(duration, 1):
		return nil, fmt.Errorf("%w: job %s duration %g must be positive", ErrInvalidArgument, id, duration)
	}
	return &Job{id: id, agentID: agentID, location: location, startTime: startTime, duration: duration}, nil
}

func (j *Job) ID() uuid.UUID        { return j.id }
func (j *Job) AgentID() string      { return j.agentID }
func (j *Job) Location() geom.Point { return j.location }
func (j *Job) StartTime() float64   { return j.startTime }
func (j *Job) Duration() float64    { return j.duration }
func (j *Job) FinishTime() float64  { return j.startTime + j.duration }

// Interval returns the job's half-open time span.
func (j *Job) Interval() interval.Interval[float64] {
	return interval.Must(j.startTime, j.FinishTime())
}

// Equal reports whether both jobs describe the same assignment.
func (j *Job) Equal(o *Job) bool {
	return j.id == o.id && j.agentID == o.agentID && j.location == o.location &&
		j.startTime == o.startTime && j.duration == o.duration
}

func (j *Job) String() string {
	return fmt.Sprintf("Job(%s, %s, %v, [%g, %g))", j.id, j.agentID, j.location, j.startTime, j.FinishTime())
}
