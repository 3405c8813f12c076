package server

import (
	"fmt"
	"math"
	"slices"

	"github.com/google/uuid"

	"github.com/elektrokombinacija/stsched/internal/algo"
	"github.com/elektrokombinacija/stsched/internal/core"
	"github.com/elektrokombinacija/stsched/internal/geom"
	"github.com/elektrokombinacija/stsched/internal/scheduler"
	"github.com/elektrokombinacija/stsched/internal/trajectory"
	"github.com/elektrokombinacija/stsched/internal/world"
)

// Point is encoded as [x, y].
type Point [2]float64

func (p Point) geom() geom.Point { return geom.Pt(p[0], p[1]) }

func fromGeom(p geom.Point) Point { return Point{p.X, p.Y} }

// finite returns nil for infinite times, which JSON cannot carry.
func finite(t float64) *float64 {
	if math.IsInf(t, 0) {
		return nil
	}
	return &t
}

type agentRequest struct {
	ID          string  `json:"id"`
	Radius      float64 `json:"radius"`
	MaxSpeed    float64 `json:"max_speed"`
	Location    Point   `json:"location"`
	InitialTime float64 `json:"initial_time"`
}

func (r agentRequest) spec() core.AgentSpec {
	return core.AgentSpec{
		ID:              r.ID,
		Radius:          r.Radius,
		MaxSpeed:        r.MaxSpeed,
		InitialLocation: r.Location.geom(),
		InitialTime:     r.InitialTime,
	}
}

type agentResponse struct {
	ID          string        `json:"id"`
	Radius      float64       `json:"radius"`
	MaxSpeed    float64       `json:"max_speed"`
	Location    Point         `json:"location"`
	InitialTime float64       `json:"initial_time"`
	Jobs        []jobResponse `json:"jobs"`
}

func newAgentResponse(a *core.Agent) agentResponse {
	resp := agentResponse{
		ID:          a.ID(),
		Radius:      a.Radius(),
		MaxSpeed:    a.MaxSpeed(),
		Location:    fromGeom(a.InitialLocation()),
		InitialTime: a.InitialTime(),
		Jobs:        []jobResponse{},
	}
	for _, j := range a.Jobs() {
		resp.Jobs = append(resp.Jobs, newJobResponse(j))
	}
	return resp
}

// jobRequest describes one job. Exactly one of Location and Region is set.
// A missing id is generated; a missing latest start leaves the window open.
type jobRequest struct {
	ID        string   `json:"id"`
	Location  *Point   `json:"location,omitempty"`
	Region    []Point  `json:"region,omitempty"`
	Earliest  float64  `json:"earliest_start"`
	Latest    *float64 `json:"latest_start,omitempty"`
	Duration  float64  `json:"duration"`
	DependsOn []string `json:"depends_on,omitempty"` // ids within a batch
}

func parseID(id string) (uuid.UUID, error) {
	if id == "" {
		return uuid.New(), nil
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: job id %q: %v", core.ErrInvalidArgument, id, err)
	}
	return parsed, nil
}

func space(loc *Point, region []Point) world.LocationSpace {
	if loc != nil {
		return world.PointSpace(loc.geom())
	}
	if len(region) == 0 {
		return world.LocationSpace{}
	}
	poly := make(geom.Polygon, len(region))
	for i, p := range region {
		poly[i] = p.geom()
	}
	return world.RegionSpace(poly)
}

func (r jobRequest) spec() (core.JobSpec, error) {
	id, err := parseID(r.ID)
	if err != nil {
		return core.JobSpec{}, err
	}
	latest := math.Inf(1)
	if r.Latest != nil {
		latest = *r.Latest
	}
	return core.JobSpec{
		ID:            id,
		Space:         space(r.Location, r.Region),
		EarliestStart: r.Earliest,
		LatestStart:   latest,
		Duration:      r.Duration,
	}, nil
}

type batchRequest struct {
	Jobs []jobRequest `json:"jobs"`
}

func (r batchRequest) specs() ([]core.JobSpec, algo.DependencyGraph, error) {
	specs := make([]core.JobSpec, len(r.Jobs))
	for i, j := range r.Jobs {
		spec, err := j.spec()
		if err != nil {
			return nil, nil, err
		}
		specs[i] = spec
	}
	deps := algo.DependencyGraph{}
	for i, j := range r.Jobs {
		for _, d := range j.DependsOn {
			dep, err := uuid.Parse(d)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: dependency %q: %v", core.ErrInvalidArgument, d, err)
			}
			deps.Add(specs[i].ID, dep)
		}
	}
	return specs, deps, nil
}

type periodicRequest struct {
	IDs          []string `json:"ids,omitempty"` // generated when empty
	Location     *Point   `json:"location,omitempty"`
	Region       []Point  `json:"region,omitempty"`
	Start        float64  `json:"start_time"`
	Period       float64  `json:"period"`
	Duration     float64  `json:"duration"`
	Repetitions  int      `json:"repetitions"`
	SameLocation bool     `json:"same_location"`
}

func (r periodicRequest) spec() (core.PeriodicJobSpec, error) {
	var ids []uuid.UUID
	if len(r.IDs) == 0 {
		for range max(r.Repetitions, 0) {
			ids = append(ids, uuid.New())
		}
	} else {
		for _, s := range r.IDs {
			id, err := uuid.Parse(s)
			if err != nil {
				return core.PeriodicJobSpec{}, fmt.Errorf("%w: job id %q: %v", core.ErrInvalidArgument, s, err)
			}
			ids = append(ids, id)
		}
	}
	return core.PeriodicJobSpec{
		IDs:          ids,
		Space:        space(r.Location, r.Region),
		StartTime:    r.Start,
		Period:       r.Period,
		Duration:     r.Duration,
		Repetitions:  r.Repetitions,
		SameLocation: r.SameLocation,
	}, nil
}

type jobResponse struct {
	ID         uuid.UUID `json:"id"`
	AgentID    string    `json:"agent_id"`
	Location   Point     `json:"location"`
	StartTime  float64   `json:"start_time"`
	Duration   float64   `json:"duration"`
	FinishTime float64   `json:"finish_time"`
}

func newJobResponse(j *core.Job) jobResponse {
	return jobResponse{
		ID:         j.ID(),
		AgentID:    j.AgentID(),
		Location:   fromGeom(j.Location()),
		StartTime:  j.StartTime(),
		Duration:   j.Duration(),
		FinishTime: j.FinishTime(),
	}
}

func jobResponses(jobs map[uuid.UUID]*core.Job) []jobResponse {
	out := make([]jobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, newJobResponse(j))
	}
	slices.SortFunc(out, func(a, b jobResponse) int {
		if a.StartTime != b.StartTime {
			if a.StartTime < b.StartTime {
				return -1
			}
			return 1
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})
	return out
}

// vertexResponse has a null time for the end of time.
type vertexResponse struct {
	Location Point    `json:"location"`
	Time     *float64 `json:"time"`
}

type trajectoryResponse struct {
	AgentID  string           `json:"agent_id"`
	Vertices []vertexResponse `json:"vertices"`
}

func newTrajectoryResponse(agentID string, t trajectory.Trajectory) trajectoryResponse {
	resp := trajectoryResponse{AgentID: agentID}
	for _, v := range t.Vertices() {
		resp.Vertices = append(resp.Vertices, vertexResponse{Location: fromGeom(v.Location), Time: finite(v.Time)})
	}
	return resp
}

type transactionResponse struct {
	ID           string               `json:"id"`
	Jobs         []jobResponse        `json:"jobs"`
	Removals     []jobResponse        `json:"removals"`
	Trajectories []trajectoryResponse `json:"trajectories"`
}

func newTransactionResponse(r *scheduler.Result) transactionResponse {
	resp := transactionResponse{
		ID:           r.TransactionID.String(),
		Jobs:         jobResponses(r.Jobs),
		Removals:     jobResponses(r.JobRemovals),
		Trajectories: []trajectoryResponse{},
	}
	for _, u := range r.TrajectoryUpdates {
		resp.Trajectories = append(resp.Trajectories, newTrajectoryResponse(u.AgentID, u.Trajectory))
	}
	return resp
}

type clockRequest struct {
	PresentTime           *float64 `json:"present_time,omitempty"`
	FrozenHorizonDuration *float64 `json:"frozen_horizon_duration,omitempty"`
}

type clockResponse struct {
	PresentTime           float64 `json:"present_time"`
	FrozenHorizon         float64 `json:"frozen_horizon"`
	FrozenHorizonDuration float64 `json:"frozen_horizon_duration"`
}
