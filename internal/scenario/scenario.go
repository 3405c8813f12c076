// Package scenario reads, writes and generates YAML scenario files: a world,
// a fleet of agents and the jobs to schedule on it.
package scenario

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/elektrokombinacija/stsched/internal/algo"
	"github.com/elektrokombinacija/stsched/internal/core"
	"github.com/elektrokombinacija/stsched/internal/geom"
	"github.com/elektrokombinacija/stsched/internal/trajectory"
	"github.com/elektrokombinacija/stsched/internal/world"
)

var ErrInvalidScenario = errors.New("invalid scenario")

// Point is written as [x, y].
type Point [2]float64

func (p Point) geom() geom.Point { return geom.Pt(p[0], p[1]) }

func fromGeom(p geom.Point) Point { return Point{p.X, p.Y} }

func polygon(pts []Point) geom.Polygon {
	if len(pts) == 0 {
		return nil
	}
	out := make(geom.Polygon, len(pts))
	for i, p := range pts {
		out[i] = p.geom()
	}
	return out
}

// File is the on-disk scenario.
type File struct {
	Name     string        `yaml:"name"`
	Seed     int64         `yaml:"seed,omitempty"`
	World    WorldDef      `yaml:"world"`
	Clock    ClockDef      `yaml:"clock,omitempty"`
	Agents   []AgentDef    `yaml:"agents"`
	Jobs     []JobDef      `yaml:"jobs,omitempty"`
	Batches  []BatchDef    `yaml:"batches,omitempty"`
	Periodic []PeriodicDef `yaml:"periodic,omitempty"`
}

type WorldDef struct {
	Bounds    []Point      `yaml:"bounds,omitempty"` // empty: unbounded
	Obstacles [][]Point    `yaml:"obstacles,omitempty"`
	Dynamic   []DynamicDef `yaml:"dynamic,omitempty"`
}

// DynamicDef is a moving obstacle. The last waypoint is held forever.
type DynamicDef struct {
	ID     string        `yaml:"id"`
	Radius float64       `yaml:"radius"`
	Path   []WaypointDef `yaml:"path"`
}

type WaypointDef struct {
	At   Point   `yaml:"at"`
	Time float64 `yaml:"time"`
}

type ClockDef struct {
	PresentTime           float64 `yaml:"present_time"`
	FrozenHorizonDuration float64 `yaml:"frozen_horizon_duration"`
}

type AgentDef struct {
	ID          string  `yaml:"id"`
	Radius      float64 `yaml:"radius"`
	MaxSpeed    float64 `yaml:"max_speed"`
	Location    Point   `yaml:"location"`
	InitialTime float64 `yaml:"initial_time,omitempty"`
}

// JobDef is one job. Exactly one of Location and Region is set. A missing
// Latest leaves the start window open.
type JobDef struct {
	Name      string   `yaml:"name"`
	ID        string   `yaml:"id,omitempty"` // uuid; derived from Name when empty
	Location  *Point   `yaml:"location,omitempty"`
	Region    []Point  `yaml:"region,omitempty"`
	Earliest  float64  `yaml:"earliest"`
	Latest    *float64 `yaml:"latest,omitempty"`
	Duration  float64  `yaml:"duration"`
	DependsOn []string `yaml:"depends_on,omitempty"` // names within the batch
}

// BatchDef is a set of jobs scheduled together, all or none.
type BatchDef struct {
	Name string   `yaml:"name"`
	Jobs []JobDef `yaml:"jobs"`
}

type PeriodicDef struct {
	Name         string  `yaml:"name"`
	Location     *Point  `yaml:"location,omitempty"`
	Region       []Point `yaml:"region,omitempty"`
	Start        float64 `yaml:"start"`
	Period       float64 `yaml:"period"`
	Duration     float64 `yaml:"duration"`
	Repetitions  int     `yaml:"repetitions"`
	SameLocation bool    `yaml:"same_location"`
}

// Load reads a scenario file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a scenario.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	return &f, nil
}

// Save writes f as YAML.
func (f *File) Save(path string) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// BuildWorld converts the world section.
func (f *File) BuildWorld() (*world.World, error) {
	var obstacles []geom.Polygon
	for _, o := range f.World.Obstacles {
		obstacles = append(obstacles, polygon(o))
	}
	var dynamic []world.DynamicObstacle
	for _, d := range f.World.Dynamic {
		tr, err := d.trajectory()
		if err != nil {
			return nil, fmt.Errorf("%w: dynamic obstacle %q: %v", ErrInvalidScenario, d.ID, err)
		}
		dynamic = append(dynamic, world.DynamicObstacle{ID: d.ID, Radius: d.Radius, Trajectory: tr})
	}
	w, err := world.New(polygon(f.World.Bounds), obstacles, dynamic)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	return w, nil
}

func (d DynamicDef) trajectory() (trajectory.Trajectory, error) {
	if len(d.Path) == 0 {
		return trajectory.Trajectory{}, errors.New("empty path")
	}
	verts := make([]trajectory.Vertex, 0, len(d.Path)+1)
	for _, wp := range d.Path {
		verts = append(verts, trajectory.Vertex{Location: wp.At.geom(), Time: wp.Time})
	}
	last := verts[len(verts)-1]
	verts = append(verts, trajectory.Vertex{Location: last.Location, Time: trajectory.EndOfTime})
	return trajectory.New(verts)
}

// AgentSpecs converts the agents section.
func (f *File) AgentSpecs() []core.AgentSpec {
	out := make([]core.AgentSpec, len(f.Agents))
	for i, a := range f.Agents {
		out[i] = core.AgentSpec{
			ID:              a.ID,
			Radius:          a.Radius,
			MaxSpeed:        a.MaxSpeed,
			InitialLocation: a.Location.geom(),
			InitialTime:     a.InitialTime,
		}
	}
	return out
}

func space(loc *Point, region []Point) world.LocationSpace {
	if loc != nil {
		return world.PointSpace(loc.geom())
	}
	return world.RegionSpace(polygon(region))
}

// jobID is the job's uuid, derived from its name when not given so that
// runs of the same file agree.
func jobID(scope, name, id string) (uuid.UUID, error) {
	if id != "" {
		parsed, err := uuid.Parse(id)
		if err != nil {
			return uuid.Nil, fmt.Errorf("%w: job %q: %v", ErrInvalidScenario, name, err)
		}
		return parsed, nil
	}
	if name == "" {
		return uuid.Nil, fmt.Errorf("%w: job without name or id", ErrInvalidScenario)
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(scope+"/"+name)), nil
}

// Spec converts a job definition.
func (j JobDef) Spec(scope string) (core.JobSpec, error) {
	id, err := jobID(scope, j.Name, j.ID)
	if err != nil {
		return core.JobSpec{}, err
	}
	latest := math.Inf(1)
	if j.Latest != nil {
		latest = *j.Latest
	}
	return core.JobSpec{
		ID:            id,
		Space:         space(j.Location, j.Region),
		EarliestStart: j.Earliest,
		LatestStart:   latest,
		Duration:      j.Duration,
	}, nil
}

// Specs converts a batch and its dependency edges.
func (b BatchDef) Specs() ([]core.JobSpec, algo.DependencyGraph, error) {
	specs := make([]core.JobSpec, len(b.Jobs))
	byName := make(map[string]uuid.UUID, len(b.Jobs))
	for i, j := range b.Jobs {
		spec, err := j.Spec(b.Name)
		if err != nil {
			return nil, nil, err
		}
		specs[i] = spec
		byName[j.Name] = spec.ID
	}
	deps := algo.DependencyGraph{}
	for i, j := range b.Jobs {
		for _, name := range j.DependsOn {
			dep, ok := byName[name]
			if !ok {
				return nil, nil, fmt.Errorf("%w: batch %q: job %q depends on unknown job %q",
					ErrInvalidScenario, b.Name, j.Name, name)
			}
			deps.Add(specs[i].ID, dep)
		}
	}
	return specs, deps, nil
}

// Spec converts a periodic definition.
func (p PeriodicDef) Spec() (core.PeriodicJobSpec, error) {
	if p.Name == "" {
		return core.PeriodicJobSpec{}, fmt.Errorf("%w: periodic job without name", ErrInvalidScenario)
	}
	ids := make([]uuid.UUID, max(p.Repetitions, 0))
	for i := range ids {
		ids[i] = uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("periodic/%s/%d", p.Name, i)))
	}
	return core.PeriodicJobSpec{
		IDs:          ids,
		Space:        space(p.Location, p.Region),
		StartTime:    p.Start,
		Period:       p.Period,
		Duration:     p.Duration,
		Repetitions:  p.Repetitions,
		SameLocation: p.SameLocation,
	}, nil
}
