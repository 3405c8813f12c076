package scenario

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/elektrokombinacija/stsched/internal/geom"
)

// Params controls scenario generation. Equal params give equal scenarios.
type Params struct {
	Seed      int64   `json:"seed"`
	Agents    int     `json:"agents"`
	Width     float64 `json:"width"`  // m
	Height    float64 `json:"height"` // m
	Jobs      int     `json:"jobs"`
	Obstacles int     `json:"obstacles"`
	// Batches of dependent jobs, each a chain of 2 or 3 jobs.
	Batches int `json:"batches"`
	// Periodic series of 3 repetitions each.
	Periodic int `json:"periodic"`
	// Jobs must start within a window of WindowMin..WindowMax seconds.
	WindowMin float64 `json:"window_min"`
	WindowMax float64 `json:"window_max"`
}

// DefaultParams is a small mixed scenario.
func DefaultParams() Params {
	return Params{
		Seed:      42,
		Agents:    5,
		Width:     30,
		Height:    30,
		Jobs:      20,
		Obstacles: 4,
		Batches:   2,
		Periodic:  1,
		WindowMin: 60,
		WindowMax: 240,
	}
}

// ScalingParams returns a series of growing scenarios, the area growing with
// the fleet.
func ScalingParams(seed int64) []Params {
	var out []Params
	for _, n := range []int{5, 10, 25, 50, 100} {
		size := math.Max(20, math.Ceil(math.Sqrt(float64(n))*8))
		p := DefaultParams()
		p.Seed = seed
		p.Agents = n
		p.Width, p.Height = size, size
		p.Jobs = 2 * n
		p.Obstacles = n / 2
		p.Batches = max(1, n/5)
		p.Periodic = max(1, n/10)
		out = append(out, p)
	}
	return out
}

// jobKinds and their nominal durations (mean, stddev) in seconds
var jobKinds = []struct {
	name     string
	duration [2]float64
}{
	{"inspect", [2]float64{20, 3}},
	{"swap", [2]float64{45, 8}},
	{"diagnose", [2]float64{30, 5}},
	{"clean", [2]float64{60, 10}},
}

const (
	agentRadius = 0.3
	clearance   = 1.0 // between generated points and obstacles

	periodicDuration = 10.0
)

type generator struct {
	rng       *rand.Rand
	p         Params
	obstacles [][]Point
}

// Generate builds a scenario from p.
func Generate(p Params) (*File, error) {
	if p.Agents < 1 || p.Width < 8 || p.Height < 8 || p.Jobs < 0 ||
		p.WindowMin < 0 || p.WindowMax < p.WindowMin || p.WindowMax < periodicDuration {
		return nil, fmt.Errorf("%w: generation params %+v", ErrInvalidScenario, p)
	}
	g := &generator{rng: rand.New(rand.NewSource(p.Seed)), p: p}
	f := &File{
		Name: fmt.Sprintf("stsched_%d_%gx%g_%d", p.Agents, p.Width, p.Height, p.Seed),
		Seed: p.Seed,
	}
	f.World.Bounds = []Point{{0, 0}, {p.Width, 0}, {p.Width, p.Height}, {0, p.Height}}

	for range p.Obstacles {
		w, h := 1+g.rng.Float64()*2, 1+g.rng.Float64()*2
		x := 2 + g.rng.Float64()*(p.Width-4-w)
		y := 2 + g.rng.Float64()*(p.Height-4-h)
		g.obstacles = append(g.obstacles, []Point{{x, y}, {x + w, y}, {x + w, y + h}, {x, y + h}})
	}
	f.World.Obstacles = g.obstacles

	var used []geom.Point
	for i := range p.Agents {
		loc, ok := g.freePoint(used)
		if !ok {
			return nil, fmt.Errorf("%w: no room for agent %d", ErrInvalidScenario, i)
		}
		used = append(used, loc)
		f.Agents = append(f.Agents, AgentDef{
			ID:       fmt.Sprintf("agent-%02d", i),
			Radius:   agentRadius,
			MaxSpeed: 1 + g.rng.Float64()*0.5,
			Location: fromGeom(loc),
		})
	}

	for i := range p.Jobs {
		j, err := g.job(fmt.Sprintf("job-%03d", i))
		if err != nil {
			return nil, err
		}
		f.Jobs = append(f.Jobs, j)
	}

	for b := range p.Batches {
		batch := BatchDef{Name: fmt.Sprintf("batch-%02d", b)}
		for i := range 2 + g.rng.Intn(2) {
			j, err := g.job(fmt.Sprintf("step-%d", i))
			if err != nil {
				return nil, err
			}
			if i > 0 {
				j.DependsOn = []string{batch.Jobs[i-1].Name}
				j.Latest = nil
			}
			batch.Jobs = append(batch.Jobs, j)
		}
		f.Batches = append(f.Batches, batch)
	}

	for i := range p.Periodic {
		c, ok := g.freePoint(nil)
		if !ok {
			return nil, fmt.Errorf("%w: no room for periodic job %d", ErrInvalidScenario, i)
		}
		f.Periodic = append(f.Periodic, PeriodicDef{
			Name:         fmt.Sprintf("patrol-%02d", i),
			Region:       []Point{{c.X - 1, c.Y - 1}, {c.X + 1, c.Y - 1}, {c.X + 1, c.Y + 1}, {c.X - 1, c.Y + 1}},
			Start:        math.Round(g.rng.Float64() * p.WindowMin),
			Period:       p.WindowMax,
			Duration:     periodicDuration,
			Repetitions:  3,
			SameLocation: g.rng.Float64() < 0.5,
		})
	}
	return f, nil
}

func (g *generator) job(name string) (JobDef, error) {
	loc, ok := g.freePoint(nil)
	if !ok {
		return JobDef{}, fmt.Errorf("%w: no room for job %s", ErrInvalidScenario, name)
	}
	kind := jobKinds[g.rng.Intn(len(jobKinds))]
	duration := kind.duration[0] + g.rng.NormFloat64()*kind.duration[1]
	duration = math.Round(math.Max(duration, kind.duration[0]*0.5))

	earliest := math.Round(g.rng.Float64() * g.p.WindowMax)
	latest := earliest + g.p.WindowMin + math.Round(g.rng.Float64()*(g.p.WindowMax-g.p.WindowMin))
	p := fromGeom(loc)
	return JobDef{
		Name:     name + "-" + kind.name,
		Location: &p,
		Earliest: earliest,
		Latest:   &latest,
		Duration: duration,
	}, nil
}

// freePoint draws a point clear of obstacles and at least 2m away from
// the used points.
func (g *generator) freePoint(used []geom.Point) (geom.Point, bool) {
	for range 1000 {
		q := geom.Pt(
			math.Round((1+g.rng.Float64()*(g.p.Width-2))*10)/10,
			math.Round((1+g.rng.Float64()*(g.p.Height-2))*10)/10,
		)
		if g.clear(q, used) {
			return q, true
		}
	}
	return geom.Point{}, false
}

func (g *generator) clear(q geom.Point, used []geom.Point) bool {
	for _, o := range g.obstacles {
		poly := polygon(o)
		if poly.Contains(q) || poly.Distance(q) < clearance {
			return false
		}
	}
	for _, u := range used {
		if u.Distance(q) < 2 {
			return false
		}
	}
	return true
}
