package sim

import (
	"encoding/json"
	"math"
	"os"

	"github.com/elektrokombinacija/stsched/internal/core"
)

// Metrics summarizes a committed schedule.
type Metrics struct {
	Agents int `json:"agents"`
	Jobs   int `json:"jobs"`

	// Makespan is the latest job finish, 0 without jobs.
	Makespan float64 `json:"makespan"`
	// BusyTime is the summed job duration.
	BusyTime float64 `json:"busy_time"`
	// Utilization is BusyTime over the agents' time from their initial time
	// to the makespan.
	Utilization float64 `json:"utilization"`
	// TravelDistance is the summed length of all committed movements.
	TravelDistance float64 `json:"travel_distance"`
	// MaxIdleGap is the longest idle stretch between two jobs of one agent.
	MaxIdleGap float64 `json:"max_idle_gap"`

	PlanningAttempts  int     `json:"planning_attempts,omitempty"`
	PlanningSuccesses int     `json:"planning_successes,omitempty"`
	PlanningTimeMs    float64 `json:"planning_time_ms,omitempty"`

	Violations []string `json:"violations,omitempty"`
}

// Collect computes the schedule part of the metrics.
func Collect(s *core.Schedule) Metrics {
	var m Metrics
	agents := s.Agents()
	m.Agents = len(agents)
	for _, a := range agents {
		jobs := a.Jobs()
		m.Jobs += len(jobs)
		for i, j := range jobs {
			m.BusyTime += j.Duration()
			m.Makespan = math.Max(m.Makespan, j.FinishTime())
			if i > 0 {
				m.MaxIdleGap = math.Max(m.MaxIdleGap, j.StartTime()-jobs[i-1].FinishTime())
			}
		}
		for _, tr := range a.Trajectories().Trajectories() {
			m.TravelDistance += tr.Length()
		}
	}

	var available float64
	for _, a := range agents {
		available += math.Max(0, m.Makespan-a.InitialTime())
	}
	if available > 0 {
		m.Utilization = m.BusyTime / available
	}
	return m
}

// ExportMetrics writes m as indented JSON.
func ExportMetrics(path string, m Metrics) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
