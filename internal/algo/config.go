// Package algo places jobs on agents: location and idle-slot search, the
// single-job planner and the dependent, periodic and removal planners built
// on it.
package algo

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/elektrokombinacija/stsched/internal/core"
	"github.com/elektrokombinacija/stsched/internal/logging"
	"github.com/elektrokombinacija/stsched/internal/motion"
)

// SlotOrder decides which (agent, idle slot) candidate is tried first.
type SlotOrder int

const (
	// LeastSlackFirst tries the tightest start window first, then the
	// nearest agent.
	LeastSlackFirst SlotOrder = iota
	// EarliestStartFirst tries the candidate with the earliest estimated
	// arrival first.
	EarliestStartFirst
)

func (o SlotOrder) String() string {
	switch o {
	case LeastSlackFirst:
		return "least-slack"
	case EarliestStartFirst:
		return "earliest-start"
	}
	return fmt.Sprintf("SlotOrder(%d)", int(o))
}

// ParseSlotOrder converts a policy name to a SlotOrder.
func ParseSlotOrder(s string) (SlotOrder, error) {
	switch strings.ToLower(s) {
	case "", "least-slack":
		return LeastSlackFirst, nil
	case "earliest-start":
		return EarliestStartFirst, nil
	}
	return 0, fmt.Errorf("%w: unknown slot order %q", core.ErrInvalidArgument, s)
}

// Config configures the planners. It is validated once by NewPlanner and
// not changed afterwards.
type Config struct {
	// MaxLocationPicks bounds the candidate locations tried per job when
	// the job may happen anywhere in a region.
	MaxLocationPicks int
	// DependencyMargin is the minimum time between a job's finish and the
	// start of a job depending on it (seconds).
	DependencyMargin float64
	// Order ranks idle-slot candidates.
	Order SlotOrder

	Spatial  motion.SpatialPathfinder
	Velocity motion.VelocityPathfinder
	Logger   *slog.Logger
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		MaxLocationPicks: 16,
		DependencyMargin: 0,
		Order:            LeastSlackFirst,
		Spatial:          motion.NewVisibilityGraph(),
		Velocity:         motion.NewDelaySearch(0.25, 400),
	}
}

func (c Config) validate() error {
	switch {
	case c.MaxLocationPicks < 1:
		return fmt.Errorf("%w: max location picks %d must be positive", core.ErrInvalidArgument, c.MaxLocationPicks)
	case !(c.DependencyMargin >= 0):
		return fmt.Errorf("%w: dependency margin %g must not be negative", core.ErrInvalidArgument, c.DependencyMargin)
	case c.Order != LeastSlackFirst && c.Order != EarliestStartFirst:
		return fmt.Errorf("%w: %v", core.ErrInvalidArgument, c.Order)
	case c.Spatial == nil:
		return fmt.Errorf("%w: spatial pathfinder is required", core.ErrInvalidArgument)
	case c.Velocity == nil:
		return fmt.Errorf("%w: velocity pathfinder is required", core.ErrInvalidArgument)
	}
	return nil
}

func (c Config) logger() *slog.Logger {
	return logging.Component(c.Logger, "planner")
}
