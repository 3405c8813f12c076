// Package config loads the YAML configuration of the scheduler binaries.
package config

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/elektrokombinacija/stsched/internal/algo"
	"github.com/elektrokombinacija/stsched/internal/logging"
	"github.com/elektrokombinacija/stsched/internal/motion"
)

// Config is the top-level configuration file.
type Config struct {
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Motion    MotionConfig    `yaml:"motion"`
	Logging   LoggingConfig   `yaml:"logging"`
	Server    ServerConfig    `yaml:"server"`
}

type SchedulerConfig struct {
	MaxLocationPicks      int     `yaml:"max_location_picks"`
	DependencyMargin      float64 `yaml:"dependency_margin"`      // seconds
	SlotOrder             string  `yaml:"slot_order"`             // least-slack, earliest-start
	FrozenHorizonDuration float64 `yaml:"frozen_horizon_duration"` // seconds ahead of the present time
}

type MotionConfig struct {
	DelayStep float64 `yaml:"delay_step"` // departure delay increment (seconds)
	MaxDelays int     `yaml:"max_delays"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Scheduler: SchedulerConfig{
			MaxLocationPicks: 16,
			SlotOrder:        algo.LeastSlackFirst.String(),
		},
		Motion: MotionConfig{
			DelayStep: 0.25,
			MaxDelays: 400,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 5 * time.Second,
		},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var ve ValidationErrors
	if c.Scheduler.MaxLocationPicks < 1 {
		ve.Add("scheduler.max_location_picks", "must be positive")
	}
	if !nonNegative(c.Scheduler.DependencyMargin) {
		ve.Add("scheduler.dependency_margin", "must be a non-negative number")
	}
	if _, err := algo.ParseSlotOrder(c.Scheduler.SlotOrder); err != nil {
		ve.Add("scheduler.slot_order", fmt.Sprintf("unknown policy %q", c.Scheduler.SlotOrder))
	}
	if !nonNegative(c.Scheduler.FrozenHorizonDuration) {
		ve.Add("scheduler.frozen_horizon_duration", "must be a non-negative number")
	}
	if !(c.Motion.DelayStep > 0) || math.IsInf(c.Motion.DelayStep, 1) {
		ve.Add("motion.delay_step", "must be positive")
	}
	if c.Motion.MaxDelays < 1 {
		ve.Add("motion.max_delays", "must be positive")
	}
	if !logging.ValidFormat(c.Logging.Format) {
		ve.Add("logging.format", fmt.Sprintf("unknown format %q", c.Logging.Format))
	}
	if c.Server.Addr == "" {
		ve.Add("server.addr", "is required")
	}
	if c.Server.ShutdownTimeout < 0 {
		ve.Add("server.shutdown_timeout", "must not be negative")
	}
	if ve.HasErrors() {
		return &ve
	}
	return nil
}

func nonNegative(v float64) bool {
	return v >= 0 && !math.IsInf(v, 1)
}

// Planner converts the scheduler and motion sections to a planner
// configuration.
func (c Config) Planner(logger *slog.Logger) (algo.Config, error) {
	order, err := algo.ParseSlotOrder(c.Scheduler.SlotOrder)
	if err != nil {
		return algo.Config{}, err
	}
	cfg := algo.DefaultConfig()
	cfg.MaxLocationPicks = c.Scheduler.MaxLocationPicks
	cfg.DependencyMargin = c.Scheduler.DependencyMargin
	cfg.Order = order
	cfg.Velocity = motion.NewDelaySearch(c.Motion.DelayStep, c.Motion.MaxDelays)
	cfg.Logger = logger
	return cfg, nil
}

// Logger builds the logger described by the logging section.
func (c LoggingConfig) Logger() *slog.Logger {
	return logging.NewLogger(logging.ParseLevel(c.Level), c.Format)
}
