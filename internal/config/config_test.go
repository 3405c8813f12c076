package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/stsched/internal/algo"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDefault_IsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stsched.yaml")
	writeFile(t, path, `
scheduler:
  dependency_margin: 1.5
  slot_order: earliest-start
  frozen_horizon_duration: 10
server:
  shutdown_timeout: 2s
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1.5, cfg.Scheduler.DependencyMargin)
	assert.Equal(t, "earliest-start", cfg.Scheduler.SlotOrder)
	assert.Equal(t, 10.0, cfg.Scheduler.FrozenHorizonDuration)
	assert.Equal(t, 2*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 16, cfg.Scheduler.MaxLocationPicks, "default kept")
	assert.Equal(t, ":8080", cfg.Server.Addr, "default kept")
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.yaml")
	writeFile(t, bad, "scheduler: [")
	_, err = Load(bad)
	assert.Error(t, err)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Scheduler.MaxLocationPicks = 0
	cfg.Scheduler.SlotOrder = "random"
	cfg.Scheduler.FrozenHorizonDuration = -1
	cfg.Motion.DelayStep = 0
	cfg.Logging.Format = "xml"
	cfg.Server.Addr = ""

	err := cfg.Validate()
	var ve *ValidationErrors
	require.True(t, errors.As(err, &ve))

	var fields []string
	for _, e := range ve.Errors {
		fields = append(fields, e.FieldPath)
	}
	assert.Equal(t, []string{
		"scheduler.max_location_picks",
		"scheduler.slot_order",
		"scheduler.frozen_horizon_duration",
		"motion.delay_step",
		"logging.format",
		"server.addr",
	}, fields)
	assert.Contains(t, ve.FormatStderr(), "error: server.addr: is required\n")
}

func TestConfig_Planner(t *testing.T) {
	cfg := Default()
	cfg.Scheduler.SlotOrder = "earliest-start"
	cfg.Scheduler.DependencyMargin = 3

	pc, err := cfg.Planner(nil)
	require.NoError(t, err)
	assert.Equal(t, algo.EarliestStartFirst, pc.Order)
	assert.Equal(t, 3.0, pc.DependencyMargin)
	assert.NotNil(t, pc.Velocity)
	assert.NotNil(t, pc.Spatial)
}

func TestWatch_Reloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stsched.yaml")
	writeFile(t, path, "scheduler:\n  frozen_horizon_duration: 1\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(cfg Config, err error) {
			// a write may be observed before it completes
			if err != nil || cfg.Scheduler.FrozenHorizonDuration != 7 {
				return
			}
			select {
			case got <- cfg:
			default:
			}
		})
	}()

	// the watcher may not be registered yet; rewrite until noticed
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case cfg := <-got:
			assert.Equal(t, 7.0, cfg.Scheduler.FrozenHorizonDuration)
			cancel()
			require.NoError(t, <-done)
			return
		case <-tick.C:
			writeFile(t, path, "scheduler:\n  frozen_horizon_duration: 7\n")
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}
