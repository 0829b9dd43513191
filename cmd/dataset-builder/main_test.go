package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchset/internal/config"
	"matchset/internal/pipeline"
)

func completedStep(id, name string, metadata map[string]any) *pipeline.StepState {
	step := pipeline.NewStepState(id, name)
	step.Start()
	step.Complete()
	for k, v := range metadata {
		step.Metadata[k] = v
	}
	return step
}

func TestApplyOverrides(t *testing.T) {
	cfg := config.Default()

	applyOverrides(cfg, "in", "out.csv", 5)

	assert.Equal(t, "in", cfg.Paths.InputDir)
	assert.Equal(t, "out.csv", cfg.Paths.OutputFile)
	assert.Equal(t, 5, cfg.Pipeline.Span)
}

func TestApplyOverridesKeepsConfigWhenFlagsUnset(t *testing.T) {
	cfg := config.Default()
	want := *cfg

	applyOverrides(cfg, "", "", 0)

	assert.Equal(t, want.Paths, cfg.Paths)
	assert.Equal(t, want.Pipeline.Span, cfg.Pipeline.Span)
}

func TestLoadConfigExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  span: 3\n"), 0644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Pipeline.Span)
}

func TestStepDetail(t *testing.T) {
	t.Run("completed step lists counts", func(t *testing.T) {
		step := completedStep(pipeline.StepIDLoad, pipeline.StepNameLoad, map[string]any{"entities": 2})
		assert.Equal(t, "entities=2", stepDetail(step))
	})

	t.Run("failed step shows the error", func(t *testing.T) {
		step := pipeline.NewStepState(pipeline.StepIDLoad, pipeline.StepNameLoad)
		step.Start()
		step.Fail(errors.New("no game logs"))
		assert.Equal(t, "no game logs", stepDetail(step))
	})

	t.Run("skipped step shows the reason", func(t *testing.T) {
		step := pipeline.NewStepState(pipeline.StepIDMerge, pipeline.StepNameMerge)
		step.Skip("step derive failed")
		assert.Equal(t, "step derive failed", stepDetail(step))
	})
}

func TestStepDurationPlaceholderForSkipped(t *testing.T) {
	step := pipeline.NewStepState(pipeline.StepIDTag, pipeline.StepNameTag)
	step.Skip("run cancelled")

	assert.Equal(t, "—", stepDuration(step))
}

func TestPrintRunSummary(t *testing.T) {
	result := &pipeline.RunResult{
		ID:       "run-1",
		Status:   pipeline.RunStatusCompleted,
		Duration: 1500 * time.Millisecond,
		Steps: map[string]*pipeline.StepState{
			pipeline.StepIDLoad:   completedStep(pipeline.StepIDLoad, pipeline.StepNameLoad, map[string]any{"entities": 2}),
			pipeline.StepIDDerive: completedStep(pipeline.StepIDDerive, pipeline.StepNameDerive, map[string]any{"derived_rows": 4}),
		},
		Entities:    2,
		DerivedRows: 4,
		MatchupRows: 2,
		OutputPath:  "out.csv",
	}

	var buf bytes.Buffer
	printRunSummary(&buf, result)

	out := buf.String()
	assert.Contains(t, out, "Run: run-1")
	assert.Contains(t, out, pipeline.StepNameLoad)
	assert.Contains(t, out, "entities=2")
	assert.Contains(t, out, "Entities: 2  |  Derived rows: 4  |  Matchup rows: 2")
}
