package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"matchset/internal/infrastructure"
)

// Runner executes pipeline steps in order against a shared run state
type Runner struct {
	steps  []Step
	tracer *PipelineTracer
	logger *slog.Logger
}

// NewRunner creates a runner over the given ordered steps. A nil tracer
// disables telemetry; step and run transitions are still logged.
func NewRunner(steps []Step, tracer *PipelineTracer, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{steps: steps, tracer: tracer, logger: logger}
}

// RunResult summarizes one finished pipeline run
type RunResult struct {
	ID          string
	Status      RunStatus
	Duration    time.Duration
	Steps       map[string]*StepState
	Entities    int
	DerivedRows int
	MatchupRows int
	OutputPath  string
}

// Run executes every step in order, failing fast on the first error. The
// context carries the run id; a fresh one is generated when absent.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	ctx = infrastructure.EnsureRunID(ctx)
	runID := infrastructure.RunIDFromContext(ctx)

	state := NewRunState(runID)
	for _, step := range r.steps {
		state.SetStep(step.ID(), NewStepState(step.ID(), step.Name()))
	}

	var span trace.Span
	if r.tracer != nil {
		ctx, span = r.tracer.TraceRun(ctx, runID)
	}

	state.Start()
	r.logger.InfoContext(ctx, "pipeline run started",
		slog.Int("steps", len(r.steps)))

	err := r.executeSteps(ctx, state)
	switch {
	case err == nil:
		state.Complete()
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		state.Cancel()
	default:
		state.Fail(err)
	}

	totals := state.Totals()
	if r.tracer != nil {
		r.tracer.RecordRunCompletion(ctx, span, runID, state.Duration(), state.Status, totals)
		span.End()
	}

	if err != nil {
		r.logger.ErrorContext(ctx, "pipeline run finished",
			slog.String("status", string(state.Status)),
			slog.Duration("duration", state.Duration()),
			slog.String("error", err.Error()))
	} else {
		r.logger.InfoContext(ctx, "pipeline run finished",
			slog.String("status", string(state.Status)),
			slog.Duration("duration", state.Duration()),
			slog.Int("entities", totals.Entities),
			slog.Int("derived_rows", totals.DerivedRows),
			slog.Int("matchup_rows", totals.MatchupRows))
	}

	return &RunResult{
		ID:          state.ID,
		Status:      state.Status,
		Duration:    state.Duration(),
		Steps:       state.Steps(),
		Entities:    totals.Entities,
		DerivedRows: totals.DerivedRows,
		MatchupRows: totals.MatchupRows,
		OutputPath:  state.OutputPath(),
	}, err
}

// executeSteps runs the steps one by one, skipping the remainder after a
// failure so the result names every step's fate.
func (r *Runner) executeSteps(ctx context.Context, state *RunState) error {
	for i, step := range r.steps {
		select {
		case <-ctx.Done():
			r.skipRemaining(state, i, "run cancelled")
			return fmt.Errorf("run cancelled before step %s: %w", step.ID(), ctx.Err())
		default:
		}

		r.logger.InfoContext(ctx, "executing step",
			slog.String("step", step.ID()),
			slog.Int("step_number", i+1),
			slog.Int("total_steps", len(r.steps)))

		if err := r.executeStep(ctx, state, step); err != nil {
			r.skipRemaining(state, i+1, fmt.Sprintf("step %s failed", step.ID()))
			return err
		}
	}
	return nil
}

// executeStep validates and runs a single step, recording its state
// transitions and telemetry.
func (r *Runner) executeStep(ctx context.Context, state *RunState, step Step) error {
	stepState := state.Step(step.ID())

	if err := step.Validate(state); err != nil {
		stepState.Fail(err)
		return fmt.Errorf("step %s validation: %w", step.ID(), err)
	}

	stepCtx := ctx
	var span trace.Span
	if r.tracer != nil {
		stepCtx, span = r.tracer.TraceStep(ctx, state.ID, step.ID())
	}

	stepState.Start()
	start := time.Now()
	err := step.Execute(stepCtx, state)
	duration := time.Since(start)

	if r.tracer != nil {
		r.tracer.RecordStepCompletion(stepCtx, span, step.ID(), duration, err)
		span.End()
	}

	if err != nil {
		stepState.Fail(err)
		r.logger.ErrorContext(ctx, "step failed",
			slog.String("step", step.ID()),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return fmt.Errorf("step %s: %w", step.ID(), err)
	}

	stepState.Complete()
	r.logger.InfoContext(ctx, "step completed",
		slog.String("step", step.ID()),
		slog.Duration("duration", duration))
	return nil
}

// skipRemaining marks every still-pending step from index on as skipped
func (r *Runner) skipRemaining(state *RunState, from int, reason string) {
	for _, step := range r.steps[from:] {
		stepState := state.Step(step.ID())
		if stepState != nil && stepState.Status == StepStatusPending {
			stepState.Skip(reason)
		}
	}
}
