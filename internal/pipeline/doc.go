// Package pipeline orchestrates the training-table build as an ordered
// sequence of named steps: load, derive, merge, tag, export.
//
// Each step consumes the artifacts earlier steps stored on the shared run
// state and stores its own output there. The slots are typed, so a mis-wired
// step fails to compile rather than at runtime.
//
// Core components:
//
// Runner: executes the steps in order against one RunState, failing fast on
// the first error and skipping whatever remains. Each run carries a UUID run
// id that travels in the context and is attached to every log record.
//
// Step: one unit of work with an ID, a human-readable name, a light
// precondition check and an Execute method.
//
// RunState: the shared state of one run. Holds the per-step runtime states
// and the typed artifacts flowing between steps (game logs, derived tables,
// matchup rows, output path).
//
// PipelineTracer: OpenTelemetry instrumentation. One span per run, one span
// per step, counters for entities, derived records and matchup rows, and
// duration histograms per run and step.
//
// ProgressReporter: rate-limited progress logging, so per-entity updates
// from large datasets do not flood the log.
//
// Example usage:
//
//	steps := []pipeline.Step{
//		pipeline.NewLoadStep(loader, inputDir, logger, options),
//		pipeline.NewDeriveStep(engine, logger, options),
//		pipeline.NewMergeStep(merger, logger, options),
//		pipeline.NewTagStep(intervals, logger, options),
//		pipeline.NewExportStep(exporter, outputFile, logger, options),
//	}
//	runner := pipeline.NewRunner(steps, tracer, logger)
//	result, err := runner.Run(ctx)
package pipeline
