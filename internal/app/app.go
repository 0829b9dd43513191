package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"matchset/internal/config"
	"matchset/internal/dataset"
	"matchset/internal/exporter"
	"matchset/internal/infrastructure"
	"matchset/internal/merge"
	"matchset/internal/pipeline"
	"matchset/internal/stats"
)

// Version is stamped into startup logs and the run summary
const Version = "1.0.0"

// Progress logging is throttled so large datasets do not flood the log
const (
	progressLogRate  = 4.0
	progressLogBurst = 8
)

const shutdownTimeout = 10 * time.Second

// Application is the dependency container for one pipeline process
type Application struct {
	Config    *config.Config
	Logger    *slog.Logger
	Telemetry *infrastructure.TelemetryProviders
	Runner    *pipeline.Runner
}

// NewApplication creates an application from the default configuration
// sources (config file plus MATCHSET_* environment variables).
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return NewApplicationWithConfig(cfg)
}

// NewApplicationWithConfig wires logging, telemetry and the pipeline from
// an explicit configuration.
func NewApplicationWithConfig(cfg *config.Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Application starting",
		slog.String("name", infrastructure.ServiceName),
		slog.String("version", Version),
		slog.String("input_dir", cfg.Paths.InputDir),
		slog.String("output_file", cfg.Paths.OutputFile))

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	providers, err := infrastructure.InitializeTelemetry(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	tracer, err := pipeline.NewPipelineTracer(providers)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize pipeline tracer: %w", err)
	}

	app := &Application{
		Config:    cfg,
		Logger:    logger,
		Telemetry: providers,
	}

	if err := app.initializePipeline(tracer); err != nil {
		return nil, fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	return app, nil
}

// initializePipeline assembles the five pipeline steps in execution order
func (a *Application) initializePipeline(tracer *pipeline.PipelineTracer) error {
	engine, err := stats.NewEngine(a.Config.Span(), a.Logger)
	if err != nil {
		return err
	}
	engine.SetConcurrency(a.Config.Pipeline.Concurrency)

	intervals, err := a.Config.Tournament.Parse()
	if err != nil {
		return err
	}

	fields := a.Config.Pipeline.IdentifierFields
	options := &pipeline.StepOptions{
		Progress: pipeline.NewProgressReporter(progressLogRate, progressLogBurst, a.Logger),
	}

	steps := []pipeline.Step{
		pipeline.NewLoadStep(dataset.NewLoader(fields, a.Logger), a.Config.Paths.InputDir, a.Logger, options),
		pipeline.NewDeriveStep(engine, a.Logger, options),
		pipeline.NewMergeStep(merge.NewMerger(fields, a.Logger), a.Logger, options),
		pipeline.NewTagStep(intervals, a.Logger, options),
		pipeline.NewExportStep(exporter.NewTrainingExporter(fields, a.Logger), a.Config.Paths.OutputFile, a.Logger, options),
	}

	a.Runner = pipeline.NewRunner(steps, tracer, a.Logger)
	return nil
}

// Run executes the pipeline once and returns its result. The result is
// populated even when the run fails so callers can report step status.
func (a *Application) Run(ctx context.Context) (*pipeline.RunResult, error) {
	return a.Runner.Run(ctx)
}

// Shutdown flushes telemetry and closes the log file. Pass a fresh
// context; the run context is usually already cancelled by the time
// shutdown begins.
func (a *Application) Shutdown(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var errs []error

	if a.Telemetry != nil {
		if err := a.Telemetry.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
		}
	}

	if err := infrastructure.CloseLogFile(); err != nil {
		errs = append(errs, fmt.Errorf("close log file: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}
