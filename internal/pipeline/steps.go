package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"matchset/internal/dataset"
	apperrors "matchset/internal/errors"
	"matchset/internal/exporter"
	"matchset/internal/merge"
	"matchset/internal/stats"
	"matchset/internal/tournament"
	"matchset/pkg/contracts/domain"
)

// Pipeline step identifiers
const (
	StepIDLoad   = "load"
	StepIDDerive = "derive"
	StepIDMerge  = "merge"
	StepIDTag    = "tag"
	StepIDExport = "export"
)

// Pipeline step names
const (
	StepNameLoad   = "Game Log Loading"
	StepNameDerive = "Summary Derivation"
	StepNameMerge  = "Perspective Merge"
	StepNameTag    = "Tournament Tagging"
	StepNameExport = "Training Table Export"
)

// StepOptions carries the optional collaborators shared by the steps
type StepOptions struct {
	Progress *ProgressReporter
}

// LoadStep reads every entity game log under the input directory into the
// run state. It owns the per-file loop so progress reports file by file.
type LoadStep struct {
	BaseStep
	loader   *dataset.Loader
	inputDir string
	logger   *slog.Logger
	options  *StepOptions
}

// NewLoadStep creates the game log loading step
func NewLoadStep(loader *dataset.Loader, inputDir string, logger *slog.Logger, options *StepOptions) *LoadStep {
	if logger == nil {
		logger = slog.Default()
	}
	if options == nil {
		options = &StepOptions{}
	}
	return &LoadStep{
		BaseStep: NewBaseStep(StepIDLoad, StepNameLoad),
		loader:   loader,
		inputDir: inputDir,
		logger:   logger.With(slog.String("step", StepIDLoad)),
		options:  options,
	}
}

// Validate checks that an input directory is configured
func (s *LoadStep) Validate(state *RunState) error {
	if s.inputDir == "" {
		return fmt.Errorf("input directory not configured")
	}
	return nil
}

// Execute discovers and parses the game logs
func (s *LoadStep) Execute(ctx context.Context, state *RunState) error {
	stepState := state.Step(s.ID())
	reportProgress(ctx, s.options, stepState, s.ID(), 0, "Discovering game logs")

	sources, err := dataset.Discover(s.inputDir)
	if err != nil {
		return fmt.Errorf("discover game logs: %w", err)
	}
	if len(sources) == 0 {
		return fmt.Errorf("%s: %w", s.inputDir, apperrors.ErrNoEntities)
	}

	logs := make(map[string][]domain.GameRecord, len(sources))
	for i, src := range sources {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		records, err := s.loader.LoadFile(ctx, src)
		if err != nil {
			return err
		}
		logs[src.Entity] = records

		reportProgress(ctx, s.options, stepState, s.ID(), percentOf(i+1, len(sources)),
			fmt.Sprintf("Loaded %s (%d games)", src.Entity, len(records)))
	}

	state.SetGameLogs(logs)
	stepState.Metadata["entities"] = len(logs)

	s.logger.InfoContext(ctx, "game logs loaded",
		slog.String("input_dir", s.inputDir),
		slog.Int("entities", len(logs)))
	return nil
}

// DeriveStep runs the windowed statistics engine over every loaded log
type DeriveStep struct {
	BaseStep
	engine  *stats.Engine
	logger  *slog.Logger
	options *StepOptions
}

// NewDeriveStep creates the summary derivation step
func NewDeriveStep(engine *stats.Engine, logger *slog.Logger, options *StepOptions) *DeriveStep {
	if logger == nil {
		logger = slog.Default()
	}
	if options == nil {
		options = &StepOptions{}
	}
	return &DeriveStep{
		BaseStep: NewBaseStep(StepIDDerive, StepNameDerive),
		engine:   engine,
		logger:   logger.With(slog.String("step", StepIDDerive)),
		options:  options,
	}
}

// Validate checks that game logs were loaded
func (s *DeriveStep) Validate(state *RunState) error {
	if len(state.GameLogs()) == 0 {
		return fmt.Errorf("no game logs in run state")
	}
	return nil
}

// Execute derives the per-entity summary tables
func (s *DeriveStep) Execute(ctx context.Context, state *RunState) error {
	stepState := state.Step(s.ID())
	logs := state.GameLogs()
	reportProgress(ctx, s.options, stepState, s.ID(), 0,
		fmt.Sprintf("Deriving summaries for %d entities", len(logs)))

	s.engine.SetProgress(func(entity string, done, total int) {
		reportProgress(ctx, s.options, stepState, s.ID(), percentOf(done, total),
			fmt.Sprintf("Derived %s (%d/%d)", entity, done, total))
	})

	derived, err := s.engine.ComputeAll(ctx, logs)
	if err != nil {
		return err
	}

	rows := 0
	for _, table := range derived {
		rows += len(table)
	}
	state.SetDerived(derived)
	stepState.Metadata["derived_rows"] = rows
	return nil
}

// MergeStep joins each game's away and home perspectives into matchup rows
type MergeStep struct {
	BaseStep
	merger  *merge.Merger
	logger  *slog.Logger
	options *StepOptions
}

// NewMergeStep creates the perspective merge step
func NewMergeStep(merger *merge.Merger, logger *slog.Logger, options *StepOptions) *MergeStep {
	if logger == nil {
		logger = slog.Default()
	}
	if options == nil {
		options = &StepOptions{}
	}
	return &MergeStep{
		BaseStep: NewBaseStep(StepIDMerge, StepNameMerge),
		merger:   merger,
		logger:   logger.With(slog.String("step", StepIDMerge)),
		options:  options,
	}
}

// Validate checks that derived tables are present
func (s *MergeStep) Validate(state *RunState) error {
	if state.Derived() == nil {
		return fmt.Errorf("no derived tables in run state")
	}
	return nil
}

// Execute builds the matchup table
func (s *MergeStep) Execute(ctx context.Context, state *RunState) error {
	stepState := state.Step(s.ID())
	derived := state.Derived()
	reportProgress(ctx, s.options, stepState, s.ID(), 0,
		fmt.Sprintf("Merging perspectives across %d entities", len(derived)))

	rows, err := s.merger.Merge(ctx, derived)
	if err != nil {
		return fmt.Errorf("merge perspectives: %w", err)
	}

	state.SetMatchups(rows)
	stepState.Metadata["matchups"] = len(rows)
	return nil
}

// TagStep flags the matchup rows falling inside a tournament window
type TagStep struct {
	BaseStep
	intervals []domain.TournamentInterval
	logger    *slog.Logger
	options   *StepOptions
}

// NewTagStep creates the tournament tagging step
func NewTagStep(intervals []domain.TournamentInterval, logger *slog.Logger, options *StepOptions) *TagStep {
	if logger == nil {
		logger = slog.Default()
	}
	if options == nil {
		options = &StepOptions{}
	}
	return &TagStep{
		BaseStep:  NewBaseStep(StepIDTag, StepNameTag),
		intervals: intervals,
		logger:    logger.With(slog.String("step", StepIDTag)),
		options:   options,
	}
}

// Execute tags the matchup table against the configured intervals
func (s *TagStep) Execute(ctx context.Context, state *RunState) error {
	stepState := state.Step(s.ID())
	rows := state.Matchups()
	reportProgress(ctx, s.options, stepState, s.ID(), 0,
		fmt.Sprintf("Tagging %d matchups against %d tournament windows", len(rows), len(s.intervals)))

	tagged := tournament.Tag(rows, s.intervals)

	count := 0
	for _, row := range tagged {
		if row.IsTournamentGame {
			count++
		}
	}
	state.SetMatchups(tagged)
	stepState.Metadata["tournament_rows"] = count

	s.logger.InfoContext(ctx, "tournament games tagged",
		slog.Int("matchups", len(tagged)),
		slog.Int("tournament_rows", count),
		slog.Int("intervals", len(s.intervals)))
	return nil
}

// ExportStep writes the finished training table to the output file
type ExportStep struct {
	BaseStep
	exporter   *exporter.TrainingExporter
	outputPath string
	logger     *slog.Logger
	options    *StepOptions
}

// NewExportStep creates the training table export step
func NewExportStep(exporter *exporter.TrainingExporter, outputPath string, logger *slog.Logger, options *StepOptions) *ExportStep {
	if logger == nil {
		logger = slog.Default()
	}
	if options == nil {
		options = &StepOptions{}
	}
	return &ExportStep{
		BaseStep:   NewBaseStep(StepIDExport, StepNameExport),
		exporter:   exporter,
		outputPath: outputPath,
		logger:     logger.With(slog.String("step", StepIDExport)),
		options:    options,
	}
}

// Validate checks that an output path is configured
func (s *ExportStep) Validate(state *RunState) error {
	if s.outputPath == "" {
		return fmt.Errorf("output path not configured")
	}
	return nil
}

// Execute writes the matchup table as CSV
func (s *ExportStep) Execute(ctx context.Context, state *RunState) error {
	stepState := state.Step(s.ID())
	rows := state.Matchups()
	reportProgress(ctx, s.options, stepState, s.ID(), 0,
		fmt.Sprintf("Writing %d matchup rows", len(rows)))

	if err := s.exporter.Export(ctx, rows, s.outputPath); err != nil {
		return err
	}

	state.SetOutputPath(s.outputPath)
	stepState.Metadata["output_path"] = s.outputPath
	stepState.Metadata["rows"] = len(rows)

	reportProgress(ctx, s.options, stepState, s.ID(), 100,
		fmt.Sprintf("Wrote %d rows to %s", len(rows), s.outputPath))
	return nil
}
