package pipeline

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchset/internal/dataset"
	apperrors "matchset/internal/errors"
	"matchset/internal/exporter"
	"matchset/internal/merge"
	"matchset/internal/stats"
	"matchset/pkg/contracts/domain"
)

func stateWithStep(id, name string) *RunState {
	state := NewRunState("run")
	state.SetStep(id, NewStepState(id, name))
	return state
}

func syntheticLog(t *testing.T, entity string, games int) []domain.GameRecord {
	t.Helper()
	base := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	records := make([]domain.GameRecord, games)
	for i := range records {
		date := base.AddDate(0, 0, i)
		records[i] = domain.GameRecord{
			Entity: entity,
			Date:   date,
			Identifiers: map[string]string{
				"date": date.Format(time.DateOnly),
				"home": entity,
				"away": "other",
			},
			Metrics: map[string]float64{"pts": float64(100 + i)},
		}
	}
	return records
}

func derivedRow(t *testing.T, entity, date, home, away string, sma float64) domain.DerivedRecord {
	t.Helper()
	d, err := time.Parse(time.DateOnly, date)
	require.NoError(t, err)
	return domain.DerivedRecord{
		Entity:      entity,
		Date:        d,
		Identifiers: map[string]string{"date": date, "home": home, "away": away},
		Metrics:     map[string]float64{"pts": sma * 2},
		Summaries:   map[string]domain.Summaries{"pts": {SMA: sma, CMA: sma, EMA: sma}},
	}
}

func matchupOn(t *testing.T, date string) domain.MatchupRow {
	t.Helper()
	d, err := time.Parse(time.DateOnly, date)
	require.NoError(t, err)
	return domain.MatchupRow{
		Date:        d,
		Identifiers: map[string]string{"date": date, "home": "h", "away": "a"},
	}
}

func TestLoadStepMissingDirectory(t *testing.T) {
	step := NewLoadStep(dataset.NewLoader(runnerFields, nil),
		filepath.Join(t.TempDir(), "absent"), nil, nil)
	state := stateWithStep(StepIDLoad, StepNameLoad)

	err := step.Execute(context.Background(), state)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "discover game logs")
}

func TestLoadStepEmptyDirectory(t *testing.T) {
	step := NewLoadStep(dataset.NewLoader(runnerFields, nil), t.TempDir(), nil, nil)
	state := stateWithStep(StepIDLoad, StepNameLoad)

	err := step.Execute(context.Background(), state)

	assert.ErrorIs(t, err, apperrors.ErrNoEntities)
}

func TestLoadStepRecordsEntityCount(t *testing.T) {
	inputDir := t.TempDir()
	writeSeasonFixture(t, inputDir)
	step := NewLoadStep(dataset.NewLoader(runnerFields, nil), inputDir, nil, nil)
	state := stateWithStep(StepIDLoad, StepNameLoad)

	require.NoError(t, step.Execute(context.Background(), state))

	assert.Len(t, state.GameLogs(), 2)
	assert.Equal(t, 2, state.Step(StepIDLoad).Metadata["entities"])
}

func TestDeriveStepValidateRequiresLogs(t *testing.T) {
	engine, err := stats.NewEngine(1, nil)
	require.NoError(t, err)
	step := NewDeriveStep(engine, nil, nil)

	assert.Error(t, step.Validate(NewRunState("run")))
}

func TestDeriveStepReportsPerEntityProgress(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	engine, err := stats.NewEngine(1, nil)
	require.NoError(t, err)

	step := NewDeriveStep(engine, nil, &StepOptions{
		Progress: NewProgressReporter(1000, 1000, logger),
	})
	state := stateWithStep(StepIDDerive, StepNameDerive)
	state.SetGameLogs(map[string][]domain.GameRecord{
		"alpha": syntheticLog(t, "alpha", 3),
		"beta":  syntheticLog(t, "beta", 3),
	})

	require.NoError(t, step.Execute(context.Background(), state))

	assert.Len(t, state.Derived(), 2)
	assert.Equal(t, 4, state.Step(StepIDDerive).Metadata["derived_rows"])
	assert.Contains(t, buf.String(), "2/2")
}

func TestMergeStepIntegrityFailure(t *testing.T) {
	step := NewMergeStep(merge.NewMerger(runnerFields, nil), nil, nil)
	state := stateWithStep(StepIDMerge, StepNameMerge)
	state.SetDerived(map[string][]domain.DerivedRecord{
		"alpha": {
			derivedRow(t, "alpha", "2024-01-05", "beta", "alpha", 10),
			derivedRow(t, "alpha", "2024-01-05", "beta", "alpha", 11),
		},
	})

	err := step.Execute(context.Background(), state)

	require.Error(t, err)
	assert.True(t, apperrors.IsIntegrityError(err))
}

func TestTagStepCountsTournamentRows(t *testing.T) {
	step := NewTagStep([]domain.TournamentInterval{
		interval(t, "2024-01-02", "2024-01-03"),
	}, nil, nil)
	state := stateWithStep(StepIDTag, StepNameTag)
	state.SetMatchups([]domain.MatchupRow{
		matchupOn(t, "2024-01-01"),
		matchupOn(t, "2024-01-02"),
		matchupOn(t, "2024-01-03"),
	})

	require.NoError(t, step.Execute(context.Background(), state))

	rows := state.Matchups()
	require.Len(t, rows, 3)
	assert.False(t, rows[0].IsTournamentGame)
	assert.True(t, rows[1].IsTournamentGame)
	assert.True(t, rows[2].IsTournamentGame)
	assert.Equal(t, 2, state.Step(StepIDTag).Metadata["tournament_rows"])
}

func TestExportStepValidateRequiresPath(t *testing.T) {
	step := NewExportStep(exporter.NewTrainingExporter(runnerFields, nil), "", nil, nil)

	assert.Error(t, step.Validate(NewRunState("run")))
}
