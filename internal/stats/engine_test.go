package stats

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "matchset/internal/errors"
	"matchset/pkg/contracts/domain"
)

func gameLog(entity string, values ...float64) []domain.GameRecord {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	records := make([]domain.GameRecord, len(values))
	for i, v := range values {
		date := base.AddDate(0, 0, i)
		records[i] = domain.GameRecord{
			Entity:      entity,
			Date:        date,
			Identifiers: map[string]string{"date": date.Format(time.DateOnly), "home": entity, "away": "opponent"},
			Metrics:     map[string]float64{"pts": v},
		}
	}
	return records
}

func newEngine(t *testing.T, span int) *Engine {
	t.Helper()
	engine, err := NewEngine(domain.Span(span), nil)
	require.NoError(t, err)
	return engine
}

func TestNewEngineRejectsInvalidSpan(t *testing.T) {
	for _, span := range []int{0, -2} {
		_, err := NewEngine(domain.Span(span), nil)
		assert.ErrorIs(t, err, apperrors.ErrInvalidSpan)
	}
}

func TestComputeFourGameSeries(t *testing.T) {
	engine := newEngine(t, 2)

	derived := engine.Compute("utah-jazz", gameLog("utah-jazz", 10, 20, 30, 40))

	// warm-up and lag leave the first two games without defined summaries
	require.Len(t, derived, 2)

	third := derived[0]
	assert.Equal(t, "2024-01-03", third.Identifiers["date"])
	assert.Equal(t, 30.0, third.Metrics["pts"])
	assert.InDelta(t, 15.0, third.Summaries["pts"].SMA, 1e-9)
	assert.InDelta(t, 15.0, third.Summaries["pts"].CMA, 1e-9)
	assert.InDelta(t, 50.0/3.0, third.Summaries["pts"].EMA, 1e-9)

	fourth := derived[1]
	assert.Equal(t, "2024-01-04", fourth.Identifiers["date"])
	assert.Equal(t, 40.0, fourth.Metrics["pts"])
	assert.InDelta(t, 25.0, fourth.Summaries["pts"].SMA, 1e-9)
	assert.InDelta(t, 20.0, fourth.Summaries["pts"].CMA, 1e-9)
	assert.InDelta(t, 230.0/9.0, fourth.Summaries["pts"].EMA, 1e-9)
}

func TestComputeShortSeries(t *testing.T) {
	engine := newEngine(t, 2)

	assert.Empty(t, engine.Compute("utah-jazz", nil))
	assert.Empty(t, engine.Compute("utah-jazz", gameLog("utah-jazz", 10)))
	assert.Empty(t, engine.Compute("utah-jazz", gameLog("utah-jazz", 10, 20)))

	// span+1 games is exactly enough for one derived row
	derived := engine.Compute("utah-jazz", gameLog("utah-jazz", 10, 20, 30))
	require.Len(t, derived, 1)
	assert.InDelta(t, 15.0, derived[0].Summaries["pts"].SMA, 1e-9)
}

func TestComputeSortsByDateBeforeWindowing(t *testing.T) {
	engine := newEngine(t, 2)
	ordered := gameLog("utah-jazz", 10, 20, 30, 40)
	shuffled := []domain.GameRecord{ordered[2], ordered[0], ordered[3], ordered[1]}

	fromOrdered := engine.Compute("utah-jazz", ordered)
	fromShuffled := engine.Compute("utah-jazz", shuffled)

	require.Equal(t, len(fromOrdered), len(fromShuffled))
	for i := range fromOrdered {
		assert.Equal(t, fromOrdered[i].Fingerprint(), fromShuffled[i].Fingerprint())
	}
	// the caller's slice keeps its order
	assert.Equal(t, "2024-01-03", shuffled[0].Identifiers["date"])
}

func TestComputeEqualDatesKeepSourceOrder(t *testing.T) {
	engine := newEngine(t, 1)
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []domain.GameRecord{
		{
			Entity:      "utah-jazz",
			Date:        date,
			Identifiers: map[string]string{"date": "2024-01-01", "home": "utah-jazz", "away": "a"},
			Metrics:     map[string]float64{"pts": 1},
		},
		{
			Entity:      "utah-jazz",
			Date:        date,
			Identifiers: map[string]string{"date": "2024-01-01", "home": "utah-jazz", "away": "b"},
			Metrics:     map[string]float64{"pts": 2},
		},
	}

	derived := engine.Compute("utah-jazz", records)

	require.Len(t, derived, 1)
	// the surviving second game sees only the first game's value
	assert.Equal(t, "b", derived[0].Identifiers["away"])
	assert.InDelta(t, 1.0, derived[0].Summaries["pts"].SMA, 1e-9)
	assert.InDelta(t, 1.0, derived[0].Summaries["pts"].EMA, 1e-9)
}

func TestComputeSummariesIgnoreCurrentGame(t *testing.T) {
	engine := newEngine(t, 2)

	base := engine.Compute("utah-jazz", gameLog("utah-jazz", 10, 20, 30, 40))
	bumped := engine.Compute("utah-jazz", gameLog("utah-jazz", 10, 20, 30, 400))

	require.Len(t, base, 2)
	require.Len(t, bumped, 2)
	last, bumpedLast := base[1], bumped[1]
	assert.NotEqual(t, last.Metrics["pts"], bumpedLast.Metrics["pts"])
	assert.Equal(t, last.Summaries["pts"], bumpedLast.Summaries["pts"])
}

func TestComputeNaNSourceValuePoisonsDependentRows(t *testing.T) {
	engine := newEngine(t, 2)

	derived := engine.Compute("utah-jazz", gameLog("utah-jazz", 10, math.NaN(), 30, 40, 50))

	// the cumulative mean never recovers from a NaN, so no row survives
	assert.Empty(t, derived)
}

func TestComputeDuplicateGamesOccupyWindowPositions(t *testing.T) {
	engine := newEngine(t, 2)
	records := gameLog("utah-jazz", 10, 20, 30)
	records = append(records, records[2])

	derived := engine.Compute("utah-jazz", records)

	// the duplicated game derives two distinct rows (different windows),
	// so both survive the duplicate drop
	require.Len(t, derived, 2)
	assert.InDelta(t, 15.0, derived[0].Summaries["pts"].SMA, 1e-9)
	assert.InDelta(t, 25.0, derived[1].Summaries["pts"].SMA, 1e-9)
}

func TestComputeAll(t *testing.T) {
	engine := newEngine(t, 2)
	logs := map[string][]domain.GameRecord{
		"utah-jazz":      gameLog("utah-jazz", 10, 20, 30, 40),
		"boston-celtics": gameLog("boston-celtics", 5, 15),
	}

	derived, err := engine.ComputeAll(context.Background(), logs)
	require.NoError(t, err)

	require.Len(t, derived, 2)
	assert.Len(t, derived["utah-jazz"], 2)
	assert.Empty(t, derived["boston-celtics"])
}

func TestComputeAllNoEntities(t *testing.T) {
	engine := newEngine(t, 2)

	_, err := engine.ComputeAll(context.Background(), nil)
	assert.ErrorIs(t, err, apperrors.ErrNoEntities)
}

func TestComputeAllCancelled(t *testing.T) {
	engine := newEngine(t, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.ComputeAll(ctx, map[string][]domain.GameRecord{
		"utah-jazz": gameLog("utah-jazz", 10, 20, 30),
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestComputeAllConcurrentMatchesSequential(t *testing.T) {
	logs := make(map[string][]domain.GameRecord)
	for _, entity := range []string{"a", "b", "c", "d", "e", "f"} {
		logs[entity] = gameLog(entity, 10, 20, 30, 40, 50, 60)
	}

	sequential := newEngine(t, 3)
	parallel := newEngine(t, 3)
	parallel.SetConcurrency(4)

	want, err := sequential.ComputeAll(context.Background(), logs)
	require.NoError(t, err)
	got, err := parallel.ComputeAll(context.Background(), logs)
	require.NoError(t, err)

	require.Len(t, got, len(want))
	for entity, table := range want {
		require.Len(t, got[entity], len(table))
		for i := range table {
			assert.Equal(t, table[i].Fingerprint(), got[entity][i].Fingerprint())
		}
	}
}
