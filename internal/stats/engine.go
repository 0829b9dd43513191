// Package stats derives lag-1 rolling summaries from entity game logs: the
// windowed statistics stage of the training-table pipeline.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"matchset/internal/dataset"
	apperrors "matchset/internal/errors"
	"matchset/pkg/contracts/domain"
)

// Engine computes the simple, cumulative and exponential moving averages of
// every metric field over a trailing window of span games, shifted by one
// game so each value reflects strictly prior games only.
type Engine struct {
	span        domain.Span
	concurrency int
	progress    func(entity string, done, total int)
	logger      *slog.Logger
}

// NewEngine creates an engine for the given window length.
func NewEngine(span domain.Span, logger *slog.Logger) (*Engine, error) {
	if !span.IsValid() {
		return nil, fmt.Errorf("span %d: %w", span, apperrors.ErrInvalidSpan)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{span: span, concurrency: 1, logger: logger}, nil
}

// SetConcurrency caps how many entities derive in parallel. Entities are
// independent, so any limit is safe; the default of 1 keeps runs sequential.
func (e *Engine) SetConcurrency(n int) {
	if n >= 1 {
		e.concurrency = n
	}
}

// SetProgress installs a callback invoked after each entity finishes
// deriving. The callback must be safe to call from concurrent goroutines.
func (e *Engine) SetProgress(fn func(entity string, done, total int)) {
	e.progress = fn
}

// ComputeAll derives summaries for every entity log, keyed by entity id.
func (e *Engine) ComputeAll(ctx context.Context, logs map[string][]domain.GameRecord) (map[string][]domain.DerivedRecord, error) {
	if len(logs) == 0 {
		return nil, apperrors.ErrNoEntities
	}

	start := time.Now()
	e.logger.InfoContext(ctx, "derivation started",
		"entities", len(logs),
		"span", int(e.span),
		"concurrency", e.concurrency,
	)

	var (
		mu      sync.Mutex
		derived = make(map[string][]domain.DerivedRecord, len(logs))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for entity, records := range logs {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			table := e.Compute(entity, records)
			e.logger.DebugContext(gctx, "entity derived",
				"entity", entity,
				"games", len(records),
				"derived_rows", len(table),
			)

			mu.Lock()
			derived[entity] = table
			done := len(derived)
			mu.Unlock()

			if e.progress != nil {
				e.progress(entity, done, len(logs))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("derive summaries: %w", err)
	}

	total := 0
	for _, table := range derived {
		total += len(table)
	}
	e.logger.InfoContext(ctx, "derivation completed",
		"duration", time.Since(start),
		"entities", len(logs),
		"derived_rows", total,
	)
	return derived, nil
}

// Compute derives the summary table for one entity's log. The input is not
// mutated. A log shorter than span+1 games yields an empty table, never an
// error: the entity simply contributes no matchup rows.
func (e *Engine) Compute(entity string, records []domain.GameRecord) []domain.DerivedRecord {
	if len(records) < int(e.span)+1 {
		return nil
	}

	ordered := slices.Clone(records)
	// ties keep source order
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date.Before(ordered[j].Date)
	})

	derived := make([]domain.DerivedRecord, len(ordered))
	for i, rec := range ordered {
		derived[i] = domain.DerivedRecord{
			Entity:      entity,
			Date:        rec.Date,
			Identifiers: maps.Clone(rec.Identifiers),
			Metrics:     maps.Clone(rec.Metrics),
			Summaries:   make(map[string]domain.Summaries),
		}
	}

	for _, name := range metricFields(ordered) {
		series := seriesOf(ordered, name)
		sma := lagOne(rollingMean(series, int(e.span)))
		cma := lagOne(expandingMean(series, int(e.span)))
		ema := lagOne(exponentialMean(series, e.span.Alpha()))
		for i := range derived {
			derived[i].Summaries[name] = domain.Summaries{SMA: sma[i], CMA: cma[i], EMA: ema[i]}
		}
	}

	// one shared cleaning pass: warm-up rows carry NaN summaries and fall
	// out here, as does any row poisoned by a NaN source value
	return dataset.Clean(derived)
}

// metricFields returns the union of metric names across the log, sorted.
func metricFields(records []domain.GameRecord) []string {
	set := make(map[string]struct{})
	for _, rec := range records {
		for name := range rec.Metrics {
			set[name] = struct{}{}
		}
	}
	fields := make([]string, 0, len(set))
	for name := range set {
		fields = append(fields, name)
	}
	slices.Sort(fields)
	return fields
}

// seriesOf extracts one metric column. A record without the field yields
// NaN, which propagates through the kernels and drops the affected rows.
func seriesOf(records []domain.GameRecord, name string) []float64 {
	series := make([]float64, len(records))
	for i, rec := range records {
		if value, ok := rec.Metrics[name]; ok {
			series[i] = value
		} else {
			series[i] = math.NaN()
		}
	}
	return series
}

// rollingMean is the trailing-window mean: NaN until span values are
// available, then the arithmetic mean of the last span values.
func rollingMean(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		if i+1 < span {
			out[i] = math.NaN()
			continue
		}
		out[i] = stat.Mean(values[i+1-span:i+1], nil)
	}
	return out
}

// expandingMean is the mean of values[0..i], emitted only once span values
// have been observed.
func expandingMean(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i+1 < span {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(i+1)
	}
	return out
}

// exponentialMean applies EMA[i] = alpha*value[i] + (1-alpha)*EMA[i-1] with
// EMA[0] = value[0], so it is defined from the first record.
func exponentialMean(values []float64, alpha float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if i == 0 {
			out[i] = v
			continue
		}
		out[i] = alpha*v + (1-alpha)*out[i-1]
	}
	return out
}

// lagOne shifts values one position later so position i reflects only
// strictly prior data; position 0 becomes NaN.
func lagOne(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(out) == 0 {
		return out
	}
	out[0] = math.NaN()
	copy(out[1:], values[:len(values)-1])
	return out
}
