package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	apperrors "matchset/internal/errors"
	"matchset/pkg/contracts/domain"
)

// TrainingExporter renders the matchup table into the flat column layout a
// model-training notebook expects: identifier columns, one block of raw and
// summary columns per side and metric, and the tournament flag.
type TrainingExporter struct {
	identifierFields []string
	csvWriter        *CSVWriter
	logger           *slog.Logger
}

// NewTrainingExporter creates an exporter whose identifier columns appear in
// the given order.
func NewTrainingExporter(identifierFields []string, logger *slog.Logger) *TrainingExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrainingExporter{
		identifierFields: identifierFields,
		csvWriter:        NewCSVWriter(logger),
		logger:           logger,
	}
}

// Export writes the training table to path. An empty table is an error: a
// training file holding only a header row is never what the caller wants.
func (e *TrainingExporter) Export(ctx context.Context, rows []domain.MatchupRow, path string) error {
	if len(rows) == 0 {
		return fmt.Errorf("export training table: %w", apperrors.ErrEmptyTable)
	}

	start := time.Now()
	metrics := MetricNames(rows)
	headers := e.Columns(metrics)

	stream, err := e.csvWriter.CreateStreamWriter(path, headers, true)
	if err != nil {
		return err
	}
	for i, row := range rows {
		if err := stream.WriteRecord(renderRow(row, e.identifierFields, metrics)); err != nil {
			stream.Abort()
			return fmt.Errorf("write matchup row %d: %w", i, err)
		}
	}
	if err := stream.Close(); err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "training table exported",
		"path", path,
		"rows", len(rows),
		"columns", len(headers),
		"duration", time.Since(start),
	)
	return nil
}

// Columns returns the header layout for the given metric fields.
func (e *TrainingExporter) Columns(metrics []string) []string {
	columns := make([]string, 0, len(e.identifierFields)+8*len(metrics)+1)
	columns = append(columns, e.identifierFields...)
	for _, side := range []string{"home", "away"} {
		for _, metric := range metrics {
			columns = append(columns, side+"_"+metric)
			for _, kind := range domain.SummaryKinds() {
				columns = append(columns, side+"_"+metric+"_"+string(kind))
			}
		}
	}
	columns = append(columns, "is_tournament_game")
	return columns
}

// MetricNames returns the sorted union of metric fields across both sides of
// every row.
func MetricNames(rows []domain.MatchupRow) []string {
	set := make(map[string]struct{})
	for _, row := range rows {
		for _, side := range []domain.SideStats{row.Home, row.Away} {
			for name := range side.Metrics {
				set[name] = struct{}{}
			}
			for name := range side.Summaries {
				set[name] = struct{}{}
			}
		}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func renderRow(row domain.MatchupRow, identifierFields, metrics []string) []string {
	record := make([]string, 0, len(identifierFields)+8*len(metrics)+1)
	for _, field := range identifierFields {
		record = append(record, row.Identifiers[field])
	}
	for _, side := range []domain.SideStats{row.Home, row.Away} {
		for _, metric := range metrics {
			record = append(record, renderSide(side, metric)...)
		}
	}
	return append(record, formatBool(row.IsTournamentGame))
}

// renderSide renders one side's cells for one metric: the raw value followed
// by the summary triple. A metric the side never logged renders empty.
func renderSide(side domain.SideStats, metric string) []string {
	cells := make([]string, 0, 4)
	if value, ok := side.Metrics[metric]; ok {
		cells = append(cells, formatValue(value))
	} else {
		cells = append(cells, "")
	}
	summaries, ok := side.Summaries[metric]
	for _, kind := range domain.SummaryKinds() {
		if !ok {
			cells = append(cells, "")
			continue
		}
		cells = append(cells, formatValue(summaries.Get(kind)))
	}
	return cells
}
