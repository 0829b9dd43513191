// Package exporter writes the training table produced by the pipeline.
//
// This package contains two main components:
//
// CSVWriter: core CSV writing with UTF-8 BOM for spreadsheet compatibility.
// Rows stream to a temporary file that is renamed into place after a clean
// flush, so a failed run never leaves a truncated table behind.
//
// TrainingExporter: flattens matchup rows into the fixed column layout of
// the training table (identifiers, per-side raw metrics and summary
// triples, tournament flag) and writes them through the CSVWriter.
//
// Example usage:
//
//	exp := exporter.NewTrainingExporter([]string{"date", "home", "away"}, logger)
//	if err := exp.Export(ctx, rows, "data/training/matchups.csv"); err != nil {
//	    return err
//	}
//
// Exporting an empty table fails with ErrEmptyTable rather than writing a
// header-only file.
package exporter
