package dataset

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	apperrors "matchset/internal/errors"
	"matchset/pkg/contracts/domain"
)

// dateFormats lists the accepted date renderings, ISO first. Workbook
// exports sometimes carry a time component or US-style slashes.
var dateFormats = []string{
	time.DateOnly,
	"2006/01/02",
	"01/02/2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// Loader reads per-entity game logs into memory. Columns named by the
// configured identifier fields stay strings; every other column is parsed
// as a numeric metric.
type Loader struct {
	identifierFields []string
	logger           *slog.Logger
}

// NewLoader creates a loader for game logs carrying the given identifier
// columns. The identifier list must include the date, home and away fields.
func NewLoader(identifierFields []string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{identifierFields: identifierFields, logger: logger}
}

// LoadDir discovers and loads every entity game log under dir, keyed by
// entity id. A directory without a single game log is an error.
func (l *Loader) LoadDir(ctx context.Context, dir string) (map[string][]domain.GameRecord, error) {
	files, err := Discover(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, apperrors.ErrNoEntities)
	}

	logs := make(map[string][]domain.GameRecord, len(files))
	for _, src := range files {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		records, err := l.LoadFile(ctx, src)
		if err != nil {
			return nil, err
		}
		logs[src.Entity] = records
	}
	return logs, nil
}

// LoadFile reads a single game log. Records are returned in file order;
// sorting by date is the derivation stage's concern.
func (l *Loader) LoadFile(ctx context.Context, src SourceFile) ([]domain.GameRecord, error) {
	start := time.Now()

	var (
		table [][]string
		err   error
	)
	switch src.Format {
	case FormatCSV:
		table, err = readCSV(src.Path)
	case FormatXLSX:
		table, err = readWorkbook(src.Path)
	default:
		err = fmt.Errorf("unsupported game log format %q", src.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("load game log %s: %w", src.Path, err)
	}

	records, err := l.parseTable(src.Entity, table)
	if err != nil {
		return nil, err
	}

	l.logger.DebugContext(ctx, "game log loaded",
		"entity", src.Entity,
		"format", string(src.Format),
		"rows", len(records),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return records, nil
}

// parseTable turns a raw cell table into game records. The first non-blank
// row is the header; every configured identifier field must appear in it.
func (l *Loader) parseTable(entity string, table [][]string) ([]domain.GameRecord, error) {
	headerIdx := headerRowIndex(table)
	if headerIdx < 0 {
		return nil, apperrors.NewSchemaError(entity, domain.FieldDate)
	}

	columns := make([]string, len(table[headerIdx]))
	for i, h := range table[headerIdx] {
		columns[i] = strings.ToLower(strings.TrimSpace(h))
	}

	columnIndex := make(map[string]int, len(columns))
	for i, c := range columns {
		if c == "" {
			continue
		}
		if _, dup := columnIndex[c]; !dup {
			columnIndex[c] = i
		}
	}

	identifiers := make(map[string]bool, len(l.identifierFields))
	for _, field := range l.identifierFields {
		if _, ok := columnIndex[field]; !ok {
			return nil, apperrors.NewSchemaError(entity, field)
		}
		identifiers[field] = true
	}

	var records []domain.GameRecord
	for rowIdx := headerIdx + 1; rowIdx < len(table); rowIdx++ {
		row := table[rowIdx]
		if isBlankRow(row) {
			continue
		}
		rec, err := l.parseRow(entity, rowIdx+1, columns, identifiers, row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// parseRow converts one data row. rowNum is the 1-based source row so parse
// failures point at the offending line. The date identifier is re-rendered
// in ISO form so join keys agree across logs with differing date styles.
func (l *Loader) parseRow(entity string, rowNum int, columns []string, identifiers map[string]bool, row []string) (domain.GameRecord, error) {
	rec := domain.GameRecord{
		Entity:      entity,
		Identifiers: make(map[string]string, len(identifiers)),
		Metrics:     make(map[string]float64, len(columns)-len(identifiers)),
	}

	for i, name := range columns {
		if name == "" {
			continue
		}
		var cell string
		if i < len(row) {
			cell = strings.TrimSpace(row[i])
		}

		switch {
		case name == domain.FieldDate:
			date, err := parseDate(cell)
			if err != nil {
				return domain.GameRecord{}, apperrors.NewParseError(entity, rowNum, name, cell, err)
			}
			rec.Date = date
			rec.Identifiers[name] = date.Format(time.DateOnly)
		case identifiers[name]:
			rec.Identifiers[name] = cell
		default:
			value, err := parseMetric(cell)
			if err != nil {
				return domain.GameRecord{}, apperrors.NewParseError(entity, rowNum, name, cell, err)
			}
			rec.Metrics[name] = value
		}
	}
	return rec, nil
}

// parseDate attempts the accepted date renderings in order.
func parseDate(cell string) (time.Time, error) {
	for _, format := range dateFormats {
		if date, err := time.Parse(format, cell); err == nil {
			return date, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", cell)
}

// parseMetric interprets one numeric cell. Blank cells become NaN and are
// dropped by the cleaning pass; thousands separators are tolerated.
func parseMetric(cell string) (float64, error) {
	if cell == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(strings.ReplaceAll(cell, ",", ""), 64)
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(skipBOM(file))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return rows, nil
}

func readWorkbook(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

// skipBOM removes a UTF-8 byte order mark; exported CSVs often carry one.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if lead, err := br.Peek(3); err == nil && bytes.Equal(lead, []byte{0xEF, 0xBB, 0xBF}) {
		br.Discard(3)
	}
	return br
}

// headerRowIndex finds the first row with any non-blank cell. Workbook
// exports sometimes carry leading blank rows above the header.
func headerRowIndex(table [][]string) int {
	for i, row := range table {
		if !isBlankRow(row) {
			return i
		}
	}
	return -1
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
