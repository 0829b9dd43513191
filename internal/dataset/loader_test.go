package dataset

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperrors "matchset/internal/errors"
)

var testIdentifiers = []string{"date", "home", "away"}

func writeCSV(t *testing.T, dir, name, content string) SourceFile {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	entity := name[:len(name)-len(filepath.Ext(name))]
	return SourceFile{Entity: entity, Path: path, Format: FormatCSV}
}

func TestLoadFileCSV(t *testing.T) {
	src := writeCSV(t, t.TempDir(), "boston-celtics.csv",
		"date,home,away,pts,reb\n"+
			"2012-11-02,boston-celtics,utah-jazz,98,41\n"+
			"11/04/2012,detroit-pistons,boston-celtics,\"1,234\",\n")

	loader := NewLoader(testIdentifiers, nil)
	records, err := loader.LoadFile(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "boston-celtics", first.Entity)
	assert.Equal(t, time.Date(2012, 11, 2, 0, 0, 0, 0, time.UTC), first.Date)
	assert.Equal(t, "boston-celtics", first.Identifiers["home"])
	assert.Equal(t, "utah-jazz", first.Identifiers["away"])
	assert.Equal(t, 98.0, first.Metrics["pts"])
	assert.Equal(t, 41.0, first.Metrics["reb"])

	second := records[1]
	// thousands separator stripped, blank metric held as NaN, date
	// identifier re-rendered in ISO form
	assert.Equal(t, 1234.0, second.Metrics["pts"])
	assert.True(t, math.IsNaN(second.Metrics["reb"]))
	assert.Equal(t, "2012-11-04", second.Identifiers["date"])
}

func TestLoadFileCSVWithBOM(t *testing.T) {
	src := writeCSV(t, t.TempDir(), "utah-jazz.csv",
		"\xEF\xBB\xBFdate,home,away,pts\n2012-11-02,utah-jazz,boston-celtics,95\n")

	records, err := NewLoader(testIdentifiers, nil).LoadFile(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "2012-11-02", records[0].Identifiers["date"])
}

func TestLoadFileNormalizesHeaderCase(t *testing.T) {
	src := writeCSV(t, t.TempDir(), "utah-jazz.csv",
		"Date,Home,Away,PTS\n2012-11-02,utah-jazz,boston-celtics,95\n")

	records, err := NewLoader(testIdentifiers, nil).LoadFile(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 95.0, records[0].Metrics["pts"])
}

func TestLoadFileXLSX(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "boston-celtics.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"date", "home", "away", "pts"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"2012-11-02", "boston-celtics", "utah-jazz", 98}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"2012-11-04", "utah-jazz", "boston-celtics", 110}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	src := SourceFile{Entity: "boston-celtics", Path: path, Format: FormatXLSX}
	records, err := NewLoader(testIdentifiers, nil).LoadFile(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 98.0, records[0].Metrics["pts"])
	assert.Equal(t, "utah-jazz", records[1].Identifiers["home"])
}

func TestLoadFileMissingColumn(t *testing.T) {
	src := writeCSV(t, t.TempDir(), "utah-jazz.csv",
		"date,home,pts\n2012-11-02,utah-jazz,95\n")

	_, err := NewLoader(testIdentifiers, nil).LoadFile(context.Background(), src)

	var schemaErr *apperrors.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "utah-jazz", schemaErr.Entity)
	assert.Equal(t, "away", schemaErr.Column)
}

func TestLoadFileBadDateFailsFast(t *testing.T) {
	src := writeCSV(t, t.TempDir(), "utah-jazz.csv",
		"date,home,away,pts\n"+
			"2012-11-02,utah-jazz,boston-celtics,95\n"+
			"soon,utah-jazz,detroit-pistons,101\n")

	_, err := NewLoader(testIdentifiers, nil).LoadFile(context.Background(), src)

	var parseErr *apperrors.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "utah-jazz", parseErr.Entity)
	assert.Equal(t, 3, parseErr.Row)
	assert.Equal(t, "date", parseErr.Field)
	assert.Equal(t, "soon", parseErr.Value)
}

func TestLoadFileBadMetric(t *testing.T) {
	src := writeCSV(t, t.TempDir(), "utah-jazz.csv",
		"date,home,away,pts\n2012-11-02,utah-jazz,boston-celtics,many\n")

	_, err := NewLoader(testIdentifiers, nil).LoadFile(context.Background(), src)

	var parseErr *apperrors.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "pts", parseErr.Field)
	assert.Equal(t, "many", parseErr.Value)
}

func TestLoadFileHeaderOnly(t *testing.T) {
	src := writeCSV(t, t.TempDir(), "utah-jazz.csv", "date,home,away,pts\n")

	records, err := NewLoader(testIdentifiers, nil).LoadFile(context.Background(), src)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestLoadFileEmptyFile(t *testing.T) {
	src := writeCSV(t, t.TempDir(), "utah-jazz.csv", "")

	_, err := NewLoader(testIdentifiers, nil).LoadFile(context.Background(), src)

	var schemaErr *apperrors.SchemaError
	require.ErrorAs(t, err, &schemaErr)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "utah-jazz.csv",
		"date,home,away,pts\n2012-11-02,utah-jazz,boston-celtics,95\n")
	writeCSV(t, dir, "boston-celtics.csv",
		"date,home,away,pts\n2012-11-02,utah-jazz,boston-celtics,98\n")

	logs, err := NewLoader(testIdentifiers, nil).LoadDir(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, logs, 2)
	assert.Len(t, logs["utah-jazz"], 1)
	assert.Len(t, logs["boston-celtics"], 1)
}

func TestLoadDirNoEntities(t *testing.T) {
	_, err := NewLoader(testIdentifiers, nil).LoadDir(context.Background(), t.TempDir())
	assert.True(t, errors.Is(err, apperrors.ErrNoEntities))
}

func TestLoadDirCancelled(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "utah-jazz.csv",
		"date,home,away,pts\n2012-11-02,utah-jazz,boston-celtics,95\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLoader(testIdentifiers, nil).LoadDir(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}
