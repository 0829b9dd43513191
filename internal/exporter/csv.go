package exporter

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// CSVWriter writes CSV files atomically: rows go to a temporary file in the
// target directory and the file is renamed into place only after a clean
// flush, so a failed run never leaves a truncated table behind.
type CSVWriter struct {
	logger *slog.Logger
}

// NewCSVWriter creates a new CSV writer instance.
func NewCSVWriter(logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{logger: logger}
}

// WriteOptions configures CSV writing behavior.
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool // add UTF-8 BOM for Excel compatibility
}

// WriteCSV writes data to a CSV file with the given options.
func (w *CSVWriter) WriteCSV(filePath string, options WriteOptions) error {
	stream, err := w.CreateStreamWriter(filePath, options.Headers, options.BOMPrefix)
	if err != nil {
		return err
	}

	for i, record := range options.Records {
		if err := stream.WriteRecord(record); err != nil {
			stream.Abort()
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}

	if err := stream.Close(); err != nil {
		return err
	}

	w.logger.Debug("csv file written",
		"path", filePath,
		"records", len(options.Records),
	)
	return nil
}

// StreamWriter writes CSV records one at a time to a temporary file and
// publishes the result on Close.
type StreamWriter struct {
	file   *os.File
	writer *csv.Writer
	path   string
}

// CreateStreamWriter opens a streaming CSV writer targeting filePath. The
// target directory is created if needed.
func (w *CSVWriter) CreateStreamWriter(filePath string, headers []string, bom bool) (*StreamWriter, error) {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}

	file, err := os.CreateTemp(dir, filepath.Base(filePath)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("create temporary file: %w", err)
	}

	if bom {
		if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			file.Close()
			os.Remove(file.Name())
			return nil, fmt.Errorf("write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(file)
	if len(headers) > 0 {
		if err := writer.Write(headers); err != nil {
			file.Close()
			os.Remove(file.Name())
			return nil, fmt.Errorf("write headers: %w", err)
		}
	}

	return &StreamWriter{file: file, writer: writer, path: filePath}, nil
}

// WriteRecord writes a single record to the stream.
func (s *StreamWriter) WriteRecord(record []string) error {
	return s.writer.Write(record)
}

// Close flushes the stream and renames the temporary file into place.
func (s *StreamWriter) Close() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		os.Remove(s.file.Name())
		return fmt.Errorf("flush csv: %w", err)
	}
	if err := s.file.Close(); err != nil {
		os.Remove(s.file.Name())
		return fmt.Errorf("close temporary file: %w", err)
	}
	if err := os.Rename(s.file.Name(), s.path); err != nil {
		os.Remove(s.file.Name())
		return fmt.Errorf("publish %s: %w", s.path, err)
	}
	return nil
}

// Abort discards the stream without touching the target file.
func (s *StreamWriter) Abort() {
	s.file.Close()
	os.Remove(s.file.Name())
}
