package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"integralq/pkg/contracts/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Option configures an Exporter.
type Option func(*Exporter)

// WithBOM prefixes CSV output with a UTF-8 BOM so Excel detects the encoding.
func WithBOM(enabled bool) Option {
	return func(e *Exporter) { e.bom = enabled }
}

// Exporter writes datasets in the supported formats.
type Exporter struct {
	logger *slog.Logger
	bom    bool
}

// New creates an exporter. A nil logger uses slog.Default.
func New(logger *slog.Logger, opts ...Option) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Exporter{logger: logger.With(slog.String("component", "exporter"))}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Write encodes ds to w in the given format.
func (e *Exporter) Write(w io.Writer, ds *domain.CleanedDataset, f Format) error {
	if ds == nil {
		return fmt.Errorf("export: nil dataset")
	}
	e.logger.Debug("exporting dataset",
		slog.String("format", string(f)),
		slog.Int("rows", ds.RowCount()),
		slog.Int("columns", ds.ColumnCount()))

	switch f {
	case FormatCSV:
		return e.WriteCSV(w, ds)
	case FormatXLSX:
		return e.WriteXLSX(w, ds)
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}

// WriteFile creates path (and its directory) and writes ds into it.
func (e *Exporter) WriteFile(path string, ds *domain.CleanedDataset, f Format) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := e.Write(file, ds, f); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	e.logger.Info("dataset exported",
		slog.String("file_path", path),
		slog.String("format", string(f)),
		slog.Int("record_count", ds.RowCount()))
	return nil
}

// WriteCSV writes the header row followed by every data row.
func (e *Exporter) WriteCSV(w io.Writer, ds *domain.CleanedDataset) error {
	if e.bom {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(ds.Headers); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	record := make([]string, len(ds.Headers))
	for i, row := range ds.Rows {
		for j, h := range ds.Headers {
			record[j] = formatValue(row[h])
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
