package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"

	"sovpanel/internal/files"
)

// CSVWriter writes CSV files below an output directory. Every write replaces
// the target file in one step; readers never see a partial file.
type CSVWriter struct {
	files  *files.Manager
	bom    bool
	logger *slog.Logger
}

// NewCSVWriter creates a writer rooted at outputDir
func NewCSVWriter(outputDir string, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{
		files:  files.NewManager(outputDir),
		logger: logger.With(slog.String("component", "exporter")),
	}
}

// SetBOM makes every file start with a UTF-8 byte order mark for Excel
func (w *CSVWriter) SetBOM(enabled bool) {
	w.bom = enabled
}

// Path returns where a relative file name is written
func (w *CSVWriter) Path(name string) string {
	return w.files.Resolve(name)
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers []string
	Records [][]string
}

// WriteCSV writes headers and records to filePath
func (w *CSVWriter) WriteCSV(filePath string, options WriteOptions) error {
	return w.stream(filePath, options.Headers, func(cw *csv.Writer) (int, error) {
		for i, record := range options.Records {
			if err := cw.Write(record); err != nil {
				return i, fmt.Errorf("failed to write record %d: %w", i, err)
			}
		}
		return len(options.Records), nil
	})
}

// stream writes a header then lets fill write the rows
func (w *CSVWriter) stream(filePath string, headers []string, fill func(*csv.Writer) (int, error)) error {
	fullPath := w.files.Resolve(filePath)
	rows := 0

	err := w.files.WriteAtomic(filePath, func(out io.Writer) error {
		if w.bom {
			if _, err := out.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
				return fmt.Errorf("failed to write BOM: %w", err)
			}
		}
		cw := csv.NewWriter(out)
		if len(headers) > 0 {
			if err := cw.Write(headers); err != nil {
				return fmt.Errorf("failed to write headers: %w", err)
			}
		}
		n, err := fill(cw)
		rows = n
		if err != nil {
			return err
		}
		cw.Flush()
		return cw.Error()
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", fullPath, err)
	}

	w.logger.Info("CSV file written",
		slog.String("file_path", filePath),
		slog.String("full_path", fullPath),
		slog.Int("record_count", rows))
	return nil
}
