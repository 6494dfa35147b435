// Package export writes the merged dataset and run reports to timestamped files.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/smartcity/transitweather/internal/domain"
)

// FileTimestampLayout is appended to every exported file name
const FileTimestampLayout = "20060102_150405"

// Base names of exported files
const (
	DatasetBase = "transit_weather"
	SummaryBase = "summary_stats"
	MetricsBase = "pipeline_metrics"
)

// ErrNoRows is returned when a table has a header but no data
var ErrNoRows = errors.New("export: no rows to write")

// Writer creates export files inside one output directory
type Writer struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

// NewWriter creates a writer for dir. The directory is created on first write.
func NewWriter(dir string, logger *slog.Logger) *Writer {
	return &Writer{
		dir:    dir,
		logger: logger,
		now:    time.Now,
	}
}

// Dir returns the output directory
func (w *Writer) Dir() string {
	return w.dir
}

// Timestamp returns the suffix used for files written now
func (w *Writer) Timestamp() string {
	return w.now().Format(FileTimestampLayout)
}

// FileName builds "<base>_<timestamp><ext>"
func (w *Writer) FileName(base, ext string) string {
	return fmt.Sprintf("%s_%s%s", base, w.Timestamp(), ext)
}

// WriteAnalyticsCSV writes records as "<base>_<ts>.csv" and returns the path
func (w *Writer) WriteAnalyticsCSV(base string, records []domain.AnalyticsRecord) (string, error) {
	return w.WriteTable(base, AnalyticsTable(records))
}

// WriteSummaryCSV writes the metric/value table of s
func (w *Writer) WriteSummaryCSV(s domain.Summary) (string, error) {
	return w.WriteTable(SummaryBase, SummaryTable(s))
}

// WriteTable writes a header-first string table as CSV
func (w *Writer) WriteTable(base string, table [][]string) (path string, err error) {
	if len(table) < 2 {
		return "", ErrNoRows
	}

	df := dataframe.LoadRecords(table,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return "", fmt.Errorf("export: failed to build table: %w", df.Err)
	}

	f, path, err := w.create(base, ".csv")
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("export: failed to close %s: %w", path, cerr)
		}
	}()

	if err := df.WriteCSV(f); err != nil {
		return "", fmt.Errorf("export: failed to write %s: %w", path, err)
	}

	w.logger.Info("saved csv", "path", path, "rows", df.Nrow(), "columns", df.Ncol())
	return path, nil
}

// WriteJSON writes v as indented JSON to "<base>_<ts>.json"
func (w *Writer) WriteJSON(base string, v any) (path string, err error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("export: failed to marshal %s: %w", base, err)
	}

	f, path, err := w.create(base, ".json")
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("export: failed to close %s: %w", path, cerr)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return "", fmt.Errorf("export: failed to write %s: %w", path, err)
	}

	w.logger.Info("saved json", "path", path, "bytes", len(data))
	return path, nil
}

func (w *Writer) create(base, ext string) (*os.File, string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, "", fmt.Errorf("export: failed to create %s: %w", w.dir, err)
	}
	path := filepath.Join(w.dir, w.FileName(base, ext))
	f, err := os.Create(path)
	if err != nil {
		return nil, "", fmt.Errorf("export: failed to create %s: %w", path, err)
	}
	return f, path, nil
}

// AnalyticsTable renders records as a header row followed by one row per record.
// Null cells are empty strings.
func AnalyticsTable(records []domain.AnalyticsRecord) [][]string {
	table := make([][]string, 0, len(records)+1)
	table = append(table, domain.ColumnNames(domain.AnalyticsRecord{}))
	for _, r := range records {
		cols := r.Columns()
		row := make([]string, len(cols))
		for i, c := range cols {
			row[i] = c.Format()
		}
		table = append(table, row)
	}
	return table
}
