package service

import (
	"log/slog"
	"time"

	"github.com/smartcity/transitweather/internal/domain"
	"github.com/smartcity/transitweather/pkg/utils"
)

// Outlier band used for diagnostics
const (
	outlierLowerQuantile = 0.01
	outlierUpperQuantile = 0.99
)

// requiredColumns must exist in every validated table; rows with a null
// value in any of them are removed
var requiredColumns = []string{"date"}

// QualityValidator checks source tables and removes unusable rows
type QualityValidator struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewQualityValidator creates a new validator
func NewQualityValidator(logger *slog.Logger) *QualityValidator {
	return &QualityValidator{
		logger: logger,
		now:    time.Now,
	}
}

// Validate runs schema, null, duplicate and outlier checks on rows and returns
// the cleaned rows with their report. Outliers are counted, never removed.
func Validate[T domain.Record](v *QualityValidator, rows []T, dataset string) ([]T, domain.QualityReport) {
	logger := v.logger.With("dataset", dataset)
	logger.Info("validating data quality", "rows", len(rows))

	report := domain.QualityReport{
		Dataset:     dataset,
		InitialRows: len(rows),
		Timestamp:   v.now(),
	}

	if len(rows) == 0 {
		logger.Error("dataset is empty")
		report.Status = domain.StatusEmpty
		return rows, report
	}

	// Schema
	present := make(map[string]bool)
	for _, name := range domain.ColumnNames(rows[0]) {
		present[name] = true
	}
	for _, col := range requiredColumns {
		if !present[col] {
			report.MissingColumns = append(report.MissingColumns, col)
		}
	}
	if len(report.MissingColumns) > 0 {
		logger.Error("missing required columns", "columns", report.MissingColumns)
	}

	// Nulls, for observability only
	nullCounts := countNulls(rows)
	totalNulls := 0
	for name, n := range nullCounts {
		totalNulls += n
		if n > 0 {
			logger.Warn("null values found",
				"column", name,
				"nulls", n,
				"percent", utils.RoundTo(float64(n)/float64(len(rows))*100, 2),
			)
		}
	}
	if totalNulls > 0 {
		report.NullCounts = nullCounts
	}

	// Critical nulls
	cleaned := make([]T, 0, len(rows))
	if present["date"] {
		for _, row := range rows {
			if !row.RecordDate().IsZero() {
				cleaned = append(cleaned, row)
			}
		}
	} else {
		cleaned = append(cleaned, rows...)
	}
	report.RowsRemovedNulls = len(rows) - len(cleaned)
	if report.RowsRemovedNulls > 0 {
		logger.Info("removed rows with null critical values", "rows", report.RowsRemovedNulls)
	}

	// Full-row duplicates, first occurrence wins
	seen := make(map[string]struct{}, len(cleaned))
	deduped := cleaned[:0]
	for _, row := range cleaned {
		key := domain.RowKey(row)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, row)
	}
	report.DuplicatesRemoved = len(cleaned) - len(deduped)
	cleaned = deduped
	if report.DuplicatesRemoved > 0 {
		logger.Warn("found duplicate records", "duplicates", report.DuplicatesRemoved)
	}

	if dr := dateRange(cleaned); dr != nil {
		report.DateRange = dr
		logger.Info("date range", "min", dr.Min, "max", dr.Max)
	}

	report.Outliers = countOutliers(cleaned)
	for col, n := range report.Outliers {
		logger.Info("potential outliers detected", "column", col, "outliers", n)
	}

	report.FinalRows = len(cleaned)
	report.RowsRemoved = report.InitialRows - report.FinalRows
	// status is decided on the unrounded ratio so 89.996 stays a WARNING
	retained := float64(report.FinalRows) / float64(report.InitialRows) * 100
	report.Status = domain.StatusWarning
	if retained >= domain.PassingScore {
		report.Status = domain.StatusPassed
	}
	report.QualityScore = utils.RoundTo(retained, 2)

	logger.Info("quality validation complete",
		"retained_percent", report.QualityScore,
		"status", report.Status,
	)
	return cleaned, report
}

func countNulls[T domain.Record](rows []T) map[string]int {
	counts := make(map[string]int)
	for _, row := range rows {
		for _, c := range row.Columns() {
			if c.IsNull() {
				counts[c.Name]++
			} else if _, ok := counts[c.Name]; !ok {
				counts[c.Name] = 0
			}
		}
	}
	return counts
}

func dateRange[T domain.Record](rows []T) *domain.DateRange {
	var dr *domain.DateRange
	for _, row := range rows {
		d := row.RecordDate()
		if d.IsZero() {
			continue
		}
		if dr == nil {
			dr = &domain.DateRange{Min: d, Max: d}
			continue
		}
		if d.Before(dr.Min) {
			dr.Min = d
		}
		if d.After(dr.Max) {
			dr.Max = d
		}
	}
	return dr
}

// countOutliers counts, per numeric column, values outside the p1..p99 band
func countOutliers[T domain.Record](rows []T) map[string]int {
	values := make(map[string][]float64)
	var order []string
	for _, row := range rows {
		for _, c := range row.Columns() {
			if !c.Numeric {
				continue
			}
			if _, ok := values[c.Name]; !ok {
				values[c.Name] = nil
				order = append(order, c.Name)
			}
			if f, ok := c.Float(); ok {
				values[c.Name] = append(values[c.Name], f)
			}
		}
	}

	var outliers map[string]int
	for _, name := range order {
		vs := values[name]
		if len(vs) == 0 {
			continue
		}
		lo := utils.Quantile(vs, outlierLowerQuantile)
		hi := utils.Quantile(vs, outlierUpperQuantile)
		n := 0
		for _, v := range vs {
			if v < lo || v > hi {
				n++
			}
		}
		if n > 0 {
			if outliers == nil {
				outliers = make(map[string]int)
			}
			outliers[name] = n
		}
	}
	return outliers
}
