package domain

import "time"

// QualityStatus is the verdict of a validation run
type QualityStatus string

const (
	StatusPassed  QualityStatus = "PASSED"
	StatusWarning QualityStatus = "WARNING"
	StatusEmpty   QualityStatus = "FAILED - Empty dataset"
)

// PassingScore is the minimum retained share (percent) for a PASSED verdict
const PassingScore = 90.0

// DateRange is the observed min/max date of a table
type DateRange struct {
	Min time.Time `json:"min"`
	Max time.Time `json:"max"`
}

// QualityReport describes one validation run of a source table
type QualityReport struct {
	Dataset           string         `json:"dataset"`
	InitialRows       int            `json:"initial_rows"`
	FinalRows         int            `json:"final_rows"`
	RowsRemoved       int            `json:"rows_removed"`
	RowsRemovedNulls  int            `json:"rows_removed_nulls"`
	DuplicatesRemoved int            `json:"duplicates_removed"`
	NullCounts        map[string]int `json:"null_counts,omitempty"`
	MissingColumns    []string       `json:"missing_columns,omitempty"`
	DateRange         *DateRange     `json:"date_range,omitempty"`
	Outliers          map[string]int `json:"outliers,omitempty"`
	QualityScore      float64        `json:"quality_score"`
	Status            QualityStatus  `json:"status"`
	Timestamp         time.Time      `json:"timestamp"`
}

// QualityReports maps dataset name to its latest report
type QualityReports map[string]QualityReport
