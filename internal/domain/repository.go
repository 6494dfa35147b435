package domain

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when a requested object or row does not exist
var ErrNotFound = errors.New("not found")

// PhaseMetrics captures one pipeline phase
type PhaseMetrics struct {
	Records         int     `json:"records"`
	Columns         int     `json:"columns,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// PipelineRun is the persisted outcome of one batch pipeline run
type PipelineRun struct {
	ID             string         `json:"id"`
	StartTime      time.Time      `json:"start_time"`
	EndTime        time.Time      `json:"end_time"`
	Status         string         `json:"status"`
	Error          string         `json:"error,omitempty"`
	StartDate      string         `json:"start_date"`
	EndDate        string         `json:"end_date"`
	MaxRecords     int            `json:"max_records"`
	RidershipRows  int            `json:"ridership_records"`
	WeatherRows    int            `json:"weather_records"`
	Extraction     PhaseMetrics   `json:"extraction"`
	Transformation PhaseMetrics   `json:"transformation"`
	Loading        PhaseMetrics   `json:"loading"`
	Quality        QualityReports `json:"quality_metrics,omitempty"`
	NullScore      float64        `json:"data_quality_score"`
	SuccessRate    float64        `json:"success_rate"`
	Load           *LoadResult    `json:"load,omitempty"`
}

// LoadResult reports which sinks accepted a merged dataset
type LoadResult struct {
	CSVPath         string   `json:"csv_path"`
	SummaryPath     string   `json:"summary_path"`
	JSONPath        string   `json:"json_path,omitempty"`
	UploadedObjects []string `json:"uploaded_objects,omitempty"`
	DatabaseSuccess bool     `json:"database_success"`
	BackupPath      string   `json:"backup_path,omitempty"`
	Errors          []string `json:"errors,omitempty"`
}

// AnalyticsRepository defines the interface for merged dataset persistence.
// The domain owns the interface; storage packages implement it.
type AnalyticsRepository interface {
	// ReplaceAnalytics swaps the stored dataset for records
	ReplaceAnalytics(ctx context.Context, records []AnalyticsRecord) error

	// GetAnalytics retrieves stored rows with dates in [from, to]
	GetAnalytics(ctx context.Context, from, to time.Time) ([]AnalyticsRecord, error)

	// SavePipelineRun persists the outcome of a pipeline run
	SavePipelineRun(ctx context.Context, run PipelineRun) error

	// Health checks database connectivity
	Health(ctx context.Context) error
}

// ObjectInfo describes a stored object
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// ObjectStore uploads exported files to object storage
type ObjectStore interface {
	Upload(ctx context.Context, key string, r io.Reader) error
	Download(ctx context.Context, key string, w io.Writer) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}
