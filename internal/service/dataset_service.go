package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/smartcity/transitweather/internal/cache"
	"github.com/smartcity/transitweather/internal/domain"
	"github.com/smartcity/transitweather/internal/export"
	"github.com/smartcity/transitweather/pkg/utils"
)

// Dataset sources
const (
	SourceCache     = "cache"
	SourceGenerated = "generated"
)

// Dataset is the merged table currently served by the dashboard
type Dataset struct {
	Records   []domain.AnalyticsRecord `json:"-"`
	Quality   domain.QualityReports    `json:"quality,omitempty"`
	NullScore float64                  `json:"data_quality_score"`
	Source    string                   `json:"source"`
	LoadedAt  time.Time                `json:"loaded_at"`
}

// DatasetService loads the merged dataset from the parquet cache or
// regenerates it from the upstream sources, and keeps it in memory
type DatasetService struct {
	extractor   *ExtractionService
	transformer *TransformService
	cache       *cache.ParquetCache
	opts        ExtractOptions
	logger      *slog.Logger
	metrics     *Metrics

	mu      sync.RWMutex
	dataset *Dataset

	// refreshMu serializes regenerations
	refreshMu sync.Mutex
}

// NewDatasetService creates a new dataset service
func NewDatasetService(
	extractor *ExtractionService,
	transformer *TransformService,
	parquetCache *cache.ParquetCache,
	opts ExtractOptions,
	logger *slog.Logger,
	metrics *Metrics,
) *DatasetService {
	return &DatasetService{
		extractor:   extractor,
		transformer: transformer,
		cache:       parquetCache,
		opts:        opts,
		logger:      logger,
		metrics:     metrics,
	}
}

// Current returns the loaded dataset without triggering a load
func (s *DatasetService) Current() (*Dataset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataset, s.dataset != nil
}

// Load returns the memoised dataset, reading the cache or regenerating it on
// first use. A cache lacking the converted weather columns is deleted and rebuilt.
func (s *DatasetService) Load(ctx context.Context) (*Dataset, error) {
	if ds, ok := s.Current(); ok {
		return ds, nil
	}

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if ds, ok := s.Current(); ok {
		return ds, nil
	}

	if s.cache.Exists() {
		records, err := s.cache.Load()
		switch {
		case err == nil:
			ds := &Dataset{
				Records:   records,
				NullScore: NullScore(records),
				Source:    SourceCache,
				LoadedAt:  time.Now(),
			}
			s.store(ds)
			return ds, nil
		case errors.Is(err, cache.ErrCacheIncompatible):
			s.logger.Warn("cached dataset is missing converted columns, regenerating", "error", err)
		default:
			s.logger.Warn("failed to read cached dataset, regenerating", "error", err)
		}
		if err := s.cache.Remove(); err != nil {
			return nil, err
		}
	}

	return s.regenerate(ctx)
}

// Refresh regenerates the dataset from the upstream sources and replaces the cache
func (s *DatasetService) Refresh(ctx context.Context) (*Dataset, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	return s.regenerate(ctx)
}

// regenerate expects refreshMu to be held
func (s *DatasetService) regenerate(ctx context.Context) (*Dataset, error) {
	s.logger.Info("regenerating dataset",
		"start", s.opts.Start.Format(domain.DateLayout),
		"end", s.opts.End.Format(domain.DateLayout),
		"max_records", s.opts.MaxRecords,
	)

	extraction, err := s.extractor.Extract(ctx, s.opts)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}

	started := time.Now()
	result := s.transformer.TransformAndMerge(extraction.Ridership, extraction.Weather)
	s.metrics.observePhase(PhaseTransformation, time.Since(started))
	s.metrics.observeMerge(result)
	if result.Empty() {
		return nil, fmt.Errorf("dataset: %w", ErrEmptyMerge)
	}

	if err := s.cache.Save(result.Records); err != nil {
		// the in-memory dataset is still usable
		s.logger.Error("failed to write dataset cache", "error", err)
	}

	ds := &Dataset{
		Records:   result.Records,
		Quality:   result.Quality,
		NullScore: result.NullScore,
		Source:    SourceGenerated,
		LoadedAt:  time.Now(),
	}
	s.store(ds)

	s.logger.Info("dataset ready", "rows", len(ds.Records), "null_score", ds.NullScore)
	return ds, nil
}

func (s *DatasetService) store(ds *Dataset) {
	s.mu.Lock()
	s.dataset = ds
	s.mu.Unlock()
}

// Query loads the dataset if needed and returns the rows matching filter
func (s *DatasetService) Query(ctx context.Context, filter domain.Filter) ([]domain.AnalyticsRecord, error) {
	ds, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return FilterRecords(ds.Records, filter), nil
}

// Summary computes headline statistics of records
func (s *DatasetService) Summary(records []domain.AnalyticsRecord) domain.Summary {
	return export.Summarize(records)
}

// Correlation relates ridership to the converted temperature and precipitation
func (s *DatasetService) Correlation(records []domain.AnalyticsRecord) []domain.Correlation {
	return Correlations(records)
}

// FilterRecords keeps rows matching every non-empty criterion of f.
// Empty criteria match everything; From and To are inclusive days.
func FilterRecords(records []domain.AnalyticsRecord, f domain.Filter) []domain.AnalyticsRecord {
	out := make([]domain.AnalyticsRecord, 0, len(records))
	for _, r := range records {
		if len(f.Years) > 0 && !slices.Contains(f.Years, r.Date.Year()) {
			continue
		}
		if len(f.Months) > 0 && !slices.Contains(f.Months, int(r.Date.Month())) {
			continue
		}
		if len(f.DayNames) > 0 && !slices.Contains(f.DayNames, r.Date.Weekday().String()) {
			continue
		}
		if !f.From.IsZero() && r.Date.Before(truncateDay(f.From)) {
			continue
		}
		if !f.To.IsZero() && r.Date.After(truncateDay(f.To)) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Correlations returns the Pearson correlation of ridership with temperature_f
// and precipitation_in. A metric is omitted when its paired values cannot be
// correlated (fewer than two pairs or no variance).
func Correlations(records []domain.AnalyticsRecord) []domain.Correlation {
	metrics := []struct {
		name  string
		value func(domain.AnalyticsRecord) *float64
	}{
		{domain.ColumnTemperatureF, func(r domain.AnalyticsRecord) *float64 { return r.TemperatureF }},
		{domain.ColumnPrecipitationIn, func(r domain.AnalyticsRecord) *float64 { return r.PrecipitationIn }},
	}

	var out []domain.Correlation
	for _, m := range metrics {
		var x, y []float64
		for _, r := range records {
			v := m.value(r)
			if r.Ridership == nil || v == nil {
				continue
			}
			x = append(x, *r.Ridership)
			y = append(y, *v)
		}
		coef, ok := utils.Pearson(x, y)
		if !ok {
			continue
		}
		out = append(out, domain.Correlation{
			Metric:      m.name,
			Coefficient: utils.RoundTo(coef, 4),
			Label:       InterpretCorrelation(coef),
			Samples:     len(x),
		})
	}
	return out
}

// InterpretCorrelation labels the strength and direction of r
func InterpretCorrelation(r float64) string {
	var strength string
	switch abs := math.Abs(r); {
	case abs > 0.7:
		strength = "Very Strong"
	case abs > 0.5:
		strength = "Strong"
	case abs > 0.3:
		strength = "Moderate"
	case abs > 0.1:
		strength = "Weak"
	default:
		strength = "Very Weak"
	}

	direction := "Negative"
	if r > 0 {
		direction = "Positive"
	}
	return strength + " " + direction
}
