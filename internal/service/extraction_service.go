package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/smartcity/transitweather/internal/domain"
)

// Extraction errors
var (
	ErrNoRidership = errors.New("no ridership data extracted")
	ErrNoWeather   = errors.New("no weather data extracted")
	ErrEmptyMerge  = errors.New("merge produced an empty dataset")
)

// ExtractOptions selects the period and location to extract
type ExtractOptions struct {
	Start      time.Time
	End        time.Time
	MaxRecords int
	Latitude   float64
	Longitude  float64
}

// Extraction holds the raw rows of both sources
type Extraction struct {
	Ridership []domain.RidershipRecord
	Weather   []domain.WeatherRecord
	Duration  time.Duration
}

// ExtractionService fetches ridership, then the weather of the same period
type ExtractionService struct {
	ridership *RidershipService
	weather   *WeatherService
	logger    *slog.Logger
	metrics   *Metrics
}

// NewExtractionService creates a new extraction service
func NewExtractionService(ridership *RidershipService, weather *WeatherService, logger *slog.Logger, metrics *Metrics) *ExtractionService {
	return &ExtractionService{
		ridership: ridership,
		weather:   weather,
		logger:    logger,
		metrics:   metrics,
	}
}

// Extract fetches ridership and then weather. Weather is not requested when
// ridership fails or comes back empty. The returned Extraction carries
// whatever rows were fetched even when an error is returned.
func (s *ExtractionService) Extract(ctx context.Context, opts ExtractOptions) (Extraction, error) {
	started := time.Now()
	out, err := s.extract(ctx, opts)
	out.Duration = time.Since(started)
	s.metrics.observePhase(PhaseExtraction, out.Duration)

	s.logger.Info("extraction finished",
		"ridership_rows", len(out.Ridership),
		"weather_rows", len(out.Weather),
		"duration", out.Duration,
	)
	return out, err
}

func (s *ExtractionService) extract(ctx context.Context, opts ExtractOptions) (Extraction, error) {
	var out Extraction

	ridership, err := s.ridership.FetchRidership(ctx, opts.Start, opts.End, opts.MaxRecords)
	if err != nil {
		return out, fmt.Errorf("extraction: ridership: %w", err)
	}
	out.Ridership = ridership
	if len(ridership) == 0 {
		s.logger.Error("no ridership data extracted, skipping weather")
		return out, ErrNoRidership
	}

	weather, err := s.weather.FetchWeather(ctx, opts.Latitude, opts.Longitude, opts.Start, opts.End)
	if err != nil {
		return out, fmt.Errorf("extraction: weather: %w", err)
	}
	out.Weather = weather
	if len(weather) == 0 {
		return out, ErrNoWeather
	}
	return out, nil
}
