package service

import (
	"log/slog"
	"time"

	"github.com/smartcity/transitweather/internal/domain"
	"github.com/smartcity/transitweather/pkg/utils"
)

// Dataset names used in quality reports
const (
	DatasetRidership = "ridership"
	DatasetWeather   = "weather"
)

// TransformService validates both sources, joins them by calendar day and derives features
type TransformService struct {
	validator *QualityValidator
	deriver   *FeatureDeriver
	logger    *slog.Logger
}

// NewTransformService creates a new transform service
func NewTransformService(validator *QualityValidator, deriver *FeatureDeriver, logger *slog.Logger) *TransformService {
	return &TransformService{
		validator: validator,
		deriver:   deriver,
		logger:    logger,
	}
}

// TransformAndMerge returns the merged analytic table with the quality reports
// of both inputs. No overlap between the sources yields an empty result, not an error.
func (s *TransformService) TransformAndMerge(ridership []domain.RidershipRecord, weather []domain.WeatherRecord) domain.MergeResult {
	s.logger.Info("starting transformation and merge",
		"ridership_rows", len(ridership),
		"weather_rows", len(weather),
	)

	ridershipClean, ridershipReport := Validate(s.validator, ridership, DatasetRidership)
	weatherClean, weatherReport := Validate(s.validator, weather, DatasetWeather)

	result := domain.MergeResult{
		Records: []domain.AnalyticsRecord{},
		Quality: domain.QualityReports{
			DatasetRidership: ridershipReport,
			DatasetWeather:   weatherReport,
		},
	}

	if len(ridershipClean) == 0 || len(weatherClean) == 0 {
		s.logger.Error("cannot merge, one or both datasets are empty",
			"ridership_rows", len(ridershipClean),
			"weather_rows", len(weatherClean),
		)
		return result
	}

	merged := JoinByDay(ridershipClean, weatherClean)
	if len(merged) == 0 {
		s.logger.Error("merge resulted in empty dataset, no matching dates")
		return result
	}

	result.Records = s.deriver.Derive(merged)
	result.NullScore = NullScore(result.Records)

	s.logger.Info("transformation complete",
		"rows", len(result.Records),
		"columns", len(result.Records[0].Columns()),
		"null_score", result.NullScore,
	)
	return result
}

// JoinByDay inner-joins ridership rows with the weather of their calendar day.
// Days present in only one source are dropped. When weather holds several rows
// for one day the first wins.
func JoinByDay(ridership []domain.RidershipRecord, weather []domain.WeatherRecord) []domain.AnalyticsRecord {
	byDay := make(map[time.Time]domain.WeatherRecord, len(weather))
	for _, w := range weather {
		day := truncateDay(w.Date)
		if _, ok := byDay[day]; !ok {
			byDay[day] = w
		}
	}

	merged := make([]domain.AnalyticsRecord, 0, len(ridership))
	for _, r := range ridership {
		day := truncateDay(r.Date)
		w, ok := byDay[day]
		if !ok {
			continue
		}
		merged = append(merged, domain.AnalyticsRecord{
			Date:              day,
			TransitTimestamp:  r.TransitTimestamp,
			TransitMode:       r.TransitMode,
			StationComplexID:  r.StationComplexID,
			StationComplex:    r.StationComplex,
			Borough:           r.Borough,
			PaymentMethod:     r.PaymentMethod,
			FareClassCategory: r.FareClassCategory,
			Ridership:         r.Ridership,
			Transfers:         r.Transfers,
			Latitude:          r.Latitude,
			Longitude:         r.Longitude,
			TemperatureMean:   w.TemperatureMean,
			Precipitation:     w.Precipitation,
			Windspeed:         w.Windspeed,
		})
	}
	return merged
}

// NullScore is the percentage of non-null cells across records
func NullScore(records []domain.AnalyticsRecord) float64 {
	var cells, nulls int
	for _, r := range records {
		for _, c := range r.Columns() {
			cells++
			if c.IsNull() {
				nulls++
			}
		}
	}
	if cells == 0 {
		return 0
	}
	return utils.RoundTo((1-float64(nulls)/float64(cells))*100, 2)
}
