package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/smartcity/transitweather/internal/domain"
)

// WeatherConfig configures the weather archive client
type WeatherConfig struct {
	BaseURL  string
	Timezone string
	Timeout  time.Duration
}

// WeatherService handles historical weather fetching
type WeatherService struct {
	baseURL    string
	timezone   string
	httpClient *http.Client
	retrier    *Retrier
	logger     *slog.Logger
	metrics    *Metrics
}

// NewWeatherService creates a new weather service
func NewWeatherService(cfg WeatherConfig, retrier *Retrier, logger *slog.Logger, metrics *Metrics) *WeatherService {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	timezone := cfg.Timezone
	if timezone == "" {
		timezone = domain.DefaultTimezone
	}
	return &WeatherService{
		baseURL:  cfg.BaseURL,
		timezone: timezone,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retrier: retrier,
		logger:  logger.With("source", "weather"),
		metrics: metrics,
	}
}

// ArchiveResponse represents the open-meteo archive API response
type ArchiveResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
	Daily     struct {
		Time            []string   `json:"time"`
		TemperatureMean []*float64 `json:"temperature_2m_mean"`
		Precipitation   []*float64 `json:"precipitation_sum"`
		Windspeed       []*float64 `json:"windspeed_10m_max"`
	} `json:"daily"`
}

func (s *WeatherService) archiveURL(lat, lon float64, start, end time.Time) string {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("start_date", start.Format(domain.DateLayout))
	params.Set("end_date", end.Format(domain.DateLayout))
	params.Set("daily", strings.Join([]string{
		domain.MetricTemperatureMean,
		domain.MetricPrecipitation,
		domain.MetricWindspeed,
	}, ","))
	params.Set("windspeed_unit", "ms")
	params.Set("timezone", s.timezone)
	return s.baseURL + "?" + params.Encode()
}

// FetchWeather retrieves daily weather for [start, end] in a single call.
// Unlike ridership extraction, any failure is returned to the caller.
func (s *WeatherService) FetchWeather(ctx context.Context, lat, lon float64, start, end time.Time) ([]domain.WeatherRecord, error) {
	s.logger.Info("fetching weather",
		"lat", lat,
		"lon", lon,
		"start", start.Format(domain.DateLayout),
		"end", end.Format(domain.DateLayout),
	)

	target := s.archiveURL(lat, lon, start, end)
	resp, err := Retry(ctx, s.retrier, "weather archive", func(ctx context.Context) (ArchiveResponse, error) {
		var r ArchiveResponse
		err := getJSON(ctx, s.httpClient, target, nil, &r)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("weather: failed to fetch archive: %w", err)
	}

	records, err := reshapeDaily(resp)
	if err != nil {
		return nil, err
	}
	s.metrics.addExtracted("weather", len(records))

	s.logger.Info("weather extraction complete", "records", len(records))
	return records, nil
}

// reshapeDaily turns the parallel daily arrays into one record per day.
// A metric array that is missing or too short leaves that metric nil.
func reshapeDaily(resp ArchiveResponse) ([]domain.WeatherRecord, error) {
	daily := resp.Daily
	records := make([]domain.WeatherRecord, 0, len(daily.Time))
	for i, day := range daily.Time {
		date, err := time.Parse(domain.DateLayout, day)
		if err != nil {
			return nil, fmt.Errorf("weather: failed to parse date %q: %w", day, err)
		}
		records = append(records, domain.WeatherRecord{
			Date:            date,
			TemperatureMean: at(daily.TemperatureMean, i),
			Precipitation:   at(daily.Precipitation, i),
			Windspeed:       at(daily.Windspeed, i),
		})
	}
	return records, nil
}

func at(values []*float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	return values[i]
}
