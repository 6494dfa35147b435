package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/smartcity/transitweather/internal/domain"
)

// Upstream endpoints
const (
	DefaultRidershipURL = "https://data.ny.gov/resource/kv7t-n8in.json"
	DefaultWeatherURL   = "https://archive-api.open-meteo.com/v1/archive"
)

// Config holds runtime settings for the server and the batch pipeline
type Config struct {
	DatabaseURL string
	Port        string `validate:"required,numeric"`
	Env         string `validate:"oneof=development production test"`
	LogLevel    slog.Level

	// Upstream sources
	RidershipURL    string `validate:"required,url"`
	WeatherURL      string `validate:"required,url"`
	SocrataAppToken string
	Latitude        float64 `validate:"latitude"`
	Longitude       float64 `validate:"longitude"`
	WeatherTimezone string  `validate:"required"`

	// Extraction window
	StartDate  time.Time `validate:"required"`
	EndDate    time.Time `validate:"required,gtefield=StartDate"`
	MaxRecords int       `validate:"gt=0"`

	// Fetch behaviour
	RetryMax        int           `validate:"gte=1"`
	RetryDelay      time.Duration `validate:"gte=0"`
	RequestTimeout  time.Duration `validate:"gt=0"`
	PolitenessDelay time.Duration `validate:"gte=0"`

	// Sinks
	CacheFile          string `validate:"required"`
	ParquetCompression string `validate:"oneof=snappy gzip none"`
	OutputDir          string `validate:"required"`
	ObjectStoreDir     string
	ObjectPrefix       string
	AnalyticsTable     string `validate:"required"`

	// RefreshInterval schedules dataset regeneration in the server; 0 disables it
	RefreshInterval time.Duration `validate:"gte=0"`
}

// Load reads configuration from the environment and validates it
func Load() (*Config, error) {
	level, err := parseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("GO_ENV", "development"),
		LogLevel:           level,
		RidershipURL:       getEnv("RIDERSHIP_URL", DefaultRidershipURL),
		WeatherURL:         getEnv("WEATHER_URL", DefaultWeatherURL),
		SocrataAppToken:    getEnv("SOCRATA_APP_TOKEN", ""),
		WeatherTimezone:    getEnv("WEATHER_TIMEZONE", domain.DefaultTimezone),
		CacheFile:          getEnv("CACHE_FILE", "merged_data.parquet"),
		ParquetCompression: strings.ToLower(getEnv("PARQUET_COMPRESSION", "snappy")),
		OutputDir:          getEnv("OUTPUT_DIR", "data/processed"),
		ObjectStoreDir:     getEnv("OBJECT_STORE_DIR", ""),
		ObjectPrefix:       getEnv("OBJECT_PREFIX", "transit_weather"),
		AnalyticsTable:     getEnv("ANALYTICS_TABLE", "transit_weather_analytics"),
	}

	if cfg.Latitude, err = getEnvFloat("LATITUDE", domain.NYCLat); err != nil {
		return nil, err
	}
	if cfg.Longitude, err = getEnvFloat("LONGITUDE", domain.NYCLon); err != nil {
		return nil, err
	}
	if cfg.StartDate, err = getEnvDate("START_DATE", "2023-01-01"); err != nil {
		return nil, err
	}
	if cfg.EndDate, err = getEnvDate("END_DATE", "2024-12-31"); err != nil {
		return nil, err
	}
	if cfg.MaxRecords, err = getEnvInt("MAX_RECORDS", 600000); err != nil {
		return nil, err
	}
	if cfg.RetryMax, err = getEnvInt("RETRY_MAX", 3); err != nil {
		return nil, err
	}
	if cfg.RetryDelay, err = getEnvDuration("RETRY_DELAY", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = getEnvDuration("REQUEST_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.PolitenessDelay, err = getEnvDuration("POLITENESS_DELAY", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = getEnvDuration("REFRESH_INTERVAL", 24*time.Hour); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config: invalid configuration: %w", err)
	}
	return nil
}

// IsDevelopment reports whether the process runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	v := getEnv(key, "")
	if v == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s %q: %w", key, v, err)
	}
	return f, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func getEnvDate(key, defaultValue string) (time.Time, error) {
	v := getEnv(key, defaultValue)
	t, err := time.Parse(domain.DateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("config: invalid %s %q (want YYYY-MM-DD): %w", key, v, err)
	}
	return t, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("config: invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
