package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_URL", "PORT", "GO_ENV", "LOG_LEVEL", "RIDERSHIP_URL", "WEATHER_URL",
		"SOCRATA_APP_TOKEN", "LATITUDE", "LONGITUDE", "WEATHER_TIMEZONE", "START_DATE",
		"END_DATE", "MAX_RECORDS", "RETRY_MAX", "RETRY_DELAY", "REQUEST_TIMEOUT",
		"POLITENESS_DELAY", "CACHE_FILE", "PARQUET_COMPRESSION", "OUTPUT_DIR",
		"OBJECT_STORE_DIR", "OBJECT_PREFIX", "ANALYTICS_TABLE", "REFRESH_INTERVAL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, DefaultRidershipURL, cfg.RidershipURL)
	assert.Equal(t, DefaultWeatherURL, cfg.WeatherURL)
	assert.Equal(t, 40.7128, cfg.Latitude)
	assert.Equal(t, -74.0060, cfg.Longitude)
	assert.Equal(t, "America/New_York", cfg.WeatherTimezone)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), cfg.StartDate)
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), cfg.EndDate)
	assert.Equal(t, 600000, cfg.MaxRecords)
	assert.Equal(t, 3, cfg.RetryMax)
	assert.Equal(t, 2*time.Second, cfg.RetryDelay)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.PolitenessDelay)
	assert.Equal(t, "merged_data.parquet", cfg.CacheFile)
	assert.Equal(t, "snappy", cfg.ParquetCompression)
	assert.Equal(t, "transit_weather_analytics", cfg.AnalyticsTable)
	assert.Equal(t, 24*time.Hour, cfg.RefreshInterval)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("GO_ENV", "production")
	t.Setenv("LOG_LEVEL", " Warning ")
	t.Setenv("START_DATE", "2024-03-01")
	t.Setenv("END_DATE", "2024-03-31")
	t.Setenv("MAX_RECORDS", "1000")
	t.Setenv("RETRY_DELAY", "250ms")
	t.Setenv("PARQUET_COMPRESSION", "GZIP")
	t.Setenv("REFRESH_INTERVAL", "0s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
	assert.Equal(t, 1000, cfg.MaxRecords)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryDelay)
	assert.Equal(t, "gzip", cfg.ParquetCompression)
	assert.Equal(t, time.Duration(0), cfg.RefreshInterval)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "log level", key: "LOG_LEVEL", value: "verbose"},
		{name: "start date", key: "START_DATE", value: "01/01/2023"},
		{name: "end before start", key: "END_DATE", value: "2022-12-31"},
		{name: "max records", key: "MAX_RECORDS", value: "lots"},
		{name: "zero max records", key: "MAX_RECORDS", value: "0"},
		{name: "retry max", key: "RETRY_MAX", value: "0"},
		{name: "retry delay", key: "RETRY_DELAY", value: "soon"},
		{name: "latitude", key: "LATITUDE", value: "123.4"},
		{name: "env", key: "GO_ENV", value: "staging"},
		{name: "compression", key: "PARQUET_COMPRESSION", value: "lz4"},
		{name: "ridership url", key: "RIDERSHIP_URL", value: "not a url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := parseLogLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
