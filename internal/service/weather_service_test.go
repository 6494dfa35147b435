package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchWeather_ReshapesDailyArrays(t *testing.T) {
	var query map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		query = map[string]string{
			"latitude":   q.Get("latitude"),
			"longitude":  q.Get("longitude"),
			"start_date": q.Get("start_date"),
			"end_date":   q.Get("end_date"),
			"daily":      q.Get("daily"),
			"timezone":   q.Get("timezone"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"latitude": 40.71,
			"longitude": -74.0,
			"timezone": "America/New_York",
			"daily": {
				"time": ["2024-01-01", "2024-01-02", "2024-01-03"],
				"temperature_2m_mean": [1.5, null, -3.0],
				"precipitation_sum": [0.0, 12.7, 2.0],
				"windspeed_10m_max": [4.2, 5.0]
			}
		}`))
	}))
	defer srv.Close()

	svc := NewWeatherService(WeatherConfig{BaseURL: srv.URL}, newTestRetrier(3), discardLogger(), nil)
	records, err := svc.FetchWeather(context.Background(), 40.7128, -74.006, day(2024, 1, 1), day(2024, 1, 3))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"latitude":   "40.7128",
		"longitude":  "-74.006",
		"start_date": "2024-01-01",
		"end_date":   "2024-01-03",
		"daily":      "temperature_2m_mean,precipitation_sum,windspeed_10m_max",
		"timezone":   "America/New_York",
	}, query)

	require.Len(t, records, 3)
	assert.Equal(t, day(2024, 1, 1), records[0].Date)
	assert.Equal(t, 1.5, *records[0].TemperatureMean)
	assert.Equal(t, 0.0, *records[0].Precipitation)
	assert.Equal(t, 4.2, *records[0].Windspeed)

	assert.Nil(t, records[1].TemperatureMean)
	assert.Equal(t, 12.7, *records[1].Precipitation)

	assert.Equal(t, -3.0, *records[2].TemperatureMean)
	assert.Nil(t, records[2].Windspeed, "short metric array leaves the metric absent")
}

func TestFetchWeather_FailureIsFatal(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	svc := NewWeatherService(WeatherConfig{BaseURL: srv.URL}, newTestRetrier(3), discardLogger(), nil)
	records, err := svc.FetchWeather(context.Background(), 40.7128, -74.006, day(2024, 1, 1), day(2024, 1, 3))

	require.Error(t, err)
	assert.ErrorIs(t, err, errServerError)
	assert.Nil(t, records)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestFetchWeather_InvalidDate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"daily": {"time": ["01/02/2024"], "temperature_2m_mean": [1]}}`))
	}))
	defer srv.Close()

	svc := NewWeatherService(WeatherConfig{BaseURL: srv.URL}, newTestRetrier(1), discardLogger(), nil)
	_, err := svc.FetchWeather(context.Background(), 0, 0, day(2024, 1, 1), day(2024, 1, 1))
	assert.Error(t, err)
}
