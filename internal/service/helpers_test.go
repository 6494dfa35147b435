package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/smartcity/transitweather/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func f64(v float64) *float64 {
	return &v
}

func str(v string) *string {
	return &v
}

// recordingSleeper captures requested delays without waiting
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func newTestRetrier(maxAttempts int) *Retrier {
	r := NewRetrier(maxAttempts, 0, discardLogger(), nil)
	r.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return r
}

func ridershipRow(ts time.Time, ridership float64) domain.RidershipRecord {
	return domain.RidershipRecord{
		TransitTimestamp: ts,
		Date:             ts,
		StationComplexID: str("A01"),
		Ridership:        f64(ridership),
		Transfers:        f64(0),
	}
}

func weatherRow(d time.Time, tempC, precipMM, windMS float64) domain.WeatherRecord {
	return domain.WeatherRecord{
		Date:            d,
		TemperatureMean: f64(tempC),
		Precipitation:   f64(precipMM),
		Windspeed:       f64(windMS),
	}
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}
