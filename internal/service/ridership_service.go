package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/smartcity/transitweather/internal/domain"
)

const (
	// windowDays is the span of one ridership request
	windowDays = 7
	// fallbackRecordsPerDay applies when the requested range has no length
	fallbackRecordsPerDay = 50000
)

// RidershipConfig configures the transit ridership client
type RidershipConfig struct {
	BaseURL         string
	AppToken        string
	Timeout         time.Duration
	PolitenessDelay time.Duration
}

// RidershipService extracts hourly ridership from the Socrata open-data API
type RidershipService struct {
	baseURL    string
	appToken   string
	politeness time.Duration
	httpClient *http.Client
	retrier    *Retrier
	logger     *slog.Logger
	metrics    *Metrics
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewRidershipService creates a new ridership service
func NewRidershipService(cfg RidershipConfig, retrier *Retrier, logger *slog.Logger, metrics *Metrics) *RidershipService {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &RidershipService{
		baseURL:    cfg.BaseURL,
		appToken:   cfg.AppToken,
		politeness: cfg.PolitenessDelay,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retrier: retrier,
		logger:  logger.With("source", "ridership"),
		metrics: metrics,
		sleep:   sleepContext,
	}
}

// socrataRow is one row of the ridership dataset. Numeric fields arrive as text.
type socrataRow struct {
	TransitTimestamp  string    `json:"transit_timestamp"`
	TransitMode       *string   `json:"transit_mode"`
	StationComplexID  *string   `json:"station_complex_id"`
	StationComplex    *string   `json:"station_complex"`
	Borough           *string   `json:"borough"`
	PaymentMethod     *string   `json:"payment_method"`
	FareClassCategory *string   `json:"fare_class_category"`
	Ridership         flexFloat `json:"ridership"`
	Transfers         flexFloat `json:"transfers"`
	Latitude          flexFloat `json:"latitude"`
	Longitude         flexFloat `json:"longitude"`
}

// flexFloat decodes a JSON number or numeric string. Anything else decodes as missing.
type flexFloat struct {
	value *float64
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	f.value = &v
	return nil
}

// timestampLayouts are the accepted forms of transit_timestamp
var timestampLayouts = []string{
	"2006-01-02T15:04:05.000",
	domain.TimestampLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	domain.DateLayout,
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Window is an inclusive range of calendar days requested in one call
type Window struct {
	Start time.Time
	End   time.Time
}

// Windows partitions the inclusive range [start, end] into 7-day windows
func Windows(start, end time.Time) []Window {
	start, end = truncateDay(start), truncateDay(end)
	var windows []Window
	for ws := start; !ws.After(end); ws = ws.AddDate(0, 0, windowDays) {
		we := ws.AddDate(0, 0, windowDays-1)
		if we.After(end) {
			we = end
		}
		windows = append(windows, Window{Start: ws, End: we})
	}
	return windows
}

// windowLimit is the per-window row cap derived from the overall record budget
func windowLimit(start, end time.Time, maxRecords int) int {
	days := int(truncateDay(end).Sub(truncateDay(start)).Hours()/24) + 1
	perDay := fallbackRecordsPerDay
	if days > 0 {
		perDay = maxRecords / days
	}
	if limit := perDay * windowDays; limit > 0 {
		return limit
	}
	return 1
}

func (s *RidershipService) windowURL(w Window, limit int) string {
	where := fmt.Sprintf("transit_timestamp >= '%sT00:00:00' AND transit_timestamp < '%sT23:59:59'",
		w.Start.Format(domain.DateLayout), w.End.Format(domain.DateLayout))

	params := url.Values{}
	params.Set("$limit", strconv.Itoa(limit))
	params.Set("$order", "transit_timestamp DESC")
	params.Set("$where", where)
	return s.baseURL + "?" + params.Encode()
}

func (s *RidershipService) fetchWindow(ctx context.Context, w Window, limit int) ([]socrataRow, error) {
	header := http.Header{}
	if s.appToken != "" {
		header.Set("X-App-Token", s.appToken)
	}
	target := s.windowURL(w, limit)
	retrier := s.retrier.WithLogger(s.logger.With(
		"window_start", w.Start.Format(domain.DateLayout),
		"window_end", w.End.Format(domain.DateLayout),
	))

	return Retry(ctx, retrier, "ridership", func(ctx context.Context) ([]socrataRow, error) {
		var rows []socrataRow
		if err := getJSON(ctx, s.httpClient, target, header, &rows); err != nil {
			return nil, err
		}
		return rows, nil
	})
}

// FetchRidership retrieves ridership for [start, end] one week at a time,
// stopping once maxRecords rows are collected. A window that still fails after
// retries is skipped. An empty result is not an error; callers must check for it.
func (s *RidershipService) FetchRidership(ctx context.Context, start, end time.Time, maxRecords int) ([]domain.RidershipRecord, error) {
	windows := Windows(start, end)
	limit := windowLimit(start, end, maxRecords)

	s.logger.Info("fetching ridership",
		"start", start.Format(domain.DateLayout),
		"end", end.Format(domain.DateLayout),
		"max_records", maxRecords,
		"windows", len(windows),
		"window_limit", limit,
	)

	var (
		rows    []socrataRow
		skipped int
	)
	for i, w := range windows {
		batch, err := s.fetchWindow(ctx, w, limit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("ridership: extraction cancelled: %w", ctx.Err())
			}
			skipped++
			s.metrics.windowSkipped()
			s.logger.Error("skipping ridership window",
				"window_start", w.Start.Format(domain.DateLayout),
				"window_end", w.End.Format(domain.DateLayout),
				"error", err.Error(),
			)
			continue
		}

		rows = append(rows, batch...)
		s.logger.Info("fetched ridership window",
			"window_start", w.Start.Format(domain.DateLayout),
			"window_end", w.End.Format(domain.DateLayout),
			"records", len(batch),
			"total", len(rows),
		)

		if len(rows) >= maxRecords {
			rows = rows[:maxRecords]
			s.logger.Info("reached max records", "max_records", maxRecords)
			break
		}

		if i < len(windows)-1 {
			if err := s.sleep(ctx, s.politeness); err != nil {
				return nil, fmt.Errorf("ridership: extraction cancelled: %w", err)
			}
		}
	}

	records := toRidershipRecords(rows)
	s.metrics.addExtracted("ridership", len(records))

	if len(records) == 0 {
		s.logger.Error("no ridership data retrieved", "windows", len(windows), "skipped", skipped)
		return []domain.RidershipRecord{}, nil
	}

	s.logger.Info("ridership extraction complete",
		"records", len(records),
		"dropped", len(rows)-len(records),
		"skipped_windows", skipped,
	)
	return records, nil
}

// toRidershipRecords parses timestamps, drops unparseable rows and sorts by date
func toRidershipRecords(rows []socrataRow) []domain.RidershipRecord {
	records := make([]domain.RidershipRecord, 0, len(rows))
	for _, row := range rows {
		ts, ok := parseTimestamp(row.TransitTimestamp)
		if !ok {
			continue
		}
		records = append(records, domain.RidershipRecord{
			TransitTimestamp:  ts,
			Date:              ts,
			TransitMode:       row.TransitMode,
			StationComplexID:  row.StationComplexID,
			StationComplex:    row.StationComplex,
			Borough:           row.Borough,
			PaymentMethod:     row.PaymentMethod,
			FareClassCategory: row.FareClassCategory,
			Ridership:         row.Ridership.value,
			Transfers:         row.Transfers.value,
			Latitude:          row.Latitude.value,
			Longitude:         row.Longitude.value,
		})
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})
	return records
}

// truncateDay returns the civil date of t, in t's own zone, as UTC midnight.
// Days from any offset compare and hash equal.
func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
