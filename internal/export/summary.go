package export

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/go-gota/gota/series"

	"github.com/smartcity/transitweather/internal/domain"
	"github.com/smartcity/transitweather/pkg/utils"
)

// Summarize computes headline statistics over records. Aggregates of a
// column with no values are nil.
func Summarize(records []domain.AnalyticsRecord) domain.Summary {
	s := domain.Summary{
		TotalRecords:    len(records),
		NumberOfColumns: len(domain.ColumnNames(domain.AnalyticsRecord{})),
	}
	if len(records) == 0 {
		return s
	}

	var ridership, tempF, precipIn []float64
	var rainyKnown, rainy int
	start, end := records[0].Date, records[0].Date
	for _, r := range records {
		if r.Date.Before(start) {
			start = r.Date
		}
		if r.Date.After(end) {
			end = r.Date
		}
		if r.Ridership != nil {
			ridership = append(ridership, *r.Ridership)
		}
		if r.TemperatureF != nil {
			tempF = append(tempF, *r.TemperatureF)
		}
		if r.PrecipitationIn != nil {
			precipIn = append(precipIn, *r.PrecipitationIn)
		}
		if r.IsRainy != nil {
			rainyKnown++
			rainy += *r.IsRainy
		}
	}
	s.DateRangeStart, s.DateRangeEnd = &start, &end

	if rs := floatSeries(ridership, "ridership"); rs != nil {
		s.AvgRidership = utils.Ptr(rs.Mean())
		s.MaxRidership = utils.Ptr(rs.Max())
		s.MinRidership = utils.Ptr(rs.Min())
	}
	if ts := floatSeries(tempF, domain.ColumnTemperatureF); ts != nil {
		s.AvgTemperatureF = utils.Ptr(ts.Mean())
	}
	if ps := floatSeries(precipIn, domain.ColumnPrecipitationIn); ps != nil {
		s.AvgPrecipitationIn = utils.Ptr(ps.Mean())
	}
	if rainyKnown > 0 {
		s.RainyDaysPct = utils.Ptr(utils.RoundTo(float64(rainy)/float64(rainyKnown)*100, 2))
	}
	return s
}

func floatSeries(values []float64, name string) *series.Series {
	if len(values) == 0 {
		return nil
	}
	s := series.New(values, series.Float, name)
	return &s
}

// SummaryTable renders s as a metric/value table. Missing aggregates are omitted.
func SummaryTable(s domain.Summary) [][]string {
	table := [][]string{
		{"metric", "value"},
		{"Total Records", strconv.Itoa(s.TotalRecords)},
		{"Date Range Start", formatDate(s.DateRangeStart)},
		{"Date Range End", formatDate(s.DateRangeEnd)},
		{"Number of Columns", strconv.Itoa(s.NumberOfColumns)},
	}
	if s.AvgRidership != nil {
		table = append(table,
			[]string{"Avg Daily Ridership", formatFloat(*s.AvgRidership, 0)},
			[]string{"Max Ridership", formatFloat(*s.MaxRidership, 0)},
			[]string{"Min Ridership", formatFloat(*s.MinRidership, 0)},
		)
	}
	if s.AvgTemperatureF != nil {
		table = append(table, []string{"Avg Temperature (°F)", formatFloat(*s.AvgTemperatureF, 1)})
	}
	if s.AvgPrecipitationIn != nil {
		table = append(table, []string{"Avg Precipitation (in)", formatFloat(*s.AvgPrecipitationIn, 2)})
	}
	if s.RainyDaysPct != nil {
		table = append(table, []string{"Rainy Days (%)", formatFloat(*s.RainyDaysPct, 1)})
	}
	return table
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "N/A"
	}
	return t.Format(domain.DateLayout)
}

func formatFloat(v float64, prec int) string {
	if math.IsNaN(v) {
		return "N/A"
	}
	return fmt.Sprintf("%.*f", prec, v)
}
