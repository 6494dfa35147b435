package service

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/smartcity/transitweather/internal/domain"
	"github.com/smartcity/transitweather/pkg/utils"
)

// Rolling window sizes, in observations
const (
	shortWindow = 7
	longWindow  = 30
)

// CelsiusToFahrenheit converts °C to °F
func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

// MillimetersToInches converts mm to in
func MillimetersToInches(mm float64) float64 {
	return mm / 25.4
}

// MetersPerSecondToMph converts m/s to mph
func MetersPerSecondToMph(ms float64) float64 {
	return ms * 2.237
}

// TempCategory buckets a Fahrenheit temperature. Upper bounds are inclusive.
func TempCategory(f float64) string {
	switch {
	case f <= 32:
		return domain.TempFreezing
	case f <= 50:
		return domain.TempCold
	case f <= 68:
		return domain.TempMild
	case f <= 85:
		return domain.TempWarm
	default:
		return domain.TempHot
	}
}

// RainCategory buckets daily precipitation in inches. Upper bounds are inclusive.
func RainCategory(in float64) string {
	switch {
	case in <= 0.01:
		return domain.RainNone
	case in <= 0.1:
		return domain.RainLight
	case in <= 0.5:
		return domain.RainModerate
	default:
		return domain.RainHeavy
	}
}

// ImpactScore combines temperature discomfort (distance from 65°F), rain and
// wind into a 0..1 score. The temperature term is clipped like the other two,
// otherwise extreme days would push the score past 1.
func ImpactScore(tempF, precipIn, windMph float64) float64 {
	tempDiscomfort := utils.Clamp(math.Abs(tempF-65)/30, 0, 1)
	precipNorm := utils.Clamp(precipIn/0.5, 0, 1)
	windNorm := utils.Clamp(windMph/25, 0, 1)
	return 0.4*tempDiscomfort + 0.4*precipNorm + 0.2*windNorm
}

// WeatherCondition labels an impact score. Upper bounds are inclusive.
func WeatherCondition(score float64) string {
	switch {
	case score <= 0.3:
		return domain.ConditionGood
	case score <= 0.6:
		return domain.ConditionModerate
	default:
		return domain.ConditionPoor
	}
}

// Season maps a month to its meteorological season
func Season(m time.Month) string {
	switch m {
	case time.December, time.January, time.February:
		return domain.SeasonWinter
	case time.March, time.April, time.May:
		return domain.SeasonSpring
	case time.June, time.July, time.August:
		return domain.SeasonSummer
	default:
		return domain.SeasonFall
	}
}

// FeatureDeriver adds unit conversions, calendar fields, weather buckets,
// the impact score and rolling ridership averages to merged rows
type FeatureDeriver struct {
	logger *slog.Logger
}

// NewFeatureDeriver creates a new feature deriver
func NewFeatureDeriver(logger *slog.Logger) *FeatureDeriver {
	return &FeatureDeriver{logger: logger}
}

// Derive returns a copy of records with every feature filled in, sorted by date.
// It expects raw units; deriving twice converts twice.
func (d *FeatureDeriver) Derive(records []domain.AnalyticsRecord) []domain.AnalyticsRecord {
	out := make([]domain.AnalyticsRecord, len(records))
	copy(out, records)

	d.convertUnits(out)
	addCalendar(out)
	d.categorize(out)
	d.score(out)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	addRollingAverages(out)

	d.logger.Info("derived features", "rows", len(out))
	return out
}

// Conversions run first; every later step reads the converted units.
func (d *FeatureDeriver) convertUnits(rows []domain.AnalyticsRecord) {
	var tempC, tempF, precipMM, precipIn, windMS, windMph []float64
	for i := range rows {
		r := &rows[i]
		if r.TemperatureMean != nil {
			r.TemperatureF = utils.Ptr(CelsiusToFahrenheit(*r.TemperatureMean))
			tempC = append(tempC, *r.TemperatureMean)
			tempF = append(tempF, *r.TemperatureF)
		}
		if r.Precipitation != nil {
			r.PrecipitationIn = utils.Ptr(MillimetersToInches(*r.Precipitation))
			precipMM = append(precipMM, *r.Precipitation)
			precipIn = append(precipIn, *r.PrecipitationIn)
		}
		if r.Windspeed != nil {
			r.WindspeedMph = utils.Ptr(MetersPerSecondToMph(*r.Windspeed))
			windMS = append(windMS, *r.Windspeed)
			windMph = append(windMph, *r.WindspeedMph)
		}
	}

	d.logConversion("temperature", "C", "F", tempC, tempF)
	d.logConversion("precipitation", "mm", "in", precipMM, precipIn)
	d.logConversion("windspeed", "m/s", "mph", windMS, windMph)
}

func (d *FeatureDeriver) logConversion(metric, from, to string, raw, converted []float64) {
	if len(raw) == 0 {
		d.logger.Warn("skipping conversion, metric absent", "metric", metric)
		return
	}
	d.logger.Info("converted units",
		"metric", metric,
		"mean_"+from, utils.RoundTo(mean(raw), 2),
		"mean_"+to, utils.RoundTo(mean(converted), 2),
	)
}

func addCalendar(rows []domain.AnalyticsRecord) {
	for i := range rows {
		r := &rows[i]
		date := r.Date
		_, week := date.ISOWeek()
		dow := (int(date.Weekday()) + 6) % 7

		r.Year = date.Year()
		r.Month = int(date.Month())
		r.Day = date.Day()
		r.DayOfWeek = dow
		r.DayName = date.Weekday().String()
		r.WeekOfYear = week
		r.IsWeekend, r.IsWeekday = 0, 1
		if dow >= 5 {
			r.IsWeekend, r.IsWeekday = 1, 0
		}
		r.Quarter = (r.Month-1)/3 + 1
		r.Season = Season(date.Month())
	}
}

func (d *FeatureDeriver) categorize(rows []domain.AnalyticsRecord) {
	var temps, rains int
	for i := range rows {
		r := &rows[i]
		if r.TemperatureF != nil {
			r.TempCategory = utils.Ptr(TempCategory(*r.TemperatureF))
			temps++
		}
		if r.PrecipitationIn != nil {
			r.RainCategory = utils.Ptr(RainCategory(*r.PrecipitationIn))
			rainy := 0
			if *r.PrecipitationIn > 0.01 {
				rainy = 1
			}
			r.IsRainy = utils.Ptr(rainy)
			rains++
		}
	}
	if temps == 0 {
		d.logger.Warn("skipping temperature categories, temperature_f absent")
	}
	if rains == 0 {
		d.logger.Warn("skipping rain categories, precipitation_in absent")
	}
}

func (d *FeatureDeriver) score(rows []domain.AnalyticsRecord) {
	scored := 0
	for i := range rows {
		r := &rows[i]
		if r.TemperatureF == nil || r.PrecipitationIn == nil || r.WindspeedMph == nil {
			continue
		}
		s := ImpactScore(*r.TemperatureF, *r.PrecipitationIn, *r.WindspeedMph)
		r.WeatherImpactScore = utils.Ptr(s)
		r.WeatherCondition = utils.Ptr(WeatherCondition(s))
		scored++
	}
	if scored == 0 {
		d.logger.Warn("skipping weather impact score, converted metrics absent")
	}
}

// addRollingAverages expects rows sorted by date
func addRollingAverages(rows []domain.AnalyticsRecord) {
	values := make([]*float64, len(rows))
	for i := range rows {
		values[i] = rows[i].Ridership
	}
	short := RollingMean(values, shortWindow)
	long := RollingMean(values, longWindow)
	for i := range rows {
		rows[i].Ridership7DayAvg = short[i]
		rows[i].Ridership30DayAvg = long[i]
	}
}

// RollingMean is a trailing mean over the last window observations. Missing
// values are skipped; a window with no values yields nil.
func RollingMean(values []*float64, window int) []*float64 {
	out := make([]*float64, len(values))
	for i := range values {
		var sum float64
		var count int
		for j := max(0, i-window+1); j <= i; j++ {
			if values[j] != nil {
				sum += *values[j]
				count++
			}
		}
		if count > 0 {
			out[i] = utils.Ptr(sum / float64(count))
		}
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
