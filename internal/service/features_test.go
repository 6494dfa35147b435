package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcity/transitweather/internal/domain"
)

func TestUnitConversions(t *testing.T) {
	assert.Equal(t, 32.0, CelsiusToFahrenheit(0))
	assert.Equal(t, 212.0, CelsiusToFahrenheit(100))
	assert.Equal(t, -40.0, CelsiusToFahrenheit(-40))
	assert.InDelta(t, 70.7, CelsiusToFahrenheit(21.5), 1e-12)

	assert.Equal(t, 1.0, MillimetersToInches(25.4))
	assert.Equal(t, 0.0, MillimetersToInches(0))
	assert.InDelta(t, 0.12992125984, MillimetersToInches(3.3), 1e-10)

	assert.Equal(t, 2.237, MetersPerSecondToMph(1))
}

func TestTempCategory_Boundaries(t *testing.T) {
	tests := []struct {
		f    float64
		want string
	}{
		{-100, domain.TempFreezing},
		{32, domain.TempFreezing},
		{32.0001, domain.TempCold},
		{50, domain.TempCold},
		{50.5, domain.TempMild},
		{68, domain.TempMild},
		{68.1, domain.TempWarm},
		{85, domain.TempWarm},
		{85.1, domain.TempHot},
		{120, domain.TempHot},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TempCategory(tt.f), "%v°F", tt.f)
	}
}

func TestRainCategory_Boundaries(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, domain.RainNone},
		{0.01, domain.RainNone},
		{0.011, domain.RainLight},
		{0.1, domain.RainLight},
		{0.5, domain.RainModerate},
		{0.51, domain.RainHeavy},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RainCategory(tt.in), "%v in", tt.in)
	}
}

func TestImpactScoreAndCondition(t *testing.T) {
	assert.Equal(t, 0.0, ImpactScore(65, 0, 0))
	assert.InDelta(t, 1.0, ImpactScore(95, 0.5, 25), 1e-12)
	assert.InDelta(t, 1.0, ImpactScore(140, 3, 60), 1e-12)
	assert.InDelta(t, 0.4*0.5+0.4*0.2+0.2*0.4, ImpactScore(50, 0.1, 10), 1e-12)

	assert.Equal(t, domain.ConditionGood, WeatherCondition(0.3))
	assert.Equal(t, domain.ConditionModerate, WeatherCondition(0.31))
	assert.Equal(t, domain.ConditionModerate, WeatherCondition(0.6))
	assert.Equal(t, domain.ConditionPoor, WeatherCondition(0.61))
}

func TestSeason(t *testing.T) {
	assert.Equal(t, domain.SeasonWinter, Season(time.December))
	assert.Equal(t, domain.SeasonWinter, Season(time.February))
	assert.Equal(t, domain.SeasonSpring, Season(time.March))
	assert.Equal(t, domain.SeasonSummer, Season(time.August))
	assert.Equal(t, domain.SeasonFall, Season(time.November))
}

func TestDerive_CalendarAndCategories(t *testing.T) {
	d := NewFeatureDeriver(discardLogger())
	in := []domain.AnalyticsRecord{{
		Date:            day(2024, 1, 6), // Saturday
		Ridership:       f64(120),
		TemperatureMean: f64(0),
		Precipitation:   f64(25.4),
		Windspeed:       f64(10),
	}}

	out := d.Derive(in)
	require.Len(t, out, 1)
	r := out[0]

	assert.Equal(t, 32.0, *r.TemperatureF)
	assert.Equal(t, 1.0, *r.PrecipitationIn)
	assert.InDelta(t, 22.37, *r.WindspeedMph, 1e-9)

	assert.Equal(t, 2024, r.Year)
	assert.Equal(t, 1, r.Month)
	assert.Equal(t, 6, r.Day)
	assert.Equal(t, 5, r.DayOfWeek)
	assert.Equal(t, "Saturday", r.DayName)
	assert.Equal(t, 1, r.WeekOfYear)
	assert.Equal(t, 1, r.IsWeekend)
	assert.Equal(t, 0, r.IsWeekday)
	assert.Equal(t, 1, r.Quarter)
	assert.Equal(t, domain.SeasonWinter, r.Season)

	assert.Equal(t, domain.TempFreezing, *r.TempCategory)
	assert.Equal(t, domain.RainHeavy, *r.RainCategory)
	assert.Equal(t, 1, *r.IsRainy)
	assert.InDelta(t, 0.4*1+0.4*1+0.2*(22.37/25), *r.WeatherImpactScore, 1e-9)
	assert.Equal(t, domain.ConditionPoor, *r.WeatherCondition)

	assert.Nil(t, in[0].TemperatureF, "input is not mutated")
}

func TestDerive_MondayIsZero(t *testing.T) {
	d := NewFeatureDeriver(discardLogger())
	out := d.Derive([]domain.AnalyticsRecord{{Date: day(2024, 1, 1)}})
	assert.Equal(t, 0, out[0].DayOfWeek)
	assert.Equal(t, "Monday", out[0].DayName)
	assert.Equal(t, 1, out[0].IsWeekday)
}

func TestDerive_AbsentMetricsStayAbsent(t *testing.T) {
	d := NewFeatureDeriver(discardLogger())
	out := d.Derive([]domain.AnalyticsRecord{{
		Date:            day(2024, 7, 4),
		TemperatureMean: f64(30),
	}})

	r := out[0]
	assert.InDelta(t, 86.0, *r.TemperatureF, 1e-9)
	assert.Equal(t, domain.TempHot, *r.TempCategory)
	assert.Nil(t, r.PrecipitationIn)
	assert.Nil(t, r.RainCategory)
	assert.Nil(t, r.IsRainy)
	assert.Nil(t, r.WindspeedMph)
	assert.Nil(t, r.WeatherImpactScore)
	assert.Nil(t, r.WeatherCondition)
	assert.Equal(t, domain.SeasonSummer, r.Season)
	assert.Equal(t, 3, r.Quarter)
}

func TestDerive_RollingAveragesAfterSort(t *testing.T) {
	d := NewFeatureDeriver(discardLogger())

	var in []domain.AnalyticsRecord
	for i := 10; i >= 1; i-- {
		in = append(in, domain.AnalyticsRecord{
			Date:      day(2024, 3, i),
			Ridership: f64(float64(i)),
		})
	}

	out := d.Derive(in)
	require.Len(t, out, 10)
	for i := 1; i < len(out); i++ {
		assert.True(t, out[i-1].Date.Before(out[i].Date))
	}

	assert.Equal(t, 1.0, *out[0].Ridership7DayAvg)
	assert.Equal(t, 1.0, *out[0].Ridership30DayAvg)
	assert.InDelta(t, 7.0, *out[9].Ridership7DayAvg, 1e-12)  // mean of 4..10
	assert.InDelta(t, 5.5, *out[9].Ridership30DayAvg, 1e-12) // mean of 1..10
	assert.InDelta(t, 2.0, *out[2].Ridership7DayAvg, 1e-12)  // partial window
}

func TestRollingMean_SkipsMissing(t *testing.T) {
	out := RollingMean([]*float64{nil, f64(2), nil, f64(4)}, 2)

	assert.Nil(t, out[0])
	assert.Equal(t, 2.0, *out[1])
	assert.Equal(t, 2.0, *out[2])
	assert.Equal(t, 4.0, *out[3])
}
