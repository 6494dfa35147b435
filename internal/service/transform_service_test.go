package service

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcity/transitweather/internal/domain"
)

func newTestTransformService() *TransformService {
	logger := discardLogger()
	return NewTransformService(NewQualityValidator(logger), NewFeatureDeriver(logger), logger)
}

func TestTransformAndMerge_InnerJoinOnDay(t *testing.T) {
	svc := newTestTransformService()

	ridership := []domain.RidershipRecord{
		ridershipRow(time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC), 10),
		ridershipRow(time.Date(2024, 1, 2, 7, 0, 0, 0, time.UTC), 20),
		ridershipRow(time.Date(2024, 1, 3, 7, 0, 0, 0, time.UTC), 30),
	}
	weather := []domain.WeatherRecord{
		weatherRow(day(2024, 1, 2), 5, 0, 3),
		weatherRow(day(2024, 1, 3), 6, 1, 3),
		weatherRow(day(2024, 1, 4), 7, 2, 3),
	}

	result := svc.TransformAndMerge(ridership, weather)

	require.Len(t, result.Records, 2)
	assert.Equal(t, day(2024, 1, 2), result.Records[0].Date)
	assert.Equal(t, day(2024, 1, 3), result.Records[1].Date)
	assert.Equal(t, 20.0, *result.Records[0].Ridership)
	assert.Equal(t, 5.0, *result.Records[0].TemperatureMean)
	assert.Equal(t, 41.0, *result.Records[0].TemperatureF)

	require.Contains(t, result.Quality, DatasetRidership)
	require.Contains(t, result.Quality, DatasetWeather)
	assert.Equal(t, 3, result.Quality[DatasetRidership].FinalRows)
	assert.Equal(t, domain.StatusPassed, result.Quality[DatasetWeather].Status)
	assert.Greater(t, result.NullScore, 0.0)
}

func TestTransformAndMerge_HourlyRowsShareDailyWeather(t *testing.T) {
	svc := newTestTransformService()

	var ridership []domain.RidershipRecord
	for h := 0; h < 24; h++ {
		ridership = append(ridership, ridershipRow(time.Date(2024, 2, 1, h, 0, 0, 0, time.UTC), float64(h)))
	}
	weather := []domain.WeatherRecord{weatherRow(day(2024, 2, 1), -2, 4, 6)}

	result := svc.TransformAndMerge(ridership, weather)

	require.Len(t, result.Records, 24)
	for i, r := range result.Records {
		assert.Equal(t, day(2024, 2, 1), r.Date)
		assert.Equal(t, -2.0, *r.TemperatureMean)
		assert.Equal(t, float64(i), *r.Ridership, "same-day rows keep timestamp order")
	}
}

func TestTransformAndMerge_EmptyInputIsNotAnError(t *testing.T) {
	svc := newTestTransformService()

	result := svc.TransformAndMerge(nil, []domain.WeatherRecord{weatherRow(day(2024, 1, 1), 1, 1, 1)})

	assert.True(t, result.Empty())
	assert.NotNil(t, result.Records)
	assert.Equal(t, domain.StatusEmpty, result.Quality[DatasetRidership].Status)
	assert.Equal(t, domain.StatusPassed, result.Quality[DatasetWeather].Status)
}

func TestTransformAndMerge_NoOverlap(t *testing.T) {
	svc := newTestTransformService()

	result := svc.TransformAndMerge(
		[]domain.RidershipRecord{ridershipRow(day(2024, 1, 1), 1)},
		[]domain.WeatherRecord{weatherRow(day(2024, 6, 1), 1, 1, 1)},
	)

	assert.True(t, result.Empty())
	assert.Len(t, result.Quality, 2)
	assert.Equal(t, 0.0, result.NullScore)
}

func TestTransformAndMerge_Deterministic(t *testing.T) {
	svc := newTestTransformService()

	var ridership []domain.RidershipRecord
	var weather []domain.WeatherRecord
	for i := 0; i < 40; i++ {
		d := day(2024, 1, 1).AddDate(0, 0, i)
		ridership = append(ridership, ridershipRow(d.Add(8*time.Hour), float64(1000+i*7%13)))
		weather = append(weather, weatherRow(d, float64(i%9)-3, float64(i%4), float64(i%6)))
	}

	first := svc.TransformAndMerge(ridership, weather)
	second := svc.TransformAndMerge(ridership, weather)

	assert.Equal(t, first.Records, second.Records)
	assert.Equal(t, first.NullScore, second.NullScore)
}

func TestJoinByDay_FirstWeatherRowWins(t *testing.T) {
	merged := JoinByDay(
		[]domain.RidershipRecord{ridershipRow(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), 1)},
		[]domain.WeatherRecord{
			weatherRow(day(2024, 1, 1), 1, 0, 0),
			weatherRow(day(2024, 1, 1), 9, 0, 0),
		},
	)

	require.Len(t, merged, 1)
	assert.Equal(t, 1.0, *merged[0].TemperatureMean)
}

func TestNullScore(t *testing.T) {
	rec := domain.AnalyticsRecord{Date: day(2024, 1, 1)}
	cells := len(rec.Columns())

	nonNull := 0
	for _, c := range rec.Columns() {
		if !c.IsNull() {
			nonNull++
		}
	}
	want := float64(nonNull) / float64(cells) * 100

	assert.InDelta(t, want, NullScore([]domain.AnalyticsRecord{rec}), 0.01)
	assert.Equal(t, 0.0, NullScore(nil))
}

func TestJoinByDay_OffsetTimestamps(t *testing.T) {
	weather := []domain.WeatherRecord{
		weatherRow(day(2024, 1, 1), 1, 0, 3),
		weatherRow(day(2024, 1, 2), 2, 0, 3),
	}
	eastern := time.FixedZone("EST", -5*60*60)
	tokyo := time.FixedZone("JST", 9*60*60)

	tests := []struct {
		name     string
		ts       time.Time
		wantDay  time.Time
		wantTemp float64
	}{
		{"utc", time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), day(2024, 1, 1), 1},
		{"negative offset", time.Date(2024, 1, 1, 9, 0, 0, 0, eastern), day(2024, 1, 1), 1},
		{"late evening keeps its civil day", time.Date(2024, 1, 1, 23, 30, 0, 0, eastern), day(2024, 1, 1), 1},
		{"positive offset", time.Date(2024, 1, 2, 2, 0, 0, 0, tokyo), day(2024, 1, 2), 2},
		{"local zone", time.Date(2024, 1, 2, 12, 0, 0, 0, time.Local), day(2024, 1, 2), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged := JoinByDay([]domain.RidershipRecord{ridershipRow(tt.ts, 10)}, weather)

			require.Len(t, merged, 1)
			assert.Equal(t, tt.wantDay, merged[0].Date)
			assert.Equal(t, tt.wantTemp, *merged[0].TemperatureMean)
			assert.True(t, merged[0].TransitTimestamp.Equal(tt.ts))
		})
	}
}

func TestJoinByDay_InputOrderDoesNotChangeRows(t *testing.T) {
	ridership := []domain.RidershipRecord{
		ridershipRow(time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC), 10),
		ridershipRow(time.Date(2024, 1, 2, 7, 0, 0, 0, time.UTC), 20),
		ridershipRow(time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC), 21),
		ridershipRow(time.Date(2024, 1, 3, 7, 0, 0, 0, time.UTC), 30),
	}
	weather := []domain.WeatherRecord{
		weatherRow(day(2024, 1, 2), 5, 0, 3),
		weatherRow(day(2024, 1, 3), 6, 1, 3),
		weatherRow(day(2024, 1, 4), 7, 2, 3),
	}

	forward := JoinByDay(ridership, weather)
	backward := JoinByDay(reversed(ridership), reversed(weather))

	sortByTimestamp := func(rows []domain.AnalyticsRecord) {
		sort.Slice(rows, func(i, j int) bool { return rows[i].TransitTimestamp.Before(rows[j].TransitTimestamp) })
	}
	sortByTimestamp(forward)
	sortByTimestamp(backward)

	require.Len(t, forward, 3)
	assert.Equal(t, forward, backward)
	for _, r := range forward {
		assert.NotEqual(t, day(2024, 1, 1), r.Date)
		assert.NotEqual(t, day(2024, 1, 4), r.Date)
	}
}

func reversed[T any](in []T) []T {
	out := make([]T, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}
