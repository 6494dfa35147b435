package domain

import "time"

// Temperature buckets, upper bounds inclusive (°F)
const (
	TempFreezing = "Freezing"
	TempCold     = "Cold"
	TempMild     = "Mild"
	TempWarm     = "Warm"
	TempHot      = "Hot"
)

// Precipitation buckets, upper bounds inclusive (in)
const (
	RainNone     = "No Rain"
	RainLight    = "Light Rain"
	RainModerate = "Moderate Rain"
	RainHeavy    = "Heavy Rain"
)

// Weather condition derived from the impact score
const (
	ConditionGood     = "Good"
	ConditionModerate = "Moderate"
	ConditionPoor     = "Poor"
)

// Seasons
const (
	SeasonWinter = "Winter"
	SeasonSpring = "Spring"
	SeasonSummer = "Summer"
	SeasonFall   = "Fall"
)

// Columns the cache must carry to be reused
const (
	ColumnTemperatureF    = "temperature_f"
	ColumnPrecipitationIn = "precipitation_in"
)

// AnalyticsRecord is one ridership row joined with the weather of its day
// plus every derived feature. Optional metrics stay nil when their source is absent.
type AnalyticsRecord struct {
	Date             time.Time `json:"date"`
	TransitTimestamp time.Time `json:"transit_timestamp"`

	TransitMode       *string  `json:"transit_mode,omitempty"`
	StationComplexID  *string  `json:"station_complex_id,omitempty"`
	StationComplex    *string  `json:"station_complex,omitempty"`
	Borough           *string  `json:"borough,omitempty"`
	PaymentMethod     *string  `json:"payment_method,omitempty"`
	FareClassCategory *string  `json:"fare_class_category,omitempty"`
	Ridership         *float64 `json:"ridership"`
	Transfers         *float64 `json:"transfers"`
	Latitude          *float64 `json:"latitude,omitempty"`
	Longitude         *float64 `json:"longitude,omitempty"`

	TemperatureMean *float64 `json:"temperature_mean"`
	Precipitation   *float64 `json:"precipitation"`
	Windspeed       *float64 `json:"windspeed"`

	TemperatureF    *float64 `json:"temperature_f"`
	PrecipitationIn *float64 `json:"precipitation_in"`
	WindspeedMph    *float64 `json:"windspeed_mph"`

	Year       int    `json:"year"`
	Month      int    `json:"month"`
	Day        int    `json:"day"`
	DayOfWeek  int    `json:"day_of_week"` // 0 = Monday
	DayName    string `json:"day_name"`
	WeekOfYear int    `json:"week_of_year"`
	IsWeekend  int    `json:"is_weekend"`
	IsWeekday  int    `json:"is_weekday"`
	Quarter    int    `json:"quarter"`
	Season     string `json:"season"`

	TempCategory       *string  `json:"temp_category"`
	RainCategory       *string  `json:"rain_category"`
	IsRainy            *int     `json:"is_rainy"`
	WeatherImpactScore *float64 `json:"weather_impact_score"`
	WeatherCondition   *string  `json:"weather_condition"`

	Ridership7DayAvg  *float64 `json:"ridership_7day_avg"`
	Ridership30DayAvg *float64 `json:"ridership_30day_avg"`
}

// RecordDate returns the calendar day of the row
func (a AnalyticsRecord) RecordDate() time.Time {
	return a.Date
}

// Columns returns the tabular view of the row in export order
func (a AnalyticsRecord) Columns() []Column {
	return []Column{
		timeColumn("date", a.Date),
		timeColumn("transit_timestamp", a.TransitTimestamp),
		stringColumn("transit_mode", a.TransitMode),
		stringColumn("station_complex_id", a.StationComplexID),
		stringColumn("station_complex", a.StationComplex),
		stringColumn("borough", a.Borough),
		stringColumn("payment_method", a.PaymentMethod),
		stringColumn("fare_class_category", a.FareClassCategory),
		floatColumn("ridership", a.Ridership),
		floatColumn("transfers", a.Transfers),
		floatColumn("latitude", a.Latitude),
		floatColumn("longitude", a.Longitude),
		floatColumn("temperature_mean", a.TemperatureMean),
		floatColumn("precipitation", a.Precipitation),
		floatColumn("windspeed", a.Windspeed),
		floatColumn(ColumnTemperatureF, a.TemperatureF),
		floatColumn(ColumnPrecipitationIn, a.PrecipitationIn),
		floatColumn("windspeed_mph", a.WindspeedMph),
		{Name: "year", Value: a.Year, Numeric: true},
		{Name: "month", Value: a.Month, Numeric: true},
		{Name: "day", Value: a.Day, Numeric: true},
		{Name: "day_of_week", Value: a.DayOfWeek, Numeric: true},
		{Name: "day_name", Value: a.DayName},
		{Name: "week_of_year", Value: a.WeekOfYear, Numeric: true},
		{Name: "is_weekend", Value: a.IsWeekend, Numeric: true},
		{Name: "is_weekday", Value: a.IsWeekday, Numeric: true},
		{Name: "quarter", Value: a.Quarter, Numeric: true},
		{Name: "season", Value: a.Season},
		stringColumn("temp_category", a.TempCategory),
		stringColumn("rain_category", a.RainCategory),
		intColumn("is_rainy", a.IsRainy),
		floatColumn("weather_impact_score", a.WeatherImpactScore),
		stringColumn("weather_condition", a.WeatherCondition),
		floatColumn("ridership_7day_avg", a.Ridership7DayAvg),
		floatColumn("ridership_30day_avg", a.Ridership30DayAvg),
	}
}

// MergeResult is the output of a transform-and-merge run
type MergeResult struct {
	Records   []AnalyticsRecord `json:"records"`
	Quality   QualityReports    `json:"quality"`
	NullScore float64           `json:"null_score"`
}

// Empty reports whether the merge produced no rows
func (m MergeResult) Empty() bool {
	return len(m.Records) == 0
}

// Summary holds headline statistics of a merged dataset
type Summary struct {
	TotalRecords       int        `json:"total_records"`
	DateRangeStart     *time.Time `json:"date_range_start,omitempty"`
	DateRangeEnd       *time.Time `json:"date_range_end,omitempty"`
	NumberOfColumns    int        `json:"number_of_columns"`
	AvgRidership       *float64   `json:"avg_ridership,omitempty"`
	MaxRidership       *float64   `json:"max_ridership,omitempty"`
	MinRidership       *float64   `json:"min_ridership,omitempty"`
	AvgTemperatureF    *float64   `json:"avg_temperature_f,omitempty"`
	AvgPrecipitationIn *float64   `json:"avg_precipitation_in,omitempty"`
	RainyDaysPct       *float64   `json:"rainy_days_pct,omitempty"`
}

// Correlation describes the linear relationship between ridership and a weather metric
type Correlation struct {
	Metric      string  `json:"metric"`
	Coefficient float64 `json:"coefficient"`
	Label       string  `json:"label"`
	Samples     int     `json:"samples"`
}

// Filter narrows a merged dataset for display
type Filter struct {
	Years    []int
	Months   []int
	DayNames []string
	From     time.Time
	To       time.Time
}
