package domain

import "time"

// Daily weather metrics requested from the archive API
const (
	MetricTemperatureMean = "temperature_2m_mean"
	MetricPrecipitation   = "precipitation_sum"
	MetricWindspeed       = "windspeed_10m_max"
)

// DefaultTimezone is the timezone daily weather aggregates are computed in
const DefaultTimezone = "America/New_York"

// NYC coordinates
const (
	NYCLat = 40.7128
	NYCLon = -74.0060
)

// WeatherRecord represents one calendar day of weather at the fixed coordinate.
// A nil metric means the archive did not report it for that day.
type WeatherRecord struct {
	Date            time.Time `json:"date"`
	TemperatureMean *float64  `json:"temperature_mean"` // °C
	Precipitation   *float64  `json:"precipitation"`    // mm
	Windspeed       *float64  `json:"windspeed"`        // m/s
}

// RecordDate returns the calendar day of the observation
func (w WeatherRecord) RecordDate() time.Time {
	return w.Date
}

// Columns returns the tabular view of the row
func (w WeatherRecord) Columns() []Column {
	return []Column{
		timeColumn("date", w.Date),
		floatColumn("temperature_mean", w.TemperatureMean),
		floatColumn("precipitation", w.Precipitation),
		floatColumn("windspeed", w.Windspeed),
	}
}
