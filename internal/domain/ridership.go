package domain

import "time"

// RidershipRecord is one hourly ridership row of the transit open-data feed
type RidershipRecord struct {
	TransitTimestamp  time.Time `json:"transit_timestamp"`
	Date              time.Time `json:"date"`
	TransitMode       *string   `json:"transit_mode,omitempty"`
	StationComplexID  *string   `json:"station_complex_id,omitempty"`
	StationComplex    *string   `json:"station_complex,omitempty"`
	Borough           *string   `json:"borough,omitempty"`
	PaymentMethod     *string   `json:"payment_method,omitempty"`
	FareClassCategory *string   `json:"fare_class_category,omitempty"`
	Ridership         *float64  `json:"ridership"`
	Transfers         *float64  `json:"transfers"`
	Latitude          *float64  `json:"latitude,omitempty"`
	Longitude         *float64  `json:"longitude,omitempty"`
}

// RecordDate returns the parsed date of the row
func (r RidershipRecord) RecordDate() time.Time {
	return r.Date
}

// Columns returns the tabular view of the row
func (r RidershipRecord) Columns() []Column {
	return []Column{
		timeColumn("transit_timestamp", r.TransitTimestamp),
		stringColumn("transit_mode", r.TransitMode),
		stringColumn("station_complex_id", r.StationComplexID),
		stringColumn("station_complex", r.StationComplex),
		stringColumn("borough", r.Borough),
		stringColumn("payment_method", r.PaymentMethod),
		stringColumn("fare_class_category", r.FareClassCategory),
		floatColumn("ridership", r.Ridership),
		floatColumn("transfers", r.Transfers),
		floatColumn("latitude", r.Latitude),
		floatColumn("longitude", r.Longitude),
		timeColumn("date", r.Date),
	}
}
