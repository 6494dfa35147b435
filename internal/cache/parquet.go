// Package cache persists the merged analytic table as a local parquet file.
package cache

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/smartcity/transitweather/internal/domain"
)

// ErrCacheIncompatible is returned when a cache file lacks columns the
// dashboard needs. Callers are expected to delete and regenerate it.
var ErrCacheIncompatible = errors.New("cache: incompatible schema")

// RequiredColumns must be present for a cache file to be reused
var RequiredColumns = []string{domain.ColumnTemperatureF, domain.ColumnPrecipitationIn}

const parallelism = 4

// cachedRecord is the on-disk row layout
type cachedRecord struct {
	Date             int32  `parquet:"name=date, type=INT32, convertedtype=DATE"`
	TransitTimestamp *int64 `parquet:"name=transit_timestamp, type=INT64, convertedtype=TIMESTAMP_MILLIS, repetitiontype=OPTIONAL"`

	TransitMode       *string  `parquet:"name=transit_mode, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	StationComplexID  *string  `parquet:"name=station_complex_id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	StationComplex    *string  `parquet:"name=station_complex, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Borough           *string  `parquet:"name=borough, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	PaymentMethod     *string  `parquet:"name=payment_method, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	FareClassCategory *string  `parquet:"name=fare_class_category, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Ridership         *float64 `parquet:"name=ridership, type=DOUBLE, repetitiontype=OPTIONAL"`
	Transfers         *float64 `parquet:"name=transfers, type=DOUBLE, repetitiontype=OPTIONAL"`
	Latitude          *float64 `parquet:"name=latitude, type=DOUBLE, repetitiontype=OPTIONAL"`
	Longitude         *float64 `parquet:"name=longitude, type=DOUBLE, repetitiontype=OPTIONAL"`

	TemperatureMean *float64 `parquet:"name=temperature_mean, type=DOUBLE, repetitiontype=OPTIONAL"`
	Precipitation   *float64 `parquet:"name=precipitation, type=DOUBLE, repetitiontype=OPTIONAL"`
	Windspeed       *float64 `parquet:"name=windspeed, type=DOUBLE, repetitiontype=OPTIONAL"`
	TemperatureF    *float64 `parquet:"name=temperature_f, type=DOUBLE, repetitiontype=OPTIONAL"`
	PrecipitationIn *float64 `parquet:"name=precipitation_in, type=DOUBLE, repetitiontype=OPTIONAL"`
	WindspeedMph    *float64 `parquet:"name=windspeed_mph, type=DOUBLE, repetitiontype=OPTIONAL"`

	Year       int32  `parquet:"name=year, type=INT32"`
	Month      int32  `parquet:"name=month, type=INT32"`
	Day        int32  `parquet:"name=day, type=INT32"`
	DayOfWeek  int32  `parquet:"name=day_of_week, type=INT32"`
	DayName    string `parquet:"name=day_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	WeekOfYear int32  `parquet:"name=week_of_year, type=INT32"`
	IsWeekend  int32  `parquet:"name=is_weekend, type=INT32"`
	IsWeekday  int32  `parquet:"name=is_weekday, type=INT32"`
	Quarter    int32  `parquet:"name=quarter, type=INT32"`
	Season     string `parquet:"name=season, type=BYTE_ARRAY, convertedtype=UTF8"`

	TempCategory       *string  `parquet:"name=temp_category, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	RainCategory       *string  `parquet:"name=rain_category, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	IsRainy            *int32   `parquet:"name=is_rainy, type=INT32, repetitiontype=OPTIONAL"`
	WeatherImpactScore *float64 `parquet:"name=weather_impact_score, type=DOUBLE, repetitiontype=OPTIONAL"`
	WeatherCondition   *string  `parquet:"name=weather_condition, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`

	Ridership7DayAvg  *float64 `parquet:"name=ridership_7day_avg, type=DOUBLE, repetitiontype=OPTIONAL"`
	Ridership30DayAvg *float64 `parquet:"name=ridership_30day_avg, type=DOUBLE, repetitiontype=OPTIONAL"`
}

// ParquetCache reads and writes the merged table at a fixed path
type ParquetCache struct {
	path        string
	compression string
	logger      *slog.Logger
}

// NewParquetCache creates a cache backed by path. compression is one of
// snappy, gzip or none.
func NewParquetCache(path, compression string, logger *slog.Logger) *ParquetCache {
	return &ParquetCache{
		path:        path,
		compression: compression,
		logger:      logger,
	}
}

// Path returns the cache file location
func (c *ParquetCache) Path() string {
	return c.path
}

// Exists reports whether a cache file is present
func (c *ParquetCache) Exists() bool {
	_, err := os.Stat(c.path)
	return err == nil
}

// Remove deletes the cache file. A missing file is not an error.
func (c *ParquetCache) Remove() error {
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cache: failed to remove %s: %w", c.path, err)
	}
	return nil
}

// Save writes records to the cache file, replacing any previous content
func (c *ParquetCache) Save(records []domain.AnalyticsRecord) (err error) {
	codec, err := getCompressionCodec(c.compression)
	if err != nil {
		return err
	}

	fw, err := local.NewLocalFileWriter(c.path)
	if err != nil {
		return fmt.Errorf("cache: failed to create %s: %w", c.path, err)
	}
	defer func() {
		if cerr := fw.Close(); cerr != nil {
			err = multierror.Append(err, fmt.Errorf("cache: failed to close %s: %w", c.path, cerr)).ErrorOrNil()
		}
	}()

	pw, err := writer.NewParquetWriter(fw, new(cachedRecord), parallelism)
	if err != nil {
		return fmt.Errorf("cache: failed to create parquet writer: %w", err)
	}
	pw.CompressionType = codec

	for _, r := range records {
		if err := pw.Write(toCached(r)); err != nil {
			return fmt.Errorf("cache: failed to write row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("cache: failed to finalize parquet file: %w", err)
	}

	c.logger.Info("cache written", "path", c.path, "rows", len(records), "compression", c.compression)
	return nil
}

// Columns returns the column names stored in the cache file footer
func (c *ParquetCache) Columns() (cols []string, err error) {
	fr, err := local.NewLocalFileReader(c.path)
	if err != nil {
		return nil, fmt.Errorf("cache: failed to open %s: %w", c.path, err)
	}
	defer func() {
		if cerr := fr.Close(); cerr != nil {
			err = multierror.Append(err, fmt.Errorf("cache: failed to close %s: %w", c.path, cerr)).ErrorOrNil()
		}
	}()

	pr, err := reader.NewParquetReader(fr, nil, 1)
	if err != nil {
		return nil, fmt.Errorf("cache: failed to read footer: %w", err)
	}
	defer pr.ReadStop()

	// the first schema element is the root
	for _, info := range pr.SchemaHandler.Infos[1:] {
		cols = append(cols, info.ExName)
	}
	return cols, nil
}

// CheckCompatible returns ErrCacheIncompatible when a required column is missing
func (c *ParquetCache) CheckCompatible() error {
	cols, err := c.Columns()
	if err != nil {
		return err
	}

	present := make(map[string]bool, len(cols))
	for _, col := range cols {
		present[strings.ToLower(col)] = true
	}

	var missing []string
	for _, req := range RequiredColumns {
		if !present[req] {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrCacheIncompatible, strings.Join(missing, ", "))
	}
	return nil
}

// Load reads the cache file after checking its schema
func (c *ParquetCache) Load() (records []domain.AnalyticsRecord, err error) {
	if err := c.CheckCompatible(); err != nil {
		return nil, err
	}

	fr, err := local.NewLocalFileReader(c.path)
	if err != nil {
		return nil, fmt.Errorf("cache: failed to open %s: %w", c.path, err)
	}
	defer func() {
		if cerr := fr.Close(); cerr != nil {
			err = multierror.Append(err, fmt.Errorf("cache: failed to close %s: %w", c.path, cerr)).ErrorOrNil()
		}
	}()

	pr, err := reader.NewParquetReader(fr, new(cachedRecord), parallelism)
	if err != nil {
		return nil, fmt.Errorf("cache: failed to create parquet reader: %w", err)
	}
	defer pr.ReadStop()

	rows := make([]cachedRecord, int(pr.GetNumRows()))
	if len(rows) > 0 {
		if err := pr.Read(&rows); err != nil {
			return nil, fmt.Errorf("cache: failed to read rows: %w", err)
		}
	}

	records = make([]domain.AnalyticsRecord, len(rows))
	for i, row := range rows {
		records[i] = fromCached(row)
	}

	c.logger.Info("cache loaded", "path", c.path, "rows", len(records))
	return records, nil
}

// getCompressionCodec returns the parquet codec for a configured name
func getCompressionCodec(name string) (parquet.CompressionCodec, error) {
	switch strings.ToUpper(name) {
	case "SNAPPY":
		return parquet.CompressionCodec_SNAPPY, nil
	case "GZIP":
		return parquet.CompressionCodec_GZIP, nil
	case "NONE", "":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return 0, fmt.Errorf("cache: unsupported compression type: %s", name)
	}
}

const secondsPerDay = 24 * 60 * 60

func toCached(r domain.AnalyticsRecord) cachedRecord {
	row := cachedRecord{
		Date:               int32(r.Date.Unix() / secondsPerDay),
		TransitMode:        r.TransitMode,
		StationComplexID:   r.StationComplexID,
		StationComplex:     r.StationComplex,
		Borough:            r.Borough,
		PaymentMethod:      r.PaymentMethod,
		FareClassCategory:  r.FareClassCategory,
		Ridership:          r.Ridership,
		Transfers:          r.Transfers,
		Latitude:           r.Latitude,
		Longitude:          r.Longitude,
		TemperatureMean:    r.TemperatureMean,
		Precipitation:      r.Precipitation,
		Windspeed:          r.Windspeed,
		TemperatureF:       r.TemperatureF,
		PrecipitationIn:    r.PrecipitationIn,
		WindspeedMph:       r.WindspeedMph,
		Year:               int32(r.Year),
		Month:              int32(r.Month),
		Day:                int32(r.Day),
		DayOfWeek:          int32(r.DayOfWeek),
		DayName:            r.DayName,
		WeekOfYear:         int32(r.WeekOfYear),
		IsWeekend:          int32(r.IsWeekend),
		IsWeekday:          int32(r.IsWeekday),
		Quarter:            int32(r.Quarter),
		Season:             r.Season,
		TempCategory:       r.TempCategory,
		RainCategory:       r.RainCategory,
		WeatherImpactScore: r.WeatherImpactScore,
		WeatherCondition:   r.WeatherCondition,
		Ridership7DayAvg:   r.Ridership7DayAvg,
		Ridership30DayAvg:  r.Ridership30DayAvg,
	}
	if !r.TransitTimestamp.IsZero() {
		ms := r.TransitTimestamp.UnixMilli()
		row.TransitTimestamp = &ms
	}
	if r.IsRainy != nil {
		v := int32(*r.IsRainy)
		row.IsRainy = &v
	}
	return row
}

func fromCached(row cachedRecord) domain.AnalyticsRecord {
	r := domain.AnalyticsRecord{
		Date:               time.Unix(int64(row.Date)*secondsPerDay, 0).UTC(),
		TransitMode:        row.TransitMode,
		StationComplexID:   row.StationComplexID,
		StationComplex:     row.StationComplex,
		Borough:            row.Borough,
		PaymentMethod:      row.PaymentMethod,
		FareClassCategory:  row.FareClassCategory,
		Ridership:          row.Ridership,
		Transfers:          row.Transfers,
		Latitude:           row.Latitude,
		Longitude:          row.Longitude,
		TemperatureMean:    row.TemperatureMean,
		Precipitation:      row.Precipitation,
		Windspeed:          row.Windspeed,
		TemperatureF:       row.TemperatureF,
		PrecipitationIn:    row.PrecipitationIn,
		WindspeedMph:       row.WindspeedMph,
		Year:               int(row.Year),
		Month:              int(row.Month),
		Day:                int(row.Day),
		DayOfWeek:          int(row.DayOfWeek),
		DayName:            row.DayName,
		WeekOfYear:         int(row.WeekOfYear),
		IsWeekend:          int(row.IsWeekend),
		IsWeekday:          int(row.IsWeekday),
		Quarter:            int(row.Quarter),
		Season:             row.Season,
		TempCategory:       row.TempCategory,
		RainCategory:       row.RainCategory,
		WeatherImpactScore: row.WeatherImpactScore,
		WeatherCondition:   row.WeatherCondition,
		Ridership7DayAvg:   row.Ridership7DayAvg,
		Ridership30DayAvg:  row.Ridership30DayAvg,
	}
	if row.TransitTimestamp != nil {
		r.TransitTimestamp = time.UnixMilli(*row.TransitTimestamp).UTC()
	}
	if row.IsRainy != nil {
		v := int(*row.IsRainy)
		r.IsRainy = &v
	}
	return r
}
