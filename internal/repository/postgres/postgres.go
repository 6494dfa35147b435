package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smartcity/transitweather/internal/domain"
)

// DefaultAnalyticsTable is the table holding the merged dataset
const DefaultAnalyticsTable = "transit_weather_analytics"

// BatchSize is the number of rows sent per COPY
const BatchSize = 1000

// analyticsColumns pairs every exported column with its SQL type
var analyticsColumns = []struct {
	name    string
	sqlType string
}{
	{"date", "DATE NOT NULL"},
	{"transit_timestamp", "TIMESTAMP"},
	{"transit_mode", "TEXT"},
	{"station_complex_id", "TEXT"},
	{"station_complex", "TEXT"},
	{"borough", "TEXT"},
	{"payment_method", "TEXT"},
	{"fare_class_category", "TEXT"},
	{"ridership", "DOUBLE PRECISION"},
	{"transfers", "DOUBLE PRECISION"},
	{"latitude", "DOUBLE PRECISION"},
	{"longitude", "DOUBLE PRECISION"},
	{"temperature_mean", "DOUBLE PRECISION"},
	{"precipitation", "DOUBLE PRECISION"},
	{"windspeed", "DOUBLE PRECISION"},
	{"temperature_f", "DOUBLE PRECISION"},
	{"precipitation_in", "DOUBLE PRECISION"},
	{"windspeed_mph", "DOUBLE PRECISION"},
	{"year", "INTEGER NOT NULL"},
	{"month", "INTEGER NOT NULL"},
	{"day", "INTEGER NOT NULL"},
	{"day_of_week", "INTEGER NOT NULL"},
	{"day_name", "TEXT NOT NULL"},
	{"week_of_year", "INTEGER NOT NULL"},
	{"is_weekend", "INTEGER NOT NULL"},
	{"is_weekday", "INTEGER NOT NULL"},
	{"quarter", "INTEGER NOT NULL"},
	{"season", "TEXT NOT NULL"},
	{"temp_category", "TEXT"},
	{"rain_category", "TEXT"},
	{"is_rainy", "INTEGER"},
	{"weather_impact_score", "DOUBLE PRECISION"},
	{"weather_condition", "TEXT"},
	{"ridership_7day_avg", "DOUBLE PRECISION"},
	{"ridership_30day_avg", "DOUBLE PRECISION"},
}

// PostgresRepository implements domain.AnalyticsRepository
type PostgresRepository struct {
	pool  *pgxpool.Pool
	table string
}

var _ domain.AnalyticsRepository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a new PostgreSQL repository writing the
// merged dataset to table
func NewPostgresRepository(pool *pgxpool.Pool, table string) *PostgresRepository {
	if table == "" {
		table = DefaultAnalyticsTable
	}
	return &PostgresRepository{pool: pool, table: table}
}

func (r *PostgresRepository) tableIdent() string {
	return pgx.Identifier{r.table}.Sanitize()
}

func columnNames() []string {
	names := make([]string, len(analyticsColumns))
	for i, c := range analyticsColumns {
		names[i] = c.name
	}
	return names
}

// EnsureSchema creates the analytics and pipeline run tables when missing
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	defs := make([]string, len(analyticsColumns))
	for i, c := range analyticsColumns {
		defs[i] = c.name + " " + c.sqlType
	}

	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			%s
		)`, r.tableIdent(), strings.Join(defs, ",\n\t\t\t")),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (date)`,
			pgx.Identifier{r.table + "_date_idx"}.Sanitize(), r.tableIdent()),
		`CREATE TABLE IF NOT EXISTS pipeline_runs (
			id          TEXT PRIMARY KEY,
			status      TEXT NOT NULL,
			start_time  TIMESTAMPTZ NOT NULL,
			end_time    TIMESTAMPTZ,
			error       TEXT,
			records     INTEGER NOT NULL DEFAULT 0,
			metrics     JSONB NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: failed to ensure schema: %w", err)
		}
	}
	return nil
}

// ReplaceAnalytics swaps the table content for records inside one transaction
func (r *PostgresRepository) ReplaceAnalytics(ctx context.Context, records []domain.AnalyticsRecord) error {
	if err := r.EnsureSchema(ctx); err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "TRUNCATE "+r.tableIdent()); err != nil {
		return fmt.Errorf("postgres: failed to truncate %s: %w", r.table, err)
	}

	cols := columnNames()
	for start := 0; start < len(records); start += BatchSize {
		end := min(start+BatchSize, len(records))
		rows := make([][]any, 0, end-start)
		for _, rec := range records[start:end] {
			rows = append(rows, rowValues(rec))
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{r.table}, cols, pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("postgres: failed to copy rows %d-%d: %w", start, end, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: failed to commit analytics: %w", err)
	}
	return nil
}

func rowValues(rec domain.AnalyticsRecord) []any {
	cols := rec.Columns()
	values := make([]any, len(cols))
	for i, c := range cols {
		values[i] = c.Value
	}
	return values
}

// GetAnalytics retrieves stored rows with dates in [from, to]
func (r *PostgresRepository) GetAnalytics(ctx context.Context, from, to time.Time) ([]domain.AnalyticsRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE date BETWEEN $1 AND $2
		ORDER BY date, transit_timestamp
	`, strings.Join(columnNames(), ", "), r.tableIdent())

	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query analytics: %w", err)
	}
	defer rows.Close()

	var results []domain.AnalyticsRecord
	for rows.Next() {
		var a domain.AnalyticsRecord
		var ts *time.Time
		err := rows.Scan(
			&a.Date, &ts,
			&a.TransitMode, &a.StationComplexID, &a.StationComplex, &a.Borough,
			&a.PaymentMethod, &a.FareClassCategory,
			&a.Ridership, &a.Transfers, &a.Latitude, &a.Longitude,
			&a.TemperatureMean, &a.Precipitation, &a.Windspeed,
			&a.TemperatureF, &a.PrecipitationIn, &a.WindspeedMph,
			&a.Year, &a.Month, &a.Day, &a.DayOfWeek, &a.DayName, &a.WeekOfYear,
			&a.IsWeekend, &a.IsWeekday, &a.Quarter, &a.Season,
			&a.TempCategory, &a.RainCategory, &a.IsRainy,
			&a.WeatherImpactScore, &a.WeatherCondition,
			&a.Ridership7DayAvg, &a.Ridership30DayAvg,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan analytics row: %w", err)
		}
		if ts != nil {
			a.TransitTimestamp = *ts
		}
		results = append(results, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to iterate analytics rows: %w", err)
	}

	return results, nil
}

// SavePipelineRun upserts a run with its full metrics document
func (r *PostgresRepository) SavePipelineRun(ctx context.Context, run domain.PipelineRun) error {
	if err := r.EnsureSchema(ctx); err != nil {
		return err
	}

	metrics, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("postgres: failed to marshal pipeline run: %w", err)
	}

	query := `
		INSERT INTO pipeline_runs (id, status, start_time, end_time, error, records, metrics)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			end_time = EXCLUDED.end_time,
			error = EXCLUDED.error,
			records = EXCLUDED.records,
			metrics = EXCLUDED.metrics
	`

	var endTime any
	if !run.EndTime.IsZero() {
		endTime = run.EndTime
	}
	var runErr any
	if run.Error != "" {
		runErr = run.Error
	}

	_, err = r.pool.Exec(ctx, query,
		run.ID, run.Status, run.StartTime, endTime, runErr, run.Transformation.Records, metrics,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to save pipeline run: %w", err)
	}

	return nil
}

// Health checks database connectivity
func (r *PostgresRepository) Health(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}
