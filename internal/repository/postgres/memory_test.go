package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcity/transitweather/internal/domain"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestMemoryRepository_Analytics(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	records := []domain.AnalyticsRecord{
		{Date: day(3), TransitTimestamp: day(3).Add(9 * time.Hour)},
		{Date: day(1), TransitTimestamp: day(1).Add(8 * time.Hour)},
		{Date: day(3), TransitTimestamp: day(3).Add(7 * time.Hour)},
		{Date: day(5)},
	}
	require.NoError(t, repo.ReplaceAnalytics(ctx, records))

	got, err := repo.GetAnalytics(ctx, day(1), day(3))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, day(1), got[0].Date)
	assert.Equal(t, day(3).Add(7*time.Hour), got[1].TransitTimestamp)
	assert.Equal(t, day(3).Add(9*time.Hour), got[2].TransitTimestamp)

	// replace discards the previous dataset
	require.NoError(t, repo.ReplaceAnalytics(ctx, records[3:]))
	got, err = repo.GetAnalytics(ctx, day(1), day(31))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMemoryRepository_PipelineRuns(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	_, err := repo.PipelineRun("missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, repo.SavePipelineRun(ctx, domain.PipelineRun{ID: "r1", Status: "RUNNING"}))
	require.NoError(t, repo.SavePipelineRun(ctx, domain.PipelineRun{ID: "r1", Status: "SUCCESS"}))

	run, err := repo.PipelineRun("r1")
	require.NoError(t, err)
	assert.Equal(t, "SUCCESS", run.Status)
	assert.NoError(t, repo.Health(ctx))
}

func TestAnalyticsColumnsMatchRecordColumns(t *testing.T) {
	assert.Equal(t, domain.ColumnNames(domain.AnalyticsRecord{}), columnNames())
	assert.Len(t, rowValues(domain.AnalyticsRecord{}), len(analyticsColumns))
}
