package service

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcity/transitweather/internal/domain"
	"github.com/smartcity/transitweather/internal/export"
	"github.com/smartcity/transitweather/internal/repository/postgres"
)

type pipelineFixture struct {
	svc    *PipelineService
	repo   *postgres.MemoryRepository
	outDir string
}

func newPipelineFixture(t *testing.T, u *upstreams) pipelineFixture {
	t.Helper()
	outDir := t.TempDir()
	writer := export.NewWriter(outDir, discardLogger())
	repo := postgres.NewMemoryRepository()
	loader := NewLoadService(writer, nil, repo, "transit_weather", "transit_weather_analytics", discardLogger())
	svc := NewPipelineService(u.extractor(), newTestTransformService(), loader, writer, repo, discardLogger(), NewMetrics())
	return pipelineFixture{svc: svc, repo: repo, outDir: outDir}
}

func (f pipelineFixture) metricsFile(t *testing.T) domain.PipelineRun {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(f.outDir, "pipeline_metrics_*.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	var run domain.PipelineRun
	require.NoError(t, json.Unmarshal(data, &run))
	return run
}

func TestPipelineService_Success(t *testing.T) {
	u := newUpstreams(t, 48, firstWeek, http.StatusOK)
	f := newPipelineFixture(t, u)

	run, err := f.svc.Run(context.Background(), RunOptions{ExtractOptions: weekOptions(), SaveToDB: true})
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, run.Status)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "2024-01-01", run.StartDate)
	assert.Equal(t, 48, run.RidershipRows)
	assert.Equal(t, 7, run.WeatherRows)
	assert.Equal(t, 48, run.Transformation.Records)
	assert.Equal(t, len(domain.ColumnNames(domain.AnalyticsRecord{})), run.Transformation.Columns)
	assert.Equal(t, 100.0, run.SuccessRate)
	assert.Greater(t, run.NullScore, 0.0)
	require.NotNil(t, run.Load)
	assert.True(t, run.Load.DatabaseSuccess)
	assert.Contains(t, run.Quality, DatasetWeather)

	saved, err := f.repo.PipelineRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, saved.Status)

	written := f.metricsFile(t)
	assert.Equal(t, run.ID, written.ID)
	assert.Equal(t, StatusSuccess, written.Status)
}

func TestPipelineService_Failures(t *testing.T) {
	tests := []struct {
		name    string
		hours   int
		days    []string
		status  int
		wantErr error
	}{
		{"no ridership", 0, firstWeek, http.StatusOK, ErrNoRidership},
		{"no weather", 24, nil, http.StatusOK, ErrNoWeather},
		{"no overlap", 24, []string{"2023-06-01"}, http.StatusOK, ErrEmptyMerge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := newUpstreams(t, tt.hours, tt.days, tt.status)
			f := newPipelineFixture(t, u)

			run, err := f.svc.Run(context.Background(), RunOptions{ExtractOptions: weekOptions(), SaveToDB: true})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, StatusFailed, run.Status)
			assert.NotEmpty(t, run.Error)
			assert.Nil(t, run.Load)

			written := f.metricsFile(t)
			assert.Equal(t, StatusFailed, written.Status)

			saved, err := f.repo.PipelineRun(run.ID)
			require.NoError(t, err)
			assert.Equal(t, StatusFailed, saved.Status)
		})
	}
}

func TestPipelineService_WeatherFailureIsWrapped(t *testing.T) {
	u := newUpstreams(t, 24, firstWeek, http.StatusBadGateway)
	f := newPipelineFixture(t, u)

	run, err := f.svc.Run(context.Background(), RunOptions{ExtractOptions: weekOptions()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weather")
	assert.Equal(t, StatusFailed, run.Status)

	_, err = f.repo.PipelineRun(run.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound, "runs are only persisted with the database enabled")
}

func TestSuccessRate(t *testing.T) {
	assert.Equal(t, 50.0, SuccessRate(24, 48, 7))
	assert.Equal(t, 100.0, SuccessRate(7, 3, 7))
	assert.Equal(t, 0.0, SuccessRate(0, 0, 0))
}
