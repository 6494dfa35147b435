package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/smartcity/transitweather/internal/domain"
	"github.com/smartcity/transitweather/internal/export"
	"github.com/smartcity/transitweather/pkg/utils"
)

// Run statuses
const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// RunOptions configures one pipeline run
type RunOptions struct {
	ExtractOptions
	SaveToDB bool
}

// PipelineService drives extraction, transformation and loading
type PipelineService struct {
	extractor   *ExtractionService
	transformer *TransformService
	loader      *LoadService
	writer      *export.Writer
	repo        AnalyticsRepository
	logger      *slog.Logger
	metrics     *Metrics
}

// NewPipelineService creates a new pipeline service
func NewPipelineService(
	extractor *ExtractionService,
	transformer *TransformService,
	loader *LoadService,
	writer *export.Writer,
	repo AnalyticsRepository,
	logger *slog.Logger,
	metrics *Metrics,
) *PipelineService {
	return &PipelineService{
		extractor:   extractor,
		transformer: transformer,
		loader:      loader,
		writer:      writer,
		repo:        repo,
		logger:      logger,
		metrics:     metrics,
	}
}

// Run executes the pipeline. The returned run is populated on failure too and
// its metrics file is always written.
func (s *PipelineService) Run(ctx context.Context, opts RunOptions) (domain.PipelineRun, error) {
	run := domain.PipelineRun{
		ID:         uuid.NewString(),
		StartTime:  time.Now(),
		StartDate:  opts.Start.Format(domain.DateLayout),
		EndDate:    opts.End.Format(domain.DateLayout),
		MaxRecords: opts.MaxRecords,
	}
	logger := s.logger.With("run_id", run.ID)
	logger.Info("pipeline started", "start_date", run.StartDate, "end_date", run.EndDate, "max_records", run.MaxRecords)

	err := s.run(ctx, logger, opts, &run)

	run.EndTime = time.Now()
	run.Status = StatusSuccess
	if err != nil {
		run.Status = StatusFailed
		run.Error = err.Error()
		logger.Error("pipeline failed", "error", err)
	} else {
		logger.Info("pipeline completed",
			"records", run.Transformation.Records,
			"duration", run.EndTime.Sub(run.StartTime),
			"data_quality_score", run.NullScore,
			"success_rate", run.SuccessRate,
		)
	}
	s.metrics.runFinished(run.Status)

	if _, werr := s.writer.WriteJSON(export.MetricsBase, run); werr != nil {
		logger.Error("failed to write pipeline metrics", "error", werr)
	}
	if opts.SaveToDB {
		// the caller's context may already be canceled
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if serr := s.repo.SavePipelineRun(saveCtx, run); serr != nil {
			logger.Warn("failed to persist pipeline run", "error", serr)
		}
	}
	return run, err
}

func (s *PipelineService) run(ctx context.Context, logger *slog.Logger, opts RunOptions, run *domain.PipelineRun) error {
	logger.Info("phase started", "phase", PhaseExtraction)
	extraction, err := s.extractor.Extract(ctx, opts.ExtractOptions)
	run.RidershipRows = len(extraction.Ridership)
	run.WeatherRows = len(extraction.Weather)
	run.Extraction = domain.PhaseMetrics{
		Records:         run.RidershipRows + run.WeatherRows,
		DurationSeconds: seconds(extraction.Duration),
	}
	if err != nil {
		return err
	}

	logger.Info("phase started", "phase", PhaseTransformation)
	started := time.Now()
	result := s.transformer.TransformAndMerge(extraction.Ridership, extraction.Weather)
	elapsed := time.Since(started)
	s.metrics.observePhase(PhaseTransformation, elapsed)
	s.metrics.observeMerge(result)

	run.Quality = result.Quality
	run.NullScore = result.NullScore
	run.Transformation = domain.PhaseMetrics{
		Records:         len(result.Records),
		DurationSeconds: seconds(elapsed),
	}
	if result.Empty() {
		return ErrEmptyMerge
	}
	run.Transformation.Columns = len(result.Records[0].Columns())
	run.SuccessRate = SuccessRate(len(result.Records), run.RidershipRows, run.WeatherRows)

	logger.Info("phase started", "phase", PhaseLoading)
	started = time.Now()
	load, err := s.loader.Load(ctx, result.Records, opts.SaveToDB)
	elapsed = time.Since(started)
	s.metrics.observePhase(PhaseLoading, elapsed)
	run.Loading = domain.PhaseMetrics{
		Records:         len(result.Records),
		DurationSeconds: seconds(elapsed),
	}
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	run.Load = &load
	if opts.SaveToDB && !load.DatabaseSuccess {
		logger.Warn("database load failed, data saved to csv", "backup", load.BackupPath)
	}
	return nil
}

// SuccessRate is merged rows over the larger input, in percent
func SuccessRate(merged, ridership, weather int) float64 {
	denom := max(ridership, weather)
	if denom == 0 {
		return 0
	}
	return utils.RoundTo(float64(merged)/float64(denom)*100, 2)
}

func seconds(d time.Duration) float64 {
	return utils.RoundTo(d.Seconds(), 2)
}
