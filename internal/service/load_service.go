package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/smartcity/transitweather/internal/domain"
	"github.com/smartcity/transitweather/internal/export"
)

// LoadService writes a merged dataset to files, the object store and the database
type LoadService struct {
	writer *export.Writer
	store  ObjectStore
	repo   AnalyticsRepository
	prefix string
	table  string
	logger *slog.Logger
}

// NewLoadService creates a new load service. store may be nil to skip uploads.
func NewLoadService(
	writer *export.Writer,
	store ObjectStore,
	repo AnalyticsRepository,
	prefix, table string,
	logger *slog.Logger,
) *LoadService {
	return &LoadService{
		writer: writer,
		store:  store,
		repo:   repo,
		prefix: prefix,
		table:  table,
		logger: logger,
	}
}

// Load exports records. Only a failed dataset CSV is returned as an error;
// failures of the other sinks are collected in LoadResult.Errors.
func (s *LoadService) Load(ctx context.Context, records []domain.AnalyticsRecord, saveToDB bool) (domain.LoadResult, error) {
	var result domain.LoadResult
	var errs *multierror.Error

	csvPath, err := s.writer.WriteAnalyticsCSV(export.DatasetBase, records)
	if err != nil {
		return result, fmt.Errorf("load: %w", err)
	}
	result.CSVPath = csvPath

	summaryPath, err := s.writer.WriteSummaryCSV(export.Summarize(records))
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	result.SummaryPath = summaryPath

	jsonPath, err := s.writer.WriteJSON(export.DatasetBase, records)
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	result.JSONPath = jsonPath

	if s.store != nil {
		for _, local := range []string{csvPath, summaryPath} {
			if local == "" {
				continue
			}
			key, err := s.upload(ctx, local)
			if err != nil {
				s.logger.Warn("object upload failed, continuing", "file", local, "error", err)
				errs = multierror.Append(errs, err)
				continue
			}
			result.UploadedObjects = append(result.UploadedObjects, key)
		}
	}

	if saveToDB {
		started := time.Now()
		if err := s.repo.ReplaceAnalytics(ctx, records); err != nil {
			s.logger.Error("database load failed, writing backup csv", "table", s.table, "error", err)
			errs = multierror.Append(errs, err)

			backup, berr := s.writer.WriteAnalyticsCSV(s.table+"_backup", records)
			if berr != nil {
				errs = multierror.Append(errs, berr)
			}
			result.BackupPath = backup
		} else {
			result.DatabaseSuccess = true
			s.logger.Info("loaded records to database",
				"table", s.table,
				"records", len(records),
				"duration", time.Since(started),
			)
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		for _, e := range errs.Errors {
			result.Errors = append(result.Errors, e.Error())
		}
	}
	return result, nil
}

func (s *LoadService) upload(ctx context.Context, local string) (string, error) {
	f, err := os.Open(local)
	if err != nil {
		return "", fmt.Errorf("load: failed to open %s: %w", local, err)
	}
	defer f.Close()

	key := path.Join(s.prefix, filepath.Base(local))
	if err := s.store.Upload(ctx, key, f); err != nil {
		return "", fmt.Errorf("load: failed to upload %s: %w", key, err)
	}
	s.logger.Info("uploaded file", "key", key)
	return key, nil
}
