package postgres

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/smartcity/transitweather/internal/domain"
)

// MemoryRepository implements domain.AnalyticsRepository in memory.
// It backs the server and the pipeline when no database is reachable.
type MemoryRepository struct {
	mu        sync.RWMutex
	analytics []domain.AnalyticsRecord
	runs      map[string]domain.PipelineRun
}

var _ domain.AnalyticsRepository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{runs: make(map[string]domain.PipelineRun)}
}

// ReplaceAnalytics swaps the stored dataset for a copy of records
func (r *MemoryRepository) ReplaceAnalytics(ctx context.Context, records []domain.AnalyticsRecord) error {
	cp := make([]domain.AnalyticsRecord, len(records))
	copy(cp, records)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.analytics = cp
	return nil
}

// GetAnalytics returns stored rows with dates in [from, to], ordered by date
func (r *MemoryRepository) GetAnalytics(ctx context.Context, from, to time.Time) ([]domain.AnalyticsRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.AnalyticsRecord
	for _, a := range r.analytics {
		if a.Date.Before(from) || a.Date.After(to) {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].TransitTimestamp.Before(out[j].TransitTimestamp)
	})
	return out, nil
}

// SavePipelineRun stores run, replacing an earlier run with the same id
func (r *MemoryRepository) SavePipelineRun(ctx context.Context, run domain.PipelineRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = run
	return nil
}

// PipelineRun returns a saved run by id
func (r *MemoryRepository) PipelineRun(id string) (domain.PipelineRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return domain.PipelineRun{}, domain.ErrNotFound
	}
	return run, nil
}

// Health always returns nil in memory mode
func (r *MemoryRepository) Health(ctx context.Context) error {
	return nil
}
