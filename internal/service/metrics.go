package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/smartcity/transitweather/internal/domain"
)

// Pipeline phases
const (
	PhaseExtraction     = "extraction"
	PhaseTransformation = "transformation"
	PhaseLoading        = "loading"
)

// Metrics records pipeline activity in a Prometheus registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	fetchAttempts    *prometheus.CounterVec
	recordsExtracted *prometheus.CounterVec
	windowsSkipped   prometheus.Counter
	phaseDuration    *prometheus.HistogramVec
	qualityScore     *prometheus.GaugeVec
	mergedRecords    prometheus.Gauge
	runs             *prometheus.CounterVec
}

// NewMetrics creates the collectors on a fresh registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		fetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transit_fetch_attempts_total",
			Help: "Remote fetch attempts by operation and outcome.",
		}, []string{"operation", "outcome"}),
		recordsExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transit_records_extracted_total",
			Help: "Records extracted by source.",
		}, []string{"source"}),
		windowsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transit_ridership_windows_skipped_total",
			Help: "Weekly ridership windows skipped after exhausting retries.",
		}),
		phaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "transit_pipeline_phase_duration_seconds",
			Help:    "Duration of pipeline phases.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"phase"}),
		qualityScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "transit_quality_score",
			Help: "Latest quality score per dataset (percent of rows retained).",
		}, []string{"dataset"}),
		mergedRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "transit_merged_records",
			Help: "Rows in the latest merged dataset.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transit_pipeline_runs_total",
			Help: "Pipeline runs by final status.",
		}, []string{"status"}),
	}

	registry.MustRegister(m.fetchAttempts)
	registry.MustRegister(m.recordsExtracted)
	registry.MustRegister(m.windowsSkipped)
	registry.MustRegister(m.phaseDuration)
	registry.MustRegister(m.qualityScore)
	registry.MustRegister(m.mergedRecords)
	registry.MustRegister(m.runs)

	return m
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observeFetch(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.fetchAttempts.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) addExtracted(source string, n int) {
	if m == nil {
		return
	}
	m.recordsExtracted.WithLabelValues(source).Add(float64(n))
}

func (m *Metrics) windowSkipped() {
	if m == nil {
		return
	}
	m.windowsSkipped.Inc()
}

func (m *Metrics) observePhase(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

func (m *Metrics) observeMerge(result domain.MergeResult) {
	if m == nil {
		return
	}
	for dataset, report := range result.Quality {
		m.qualityScore.WithLabelValues(dataset).Set(report.QualityScore)
	}
	m.mergedRecords.Set(float64(len(result.Records)))
}

func (m *Metrics) runFinished(status string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
}
