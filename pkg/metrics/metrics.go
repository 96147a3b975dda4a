package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics holds the collectors of one notescribe process. Each
// instance owns its registry so tests and embedders never collide on the
// global default registry.
type PipelineMetrics struct {
	Registry *prometheus.Registry

	Runs             *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	StageFailures    *prometheus.CounterVec
	ModelLoads       prometheus.Counter
	TempFilesCreated prometheus.Counter
	TempFilesRemoved prometheus.Counter
	TranscriptChars  prometheus.Histogram
}

// New creates and registers all pipeline metrics.
func New() *PipelineMetrics {
	m := &PipelineMetrics{
		Registry: prometheus.NewRegistry(),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notescribe_runs_total",
			Help: "Transcription runs by terminal state and error code",
		}, []string{"outcome", "code"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notescribe_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		}, []string{"stage"}),
		StageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notescribe_stage_failures_total",
			Help: "Stage failures by stage",
		}, []string{"stage"}),
		ModelLoads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notescribe_model_loads_total",
			Help: "Number of times a speech model was loaded",
		}),
		TempFilesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notescribe_temp_audio_created_total",
			Help: "Temporary waveform files allocated by the normalizer",
		}),
		TempFilesRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notescribe_temp_audio_removed_total",
			Help: "Temporary waveform files deleted after a run",
		}),
		TranscriptChars: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "notescribe_transcript_characters",
			Help:    "Length of the filtered transcript",
			Buckets: prometheus.ExponentialBuckets(16, 4, 8),
		}),
	}

	m.Registry.MustRegister(
		m.Runs,
		m.StageDuration,
		m.StageFailures,
		m.ModelLoads,
		m.TempFilesCreated,
		m.TempFilesRemoved,
		m.TranscriptChars,
	)
	return m
}

// ObserveStage records how long a stage took and whether it failed.
func (m *PipelineMetrics) ObserveStage(stage string, d time.Duration, err error) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		m.StageFailures.WithLabelValues(stage).Inc()
	}
}

// RecordRun counts a finished run. code is empty for successful runs.
func (m *PipelineMetrics) RecordRun(outcome, code string) {
	m.Runs.WithLabelValues(outcome, code).Inc()
}

// WriteTextfile writes the registry in the Prometheus text format, for the
// node exporter textfile collector.
func (m *PipelineMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
