// Package metrics provides Prometheus-based metrics recording for the
// consultation pipelines.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is the metrics surface the pipelines report into. All methods must
// be safe for concurrent use.
type Recorder interface {
	// ObserveRun records a finished consultation run.
	ObserveRun(pipeline, status string, confidence float64, duration time.Duration)

	// ObservePass records a single pass execution.
	ObservePass(pass, status string, duration time.Duration)

	// IncRejection counts an acceptance-gate rejection by category.
	IncRejection(category string)

	// IncFallback counts a fallback event by type.
	IncFallback(kind string)

	// ActiveAdd tracks pipelines currently executing.
	ActiveAdd(delta float64)
}

// PrometheusRecorder implements Recorder using Prometheus collectors.
type PrometheusRecorder struct {
	runsTotal       *prometheus.CounterVec
	passesTotal     *prometheus.CounterVec
	rejectionsTotal *prometheus.CounterVec
	fallbacksTotal  *prometheus.CounterVec
	passDuration    *prometheus.HistogramVec
	runDuration     *prometheus.HistogramVec
	confidence      prometheus.Histogram
	activePipelines prometheus.Gauge
}

var (
	promInstance *PrometheusRecorder
	promOnce     sync.Once
)

// NewPrometheusRecorder returns the process-wide Prometheus recorder.
// Collectors register with the default registry exactly once.
func NewPrometheusRecorder() *PrometheusRecorder {
	promOnce.Do(func() {
		promInstance = &PrometheusRecorder{
			runsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "consultation_runs_total",
					Help: "Total consultation runs by pipeline and terminal status",
				},
				[]string{"pipeline", "status"},
			),
			passesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "consultation_passes_total",
					Help: "Total pass executions by pass name and status",
				},
				[]string{"pass", "status"},
			),
			rejectionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "consultation_rejections_total",
					Help: "Total acceptance-gate rejections by category",
				},
				[]string{"category"},
			),
			fallbacksTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "consultation_fallbacks_total",
					Help: "Total fallback events by type",
				},
				[]string{"type"},
			),
			passDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "consultation_pass_duration_seconds",
					Help:    "Duration of individual passes in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"pass"},
			),
			runDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "consultation_run_duration_seconds",
					Help:    "End-to-end duration of consultation runs in seconds",
					Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
				},
				[]string{"pipeline"},
			),
			confidence: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "consultation_confidence",
					Help:    "Distribution of final brief confidence scores",
					Buckets: prometheus.LinearBuckets(0, 0.1, 11),
				},
			),
			activePipelines: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "consultation_active_pipelines",
					Help: "Number of pipelines currently executing",
				},
			),
		}
	})
	return promInstance
}

// ObserveRun records a finished consultation run.
func (p *PrometheusRecorder) ObserveRun(pipeline, status string, confidence float64, duration time.Duration) {
	p.runsTotal.WithLabelValues(pipeline, status).Inc()
	p.runDuration.WithLabelValues(pipeline).Observe(duration.Seconds())
	if confidence >= 0 {
		p.confidence.Observe(confidence)
	}
}

// ObservePass records a single pass execution.
func (p *PrometheusRecorder) ObservePass(pass, status string, duration time.Duration) {
	p.passesTotal.WithLabelValues(pass, status).Inc()
	p.passDuration.WithLabelValues(pass).Observe(duration.Seconds())
}

// IncRejection counts an acceptance-gate rejection by category.
func (p *PrometheusRecorder) IncRejection(category string) {
	p.rejectionsTotal.WithLabelValues(category).Inc()
}

// IncFallback counts a fallback event by type.
func (p *PrometheusRecorder) IncFallback(kind string) {
	p.fallbacksTotal.WithLabelValues(kind).Inc()
}

// ActiveAdd tracks pipelines currently executing.
func (p *PrometheusRecorder) ActiveAdd(delta float64) {
	p.activePipelines.Add(delta)
}

// Nop is a Recorder that discards every observation; used in tests.
type Nop struct{}

func (Nop) ObserveRun(string, string, float64, time.Duration) {}
func (Nop) ObservePass(string, string, time.Duration)         {}
func (Nop) IncRejection(string)                               {}
func (Nop) IncFallback(string)                                {}
func (Nop) ActiveAdd(float64)                                 {}
