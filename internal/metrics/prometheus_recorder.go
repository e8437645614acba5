package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once              sync.Once
	registry          *prom.Registry
	phaseDuration     *prom.HistogramVec
	transformDuration *prom.HistogramVec
	transformResults  *prom.CounterVec
	buildDuration     prom.Histogram
	buildOutcome      *prom.CounterVec
	concatBytes       prom.Counter
}

// NewPrometheusRecorder constructs and registers Prometheus metrics on reg,
// or on a private registry when reg is nil.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{registry: reg}
	pr.once.Do(func() {
		pr.phaseDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "pagebuilder",
			Name:      "phase_duration_seconds",
			Help:      "Duration of build phases (staging, executing, publishing)",
			Buckets:   prom.DefBuckets,
		}, []string{"phase"})
		pr.transformDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "pagebuilder",
			Name:      "transform_duration_seconds",
			Help:      "Duration of individual pipeline transforms",
			Buckets:   prom.DefBuckets,
		}, []string{"transform"})
		pr.transformResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "pagebuilder",
			Name:      "transform_results_total",
			Help:      "Transform result counts by outcome",
		}, []string{"transform", "result"})
		pr.buildDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "pagebuilder",
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		})
		pr.buildOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "pagebuilder",
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"})
		pr.concatBytes = prom.NewCounter(prom.CounterOpts{
			Namespace: "pagebuilder",
			Name:      "concat_bytes_total",
			Help:      "Bytes written by the concat transform, separators included",
		})
		reg.MustRegister(pr.phaseDuration, pr.transformDuration, pr.transformResults, pr.buildDuration, pr.buildOutcome, pr.concatBytes)
	})
	return pr
}

// Registry returns the registry the metrics are registered on.
func (p *PrometheusRecorder) Registry() *prom.Registry { return p.registry }

func (p *PrometheusRecorder) ObservePhaseDuration(phase string, d time.Duration) {
	if p == nil || p.phaseDuration == nil {
		return
	}
	p.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveTransformDuration(transform string, d time.Duration) {
	if p == nil || p.transformDuration == nil {
		return
	}
	p.transformDuration.WithLabelValues(transform).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncTransformResult(transform string, result ResultLabel) {
	if p == nil || p.transformResults == nil {
		return
	}
	p.transformResults.WithLabelValues(transform, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil || p.buildDuration == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome BuildOutcomeLabel) {
	if p == nil || p.buildOutcome == nil {
		return
	}
	p.buildOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) AddConcatBytes(n int64) {
	if p == nil || p.concatBytes == nil || n <= 0 {
		return
	}
	p.concatBytes.Add(float64(n))
}

// WriteTextfile writes the registry in the text exposition format for the
// node exporter textfile collector. The file is replaced atomically.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	if p == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prom.WriteToTextfile(path, p.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
