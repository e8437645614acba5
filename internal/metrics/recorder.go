package metrics

import "time"

// ResultLabel enumerates transform result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFailed   ResultLabel = "failed"
	ResultCanceled ResultLabel = "canceled"
)

// BuildOutcomeLabel enumerates final build outcomes.
type BuildOutcomeLabel string

const (
	BuildOutcomeSuccess  BuildOutcomeLabel = "success"
	BuildOutcomeFailed   BuildOutcomeLabel = "failed"
	BuildOutcomeCanceled BuildOutcomeLabel = "canceled"
)

// Recorder defines observability hooks for build, phase and transform metrics.
type Recorder interface {
	ObservePhaseDuration(phase string, d time.Duration)
	ObserveTransformDuration(transform string, d time.Duration)
	IncTransformResult(transform string, result ResultLabel)
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome BuildOutcomeLabel)
	AddConcatBytes(n int64)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObservePhaseDuration(string, time.Duration)     {}
func (NoopRecorder) ObserveTransformDuration(string, time.Duration) {}
func (NoopRecorder) IncTransformResult(string, ResultLabel)         {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)             {}
func (NoopRecorder) IncBuildOutcome(BuildOutcomeLabel)              {}
func (NoopRecorder) AddConcatBytes(int64)                           {}

// OrNoop returns r, or NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
