package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultWarning  ResultLabel = "warning"
	ResultFatal    ResultLabel = "fatal"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder defines observability hooks for builds and the watch loop.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(kind string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncBuildOutcome(kind, outcome string) // outcome: success|warning|failed|canceled
	AddPagesRendered(n int)
	IncAssetResult(success bool)
	IncWatchEvent(kind string)
	IncRebuildTrigger(cause string)
	SetLiveReloadClients(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveBuildDuration(string, time.Duration) {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) IncBuildOutcome(string, string)             {}
func (NoopRecorder) AddPagesRendered(int)                       {}
func (NoopRecorder) IncAssetResult(bool)                        {}
func (NoopRecorder) IncWatchEvent(string)                       {}
func (NoopRecorder) IncRebuildTrigger(string)                   {}
func (NoopRecorder) SetLiveReloadClients(int)                   {}

// OrNoop returns r, or NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
