package build

import (
	"errors"
	"fmt"
	"time"

	"git.home.luguber.info/inful/pagebrew/internal/metrics"
)

// Outcome is the final state of a build.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeWarning  Outcome = "warning"
	OutcomeFailed   Outcome = "failed"
	OutcomeCanceled Outcome = "canceled"
)

// Report captures what one build did.
type Report struct {
	ID             string
	Kind           string // "full" or "styles"
	Theme          string
	Start          time.Time
	End            time.Time
	StageDurations map[StageName]time.Duration
	StageResults   map[StageName]StageResult
	Errors         []error // fatal errors causing abortion
	Warnings       []error
	Documents      int
	Pages          int
	Posts          int
	ImagesCopied   int
	ImagesFailed   int
	// Fingerprints maps content paths to the fingerprint of the source that was built.
	Fingerprints map[string]string
	Outcome      Outcome
}

func newReport(id, kind string) *Report {
	return &Report{
		ID:             id,
		Kind:           kind,
		Start:          time.Now(),
		StageDurations: make(map[StageName]time.Duration),
		StageResults:   make(map[StageName]StageResult),
		Fingerprints:   make(map[string]string),
	}
}

func (r *Report) recordStageResult(stage StageName, res StageResult, recorder metrics.Recorder) {
	r.StageResults[stage] = res
	switch res {
	case StageResultSuccess:
		recorder.IncStageResult(string(stage), metrics.ResultSuccess)
	case StageResultWarning:
		recorder.IncStageResult(string(stage), metrics.ResultWarning)
	case StageResultFatal:
		recorder.IncStageResult(string(stage), metrics.ResultFatal)
	case StageResultCanceled:
		recorder.IncStageResult(string(stage), metrics.ResultCanceled)
	}
}

func (r *Report) warn(err error) { r.Warnings = append(r.Warnings, err) }

// finish stamps the end time and derives the outcome.
func (r *Report) finish() {
	r.End = time.Now()
	switch {
	case len(r.Errors) > 0:
		r.Outcome = OutcomeFailed
		for _, e := range r.Errors {
			var se *StageError
			if errors.As(e, &se) && se.Kind == StageErrorCanceled {
				r.Outcome = OutcomeCanceled
				break
			}
		}
	case len(r.Warnings) > 0:
		r.Outcome = OutcomeWarning
	default:
		r.Outcome = OutcomeSuccess
	}
}

// Duration is the wall time of the build.
func (r *Report) Duration() time.Duration { return r.End.Sub(r.Start) }

// Summary returns a human-readable single-line summary.
func (r *Report) Summary() string {
	return fmt.Sprintf("kind=%s documents=%d pages=%d posts=%d images=%d duration=%s warnings=%d outcome=%s",
		r.Kind, r.Documents, r.Pages, r.Posts, r.ImagesCopied,
		r.Duration().Truncate(time.Millisecond), len(r.Warnings), r.Outcome)
}
