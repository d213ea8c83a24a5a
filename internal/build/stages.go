package build

import (
	"context"
	"errors"
	"fmt"

	ferrors "git.home.luguber.info/inful/pagebrew/internal/foundation/errors"
)

// Stage is a discrete unit of work in a build.
type Stage func(ctx context.Context, st *State) error

// StageName identifies a build stage.
type StageName string

const (
	StageValidate StageName = "validate"
	StageIndex    StageName = "index"
	StageRender   StageName = "render"
	StageAssets   StageName = "assets"
	StageStyles   StageName = "styles"
	// StagePromote names failures while swapping the staging directory into place.
	StagePromote StageName = "promote"
)

// StageErrorKind classifies the outcome of a stage.
type StageErrorKind string

const (
	StageErrorFatal    StageErrorKind = "fatal"    // Build must abort.
	StageErrorWarning  StageErrorKind = "warning"  // Record and continue.
	StageErrorCanceled StageErrorKind = "canceled" // Context cancellation.
)

// StageError wraps the failure of one stage.
type StageError struct {
	Kind  StageErrorKind
	Stage StageName
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage %s: %v", e.Kind, e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// StageResult is the recorded outcome of a stage.
type StageResult string

const (
	StageResultSuccess  StageResult = "success"
	StageResultWarning  StageResult = "warning"
	StageResultFatal    StageResult = "fatal"
	StageResultCanceled StageResult = "canceled"
)

func newFatalStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorFatal, Stage: stage, Err: err}
}

func newWarnStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorWarning, Stage: stage, Err: err}
}

func newCanceledStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorCanceled, Stage: stage, Err: err}
}

// StageDef pairs a stage name with its function.
type StageDef struct {
	Name StageName
	Fn   Stage
}

// classify turns a stage's returned error into a StageError. Classified
// errors with warning or info severity do not abort the build.
func classify(stage StageName, err error) *StageError {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, context.Canceled) {
		return newCanceledStageError(stage, err)
	}
	if ce, ok := ferrors.AsClassified(err); ok {
		switch ce.Severity() {
		case ferrors.SeverityWarning, ferrors.SeverityInfo:
			return newWarnStageError(stage, err)
		}
	}
	return newFatalStageError(stage, err)
}

func (k StageErrorKind) result() StageResult {
	switch k {
	case StageErrorWarning:
		return StageResultWarning
	case StageErrorCanceled:
		return StageResultCanceled
	default:
		return StageResultFatal
	}
}
