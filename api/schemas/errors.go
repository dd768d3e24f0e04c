package schemas

import (
	"errors"
	"fmt"
)

// -- Pipeline Errors --

// Stage names one step of the observe, diagnose, patch loop.
type Stage string

const (
	StageCapture   Stage = "capture"
	StageVision    Stage = "vision"
	StageTargets   Stage = "targets"
	StageSynthesis Stage = "synthesis"
	StageApply     Stage = "apply"
)

// ErrorKind classifies why a stage failed.
type ErrorKind string

const (
	KindCapture ErrorKind = "CaptureError" // Browser automation or navigation failed.
	KindParse   ErrorKind = "ParseError"   // Model output could not be reduced to the expected shape.
	KindBackend ErrorKind = "BackendError" // Transport, auth or rate limit failure from the model backend.
	KindApply   ErrorKind = "ApplyError"   // The code agent exited non-zero or could not be launched.
)

// StageError is the only error type that crosses a stage boundary. The
// controller uses it to tag the failing stage in the run summary.
type StageError struct {
	Stage Stage
	Kind  ErrorKind
	// ExitCode is the code agent's exit status. Only meaningful for KindApply;
	// -1 means the agent never produced a status.
	ExitCode int
	Err      error
}

func (e *StageError) Error() string {
	if e.Kind == KindApply && e.ExitCode != 0 {
		return fmt.Sprintf("%s stage: %s (exit status %d): %v", e.Stage, e.Kind, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("%s stage: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError wraps err with its stage and kind.
func NewStageError(stage Stage, kind ErrorKind, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

// IsKind reports whether err carries a StageError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var se *StageError
	return errors.As(err, &se) && se.Kind == kind
}

// BackendError marks a failure of the model backend itself, as opposed to a
// response the pipeline could not use.
type BackendError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *BackendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s backend: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s backend: %v", e.Provider, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }
