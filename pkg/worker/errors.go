package worker

import (
	"errors"
	"fmt"
)

// Stage names the startup step a fatal error came from.
type Stage string

// Startup stages, in execution order.
const (
	StageConfig     Stage = "config"
	StageLoopback   Stage = "loopback"
	StageValidation Stage = "validation"
	StageTLSContext Stage = "tls_context"
	StageListener   Stage = "listener"
	StageAdmin      Stage = "admin"
)

// StartupError is a fatal error: the worker cannot safely serve traffic
// and must exit non-zero before accepting any connection.
type StartupError struct {
	Stage Stage
	Err   error
}

// NewStartupError wraps err as a fatal error of the given stage.
func NewStartupError(stage Stage, err error) *StartupError {
	return &StartupError{Stage: stage, Err: err}
}

// Error implements the error interface.
func (e *StartupError) Error() string {
	return fmt.Sprintf("setup failed at %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StartupError) Unwrap() error {
	return e.Err
}

// IsStartupError reports whether err is, or wraps, a StartupError.
func IsStartupError(err error) bool {
	var se *StartupError
	return errors.As(err, &se)
}

// StageOf returns the stage of a wrapped StartupError, or "".
func StageOf(err error) Stage {
	var se *StartupError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
