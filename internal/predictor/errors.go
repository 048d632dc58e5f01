package predictor

import (
	"errors"
	"fmt"
	"time"
)

// ErrGateway is matched by every error a Predictor in this package returns.
var ErrGateway = errors.New("predictor: gateway failure")

// TimeoutError reports a predictor process that outlived its deadline and was killed.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("predictor: timed out after %s", e.Timeout)
}

// Is matches ErrGateway.
func (e *TimeoutError) Is(target error) bool { return target == ErrGateway }

// Code returns the log error code.
func (e *TimeoutError) Code() string { return "PREDICTOR_TIMEOUT" }

// ProcessError reports a predictor process that failed to start or exited nonzero.
type ProcessError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	msg := fmt.Sprintf("predictor: process exited with code %d", e.ExitCode)
	if e.ExitCode < 0 && e.Err != nil {
		msg = "predictor: process failed: " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ProcessError) Unwrap() error { return e.Err }

// Is matches ErrGateway.
func (e *ProcessError) Is(target error) bool { return target == ErrGateway }

// Code returns the log error code.
func (e *ProcessError) Code() string { return "PREDICTOR_PROCESS" }

// ModelError carries the message the prediction routine reported about itself.
type ModelError struct {
	Message string
}

func (e *ModelError) Error() string {
	return "predictor: model error: " + e.Message
}

// Is matches ErrGateway.
func (e *ModelError) Is(target error) bool { return target == ErrGateway }

// Code returns the log error code.
func (e *ModelError) Code() string { return "PREDICTOR_MODEL" }

// ParseError reports output that is not a valid prediction.
type ParseError struct {
	Output string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("predictor: unparseable output (%s): %q", e.Reason, e.Output)
}

// Is matches ErrGateway.
func (e *ParseError) Is(target error) bool { return target == ErrGateway }

// Code returns the log error code.
func (e *ParseError) Code() string { return "PREDICTOR_PARSE" }
