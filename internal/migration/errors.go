package migration

import (
	"errors"
	"fmt"
)

// Failure kinds. Match them with errors.Is on any error returned by a run.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrBackup        = errors.New("backup failed")
	ErrInvocation    = errors.New("script invocation failed")
	ErrVerification  = errors.New("verification failed")
	ErrHistoryStore  = errors.New("history store failure")
)

// ExecutionError is the error a run stops with. Kind is one of the Err*
// sentinels and Err the original cause.
type ExecutionError struct {
	Kind     error
	ScriptID string
	Err      error
}

func (e *ExecutionError) Error() string {
	msg := "migration execution failed"
	if e.ScriptID != "" {
		msg += ": script " + e.ScriptID
	}
	if e.Kind != nil {
		msg += ": " + e.Kind.Error()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Is matches the failure kind; the cause is matched through Unwrap.
func (e *ExecutionError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// NewConfigurationError wraps a catalog validation failure.
func NewConfigurationError(err error) *ExecutionError {
	return &ExecutionError{Kind: ErrConfiguration, Err: err}
}

// PanicError carries a value recovered from a script or verification routine.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
