package wizard

import (
	"errors"
	"fmt"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrStage marks a stage executor failure. The machine stays in the
	// failing stage; retry is an explicit re-invocation.
	ErrStage = errors.New("stage failed")

	// ErrUnknownStage marks a stage identifier the machine does not know.
	ErrUnknownStage = errors.New("unknown stage")

	// ErrRunComplete marks an attempt to advance a completed run.
	ErrRunComplete = errors.New("installation already completed")

	// ErrStageOrder marks a retry targeting a stage other than the one the
	// machine is currently in.
	ErrStageOrder = errors.New("stage out of order")

	// ErrStageRunning marks an attempt to start execution while another
	// executor is still in flight.
	ErrStageRunning = errors.New("a stage is already running")
)

// StageError wraps a stage executor failure with its stage identity.
type StageError struct {
	Stage   string
	Message string
	Err     error
}

func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stage %s: %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("stage %s: %s", e.Stage, e.Message)
}

func (e *StageError) Unwrap() error {
	return ErrStage
}

// NewStageError wraps an executor failure.
func NewStageError(stage, message string, err error) *StageError {
	return &StageError{Stage: stage, Message: message, Err: err}
}
