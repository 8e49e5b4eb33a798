package control

import (
	"errors"
	"fmt"

	"chamberheat/internal/models"
)

var (
	// ErrSensorUnavailable means no temperature probe produced a reading.
	ErrSensorUnavailable = errors.New("all temperature probes unavailable")

	// ErrCheckpointCorrupt marks a checkpoint that could not be decoded.
	// Treated as "no checkpoint": the run starts idle, never a crash.
	ErrCheckpointCorrupt = errors.New("checkpoint corrupt")
)

// InvalidTransitionError rejects a command issued in the wrong phase.
// State is left untouched; the command never silently no-ops.
type InvalidTransitionError struct {
	Phase   models.Phase
	Command string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("command %q not valid in phase %s", e.Command, e.Phase)
}

// ValidationError rejects malformed command input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ActuatorError wraps a failed or timed-out driver call. The controller
// retries on the next tick and surfaces it as a status flag, never as a
// fatal condition.
type ActuatorError struct {
	Actuator string
	Err      error
}

func (e *ActuatorError) Error() string {
	return fmt.Sprintf("actuator %s command failed: %v", e.Actuator, e.Err)
}

func (e *ActuatorError) Unwrap() error { return e.Err }
