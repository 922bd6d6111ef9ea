// Package wargame implements the turn-processing pipeline: partitioning a
// batch of interactions, forecasting each action's outcome and narrating
// the merged result into the canonical transcript.
package wargame

import (
	"errors"
	"fmt"
)

var (
	// ErrUserInput marks malformed caller input. No state is mutated.
	ErrUserInput = errors.New("invalid input")
	// ErrInactive is returned when an operation requires an active scenario.
	ErrInactive = errors.New("scenario is not active")
	// ErrAlreadyActive is returned when a scenario is started twice.
	ErrAlreadyActive = errors.New("scenario is already active")
	// ErrTurnInProgress is returned when a second turn starts on a busy session.
	ErrTurnInProgress = errors.New("a turn is already being processed")
	// ErrNoCandidates is returned when there is nothing to sample from.
	ErrNoCandidates = errors.New("no outcome candidates")
)

// BackendError wraps a failed model call.
type BackendError struct {
	Stage string
	Err   error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: backend call failed: %v", e.Stage, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// ParseError reports a model reply that lacks the expected structure.
type ParseError struct {
	Stage  string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: unparseable reply: %s: %v", e.Stage, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: unparseable reply: %s", e.Stage, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// UserInputf returns an error wrapping ErrUserInput.
func UserInputf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUserInput, fmt.Sprintf(format, args...))
}
