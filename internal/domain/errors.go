package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownWorkflowType is returned for unregistered workflow types,
	// before any execution state is created.
	ErrUnknownWorkflowType = errors.New("unknown workflow type")

	// ErrWorkflowNotFound is returned by status queries for unknown ids.
	ErrWorkflowNotFound = errors.New("workflow not found")
)

// ValidationError reports malformed or incomplete input. Workflows reject it
// before starting any downstream steps.
type ValidationError struct {
	Reason  string
	Missing []string
}

func (e *ValidationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("invalid input: %s (missing: %s)", e.Reason, strings.Join(e.Missing, ", "))
	}
	return "invalid input: " + e.Reason
}

// NewValidationError builds a ValidationError with optional missing fields.
func NewValidationError(reason string, missing ...string) *ValidationError {
	return &ValidationError{Reason: reason, Missing: missing}
}

// CollaboratorError wraps a failure from an external collaborator call,
// naming the step so the caller can tell critical-path failures from
// side-effect failures.
type CollaboratorError struct {
	Step string
	Err  error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("collaborator %s: %v", e.Step, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}
