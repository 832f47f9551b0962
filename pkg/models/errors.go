package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for the expected, non-fatal conditions the API layer
// translates into specific statuses.
var (
	// ErrStepNotFound is returned when a step id does not exist.
	ErrStepNotFound = errors.New("step not found")
	// ErrEvidenceNotFound is returned when an evidence id does not exist.
	ErrEvidenceNotFound = errors.New("evidence not found")
	// ErrNoTemplateConfigured is returned by generation when the step has no
	// template. Callers should offer the manual evidence path instead.
	ErrNoTemplateConfigured = errors.New("no template configured for step")
	// ErrEvidenceRequired rejects a transition into Done while the step has
	// no evidence on record.
	ErrEvidenceRequired = errors.New("at least one evidence record is required before completing a step")
	// ErrInvalidTransition rejects a transition the lifecycle does not allow.
	ErrInvalidTransition = errors.New("status transition not allowed")
	// ErrStepHasEvidence blocks deletion of a step that evidence still
	// references.
	ErrStepHasEvidence = errors.New("step has evidence records and cannot be deleted")
)

// ValidationError reports a malformed template or field definition. It is
// never retried and is surfaced verbatim to the caller.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Detail
}

// MissingFieldError reports an answer set that omits a declared field.
type MissingFieldError struct {
	Label string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing value for field %q", e.Label)
}

// InvalidFieldTypeError reports an answer value that does not satisfy the
// field's declared kind, e.g. a date that does not parse.
type InvalidFieldTypeError struct {
	Label string
	Value string
}

func (e *InvalidFieldTypeError) Error() string {
	return fmt.Sprintf("value %q is not valid for field %q", e.Value, e.Label)
}

// RenderError wraps a failure of the external rendering collaborator. It is
// transient from the caller's perspective; the whole generate call may be
// retried.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string {
	return "render: " + e.Err.Error()
}

func (e *RenderError) Unwrap() error {
	return e.Err
}
