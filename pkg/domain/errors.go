package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound reports that an operation referenced a record that does not exist.
var ErrNotFound = errors.New("not found")

// ErrPersist wraps failures writing the document to durable storage. When it
// is returned the in-memory state was left unchanged.
var ErrPersist = errors.New("persist document")

// NotFound builds an ErrNotFound naming the missing record.
func NotFound(entity EntityType, id string) error {
	return fmt.Errorf("%s %q: %w", entity, id, ErrNotFound)
}

// ValidationError reports a missing or malformed field.
type ValidationError struct {
	Entity EntityType
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", e.Entity, e.Field, e.Reason)
}

// Required reports a missing required field.
func Required(entity EntityType, field string) *ValidationError {
	return &ValidationError{Entity: entity, Field: field, Reason: "is required"}
}

// InvalidStateTransitionError reports a write that the owning appointment's
// current status does not allow.
type InvalidStateTransitionError struct {
	Entity EntityType
	ID     string
	From   AppointmentStatus
	To     AppointmentStatus
	Reason string
}

func (e *InvalidStateTransitionError) Error() string {
	if e.To != "" {
		return fmt.Sprintf("%s %q: cannot move from %s to %s", e.Entity, e.ID, e.From, e.To)
	}
	return fmt.Sprintf("%s %q: %s (appointment is %s)", e.Entity, e.ID, e.Reason, e.From)
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsInvalidTransition reports whether err carries an InvalidStateTransitionError.
func IsInvalidTransition(err error) bool {
	var target *InvalidStateTransitionError
	return errors.As(err, &target)
}
