// Package domain defines the entities of the news feed and the marketplace,
// their status enums with allowed transitions, and the errors services return.
package domain

import "errors"

var (
	// ErrNotFound means the requested row does not exist or is not visible to the caller.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a concurrent change won; the caller should reload and retry.
	ErrConflict = errors.New("conflict")
	// ErrForbidden means the actor is not allowed to perform the action.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidInput means user-provided data failed validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidTransition means the entity is not in a state that allows the action.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotRegistered means the Telegram user has not pressed /start yet.
	ErrNotRegistered = errors.New("user not registered")
	// ErrDuplicate means the row already exists (bookmark, source, review).
	ErrDuplicate = errors.New("already exists")
)

// ValidationError carries a user-facing reason and matches ErrInvalidInput.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

// Is lets errors.Is(err, ErrInvalidInput) succeed.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// Code is picked up by handler summaries as err_code.
func (e *ValidationError) Code() string { return "invalid_" + e.Field }

// Invalid builds a ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
