package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed input; the request is rejected and never retried.
	ErrValidation = errors.New("validation failed")
	// ErrPreconditionNotMet indicates missing calendar or period data that the
	// engine never synthesizes itself. Resolved only by populating the calendar
	// or regenerating the obligation's period instances.
	ErrPreconditionNotMet = errors.New("precondition not met")
	// ErrForbidden indicates the caller does not own the requested resource.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict indicates the resource already exists.
	ErrConflict = errors.New("already exists")
)
